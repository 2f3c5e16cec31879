package appconfig

import (
	"fmt"
	"io"
	"sort"
)

// ShowConfig prints the current configuration summary.
func ShowConfig(out io.Writer, file string, cfg *Config, fallback Config) {
	if file == "" {
		fmt.Fprintln(out, "No config file loaded (using defaults).")
	} else {
		fmt.Fprintf(out, "Config file: %s\n\n", file)
	}

	fmt.Fprintln(out, "Current configuration:")
	if cfg == nil {
		cfg = &fallback
	}

	fmt.Fprintf(out, "  Debug:           %v\n", cfg.Debug)
	fmt.Fprintf(out, "  Stream:          %v\n", cfg.Stream)
	fmt.Fprintf(out, "  Metrics:         %v\n", cfg.Metrics)
	if cfg.Metrics {
		fmt.Fprintf(out, "  Metrics File:    %s\n", cfg.MetricsFilePath())
	}
	fmt.Fprintf(out, "  Debounce:        %s\n", cfg.DebounceWindow())
	fmt.Fprintf(out, "  Request Timeout: %s\n", cfg.RequestTimeout())
	fmt.Fprintf(out, "  Log File:        %s\n", cfg.LogFilePath())
	if cfg.DefaultHost != "" {
		fmt.Fprintf(out, "  Default Host:    %s\n", cfg.DefaultHost)
	}

	if len(cfg.Hosts) > 0 {
		fmt.Fprintln(out, "\nHosts:")
		for _, h := range cfg.Hosts {
			fmt.Fprintf(out, "  - %s (%s) %s models=%v\n", h.Name, h.Type, h.URL, h.Models)
		}
	}

	if len(cfg.Capabilities) > 0 {
		fmt.Fprintln(out, "\nCapabilities:")
		keys := make([]string, 0, len(cfg.Capabilities))
		for k := range cfg.Capabilities {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b := cfg.Capabilities[k]
			model := b.Model
			if model == "" {
				model = "(host default)"
			}
			fmt.Fprintf(out, "  %-17s %s / %s\n", k+":", b.Host, model)
		}
	}
}
