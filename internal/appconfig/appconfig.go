// internal/appconfig/appconfig.go
// Package appconfig manages loading and interpreting application configuration.
package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// DefaultConfigPath is the default path to the application's configuration file.
	DefaultConfigPath = "config/config.json"
	// legacyConfigPath is the path to the configuration file used in previous versions.
	legacyConfigPath = "config.json"
	// defaultRequestTimeout is the default timeout for HTTP requests.
	defaultRequestTimeout = 600 * time.Second
	// defaultDebounce is the quiet window used by as-you-type actions.
	defaultDebounce = 500 * time.Millisecond
	// defaultMetricsFile is where invocation metrics are written when enabled.
	defaultMetricsFile = "metrics/aiplay_metrics.json"
)

// Config represents the top-level application configuration.
type Config struct {
	Hosts          []Host             `json:"hosts"`
	Capabilities   map[string]Binding `json:"capabilities,omitempty"`
	DefaultHost    string             `json:"defaultHost,omitempty"`
	Debug          bool               `json:"debug"`
	Stream         bool               `json:"stream"`
	Metrics        bool               `json:"metrics"`
	MetricsFile    string             `json:"metricsFile,omitempty"`
	DebounceMs     int                `json:"debounceMs,omitempty"`
	TimeoutSeconds int                `json:"timeout,omitempty"`
	LogFile        string             `json:"logFile,omitempty"`
	ConfigPath     string             `json:"-"`
}

// Host represents a single host that can serve a capability.
type Host struct {
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	Type         string     `json:"type"`
	Models       []string   `json:"models"`
	SystemPrompt string     `json:"systemprompt"`
	Parameters   Parameters `json:"parameters"`
}

// Binding maps a capability to the host and model that serve it.
type Binding struct {
	Host  string `json:"host"`
	Model string `json:"model,omitempty"`
}

// Parameters defines the sampling parameters sent along with every request to a host.
type Parameters struct {
	TopK          *int     `json:"top_k,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	MinP          *float64 `json:"min_p,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty"`
	NumPredict    *int     `json:"num_predict,omitempty"`
	Seed          *int     `json:"seed,omitempty"`
}

// RequestTimeout returns the timeout duration for HTTP requests, falling back to the default if not specified.
func (c Config) RequestTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DebounceWindow returns the quiet window for as-you-type actions.
func (c Config) DebounceWindow() time.Duration {
	if c.DebounceMs <= 0 {
		return defaultDebounce
	}
	return time.Duration(c.DebounceMs) * time.Millisecond
}

// LogFilePath returns the path to the application log file, applying a default if not set.
func (c Config) LogFilePath() string {
	if path := c.LogFile; strings.TrimSpace(path) != "" {
		return path
	}
	return "aiplay.log"
}

// MetricsFilePath returns the path metrics are persisted to.
func (c Config) MetricsFilePath() string {
	if path := strings.TrimSpace(c.MetricsFile); path != "" {
		return path
	}
	return defaultMetricsFile
}

// HostByName returns the host with the given name (case-insensitive).
func (c Config) HostByName(name string) (Host, bool) {
	for _, h := range c.Hosts {
		if strings.EqualFold(h.Name, strings.TrimSpace(name)) {
			return h, true
		}
	}
	return Host{}, false
}

// BindingFor resolves the host and model that serve a capability. An explicit
// capabilities entry wins; otherwise the default host (or the first host) and its
// first model are used. The boolean is false when no host is configured at all.
func (c Config) BindingFor(capability string) (Host, string, bool) {
	if b, ok := c.lookupBinding(capability); ok {
		host, found := c.HostByName(b.Host)
		if !found {
			return Host{}, "", false
		}
		model := strings.TrimSpace(b.Model)
		if model == "" && len(host.Models) > 0 {
			model = host.Models[0]
		}
		return host, model, true
	}

	var host Host
	if c.DefaultHost != "" {
		h, ok := c.HostByName(c.DefaultHost)
		if !ok {
			return Host{}, "", false
		}
		host = h
	} else {
		if len(c.Hosts) == 0 {
			return Host{}, "", false
		}
		host = c.Hosts[0]
	}
	model := ""
	if len(host.Models) > 0 {
		model = host.Models[0]
	}
	return host, model, true
}

// lookupBinding matches capability keys case-insensitively since viper lowercases map keys.
func (c Config) lookupBinding(capability string) (Binding, bool) {
	for key, b := range c.Capabilities {
		if strings.EqualFold(key, capability) {
			return b, true
		}
	}
	return Binding{}, false
}

// Load reads the application configuration from the specified path, with fallback to a legacy path.
func Load(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}

	config, err := loadFromPath(path)
	if err == nil {
		if err := config.validate(); err != nil {
			return Config{}, err
		}
		config.ConfigPath = path
		return config, nil
	}

	if errors.Is(err, os.ErrNotExist) {
		if path == DefaultConfigPath {
			config, legacyErr := loadFromPath(legacyConfigPath)
			if legacyErr == nil {
				if err := config.validate(); err != nil {
					return Config{}, err
				}
				config.ConfigPath = legacyConfigPath
				return config, nil
			}
			if errors.Is(legacyErr, os.ErrNotExist) {
				return Config{}, fmt.Errorf("no configuration file found (searched %q and %q)", DefaultConfigPath, legacyConfigPath)
			}
			return Config{}, fmt.Errorf("could not read config file %q: %w", legacyConfigPath, legacyErr)
		}
		return Config{}, fmt.Errorf("no configuration file found at %q", path)
	}

	return Config{}, fmt.Errorf("could not read config file %q: %w", path, err)
}

func (c Config) validate() error {
	if len(c.Hosts) == 0 {
		return errors.New("config must contain at least one host")
	}
	for key, b := range c.Capabilities {
		if _, ok := c.HostByName(b.Host); !ok {
			return fmt.Errorf("capability %q is bound to unknown host %q", key, b.Host)
		}
	}
	if c.DefaultHost != "" {
		if _, ok := c.HostByName(c.DefaultHost); !ok {
			return fmt.Errorf("defaultHost %q is not a configured host", c.DefaultHost)
		}
	}
	return nil
}

// loadFromPath is a helper function that loads the configuration from a specific file path.
func loadFromPath(path string) (Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer file.Close()

	var config Config
	if err := json.NewDecoder(file).Decode(&config); err != nil {
		return Config{}, err
	}
	if config.TimeoutSeconds <= 0 {
		config.TimeoutSeconds = int(defaultRequestTimeout.Seconds())
	}

	return config, nil
}
