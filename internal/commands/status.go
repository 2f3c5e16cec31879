// internal/commands/status.go
package aiplay

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mwiater/aiplay/internal/appconfig"
	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/providers"
	"github.com/mwiater/aiplay/internal/session"
)

// probeResult is the availability of one capability on its bound host.
type probeResult struct {
	Capability   capability.Name
	Host         string
	Model        string
	Availability capability.Availability
}

// statusCmd implements 'status', which probes every capability on its bound host.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which capabilities are available",
	Long:  `The 'status' command probes every capability on the host it is bound to and prints whether it is available, downloadable or unavailable.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := requireConfig()
		if err != nil {
			return err
		}
		ctx, stop := interruptContext(cmd)
		defer stop()

		provider, err := newProvider(cfg)
		if err != nil {
			return fmt.Errorf("initialize provider: %w", err)
		}
		defer closeProvider(provider)

		results, err := probeAll(ctx, cfg, provider)
		if err != nil {
			return err
		}
		printStatus(cmd.OutOrStdout(), results)
		if DebugEnabled() {
			pp.Fprintln(cmd.OutOrStdout(), results)
		}
		return nil
	},
}

// probeAll probes every capability concurrently. Probe failures are reported as
// unavailable, so only cancellation returns an error.
func probeAll(ctx context.Context, cfg *appconfig.Config, provider providers.Provider) ([]probeResult, error) {
	names := capability.All()
	results := make([]probeResult, len(names))
	gate := session.NewGate(provider, session.BinderFromConfig(cfg))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			res := probeResult{Capability: name}
			if host, model, ok := cfg.BindingFor(string(name)); ok {
				res.Host, res.Model = host.Name, model
			}
			res.Availability = gate.Probe(gctx, name, capability.Defaults(name))
			results[i] = res
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func printStatus(out io.Writer, results []probeResult) {
	bold := color.New(color.Bold)
	bold.Fprintf(out, "%-20s %-14s %s\n", "CAPABILITY", "STATUS", "HOST / MODEL")
	for _, r := range results {
		target := "(no host bound)"
		if r.Host != "" {
			target = r.Host
			if r.Model != "" {
				target += " / " + r.Model
			}
		}
		fmt.Fprintf(out, "%-20s %s %s\n", r.Capability.Title(), statusColor(r.Availability).Sprintf("%-14s", r.Availability), target)
	}
}

func statusColor(a capability.Availability) *color.Color {
	switch a {
	case capability.Available:
		return color.New(color.FgGreen)
	case capability.Downloadable:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgRed)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
