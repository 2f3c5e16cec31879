// internal/commands/run.go
package aiplay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mwiater/aiplay/internal/appconfig"
	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/logging"
	"github.com/mwiater/aiplay/internal/providerfactory"
	"github.com/mwiater/aiplay/internal/providers"
	"github.com/mwiater/aiplay/internal/session"
)

// newProvider builds the capability provider for a command. Tests replace it.
var newProvider = providerfactory.NewProvider

// interruptContext derives a context cancelled on Ctrl-C.
func interruptContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt)
}

// readInput joins the arguments, or reads stdin when there are none.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return string(data), nil
}

// streamPrinter writes streamed output as it grows. Snapshots may arrive from
// several goroutines; Seq keeps the newest.
type streamPrinter struct {
	out     io.Writer
	status  io.Writer
	mu      sync.Mutex
	seq     uint64
	printed string
	percent float64
}

func newStreamPrinter(out, status io.Writer) *streamPrinter {
	return &streamPrinter{out: out, status: status}
}

func (p *streamPrinter) observe(s session.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s.Seq <= p.seq {
		return
	}
	p.seq = s.Seq
	switch s.State {
	case session.StateSessionCreating:
		if s.Progress > p.percent {
			p.percent = s.Progress
			fmt.Fprintf(p.status, "%s %3.0f%%\n", color.YellowString("Downloading model"), s.Progress)
		}
	case session.StateStreamingPartial:
		p.writeLocked(s.Output)
	}
}

// finish prints what the stream has not shown yet and ends the line.
func (p *streamPrinter) finish(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeLocked(text)
	if p.printed != "" && !strings.HasSuffix(p.printed, "\n") {
		fmt.Fprintln(p.out)
	}
}

func (p *streamPrinter) writeLocked(text string) {
	if !strings.HasPrefix(text, p.printed) {
		return
	}
	fmt.Fprint(p.out, text[len(p.printed):])
	p.printed = text
}

// capabilityRun describes one invocation requested on the command line.
type capabilityRun struct {
	name  capability.Name
	cfg   capability.Config
	input string
	opts  capability.InvokeOptions
	// detect replaces the text output with the language guesses.
	detect bool
	// autoSource detects the source language before translating.
	autoSource bool
}

// runCapability probes the capability, runs it once, and prints the result.
func runCapability(cmd *cobra.Command, run capabilityRun) error {
	appCfg := GetConfig()
	if appCfg == nil {
		return fmt.Errorf("configuration is not loaded")
	}
	if strings.TrimSpace(run.input) == "" {
		return errors.New(capability.EmptyInputMessage(run.name))
	}
	ctx, stop := interruptContext(cmd)
	defer stop()

	provider, err := newProvider(appCfg)
	if err != nil {
		return fmt.Errorf("initialize provider: %w", err)
	}
	defer closeProvider(provider)
	bind := session.BinderFromConfig(appCfg)

	if run.autoSource {
		run.cfg.SourceLanguage = detectSource(ctx, provider, bind, run.input)
		run.cfg.TargetLanguage = capability.CorrectTarget(run.cfg.SourceLanguage, run.cfg.TargetLanguage)
	}
	cfg := capability.Normalize(run.name, run.cfg)
	if err := capability.Validate(run.name, cfg); err != nil {
		return err
	}

	mode := session.Batch
	if appCfg.Stream {
		mode = session.Streaming
	}
	printer := newStreamPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
	feature := session.NewFeature(session.ForCapability(run.name, session.Options{
		Provider: provider,
		Bind:     bind,
		Config:   cfg,
		Mode:     mode,
		Observer: printer.observe,
	}))
	defer feature.Unmount()

	if avail := feature.Mount(ctx); !avail.Usable() {
		printRemediation(cmd.ErrOrStderr(), run.name)
		return fmt.Errorf("%s: %w", run.name, session.ErrCapabilityUnavailable)
	}

	var res session.Result
	if run.detect {
		res, err = feature.Detect(ctx, run.input)
	} else {
		res, err = feature.Run(ctx, run.input, run.opts)
	}
	if errors.Is(err, session.ErrEmptyInput) {
		return errors.New(capability.EmptyInputMessage(run.name))
	}

	if run.detect {
		printDetections(cmd.OutOrStdout(), res.Detections)
	} else {
		printer.finish(res.Text)
	}
	switch {
	case err != nil:
		logging.LogEvent("%s failed: %v", run.name, err)
		return fmt.Errorf("%s: %w", capability.FailureMessage(run.name), err)
	case res.Status == session.StatusCancelled:
		return fmt.Errorf("%s: cancelled", run.name)
	}
	return nil
}

// detectSource guesses the language of input, falling back to English.
func detectSource(ctx context.Context, provider providers.Provider, bind session.Binder, input string) string {
	detector := session.NewFeature(session.ForCapability(capability.LanguageDetector, session.Options{
		Provider: provider,
		Bind:     bind,
	}))
	defer detector.Unmount()
	fallback := capability.Defaults(capability.Translator).SourceLanguage
	if !detector.Mount(ctx).Usable() {
		return fallback
	}
	res, err := detector.Detect(ctx, input)
	if err != nil {
		logging.LogEvent("source detection failed: %v", err)
		return fallback
	}
	if code, ok := capability.AutoSource(res.Detections, ""); ok {
		return code
	}
	return fallback
}

func printDetections(out io.Writer, results []capability.Detection) {
	visible := capability.VisibleDetections(results, 0)
	if len(visible) == 0 {
		fmt.Fprintln(out, "No language detected.")
		return
	}
	for _, d := range visible {
		fmt.Fprintf(out, "%s\t%s\t%.0f%%\n", d.Language, capability.LanguageName(d.Language), d.Confidence*100)
	}
}

func printRemediation(out io.Writer, name capability.Name) {
	fmt.Fprintln(out, color.RedString("%s is not available on the configured host.", name.Title()))
	for i, step := range capability.Remediation(name) {
		fmt.Fprintf(out, "  %d. %s\n", i+1, step)
	}
}

func closeProvider(p providers.Provider) {
	if err := p.Close(); err != nil {
		logging.LogEvent("provider shutdown error: %v", err)
	}
}

// requireConfig returns the loaded config or an error for commands that need hosts.
func requireConfig() (*appconfig.Config, error) {
	cfg := GetConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration is not loaded")
	}
	return cfg, nil
}
