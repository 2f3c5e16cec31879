// scripts/capability_smoke_check.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mwiater/aiplay/internal/appconfig"
	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/providerfactory"
	"github.com/mwiater/aiplay/internal/providers"
	"github.com/mwiater/aiplay/internal/session"
)

// samples is the input each capability is exercised with.
var samples = map[capability.Name]string{
	capability.Translator:       "The weather is nice today.",
	capability.LanguageDetector: "Bonjour, je suis très content de vous voir.",
	capability.Summarizer:       "Go is an open source programming language. It makes it simple to build secure, scalable systems. It was designed at Google.",
	capability.LanguageModel:    "Reply with one short sentence about the sea.",
	capability.Writer:           "A two line note inviting the team to lunch.",
	capability.Rewriter:         "hey, the build is broken again, can someone look?",
}

func main() {
	configPath := flag.String("config", appconfig.DefaultConfigPath, "Path to config JSON")
	only := flag.String("capability", "", "Check only this capability")
	stream := flag.Bool("stream", false, "Use streaming invocations")
	timeout := flag.Duration("timeout", 2*time.Minute, "Timeout per capability, including downloads")
	flag.Parse()

	cfg, err := appconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	provider, err := providerfactory.NewProvider(&cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "provider error: %v\n", err)
		os.Exit(1)
	}
	defer provider.Close()

	names := capability.All()
	if *only != "" {
		name, err := capability.Parse(*only)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		names = []capability.Name{name}
	}

	mode := session.Batch
	if *stream {
		mode = session.Streaming
	}
	failed := 0
	for _, name := range names {
		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		ok := check(ctx, &cfg, provider, name, mode)
		cancel()
		if !ok {
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "\n%d of %d capabilities failed\n", failed, len(names))
		os.Exit(1)
	}
}

func check(ctx context.Context, cfg *appconfig.Config, provider providers.Provider, name capability.Name, mode session.Mode) bool {
	fmt.Printf("== %s ==\n", name.Title())
	start := time.Now()
	feature := session.NewFeature(session.ForCapability(name, session.Options{
		Provider: provider,
		Bind:     session.BinderFromConfig(cfg),
		Mode:     mode,
		Observer: func(s session.Snapshot) {
			if s.State == session.StateSessionCreating && s.Progress > 0 {
				fmt.Printf("  downloading %3.0f%%\n", s.Progress)
			}
		},
	}))
	defer feature.Unmount()

	avail := feature.Mount(ctx)
	fmt.Printf("  availability: %s\n", avail)
	if !avail.Usable() {
		return false
	}

	var res session.Result
	var err error
	if name == capability.LanguageDetector {
		res, err = feature.Detect(ctx, samples[name])
	} else {
		res, err = feature.Run(ctx, samples[name], capability.InvokeOptions{})
	}
	if err != nil {
		fmt.Printf("  FAIL after %s: %v\n", time.Since(start).Round(time.Millisecond), err)
		return false
	}
	if name == capability.LanguageDetector {
		for _, d := range capability.VisibleDetections(res.Detections, capability.DetectionDisplayLimit) {
			fmt.Printf("  %s %.0f%%\n", d.Language, d.Confidence*100)
		}
	} else {
		fmt.Printf("  %s\n", strings.ReplaceAll(strings.TrimSpace(res.Text), "\n", "\n  "))
	}
	fmt.Printf("  ok in %s (%d chunks)\n\n", time.Since(start).Round(time.Millisecond), res.Chunks)
	return true
}
