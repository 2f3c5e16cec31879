// internal/models/models.go
// Package models manages model lifecycle on the configured hosts: listing what a host
// serves, checking whether a model is present, and downloading missing models.
package models

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mwiater/aiplay/internal/appconfig"
	"golang.org/x/sync/errgroup"
)

// defaultRequestTimeout defines the fallback HTTP timeout for host interactions.
const defaultRequestTimeout = 120 * time.Second

// PullProgress is one progress event reported while a model downloads.
type PullProgress struct {
	Status    string `json:"status"`
	Completed int64  `json:"completed"`
	Total     int64  `json:"total"`
}

// Fraction returns the share of the download completed, or -1 when the event
// carries no byte counts.
func (p PullProgress) Fraction() float64 {
	if p.Total <= 0 {
		return -1
	}
	return float64(p.Completed) / float64(p.Total)
}

// ModelHost defines the model lifecycle operations a host must support.
type ModelHost interface {
	// GetName returns the name of the host.
	GetName() string
	// GetType returns the type of the host (e.g., "ollama").
	GetType() string
	// GetModels returns the list of models configured for this host.
	GetModels() []string
	// ListRawModels lists the model names the host currently serves.
	ListRawModels(ctx context.Context) ([]string, error)
	// ListModels lists the models with styling that marks loaded entries.
	ListModels(ctx context.Context) ([]string, error)
	// HasModel reports whether the model is present on the host.
	HasModel(ctx context.Context, model string) (bool, error)
	// PullModel makes the model usable, reporting progress along the way.
	PullModel(ctx context.Context, model string, onProgress func(PullProgress)) error
}

// NormalizeType folds the spellings of a host type onto a canonical form.
func NormalizeType(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "llama.cpp", "llamacpp", "llama-cpp":
		return "llamacpp"
	case "ollama":
		return "ollama"
	case "mock":
		return "mock"
	case "", "none", "null":
		return "none"
	default:
		return strings.ToLower(strings.TrimSpace(value))
	}
}

// NewHost returns the ModelHost for a configured host entry.
func NewHost(host appconfig.Host, client *http.Client, timeout time.Duration) (ModelHost, error) {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	switch NormalizeType(host.Type) {
	case "ollama":
		return &OllamaHost{
			Name:           host.Name,
			URL:            strings.TrimRight(host.URL, "/"),
			Models:         host.Models,
			client:         client,
			requestTimeout: timeout,
		}, nil
	case "llamacpp":
		return &LlamaCppHost{
			Name:           host.Name,
			URL:            strings.TrimRight(host.URL, "/"),
			Models:         host.Models,
			client:         client,
			requestTimeout: timeout,
		}, nil
	default:
		return nil, fmt.Errorf("model management is not supported for %s (%s)", host.Name, host.Type)
	}
}

// createHosts creates ModelHost implementations for each configured host entry,
// reporting the ones that cannot be managed.
func createHosts(config appconfig.Config, out io.Writer) []ModelHost {
	var hosts []ModelHost
	timeout := config.RequestTimeout()
	client := &http.Client{
		Timeout: timeout,
	}
	for _, hostConfig := range config.Hosts {
		h, err := NewHost(hostConfig, client, timeout)
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		hosts = append(hosts, h)
	}
	return hosts
}

// PullModels downloads every configured model on every manageable host. Hosts are
// processed concurrently and the models of one host in order.
func PullModels(ctx context.Context, config *appconfig.Config, out io.Writer) error {
	if config == nil {
		return fmt.Errorf("configuration is not initialized")
	}

	var mu sync.Mutex
	printf := func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		fmt.Fprintf(out, format, args...)
	}

	hosts := createHosts(*config, out)
	g, gctx := errgroup.WithContext(ctx)
	for _, host := range hosts {
		h := host
		g.Go(func() error {
			printf("Starting model pulls for %s...\n", h.GetName())
			for _, model := range h.GetModels() {
				printf("  -> Pulling model: %s on %s\n", model, h.GetName())
				step := -1
				err := h.PullModel(gctx, model, func(p PullProgress) {
					frac := p.Fraction()
					if frac < 0 {
						return
					}
					if pct := int(frac*100) / 10; pct > step {
						step = pct
						printf("     %s %s %s\n", h.GetName(), model, renderBar(frac, 20))
					}
				})
				if err != nil {
					return fmt.Errorf("pull %s on %s: %w", model, h.GetName(), err)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintln(out, "All model pull commands have finished.")
	return nil
}

// ListModels prints the models each manageable host serves.
func ListModels(ctx context.Context, config *appconfig.Config, out io.Writer) error {
	if config == nil {
		return fmt.Errorf("configuration is not initialized")
	}
	hostStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	for _, h := range createHosts(*config, out) {
		fmt.Fprintln(out, hostStyle.Render(fmt.Sprintf("%s (%s)", h.GetName(), h.GetType())))
		models, err := h.ListModels(ctx)
		if err != nil {
			fmt.Fprintln(out, errStyle.Render("  "+err.Error()))
			continue
		}
		if len(models) == 0 {
			fmt.Fprintln(out, "  (no models)")
			continue
		}
		for _, m := range models {
			fmt.Fprintln(out, "  "+m)
		}
	}
	return nil
}

func renderBar(frac float64, width int) string {
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	filled := int(frac * float64(width))
	return fmt.Sprintf("[%s%s] %3d%%", strings.Repeat("#", filled), strings.Repeat("-", width-filled), int(frac*100))
}

// doRequest executes an HTTP request bounded by the host timeout and the caller's context.
func doRequest(ctx context.Context, client *http.Client, timeout time.Duration, method, url string, body io.Reader, contentType string) (*http.Response, context.CancelFunc, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return resp, cancel, nil
}
