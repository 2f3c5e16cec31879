// internal/models/ollama_host.go
package models

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mwiater/aiplay/internal/logging"
)

// OllamaHost implements the ModelHost interface for Ollama servers.
type OllamaHost struct {
	Name           string
	URL            string
	Models         []string
	client         *http.Client
	requestTimeout time.Duration
}

// GetName returns the display name of the Ollama host.
func (h *OllamaHost) GetName() string {
	return h.Name
}

// GetType returns the type identifier for Ollama hosts ("ollama").
func (h *OllamaHost) GetType() string {
	return "ollama"
}

// GetModels returns the configured models for the Ollama host.
func (h *OllamaHost) GetModels() []string {
	return h.Models
}

func (h *OllamaHost) doRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, context.CancelFunc, error) {
	return doRequest(ctx, h.client, h.requestTimeout, method, h.URL+path, body, contentType)
}

// ListRawModels returns the models available on an Ollama host without styling markup.
func (h *OllamaHost) ListRawModels(ctx context.Context) ([]string, error) {
	resp, cancel, err := h.doRequest(ctx, http.MethodGet, "/api/tags", nil, "")
	if err != nil {
		return nil, fmt.Errorf("could not list models: Ollama is not accessible on %s: %w", h.Name, err)
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("could not list models: %s", strings.TrimSpace(string(bodyBytes)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body from %s: %v", h.Name, err)
	}

	var tagsResp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &tagsResp); err != nil {
		return nil, fmt.Errorf("error parsing models from %s: %v", h.Name, err)
	}

	models := make([]string, 0, len(tagsResp.Models))
	for _, model := range tagsResp.Models {
		models = append(models, model.Name)
	}
	return models, nil
}

// HasModel reports whether the model is already pulled. A bare name matches its
// ":latest" tag the way Ollama resolves it.
func (h *OllamaHost) HasModel(ctx context.Context, model string) (bool, error) {
	names, err := h.ListRawModels(ctx)
	if err != nil {
		return false, err
	}
	want := canonicalTag(model)
	for _, name := range names {
		if canonicalTag(name) == want {
			return true, nil
		}
	}
	return false, nil
}

// ListModels returns the models available on an Ollama host, labeling currently loaded entries.
func (h *OllamaHost) ListModels(ctx context.Context) ([]string, error) {
	modelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	loadedModelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("46"))

	runningModels, err := h.GetRunningModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not get running models: %v", err)
	}

	names, err := h.ListRawModels(ctx)
	if err != nil {
		return nil, err
	}

	var models []string
	for _, name := range names {
		if _, ok := runningModels[name]; ok {
			models = append(models, loadedModelStyle.Render(fmt.Sprintf("- %s (CURRENTLY LOADED)", name)))
		} else {
			models = append(models, modelStyle.Render(fmt.Sprintf("- %s", name)))
		}
	}
	return models, nil
}

// GetRunningModels returns the set of currently running models on an Ollama host by querying /api/ps.
func (h *OllamaHost) GetRunningModels(ctx context.Context) (map[string]struct{}, error) {
	runningModels := make(map[string]struct{})

	resp, cancel, err := h.doRequest(ctx, http.MethodGet, "/api/ps", nil, "")
	if err != nil {
		return nil, err
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("could not get running models: %s", strings.TrimSpace(string(bodyBytes)))
	}

	var psResp struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&psResp); err != nil {
		return nil, err
	}

	for _, model := range psResp.Models {
		runningModels[model.Name] = struct{}{}
	}

	return runningModels, nil
}

// PullModel pulls the model via /api/pull, forwarding every NDJSON progress event.
func (h *OllamaHost) PullModel(ctx context.Context, model string, onProgress func(PullProgress)) error {
	payload := map[string]any{"name": model, "stream": true}
	body, _ := json.Marshal(payload)
	logging.LogRequest("AIPLAY->HOST", h.Name, model, "", body)

	// Downloads routinely outlive the request timeout; only the caller's context bounds them.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL+"/api/pull", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{}
	if h.client != nil {
		client.Transport = h.client.Transport
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error pulling model %s on %s: %w", model, h.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("error pulling model %s on %s: %s", model, h.Name, strings.TrimSpace(string(respBody)))
	}

	decoder := json.NewDecoder(resp.Body)
	for {
		var event struct {
			PullProgress
			Error string `json:"error"`
		}
		if err := decoder.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if event.Error != "" {
			return fmt.Errorf("error pulling model %s on %s: %s", model, h.Name, event.Error)
		}
		if onProgress != nil {
			onProgress(event.PullProgress)
		}
		if event.Status == "success" {
			logging.LogRequest("HOST->AIPLAY", h.Name, model, "", "pull complete")
			return nil
		}
	}
}

func canonicalTag(name string) string {
	name = strings.TrimSpace(name)
	if !strings.Contains(name, ":") {
		return name + ":latest"
	}
	return name
}
