// internal/models/llama_host.go
package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mwiater/aiplay/internal/logging"
)

// loadPollInterval is how often a router-mode host is polled while a model loads.
var loadPollInterval = 200 * time.Millisecond

// LlamaCppHost implements the ModelHost interface for llama.cpp servers in router mode.
type LlamaCppHost struct {
	Name           string
	URL            string
	Models         []string
	client         *http.Client
	requestTimeout time.Duration
}

// GetName returns the display name of the llama.cpp host.
func (h *LlamaCppHost) GetName() string {
	return h.Name
}

// GetType returns the type identifier for llama.cpp hosts ("llama.cpp").
func (h *LlamaCppHost) GetType() string {
	return "llama.cpp"
}

// GetModels returns the configured models for the llama.cpp host.
func (h *LlamaCppHost) GetModels() []string {
	return h.Models
}

func (h *LlamaCppHost) doRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, context.CancelFunc, error) {
	return doRequest(ctx, h.client, h.requestTimeout, method, h.URL+path, body, contentType)
}

// ListRawModels returns the models available on a llama.cpp host without styling markup.
func (h *LlamaCppHost) ListRawModels(ctx context.Context) ([]string, error) {
	models, err := h.listModels(ctx)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, model := range models {
		if name := modelDisplayName(model); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// HasModel reports whether the host lists the model, loaded or not.
func (h *LlamaCppHost) HasModel(ctx context.Context, model string) (bool, error) {
	names, err := h.ListRawModels(ctx)
	if err != nil {
		return false, err
	}
	for _, name := range names {
		if strings.EqualFold(name, strings.TrimSpace(model)) {
			return true, nil
		}
	}
	return false, nil
}

// ModelStatus returns the router status of the model ("loaded", "loading", "unloaded"),
// or an empty string when the host does not list it.
func (h *LlamaCppHost) ModelStatus(ctx context.Context, model string) (string, error) {
	models, err := h.listModels(ctx)
	if err != nil {
		return "", err
	}
	for _, m := range models {
		if strings.EqualFold(modelDisplayName(m), strings.TrimSpace(model)) {
			status := strings.ToLower(modelStatusValue(m))
			if status == "" {
				status = "loaded"
			}
			return status, nil
		}
	}
	return "", nil
}

// ListModels returns the models available on a llama.cpp host, labeling their status.
func (h *LlamaCppHost) ListModels(ctx context.Context) ([]string, error) {
	loadedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	loadingStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	unloadedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("242"))

	models, err := h.listModels(ctx)
	if err != nil {
		return nil, err
	}

	var formatted []string
	for _, model := range models {
		name := modelDisplayName(model)
		if name == "" {
			continue
		}
		status := strings.ToUpper(strings.TrimSpace(modelStatusValue(model)))
		if status == "" {
			status = "UNKNOWN"
		}
		entry := fmt.Sprintf("- %s (%s)", name, status)
		switch strings.ToLower(status) {
		case "loaded":
			formatted = append(formatted, loadedStyle.Render(entry))
		case "loading":
			formatted = append(formatted, loadingStyle.Render(entry))
		default:
			formatted = append(formatted, unloadedStyle.Render(entry))
		}
	}
	return formatted, nil
}

// PullModel loads the model through /models/load and waits until the router reports it
// loaded. Progress is reported as 0 when loading starts and 1 when it is done.
func (h *LlamaCppHost) PullModel(ctx context.Context, model string, onProgress func(PullProgress)) error {
	report := func(status string, done int64) {
		if onProgress != nil {
			onProgress(PullProgress{Status: status, Completed: done, Total: 1})
		}
	}
	status, err := h.ModelStatus(ctx, model)
	if err != nil {
		return err
	}
	if status == "loaded" {
		report("success", 1)
		return nil
	}
	report("loading", 0)
	if err := h.loadModel(ctx, model); err != nil {
		return fmt.Errorf("error loading model %s on %s: %w", model, h.Name, err)
	}
	if err := h.waitForModelLoaded(ctx, model); err != nil {
		return err
	}
	report("success", 1)
	return nil
}

func (h *LlamaCppHost) waitForModelLoaded(ctx context.Context, model string) error {
	ticker := time.NewTicker(loadPollInterval)
	defer ticker.Stop()
	for {
		status, err := h.ModelStatus(ctx, model)
		if err != nil {
			return err
		}
		switch status {
		case "loaded":
			return nil
		case "failed", "error":
			return fmt.Errorf("model %s failed to load on %s", model, h.Name)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type llamaModel struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Model  string      `json:"model"`
	Path   string      `json:"path"`
	Status statusField `json:"status"`
}

type modelsResponse struct {
	Data   []llamaModel `json:"data"`
	Models []llamaModel `json:"models"`
}

func (h *LlamaCppHost) listModels(ctx context.Context) ([]llamaModel, error) {
	logging.LogRequest("AIPLAY->HOST", hostIdentifier(h), "", "", map[string]string{
		"method": http.MethodGet,
		"url":    h.URL + "/models",
	})
	resp, cancel, err := h.doRequest(ctx, http.MethodGet, "/models", nil, "")
	if err != nil {
		return nil, fmt.Errorf("could not list models: llama.cpp is not accessible on %s: %w", h.Name, err)
	}
	defer cancel()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body from %s: %v", h.Name, err)
	}
	logging.LogRequest("HOST->AIPLAY", hostIdentifier(h), "", "", body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("could not list models: %s", strings.TrimSpace(string(body)))
	}

	var wrapped modelsResponse
	if err := json.Unmarshal(body, &wrapped); err == nil {
		if len(wrapped.Models) > 0 {
			return wrapped.Models, nil
		}
		if len(wrapped.Data) > 0 {
			return wrapped.Data, nil
		}
	}

	var direct []llamaModel
	if err := json.Unmarshal(body, &direct); err == nil && len(direct) > 0 {
		return direct, nil
	}

	var names struct {
		Models []string `json:"models"`
	}
	if err := json.Unmarshal(body, &names); err == nil && len(names.Models) > 0 {
		out := make([]llamaModel, 0, len(names.Models))
		for _, name := range names.Models {
			out = append(out, llamaModel{Name: name})
		}
		return out, nil
	}

	return nil, fmt.Errorf("unrecognized /models response from %s", h.Name)
}

func (h *LlamaCppHost) loadModel(ctx context.Context, model string) error {
	payload := map[string]string{"model": model}
	body, _ := json.Marshal(payload)

	logging.LogRequest("AIPLAY->HOST", hostIdentifier(h), model, "", body)
	resp, cancel, err := h.doRequest(ctx, http.MethodPost, "/models/load", bytes.NewReader(body), "application/json")
	if err != nil {
		return err
	}
	defer cancel()
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	logging.LogRequest("HOST->AIPLAY", hostIdentifier(h), model, "", respBody)
	if resp.StatusCode >= http.StatusBadRequest && !isAlreadyLoadedResponse(respBody) {
		return fmt.Errorf("load failed: %s", strings.TrimSpace(string(respBody)))
	}
	return nil
}

func isAlreadyLoadedResponse(body []byte) bool {
	return strings.Contains(strings.ToLower(string(body)), "already loaded")
}

func modelDisplayName(model llamaModel) string {
	if strings.TrimSpace(model.ID) != "" {
		return strings.TrimSpace(model.ID)
	}
	if strings.TrimSpace(model.Name) != "" {
		return strings.TrimSpace(model.Name)
	}
	if strings.TrimSpace(model.Model) != "" {
		return strings.TrimSpace(model.Model)
	}
	return strings.TrimSpace(model.Path)
}

type statusField struct {
	Value string
}

func (s *statusField) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		s.Value = ""
		return nil
	}
	if trimmed[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		s.Value = v
		return nil
	}
	var obj struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	s.Value = obj.Value
	return nil
}

func modelStatusValue(model llamaModel) string {
	return strings.TrimSpace(model.Status.Value)
}

func hostIdentifier(host *LlamaCppHost) string {
	name := strings.TrimSpace(host.Name)
	if name != "" {
		return name
	}
	if url := strings.TrimSpace(host.URL); url != "" {
		return url
	}
	return "llama.cpp-host"
}
