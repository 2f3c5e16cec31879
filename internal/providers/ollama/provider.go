// internal/providers/ollama/provider.go
// Package ollama provides a capability Provider backed by Ollama-compatible HTTP endpoints.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mwiater/aiplay/internal/appconfig"
	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/logging"
	"github.com/mwiater/aiplay/internal/models"
	"github.com/mwiater/aiplay/internal/prompts"
	"github.com/mwiater/aiplay/internal/providers"
)

// Provider implements the providers.Provider interface using Ollama HTTP APIs.
type Provider struct {
	client  *http.Client
	timeout time.Duration
	debug   bool
}

// New constructs a Provider configured with the application's request timeout. The
// timeout bounds every request except streamed answers, which fail only when the host
// sends nothing for that long.
func New(cfg *appconfig.Config) *Provider {
	timeout := cfg.RequestTimeout()
	return &Provider{
		client: &http.Client{
			Transport: &http.Transport{ForceAttemptHTTP2: false},
		},
		timeout: timeout,
		debug:   cfg.Debug,
	}
}

// streamChunk defines the structure of a single chunk in a chat response.
type streamChunk struct {
	Model   string `json:"model"`
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	Error           string `json:"error,omitempty"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
}

func (p *Provider) modelHost(target providers.Target) (models.ModelHost, error) {
	host := target.Host
	host.Type = "ollama"
	return models.NewHost(host, p.client, p.timeout)
}

// Availability reports available when the model is pulled, downloadable when the host
// answers but lacks the model, and unavailable otherwise.
func (p *Provider) Availability(ctx context.Context, req providers.Request) (capability.Availability, error) {
	if req.Capability == capability.Translator && !capability.SupportsPair(req.Config.SourceLanguage, req.Config.TargetLanguage) {
		return capability.Unavailable, nil
	}
	if strings.TrimSpace(req.Target.Model) == "" {
		return capability.Unavailable, fmt.Errorf("ollama: no model configured for %s on %s", req.Capability, hostIdentifier(req.Target.Host))
	}
	mh, err := p.modelHost(req.Target)
	if err != nil {
		return capability.Unavailable, err
	}
	ok, err := mh.HasModel(ctx, req.Target.Model)
	if err != nil {
		return capability.Unavailable, err
	}
	if ok {
		return capability.Available, nil
	}
	return capability.Downloadable, nil
}

// Create pulls the model when it is missing, forwarding download progress, and then
// loads it into memory.
func (p *Provider) Create(ctx context.Context, req providers.Request, progress providers.ProgressFunc) (providers.Session, error) {
	mh, err := p.modelHost(req.Target)
	if err != nil {
		return nil, err
	}
	ok, err := mh.HasModel(ctx, req.Target.Model)
	if err != nil {
		return nil, err
	}
	if !ok {
		err := mh.PullModel(ctx, req.Target.Model, func(pp models.PullProgress) {
			if f := pp.Fraction(); f >= 0 && progress != nil {
				progress(f)
			}
		})
		if err != nil {
			return nil, err
		}
		if progress != nil {
			progress(1)
		}
	}
	if err := p.EnsureModelReady(ctx, req.Target.Host, req.Target.Model); err != nil {
		return nil, err
	}
	return &session{provider: p, req: req, history: prompts.NewConversation(req.Capability)}, nil
}

// EnsureModelReady triggers a lightweight generate request to make sure the model is loaded.
func (p *Provider) EnsureModelReady(ctx context.Context, host appconfig.Host, model string) error {
	payload := map[string]any{
		"model": model,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	logging.LogRequest("AIPLAY->HOST", hostIdentifier(host), model, "", body)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host.URL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	logging.LogRequest("HOST->AIPLAY", hostIdentifier(host), model, "", respBody)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama: /api/generate returned %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	return nil
}

// chat posts messages to /api/chat. With onChunk set the response is streamed and
// every non-empty delta is forwarded in order; otherwise the full message is returned.
func (p *Provider) chat(ctx context.Context, req providers.Request, messages []providers.ChatMessage, options map[string]any, jsonMode bool, onChunk func(string) error) (string, error) {
	hostID := hostIdentifier(req.Target.Host)
	streamEnabled := onChunk != nil
	payload := map[string]any{
		"model":    req.Target.Model,
		"messages": messages,
		"options":  options,
		"stream":   streamEnabled,
	}
	if jsonMode {
		payload["format"] = "json"
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	if p.debug {
		if pretty, perr := json.MarshalIndent(payload, "", "  "); perr == nil {
			body = pretty
		}
	}
	logging.LogRequest("AIPLAY->HOST", hostID, req.Target.Model, string(req.Capability), body)

	var (
		streamCtx context.Context
		cancel    context.CancelFunc
		idle      *providers.IdleTimer
	)
	if streamEnabled {
		streamCtx, idle = providers.WithIdleTimeout(ctx, p.timeout)
		cancel = idle.Stop
	} else {
		streamCtx, cancel = context.WithTimeout(ctx, p.timeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, req.Target.Host.URL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", idle.Err(streamCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		logging.LogRequest("HOST->AIPLAY", hostID, req.Target.Model, string(req.Capability), raw)
		return "", fmt.Errorf("ollama: /api/chat returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	if !streamEnabled {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		logging.LogRequest("HOST->AIPLAY", hostID, req.Target.Model, string(req.Capability), raw)
		var result streamChunk
		if err := json.Unmarshal(raw, &result); err != nil {
			return "", err
		}
		if result.Error != "" {
			return "", fmt.Errorf("ollama: %s", result.Error)
		}
		return result.Message.Content, nil
	}

	var full strings.Builder
	decoder := json.NewDecoder(resp.Body)
	for {
		var chunk streamChunk
		if err := decoder.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return full.String(), idle.Err(streamCtx, err)
		}
		idle.Touch()
		if chunk.Error != "" {
			return full.String(), fmt.Errorf("ollama: %s", chunk.Error)
		}
		if chunk.Message.Content != "" {
			full.WriteString(chunk.Message.Content)
			if err := onChunk(chunk.Message.Content); err != nil {
				return full.String(), err
			}
		}
		if chunk.Done {
			logging.LogRequest("HOST->AIPLAY", hostID, req.Target.Model, string(req.Capability),
				map[string]int{"prompt_eval_count": chunk.PromptEvalCount, "eval_count": chunk.EvalCount})
			break
		}
	}
	return full.String(), nil
}

// countTokens asks /api/generate to evaluate the prompt without producing output.
func (p *Provider) countTokens(ctx context.Context, req providers.Request, input string) (int, error) {
	payload := map[string]any{
		"model":   req.Target.Model,
		"prompt":  input,
		"stream":  false,
		"raw":     true,
		"options": map[string]any{"num_predict": 0},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	hostID := hostIdentifier(req.Target.Host)
	logging.LogRequest("AIPLAY->HOST", hostID, req.Target.Model, string(req.Capability), body)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Target.Host.URL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("ollama: /api/generate returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	var result generateResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, err
	}
	return result.PromptEvalCount, nil
}

func buildOptions(params appconfig.Parameters) map[string]any {
	options := map[string]any{}
	if params.TopK != nil {
		options["top_k"] = *params.TopK
	}
	if params.TopP != nil {
		options["top_p"] = *params.TopP
	}
	if params.MinP != nil {
		options["min_p"] = *params.MinP
	}
	if params.Temperature != nil {
		options["temperature"] = *params.Temperature
	}
	if params.RepeatPenalty != nil {
		options["repeat_penalty"] = *params.RepeatPenalty
	}
	if params.NumPredict != nil {
		options["num_predict"] = *params.NumPredict
	}
	if params.Seed != nil {
		options["seed"] = *params.Seed
	}
	return options
}

// hostIdentifier returns a string identifier for a given host, preferring the name over the URL.
func hostIdentifier(host appconfig.Host) string {
	name := strings.TrimSpace(host.Name)
	if name != "" {
		return name
	}
	if url := strings.TrimSpace(host.URL); url != "" {
		return url
	}
	return "ollama-host"
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

// session is a capability session bound to one model on one Ollama host.
type session struct {
	provider  *Provider
	req       providers.Request
	history   *prompts.Conversation
	destroyed atomic.Bool
}

func (s *session) options(opts capability.InvokeOptions) map[string]any {
	return buildOptions(prompts.Sampling(s.req.Target.Host.Parameters, s.req.Config, opts))
}

func (s *session) Invoke(ctx context.Context, input string, opts capability.InvokeOptions) (string, error) {
	if s.destroyed.Load() {
		return "", providers.ErrSessionDestroyed
	}
	msgs := s.history.Messages(s.req.Capability, s.req.Config, input, opts)
	out, err := s.provider.chat(ctx, s.req, msgs, s.options(opts), false, nil)
	s.remember(ctx, msgs, out, err)
	return out, err
}

func (s *session) InvokeStreaming(ctx context.Context, input string, opts capability.InvokeOptions, onChunk func(string) error) error {
	if s.destroyed.Load() {
		return providers.ErrSessionDestroyed
	}
	if onChunk == nil {
		onChunk = func(string) error { return nil }
	}
	msgs := s.history.Messages(s.req.Capability, s.req.Config, input, opts)
	out, err := s.provider.chat(ctx, s.req, msgs, s.options(opts), false, onChunk)
	s.remember(ctx, msgs, out, err)
	return err
}

// remember records a completed exchange. Failed, cancelled and late invocations leave
// the history untouched.
func (s *session) remember(ctx context.Context, msgs []providers.ChatMessage, reply string, err error) {
	if err != nil || ctx.Err() != nil || s.destroyed.Load() {
		return
	}
	s.history.Record(msgs[len(msgs)-1], reply)
}

func (s *session) ChunkMode() capability.ChunkMode {
	return capability.Incremental
}

func (s *session) CountTokens(ctx context.Context, input string) (int, error) {
	if s.destroyed.Load() {
		return 0, providers.ErrSessionDestroyed
	}
	return s.provider.countTokens(ctx, s.req, input)
}

func (s *session) Detect(ctx context.Context, input string) ([]capability.Detection, error) {
	if s.destroyed.Load() {
		return nil, providers.ErrSessionDestroyed
	}
	temp := 0.0
	options := buildOptions(prompts.Sampling(s.req.Target.Host.Parameters, s.req.Config, capability.InvokeOptions{Temperature: &temp}))
	raw, err := s.provider.chat(ctx, s.req, prompts.DetectionMessages(input, s.req.Config.ExpectedInputLanguages), options, true, nil)
	if err != nil {
		return nil, err
	}
	return prompts.ParseDetections(raw)
}

func (s *session) Destroy() error {
	s.destroyed.Store(true)
	s.history.Reset()
	return nil
}
