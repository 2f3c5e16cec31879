// internal/providers/llamacpp/provider.go
// Package llamacpp provides a capability Provider backed by a llama.cpp server running
// in router mode with its OpenAI-compatible endpoints.
package llamacpp

import (
	"bufio"
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

// Provider implements the providers.Provider interface for llama.cpp servers.
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

func (p *Provider) modelHost(target providers.Target) (*models.LlamaCppHost, error) {
	host := target.Host
	host.Type = "llama.cpp"
	mh, err := models.NewHost(host, p.client, p.timeout)
	if err != nil {
		return nil, err
	}
	lh, ok := mh.(*models.LlamaCppHost)
	if !ok {
		return nil, fmt.Errorf("llama.cpp: unexpected host implementation %T", mh)
	}
	return lh, nil
}

// Availability reports available for a loaded model, downloadable for a model the router
// lists but has not loaded, and unavailable otherwise.
func (p *Provider) Availability(ctx context.Context, req providers.Request) (capability.Availability, error) {
	if req.Capability == capability.Translator && !capability.SupportsPair(req.Config.SourceLanguage, req.Config.TargetLanguage) {
		return capability.Unavailable, nil
	}
	if strings.TrimSpace(req.Target.Model) == "" {
		return capability.Unavailable, fmt.Errorf("llama.cpp: no model configured for %s on %s", req.Capability, hostIdentifier(req.Target.Host))
	}
	lh, err := p.modelHost(req.Target)
	if err != nil {
		return capability.Unavailable, err
	}
	status, err := lh.ModelStatus(ctx, req.Target.Model)
	if err != nil {
		return capability.Unavailable, err
	}
	switch status {
	case "loaded":
		return capability.Available, nil
	case "":
		return capability.Unavailable, nil
	default:
		return capability.Downloadable, nil
	}
}

// Create loads the model through the router and waits until it is ready.
func (p *Provider) Create(ctx context.Context, req providers.Request, progress providers.ProgressFunc) (providers.Session, error) {
	lh, err := p.modelHost(req.Target)
	if err != nil {
		return nil, err
	}
	err = lh.PullModel(ctx, req.Target.Model, func(pp models.PullProgress) {
		if f := pp.Fraction(); f >= 0 && progress != nil {
			progress(f)
		}
	})
	if err != nil {
		return nil, err
	}
	return &session{provider: p, req: req, history: prompts.NewConversation(req.Capability)}, nil
}

// Close releases any resources held by the provider.
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatStreamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chat posts to /v1/chat/completions. With onChunk set the answer is consumed as
// server-sent events and every delta is forwarded in order.
func (p *Provider) chat(ctx context.Context, req providers.Request, messages []providers.ChatMessage, params appconfig.Parameters, jsonMode bool, onChunk func(string) error) (string, error) {
	stream := onChunk != nil
	payload := map[string]any{
		"model":    req.Target.Model,
		"messages": toOpenAIMessages(sanitizeMessages(messages)),
		"stream":   stream,
	}
	applyParameters(payload, params)
	if jsonMode {
		payload["response_format"] = map[string]any{"type": "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	hostID := hostIdentifier(req.Target.Host)
	logging.LogRequest("AIPLAY->HOST", hostID, req.Target.Model, string(req.Capability), body)

	var (
		streamCtx context.Context
		cancel    context.CancelFunc
		idle      *providers.IdleTimer
	)
	if stream {
		streamCtx, idle = providers.WithIdleTimeout(ctx, p.timeout)
		cancel = idle.Stop
	} else {
		streamCtx, cancel = context.WithTimeout(ctx, p.timeout)
	}
	defer cancel()

	endpoint := req.Target.Host.URL + "/v1/chat/completions"
	httpReq, err := http.NewRequestWithContext(streamCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if stream {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", idle.Err(streamCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		logging.LogRequest("HOST->AIPLAY", hostID, req.Target.Model, string(req.Capability), raw)
		return "", fmt.Errorf("llama.cpp: /v1/chat/completions returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	if !stream {
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", err
		}
		logging.LogRequest("HOST->AIPLAY", hostID, req.Target.Model, string(req.Capability), raw)
		var parsed chatResponse
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return "", err
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("llama.cpp: chat response contained no choices")
		}
		return parsed.Choices[0].Message.Content, nil
	}

	var full strings.Builder
	reader := bufio.NewReader(resp.Body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return full.String(), idle.Err(streamCtx, err)
		}
		idle.Touch()
		eof := errors.Is(err, io.EOF)
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "data:") {
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				break
			}
			var chunk chatStreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				return full.String(), err
			}
			if len(chunk.Choices) > 0 {
				choice := chunk.Choices[0]
				content := choice.Delta.Content
				if content == "" {
					content = choice.Message.Content
				}
				if content != "" {
					full.WriteString(content)
					if err := onChunk(content); err != nil {
						return full.String(), err
					}
				}
			}
		}
		if eof {
			break
		}
	}
	if p.debug {
		logging.LogRequest("HOST->AIPLAY", hostID, req.Target.Model, string(req.Capability), full.String())
	}
	return full.String(), nil
}

// countTokens uses the server's /tokenize endpoint.
func (p *Provider) countTokens(ctx context.Context, req providers.Request, input string) (int, error) {
	body, err := json.Marshal(map[string]any{"content": input, "model": req.Target.Model})
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.Target.Host.URL+"/tokenize", bytes.NewReader(body))
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
	if resp.StatusCode == http.StatusNotFound {
		return 0, providers.ErrUnsupported
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("llama.cpp: /tokenize returned %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	var parsed struct {
		Tokens []json.RawMessage `json:"tokens"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return 0, err
	}
	return len(parsed.Tokens), nil
}

func applyParameters(payload map[string]any, params appconfig.Parameters) {
	if params.TopK != nil {
		payload["top_k"] = *params.TopK
	}
	if params.TopP != nil {
		payload["top_p"] = *params.TopP
	}
	if params.MinP != nil {
		payload["min_p"] = *params.MinP
	}
	if params.Temperature != nil {
		payload["temperature"] = *params.Temperature
	}
	if params.RepeatPenalty != nil {
		payload["repeat_penalty"] = *params.RepeatPenalty
	}
	if params.NumPredict != nil {
		payload["n_predict"] = *params.NumPredict
	}
	if params.Seed != nil {
		payload["seed"] = *params.Seed
	}
}

func sanitizeMessages(messages []providers.ChatMessage) []providers.ChatMessage {
	if len(messages) == 0 {
		return messages
	}
	sanitized := make([]providers.ChatMessage, 0, len(messages))
	for _, msg := range messages {
		role := strings.TrimSpace(msg.Role)
		content := strings.TrimSpace(msg.Content)
		if role == "" {
			role = "user"
		}
		if role != "assistant" && content == "" {
			continue
		}
		sanitized = append(sanitized, providers.ChatMessage{Role: role, Content: content})
	}
	if len(sanitized) == 0 {
		return []providers.ChatMessage{}
	}
	return sanitized
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func toOpenAIMessages(messages []providers.ChatMessage) []openAIMessage {
	out := make([]openAIMessage, 0, len(messages))
	for _, msg := range messages {
		out = append(out, openAIMessage{Role: msg.Role, Content: msg.Content})
	}
	return out
}

func hostIdentifier(host appconfig.Host) string {
	name := strings.TrimSpace(host.Name)
	if name != "" {
		return name
	}
	if url := strings.TrimSpace(host.URL); url != "" {
		return url
	}
	return "llama.cpp-host"
}

// session is a capability session bound to one model on one llama.cpp router.
type session struct {
	provider  *Provider
	req       providers.Request
	history   *prompts.Conversation
	destroyed atomic.Bool
}

func (s *session) params(opts capability.InvokeOptions) appconfig.Parameters {
	return prompts.Sampling(s.req.Target.Host.Parameters, s.req.Config, opts)
}

func (s *session) Invoke(ctx context.Context, input string, opts capability.InvokeOptions) (string, error) {
	if s.destroyed.Load() {
		return "", providers.ErrSessionDestroyed
	}
	msgs := s.history.Messages(s.req.Capability, s.req.Config, input, opts)
	out, err := s.provider.chat(ctx, s.req, msgs, s.params(opts), false, nil)
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
	out, err := s.provider.chat(ctx, s.req, msgs, s.params(opts), false, onChunk)
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
	params := s.params(capability.InvokeOptions{Temperature: &temp})
	raw, err := s.provider.chat(ctx, s.req, prompts.DetectionMessages(input, s.req.Config.ExpectedInputLanguages), params, true, nil)
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
