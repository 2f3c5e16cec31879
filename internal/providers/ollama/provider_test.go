// internal/providers/ollama/provider_test.go
package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mwiater/aiplay/internal/appconfig"
	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/providers"
)

// fakeOllama is a minimal Ollama server. Models listed in tags are present; pulls
// succeed and add the model to tags.
type fakeOllama struct {
	mu        sync.Mutex
	tags      []string
	chatReply string
	chunks    []string
	bodies    map[string][]map[string]any
	chatCode  int
}

func (f *fakeOllama) record(path string, r *http.Request) map[string]any {
	raw, _ := io.ReadAll(r.Body)
	var payload map[string]any
	_ = json.Unmarshal(raw, &payload)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bodies == nil {
		f.bodies = map[string][]map[string]any{}
	}
	f.bodies[path] = append(f.bodies[path], payload)
	return payload
}

func (f *fakeOllama) requests(path string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.bodies[path]...)
}

func (f *fakeOllama) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/tags":
		f.mu.Lock()
		var entries []string
		for _, t := range f.tags {
			entries = append(entries, fmt.Sprintf(`{"name":%q}`, t))
		}
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"models":[` + strings.Join(entries, ",") + `]}`))
	case "/api/pull":
		payload := f.record(r.URL.Path, r)
		fmt.Fprintln(w, `{"status":"pulling manifest"}`)
		fmt.Fprintln(w, `{"status":"downloading","completed":40,"total":100}`)
		fmt.Fprintln(w, `{"status":"downloading","completed":30,"total":100}`)
		fmt.Fprintln(w, `{"status":"success"}`)
		f.mu.Lock()
		f.tags = append(f.tags, fmt.Sprint(payload["name"]))
		f.mu.Unlock()
	case "/api/generate":
		payload := f.record(r.URL.Path, r)
		if _, ok := payload["prompt"]; ok {
			_, _ = w.Write([]byte(`{"model":"m","response":"","done":true,"prompt_eval_count":7}`))
			return
		}
		_, _ = w.Write([]byte(`{"model":"m","done":true}`))
	case "/api/chat":
		payload := f.record(r.URL.Path, r)
		f.mu.Lock()
		code := f.chatCode
		f.mu.Unlock()
		if code != 0 {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"error":"boom"}`))
			return
		}
		if stream, _ := payload["stream"].(bool); stream {
			for _, c := range f.chunks {
				fmt.Fprintf(w, `{"message":{"role":"assistant","content":%q},"done":false}`+"\n", c)
			}
			fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true,"eval_count":3}`)
			return
		}
		_, _ = w.Write([]byte(fmt.Sprintf(`{"message":{"role":"assistant","content":%q},"done":true}`, f.chatReply)))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestProvider(t *testing.T, fake *fakeOllama) (*Provider, providers.Target) {
	t.Helper()
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	provider := New(&appconfig.Config{TimeoutSeconds: 5})
	t.Cleanup(func() { _ = provider.Close() })
	return provider, providers.Target{Host: appconfig.Host{Name: "test", URL: server.URL, Type: "ollama"}, Model: "llama3.2:3b"}
}

func TestAvailability(t *testing.T) {
	fake := &fakeOllama{tags: []string{"llama3.2:3b"}}
	provider, target := newTestProvider(t, fake)
	ctx := context.Background()

	got, err := provider.Availability(ctx, providers.Request{Capability: capability.Summarizer, Target: target})
	if err != nil || got != capability.Available {
		t.Fatalf("expected available, got %s %v", got, err)
	}

	missing := target
	missing.Model = "qwen3:0.6b"
	got, err = provider.Availability(ctx, providers.Request{Capability: capability.Summarizer, Target: missing})
	if err != nil || got != capability.Downloadable {
		t.Fatalf("expected downloadable, got %s %v", got, err)
	}

	got, _ = provider.Availability(ctx, providers.Request{
		Capability: capability.Translator,
		Target:     target,
		Config:     capability.Config{SourceLanguage: "en", TargetLanguage: "en"},
	})
	if got != capability.Unavailable {
		t.Fatalf("expected identical language pair to be unavailable, got %s", got)
	}

	down := target
	down.Host.URL = "http://127.0.0.1:1"
	got, err = provider.Availability(ctx, providers.Request{Capability: capability.Summarizer, Target: down})
	if err == nil || got != capability.Unavailable {
		t.Fatalf("expected unreachable host to be unavailable with error, got %s %v", got, err)
	}
}

func TestCreatePullsMissingModel(t *testing.T) {
	fake := &fakeOllama{}
	provider, target := newTestProvider(t, fake)

	var progress []float64
	sess, err := provider.Create(context.Background(), providers.Request{Capability: capability.Writer, Target: target}, func(f float64) {
		progress = append(progress, f)
	})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	defer sess.Destroy()

	want := []float64{0.4, 0.3, 1}
	if fmt.Sprint(progress) != fmt.Sprint(want) {
		t.Fatalf("expected raw progress %v, got %v", want, progress)
	}
	if len(fake.requests("/api/pull")) != 1 {
		t.Fatalf("expected one pull request")
	}
	if len(fake.requests("/api/generate")) != 1 {
		t.Fatalf("expected warm-up request")
	}
}

func TestSessionInvokeAndStream(t *testing.T) {
	fake := &fakeOllama{tags: []string{"llama3.2:3b"}, chatReply: "Bonjour", chunks: []string{"Bon", "jour", " le monde"}}
	provider, target := newTestProvider(t, fake)
	ctx := context.Background()

	temp := 0.3
	req := providers.Request{
		Capability: capability.Translator,
		Target:     target,
		Config:     capability.Config{SourceLanguage: "en", TargetLanguage: "fr", Temperature: &temp},
	}
	sess, err := provider.Create(ctx, req, nil)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	out, err := sess.Invoke(ctx, "Hello", capability.InvokeOptions{})
	if err != nil || out != "Bonjour" {
		t.Fatalf("Invoke = %q, %v", out, err)
	}

	var chunks []string
	err = sess.InvokeStreaming(ctx, "Hello world", capability.InvokeOptions{}, func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("InvokeStreaming error: %v", err)
	}
	if strings.Join(chunks, "|") != "Bon|jour| le monde" {
		t.Fatalf("unexpected chunks: %v", chunks)
	}
	if sess.ChunkMode() != capability.Incremental {
		t.Fatalf("expected incremental chunks")
	}

	chats := fake.requests("/api/chat")
	if len(chats) != 2 {
		t.Fatalf("expected 2 chat requests, got %d", len(chats))
	}
	opts, _ := chats[0]["options"].(map[string]any)
	if opts["temperature"] != 0.3 {
		t.Fatalf("expected temperature option, got %v", chats[0]["options"])
	}
	msgs, _ := chats[0]["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system and user message, got %v", msgs)
	}

	_ = sess.Destroy()
	if _, err := sess.Invoke(ctx, "Hello", capability.InvokeOptions{}); !errors.Is(err, providers.ErrSessionDestroyed) {
		t.Fatalf("expected ErrSessionDestroyed, got %v", err)
	}
}

func TestStreamAbortedByCallback(t *testing.T) {
	fake := &fakeOllama{tags: []string{"llama3.2:3b"}, chunks: []string{"a", "b", "c"}}
	provider, target := newTestProvider(t, fake)
	sess, err := provider.Create(context.Background(), providers.Request{Capability: capability.LanguageModel, Target: target}, nil)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	stop := errors.New("stop")
	var seen int
	err = sess.InvokeStreaming(context.Background(), "hi", capability.InvokeOptions{}, func(string) error {
		seen++
		return stop
	})
	if !errors.Is(err, stop) || seen != 1 {
		t.Fatalf("expected stream to stop after first chunk, got %v after %d", err, seen)
	}
}

func TestChatErrorStatus(t *testing.T) {
	fake := &fakeOllama{tags: []string{"llama3.2:3b"}, chatCode: http.StatusInternalServerError}
	provider, target := newTestProvider(t, fake)
	sess, err := provider.Create(context.Background(), providers.Request{Capability: capability.Rewriter, Target: target}, nil)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if _, err := sess.Invoke(context.Background(), "x", capability.InvokeOptions{}); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected host error, got %v", err)
	}
}

func TestCountTokensAndDetect(t *testing.T) {
	fake := &fakeOllama{
		tags:      []string{"llama3.2:3b"},
		chatReply: `{"results":[{"language":"fr","confidence":0.9},{"language":"en","confidence":0.05}]}`,
	}
	provider, target := newTestProvider(t, fake)
	ctx := context.Background()
	sess, err := provider.Create(ctx, providers.Request{Capability: capability.LanguageDetector, Target: target}, nil)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	counter, ok := sess.(providers.TokenCounter)
	if !ok {
		t.Fatalf("expected session to count tokens")
	}
	n, err := counter.CountTokens(ctx, "bonjour tout le monde")
	if err != nil || n != 7 {
		t.Fatalf("CountTokens = %d, %v", n, err)
	}

	detector, ok := sess.(providers.Detector)
	if !ok {
		t.Fatalf("expected session to detect languages")
	}
	got, err := detector.Detect(ctx, "bonjour")
	if err != nil {
		t.Fatalf("Detect error: %v", err)
	}
	if len(got) != 2 || got[0].Language != "fr" {
		t.Fatalf("unexpected detections: %+v", got)
	}
	chats := fake.requests("/api/chat")
	if chats[len(chats)-1]["format"] != "json" {
		t.Fatalf("expected json format for detection")
	}
}

func TestLanguageModelSessionKeepsTurns(t *testing.T) {
	fake := &fakeOllama{tags: []string{"llama3.2:3b"}, chatReply: "Nice to meet you, Ada.", chunks: []string{"Your name ", "is Ada."}}
	provider, target := newTestProvider(t, fake)
	ctx := context.Background()
	sess, err := provider.Create(ctx, providers.Request{
		Capability: capability.LanguageModel,
		Target:     target,
		Config:     capability.Config{SystemPrompt: "Be brief."},
	}, nil)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if _, err := sess.Invoke(ctx, "My name is Ada.", capability.InvokeOptions{}); err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	if err := sess.InvokeStreaming(ctx, "What is my name?", capability.InvokeOptions{}, nil); err != nil {
		t.Fatalf("InvokeStreaming error: %v", err)
	}

	chats := fake.requests("/api/chat")
	msgs, _ := chats[1]["messages"].([]any)
	want := []string{
		"system:Be brief.",
		"user:My name is Ada.",
		"assistant:Nice to meet you, Ada.",
		"user:What is my name?",
	}
	if len(msgs) != len(want) {
		t.Fatalf("expected %d messages with earlier turns, got %v", len(want), msgs)
	}
	for i, m := range msgs {
		entry, _ := m.(map[string]any)
		if got := fmt.Sprintf("%v:%v", entry["role"], entry["content"]); got != want[i] {
			t.Fatalf("message %d = %q, want %q", i, got, want[i])
		}
	}

	fake.mu.Lock()
	fake.chatCode = http.StatusInternalServerError
	fake.mu.Unlock()
	if _, err := sess.Invoke(ctx, "This one fails.", capability.InvokeOptions{}); err == nil {
		t.Fatalf("expected host error")
	}
	fake.mu.Lock()
	fake.chatCode = 0
	fake.mu.Unlock()

	if _, err := sess.Invoke(ctx, "And again?", capability.InvokeOptions{}); err != nil {
		t.Fatalf("Invoke error: %v", err)
	}
	chats = fake.requests("/api/chat")
	last, _ := chats[len(chats)-1]["messages"].([]any)
	if len(last) != 6 {
		t.Fatalf("expected two recorded exchanges and no failed turn, got %v", last)
	}
}

func TestOtherCapabilitiesStayStateless(t *testing.T) {
	fake := &fakeOllama{tags: []string{"llama3.2:3b"}, chatReply: "ok"}
	provider, target := newTestProvider(t, fake)
	ctx := context.Background()
	sess, err := provider.Create(ctx, providers.Request{Capability: capability.Rewriter, Target: target, Config: capability.Defaults(capability.Rewriter)}, nil)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	for _, in := range []string{"first", "second"} {
		if _, err := sess.Invoke(ctx, in, capability.InvokeOptions{}); err != nil {
			t.Fatalf("Invoke error: %v", err)
		}
	}
	chats := fake.requests("/api/chat")
	msgs, _ := chats[1]["messages"].([]any)
	if len(msgs) != 2 {
		t.Fatalf("expected system and user message only, got %v", msgs)
	}
}

func slowChatServer(t *testing.T, gap time.Duration, chunks int, stallAfter int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher, _ := w.(http.Flusher)
		for i := 0; i < chunks; i++ {
			wait := gap
			if i == stallAfter {
				wait = 5 * time.Second
			}
			select {
			case <-r.Context().Done():
				return
			case <-time.After(wait):
			}
			fmt.Fprintf(w, `{"message":{"role":"assistant","content":"x"},"done":false}`+"\n")
			if flusher != nil {
				flusher.Flush()
			}
		}
		fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestStreamingOutlivesRequestTimeout(t *testing.T) {
	server := slowChatServer(t, 20*time.Millisecond, 15, -1)
	p := &Provider{client: &http.Client{}, timeout: 150 * time.Millisecond}
	req := providers.Request{Capability: capability.Writer, Target: providers.Target{Host: appconfig.Host{URL: server.URL}, Model: "m"}}

	var n int
	out, err := p.chat(context.Background(), req, nil, nil, false, func(string) error {
		n++
		return nil
	})
	if err != nil || n != 15 || out != strings.Repeat("x", 15) {
		t.Fatalf("expected full stream past the timeout, got %q (%d chunks) %v", out, n, err)
	}
}

func TestStalledStreamFails(t *testing.T) {
	server := slowChatServer(t, 10*time.Millisecond, 5, 2)
	p := &Provider{client: &http.Client{}, timeout: 100 * time.Millisecond}
	req := providers.Request{Capability: capability.Writer, Target: providers.Target{Host: appconfig.Host{URL: server.URL}, Model: "m"}}

	out, err := p.chat(context.Background(), req, nil, nil, false, func(string) error { return nil })
	if !errors.Is(err, providers.ErrStreamStalled) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected stalled stream error, got %v", err)
	}
	if out != "xx" {
		t.Fatalf("expected partial output kept, got %q", out)
	}
}
