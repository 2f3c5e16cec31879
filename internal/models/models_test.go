// internal/models/models_test.go
package models

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mwiater/aiplay/internal/appconfig"
)

func newOllamaServer(t *testing.T, tags string, pullLines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(tags))
		case "/api/ps":
			_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:3b"}]}`))
		case "/api/pull":
			w.Header().Set("Content-Type", "application/x-ndjson")
			for _, line := range pullLines {
				fmt.Fprintln(w, line)
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

// TestOllamaHost verifies listing, presence checks and NDJSON pull progress
// against a fake Ollama server.
func TestOllamaHost(t *testing.T) {
	server := newOllamaServer(t,
		`{"models":[{"name":"llama3.2:3b"},{"name":"gemma3:latest"}]}`,
		[]string{
			`{"status":"pulling manifest"}`,
			`{"status":"downloading","completed":50,"total":100}`,
			`{"status":"downloading","completed":100,"total":100}`,
			`{"status":"success"}`,
		})
	defer server.Close()

	host := &OllamaHost{Name: "Local", URL: server.URL, client: server.Client(), requestTimeout: time.Second}
	ctx := context.Background()

	raw, err := host.ListRawModels(ctx)
	if err != nil || len(raw) != 2 {
		t.Fatalf("ListRawModels() = %v, %v", raw, err)
	}

	ok, err := host.HasModel(ctx, "gemma3")
	if err != nil || !ok {
		t.Fatalf("expected bare name to match :latest tag, got %v %v", ok, err)
	}
	ok, _ = host.HasModel(ctx, "qwen3:0.6b")
	if ok {
		t.Fatalf("expected qwen3:0.6b to be missing")
	}

	listed, err := host.ListModels(ctx)
	if err != nil {
		t.Fatalf("ListModels() failed: %v", err)
	}
	if !strings.Contains(listed[0], "CURRENTLY LOADED") {
		t.Fatalf("expected loaded marker, got %q", listed[0])
	}

	var fractions []float64
	err = host.PullModel(ctx, "qwen3:0.6b", func(p PullProgress) {
		fractions = append(fractions, p.Fraction())
	})
	if err != nil {
		t.Fatalf("PullModel() failed: %v", err)
	}
	want := []float64{-1, 0.5, 1, -1}
	if len(fractions) != len(want) {
		t.Fatalf("expected %d events, got %v", len(want), fractions)
	}
	for i := range want {
		if fractions[i] != want[i] {
			t.Fatalf("event %d: expected %v, got %v", i, want[i], fractions[i])
		}
	}
}

func TestOllamaHostPullError(t *testing.T) {
	server := newOllamaServer(t, `{"models":[]}`, []string{`{"error":"pull model manifest: file does not exist"}`})
	defer server.Close()

	host := &OllamaHost{Name: "Local", URL: server.URL, client: server.Client(), requestTimeout: time.Second}
	err := host.PullModel(context.Background(), "missing", nil)
	if err == nil || !strings.Contains(err.Error(), "file does not exist") {
		t.Fatalf("expected pull error, got %v", err)
	}
}

func TestPullModels(t *testing.T) {
	server := newOllamaServer(t, `{"models":[]}`, []string{
		`{"status":"downloading","completed":10,"total":100}`,
		`{"status":"downloading","completed":100,"total":100}`,
		`{"status":"success"}`,
	})
	defer server.Close()

	cfg := &appconfig.Config{Hosts: []appconfig.Host{
		{Name: "Local", URL: server.URL, Type: "ollama", Models: []string{"llama3.2:3b"}},
		{Name: "Demo", Type: "mock"},
	}}
	var out bytes.Buffer
	if err := PullModels(context.Background(), cfg, &out); err != nil {
		t.Fatalf("PullModels error: %v", err)
	}
	got := out.String()
	for _, want := range []string{"not supported for Demo", "Pulling model: llama3.2:3b on Local", "100%", "All model pull commands have finished."} {
		if !strings.Contains(got, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, got)
		}
	}

	if err := PullModels(context.Background(), nil, &out); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestNormalizeType(t *testing.T) {
	cases := map[string]string{
		"llama.cpp": "llamacpp",
		" Ollama ":  "ollama",
		"":          "none",
		"MOCK":      "mock",
		"other":     "other",
	}
	for in, want := range cases {
		if got := NormalizeType(in); got != want {
			t.Fatalf("NormalizeType(%q) = %q, want %q", in, got, want)
		}
	}
}
