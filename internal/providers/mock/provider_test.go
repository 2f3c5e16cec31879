// internal/providers/mock/provider_test.go
package mock

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/providers"
)

func TestDownloadableBecomesAvailable(t *testing.T) {
	p := New(Options{Availability: map[capability.Name]capability.Availability{capability.Summarizer: capability.Downloadable}})
	req := providers.Request{Capability: capability.Summarizer, Config: capability.Defaults(capability.Summarizer)}
	ctx := context.Background()

	if got, _ := p.Availability(ctx, req); got != capability.Downloadable {
		t.Fatalf("expected downloadable, got %s", got)
	}
	var steps []float64
	sess, err := p.Create(ctx, req, func(f float64) { steps = append(steps, f) })
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if len(steps) != len(DefaultProgress) || steps[len(steps)-1] != 1 {
		t.Fatalf("unexpected progress %v", steps)
	}
	if got, _ := p.Availability(ctx, req); got != capability.Available {
		t.Fatalf("expected available after download, got %s", got)
	}
	_ = sess.Destroy()
	_ = sess.Destroy()
	if p.Created() != 1 || p.Destroyed() != 1 {
		t.Fatalf("created=%d destroyed=%d", p.Created(), p.Destroyed())
	}
}

func TestUnavailableCreateFails(t *testing.T) {
	p := New(Options{})
	req := providers.Request{Capability: capability.Translator, Config: capability.Config{SourceLanguage: "en", TargetLanguage: "en"}}
	if _, err := p.Create(context.Background(), req, nil); err == nil {
		t.Fatalf("expected error for identical pair")
	}
}

func TestStreamingIsCumulative(t *testing.T) {
	p := New(Options{Reply: "one two three"})
	sess, err := p.Create(context.Background(), providers.Request{Capability: capability.Writer}, nil)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	var chunks []string
	err = sess.InvokeStreaming(context.Background(), "x", capability.InvokeOptions{}, func(c string) error {
		chunks = append(chunks, c)
		return nil
	})
	if err != nil {
		t.Fatalf("InvokeStreaming error: %v", err)
	}
	want := []string{"one ", "one two ", "one two three"}
	if strings.Join(chunks, "|") != strings.Join(want, "|") {
		t.Fatalf("expected %q, got %q", want, chunks)
	}
	if sess.ChunkMode() != capability.Cumulative {
		t.Fatalf("expected cumulative chunk mode")
	}
}

func TestInvokeErrAfterChunks(t *testing.T) {
	boom := errors.New("boom")
	p := New(Options{Reply: "a b c", InvokeErr: boom, FailAfter: 2})
	sess, _ := p.Create(context.Background(), providers.Request{Capability: capability.Rewriter}, nil)
	var n int
	err := sess.InvokeStreaming(context.Background(), "x", capability.InvokeOptions{}, func(string) error {
		n++
		return nil
	})
	if !errors.Is(err, boom) || n != 2 {
		t.Fatalf("expected boom after 2 chunks, got %v after %d", err, n)
	}
}

func TestRespond(t *testing.T) {
	cfg := capability.Defaults(capability.Summarizer)
	got := Respond(capability.Summarizer, cfg, "First point. Second point. Third point.", capability.InvokeOptions{})
	if got != "- First point.\n- Second point." {
		t.Fatalf("unexpected summary %q", got)
	}
	tr := Respond(capability.Translator, capability.Config{SourceLanguage: "en", TargetLanguage: "fr"}, " hi ", capability.InvokeOptions{})
	if tr != "[fr] hi" {
		t.Fatalf("unexpected translation %q", tr)
	}
}

func TestDetect(t *testing.T) {
	cases := map[string]string{
		"Bonjour, je suis le chat": "fr",
		"The cat and the dog":      "en",
		"Привет мир":               "ru",
		"こんにちは":                    "ja",
		"안녕하세요":                    "ko",
	}
	for input, want := range cases {
		got := Detect(input)
		if len(got) == 0 || got[0].Language != want {
			t.Fatalf("Detect(%q) = %+v, want %s first", input, got, want)
		}
	}
	if Detect("   ") != nil {
		t.Fatalf("expected no detections for blank input")
	}
}

func TestCountTokens(t *testing.T) {
	if got := CountTokens("hi extraordinary"); got != 1+1+3 {
		t.Fatalf("unexpected count %d", got)
	}
}

func TestLanguageModelRemembersCompletedTurns(t *testing.T) {
	p := New(Options{})
	ctx := context.Background()
	sess, err := p.Create(ctx, providers.Request{Capability: capability.LanguageModel}, nil)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if out, _ := sess.Invoke(ctx, "hi", capability.InvokeOptions{}); out != "You said: hi" {
		t.Fatalf("unexpected first reply %q", out)
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_ = sess.InvokeStreaming(cancelled, "lost", capability.InvokeOptions{}, nil)

	var last string
	err = sess.InvokeStreaming(ctx, "again", capability.InvokeOptions{}, func(c string) error {
		last = c
		return nil
	})
	if err != nil {
		t.Fatalf("InvokeStreaming error: %v", err)
	}
	if last != "You said: again (1 earlier turns)" {
		t.Fatalf("expected cancelled turn skipped, got %q", last)
	}
	_ = sess.Destroy()
	if n := sess.(*session).Turns(); n != 0 {
		t.Fatalf("expected history dropped on destroy, got %d", n)
	}
}
