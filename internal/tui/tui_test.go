// internal/tui/tui_test.go
package tui

import (
	"context"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mwiater/aiplay/internal/appconfig"
	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/providers/mock"
	"github.com/mwiater/aiplay/internal/session"
)

type harness struct {
	t        *testing.T
	m        *Model
	provider *mock.Provider
	mu       sync.Mutex
	queued   []tea.Msg
}

func newHarness(t *testing.T, opts mock.Options) *harness {
	t.Helper()
	cfg := &appconfig.Config{
		Hosts:      []appconfig.Host{{Name: "local", Type: "mock", Models: []string{"demo"}}},
		DebounceMs: 60000,
	}
	h := &harness{t: t, provider: mock.New(opts)}
	h.m = New(context.Background(), cfg, h.provider, session.BinderFromConfig(cfg))
	h.m.SetSender(func(msg tea.Msg) {
		h.mu.Lock()
		h.queued = append(h.queued, msg)
		h.mu.Unlock()
	})
	t.Cleanup(h.m.Close)
	h.m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return h
}

// run executes a command synchronously and feeds every produced message back into the model.
func (h *harness) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		for _, c := range batch {
			h.run(c)
		}
		return
	}
	h.flush()
	if msg != nil {
		h.m.Update(msg)
	}
}

func (h *harness) flush() {
	h.mu.Lock()
	msgs := h.queued
	h.queued = nil
	h.mu.Unlock()
	for _, msg := range msgs {
		h.m.Update(msg)
	}
}

func (h *harness) key(k tea.KeyMsg) {
	_, cmd := h.m.Update(k)
	h.run(cmd)
}

func (h *harness) openPage(index int) {
	h.m.menu.Select(index)
	h.key(tea.KeyMsg{Type: tea.KeyEnter})
	if h.m.state != viewPage {
		h.t.Fatalf("expected page view, got state %d", h.m.state)
	}
}

func (h *harness) typeText(s string) {
	_, _ = h.m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func TestTranslatePageRuns(t *testing.T) {
	h := newHarness(t, mock.Options{})
	h.openPage(0)
	if h.m.page.snap.State != session.StateReady {
		t.Fatalf("expected ready after mount, got %s", h.m.page.snap.State)
	}

	h.typeText("Hello")
	h.key(tea.KeyMsg{Type: tea.KeyEnter})

	view := h.m.View()
	if !strings.Contains(view, "[zh] Hello") {
		t.Fatalf("expected translation in view, got:\n%s", view)
	}
	if !strings.Contains(view, "Translation") {
		t.Fatalf("expected page title in view")
	}
}

func TestUnavailablePageShowsRemediation(t *testing.T) {
	h := newHarness(t, mock.Options{Availability: map[capability.Name]capability.Availability{
		capability.Writer: capability.Unavailable,
	}})
	h.openPage(4)

	view := h.m.View()
	if !strings.Contains(view, "not available") {
		t.Fatalf("expected remediation panel, got:\n%s", view)
	}

	h.typeText("anything")
	h.key(tea.KeyMsg{Type: tea.KeyEnter})
	if h.provider.Created() != 0 {
		t.Fatalf("expected no session for an unavailable capability")
	}
}

func TestBackDisposesSessions(t *testing.T) {
	h := newHarness(t, mock.Options{})
	h.openPage(0)
	h.typeText("Hello")
	h.key(tea.KeyMsg{Type: tea.KeyEnter})
	if h.provider.Created() != 1 {
		t.Fatalf("expected one session, got %d", h.provider.Created())
	}

	h.key(tea.KeyMsg{Type: tea.KeyEsc})
	if h.m.state != viewMenu || h.m.page != nil {
		t.Fatalf("expected menu after esc")
	}
	if h.provider.Destroyed() != h.provider.Created() {
		t.Fatalf("created=%d destroyed=%d", h.provider.Created(), h.provider.Destroyed())
	}
}

func TestMenuShowsProbedAvailability(t *testing.T) {
	h := newHarness(t, mock.Options{Availability: map[capability.Name]capability.Availability{
		capability.Summarizer: capability.Downloadable,
	}})
	h.run(h.m.probeCmd(capability.Summarizer))

	for _, it := range h.m.menu.Items() {
		entry := it.(item)
		if entry.name == capability.Summarizer && entry.Description() != "Status: downloadable" {
			t.Fatalf("unexpected description %q", entry.Description())
		}
	}
}

func TestOptionSlotCyclesConfig(t *testing.T) {
	h := newHarness(t, mock.Options{})
	h.openPage(2)
	before := h.m.page.feature.Config().Type

	h.key(tea.KeyMsg{Type: tea.KeyCtrlT})
	after := h.m.page.feature.Config().Type
	if after == before || after != cycle(capability.SummarizerTypes, before) {
		t.Fatalf("expected type to cycle from %q, got %q", before, after)
	}
}

func TestStaleSnapshotsAreDropped(t *testing.T) {
	h := newHarness(t, mock.Options{})
	h.openPage(0)
	seq := h.m.page.snap.Seq

	h.m.Update(snapshotMsg{page: h.m.page.id, snap: session.Snapshot{Seq: seq - 1, Output: "stale"}})
	h.m.Update(snapshotMsg{page: h.m.page.id + 1, snap: session.Snapshot{Seq: seq + 10, Output: "other page"}})
	if h.m.page.snap.Output != "" {
		t.Fatalf("expected stale snapshots to be ignored, got %q", h.m.page.snap.Output)
	}
}

func TestGuideView(t *testing.T) {
	h := newHarness(t, mock.Options{})
	h.m.menu.Select(len(capability.All()))
	h.key(tea.KeyMsg{Type: tea.KeyEnter})
	if h.m.state != viewGuide || !strings.Contains(h.m.View(), "Setup guide") {
		t.Fatalf("expected guide view")
	}
	h.key(tea.KeyMsg{Type: tea.KeyEsc})
	if h.m.state != viewMenu {
		t.Fatalf("expected menu after esc")
	}
}

func TestCycle(t *testing.T) {
	values := []string{"a", "b", "c"}
	if cycle(values, "c") != "a" || cycle(values, "a") != "b" || cycle(values, "zz") != "a" {
		t.Fatalf("unexpected cycle behaviour")
	}
}

func TestSharedContextReachesProvider(t *testing.T) {
	h := newHarness(t, mock.Options{})
	h.openPage(4)

	h.key(tea.KeyMsg{Type: tea.KeyTab})
	h.key(tea.KeyMsg{Type: tea.KeyTab})
	if h.m.page.focus != fieldSetting {
		t.Fatalf("expected shared context field focused, got %d", h.m.page.focus)
	}
	h.typeText("Audience: kids")
	h.key(tea.KeyMsg{Type: tea.KeyTab})
	if got := h.m.page.feature.Config().SharedContext; got != "Audience: kids" {
		t.Fatalf("expected shared context applied on leaving the field, got %q", got)
	}

	h.typeText("a story")
	h.key(tea.KeyMsg{Type: tea.KeyEnter})
	if got := h.provider.LastRequest().Config.SharedContext; got != "Audience: kids" {
		t.Fatalf("expected provider to see shared context, got %q", got)
	}
	if !strings.Contains(h.m.View(), "Shared context:") {
		t.Fatalf("expected shared context field in view")
	}
}

func TestSystemPromptAppliedOnSubmit(t *testing.T) {
	h := newHarness(t, mock.Options{})
	h.openPage(3)
	if h.provider.Created() != 1 {
		t.Fatalf("expected eager session, got %d", h.provider.Created())
	}

	h.typeText("hello")
	h.key(tea.KeyMsg{Type: tea.KeyTab})
	h.typeText("Answer in French.")
	h.key(tea.KeyMsg{Type: tea.KeyEnter})

	if got := h.provider.LastRequest().Config.SystemPrompt; got != "Answer in French." {
		t.Fatalf("expected provider to see the edited system prompt, got %q", got)
	}
	if h.provider.Created() != 2 || h.provider.Destroyed() != 1 {
		t.Fatalf("expected the session to be recreated, created=%d destroyed=%d", h.provider.Created(), h.provider.Destroyed())
	}
	if !strings.Contains(h.m.page.snap.Output, "You said: hello") {
		t.Fatalf("expected prompt answer, got %q", h.m.page.snap.Output)
	}
}
