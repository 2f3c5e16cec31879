// internal/tui/page.go
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/logging"
	"github.com/mwiater/aiplay/internal/session"
	"github.com/mwiater/aiplay/internal/util"
)

// snapshotMsg carries a feature snapshot to the page that owns the feature.
type snapshotMsg struct {
	page     int
	detector bool
	snap     session.Snapshot
}

// runDoneMsg is sent when an invocation started by the page returns.
type runDoneMsg struct {
	page int
	res  session.Result
	err  error
}

// configuredMsg is sent when a config change has been applied.
type configuredMsg struct {
	page int
	cfg  capability.Config
	err  error
}

// field identifies the textarea that receives typing.
type field int

const (
	fieldInput field = iota
	fieldContext
	fieldSetting
)

// page is one capability screen.
type page struct {
	id       int
	name     capability.Name
	ctx      context.Context
	cancel   context.CancelFunc
	send     func(tea.Msg)
	feature  *session.Feature
	detector *session.Feature
	typing   *session.Debouncer[string]
	slots    []optionSlot

	input        textarea.Model
	extra        textarea.Model
	setting      textarea.Model
	hasContext   bool
	hasSetting   bool
	settingLabel string
	focus        field
	output       viewport.Model
	bar          progress.Model

	snap      session.Snapshot
	detect    session.Snapshot
	lastInput string
	notice    string
	width     int
}

func newPage(d deps, id int, name capability.Name) *page {
	ctx, cancel := context.WithCancel(d.ctx)
	p := &page{
		id:     id,
		name:   name,
		ctx:    ctx,
		cancel: cancel,
		send:   d.send,
		slots:  optionSlots(name),
		output: viewport.New(80, 10),
		bar:    progress.New(progress.WithDefaultGradient()),
	}

	mode := session.Batch
	if d.cfg.Stream {
		mode = session.Streaming
	}
	cfg := capability.Defaults(name)
	if name == capability.LanguageModel {
		if host, _, ok := d.cfg.BindingFor(string(name)); ok {
			cfg.SystemPrompt = host.SystemPrompt
		}
	}

	p.feature = session.NewFeature(session.ForCapability(name, session.Options{
		Provider: d.provider,
		Bind:     d.bind,
		Config:   cfg,
		Mode:     mode,
		Observer: func(s session.Snapshot) { p.send(snapshotMsg{page: id, snap: s}) },
	}))
	p.snap = p.feature.Snapshot()
	if name == capability.Translator {
		p.detector = session.NewFeature(session.ForCapability(capability.LanguageDetector, session.Options{
			Provider: d.provider,
			Bind:     d.bind,
			Observer: func(s session.Snapshot) { p.send(snapshotMsg{page: id, detector: true, snap: s}) },
		}))
	}
	switch name {
	case capability.Translator, capability.LanguageDetector, capability.LanguageModel:
		p.typing = session.NewDebouncer(d.cfg.DebounceWindow(), p.onQuiet)
	}

	p.input = textarea.New()
	p.input.Placeholder = placeholder(name)
	p.input.Prompt = "> "
	p.input.ShowLineNumbers = false
	p.input.CharLimit = -1
	p.input.SetHeight(3)
	p.input.KeyMap.InsertNewline.SetEnabled(false)
	p.input.Focus()

	p.hasContext = name == capability.Writer || name == capability.Rewriter
	p.extra = textarea.New()
	p.extra.Placeholder = "Context for this request (optional)"
	p.extra.Prompt = "? "
	p.extra.ShowLineNumbers = false
	p.extra.CharLimit = -1
	p.extra.SetHeight(1)
	p.extra.KeyMap.InsertNewline.SetEnabled(false)

	p.settingLabel, p.hasSetting = settingLabel(name)
	p.setting = textarea.New()
	p.setting.Placeholder = p.settingLabel + " (optional)"
	p.setting.Prompt = "# "
	p.setting.ShowLineNumbers = false
	p.setting.CharLimit = -1
	p.setting.SetHeight(1)
	p.setting.KeyMap.InsertNewline.SetEnabled(false)
	p.setting.SetValue(settingValue(name, cfg))
	return p
}

// fields lists the textareas of the page in tab order.
func (p *page) fields() []field {
	out := []field{fieldInput}
	if p.hasContext {
		out = append(out, fieldContext)
	}
	if p.hasSetting {
		out = append(out, fieldSetting)
	}
	return out
}

func (p *page) nextFocus() {
	order := p.fields()
	next := order[0]
	for i, f := range order {
		if f == p.focus {
			next = order[(i+1)%len(order)]
			break
		}
	}
	p.input.Blur()
	p.extra.Blur()
	p.setting.Blur()
	switch next {
	case fieldContext:
		p.extra.Focus()
	case fieldSetting:
		p.setting.Focus()
	default:
		p.input.Focus()
	}
	p.focus = next
}

// pendingSetting returns the config with the edited session option applied, and
// whether it differs from the config in use.
func (p *page) pendingSetting() (capability.Config, bool) {
	if !p.hasSetting {
		return capability.Config{}, false
	}
	cfg := p.feature.Config()
	value := strings.TrimSpace(p.setting.Value())
	if value == settingValue(p.name, cfg) {
		return cfg, false
	}
	return withSetting(p.name, cfg, value), true
}

func placeholder(name capability.Name) string {
	switch name {
	case capability.Translator:
		return "Enter text to translate..."
	case capability.LanguageDetector:
		return "Type text to detect its language..."
	case capability.Summarizer:
		return "Paste text to summarize..."
	case capability.LanguageModel:
		return "Send a prompt..."
	case capability.Writer:
		return "Describe what to write..."
	case capability.Rewriter:
		return "Paste text to rewrite..."
	}
	return ""
}

// mountCmd probes the capability of the page.
func (p *page) mountCmd() tea.Cmd {
	return func() tea.Msg {
		if p.detector != nil {
			p.detector.Mount(p.ctx)
		}
		p.feature.Mount(p.ctx)
		return nil
	}
}

// closeCmd cancels pending work and disposes every session of the page.
func (p *page) closeCmd() tea.Cmd {
	if p.typing != nil {
		p.typing.Stop()
	}
	return func() tea.Msg {
		p.close()
		return nil
	}
}

func (p *page) close() {
	if p.typing != nil {
		p.typing.Stop()
	}
	p.feature.Unmount()
	if p.detector != nil {
		p.detector.Unmount()
	}
	p.cancel()
}

func (p *page) runCmd() tea.Cmd {
	if p.typing != nil {
		p.typing.Cancel()
	}
	input := p.input.Value()
	opts := capability.InvokeOptions{Context: strings.TrimSpace(p.extra.Value())}
	cfg, changed := p.pendingSetting()
	p.notice = ""
	return func() tea.Msg {
		if changed {
			got, _, err := p.feature.Reconfigure(p.ctx, cfg)
			if err != nil {
				return configuredMsg{page: p.id, cfg: got, err: err}
			}
		}
		var res session.Result
		var err error
		if p.name == capability.LanguageDetector {
			res, err = p.feature.Detect(p.ctx, input)
		} else {
			res, err = p.feature.Run(p.ctx, input, opts)
		}
		return runDoneMsg{page: p.id, res: res, err: err}
	}
}

func (p *page) reconfigureCmd(cfg capability.Config) tea.Cmd {
	return func() tea.Msg {
		got, _, err := p.feature.Reconfigure(p.ctx, cfg)
		return configuredMsg{page: p.id, cfg: got, err: err}
	}
}

// onQuiet runs on the debouncer once typing pauses.
func (p *page) onQuiet(text string) {
	switch p.name {
	case capability.LanguageDetector:
		res, err := p.feature.Detect(p.ctx, text)
		p.send(runDoneMsg{page: p.id, res: res, err: err})
	case capability.Translator:
		if strings.TrimSpace(text) == "" {
			return
		}
		if p.detector != nil {
			res, err := p.detector.Detect(p.ctx, text)
			if err == nil && res.Status == session.StatusCompleted {
				cfg := p.feature.Config()
				if code, ok := capability.AutoSource(res.Detections, cfg.SourceLanguage); ok {
					cfg.SourceLanguage = code
					got, _, err := p.feature.Reconfigure(p.ctx, cfg)
					p.send(configuredMsg{page: p.id, cfg: got, err: err})
				}
			}
		}
		if !p.feature.Snapshot().CanRun() {
			return
		}
		res, err := p.feature.Run(p.ctx, text, capability.InvokeOptions{})
		p.send(runDoneMsg{page: p.id, res: res, err: err})
	case capability.LanguageModel:
		if _, err := p.feature.Estimate(p.ctx, text); err != nil && !errors.Is(err, session.ErrEstimateUnsupported) {
			logging.LogEvent("token estimate failed: %v", err)
		}
	}
}

func (p *page) resize(width, height int) {
	p.width = width
	p.input.SetWidth(width - 3)
	p.extra.SetWidth(width - 3)
	p.setting.SetWidth(width - 3)
	p.output.Width = width
	reserved := 16
	if p.hasSetting {
		reserved += 2
	}
	p.output.Height = max(3, height-reserved)
	p.bar.Width = max(10, width/2)
	p.refreshOutput()
}

func (p *page) refreshOutput() {
	text := p.snap.Output
	if p.name == capability.LanguageDetector {
		text = detectionList(p.snap.Detections, 0)
	}
	if p.name != capability.LanguageDetector {
		text = util.WrapToWidth(text, p.width-2)
	}
	p.output.SetContent(text)
	p.output.GotoBottom()
}

// apply handles the asynchronous messages addressed to the page.
func (p *page) apply(msg tea.Msg) {
	switch msg := msg.(type) {
	case snapshotMsg:
		if msg.detector {
			if msg.snap.Seq > p.detect.Seq {
				p.detect = msg.snap
			}
			return
		}
		if msg.snap.Seq > p.snap.Seq {
			p.snap = msg.snap
			p.refreshOutput()
		}
	case runDoneMsg:
		p.notice = noticeFor(msg.err)
	case configuredMsg:
		if msg.err != nil {
			p.notice = msg.err.Error()
		}
	}
}

// noticeFor returns the text shown for errors the feature does not describe itself.
func noticeFor(err error) string {
	var ce *session.CreationError
	var ie *session.InvocationError
	switch {
	case err == nil, errors.Is(err, session.ErrEmptyInput), errors.As(err, &ce), errors.As(err, &ie):
		return ""
	case errors.Is(err, session.ErrCapabilityUnavailable):
		return "This capability is not available yet."
	default:
		return err.Error()
	}
}

// update handles input while the page is shown. It reports whether the user left the page.
func (p *page) update(msg tea.Msg) (tea.Cmd, bool) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			if p.snap.State.Busy() && p.snap.State != session.StateProbing {
				return func() tea.Msg { p.feature.Cancel(); return nil }, false
			}
			return p.closeCmd(), true
		case "enter":
			if p.snap.State == session.StateUnavailable {
				return nil, false
			}
			return p.runCmd(), false
		case "ctrl+l":
			p.input.Reset()
			p.extra.Reset()
			p.lastInput, p.notice = "", ""
			if p.typing != nil {
				p.typing.Cancel()
			}
			return func() tea.Msg {
				p.feature.Clear()
				if p.detector != nil {
					p.detector.Clear()
				}
				return nil
			}, false
		case "ctrl+o":
			mode := session.Streaming
			if p.snap.Mode == session.Streaming {
				mode = session.Batch
			}
			return func() tea.Msg { p.feature.SetMode(mode); return nil }, false
		case "tab":
			leaving := p.focus
			p.nextFocus()
			if leaving == fieldSetting {
				if cfg, changed := p.pendingSetting(); changed {
					return p.reconfigureCmd(cfg), false
				}
			}
			return nil, false
		}
		for _, slot := range p.slots {
			if key.String() == slot.key {
				return p.reconfigureCmd(slot.next(p.feature.Config())), false
			}
		}
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	switch p.focus {
	case fieldContext:
		p.extra, cmd = p.extra.Update(msg)
	case fieldSetting:
		p.setting, cmd = p.setting.Update(msg)
	default:
		p.input, cmd = p.input.Update(msg)
	}
	cmds = append(cmds, cmd)
	p.output, cmd = p.output.Update(msg)
	cmds = append(cmds, cmd)

	if p.typing != nil && p.input.Value() != p.lastInput {
		p.lastInput = p.input.Value()
		p.typing.Trigger(p.lastInput)
	}
	return tea.Batch(cmds...), false
}

func (p *page) view(spin string) string {
	var b strings.Builder
	header := lipgloss.JoinHorizontal(lipgloss.Top,
		labelStyle.Render("aiplay"),
		headerStyle.MarginLeft(1).Render(p.name.Title()),
		availabilityBadge(p.snap.Availability),
		modeBadge(p.snap.Mode),
	)
	b.WriteString(header + "\n\n")

	switch p.snap.State {
	case session.StateIdle, session.StateProbing:
		b.WriteString(spin + " Checking availability...\n")
		b.WriteString("\n" + mutedStyle.Render(" (esc to go back)"))
		return b.String()
	case session.StateUnavailable:
		b.WriteString(remediationPanel(p.name, p.width))
		b.WriteString("\n" + mutedStyle.Render(" (esc to go back)"))
		return b.String()
	}

	if len(p.slots) > 0 {
		cfg := p.snap.Config
		parts := []string{labelStyle.Render("Options:")}
		for _, slot := range p.slots {
			parts = append(parts, paramStyle.Render(fmt.Sprintf("%s: %s [%s]", slot.label, slot.value(cfg), slot.key)))
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, parts...) + "\n")
	}
	if p.detector != nil {
		if line := detectionList(p.detect.Detections, capability.DetectionDisplayLimit); line != "" {
			b.WriteString(line + "\n")
		}
	}
	b.WriteString("\n" + p.input.View() + "\n")
	if p.hasContext {
		b.WriteString(p.extra.View() + "\n")
	}
	if p.hasSetting {
		b.WriteString(mutedStyle.Render(p.settingLabel+":") + "\n" + p.setting.View() + "\n")
	}

	if p.snap.State == session.StateSessionCreating && p.snap.Progress > 0 {
		b.WriteString("\nDownloading model " + p.bar.ViewAs(p.snap.Progress/100) + "\n")
	}
	if p.snap.State.Busy() {
		b.WriteString("\n" + spin + " " + busyLabel(p.snap.State) + "\n")
	}

	b.WriteString("\n" + p.output.View() + "\n")

	if p.name == capability.LanguageModel {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("Tokens: %d", p.snap.Tokens)) + "\n")
	}
	if p.snap.Err != "" {
		b.WriteString(errorStyle.Render(p.snap.Err) + "\n")
	}
	if p.notice != "" {
		b.WriteString(errorStyle.Render(util.TruncateRunes(p.notice, p.width-2)) + "\n")
	}
	b.WriteString(mutedStyle.Render(helpLine(p)))
	return b.String()
}

func busyLabel(s session.State) string {
	switch s {
	case session.StateSessionCreating:
		return "Preparing session..."
	case session.StateStreamingPartial:
		return "Streaming..."
	default:
		return "Working..."
	}
}

func helpLine(p *page) string {
	parts := []string{"enter run", "esc stop/back", "ctrl+l clear"}
	if p.name.SupportsStreaming() {
		parts = append(parts, "ctrl+o stream")
	}
	if len(p.fields()) > 1 {
		parts = append(parts, "tab next field")
	}
	return " (" + strings.Join(parts, ", ") + ")"
}
