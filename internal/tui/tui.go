// internal/tui/tui.go
// Package tui provides the interactive terminal playground: a capability menu, one
// page per capability, and the setup guide.
package tui

import (
	"context"
	"fmt"
	"log"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/aiplay/internal/appconfig"
	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/logging"
	"github.com/mwiater/aiplay/internal/providers"
	"github.com/mwiater/aiplay/internal/session"
)

// viewState represents the current screen of the playground.
type viewState int

const (
	// viewMenu lists the capabilities.
	viewMenu viewState = iota
	// viewPage shows one capability page.
	viewPage
	// viewGuide shows the setup guide.
	viewGuide
)

// probedMsg reports the menu availability of a capability.
type probedMsg struct {
	name  capability.Name
	avail capability.Availability
}

// deps are the shared collaborators handed to every page.
type deps struct {
	ctx      context.Context
	cfg      *appconfig.Config
	provider providers.Provider
	bind     session.Binder
	send     func(tea.Msg)
}

// item represents a selectable entry in the menu.
type item struct {
	title string
	desc  string
	name  capability.Name
	guide bool
}

// Title returns the title of the list item.
func (i item) Title() string { return i.title }

// Description returns the description of the list item.
func (i item) Description() string { return i.desc }

// FilterValue returns the title of the item, used for filtering.
func (i item) FilterValue() string { return i.title }

// Model is the Bubble Tea model of the playground.
type Model struct {
	deps
	sender        func(tea.Msg)
	state         viewState
	menu          list.Model
	avail         map[capability.Name]capability.Availability
	page          *page
	nextID        int
	spinner       spinner.Model
	width, height int
}

// New builds the playground model. Messages produced off the UI loop are dropped
// until SetSender is called.
func New(ctx context.Context, cfg *appconfig.Config, provider providers.Provider, bind session.Binder) *Model {
	if cfg == nil {
		cfg = &appconfig.Config{}
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	m := &Model{
		state:   viewMenu,
		avail:   map[capability.Name]capability.Availability{},
		spinner: s,
	}
	m.deps = deps{ctx: ctx, cfg: cfg, provider: provider, bind: bind, send: m.dispatch}
	m.menu = list.New(m.menuItems(), list.NewDefaultDelegate(), 0, 0)
	m.menu.Title = "AI Playground"
	return m
}

// SetSender wires the function used to deliver asynchronous messages, normally
// (*tea.Program).Send.
func (m *Model) SetSender(send func(tea.Msg)) {
	m.sender = send
}

func (m *Model) dispatch(msg tea.Msg) {
	if m.sender != nil {
		m.sender(msg)
	}
}

func (m *Model) menuItems() []list.Item {
	items := make([]list.Item, 0, len(capability.All())+1)
	for _, name := range capability.All() {
		desc := "Checking availability..."
		if a, ok := m.avail[name]; ok {
			desc = "Status: " + a.String()
		}
		items = append(items, item{title: name.Title(), desc: desc, name: name})
	}
	items = append(items, item{title: "Setup guide", desc: "How to enable on-device capabilities", guide: true})
	return items
}

func (m *Model) probeCmd(name capability.Name) tea.Cmd {
	return func() tea.Msg {
		gate := session.NewGate(m.provider, m.bind)
		return probedMsg{name: name, avail: gate.Probe(m.ctx, name, capability.Defaults(name))}
	}
}

// Init starts the spinner and probes every capability for the menu.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick}
	for _, name := range capability.All() {
		cmds = append(cmds, m.probeCmd(name))
	}
	return tea.Batch(cmds...)
}

// Update handles messages and user input.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.menu.SetSize(msg.Width, msg.Height-2)
		if m.page != nil {
			m.page.resize(msg.Width, msg.Height)
		}
		return m, nil

	case probedMsg:
		m.avail[msg.name] = msg.avail
		return m, m.menu.SetItems(m.menuItems())

	case snapshotMsg:
		if m.page != nil && m.page.id == msg.page {
			m.page.apply(msg)
		}
		return m, nil

	case runDoneMsg:
		if m.page != nil && m.page.id == msg.page {
			m.page.apply(msg)
		}
		return m, nil

	case configuredMsg:
		if m.page != nil && m.page.id == msg.page {
			m.page.apply(msg)
		}
		return m, nil

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	switch m.state {
	case viewMenu:
		if key, ok := msg.(tea.KeyMsg); ok && m.menu.FilterState() != list.Filtering {
			switch key.String() {
			case "q":
				return m, tea.Quit
			case "enter":
				selected, ok := m.menu.SelectedItem().(item)
				if !ok {
					return m, nil
				}
				if selected.guide {
					m.state = viewGuide
					return m, nil
				}
				return m, m.open(selected.name)
			}
		}
		m.menu, cmd = m.menu.Update(msg)
		return m, cmd

	case viewGuide:
		if key, ok := msg.(tea.KeyMsg); ok && (key.String() == "esc" || key.String() == "q") {
			m.state = viewMenu
		}
		return m, nil

	case viewPage:
		cmd, back := m.page.update(msg)
		if back {
			name := m.page.name
			m.page = nil
			m.state = viewMenu
			return m, tea.Batch(cmd, m.probeCmd(name))
		}
		return m, cmd
	}
	return m, nil
}

func (m *Model) open(name capability.Name) tea.Cmd {
	m.nextID++
	m.page = newPage(m.deps, m.nextID, name)
	if m.width > 0 {
		m.page.resize(m.width, m.height)
	}
	m.state = viewPage
	logging.LogEvent("tui: opened %s page", name)
	return m.page.mountCmd()
}

// View renders the current screen.
func (m *Model) View() string {
	switch m.state {
	case viewGuide:
		return guideView(m.width)
	case viewPage:
		if m.page != nil {
			return lipgloss.NewStyle().Margin(1, 2).Render(m.page.view(m.spinner.View()))
		}
	}
	return lipgloss.NewStyle().Margin(1, 2).Render(m.menu.View())
}

// Close disposes the sessions of the open page.
func (m *Model) Close() {
	if m.page != nil {
		m.page.close()
		m.page = nil
	}
}

// Start runs the playground until the user quits.
func Start(ctx context.Context, cfg *appconfig.Config, provider providers.Provider) error {
	if cfg == nil {
		return fmt.Errorf("configuration is not loaded")
	}
	f, err := tea.LogToFile(cfg.LogFilePath(), "debug")
	if err != nil {
		return fmt.Errorf("could not open log file: %w", err)
	}
	defer f.Close()

	m := New(ctx, cfg, provider, session.BinderFromConfig(cfg))
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.SetSender(p.Send)

	_, err = p.Run()
	log.Println("Disposing open sessions...")
	m.Close()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("error running program: %w", err)
	}
	return nil
}
