// internal/tui/styles.go
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/aiplay/internal/capability"
	"github.com/mwiater/aiplay/internal/session"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1)
	labelStyle  = lipgloss.NewStyle().Background(lipgloss.Color("0")).Foreground(lipgloss.Color("255")).Padding(0, 1)
	paramStyle  = lipgloss.NewStyle().Background(lipgloss.Color("0")).Foreground(lipgloss.Color("40")).Padding(0, 1).MarginLeft(1)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("214")).Padding(0, 1)
)

// availabilityBadge renders the probed state of a capability.
func availabilityBadge(a capability.Availability) string {
	color := "244"
	switch a {
	case capability.Available:
		color = "40"
	case capability.Downloadable:
		color = "214"
	case capability.Unavailable:
		color = "9"
	}
	return lipgloss.NewStyle().Background(lipgloss.Color(color)).Foreground(lipgloss.Color("0")).Padding(0, 1).MarginLeft(1).Render(a.String())
}

// modeBadge renders whether the page streams its output.
func modeBadge(mode session.Mode) string {
	return lipgloss.NewStyle().Background(lipgloss.Color("255")).Foreground(lipgloss.Color("0")).Padding(0, 1).MarginLeft(1).Render("Mode: " + mode.String())
}

// remediationPanel renders the steps that make an unavailable capability usable.
func remediationPanel(name capability.Name, width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s is not available", name.Title())))
	b.WriteString("\n")
	for i, step := range capability.Remediation(name) {
		fmt.Fprintf(&b, "\n%d. %s", i+1, step)
	}
	b.WriteString("\n\n" + mutedStyle.Render("Open the setup guide from the menu for details."))
	style := panelStyle
	if width > 4 {
		style = style.Width(width - 4)
	}
	return style.Render(b.String())
}

// guideView renders the setup guide.
func guideView(width int) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Setup guide") + "\n")
	for i, step := range capability.Guide() {
		fmt.Fprintf(&b, "\n%s\n", headerStyle.Render(fmt.Sprintf("Step %d: %s", i+1, step.Title)))
		for _, item := range step.Items {
			line := "  • " + item
			if width > 4 {
				line = lipgloss.NewStyle().Width(width - 4).Render(line)
			}
			b.WriteString(line + "\n")
		}
	}
	b.WriteString("\n" + mutedStyle.Render(" (esc to go back)"))
	return lipgloss.NewStyle().Margin(1, 2).Render(b.String())
}

// detectionList renders the visible language guesses with percent confidence.
func detectionList(results []capability.Detection, limit int) string {
	visible := capability.VisibleDetections(results, limit)
	if len(visible) == 0 {
		return ""
	}
	parts := make([]string, len(visible))
	for i, d := range visible {
		parts[i] = fmt.Sprintf("%s %.0f%%", capability.LanguageName(d.Language), d.Confidence*100)
	}
	return mutedStyle.Render("Detected: " + strings.Join(parts, ", "))
}
