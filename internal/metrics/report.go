// internal/metrics/report.go
package metrics

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Render prints a per-capability summary of collected metrics.
func Render(out io.Writer, list []*CapabilityMetrics) {
	if len(list) == 0 {
		fmt.Fprintln(out, "No metrics recorded yet.")
		return
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	for _, m := range list {
		s := m.OverallStats
		fmt.Fprintln(out, titleStyle.Render(fmt.Sprintf("%s (%s/%s)", m.Capability, m.Host, m.Model)))
		fmt.Fprintf(out, "  %s %d (failed %d, cancelled %d)\n", labelStyle.Render("Requests:"), s.TotalRequests, s.Failures, s.Cancellations)
		fmt.Fprintf(out, "  %s %s\n", labelStyle.Render("Session create:"), formatStat(m.SessionCreateMs, "ms"))
		fmt.Fprintf(out, "  %s %s\n", labelStyle.Render("First chunk:"), formatStat(s.TTFCMillis, "ms"))
		fmt.Fprintf(out, "  %s %s\n", labelStyle.Render("Latency:"), formatStat(s.LatencyMillis, "ms"))
		fmt.Fprintf(out, "  %s %s\n", labelStyle.Render("Output:"), formatStat(s.OutputChars, "chars"))
		for _, b := range m.PerformanceBuckets {
			fmt.Fprintf(out, "    %s %-10s %d requests, latency %s\n", labelStyle.Render(b.Dimension), b.Bucket, b.Stats.TotalRequests, formatStat(b.Stats.LatencyMillis, "ms"))
		}
	}
}

func formatStat(rs RunningStat, unit string) string {
	if rs.Count == 0 {
		return "n/a"
	}
	return fmt.Sprintf("mean %.1f%s (min %.0f, max %.0f, sd %.1f)", rs.Mean, unit, rs.Min, rs.Max, rs.StdDev())
}
