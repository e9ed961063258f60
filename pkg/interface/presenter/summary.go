package presenter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/ts"
)

// TerminalWidth returns the terminal width, or 80 when it cannot be read
func TerminalWidth() int {
	size, err := ts.GetSize()
	if err != nil || size.Col() <= 0 {
		return 80
	}
	return size.Col()
}

// Summary describes a finished crawl
type Summary struct {
	Metrics     *entity.Metrics
	ResultsFile string
	HistoryFile string
}

// PrintSummary prints final statistics using lipgloss
func PrintSummary(w io.Writer, s Summary) {
	m := s.Metrics
	if m == nil {
		m = &entity.Metrics{}
	}

	titleStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true).
		Padding(1, 2)

	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11")).
		Bold(true)

	width := TerminalWidth()
	if width > 70 {
		width = 70
	}
	divider := lipgloss.NewStyle().
		Foreground(lipgloss.Color("8")).
		Render(strings.Repeat("─", width))

	row := func(key string, value any) string {
		return fmt.Sprintf("  %s %-22s %s\n", keyStyle.Render("✓"), key, valueStyle.Render(fmt.Sprint(value)))
	}

	var b strings.Builder
	b.WriteString(divider + "\n📊 Statistics:\n")
	b.WriteString(row("Session", m.SessionID))
	b.WriteString(row("URLs Enqueued", m.URLsEnqueued))
	b.WriteString(row("URLs Processed", m.URLsProcessed))
	b.WriteString(row("Requests", m.Requests))
	b.WriteString(row("Successful", m.SuccessCount))
	b.WriteString(row("Failed", m.ErrorCount))
	b.WriteString(row("Robots Denied", m.RobotsDenied))
	b.WriteString(row("Sitemap URLs", m.SitemapURLs))
	if !m.StartTime.IsZero() {
		b.WriteString(row("Elapsed", time.Since(m.StartTime).Round(time.Millisecond)))
	}

	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(width))
	b.WriteString("\n" + bar.ViewAs(successRatio(m)) + "\n")

	b.WriteString("\n📁 Output Files:\n")
	b.WriteString(row("Access Results", s.ResultsFile))
	if s.HistoryFile != "" {
		b.WriteString(row("Crawl History", s.HistoryFile))
	}
	b.WriteString(divider)

	fmt.Fprintln(w, "\n"+titleStyle.Render("✨ Crawl Complete"))
	fmt.Fprintln(w, b.String())
}

// successRatio is the share of fetches that succeeded
func successRatio(m *entity.Metrics) float64 {
	total := m.SuccessCount + m.ErrorCount
	if total == 0 {
		return 0
	}
	return float64(m.SuccessCount) / float64(total)
}
