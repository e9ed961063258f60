package presenter

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/WangYihang/Crawl-Frontier/pkg/common"
	"github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const maxRecentURLs = 50

// Dashboard is a TUI view of the frontier while a crawl runs
type Dashboard struct {
	metrics    *entity.Metrics
	recentURLs []string
	width      int
	height     int
	startTime  time.Time
	mu         sync.RWMutex
}

type tickMsg time.Time

// NewDashboard creates a new TUI dashboard
func NewDashboard() *Dashboard {
	return &Dashboard{
		metrics:   &entity.Metrics{},
		startTime: time.Now(),
	}
}

// Init initializes the dashboard
func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

// Update handles dashboard updates
func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "ctrl+c":
			return d, tea.Quit
		}

	case tea.WindowSizeMsg:
		d.width = msg.Width
		d.height = msg.Height
		return d, nil

	case tickMsg:
		return d, tickCmd()
	}

	return d, nil
}

// View renders the dashboard
func (d *Dashboard) View() string {
	if d.width == 0 {
		return "Initializing..."
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	header := d.renderHeader()
	footer := d.renderFooter()

	available := d.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if available < 0 {
		available = 0
	}
	top := available / 2
	bottom := available - top
	left := d.width / 2
	right := d.width - left

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.JoinHorizontal(lipgloss.Top,
			d.renderSessions(left, top),
			d.renderFetches(right, top),
		),
		lipgloss.JoinHorizontal(lipgloss.Top,
			d.renderQueue(left, bottom),
			d.renderRecent(right, bottom),
		),
		footer,
	)
}

// OnMetricsUpdate implements application.MetricsObserver
func (d *Dashboard) OnMetricsUpdate(metrics *entity.Metrics) {
	d.mu.Lock()
	d.metrics = metrics
	d.mu.Unlock()
}

// AddURL implements application.MetricsObserver
func (d *Dashboard) AddURL(url string) {
	d.mu.Lock()
	d.recentURLs = append(d.recentURLs, url)
	if len(d.recentURLs) > maxRecentURLs {
		d.recentURLs = d.recentURLs[len(d.recentURLs)-maxRecentURLs:]
	}
	d.mu.Unlock()
}

func (d *Dashboard) renderHeader() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#7D56F4")).
		Padding(0, 1)
	infoStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))

	info := fmt.Sprintf(" Session: %s | Workers: %d/%d | Running: %s",
		d.metrics.SessionID,
		d.metrics.ActiveWorkers, d.metrics.TotalWorkers,
		formatElapsed(time.Since(d.startTime)))

	return titleStyle.Render("🕸 Crawl Frontier "+common.PV.Short()) + infoStyle.Render(info)
}

// renderSessions lists the queue, de-dup set and result sizes per session
func (d *Dashboard) renderSessions(width, height int) string {
	idWidth := width - 36
	if idWidth < 8 {
		idWidth = 8
	}
	lines := []string{
		fmt.Sprintf("%-*s %8s %8s %8s", idWidth, "SESSION", "QUEUED", "SEEN", "FETCHED"),
	}
	rows := height - 6
	for i, s := range d.metrics.Sessions {
		if i >= rows {
			lines = append(lines, fmt.Sprintf("… %d more", len(d.metrics.Sessions)-i))
			break
		}
		id := s.ID
		if id == d.metrics.SessionID {
			id = "*" + id
		}
		lines = append(lines, fmt.Sprintf("%-*s %8d %8d %8d", idWidth, truncate(id, idWidth), s.Queued, s.Seen, s.Accessed))
	}
	if len(d.metrics.Sessions) == 0 {
		lines = append(lines, "No sessions yet...")
	}
	return panel("📊 Frontier", "#874BFD", width, height, lines)
}

func (d *Dashboard) renderFetches(width, height int) string {
	m := d.metrics
	lines := []string{
		fmt.Sprintf("Requests:        %d", m.Requests),
		fmt.Sprintf("Successful:      %d (%.1f%%)", m.SuccessCount, successRatio(m)*100),
		fmt.Sprintf("Failed:          %d", m.ErrorCount),
		fmt.Sprintf("Robots denied:   %d", m.RobotsDenied),
		fmt.Sprintf("Sitemap URLs:    %d", m.SitemapURLs),
		fmt.Sprintf("Enqueued:        %d", m.URLsEnqueued),
	}
	if elapsed := time.Since(d.startTime).Seconds(); elapsed > 0 {
		lines = append(lines, fmt.Sprintf("Rate:            %.1f urls/s", float64(m.URLsProcessed)/elapsed))
	}
	return panel("🌐 Fetches", "#FF6B6B", width, height, lines)
}

// renderQueue shows what the workers hold and what they take next
func (d *Dashboard) renderQueue(width, height int) string {
	limit := (height - 8) / 2
	if limit < 1 {
		limit = 1
	}
	lines := []string{fmt.Sprintf("In flight (%d)", len(d.metrics.ActiveURLs))}
	lines = append(lines, bullets(d.metrics.ActiveURLs, limit, width-10)...)
	lines = append(lines, "", fmt.Sprintf("Up next (%d queued)", d.metrics.QueueLength))
	lines = append(lines, bullets(d.metrics.NextURLs, limit, width-10)...)
	return panel("⏳ Queue", "#4ECDC4", width, height, lines)
}

func (d *Dashboard) renderRecent(width, height int) string {
	limit := height - 6
	if limit < 0 {
		limit = 0
	}
	recent := d.recentURLs
	if len(recent) > limit {
		recent = recent[len(recent)-limit:]
	}
	lines := bullets(recent, limit, width-10)
	if len(d.recentURLs) == 0 {
		lines = []string{"Nothing fetched yet..."}
	}
	return panel("🔗 Recent Fetches", "#04B575", width, height, lines)
}

func (d *Dashboard) renderFooter() string {
	footerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#626262")).
		Padding(1, 0)

	return footerStyle.Render("Press 'q' or 'Ctrl+C' to quit")
}

// panel draws a bordered box of the given outer size
func panel(title, color string, width, height int, lines []string) string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(color)).
		Padding(1, 2).
		Width(width - 2).
		Height(height - 2)

	return style.Render(strings.Join(append([]string{title, ""}, lines...), "\n"))
}

func bullets(urls []string, limit, width int) []string {
	if len(urls) == 0 {
		return []string{"  -"}
	}
	var out []string
	for i, u := range urls {
		if i >= limit {
			break
		}
		out = append(out, "  • "+truncate(u, width))
	}
	return out
}

func formatElapsed(elapsed time.Duration) string {
	hours := int(elapsed.Hours())
	minutes := int(elapsed.Minutes()) % 60
	seconds := int(elapsed.Seconds()) % 60
	switch {
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}

// truncate shortens s to at most n runes
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 1 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*500, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
