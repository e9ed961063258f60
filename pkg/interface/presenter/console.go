package presenter

import (
	"io"
	"sync"

	"github.com/WangYihang/Crawl-Frontier/pkg/domain/entity"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// ConsoleProgress renders a single progress bar of processed against
// enqueued URLs, for runs without the dashboard
type ConsoleProgress struct {
	progress *mpb.Progress
	bar      *mpb.Bar
	once     sync.Once
}

// NewConsoleProgress creates a progress bar writing to out
func NewConsoleProgress(out io.Writer, sessionID string) *ConsoleProgress {
	p := mpb.New(mpb.WithOutput(out), mpb.WithWidth(TerminalWidth()/2))
	bar := p.AddBar(0,
		mpb.BarOptional(mpb.BarRemoveOnComplete(), false),
		mpb.PrependDecorators(
			decor.Name(sessionID, decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("[%d / %d]", decor.WCSyncWidth),
			decor.Percentage(decor.WCSyncSpace),
			decor.OnComplete(
				decor.Elapsed(decor.ET_STYLE_GO, decor.WCSyncSpace), "done",
			),
		),
	)
	return &ConsoleProgress{progress: p, bar: bar}
}

// OnMetricsUpdate implements application.MetricsObserver
func (c *ConsoleProgress) OnMetricsUpdate(metrics *entity.Metrics) {
	c.bar.SetTotal(metrics.URLsEnqueued, false)
	c.bar.SetCurrent(metrics.URLsProcessed)
}

// AddURL implements application.MetricsObserver
func (c *ConsoleProgress) AddURL(string) {}

// Finish completes the bar and waits for the final render
func (c *ConsoleProgress) Finish() {
	c.once.Do(func() {
		c.bar.SetTotal(-1, true)
		c.progress.Wait()
	})
}
