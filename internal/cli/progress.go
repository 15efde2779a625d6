package cli

import (
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/forPelevin/vidoc/internal/types"
)

// barSink renders progress events as a step counter bar. It is also the
// writer for log lines, so they never land in the middle of the bar.
type barSink struct {
	mu      sync.Mutex
	w       io.Writer
	bar     *progressbar.ProgressBar
	visible bool
	closed  bool
}

func newBarSink(w io.Writer, quiet bool) *barSink {
	bar := progressbar.NewOptions(1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetVisibility(!quiet),
		progressbar.OptionSetDescription("starting"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
	)
	return &barSink{w: w, bar: bar, visible: !quiet}
}

func (s *barSink) OnProgress(p types.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.Total > 0 && int64(p.Total) != s.bar.GetMax64() {
		s.bar.ChangeMax(p.Total)
	}
	s.bar.Describe(p.Message)
	_ = s.bar.Set(p.Step)
}

// Write clears the bar, writes p on its own line and draws the bar again
// below it.
func (s *barSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.visible || s.closed {
		return s.w.Write(p)
	}
	_ = s.bar.Clear()
	n, err := s.w.Write(p)
	_ = s.bar.RenderBlank()
	return n, err
}

func (s *barSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	_ = s.bar.Exit()
}
