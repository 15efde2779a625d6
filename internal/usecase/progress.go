package usecase

import (
	"github.com/forPelevin/vidoc/internal/ports"
	"github.com/forPelevin/vidoc/internal/types"
)

// progress numbers the steps of one run. A nil sink drops events.
type progress struct {
	sink  ports.ProgressSink
	step  int
	total int
}

func newProgress(sink ports.ProgressSink) *progress { return &progress{sink: sink} }

// plan sets the step total: one step per prepared input, per upload, per
// generated document, plus integration and embedding when they happen.
func (p *progress) plan(prepares, uploads, generates int, embed bool) {
	total := prepares + uploads + generates
	if generates > 1 {
		total++
	}
	if embed {
		total++
	}
	if total < p.step {
		total = p.step
	}
	p.total = total
}

func (p *progress) next(msg string) {
	p.step++
	if p.step > p.total {
		p.total = p.step
	}
	p.emit(msg)
}

// detail reports within the current step without advancing it.
func (p *progress) detail(msg string) { p.emit(msg) }

func (p *progress) done(msg string) {
	p.step = p.total
	p.emit(msg)
}

func (p *progress) emit(msg string) {
	if p.sink == nil {
		return
	}
	p.sink.OnProgress(types.Progress{Step: p.step, Total: p.total, Message: msg})
}
