package pipeline

import (
	"fmt"
	"os"

	"github.com/retroenv/segaxsf/internal/app"
	"golang.org/x/term"
)

// progress prints the playback position on a terminal line.
type progress struct {
	out      *os.File
	enabled  bool
	rate     int
	total    int64
	position func() int64
}

func newProgress(out *os.File, rate int, total int64, position func() int64) *progress {
	return &progress{
		out:      out,
		enabled:  term.IsTerminal(int(out.Fd())),
		rate:     rate,
		total:    total,
		position: position,
	}
}

func (p *progress) update() {
	if !p.enabled {
		return
	}
	_, _ = fmt.Fprintf(p.out, "\r%s / %s", app.FormatDuration(p.position(), p.rate), app.FormatDuration(p.total, p.rate))
}

func (p *progress) finish() {
	if !p.enabled {
		return
	}
	p.update()
	_, _ = fmt.Fprintln(p.out)
}
