package main

import (
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"vidshape/logger"
)

// progressReporter turns percentage callbacks into a terminal bar, or debug
// log lines when stderr is not a terminal.
type progressReporter struct {
	mu   sync.Mutex
	bar  *progressbar.ProgressBar
	desc string
	last int
}

func shouldShowProgress(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func newProgressReporter(w io.Writer, desc string) *progressReporter {
	p := &progressReporter{desc: desc, last: -1}
	if shouldShowProgress(w) {
		p.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(desc),
			progressbar.OptionClearOnFinish(),
		)
	}
	return p
}

// Update accepts a percentage in [0, 100]; lower values than already shown are ignored.
func (p *progressReporter) Update(percent float64) {
	n := int(percent)
	if n < 0 {
		n = 0
	}
	if n > 100 {
		n = 100
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if n <= p.last {
		return
	}
	p.last = n
	if p.bar != nil {
		_ = p.bar.Set(n)
		return
	}
	logger.Debugf("%s: %d%%", p.desc, n)
}

func (p *progressReporter) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}
