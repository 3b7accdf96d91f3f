package engine

import (
	"regexp"
	"strconv"
	"strings"
	"sync"
)

var durationPattern = regexp.MustCompile(`Duration:\s*(\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// parseDuration extracts the input duration in seconds from an ffmpeg banner line.
func parseDuration(line string) (float64, bool) {
	m := durationPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	h, _ := strconv.ParseFloat(m[1], 64)
	mi, _ := strconv.ParseFloat(m[2], 64)
	s, _ := strconv.ParseFloat(m[3], 64)
	total := h*3600 + mi*60 + s
	return total, total > 0
}

// progressTracker turns `-progress` key=value lines into ratios of the input duration.
type progressTracker struct {
	mu       sync.Mutex
	sink     ProgressFunc
	duration float64
	last     float64
	done     bool
}

func newProgressTracker(sink ProgressFunc) *progressTracker {
	return &progressTracker{sink: sink, last: -1}
}

func (t *progressTracker) stderrLine(line string) {
	d, ok := parseDuration(line)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	// first input wins
	if t.duration == 0 {
		t.duration = d
	}
}

func (t *progressTracker) progressLine(line string) {
	key, val, ok := strings.Cut(strings.TrimSpace(line), "=")
	if !ok {
		return
	}
	switch key {
	case "out_time_us", "out_time_ms":
		// both keys carry microseconds
		us, err := strconv.ParseInt(val, 10, 64)
		if err != nil || us < 0 {
			return
		}
		t.mu.Lock()
		d := t.duration
		t.mu.Unlock()
		if d <= 0 {
			return
		}
		t.emit(float64(us) / 1e6 / d)
	case "progress":
		if val == "end" {
			t.finish()
		}
	}
}

func (t *progressTracker) finish() {
	t.emit(1)
	t.mu.Lock()
	t.done = true
	t.mu.Unlock()
}

func (t *progressTracker) emit(ratio float64) {
	t.mu.Lock()
	if t.done || ratio == t.last {
		t.mu.Unlock()
		return
	}
	t.last = ratio
	sink := t.sink
	t.mu.Unlock()
	if sink != nil {
		sink(ratio)
	}
}
