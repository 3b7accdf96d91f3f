package packager

import "sync"

// ProgressAggregate folds per-job contributions into one percentage. Each job
// has weight 100/N; the total is the sum of every job's latest contribution.
// Reported values never decrease.
type ProgressAggregate struct {
	mu     sync.Mutex
	weight float64
	ratios []float64
	last   float64
	sink   func(percent float64)
}

func NewProgressAggregate(jobs int, sink func(percent float64)) *ProgressAggregate {
	a := &ProgressAggregate{ratios: make([]float64, jobs), sink: sink, last: -1}
	if jobs > 0 {
		a.weight = 100 / float64(jobs)
	}
	return a
}

// Weight is each job's share of the total.
func (a *ProgressAggregate) Weight() float64 { return a.weight }

// Report records job i's contribution, in [0, Weight()].
func (a *ProgressAggregate) Report(i int, contribution float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if i < 0 || i >= len(a.ratios) || a.weight == 0 {
		return
	}
	ratio := contribution / a.weight
	if ratio > 1 {
		ratio = 1
	}
	if ratio <= a.ratios[i] {
		return
	}
	a.ratios[i] = ratio
	a.emitLocked(a.totalLocked())
}

// Done marks job i as fully contributed.
func (a *ProgressAggregate) Done(i int) { a.Report(i, a.weight) }

// Complete forces the total to 100.
func (a *ProgressAggregate) Complete() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.ratios {
		a.ratios[i] = 1
	}
	a.emitLocked(100)
}

// Total returns the current aggregate percentage.
func (a *ProgressAggregate) Total() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totalLocked()
}

func (a *ProgressAggregate) totalLocked() float64 {
	if len(a.ratios) == 0 {
		return 0
	}
	var sum float64
	for _, r := range a.ratios {
		sum += r
	}
	// (done/N)*100 in that order, so finished jobs land on exactly (i+1)/N*100.
	total := sum / float64(len(a.ratios)) * 100
	if total > 100 {
		total = 100
	}
	return total
}

func (a *ProgressAggregate) emitLocked(total float64) {
	if total <= a.last {
		return
	}
	a.last = total
	if a.sink != nil {
		a.sink(total)
	}
}
