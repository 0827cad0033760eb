// Package progress reports task counts of long-running work for telemetry
// and UI. A Progress holds named phases; each phase counts total, done and
// failed tasks. All methods are safe for concurrent use and a nil
// *Progress or *Phase ignores updates.
package progress

import (
	"sync"
	"sync/atomic"
)

// Phase counts the tasks of one named step.
type Phase struct {
	name   string
	total  atomic.Int64
	done   atomic.Int64
	failed atomic.Int64
}

// Name returns the phase name.
func (ph *Phase) Name() string {
	if ph == nil {
		return ""
	}
	return ph.name
}

// AddTotal announces n more tasks.
func (ph *Phase) AddTotal(n int64) {
	if ph != nil {
		ph.total.Add(n)
	}
}

// Done marks n tasks as completed successfully.
func (ph *Phase) Done(n int64) {
	if ph != nil {
		ph.done.Add(n)
	}
}

// Fail marks n tasks as failed. Failed tasks count as finished.
func (ph *Phase) Fail(n int64) {
	if ph != nil {
		ph.failed.Add(n)
	}
}

// Snapshot returns the current counters.
func (ph *Phase) Snapshot() PhaseSnapshot {
	if ph == nil {
		return PhaseSnapshot{}
	}
	return PhaseSnapshot{
		Name:   ph.name,
		Total:  ph.total.Load(),
		Done:   ph.done.Load(),
		Failed: ph.failed.Load(),
	}
}

// PhaseSnapshot is a point-in-time copy of a phase.
type PhaseSnapshot struct {
	Name   string
	Total  int64
	Done   int64
	Failed int64
}

// Finished returns done plus failed tasks.
func (s PhaseSnapshot) Finished() int64 {
	return s.Done + s.Failed
}

// Pending returns tasks not yet finished.
func (s PhaseSnapshot) Pending() int64 {
	return max(s.Total-s.Finished(), 0)
}

// Progress is an ordered set of phases.
type Progress struct {
	mu     sync.RWMutex
	phases []*Phase
	byName map[string]*Phase
}

// New creates an empty Progress.
func New() *Progress {
	return &Progress{byName: make(map[string]*Phase)}
}

// Phase returns the phase called name, creating it at the end if needed.
func (p *Progress) Phase(name string) *Phase {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	ph, ok := p.byName[name]
	p.mu.RUnlock()
	if ok {
		return ph
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if ph, ok := p.byName[name]; ok {
		return ph
	}
	ph = &Phase{name: name}
	p.byName[name] = ph
	p.phases = append(p.phases, ph)
	return ph
}

// Snapshot returns all phases in creation order.
func (p *Progress) Snapshot() Snapshot {
	if p == nil {
		return Snapshot{}
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := Snapshot{Phases: make([]PhaseSnapshot, len(p.phases))}
	for i, ph := range p.phases {
		s.Phases[i] = ph.Snapshot()
	}
	return s
}

// Snapshot is a point-in-time copy of a Progress.
type Snapshot struct {
	Phases []PhaseSnapshot
}

// Totals sums all phases.
func (s Snapshot) Totals() PhaseSnapshot {
	var t PhaseSnapshot
	for _, ph := range s.Phases {
		t.Total += ph.Total
		t.Done += ph.Done
		t.Failed += ph.Failed
	}
	return t
}

// Fraction returns finished/total over all phases, 1 when there is no work.
func (s Snapshot) Fraction() float64 {
	t := s.Totals()
	if t.Total <= 0 {
		return 1
	}
	return min(float64(t.Finished())/float64(t.Total), 1)
}

// Phase returns the snapshot of the named phase.
func (s Snapshot) Phase(name string) (PhaseSnapshot, bool) {
	for _, ph := range s.Phases {
		if ph.Name == name {
			return ph, true
		}
	}
	return PhaseSnapshot{}, false
}
