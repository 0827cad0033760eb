package discovery

import (
	"context"

	"github.com/hupe1980/respack/progress"
)

// Run is a scan running in the background.
type Run struct {
	cancel   context.CancelFunc
	done     chan struct{}
	progress *progress.Progress

	result Result
	err    error
}

// Start runs a scan on a new goroutine.
func (g *Gatherer) Start(ctx context.Context) *Run {
	ctx, cancel := context.WithCancel(ctx)
	r := &Run{
		cancel:   cancel,
		done:     make(chan struct{}),
		progress: progress.New(),
	}
	go func() {
		defer close(r.done)
		defer cancel()
		r.result, r.err = g.scan(ctx, r.progress)
	}()
	return r
}

// Cancel asks the scan to stop. A scan that already reached the register
// phase completes.
func (r *Run) Cancel() { r.cancel() }

// Done is closed when the scan finished.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the scan finished and returns its outcome.
func (r *Run) Wait() (Result, error) {
	<-r.done
	return r.result, r.err
}

// Progress returns the per-phase task counts so far.
func (r *Run) Progress() progress.Snapshot { return r.progress.Snapshot() }
