package queue

import (
	"container/list"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/respack/metrics"
	"github.com/hupe1980/respack/progress"
)

var (
	// ErrClosed is returned when enqueuing into a closed queue.
	ErrClosed = errors.New("queue: closed")
	// ErrAlreadyQueued is returned when a job with the same key is pending.
	ErrAlreadyQueued = errors.New("queue: key already queued")
)

// PhaseImport is the progress phase the queue reports into.
const PhaseImport = "import"

// Job is one unit of work in the queue.
type Job interface {
	// Key identifies the job. At most one job per key is pending.
	Key() string
	// Begin is called by the worker right before Run. Returning false
	// skips the job, e.g. when it was loaded synchronously in the meantime.
	Begin() bool
	// Run executes the job on the worker goroutine.
	Run(ctx context.Context) error
	// Cancel is called for a pending job that was withdrawn.
	Cancel()
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Pending   int
	InFlight  string // key of the running job, empty if idle
	Processed int64
	Failed    int64
	Skipped   int64
	Aborted   int64
}

// Options configure a Queue.
type Options struct {
	Logger       *slog.Logger
	Metrics      metrics.Collector
	Progress     *progress.Progress
	IdleInterval time.Duration
	BaseContext  context.Context
}

// Option configures a Queue.
type Option func(*Options)

// WithLogger sets the logger. Defaults to discarding.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		if l != nil {
			o.Logger = l
		}
	}
}

// WithMetrics sets the metrics collector that receives queue depth changes.
func WithMetrics(mc metrics.Collector) Option {
	return func(o *Options) {
		if mc != nil {
			o.Metrics = mc
		}
	}
}

// WithProgress reports enqueued and finished jobs into the "import" phase of p.
func WithProgress(p *progress.Progress) Option {
	return func(o *Options) {
		o.Progress = p
	}
}

// WithIdleInterval sets how long the worker sleeps when the FIFO is empty.
func WithIdleInterval(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.IdleInterval = d
		}
	}
}

// WithBaseContext sets the context passed to Job.Run.
func WithBaseContext(ctx context.Context) Option {
	return func(o *Options) {
		if ctx != nil {
			o.BaseContext = ctx
		}
	}
}

// Queue is a FIFO of jobs drained by a single worker goroutine.
type Queue struct {
	opts  Options
	phase *progress.Phase

	mu       sync.Mutex
	fifo     *list.List // of Job
	pending  map[string]*list.Element
	inFlight string
	closed   bool

	wake chan struct{}
	stop chan struct{}
	done chan struct{}

	processed atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	aborted   atomic.Int64
}

// New creates a queue and starts its worker.
func New(optFns ...Option) *Queue {
	opts := Options{
		Logger:       slog.New(slog.DiscardHandler),
		Metrics:      metrics.Noop{},
		IdleInterval: 10 * time.Millisecond,
		BaseContext:  context.Background(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	q := &Queue{
		opts:    opts,
		fifo:    list.New(),
		pending: make(map[string]*list.Element),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if opts.Progress != nil {
		q.phase = opts.Progress.Phase(PhaseImport)
	}

	go q.loop()
	return q
}

// Enqueue appends job to the FIFO.
func (q *Queue) Enqueue(job Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	key := job.Key()
	if _, ok := q.pending[key]; ok {
		q.mu.Unlock()
		return ErrAlreadyQueued
	}
	q.pending[key] = q.fifo.PushBack(job)
	depth := q.fifo.Len()
	q.mu.Unlock()

	q.phase.AddTotal(1)
	q.opts.Metrics.RecordQueueDepth(depth)

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Remove withdraws the pending job for key and cancels it.
// It reports whether a pending job was found. A running job is not affected.
func (q *Queue) Remove(key string) bool {
	q.mu.Lock()
	e, ok := q.pending[key]
	if !ok {
		q.mu.Unlock()
		return false
	}
	job := q.fifo.Remove(e).(Job)
	delete(q.pending, key)
	depth := q.fifo.Len()
	q.mu.Unlock()

	job.Cancel()
	q.aborted.Add(1)
	q.phase.AddTotal(-1)
	q.opts.Metrics.RecordQueueDepth(depth)
	return true
}

// Contains reports whether a job for key is pending.
func (q *Queue) Contains(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.pending[key]
	return ok
}

// AbortAll empties the FIFO and cancels every pending job. The running job,
// if any, keeps running. It returns the number of cancelled jobs.
func (q *Queue) AbortAll() int {
	q.mu.Lock()
	jobs := make([]Job, 0, q.fifo.Len())
	for e := q.fifo.Front(); e != nil; e = e.Next() {
		jobs = append(jobs, e.Value.(Job))
	}
	q.fifo.Init()
	clear(q.pending)
	q.mu.Unlock()

	for _, job := range jobs {
		job.Cancel()
	}
	n := len(jobs)
	if n > 0 {
		q.aborted.Add(int64(n))
		q.phase.AddTotal(-int64(n))
		q.opts.Metrics.RecordQueueDepth(0)
		q.opts.Logger.Debug("aborted pending imports", "count", n)
	}
	return n
}

// Len returns the number of pending jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.fifo.Len()
}

// Stats returns a snapshot of the queue counters.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	pending, inFlight := q.fifo.Len(), q.inFlight
	q.mu.Unlock()
	return Stats{
		Pending:   pending,
		InFlight:  inFlight,
		Processed: q.processed.Load(),
		Failed:    q.failed.Load(),
		Skipped:   q.skipped.Load(),
		Aborted:   q.aborted.Load(),
	}
}

// Close cancels all pending jobs, waits for the running job to finish and
// stops the worker. Close is idempotent.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.AbortAll()
	close(q.stop)
	<-q.done
	return nil
}

func (q *Queue) loop() {
	defer close(q.done)

	idle := time.NewTimer(q.opts.IdleInterval)
	defer idle.Stop()

	for {
		if q.runNext() {
			continue
		}

		idle.Reset(q.opts.IdleInterval)
		select {
		case <-q.stop:
			return
		case <-q.wake:
		case <-idle.C:
		}
	}
}

// runNext pops the FIFO head and runs it. It reports whether a job was taken.
func (q *Queue) runNext() bool {
	q.mu.Lock()
	e := q.fifo.Front()
	if e == nil {
		q.mu.Unlock()
		return false
	}
	job := q.fifo.Remove(e).(Job)
	key := job.Key()
	delete(q.pending, key)
	q.inFlight = key
	depth := q.fifo.Len()
	q.mu.Unlock()

	q.opts.Metrics.RecordQueueDepth(depth)
	defer func() {
		q.mu.Lock()
		q.inFlight = ""
		q.mu.Unlock()
	}()

	if !job.Begin() {
		q.skipped.Add(1)
		q.phase.Done(1)
		return true
	}

	if err := job.Run(q.opts.BaseContext); err != nil {
		q.failed.Add(1)
		q.phase.Fail(1)
		q.opts.Logger.Warn("import failed", "key", key, "error", err)
		return true
	}
	q.processed.Add(1)
	q.phase.Done(1)
	return true
}
