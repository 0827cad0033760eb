package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/respack/queue"
)

// AssignFunc is called exactly once after a load assigned r to its handle.
type AssignFunc func(r Resource)

// LoadResult reports the outcome of a load request.
type LoadResult struct {
	// DependencyFailures is the number of distinct dependencies in the
	// dependency closure that could not be loaded or queued.
	DependencyFailures int
	// Queued is true when the import was handed to the import queue.
	Queued bool
}

// Load looks up key and loads it. See LoadResource.
func (c *Catalog) Load(ctx context.Context, key string, immediate bool) (LoadResult, error) {
	h, ok := c.Get(key)
	if !ok {
		return LoadResult{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return c.LoadResource(ctx, h, immediate, nil)
}

// LoadResource loads every dependency of h, then h itself.
//
// Dependencies are loaded best-effort: failures are counted and logged but
// do not abort the load of h. With immediate set the imports run on the
// calling goroutine; otherwise they are queued in dependency order, so each
// dependency is imported before its dependents. assign, if not nil, is
// called once h holds its resource; when h is already pending it fires after
// that load succeeds and is dropped if it fails.
//
// Loading an already loaded handle is a no-op apart from calling assign.
func (c *Catalog) LoadResource(ctx context.Context, h *Handle, immediate bool, assign AssignFunc) (LoadResult, error) {
	if err := c.checkHandle(h); err != nil {
		return LoadResult{}, err
	}

	var res LoadResult
	if len(h.deps) > 0 {
		visited := map[string]struct{}{h.key: {}}
		failed := make(map[string]struct{})
		c.loadDependencies(ctx, h, immediate, visited, failed)
		res.DependencyFailures = len(failed)
		if res.DependencyFailures > 0 {
			c.opts.metrics.RecordDependencyFailures(res.DependencyFailures)
			c.logger.Warn("dependencies failed to load", "key", h.key, "failed", res.DependencyFailures)
		}
	}

	queued, err := c.loadOne(ctx, h, immediate, assign)
	res.Queued = queued
	return res, err
}

func (c *Catalog) loadDependencies(ctx context.Context, h *Handle, immediate bool, visited, failed map[string]struct{}) {
	for _, key := range h.deps {
		if _, ok := visited[key]; ok {
			continue
		}
		visited[key] = struct{}{}

		dep, ok := c.Get(key)
		if !ok {
			failed[key] = struct{}{}
			c.logger.Warn("missing dependency", "key", h.key, "dependency", key)
			continue
		}
		c.loadDependencies(ctx, dep, immediate, visited, failed)
		if _, err := c.loadOne(ctx, dep, immediate, nil); err != nil {
			failed[key] = struct{}{}
			c.logger.Warn("dependency failed", "key", h.key, "dependency", key, "error", err)
		}
	}
}

// loadOne loads h without its dependencies.
func (c *Catalog) loadOne(ctx context.Context, h *Handle, immediate bool, assign AssignFunc) (bool, error) {
	if !immediate && c.opts.queue != nil {
		return c.enqueue(h, assign)
	}
	return false, c.importSync(ctx, h, assign)
}

func (c *Catalog) enqueue(h *Handle, assign AssignFunc) (bool, error) {
	gen, ok, loaded, err := h.enqueue(assign)
	if err != nil {
		return false, err
	}
	if !ok {
		// Already loaded, or pending with assign parked on the handle.
		if loaded != nil && assign != nil {
			assign(loaded)
		}
		return false, nil
	}

	job := &loadJob{catalog: c, handle: h, gen: gen}
	if err := c.opts.queue.Enqueue(job); err != nil {
		h.cancelQueued(gen)
		c.logger.Warn("enqueue failed", "key", h.key, "error", err)
		return false, err
	}
	return true, nil
}

// importSync runs the import of h on the calling goroutine. A queued entry is
// taken over; an in-flight load is awaited for up to the load timeout.
func (c *Catalog) importSync(ctx context.Context, h *Handle, assign AssignFunc) error {
	for {
		res, done, err := h.claim()
		if err != nil {
			return err
		}
		switch res {
		case claimLoaded:
			if assign != nil {
				if r := h.Resource(); r != nil {
					assign(r)
				}
			}
			return nil
		case claimWait:
			if err := c.wait(ctx, done); err != nil {
				return fmt.Errorf("%s: %w", h.key, err)
			}
			continue
		case claimStolen:
			if c.opts.queue != nil {
				c.opts.queue.Remove(h.key)
			}
		}

		r, err := c.runImport(ctx, h)
		h.finish(r, err)
		if err != nil {
			return err
		}
		if assign != nil {
			assign(r)
		}
		return nil
	}
}

// runImport reads the bytes of h and hands them to its importer.
func (c *Catalog) runImport(ctx context.Context, h *Handle) (r Resource, err error) {
	start := time.Now()
	defer func() {
		c.opts.metrics.RecordImport(h.typ, time.Since(start), err)
		if err != nil {
			c.logger.Warn("import failed", "key", h.key, "type", h.typ, "container", h.container, "error", err)
			return
		}
		c.logger.Debug("imported", "key", h.key, "type", h.typ, "duration", time.Since(start))
	}()

	if h.container == "" {
		return nil, fmt.Errorf("%w: %s is a runtime resource", ErrNoContainer, h.key)
	}
	ct, ok := c.Container(h.container)
	if !ok {
		return nil, fmt.Errorf("%w: %s for %s", ErrNoContainer, h.container, h.key)
	}
	imp, ok := c.opts.importers.Lookup(h.typ)
	if !ok {
		return nil, fmt.Errorf("%w: %q (%s)", ErrNoImporter, h.typ, h.key)
	}

	data, err := guard(func() ([]byte, error) { return ct.ReadRange(ctx, h.offset, h.size) })
	if err != nil {
		return nil, &ImportError{Key: h.key, Type: h.typ, Stage: "read", Err: err}
	}

	intermediate, err := guard(func() (any, error) { return imp.Decode(data, h.flags) })
	if err != nil {
		return nil, &ImportError{Key: h.key, Type: h.typ, Stage: "decode", Err: err}
	}
	r, err = guard(func() (Resource, error) { return imp.Construct(h, intermediate) })
	if err == nil && r == nil {
		err = errors.New("importer returned no resource")
	}
	if err != nil {
		return nil, &ImportError{Key: h.key, Type: h.typ, Stage: "construct", Err: err}
	}
	return r, nil
}

// guard converts a panic in fn into an error.
func guard[T any](fn func() (T, error)) (v T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn()
}

// wait blocks until done is closed, the load timeout elapses or ctx ends.
func (c *Catalog) wait(ctx context.Context, done <-chan struct{}) error {
	if done == nil {
		return nil
	}
	timer := time.NewTimer(c.opts.loadTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return ErrLoadTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// awaitDependencies waits, bounded by the load timeout, for dependencies of
// h whose import is running on another goroutine. Queued dependencies are
// ahead of h in the FIFO and need no wait.
func (c *Catalog) awaitDependencies(ctx context.Context, h *Handle) {
	for _, key := range h.deps {
		dep, ok := c.Get(key)
		if !ok {
			continue
		}
		if err := c.wait(ctx, dep.inFlight()); err != nil {
			c.logger.Warn("dependency still loading", "key", h.key, "dependency", key, "error", err)
		}
	}
}

// loadJob is the queue entry of one asynchronous load. Assign callbacks
// are parked on the handle and fired by finish.
type loadJob struct {
	catalog *Catalog
	handle  *Handle
	gen     uint64
}

var _ queue.Job = (*loadJob)(nil)

func (j *loadJob) Key() string { return j.handle.key }

func (j *loadJob) Begin() bool { return j.handle.beginQueued(j.gen) }

func (j *loadJob) Cancel() { j.handle.cancelQueued(j.gen) }

func (j *loadJob) Run(ctx context.Context) error {
	j.catalog.awaitDependencies(ctx, j.handle)
	r, err := j.catalog.runImport(ctx, j.handle)
	j.handle.finish(r, err)
	return err
}
