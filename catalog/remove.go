package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/respack/container"
	"golang.org/x/sync/errgroup"
)

// drain withdraws a queued load of h or waits for an in-flight one. With
// remove set, h is marked removed once drained so no new load can start.
func (c *Catalog) drain(ctx context.Context, h *Handle, remove bool) error {
	for {
		h.mu.Lock()
		switch h.state {
		case Queued:
			h.state = NotLoaded
			h.gen++
			h.waiters = nil
			h.removed = h.removed || remove
			h.mu.Unlock()
			if c.opts.queue != nil {
				c.opts.queue.Remove(h.key)
			}
			return nil
		case Loading:
			done := h.done
			h.mu.Unlock()
			if err := c.wait(ctx, done); err != nil {
				return fmt.Errorf("%s: %w", h.key, err)
			}
		default:
			h.removed = h.removed || remove
			h.mu.Unlock()
			return nil
		}
	}
}

// Unload disposes the resource of h and reverts it to NotLoaded. A queued
// load is withdrawn; an in-flight load is awaited first.
func (c *Catalog) Unload(ctx context.Context, h *Handle) error {
	if h == nil || h.catalog != c {
		return ErrInvalidHandle
	}
	if err := c.drain(ctx, h, false); err != nil {
		return err
	}
	h.setResource(nil)
	c.logger.Debug("unloaded", "key", h.key)
	return nil
}

// RemoveResource drains any pending or in-flight load of key, disposes its
// resource and erases it from every index. If the in-flight load outlives
// the load timeout, ErrLoadTimeout is returned and the entry stays.
func (c *Catalog) RemoveResource(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() {
		c.opts.metrics.RecordRemove(time.Since(start), err)
	}()

	h, ok := c.Get(key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err := c.drain(ctx, h, true); err != nil {
		c.logger.Warn("remove failed", "key", key, "error", err)
		return err
	}
	h.setResource(nil)

	c.mu.Lock()
	next := c.idx.Load().clone()
	next.removeHandle(h)
	c.idx.Store(next)
	c.mu.Unlock()

	c.logger.Debug("removed", "key", key)
	return nil
}

// RemoveFile removes a container and every resource registered from it.
// Resources whose in-flight load outlives the load timeout stay registered,
// and so does the container; the error names them.
func (c *Catalog) RemoveFile(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() {
		c.opts.metrics.RecordRemove(time.Since(start), err)
	}()

	ct, ok := c.Container(key)
	if !ok {
		return fmt.Errorf("%w: container %s", ErrNotFound, key)
	}

	var (
		removed []*Handle
		errs    []error
	)
	for _, h := range c.HandlesOf(key) {
		if err := c.drain(ctx, h, true); err != nil {
			errs = append(errs, err)
			continue
		}
		h.setResource(nil)
		removed = append(removed, h)
	}

	c.mu.Lock()
	next := c.idx.Load().clone()
	for _, h := range removed {
		next.removeHandle(h)
	}
	if len(errs) == 0 {
		next.removeContainer(key)
	}
	c.idx.Store(next)
	c.mu.Unlock()

	if len(errs) > 0 {
		err = errors.Join(errs...)
		c.logger.Warn("remove file incomplete", "container", key, "error", err)
		return err
	}

	ct.ReleaseCache()
	if err := ct.Close(); err != nil {
		c.logger.Warn("close container", "container", key, "error", err)
	}
	c.logger.Debug("removed file", "container", key, "resources", len(removed))
	return nil
}

// Trim releases the decompressed caches of containers none of whose
// resources are loaded or being loaded. It returns the number released.
func (c *Catalog) Trim() int {
	var n int
	for ct := range c.Containers() {
		if !ct.Cached() {
			continue
		}
		busy := slices.ContainsFunc(c.HandlesOf(ct.Key()), func(h *Handle) bool {
			return h.State() != NotLoaded
		})
		if busy {
			continue
		}
		ct.ReleaseCache()
		n++
	}
	if n > 0 {
		c.logger.Debug("trimmed container caches", "released", n)
	}
	return n
}

// VerifyAll recomputes the integrity hash of every registered container.
// It returns the keys of corrupt containers in sorted order. Block-compressed
// containers are skipped. Every container is checked even when one fails to
// read; the first I/O failure is returned.
func (c *Catalog) VerifyAll(ctx context.Context) ([]string, error) {
	var (
		mu      sync.Mutex
		corrupt []string
		checked int
	)

	var g errgroup.Group
	g.SetLimit(4)
	for ct := range c.Containers() {
		g.Go(func() error {
			err := ct.Verify(ctx)
			switch {
			case errors.Is(err, container.ErrBlockCompressedUnsupported):
				c.logger.Debug("skipped verify", "container", ct.Key(), "error", err)
				return nil
			case err != nil && !errors.Is(err, container.ErrHashMismatch):
				return fmt.Errorf("verify %s: %w", ct.Key(), err)
			}

			mu.Lock()
			defer mu.Unlock()
			checked++
			if err != nil {
				corrupt = append(corrupt, ct.Key())
				c.logger.Warn("corrupt container", "container", ct.Key(), "tier", ct.Tier().String())
			}
			return nil
		})
	}
	err := g.Wait()

	slices.Sort(corrupt)
	c.opts.metrics.RecordVerify(checked, len(corrupt))
	return corrupt, err
}

// Close disposes every resource, closes every container and empties the
// catalog. Stop the import queue before closing the catalog so no import
// runs against a closed container.
func (c *Catalog) Close(ctx context.Context) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	cur := c.idx.Load()
	c.idx.Store(newIndex())
	c.mu.Unlock()

	var errs []error
	for _, h := range cur.handles {
		if err := c.drain(ctx, h, true); err != nil {
			errs = append(errs, err)
			continue
		}
		h.setResource(nil)
	}
	for key, ct := range cur.containers {
		ct.ReleaseCache()
		if err := ct.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", key, err))
		}
	}

	if err := errors.Join(errs...); err != nil {
		c.logger.Warn("catalog closed with errors", "error", err)
		return err
	}
	c.logger.Debug("catalog closed", "handles", len(cur.handles), "containers", len(cur.containers))
	return nil
}

func (c *Catalog) String() string {
	s := c.Stats()
	return fmt.Sprintf("Catalog{handles=%d, containers=%d, loaded=%d}", s.Handles, s.Containers, s.Loaded)
}
