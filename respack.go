package respack

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/hupe1980/respack/catalog"
	"github.com/hupe1980/respack/discovery"
	"github.com/hupe1980/respack/internal/resource"
	"github.com/hupe1980/respack/model"
	"github.com/hupe1980/respack/progress"
	"github.com/hupe1980/respack/queue"
)

// Assets wires a catalog, the background import queue and, if libraries
// are given, a discovery gatherer.
type Assets struct {
	cat      *catalog.Catalog
	queue    *queue.Queue // nil when async imports are disabled
	gatherer *discovery.Gatherer
	rc       *resource.Controller
	imports  *progress.Progress
	opts     options

	mu       sync.Mutex
	lastScan discovery.Result

	closeOnce sync.Once
	closeErr  error
}

// New creates Assets without discovery. Content is added through the
// catalog or AddRuntime.
func New(optFns ...Option) (*Assets, error) {
	return newAssets(nil, optFns)
}

// Open creates Assets over libs and runs the first discovery scan.
// Key collisions found by the scan are logged, not returned.
func Open(ctx context.Context, libs []discovery.Library, optFns ...Option) (*Assets, error) {
	if len(libs) == 0 {
		return nil, discovery.ErrNoLibraries
	}
	a, err := newAssets(libs, optFns)
	if err != nil {
		return nil, err
	}
	if _, err := a.Rescan(ctx); err != nil {
		_ = a.Close(context.WithoutCancel(ctx))
		return nil, err
	}
	return a, nil
}

// OpenConfig reads a library config file and opens its libraries.
// Platform, worker and repair settings of the file apply unless overridden
// by optFns.
func OpenConfig(ctx context.Context, path string, optFns ...Option) (*Assets, error) {
	cfg, err := discovery.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	libs, err := cfg.Open(ctx)
	if err != nil {
		return nil, err
	}
	return Open(ctx, libs, append(configOptions(cfg), optFns...)...)
}

func configOptions(cfg *discovery.Config) []Option {
	var opts []Option
	if p, err := model.ParsePlatform(cfg.Platform); err == nil {
		opts = append(opts, WithPlatform(p))
	}
	if cfg.Workers > 0 {
		opts = append(opts, WithWorkers(cfg.Workers))
	}
	if cfg.Repair != nil {
		opts = append(opts, WithRepair(*cfg.Repair))
	}
	return opts
}

func newAssets(libs []discovery.Library, optFns []Option) (*Assets, error) {
	o := applyOptions(optFns)

	limits := o.limits
	limits.MaxBackgroundWorkers = int64(o.workers)
	if limits.MaxBackgroundWorkers <= 0 {
		limits.MaxBackgroundWorkers = int64(runtime.GOMAXPROCS(0))
	}

	a := &Assets{
		rc:      resource.NewController(limits),
		imports: progress.New(),
		opts:    o,
	}

	catOpts := []catalog.Option{
		catalog.WithLogger(o.logger.Logger),
		catalog.WithMetrics(o.metricsCollector),
		catalog.WithImporters(o.importers),
		catalog.WithLoadTimeout(o.loadTimeout),
	}
	if o.async {
		a.queue = queue.New(
			queue.WithLogger(o.logger.Logger),
			queue.WithMetrics(o.metricsCollector),
			queue.WithProgress(a.imports),
			queue.WithIdleInterval(o.idleInterval),
		)
		catOpts = append(catOpts, catalog.WithQueue(a.queue))
	}
	a.cat = catalog.New(catOpts...)

	if len(libs) > 0 {
		g, err := discovery.New(a.cat, libs, o.discoveryOptions(a.rc)...)
		if err != nil {
			_ = a.Close(context.Background())
			return nil, err
		}
		a.gatherer = g
	}
	return a, nil
}

// Catalog returns the underlying catalog.
func (a *Assets) Catalog() *catalog.Catalog { return a.cat }

// Register adds an importer for resourceType.
func (a *Assets) Register(resourceType string, imp catalog.Importer) error {
	return a.cat.Importers().Register(resourceType, imp)
}

// Get returns the handle of key.
func (a *Assets) Get(key string) (*catalog.Handle, error) {
	h, ok := a.cat.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return h, nil
}

// Load loads key and its dependencies. With immediate the import runs
// before Load returns; otherwise it is queued.
func (a *Assets) Load(ctx context.Context, key string, immediate bool) (catalog.LoadResult, error) {
	res, err := a.cat.Load(ctx, key, immediate)
	a.opts.logger.LogLoad(ctx, key, immediate, res.DependencyFailures, err)
	return res, translateError(err)
}

// Resource loads key immediately and returns its resource as T.
func Resource[T catalog.Resource](ctx context.Context, a *Assets, key string) (T, error) {
	var zero T
	h, err := a.Get(key)
	if err != nil {
		return zero, err
	}
	if _, err := a.Load(ctx, key, true); err != nil {
		return zero, err
	}
	r, err := catalog.GetResource[T](ctx, h, false, false)
	if err != nil {
		return zero, translateError(err)
	}
	return r, nil
}

// AddRuntime registers a resource created at runtime.
func (a *Assets) AddRuntime(key, resourceType string, r catalog.Resource) (*catalog.Handle, error) {
	h, err := a.cat.AddRuntimeResource(key, resourceType, r)
	return h, translateError(err)
}

// Unload disposes the resource of key and keeps the entry registered.
func (a *Assets) Unload(ctx context.Context, key string) error {
	h, err := a.Get(key)
	if err != nil {
		return err
	}
	return translateError(a.cat.Unload(ctx, h))
}

// Remove unregisters key.
func (a *Assets) Remove(ctx context.Context, key string) error {
	err := a.cat.RemoveResource(ctx, key)
	a.opts.logger.LogRemove(ctx, key, err)
	return translateError(err)
}

// RemoveFile unregisters a container and every resource it holds.
func (a *Assets) RemoveFile(ctx context.Context, containerKey string) error {
	err := a.cat.RemoveFile(ctx, containerKey)
	a.opts.logger.LogRemove(ctx, containerKey, err)
	return translateError(err)
}

// AbortImports drops all pending asynchronous imports. The import in
// flight completes. Returns the number of aborted imports.
func (a *Assets) AbortImports() int {
	if a.queue == nil {
		return 0
	}
	return a.queue.AbortAll()
}

// Rescan runs discovery and publishes the result.
func (a *Assets) Rescan(ctx context.Context) (discovery.Result, error) {
	if a.gatherer == nil {
		return discovery.Result{}, ErrNoDiscovery
	}
	res, err := a.gatherer.Scan(ctx)
	a.opts.logger.LogDiscovery(ctx, res.Containers, res.Resources, len(res.Collisions), err)
	if err == nil {
		a.mu.Lock()
		a.lastScan = res
		a.mu.Unlock()
	}
	return res, translateError(err)
}

// LastScan returns the result of the last successful Rescan, including the
// one run by Open.
func (a *Assets) LastScan() discovery.Result {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastScan
}

// StartRescan runs discovery in the background.
func (a *Assets) StartRescan(ctx context.Context) (*discovery.Run, error) {
	if a.gatherer == nil {
		return nil, ErrNoDiscovery
	}
	return a.gatherer.Start(ctx), nil
}

// Verify recomputes the integrity hash of every container and returns the
// keys of corrupt ones.
func (a *Assets) Verify(ctx context.Context) ([]string, error) {
	corrupt, err := a.cat.VerifyAll(ctx)
	a.opts.logger.LogVerify(ctx, a.cat.Stats().Containers, corrupt, err)
	return corrupt, translateError(err)
}

// Trim releases decompressed caches no loaded resource needs.
func (a *Assets) Trim() int {
	return a.cat.Trim()
}

// WaitIdle blocks until the import queue has no pending or running jobs.
func (a *Assets) WaitIdle(ctx context.Context) error {
	if a.queue == nil {
		return nil
	}
	t := time.NewTicker(time.Millisecond)
	defer t.Stop()
	for {
		st := a.queue.Stats()
		if st.Pending == 0 && st.InFlight == "" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Close stops the import queue, then disposes every loaded resource and
// closes all containers. Calling Close more than once is a no-op.
func (a *Assets) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		var errs []error
		if a.queue != nil {
			errs = append(errs, a.queue.Close())
		}
		if a.cat != nil {
			errs = append(errs, a.cat.Close(ctx))
		}
		a.closeErr = errors.Join(errs...)
		a.opts.logger.Debug("assets closed", "error", a.closeErr)
	})
	return a.closeErr
}
