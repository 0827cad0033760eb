// Package resource implements the Controller that governs shared limits of
// the asset pipeline.
//
// Three budgets are managed:
//
//   - Memory: bytes held by decompressed batch-container caches (fail-fast)
//   - Background workers: concurrent descriptor parsing during discovery
//   - IO: token-bucket throttle applied to container reads
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:     512 << 20,
//	    MaxBackgroundWorkers: 4,
//	    IOLimitBytesPerSec:   200 << 20,
//	})
//
//	if err := rc.AcquireMemory(int64(len(buf))); err != nil {
//	    // ErrMemoryLimitExceeded: caller decides whether to trim caches and retry
//	}
//	defer rc.ReleaseMemory(int64(len(buf)))
//
// All methods are safe for concurrent use, and every method is a no-op on a
// nil *Controller so limits stay optional.
package resource
