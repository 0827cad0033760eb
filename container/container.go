package container

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/respack/blobstore"
	"github.com/hupe1980/respack/descriptor"
	"github.com/hupe1980/respack/internal/resource"
	"github.com/hupe1980/respack/model"
	"golang.org/x/sync/singleflight"
)

// Config describes a container to create with New.
type Config struct {
	// Key is the canonical store name of the data file.
	Key   string
	Store blobstore.BlobStore

	Kind        model.Kind
	Tier        model.Tier
	Compression model.Compression

	// Size is the raw size of the data file.
	Size int64
	// UncompressedSize is the decompressed stream size of a batch.
	UncompressedSize int64
	BlockSize        uint32
	BlockCount       uint32
	Hash             uint64

	// Resources lists the contained resource keys in container order.
	Resources []string

	// Controller accounts decompressed cache memory and throttles reads. Optional.
	Controller *resource.Controller
}

// Container is one data blob holding one or more resources.
// It is safe for concurrent use.
type Container struct {
	key         string
	store       blobstore.BlobStore
	kind        model.Kind
	tier        model.Tier
	compression model.Compression
	size        int64
	uncompSize  int64
	blockSize   uint32
	blockCount  uint32
	hash        uint64
	resources   []string
	rc          *resource.Controller

	sf    singleflight.Group
	cache atomic.Pointer[[]byte]

	mu     sync.RWMutex // guards blob and closed
	blob   blobstore.Blob
	closed bool
}

// New validates cfg and creates a container. No I/O happens until the
// first read.
func New(cfg Config) (*Container, error) {
	switch {
	case strings.TrimSpace(cfg.Key) == "":
		return nil, fmt.Errorf("%w: blank key", ErrInvalidContainer)
	case cfg.Store == nil:
		return nil, fmt.Errorf("%w: %s: no store", ErrInvalidContainer, cfg.Key)
	case cfg.Kind == model.KindNone:
		return nil, fmt.Errorf("%w: %s: kind none", ErrInvalidContainer, cfg.Key)
	case cfg.Size <= 0:
		return nil, fmt.Errorf("%w: %s: size %d", ErrInvalidContainer, cfg.Key, cfg.Size)
	case len(cfg.Resources) == 0:
		return nil, fmt.Errorf("%w: %s: no resources", ErrInvalidContainer, cfg.Key)
	case cfg.Kind == model.KindSingle && len(cfg.Resources) != 1:
		return nil, fmt.Errorf("%w: %s: single container with %d resources", ErrInvalidContainer, cfg.Key, len(cfg.Resources))
	}

	uncomp := cfg.UncompressedSize
	if cfg.Kind == model.KindSingle {
		uncomp = cfg.Size
	}

	return &Container{
		key:         cfg.Key,
		store:       cfg.Store,
		kind:        cfg.Kind,
		tier:        cfg.Tier,
		compression: cfg.Compression,
		size:        cfg.Size,
		uncompSize:  uncomp,
		blockSize:   cfg.BlockSize,
		blockCount:  cfg.BlockCount,
		hash:        cfg.Hash,
		resources:   slices.Clone(cfg.Resources),
		rc:          cfg.Controller,
	}, nil
}

// FromDescriptor creates a container for the data file key described by d.
// Only entries listed in keys are recorded as contained resources; pass nil
// to take all entries.
func FromDescriptor(store blobstore.BlobStore, key string, tier model.Tier, d *descriptor.Descriptor, keys []string, rc *resource.Controller) (*Container, error) {
	if keys == nil {
		keys = make([]string, 0, len(d.Resources))
		for _, e := range d.Resources {
			keys = append(keys, e.Key)
		}
	}
	return New(Config{
		Key:              key,
		Store:            store,
		Kind:             d.Kind,
		Tier:             tier,
		Compression:      d.Compression,
		Size:             d.DataSize,
		UncompressedSize: d.UncompressedSize,
		BlockSize:        d.BlockSize,
		BlockCount:       d.BlockCount,
		Hash:             d.Hash,
		Resources:        keys,
		Controller:       rc,
	})
}

// Key returns the canonical data file name.
func (c *Container) Key() string { return c.key }

// Kind returns the container layout.
func (c *Container) Kind() model.Kind { return c.kind }

// Tier returns the content tier the container was registered from.
func (c *Container) Tier() model.Tier { return c.tier }

// Compression returns the batch stream codec.
func (c *Container) Compression() model.Compression { return c.compression }

// Size returns the raw file size.
func (c *Container) Size() int64 { return c.size }

// UncompressedSize returns the logical content size.
func (c *Container) UncompressedSize() int64 { return c.uncompSize }

// Blocks returns the reserved block size and count.
func (c *Container) Blocks() (size, count uint32) { return c.blockSize, c.blockCount }

// Hash returns the stored integrity hash.
func (c *Container) Hash() uint64 { return c.hash }

// Resources returns a copy of the contained resource keys.
func (c *Container) Resources() []string { return slices.Clone(c.resources) }

// Cached reports whether a decompressed batch buffer is held.
func (c *Container) Cached() bool { return c.cache.Load() != nil }

// Close releases the cache and the underlying blob. Reads after Close fail.
func (c *Container) Close() error {
	c.ReleaseCache()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.blob != nil {
		err := c.blob.Close()
		c.blob = nil
		return err
	}
	return nil
}

func (c *Container) String() string {
	return fmt.Sprintf("%s(%s,%s,%d resources)", c.key, c.kind, c.tier, len(c.resources))
}
