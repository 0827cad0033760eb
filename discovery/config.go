package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/respack/blobstore"
	"github.com/hupe1980/respack/blobstore/minio"
	"github.com/hupe1980/respack/blobstore/s3"
	"github.com/hupe1980/respack/codec"
	"github.com/hupe1980/respack/internal/cache"
	"github.com/hupe1980/respack/model"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tailscale/hujson"
)

// Config is the on-disk description of the libraries to scan. It is read
// from a JSON file that may contain comments and trailing commas:
//
//	{
//		// engine content
//		"libraries": [
//			{"tier": "core", "root": "assets/core"},
//			{"tier": "mod", "root": "mods", "name": "mods"},
//			{"tier": "network", "store": "s3", "bucket": "dlc", "prefix": "v2", "cache_mb": 64},
//		],
//		"platform": "vulkan",
//		"workers": 4,
//	}
type Config struct {
	Libraries []LibraryConfig `json:"libraries"`
	Platform  string          `json:"platform,omitempty"`
	Workers   int             `json:"workers,omitempty"`
	Repair    *bool           `json:"repair,omitempty"`
}

// LibraryConfig describes one library.
type LibraryConfig struct {
	Name string `json:"name,omitempty"`
	Tier string `json:"tier"`
	// Store is "local" (default), "s3" or "minio".
	Store string `json:"store,omitempty"`
	// Root is the directory of a local library, relative to the config file.
	Root string `json:"root,omitempty"`

	Bucket   string `json:"bucket,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
	Region   string `json:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
	Secure   bool   `json:"secure,omitempty"`
	// CacheMB enables a block cache of that size in front of remote stores.
	CacheMB int `json:"cache_mb,omitempty"`
}

// LoadConfig reads a JSONC config file. Relative local roots are resolved
// against the directory of the file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)
	for i := range cfg.Libraries {
		lc := &cfg.Libraries[i]
		if lc.storeKind() == "local" && lc.Root != "" && !filepath.IsAbs(lc.Root) {
			lc.Root = filepath.Join(dir, lc.Root)
		}
	}
	return cfg, nil
}

// ParseConfig parses JSONC config data.
func ParseConfig(data []byte) (*Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONC: %w", err)
	}
	var cfg Config
	if err := codec.Default.Unmarshal(standardized, &cfg); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if len(cfg.Libraries) == 0 {
		return nil, ErrNoLibraries
	}
	for i, lc := range cfg.Libraries {
		if _, err := model.ParseTier(lc.Tier); err != nil {
			return nil, fmt.Errorf("library %d: %w", i, err)
		}
		switch lc.storeKind() {
		case "local":
			if lc.Root == "" {
				return nil, fmt.Errorf("library %d: local store needs a root", i)
			}
		case "s3", "minio":
			if lc.Bucket == "" {
				return nil, fmt.Errorf("library %d: %s store needs a bucket", i, lc.Store)
			}
		default:
			return nil, fmt.Errorf("library %d: unknown store %q", i, lc.Store)
		}
	}
	if _, err := model.ParsePlatform(cfg.Platform); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (lc LibraryConfig) storeKind() string {
	if lc.Store == "" {
		return "local"
	}
	return strings.ToLower(lc.Store)
}

// Options returns the gatherer options the config implies.
func (c *Config) Options() []Option {
	var opts []Option
	if p, err := model.ParsePlatform(c.Platform); err == nil {
		opts = append(opts, WithPlatform(p))
	}
	if c.Workers > 0 {
		opts = append(opts, WithWorkers(c.Workers))
	}
	if c.Repair != nil {
		opts = append(opts, WithRepair(*c.Repair))
	}
	return opts
}

// Open creates the stores of all libraries.
func (c *Config) Open(ctx context.Context) ([]Library, error) {
	libs := make([]Library, 0, len(c.Libraries))
	for i, lc := range c.Libraries {
		l, err := lc.open(ctx)
		if err != nil {
			return nil, fmt.Errorf("library %d (%s): %w", i, lc.Name, err)
		}
		libs = append(libs, l)
	}
	return libs, nil
}

func (lc LibraryConfig) open(ctx context.Context) (Library, error) {
	tier, err := model.ParseTier(lc.Tier)
	if err != nil {
		return Library{}, err
	}
	l := Library{Name: lc.Name, Tier: tier}

	var store blobstore.BlobStore
	switch lc.storeKind() {
	case "local":
		store = blobstore.NewLocalStore(lc.Root)
		if l.Name == "" {
			l.Name = lc.Root
		}
	case "s3":
		var opts []s3.Option
		if lc.Prefix != "" {
			opts = append(opts, s3.WithPrefix(lc.Prefix))
		}
		if lc.Region != "" {
			opts = append(opts, s3.WithRegion(lc.Region))
		}
		if lc.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(lc.Endpoint))
		}
		s, err := s3.New(ctx, lc.Bucket, opts...)
		if err != nil {
			return Library{}, err
		}
		store = s
	case "minio":
		client, err := miniogo.New(lc.Endpoint, &miniogo.Options{
			Creds:  credentials.NewEnvMinio(),
			Secure: lc.Secure,
			Region: lc.Region,
		})
		if err != nil {
			return Library{}, err
		}
		store = minio.NewStore(client, lc.Bucket, lc.Prefix)
	default:
		return Library{}, fmt.Errorf("unknown store %q", lc.Store)
	}

	if lc.CacheMB > 0 {
		capacity := int64(lc.CacheMB) << 20
		store = blobstore.NewCachingStore(store, cache.NewLRUBlockCache(capacity, nil), 256<<10)
	}
	l.Store = store
	return l, nil
}
