package discovery

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/respack/blobstore"
	"github.com/hupe1980/respack/catalog"
	"github.com/hupe1980/respack/container"
	"github.com/hupe1980/respack/descriptor"
	"github.com/hupe1980/respack/model"
	"github.com/hupe1980/respack/progress"
	"golang.org/x/sync/errgroup"
)

// Progress phase names reported by a scan.
const (
	PhaseList     = "list"
	PhaseParse    = "parse"
	PhaseRegister = "register"
)

// Library is one content source.
type Library struct {
	// Name labels the library in logs. Defaults to Root.
	Name string
	Tier model.Tier
	// Root is the store prefix to scan. Empty scans the whole store.
	Root  string
	Store blobstore.BlobStore
}

func (l Library) String() string {
	if l.Name != "" {
		return l.Name
	}
	if l.Root != "" {
		return l.Root
	}
	return l.Tier.String()
}

func (l Library) contains(name string) bool {
	root := strings.Trim(l.Root, "/")
	return root == "" || name == root || strings.HasPrefix(name, root+"/")
}

// Result summarizes a scan.
type Result struct {
	// Containers and Resources count what discovery owns after the scan.
	Containers int
	Resources  int

	Added   int // containers published by this scan
	Removed int // containers removed because they vanished or changed
	Kept    int // containers unchanged since the previous scan

	Descriptors     int // descriptor files found
	Skipped         int // descriptors skipped as unreadable or unrepairable
	Repaired        int // descriptors registered after repair
	Shadowed        int // keys replaced by a higher tier
	PlatformSkipped int // entries not applicable to the active platform

	Collisions []*CollisionError
}

// Err joins the collisions of the scan, nil if there were none.
func (r Result) Err() error {
	errs := make([]error, len(r.Collisions))
	for i, c := range r.Collisions {
		errs[i] = c
	}
	return errors.Join(errs...)
}

// Gatherer scans libraries into a catalog. Scans are serialized.
type Gatherer struct {
	cat  *catalog.Catalog
	libs []Library
	opts options

	mu    sync.Mutex
	owned map[string]signature // containers registered by previous scans
}

// New creates a gatherer for cat. Libraries are scanned in tier order;
// libraries of the same tier keep their given order.
func New(cat *catalog.Catalog, libs []Library, optFns ...Option) (*Gatherer, error) {
	if len(libs) == 0 {
		return nil, ErrNoLibraries
	}
	for _, l := range libs {
		switch {
		case l.Store == nil:
			return nil, fmt.Errorf("%w: %s: no store", ErrInvalidLibrary, l)
		case l.Tier == model.TierRuntime:
			return nil, fmt.Errorf("%w: %s: runtime tier", ErrInvalidLibrary, l)
		case l.Tier > model.TierNetwork:
			return nil, fmt.Errorf("%w: %s: tier %s", ErrInvalidLibrary, l, l.Tier)
		}
	}

	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	sorted := slices.Clone(libs)
	slices.SortStableFunc(sorted, func(a, b Library) int { return cmp.Compare(a.Tier, b.Tier) })

	return &Gatherer{
		cat:   cat,
		libs:  sorted,
		opts:  opts,
		owned: make(map[string]signature),
	}, nil
}

// Libraries returns the libraries in scan order.
func (g *Gatherer) Libraries() []Library { return slices.Clone(g.libs) }

// Scan walks all libraries and publishes the result into the catalog.
// Cancelling ctx before the register phase leaves the catalog untouched.
func (g *Gatherer) Scan(ctx context.Context) (Result, error) {
	return g.scan(ctx, progress.New())
}

func (g *Gatherer) scan(ctx context.Context, p *progress.Progress) (res Result, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	start := time.Now()
	defer func() {
		g.opts.metrics.RecordDiscovery(time.Since(start), res.Containers, res.Resources, res.Skipped, err)
		if err != nil {
			g.opts.logger.Warn("discovery failed", "error", err)
			return
		}
		g.opts.logger.Info("discovery finished",
			"containers", res.Containers, "resources", res.Resources,
			"added", res.Added, "removed", res.Removed, "kept", res.Kept,
			"skipped", res.Skipped, "repaired", res.Repaired, "shadowed", res.Shadowed,
			"collisions", len(res.Collisions), "duration", time.Since(start))
	}()

	found, err := g.list(ctx, p.Phase(PhaseList))
	if err != nil {
		return res, err
	}
	res.Descriptors = len(found)

	parsed, err := g.parseAll(ctx, p.Phase(PhaseParse), found)
	if err != nil {
		return res, err
	}

	st := g.stage(parsed, &res)

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if err := g.register(context.WithoutCancel(ctx), p.Phase(PhaseRegister), st, &res); err != nil {
		return res, err
	}
	return res, nil
}

type found struct {
	lib  int
	name string
}

func (g *Gatherer) list(ctx context.Context, ph *progress.Phase) ([]found, error) {
	ph.AddTotal(int64(len(g.libs)))

	var out []found
	for i, l := range g.libs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		names, err := l.Store.List(ctx, l.Root)
		if err != nil {
			ph.Fail(1)
			return nil, fmt.Errorf("list %s: %w", l, err)
		}
		slices.Sort(names)
		var n int
		for _, name := range names {
			if l.contains(name) && descriptor.IsDescriptor(name) {
				out = append(out, found{lib: i, name: name})
				n++
			}
		}
		ph.Done(1)
		g.opts.logger.Debug("listed library", "library", l.String(), "tier", l.Tier.String(), "descriptors", n)
	}
	return out, nil
}

// parsed is a descriptor ready for staging.
type parsed struct {
	lib      int
	name     string
	desc     *descriptor.Descriptor
	dataPath string
	repaired bool
	err      error
}

func (g *Gatherer) parseAll(ctx context.Context, ph *progress.Phase, in []found) ([]parsed, error) {
	ph.AddTotal(int64(len(in)))
	out := make([]parsed, len(in))

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.opts.workers)
	for i, f := range in {
		eg.Go(func() error {
			if err := g.opts.controller.AcquireBackground(ctx); err != nil {
				return err
			}
			defer g.opts.controller.ReleaseBackground()

			out[i] = g.parse(ctx, f)
			if out[i].err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				ph.Fail(1)
				return nil
			}
			ph.Done(1)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *Gatherer) parse(ctx context.Context, f found) parsed {
	l := g.libs[f.lib]
	p := parsed{lib: f.lib, name: f.name}

	d, err := descriptor.Read(ctx, l.Store, f.name)
	if err != nil {
		p.err = err
		return p
	}
	dataPath := d.ResolveDataPath(f.name)

	if verr := d.Validate(); verr != nil {
		if !g.opts.repair {
			p.err = verr
			return p
		}
		notes, rerr := d.Repair(func() (int64, error) { return blobSize(ctx, l.Store, dataPath) })
		if rerr != nil {
			p.err = rerr
			return p
		}
		p.repaired = true
		g.opts.logger.Info("repaired descriptor", "descriptor", f.name, "notes", notes)
	}

	if d.Kind == model.KindSingle && len(d.Resources) == 1 {
		dataPath = g.resolveVariant(ctx, l, d, dataPath)
	}

	p.desc = d
	p.dataPath = dataPath
	return p
}

// resolveVariant substitutes the platform variant of a single container's
// data file if the store holds one. Size and hash are taken from the
// variant file.
func (g *Gatherer) resolveVariant(ctx context.Context, l Library, d *descriptor.Descriptor, dataPath string) string {
	e := d.Resources[0]
	variant := g.opts.variants.Resolve(dataPath, e.Type, g.opts.platform)
	if variant == dataPath {
		return dataPath
	}

	size, err := blobSize(ctx, l.Store, variant)
	if err != nil {
		g.opts.logger.Debug("no platform variant", "key", e.Key, "variant", variant, "error", err)
		return dataPath
	}
	ct, err := container.New(container.Config{
		Key: variant, Store: l.Store, Kind: model.KindSingle, Size: size, Resources: []string{e.Key},
	})
	if err != nil {
		return dataPath
	}
	defer ct.Close()
	sum, err := ct.ComputeHash(ctx)
	if err != nil {
		g.opts.logger.Warn("hash platform variant", "key", e.Key, "variant", variant, "error", err)
		return dataPath
	}

	d.DataSize = size
	d.UncompressedSize = size
	d.Hash = sum
	d.Resources[0].Offset, d.Resources[0].Size = 0, size
	g.opts.logger.Debug("platform variant", "key", e.Key, "variant", variant, "platform", g.opts.platform.String())
	return variant
}

func blobSize(ctx context.Context, store blobstore.BlobStore, name string) (int64, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return 0, err
	}
	defer b.Close()
	return b.Size(), nil
}
