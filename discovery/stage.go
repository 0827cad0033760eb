package discovery

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/respack/catalog"
	"github.com/hupe1980/respack/container"
	"github.com/hupe1980/respack/descriptor"
	"github.com/hupe1980/respack/internal/hash"
	"github.com/hupe1980/respack/model"
	"github.com/hupe1980/respack/progress"
)

// candidate is a container in the staging area. live marks the entries
// that survived shadowing and collision checks.
type candidate struct {
	lib      Library
	name     string
	desc     *descriptor.Descriptor
	dataPath string
	live     []bool
}

func (c *candidate) liveEntries() []descriptor.Entry {
	var out []descriptor.Entry
	for i, e := range c.desc.Resources {
		if c.live[i] {
			out = append(out, e)
		}
	}
	return out
}

// signature identifies a registered container and its resource key set.
type signature struct {
	hash uint64
	keys uint64
}

func (c *candidate) signature() signature {
	var keys []string
	for _, e := range c.liveEntries() {
		keys = append(keys, e.Key)
	}
	return signature{hash: c.desc.Hash, keys: hash.Sum64([]byte(strings.Join(keys, "\x00")))}
}

type owner struct {
	c   *candidate
	idx int
}

type staging struct {
	candidates []*candidate
	byPath     map[string]*candidate
}

// stage resolves key collisions in scan order. Parsed descriptors arrive in
// library order (sorted by tier) and name order within a library.
func (g *Gatherer) stage(in []parsed, res *Result) *staging {
	st := &staging{byPath: make(map[string]*candidate)}
	keys := make(map[string]owner)

	for _, p := range in {
		l := g.libs[p.lib]
		if p.err != nil {
			res.Skipped++
			g.opts.logger.Warn("skipped descriptor", "descriptor", p.name, "library", l.String(), "error", p.err)
			continue
		}
		if p.repaired {
			res.Repaired++
		}
		if prev, ok := st.byPath[p.dataPath]; ok {
			res.Skipped++
			g.opts.logger.Warn("skipped descriptor", "descriptor", p.name, "library", l.String(),
				"error", fmt.Sprintf("data file %s already described by %s", p.dataPath, prev.name))
			continue
		}

		c := &candidate{lib: l, name: p.name, desc: p.desc, dataPath: p.dataPath, live: make([]bool, len(p.desc.Resources))}
		for i, e := range p.desc.Resources {
			if !e.Platforms.AppliesTo(g.opts.platform) {
				res.PlatformSkipped++
				continue
			}
			if prev, ok := keys[e.Key]; ok {
				if !l.Tier.Overrides(prev.c.lib.Tier) {
					ce := &CollisionError{Key: e.Key, Tier: l.Tier, Existing: prev.c.name, Rejected: p.name}
					res.Collisions = append(res.Collisions, ce)
					g.opts.logger.Warn("key collision", "key", e.Key, "tier", l.Tier.String(), "error", ce)
					continue
				}
				prev.c.live[prev.idx] = false
				res.Shadowed++
				g.opts.logger.Debug("shadowed", "key", e.Key, "tier", l.Tier.String(), "by", p.name, "was", prev.c.name)
			}
			keys[e.Key] = owner{c: c, idx: i}
			c.live[i] = true
		}

		st.byPath[p.dataPath] = c
		st.candidates = append(st.candidates, c)
	}

	// Drop candidates whose every entry was shadowed or skipped.
	st.candidates = slices.DeleteFunc(st.candidates, func(c *candidate) bool {
		if slices.Contains(c.live, true) {
			return false
		}
		delete(st.byPath, c.dataPath)
		return true
	})
	return st
}

// register reconciles the staging area with the previous scan: unchanged
// containers are kept, vanished or changed ones removed, the rest published
// with a single catalog swap.
func (g *Gatherer) register(ctx context.Context, ph *progress.Phase, st *staging, res *Result) error {
	owned := make(map[string]signature, len(st.candidates))
	sigs := make(map[string]signature, len(st.candidates))
	for _, c := range st.candidates {
		sigs[c.dataPath] = c.signature()
	}

	var stale []string
	for key, sig := range g.owned {
		if cur, ok := sigs[key]; ok && cur == sig {
			if _, registered := g.cat.Container(key); registered {
				owned[key] = sig
				res.Kept++
				continue
			}
		}
		stale = append(stale, key)
	}
	slices.Sort(stale)

	var toPublish []*candidate
	for _, c := range st.candidates {
		if _, kept := owned[c.dataPath]; !kept {
			toPublish = append(toPublish, c)
		}
	}
	ph.AddTotal(int64(len(stale) + len(toPublish)))

	blocked := make(map[string]struct{})
	for _, key := range stale {
		err := g.cat.RemoveFile(ctx, key)
		switch {
		case err == nil, errors.Is(err, catalog.ErrNotFound):
			res.Removed++
			ph.Done(1)
		default:
			// Keep the old registration; the next scan retries.
			owned[key] = g.owned[key]
			blocked[key] = struct{}{}
			ph.Fail(1)
			g.opts.logger.Warn("could not remove container", "container", key, "error", err)
		}
	}

	var files []catalog.File
	var published []*candidate
	for _, c := range toPublish {
		if _, ok := blocked[c.dataPath]; ok {
			ph.Fail(1)
			continue
		}
		f, ok := g.file(c, res)
		if !ok {
			ph.Fail(1)
			continue
		}
		files = append(files, f)
		published = append(published, c)
	}

	if len(files) > 0 {
		if _, err := g.cat.Publish(files); err != nil {
			g.owned = owned
			return fmt.Errorf("publish: %w", err)
		}
	}
	ph.Done(int64(len(files)))
	for _, c := range published {
		owned[c.dataPath] = c.signature()
	}
	res.Added = len(published)

	g.owned = owned
	res.Containers = len(owned)
	for key := range owned {
		res.Resources += len(g.cat.HandlesOf(key))
	}
	return nil
}

// file builds the catalog registration of c. Entries whose key is held by
// something discovery does not own, e.g. a runtime resource, are dropped.
func (g *Gatherer) file(c *candidate, res *Result) (catalog.File, bool) {
	if _, ok := g.cat.Container(c.dataPath); ok {
		res.Skipped++
		g.opts.logger.Warn("skipped container", "container", c.dataPath, "descriptor", c.name,
			"error", "container key already registered")
		return catalog.File{}, false
	}

	var (
		keys  []string
		infos []catalog.ResourceInfo
	)
	for i, e := range c.desc.Resources {
		if !c.live[i] {
			continue
		}
		if h, ok := g.cat.Get(e.Key); ok {
			ce := &CollisionError{Key: e.Key, Tier: h.Tier(), Existing: h.Container(), Rejected: c.name}
			res.Collisions = append(res.Collisions, ce)
			g.opts.logger.Warn("key collision", "key", e.Key, "tier", h.Tier().String(), "error", ce)
			c.live[i] = false
			continue
		}
		keys = append(keys, e.Key)
		infos = append(infos, catalog.ResourceInfo{
			Key:          e.Key,
			Type:         e.Type,
			Flags:        e.Flags,
			Offset:       e.Offset,
			Size:         e.Size,
			Dependencies: e.Dependencies,
			Platforms:    e.Platforms,
		})
	}
	if len(infos) == 0 {
		return catalog.File{}, false
	}

	if c.desc.Kind == model.KindBatchBlockCompressed {
		g.opts.logger.Warn("block-compressed container registered; its resources cannot be loaded",
			"container", c.dataPath, "descriptor", c.name)
	}
	ct, err := container.FromDescriptor(c.lib.Store, c.dataPath, c.lib.Tier, c.desc, keys, g.opts.controller)
	if err != nil {
		res.Skipped++
		g.opts.logger.Warn("skipped container", "container", c.dataPath, "descriptor", c.name, "error", err)
		return catalog.File{}, false
	}
	return catalog.File{Container: ct, Resources: infos}, true
}
