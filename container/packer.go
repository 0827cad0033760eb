package container

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/hupe1980/respack/blobstore"
	"github.com/hupe1980/respack/descriptor"
	"github.com/hupe1980/respack/internal/hash"
	"github.com/hupe1980/respack/model"
)

// Entry is one resource to pack.
type Entry struct {
	Key          string
	Type         string
	Flags        string
	Platforms    model.Platform
	Dependencies []string
	Data         []byte
}

// Packer writes containers and their descriptors to a store.
type Packer struct {
	store       blobstore.BlobStore
	compression model.Compression
	format      descriptor.Format
}

// PackerOption configures a Packer.
type PackerOption func(*Packer)

// WithCompression sets the batch codec (default zstd).
func WithCompression(c model.Compression) PackerOption {
	return func(p *Packer) { p.compression = c }
}

// WithDescriptorFormat sets the descriptor encoding (default binary).
func WithDescriptorFormat(f descriptor.Format) PackerOption {
	return func(p *Packer) { p.format = f }
}

// NewPacker creates a packer writing to store.
func NewPacker(store blobstore.BlobStore, optFns ...PackerOption) *Packer {
	p := &Packer{store: store, format: descriptor.FormatBinary}
	for _, fn := range optFns {
		fn(p)
	}
	return p
}

// DescriptorName returns the name the descriptor of dataPath is written to.
func (p *Packer) DescriptorName(dataPath string) string {
	name := descriptor.NameFor(dataPath)
	switch p.format {
	case descriptor.FormatJSON:
		return name + ".json"
	case descriptor.FormatYAML:
		return name + ".yaml"
	default:
		return name
	}
}

// Pack writes a container of the given kind at dataPath and its descriptor
// next to it. The integrity hash is computed over the bytes written.
func (p *Packer) Pack(ctx context.Context, kind model.Kind, dataPath string, entries []Entry) (*descriptor.Descriptor, error) {
	if err := validateEntries(entries); err != nil {
		return nil, err
	}

	d := &descriptor.Descriptor{
		DataPath:      path.Base(dataPath),
		Kind:          kind,
		ResourceCount: len(entries),
		Resources:     make([]descriptor.Entry, 0, len(entries)),
	}

	var raw []byte
	switch kind {
	case model.KindSingle:
		if len(entries) != 1 {
			return nil, fmt.Errorf("%w: single container with %d entries", ErrInvalidContainer, len(entries))
		}
		raw = entries[0].Data
		d.UncompressedSize = int64(len(raw))
		d.Resources = append(d.Resources, toDescriptorEntry(entries[0], 0))
	case model.KindBatchCompressed:
		var stream []byte
		for _, e := range entries {
			d.Resources = append(d.Resources, toDescriptorEntry(e, int64(len(stream))))
			stream = append(stream, e.Data...)
		}
		var err error
		raw, err = compress(p.compression, stream)
		if err != nil {
			return nil, err
		}
		d.Compression = p.compression
		d.UncompressedSize = int64(len(stream))
	case model.KindBatchBlockCompressed:
		return nil, ErrBlockCompressedUnsupported
	default:
		return nil, fmt.Errorf("%w: kind %s", ErrInvalidContainer, kind)
	}

	d.DataSize = int64(len(raw))
	d.Hash = hash.Sum64(raw)

	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := p.writeData(ctx, dataPath, raw); err != nil {
		return nil, fmt.Errorf("write %s: %w", dataPath, err)
	}
	if err := descriptor.Write(ctx, p.store, p.DescriptorName(dataPath), d); err != nil {
		return nil, fmt.Errorf("write descriptor for %s: %w", dataPath, err)
	}
	return d, nil
}

// PackSingle writes one resource as a Single container.
func (p *Packer) PackSingle(ctx context.Context, dataPath string, e Entry) (*descriptor.Descriptor, error) {
	return p.Pack(ctx, model.KindSingle, dataPath, []Entry{e})
}

// PackBatch writes entries as one BatchCompressed container.
func (p *Packer) PackBatch(ctx context.Context, dataPath string, entries []Entry) (*descriptor.Descriptor, error) {
	return p.Pack(ctx, model.KindBatchCompressed, dataPath, entries)
}

func (p *Packer) writeData(ctx context.Context, name string, raw []byte) error {
	w, err := p.store.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func validateEntries(entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("%w: no entries", ErrInvalidContainer)
	}
	var errs []error
	seen := make(map[string]struct{}, len(entries))
	for i, e := range entries {
		if strings.TrimSpace(e.Key) == "" {
			errs = append(errs, fmt.Errorf("%w: entry %d: blank key", ErrInvalidContainer, i))
			continue
		}
		if _, dup := seen[e.Key]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate key %q", ErrInvalidContainer, e.Key))
		}
		seen[e.Key] = struct{}{}
		if len(e.Data) == 0 {
			errs = append(errs, fmt.Errorf("%w: entry %q: empty payload", ErrInvalidContainer, e.Key))
		}
	}
	return errors.Join(errs...)
}

func toDescriptorEntry(e Entry, off int64) descriptor.Entry {
	return descriptor.Entry{
		Key:          e.Key,
		Type:         e.Type,
		Platforms:    e.Platforms,
		Flags:        e.Flags,
		Offset:       off,
		Size:         int64(len(e.Data)),
		Dependencies: append([]string(nil), e.Dependencies...),
	}
}
