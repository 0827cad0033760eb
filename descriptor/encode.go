package descriptor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/hupe1980/respack/blobstore"
	"github.com/hupe1980/respack/codec"
)

// Encode serializes d in the format implied by name.
func Encode(name string, d *Descriptor) ([]byte, error) {
	switch FormatOf(name) {
	case FormatBinary:
		return d.MarshalBinary()
	case FormatJSON, FormatYAML:
		c, _ := codec.ForPath(name)
		return c.Marshal(d)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
}

// Decode parses data in the format implied by name.
func Decode(name string, data []byte) (*Descriptor, error) {
	switch FormatOf(name) {
	case FormatBinary:
		return ReadBinary(bytes.NewReader(data))
	case FormatJSON, FormatYAML:
		c, _ := codec.ForPath(name)
		d := &Descriptor{}
		if err := c.Unmarshal(data, d); err != nil {
			return nil, fmt.Errorf("descriptor %s: %w", name, err)
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
}

// Read loads and decodes a descriptor from store.
func Read(ctx context.Context, store blobstore.BlobStore, name string) (*Descriptor, error) {
	data, err := blobstore.ReadFile(ctx, store, name)
	if err != nil {
		return nil, err
	}
	return Decode(name, data)
}

// Write encodes d and stores it atomically under name.
func Write(ctx context.Context, store blobstore.BlobStore, name string, d *Descriptor) error {
	data, err := Encode(name, d)
	if err != nil {
		return err
	}
	return store.Put(ctx, name, data)
}
