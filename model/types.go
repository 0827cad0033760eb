package model

import (
	"fmt"
	"path"
	"strings"
)

// File extensions of on-disk artifacts.
const (
	// DescriptorExt is the extension of binary container descriptors.
	DescriptorExt = ".rdesc"
	// BatchExt is the extension of fully-compressed batch containers.
	BatchExt = ".rpak"
	// BlockBatchExt is reserved for block-compressed batch containers.
	BlockBatchExt = ".rblk"
)

// Kind is the physical layout of a container.
type Kind uint8

const (
	// KindNone marks an unset or unknown layout. Containers of this kind are invalid.
	KindNone Kind = iota
	// KindSingle holds exactly one resource; its byte range is the whole file.
	KindSingle
	// KindBatchCompressed is one compressed stream holding many resources.
	KindBatchCompressed
	// KindBatchBlockCompressed is declared for block-granular access but not supported.
	KindBatchBlockCompressed
)

// String returns the stable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindSingle:
		return "single"
	case KindBatchCompressed:
		return "batch"
	case KindBatchBlockCompressed:
		return "block"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// ParseKind parses the name produced by Kind.String.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return KindNone, nil
	case "single":
		return KindSingle, nil
	case "batch":
		return KindBatchCompressed, nil
	case "block":
		return KindBatchBlockCompressed, nil
	default:
		return KindNone, fmt.Errorf("unknown container kind: %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// KindFromPath infers the container kind from a data file name.
// Any extension other than the batch extensions means a single resource.
func KindFromPath(name string) Kind {
	switch strings.ToLower(path.Ext(name)) {
	case BatchExt:
		return KindBatchCompressed
	case BlockBatchExt:
		return KindBatchBlockCompressed
	case "":
		return KindNone
	default:
		return KindSingle
	}
}

// Tier is the content source a container was discovered in.
type Tier uint8

const (
	TierCore Tier = iota
	TierApplication
	TierMod
	TierRuntime
	TierNetwork
)

// String returns the stable name of the tier.
func (t Tier) String() string {
	switch t {
	case TierCore:
		return "core"
	case TierApplication:
		return "application"
	case TierMod:
		return "mod"
	case TierRuntime:
		return "runtime"
	case TierNetwork:
		return "network"
	default:
		return fmt.Sprintf("unknown(%d)", t)
	}
}

// ParseTier parses the name produced by Tier.String.
func ParseTier(name string) (Tier, error) {
	switch strings.ToLower(name) {
	case "core":
		return TierCore, nil
	case "application", "app":
		return TierApplication, nil
	case "mod":
		return TierMod, nil
	case "runtime":
		return TierRuntime, nil
	case "network":
		return TierNetwork, nil
	default:
		return TierCore, fmt.Errorf("unknown tier: %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(b []byte) error {
	v, err := ParseTier(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// Shadowable reports whether the tier takes part in discovery override resolution.
func (t Tier) Shadowable() bool {
	return t <= TierMod
}

// Overrides reports whether a registration from t replaces one from other.
// Only a strictly higher, non-core shadowable tier overrides.
func (t Tier) Overrides(other Tier) bool {
	return t != TierCore && t.Shadowable() && other.Shadowable() && t > other
}

// Compression is the stream codec of a batch container.
type Compression uint8

const (
	// CompressionZstd is the default batch codec.
	CompressionZstd Compression = iota
	// CompressionLZ4 trades ratio for decode speed.
	CompressionLZ4
)

// String returns the stable name of the codec.
func (c Compression) String() string {
	switch c {
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", c)
	}
}

// ParseCompression parses the name produced by Compression.String.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(name) {
	case "", "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return CompressionZstd, fmt.Errorf("unknown compression: %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (c Compression) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Compression) UnmarshalText(b []byte) error {
	v, err := ParseCompression(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
