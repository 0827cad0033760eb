package descriptor

import (
	"path"
	"strings"

	"github.com/hupe1980/respack/internal/conv"
	"github.com/hupe1980/respack/model"
)

// Descriptor describes one container and the resources it holds.
type Descriptor struct {
	// DataPath is the container data file, relative to the descriptor's directory.
	DataPath string `json:"data" yaml:"data"`
	// Kind is the container layout.
	Kind model.Kind `json:"kind" yaml:"kind"`
	// Compression is the batch stream codec. Ignored for single containers.
	Compression model.Compression `json:"compression,omitempty" yaml:"compression,omitempty"`
	// DataSize is the raw (on-disk) size of the data file in bytes.
	DataSize int64 `json:"data_size" yaml:"data_size"`
	// Hash is the xxHash64 of the raw data file bytes.
	Hash uint64 `json:"hash" yaml:"hash"`
	// UncompressedSize is the size of the decompressed stream. Equals
	// DataSize for single containers.
	UncompressedSize int64 `json:"uncompressed_size" yaml:"uncompressed_size"`
	// BlockSize and BlockCount are reserved for block-compressed batches.
	BlockSize  uint32 `json:"block_size,omitempty" yaml:"block_size,omitempty"`
	BlockCount uint32 `json:"block_count,omitempty" yaml:"block_count,omitempty"`
	// ResourceCount is the declared number of entries.
	ResourceCount int `json:"resource_count" yaml:"resource_count"`
	// Resources lists the contained resources in container order.
	Resources []Entry `json:"resources" yaml:"resources"`
}

// Entry describes one resource inside a container.
type Entry struct {
	Key          string         `json:"key" yaml:"key"`
	Type         string         `json:"type" yaml:"type"`
	Platforms    model.Platform `json:"platforms,omitempty" yaml:"platforms,omitempty"`
	Flags        string         `json:"flags,omitempty" yaml:"flags,omitempty"`
	Offset       int64          `json:"offset" yaml:"offset"`
	Size         int64          `json:"size" yaml:"size"`
	Dependencies []string       `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// End returns the exclusive end offset of the entry. ok is false when the
// range is negative or its end does not fit an int64.
func (e Entry) End() (end int64, ok bool) {
	return conv.End(e.Offset, e.Size)
}

// Within reports whether the entry is a non-empty range inside [0, limit).
func (e Entry) Within(limit int64) bool {
	return e.Size > 0 && conv.RangeWithin(e.Offset, e.Size, limit)
}

// Format is a descriptor encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatBinary
	FormatJSON
	FormatYAML
)

// FormatOf returns the encoding implied by a descriptor file name.
func FormatOf(name string) Format {
	switch {
	case strings.HasSuffix(name, model.DescriptorExt):
		return FormatBinary
	case strings.HasSuffix(name, model.DescriptorExt+".json"):
		return FormatJSON
	case strings.HasSuffix(name, model.DescriptorExt+".yaml"), strings.HasSuffix(name, model.DescriptorExt+".yml"):
		return FormatYAML
	default:
		return FormatUnknown
	}
}

// IsDescriptor reports whether name is a descriptor file in any encoding.
func IsDescriptor(name string) bool {
	return FormatOf(name) != FormatUnknown
}

// NameFor returns the binary descriptor name for a data file.
func NameFor(dataPath string) string {
	return dataPath + model.DescriptorExt
}

// ResolveDataPath joins the relative data path onto the descriptor's directory.
// The result is a slash-separated store name.
func (d *Descriptor) ResolveDataPath(descriptorName string) string {
	if path.IsAbs(d.DataPath) {
		return strings.TrimPrefix(path.Clean(d.DataPath), "/")
	}
	return path.Join(path.Dir(descriptorName), d.DataPath)
}

// Clone returns a deep copy.
func (d *Descriptor) Clone() *Descriptor {
	c := *d
	c.Resources = make([]Entry, len(d.Resources))
	for i, e := range d.Resources {
		e.Dependencies = append([]string(nil), e.Dependencies...)
		c.Resources[i] = e
	}
	return &c
}
