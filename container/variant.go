package container

import (
	"math/bits"
	"path"
	"strings"

	"github.com/hupe1980/respack/model"
)

// VariantRules maps a resource type to the data file extension used on each
// platform. Types without a rule have no platform variants.
type VariantRules map[string]map[model.Platform]string

// DefaultVariants covers compiled shader payloads.
var DefaultVariants = VariantRules{
	"shader": {
		model.PlatformVulkan: ".spv",
		model.PlatformD3D12:  ".dxil",
		model.PlatformMetal:  ".metallib",
		model.PlatformOpenGL: ".glsl",
	},
}

// Resolve returns the data path of the platform variant of dataPath for a
// resource of resourceType. The extension is substituted; the file content
// is never inspected. If active names several platforms the lowest bit
// wins. Paths are returned unchanged when no rule applies.
func (r VariantRules) Resolve(dataPath, resourceType string, active model.Platform) string {
	if active == model.PlatformAny || r == nil {
		return dataPath
	}
	exts, ok := r[resourceType]
	if !ok {
		return dataPath
	}
	p := model.Platform(1) << bits.TrailingZeros32(uint32(active))
	ext, ok := exts[p]
	if !ok {
		return dataPath
	}
	return strings.TrimSuffix(dataPath, path.Ext(dataPath)) + ext
}
