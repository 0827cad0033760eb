package model

import (
	"fmt"
	"strings"
)

// Platform is a set of target backends. The zero value means "any".
type Platform uint32

const (
	PlatformVulkan Platform = 1 << iota
	PlatformD3D12
	PlatformMetal
	PlatformOpenGL
)

// PlatformAny applies to every backend.
const PlatformAny Platform = 0

var platformNames = []struct {
	p    Platform
	name string
}{
	{PlatformVulkan, "vulkan"},
	{PlatformD3D12, "d3d12"},
	{PlatformMetal, "metal"},
	{PlatformOpenGL, "opengl"},
}

// Has reports whether all bits of other are set in p.
func (p Platform) Has(other Platform) bool {
	return p&other == other
}

// AppliesTo reports whether a resource tagged with p is usable on active.
func (p Platform) AppliesTo(active Platform) bool {
	if p == PlatformAny || active == PlatformAny {
		return true
	}
	return p&active != 0
}

// String returns a "|"-separated list of platform names.
func (p Platform) String() string {
	if p == PlatformAny {
		return "any"
	}
	var parts []string
	rest := p
	for _, pn := range platformNames {
		if p&pn.p != 0 {
			parts = append(parts, pn.name)
			rest &^= pn.p
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParsePlatform parses a "|" or ","-separated list of platform names.
func ParsePlatform(s string) (Platform, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" || s == "any" {
		return PlatformAny, nil
	}
	var p Platform
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		part = strings.TrimSpace(part)
		found := false
		for _, pn := range platformNames {
			if pn.name == part {
				p |= pn.p
				found = true
				break
			}
		}
		if !found {
			return PlatformAny, fmt.Errorf("unknown platform: %q", part)
		}
	}
	return p, nil
}

// MarshalText implements encoding.TextMarshaler.
func (p Platform) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Platform) UnmarshalText(b []byte) error {
	v, err := ParsePlatform(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
