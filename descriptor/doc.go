// Package descriptor defines the per-container descriptor file.
//
// A descriptor sits next to its container data file and records everything
// discovery needs to register the container without opening it: the
// relative data path, container kind, sizes, the 64-bit integrity hash and
// one Entry per contained resource.
//
// Three encodings are supported and selected by file name:
//
//	name.rdesc       binary (magic, version, CRC32C, payload)
//	name.rdesc.json  JSON authoring form
//	name.rdesc.yaml  YAML authoring form
package descriptor
