package codec

import (
	"bytes"

	"gopkg.in/yaml.v3"
)

// YAML is a codec backed by gopkg.in/yaml.v3.
//
// Unmarshal rejects unknown fields so typos in authored descriptors surface
// instead of silently dropping data.
type YAML struct{}

// Marshal encodes the value to YAML.
func (YAML) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes the YAML data into v.
func (YAML) Unmarshal(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(v)
}

// Name returns the unique name of the codec ("yaml").
func (YAML) Name() string { return "yaml" }
