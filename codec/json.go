package codec

import (
	"encoding/json"
)

// JSON is the standard-library JSON codec.
//
// Output is indented so authored descriptors stay diffable.
type JSON struct{}

// Marshal encodes the value to JSON.
func (JSON) Marshal(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }

// Unmarshal decodes the JSON data into v.
func (JSON) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Name returns the unique name of the codec ("json").
func (JSON) Name() string { return "json" }

// Default is the codec used for ".json" descriptors.
var Default Codec = GoJSON{}
