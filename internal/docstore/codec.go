// Package docstore normalizes the values returned by a DocumentStorage read
// into one canonical document view.
//
// Three historical shapes are recognized: a pre-decoded map, an encoded JSON
// object, and either of those wrapped one level deep under the "document"
// envelope field written by partitioned backends. Every read path must go
// through Normalize before looking at a field.
package docstore

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"
)

// EnvelopeField is the field partitioned backends wrap records under.
const EnvelopeField = "document"

// Shape is the stored variant a document was recognized as.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapePlain
	ShapeEnveloped
)

func (s Shape) String() string {
	switch s {
	case ShapePlain:
		return "plain"
	case ShapeEnveloped:
		return "enveloped"
	default:
		return "unknown"
	}
}

// Document is the canonical, envelope-free view of a stored document.
type Document struct {
	raw   []byte
	shape Shape
}

// Normalize turns whatever the storage read returned for a key into a
// Document. It reports false when raw is missing or of an unrecognized shape;
// callers treat that exactly like "not found".
func Normalize(raw any) (Document, bool) {
	return DefaultOptions.Normalize(raw)
}

// Normalize is like the package-level Normalize but re-encodes pre-decoded
// maps with o.
func (o Options) Normalize(raw any) (Document, bool) {
	var data []byte
	switch v := raw.(type) {
	case nil:
		return Document{}, false
	case map[string]any:
		b, err := o.Marshal(v)
		if err != nil {
			return Document{}, false
		}
		data = b
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return Document{}, false
	}

	data = bytes.TrimSpace(data)
	if !gjson.ValidBytes(data) {
		return Document{}, false
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Document{}, false
	}

	// Unwrap exactly one level, the envelope is never nested in observed data.
	if env := root.Get(EnvelopeField); env.IsObject() {
		return Document{raw: []byte(env.Raw), shape: ShapeEnveloped}, true
	}
	return Document{raw: data, shape: ShapePlain}, true
}

// Shape reports which stored variant the document was recognized as.
func (d Document) Shape() Shape { return d.shape }

// Raw returns the encoded, envelope-free document.
func (d Document) Raw() []byte { return d.raw }

// Get looks up a field using a gjson path (e.g. "threadData.storeState").
func (d Document) Get(path string) gjson.Result {
	return gjson.GetBytes(d.raw, path)
}

// Has reports whether the top-level field exists, even when it is null.
func (d Document) Has(field string) bool {
	return d.Get(field).Exists()
}

// String returns a top-level string field, or "" when missing or not a string.
func (d Document) String(field string) string {
	r := d.Get(field)
	if r.Type != gjson.String {
		return ""
	}
	return r.Str
}

// Decode unmarshals the document into v.
func (d Document) Decode(v any) error {
	return DefaultOptions.Unmarshal(d.raw, v)
}
