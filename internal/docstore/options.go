package docstore

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Options is the JSON wire configuration shared by every component that
// encodes stored documents or decodes messages for display.
type Options struct {
	// EscapeHTML escapes <, > and & inside strings.
	EscapeHTML bool
	// UseNumber decodes numbers into json.Number instead of float64.
	UseNumber bool
}

// DefaultOptions is the configuration used when none is supplied.
var DefaultOptions = Options{}

// Marshal encodes v without a trailing newline.
func (o Options) Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(o.EscapeHTML)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Unmarshal decodes data into v.
func (o Options) Unmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if o.UseNumber {
		dec.UseNumber()
	}
	return dec.Decode(v)
}

// Bytes returns the encoded form of a raw storage value. Encoded values are
// returned as is; anything else (typically a pre-decoded map) is marshaled.
func (o Options) Bytes(raw any) ([]byte, error) {
	switch v := raw.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	case string:
		return []byte(v), nil
	case nil:
		return nil, fmt.Errorf("nil document")
	default:
		return o.Marshal(v)
	}
}

// Map decodes a raw storage value into a native map, for backends that store
// documents as field maps.
func (o Options) Map(raw any) (map[string]any, error) {
	if m, ok := raw.(map[string]any); ok {
		return m, nil
	}
	b, err := o.Bytes(raw)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := o.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("document is not an object")
	}
	return m, nil
}
