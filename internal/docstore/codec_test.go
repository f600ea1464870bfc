package docstore_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/farum-chat/internal/docstore"
)

func TestNormalizeShapesYieldSameFields(t *testing.T) {
	plain := `{"id":"thread-index:alice","userId":"alice","threadData":{"storeState":"chat-history-abc"}}`

	cases := []struct {
		name  string
		raw   any
		shape docstore.Shape
	}{
		{"encoded bytes", []byte(plain), docstore.ShapePlain},
		{"raw message", json.RawMessage(plain), docstore.ShapePlain},
		{"string", plain, docstore.ShapePlain},
		{"native map", map[string]any{
			"id":         "thread-index:alice",
			"userId":     "alice",
			"threadData": map[string]any{"storeState": "chat-history-abc"},
		}, docstore.ShapePlain},
		{"enveloped bytes", []byte(`{"partition":"alice","document":` + plain + `}`), docstore.ShapeEnveloped},
		{"enveloped map", map[string]any{
			"document": map[string]any{
				"id":         "thread-index:alice",
				"userId":     "alice",
				"threadData": map[string]any{"storeState": "chat-history-abc"},
			},
		}, docstore.ShapeEnveloped},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc, ok := docstore.Normalize(tc.raw)
			require.True(t, ok)
			assert.Equal(t, tc.shape, doc.Shape())
			assert.Equal(t, "alice", doc.String("userId"))
			assert.Equal(t, "thread-index:alice", doc.String("id"))
			assert.Equal(t, "chat-history-abc", doc.Get("threadData.storeState").String())
			assert.False(t, doc.Has(docstore.EnvelopeField))
		})
	}
}

func TestNormalizeUnwrapsOnlyOneLevel(t *testing.T) {
	doc, ok := docstore.Normalize(`{"document":{"document":{"userId":"bob"}}}`)
	require.True(t, ok)
	assert.Equal(t, docstore.ShapeEnveloped, doc.Shape())
	assert.True(t, doc.Has(docstore.EnvelopeField))
	assert.Equal(t, "bob", doc.Get("document.userId").String())
}

func TestNormalizeAbsent(t *testing.T) {
	for name, raw := range map[string]any{
		"nil":          nil,
		"nil bytes":    []byte(nil),
		"json null":    json.RawMessage("null"),
		"array":        `["a","b"]`,
		"invalid json": []byte(`{"userId":`),
		"number":       42,
		"struct":       struct{ A string }{"x"},
	} {
		t.Run(name, func(t *testing.T) {
			_, ok := docstore.Normalize(raw)
			assert.False(t, ok)
		})
	}
}

func TestDocumentDecode(t *testing.T) {
	doc, ok := docstore.Normalize(map[string]any{"userId": "alice", "count": 3})
	require.True(t, ok)

	var out struct {
		UserID string `json:"userId"`
		Count  int    `json:"count"`
	}
	require.NoError(t, doc.Decode(&out))
	assert.Equal(t, "alice", out.UserID)
	assert.Equal(t, 3, out.Count)
}

func TestOptionsMarshalEscapeHTML(t *testing.T) {
	v := map[string]string{"Text": "<b>hi</b>"}

	b, err := docstore.Options{}.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"Text":"<b>hi</b>"}`, string(b))

	b, err = docstore.Options{EscapeHTML: true}.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"Text":"\u003cb\u003ehi\u003c/b\u003e"}`, string(b))
}

func TestOptionsUseNumber(t *testing.T) {
	var out map[string]any
	require.NoError(t, docstore.Options{UseNumber: true}.Unmarshal([]byte(`{"n":12}`), &out))
	assert.Equal(t, json.Number("12"), out["n"])
}

func TestOptionsBytesAndMap(t *testing.T) {
	o := docstore.DefaultOptions

	b, err := o.Bytes(map[string]any{"a": "b"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"b"}`, string(b))

	b, err = o.Bytes(`{"x":1}`)
	require.NoError(t, err)
	assert.Equal(t, `{"x":1}`, string(b))

	_, err = o.Bytes(nil)
	assert.Error(t, err)

	m, err := o.Map([]byte(`{"userId":"alice"}`))
	require.NoError(t, err)
	assert.Equal(t, "alice", m["userId"])

	_, err = o.Map([]byte(`null`))
	assert.Error(t, err)
	_, err = o.Map([]byte(`[1]`))
	assert.Error(t, err)
}
