package document_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/esodm/document"
)

// --- Build / Set ---

func TestDocument_SetPreservesInsertionOrder(t *testing.T) {
	t.Helper()

	d := document.New().
		Set("zebra", 1).
		Set("apple", 2).
		Set("mango", 3)

	assert.Equal(t, []string{"zebra", "apple", "mango"}, d.Keys())
}

func TestDocument_SetOverwriteKeepsPosition(t *testing.T) {
	t.Helper()

	d := document.New().
		Set("first", 1).
		Set("second", 2)
	d.Set("first", 10)

	assert.Equal(t, []string{"first", "second"}, d.Keys())
	v, ok := d.Get("first")
	require.True(t, ok)
	assert.Equal(t, 10, v)
}

func TestDocument_GetHasDeleteLen(t *testing.T) {
	t.Helper()

	d := document.New().Set("a", "x").Set("b", "y")

	assert.True(t, d.Has("a"))
	assert.False(t, d.Has("missing"))
	assert.Equal(t, 2, d.Len())

	d.Delete("a")
	assert.False(t, d.Has("a"))
	assert.Equal(t, 1, d.Len())
}

// --- Serialization ---

func TestDocument_ToJSONOrder(t *testing.T) {
	t.Helper()

	d := document.New().
		Set("type", "text").
		Set("analyzer", "standard").
		Set("fields", document.New().Set("raw", document.New().Set("type", "keyword")))

	got, err := d.ToJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"type":"text","analyzer":"standard","fields":{"raw":{"type":"keyword"}}}`, got)
}

func TestDocument_ParseRoundTrip(t *testing.T) {
	t.Helper()

	d := document.New().
		Set("dynamic", "strict").
		Set("properties", document.New().
			Set("title", document.New().Set("type", "text")).
			Set("tags", []any{"a", "b"}))

	first, err := d.ToJSON()
	require.NoError(t, err)

	parsed, err := document.Parse(first)
	require.NoError(t, err)

	second, err := parsed.ToJSON()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDocument_ParsePreservesKeyOrder(t *testing.T) {
	t.Helper()

	parsed, err := document.Parse(`{"z":1,"a":{"nested":true},"m":[{"x":1,"w":2}]}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"z", "a", "m"}, parsed.Keys())

	nested := parsed.GetDocument("a")
	require.NotNil(t, nested, "nested object did not decode as a document")
	assert.True(t, nested.Has("nested"))
}

func TestDocument_ParseRejectsInvalidJSON(t *testing.T) {
	t.Helper()

	_, err := document.Parse(`{"unterminated":`)
	require.Error(t, err)
}

// --- FromMap ---

func TestFromMap_SortedAndNested(t *testing.T) {
	t.Helper()

	d := document.FromMap(map[string]any{
		"b": map[string]any{"y": 2, "x": 1},
		"a": 1,
	})

	got, err := d.ToJSON()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":{"x":1,"y":2}}`, got)
}

// --- GetDocument ---

func TestDocument_GetDocument(t *testing.T) {
	t.Helper()

	d := document.New().
		Set("obj", document.New().Set("k", "v")).
		Set("scalar", 1)

	assert.NotNil(t, d.GetDocument("obj"))
	assert.Nil(t, d.GetDocument("scalar"))
	assert.Nil(t, d.GetDocument("missing"))
}
