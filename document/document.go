// Package document provides an insertion-ordered JSON tree model. It is the
// output structure of the mapping builder and the query compiler: both emit
// keys in a canonical order and rely on that order surviving serialization.
package document

import (
	"encoding/json"
	"fmt"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Document is an ordered mapping from string keys to JSON-shaped values:
// scalars, nested *Document values, or []any sequences of either.
type Document struct {
	entries *orderedmap.OrderedMap[string, any]
}

// New creates an empty document.
func New() *Document {
	return &Document{entries: orderedmap.New[string, any]()}
}

// FromMap creates a document from a plain map. Keys are inserted in sorted
// order so the result is deterministic; build documents with Set when a
// specific order is required.
func FromMap(m map[string]any) *Document {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := New()
	for _, k := range keys {
		d.Set(k, normalize(m[k]))
	}
	return d
}

// Parse decodes a JSON object into a document, preserving the key order of
// the input text. Nested objects decode as nested documents.
func Parse(s string) (*Document, error) {
	d := New()
	if err := json.Unmarshal([]byte(s), d); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return d, nil
}

// Set stores a value under key, appending the key if it is new. Returns the
// document for chaining.
func (d *Document) Set(key string, value any) *Document {
	d.entries.Set(key, value)
	return d
}

// Get returns the value stored under key.
func (d *Document) Get(key string) (any, bool) {
	return d.entries.Get(key)
}

// GetDocument returns the nested document stored under key, or nil if the
// key is absent or not a document.
func (d *Document) GetDocument(key string) *Document {
	v, ok := d.entries.Get(key)
	if !ok {
		return nil
	}
	nested, ok := v.(*Document)
	if !ok {
		return nil
	}
	return nested
}

// Has reports whether key is present.
func (d *Document) Has(key string) bool {
	_, ok := d.entries.Get(key)
	return ok
}

// Delete removes key from the document.
func (d *Document) Delete(key string) {
	d.entries.Delete(key)
}

// Len returns the number of keys.
func (d *Document) Len() int {
	return d.entries.Len()
}

// Keys returns the keys in insertion order.
func (d *Document) Keys() []string {
	keys := make([]string, 0, d.entries.Len())
	for pair := d.entries.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// ToJSON serializes the document to compact JSON text in insertion order.
func (d *Document) ToJSON() (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("serialize document: %w", err)
	}
	return string(data), nil
}

// String implements fmt.Stringer for debugging; serialization errors are
// rendered inline rather than returned.
func (d *Document) String() string {
	s, err := d.ToJSON()
	if err != nil {
		return fmt.Sprintf("!document(%v)", err)
	}
	return s
}

// MarshalJSON implements json.Marshaler.
func (d *Document) MarshalJSON() ([]byte, error) {
	return d.entries.MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Document) UnmarshalJSON(data []byte) error {
	entries := orderedmap.New[string, any]()
	if err := entries.UnmarshalJSON(data); err != nil {
		return err
	}

	d.entries = orderedmap.New[string, any]()
	for pair := entries.Oldest(); pair != nil; pair = pair.Next() {
		d.entries.Set(pair.Key, normalize(pair.Value))
	}
	return nil
}

// normalize converts decoded ordered maps and plain maps into *Document
// values, recursing through slices.
func normalize(v any) any {
	switch t := v.(type) {
	case *orderedmap.OrderedMap[string, any]:
		nested := New()
		for pair := t.Oldest(); pair != nil; pair = pair.Next() {
			nested.Set(pair.Key, normalize(pair.Value))
		}
		return nested
	case map[string]any:
		return FromMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}
