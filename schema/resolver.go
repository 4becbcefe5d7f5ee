package schema

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Resolver errors. Unknown names are programmer errors and surface
// immediately rather than being swallowed.
var (
	ErrUnknownEntity   = errors.New("unknown entity")
	ErrUnknownProperty = errors.New("unknown property")
)

// Resolver translates domain-side property paths into wire-level field
// names and domain-typed values into their wire representation. It is pure
// and safe for concurrent use.
type Resolver struct {
	registry *Registry
}

// NewResolver creates a resolver over the given registry.
func NewResolver(registry *Registry) *Resolver {
	return &Resolver{registry: registry}
}

// WireName resolves a dotted property path to its wire-level field name,
// remapping each segment via its owning property. A dotted custom name
// (e.g. a property literally named "dotted.field") is a single segment:
// the whole remaining path is looked up as a literal name before being
// split on the first dot.
func (r *Resolver) WireName(e *Entity, path string) (string, error) {
	if e == nil {
		return "", fmt.Errorf("resolve %q: %w", path, ErrUnknownEntity)
	}
	if p, ok := e.Property(path); ok {
		return p.EffectiveWireName(), nil
	}

	idx := strings.Index(path, ".")
	if idx < 0 {
		return "", fmt.Errorf("entity %q has no property %q: %w", e.Name, path, ErrUnknownProperty)
	}

	head, rest := path[:idx], path[idx+1:]
	p, ok := e.Property(head)
	if !ok {
		return "", fmt.Errorf("entity %q has no property %q: %w", e.Name, head, ErrUnknownProperty)
	}
	next, err := r.refEntity(p)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	tail, err := r.WireName(next, rest)
	if err != nil {
		return "", err
	}
	return p.EffectiveWireName() + "." + tail, nil
}

// Property resolves a dotted path to its leaf property metadata, applying
// the same literal-name-first rule as WireName.
func (r *Resolver) Property(e *Entity, path string) (*Property, error) {
	if e == nil {
		return nil, fmt.Errorf("resolve %q: %w", path, ErrUnknownEntity)
	}
	if p, ok := e.Property(path); ok {
		return p, nil
	}

	idx := strings.Index(path, ".")
	if idx < 0 {
		return nil, fmt.Errorf("entity %q has no property %q: %w", e.Name, path, ErrUnknownProperty)
	}

	head, rest := path[:idx], path[idx+1:]
	p, ok := e.Property(head)
	if !ok {
		return nil, fmt.Errorf("entity %q has no property %q: %w", e.Name, head, ErrUnknownProperty)
	}
	next, err := r.refEntity(p)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", path, err)
	}
	return r.Property(next, rest)
}

func (r *Resolver) refEntity(p *Property) (*Entity, error) {
	if p.Ref == "" {
		return nil, fmt.Errorf("property %q is not an object reference: %w", p.Name, ErrUnknownProperty)
	}
	next, ok := r.registry.Get(p.Ref)
	if !ok {
		return nil, fmt.Errorf("ref %q: %w", p.Ref, ErrUnknownEntity)
	}
	return next, nil
}

// ConvertValue renders a domain-typed value into its wire representation
// for the given property. Times are formatted per the property's value
// layout, geo values become GeoJSON-shaped documents, Stringer values
// become their string, and everything already wire-shaped passes through
// unchanged. A nil property applies only the type-based conversions.
func (r *Resolver) ConvertValue(p *Property, v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.Format(valueLayout(p))
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.Format(valueLayout(p))
	case GeoPoint:
		return PointGeoJSON(t).Document()
	case *GeoPoint:
		if t == nil {
			return nil
		}
		return PointGeoJSON(*t).Document()
	case GeoJSON:
		return t.Document()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = r.ConvertValue(p, e)
		}
		return out
	case fmt.Stringer:
		return t.String()
	default:
		return v
	}
}

func valueLayout(p *Property) string {
	if p != nil && p.ValueLayout != "" {
		return p.ValueLayout
	}
	return time.RFC3339
}
