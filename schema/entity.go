package schema

import (
	"encoding/json"
	"fmt"
)

// Entity describes one mapped document class. Properties keep their
// declaration order; that order determines mapping emission order.
type Entity struct {
	// Name identifies the entity in the registry and in Ref links.
	Name string `yaml:"name"`
	// IndexName is the Elasticsearch index this entity is bound to.
	IndexName string `yaml:"indexName"`

	// Dynamic is the entity-level dynamic-mapping setting.
	Dynamic Dynamic `yaml:"dynamic"`
	// WriteTypeHints controls emission of the _class type-hint field.
	WriteTypeHints TypeHint `yaml:"-"`
	// Enabled, when pointing at false, disables mapping for the whole
	// entity: the mapping body becomes {"enabled":false}.
	Enabled *bool `yaml:"enabled"`

	DynamicDateFormats []string `yaml:"dynamicDateFormats"`
	DateDetection      *bool    `yaml:"dateDetection"`
	NumericDetection   *bool    `yaml:"numericDetection"`

	// DynamicTemplates is a raw JSON array merged verbatim into the
	// mapping under "dynamic_templates". Loaded from a file by the schema
	// loader, never generated.
	DynamicTemplates json.RawMessage `yaml:"-"`
	// RuntimeFields is a raw JSON object merged verbatim under "runtime".
	RuntimeFields json.RawMessage `yaml:"-"`

	// Aliases are index aliases applied at index creation time.
	Aliases []Alias `yaml:"aliases"`

	Properties []*Property `yaml:"properties"`
}

// Alias is an index alias definition.
type Alias struct {
	Name         string          `yaml:"name"`
	Routing      string          `yaml:"routing"`
	IsWriteIndex *bool           `yaml:"isWriteIndex"`
	Filter       json.RawMessage `yaml:"-"`
}

// Property describes one mapped field.
type Property struct {
	// Name is the property's name on the domain object.
	Name string `yaml:"name"`
	// WireName overrides the field name used in mapping and query JSON.
	WireName string `yaml:"wireName"`
	// Kind is the semantic shape; defaults to KindScalar.
	Kind Kind `yaml:"kind"`
	// Type is the explicit Elasticsearch field type; TypeAuto infers from
	// Kind, or omits the type for plain scalars.
	Type FieldType `yaml:"type"`

	// Ref names the registered entity to recurse into for object and
	// nested kinds.
	Ref string `yaml:"ref"`
	// ElementKind is the element shape for KindRange properties.
	ElementKind Kind `yaml:"elementKind"`

	Store                *bool          `yaml:"store"`
	Index                *bool          `yaml:"index"`
	DocValues            *bool          `yaml:"docValues"`
	Analyzer             string         `yaml:"analyzer"`
	SearchAnalyzer       string         `yaml:"searchAnalyzer"`
	Normalizer           string         `yaml:"normalizer"`
	CopyTo               []string       `yaml:"copyTo"`
	IgnoreAbove          *int           `yaml:"ignoreAbove"`
	Coerce               *bool          `yaml:"coerce"`
	Fielddata            *bool          `yaml:"fielddata"`
	NullValue            any            `yaml:"nullValue"`
	PositionIncrementGap *int           `yaml:"positionIncrementGap"`
	Similarity           string         `yaml:"similarity"`
	TermVector           string         `yaml:"termVector"`
	EagerGlobalOrdinals  *bool          `yaml:"eagerGlobalOrdinals"`
	Norms                *bool          `yaml:"norms"`
	IndexOptions         string         `yaml:"indexOptions"`
	IndexPhrases         *bool          `yaml:"indexPhrases"`
	IndexPrefixes        *IndexPrefixes `yaml:"indexPrefixes"`
	IgnoreMalformed      *bool          `yaml:"ignoreMalformed"`
	ScalingFactor        *float64       `yaml:"scalingFactor"`

	// Dense vector parameters. Dims is emitted whenever the field type is
	// dense_vector; the knn parameters only when configured.
	Dims            int              `yaml:"dims"`
	ElementType     string           `yaml:"elementType"`
	KnnSimilarity   string           `yaml:"knnSimilarity"`
	KnnIndexOptions *KnnIndexOptions `yaml:"knnIndexOptions"`

	PositiveScoreImpact *bool `yaml:"positiveScoreImpact"`

	// Completion parameters.
	MaxInputLength *int                `yaml:"maxInputLength"`
	Contexts       []CompletionContext `yaml:"contexts"`

	// Geo shape parameters.
	IgnoreZValue *bool  `yaml:"ignoreZValue"`
	Orientation  string `yaml:"orientation"`

	// DateFormats are named Elasticsearch formats; DatePatterns are custom
	// pattern strings appended after the named formats. All tokens are
	// joined with "||" in the emitted "format".
	DateFormats  []string `yaml:"formats"`
	DatePatterns []string `yaml:"patterns"`
	// ValueLayout is the Go time layout the resolver uses to render
	// time.Time query values for this property.
	ValueLayout string `yaml:"valueLayout"`

	// Dynamic overrides the dynamic setting for object/nested recursion.
	Dynamic Dynamic `yaml:"dynamic"`
	// ExcludeFromSource adds this field's dotted path to _source.excludes.
	ExcludeFromSource bool `yaml:"excludeFromSource"`
	// IgnoreFields names properties to skip when recursing into Ref.
	IgnoreFields []string `yaml:"ignoreFields"`
	// Transient properties are skipped entirely.
	Transient bool `yaml:"transient"`
	// Disabled emits {"enabled":false} for this object property. Legal
	// only on object kinds; combining it with other mapping parameters is
	// a mapping error.
	Disabled bool `yaml:"disabled"`
	// AliasPath makes this property a field alias pointing at the target
	// property's wire name.
	AliasPath string `yaml:"aliasPath"`

	// Fields are multi-field inner fields, emitted under "fields".
	Fields []InnerField `yaml:"fields"`
}

// InnerField is one named sub-field of a multi-field property.
type InnerField struct {
	Suffix         string    `yaml:"suffix"`
	Type           FieldType `yaml:"type"`
	Analyzer       string    `yaml:"analyzer"`
	SearchAnalyzer string    `yaml:"searchAnalyzer"`
	Normalizer     string    `yaml:"normalizer"`
	Store          *bool     `yaml:"store"`
	Index          *bool     `yaml:"index"`
	IgnoreAbove    *int      `yaml:"ignoreAbove"`
}

// IndexPrefixes configures the index_prefixes block of a text field.
type IndexPrefixes struct {
	MinChars *int `yaml:"minChars"`
	MaxChars *int `yaml:"maxChars"`
}

// KnnIndexOptions configures the dense_vector index_options block.
type KnnIndexOptions struct {
	Type               string   `yaml:"type"`
	M                  *int     `yaml:"m"`
	EfConstruction     *int     `yaml:"efConstruction"`
	ConfidenceInterval *float64 `yaml:"confidenceInterval"`
}

// CompletionContext is one context mapping of a completion field.
type CompletionContext struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type"`
	Path      string `yaml:"path"`
	Precision string `yaml:"precision"`
}

// EffectiveWireName returns the field name used on the wire.
func (p *Property) EffectiveWireName() string {
	if p.WireName != "" {
		return p.WireName
	}
	return p.Name
}

// EffectiveType resolves the field type to emit: the explicit type when
// set, otherwise a type inferred from the property's kind. Plain scalars
// stay TypeAuto and emit no "type" key.
func (p *Property) EffectiveType() FieldType {
	if p.Type != TypeAuto {
		return p.Type
	}
	switch p.Kind {
	case KindDate:
		return TypeDate
	case KindGeoPoint:
		return TypeGeoPoint
	case KindGeoShape:
		return TypeGeoShape
	case KindObject:
		return TypeObject
	case KindNested:
		return TypeNested
	case KindRange:
		return p.rangeType()
	default:
		return TypeAuto
	}
}

// rangeType infers the *_range field type from the range's element kind.
func (p *Property) rangeType() FieldType {
	switch p.ElementKind {
	case KindDate:
		return TypeDateRange
	default:
		return TypeLongRange
	}
}

// IsObjectLike reports whether the property maps to an object or nested
// sub-mapping.
func (p *Property) IsObjectLike() bool {
	t := p.EffectiveType()
	return t == TypeObject || t == TypeNested
}

// Property returns the property with the given domain name.
func (e *Entity) Property(name string) (*Property, bool) {
	for _, p := range e.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Validate checks the structural invariants that are enforced at
// registration time rather than at build time.
func (e *Entity) Validate() error {
	if e.Name == "" {
		return fmt.Errorf("entity has no name")
	}
	seen := make(map[string]string, len(e.Properties))
	for _, p := range e.Properties {
		if p.Name == "" {
			return fmt.Errorf("entity %q: property has no name", e.Name)
		}
		if p.Transient {
			continue
		}
		wire := p.EffectiveWireName()
		if prev, dup := seen[wire]; dup {
			return fmt.Errorf("entity %q: properties %q and %q share wire name %q", e.Name, prev, p.Name, wire)
		}
		seen[wire] = p.Name
		if p.AliasPath != "" {
			if _, ok := e.Property(p.AliasPath); !ok {
				return fmt.Errorf("entity %q: alias %q targets unknown property %q", e.Name, p.Name, p.AliasPath)
			}
		}
	}
	return nil
}
