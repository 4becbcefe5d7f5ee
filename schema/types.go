// Package schema defines the explicit metadata model describing how domain
// objects map onto Elasticsearch fields. Entities are plain configuration
// structs, registered once in a Registry and immutable afterwards; the
// mapping builder and the query compiler consume them without reflection.
package schema

import (
	"github.com/jonesrussell/esodm/document"
)

// FieldType names an Elasticsearch field type. TypeAuto leaves the type to
// be inferred from the property's Kind, or omitted entirely for plain
// scalars.
type FieldType string

const (
	TypeAuto            FieldType = ""
	TypeText            FieldType = "text"
	TypeKeyword         FieldType = "keyword"
	TypeLong            FieldType = "long"
	TypeInteger         FieldType = "integer"
	TypeShort           FieldType = "short"
	TypeByte            FieldType = "byte"
	TypeDouble          FieldType = "double"
	TypeFloat           FieldType = "float"
	TypeHalfFloat       FieldType = "half_float"
	TypeScaledFloat     FieldType = "scaled_float"
	TypeDate            FieldType = "date"
	TypeDateNanos       FieldType = "date_nanos"
	TypeBoolean         FieldType = "boolean"
	TypeBinary          FieldType = "binary"
	TypeIP              FieldType = "ip"
	TypeObject          FieldType = "object"
	TypeNested          FieldType = "nested"
	TypeGeoPoint        FieldType = "geo_point"
	TypeGeoShape        FieldType = "geo_shape"
	TypeCompletion      FieldType = "completion"
	TypeRankFeature     FieldType = "rank_feature"
	TypeRankFeatures    FieldType = "rank_features"
	TypeDenseVector     FieldType = "dense_vector"
	TypeWildcard        FieldType = "wildcard"
	TypeSearchAsYouType FieldType = "search_as_you_type"
	TypeTokenCount      FieldType = "token_count"
	TypeFlattened       FieldType = "flattened"
	TypeIntegerRange    FieldType = "integer_range"
	TypeLongRange       FieldType = "long_range"
	TypeFloatRange      FieldType = "float_range"
	TypeDoubleRange     FieldType = "double_range"
	TypeDateRange       FieldType = "date_range"
	TypeIPRange         FieldType = "ip_range"
	TypeAlias           FieldType = "alias"
)

// Kind is the semantic shape of a property, used to infer a FieldType when
// none is configured and to pick the right value conversion.
type Kind string

const (
	KindScalar   Kind = "scalar"
	KindDate     Kind = "date"
	KindGeoPoint Kind = "geo_point"
	KindGeoShape Kind = "geo_shape"
	KindObject   Kind = "object"
	KindNested   Kind = "nested"
	KindRange    Kind = "range"
)

// Dynamic controls Elasticsearch's dynamic-mapping behavior. The zero value
// inherits from the enclosing entity or the builder context.
type Dynamic string

const (
	DynamicInherit Dynamic = ""
	DynamicTrue    Dynamic = "true"
	DynamicFalse   Dynamic = "false"
	DynamicStrict  Dynamic = "strict"
	DynamicRuntime Dynamic = "runtime"
)

// TypeHint is a tri-state switch for writing the _class type-hint field
// into object and nested mappings.
type TypeHint int

const (
	// TypeHintInherit defers to the enclosing entity or builder context.
	TypeHintInherit TypeHint = iota
	// TypeHintTrue forces the hint on.
	TypeHintTrue
	// TypeHintFalse forces the hint off.
	TypeHintFalse
)

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Lat float64 `yaml:"lat"`
	Lon float64 `yaml:"lon"`
}

// GeoJSON is a wire-ready GeoJSON geometry. Coordinates follow GeoJSON
// conventions: [lon, lat] pairs, nested per geometry type.
type GeoJSON struct {
	Type        string
	Coordinates any
}

// PointGeoJSON builds the GeoJSON geometry for a point.
func PointGeoJSON(p GeoPoint) GeoJSON {
	return GeoJSON{Type: "Point", Coordinates: []float64{p.Lon, p.Lat}}
}

// Document renders the geometry as an ordered document, type first.
func (g GeoJSON) Document() *document.Document {
	return document.New().
		Set("type", g.Type).
		Set("coordinates", g.Coordinates)
}
