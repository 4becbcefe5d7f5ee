// Package mapping compiles entity metadata into Elasticsearch mapping JSON.
// The builder is a pure function over the schema model: no I/O, no shared
// state, and emission order always follows property declaration order.
package mapping

import (
	"encoding/json"
	"fmt"

	"github.com/jonesrussell/esodm/document"
	"github.com/jonesrussell/esodm/schema"
)

// Builder compiles registered entities into mapping documents.
type Builder struct {
	registry  *schema.Registry
	typeHints bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithTypeHints sets the context-level default for writing the _class
// type-hint field into object and nested mappings. Entities override it via
// their WriteTypeHints setting.
func WithTypeHints(enabled bool) Option {
	return func(b *Builder) {
		b.typeHints = enabled
	}
}

// NewBuilder creates a mapping builder over the given registry. Type hints
// default to on.
func NewBuilder(registry *schema.Registry, opts ...Option) *Builder {
	b := &Builder{registry: registry, typeHints: true}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build compiles the full root mapping for an entity: top-level directives
// (dynamic, dynamic_templates, detection flags, runtime fields, _source
// excludes) plus the properties tree.
func (b *Builder) Build(e *schema.Entity) (string, error) {
	doc, err := b.BuildDocument(e)
	if err != nil {
		return "", err
	}
	return doc.ToJSON()
}

// BuildPropertyMapping compiles only the properties tree of an entity,
// without root-level directives. A disabled entity compiles to exactly
// {"enabled":false}.
func (b *Builder) BuildPropertyMapping(e *schema.Entity) (string, error) {
	if e.Enabled != nil && !*e.Enabled {
		return document.New().Set("enabled", false).ToJSON()
	}
	props, err := b.buildProperties(e, newWalkState(e.Name, nil))
	if err != nil {
		return "", err
	}
	return document.New().Set("properties", props).ToJSON()
}

// BuildDocument is Build returning the document tree instead of JSON text.
func (b *Builder) BuildDocument(e *schema.Entity) (*document.Document, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil entity", ErrInvalidArgument)
	}
	if e.Enabled != nil && !*e.Enabled {
		return document.New().Set("enabled", false), nil
	}

	root := document.New()
	if e.Dynamic != schema.DynamicInherit {
		root.Set("dynamic", string(e.Dynamic))
	}
	if len(e.DynamicDateFormats) > 0 {
		root.Set("dynamic_date_formats", toAnySlice(e.DynamicDateFormats))
	}
	if e.DateDetection != nil {
		root.Set("date_detection", *e.DateDetection)
	}
	if e.NumericDetection != nil {
		root.Set("numeric_detection", *e.NumericDetection)
	}
	if len(e.DynamicTemplates) > 0 {
		templates, err := parseRawArray(e.DynamicTemplates)
		if err != nil {
			return nil, fmt.Errorf("entity %q dynamic templates: %w", e.Name, err)
		}
		root.Set("dynamic_templates", templates)
	}
	if len(e.RuntimeFields) > 0 {
		runtime, err := document.Parse(string(e.RuntimeFields))
		if err != nil {
			return nil, fmt.Errorf("entity %q runtime fields: %w", e.Name, err)
		}
		root.Set("runtime", runtime)
	}
	if excludes := b.collectSourceExcludes(e, "", map[string]bool{e.Name: true}); len(excludes) > 0 {
		root.Set("_source", document.New().Set("excludes", toAnySlice(excludes)))
	}

	props, err := b.buildProperties(e, newWalkState(e.Name, nil))
	if err != nil {
		return nil, err
	}
	root.Set("properties", props)
	return root, nil
}

// walkState threads the recursion guard and the caller-supplied ignore set
// through nested mapping builds.
type walkState struct {
	// stack holds the entity names on the current recursion branch; an
	// entity already on the branch is not recursed into again.
	stack map[string]bool
	// ignore holds property names the parent asked to skip at this level.
	ignore map[string]bool
}

func newWalkState(entity string, ignoreFields []string) walkState {
	st := walkState{
		stack:  map[string]bool{entity: true},
		ignore: make(map[string]bool, len(ignoreFields)),
	}
	for _, f := range ignoreFields {
		st.ignore[f] = true
	}
	return st
}

func (st walkState) descend(entity string, ignoreFields []string) walkState {
	next := walkState{
		stack:  make(map[string]bool, len(st.stack)+1),
		ignore: make(map[string]bool, len(ignoreFields)),
	}
	for name := range st.stack {
		next.stack[name] = true
	}
	next.stack[entity] = true
	for _, f := range ignoreFields {
		next.ignore[f] = true
	}
	return next
}

func (b *Builder) buildProperties(e *schema.Entity, st walkState) (*document.Document, error) {
	props := document.New()
	for _, p := range e.Properties {
		if p.Transient || st.ignore[p.Name] {
			continue
		}
		switch {
		case p.AliasPath != "":
			target, ok := e.Property(p.AliasPath)
			if !ok {
				return nil, newError(e.Name, p.Name, fmt.Sprintf("alias targets unknown property %q", p.AliasPath))
			}
			props.Set(p.EffectiveWireName(), document.New().
				Set("type", string(schema.TypeAlias)).
				Set("path", target.EffectiveWireName()))
		case p.Disabled:
			if !p.IsObjectLike() {
				return nil, newError(e.Name, p.Name, "disabled mapping is only allowed on object properties")
			}
			if hasMappingParams(p) {
				return nil, newError(e.Name, p.Name, "disabled mapping cannot carry other mapping parameters")
			}
			props.Set(p.EffectiveWireName(), document.New().Set("enabled", false))
		default:
			d, err := b.buildProperty(e, p, st)
			if err != nil {
				return nil, err
			}
			props.Set(p.EffectiveWireName(), d)
		}
	}
	return props, nil
}

func (b *Builder) buildProperty(e *schema.Entity, p *schema.Property, st walkState) (*document.Document, error) {
	d := document.New()
	t := p.EffectiveType()
	if t != schema.TypeAuto {
		d.Set("type", string(t))
	}

	if t == schema.TypeDenseVector {
		if err := b.emitDenseVector(e, p, d); err != nil {
			return nil, err
		}
		return d, nil
	}

	if isDateType(t) {
		if format := formatTokens(p); format != "" {
			d.Set("format", format)
		}
	}

	if p.Analyzer != "" {
		d.Set("analyzer", p.Analyzer)
	}
	if p.SearchAnalyzer != "" {
		d.Set("search_analyzer", p.SearchAnalyzer)
	}
	if p.Normalizer != "" {
		d.Set("normalizer", p.Normalizer)
	}

	// Boolean parameters are omitted when they equal the type's default.
	setBool(d, "store", p.Store, false)
	setBool(d, "index", p.Index, true)
	setBool(d, "doc_values", p.DocValues, true)
	setBool(d, "fielddata", p.Fielddata, false)
	setBool(d, "coerce", p.Coerce, true)

	if p.IgnoreAbove != nil {
		d.Set("ignore_above", *p.IgnoreAbove)
	}
	setBool(d, "ignore_malformed", p.IgnoreMalformed, false)
	if p.NullValue != nil {
		d.Set("null_value", p.NullValue)
	}
	if len(p.CopyTo) > 0 {
		d.Set("copy_to", toAnySlice(p.CopyTo))
	}
	if p.PositionIncrementGap != nil {
		d.Set("position_increment_gap", *p.PositionIncrementGap)
	}
	if p.Similarity != "" {
		d.Set("similarity", p.Similarity)
	}
	if p.TermVector != "" {
		d.Set("term_vector", p.TermVector)
	}
	setBool(d, "norms", p.Norms, true)
	if p.IndexOptions != "" {
		d.Set("index_options", p.IndexOptions)
	}
	setBool(d, "index_phrases", p.IndexPhrases, false)
	if p.IndexPrefixes != nil {
		d.Set("index_prefixes", indexPrefixesDoc(p.IndexPrefixes))
	}
	setBool(d, "eager_global_ordinals", p.EagerGlobalOrdinals, false)

	if t == schema.TypeScaledFloat {
		if p.ScalingFactor == nil {
			return nil, newError(e.Name, p.Name, "scaled_float requires a scaling factor")
		}
		d.Set("scaling_factor", *p.ScalingFactor)
	}
	if t == schema.TypeRankFeature {
		setBool(d, "positive_score_impact", p.PositiveScoreImpact, true)
	}
	if t == schema.TypeGeoShape {
		setBool(d, "ignore_z_value", p.IgnoreZValue, true)
		if p.Orientation != "" {
			d.Set("orientation", p.Orientation)
		}
	}
	if t == schema.TypeCompletion {
		if p.MaxInputLength != nil {
			d.Set("max_input_length", *p.MaxInputLength)
		}
		if len(p.Contexts) > 0 {
			d.Set("contexts", contextDocs(p.Contexts))
		}
	}

	if p.IsObjectLike() {
		if err := b.emitObject(p, d, st); err != nil {
			return nil, err
		}
	}

	if len(p.Fields) > 0 {
		d.Set("fields", innerFieldsDoc(p.Fields))
	}

	return d, nil
}

// emitObject adds the dynamic override and the recursed properties tree of
// an object or nested property. Recursion into an entity already on the
// current branch is skipped, so self-referential models terminate even
// without an IgnoreFields entry.
func (b *Builder) emitObject(p *schema.Property, d *document.Document, st walkState) error {
	if p.Ref == "" {
		if p.Dynamic != schema.DynamicInherit {
			d.Set("dynamic", string(p.Dynamic))
		}
		return nil
	}

	ref, ok := b.registry.Get(p.Ref)
	if !ok {
		return fmt.Errorf("property %q: ref %q: %w", p.Name, p.Ref, schema.ErrUnknownEntity)
	}

	// Property override wins over the referenced entity's own setting.
	dynamic := p.Dynamic
	if dynamic == schema.DynamicInherit {
		dynamic = ref.Dynamic
	}
	if dynamic != schema.DynamicInherit {
		d.Set("dynamic", string(dynamic))
	}

	if st.stack[p.Ref] {
		return nil
	}

	child, err := b.buildProperties(ref, st.descend(p.Ref, p.IgnoreFields))
	if err != nil {
		return err
	}
	if b.resolveTypeHints(ref) {
		withHint := document.New()
		withHint.Set("_class", typeHintMapping())
		for _, key := range child.Keys() {
			v, _ := child.Get(key)
			withHint.Set(key, v)
		}
		child = withHint
	}
	if child.Len() > 0 {
		d.Set("properties", child)
	}
	return nil
}

func (b *Builder) emitDenseVector(e *schema.Entity, p *schema.Property, d *document.Document) error {
	if p.Dims <= 0 {
		return fmt.Errorf("%w: dense_vector property %q needs positive dims", ErrInvalidArgument, p.Name)
	}
	d.Set("dims", p.Dims)

	if p.ElementType != "" {
		d.Set("element_type", p.ElementType)
	}
	if p.KnnSimilarity != "" {
		d.Set("similarity", p.KnnSimilarity)
	}
	if p.KnnIndexOptions == nil {
		return nil
	}

	opts := p.KnnIndexOptions
	if opts.Type == "" {
		return fmt.Errorf("%w: dense_vector property %q knn index options need a type", ErrInvalidArgument, p.Name)
	}
	hnsw := isHnswType(opts.Type)
	if !hnsw && (opts.M != nil || opts.EfConstruction != nil) {
		return fmt.Errorf("%w: dense_vector property %q: m/ef_construction are only valid for hnsw index types", ErrInvalidArgument, p.Name)
	}
	if opts.ConfidenceInterval != nil && !isQuantizedType(opts.Type) {
		return fmt.Errorf("%w: dense_vector property %q: confidence_interval is only valid for quantized index types", ErrInvalidArgument, p.Name)
	}

	io := document.New().Set("type", opts.Type)
	if opts.M != nil {
		io.Set("m", *opts.M)
	}
	if opts.EfConstruction != nil {
		io.Set("ef_construction", *opts.EfConstruction)
	}
	if opts.ConfidenceInterval != nil {
		io.Set("confidence_interval", *opts.ConfidenceInterval)
	}
	d.Set("index_options", io)
	return nil
}

// collectSourceExcludes gathers the dotted wire paths of every property
// marked ExcludeFromSource, at any depth.
func (b *Builder) collectSourceExcludes(e *schema.Entity, prefix string, stack map[string]bool) []string {
	var excludes []string
	for _, p := range e.Properties {
		if p.Transient {
			continue
		}
		wire := p.EffectiveWireName()
		if prefix != "" {
			wire = prefix + "." + wire
		}
		if p.ExcludeFromSource {
			excludes = append(excludes, wire)
		}
		if p.IsObjectLike() && p.Ref != "" && !stack[p.Ref] {
			ref, ok := b.registry.Get(p.Ref)
			if !ok {
				continue
			}
			stack[p.Ref] = true
			excludes = append(excludes, b.collectSourceExcludes(ref, wire, stack)...)
			delete(stack, p.Ref)
		}
	}
	return excludes
}

// resolveTypeHints resolves the tri-state entity setting against the
// builder's context default.
func (b *Builder) resolveTypeHints(e *schema.Entity) bool {
	switch e.WriteTypeHints {
	case schema.TypeHintTrue:
		return true
	case schema.TypeHintFalse:
		return false
	default:
		return b.typeHints
	}
}

func typeHintMapping() *document.Document {
	return document.New().
		Set("type", "keyword").
		Set("index", false).
		Set("doc_values", false)
}

func innerFieldsDoc(fields []schema.InnerField) *document.Document {
	out := document.New()
	for _, f := range fields {
		inner := document.New()
		if f.Type != schema.TypeAuto {
			inner.Set("type", string(f.Type))
		}
		if f.Analyzer != "" {
			inner.Set("analyzer", f.Analyzer)
		}
		if f.SearchAnalyzer != "" {
			inner.Set("search_analyzer", f.SearchAnalyzer)
		}
		if f.Normalizer != "" {
			inner.Set("normalizer", f.Normalizer)
		}
		setBool(inner, "store", f.Store, false)
		setBool(inner, "index", f.Index, true)
		if f.IgnoreAbove != nil {
			inner.Set("ignore_above", *f.IgnoreAbove)
		}
		out.Set(f.Suffix, inner)
	}
	return out
}

func indexPrefixesDoc(p *schema.IndexPrefixes) *document.Document {
	d := document.New()
	if p.MinChars != nil {
		d.Set("min_chars", *p.MinChars)
	}
	if p.MaxChars != nil {
		d.Set("max_chars", *p.MaxChars)
	}
	return d
}

func contextDocs(contexts []schema.CompletionContext) []any {
	out := make([]any, 0, len(contexts))
	for _, c := range contexts {
		d := document.New().
			Set("name", c.Name).
			Set("type", c.Type)
		if c.Path != "" {
			d.Set("path", c.Path)
		}
		if c.Precision != "" {
			d.Set("precision", c.Precision)
		}
		out = append(out, d)
	}
	return out
}

// formatTokens joins named date formats and custom patterns with "||",
// custom patterns after named formats, deduplicated in order.
func formatTokens(p *schema.Property) string {
	tokens := make([]string, 0, len(p.DateFormats)+len(p.DatePatterns))
	seen := make(map[string]bool)
	for _, t := range p.DateFormats {
		if t != "" && !seen[t] {
			seen[t] = true
			tokens = append(tokens, t)
		}
	}
	for _, t := range p.DatePatterns {
		if t != "" && !seen[t] {
			seen[t] = true
			tokens = append(tokens, t)
		}
	}
	out := ""
	for i, t := range tokens {
		if i > 0 {
			out += "||"
		}
		out += t
	}
	return out
}

func isDateType(t schema.FieldType) bool {
	return t == schema.TypeDate || t == schema.TypeDateNanos || t == schema.TypeDateRange
}

func isHnswType(t string) bool {
	switch t {
	case "hnsw", "int8_hnsw", "int4_hnsw", "bbq_hnsw":
		return true
	}
	return false
}

func isQuantizedType(t string) bool {
	switch t {
	case "int8_hnsw", "int4_hnsw", "bbq_hnsw", "int8_flat", "int4_flat", "bbq_flat":
		return true
	}
	return false
}

func setBool(d *document.Document, key string, v *bool, def bool) {
	if v != nil && *v != def {
		d.Set(key, *v)
	}
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// hasMappingParams reports whether a property carries any field-level
// mapping parameter; a disabled property must not.
func hasMappingParams(p *schema.Property) bool {
	return (p.Type != schema.TypeAuto && p.Type != schema.TypeObject) ||
		p.Store != nil || p.Index != nil || p.DocValues != nil ||
		p.Analyzer != "" || p.SearchAnalyzer != "" || p.Normalizer != "" ||
		len(p.CopyTo) > 0 || p.IgnoreAbove != nil || p.Coerce != nil ||
		p.Fielddata != nil || p.NullValue != nil || p.PositionIncrementGap != nil ||
		p.Similarity != "" || p.TermVector != "" || p.EagerGlobalOrdinals != nil ||
		p.Norms != nil || p.IndexOptions != "" || p.IndexPhrases != nil ||
		p.IndexPrefixes != nil || p.IgnoreMalformed != nil || p.ScalingFactor != nil ||
		p.Dims != 0 || p.ElementType != "" || p.KnnSimilarity != "" ||
		p.KnnIndexOptions != nil || p.PositiveScoreImpact != nil ||
		p.MaxInputLength != nil || len(p.Contexts) > 0 ||
		len(p.Fields) > 0 || len(p.DateFormats) > 0 || len(p.DatePatterns) > 0
}

// parseRawArray decodes a raw JSON array preserving element object order.
func parseRawArray(raw json.RawMessage) ([]any, error) {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, err
	}
	out := make([]any, 0, len(elems))
	for _, elem := range elems {
		d, err := document.Parse(string(elem))
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}
