package query

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jonesrussell/esodm/document"
)

// ErrInvalidCriteria marks a malformed criteria tree: wrong operand arity,
// missing operator, or mixed conjunctions at one level. Compilation fails
// fast; no partial document is ever returned.
var ErrInvalidCriteria = errors.New("invalid criteria")

// Compiler turns criteria trees into Elasticsearch DSL documents. It is
// stateless and safe for concurrent use. The compiler expects wire-ready
// field names and values; run ApplyEntity first for entity-mapped criteria.
type Compiler struct{}

// NewCompiler creates a criteria compiler.
func NewCompiler() *Compiler {
	return &Compiler{}
}

// CompileQuery compiles the criteria tree into a Query DSL document. A
// single criterion emits its leaf clause directly; chains of two or more
// are wrapped in bool.must or bool.should per the chain's conjunction.
func (c *Compiler) CompileQuery(criteria *Criteria) (*document.Document, error) {
	return c.compile(criteria, false)
}

// CompileFilter compiles the criteria tree into legacy Filter DSL. The walk
// is the same as CompileQuery, but geo_shape clauses are wrapped and
// base64-encoded as {"wrapper":{"query":<base64>}} since the legacy filter
// API takes raw JSON passthrough only.
func (c *Compiler) CompileFilter(criteria *Criteria) (*document.Document, error) {
	return c.compile(criteria, true)
}

func (c *Compiler) compile(criteria *Criteria, filterContext bool) (*document.Document, error) {
	if criteria == nil || len(criteria.nodes) == 0 {
		return nil, fmt.Errorf("%w: empty criteria chain", ErrInvalidCriteria)
	}

	clauses := make([]any, 0, len(criteria.nodes))
	for _, n := range criteria.nodes {
		clause, err := c.clause(n, filterContext)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}

	if len(clauses) == 1 {
		return clauses[0].(*document.Document), nil
	}

	conj := criteria.nodes[1].conj
	for _, n := range criteria.nodes[2:] {
		if n.conj != conj {
			return nil, fmt.Errorf("%w: mixed conjunctions in one chain; use a sub-criteria for the differing part", ErrInvalidCriteria)
		}
	}

	key := "must"
	if conj == Or {
		key = "should"
	}
	return document.New().
		Set("bool", document.New().Set(key, clauses)), nil
}

func (c *Compiler) clause(n node, filterContext bool) (*document.Document, error) {
	if n.sub != nil {
		return c.compile(n.sub, filterContext)
	}

	switch n.op {
	case OpIs:
		if err := arity(n, 1); err != nil {
			return nil, err
		}
		return document.New().
			Set("query_string", document.New().
				Set("query", n.args[0]).
				Set("fields", []any{boostedField(n.field, n.boost)})), nil

	case OpBetween:
		if err := arity(n, 2); err != nil {
			return nil, err
		}
		return document.New().
			Set("range", document.New().
				Set(n.field, document.New().
					Set("from", n.args[0]).
					Set("to", n.args[1]).
					Set("include_lower", true).
					Set("include_upper", true))), nil

	case OpContains, OpMatches:
		if err := arity(n, 1); err != nil {
			return nil, err
		}
		return document.New().
			Set("match", document.New().
				Set(n.field, document.New().
					Set("query", n.args[0]))), nil

	case OpIn:
		if len(n.args) == 0 {
			return nil, fmt.Errorf("%w: in criterion for field %q has no values", ErrInvalidCriteria, n.field)
		}
		return document.New().
			Set("terms", document.New().
				Set(n.field, n.args)), nil

	case OpExists:
		return document.New().
			Set("exists", document.New().
				Set("field", n.field)), nil

	case OpIntersects, OpWithin, OpDisjoint:
		if err := arity(n, 1); err != nil {
			return nil, err
		}
		return c.geoShapeClause(n, filterContext)

	case OpNone:
		return nil, fmt.Errorf("%w: criterion for field %q has no operator", ErrInvalidCriteria, n.field)

	default:
		return nil, fmt.Errorf("%w: unsupported operator %q", ErrInvalidCriteria, n.op)
	}
}

func (c *Compiler) geoShapeClause(n node, filterContext bool) (*document.Document, error) {
	clause := document.New().
		Set("geo_shape", document.New().
			Set(n.field, document.New().
				Set("shape", n.args[0]).
				Set("relation", string(n.op))))
	if !filterContext {
		return clause, nil
	}

	// The legacy filter context cannot carry structured geo_shape DSL; the
	// clause is passed through as an encoded blob.
	raw, err := clause.ToJSON()
	if err != nil {
		return nil, err
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(raw))
	return document.New().
		Set("wrapper", document.New().Set("query", encoded)), nil
}

func arity(n node, want int) error {
	if len(n.args) != want {
		return fmt.Errorf("%w: %s criterion for field %q takes %d operand(s), got %d",
			ErrInvalidCriteria, n.op, n.field, want, len(n.args))
	}
	return nil
}

// boostedField renders "name^boost" with the boost always present, 1.0
// included.
func boostedField(field string, boost float64) string {
	s := strconv.FormatFloat(boost, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return field + "^" + s
}
