// Package query provides the fluent criteria model and the compilers that
// turn a criteria tree into Elasticsearch Query DSL or legacy Filter DSL
// documents.
package query

import (
	"github.com/jonesrussell/esodm/schema"
)

// Conjunction joins a criteria node to the one before it.
type Conjunction string

const (
	// And renders as bool.must.
	And Conjunction = "and"
	// Or renders as bool.should.
	Or Conjunction = "or"
)

// Operator identifies the comparison a criteria node performs.
type Operator string

const (
	OpNone       Operator = ""
	OpIs         Operator = "is"
	OpContains   Operator = "contains"
	OpMatches    Operator = "matches"
	OpBetween    Operator = "between"
	OpIn         Operator = "in"
	OpExists     Operator = "exists"
	OpIntersects Operator = "intersects"
	OpWithin     Operator = "within"
	OpDisjoint   Operator = "disjoint"
)

// node is one link of a criteria chain. conj records the conjunction
// preceding the node, making left-to-right combination order explicit data.
type node struct {
	conj  Conjunction
	field string
	op    Operator
	args  []any
	boost float64
	sub   *Criteria
}

// Criteria is an immutable chain of named boolean conditions. Build one
// with Where and extend it with the combinators; every method returns a new
// value and never mutates its receiver.
type Criteria struct {
	nodes []node
}

// Where starts a criteria chain on the given field.
func Where(field string) *Criteria {
	return &Criteria{nodes: []node{{conj: And, field: field, boost: 1.0}}}
}

// And chains a new condition on field with an AND conjunction.
func (c *Criteria) And(field string) *Criteria {
	return c.append(node{conj: And, field: field, boost: 1.0})
}

// Or chains a new condition on field with an OR conjunction.
func (c *Criteria) Or(field string) *Criteria {
	return c.append(node{conj: Or, field: field, boost: 1.0})
}

// AndSub chains a nested criteria tree with an AND conjunction. The subtree
// renders as a nested bool clause.
func (c *Criteria) AndSub(sub *Criteria) *Criteria {
	return c.append(node{conj: And, sub: sub})
}

// OrSub chains a nested criteria tree with an OR conjunction.
func (c *Criteria) OrSub(sub *Criteria) *Criteria {
	return c.append(node{conj: Or, sub: sub})
}

// Is matches documents whose field equals value.
func (c *Criteria) Is(value any) *Criteria {
	return c.operate(OpIs, value)
}

// Contains matches documents whose field contains value.
func (c *Criteria) Contains(value any) *Criteria {
	return c.operate(OpContains, value)
}

// Matches performs a full-text match against value.
func (c *Criteria) Matches(value any) *Criteria {
	return c.operate(OpMatches, value)
}

// Between matches values in the inclusive range [lower, upper].
func (c *Criteria) Between(lower, upper any) *Criteria {
	return c.operate(OpBetween, lower, upper)
}

// In matches documents whose field equals any of the given values.
func (c *Criteria) In(values ...any) *Criteria {
	return c.operate(OpIn, values...)
}

// Exists matches documents that have a value for the field.
func (c *Criteria) Exists() *Criteria {
	return c.operate(OpExists)
}

// Intersects matches documents whose geo shape intersects the given shape.
func (c *Criteria) Intersects(shape any) *Criteria {
	return c.operate(OpIntersects, shape)
}

// Within matches documents whose geo shape lies within the given shape.
func (c *Criteria) Within(shape any) *Criteria {
	return c.operate(OpWithin, shape)
}

// Disjoint matches documents whose geo shape is disjoint from the shape.
func (c *Criteria) Disjoint(shape any) *Criteria {
	return c.operate(OpDisjoint, shape)
}

// Boost sets the boost of the current condition.
func (c *Criteria) Boost(boost float64) *Criteria {
	out := c.clone()
	out.nodes[len(out.nodes)-1].boost = boost
	return out
}

func (c *Criteria) append(n node) *Criteria {
	out := c.clone()
	out.nodes = append(out.nodes, n)
	return out
}

func (c *Criteria) operate(op Operator, args ...any) *Criteria {
	out := c.clone()
	last := &out.nodes[len(out.nodes)-1]
	last.op = op
	last.args = args
	return out
}

func (c *Criteria) clone() *Criteria {
	nodes := make([]node, len(c.nodes))
	copy(nodes, c.nodes)
	return &Criteria{nodes: nodes}
}

// ApplyEntity rewrites the criteria tree for the given entity: field names
// are resolved to wire names and values are converted to their wire
// representation. The returned tree is new; the input stays untouched. A
// nil entity returns the criteria unchanged (unmapped criteria use raw
// field names).
func ApplyEntity(c *Criteria, e *schema.Entity, r *schema.Resolver) (*Criteria, error) {
	if c == nil || e == nil {
		return c, nil
	}
	out := c.clone()
	for i := range out.nodes {
		n := &out.nodes[i]
		if n.sub != nil {
			sub, err := ApplyEntity(n.sub, e, r)
			if err != nil {
				return nil, err
			}
			n.sub = sub
			continue
		}
		if n.field == "" {
			continue
		}
		wire, err := r.WireName(e, n.field)
		if err != nil {
			return nil, err
		}
		prop, err := r.Property(e, n.field)
		if err != nil {
			return nil, err
		}
		args := make([]any, len(n.args))
		for j, a := range n.args {
			args[j] = r.ConvertValue(prop, a)
		}
		n.field = wire
		n.args = args
	}
	return out, nil
}
