package nodesets

import (
	"context"

	"github.com/hupe1980/sonata"
	"github.com/hupe1980/sonata/selection"
)

// clause is one key of a basic definition.
type clause interface {
	key() string
	value() any
	materialize(ctx context.Context, pop *sonata.NodePopulation) (selection.Selection, error)
}

// scalarOrList returns v[0] for a scalar clause and v otherwise.
func scalarOrList[T any](v []T, list bool) any {
	if !list && len(v) == 1 {
		return v[0]
	}
	if v == nil {
		return []T{}
	}
	return v
}

type nodeIDClause struct {
	ids  []uint64
	list bool
}

func (c nodeIDClause) key() string { return keyNodeID }

func (c nodeIDClause) value() any { return scalarOrList(c.ids, c.list) }

func (c nodeIDClause) materialize(_ context.Context, pop *sonata.NodePopulation) (selection.Selection, error) {
	return selection.FromIDs(c.ids).Intersect(pop.SelectAll()), nil
}

type populationClause struct {
	names []string
	list  bool
}

func (c populationClause) key() string { return keyPopulation }

func (c populationClause) value() any { return scalarOrList(c.names, c.list) }

func (c populationClause) matches(name string) bool {
	for _, n := range c.names {
		if n == name {
			return true
		}
	}
	return false
}

func (c populationClause) materialize(_ context.Context, pop *sonata.NodePopulation) (selection.Selection, error) {
	if c.matches(pop.Name()) {
		return pop.SelectAll(), nil
	}
	return selection.Selection{}, nil
}

// valueClause matches an attribute against strings or integers.
type valueClause struct {
	attr    string
	strings []string
	ints    []int64
	list    bool
}

func (c valueClause) key() string { return c.attr }

func (c valueClause) value() any {
	if c.strings != nil {
		return scalarOrList(c.strings, c.list)
	}
	return scalarOrList(c.ints, c.list)
}

func (c valueClause) materialize(ctx context.Context, pop *sonata.NodePopulation) (selection.Selection, error) {
	switch {
	case len(c.strings) > 0:
		return pop.MatchStrings(ctx, c.attr, c.strings)
	case len(c.ints) > 0:
		return pop.MatchInts(ctx, c.attr, c.ints)
	default:
		return selection.Selection{}, nil
	}
}

const (
	opGt    = "$gt"
	opGte   = "$gte"
	opLt    = "$lt"
	opLte   = "$lte"
	opRegex = "$regex"
)

type numericClause struct {
	attr string
	op   string
	v    float64
}

func (c numericClause) key() string { return c.attr }

func (c numericClause) value() any { return map[string]any{c.op: c.v} }

func (c numericClause) keep(x float64) bool {
	switch c.op {
	case opGt:
		return x > c.v
	case opGte:
		return x >= c.v
	case opLt:
		return x < c.v
	default:
		return x <= c.v
	}
}

func (c numericClause) materialize(ctx context.Context, pop *sonata.NodePopulation) (selection.Selection, error) {
	return pop.FilterNumeric(ctx, c.attr, c.keep)
}

type regexClause struct {
	attr    string
	pattern string
}

func (c regexClause) key() string { return c.attr }

func (c regexClause) value() any { return map[string]any{opRegex: c.pattern} }

func (c regexClause) materialize(ctx context.Context, pop *sonata.NodePopulation) (selection.Selection, error) {
	return pop.RegexMatch(ctx, c.attr, c.pattern)
}

// definition is either basic (clauses ANDed) or compound (targets ORed).
type definition struct {
	clauses  []clause
	targets  []string
	compound bool
}

func (d definition) value() any {
	if d.compound {
		if d.targets == nil {
			return []string{}
		}
		return d.targets
	}
	m := make(map[string]any, len(d.clauses))
	for _, c := range d.clauses {
		m[c.key()] = c.value()
	}
	return m
}

// materializeBasic intersects all clauses. Every clause is evaluated, so a
// population mismatch still reports type errors of the other clauses before
// yielding the empty selection.
func (d definition) materializeBasic(ctx context.Context, pop *sonata.NodePopulation) (selection.Selection, error) {
	sel := pop.SelectAll()
	matched := true
	for _, c := range d.clauses {
		if p, ok := c.(populationClause); ok {
			matched = matched && p.matches(pop.Name())
			continue
		}
		s, err := c.materialize(ctx, pop)
		if err != nil {
			return selection.Selection{}, err
		}
		sel = sel.Intersect(s)
	}
	if !matched {
		return selection.Selection{}, nil
	}
	return sel, nil
}
