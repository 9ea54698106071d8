package nodesets

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"

	"github.com/hupe1980/sonata/codec"
	"github.com/hupe1980/sonata/errs"
)

const (
	keyNodeID     = "node_id"
	keyPopulation = "population"
)

type parser struct {
	codec codec.Codec
}

func invalid(format string, args ...any) error {
	return errs.Errorf(errs.ErrInvalidArgument, format, args...)
}

// kind returns the first significant byte of a JSON value.
func kind(raw json.RawMessage) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0
	}
	return raw[0]
}

func isNumber(raw json.RawMessage) bool {
	k := kind(raw)
	return k == '-' || (k >= '0' && k <= '9')
}

func (p parser) parseDocument(data []byte) (map[string]definition, error) {
	if kind(data) != '{' {
		return nil, invalid("top level node set document must be an object")
	}
	var doc map[string]json.RawMessage
	if err := p.codec.Unmarshal(data, &doc); err != nil {
		return nil, invalid("malformed node set document: %v", err)
	}

	defs := make(map[string]definition, len(doc))
	for name, raw := range doc {
		switch kind(raw) {
		case '{':
			d, ok, err := p.parseBasic(name, raw)
			if err != nil {
				return nil, err
			}
			if ok {
				defs[name] = d
			}
		case '[':
			d, err := p.parseCompound(name, raw)
			if err != nil {
				return nil, err
			}
			defs[name] = d
		default:
			return nil, invalid("node set %q: expected an array or an object, got %s", name, bytes.TrimSpace(raw))
		}
	}
	if err := checkReferences(defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// parseBasic returns ok == false for an empty object, which defines nothing.
func (p parser) parseBasic(name string, raw json.RawMessage) (definition, bool, error) {
	var obj map[string]json.RawMessage
	if err := p.codec.Unmarshal(raw, &obj); err != nil {
		return definition{}, false, invalid("node set %q: %v", name, err)
	}
	if len(obj) == 0 {
		return definition{}, false, nil
	}
	d := definition{clauses: make([]clause, 0, len(obj))}
	for key, v := range obj {
		c, err := p.parseClause(key, v)
		if err != nil {
			return definition{}, false, fmt.Errorf("node set %q: %w", name, err)
		}
		d.clauses = append(d.clauses, c)
	}
	slices.SortFunc(d.clauses, func(a, b clause) int {
		return cmp.Compare(a.key(), b.key())
	})
	return d, true, nil
}

func (p parser) parseCompound(name string, raw json.RawMessage) (definition, error) {
	var elems []json.RawMessage
	if err := p.codec.Unmarshal(raw, &elems); err != nil {
		return definition{}, invalid("node set %q: %v", name, err)
	}
	d := definition{compound: true, targets: make([]string, 0, len(elems))}
	for _, e := range elems {
		if kind(e) != '"' {
			return definition{}, invalid("node set %q: all compound elements must be strings", name)
		}
		var target string
		if err := p.codec.Unmarshal(e, &target); err != nil {
			return definition{}, invalid("node set %q: %v", name, err)
		}
		d.targets = append(d.targets, target)
	}
	return d, nil
}

// parseClause dispatches on the key and the JSON type of the value.
func (p parser) parseClause(key string, raw json.RawMessage) (clause, error) {
	switch kind(raw) {
	case '{':
		return p.parseOperator(key, raw)
	case '[':
		var elems []json.RawMessage
		if err := p.codec.Unmarshal(raw, &elems); err != nil {
			return nil, err
		}
		return p.parseValues(key, elems, true)
	case '"':
		return p.parseValues(key, []json.RawMessage{raw}, false)
	default:
		if isNumber(raw) {
			return p.parseValues(key, []json.RawMessage{raw}, false)
		}
		return nil, invalid("%q: unsupported value %s", key, bytes.TrimSpace(raw))
	}
}

func (p parser) parseValues(key string, elems []json.RawMessage, list bool) (clause, error) {
	if len(elems) == 0 {
		switch key {
		case keyNodeID:
			return nodeIDClause{list: true}, nil
		case keyPopulation:
			return populationClause{list: true}, nil
		default:
			return valueClause{attr: key, list: true}, nil
		}
	}

	numeric := isNumber(elems[0])
	for _, e := range elems {
		switch {
		case numeric && !isNumber(e), !numeric && kind(e) != '"':
			return nil, invalid("%q: list values must all be numbers or all be strings", key)
		}
	}

	switch key {
	case keyNodeID:
		if !numeric {
			return nil, invalid("'node_id' must be numeric or a list of numbers")
		}
		ids := make([]uint64, len(elems))
		for i, e := range elems {
			id, err := parseUint(e)
			if err != nil {
				return nil, err
			}
			ids[i] = id
		}
		return nodeIDClause{ids: ids, list: list}, nil
	case keyPopulation:
		if numeric {
			return nil, invalid("'population' must be a string")
		}
		names, err := p.parseStrings(elems)
		if err != nil {
			return nil, err
		}
		return populationClause{names: names, list: list}, nil
	}

	if !numeric {
		values, err := p.parseStrings(elems)
		if err != nil {
			return nil, err
		}
		return valueClause{attr: key, strings: values, list: list}, nil
	}
	ints := make([]int64, len(elems))
	for i, e := range elems {
		v, err := parseInt(e)
		if err != nil {
			return nil, err
		}
		ints[i] = v
	}
	return valueClause{attr: key, ints: ints, list: list}, nil
}

func (p parser) parseStrings(elems []json.RawMessage) ([]string, error) {
	out := make([]string, len(elems))
	for i, e := range elems {
		if err := p.codec.Unmarshal(e, &out[i]); err != nil {
			return nil, invalid("%v", err)
		}
	}
	return out, nil
}

// parseInt accepts integers and integral floats such as 5.0.
func parseInt(raw json.RawMessage) (int64, error) {
	text := string(bytes.TrimSpace(raw))
	if v, err := strconv.ParseInt(text, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, invalid("invalid number %s", text)
	}
	if f != math.Trunc(f) {
		return 0, errs.Errorf(errs.ErrTypeMismatch, "float %v cannot be matched by equality", f)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, invalid("number %s overflows int64", text)
	}
	return int64(f), nil
}

func parseUint(raw json.RawMessage) (uint64, error) {
	text := string(bytes.TrimSpace(raw))
	if v, err := strconv.ParseUint(text, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, invalid("invalid number %s", text)
	}
	if f < 0 {
		return 0, invalid("'node_id' must be non-negative, got %s", text)
	}
	if f != math.Trunc(f) {
		return 0, invalid("'node_id' must be an integer, got %s", text)
	}
	if f >= math.MaxUint64 {
		return 0, invalid("'node_id' %s overflows uint64", text)
	}
	return uint64(f), nil
}

func (p parser) parseOperator(key string, raw json.RawMessage) (clause, error) {
	var obj map[string]json.RawMessage
	if err := p.codec.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	if len(obj) != 1 {
		return nil, invalid("operator %q must have object with one key value pair", key)
	}
	if key == keyNodeID || key == keyPopulation {
		return nil, invalid("%q does not take operators", key)
	}
	for op, v := range obj {
		switch op {
		case opGt, opGte, opLt, opLte:
			if !isNumber(v) {
				return nil, invalid("operator %q on %q takes a number", op, key)
			}
			f, err := strconv.ParseFloat(string(bytes.TrimSpace(v)), 64)
			if err != nil {
				return nil, invalid("operator %q on %q: invalid number %s", op, key, bytes.TrimSpace(v))
			}
			return numericClause{attr: key, op: op, v: f}, nil
		case opRegex:
			if kind(v) != '"' {
				return nil, invalid("operator %q on %q takes a string", op, key)
			}
			var pattern string
			if err := p.codec.Unmarshal(v, &pattern); err != nil {
				return nil, invalid("%v", err)
			}
			if _, err := regexp.Compile("^(?:" + pattern + ")$"); err != nil {
				return nil, invalid("invalid regex %q: %v", pattern, err)
			}
			return regexClause{attr: key, pattern: pattern}, nil
		default:
			return nil, invalid("unknown operator %q", op)
		}
	}
	return nil, nil
}

// checkReferences rejects compound definitions that name an undefined set or
// reach themselves.
func checkReferences(defs map[string]definition) error {
	const (
		unvisited = iota
		active
		done
	)
	state := make(map[string]int, len(defs))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case active:
			return errs.Errorf(errs.ErrRecursiveDefinition, "node set %q references itself", name)
		case done:
			return nil
		}
		d := defs[name]
		if !d.compound {
			state[name] = done
			return nil
		}
		state[name] = active
		for _, t := range d.targets {
			if _, ok := defs[t]; !ok {
				return errs.Errorf(errs.ErrMissingDefinition, "node set %q: missing %q", name, t)
			}
			if err := visit(t); err != nil {
				return err
			}
		}
		state[name] = done
		return nil
	}

	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if err := visit(name); err != nil {
			return err
		}
	}
	return nil
}
