package nodesets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/sonata"
	"github.com/hupe1980/sonata/blobstore"
	"github.com/hupe1980/sonata/errs"
	"github.com/hupe1980/sonata/selection"
)

// NodeSets is a parsed table of node set definitions.
//
// Materialize is safe for concurrent use; Update must not run concurrently
// with other methods on the same value.
type NodeSets struct {
	mu   sync.RWMutex
	defs map[string]definition
	opts sonata.Options
}

// Parse parses a node set document. Structure, operators, regular
// expressions and compound references are validated here; attribute names
// and types are checked when a set is materialized.
func Parse(data []byte, optFns ...sonata.Option) (*NodeSets, error) {
	opts := sonata.NewOptions(optFns...)
	defs, err := parser{codec: opts.Codec}.parseDocument(data)
	if err != nil {
		return nil, err
	}
	return &NodeSets{defs: defs, opts: opts}, nil
}

// ParseString is Parse for a string document.
func ParseString(doc string, optFns ...sonata.Option) (*NodeSets, error) {
	return Parse([]byte(doc), optFns...)
}

// Load reads and parses a node set document. With sonata.WithStore the name
// is resolved against the store, otherwise it is a local path.
func Load(ctx context.Context, name string, optFns ...sonata.Option) (*NodeSets, error) {
	opts := sonata.NewOptions(optFns...)
	data, err := readDocument(ctx, opts.Store, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			err = fmt.Errorf("%w: node sets %s: %w", errs.ErrNotFound, name, err)
		}
		opts.Log().ErrorContext(ctx, "load node sets failed", "file", name, "error", err)
		return nil, err
	}
	return Parse(data, optFns...)
}

func readDocument(ctx context.Context, store blobstore.BlobStore, name string) ([]byte, error) {
	if store == nil {
		return os.ReadFile(name)
	}
	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()
	data := make([]byte, b.Size())
	if err := blobstore.ReadFull(ctx, b, data, 0); err != nil {
		return nil, err
	}
	return data, nil
}

// Names returns the sorted names of all definitions.
func (n *NodeSets) Names() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.defs))
	for name := range n.defs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Materialize evaluates the named set against pop.
func (n *NodeSets) Materialize(ctx context.Context, name string, pop *sonata.NodePopulation) (selection.Selection, error) {
	start := time.Now()
	n.mu.RLock()
	sel, err := n.materialize(ctx, name, pop, nil)
	n.mu.RUnlock()

	n.opts.Log().LogMaterialize(ctx, name, pop.Name(), sel, err)
	n.opts.Metrics().RecordMaterialize(pop.Name(), sel.FlatSize(), time.Since(start), err)
	if err != nil {
		return selection.Selection{}, err
	}
	return sel, nil
}

// materialize resolves name. visited holds the compound names on the current
// path and is never modified in place.
func (n *NodeSets) materialize(ctx context.Context, name string, pop *sonata.NodePopulation, visited []string) (selection.Selection, error) {
	if err := ctx.Err(); err != nil {
		return selection.Selection{}, err
	}
	d, ok := n.defs[name]
	if !ok {
		return selection.Selection{}, errs.Errorf(errs.ErrMissingDefinition, "unknown node set %q", name)
	}
	if !d.compound {
		return d.materializeBasic(ctx, pop)
	}

	path := append(slices.Clip(visited), name)
	var out selection.Selection
	for _, target := range d.targets {
		if slices.Contains(path, target) {
			return selection.Selection{}, errs.Errorf(errs.ErrRecursiveDefinition, "node set %q references %q", name, target)
		}
		sel, err := n.materialize(ctx, target, pop, path)
		if err != nil {
			return selection.Selection{}, err
		}
		out = out.Union(sel)
	}
	return out, nil
}

// JSON returns the canonical document: names and clause keys sorted, single
// values kept scalar. Parsing the result and calling JSON again yields the
// same bytes.
func (n *NodeSets) JSON() (string, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	doc := make(map[string]any, len(n.defs))
	for name, d := range n.defs {
		doc[name] = d.value()
	}
	data, err := n.opts.Codec.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Update merges the definitions of other into n and returns the sorted names
// that existed in both and were overwritten.
func (n *NodeSets) Update(other *NodeSets) []string {
	if other == n {
		return other.Names()
	}
	other.mu.RLock()
	defer other.mu.RUnlock()
	n.mu.Lock()
	defer n.mu.Unlock()

	var overwritten []string
	for name, d := range other.defs {
		if _, ok := n.defs[name]; ok {
			overwritten = append(overwritten, name)
		}
		n.defs[name] = d
	}
	slices.Sort(overwritten)
	return overwritten
}
