package sonata

import (
	"context"
	"time"

	"github.com/hupe1980/sonata/container"
	"github.com/hupe1980/sonata/errs"
)

const (
	kindNode = "node"
	kindEdge = "edge"
)

// storage lists the populations of one container under /nodes or /edges.
type storage struct {
	f    *container.File
	opts Options
	kind string
}

func openStorage(ctx context.Context, kind, name string, optFns []Option) (storage, error) {
	opts := NewOptions(optFns...)
	start := time.Now()
	f, err := opts.OpenContainer(ctx, name)
	if err != nil {
		opts.Log().LogOpen(ctx, kind+"s", name, 0, err)
		return storage{}, err
	}
	s := storage{f: f, opts: opts, kind: kind}
	opts.Log().LogOpen(ctx, kind+"s", name, len(s.PopulationNames()), nil)
	opts.Log().DebugContext(ctx, "manifest loaded", "file", name, "elapsed", time.Since(start))
	return s, nil
}

func (s storage) root() string {
	return "/" + s.kind + "s"
}

// PopulationNames returns the sorted names of all populations.
func (s storage) PopulationNames() []string {
	names, err := s.f.Groups(s.root())
	if err != nil {
		return nil
	}
	return names
}

// File returns the underlying container.
func (s storage) File() *container.File {
	return s.f
}

// Close releases the underlying container.
func (s storage) Close() error {
	return s.f.Close()
}

func (s storage) openPopulation(ctx context.Context, name string) (*Population, error) {
	if !s.f.IsGroup(s.root() + "/" + name) {
		err := errs.Errorf(errs.ErrNotFound, "no such population: %q", name)
		s.opts.Log().WithPopulation(name).ErrorContext(ctx, "open population failed", "error", err)
		return nil, err
	}
	p, err := newPopulation(s.f, s.kind, name, s.opts)
	if err != nil {
		s.opts.Log().WithPopulation(name).ErrorContext(ctx, "open population failed", "error", err)
		return nil, err
	}
	return p, nil
}

// NodeStorage gives access to the node populations of a container.
type NodeStorage struct {
	storage
}

// OpenNodeStorage opens the node populations stored in the named container.
func OpenNodeStorage(ctx context.Context, name string, optFns ...Option) (*NodeStorage, error) {
	s, err := openStorage(ctx, kindNode, name, optFns)
	if err != nil {
		return nil, err
	}
	return &NodeStorage{storage: s}, nil
}

// NewNodeStorage wraps an already opened container.
func NewNodeStorage(f *container.File, optFns ...Option) *NodeStorage {
	return &NodeStorage{storage: storage{f: f, opts: NewOptions(optFns...), kind: kindNode}}
}

// OpenPopulation opens the named node population.
func (s *NodeStorage) OpenPopulation(ctx context.Context, name string) (*NodePopulation, error) {
	p, err := s.openPopulation(ctx, name)
	if err != nil {
		return nil, err
	}
	return &NodePopulation{Population: p}, nil
}

// EdgeStorage gives access to the edge populations of a container.
type EdgeStorage struct {
	storage
}

// OpenEdgeStorage opens the edge populations stored in the named container.
func OpenEdgeStorage(ctx context.Context, name string, optFns ...Option) (*EdgeStorage, error) {
	s, err := openStorage(ctx, kindEdge, name, optFns)
	if err != nil {
		return nil, err
	}
	return &EdgeStorage{storage: s}, nil
}

// NewEdgeStorage wraps an already opened container.
func NewEdgeStorage(f *container.File, optFns ...Option) *EdgeStorage {
	return &EdgeStorage{storage: storage{f: f, opts: NewOptions(optFns...), kind: kindEdge}}
}

// OpenPopulation opens the named edge population.
func (s *EdgeStorage) OpenPopulation(ctx context.Context, name string) (*EdgePopulation, error) {
	p, err := s.openPopulation(ctx, name)
	if err != nil {
		return nil, err
	}
	e := newEdgePopulation(p)
	if err := e.checkEdges(); err != nil {
		return nil, err
	}
	return e, nil
}
