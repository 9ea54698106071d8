package report

import (
	"context"
	"sync"

	"github.com/hupe1980/sonata"
	"github.com/hupe1980/sonata/container"
	"github.com/hupe1980/sonata/errs"
)

const (
	groupReport = "/report"
	groupSpikes = "/spikes"
)

// Reader lists and opens the populations of one report file. Opened
// populations are kept for the lifetime of the Reader.
type Reader[P any] struct {
	f    *container.File
	opts sonata.Options
	root string
	open func(ctx context.Context, f *container.File, opts sonata.Options, name string) (P, error)

	mu   sync.Mutex
	pops map[string]P
}

func openReader[P any](ctx context.Context, kind, root, name string, optFns []sonata.Option,
	open func(context.Context, *container.File, sonata.Options, string) (P, error)) (*Reader[P], error) {
	opts := sonata.NewOptions(optFns...)
	f, err := opts.OpenContainer(ctx, name)
	if err != nil {
		opts.Log().LogOpen(ctx, kind, name, 0, err)
		return nil, err
	}
	r := &Reader[P]{f: f, opts: opts, root: root, open: open, pops: map[string]P{}}
	opts.Log().LogOpen(ctx, kind, name, len(r.PopulationNames()), nil)
	return r, nil
}

// OpenSoma opens a soma report.
func OpenSoma(ctx context.Context, name string, optFns ...sonata.Option) (*Reader[*SomaPopulation], error) {
	return openReader(ctx, "soma report", groupReport, name, optFns, openPopulation(nodeKey))
}

// OpenElement opens an element (compartment) report.
func OpenElement(ctx context.Context, name string, optFns ...sonata.Option) (*Reader[*ElementPopulation], error) {
	return openReader(ctx, "element report", groupReport, name, optFns, openPopulation(elementKey))
}

// OpenSpikes opens a spike report.
func OpenSpikes(ctx context.Context, name string, optFns ...sonata.Option) (*Reader[*SpikePopulation], error) {
	return openReader(ctx, "spikes", groupSpikes, name, optFns, openSpikePopulation)
}

// PopulationNames returns the sorted population names.
func (r *Reader[P]) PopulationNames() []string {
	names, err := r.f.Groups(r.root)
	if err != nil {
		return nil
	}
	return names
}

// OpenPopulation opens the named population, reusing an earlier handle.
func (r *Reader[P]) OpenPopulation(ctx context.Context, name string) (P, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.pops[name]; ok {
		return p, nil
	}

	var zero P
	log := r.opts.Log().WithPopulation(name)
	if !r.f.IsGroup(r.root + "/" + name) {
		err := errs.Errorf(errs.ErrNotFound, "no such population: %q", name)
		log.ErrorContext(ctx, "open population failed", "error", err)
		return zero, err
	}
	p, err := r.open(ctx, r.f, r.opts, name)
	if err != nil {
		log.ErrorContext(ctx, "open population failed", "error", err)
		return zero, err
	}
	r.pops[name] = p
	return p, nil
}

// File returns the underlying container.
func (r *Reader[P]) File() *container.File {
	return r.f
}

// Close releases the underlying container.
func (r *Reader[P]) Close() error {
	return r.f.Close()
}
