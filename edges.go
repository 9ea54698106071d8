package sonata

import (
	"context"
	"slices"
	"sync"

	"github.com/hupe1980/sonata/adjacency"
	"github.com/hupe1980/sonata/container"
	"github.com/hupe1980/sonata/errs"
	"github.com/hupe1980/sonata/internal/bulkread"
	"github.com/hupe1980/sonata/selection"
)

const (
	datasetSource = "source_node_id"
	datasetTarget = "target_node_id"
	attrNodePop   = "node_population"
)

// lazyIndex holds an adjacency index built at most once per population
// handle. A failed build is not memoized.
type lazyIndex struct {
	mu  sync.Mutex
	idx *adjacency.Index
}

// EdgePopulation is a population of directed edges between two node
// populations.
type EdgePopulation struct {
	*Population

	bySource lazyIndex
	byTarget lazyIndex
}

func newEdgePopulation(p *Population) *EdgePopulation {
	return &EdgePopulation{Population: p}
}

func (e *EdgePopulation) endpointPopulation(dataset string) (string, error) {
	a, err := e.f.Attribute(e.path+"/"+dataset, attrNodePop)
	if err != nil {
		return "", translateError(err)
	}
	return a.AsString()
}

// Source returns the name of the source node population.
func (e *EdgePopulation) Source() (string, error) {
	return e.endpointPopulation(datasetSource)
}

// Target returns the name of the target node population.
func (e *EdgePopulation) Target() (string, error) {
	return e.endpointPopulation(datasetTarget)
}

func (e *EdgePopulation) endpoints(ctx context.Context, dataset string, sel selection.Selection) ([]uint64, error) {
	ds, err := e.f.Dataset(e.path + "/" + dataset)
	if err != nil {
		return nil, translateError(err)
	}
	if err := e.checkSelection(sel); err != nil {
		return nil, err
	}
	return container.ReadSelection[uint64](ctx, ds, sel)
}

// SourceNodes returns the source node id of every edge in sel.
func (e *EdgePopulation) SourceNodes(ctx context.Context, sel selection.Selection) ([]uint64, error) {
	return e.endpoints(ctx, datasetSource, sel)
}

// TargetNodes returns the target node id of every edge in sel.
func (e *EdgePopulation) TargetNodes(ctx context.Context, sel selection.Selection) ([]uint64, error) {
	return e.endpoints(ctx, datasetTarget, sel)
}

// SourceNodesOf returns the source node ids of edgeIDs, in the given order.
// Duplicates are allowed.
func (e *EdgePopulation) SourceNodesOf(ctx context.Context, edgeIDs []uint64) ([]uint64, error) {
	return bulkread.Scatter(edgeIDs, func(sel selection.Selection) ([]uint64, error) {
		return e.SourceNodes(ctx, sel)
	})
}

// TargetNodesOf returns the target node ids of edgeIDs, in the given order.
func (e *EdgePopulation) TargetNodesOf(ctx context.Context, edgeIDs []uint64) ([]uint64, error) {
	return bulkread.Scatter(edgeIDs, func(sel selection.Selection) ([]uint64, error) {
		return e.TargetNodes(ctx, sel)
	})
}

func (e *EdgePopulation) single(ctx context.Context, dataset string, edgeID uint64) (uint64, error) {
	ids, err := e.endpoints(ctx, dataset, selection.FromIDs([]uint64{edgeID}))
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// SourceNode returns the source node id of one edge.
func (e *EdgePopulation) SourceNode(ctx context.Context, edgeID uint64) (uint64, error) {
	return e.single(ctx, datasetSource, edgeID)
}

// TargetNode returns the target node id of one edge.
func (e *EdgePopulation) TargetNode(ctx context.Context, edgeID uint64) (uint64, error) {
	return e.single(ctx, datasetTarget, edgeID)
}

func (e *EdgePopulation) index(ctx context.Context, l *lazyIndex, group, endpoint string) (*adjacency.Index, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.idx != nil {
		return l.idx, nil
	}

	log := e.opts.Log().WithPopulation(e.name)
	path := e.path + "/" + group
	stored := adjacency.Exists(e.f, path)

	var (
		idx *adjacency.Index
		err error
	)
	if stored {
		idx, err = adjacency.Load(ctx, e.f, path)
	} else {
		idx, err = e.buildIndex(ctx, endpoint)
	}
	log.LogIndex(ctx, group, stored, err)
	if err != nil {
		return nil, err
	}
	l.idx = idx
	return idx, nil
}

func (e *EdgePopulation) buildIndex(ctx context.Context, endpoint string) (*adjacency.Index, error) {
	ids, err := e.endpoints(ctx, endpoint, e.SelectAll())
	if err != nil {
		return nil, err
	}
	count := uint64(0)
	if len(ids) > 0 {
		count = slices.Max(ids) + 1
	}
	return adjacency.Build(ids, count)
}

func (e *EdgePopulation) sourceIndex(ctx context.Context) (*adjacency.Index, error) {
	return e.index(ctx, &e.bySource, adjacency.SourceGroup, datasetSource)
}

func (e *EdgePopulation) targetIndex(ctx context.Context) (*adjacency.Index, error) {
	return e.index(ctx, &e.byTarget, adjacency.TargetGroup, datasetTarget)
}

// AfferentEdges returns the edges whose target is one of targets.
func (e *EdgePopulation) AfferentEdges(ctx context.Context, targets selection.Selection) (selection.Selection, error) {
	idx, err := e.targetIndex(ctx)
	if err != nil {
		return selection.Selection{}, err
	}
	return idx.RangesForSelection(targets), nil
}

// EfferentEdges returns the edges whose source is one of sources.
func (e *EdgePopulation) EfferentEdges(ctx context.Context, sources selection.Selection) (selection.Selection, error) {
	idx, err := e.sourceIndex(ctx)
	if err != nil {
		return selection.Selection{}, err
	}
	return idx.RangesForSelection(sources), nil
}

// ConnectingEdges returns the edges from one of sources to one of targets.
func (e *EdgePopulation) ConnectingEdges(ctx context.Context, sources, targets selection.Selection) (selection.Selection, error) {
	src, err := e.sourceIndex(ctx)
	if err != nil {
		return selection.Selection{}, err
	}
	tgt, err := e.targetIndex(ctx)
	if err != nil {
		return selection.Selection{}, err
	}
	return adjacency.Connecting(src, tgt, sources, targets), nil
}

// AfferentEdgesOf is AfferentEdges for an unsorted id list.
func (e *EdgePopulation) AfferentEdgesOf(ctx context.Context, targets []uint64) (selection.Selection, error) {
	idx, err := e.targetIndex(ctx)
	if err != nil {
		return selection.Selection{}, err
	}
	return idx.RangesForAll(targets), nil
}

// EfferentEdgesOf is EfferentEdges for an unsorted id list.
func (e *EdgePopulation) EfferentEdgesOf(ctx context.Context, sources []uint64) (selection.Selection, error) {
	idx, err := e.sourceIndex(ctx)
	if err != nil {
		return selection.Selection{}, err
	}
	return idx.RangesForAll(sources), nil
}

// checkEdges verifies that both endpoint columns cover the population.
func (e *EdgePopulation) checkEdges() error {
	for _, name := range []string{datasetSource, datasetTarget} {
		ds, err := e.f.Dataset(e.path + "/" + name)
		if err != nil {
			return translateError(err)
		}
		if ds.Rows() != e.size {
			return errs.Errorf(errs.ErrRange, "%s has %d rows, population %q has %d edges", name, ds.Rows(), e.name, e.size)
		}
	}
	return nil
}
