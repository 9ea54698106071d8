// Package adjacency implements per-direction edge indices.
//
// An Index maps an endpoint node id to the edge rows incident to it. It is
// stored as two tables:
//
//	node_id_to_ranges  N x 2  [begin, end) into range_to_edge_id for node n
//	range_to_edge_id   M x 2  [begin, end) of edge rows
//
// Tables are read once by Load, or computed from an endpoint column by Build
// when a population carries no stored index.
package adjacency

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/hupe1980/sonata/container"
	"github.com/hupe1980/sonata/errs"
	"github.com/hupe1980/sonata/selection"
)

const (
	// SourceGroup is the group, relative to an edge population, of the
	// source-to-edge index.
	SourceGroup = "indices/source_to_target"
	// TargetGroup is the group of the target-to-edge index.
	TargetGroup = "indices/target_to_source"

	NodeIDToRanges = "node_id_to_ranges"
	RangeToEdgeID  = "range_to_edge_id"
)

// Index is an immutable adjacency index for one direction.
type Index struct {
	// nodeRanges[2n:2n+2] is the slice of edgeRanges rows owned by node n
	nodeRanges []uint64
	edgeRanges []uint64
	edgeCount  uint64
}

// EndpointCount returns the number of endpoint ids covered by the index.
func (x *Index) EndpointCount() uint64 {
	return uint64(len(x.nodeRanges) / 2)
}

// EdgeCount returns one past the largest edge row referenced by the index.
func (x *Index) EdgeCount() uint64 {
	return x.edgeCount
}

func newIndex(nodeRanges, edgeRanges []uint64) (*Index, error) {
	if len(nodeRanges)%2 != 0 || len(edgeRanges)%2 != 0 {
		return nil, fmt.Errorf("%w: index tables must have two columns", container.ErrFormat)
	}
	m := uint64(len(edgeRanges) / 2)
	for i := 0; i < len(nodeRanges); i += 2 {
		b, e := nodeRanges[i], nodeRanges[i+1]
		if b > e || e > m {
			return nil, fmt.Errorf("%w: node %d points to ranges [%d, %d) of %d", container.ErrFormat, i/2, b, e, m)
		}
	}
	x := &Index{nodeRanges: nodeRanges, edgeRanges: edgeRanges}
	for i := 0; i < len(edgeRanges); i += 2 {
		b, e := edgeRanges[i], edgeRanges[i+1]
		if b > e {
			return nil, fmt.Errorf("%w: malformed edge range [%d, %d)", container.ErrFormat, b, e)
		}
		x.edgeCount = max(x.edgeCount, e)
	}
	return x, nil
}

// Load reads the index stored in group of f.
func Load(ctx context.Context, f *container.File, group string) (*Index, error) {
	nodeRanges, err := readTable(ctx, f, group+"/"+NodeIDToRanges)
	if err != nil {
		return nil, err
	}
	edgeRanges, err := readTable(ctx, f, group+"/"+RangeToEdgeID)
	if err != nil {
		return nil, err
	}
	x, err := newIndex(nodeRanges, edgeRanges)
	if err != nil {
		return nil, &container.PathError{File: f.Name(), Path: group, Err: err}
	}
	return x, nil
}

func readTable(ctx context.Context, f *container.File, path string) ([]uint64, error) {
	ds, err := f.Dataset(path)
	if err != nil {
		return nil, err
	}
	if ds.Rows() > 0 && ds.Cols() != 2 {
		return nil, &container.PathError{File: f.Name(), Path: path, Err: fmt.Errorf("%w: expected 2 columns, got %d", container.ErrFormat, ds.Cols())}
	}
	return container.ReadAll[uint64](ctx, ds)
}

// Exists reports whether group of f holds both index tables.
func Exists(f *container.File, group string) bool {
	return f.IsDataset(group+"/"+NodeIDToRanges) && f.IsDataset(group+"/"+RangeToEdgeID)
}

// Build computes the index of an endpoint column: endpoints[row] is the
// endpoint node id of edge row. Every id must be below endpointCount.
func Build(endpoints []uint64, endpointCount uint64) (*Index, error) {
	type run struct {
		node       uint64
		begin, end uint64
	}
	var runs []run
	for row, id := range endpoints {
		if id >= endpointCount {
			return nil, errs.Errorf(errs.ErrRange, "edge %d: node id %d out of range [0, %d)", row, id, endpointCount)
		}
		if n := len(runs); n > 0 && runs[n-1].node == id && runs[n-1].end == uint64(row) {
			runs[n-1].end++
			continue
		}
		runs = append(runs, run{node: id, begin: uint64(row), end: uint64(row) + 1})
	}

	// counting sort of runs by node keeps row order within a node
	counts := make([]uint64, endpointCount+1)
	for _, r := range runs {
		counts[r.node+1]++
	}
	for i := uint64(1); i <= endpointCount; i++ {
		counts[i] += counts[i-1]
	}
	nodeRanges := make([]uint64, 2*endpointCount)
	for n := uint64(0); n < endpointCount; n++ {
		nodeRanges[2*n], nodeRanges[2*n+1] = counts[n], counts[n+1]
	}
	edgeRanges := make([]uint64, 2*len(runs))
	next := slices.Clone(counts[:endpointCount])
	for _, r := range runs {
		i := next[r.node]
		next[r.node]++
		edgeRanges[2*i], edgeRanges[2*i+1] = r.begin, r.end
	}
	return newIndex(nodeRanges, edgeRanges)
}

// Write stores x in group of w.
func (x *Index) Write(w *container.Writer, group string) error {
	if err := container.WriteDataset(w, group+"/"+NodeIDToRanges, x.nodeRanges, container.WithShape(x.EndpointCount(), 2)); err != nil {
		return err
	}
	return container.WriteDataset(w, group+"/"+RangeToEdgeID, x.edgeRanges, container.WithShape(uint64(len(x.edgeRanges)/2), 2))
}

func (x *Index) ranges(id uint64) []selection.Range {
	if id >= x.EndpointCount() {
		return nil
	}
	b, e := x.nodeRanges[2*id], x.nodeRanges[2*id+1]
	out := make([]selection.Range, 0, e-b)
	for i := b; i < e; i++ {
		out = append(out, selection.Range{Begin: x.edgeRanges[2*i], End: x.edgeRanges[2*i+1]})
	}
	return out
}

// RangesFor returns the edge rows incident to id. Ids outside the index have
// no edges.
func (x *Index) RangesFor(id uint64) selection.Selection {
	// tables are validated on construction
	return selection.Must(selection.New(x.ranges(id)...))
}

// RangesForAll returns the union of RangesFor over ids. Ids may be unsorted
// and repeated.
func (x *Index) RangesForAll(ids []uint64) selection.Selection {
	return x.rangesForSeq(slices.Values(ids))
}

// RangesForSelection returns the union of RangesFor over the ids of sel.
func (x *Index) RangesForSelection(sel selection.Selection) selection.Selection {
	return x.rangesForSeq(sel.Intersect(selection.All(x.EndpointCount())).Values())
}

func (x *Index) rangesForSeq(ids iter.Seq[uint64]) selection.Selection {
	var all []selection.Range
	for id := range ids {
		all = append(all, x.ranges(id)...)
	}
	return selection.Must(selection.New(all...))
}

// Connecting returns the edge rows whose source is in sourceIDs and whose
// target is in targetIDs.
func Connecting(source, target *Index, sourceIDs, targetIDs selection.Selection) selection.Selection {
	return source.RangesForSelection(sourceIDs).Intersect(target.RangesForSelection(targetIDs))
}
