// Package bulkread plans and executes coalesced reads of row ranges.
//
// Selected row ranges are sorted and merged into larger blocks when the gap
// between them is small; each block is read once and the requested ranges are
// then extracted from the block buffers.
package bulkread

import (
	"slices"
	"sort"

	"github.com/hupe1980/sonata/selection"
)

const (
	// PageSize is the nominal backend read granularity in bytes.
	PageSize = 4 << 20

	// MinGapSize is the default gap, in elements of 8 bytes, below which two
	// ranges are read as one block.
	MinGapSize = PageSize / (2 * 8)

	// MaxAggregatedBlockSize caps the length, in elements, of a merged block.
	MaxAggregatedBlockSize = 128 * MinGapSize
)

// SortAndMerge returns the blocks to read for ranges. Ranges are sorted by
// Begin; a range starting less than minGap after the current block end is
// appended to that block unless the block would grow beyond maxBlock
// elements. A maxBlock of 0 disables the cap. Empty ranges are ignored.
func SortAndMerge(ranges []selection.Range, minGap, maxBlock uint64) []selection.Range {
	rs := make([]selection.Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Begin < r.End {
			rs = append(rs, r)
		}
	}
	if len(rs) == 0 {
		return nil
	}
	sort.SliceStable(rs, func(i, j int) bool {
		return rs[i].Begin < rs[j].Begin
	})

	out := []selection.Range{rs[0]}
	for _, r := range rs[1:] {
		last := &out[len(out)-1]
		end := max(last.End, r.End)
		near := r.Begin < last.End || r.Begin-last.End < minGap
		if near && (maxBlock == 0 || end-last.Begin <= maxBlock || r.Begin < last.End) {
			last.End = end
			continue
		}
		out = append(out, r)
	}
	return out
}

// Block locates the merged block containing r. ok is false if r is not
// fully covered by one block.
func Block(blocks []selection.Range, r selection.Range) (index int, ok bool) {
	i := sort.Search(len(blocks), func(i int) bool {
		return blocks[i].End > r.Begin
	})
	if i == len(blocks) || blocks[i].Begin > r.Begin || blocks[i].End < r.End {
		return 0, false
	}
	return i, true
}

// ReadFunc reads the values of one block.
type ReadFunc[T any] func(block selection.Range) ([]T, error)

// Read reads ranges, in the given order, by reading each planned block once
// and extracting the requested ranges. The result is the concatenation of the
// ranges' values.
func Read[T any](ranges []selection.Range, minGap, maxBlock uint64, read ReadFunc[T]) ([]T, error) {
	blocks := SortAndMerge(ranges, minGap, maxBlock)

	buffers := make([][]T, len(blocks))
	for i, b := range blocks {
		buf, err := read(b)
		if err != nil {
			return nil, err
		}
		buffers[i] = buf
	}

	var total uint64
	for _, r := range ranges {
		total += r.Len()
	}
	out := make([]T, 0, total)
	for _, r := range ranges {
		if r.Len() == 0 {
			continue
		}
		i, _ := Block(blocks, r)
		lo := r.Begin - blocks[i].Begin
		out = append(out, buffers[i][lo:lo+r.Len()]...)
	}
	return out, nil
}

// ReadSelection reads the values addressed by sel in ascending order using
// the default gap and block limits.
func ReadSelection[T any](sel selection.Selection, read ReadFunc[T]) ([]T, error) {
	return Read(sel.Ranges(), MinGapSize, MaxAggregatedBlockSize, read)
}

// Scatter reads ids given in arbitrary order (duplicates allowed). Values are
// read through the canonical selection and returned in the order of ids.
func Scatter[T any](ids []uint64, read func(sel selection.Selection) ([]T, error)) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	values, err := read(selection.FromIDs(sorted))
	if err != nil {
		return nil, err
	}

	out := make([]T, len(ids))
	for i, id := range ids {
		j, _ := slices.BinarySearch(sorted, id)
		out[i] = values[j]
	}
	return out, nil
}
