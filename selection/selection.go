// Package selection implements Selection, the canonical set of half-open id
// ranges used to address rows and entities.
//
// A Selection is an immutable, ascending list of disjoint, non-touching
// [Begin, End) ranges. The zero value is the empty selection.
//
//	a, _ := selection.FromValues([]uint64{3, 1, 2, 7})   // [[1 4] [7 8]]
//	b := selection.All(5)                               // [[0 5]]
//	c := a.Intersect(b)                                 // [[1 4]]
//	for id := range c.Values() { ... }
package selection

import (
	"fmt"
	"iter"
	"math"
	"slices"
	"sort"
	"strings"

	"github.com/hupe1980/sonata/errs"
)

// Integer is the set of id types accepted by the constructors.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Range is the half-open interval [Begin, End).
type Range struct {
	Begin uint64
	End   uint64
}

// Len returns the number of ids in r.
func (r Range) Len() uint64 {
	if r.End <= r.Begin {
		return 0
	}
	return r.End - r.Begin
}

func (r Range) String() string {
	return fmt.Sprintf("[%d %d]", r.Begin, r.End)
}

// Selection is a canonical set of ids.
type Selection struct {
	ranges []Range
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %w: %s", errs.ErrInvalidSelection, errs.ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// New builds a Selection from ranges in any order. Overlapping and touching
// ranges are merged and empty ranges dropped. A range with Begin > End is
// rejected.
func New(ranges ...Range) (Selection, error) {
	rs := make([]Range, 0, len(ranges))
	for _, r := range ranges {
		if r.Begin > r.End {
			return Selection{}, invalid("range begin %d greater than end %d", r.Begin, r.End)
		}
		if r.Begin < r.End {
			rs = append(rs, r)
		}
	}
	return Selection{ranges: canonicalize(rs)}, nil
}

// FromPairs builds a Selection from [begin, end) pairs. Negative bounds are
// rejected.
func FromPairs[T Integer](pairs [][2]T) (Selection, error) {
	rs := make([]Range, 0, len(pairs))
	for _, p := range pairs {
		if p[0] < 0 || p[1] < 0 {
			return Selection{}, invalid("negative range bound in [%d, %d)", p[0], p[1])
		}
		rs = append(rs, Range{Begin: uint64(p[0]), End: uint64(p[1])})
	}
	return New(rs...)
}

// FromValues builds a Selection from ids in any order. Duplicates collapse.
// Negative ids and math.MaxUint64, which no half-open range can hold, are
// rejected.
func FromValues[T Integer](ids []T) (Selection, error) {
	values := make([]uint64, len(ids))
	for i, id := range ids {
		if id < 0 {
			return Selection{}, invalid("negative id %d", id)
		}
		values[i] = uint64(id)
		if values[i] == math.MaxUint64 {
			return Selection{}, invalid("id %d is not representable", values[i])
		}
	}
	return fromSorted(values), nil
}

// FromIDs builds a Selection from unsigned ids in any order. The input is not
// modified. math.MaxUint64 cannot be the begin of a half-open range and is
// dropped.
func FromIDs(ids []uint64) Selection {
	return fromSorted(slices.Clone(ids))
}

func fromSorted(values []uint64) Selection {
	slices.Sort(values)
	for len(values) > 0 && values[len(values)-1] == math.MaxUint64 {
		values = values[:len(values)-1]
	}
	if len(values) == 0 {
		return Selection{}
	}

	var ranges []Range
	cur := Range{Begin: values[0], End: values[0] + 1}
	for _, v := range values[1:] {
		switch {
		case v < cur.End:
			// duplicate
		case v == cur.End:
			cur.End++
		default:
			ranges = append(ranges, cur)
			cur = Range{Begin: v, End: v + 1}
		}
	}
	ranges = append(ranges, cur)
	return Selection{ranges: ranges}
}

// All returns the selection [0, n).
func All(n uint64) Selection {
	if n == 0 {
		return Selection{}
	}
	return Selection{ranges: []Range{{Begin: 0, End: n}}}
}

// Must panics if err is non-nil and returns s otherwise.
func Must(s Selection, err error) Selection {
	if err != nil {
		panic(err)
	}
	return s
}

// canonicalize sorts rs in place and merges overlapping or touching ranges.
// All ranges must be non-empty.
func canonicalize(rs []Range) []Range {
	if len(rs) == 0 {
		return nil
	}
	sort.Slice(rs, func(i, j int) bool {
		return rs[i].Begin < rs[j].Begin
	})
	out := rs[:1]
	for _, r := range rs[1:] {
		last := &out[len(out)-1]
		if r.Begin <= last.End {
			last.End = max(last.End, r.End)
			continue
		}
		out = append(out, r)
	}
	return out
}

// Ranges returns a copy of the canonical range list.
func (s Selection) Ranges() []Range {
	return slices.Clone(s.ranges)
}

// RangeCount returns the number of ranges.
func (s Selection) RangeCount() int {
	return len(s.ranges)
}

// IsEmpty reports whether s contains no ids.
func (s Selection) IsEmpty() bool {
	return len(s.ranges) == 0
}

// FlatSize returns the number of ids in s.
func (s Selection) FlatSize() uint64 {
	var n uint64
	for _, r := range s.ranges {
		n += r.Len()
	}
	return n
}

// Min returns the smallest id. ok is false for the empty selection.
func (s Selection) Min() (id uint64, ok bool) {
	if len(s.ranges) == 0 {
		return 0, false
	}
	return s.ranges[0].Begin, true
}

// Max returns the largest id. ok is false for the empty selection.
func (s Selection) Max() (id uint64, ok bool) {
	if len(s.ranges) == 0 {
		return 0, false
	}
	return s.ranges[len(s.ranges)-1].End - 1, true
}

// Values returns the ids in ascending order. The sequence can be iterated
// any number of times.
func (s Selection) Values() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		for _, r := range s.ranges {
			for id := r.Begin; id < r.End; id++ {
				if !yield(id) {
					return
				}
			}
		}
	}
}

// Flatten returns all ids in ascending order.
func (s Selection) Flatten() []uint64 {
	out := make([]uint64, 0, s.FlatSize())
	for _, r := range s.ranges {
		for id := r.Begin; id < r.End; id++ {
			out = append(out, id)
		}
	}
	return out
}

// Contains reports whether id is in s.
func (s Selection) Contains(id uint64) bool {
	i := sort.Search(len(s.ranges), func(i int) bool {
		return s.ranges[i].End > id
	})
	return i < len(s.ranges) && s.ranges[i].Begin <= id
}

// Equal reports whether s and o contain the same ids.
func (s Selection) Equal(o Selection) bool {
	return slices.Equal(s.ranges, o.ranges)
}

// Union returns the ids in s or o.
func (s Selection) Union(o Selection) Selection {
	if len(s.ranges) == 0 {
		return o
	}
	if len(o.ranges) == 0 {
		return s
	}

	out := make([]Range, 0, len(s.ranges)+len(o.ranges))
	push := func(r Range) {
		if n := len(out); n > 0 && r.Begin <= out[n-1].End {
			out[n-1].End = max(out[n-1].End, r.End)
			return
		}
		out = append(out, r)
	}

	i, j := 0, 0
	for i < len(s.ranges) && j < len(o.ranges) {
		if s.ranges[i].Begin <= o.ranges[j].Begin {
			push(s.ranges[i])
			i++
		} else {
			push(o.ranges[j])
			j++
		}
	}
	for ; i < len(s.ranges); i++ {
		push(s.ranges[i])
	}
	for ; j < len(o.ranges); j++ {
		push(o.ranges[j])
	}
	return Selection{ranges: out}
}

// Intersect returns the ids in both s and o.
func (s Selection) Intersect(o Selection) Selection {
	var out []Range
	i, j := 0, 0
	for i < len(s.ranges) && j < len(o.ranges) {
		a, b := s.ranges[i], o.ranges[j]
		lo, hi := max(a.Begin, b.Begin), min(a.End, b.End)
		if lo < hi {
			out = append(out, Range{Begin: lo, End: hi})
		}
		if a.End < b.End {
			i++
		} else {
			j++
		}
	}
	return Selection{ranges: out}
}

// Difference returns the ids in s that are not in o.
func (s Selection) Difference(o Selection) Selection {
	var out []Range
	j := 0
	for _, r := range s.ranges {
		cur := r.Begin
		for j < len(o.ranges) && o.ranges[j].End <= cur {
			j++
		}
		for k := j; k < len(o.ranges) && o.ranges[k].Begin < r.End; k++ {
			if o.ranges[k].Begin > cur {
				out = append(out, Range{Begin: cur, End: o.ranges[k].Begin})
			}
			cur = max(cur, o.ranges[k].End)
		}
		if cur < r.End {
			out = append(out, Range{Begin: cur, End: r.End})
		}
	}
	return Selection{ranges: out}
}

// String formats s as a list of [begin end] pairs.
func (s Selection) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, r := range s.ranges {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(r.String())
	}
	b.WriteByte(']')
	return b.String()
}
