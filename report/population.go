package report

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/hupe1980/sonata"
	"github.com/hupe1980/sonata/container"
	"github.com/hupe1980/sonata/errs"
	"github.com/hupe1980/sonata/internal/bulkread"
	"github.com/hupe1980/sonata/selection"
)

// ElementKey identifies one column of an element report.
type ElementKey struct {
	NodeID    uint64
	ElementID uint32
}

func (k ElementKey) String() string {
	return fmt.Sprintf("(%d, %d)", k.NodeID, k.ElementID)
}

func nodeKey(node uint64, _ uint32) uint64 { return node }

func elementKey(node uint64, element uint32) ElementKey {
	return ElementKey{NodeID: node, ElementID: element}
}

// Frame holds the values of a report read. Data is time-major:
// Data[t*len(IDs)+i] is the value of IDs[i] at Times[t].
type Frame[K any] struct {
	IDs   []K
	Times []float64
	Data  []float32
}

// At returns the value of column i at sample t.
func (f Frame[K]) At(t, i int) float32 {
	return f.Data[t*len(f.IDs)+i]
}

// IsEmpty reports whether f holds no values.
func (f Frame[K]) IsEmpty() bool {
	return len(f.Data) == 0
}

// Population is one population of a soma or element report. Every node
// owns a contiguous run of data columns; K identifies a column.
//
// The mapping is loaded when the population is opened; values are read on
// each Get.
type Population[K any] struct {
	name string
	opts sonata.Options
	log  *sonata.Logger
	data *container.Dataset
	key  func(node uint64, element uint32) K

	start, stop, step float64
	samples           int
	timeUnits         string
	dataUnits         string
	sorted            bool

	nodeIDs    []uint64
	pointers   []uint64
	elementIDs []uint32
	index      map[uint64]int
	sortedIDs  []uint64
}

// SomaPopulation is a report population with one column per node.
type SomaPopulation = Population[uint64]

// ElementPopulation is a report population with one column per element.
type ElementPopulation = Population[ElementKey]

func stringAttribute(f *container.File, path, name string) string {
	a, err := f.Attribute(path, name)
	if err != nil {
		return ""
	}
	s, err := a.AsString()
	if err != nil {
		return ""
	}
	return s
}

func readDataset[T container.Element](ctx context.Context, f *container.File, path string) ([]T, error) {
	ds, err := f.Dataset(path)
	if err != nil {
		return nil, err
	}
	return container.ReadAll[T](ctx, ds)
}

func openPopulation[K any](key func(uint64, uint32) K) func(context.Context, *container.File, sonata.Options, string) (*Population[K], error) {
	return func(ctx context.Context, f *container.File, opts sonata.Options, name string) (*Population[K], error) {
		path := groupReport + "/" + name
		mapping := path + "/mapping"
		p := &Population[K]{
			name:      name,
			opts:      opts,
			log:       opts.Log().WithPopulation(name),
			key:       key,
			timeUnits: stringAttribute(f, mapping+"/time", "units"),
			dataUnits: stringAttribute(f, path+"/data", "units"),
		}

		var err error
		if p.nodeIDs, err = readDataset[uint64](ctx, f, mapping+"/node_ids"); err != nil {
			return nil, err
		}
		if p.pointers, err = readDataset[uint64](ctx, f, mapping+"/index_pointers"); err != nil {
			return nil, err
		}
		if p.elementIDs, err = readDataset[uint32](ctx, f, mapping+"/element_ids"); err != nil {
			return nil, err
		}
		times, err := readDataset[float64](ctx, f, mapping+"/time")
		if err != nil {
			return nil, err
		}
		if p.data, err = f.Dataset(path + "/data"); err != nil {
			return nil, err
		}
		if a, err := f.Attribute(mapping+"/node_ids", "sorted"); err == nil {
			v, err := a.AsInt64()
			if err != nil {
				return nil, err
			}
			p.sorted = v != 0
		}

		if len(times) != 3 {
			return nil, errs.Errorf(errs.ErrRange, "mapping/time has %d values, want 3", len(times))
		}
		p.start, p.stop, p.step = times[0], times[1], times[2]
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("report population %q: %w", name, err)
		}

		p.index = make(map[uint64]int, len(p.nodeIDs))
		for i, id := range p.nodeIDs {
			if _, ok := p.index[id]; !ok {
				p.index[id] = i
				p.sortedIDs = append(p.sortedIDs, id)
			}
		}
		slices.Sort(p.sortedIDs)
		return p, nil
	}
}

// validate checks the mapping against the data shape and counts the samples.
func (p *Population[K]) validate() error {
	if len(p.pointers) != len(p.nodeIDs)+1 {
		return errs.Errorf(errs.ErrRange, "%d index pointers for %d nodes", len(p.pointers), len(p.nodeIDs))
	}
	for i := 1; i < len(p.pointers); i++ {
		if p.pointers[i] < p.pointers[i-1] {
			return errs.Errorf(errs.ErrRange, "index pointers decrease at %d", i)
		}
	}
	columns := p.pointers[len(p.pointers)-1]
	if columns > uint64(len(p.elementIDs)) || columns > p.data.Cols() {
		return errs.Errorf(errs.ErrRange, "mapping addresses %d columns, data has %d", columns, p.data.Cols())
	}
	if p.step <= 0 {
		return errs.Errorf(errs.ErrRange, "time step %g must be positive", p.step)
	}
	for p.samples < int(p.data.Rows()) && p.timeAt(p.samples) < p.stop-Epsilon {
		p.samples++
	}
	return nil
}

func (p *Population[K]) timeAt(i int) float64 {
	return p.start + float64(i)*p.step
}

// Name returns the population name.
func (p *Population[K]) Name() string {
	return p.name
}

// Times returns the start, stop and step of the time axis.
func (p *Population[K]) Times() (start, stop, step float64) {
	return p.start, p.stop, p.step
}

// TimeUnits returns the units of the time axis.
func (p *Population[K]) TimeUnits() string {
	return p.timeUnits
}

// DataUnits returns the units of the values.
func (p *Population[K]) DataUnits() string {
	return p.dataUnits
}

// Sorted reports whether node ids increase with column position.
func (p *Population[K]) Sorted() bool {
	return p.sorted
}

// NodeIDs returns the node ids in storage order.
func (p *Population[K]) NodeIDs() []uint64 {
	return slices.Clone(p.nodeIDs)
}

// samplesIn returns the sample indices of the inclusive window [start, stop].
// A window of zero width selects the nearest sample.
func (p *Population[K]) samplesIn(o getOptions) (first, last int, err error) {
	start, stop, err := o.window(p.start, p.stop)
	if err != nil {
		return 0, 0, err
	}

	first = -1
	for i := 0; i < p.samples; i++ {
		if start < p.timeAt(i)+Epsilon {
			first = i
			break
		}
	}
	if first < 0 {
		return 0, 0, errs.Errorf(errs.ErrRange, "tstart %g is after the end of the range", start)
	}
	if start == stop {
		i := int(math.Round((start - p.start) / p.step))
		i = min(max(i, 0), p.samples-1)
		return i, i, nil
	}

	last = -1
	for i := p.samples - 1; i >= 0; i-- {
		if stop > p.timeAt(i)-Epsilon {
			last = i
			break
		}
	}
	if last < 0 {
		return 0, 0, errs.Errorf(errs.ErrRange, "tstop %g is before the beginning of the range", stop)
	}
	if first > last {
		return 0, 0, errs.Errorf(errs.ErrRange, "window [%g, %g] contains no sample", start, stop)
	}
	return first, last, nil
}

// columns returns the keys and column ranges of the requested nodes, in
// output order. Ids without data are skipped. A selection larger than the
// population is matched against the stored ids instead of being expanded.
func (p *Population[K]) columns(o getOptions) ([]K, []selection.Range) {
	var (
		keys   []K
		ranges []selection.Range
	)
	add := func(id uint64) {
		i, ok := p.index[id]
		if !ok {
			return
		}
		r := selection.Range{Begin: p.pointers[i], End: p.pointers[i+1]}
		if r.Len() == 0 {
			return
		}
		for _, e := range p.elementIDs[r.Begin:r.End] {
			keys = append(keys, p.key(id, e))
		}
		ranges = append(ranges, r)
	}

	switch {
	case o.ids == nil:
		for _, id := range p.nodeIDs {
			add(id)
		}
	case o.ids.FlatSize() > uint64(len(p.sortedIDs)):
		for _, id := range p.sortedIDs {
			if o.ids.Contains(id) {
				add(id)
			}
		}
	default:
		for id := range o.ids.Values() {
			add(id)
		}
	}
	return keys, ranges
}

// NodeIDElementIDMapping returns the column keys that Get would return for
// the same ids.
func (p *Population[K]) NodeIDElementIDMapping(_ context.Context, optFns ...GetOption) ([]K, error) {
	o, err := newGetOptions(optFns)
	if err != nil {
		return nil, err
	}
	keys, _ := p.columns(o)
	return keys, nil
}

// Get reads the values of the requested nodes and time window.
func (p *Population[K]) Get(ctx context.Context, optFns ...GetOption) (Frame[K], error) {
	start := time.Now()
	frame, reads, err := p.get(ctx, optFns)
	p.log.LogReportGet(ctx, p.name, len(frame.IDs), len(frame.Times), reads, err)
	p.opts.Metrics().RecordReportGet(p.name, len(frame.Data), time.Since(start), err)
	if err != nil {
		return Frame[K]{}, err
	}
	return frame, nil
}

func (p *Population[K]) get(ctx context.Context, optFns []GetOption) (Frame[K], int, error) {
	o, err := newGetOptions(optFns)
	if err != nil {
		return Frame[K]{}, 0, err
	}
	first, last, err := p.samplesIn(o)
	if err != nil {
		return Frame[K]{}, 0, err
	}
	if o.ids != nil && o.ids.IsEmpty() {
		return Frame[K]{}, 0, nil
	}
	keys, ranges := p.columns(o)
	if len(keys) == 0 {
		return Frame[K]{}, 0, nil
	}

	stride := int(min(o.stride, uint64(last-first+1)))
	var samples []int
	for i := first; i <= last; i += stride {
		samples = append(samples, i)
	}

	// Each merged block is read once for the whole window; the stride is
	// applied in memory.
	blocks := bulkread.SortAndMerge(ranges, o.gapLimit, 0)
	var width uint64
	for _, b := range blocks {
		width += b.Len()
	}
	rows := selection.Range{Begin: uint64(first), End: uint64(last) + 1}
	size := int64(len(samples)*len(keys)*4) + int64(rows.Len()*width*4)
	if err := p.opts.Resources.AcquireMemory(ctx, size); err != nil {
		return Frame[K]{}, 0, err
	}
	defer p.opts.Resources.ReleaseMemory(size)

	buffers := make([][]float32, len(blocks))
	for i, b := range blocks {
		buf, err := container.ReadBlock[float32](ctx, p.data, rows, b)
		if err != nil {
			return Frame[K]{}, i, err
		}
		buffers[i] = buf
	}

	at := make([]int, len(ranges))
	for j, r := range ranges {
		at[j], _ = bulkread.Block(blocks, r)
	}

	frame := Frame[K]{
		IDs:   keys,
		Times: make([]float64, 0, len(samples)),
		Data:  make([]float32, 0, len(samples)*len(keys)),
	}
	for _, i := range samples {
		row := uint64(i - first)
		for j, r := range ranges {
			b := blocks[at[j]]
			lo := row*b.Len() + r.Begin - b.Begin
			frame.Data = append(frame.Data, buffers[at[j]][lo:lo+r.Len()]...)
		}
		frame.Times = append(frame.Times, p.timeAt(i))
	}
	return frame, len(blocks), nil
}
