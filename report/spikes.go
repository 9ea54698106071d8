package report

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/hupe1980/sonata"
	"github.com/hupe1980/sonata/container"
	"github.com/hupe1980/sonata/errs"
	"github.com/hupe1980/sonata/selection"
)

// Sorting is the declared order of a spike population.
type Sorting int

const (
	SortingNone Sorting = iota
	SortingByID
	SortingByTime
)

var sortingNames = [...]string{"none", "by_id", "by_time"}

func (s Sorting) String() string {
	if s < 0 || int(s) >= len(sortingNames) {
		return fmt.Sprintf("Sorting(%d)", int(s))
	}
	return sortingNames[s]
}

// ParseSorting accepts the stored string or integer forms of a sort mode.
func ParseSorting(a container.Attribute) (Sorting, error) {
	if a.DType == container.String {
		if i := slices.Index(sortingNames[:], a.String); i >= 0 {
			return Sorting(i), nil
		}
		return SortingNone, errs.Errorf(errs.ErrInvalidArgument, "unknown sorting %q", a.String)
	}
	v, err := a.AsInt64()
	if err != nil {
		return SortingNone, err
	}
	if v < 0 || v >= int64(len(sortingNames)) {
		return SortingNone, errs.Errorf(errs.ErrInvalidArgument, "unknown sorting %d", v)
	}
	return Sorting(v), nil
}

// Spike is one action potential.
type Spike struct {
	NodeID uint64
	Time   float64
}

// SpikePopulation holds the spikes of one population in storage order.
type SpikePopulation struct {
	name      string
	opts      sonata.Options
	log       *sonata.Logger
	spikes    []Spike
	sorting   Sorting
	timeUnits string

	start, stop float64
}

func openSpikePopulation(ctx context.Context, f *container.File, opts sonata.Options, name string) (*SpikePopulation, error) {
	path := groupSpikes + "/" + name
	ids, err := readDataset[uint64](ctx, f, path+"/node_ids")
	if err != nil {
		return nil, err
	}
	times, err := readDataset[float64](ctx, f, path+"/timestamps")
	if err != nil {
		return nil, err
	}
	if len(ids) != len(times) {
		return nil, errs.Errorf(errs.ErrRange, "spike population %q: 'node_ids' and 'timestamps' do not have the same size", name)
	}

	p := &SpikePopulation{
		name:      name,
		opts:      opts,
		log:       opts.Log().WithPopulation(name),
		spikes:    make([]Spike, len(ids)),
		timeUnits: stringAttribute(f, path+"/timestamps", "units"),
	}
	for i := range ids {
		p.spikes[i] = Spike{NodeID: ids[i], Time: times[i]}
	}
	if a, err := f.Attribute(path, "sorting"); err == nil {
		if p.sorting, err = ParseSorting(a); err != nil {
			return nil, fmt.Errorf("spike population %q: %w", name, err)
		}
	}

	if len(times) > 0 {
		if p.sorting == SortingByTime {
			p.start, p.stop = times[0], times[len(times)-1]
		} else {
			p.start, p.stop = slices.Min(times), slices.Max(times)
		}
	}
	return p, nil
}

// Name returns the population name.
func (p *SpikePopulation) Name() string {
	return p.name
}

// Sorting returns the declared order of the stored spikes.
func (p *SpikePopulation) Sorting() Sorting {
	return p.sorting
}

// Times returns the first and last spike time.
func (p *SpikePopulation) Times() (start, stop float64) {
	return p.start, p.stop
}

// TimeUnits returns the units of the timestamps.
func (p *SpikePopulation) TimeUnits() string {
	return p.timeUnits
}

// Len returns the number of stored spikes.
func (p *SpikePopulation) Len() int {
	return len(p.spikes)
}

// Get returns the spikes of the requested nodes within the inclusive time
// window. by_time populations are returned by time, by_id populations by
// id then time, and unsorted ones in storage order.
func (p *SpikePopulation) Get(ctx context.Context, optFns ...GetOption) ([]Spike, error) {
	begin := time.Now()
	o, err := newGetOptions(optFns)
	var spikes []Spike
	if err == nil {
		spikes, err = p.get(o)
	}
	ids := -1
	if o.ids != nil {
		ids = int(o.ids.FlatSize())
	}
	p.log.LogReportGet(ctx, p.name, ids, len(spikes), 0, err)
	p.opts.Metrics().RecordReportGet(p.name, len(spikes), time.Since(begin), err)
	if err != nil {
		return nil, err
	}
	return spikes, nil
}

func (p *SpikePopulation) get(o getOptions) ([]Spike, error) {
	start, stop, err := o.window(p.start, p.stop)
	if err != nil {
		return nil, err
	}
	if o.ids != nil && o.ids.IsEmpty() {
		return []Spike{}, nil
	}

	spikes := p.filterTime(start, stop)
	if o.ids != nil {
		spikes = p.filterIDs(spikes, *o.ids)
	}

	switch p.sorting {
	case SortingByTime:
		slices.SortStableFunc(spikes, func(a, b Spike) int {
			return cmp.Compare(a.Time, b.Time)
		})
	case SortingByID:
		slices.SortStableFunc(spikes, func(a, b Spike) int {
			if c := cmp.Compare(a.NodeID, b.NodeID); c != 0 {
				return c
			}
			return cmp.Compare(a.Time, b.Time)
		})
	}
	return spikes, nil
}

// filterTime returns a copy of the spikes in [start-Epsilon, stop+Epsilon].
func (p *SpikePopulation) filterTime(start, stop float64) []Spike {
	lo, hi := start-Epsilon, stop+Epsilon
	if p.sorting == SortingByTime {
		i := sort.Search(len(p.spikes), func(i int) bool { return p.spikes[i].Time >= lo })
		j := sort.Search(len(p.spikes), func(j int) bool { return p.spikes[j].Time > hi })
		if i >= j {
			return []Spike{}
		}
		return slices.Clone(p.spikes[i:j])
	}
	out := make([]Spike, 0, len(p.spikes))
	for _, s := range p.spikes {
		if s.Time >= lo && s.Time <= hi {
			out = append(out, s)
		}
	}
	return out
}

// filterIDs keeps the spikes of nodes in sel. Spikes sorted by id are cut by
// binary search per range; otherwise membership is tested on a bitmap.
func (p *SpikePopulation) filterIDs(spikes []Spike, sel selection.Selection) []Spike {
	out := make([]Spike, 0, len(spikes))
	if p.sorting == SortingByID {
		for _, r := range sel.Ranges() {
			i := sort.Search(len(spikes), func(i int) bool { return spikes[i].NodeID >= r.Begin })
			j := sort.Search(len(spikes), func(j int) bool { return spikes[j].NodeID >= r.End })
			out = append(out, spikes[i:j]...)
		}
		return out
	}
	bm := sel.Bitmap()
	for _, s := range spikes {
		if bm.Contains(s.NodeID) {
			out = append(out, s)
		}
	}
	return out
}
