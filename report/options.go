package report

import (
	"github.com/hupe1980/sonata/errs"
	"github.com/hupe1980/sonata/selection"
)

const (
	// Epsilon is the tolerance used when comparing times.
	Epsilon = 1e-6

	// MinBlockGapLimit is the smallest accepted block gap limit, in elements.
	MinBlockGapLimit = 4194304
)

type getOptions struct {
	ids      *selection.Selection
	start    *float64
	stop     *float64
	stride   uint64
	gapLimit uint64
}

// GetOption configures a report read.
type GetOption func(*getOptions)

// WithIDs restricts a read to the given node ids. Without it all nodes of the
// population are read in storage order.
func WithIDs(sel selection.Selection) GetOption {
	return func(o *getOptions) {
		o.ids = &sel
	}
}

// WithTimeWindow restricts a read to samples in [start, stop].
func WithTimeWindow(start, stop float64) GetOption {
	return func(o *getOptions) {
		o.start = &start
		o.stop = &stop
	}
}

// WithStart sets the first time of the window.
func WithStart(start float64) GetOption {
	return func(o *getOptions) {
		o.start = &start
	}
}

// WithStop sets the last time of the window.
func WithStop(stop float64) GetOption {
	return func(o *getOptions) {
		o.stop = &stop
	}
}

// WithStride keeps every k-th sample of the window. Defaults to 1.
func WithStride(k uint64) GetOption {
	return func(o *getOptions) {
		o.stride = k
	}
}

// WithBlockGapLimit sets the largest gap, in elements, between two requested
// column ranges that is still read as one block. Defaults to
// MinBlockGapLimit.
func WithBlockGapLimit(n uint64) GetOption {
	return func(o *getOptions) {
		o.gapLimit = n
	}
}

func newGetOptions(optFns []GetOption) (getOptions, error) {
	o := getOptions{stride: 1, gapLimit: MinBlockGapLimit}
	for _, fn := range optFns {
		fn(&o)
	}
	if o.stride == 0 {
		return o, errs.Errorf(errs.ErrInvalidArgument, "stride must be positive")
	}
	if o.gapLimit < MinBlockGapLimit {
		return o, errs.Errorf(errs.ErrRange, "block gap limit %d is below the minimum of %d", o.gapLimit, MinBlockGapLimit)
	}
	return o, nil
}

// window returns the requested bounds, defaulting to [first, last].
func (o getOptions) window(first, last float64) (start, stop float64, err error) {
	start, stop = first, last
	if o.start != nil {
		start = *o.start
	}
	if o.stop != nil {
		stop = *o.stop
	}
	if start < -Epsilon || stop < -Epsilon {
		return 0, 0, errs.Errorf(errs.ErrRange, "times cannot be negative")
	}
	if start > stop {
		return 0, 0, errs.Errorf(errs.ErrRange, "tstart %g should be <= tstop %g", start, stop)
	}
	return start, stop, nil
}
