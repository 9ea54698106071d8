package conv

import (
	"math"

	"github.com/hupe1980/sonata/errs"
)

// Uint64ToInt converts v to int.
func Uint64ToInt(v uint64) (int, error) {
	if v > uint64(math.MaxInt) {
		return 0, errs.Errorf(errs.ErrRange, "integer overflow: %d cannot be converted to int", v)
	}
	return int(v), nil
}

// Uint64ToInt64 converts v to int64.
func Uint64ToInt64(v uint64) (int64, error) {
	if v > math.MaxInt64 {
		return 0, errs.Errorf(errs.ErrRange, "integer overflow: %d cannot be converted to int64", v)
	}
	return int64(v), nil
}

// AddUint64 returns a+b.
func AddUint64(a, b uint64) (uint64, error) {
	if a > math.MaxUint64-b {
		return 0, errs.Errorf(errs.ErrRange, "integer overflow: %d + %d", a, b)
	}
	return a + b, nil
}

// Span validates the byte range [off, off+length) against a blob of the
// given size and returns it in the types backend reads take.
func Span(off, length uint64, size int64) (start int64, n int, err error) {
	end, err := AddUint64(off, length)
	if err != nil {
		return 0, 0, err
	}
	if size < 0 || end > uint64(size) {
		return 0, 0, errs.Errorf(errs.ErrRange, "byte range [%d, %d) exceeds blob size %d", off, end, size)
	}
	if start, err = Uint64ToInt64(off); err != nil {
		return 0, 0, err
	}
	if n, err = Uint64ToInt(length); err != nil {
		return 0, 0, err
	}
	return start, n, nil
}
