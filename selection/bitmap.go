package selection

import (
	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// Bitmap returns s as a roaring64 bitmap.
func (s Selection) Bitmap() *roaring64.Bitmap {
	bm := roaring64.New()
	for _, r := range s.ranges {
		bm.AddRange(r.Begin, r.End)
	}
	return bm
}

// FromBitmap converts a roaring64 bitmap into a Selection.
func FromBitmap(bm *roaring64.Bitmap) Selection {
	if bm == nil || bm.IsEmpty() {
		return Selection{}
	}

	var ranges []Range
	it := bm.Iterator()
	for it.HasNext() {
		v := it.Next()
		if n := len(ranges); n > 0 && ranges[n-1].End == v {
			ranges[n-1].End++
			continue
		}
		ranges = append(ranges, Range{Begin: v, End: v + 1})
	}
	return Selection{ranges: ranges}
}
