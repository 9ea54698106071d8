package selection

import (
	"github.com/hupe1980/sonata/codec"
)

// MarshalJSON encodes s as [[begin, end], ...].
func (s Selection) MarshalJSON() ([]byte, error) {
	pairs := make([][2]uint64, len(s.ranges))
	for i, r := range s.ranges {
		pairs[i] = [2]uint64{r.Begin, r.End}
	}
	return codec.Default.Marshal(pairs)
}

// UnmarshalJSON decodes [[begin, end], ...] and canonicalizes the result.
func (s *Selection) UnmarshalJSON(data []byte) error {
	var pairs [][2]int64
	if err := codec.Default.Unmarshal(data, &pairs); err != nil {
		return err
	}
	sel, err := FromPairs(pairs)
	if err != nil {
		return err
	}
	*s = sel
	return nil
}
