package sonata_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sonata"
	"github.com/hupe1980/sonata/container"
	"github.com/hupe1980/sonata/selection"
	"github.com/hupe1980/sonata/testutil"
)

func TestPopulation_Names(t *testing.T) {
	p := openNodes(t)

	assert.Equal(t, uint64(6), p.Size())
	assert.Equal(t, selection.All(6), p.SelectAll())
	assert.Equal(t, []string{"E-mapping-bad", "E-mapping-good", "attr-X", "attr-Y", "attr-Z"}, p.AttributeNames())
	assert.Equal(t, []string{"E-mapping-bad", "E-mapping-good"}, p.EnumerationNames())
	assert.Equal(t, []string{"dparam-X", "dparam-Z"}, p.DynamicsAttributeNames())

	assert.True(t, p.HasAttribute("attr-X"))
	assert.False(t, p.HasAttribute("attr-W"))
	assert.True(t, p.IsEnumeration("E-mapping-good"))
	assert.False(t, p.IsEnumeration("attr-Z"))
	assert.True(t, p.HasDynamicsAttribute("dparam-X"))

	dt, err := p.AttributeDataType("attr-Y")
	require.NoError(t, err)
	assert.Equal(t, container.Int64, dt)

	dt, err = p.DynamicsAttributeDataType("dparam-Z")
	require.NoError(t, err)
	assert.Equal(t, container.String, dt)

	_, err = p.AttributeDataType("attr-W")
	assert.ErrorIs(t, err, sonata.ErrNotFound)
}

func TestGetAttribute(t *testing.T) {
	ctx := context.Background()
	p := openNodes(t)

	x, err := sonata.GetAttribute[float64](ctx, p.Population, "attr-X", sel(t, [2]uint64{0, 1}, [2]uint64{4, 6}))
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 15, 16}, x)

	y, err := sonata.GetAttribute[int64](ctx, p.Population, "attr-Y", p.SelectAll())
	require.NoError(t, err)
	assert.Equal(t, testutil.AttrY, y)

	// widening integer reads are allowed
	yf, err := sonata.GetAttribute[float64](ctx, p.Population, "attr-Y", sel(t, [2]uint64{1, 2}))
	require.NoError(t, err)
	assert.Equal(t, []float64{22}, yf)

	empty, err := sonata.GetAttribute[float64](ctx, p.Population, "attr-X", selection.Selection{})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetAttribute_Defaults(t *testing.T) {
	ctx := context.Background()
	p := openNodes(t)

	v, err := sonata.GetAttribute(ctx, p.Population, "attr-W", sel(t, [2]uint64{0, 3}), 42.0)
	require.NoError(t, err)
	assert.Equal(t, []float64{42, 42, 42}, v)

	s, err := p.GetAttributeStrings(ctx, "attr-W", sel(t, [2]uint64{2, 4}), "none")
	require.NoError(t, err)
	assert.Equal(t, []string{"none", "none"}, s)

	// a default never shadows an existing attribute
	x, err := sonata.GetAttribute(ctx, p.Population, "attr-X", sel(t, [2]uint64{0, 1}), 42.0)
	require.NoError(t, err)
	assert.Equal(t, []float64{11}, x)
}

func TestGetAttribute_Errors(t *testing.T) {
	ctx := context.Background()
	p := openNodes(t)

	_, err := sonata.GetAttribute[float64](ctx, p.Population, "attr-W", p.SelectAll())
	assert.ErrorIs(t, err, sonata.ErrNotFound)

	var attrErr *sonata.AttributeError
	require.ErrorAs(t, err, &attrErr)
	assert.Equal(t, "nodes-A", attrErr.Population)
	assert.Equal(t, "attr-W", attrErr.Attribute)

	_, err = sonata.GetAttribute[int64](ctx, p.Population, "attr-X", p.SelectAll())
	assert.ErrorIs(t, err, sonata.ErrTypeMismatch)

	_, err = sonata.GetAttribute[float64](ctx, p.Population, "attr-Z", p.SelectAll())
	assert.ErrorIs(t, err, sonata.ErrTypeMismatch)

	_, err = sonata.GetAttribute[int64](ctx, p.Population, "E-mapping-good", p.SelectAll())
	assert.ErrorIs(t, err, sonata.ErrTypeMismatch)

	_, err = sonata.GetAttribute[float64](ctx, p.Population, "attr-X", sel(t, [2]uint64{5, 7}))
	assert.ErrorIs(t, err, sonata.ErrRange)

	_, err = p.GetAttributeStrings(ctx, "attr-X", p.SelectAll())
	assert.ErrorIs(t, err, sonata.ErrTypeMismatch)
}

func TestEnumerations(t *testing.T) {
	ctx := context.Background()
	p := openNodes(t)

	lib, err := p.EnumerationValues(ctx, "E-mapping-good")
	require.NoError(t, err)
	assert.Equal(t, testutil.Library, lib)

	codes, err := sonata.GetEnumeration[int64](ctx, p.Population, "E-mapping-good", p.SelectAll())
	require.NoError(t, err)
	assert.Equal(t, testutil.MappingGood, codes)

	values, err := p.GetAttributeStrings(ctx, "E-mapping-good", p.SelectAll())
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "A", "C", "B", "C", "C"}, values)

	// code 0 is valid in the one-entry library, code 1 is not
	values, err = p.GetAttributeStrings(ctx, "E-mapping-bad", sel(t, [2]uint64{0, 1}))
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, values)
	_, err = p.GetAttributeStrings(ctx, "E-mapping-bad", p.SelectAll())
	assert.ErrorIs(t, err, sonata.ErrRange)

	_, err = sonata.GetEnumeration[int64](ctx, p.Population, "attr-Y", p.SelectAll())
	assert.ErrorIs(t, err, sonata.ErrTypeMismatch)
	_, err = sonata.GetEnumeration[int64](ctx, p.Population, "attr-W", p.SelectAll())
	assert.ErrorIs(t, err, sonata.ErrNotFound)
	_, err = p.EnumerationValues(ctx, "attr-Z")
	assert.ErrorIs(t, err, sonata.ErrNotFound)
}

func TestDynamicsAttributes(t *testing.T) {
	ctx := context.Background()
	p := openNodes(t)

	x, err := sonata.GetDynamicsAttribute[float64](ctx, p.Population, "dparam-X", sel(t, [2]uint64{2, 3}))
	require.NoError(t, err)
	assert.Equal(t, []float64{1013}, x)

	z, err := p.GetDynamicsAttributeStrings(ctx, "dparam-Z", sel(t, [2]uint64{0, 2}))
	require.NoError(t, err)
	assert.Equal(t, []string{"d-aa", "d-bb"}, z)

	d, err := sonata.GetDynamicsAttribute(ctx, p.Population, "dparam-W", sel(t, [2]uint64{0, 2}), int32(-1))
	require.NoError(t, err)
	assert.Equal(t, []int32{-1, -1}, d)

	_, err = sonata.GetDynamicsAttribute[float64](ctx, p.Population, "attr-X", p.SelectAll())
	assert.ErrorIs(t, err, sonata.ErrNotFound)
}

func TestMatching(t *testing.T) {
	ctx := context.Background()
	p := openNodes(t)

	tests := []struct {
		name string
		run  func() (selection.Selection, error)
		want selection.Selection
	}{
		{"int", func() (selection.Selection, error) { return p.MatchValues(ctx, "attr-Y", 21) }, sel(t, [2]uint64{0, 1})},
		{"ints", func() (selection.Selection, error) { return p.MatchInts(ctx, "attr-Y", []int64{22, 21, 99}) }, sel(t, [2]uint64{0, 2})},
		{"integral float", func() (selection.Selection, error) { return p.MatchValues(ctx, "attr-Y", 26.0) }, sel(t, [2]uint64{5, 6})},
		{"strings", func() (selection.Selection, error) { return p.MatchStrings(ctx, "attr-Z", []string{"aa", "cc"}) }, sel(t, [2]uint64{0, 1}, [2]uint64{2, 3})},
		{"enumeration", func() (selection.Selection, error) { return p.MatchValues(ctx, "E-mapping-good", "C") }, sel(t, [2]uint64{0, 1}, [2]uint64{2, 3}, [2]uint64{4, 6})},
		{"enumeration miss", func() (selection.Selection, error) { return p.MatchValues(ctx, "E-mapping-good", "D") }, selection.Selection{}},
		{"regex", func() (selection.Selection, error) { return p.RegexMatch(ctx, "attr-Z", "[ab].") }, sel(t, [2]uint64{0, 2})},
		{"regex is anchored", func() (selection.Selection, error) { return p.RegexMatch(ctx, "attr-Z", "a") }, selection.Selection{}},
		{"regex enumeration", func() (selection.Selection, error) { return p.RegexMatch(ctx, "E-mapping-good", "[AB]") }, sel(t, [2]uint64{1, 2}, [2]uint64{3, 4})},
		{"numeric filter", func() (selection.Selection, error) {
			return p.FilterNumeric(ctx, "attr-X", func(v float64) bool { return v > 13 })
		}, sel(t, [2]uint64{3, 6})},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.run()
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "want %s, got %s", tc.want, got)
		})
	}
}

func TestMatching_Errors(t *testing.T) {
	ctx := context.Background()
	p := openNodes(t)

	_, err := p.MatchValues(ctx, "attr-Y", 1.5)
	assert.ErrorIs(t, err, sonata.ErrTypeMismatch)

	_, err = p.MatchValues(ctx, "attr-X", 11)
	assert.ErrorIs(t, err, sonata.ErrTypeMismatch)

	_, err = p.MatchValues(ctx, "attr-Z", 11)
	assert.ErrorIs(t, err, sonata.ErrTypeMismatch)

	_, err = p.MatchValues(ctx, "E-mapping-good", 2)
	assert.ErrorIs(t, err, sonata.ErrTypeMismatch)

	_, err = p.MatchValues(ctx, "attr-Y", true)
	assert.ErrorIs(t, err, sonata.ErrInvalidArgument)

	_, err = p.MatchStrings(ctx, "attr-Y", []string{"21"})
	assert.ErrorIs(t, err, sonata.ErrTypeMismatch)

	_, err = p.RegexMatch(ctx, "attr-Z", "(")
	assert.ErrorIs(t, err, sonata.ErrInvalidArgument)

	_, err = p.RegexMatch(ctx, "attr-X", ".*")
	assert.ErrorIs(t, err, sonata.ErrTypeMismatch)

	_, err = p.FilterNumeric(ctx, "attr-Z", func(float64) bool { return true })
	assert.ErrorIs(t, err, sonata.ErrTypeMismatch)

	_, err = p.MatchValues(ctx, "attr-W", 1)
	assert.ErrorIs(t, err, sonata.ErrNotFound)
}
