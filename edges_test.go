package sonata_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sonata"
	"github.com/hupe1980/sonata/selection"
	"github.com/hupe1980/sonata/testutil"
)

func TestEdgePopulation_Endpoints(t *testing.T) {
	ctx := context.Background()
	e := openEdges(t, testutil.EdgesFile)

	assert.Equal(t, uint64(6), e.Size())
	src, err := e.Source()
	require.NoError(t, err)
	assert.Equal(t, "nodes-A", src)
	tgt, err := e.Target()
	require.NoError(t, err)
	assert.Equal(t, "nodes-B", tgt)

	ids, err := e.SourceNodes(ctx, e.SelectAll())
	require.NoError(t, err)
	assert.Equal(t, testutil.EdgeSources, ids)

	ids, err = e.TargetNodes(ctx, sel(t, [2]uint64{3, 5}))
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 0}, ids)

	ids, err = e.SourceNodesOf(ctx, []uint64{5, 0, 5})
	require.NoError(t, err)
	assert.Equal(t, []uint64{3, 1, 3}, ids)

	ids, err = e.TargetNodesOf(ctx, []uint64{4, 1})
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 2}, ids)

	id, err := e.TargetNode(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)

	_, err = e.SourceNode(ctx, 6)
	assert.ErrorIs(t, err, sonata.ErrRange)

	delay, err := sonata.GetAttribute[float64](ctx, e.Population, "delay", sel(t, [2]uint64{0, 2}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1.5}, delay)
}

func TestEdgePopulation_Queries(t *testing.T) {
	for _, file := range []string{testutil.EdgesFile, testutil.EdgesNoIndexFile} {
		t.Run(file, func(t *testing.T) {
			ctx := context.Background()
			e := openEdges(t, file)

			tests := []struct {
				name string
				run  func() (selection.Selection, error)
				want selection.Selection
			}{
				{"efferent 1", func() (selection.Selection, error) {
					return e.EfferentEdges(ctx, selection.FromIDs([]uint64{1}))
				}, sel(t, [2]uint64{0, 2})},
				{"efferent 2,3", func() (selection.Selection, error) {
					return e.EfferentEdges(ctx, sel(t, [2]uint64{2, 4}))
				}, sel(t, [2]uint64{2, 6})},
				{"efferent without edges", func() (selection.Selection, error) {
					return e.EfferentEdges(ctx, selection.FromIDs([]uint64{0}))
				}, selection.Selection{}},
				{"afferent 1", func() (selection.Selection, error) {
					return e.AfferentEdges(ctx, selection.FromIDs([]uint64{1}))
				}, sel(t, [2]uint64{0, 1}, [2]uint64{2, 4})},
				{"afferent 0,2", func() (selection.Selection, error) {
					return e.AfferentEdges(ctx, selection.FromIDs([]uint64{0, 2}))
				}, sel(t, [2]uint64{1, 2}, [2]uint64{4, 6})},
				{"afferent beyond index", func() (selection.Selection, error) {
					return e.AfferentEdges(ctx, selection.FromIDs([]uint64{10}))
				}, selection.Selection{}},
				{"connecting", func() (selection.Selection, error) {
					return e.ConnectingEdges(ctx, selection.FromIDs([]uint64{2}), selection.FromIDs([]uint64{1}))
				}, sel(t, [2]uint64{2, 4})},
				{"connecting many", func() (selection.Selection, error) {
					return e.ConnectingEdges(ctx, sel(t, [2]uint64{1, 4}), selection.FromIDs([]uint64{2}))
				}, sel(t, [2]uint64{1, 2}, [2]uint64{5, 6})},
				{"afferent 1,2", func() (selection.Selection, error) {
					return e.AfferentEdges(ctx, selection.FromIDs([]uint64{1, 2}))
				}, sel(t, [2]uint64{0, 4}, [2]uint64{5, 6})},
				{"efferent 0", func() (selection.Selection, error) {
					return e.EfferentEdges(ctx, selection.FromIDs([]uint64{0}))
				}, sel(t)},
				{"connecting 1,2 to 1,2", func() (selection.Selection, error) {
					ids := selection.FromIDs([]uint64{1, 2})
					return e.ConnectingEdges(ctx, ids, ids)
				}, sel(t, [2]uint64{0, 4})},
				{"efferent of unsorted", func() (selection.Selection, error) {
					return e.EfferentEdgesOf(ctx, []uint64{3, 1, 3})
				}, sel(t, [2]uint64{0, 2}, [2]uint64{4, 6})},
				{"afferent of unsorted", func() (selection.Selection, error) {
					return e.AfferentEdgesOf(ctx, []uint64{2, 0})
				}, sel(t, [2]uint64{1, 2}, [2]uint64{4, 6})},
			}
			for _, tc := range tests {
				t.Run(tc.name, func(t *testing.T) {
					got, err := tc.run()
					require.NoError(t, err)
					assert.True(t, tc.want.Equal(got), "want %s, got %s", tc.want, got)
				})
			}
		})
	}
}

func TestEdgePopulation_QueriesPartitionEdges(t *testing.T) {
	ctx := context.Background()
	e := openEdges(t, testutil.EdgesFile)

	var all selection.Selection
	for id := uint64(0); id < 4; id++ {
		edges, err := e.EfferentEdges(ctx, selection.FromIDs([]uint64{id}))
		require.NoError(t, err)
		assert.True(t, all.Intersect(edges).IsEmpty())
		all = all.Union(edges)
	}
	assert.True(t, e.SelectAll().Equal(all))
}

func TestEdgePopulation_IndexLogging(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	logger := sonata.NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	e := openEdges(t, testutil.EdgesNoIndexFile, sonata.WithLogger(logger))
	_, err := e.AfferentEdges(ctx, selection.FromIDs([]uint64{1}))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"stored":false`)
	assert.Contains(t, buf.String(), `"population":"edges-AB"`)

	buf.Reset()
	_, err = e.AfferentEdges(ctx, selection.FromIDs([]uint64{2}))
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "adjacency index", "index is built once per handle")

	e = openEdges(t, testutil.EdgesFile, sonata.WithLogger(logger))
	_, err = e.EfferentEdges(ctx, selection.FromIDs([]uint64{1}))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"stored":true`)
}
