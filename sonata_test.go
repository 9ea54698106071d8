package sonata_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sonata"
	"github.com/hupe1980/sonata/selection"
	"github.com/hupe1980/sonata/testutil"
)

func sel(t *testing.T, pairs ...[2]uint64) selection.Selection {
	t.Helper()
	s, err := selection.FromPairs(pairs)
	require.NoError(t, err)
	return s
}

func openNodes(t *testing.T, opts ...sonata.Option) *sonata.NodePopulation {
	t.Helper()
	opts = append([]sonata.Option{sonata.WithStore(testutil.Store(t))}, opts...)
	s, err := sonata.OpenNodeStorage(context.Background(), testutil.NodesFile, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	p, err := s.OpenPopulation(context.Background(), "nodes-A")
	require.NoError(t, err)
	return p
}

func openEdges(t *testing.T, file string, opts ...sonata.Option) *sonata.EdgePopulation {
	t.Helper()
	opts = append([]sonata.Option{sonata.WithStore(testutil.Store(t))}, opts...)
	s, err := sonata.OpenEdgeStorage(context.Background(), file, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	p, err := s.OpenPopulation(context.Background(), "edges-AB")
	require.NoError(t, err)
	return p
}
