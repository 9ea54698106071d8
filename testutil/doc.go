// Package testutil provides fixtures and random inputs for sonata tests.
//
// This package is intended for use in tests and benchmarks only.
//
// # Circuit Fixtures
//
//	store := testutil.Store(t)   // nodes, edges, reports and spikes in memory
//	dir := testutil.Dir(t)       // the same containers written to t.TempDir()
//
// # Random Inputs
//
//	rng := testutil.NewRNG(seed)
//	ids := rng.IDs(100, 1000)    // unsorted ids with duplicates
package testutil
