package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sonata/adjacency"
	"github.com/hupe1980/sonata/blobstore"
	"github.com/hupe1980/sonata/container"
)

// Container names used by Store and Dir.
const (
	NodesFile        = "nodes.sonata"
	EdgesFile        = "edges.sonata"
	EdgesNoIndexFile = "edges-noindex.sonata"
	SomaFile         = "somas.sonata"
	ElementFile      = "elements.sonata"
	SpikesFile       = "spikes.sonata"
)

// Node population "nodes-A" has 6 nodes:
//
//	attr-X          float64  11.0 .. 16.0
//	attr-Y          int64    21 .. 26
//	attr-Z          string   "aa" .. "ff"
//	E-mapping-good  enum     C A C B C C  (library A, B, C)
//	E-mapping-bad   enum     codes 0..5 into a one-entry library
//	dynamics_params/dparam-X float64  1011.0 .. 1016.0
//	dynamics_params/dparam-Z string   "d-aa" .. "d-ff"
//
// "nodes-B" has 3 nodes and only attr-X.
var (
	AttrX       = []float64{11, 12, 13, 14, 15, 16}
	AttrY       = []int64{21, 22, 23, 24, 25, 26}
	AttrZ       = []string{"aa", "bb", "cc", "dd", "ee", "ff"}
	MappingGood = []int64{2, 0, 2, 1, 2, 2}
	Library     = []string{"A", "B", "C"}
	DParamX     = []float64{1011, 1012, 1013, 1014, 1015, 1016}
	DParamZ     = []string{"d-aa", "d-bb", "d-cc", "d-dd", "d-ee", "d-ff"}
)

// Edge population "edges-AB" connects nodes-A to nodes-B.
var (
	EdgeSources = []uint64{1, 1, 2, 2, 3, 3}
	EdgeTargets = []uint64{1, 2, 1, 1, 0, 2}
)

// WriteNodes writes the node populations.
func WriteNodes(w *container.Writer) error {
	const a = "/nodes/nodes-A"
	steps := []func() error{
		func() error { return container.WriteDataset(w, a+"/node_type_id", []int64{0, 0, 0, 1, 1, 1}) },
		func() error { return container.WriteDataset(w, a+"/0/attr-X", AttrX) },
		func() error { return container.WriteDataset(w, a+"/0/attr-Y", AttrY) },
		func() error { return w.WriteStrings(a+"/0/attr-Z", AttrZ) },
		func() error { return container.WriteDataset(w, a+"/0/E-mapping-good", MappingGood) },
		func() error { return container.WriteDataset(w, a+"/0/E-mapping-bad", []int64{0, 1, 2, 3, 4, 5}) },
		func() error { return w.WriteStrings(a+"/0/@library/E-mapping-good", Library) },
		func() error { return w.WriteStrings(a+"/0/@library/E-mapping-bad", []string{"A"}) },
		func() error { return container.WriteDataset(w, a+"/0/dynamics_params/dparam-X", DParamX) },
		func() error { return w.WriteStrings(a+"/0/dynamics_params/dparam-Z", DParamZ) },
		func() error { return container.WriteDataset(w, "/nodes/nodes-B/node_type_id", []int64{0, 0, 0}) },
		func() error { return container.WriteDataset(w, "/nodes/nodes-B/0/attr-X", []float64{1, 2, 3}) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func writeEdgePopulation(w *container.Writer, path string, sources, targets []uint64, withIndices bool) error {
	if err := container.WriteDataset(w, path+"/edge_type_id", make([]int64, len(sources))); err != nil {
		return err
	}
	if err := container.WriteDataset(w, path+"/source_node_id", sources); err != nil {
		return err
	}
	if err := w.SetAttribute(path+"/source_node_id", "node_population", "nodes-A"); err != nil {
		return err
	}
	if err := container.WriteDataset(w, path+"/target_node_id", targets); err != nil {
		return err
	}
	if err := w.SetAttribute(path+"/target_node_id", "node_population", "nodes-B"); err != nil {
		return err
	}
	delay := make([]float64, len(sources))
	for i := range delay {
		delay[i] = float64(i) + 0.5
	}
	if err := container.WriteDataset(w, path+"/0/delay", delay); err != nil {
		return err
	}
	if !withIndices {
		return nil
	}

	src, err := adjacency.Build(sources, 4)
	if err != nil {
		return err
	}
	if err := src.Write(w, path+"/"+adjacency.SourceGroup); err != nil {
		return err
	}
	tgt, err := adjacency.Build(targets, 3)
	if err != nil {
		return err
	}
	return tgt.Write(w, path+"/"+adjacency.TargetGroup)
}

// WriteEdges writes "edges-AB", with stored indices when withIndices is set.
func WriteEdges(withIndices bool) func(w *container.Writer) error {
	return func(w *container.Writer) error {
		return writeEdgePopulation(w, "/edges/edges-AB", EdgeSources, EdgeTargets, withIndices)
	}
}

// Report time axis shared by the soma and element fixtures.
const (
	ReportStart = 0.0
	ReportStop  = 1.0
	ReportStep  = 0.1
	// ReportSamples is the number of samples t < ReportStop.
	ReportSamples = 10
)

// ReportTime returns the time of sample i.
func ReportTime(i int) float64 {
	return ReportStart + float64(i)*ReportStep
}

// SomaValue is the value stored for node at sample i.
func SomaValue(i int, node uint64) float32 {
	return float32(float64(node) + ReportTime(i))
}

// ElementValue is the value stored for element of node at sample i.
func ElementValue(i int, node uint64, element uint32) float32 {
	return float32(i*1000 + int(node)*10 + int(element))
}

// Soma populations: "All" stores nodes 0..9 sorted; "unsorted" stores
// nodes 4, 2, 0, 3, 1.
var (
	SomaAllNodes      = []uint64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	SomaUnsortedNodes = []uint64{4, 2, 0, 3, 1}
)

// Element populations: "All" stores nodes 0..4 sorted, node n owning
// n%3+1 elements; "unsorted" stores nodes 2, 0, 1.
var (
	ElementAllNodes      = []uint64{0, 1, 2, 3, 4}
	ElementUnsortedNodes = []uint64{2, 0, 1}
)

// ElementCount returns the number of elements of node in the element fixture.
func ElementCount(node uint64) int {
	return int(node%3) + 1
}

func writeReportPopulation(w *container.Writer, pop string, nodes []uint64, elements func(uint64) int, value func(int, uint64, uint32) float32, sorted bool) error {
	path := "/report/" + pop
	pointers := []uint64{0}
	var elementIDs []uint32
	var rowNodes []uint64
	for _, n := range nodes {
		k := elements(n)
		for e := 0; e < k; e++ {
			elementIDs = append(elementIDs, uint32(e))
			rowNodes = append(rowNodes, n)
		}
		pointers = append(pointers, pointers[len(pointers)-1]+uint64(k))
	}

	if err := container.WriteDataset(w, path+"/mapping/node_ids", nodes); err != nil {
		return err
	}
	if err := w.SetAttribute(path+"/mapping/node_ids", "sorted", sorted); err != nil {
		return err
	}
	if err := container.WriteDataset(w, path+"/mapping/index_pointers", pointers); err != nil {
		return err
	}
	if err := container.WriteDataset(w, path+"/mapping/element_ids", elementIDs); err != nil {
		return err
	}
	if err := container.WriteDataset(w, path+"/mapping/time", []float64{ReportStart, ReportStop, ReportStep}); err != nil {
		return err
	}
	if err := w.SetAttribute(path+"/mapping/time", "units", "ms"); err != nil {
		return err
	}

	rows := len(elementIDs)
	data := make([]float32, 0, ReportSamples*rows)
	for i := 0; i < ReportSamples; i++ {
		for r := 0; r < rows; r++ {
			data = append(data, value(i, rowNodes[r], elementIDs[r]))
		}
	}
	if err := container.WriteDataset(w, path+"/data", data, container.WithShape(ReportSamples, uint64(rows)), container.WithChunkRows(4)); err != nil {
		return err
	}
	return w.SetAttribute(path+"/data", "units", "mV")
}

func one(uint64) int { return 1 }

func somaValue(i int, node uint64, _ uint32) float32 { return SomaValue(i, node) }

// WriteSomaReport writes the soma report populations.
func WriteSomaReport(w *container.Writer) error {
	if err := writeReportPopulation(w, "All", SomaAllNodes, one, somaValue, true); err != nil {
		return err
	}
	return writeReportPopulation(w, "unsorted", SomaUnsortedNodes, one, somaValue, false)
}

// WriteElementReport writes the element report populations.
func WriteElementReport(w *container.Writer) error {
	if err := writeReportPopulation(w, "All", ElementAllNodes, ElementCount, ElementValue, true); err != nil {
		return err
	}
	return writeReportPopulation(w, "unsorted", ElementUnsortedNodes, ElementCount, ElementValue, false)
}

// Spike is a (node, time) pair of the spike fixture.
type Spike struct {
	Node uint64
	Time float64
}

// Spike populations hold the same six spikes: "All" stored by time,
// "spikes1" by id and "spikes2" unsorted.
var (
	SpikesByTime = []Spike{{5, 0.1}, {2, 0.2}, {3, 0.3}, {0, 0.5}, {2, 0.7}, {3, 1.3}}
	SpikesByID   = []Spike{{0, 0.5}, {2, 0.2}, {2, 0.7}, {3, 0.3}, {3, 1.3}, {5, 0.1}}
	SpikesNone   = []Spike{{3, 1.3}, {5, 0.1}, {2, 0.7}, {0, 0.5}, {3, 0.3}, {2, 0.2}}
)

func writeSpikes(w *container.Writer, pop string, spikes []Spike, sorting any) error {
	path := "/spikes/" + pop
	ids := make([]uint64, len(spikes))
	times := make([]float64, len(spikes))
	for i, s := range spikes {
		ids[i], times[i] = s.Node, s.Time
	}
	if err := container.WriteDataset(w, path+"/node_ids", ids); err != nil {
		return err
	}
	if err := container.WriteDataset(w, path+"/timestamps", times); err != nil {
		return err
	}
	if err := w.SetAttribute(path+"/timestamps", "units", "ms"); err != nil {
		return err
	}
	if sorting == nil {
		return nil
	}
	return w.SetAttribute(path, "sorting", sorting)
}

// WriteSpikes writes the spike populations. "spikes2" stores its sorting as
// an integer code.
func WriteSpikes(w *container.Writer) error {
	if err := writeSpikes(w, "All", SpikesByTime, "by_time"); err != nil {
		return err
	}
	if err := writeSpikes(w, "spikes1", SpikesByID, "by_id"); err != nil {
		return err
	}
	return writeSpikes(w, "spikes2", SpikesNone, uint8(0))
}

func fixtures() map[string]func(*container.Writer) error {
	return map[string]func(*container.Writer) error{
		NodesFile:        WriteNodes,
		EdgesFile:        WriteEdges(true),
		EdgesNoIndexFile: WriteEdges(false),
		SomaFile:         WriteSomaReport,
		ElementFile:      WriteElementReport,
		SpikesFile:       WriteSpikes,
	}
}

// Build returns the named fixture container.
func Build(t testing.TB, name string, opts ...container.WriteOption) []byte {
	t.Helper()
	fn, ok := fixtures()[name]
	require.True(t, ok, "unknown fixture %q", name)
	data, err := container.Build(fn, opts...)
	require.NoError(t, err)
	return data
}

// Store returns a MemoryStore holding every fixture container.
func Store(t testing.TB, opts ...container.WriteOption) *blobstore.MemoryStore {
	t.Helper()
	store := blobstore.NewMemoryStore()
	for name := range fixtures() {
		require.NoError(t, store.Put(context.Background(), name, Build(t, name, opts...)))
	}
	return store
}

// Dir writes every fixture container into a temporary directory.
func Dir(t testing.TB, opts ...container.WriteOption) string {
	t.Helper()
	dir := t.TempDir()
	for name := range fixtures() {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), Build(t, name, opts...), 0o644))
	}
	return dir
}

// Open opens a fixture container from store.
func Open(t testing.TB, store blobstore.BlobStore, name string) *container.File {
	t.Helper()
	f, err := container.Open(context.Background(), store, name)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}
