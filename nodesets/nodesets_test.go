package nodesets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/sonata"
	"github.com/hupe1980/sonata/blobstore"
	"github.com/hupe1980/sonata/codec"
	"github.com/hupe1980/sonata/errs"
	"github.com/hupe1980/sonata/selection"
	"github.com/hupe1980/sonata/testutil"
)

func population(t *testing.T, name string) *sonata.NodePopulation {
	t.Helper()
	ctx := context.Background()
	s, err := sonata.OpenNodeStorage(ctx, testutil.NodesFile, sonata.WithStore(testutil.Store(t)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	p, err := s.OpenPopulation(ctx, name)
	require.NoError(t, err)
	return p
}

func ranges(t *testing.T, pairs ...[2]uint64) selection.Selection {
	t.Helper()
	s, err := selection.FromPairs(pairs)
	require.NoError(t, err)
	return s
}

const document = `{
	"attr-Y":        {"attr-Y": 21},
	"attr-Z":        {"attr-Z": ["aa", "cc"]},
	"mapping":       {"E-mapping-good": "C"},
	"mapping-and-Y": {"E-mapping-good": "C", "attr-Y": [21, 22]},
	"ids":           {"node_id": [1, 3, 5]},
	"no-ids":        {"node_id": []},
	"other-pop":     {"population": "nodes-B", "node_id": [1]},
	"this-pop":      {"population": ["nodes-B", "nodes-A"], "node_id": [1, 99]},
	"gt":            {"attr-X": {"$gt": 13}},
	"lte":           {"attr-X": {"$lte": 12.0}},
	"regex":         {"attr-Z": {"$regex": "[ab]."}},
	"regex-enum":    {"E-mapping-good": {"$regex": "A|B"}},
	"integral":      {"attr-Y": 26.0},
	"NodeSet0":      {"node_id": [1]},
	"NodeSet1":      {"node_id": [2]},
	"NodeSet2":      {"node_id": [3]},
	"compound":      ["NodeSet0", "NodeSet1", "NodeSet2"],
	"nested":        ["compound", "gt"],
	"empty":         [],
	"ignored":       {}
}`

func TestMaterialize(t *testing.T) {
	ctx := context.Background()
	pop := population(t, "nodes-A")
	ns, err := ParseString(document)
	require.NoError(t, err)

	tests := []struct {
		name string
		want selection.Selection
	}{
		{"attr-Y", ranges(t, [2]uint64{0, 1})},
		{"attr-Z", ranges(t, [2]uint64{0, 1}, [2]uint64{2, 3})},
		{"mapping", ranges(t, [2]uint64{0, 1}, [2]uint64{2, 3}, [2]uint64{4, 6})},
		{"mapping-and-Y", ranges(t, [2]uint64{0, 1})},
		{"ids", ranges(t, [2]uint64{1, 2}, [2]uint64{3, 4}, [2]uint64{5, 6})},
		{"no-ids", selection.Selection{}},
		{"other-pop", selection.Selection{}},
		{"this-pop", ranges(t, [2]uint64{1, 2})},
		{"gt", ranges(t, [2]uint64{3, 6})},
		{"lte", ranges(t, [2]uint64{0, 2})},
		{"regex", ranges(t, [2]uint64{0, 2})},
		{"regex-enum", ranges(t, [2]uint64{1, 2}, [2]uint64{3, 4})},
		{"integral", ranges(t, [2]uint64{5, 6})},
		{"compound", ranges(t, [2]uint64{1, 4})},
		{"nested", ranges(t, [2]uint64{1, 6})},
		{"empty", selection.Selection{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ns.Materialize(ctx, tc.name, pop)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "want %s, got %s", tc.want, got)
		})
	}
}

func TestMaterialize_Errors(t *testing.T) {
	ctx := context.Background()
	pop := population(t, "nodes-A")
	ns, err := ParseString(`{
		"enum-by-code":   {"E-mapping-good": 2},
		"float-by-int":   {"attr-X": 11},
		"string-by-int":  {"attr-Z": 11},
		"int-by-string":  {"attr-Y": "21"},
		"compare-string": {"attr-Z": {"$gt": 1}},
		"regex-number":   {"attr-Y": {"$regex": "2."}},
		"missing-attr":   {"attr-W": 1},
		"after-empty":    {"node_id": [], "attr-Z": {"$lt": 1}},
		"other-population": {"population": "nodes-B", "attr-Z": {"$gt": 1}},
		"other-population-valid": {"population": "nodes-B", "attr-Y": 21}
	}`)
	require.NoError(t, err)

	for name, kind := range map[string]error{
		"enum-by-code":     errs.ErrTypeMismatch,
		"float-by-int":     errs.ErrTypeMismatch,
		"string-by-int":    errs.ErrTypeMismatch,
		"int-by-string":    errs.ErrTypeMismatch,
		"compare-string":   errs.ErrTypeMismatch,
		"regex-number":     errs.ErrTypeMismatch,
		"missing-attr":     errs.ErrNotFound,
		"after-empty":      errs.ErrTypeMismatch,
		"other-population": errs.ErrTypeMismatch,
		"unknown":          errs.ErrMissingDefinition,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ns.Materialize(ctx, name, pop)
			assert.ErrorIs(t, err, kind)
		})
	}

	sel, err := ns.Materialize(ctx, "other-population-valid", pop)
	require.NoError(t, err)
	assert.True(t, sel.IsEmpty())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		kind error
	}{
		{"top level array", `["a"]`, errs.ErrInvalidArgument},
		{"malformed", `{"a": `, errs.ErrInvalidArgument},
		{"scalar definition", `{"a": 1}`, errs.ErrInvalidArgument},
		{"null clause", `{"a": {"x": null}}`, errs.ErrInvalidArgument},
		{"node_id string", `{"a": {"node_id": "1"}}`, errs.ErrInvalidArgument},
		{"node_id strings", `{"a": {"node_id": ["1"]}}`, errs.ErrInvalidArgument},
		{"node_id negative", `{"a": {"node_id": [1, -1]}}`, errs.ErrInvalidArgument},
		{"node_id float", `{"a": {"node_id": [1.5]}}`, errs.ErrInvalidArgument},
		{"population number", `{"a": {"population": 1}}`, errs.ErrInvalidArgument},
		{"population numbers", `{"a": {"population": [1]}}`, errs.ErrInvalidArgument},
		{"mixed list", `{"a": {"x": [1, "b"]}}`, errs.ErrInvalidArgument},
		{"float equality", `{"a": {"x": 1.5}}`, errs.ErrTypeMismatch},
		{"two operators", `{"a": {"x": {"$gt": 1, "$lt": 3}}}`, errs.ErrInvalidArgument},
		{"numeric op string", `{"a": {"x": {"$gt": "1"}}}`, errs.ErrInvalidArgument},
		{"regex number", `{"a": {"x": {"$regex": 1}}}`, errs.ErrInvalidArgument},
		{"bad regex", `{"a": {"x": {"$regex": "("}}}`, errs.ErrInvalidArgument},
		{"unknown operator", `{"a": {"x": {"$eq": 1}}}`, errs.ErrInvalidArgument},
		{"compound element", `{"a": ["b", 1], "b": {"x": 1}}`, errs.ErrInvalidArgument},
		{"missing reference", `{"compound": ["missing"]}`, errs.ErrMissingDefinition},
		{"reference to ignored", `{"compound": ["empty"], "empty": {}}`, errs.ErrMissingDefinition},
		{"self reference", `{"compound": ["compound"]}`, errs.ErrRecursiveDefinition},
		{"cycle", `{"a": ["b"], "b": ["c"], "c": ["a"]}`, errs.ErrRecursiveDefinition},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseString(tc.doc)
			assert.ErrorIs(t, err, tc.kind)
		})
	}
}

func TestNames(t *testing.T) {
	ns, err := ParseString(`{"b": {"x": 1}, "a": ["b"], "ignored": {}}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ns.Names())
}

func TestJSON(t *testing.T) {
	ns, err := ParseString(`{
		"C": ["A", "B"],
		"B": {"attr-X": {"$gt": 13}},
		"A": {"node_id": [1, 2], "attr-Y": 21}
	}`)
	require.NoError(t, err)

	doc, err := ns.JSON()
	require.NoError(t, err)
	assert.Equal(t, `{"A":{"attr-Y":21,"node_id":[1,2]},"B":{"attr-X":{"$gt":13}},"C":["A","B"]}`, doc)
}

func TestJSON_FixedPoint(t *testing.T) {
	ctx := context.Background()
	pop := population(t, "nodes-A")

	for _, c := range []codec.Codec{codec.JSON{}, codec.GoJSON{}} {
		t.Run(c.Name(), func(t *testing.T) {
			first, err := ParseString(document, sonata.WithCodec(c))
			require.NoError(t, err)
			doc1, err := first.JSON()
			require.NoError(t, err)

			second, err := ParseString(doc1, sonata.WithCodec(c))
			require.NoError(t, err)
			doc2, err := second.JSON()
			require.NoError(t, err)
			assert.Equal(t, doc1, doc2)

			assert.Equal(t, first.Names(), second.Names())
			for _, name := range first.Names() {
				a, err := first.Materialize(ctx, name, pop)
				require.NoError(t, err)
				b, err := second.Materialize(ctx, name, pop)
				require.NoError(t, err)
				assert.True(t, a.Equal(b), name)
			}
		})
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	pop := population(t, "nodes-A")

	ns, err := ParseString(`{"a": {"node_id": [1]}, "b": {"node_id": [2]}, "both": ["a", "b"]}`)
	require.NoError(t, err)
	other, err := ParseString(`{"b": {"node_id": [4]}, "c": {"node_id": [5]}, "a": {"node_id": [0]}}`)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, ns.Update(other))
	assert.Equal(t, []string{"a", "b", "both", "c"}, ns.Names())

	sel, err := ns.Materialize(ctx, "both", pop)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 4}, sel.Flatten())

	assert.Empty(t, ns.Update(&NodeSets{defs: map[string]definition{}}))
}

func TestLoad(t *testing.T) {
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "node_sets.json")
	require.NoError(t, os.WriteFile(path, []byte(document), 0o644))
	ns, err := Load(ctx, path)
	require.NoError(t, err)
	assert.Contains(t, ns.Names(), "compound")

	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "node_sets.json", []byte(document)))
	ns, err = Load(ctx, "node_sets.json", sonata.WithStore(store))
	require.NoError(t, err)
	assert.Contains(t, ns.Names(), "compound")

	_, err = Load(ctx, "missing.json", sonata.WithStore(store))
	assert.ErrorIs(t, err, errs.ErrNotFound)
	_, err = Load(ctx, filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestMaterialize_Metrics(t *testing.T) {
	ctx := context.Background()
	pop := population(t, "nodes-A")
	metrics := &sonata.BasicMetricsCollector{}
	ns, err := ParseString(document, sonata.WithMetricsCollector(metrics))
	require.NoError(t, err)

	_, err = ns.Materialize(ctx, "compound", pop)
	require.NoError(t, err)
	_, err = ns.Materialize(ctx, "unknown", pop)
	require.Error(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats.MaterializeCount)
	assert.Equal(t, int64(1), stats.MaterializeErrors)
}
