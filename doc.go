// Package sonata reads SONATA-style circuit files: node and edge populations
// with typed attribute columns, node sets, and simulation reports.
//
// Containers are immutable blobs resolved through a blobstore.BlobStore, so
// the same code reads local files, in-memory fixtures, S3 or MinIO buckets.
//
// # Quick Start
//
// Local files:
//
//	ctx := context.Background()
//	nodes, _ := sonata.OpenNodeStorage(ctx, "circuit/nodes.sonata")
//	defer nodes.Close()
//	pop, _ := nodes.OpenPopulation(ctx, "cortex")
//
// Remote files:
//
//	store, _ := s3.NewFromConfig(ctx, "my-bucket", "circuits/")
//	nodes, _ := sonata.OpenNodeStorage(ctx, "nodes.sonata", sonata.WithStore(store))
//
// # Selections
//
// Ids are addressed with selection.Selection, a canonical list of half-open
// ranges. Readers return values in ascending id order:
//
//	sel := selection.Must(selection.FromPairs([][2]uint64{{0, 10}, {20, 25}}))
//	x, _ := sonata.GetAttribute[float64](ctx, pop.Population, "x", sel)
//	mtype, _ := pop.GetAttributeStrings(ctx, "mtype", sel)
//
// Attributes can also be matched, which is how node sets are evaluated:
//
//	l5, _ := pop.MatchValues(ctx, "layer", 5)
//	pc, _ := pop.RegexMatch(ctx, "mtype", "L5_.*PC")
//
// # Edges
//
// Edge populations answer connectivity queries through the adjacency index
// stored next to the endpoint columns. Files without one get an index built
// on first use:
//
//	edges, _ := sonata.OpenEdgeStorage(ctx, "edges.sonata")
//	syn, _ := edges.OpenPopulation(ctx, "cortex__cortex")
//	in, _ := syn.AfferentEdges(ctx, selection.FromIDs([]uint64{42}))
//
// # Related Packages
//
//   - nodesets: JSON node set definitions evaluated against node populations
//   - report: soma, compartment and spike report readers
//   - prommetrics: Prometheus implementation of MetricsCollector
//
// # Errors
//
// Every error matches one of the kinds in errors.go (ErrNotFound,
// ErrTypeMismatch, ErrRange, ...) via errors.Is. Attribute failures carry
// an *AttributeError naming the population and attribute.
package sonata
