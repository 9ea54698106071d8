package sonata

// NodePopulation is a population of nodes.
type NodePopulation struct {
	*Population
}
