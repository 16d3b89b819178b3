package primitives

// DisjointSet is a union-find over the integers [0, n) with union by rank
// and path compression.
type DisjointSet struct {
	parent []int
	rank   []int
	count  int
}

// NewDisjointSet creates n singleton sets
func NewDisjointSet(n int) *DisjointSet {
	ds := &DisjointSet{
		parent: make([]int, n),
		rank:   make([]int, n),
		count:  n,
	}
	for i := range ds.parent {
		ds.parent[i] = i
	}
	return ds
}

// Find returns the representative of x's set
func (ds *DisjointSet) Find(x int) int {
	root := x
	for ds.parent[root] != root {
		root = ds.parent[root]
	}

	// Path compression
	for x != root {
		next := ds.parent[x]
		ds.parent[x] = root
		x = next
	}
	return root
}

// Union merges the sets of a and b. It returns false when they were
// already joined.
func (ds *DisjointSet) Union(a, b int) bool {
	ra, rb := ds.Find(a), ds.Find(b)
	if ra == rb {
		return false
	}

	// Union by rank
	switch {
	case ds.rank[ra] < ds.rank[rb]:
		ds.parent[ra] = rb
	case ds.rank[ra] > ds.rank[rb]:
		ds.parent[rb] = ra
	default:
		ds.parent[rb] = ra
		ds.rank[ra]++
	}
	ds.count--
	return true
}

// Connected reports whether a and b share a set
func (ds *DisjointSet) Connected(a, b int) bool {
	return ds.Find(a) == ds.Find(b)
}

// Count returns the number of disjoint sets
func (ds *DisjointSet) Count() int { return ds.count }

// Groups returns the members of each set keyed by representative, in
// ascending member order.
func (ds *DisjointSet) Groups() map[int][]int {
	groups := make(map[int][]int)
	for i := range ds.parent {
		r := ds.Find(i)
		groups[r] = append(groups[r], i)
	}
	return groups
}
