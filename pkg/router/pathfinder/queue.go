package pathfinder

import "container/heap"

type node struct {
	key   int // Flat grid index of the state
	state State
	g, f  float64
	h     float64
	seq   int
}

// openSet is a binary min-heap on f, preferring smaller h and then
// insertion order so that searches are deterministic.
type openSet []*node

func (s openSet) Len() int { return len(s) }

func (s openSet) Less(i, j int) bool {
	if s[i].f != s[j].f {
		return s[i].f < s[j].f
	}
	if s[i].h != s[j].h {
		return s[i].h < s[j].h
	}
	return s[i].seq < s[j].seq
}

func (s openSet) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

func (s *openSet) Push(x any) { *s = append(*s, x.(*node)) }

func (s *openSet) Pop() any {
	old := *s
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*s = old[:len(old)-1]
	return n
}

func (s *openSet) push(n *node) { heap.Push(s, n) }

func (s *openSet) pop() *node { return heap.Pop(s).(*node) }
