package lexgen

import "github.com/dekarrin/gentab/internal/util"

// tarjanSCC computes the strongly connected components of the graph over
// nodes with outgoing edges given by adj, in order of completion (which for
// Tarjan's algorithm is reverse topological order).
func tarjanSCC(nodes []int, adj func(int) []int) [][]int {
	t := &tarjanState{
		index:   make(map[int]int),
		lowlink: make(map[int]int),
		onStack: make(util.KeySet[int]),
		adj:     adj,
	}
	for _, n := range nodes {
		if _, ok := t.index[n]; !ok {
			t.connect(n)
		}
	}
	return t.sccs
}

type tarjanState struct {
	index, lowlink map[int]int
	onStack        util.KeySet[int]
	stack          util.Stack[int]
	counter        int
	sccs           [][]int
	adj            func(int) []int
}

func (t *tarjanState) connect(v int) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack.Push(v)
	t.onStack[v] = true

	for _, w := range t.adj(v) {
		if _, ok := t.index[w]; !ok {
			t.connect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var comp []int
		for {
			w := t.stack.Pop()
			t.onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		t.sccs = append(t.sccs, comp)
	}
}

// bfsReachable returns, in discovery order, all nodes reachable from start
// via adj, including start itself.
func bfsReachable(start int, adj func(int) []int) []int {
	visited := util.KeySet[int]{start: true}
	order := []int{start}
	queue := []int{start}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		for _, w := range adj(v) {
			if !visited[w] {
				visited[w] = true
				order = append(order, w)
				queue = append(queue, w)
			}
		}
	}
	return order
}
