package mutex

import (
	"github.com/joshuapare/phvkit/internal/bitvec"
	"github.com/joshuapare/phvkit/phv/ir"
)

// Reachability answers "can parser state a lead to state b" for one parser.
// States on a common loop fall into one strongly connected component and
// reach each other.
type Reachability struct {
	index map[string]int
	fwd   []bitvec.Bitvec // fwd[s]: states reachable from s, s included
}

// NewReachability computes the reachability closure of p's state graph.
func NewReachability(p *ir.Parser) *Reachability {
	n := len(p.States)
	r := &Reachability{index: make(map[string]int, n), fwd: make([]bitvec.Bitvec, n)}
	for i, st := range p.States {
		r.index[st.Name] = i
	}
	succ := make([][]int, n)
	for i, st := range p.States {
		for _, nx := range st.Next {
			if j, ok := r.index[nx]; ok {
				succ[i] = append(succ[i], j)
			}
		}
	}

	// Tarjan emits components in reverse topological order, so every
	// successor component is complete before its predecessors are visited.
	for _, comp := range sccs(n, succ) {
		var reach bitvec.Bitvec
		for _, s := range comp {
			reach.Set(s)
		}
		for _, s := range comp {
			for _, t := range succ[s] {
				reach = reach.Or(r.fwd[t])
			}
		}
		for _, s := range comp {
			r.fwd[s] = reach
		}
	}
	return r
}

// State returns the index of the named state.
func (r *Reachability) State(name string) (int, bool) {
	i, ok := r.index[name]
	return i, ok
}

// Reaches reports whether state a can reach state b.
func (r *Reachability) Reaches(a, b int) bool {
	return r.fwd[a].Test(b)
}

// Related reports whether a reaches b or b reaches a.
func (r *Reachability) Related(a, b int) bool {
	return r.Reaches(a, b) || r.Reaches(b, a)
}

// sccs returns the strongly connected components of the graph in reverse
// topological order (Tarjan).
func sccs(n int, succ [][]int) [][]int {
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var (
		stack []int
		out   [][]int
		next  int
	)
	var visit func(v int)
	visit = func(v int) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true
		for _, w := range succ[v] {
			switch {
			case index[w] < 0:
				visit(w)
				low[v] = min(low[v], low[w])
			case onStack[w]:
				low[v] = min(low[v], index[w])
			}
		}
		if low[v] != index[v] {
			return
		}
		var comp []int
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			comp = append(comp, w)
			if w == v {
				break
			}
		}
		out = append(out, comp)
	}
	for v := range n {
		if index[v] < 0 {
			visit(v)
		}
	}
	return out
}
