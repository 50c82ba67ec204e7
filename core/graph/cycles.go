package graph

import "sort"

// Cycle is one discovered cycle in the hierarchical subgraph, listed as the
// node ids along the cycle starting from its smallest id.
type Cycle struct {
	Nodes []string `json:"nodes"`
}

// FindHierarchicalCycles enumerates cycles already present in the
// hierarchical subgraph, independent of any proposed edge. Strongly
// connected components are located first (Tarjan); every non-trivial
// component contributes one representative cycle, which is enough for gap
// reporting: all nodes on any cycle are exactly the nodes of non-trivial
// components. Output is deterministic: components ordered by their smallest
// node id, each cycle rotated to start at its smallest id.
func (s *Snapshot) FindHierarchicalCycles() []Cycle {
	ids := s.HierarchicalNodeIDs()

	index := make(map[string]int, len(ids))
	lowlink := make(map[string]int, len(ids))
	onStack := make(map[string]bool, len(ids))
	var stack []string
	counter := 0

	var components [][]string

	var strongconnect func(v string)
	strongconnect = func(v string) {
		index[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, edge := range s.Children(v) {
			w := edge.TargetID
			if _, seen := index[w]; !seen {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if index[w] < lowlink[v] {
					lowlink[v] = index[w]
				}
			}
		}

		if lowlink[v] == index[v] {
			var comp []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			if len(comp) > 1 || s.hasSelfLoop(v) {
				components = append(components, comp)
			}
		}
	}

	for _, id := range ids {
		if _, seen := index[id]; !seen {
			strongconnect(id)
		}
	}

	cycles := make([]Cycle, 0, len(components))
	for _, comp := range components {
		cycles = append(cycles, Cycle{Nodes: s.traceCycle(comp)})
	}
	sort.Slice(cycles, func(i, j int) bool {
		return cycles[i].Nodes[0] < cycles[j].Nodes[0]
	})
	return cycles
}

func (s *Snapshot) hasSelfLoop(id string) bool {
	for _, edge := range s.Children(id) {
		if edge.TargetID == id {
			return true
		}
	}
	return false
}

// traceCycle walks one cycle within a strongly connected component,
// starting from the component's smallest node id and always stepping to the
// smallest in-component successor not yet taken.
func (s *Snapshot) traceCycle(comp []string) []string {
	inComp := make(map[string]bool, len(comp))
	for _, id := range comp {
		inComp[id] = true
	}

	start := comp[0]
	for _, id := range comp {
		if id < start {
			start = id
		}
	}

	path := []string{start}
	taken := map[string]bool{start: true}
	cur := start
	for {
		next := ""
		for _, edge := range s.Children(cur) {
			w := edge.TargetID
			if !inComp[w] {
				continue
			}
			if w == start && len(path) > 1 {
				return path
			}
			if !taken[w] && (next == "" || w < next) {
				next = w
			}
		}
		if next == "" {
			// Fallback for components with branch-only remainders.
			return path
		}
		taken[next] = true
		path = append(path, next)
		cur = next
	}
}
