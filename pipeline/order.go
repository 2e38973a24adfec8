package pipeline

import "slices"

// Order returns every system in compute order: upstream systems before the
// systems that read them, ties broken by insertion order. Cycle members are
// placed where the first of them becomes blocked.
func (e *Emitter) Order() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids, _ := e.order()
	return ids
}

// Cycles returns the groups of systems whose ecosystem references form a
// cycle, each in insertion order.
func (e *Emitter) Cycles() [][]string {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, cycles := e.order()
	var out [][]string
	seen := map[string]bool{}
	for _, id := range e.ids {
		if members, ok := cycles[id]; ok && !seen[id] {
			for _, m := range members {
				seen[m] = true
			}
			out = append(out, members)
		}
	}
	return out
}

// order sorts the systems topologically and maps every cycle member to
// the members of its cycle.
func (e *Emitter) order() ([]string, map[string][]string) {
	ups := make(map[string][]string, len(e.ids))
	indeg := make(map[string]int, len(e.ids))
	for _, id := range e.ids {
		for _, u := range e.upstreams(id) {
			if u != id {
				ups[id] = append(ups[id], u)
			}
		}
		indeg[id] = len(ups[id])
	}
	cycles := e.cycles(ups)

	out := make([]string, 0, len(e.ids))
	done := make(map[string]bool, len(e.ids))
	place := func(id string) {
		done[id] = true
		out = append(out, id)
		for _, d := range e.ids {
			if slices.Contains(ups[d], id) {
				indeg[d]--
			}
		}
	}
	for len(out) < len(e.ids) {
		progressed := false
		for _, id := range e.ids {
			if !done[id] && indeg[id] <= 0 {
				place(id)
				progressed = true
				break
			}
		}
		if progressed {
			continue
		}
		// Every remaining system waits on a cycle. Break it at its
		// earliest member; that member reads a stale upstream.
		for _, id := range e.ids {
			if !done[id] && cycles[id] != nil {
				place(id)
				break
			}
		}
	}
	return out, cycles
}

// cycles finds the strongly connected components of the reference graph
// with more than one member (Tarjan).
func (e *Emitter) cycles(ups map[string][]string) map[string][]string {
	index := map[string]int{}
	low := map[string]int{}
	onStack := map[string]bool{}
	var stack []string
	next := 0
	out := map[string][]string{}

	var visit func(id string)
	visit = func(id string) {
		index[id] = next
		low[id] = next
		next++
		stack = append(stack, id)
		onStack[id] = true
		for _, u := range ups[id] {
			if _, ok := index[u]; !ok {
				visit(u)
				low[id] = min(low[id], low[u])
			} else if onStack[u] {
				low[id] = min(low[id], index[u])
			}
		}
		if low[id] != index[id] {
			return
		}
		var scc []string
		for {
			n := len(stack) - 1
			top := stack[n]
			stack = stack[:n]
			onStack[top] = false
			scc = append(scc, top)
			if top == id {
				break
			}
		}
		if len(scc) < 2 {
			return
		}
		var members []string
		for _, other := range e.ids {
			if slices.Contains(scc, other) {
				members = append(members, other)
			}
		}
		for _, m := range members {
			out[m] = members
		}
	}
	for _, id := range e.ids {
		if _, ok := index[id]; !ok {
			visit(id)
		}
	}
	return out
}
