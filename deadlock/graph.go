package deadlock

import (
	"github.com/pgsleuth/pgsleuth/state"
)

// graphEdge - waiter -> blocker, labeled with the lock pair (indices into
// the lock arena) that conflicts
type graphEdge struct {
	from        int32
	to          int32
	waitingLock int
	heldLock    int
}

type waitForGraph struct {
	pids  []int32
	edges map[int32][]graphEdge
}

// buildWaitForGraph - Adds an edge T->T' for every pair where T awaits a
// lock on a resource on which T' holds an incompatible lock. Locks on
// different resources never conflict. Iteration is over sorted pids so
// edge order is deterministic.
func buildWaitForGraph(transactions map[int32]*state.Transaction, locks []state.Lock) *waitForGraph {
	graph := &waitForGraph{
		pids:  sortedPids(transactions),
		edges: make(map[int32][]graphEdge),
	}

	for _, pid := range graph.pids {
		waiter := transactions[pid]
		for _, waitingIdx := range waiter.LocksWaiting {
			waiting := locks[waitingIdx]
			key := waiting.ResourceKey()
			if key == "" {
				continue
			}
			for _, otherPid := range graph.pids {
				if otherPid == pid {
					continue
				}
				holder := transactions[otherPid]
				for _, heldIdx := range holder.LocksHeld {
					held := locks[heldIdx]
					if held.ResourceKey() != key {
						continue
					}
					if Compatible(waiting.Mode, held.Mode) {
						continue
					}
					graph.edges[pid] = append(graph.edges[pid], graphEdge{
						from:        pid,
						to:          otherPid,
						waitingLock: waitingIdx,
						heldLock:    heldIdx,
					})
				}
			}
		}
	}

	return graph
}

func (g *waitForGraph) edgesBetween(from int32, to int32) []graphEdge {
	var result []graphEdge
	for _, edge := range g.edges[from] {
		if edge.to == to {
			result = append(result, edge)
		}
	}
	return result
}
