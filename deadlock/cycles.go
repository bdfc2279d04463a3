package deadlock

import "fmt"

// findElementaryCycles - Enumerates all simple cycles of length >= 2 in
// the wait-for graph. Each cycle is discovered exactly once, rooted at
// its smallest pid: the search from a given start pid only descends into
// larger pids, so a cycle cannot be reported again from a rotation.
func findElementaryCycles(graph *waitForGraph) [][]int32 {
	var cycles [][]int32
	seen := make(map[string]bool)

	for _, start := range graph.pids {
		onPath := make(map[int32]bool)
		var path []int32

		var visit func(pid int32)
		visit = func(pid int32) {
			path = append(path, pid)
			onPath[pid] = true

			for _, edge := range graph.edges[pid] {
				if edge.to == start && len(path) >= 2 {
					// Parallel edges back to the start would report the
					// same pid sequence more than once
					key := fmt.Sprint(path)
					if !seen[key] {
						seen[key] = true
						cycle := make([]int32, len(path))
						copy(cycle, path)
						cycles = append(cycles, cycle)
					}
				} else if edge.to > start && !onPath[edge.to] {
					visit(edge.to)
				}
			}

			onPath[pid] = false
			path = path[:len(path)-1]
		}

		visit(start)
	}

	return cycles
}
