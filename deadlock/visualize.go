package deadlock

import (
	"fmt"
	"sort"

	"github.com/pgsleuth/pgsleuth/state"
)

func processNodeID(pid int32) string { return fmt.Sprintf("process:%d", pid) }

func tableNodeID(table string) string { return "table:" + table }

// buildVisualization - Projects the model into a node/edge description a
// presentation layer can render directly: process and table nodes tagged
// with cycle membership, wait-for edges between processes, access edges
// from processes to the tables their statements touch.
func buildVisualization(transactions map[int32]*state.Transaction, locks []state.Lock, graph *waitForGraph, cycles []state.DeadlockCycle, severity int) *state.Visualization {
	viz := &state.Visualization{
		Nodes:             []state.VisualizationNode{},
		Edges:             []state.VisualizationEdge{},
		Cycles:            [][]int32{},
		LockCompatibility: CompatibilityMatrix(),
		Severity:          severity,
	}

	pidsInCycle := make(map[int32]bool)
	tablesInCycle := make(map[string]bool)
	for _, cycle := range cycles {
		for _, pid := range cycle.Pids {
			pidsInCycle[pid] = true
		}
		for _, relation := range cycle.Relations {
			tablesInCycle[relation] = true
		}
		viz.Cycles = append(viz.Cycles, cycle.Pids)
	}

	tableSet := make(map[string]bool)
	for _, pid := range graph.pids {
		tx := transactions[pid]
		viz.Nodes = append(viz.Nodes, state.VisualizationNode{
			ID:      processNodeID(pid),
			Label:   fmt.Sprintf("Process %d", pid),
			Kind:    "process",
			InCycle: pidsInCycle[pid],
		})
		for _, table := range tx.TablesAccessed {
			tableSet[table] = true
		}
	}
	for _, lock := range locks {
		if lock.Relation.Valid && lock.Relation.String != "" {
			tableSet[lock.Relation.String] = true
		}
	}

	tables := make([]string, 0, len(tableSet))
	for table := range tableSet {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	for _, table := range tables {
		viz.Nodes = append(viz.Nodes, state.VisualizationNode{
			ID:      tableNodeID(table),
			Label:   table,
			Kind:    "table",
			InCycle: tablesInCycle[table],
		})
	}

	for _, pid := range graph.pids {
		for _, edge := range graph.edges[pid] {
			viz.Edges = append(viz.Edges, state.VisualizationEdge{
				Source: processNodeID(edge.from),
				Target: processNodeID(edge.to),
				Kind:   "waits-for",
				Label:  locks[edge.waitingLock].Mode.String(),
			})
		}
		for _, table := range transactions[pid].TablesAccessed {
			viz.Edges = append(viz.Edges, state.VisualizationEdge{
				Source: processNodeID(pid),
				Target: tableNodeID(table),
				Kind:   "accesses",
			})
		}
	}

	return viz
}
