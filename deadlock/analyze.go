package deadlock

import (
	"sort"
	"time"

	raven "github.com/getsentry/raven-go"
	"github.com/pkg/errors"
	uuid "github.com/satori/go.uuid"

	"github.com/pgsleuth/pgsleuth/state"
	"github.com/pgsleuth/pgsleuth/util"
)

// Analyzer - Pure, synchronous analyzer for PostgreSQL deadlock
// diagnostics. Holds only read-only configuration, so a single instance
// is safe for unbounded concurrent use.
type Analyzer struct {
	logger         *util.Logger
	criticalTables map[string]bool
	sentryClient   *raven.Client
}

func NewAnalyzer(logger *util.Logger, criticalTables []string, sentryClient *raven.Client) *Analyzer {
	if len(criticalTables) == 0 {
		criticalTables = DefaultCriticalTables
	}
	critical := make(map[string]bool)
	for _, table := range criticalTables {
		critical[table] = true
	}
	return &Analyzer{logger: logger, criticalTables: critical, sentryClient: sentryClient}
}

// AnalyzeEvent - Entry point for event records from the issue tracker: digs
// the error text out of the record, then analyzes it. Returns nil when the
// record carries no deadlock.
func (analyzer *Analyzer) AnalyzeEvent(event map[string]interface{}) *state.DeadlockInfo {
	message := eventMessage(event)
	if message == "" {
		return nil
	}
	return analyzer.AnalyzeMessage(message)
}

// AnalyzeMessage - Runs the full pipeline over a raw error message. The
// contract is strictly "a value or nothing": messages without a deadlock
// signature return nil, and any internal failure is logged, reported and
// converted to nil rather than propagated.
func (analyzer *Analyzer) AnalyzeMessage(message string) (info *state.DeadlockInfo) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Errorf("deadlock analysis panic: %v", r)
			analyzer.logger.PrintError("%s", err)
			if analyzer.sentryClient != nil {
				analyzer.sentryClient.CaptureError(err, map[string]string{"stage": "deadlock-analysis"})
			}
			info = nil
		}
	}()

	if !HasDeadlockSignature(message) {
		return nil
	}

	extraction := extractMessage(message)
	transactions, locks := buildModel(extraction)
	graph := buildWaitForGraph(transactions, locks)

	var cycles []state.DeadlockCycle
	for _, pids := range findElementaryCycles(graph) {
		cycle := state.DeadlockCycle{
			Pids:      pids,
			Relations: cycleRelations(pids, graph, transactions, locks),
		}
		cycle.Severity = scoreCycle(cycle, analyzer.criticalTables)
		cycles = append(cycles, cycle)
	}
	sort.SliceStable(cycles, func(i, j int) bool {
		if cycles[i].Severity != cycles[j].Severity {
			return cycles[i].Severity > cycles[j].Severity
		}
		return cycles[i].Pids[0] < cycles[j].Pids[0]
	})

	severityScore := scoreOverall(transactions, locks, cycles, analyzer.criticalTables)

	if cycles == nil {
		cycles = []state.DeadlockCycle{}
	}
	return &state.DeadlockInfo{
		AnalysisID:     uuid.NewV4().String(),
		RawMessage:     message,
		Transactions:   transactions,
		Locks:          locks,
		Cycles:         cycles,
		Visualization:  buildVisualization(transactions, locks, graph, cycles, severityScore),
		RecommendedFix: buildRecommendation(transactions, locks, cycles),
		SeverityScore:  severityScore,
		Timestamp:      time.Now().UTC(),
	}
}

// cycleRelations - Union of the relations named by the waiting locks along
// the cycle's edges plus the tables accessed by the participating
// statements (the statements often name the tables the lock lines do not)
func cycleRelations(pids []int32, graph *waitForGraph, transactions map[int32]*state.Transaction, locks []state.Lock) []string {
	seen := make(map[string]bool)
	var relations []string
	add := func(name string) {
		if name != "" && !seen[name] {
			seen[name] = true
			relations = append(relations, name)
		}
	}

	for i, pid := range pids {
		next := pids[(i+1)%len(pids)]
		for _, edge := range graph.edgesBetween(pid, next) {
			if lock := locks[edge.waitingLock]; lock.Relation.Valid {
				add(lock.Relation.String)
			}
		}
		if tx, ok := transactions[pid]; ok {
			for _, table := range tx.TablesAccessed {
				add(table)
			}
		}
	}

	sort.Strings(relations)
	if relations == nil {
		relations = []string{}
	}
	return relations
}

// eventMessage - Best-effort extraction of the error text from an event
// record: top-level message/exception fields first, then the nested
// Sentry-style exception values list
func eventMessage(event map[string]interface{}) string {
	for _, key := range []string{"message", "exception", "error", "title"} {
		if value, ok := event[key].(string); ok && value != "" {
			return value
		}
	}
	if exception, ok := event["exception"].(map[string]interface{}); ok {
		if value, ok := exception["value"].(string); ok && value != "" {
			return value
		}
		if values, ok := exception["values"].([]interface{}); ok {
			for _, entry := range values {
				if entryMap, ok := entry.(map[string]interface{}); ok {
					if value, ok := entryMap["value"].(string); ok && value != "" {
						return value
					}
				}
			}
		}
	}
	return ""
}
