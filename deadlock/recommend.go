package deadlock

import (
	"sort"
	"strings"

	"github.com/pgsleuth/pgsleuth/state"
)

type contentionPattern int

const (
	patternGeneric contentionPattern = iota
	patternUpdateContention
	patternSelectForUpdate
	patternExclusiveLock
)

type recommendationEntry struct {
	rootCause   string
	mitigations []string
}

// recommendationTable - Decision table keyed by detected pattern; shared
// mitigations are repeated deliberately so each entry reads standalone
var recommendationTable = map[contentionPattern]recommendationEntry{
	patternUpdateContention: {
		rootCause: "Concurrent UPDATE statements modified overlapping rows in a different order, so each transaction ended up waiting on row locks the other already held.",
		mitigations: []string{
			"Update rows in a deterministic order (e.g. ORDER BY primary key in a preceding SELECT ... FOR UPDATE).",
			"Keep transactions short; move non-transactional work (API calls, computation) outside the transaction.",
			"Set lock_timeout or use SELECT ... FOR UPDATE NOWAIT so a stuck transaction fails fast instead of deadlocking.",
			"Batch large multi-row updates into smaller chunks committed separately.",
		},
	},
	patternSelectForUpdate: {
		rootCause: "Transactions acquired explicit row locks via SELECT ... FOR UPDATE in inconsistent order.",
		mitigations: []string{
			"Lock rows in a single SELECT ... FOR UPDATE with a deterministic ORDER BY instead of locking incrementally.",
			"Consider FOR UPDATE SKIP LOCKED for queue-style workloads.",
			"Add NOWAIT or a lock_timeout so lock waits surface as retryable errors.",
			"Review whether a weaker mode (FOR NO KEY UPDATE, FOR SHARE) is sufficient.",
		},
	},
	patternExclusiveLock: {
		rootCause: "A transaction took an exclusive table-level lock (LOCK TABLE, ALTER TABLE or similar) while other transactions held conflicting locks.",
		mitigations: []string{
			"Run DDL and explicit LOCK TABLE statements during low-traffic windows.",
			"Use lock_timeout around DDL so it fails fast instead of queueing behind long transactions.",
			"Prefer weaker explicit lock modes when full exclusion is not required.",
			"Keep the transactions surrounding schema changes as small as possible.",
		},
	},
	patternGeneric: {
		rootCause: "Transactions acquired locks on the same set of tables in different orders, forming a wait cycle.",
		mitigations: []string{
			"Agree on a canonical table access order across all code paths that touch these tables.",
			"Keep transactions short and commit as early as possible.",
			"Use lock_timeout (or statement_timeout) so waits become retryable errors.",
			"Review the isolation level; stricter levels hold locks longer than many workloads need.",
		},
	},
}

// classifyPattern - Selects the scenario the recommendation text is
// written for, from the statements and lock modes in evidence
func classifyPattern(transactions map[int32]*state.Transaction, locks []state.Lock) contentionPattern {
	var statements []string
	for _, tx := range transactions {
		if tx.Fingerprint != nil {
			statements = append(statements, tx.Fingerprint.Normalized)
		}
	}

	for _, statement := range statements {
		if strings.Contains(statement, "for update") {
			return patternSelectForUpdate
		}
	}

	if len(statements) > 0 {
		allUpdates := true
		for _, statement := range statements {
			if !strings.HasPrefix(statement, "update ") {
				allUpdates = false
				break
			}
		}
		if allUpdates {
			return patternUpdateContention
		}
	}

	for _, lock := range locks {
		if lock.Mode == state.LockModeExclusive || lock.Mode == state.LockModeAccessExclusive {
			return patternExclusiveLock
		}
	}

	return patternGeneric
}

// buildRecommendation - Renders the remediation narrative: root cause,
// a canonical (alphabetical) access order over the implicated tables,
// and the mitigation list for the detected pattern
func buildRecommendation(transactions map[int32]*state.Transaction, locks []state.Lock, cycles []state.DeadlockCycle) string {
	pattern := classifyPattern(transactions, locks)
	entry := recommendationTable[pattern]

	tableSet := make(map[string]bool)
	for _, cycle := range cycles {
		for _, relation := range cycle.Relations {
			tableSet[relation] = true
		}
	}
	for _, tx := range transactions {
		for _, table := range tx.TablesAccessed {
			tableSet[table] = true
		}
	}
	tables := make([]string, 0, len(tableSet))
	for table := range tableSet {
		tables = append(tables, table)
	}
	sort.Strings(tables)

	var b strings.Builder
	b.WriteString("Root cause: ")
	b.WriteString(entry.rootCause)
	b.WriteString("\n")
	if len(tables) > 0 {
		b.WriteString("Suggested access order: ")
		b.WriteString(strings.Join(tables, ", "))
		b.WriteString("\n")
	}
	b.WriteString("Mitigations:\n")
	for _, mitigation := range entry.mitigations {
		b.WriteString("- ")
		b.WriteString(mitigation)
		b.WriteString("\n")
	}
	return b.String()
}
