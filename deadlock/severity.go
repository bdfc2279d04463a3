package deadlock

import "github.com/pgsleuth/pgsleuth/state"

const (
	cycleBaseScore          = 10
	cycleProcessScore       = 5
	cycleRelationScore      = 3
	criticalTableScore      = 15
	overallCycleScore       = 10
	overallTransactionScore = 5
	overallLockScore        = 2
	exclusiveLockScore      = 5
	shareLockScore          = 3
)

// DefaultCriticalTables - Tables whose involvement raises severity unless
// overridden via the critical_tables config setting
var DefaultCriticalTables = []string{"users", "accounts", "payments", "orders", "transactions"}

// scoreCycle - Fixed bonus per cycle, plus weight per participating
// process and relation, plus a bump for every critical table touched
func scoreCycle(cycle state.DeadlockCycle, criticalTables map[string]bool) int {
	score := cycleBaseScore
	score += cycleProcessScore * len(cycle.Pids)
	score += cycleRelationScore * len(cycle.Relations)
	for _, relation := range cycle.Relations {
		if criticalTables[relation] {
			score += criticalTableScore
		}
	}
	return score
}

// scoreOverall - Scales with how much of the system the deadlock touched:
// cycles, transactions, locks, critical tables across all cycles, and the
// strength of the lock modes involved
func scoreOverall(transactions map[int32]*state.Transaction, locks []state.Lock, cycles []state.DeadlockCycle, criticalTables map[string]bool) int {
	score := overallCycleScore * len(cycles)
	score += overallTransactionScore * len(transactions)
	score += overallLockScore * len(locks)

	criticalSeen := make(map[string]bool)
	for _, cycle := range cycles {
		for _, relation := range cycle.Relations {
			if criticalTables[relation] && !criticalSeen[relation] {
				criticalSeen[relation] = true
				score += criticalTableScore
			}
		}
	}

	for _, lock := range locks {
		switch lock.Mode {
		case state.LockModeExclusive, state.LockModeAccessExclusive:
			score += exclusiveLockScore
		case state.LockModeShareRowExclusive, state.LockModeShare:
			score += shareLockScore
		}
	}

	return score
}
