package deadlock

import (
	"regexp"
	"sort"
	"strings"

	"github.com/guregu/null"

	"github.com/pgsleuth/pgsleuth/state"
)

var tableReferenceRegexp = regexp.MustCompile(`(?i)\b(?:INSERT\s+INTO|DELETE\s+FROM|FROM|JOIN|UPDATE)\s+("?[\w$]+"?(?:\."?[\w$]+"?)?)`)

// Keywords that the table reference scan can capture by accident
// (e.g. "SELECT ... FOR UPDATE NOWAIT")
var tableReferenceStopwords = map[string]bool{
	"select": true, "where": true, "set": true, "nowait": true,
	"only": true, "values": true, "returning": true, "skip": true,
}

// buildModel - Assembles one Transaction per observed process id and the
// shared lock arena. Held/awaited locks are referenced by index, and a
// held lock is inferred for a blocking process when the message never
// states one explicitly (with an unresolved mode, which keeps the
// conflict check conservative).
func buildModel(extraction *extraction) (map[int32]*state.Transaction, []state.Lock) {
	transactions := make(map[int32]*state.Transaction)
	var locks []state.Lock

	ensure := func(pid int32) *state.Transaction {
		if tx, ok := transactions[pid]; ok {
			return tx
		}
		tx := &state.Transaction{
			Pid:            pid,
			TablesAccessed: []string{},
			LocksHeld:      []int{},
			LocksWaiting:   []int{},
		}
		transactions[pid] = tx
		return tx
	}

	for _, wait := range extraction.waits {
		ensure(wait.waiterPid)
		ensure(wait.blockerPid)
	}
	for _, pid := range extraction.contextPids {
		ensure(pid)
	}

	for pid, context := range extraction.contexts {
		tx := transactions[pid]
		if context.statement != "" {
			statement := RedactStatement(context.statement)
			tx.Statement = null.StringFrom(statement)
			fingerprint := FingerprintQuery(statement)
			tx.Fingerprint = &fingerprint
			tx.TablesAccessed = extractTableReferences(statement)
		}
		if context.applicationName != "" {
			tx.ApplicationName = null.StringFrom(context.applicationName)
		}
		if context.username != "" {
			tx.Username = null.StringFrom(context.username)
		}
	}

	appendLock := func(lock state.Lock) int {
		locks = append(locks, lock)
		return len(locks) - 1
	}

	hasLock := func(tx *state.Transaction, indices []int, key string) bool {
		for _, idx := range indices {
			if locks[idx].ResourceKey() == key {
				return true
			}
		}
		return false
	}

	for _, record := range extraction.lockRecords {
		tx := ensure(record.pid)
		lock := state.Lock{
			LockType: record.lockType,
			Mode:     record.mode,
			Granted:  record.granted,
			Pid:      record.pid,
		}
		if record.relation != "" {
			lock.Relation = null.StringFrom(record.relation)
		}
		if record.resource != "" {
			lock.ResourceID = null.StringFrom(record.resource)
		}
		idx := appendLock(lock)
		if record.granted {
			tx.LocksHeld = append(tx.LocksHeld, idx)
		} else {
			tx.LocksWaiting = append(tx.LocksWaiting, idx)
		}
	}

	for _, wait := range extraction.waits {
		waiter := transactions[wait.waiterPid]
		blocker := transactions[wait.blockerPid]

		waiting := state.Lock{
			LockType: wait.lockType,
			Mode:     wait.mode,
			Granted:  false,
			Pid:      wait.waiterPid,
		}
		if wait.relation != "" {
			waiting.Relation = null.StringFrom(wait.relation)
		}
		if wait.database != "" {
			waiting.Database = null.StringFrom(wait.database)
		}
		if wait.resource != "" {
			waiting.ResourceID = null.StringFrom(wait.resource)
		}

		key := waiting.ResourceKey()
		if key == "" || !hasLock(waiter, waiter.LocksWaiting, key) {
			idx := appendLock(waiting)
			waiter.LocksWaiting = append(waiter.LocksWaiting, idx)
		}

		// The message says this process blocks the waiter, so it must hold
		// something on the same resource even when no grant record says so
		if key != "" && !hasLock(blocker, blocker.LocksHeld, key) {
			held := waiting
			held.Mode = state.LockModeUnknown
			held.Granted = true
			held.Pid = wait.blockerPid
			idx := appendLock(held)
			blocker.LocksHeld = append(blocker.LocksHeld, idx)
		}
	}

	return transactions, locks
}

// extractTableReferences - Scans statement text for table names following
// FROM/JOIN/UPDATE/INSERT INTO/DELETE FROM, stripping schema qualifiers
// and quoting. This is deliberately not a SQL parser; it only needs to be
// good enough to drive recommendations.
func extractTableReferences(statement string) []string {
	seen := make(map[string]bool)
	var tables []string
	for _, parts := range tableReferenceRegexp.FindAllStringSubmatch(statement, -1) {
		name := stripSchemaQualifier(parts[1])
		if name == "" {
			continue
		}
		name = strings.ToLower(name)
		if tableReferenceStopwords[name] || seen[name] {
			continue
		}
		seen[name] = true
		tables = append(tables, name)
	}
	sort.Strings(tables)
	if tables == nil {
		tables = []string{}
	}
	return tables
}

func sortedPids(transactions map[int32]*state.Transaction) []int32 {
	pids := make([]int32, 0, len(transactions))
	for pid := range transactions {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}
