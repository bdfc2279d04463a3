package deadlock

import (
	"testing"

	"github.com/guregu/null"
	"github.com/kylelemons/godebug/pretty"

	"github.com/pgsleuth/pgsleuth/state"
)

// graphFixture wires transactions to a lock arena by hand so graph and
// cycle behavior can be tested without going through message extraction
type graphFixture struct {
	transactions map[int32]*state.Transaction
	locks        []state.Lock
}

func newGraphFixture() *graphFixture {
	return &graphFixture{transactions: make(map[int32]*state.Transaction)}
}

func (f *graphFixture) addLock(pid int32, relation string, mode state.LockMode, granted bool) {
	tx, ok := f.transactions[pid]
	if !ok {
		tx = &state.Transaction{Pid: pid, TablesAccessed: []string{}, LocksHeld: []int{}, LocksWaiting: []int{}}
		f.transactions[pid] = tx
	}
	f.locks = append(f.locks, state.Lock{
		LockType: state.LockTypeRelation,
		Relation: null.StringFrom(relation),
		Mode:     mode,
		Granted:  granted,
		Pid:      pid,
	})
	idx := len(f.locks) - 1
	if granted {
		tx.LocksHeld = append(tx.LocksHeld, idx)
	} else {
		tx.LocksWaiting = append(tx.LocksWaiting, idx)
	}
}

func TestBuildWaitForGraphTwoWay(t *testing.T) {
	f := newGraphFixture()
	f.addLock(1, "accounts", state.LockModeRowExclusive, true)
	f.addLock(1, "orders", state.LockModeRowExclusive, false)
	f.addLock(2, "orders", state.LockModeRowExclusive, true)
	f.addLock(2, "accounts", state.LockModeRowExclusive, false)

	graph := buildWaitForGraph(f.transactions, f.locks)

	// RowExclusive is self-compatible, so neither wait produces an edge
	if len(graph.edges) != 0 {
		t.Fatalf("expected no edges for self-compatible modes, got %v", graph.edges)
	}

	f = newGraphFixture()
	f.addLock(1, "accounts", state.LockModeExclusive, true)
	f.addLock(1, "orders", state.LockModeShare, false)
	f.addLock(2, "orders", state.LockModeExclusive, true)
	f.addLock(2, "accounts", state.LockModeShare, false)

	graph = buildWaitForGraph(f.transactions, f.locks)

	if len(graph.edgesBetween(1, 2)) != 1 {
		t.Errorf("expected edge 1 -> 2, got %v", graph.edges[1])
	}
	if len(graph.edgesBetween(2, 1)) != 1 {
		t.Errorf("expected edge 2 -> 1, got %v", graph.edges[2])
	}
}

func TestBuildWaitForGraphDistinctResources(t *testing.T) {
	f := newGraphFixture()
	f.addLock(1, "accounts", state.LockModeAccessExclusive, true)
	f.addLock(2, "orders", state.LockModeAccessExclusive, false)

	graph := buildWaitForGraph(f.transactions, f.locks)

	// Strongest possible modes, but on different relations
	if len(graph.edges) != 0 {
		t.Errorf("expected no edges across distinct resources, got %v", graph.edges)
	}
}

func TestFindElementaryCyclesPair(t *testing.T) {
	f := newGraphFixture()
	f.addLock(123, "accounts", state.LockModeExclusive, true)
	f.addLock(123, "orders", state.LockModeShare, false)
	f.addLock(789, "orders", state.LockModeExclusive, true)
	f.addLock(789, "accounts", state.LockModeShare, false)

	cycles := findElementaryCycles(buildWaitForGraph(f.transactions, f.locks))

	expected := [][]int32{{123, 789}}
	if diff := pretty.Compare(expected, cycles); diff != "" {
		t.Errorf("cycles diff: (-want +got)\n%s", diff)
	}
}

func TestFindElementaryCyclesTriangle(t *testing.T) {
	f := newGraphFixture()
	f.addLock(1, "a", state.LockModeExclusive, true)
	f.addLock(1, "b", state.LockModeShare, false)
	f.addLock(2, "b", state.LockModeExclusive, true)
	f.addLock(2, "c", state.LockModeShare, false)
	f.addLock(3, "c", state.LockModeExclusive, true)
	f.addLock(3, "a", state.LockModeShare, false)

	cycles := findElementaryCycles(buildWaitForGraph(f.transactions, f.locks))

	// A three-party cycle must be reported exactly once, rooted at its
	// smallest pid, never as a rotation
	expected := [][]int32{{1, 2, 3}}
	if diff := pretty.Compare(expected, cycles); diff != "" {
		t.Errorf("cycles diff: (-want +got)\n%s", diff)
	}
}

func TestFindElementaryCyclesSharedNode(t *testing.T) {
	f := newGraphFixture()
	f.addLock(1, "a", state.LockModeExclusive, true)
	f.addLock(1, "b", state.LockModeShare, false)
	f.addLock(2, "b", state.LockModeExclusive, true)
	f.addLock(2, "a", state.LockModeShare, false)
	f.addLock(2, "c", state.LockModeShare, false)
	f.addLock(3, "c", state.LockModeExclusive, true)
	f.addLock(3, "b", state.LockModeShare, false)

	cycles := findElementaryCycles(buildWaitForGraph(f.transactions, f.locks))

	expected := [][]int32{{1, 2}, {2, 3}}
	if diff := pretty.Compare(expected, cycles); diff != "" {
		t.Errorf("cycles diff: (-want +got)\n%s", diff)
	}
}

func TestFindElementaryCyclesNoCycle(t *testing.T) {
	f := newGraphFixture()
	f.addLock(1, "a", state.LockModeExclusive, true)
	f.addLock(2, "a", state.LockModeShare, false)

	cycles := findElementaryCycles(buildWaitForGraph(f.transactions, f.locks))

	if len(cycles) != 0 {
		t.Errorf("expected no cycles in a simple blocking chain, got %v", cycles)
	}
}
