package deadlock

import (
	"strings"
	"testing"

	"github.com/guregu/null"

	"github.com/pgsleuth/pgsleuth/state"
)

func transactionWithStatement(pid int32, statement string) *state.Transaction {
	fingerprint := FingerprintQuery(statement)
	return &state.Transaction{
		Pid:            pid,
		Statement:      null.StringFrom(statement),
		Fingerprint:    &fingerprint,
		TablesAccessed: extractTableReferences(statement),
	}
}

var classifyTests = []struct {
	name       string
	statements []string
	locks      []state.Lock
	expected   contentionPattern
}{
	{
		"update contention",
		[]string{
			"UPDATE accounts SET balance = 1 WHERE id = 1",
			"UPDATE orders SET status = 'paid' WHERE id = 2",
		},
		nil,
		patternUpdateContention,
	},
	{
		"select for update",
		[]string{
			"SELECT * FROM accounts WHERE id = 1 FOR UPDATE",
			"UPDATE orders SET status = 'paid' WHERE id = 2",
		},
		nil,
		patternSelectForUpdate,
	},
	{
		"exclusive lock without statements",
		nil,
		[]state.Lock{{Mode: state.LockModeAccessExclusive, Granted: true, Pid: 1}},
		patternExclusiveLock,
	},
	{
		"mixed statements fall back to generic",
		[]string{
			"UPDATE accounts SET balance = 1 WHERE id = 1",
			"DELETE FROM orders WHERE id = 2",
		},
		nil,
		patternGeneric,
	},
	{
		"nothing known",
		nil,
		nil,
		patternGeneric,
	},
}

func TestClassifyPattern(t *testing.T) {
	for _, test := range classifyTests {
		transactions := make(map[int32]*state.Transaction)
		for i, statement := range test.statements {
			pid := int32(i + 1)
			transactions[pid] = transactionWithStatement(pid, statement)
		}
		actual := classifyPattern(transactions, test.locks)
		if actual != test.expected {
			t.Errorf("%s: got pattern %d, want %d", test.name, actual, test.expected)
		}
	}
}

func TestBuildRecommendation(t *testing.T) {
	transactions := map[int32]*state.Transaction{
		123: transactionWithStatement(123, "UPDATE accounts SET balance = 100 WHERE id = 1"),
		789: transactionWithStatement(789, "UPDATE orders SET status = 'paid' WHERE account_id = 1"),
	}
	cycles := []state.DeadlockCycle{
		{Pids: []int32{123, 789}, Relations: []string{"orders", "accounts"}},
	}

	text := buildRecommendation(transactions, nil, cycles)

	if !strings.HasPrefix(text, "Root cause: ") {
		t.Errorf("recommendation should open with the root cause, got %q", text)
	}
	if !strings.Contains(text, "Suggested access order: accounts, orders\n") {
		t.Errorf("expected alphabetical access order in %q", text)
	}
	if !strings.Contains(text, "Mitigations:\n- ") {
		t.Errorf("expected a mitigation list in %q", text)
	}
	if !strings.Contains(text, recommendationTable[patternUpdateContention].rootCause) {
		t.Errorf("expected update contention root cause in %q", text)
	}
}

func TestBuildRecommendationWithoutTables(t *testing.T) {
	text := buildRecommendation(map[int32]*state.Transaction{1: {Pid: 1}, 2: {Pid: 2}}, nil, nil)

	if strings.Contains(text, "Suggested access order") {
		t.Errorf("no tables known, should omit access order: %q", text)
	}
	if !strings.Contains(text, recommendationTable[patternGeneric].rootCause) {
		t.Errorf("expected generic root cause in %q", text)
	}
}
