package deadlock_test

import (
	"testing"

	"github.com/pgsleuth/pgsleuth/deadlock"
)

var signatureTests = []struct {
	input    string
	expected bool
}{
	{"deadlock detected", true},
	{"ERROR: deadlock detected\nDETAIL: Process 123 waits for ShareLock", true},
	{"ERROR:  Deadlock Detected", true},
	{"psycopg2.errors.DeadlockDetected: deadlock detected", true},
	{"SQLSTATE 40P01", true},
	{"ERROR: canceling statement due to lock timeout", false},
	{"duplicate key value violates unique constraint \"users_pkey\"", false},
	{"", false},
	{"40p01", false},
}

func TestHasDeadlockSignature(t *testing.T) {
	for _, test := range signatureTests {
		actual := deadlock.HasDeadlockSignature(test.input)
		if actual != test.expected {
			t.Errorf("HasDeadlockSignature(%q): got %v, want %v", test.input, actual, test.expected)
		}
	}
}
