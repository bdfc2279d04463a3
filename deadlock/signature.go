package deadlock

import "strings"

// SQLSTATE class 40 serialization failure code emitted with every
// deadlock abort
const sqlstateDeadlockDetected = "40P01"

// HasDeadlockSignature - Whether the message is a deadlock diagnostic at
// all. A false return short-circuits the pipeline without being an error.
func HasDeadlockSignature(message string) bool {
	if strings.Contains(strings.ToLower(message), "deadlock detected") {
		return true
	}
	return strings.Contains(message, sqlstateDeadlockDetected)
}
