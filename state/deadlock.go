package state

import (
	"time"

	"github.com/guregu/null"
)

// QueryFingerprint - Normalized and parameterized representation of a
// statement; derived once from the original text and never mutated.
// Two statements differing only in literal values share a Hash.
type QueryFingerprint struct {
	Original      string `json:"original"`
	Normalized    string `json:"normalized"`
	Parameterized string `json:"parameterized"`
	Hash          string `json:"hash"`
}

// Transaction - One backend process participating in the deadlock.
// LocksHeld and LocksWaiting are indices into DeadlockInfo.Locks, keeping
// the lock records in a single arena without pointer cycles.
type Transaction struct {
	Pid             int32             `json:"pid"`
	Statement       null.String       `json:"statement"`
	Fingerprint     *QueryFingerprint `json:"fingerprint,omitempty"`
	TablesAccessed  []string          `json:"tablesAccessed"`
	LocksHeld       []int             `json:"locksHeld"`
	LocksWaiting    []int             `json:"locksWaiting"`
	ApplicationName null.String       `json:"applicationName"`
	Username        null.String       `json:"username"`
}

// DeadlockCycle - One closed wait-for cycle; always at least two processes
type DeadlockCycle struct {
	Pids      []int32  `json:"pids"`
	Relations []string `json:"relations"`
	Severity  int      `json:"severity"`
}

// VisualizationNode - A process or table node for the presentation layer
type VisualizationNode struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Kind    string `json:"kind"` // "process" or "table"
	InCycle bool   `json:"inCycle"`
}

// VisualizationEdge - A wait-for edge between processes, or an access edge
// from a process to a table
type VisualizationEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Kind   string `json:"kind"` // "waits-for" or "accesses"
	Label  string `json:"label,omitempty"`
}

type Visualization struct {
	Nodes             []VisualizationNode        `json:"nodes"`
	Edges             []VisualizationEdge        `json:"edges"`
	Cycles            [][]int32                  `json:"cycles"`
	LockCompatibility map[string]map[string]bool `json:"lockCompatibility"`
	Severity          int                        `json:"severity"`
}

// DeadlockInfo - The terminal analysis artifact. Immutable once produced;
// carries no back-reference into the event it was derived from.
type DeadlockInfo struct {
	AnalysisID     string                 `json:"analysisId"`
	RawMessage     string                 `json:"rawMessage"`
	Transactions   map[int32]*Transaction `json:"transactions"`
	Locks          []Lock                 `json:"locks"`
	Cycles         []DeadlockCycle        `json:"cycles"`
	Visualization  *Visualization         `json:"visualization"`
	RecommendedFix string                 `json:"recommendedFix"`
	SeverityScore  int                    `json:"severityScore"`
	Timestamp      time.Time              `json:"timestamp"`
}
