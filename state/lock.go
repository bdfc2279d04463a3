package state

import (
	"encoding/json"
	"strings"

	"github.com/guregu/null"
)

// LockMode - The eight PostgreSQL table-level lock modes, ordered weakest
// to strongest, plus an explicit Unknown variant for tokens we could not
// resolve (see deadlock.Compatible for how Unknown is treated).
type LockMode int32

const (
	LockModeUnknown LockMode = iota
	LockModeAccessShare
	LockModeRowShare
	LockModeRowExclusive
	LockModeShareUpdateExclusive
	LockModeShare
	LockModeShareRowExclusive
	LockModeExclusive
	LockModeAccessExclusive
)

var lockModeNames = map[LockMode]string{
	LockModeUnknown:              "UnknownLock",
	LockModeAccessShare:          "AccessShareLock",
	LockModeRowShare:             "RowShareLock",
	LockModeRowExclusive:         "RowExclusiveLock",
	LockModeShareUpdateExclusive: "ShareUpdateExclusiveLock",
	LockModeShare:                "ShareLock",
	LockModeShareRowExclusive:    "ShareRowExclusiveLock",
	LockModeExclusive:            "ExclusiveLock",
	LockModeAccessExclusive:      "AccessExclusiveLock",
}

// KnownLockModes - All resolvable modes in weakest-to-strongest order
var KnownLockModes = []LockMode{
	LockModeAccessShare,
	LockModeRowShare,
	LockModeRowExclusive,
	LockModeShareUpdateExclusive,
	LockModeShare,
	LockModeShareRowExclusive,
	LockModeExclusive,
	LockModeAccessExclusive,
}

func (m LockMode) String() string {
	if name, ok := lockModeNames[m]; ok {
		return name
	}
	return "UnknownLock"
}

func (m LockMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *LockMode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*m = ParseLockMode(s)
	return nil
}

// ParseLockMode - Resolves a raw lock mode token from the log text. Accepts
// the mode name with or without the "Lock" suffix; unresolvable tokens map
// to LockModeUnknown rather than failing.
func ParseLockMode(token string) LockMode {
	token = strings.TrimSpace(token)
	if !strings.HasSuffix(token, "Lock") {
		token += "Lock"
	}
	for mode, name := range lockModeNames {
		if mode != LockModeUnknown && strings.EqualFold(name, token) {
			return mode
		}
	}
	return LockModeUnknown
}

// LockType - Matches the values of pg_locks.locktype, plus Other for
// anything we do not recognize
type LockType int32

const (
	LockTypeOther LockType = iota
	LockTypeRelation
	LockTypeTuple
	LockTypeTransactionID
	LockTypeVirtualXID
	LockTypeObject
	LockTypePage
	LockTypeExtend
	LockTypeAdvisory
)

var lockTypeNames = map[LockType]string{
	LockTypeOther:         "other",
	LockTypeRelation:      "relation",
	LockTypeTuple:         "tuple",
	LockTypeTransactionID: "transactionid",
	LockTypeVirtualXID:    "virtualxid",
	LockTypeObject:        "object",
	LockTypePage:          "page",
	LockTypeExtend:        "extend",
	LockTypeAdvisory:      "advisory",
}

func (t LockType) String() string {
	if name, ok := lockTypeNames[t]; ok {
		return name
	}
	return "other"
}

func (t LockType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *LockType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = ParseLockType(s)
	return nil
}

// ParseLockType - Resolves a lock type token as it appears in log output.
// The log text uses slightly different names than pg_locks.locktype
// ("transaction", "virtual", "extension"), so those are aliased here.
func ParseLockType(token string) LockType {
	switch strings.ToLower(strings.TrimSpace(token)) {
	case "relation":
		return LockTypeRelation
	case "tuple":
		return LockTypeTuple
	case "transactionid", "transaction":
		return LockTypeTransactionID
	case "virtualxid", "virtual":
		return LockTypeVirtualXID
	case "object":
		return LockTypeObject
	case "page":
		return LockTypePage
	case "extend", "extension":
		return LockTypeExtend
	case "advisory":
		return LockTypeAdvisory
	}
	return LockTypeOther
}

// Lock - A single held or awaited lock attributed to one process
type Lock struct {
	LockType   LockType    `json:"lockType"`
	Relation   null.String `json:"relation"`
	Database   null.String `json:"database"`
	Mode       LockMode    `json:"mode"`
	Granted    bool        `json:"granted"`
	Pid        int32       `json:"pid"`
	ResourceID null.String `json:"resourceId"`
}

// ResourceKey - Identifies the locked resource for conflict purposes:
// the relation name when present, otherwise the type-qualified resource id
func (l Lock) ResourceKey() string {
	if l.Relation.Valid && l.Relation.String != "" {
		return "relation:" + l.Relation.String
	}
	if l.ResourceID.Valid && l.ResourceID.String != "" {
		return l.LockType.String() + ":" + l.ResourceID.String
	}
	return ""
}
