package deadlock

import "github.com/pgsleuth/pgsleuth/state"

// lockConflicts - The standard PostgreSQL table-level lock conflict table.
// Each entry lists the modes that conflict with the key; the relationship
// is symmetric by construction (verified by TestCompatibilitySymmetry).
var lockConflicts = map[state.LockMode][]state.LockMode{
	state.LockModeAccessShare: {
		state.LockModeAccessExclusive,
	},
	state.LockModeRowShare: {
		state.LockModeExclusive, state.LockModeAccessExclusive,
	},
	state.LockModeRowExclusive: {
		state.LockModeShare, state.LockModeShareRowExclusive,
		state.LockModeExclusive, state.LockModeAccessExclusive,
	},
	state.LockModeShareUpdateExclusive: {
		state.LockModeShareUpdateExclusive, state.LockModeShare,
		state.LockModeShareRowExclusive, state.LockModeExclusive,
		state.LockModeAccessExclusive,
	},
	state.LockModeShare: {
		state.LockModeRowExclusive, state.LockModeShareUpdateExclusive,
		state.LockModeShareRowExclusive, state.LockModeExclusive,
		state.LockModeAccessExclusive,
	},
	state.LockModeShareRowExclusive: {
		state.LockModeRowExclusive, state.LockModeShareUpdateExclusive,
		state.LockModeShare, state.LockModeShareRowExclusive,
		state.LockModeExclusive, state.LockModeAccessExclusive,
	},
	state.LockModeExclusive: {
		state.LockModeRowShare, state.LockModeRowExclusive,
		state.LockModeShareUpdateExclusive, state.LockModeShare,
		state.LockModeShareRowExclusive, state.LockModeExclusive,
		state.LockModeAccessExclusive,
	},
	state.LockModeAccessExclusive: {
		state.LockModeAccessShare, state.LockModeRowShare,
		state.LockModeRowExclusive, state.LockModeShareUpdateExclusive,
		state.LockModeShare, state.LockModeShareRowExclusive,
		state.LockModeExclusive, state.LockModeAccessExclusive,
	},
}

// Compatible - Whether two lock modes can be held on the same relation at
// the same time. Pairs involving an unresolved mode are treated as
// incompatible. NOTE: this fallback can manufacture wait-for edges (and
// therefore cycles) that did not exist in the database; it is kept because
// missing a real deadlock is worse than reporting a doubtful one.
func Compatible(a state.LockMode, b state.LockMode) bool {
	if a == state.LockModeUnknown || b == state.LockModeUnknown {
		return false
	}
	for _, conflicting := range lockConflicts[a] {
		if conflicting == b {
			return false
		}
	}
	return true
}

// CompatibilityMatrix - The full 8x8 matrix keyed by mode name, exported
// for the visualization payload and the reference endpoint
func CompatibilityMatrix() map[string]map[string]bool {
	matrix := make(map[string]map[string]bool)
	for _, a := range state.KnownLockModes {
		row := make(map[string]bool)
		for _, b := range state.KnownLockModes {
			row[b.String()] = Compatible(a, b)
		}
		matrix[a.String()] = row
	}
	return matrix
}
