package groupsv2

import (
	"fmt"

	"go.uber.org/zap"
)

// LatestRevision is the target sentinel meaning "drain all available
// history".
const LatestRevision = ^uint32(0)

// ServerGroupLogEntry is one revision of server-supplied history: a full
// state, a decrypted change, or both. An entry with neither (for example a
// change from an unknown epoch) is skipped.
type ServerGroupLogEntry struct {
	Group  *DecryptedGroup
	Change *DecryptedGroupChange
}

// revision returns the entry's revision and whether it carries anything.
func (e ServerGroupLogEntry) revision() (uint32, bool) {
	switch {
	case e.Group != nil:
		return e.Group.Revision, true
	case e.Change != nil:
		return e.Change.Revision, true
	default:
		return 0, false
	}
}

// GlobalGroupState is the work queue for one advancement attempt: the
// current local state (nil for a group new to this client) and the ordered
// server history to fold onto it. Constructed per attempt, consumed once.
type GlobalGroupState struct {
	LocalState *DecryptedGroup
	History    []ServerGroupLogEntry
}

// AppliedGroupChangeLog is one successfully applied (state, change) pair,
// kept in application order for update-message insertion and profile key
// harvesting. Change is nil only when nothing to reconstruct from existed
// (the first full state of a previously unknown group).
type AppliedGroupChangeLog struct {
	Group  *DecryptedGroup
	Change *DecryptedGroupChange
}

// AdvanceResult is the outcome of folding history onto the local state.
type AdvanceResult struct {
	// UpdatedState is the new canonical state, or nil when the history
	// produced no change over the local state.
	UpdatedState *DecryptedGroup

	// Applied lists every (state, change) pair applied, in order.
	Applied []AppliedGroupChangeLog

	// Remaining holds the unconsumed tail of the history once the target
	// revision was reached; non-empty means more work remains.
	Remaining []ServerGroupLogEntry
}

// AdvanceGroupState folds the server history onto the local state, in
// ascending revision order, stopping once the target revision is reached
// (LatestRevision drains everything).
//
// Entries at or below the local revision are skipped. Entries carrying only
// a change must target exactly currentRevision+1, or the whole attempt
// fails with ErrRevisionGap, forcing the caller to re-fetch; the engine
// never applies changes out of order. Entries carrying a full state are
// adopted as-is, with the change reconstructed when absent so a readable
// update message can still be produced.
func AdvanceGroupState(state GlobalGroupState, target uint32, logger *zap.Logger) (AdvanceResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	current := state.LocalState
	result := AdvanceResult{}

	for i, entry := range state.History {
		revision, ok := entry.revision()
		if !ok {
			logger.Debug("skipping empty history entry", zap.Int("index", i))
			continue
		}

		if current != nil && revision <= current.Revision {
			logger.Debug("skipping already-known revision",
				zap.Uint32("revision", revision),
				zap.Uint32("localRevision", current.Revision))
			continue
		}
		if target != LatestRevision && revision > target {
			result.Remaining = state.History[i:]
			break
		}

		newState, change, err := advanceOne(current, entry)
		if err != nil {
			return AdvanceResult{}, fmt.Errorf("advance to revision %d: %w", revision, err)
		}

		if sameExceptRevision(newState, current) {
			// The revision advanced but nothing else did; don't emit a
			// transition for it.
			current = newState
			continue
		}

		result.Applied = append(result.Applied, AppliedGroupChangeLog{Group: newState, Change: change})
		current = newState

		if target != LatestRevision && current.Revision >= target {
			if rest := state.History[i+1:]; len(rest) > 0 {
				result.Remaining = rest
			}
			break
		}
	}

	// A revision-only bump still moves the canonical state forward even
	// when no transition was worth reporting.
	if current != state.LocalState {
		result.UpdatedState = current
	}
	return result, nil
}

// sameExceptRevision reports whether two states differ only in their
// revision counter.
func sameExceptRevision(a, b *DecryptedGroup) bool {
	if a == nil || b == nil {
		return false
	}
	c := *a
	c.Revision = b.Revision
	return c.Equal(b)
}

// advanceOne computes the next state from one log entry, preferring a
// provided full state over applying the change.
func advanceOne(current *DecryptedGroup, entry ServerGroupLogEntry) (*DecryptedGroup, *DecryptedGroupChange, error) {
	if entry.Group != nil {
		change := entry.Change
		if change == nil && current != nil {
			change = ReconstructGroupChange(current, entry.Group)
		}
		return entry.Group, change, nil
	}

	if current == nil {
		return nil, nil, fmt.Errorf("%w: change at revision %d with no base state",
			ErrRevisionGap, entry.Change.Revision)
	}
	newState, err := ApplyChange(current, entry.Change)
	if err != nil {
		return nil, nil, err
	}
	return newState, entry.Change, nil
}
