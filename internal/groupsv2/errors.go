// Package groupsv2 implements the group state synchronization engine:
// decrypting server-supplied group states and signed changes, folding
// ordered change logs onto the local state, reconstructing changes from
// bare state pairs, and harvesting member profile keys along the way.
//
// The engine is synchronous and performs no I/O; callers fetch history,
// hand it in as resolved data, and persist whatever comes back. All state
// values returned here are immutable snapshots.
package groupsv2

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors used across the engine and its callers for stable error
// mapping. Always wrapped with context via fmt.Errorf("...: %w", ...).
var (
	// ErrVerification indicates a signature or proof failed. The change or
	// state being processed must not be applied.
	ErrVerification = errors.New("groupsv2: verification failed")

	// ErrInvalidGroupState indicates member data or ciphertext that is
	// structurally broken in a way that prevents establishing a consistent
	// member list.
	ErrInvalidGroupState = errors.New("groupsv2: invalid group state")

	// ErrNotAMember indicates the server reports the local user is no
	// longer in the group. Non-retryable until re-invited.
	ErrNotAMember = errors.New("groupsv2: not a member of this group")

	// ErrRevisionGap indicates out-of-order or non-contiguous history; the
	// caller should re-query the server for full state rather than guess.
	ErrRevisionGap = errors.New("groupsv2: group revision gap")
)

func errDuplicateMember(id uuid.UUID) error {
	return fmt.Errorf("%w: duplicate member %s", ErrInvalidGroupState, id)
}

func errMemberBothFullAndPending(id uuid.UUID) error {
	return fmt.Errorf("%w: member %s is both full and pending", ErrInvalidGroupState, id)
}
