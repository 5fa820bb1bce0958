package groupsv2

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/groupsync-go/internal/groupproto"
)

// titleChange builds a minimal change setting the title at a revision.
func titleChange(revision uint32, editor uuid.UUID, title string) *DecryptedGroupChange {
	return &DecryptedGroupChange{Editor: editor, Revision: revision, NewTitle: &title}
}

func TestAdvanceGroupState_StopsAtTarget(t *testing.T) {
	local, alice, _ := baseGroup(t) // revision 4
	history := []ServerGroupLogEntry{
		{Change: titleChange(5, alice, "r5")},
		{Change: titleChange(6, alice, "r6")},
		{Change: titleChange(7, alice, "r7")},
	}

	result, err := AdvanceGroupState(GlobalGroupState{LocalState: local, History: history}, 6, nil)
	require.NoError(t, err)

	// Exactly r5 and r6 applied; r7 is reported back unconsumed.
	require.Len(t, result.Applied, 2)
	assert.Equal(t, uint32(5), result.Applied[0].Group.Revision)
	assert.Equal(t, uint32(6), result.Applied[1].Group.Revision)
	require.NotNil(t, result.UpdatedState)
	assert.Equal(t, uint32(6), result.UpdatedState.Revision)
	assert.Equal(t, "r6", result.UpdatedState.Title)
	require.Len(t, result.Remaining, 1)
	assert.Equal(t, uint32(7), result.Remaining[0].Change.Revision)
}

func TestAdvanceGroupState_LatestDrainsEverything(t *testing.T) {
	local, alice, _ := baseGroup(t)
	history := []ServerGroupLogEntry{
		{Change: titleChange(5, alice, "r5")},
		{Change: titleChange(6, alice, "r6")},
	}

	result, err := AdvanceGroupState(GlobalGroupState{LocalState: local, History: history}, LatestRevision, nil)
	require.NoError(t, err)
	assert.Len(t, result.Applied, 2)
	assert.Empty(t, result.Remaining)
	assert.Equal(t, uint32(6), result.UpdatedState.Revision)
}

func TestAdvanceGroupState_AlreadyAhead(t *testing.T) {
	local, alice, _ := baseGroup(t) // revision 4
	history := []ServerGroupLogEntry{
		{Change: titleChange(3, alice, "old")},
		{Change: titleChange(4, alice, "current")},
	}

	result, err := AdvanceGroupState(GlobalGroupState{LocalState: local, History: history}, LatestRevision, nil)
	require.NoError(t, err)
	assert.Nil(t, result.UpdatedState)
	assert.Empty(t, result.Applied)
	assert.Empty(t, result.Remaining)
}

func TestAdvanceGroupState_FirstFullStateHasNoChange(t *testing.T) {
	g, _, _ := baseGroup(t)

	result, err := AdvanceGroupState(GlobalGroupState{
		LocalState: nil,
		History:    []ServerGroupLogEntry{{Group: g}},
	}, LatestRevision, nil)
	require.NoError(t, err)

	require.Len(t, result.Applied, 1)
	assert.True(t, result.Applied[0].Group.Equal(g))
	assert.Nil(t, result.Applied[0].Change) // nothing to reconstruct from
	assert.True(t, result.UpdatedState.Equal(g))
}

func TestAdvanceGroupState_BareStateGetsReconstructedChange(t *testing.T) {
	local, _, _ := baseGroup(t)
	next := local.clone()
	next.Revision = local.Revision + 1
	next.Title = "renamed"

	result, err := AdvanceGroupState(GlobalGroupState{
		LocalState: local,
		History:    []ServerGroupLogEntry{{Group: next}},
	}, LatestRevision, nil)
	require.NoError(t, err)

	require.Len(t, result.Applied, 1)
	change := result.Applied[0].Change
	require.NotNil(t, change)
	require.NotNil(t, change.NewTitle)
	assert.Equal(t, "renamed", *change.NewTitle)
}

func TestAdvanceGroupState_FullStateBridgesGaps(t *testing.T) {
	local, alice, _ := baseGroup(t) // revision 4
	jumped := local.clone()
	jumped.Revision = 9
	jumped.Title = "far ahead"

	history := []ServerGroupLogEntry{
		{Group: jumped}, // server sent a snapshot instead of r5..r9
		{Change: titleChange(10, alice, "r10")},
	}

	result, err := AdvanceGroupState(GlobalGroupState{LocalState: local, History: history}, LatestRevision, nil)
	require.NoError(t, err)
	require.Len(t, result.Applied, 2)
	assert.Equal(t, uint32(10), result.UpdatedState.Revision)
	assert.Equal(t, "r10", result.UpdatedState.Title)
}

func TestAdvanceGroupState_ChangeOnlyGapFails(t *testing.T) {
	local, alice, _ := baseGroup(t) // revision 4

	// r6 without r5: a change can never skip a revision.
	_, err := AdvanceGroupState(GlobalGroupState{
		LocalState: local,
		History:    []ServerGroupLogEntry{{Change: titleChange(6, alice, "r6")}},
	}, LatestRevision, nil)
	assert.ErrorIs(t, err, ErrRevisionGap)

	// A change with no local state at all is equally unusable.
	_, err = AdvanceGroupState(GlobalGroupState{
		History: []ServerGroupLogEntry{{Change: titleChange(1, alice, "r1")}},
	}, LatestRevision, nil)
	assert.ErrorIs(t, err, ErrRevisionGap)
}

func TestAdvanceGroupState_SkipsEmptyEntriesAndNoOpChanges(t *testing.T) {
	local, alice, _ := baseGroup(t) // revision 4, title "hiking"

	history := []ServerGroupLogEntry{
		{}, // empty entry, e.g. an unknown-epoch change
		{Change: titleChange(5, alice, local.Title)},  // no net difference
		{Change: titleChange(6, alice, "new things")}, // real transition
	}

	result, err := AdvanceGroupState(GlobalGroupState{LocalState: local, History: history}, LatestRevision, nil)
	require.NoError(t, err)

	// The no-op r5 advanced the revision silently; only r6 is reported.
	require.Len(t, result.Applied, 1)
	assert.Equal(t, uint32(6), result.Applied[0].Group.Revision)
	assert.Equal(t, uint32(6), result.UpdatedState.Revision)
}

func TestAdvanceGroupState_MembershipAcrossRevisions(t *testing.T) {
	local, alice, bob := baseGroup(t) // revision 4
	carol := uuid.New()
	carolKey := testProfileKey(t)

	history := []ServerGroupLogEntry{
		{Change: &DecryptedGroupChange{
			Editor:            alice,
			Revision:          5,
			NewPendingMembers: []DecryptedPendingMember{{UUID: carol, AddedByUUID: alice, Timestamp: 1}},
		}},
		{Change: &DecryptedGroupChange{
			Editor:                carol,
			Revision:              6,
			PromotePendingMembers: []DecryptedMember{member(carol, groupproto.RoleDefault, carolKey, 0)},
		}},
		{Change: &DecryptedGroupChange{
			Editor:        alice,
			Revision:      7,
			DeleteMembers: []uuid.UUID{bob},
		}},
	}

	result, err := AdvanceGroupState(GlobalGroupState{LocalState: local, History: history}, LatestRevision, nil)
	require.NoError(t, err)
	require.Len(t, result.Applied, 3)

	final := result.UpdatedState
	assert.Equal(t, uint32(7), final.Revision)
	m, ok := final.FindMember(carol)
	require.True(t, ok)
	assert.Equal(t, uint32(6), m.JoinedAtRevision)
	assert.Equal(t, carolKey, m.ProfileKey)
	_, ok = final.FindMember(bob)
	assert.False(t, ok)
	assert.Empty(t, final.PendingMembers)
}
