package groupsv2

import (
	"github.com/google/uuid"

	"github.com/gwillem/groupsync-go/pkg/zkgroup"
)

// ReconstructGroupChange computes the change that transforms `from` into
// `to`, for log entries that arrive as bare states with no change payload.
// It is a pure, deterministic function: identical inputs always yield an
// identical change, with list ordering following the originating state's
// member order. The reconstructed editor is unknown.
func ReconstructGroupChange(from, to *DecryptedGroup) *DecryptedGroupChange {
	change := &DecryptedGroupChange{
		Editor:   zkgroup.UnknownUUID,
		Revision: to.Revision,
	}

	if from.Title != to.Title {
		title := to.Title
		change.NewTitle = &title
	}
	if from.Avatar != to.Avatar {
		avatar := to.Avatar
		change.NewAvatar = &avatar
	}
	if from.DisappearingMessagesTimer != to.DisappearingMessagesTimer {
		timer := to.DisappearingMessagesTimer
		change.NewDisappearingMessagesTimer = &timer
	}
	if from.AttributesAccess != to.AttributesAccess {
		access := to.AttributesAccess
		change.NewAttributesAccess = &access
	}
	if from.MembersAccess != to.MembersAccess {
		access := to.MembersAccess
		change.NewMembersAccess = &access
	}

	fromFull := make(map[uuid.UUID]DecryptedMember, len(from.Members))
	for _, m := range from.Members {
		fromFull[m.UUID] = m
	}
	toFull := make(map[uuid.UUID]struct{}, len(to.Members))
	for _, m := range to.Members {
		toFull[m.UUID] = struct{}{}
	}
	fromPending := make(map[uuid.UUID]struct{}, len(from.PendingMembers))
	for _, p := range from.PendingMembers {
		fromPending[p.UUID] = struct{}{}
	}
	toPending := make(map[uuid.UUID]struct{}, len(to.PendingMembers))
	for _, p := range to.PendingMembers {
		toPending[p.UUID] = struct{}{}
	}

	// Removals, in old-state order.
	for _, m := range from.Members {
		if _, stays := toFull[m.UUID]; !stays {
			change.DeleteMembers = append(change.DeleteMembers, m.UUID)
		}
	}

	// Additions and promotions, in new-state order. A uuid that left the
	// pending list and shows up full accepted its invite.
	for _, m := range to.Members {
		if _, existed := fromFull[m.UUID]; existed {
			continue
		}
		if _, wasPending := fromPending[m.UUID]; wasPending && m.UUID != zkgroup.UnknownUUID {
			change.PromotePendingMembers = append(change.PromotePendingMembers, m)
		} else {
			change.NewMembers = append(change.NewMembers, m)
		}
	}

	// Invite revocations: pending entries that vanished without the uuid
	// becoming a full member.
	for _, p := range from.PendingMembers {
		if _, stays := toPending[p.UUID]; stays {
			continue
		}
		if _, promoted := toFull[p.UUID]; promoted && p.UUID != zkgroup.UnknownUUID {
			continue
		}
		change.DeletePendingMembers = append(change.DeletePendingMembers, p.UUID)
	}

	// New invitations, in new-state order.
	for _, p := range to.PendingMembers {
		if _, existed := fromPending[p.UUID]; !existed {
			change.NewPendingMembers = append(change.NewPendingMembers, p)
		}
	}

	// Field-by-field comparison for members present in both states, in
	// old-state order. Unchanged members produce no entries.
	for _, old := range from.Members {
		updated, stays := findMember(to.Members, old.UUID)
		if !stays {
			continue
		}
		if old.Role != updated.Role {
			change.ModifyMemberRoles = append(change.ModifyMemberRoles,
				DecryptedModifyMemberRole{UUID: updated.UUID, Role: updated.Role})
		}
		if old.ProfileKey != updated.ProfileKey {
			change.ModifiedProfileKeys = append(change.ModifiedProfileKeys,
				DecryptedProfileKeyUpdate{UUID: updated.UUID, ProfileKey: updated.ProfileKey})
		}
	}

	return change
}

func findMember(members []DecryptedMember, id uuid.UUID) (DecryptedMember, bool) {
	for _, m := range members {
		if m.UUID == id {
			return m, true
		}
	}
	return DecryptedMember{}, false
}
