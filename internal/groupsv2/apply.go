package groupsv2

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/gwillem/groupsync-go/internal/groupproto"
	"github.com/gwillem/groupsync-go/pkg/zkgroup"
)

// groupAction is one applicable unit of a group change. ApplyChange
// processes a change as an ordered list of these; the order is fixed by
// the wire protocol's field order and is semantically meaningful
// (deletions run before role changes, pending removals before promotions).
type groupAction interface {
	apply(b *stateBuilder) error
}

// ApplyChange folds a decrypted change onto a state, producing the new
// state. The input state is never mutated. The change's target revision
// must be exactly the input revision + 1; anything else is ErrRevisionGap.
func ApplyChange(g *DecryptedGroup, change *DecryptedGroupChange) (*DecryptedGroup, error) {
	if change.Revision != g.Revision+1 {
		return nil, fmt.Errorf("%w: change targets revision %d, have %d",
			ErrRevisionGap, change.Revision, g.Revision)
	}

	b := &stateBuilder{g: g.clone()}
	for _, action := range actionList(change) {
		if err := action.apply(b); err != nil {
			return nil, err
		}
	}
	b.g.Revision = change.Revision

	if err := b.g.validate(); err != nil {
		return nil, err
	}
	return b.g, nil
}

// actionList flattens a change into its actions in wire-field order.
func actionList(c *DecryptedGroupChange) []groupAction {
	var actions []groupAction
	for _, m := range c.NewMembers {
		actions = append(actions, addMemberAction{m})
	}
	for _, id := range c.DeleteMembers {
		actions = append(actions, deleteMemberAction{id})
	}
	for _, r := range c.ModifyMemberRoles {
		actions = append(actions, modifyRoleAction{r})
	}
	for _, k := range c.ModifiedProfileKeys {
		actions = append(actions, modifyProfileKeyAction{k})
	}
	for _, p := range c.NewPendingMembers {
		actions = append(actions, addPendingAction{p})
	}
	for _, id := range c.DeletePendingMembers {
		actions = append(actions, deletePendingAction{id})
	}
	for _, m := range c.PromotePendingMembers {
		actions = append(actions, promotePendingAction{m})
	}
	if c.NewTitle != nil {
		actions = append(actions, setTitleAction{*c.NewTitle})
	}
	if c.NewAvatar != nil {
		actions = append(actions, setAvatarAction{*c.NewAvatar})
	}
	if c.NewDisappearingMessagesTimer != nil {
		actions = append(actions, setTimerAction{*c.NewDisappearingMessagesTimer})
	}
	if c.NewAttributesAccess != nil {
		actions = append(actions, setAttributesAccessAction{*c.NewAttributesAccess})
	}
	if c.NewMembersAccess != nil {
		actions = append(actions, setMembersAccessAction{*c.NewMembersAccess})
	}
	return actions
}

// stateBuilder is the mutable working copy actions apply to. It exists
// only inside ApplyChange; the finished state is an immutable snapshot.
type stateBuilder struct {
	g *DecryptedGroup
}

func (b *stateBuilder) memberIndex(id uuid.UUID) int {
	for i, m := range b.g.Members {
		if m.UUID == id {
			return i
		}
	}
	return -1
}

func (b *stateBuilder) pendingIndex(id uuid.UUID) int {
	for i, p := range b.g.PendingMembers {
		if p.UUID == id {
			return i
		}
	}
	return -1
}

func (b *stateBuilder) removePending(i int) {
	b.g.PendingMembers = append(b.g.PendingMembers[:i], b.g.PendingMembers[i+1:]...)
}

type addMemberAction struct{ member DecryptedMember }

func (a addMemberAction) apply(b *stateBuilder) error {
	if b.memberIndex(a.member.UUID) >= 0 {
		return errDuplicateMember(a.member.UUID)
	}
	// A direct add of an already-invited user consumes the invite.
	if i := b.pendingIndex(a.member.UUID); i >= 0 {
		b.removePending(i)
	}
	b.g.Members = append(b.g.Members, a.member)
	return nil
}

type deleteMemberAction struct{ id uuid.UUID }

func (a deleteMemberAction) apply(b *stateBuilder) error {
	i := b.memberIndex(a.id)
	if i < 0 {
		return fmt.Errorf("%w: delete of non-member %s", ErrInvalidGroupState, a.id)
	}
	b.g.Members = append(b.g.Members[:i], b.g.Members[i+1:]...)
	return nil
}

type modifyRoleAction struct{ change DecryptedModifyMemberRole }

func (a modifyRoleAction) apply(b *stateBuilder) error {
	i := b.memberIndex(a.change.UUID)
	if i < 0 {
		return fmt.Errorf("%w: role change for non-member %s", ErrInvalidGroupState, a.change.UUID)
	}
	b.g.Members[i].Role = a.change.Role
	return nil
}

type modifyProfileKeyAction struct{ update DecryptedProfileKeyUpdate }

func (a modifyProfileKeyAction) apply(b *stateBuilder) error {
	i := b.memberIndex(a.update.UUID)
	if i < 0 {
		return fmt.Errorf("%w: profile key change for non-member %s", ErrInvalidGroupState, a.update.UUID)
	}
	b.g.Members[i].ProfileKey = a.update.ProfileKey
	return nil
}

type addPendingAction struct{ pending DecryptedPendingMember }

func (a addPendingAction) apply(b *stateBuilder) error {
	if a.pending.UUID != zkgroup.UnknownUUID {
		if b.memberIndex(a.pending.UUID) >= 0 {
			return errMemberBothFullAndPending(a.pending.UUID)
		}
		if b.pendingIndex(a.pending.UUID) >= 0 {
			return errDuplicateMember(a.pending.UUID)
		}
	}
	b.g.PendingMembers = append(b.g.PendingMembers, a.pending)
	return nil
}

type deletePendingAction struct{ id uuid.UUID }

func (a deletePendingAction) apply(b *stateBuilder) error {
	// Revocations of invites this client cannot decrypt arrive as
	// UnknownUUID and cannot be matched; they are dropped rather than
	// failing the change.
	if a.id == zkgroup.UnknownUUID {
		return nil
	}
	i := b.pendingIndex(a.id)
	if i < 0 {
		return fmt.Errorf("%w: revocation of unknown invite %s", ErrInvalidGroupState, a.id)
	}
	b.removePending(i)
	return nil
}

type promotePendingAction struct{ member DecryptedMember }

func (a promotePendingAction) apply(b *stateBuilder) error {
	i := b.pendingIndex(a.member.UUID)
	if i < 0 {
		return fmt.Errorf("%w: promotion of non-invited member %s", ErrInvalidGroupState, a.member.UUID)
	}
	b.removePending(i)
	if b.memberIndex(a.member.UUID) >= 0 {
		return errDuplicateMember(a.member.UUID)
	}
	member := a.member
	member.JoinedAtRevision = b.g.Revision + 1
	b.g.Members = append(b.g.Members, member)
	return nil
}

type setTitleAction struct{ title string }

func (a setTitleAction) apply(b *stateBuilder) error {
	b.g.Title = a.title
	return nil
}

type setAvatarAction struct{ avatar string }

func (a setAvatarAction) apply(b *stateBuilder) error {
	b.g.Avatar = a.avatar
	return nil
}

type setTimerAction struct{ seconds uint32 }

func (a setTimerAction) apply(b *stateBuilder) error {
	b.g.DisappearingMessagesTimer = a.seconds
	return nil
}

type setAttributesAccessAction struct{ access groupproto.AccessRequired }

func (a setAttributesAccessAction) apply(b *stateBuilder) error {
	b.g.AttributesAccess = a.access
	return nil
}

type setMembersAccessAction struct{ access groupproto.AccessRequired }

func (a setMembersAccessAction) apply(b *stateBuilder) error {
	b.g.MembersAccess = a.access
	return nil
}
