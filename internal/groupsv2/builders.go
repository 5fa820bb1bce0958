package groupsv2

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/gwillem/groupsync-go/internal/groupproto"
	"github.com/gwillem/groupsync-go/pkg/zkgroup"
)

// Change builders: the inverse direction, used when the local user edits
// the group. Each builder produces the encrypted action set for one
// locally-initiated change targeting the given revision; the server is
// responsible for signing it.

// MemberCandidate is a member to add: the identity and profile key the
// local user has learned out of band (contact exchange, invite acceptance).
type MemberCandidate struct {
	UUID       uuid.UUID
	ProfileKey zkgroup.ProfileKey
	Role       groupproto.Role
}

func (o *Operations) newActions(revision uint32, editor uuid.UUID) (*groupproto.GroupChangeActions, error) {
	source, err := o.params.EncryptServiceID(editor)
	if err != nil {
		return nil, fmt.Errorf("groupsv2: encrypt editor: %w", err)
	}
	return &groupproto.GroupChangeActions{SourceUserID: source, Revision: revision}, nil
}

// CreateModifyTitle builds a title change.
func (o *Operations) CreateModifyTitle(revision uint32, editor uuid.UUID, title string) (*groupproto.GroupChangeActions, error) {
	actions, err := o.newActions(revision, editor)
	if err != nil {
		return nil, err
	}
	ciphertext, err := o.EncryptTitle(title)
	if err != nil {
		return nil, fmt.Errorf("groupsv2: encrypt title: %w", err)
	}
	actions.ModifyTitle = &groupproto.ModifyTitleAction{Title: ciphertext}
	return actions, nil
}

// CreateModifyTimer builds a disappearing-messages timer change.
func (o *Operations) CreateModifyTimer(revision uint32, editor uuid.UUID, seconds uint32) (*groupproto.GroupChangeActions, error) {
	actions, err := o.newActions(revision, editor)
	if err != nil {
		return nil, err
	}
	ciphertext, err := o.EncryptTimer(seconds)
	if err != nil {
		return nil, fmt.Errorf("groupsv2: encrypt timer: %w", err)
	}
	actions.ModifyDisappearingMessagesTimer = &groupproto.ModifyDisappearingMessagesTimerAction{Timer: ciphertext}
	return actions, nil
}

// CreateModifyAttributesAccess builds an attributes access-control change.
func (o *Operations) CreateModifyAttributesAccess(revision uint32, editor uuid.UUID, access groupproto.AccessRequired) (*groupproto.GroupChangeActions, error) {
	actions, err := o.newActions(revision, editor)
	if err != nil {
		return nil, err
	}
	actions.ModifyAttributesAccess = &groupproto.ModifyAttributesAccessControlAction{AttributesAccess: access}
	return actions, nil
}

// CreateModifyMembersAccess builds a membership access-control change.
func (o *Operations) CreateModifyMembersAccess(revision uint32, editor uuid.UUID, access groupproto.AccessRequired) (*groupproto.GroupChangeActions, error) {
	actions, err := o.newActions(revision, editor)
	if err != nil {
		return nil, err
	}
	actions.ModifyMemberAccess = &groupproto.ModifyMembersAccessControlAction{MembersAccess: access}
	return actions, nil
}

// CreateAddMembers builds a change adding full members from candidates.
func (o *Operations) CreateAddMembers(revision uint32, editor uuid.UUID, candidates []MemberCandidate) (*groupproto.GroupChangeActions, error) {
	actions, err := o.newActions(revision, editor)
	if err != nil {
		return nil, err
	}
	for _, c := range candidates {
		member, err := o.buildMember(c, revision)
		if err != nil {
			return nil, err
		}
		actions.AddMembers = append(actions.AddMembers, &groupproto.AddMemberAction{Added: member})
	}
	return actions, nil
}

// CreateRemoveMembers builds a change deleting the given full members.
func (o *Operations) CreateRemoveMembers(revision uint32, editor uuid.UUID, ids []uuid.UUID) (*groupproto.GroupChangeActions, error) {
	actions, err := o.newActions(revision, editor)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		ciphertext, err := o.params.EncryptServiceID(id)
		if err != nil {
			return nil, fmt.Errorf("groupsv2: encrypt deleted member: %w", err)
		}
		actions.DeleteMembers = append(actions.DeleteMembers, &groupproto.DeleteMemberAction{DeletedUserID: ciphertext})
	}
	return actions, nil
}

// CreateChangeMemberRoles builds a change updating member roles.
func (o *Operations) CreateChangeMemberRoles(revision uint32, editor uuid.UUID, changes []DecryptedModifyMemberRole) (*groupproto.GroupChangeActions, error) {
	actions, err := o.newActions(revision, editor)
	if err != nil {
		return nil, err
	}
	for _, c := range changes {
		ciphertext, err := o.params.EncryptServiceID(c.UUID)
		if err != nil {
			return nil, fmt.Errorf("groupsv2: encrypt role change member: %w", err)
		}
		actions.ModifyMemberRoles = append(actions.ModifyMemberRoles,
			&groupproto.ModifyMemberRoleAction{UserID: ciphertext, Role: c.Role})
	}
	return actions, nil
}

// CreateModifyProfileKey builds the change a member issues to publish their
// own fresh profile key.
func (o *Operations) CreateModifyProfileKey(revision uint32, editor uuid.UUID, key zkgroup.ProfileKey) (*groupproto.GroupChangeActions, error) {
	actions, err := o.newActions(revision, editor)
	if err != nil {
		return nil, err
	}
	presentation, err := zkgroup.NewPresentation(o.params, editor, key)
	if err != nil {
		return nil, fmt.Errorf("groupsv2: profile key presentation: %w", err)
	}
	actions.ModifyMemberProfileKeys = append(actions.ModifyMemberProfileKeys,
		&groupproto.ModifyMemberProfileKeyAction{Presentation: presentation})
	return actions, nil
}

// CreateAddPendingMembers builds a change inviting members by bare uuid;
// the inviter does not know their profile keys yet.
func (o *Operations) CreateAddPendingMembers(revision uint32, editor uuid.UUID, invitees []uuid.UUID, timestamp uint64) (*groupproto.GroupChangeActions, error) {
	actions, err := o.newActions(revision, editor)
	if err != nil {
		return nil, err
	}
	inviter, err := o.params.EncryptServiceID(editor)
	if err != nil {
		return nil, fmt.Errorf("groupsv2: encrypt inviter: %w", err)
	}
	for _, id := range invitees {
		ciphertext, err := o.params.EncryptServiceID(id)
		if err != nil {
			return nil, fmt.Errorf("groupsv2: encrypt invitee: %w", err)
		}
		actions.AddPendingMembers = append(actions.AddPendingMembers, &groupproto.AddPendingMemberAction{
			Added: &groupproto.PendingMember{
				Member:        &groupproto.Member{UserID: ciphertext},
				AddedByUserID: inviter,
				Timestamp:     timestamp,
			},
		})
	}
	return actions, nil
}

// CreateRemovePendingMembers builds a change revoking invitations.
func (o *Operations) CreateRemovePendingMembers(revision uint32, editor uuid.UUID, ids []uuid.UUID) (*groupproto.GroupChangeActions, error) {
	actions, err := o.newActions(revision, editor)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		ciphertext, err := o.params.EncryptServiceID(id)
		if err != nil {
			return nil, fmt.Errorf("groupsv2: encrypt revoked invitee: %w", err)
		}
		actions.DeletePendingMembers = append(actions.DeletePendingMembers,
			&groupproto.DeletePendingMemberAction{DeletedUserID: ciphertext})
	}
	return actions, nil
}

// CreateAcceptInvite builds the change an invitee issues to promote
// themselves to full membership, proving their identity and profile key.
func (o *Operations) CreateAcceptInvite(revision uint32, invitee uuid.UUID, key zkgroup.ProfileKey) (*groupproto.GroupChangeActions, error) {
	actions, err := o.newActions(revision, invitee)
	if err != nil {
		return nil, err
	}
	presentation, err := zkgroup.NewPresentation(o.params, invitee, key)
	if err != nil {
		return nil, fmt.Errorf("groupsv2: accept invite presentation: %w", err)
	}
	actions.PromotePendingMembers = append(actions.PromotePendingMembers,
		&groupproto.PromotePendingMemberAction{Presentation: presentation})
	return actions, nil
}

// buildMember constructs an encrypted full-member entry from a candidate's
// credential presentation.
func (o *Operations) buildMember(c MemberCandidate, revision uint32) (*groupproto.Member, error) {
	presentation, err := zkgroup.NewPresentation(o.params, c.UUID, c.ProfileKey)
	if err != nil {
		return nil, fmt.Errorf("groupsv2: member presentation: %w", err)
	}
	idCiphertext, err := o.params.EncryptServiceID(c.UUID)
	if err != nil {
		return nil, fmt.Errorf("groupsv2: encrypt member: %w", err)
	}
	keyCiphertext, err := o.params.EncryptProfileKey(c.ProfileKey, c.UUID)
	if err != nil {
		return nil, fmt.Errorf("groupsv2: encrypt member profile key: %w", err)
	}
	role := c.Role
	if role == groupproto.RoleUnknown {
		role = groupproto.RoleDefault
	}
	return &groupproto.Member{
		UserID:           idCiphertext,
		Role:             role,
		ProfileKey:       keyCiphertext,
		Presentation:     presentation,
		JoinedAtRevision: revision,
	}, nil
}
