package groupsv2

import (
	"crypto/ed25519"
	"fmt"

	"go.uber.org/zap"

	"github.com/gwillem/groupsync-go/internal/groupproto"
	"github.com/gwillem/groupsync-go/pkg/zkgroup"
)

// HighestKnownEpoch is the newest group change wire epoch this client can
// interpret. Changes tagged with a higher epoch are reported as not
// decryptable rather than failing, so future wire formats degrade to a
// full-state fetch instead of an error.
const HighestKnownEpoch = 5

// Operations performs all encryption, decryption, and signature
// verification scoped to a single group's secret params. Immutable and
// safe for concurrent use; no I/O.
type Operations struct {
	params    zkgroup.GroupSecretParams
	notaryKey ed25519.PublicKey
	logger    *zap.Logger
}

// NewOperations creates Operations for one group. notaryKey is the server's
// change-signing public key; logger may be nil.
func NewOperations(params zkgroup.GroupSecretParams, notaryKey ed25519.PublicKey, logger *zap.Logger) *Operations {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Operations{params: params, notaryKey: notaryKey, logger: logger}
}

// SecretParams returns the group params these operations are scoped to.
func (o *Operations) SecretParams() zkgroup.GroupSecretParams {
	return o.params
}

// EncryptTitle encrypts a group title into an attribute blob ciphertext.
func (o *Operations) EncryptTitle(title string) ([]byte, error) {
	blob := &groupproto.GroupAttributeBlob{Title: &title}
	return o.params.EncryptBlob(blob.Marshal())
}

// DecryptTitle decrypts a title attribute blob. Malformed or undersized
// ciphertext yields the empty title: attribute corruption must not block
// group processing.
func (o *Operations) DecryptTitle(ciphertext []byte) string {
	blob := o.decryptBlob(ciphertext)
	if blob == nil || blob.Title == nil {
		return ""
	}
	return *blob.Title
}

// EncryptTimer encrypts a disappearing-messages duration (seconds).
func (o *Operations) EncryptTimer(seconds uint32) ([]byte, error) {
	blob := &groupproto.GroupAttributeBlob{DisappearingMessagesDuration: &seconds}
	return o.params.EncryptBlob(blob.Marshal())
}

// DecryptTimer decrypts a disappearing-messages attribute blob, returning 0
// (off) for malformed or undersized ciphertext.
func (o *Operations) DecryptTimer(ciphertext []byte) uint32 {
	blob := o.decryptBlob(ciphertext)
	if blob == nil || blob.DisappearingMessagesDuration == nil {
		return 0
	}
	return *blob.DisappearingMessagesDuration
}

// decryptBlob is the lenient attribute decrypt shared by title and timer:
// nil on absent, undersized, undecryptable, or unparseable input.
func (o *Operations) decryptBlob(ciphertext []byte) *groupproto.GroupAttributeBlob {
	if len(ciphertext) == 0 {
		return nil
	}
	plaintext, err := o.params.DecryptBlob(ciphertext)
	if err != nil {
		o.logger.Warn("undecryptable group attribute blob", zap.Error(err))
		return nil
	}
	var blob groupproto.GroupAttributeBlob
	if err := blob.Unmarshal(plaintext); err != nil {
		o.logger.Warn("unparseable group attribute blob", zap.Error(err))
		return nil
	}
	return &blob
}

// DecryptGroup projects an encrypted group state to its plaintext form,
// decrypting every member and pending member. Fails with
// ErrInvalidGroupState if any member entry is malformed.
func (o *Operations) DecryptGroup(group *groupproto.Group) (*DecryptedGroup, error) {
	out := &DecryptedGroup{
		Title:                     o.DecryptTitle(group.Title),
		Avatar:                    group.Avatar,
		DisappearingMessagesTimer: o.DecryptTimer(group.DisappearingMessagesTimer),
		Revision:                  group.Revision,
	}
	if group.AccessControl != nil {
		out.AttributesAccess = group.AccessControl.Attributes
		out.MembersAccess = group.AccessControl.Members
	}

	for i, member := range group.Members {
		decrypted, err := o.decryptMember(member)
		if err != nil {
			return nil, fmt.Errorf("decrypt member %d: %w", i, err)
		}
		out.Members = append(out.Members, decrypted)
	}
	for i, pending := range group.PendingMembers {
		decrypted, err := o.decryptPendingMember(pending)
		if err != nil {
			return nil, fmt.Errorf("decrypt pending member %d: %w", i, err)
		}
		out.PendingMembers = append(out.PendingMembers, decrypted)
	}

	if err := out.validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// decryptMember recovers a full member from either its ciphertext pair or
// its credential presentation.
func (o *Operations) decryptMember(member *groupproto.Member) (DecryptedMember, error) {
	out := DecryptedMember{
		Role:             member.Role,
		JoinedAtRevision: member.JoinedAtRevision,
	}

	switch {
	case len(member.UserID) > 0:
		id, err := o.params.DecryptServiceID(member.UserID)
		if err != nil {
			return DecryptedMember{}, fmt.Errorf("%w: member service id: %v", ErrInvalidGroupState, err)
		}
		out.UUID = id
		if len(member.ProfileKey) > 0 {
			key, err := o.params.DecryptProfileKey(member.ProfileKey, id)
			if err != nil {
				return DecryptedMember{}, fmt.Errorf("%w: member profile key: %v", ErrInvalidGroupState, err)
			}
			out.ProfileKey = key
		}
	case len(member.Presentation) > 0:
		id, key, err := o.params.OpenPresentation(member.Presentation)
		if err != nil {
			return DecryptedMember{}, fmt.Errorf("%w: member presentation: %v", ErrInvalidGroupState, err)
		}
		out.UUID = id
		out.ProfileKey = key
	default:
		return DecryptedMember{}, fmt.Errorf("%w: member has no identity", ErrInvalidGroupState)
	}

	if out.Role == groupproto.RoleUnknown {
		out.Role = groupproto.RoleDefault
	}
	return out, nil
}

// decryptPendingMember recovers an invite entry. The invitee's service id
// is decrypted leniently (an undecryptable foreign-format invite becomes
// UnknownUUID); the inviter must decrypt.
func (o *Operations) decryptPendingMember(pending *groupproto.PendingMember) (DecryptedPendingMember, error) {
	if pending.Member == nil || len(pending.Member.UserID) == 0 {
		return DecryptedPendingMember{}, fmt.Errorf("%w: pending member has no identity", ErrInvalidGroupState)
	}

	addedBy, err := o.params.DecryptServiceID(pending.AddedByUserID)
	if err != nil {
		return DecryptedPendingMember{}, fmt.Errorf("%w: pending member inviter: %v", ErrInvalidGroupState, err)
	}

	return DecryptedPendingMember{
		UUID:        o.params.DecryptServiceIDOrUnknown(pending.Member.UserID),
		AddedByUUID: addedBy,
		UUIDCipher:  pending.Member.UserID,
		Timestamp:   pending.Timestamp,
	}, nil
}

// DecryptChange verifies and decrypts a signed group change.
//
// A change whose epoch exceeds HighestKnownEpoch is reported as
// (nil, nil): not decryptable, not an error. When verifySignature is set,
// the server's notary signature over the raw action bytes is checked
// before any parsing; failure is a hard ErrVerification and is never
// downgraded.
func (o *Operations) DecryptChange(change *groupproto.GroupChange, verifySignature bool) (*DecryptedGroupChange, error) {
	if change == nil {
		return nil, nil
	}
	if change.ChangeEpoch > HighestKnownEpoch {
		o.logger.Info("group change from unknown epoch, skipping",
			zap.Uint32("epoch", change.ChangeEpoch),
			zap.Uint32("highestKnown", HighestKnownEpoch))
		return nil, nil
	}

	if verifySignature {
		if err := zkgroup.VerifyNotarySignature(o.notaryKey, change.Actions, change.ServerSignature); err != nil {
			return nil, fmt.Errorf("%w: group change signature: %v", ErrVerification, err)
		}
	}

	var actions groupproto.GroupChangeActions
	if err := actions.Unmarshal(change.Actions); err != nil {
		return nil, fmt.Errorf("%w: unmarshal change actions: %v", ErrInvalidGroupState, err)
	}
	return o.decryptActions(&actions)
}

// decryptActions translates each action field from ciphertext to plaintext,
// in wire-field order.
func (o *Operations) decryptActions(actions *groupproto.GroupChangeActions) (*DecryptedGroupChange, error) {
	out := &DecryptedGroupChange{
		// An undecryptable or missing editor is allowed; the change still
		// applies, it just cannot attribute profile keys.
		Editor:   o.params.DecryptServiceIDOrUnknown(actions.SourceUserID),
		Revision: actions.Revision,
	}

	for _, a := range actions.AddMembers {
		if a.Added == nil {
			return nil, fmt.Errorf("%w: add member action without member", ErrInvalidGroupState)
		}
		member, err := o.decryptMember(a.Added)
		if err != nil {
			return nil, fmt.Errorf("add member: %w", err)
		}
		out.NewMembers = append(out.NewMembers, member)
	}

	for _, a := range actions.DeleteMembers {
		id, err := o.params.DecryptServiceID(a.DeletedUserID)
		if err != nil {
			return nil, fmt.Errorf("%w: delete member: %v", ErrInvalidGroupState, err)
		}
		out.DeleteMembers = append(out.DeleteMembers, id)
	}

	for _, a := range actions.ModifyMemberRoles {
		id, err := o.params.DecryptServiceID(a.UserID)
		if err != nil {
			return nil, fmt.Errorf("%w: modify member role: %v", ErrInvalidGroupState, err)
		}
		out.ModifyMemberRoles = append(out.ModifyMemberRoles, DecryptedModifyMemberRole{UUID: id, Role: a.Role})
	}

	for _, a := range actions.ModifyMemberProfileKeys {
		id, key, err := o.params.OpenPresentation(a.Presentation)
		if err != nil {
			return nil, fmt.Errorf("%w: modify profile key: %v", ErrInvalidGroupState, err)
		}
		out.ModifiedProfileKeys = append(out.ModifiedProfileKeys, DecryptedProfileKeyUpdate{UUID: id, ProfileKey: key})
	}

	for _, a := range actions.AddPendingMembers {
		if a.Added == nil {
			return nil, fmt.Errorf("%w: add pending member action without member", ErrInvalidGroupState)
		}
		pending, err := o.decryptPendingMember(a.Added)
		if err != nil {
			return nil, fmt.Errorf("add pending member: %w", err)
		}
		out.NewPendingMembers = append(out.NewPendingMembers, pending)
	}

	for _, a := range actions.DeletePendingMembers {
		// Lenient: revoking an invite this client cannot decrypt must not
		// abort the whole change.
		out.DeletePendingMembers = append(out.DeletePendingMembers,
			o.params.DecryptServiceIDOrUnknown(a.DeletedUserID))
	}

	for _, a := range actions.PromotePendingMembers {
		id, key, err := o.params.OpenPresentation(a.Presentation)
		if err != nil {
			return nil, fmt.Errorf("%w: promote pending member: %v", ErrInvalidGroupState, err)
		}
		out.PromotePendingMembers = append(out.PromotePendingMembers, DecryptedMember{
			UUID:       id,
			Role:       groupproto.RoleDefault,
			ProfileKey: key,
		})
	}

	if actions.ModifyTitle != nil {
		title := o.DecryptTitle(actions.ModifyTitle.Title)
		out.NewTitle = &title
	}
	if actions.ModifyAvatar != nil {
		avatar := actions.ModifyAvatar.Avatar
		out.NewAvatar = &avatar
	}
	if actions.ModifyDisappearingMessagesTimer != nil {
		timer := o.DecryptTimer(actions.ModifyDisappearingMessagesTimer.Timer)
		out.NewDisappearingMessagesTimer = &timer
	}
	if actions.ModifyAttributesAccess != nil {
		access := actions.ModifyAttributesAccess.AttributesAccess
		out.NewAttributesAccess = &access
	}
	if actions.ModifyMemberAccess != nil {
		access := actions.ModifyMemberAccess.MembersAccess
		out.NewMembersAccess = &access
	}

	return out, nil
}

// SignChange wraps an action set into a signed GroupChange envelope. In
// production only the group server signs; this exists for tests and for
// running a local server.
func SignChange(notary zkgroup.NotaryKeyPair, actions *groupproto.GroupChangeActions, epoch uint32) *groupproto.GroupChange {
	raw := actions.Marshal()
	return &groupproto.GroupChange{
		Actions:         raw,
		ServerSignature: notary.Sign(raw),
		ChangeEpoch:     epoch,
	}
}
