package groupsv2

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/groupsync-go/internal/groupproto"
	"github.com/gwillem/groupsync-go/pkg/zkgroup"
)

func TestTitleRoundTrip(t *testing.T) {
	ops, _ := testOps(t)

	for _, title := range []string{"book club", "café ☕", ""} {
		ciphertext, err := ops.EncryptTitle(title)
		require.NoError(t, err)
		assert.Equal(t, title, ops.DecryptTitle(ciphertext))
	}
}

func TestDecryptTitle_MalformedIsEmpty(t *testing.T) {
	ops, _ := testOps(t)

	assert.Equal(t, "", ops.DecryptTitle(nil))
	assert.Equal(t, "", ops.DecryptTitle([]byte{}))
	assert.Equal(t, "", ops.DecryptTitle(make([]byte, zkgroup.MinBlobCiphertextLen-1)))
	assert.Equal(t, "", ops.DecryptTitle(make([]byte, 64))) // garbage, full-size
}

func TestTimerRoundTrip(t *testing.T) {
	ops, _ := testOps(t)

	for _, seconds := range []uint32{0, 1, 3600, 604800} {
		ciphertext, err := ops.EncryptTimer(seconds)
		require.NoError(t, err)
		assert.Equal(t, seconds, ops.DecryptTimer(ciphertext))
	}
	assert.Equal(t, uint32(0), ops.DecryptTimer([]byte("short")))
}

func TestDecryptGroup(t *testing.T) {
	ops, _ := testOps(t)
	alice, bob, carol, dave := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	aliceKey, bobKey := testProfileKey(t), testProfileKey(t)

	in := &DecryptedGroup{
		Title:                     "climbing",
		Avatar:                    "avatar-key",
		DisappearingMessagesTimer: 3600,
		AttributesAccess:          groupproto.AccessMember,
		MembersAccess:             groupproto.AccessAdministrator,
		Revision:                  12,
		Members: []DecryptedMember{
			member(alice, groupproto.RoleAdministrator, aliceKey, 0),
			member(bob, groupproto.RoleDefault, bobKey, 4),
		},
		PendingMembers: []DecryptedPendingMember{
			{UUID: carol, AddedByUUID: alice, Timestamp: 1700000000000},
			{UUID: dave, AddedByUUID: bob, Timestamp: 1700000001000},
		},
	}

	out, err := ops.DecryptGroup(encryptGroup(t, ops, in))
	require.NoError(t, err)

	assert.Equal(t, in.Title, out.Title)
	assert.Equal(t, in.Avatar, out.Avatar)
	assert.Equal(t, in.DisappearingMessagesTimer, out.DisappearingMessagesTimer)
	assert.Equal(t, in.AttributesAccess, out.AttributesAccess)
	assert.Equal(t, in.MembersAccess, out.MembersAccess)
	assert.Equal(t, in.Revision, out.Revision)
	assert.Equal(t, in.Members, out.Members)

	require.Len(t, out.PendingMembers, 2)
	for i, p := range out.PendingMembers {
		assert.Equal(t, in.PendingMembers[i].UUID, p.UUID)
		assert.Equal(t, in.PendingMembers[i].AddedByUUID, p.AddedByUUID)
		assert.Equal(t, in.PendingMembers[i].Timestamp, p.Timestamp)
		assert.NotEmpty(t, p.UUIDCipher)
	}
}

func TestDecryptGroup_MalformedMember(t *testing.T) {
	ops, _ := testOps(t)

	group := encryptGroup(t, ops, &DecryptedGroup{
		Revision: 1,
		Members:  []DecryptedMember{member(uuid.New(), groupproto.RoleDefault, testProfileKey(t), 0)},
	})
	group.Members[0].UserID[5] ^= 0xff

	_, err := ops.DecryptGroup(group)
	assert.ErrorIs(t, err, ErrInvalidGroupState)
}

func TestDecryptGroup_DuplicateMember(t *testing.T) {
	ops, _ := testOps(t)
	alice := uuid.New()
	key := testProfileKey(t)

	group := encryptGroup(t, ops, &DecryptedGroup{
		Revision: 1,
		Members: []DecryptedMember{
			member(alice, groupproto.RoleDefault, key, 0),
			member(alice, groupproto.RoleAdministrator, key, 1),
		},
	})

	_, err := ops.DecryptGroup(group)
	assert.ErrorIs(t, err, ErrInvalidGroupState)
}

func TestDecryptGroup_UndecryptablePendingMemberTolerated(t *testing.T) {
	ops, _ := testOps(t)
	alice := uuid.New()

	group := encryptGroup(t, ops, &DecryptedGroup{
		Revision: 1,
		Members:  []DecryptedMember{member(alice, groupproto.RoleAdministrator, testProfileKey(t), 0)},
		PendingMembers: []DecryptedPendingMember{
			{UUID: uuid.New(), AddedByUUID: alice, Timestamp: 1},
		},
	})
	// Corrupt the invitee ciphertext; a foreign-format invite must not
	// abort the whole group decrypt.
	group.PendingMembers[0].Member.UserID[3] ^= 0x55

	out, err := ops.DecryptGroup(group)
	require.NoError(t, err)
	require.Len(t, out.PendingMembers, 1)
	assert.Equal(t, zkgroup.UnknownUUID, out.PendingMembers[0].UUID)
	assert.Equal(t, alice, out.PendingMembers[0].AddedByUUID)
}

func TestDecryptChange_VerifiesSignature(t *testing.T) {
	ops, notary := testOps(t)
	editor := uuid.New()

	actions, err := ops.CreateModifyTitle(3, editor, "renamed")
	require.NoError(t, err)
	change := SignChange(notary, actions, 0)

	decrypted, err := ops.DecryptChange(change, true)
	require.NoError(t, err)
	assert.Equal(t, editor, decrypted.Editor)
	assert.Equal(t, uint32(3), decrypted.Revision)
	require.NotNil(t, decrypted.NewTitle)
	assert.Equal(t, "renamed", *decrypted.NewTitle)

	// Tampered signature is a hard failure.
	change.ServerSignature[0] ^= 0x01
	_, err = ops.DecryptChange(change, true)
	assert.ErrorIs(t, err, ErrVerification)

	// The same change is accepted when verification is not requested,
	// as on the authenticated history channel.
	_, err = ops.DecryptChange(change, false)
	assert.NoError(t, err)
}

func TestDecryptChange_UnknownEpochNotDecryptable(t *testing.T) {
	ops, notary := testOps(t)

	actions, err := ops.CreateModifyTitle(2, uuid.New(), "future")
	require.NoError(t, err)
	change := SignChange(notary, actions, HighestKnownEpoch+1)

	decrypted, err := ops.DecryptChange(change, true)
	assert.NoError(t, err)
	assert.Nil(t, decrypted)
}

func TestDecryptChange_FullActionSet(t *testing.T) {
	ops, notary := testOps(t)
	editor, added, removed, promoted := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	addedKey, promotedKey := testProfileKey(t), testProfileKey(t)

	actions, err := ops.CreateAddMembers(7, editor, []MemberCandidate{
		{UUID: added, ProfileKey: addedKey, Role: groupproto.RoleDefault},
	})
	require.NoError(t, err)

	removeCipher, err := ops.SecretParams().EncryptServiceID(removed)
	require.NoError(t, err)
	actions.DeleteMembers = []*groupproto.DeleteMemberAction{{DeletedUserID: removeCipher}}

	promotion, err := zkgroup.NewPresentation(ops.SecretParams(), promoted, promotedKey)
	require.NoError(t, err)
	actions.PromotePendingMembers = []*groupproto.PromotePendingMemberAction{{Presentation: promotion}}

	timer, err := ops.EncryptTimer(86400)
	require.NoError(t, err)
	actions.ModifyDisappearingMessagesTimer = &groupproto.ModifyDisappearingMessagesTimerAction{Timer: timer}
	actions.ModifyMemberAccess = &groupproto.ModifyMembersAccessControlAction{MembersAccess: groupproto.AccessAdministrator}

	decrypted, err := ops.DecryptChange(SignChange(notary, actions, 0), true)
	require.NoError(t, err)

	require.Len(t, decrypted.NewMembers, 1)
	assert.Equal(t, added, decrypted.NewMembers[0].UUID)
	assert.Equal(t, addedKey, decrypted.NewMembers[0].ProfileKey)
	assert.Equal(t, []uuid.UUID{removed}, decrypted.DeleteMembers)
	require.Len(t, decrypted.PromotePendingMembers, 1)
	assert.Equal(t, promoted, decrypted.PromotePendingMembers[0].UUID)
	require.NotNil(t, decrypted.NewDisappearingMessagesTimer)
	assert.Equal(t, uint32(86400), *decrypted.NewDisappearingMessagesTimer)
	require.NotNil(t, decrypted.NewMembersAccess)
	assert.Equal(t, groupproto.AccessAdministrator, *decrypted.NewMembersAccess)
	assert.Nil(t, decrypted.NewTitle)
}

func TestDecryptChange_UnknownEditorAllowed(t *testing.T) {
	ops, notary := testOps(t)

	actions, err := ops.CreateModifyTitle(1, uuid.New(), "x")
	require.NoError(t, err)
	actions.SourceUserID = []byte("not a valid ciphertext")

	decrypted, err := ops.DecryptChange(SignChange(notary, actions, 0), true)
	require.NoError(t, err)
	assert.Equal(t, zkgroup.UnknownUUID, decrypted.Editor)
}

func TestCreateAcceptInvite(t *testing.T) {
	ops, notary := testOps(t)
	invitee := uuid.New()
	key := testProfileKey(t)

	actions, err := ops.CreateAcceptInvite(5, invitee, key)
	require.NoError(t, err)

	decrypted, err := ops.DecryptChange(SignChange(notary, actions, 0), true)
	require.NoError(t, err)
	require.Len(t, decrypted.PromotePendingMembers, 1)
	assert.Equal(t, invitee, decrypted.PromotePendingMembers[0].UUID)
	assert.Equal(t, key, decrypted.PromotePendingMembers[0].ProfileKey)
	assert.Equal(t, invitee, decrypted.Editor)
}
