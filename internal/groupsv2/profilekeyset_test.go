package groupsv2

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/groupsync-go/internal/groupproto"
	"github.com/gwillem/groupsync-go/pkg/zkgroup"
)

func TestProfileKeySet_GroupSnapshotIsNonAuthoritative(t *testing.T) {
	g, alice, bob := baseGroup(t)

	set := NewProfileKeySet(nil)
	set.AddKeysFromGroup(g)

	assert.Empty(t, set.Authoritative())
	nonAuth := set.NonAuthoritative()
	require.Len(t, nonAuth, 2)
	assert.Equal(t, g.Members[0].ProfileKey, nonAuth[alice])
	assert.Equal(t, g.Members[1].ProfileKey, nonAuth[bob])
	assert.False(t, set.IsEmpty())
}

func TestProfileKeySet_EditorOwnKeyIsAuthoritative(t *testing.T) {
	alice, bob := uuid.New(), uuid.New()
	aliceKey, bobKey := testProfileKey(t), testProfileKey(t)

	set := NewProfileKeySet(nil)
	set.AddKeysFromChange(&DecryptedGroupChange{
		Editor: alice,
		ModifiedProfileKeys: []DecryptedProfileKeyUpdate{
			{UUID: alice, ProfileKey: aliceKey}, // own key: authoritative
			{UUID: bob, ProfileKey: bobKey},     // someone else's: not
		},
	})

	assert.Equal(t, map[uuid.UUID]zkgroup.ProfileKey{alice: aliceKey}, set.Authoritative())
	assert.Equal(t, map[uuid.UUID]zkgroup.ProfileKey{bob: bobKey}, set.NonAuthoritative())
}

func TestProfileKeySet_SelfPromotionIsAuthoritative(t *testing.T) {
	carol := uuid.New()
	key := testProfileKey(t)

	set := NewProfileKeySet(nil)
	set.AddKeysFromChange(&DecryptedGroupChange{
		Editor:                carol,
		PromotePendingMembers: []DecryptedMember{member(carol, groupproto.RoleDefault, key, 7)},
	})

	assert.Equal(t, map[uuid.UUID]zkgroup.ProfileKey{carol: key}, set.Authoritative())
	assert.Empty(t, set.NonAuthoritative())
}

func TestProfileKeySet_AuthoritativeWins(t *testing.T) {
	alice := uuid.New()
	stale, fresh := testProfileKey(t), testProfileKey(t)

	// Authoritative observed first: later passive sightings are discarded.
	set := NewProfileKeySet(nil)
	set.AddKeysFromChange(&DecryptedGroupChange{
		Editor:              alice,
		ModifiedProfileKeys: []DecryptedProfileKeyUpdate{{UUID: alice, ProfileKey: fresh}},
	})
	set.AddKeysFromGroup(&DecryptedGroup{
		Members: []DecryptedMember{member(alice, groupproto.RoleDefault, stale, 0)},
	})
	assert.Equal(t, fresh, set.Authoritative()[alice])
	assert.Empty(t, set.NonAuthoritative())

	// Passive sighting first: a later self-published key evicts it.
	set = NewProfileKeySet(nil)
	set.AddKeysFromGroup(&DecryptedGroup{
		Members: []DecryptedMember{member(alice, groupproto.RoleDefault, stale, 0)},
	})
	set.AddKeysFromChange(&DecryptedGroupChange{
		Editor:              alice,
		ModifiedProfileKeys: []DecryptedProfileKeyUpdate{{UUID: alice, ProfileKey: fresh}},
	})
	assert.Equal(t, fresh, set.Authoritative()[alice])
	assert.Empty(t, set.NonAuthoritative())
}

func TestProfileKeySet_SkipsUnusable(t *testing.T) {
	set := NewProfileKeySet(nil)

	// Members without a known profile key, and entries whose identity never
	// decrypted, contribute nothing.
	set.AddKeysFromGroup(&DecryptedGroup{
		Members: []DecryptedMember{
			{UUID: uuid.New(), Role: groupproto.RoleDefault}, // zero key
		},
	})
	set.AddKeysFromChange(&DecryptedGroupChange{
		Editor:     zkgroup.UnknownUUID,
		NewMembers: []DecryptedMember{member(zkgroup.UnknownUUID, groupproto.RoleDefault, testProfileKey(t), 1)},
	})

	assert.True(t, set.IsEmpty())
}
