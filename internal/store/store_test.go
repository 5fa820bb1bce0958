package store

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/groupsync-go/internal/groupsv2"
	"github.com/gwillem/groupsync-go/pkg/zkgroup"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestGroupRoundTrip(t *testing.T) {
	s := testStore(t)
	alice := uuid.New()

	missing, err := s.GetGroup("deadbeef")
	require.NoError(t, err)
	assert.Nil(t, missing)

	masterKey := make([]byte, 32)
	masterKey[0] = 7
	g := &Group{
		GroupID:   "0badc0de",
		MasterKey: masterKey,
		Title:     "book club",
		Revision:  3,
		Active:    true,
		State: &groupsv2.DecryptedGroup{
			Title:    "book club",
			Revision: 3,
			Members: []groupsv2.DecryptedMember{
				{UUID: alice, JoinedAtRevision: 1},
			},
		},
	}
	require.NoError(t, s.CreateGroup(g))

	got, err := s.GetGroup("0badc0de")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, g.Title, got.Title)
	assert.Equal(t, g.Revision, got.Revision)
	assert.True(t, got.Active)
	assert.Equal(t, masterKey, got.MasterKey)
	require.NotNil(t, got.State)
	assert.True(t, got.State.Equal(g.State))

	byKey, err := s.GetGroupByMasterKey(masterKey)
	require.NoError(t, err)
	require.NotNil(t, byKey)
	assert.Equal(t, "0badc0de", byKey.GroupID)
}

func TestCreateGroup_DuplicateFails(t *testing.T) {
	s := testStore(t)
	g := &Group{GroupID: "aa", MasterKey: make([]byte, 32), Title: "v1", Revision: 1, Active: true}
	require.NoError(t, s.CreateGroup(g))
	assert.Error(t, s.CreateGroup(g))
}

func TestUpdateGroup(t *testing.T) {
	s := testStore(t)
	g := &Group{GroupID: "aa", MasterKey: make([]byte, 32), Title: "v1", Revision: 1, Active: true}
	require.NoError(t, s.CreateGroup(g))

	g.Title, g.Revision = "v2", 2
	require.NoError(t, s.UpdateGroup(g))

	got, err := s.GetGroup("aa")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Title)
	assert.Equal(t, uint32(2), got.Revision)

	all, err := s.GetAllGroups()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpdateGroup_MissingFails(t *testing.T) {
	s := testStore(t)
	err := s.UpdateGroup(&Group{GroupID: "missing", MasterKey: make([]byte, 32)})
	assert.Error(t, err)
}

func TestSetGroupActive(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.CreateGroup(&Group{GroupID: "aa", MasterKey: make([]byte, 32), Active: true}))
	require.NoError(t, s.SetGroupActive("aa", false))

	got, err := s.GetGroup("aa")
	require.NoError(t, err)
	assert.False(t, got.Active)
}

func TestRecipientGetOrInsert(t *testing.T) {
	s := testStore(t)
	id := uuid.New().String()

	missing, err := s.GetRecipient(id)
	require.NoError(t, err)
	assert.Nil(t, missing)

	r, err := s.GetOrInsertRecipient(id)
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, id, r.UUID)
	assert.Nil(t, r.ProfileKey)

	again, err := s.GetOrInsertRecipient(id)
	require.NoError(t, err)
	assert.Equal(t, r, again)
}

func profileKey(b byte) (key zkgroup.ProfileKey) {
	for i := range key {
		key[i] = b
	}
	return key
}

func TestPersistProfileKeySet(t *testing.T) {
	s := testStore(t)
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()

	// First pass: alice self-published, bob and carol seen in passing.
	set := groupsv2.NewProfileKeySet(nil)
	set.AddKeysFromChange(&groupsv2.DecryptedGroupChange{
		Editor: alice,
		ModifiedProfileKeys: []groupsv2.DecryptedProfileKeyUpdate{
			{UUID: alice, ProfileKey: profileKey(1)},
			{UUID: bob, ProfileKey: profileKey(2)},
		},
	})
	set.AddKeysFromGroup(&groupsv2.DecryptedGroup{
		Members: []groupsv2.DecryptedMember{{UUID: carol, ProfileKey: profileKey(3)}},
	})

	updated, err := s.PersistProfileKeySet(set)
	require.NoError(t, err)
	assert.Len(t, updated, 3)

	// Second pass: a non-authoritative sighting must not overwrite bob's
	// stored key, but an authoritative one overwrites carol's.
	set = groupsv2.NewProfileKeySet(nil)
	set.AddKeysFromGroup(&groupsv2.DecryptedGroup{
		Members: []groupsv2.DecryptedMember{{UUID: bob, ProfileKey: profileKey(9)}},
	})
	set.AddKeysFromChange(&groupsv2.DecryptedGroupChange{
		Editor: carol,
		ModifiedProfileKeys: []groupsv2.DecryptedProfileKeyUpdate{
			{UUID: carol, ProfileKey: profileKey(8)},
		},
	})

	updated, err = s.PersistProfileKeySet(set)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{carol}, updated)

	r, err := s.GetRecipient(bob.String())
	require.NoError(t, err)
	assert.Equal(t, profileKey(2), zkgroup.ProfileKey(r.ProfileKey))

	r, err = s.GetRecipient(carol.String())
	require.NoError(t, err)
	assert.Equal(t, profileKey(8), zkgroup.ProfileKey(r.ProfileKey))
}

func TestPersistProfileKeySet_UnchangedKeyNotReported(t *testing.T) {
	s := testStore(t)
	alice := uuid.New()

	set := groupsv2.NewProfileKeySet(nil)
	set.AddKeysFromChange(&groupsv2.DecryptedGroupChange{
		Editor:              alice,
		ModifiedProfileKeys: []groupsv2.DecryptedProfileKeyUpdate{{UUID: alice, ProfileKey: profileKey(1)}},
	})
	_, err := s.PersistProfileKeySet(set)
	require.NoError(t, err)

	updated, err := s.PersistProfileKeySet(set)
	require.NoError(t, err)
	assert.Empty(t, updated)
}

func TestGroupUpdateMessages(t *testing.T) {
	s := testStore(t)
	editor := uuid.New()

	require.NoError(t, s.InsertGroupUpdateMessage("aa", 1, nil))
	title := "renamed"
	require.NoError(t, s.InsertGroupUpdateMessage("aa", 2, &groupsv2.DecryptedGroupChange{
		Editor:   editor,
		Revision: 2,
		NewTitle: &title,
	}))
	require.NoError(t, s.InsertGroupUpdateMessage("bb", 1, nil))

	messages, err := s.GetGroupUpdateMessages("aa")
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, uint32(1), messages[0].Revision)
	assert.Empty(t, messages[0].Editor)
	assert.Nil(t, messages[0].Change)

	assert.Equal(t, editor.String(), messages[1].Editor)
	require.NotNil(t, messages[1].Change)
	require.NotNil(t, messages[1].Change.NewTitle)
	assert.Equal(t, "renamed", *messages[1].Change.NewTitle)
}
