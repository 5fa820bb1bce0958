package groupsv2

import (
	"crypto/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/groupsync-go/internal/groupproto"
	"github.com/gwillem/groupsync-go/pkg/zkgroup"
)

func testOps(t *testing.T) (*Operations, zkgroup.NotaryKeyPair) {
	t.Helper()
	var mk zkgroup.MasterKey
	_, err := rand.Read(mk[:])
	require.NoError(t, err)
	params, err := zkgroup.DeriveGroupSecretParams(mk)
	require.NoError(t, err)
	notary, err := zkgroup.GenerateNotaryKeyPair()
	require.NoError(t, err)
	return NewOperations(params, notary.Public, nil), notary
}

func testProfileKey(t *testing.T) zkgroup.ProfileKey {
	t.Helper()
	var key zkgroup.ProfileKey
	_, err := rand.Read(key[:])
	require.NoError(t, err)
	return key
}

func member(id uuid.UUID, role groupproto.Role, key zkgroup.ProfileKey, joined uint32) DecryptedMember {
	return DecryptedMember{UUID: id, Role: role, ProfileKey: key, JoinedAtRevision: joined}
}

// encryptGroup builds the wire representation of a decrypted state, the
// way a server would serve it.
func encryptGroup(t *testing.T, ops *Operations, g *DecryptedGroup) *groupproto.Group {
	t.Helper()
	params := ops.SecretParams()

	title, err := ops.EncryptTitle(g.Title)
	require.NoError(t, err)
	timer, err := ops.EncryptTimer(g.DisappearingMessagesTimer)
	require.NoError(t, err)

	out := &groupproto.Group{
		Title:                     title,
		Avatar:                    g.Avatar,
		DisappearingMessagesTimer: timer,
		AccessControl: &groupproto.AccessControl{
			Attributes: g.AttributesAccess,
			Members:    g.MembersAccess,
		},
		Revision: g.Revision,
	}

	for _, m := range g.Members {
		idCipher, err := params.EncryptServiceID(m.UUID)
		require.NoError(t, err)
		wire := &groupproto.Member{
			UserID:           idCipher,
			Role:             m.Role,
			JoinedAtRevision: m.JoinedAtRevision,
		}
		if !m.ProfileKey.IsZero() {
			wire.ProfileKey, err = params.EncryptProfileKey(m.ProfileKey, m.UUID)
			require.NoError(t, err)
		}
		out.Members = append(out.Members, wire)
	}

	for _, p := range g.PendingMembers {
		idCipher, err := params.EncryptServiceID(p.UUID)
		require.NoError(t, err)
		inviterCipher, err := params.EncryptServiceID(p.AddedByUUID)
		require.NoError(t, err)
		out.PendingMembers = append(out.PendingMembers, &groupproto.PendingMember{
			Member:        &groupproto.Member{UserID: idCipher},
			AddedByUserID: inviterCipher,
			Timestamp:     p.Timestamp,
		})
	}

	return out
}
