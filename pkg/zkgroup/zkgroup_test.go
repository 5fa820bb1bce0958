package zkgroup_test

import (
	"crypto/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/groupsync-go/pkg/zkgroup"
)

func testParams(t *testing.T) zkgroup.GroupSecretParams {
	t.Helper()
	var mk zkgroup.MasterKey
	_, err := rand.Read(mk[:])
	require.NoError(t, err)
	params, err := zkgroup.DeriveGroupSecretParams(mk)
	require.NoError(t, err)
	return params
}

func randomProfileKey(t *testing.T) zkgroup.ProfileKey {
	t.Helper()
	var key zkgroup.ProfileKey
	_, err := rand.Read(key[:])
	require.NoError(t, err)
	return key
}

func TestDeriveGroupSecretParams_Deterministic(t *testing.T) {
	var mk zkgroup.MasterKey
	_, err := rand.Read(mk[:])
	require.NoError(t, err)

	p1, err := zkgroup.DeriveGroupSecretParams(mk)
	require.NoError(t, err)
	p2, err := zkgroup.DeriveGroupSecretParams(mk)
	require.NoError(t, err)

	assert.Equal(t, p1.GetPublicParams(), p2.GetPublicParams())
	assert.Equal(t, mk, p1.GetMasterKey())

	id1 := p1.GetPublicParams().GetGroupIdentifier()
	id2, err := zkgroup.GroupIdentifierFromMasterKey(mk)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
}

func TestBlobRoundTrip(t *testing.T) {
	params := testParams(t)

	plaintext := []byte("group title éèê")
	ciphertext, err := params.EncryptBlob(plaintext)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(ciphertext), zkgroup.MinBlobCiphertextLen)

	out, err := params.DecryptBlob(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, out)
}

func TestDecryptBlob_TooShort(t *testing.T) {
	params := testParams(t)

	for _, input := range [][]byte{nil, {}, make([]byte, zkgroup.MinBlobCiphertextLen-1)} {
		_, err := params.DecryptBlob(input)
		assert.ErrorIs(t, err, zkgroup.ErrInvalidInput)
	}
}

func TestDecryptBlob_Tampered(t *testing.T) {
	params := testParams(t)

	ciphertext, err := params.EncryptBlob([]byte("hello"))
	require.NoError(t, err)
	ciphertext[len(ciphertext)-1] ^= 0x01

	_, err = params.DecryptBlob(ciphertext)
	assert.ErrorIs(t, err, zkgroup.ErrVerification)
}

func TestServiceIDRoundTrip_Deterministic(t *testing.T) {
	params := testParams(t)
	id := uuid.New()

	ct1, err := params.EncryptServiceID(id)
	require.NoError(t, err)
	ct2, err := params.EncryptServiceID(id)
	require.NoError(t, err)
	assert.Equal(t, ct1, ct2, "service id encryption must be deterministic")
	assert.Len(t, ct1, zkgroup.ServiceIDCiphertextLen)

	out, err := params.DecryptServiceID(ct1)
	require.NoError(t, err)
	assert.Equal(t, id, out)
}

func TestDecryptServiceID_WrongGroup(t *testing.T) {
	params := testParams(t)
	other := testParams(t)

	ct, err := params.EncryptServiceID(uuid.New())
	require.NoError(t, err)

	_, err = other.DecryptServiceID(ct)
	assert.ErrorIs(t, err, zkgroup.ErrVerification)
}

func TestDecryptServiceIDOrUnknown(t *testing.T) {
	params := testParams(t)
	id := uuid.New()

	ct, err := params.EncryptServiceID(id)
	require.NoError(t, err)
	assert.Equal(t, id, params.DecryptServiceIDOrUnknown(ct))

	// Corrupted ciphertext yields the sentinel, never an error.
	ct[13] ^= 0xff
	assert.Equal(t, zkgroup.UnknownUUID, params.DecryptServiceIDOrUnknown(ct))
	assert.Equal(t, zkgroup.UnknownUUID, params.DecryptServiceIDOrUnknown(nil))
}

func TestProfileKeyRoundTrip(t *testing.T) {
	params := testParams(t)
	owner := uuid.New()
	key := randomProfileKey(t)

	ct, err := params.EncryptProfileKey(key, owner)
	require.NoError(t, err)
	assert.Len(t, ct, zkgroup.ProfileKeyCiphertextLen)

	out, err := params.DecryptProfileKey(ct, owner)
	require.NoError(t, err)
	assert.Equal(t, key, out)

	// Bound to its owner: decrypting against another uuid must fail.
	_, err = params.DecryptProfileKey(ct, uuid.New())
	assert.ErrorIs(t, err, zkgroup.ErrVerification)
}

func TestPresentation(t *testing.T) {
	params := testParams(t)
	id := uuid.New()
	key := randomProfileKey(t)

	presentation, err := zkgroup.NewPresentation(params, id, key)
	require.NoError(t, err)
	require.Len(t, presentation, zkgroup.PresentationLen)

	gotID, gotKey, err := params.OpenPresentation(presentation)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.Equal(t, key, gotKey)

	presentation[0] ^= 0x01
	_, _, err = params.OpenPresentation(presentation)
	assert.ErrorIs(t, err, zkgroup.ErrVerification)

	_, _, err = params.OpenPresentation(presentation[:10])
	assert.ErrorIs(t, err, zkgroup.ErrInvalidInput)
}

func TestNotarySignature(t *testing.T) {
	notary, err := zkgroup.GenerateNotaryKeyPair()
	require.NoError(t, err)

	actions := []byte("raw action bytes")
	sig := notary.Sign(actions)

	require.NoError(t, zkgroup.VerifyNotarySignature(notary.Public, actions, sig))

	err = zkgroup.VerifyNotarySignature(notary.Public, []byte("other bytes"), sig)
	assert.ErrorIs(t, err, zkgroup.ErrVerification)

	sig[0] ^= 0x01
	err = zkgroup.VerifyNotarySignature(notary.Public, actions, sig)
	assert.ErrorIs(t, err, zkgroup.ErrVerification)
}
