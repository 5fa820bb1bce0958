// Package zkgroup implements the group-scoped cryptography used by the
// Groups V2 protocol: secret parameter derivation from a group master key,
// attribute blob encryption, deterministic service-id and profile-key
// ciphertexts, credential presentations, and server notary signatures.
package zkgroup

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/hkdf"
)

const (
	MasterKeyLen  = 32
	ProfileKeyLen = 32
)

// MasterKey is the 32-byte root key that identifies a group.
// All other group keys are derived from it.
type MasterKey [MasterKeyLen]byte

// NewMasterKey copies a 32-byte slice into a MasterKey.
func NewMasterKey(b []byte) (MasterKey, error) {
	if len(b) != MasterKeyLen {
		return MasterKey{}, fmt.Errorf("zkgroup: master key must be %d bytes, got %d", MasterKeyLen, len(b))
	}
	var k MasterKey
	copy(k[:], b)
	return k, nil
}

// ProfileKey is a member's 32-byte profile key.
type ProfileKey [ProfileKeyLen]byte

// IsZero reports whether the profile key is the all-zero value, which is
// used throughout as "no key known".
func (k ProfileKey) IsZero() bool {
	return k == ProfileKey{}
}

// GroupPublicParams is the public portion of the group params, used as the
// username half of server requests.
type GroupPublicParams [32]byte

// GroupIdentifier is a 32-byte hash derived from public params, used to
// identify groups towards the server and in local storage.
type GroupIdentifier [32]byte

// String returns hex encoding of the group identifier.
func (g GroupIdentifier) String() string {
	return hex.EncodeToString(g[:])
}

// GroupSecretParams are derived from the master key and own all
// encryption/decryption for one group. The value is immutable and safe for
// concurrent use.
type GroupSecretParams struct {
	masterKey MasterKey
	blobKey   [32]byte // attribute blobs (title, timer, ...)
	idKey     [32]byte // service-id ciphertexts
	pkKey     [32]byte // profile-key ciphertexts
	authKey   [32]byte // auth credential presentations
	public    GroupPublicParams
}

// HKDF info strings for the per-group key schedule. The order is part of
// the derivation and must never change.
const groupKeyScheduleInfo = "Groupsync_GroupSecretParams_KeySchedule"

// DeriveGroupSecretParams derives GroupSecretParams from a GroupMasterKey.
func DeriveGroupSecretParams(masterKey MasterKey) (GroupSecretParams, error) {
	r := hkdf.New(sha256.New, masterKey[:], nil, []byte(groupKeyScheduleInfo))
	keys := make([]byte, 160)
	if _, err := r.Read(keys); err != nil {
		return GroupSecretParams{}, fmt.Errorf("zkgroup: derive group secret params: %w", err)
	}

	p := GroupSecretParams{masterKey: masterKey}
	copy(p.blobKey[:], keys[0:32])
	copy(p.idKey[:], keys[32:64])
	copy(p.pkKey[:], keys[64:96])
	copy(p.authKey[:], keys[96:128])
	copy(p.public[:], keys[128:160])
	return p, nil
}

// GetMasterKey returns the master key the params were derived from.
func (p GroupSecretParams) GetMasterKey() MasterKey {
	return p.masterKey
}

// GetPublicParams extracts the public params from secret params.
func (p GroupSecretParams) GetPublicParams() GroupPublicParams {
	return p.public
}

// GetGroupIdentifier derives the group identifier from public params.
func (p GroupPublicParams) GetGroupIdentifier() GroupIdentifier {
	return GroupIdentifier(sha256.Sum256(p[:]))
}

// GroupIdentifierFromMasterKey derives a GroupIdentifier directly from a
// master key.
func GroupIdentifierFromMasterKey(masterKey MasterKey) (GroupIdentifier, error) {
	params, err := DeriveGroupSecretParams(masterKey)
	if err != nil {
		return GroupIdentifier{}, err
	}
	return params.GetPublicParams().GetGroupIdentifier(), nil
}
