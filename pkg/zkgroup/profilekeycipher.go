package zkgroup

import (
	"fmt"

	"github.com/google/uuid"
)

// ProfileKeyCiphertextLen is the fixed width of an encrypted profile key:
// 12-byte synthetic nonce + 32-byte key ciphertext + 16-byte GCM tag.
const ProfileKeyCiphertextLen = 12 + 32 + 16

// EncryptProfileKey deterministically encrypts a member's profile key. The
// owning service id is bound into the ciphertext as associated data, so a
// profile key ciphertext only decrypts against its owner.
func (p GroupSecretParams) EncryptProfileKey(key ProfileKey, owner uuid.UUID) ([]byte, error) {
	aead, err := newKeyedAEAD(p.pkKey)
	if err != nil {
		return nil, err
	}
	nonce := syntheticNonce(p.pkKey, owner[:], key[:])
	return aead.Seal(nonce, nonce, key[:], owner[:]), nil
}

// DecryptProfileKey combines the owner's service id and a ciphertext to
// recover the plaintext profile key. Fails with ErrVerification when the
// ciphertext is malformed or bound to a different owner.
func (p GroupSecretParams) DecryptProfileKey(ciphertext []byte, owner uuid.UUID) (ProfileKey, error) {
	if len(ciphertext) != ProfileKeyCiphertextLen {
		return ProfileKey{}, fmt.Errorf("%w: profile key ciphertext must be %d bytes, got %d",
			ErrInvalidInput, ProfileKeyCiphertextLen, len(ciphertext))
	}

	aead, err := newKeyedAEAD(p.pkKey)
	if err != nil {
		return ProfileKey{}, err
	}

	plaintext, err := aead.Open(nil, ciphertext[:12], ciphertext[12:], owner[:])
	if err != nil {
		return ProfileKey{}, fmt.Errorf("%w: decrypt profile key", ErrVerification)
	}

	var key ProfileKey
	copy(key[:], plaintext)
	return key, nil
}
