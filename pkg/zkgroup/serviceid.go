package zkgroup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
)

// ServiceIDCiphertextLen is the fixed width of an encrypted service id:
// 12-byte synthetic nonce + 16-byte UUID ciphertext + 16-byte GCM tag.
const ServiceIDCiphertextLen = 12 + 16 + 16

// UnknownUUID is the sentinel returned by DecryptServiceIDOrUnknown for
// references that cannot be decrypted.
var UnknownUUID = uuid.Nil

// EncryptServiceID deterministically encrypts a service id (UUID) under the
// group params. The nonce is synthesized from the plaintext, so encrypting
// the same UUID twice yields identical ciphertext; the GCM tag doubles as
// the membership proof checked on decryption.
func (p GroupSecretParams) EncryptServiceID(id uuid.UUID) ([]byte, error) {
	aead, err := newKeyedAEAD(p.idKey)
	if err != nil {
		return nil, err
	}
	nonce := syntheticNonce(p.idKey, []byte("service-id"), id[:])
	return aead.Seal(nonce, nonce, id[:], nil), nil
}

// DecryptServiceID decrypts and verifies a service id ciphertext. It fails
// with ErrVerification if the ciphertext is malformed, the proof fails, or
// the ciphertext is not the canonical encryption of the recovered UUID.
func (p GroupSecretParams) DecryptServiceID(ciphertext []byte) (uuid.UUID, error) {
	if len(ciphertext) != ServiceIDCiphertextLen {
		return uuid.Nil, fmt.Errorf("%w: service id ciphertext must be %d bytes, got %d",
			ErrInvalidInput, ServiceIDCiphertextLen, len(ciphertext))
	}

	aead, err := newKeyedAEAD(p.idKey)
	if err != nil {
		return uuid.Nil, err
	}

	nonce := ciphertext[:12]
	plaintext, err := aead.Open(nil, nonce, ciphertext[12:], nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: decrypt service id", ErrVerification)
	}

	id, err := uuid.FromBytes(plaintext)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: decrypt service id", ErrVerification)
	}

	// Reject non-canonical nonces so a given UUID has exactly one valid
	// ciphertext under these params.
	if !hmac.Equal(nonce, syntheticNonce(p.idKey, []byte("service-id"), id[:])) {
		return uuid.Nil, fmt.Errorf("%w: non-canonical service id ciphertext", ErrVerification)
	}
	return id, nil
}

// DecryptServiceIDOrUnknown decrypts a service id, substituting UnknownUUID
// for anything that fails to decrypt. Used for member references where an
// undecryptable peer (future or foreign client) must not abort processing.
// Never use this where integrity matters more than availability.
func (p GroupSecretParams) DecryptServiceIDOrUnknown(ciphertext []byte) uuid.UUID {
	id, err := p.DecryptServiceID(ciphertext)
	if err != nil {
		return UnknownUUID
	}
	return id
}

// syntheticNonce derives a deterministic 12-byte nonce from the key, a
// domain label, and the plaintext being sealed.
func syntheticNonce(key [32]byte, label, plaintext []byte) []byte {
	mac := hmac.New(sha256.New, key[:])
	mac.Write(label)
	mac.Write(plaintext)
	return mac.Sum(nil)[:12]
}

func newKeyedAEAD(key [32]byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("zkgroup: aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("zkgroup: aes-gcm: %w", err)
	}
	return aead, nil
}
