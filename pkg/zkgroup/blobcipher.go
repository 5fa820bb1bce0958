package zkgroup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

const (
	blobNonceLen = 12
	blobTagLen   = 16

	// MinBlobCiphertextLen is the smallest valid attribute blob ciphertext:
	// 12-byte nonce + 16-byte GCM tag + at least one plaintext byte.
	MinBlobCiphertextLen = blobNonceLen + blobTagLen + 1
)

// EncryptBlob encrypts a group attribute blob (title, timer, ...).
// Output format: [12-byte nonce][ciphertext][16-byte GCM tag].
func (p GroupSecretParams) EncryptBlob(plaintext []byte) ([]byte, error) {
	aead, err := p.blobAEAD()
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, blobNonceLen)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("zkgroup: generate nonce: %w", err)
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// DecryptBlob decrypts an attribute blob produced by EncryptBlob.
// Ciphertexts shorter than MinBlobCiphertextLen are rejected with
// ErrInvalidInput before any cryptographic work.
func (p GroupSecretParams) DecryptBlob(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < MinBlobCiphertextLen {
		return nil, fmt.Errorf("%w: blob ciphertext too short: %d bytes", ErrInvalidInput, len(ciphertext))
	}

	aead, err := p.blobAEAD()
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, ciphertext[:blobNonceLen], ciphertext[blobNonceLen:], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt blob", ErrVerification)
	}
	return plaintext, nil
}

func (p GroupSecretParams) blobAEAD() (cipher.AEAD, error) {
	block, err := aes.NewCipher(p.blobKey[:])
	if err != nil {
		return nil, fmt.Errorf("zkgroup: aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("zkgroup: aes-gcm: %w", err)
	}
	return aead, nil
}
