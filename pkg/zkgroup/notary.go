package zkgroup

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// NotarySignatureLen is the width of a server notary signature.
const NotarySignatureLen = ed25519.SignatureSize

// NotaryKeyPair is the server-side signing key for group changes. Clients
// only ever hold the public half; the key pair exists here for tests and
// for running a local group server.
type NotaryKeyPair struct {
	Public  ed25519.PublicKey
	private ed25519.PrivateKey
}

// GenerateNotaryKeyPair creates a fresh notary signing key.
func GenerateNotaryKeyPair() (NotaryKeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return NotaryKeyPair{}, fmt.Errorf("zkgroup: generate notary key: %w", err)
	}
	return NotaryKeyPair{Public: pub, private: priv}, nil
}

// Sign signs raw group change action bytes.
func (k NotaryKeyPair) Sign(actionBytes []byte) []byte {
	return ed25519.Sign(k.private, actionBytes)
}

// VerifyNotarySignature checks the server's signature over raw action
// bytes. This is the integrity boundary against a malicious server; a
// failure here is always a hard ErrVerification.
func VerifyNotarySignature(public ed25519.PublicKey, actionBytes, signature []byte) error {
	if len(public) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: notary public key must be %d bytes, got %d",
			ErrInvalidInput, ed25519.PublicKeySize, len(public))
	}
	if !ed25519.Verify(public, actionBytes, signature) {
		return fmt.Errorf("%w: notary signature", ErrVerification)
	}
	return nil
}
