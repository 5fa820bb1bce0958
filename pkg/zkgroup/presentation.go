package zkgroup

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"

	"github.com/google/uuid"
)

// PresentationLen is the fixed width of a profile key credential
// presentation: service id ciphertext + profile key ciphertext.
const PresentationLen = ServiceIDCiphertextLen + ProfileKeyCiphertextLen

// NewPresentation builds a profile key credential presentation: a blob that
// attests knowledge of a (service id, profile key) pair without revealing
// either to anyone lacking the group secret params.
func NewPresentation(p GroupSecretParams, id uuid.UUID, key ProfileKey) ([]byte, error) {
	idCiphertext, err := p.EncryptServiceID(id)
	if err != nil {
		return nil, fmt.Errorf("zkgroup: presentation: %w", err)
	}
	keyCiphertext, err := p.EncryptProfileKey(key, id)
	if err != nil {
		return nil, fmt.Errorf("zkgroup: presentation: %w", err)
	}
	return append(idCiphertext, keyCiphertext...), nil
}

// OpenPresentation verifies a presentation and recovers the service id and
// profile key it attests. Fails with ErrVerification when either embedded
// ciphertext is malformed or they do not belong together.
func (p GroupSecretParams) OpenPresentation(presentation []byte) (uuid.UUID, ProfileKey, error) {
	if len(presentation) != PresentationLen {
		return uuid.Nil, ProfileKey{}, fmt.Errorf("%w: presentation must be %d bytes, got %d",
			ErrInvalidInput, PresentationLen, len(presentation))
	}

	id, err := p.DecryptServiceID(presentation[:ServiceIDCiphertextLen])
	if err != nil {
		return uuid.Nil, ProfileKey{}, err
	}

	key, err := p.DecryptProfileKey(presentation[ServiceIDCiphertextLen:], id)
	if err != nil {
		return uuid.Nil, ProfileKey{}, err
	}
	return id, key, nil
}

// CreateAuthPresentation binds a server-issued auth credential to these
// group params, producing the password half of the group API basic auth
// pair (the username half is the hex public params).
func (p GroupSecretParams) CreateAuthPresentation(credential []byte) []byte {
	mac := hmac.New(sha256.New, p.authKey[:])
	mac.Write(p.public[:])
	mac.Write(credential)
	return append(mac.Sum(nil), credential...)
}
