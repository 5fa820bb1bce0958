package zkgroup

import "errors"

var (
	// ErrVerification indicates a ciphertext, proof, or signature failed
	// verification. Callers must not use any value recovered alongside it.
	ErrVerification = errors.New("zkgroup: verification failed")

	// ErrInvalidInput indicates structurally malformed input (wrong length,
	// truncated ciphertext) detected before any cryptographic check.
	ErrInvalidInput = errors.New("zkgroup: invalid input")
)
