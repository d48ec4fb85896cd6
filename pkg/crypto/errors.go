package crypto

import "errors"

// Error messages are generic on purpose: none of them may carry key, IV or
// ciphertext bytes.
var (
	// ErrFormat reports malformed hex keys or IV arrays.
	ErrFormat = errors.New("malformed key material")

	// ErrAuthentication reports a failed AEAD tag check: wrong key, wrong IV or
	// tampered ciphertext. Callers cannot tell which.
	ErrAuthentication = errors.New("decryption failed")

	ErrInvalidKey         = errors.New("encryption key must be 32 bytes")
	ErrInvalidIV          = errors.New("iv must be 12 bytes")
	ErrCiphertextTooShort = errors.New("ciphertext too short")
)
