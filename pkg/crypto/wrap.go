package crypto

import (
	"encoding/base64"
	"fmt"
)

// WrapKey encrypts a record key under the master key for storage at rest.
// Returns a base64-encoded string: nonce || ciphertext.
func WrapKey(master, key []byte) (string, error) {
	ciphertext, iv, err := Encrypt(key, master)
	if err != nil {
		return "", fmt.Errorf("wrap key: %w", err)
	}

	out := make([]byte, 0, len(iv)+len(ciphertext))
	out = append(out, iv...)
	out = append(out, ciphertext...)
	return base64.StdEncoding.EncodeToString(out), nil
}

// UnwrapKey reverses WrapKey.
func UnwrapKey(master []byte, wrapped string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(wrapped)
	if err != nil {
		return nil, fmt.Errorf("%w: wrapped key is not base64", ErrFormat)
	}
	if len(data) < IVSize {
		return nil, ErrCiphertextTooShort
	}

	key, err := Decrypt(data[IVSize:], master, IV(data[:IVSize]))
	if err != nil {
		return nil, err
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}
