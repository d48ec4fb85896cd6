package crypto

import (
	"encoding/hex"
	"fmt"
)

// KeyToHex encodes key as lowercase hex, two characters per byte.
func KeyToHex(key []byte) string {
	return hex.EncodeToString(key)
}

// HexToKey decodes a hex string produced by KeyToHex.
// Odd length or non-hex characters yield ErrFormat.
func HexToKey(s string) ([]byte, error) {
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("%w: odd length", ErrFormat)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid hex", ErrFormat)
	}
	return b, nil
}

// KeyFromHex decodes a 64-char hex string into a 32-byte AES-256 key.
func KeyFromHex(s string) ([]byte, error) {
	b, err := HexToKey(s)
	if err != nil {
		return nil, err
	}
	if len(b) != KeySize {
		return nil, ErrInvalidKey
	}
	return b, nil
}
