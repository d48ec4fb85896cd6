package crypto

import (
	"encoding/json"
	"fmt"
)

// IV is a GCM nonce. On the wire it is a JSON array of byte values 0..255,
// not base64 and not hex.
type IV []byte

func (iv IV) MarshalJSON() ([]byte, error) {
	if iv == nil {
		return []byte("null"), nil
	}
	ints := make([]int, len(iv))
	for i, b := range iv {
		ints[i] = int(b)
	}
	return json.Marshal(ints)
}

func (iv *IV) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*iv = nil
		return nil
	}

	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return fmt.Errorf("%w: iv must be an array of integers", ErrFormat)
	}

	out := make(IV, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("%w: iv byte out of range", ErrFormat)
		}
		out[i] = byte(v)
	}
	*iv = out
	return nil
}

// ParseIV decodes the JSON array form, as received in form fields.
func ParseIV(s string) (IV, error) {
	var iv IV
	if err := iv.UnmarshalJSON([]byte(s)); err != nil {
		return nil, err
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("%w: iv must be %d bytes", ErrFormat, IVSize)
	}
	return iv, nil
}
