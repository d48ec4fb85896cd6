package crypto

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		plaintext := rapid.SliceOfN(rapid.Byte(), 0, 4096).Draw(t, "plaintext")

		key, err := GenerateKey()
		if err != nil {
			t.Fatalf("GenerateKey: %v", err)
		}
		ct, iv, err := Encrypt(plaintext, key)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		got, err := Decrypt(ct, key, iv)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Fatalf("round trip mismatch")
		}
	})
}

func TestKeyHex_RoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		key := rapid.SliceOfN(rapid.Byte(), KeySize, KeySize).Draw(t, "key")

		s := KeyToHex(key)
		if len(s) != 64 || strings.ToLower(s) != s {
			t.Fatalf("KeyToHex = %q", s)
		}
		back, err := HexToKey(s)
		if err != nil {
			t.Fatalf("HexToKey: %v", err)
		}
		if !bytes.Equal(back, key) {
			t.Fatalf("key round trip mismatch")
		}
	})
}

func TestHexToKey_Malformed(t *testing.T) {
	for _, in := range []string{"abc", "zz", "0g", "12 4"} {
		_, err := HexToKey(in)
		assert.ErrorIs(t, err, ErrFormat, "input %q", in)
	}
}

func TestKeyFromHex_Length(t *testing.T) {
	_, err := KeyFromHex("abcd")
	require.ErrorIs(t, err, ErrInvalidKey)

	key, err := KeyFromHex(strings.Repeat("ab", KeySize))
	require.NoError(t, err)
	assert.Len(t, key, KeySize)
}

func TestEncrypt_FreshIVs(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	plaintext := []byte("same plaintext every time")
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		ct, iv, err := Encrypt(plaintext, key)
		require.NoError(t, err)
		require.Len(t, iv, IVSize)
		require.Len(t, ct, len(plaintext)+16)

		k := string(iv)
		require.False(t, seen[k], "iv reused at iteration %d", i)
		seen[k] = true
	}
}

func TestDecrypt_TamperDetection(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	ct, iv, err := Encrypt([]byte("lab result: hemoglobin 13.5 g/dL"), key)
	require.NoError(t, err)

	t.Run("flipped ciphertext bit", func(t *testing.T) {
		rapid.Check(t, func(rt *rapid.T) {
			pos := rapid.IntRange(0, len(ct)-1).Draw(rt, "pos")
			bit := rapid.IntRange(0, 7).Draw(rt, "bit")

			tampered := append([]byte(nil), ct...)
			tampered[pos] ^= 1 << bit
			if _, err := Decrypt(tampered, key, iv); !errors.Is(err, ErrAuthentication) {
				rt.Fatalf("expected ErrAuthentication, got %v", err)
			}
		})
	})

	t.Run("wrong key", func(t *testing.T) {
		other, err := GenerateKey()
		require.NoError(t, err)
		_, err = Decrypt(ct, other, iv)
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("wrong iv", func(t *testing.T) {
		bad := append(IV(nil), iv...)
		bad[0] ^= 0xff
		_, err := Decrypt(ct, key, bad)
		assert.ErrorIs(t, err, ErrAuthentication)
	})

	t.Run("generic message", func(t *testing.T) {
		_, err := Decrypt(ct[:len(ct)-1], key, iv)
		require.Error(t, err)
		assert.NotContains(t, err.Error(), KeyToHex(key))
		assert.NotContains(t, err.Error(), KeyToHex(iv))
	})
}

func TestDecrypt_InvalidInputs(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	_, err = Decrypt([]byte("x"), key[:16], make(IV, IVSize))
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = Decrypt(make([]byte, 32), key, make(IV, 8))
	assert.ErrorIs(t, err, ErrInvalidIV)

	_, err = Decrypt([]byte("short"), key, make(IV, IVSize))
	assert.ErrorIs(t, err, ErrCiphertextTooShort)
}

func TestIV_JSON(t *testing.T) {
	iv := IV{0, 1, 127, 128, 254, 255, 7, 8, 9, 10, 11, 12}

	data, err := json.Marshal(struct {
		IV IV `json:"iv"`
	}{iv})
	require.NoError(t, err)
	assert.JSONEq(t, `{"iv":[0,1,127,128,254,255,7,8,9,10,11,12]}`, string(data))

	var back struct {
		IV IV `json:"iv"`
	}
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, iv, back.IV)
}

func TestIV_JSONRejectsOtherEncodings(t *testing.T) {
	for _, in := range []string{`"AAEC"`, `[256]`, `[-1]`, `[1.5]`, `{"0":1}`} {
		var iv IV
		err := json.Unmarshal([]byte(in), &iv)
		assert.ErrorIs(t, err, ErrFormat, "input %s", in)
	}
}

func TestParseIV(t *testing.T) {
	iv, err := ParseIV("[1,2,3,4,5,6,7,8,9,10,11,12]")
	require.NoError(t, err)
	assert.Len(t, iv, IVSize)

	_, err = ParseIV("[1,2,3]")
	assert.ErrorIs(t, err, ErrFormat)
}

func TestWrapUnwrap(t *testing.T) {
	master, err := GenerateKey()
	require.NoError(t, err)
	key, err := GenerateKey()
	require.NoError(t, err)

	wrapped, err := WrapKey(master, key)
	require.NoError(t, err)
	assert.NotContains(t, wrapped, KeyToHex(key))

	got, err := UnwrapKey(master, wrapped)
	require.NoError(t, err)
	assert.Equal(t, key, got)

	otherMaster, err := GenerateKey()
	require.NoError(t, err)
	_, err = UnwrapKey(otherMaster, wrapped)
	assert.ErrorIs(t, err, ErrAuthentication)

	_, err = UnwrapKey(master, "not base64!")
	assert.ErrorIs(t, err, ErrFormat)
}
