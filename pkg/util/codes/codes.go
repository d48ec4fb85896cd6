// Package codes generates and normalises patient share codes. A share code is
// what a patient reads out to a doctor so the doctor can request access.
package codes

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const (
	ShareCodeLength    = 12
	ShareCodeGroupSize = 4

	// No 0/O or 1/I/L, so codes survive being read aloud.
	charsetShareCode = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
)

var (
	ErrInvalidLength  = errors.New("codes: length must be positive")
	ErrInvalidCharset = errors.New("codes: charset must hold 2 to 256 symbols")
)

func GenerateShareCode(cfg Config) (string, error) {
	return GenerateCode(cfg.length(), cfg.charset())
}

// GenerateCode draws length symbols uniformly from charset using crypto/rand.
func GenerateCode(length int, charset string) (string, error) {
	if length < 1 {
		return "", ErrInvalidLength
	}
	n := len(charset)
	if n < 2 || n > 256 {
		return "", ErrInvalidCharset
	}

	// Bytes at or above limit would bias the modulo, so they are redrawn.
	limit := 256 - 256%n
	out := make([]byte, 0, length)
	buf := make([]byte, length+length/2)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("codes: read random: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			out = append(out, charset[int(b)%n])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// FormatCode splits code into dash separated groups, "ABCD2345WXYZ" to
// "ABCD-2345-WXYZ".
func FormatCode(code string, groupSize int) string {
	if groupSize < 1 || len(code) <= groupSize {
		return code
	}
	var b strings.Builder
	b.Grow(len(code) + len(code)/groupSize)
	for i := range len(code) {
		if i > 0 && i%groupSize == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(code[i])
	}
	return b.String()
}

// ParseCode undoes FormatCode and whatever a user typed around it: dashes,
// whitespace and lower case.
func ParseCode(input string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToUpper(r)
	}, input)
}

// NormalizeCode upper-cases and trims without removing separators.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
