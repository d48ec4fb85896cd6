package codes

import (
	"strings"

	"github.com/Alijeyrad/medvault_backend/config"
)

// Config tunes share code generation. Zero fields fall back to the
// defaults.
type Config struct {
	Length  int
	Charset string
}

func DefaultConfig() Config {
	return Config{Length: ShareCodeLength, Charset: charsetShareCode}
}

func (c Config) length() int {
	if c.Length > 0 {
		return c.Length
	}
	return ShareCodeLength
}

func (c Config) charset() string {
	if c.Charset != "" {
		return c.Charset
	}
	return charsetShareCode
}

// FromCentralConfig upper-cases the charset because ParseCode upper-cases
// what users type.
func FromCentralConfig(c config.CodesConfig) Config {
	return Config{Length: c.ShareCodeLength, Charset: strings.ToUpper(c.Charset)}
}
