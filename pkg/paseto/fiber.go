package pasetotoken

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/medvault_backend/config"
)

// CtxKeyClaims is the fiber locals key the auth middleware stores *Claims
// under.
const CtxKeyClaims = "medvault.claims"

func ClaimsFromFiber(c fiber.Ctx) (*Claims, bool) {
	cl, ok := c.Locals(CtxKeyClaims).(*Claims)
	return cl, ok && cl != nil
}

// NewPasetoManager builds the token manager from authentication.paseto.
func NewPasetoManager(cfg *config.Config) (*Manager, error) {
	pc := cfg.Authentication.Paseto
	mode := Mode(pc.Mode)

	keys, err := LoadKeys(KeyStrings{
		Mode:         mode,
		SymmetricHex: pc.LocalKeyHex,
		SecretHex:    pc.SecretKeyHex,
		PublicHex:    pc.PublicKeyHex,
	})
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(pc.AccessTTLMinutes) * time.Minute
	return New(Config{Mode: mode, Issuer: pc.Issuer, Audience: pc.Audience, AccessTTL: ttl}, keys)
}
