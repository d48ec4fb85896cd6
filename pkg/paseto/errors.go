package pasetotoken

// ErrConfig reports unusable key material or manager settings.
type ErrConfig struct{ Msg string }

func (e ErrConfig) Error() string { return "pasetotoken: " + e.Msg }

// ErrInvalidToken wraps any parse, signature or claim failure. Callers
// answer it with 401 and never surface Err to the client.
type ErrInvalidToken struct{ Err error }

func (e ErrInvalidToken) Error() string {
	if e.Err == nil {
		return "pasetotoken: invalid token"
	}
	return "pasetotoken: invalid token: " + e.Err.Error()
}

func (e ErrInvalidToken) Unwrap() error { return e.Err }
