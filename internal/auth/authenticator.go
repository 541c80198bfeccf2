package auth

import (
	"errors"

	"github.com/coppice-labs/switchboard/internal/apierr"
)

// Authenticator validates bearer credentials against the configured
// allow-list and, when present, the persistent token store.
// When enforcement is disabled every credential (including none) passes.
type Authenticator struct {
	enabled bool
	allowed map[string]struct{}
	store   *Store // optional
}

// NewAuthenticator builds an authenticator from the configured token list.
// store may be nil.
func NewAuthenticator(enabled bool, tokens []string, store *Store) *Authenticator {
	allowed := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if t != "" {
			allowed[t] = struct{}{}
		}
	}
	return &Authenticator{enabled: enabled, allowed: allowed, store: store}
}

// Enabled reports whether enforcement is on.
func (a *Authenticator) Enabled() bool {
	return a.enabled
}

// Validate checks a bearer token. When enforcement is disabled it always
// succeeds. Otherwise the token must be in the allow-list or the store.
func (a *Authenticator) Validate(token string) (*Context, error) {
	if !a.enabled {
		return &Context{Token: token}, nil
	}

	if token == "" {
		return nil, apierr.New(apierr.CodeAuthFailed, "Authentication required (Bearer token)")
	}

	if _, ok := a.allowed[token]; ok {
		return &Context{Token: token}, nil
	}

	if a.store != nil {
		stored, err := a.store.ValidateToken(token)
		if err == nil {
			return &Context{Token: token, Name: stored.Name}, nil
		}
		if !errors.Is(err, ErrTokenNotFound) && !errors.Is(err, ErrInvalidToken) && !errors.Is(err, ErrTokenExpired) {
			return nil, apierr.New(apierr.CodeInternal, "token lookup failed")
		}
	}

	return nil, apierr.New(apierr.CodeAuthFailed, "Invalid or expired token")
}
