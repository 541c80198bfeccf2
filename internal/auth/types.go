package auth

import (
	"context"
	"time"
)

// Token represents an API token for HTTP access
type Token struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// Context holds authentication information for a request
type Context struct {
	Token string // the validated bearer token
	Name  string // human-readable name when the token came from the store
}

type contextKey struct{}

// WithContext attaches the auth context to ctx.
func WithContext(ctx context.Context, ac *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

// FromContext extracts the auth context, or nil when the request was not
// authenticated (auth disabled).
func FromContext(ctx context.Context) *Context {
	ac, _ := ctx.Value(contextKey{}).(*Context)
	return ac
}

// MaskToken shortens a token for log output.
func MaskToken(tokenID string) string {
	if len(tokenID) <= 12 {
		return "***"
	}
	return tokenID[:8] + "..." + tokenID[len(tokenID)-4:]
}
