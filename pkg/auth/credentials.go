// Package auth is the boundary with the session's credential holder. It never
// stores, refreshes or verifies credentials; it only carries them to outbound calls.
package auth

import (
	"context"
	"strings"
)

// CredentialSource supplies the bearer credential for the current session.
// An empty token with a nil error means the session is unauthenticated.
type CredentialSource interface {
	BearerToken(ctx context.Context) (string, error)
}

// SourceFunc adapts a function to CredentialSource.
type SourceFunc func(ctx context.Context) (string, error)

func (f SourceFunc) BearerToken(ctx context.Context) (string, error) {
	if f == nil {
		return "", nil
	}
	return f(ctx)
}

// StaticSource always returns the same credential.
type StaticSource string

func (s StaticSource) BearerToken(context.Context) (string, error) {
	return strings.TrimSpace(string(s)), nil
}

// ContextSource reads the credential attached with WithBearerToken.
type ContextSource struct{}

func (ContextSource) BearerToken(ctx context.Context) (string, error) {
	return BearerTokenFromContext(ctx), nil
}

type tokenCtxKey struct{}

// WithBearerToken attaches a raw credential to ctx. Blank tokens are ignored.
func WithBearerToken(ctx context.Context, token string) context.Context {
	token = strings.TrimSpace(token)
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenCtxKey{}, token)
}

// BearerTokenFromContext returns the credential stored on ctx, if any.
func BearerTokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	token, _ := ctx.Value(tokenCtxKey{}).(string)
	return token
}

// ParseAuthorizationHeader extracts the credential from a "Bearer <token>" header value.
func ParseAuthorizationHeader(value string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(value), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
