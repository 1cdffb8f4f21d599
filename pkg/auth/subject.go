package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what a credential says about itself. It is unverified and
// only used for log correlation; the backend remains the authority.
type TokenInfo struct {
	Subject   string
	ExpiresAt time.Time
}

var unverifiedParser = jwt.NewParser()

// Inspect reads the registered claims of a JWT credential without checking
// its signature. Opaque (non-JWT) credentials report ok=false.
func Inspect(token string) (TokenInfo, bool) {
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenInfo{}, false
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := unverifiedParser.ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, false
	}
	info := TokenInfo{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
	}
	return info, true
}

// Expired reports whether a JWT credential carries an exp claim in the past.
func (i TokenInfo) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}
