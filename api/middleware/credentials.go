package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/thieenjdev03/ecom-client-sub002/pkg/auth"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/logger"
)

// Credentials forwards the caller's bearer credential to the order backend.
// A missing credential is not an error: the backend decides what needs auth.
func Credentials(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := auth.ParseAuthorizationHeader(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx := auth.WithBearerToken(r.Context(), token)
			ctx = withFingerprint(ctx, fingerprint(token))
			if info, ok := auth.Inspect(token); ok {
				if info.Subject != "" {
					ctx = withSubject(ctx, info.Subject)
					ctx = logg.WithField(ctx, "subject", info.Subject)
				}
				if info.Expired(time.Now()) {
					logg.Warn(ctx, "credentials.expired")
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
