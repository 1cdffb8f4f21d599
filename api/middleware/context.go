package middleware

import "context"

type contextKey string

const (
	ctxSubject     contextKey = "subject"
	ctxFingerprint contextKey = "credential_fingerprint"
)

// SubjectFromContext returns the unverified credential subject, if any.
func SubjectFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxSubject).(string); ok {
		return v
	}
	return ""
}

// FingerprintFromContext returns a digest of the caller's credential, if any.
func FingerprintFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxFingerprint).(string); ok {
		return v
	}
	return ""
}

func withSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ctxSubject, subject)
}

func withFingerprint(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, ctxFingerprint, fingerprint)
}
