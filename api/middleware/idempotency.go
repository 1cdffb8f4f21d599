package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/thieenjdev03/ecom-client-sub002/api/responses"
	"github.com/thieenjdev03/ecom-client-sub002/api/validators"
	pkgerrors "github.com/thieenjdev03/ecom-client-sub002/pkg/errors"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/logger"
	pkgredis "github.com/thieenjdev03/ecom-client-sub002/pkg/redis"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"

	sessionIdempotencyTTL = 24 * time.Hour
	inFlightLockTTL       = time.Minute
)

// Routes whose side effects reach the order backend. Globs use path.Match.
var idempotentRoutes = []struct {
	method string
	glob   string
	ttl    time.Duration
}{
	{http.MethodPost, "/api/v1/checkout/sessions", sessionIdempotencyTTL},
	{http.MethodPost, "/api/v1/checkout/sessions/*/approve", sessionIdempotencyTTL},
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// Idempotency replays the first non-5xx response for a repeated
// Idempotency-Key and refuses duplicates that race the original.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := requestTTL(r)
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}

			g := guard{store: store, logg: logg}
			if err := g.serve(w, r, next, ttl); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
			}
		})
	}
}

type guard struct {
	store pkgredis.IdempotencyStore
	logg  *logger.Logger
}

// serve returns an error only before next has run.
func (g guard) serve(w http.ResponseWriter, r *http.Request, next http.Handler, ttl time.Duration) error {
	ctx := r.Context()
	id := strings.TrimSpace(r.Header.Get(idempotencyKeyHeader))
	if id == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required")
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, validators.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "request body too large")
		}
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	hash := hashBody(body)
	key := g.store.IdempotencyKey(buildScope(r), id)

	stored, err := g.lookup(ctx, key)
	if err != nil {
		return err
	}
	if stored != nil {
		if stored.RequestHash != hash {
			return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
		}
		replay(w, stored)
		return nil
	}

	lockKey := g.store.LockKey(key)
	locked, err := g.store.SetNX(ctx, lockKey, hash, inFlightLockTTL)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock idempotency key")
	}
	if !locked {
		return pkgerrors.New(pkgerrors.CodeConflict, "a request with this Idempotency-Key is still in progress")
	}
	defer g.release(ctx, lockKey)

	capture := &responseCapture{ResponseWriter: w}
	next.ServeHTTP(capture, r)

	// 5xx stays retryable under the same key.
	if capture.statusCode() >= http.StatusInternalServerError {
		return nil
	}
	g.persist(ctx, key, ttl, storedResponse{
		Status:      capture.statusCode(),
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
		RequestHash: hash,
	})
	return nil
}

func (g guard) lookup(ctx context.Context, key string) (*storedResponse, error) {
	raw, err := g.store.Get(ctx, key)
	if errors.Is(err, redis.Nil) || (err == nil && raw == "") {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &stored, nil
}

func (g guard) persist(ctx context.Context, key string, ttl time.Duration, stored storedResponse) {
	payload, err := json.Marshal(stored)
	if err != nil {
		g.logg.Error(ctx, "idempotency.marshal_failed", err)
		return
	}
	if _, err := g.store.SetNX(context.WithoutCancel(ctx), key, string(payload), ttl); err != nil {
		g.logg.Error(ctx, "idempotency.persist_failed", err)
	}
}

func (g guard) release(ctx context.Context, lockKey string) {
	if err := g.store.Del(context.WithoutCancel(ctx), lockKey); err != nil {
		g.logg.Error(ctx, "idempotency.unlock_failed", err)
	}
}

func replay(w http.ResponseWriter, stored *storedResponse) {
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

// buildScope keeps one caller's keys apart from another's.
func buildScope(r *http.Request) string {
	caller := FingerprintFromContext(r.Context())
	if caller == "" {
		caller = "anonymous"
	}
	return strings.Join([]string{caller, r.Method, r.URL.Path}, "|")
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// requestTTL checks the chi pattern first. Inside a mounted group chi only
// knows a partial pattern, so the raw path is tried as well.
func requestTTL(r *http.Request) (time.Duration, bool) {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if ttl, ok := routeTTL(r.Method, rc.RoutePattern()); ok {
			return ttl, true
		}
	}
	return routeTTL(r.Method, r.URL.Path)
}

func routeTTL(method, pattern string) (time.Duration, bool) {
	if pattern == "" {
		return 0, false
	}
	if len(pattern) > 1 {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	for _, route := range idempotentRoutes {
		if route.method != method {
			continue
		}
		if ok, _ := path.Match(route.glob, pattern); ok {
			return route.ttl, true
		}
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
