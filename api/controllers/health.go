package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/thieenjdev03/ecom-client-sub002/api/responses"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/config"
	pkgerrors "github.com/thieenjdev03/ecom-client-sub002/pkg/errors"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/logger"
	"github.com/thieenjdev03/ecom-client-sub002/pkg/redis"
)

const (
	envHeader    = "X-Ecom-Env"
	readyTimeout = 2 * time.Second
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready when every configured dependency answers. A nil
// pinger is a dependency that is not configured.
func HealthReady(cfg *config.Config, logg *logger.Logger, redisClient redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		checks := map[string]string{"redis": "disabled"}

		if redisClient != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			defer cancel()
			if err := redisClient.Ping(ctx); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable").
					WithDetails(map[string]string{"redis": "down"}))
				return
			}
			checks["redis"] = "ok"
		}

		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
