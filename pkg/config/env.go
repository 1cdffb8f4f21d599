package config

const (
	EnvPrefix = "ECOM"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvAppEnv          = "ECOM_APP_ENV"
	EnvPort            = "ECOM_APP_PORT"
	EnvLogLevel        = "ECOM_LOG_LEVEL"
	EnvLogFormat       = "ECOM_LOG_FORMAT"
	EnvBackendBaseURL  = "ECOM_BACKEND_BASE_URL"
	EnvBackendTimeout  = "ECOM_BACKEND_TIMEOUT"
	EnvPollMaxAttempts = "ECOM_POLL_MAX_ATTEMPTS"
	EnvPollInterval    = "ECOM_POLL_INTERVAL"
	EnvSessionTTL      = "ECOM_CHECKOUT_SESSION_TTL"
	EnvRedisURL        = "ECOM_REDIS_URL"
	EnvCORSOrigins     = "ECOM_CORS_ALLOWED_ORIGINS"
)
