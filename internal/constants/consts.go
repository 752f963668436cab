package constants

import "time"

// Environment variable constants
const (
	EnvHost              = "HEALTHCHECKS_HOST"
	EnvPort              = "HEALTHCHECKS_PORT"
	EnvMetricsPort       = "HEALTHCHECKS_METRICS_PORT"
	EnvReadTimeout       = "HEALTHCHECKS_READ_TIMEOUT"
	EnvWriteTimeout      = "HEALTHCHECKS_WRITE_TIMEOUT"
	EnvIdleTimeout       = "HEALTHCHECKS_IDLE_TIMEOUT"
	EnvMaxRequestSize    = "HEALTHCHECKS_MAX_REQUEST_SIZE"
	EnvShutdownTimeout   = "HEALTHCHECKS_SHUTDOWN_TIMEOUT"
	EnvRemoteTimeout     = "HEALTHCHECKS_REMOTE_TIMEOUT"
	EnvErrorCode         = "HEALTHCHECKS_ERROR_CODE"
	EnvErrorCodeHeader   = "HEALTHCHECKS_ERROR_CODE_HEADER"
	EnvETag              = "HEALTHCHECKS_ETAG"
	EnvHeartbeatTimeout  = "HEALTHCHECKS_DEFAULT_HEARTBEAT_TIMEOUT"
	EnvStorageDriver     = "HEALTHCHECKS_STORAGE_DRIVER"
	EnvStorageDSN        = "HEALTHCHECKS_STORAGE_DSN"
	EnvHotReload         = "HEALTHCHECKS_HOT_RELOAD"
	EnvHotReloadDebounce = "HEALTHCHECKS_HOT_RELOAD_DEBOUNCE"
	EnvTLSEnabled        = "HEALTHCHECKS_TLS_ENABLED"
	EnvTLSCertFile       = "HEALTHCHECKS_TLS_CERT_FILE"
	EnvTLSKeyFile        = "HEALTHCHECKS_TLS_KEY_FILE"
	EnvLogLevel          = "HEALTHCHECKS_LOG_LEVEL"
	EnvRateLimitEnabled  = "HEALTHCHECKS_RATE_LIMIT_ENABLED"
	EnvRateLimitRPS      = "HEALTHCHECKS_RATE_LIMIT_RPS"
	EnvConfigFile        = "HEALTHCHECKS_CONFIG"
)

// DefaultConfigFile is loaded when no -config flag or env var is given and the file exists.
const DefaultConfigFile = "healthchecks.yaml"

// HTTP header constants
const (
	HeaderAuthorization   = "Authorization"
	HeaderContentType     = "Content-Type"
	HeaderCacheControl    = "Cache-Control"
	HeaderETag            = "ETag"
	HeaderIfNoneMatch     = "If-None-Match"
	HeaderWWWAuthenticate = "WWW-Authenticate"
	HeaderXForwardedFor   = "X-Forwarded-For"
	HeaderXRealIP         = "X-Real-IP"
	HeaderRetryAfter      = "Retry-After"
)

// Content type constants
const (
	ContentTypeJSON = "application/json"
	ContentTypeText = "text/plain; charset=utf-8"
)

// Health check response constants
const (
	// BasicRealmChallenge is sent with every 401 produced by the access policy.
	BasicRealmChallenge = `Basic realm="Healthchecks"`
	// NoCacheDirectives disables caching of every health response.
	NoCacheDirectives = "max-age=0, no-cache, no-store, private"
	// DefaultErrorCodeHeader lets a caller ask for a specific failure status.
	DefaultErrorCodeHeader = "X-Healthchecks-Error-Code"
	// DefaultErrorCode keeps naive uptime monitors on 200 unless configured otherwise.
	DefaultErrorCode = 200
	// DefaultRemoteTimeout bounds remote HTTP checks.
	DefaultRemoteTimeout = 500 * time.Millisecond
	// DefaultHeartbeatTimeout is used when a heartbeat registers without a timeout.
	DefaultHeartbeatTimeout = 24 * time.Hour
	// DefaultHotReloadDebounce waits out editor save bursts before reloading.
	DefaultHotReloadDebounce = 500 * time.Millisecond
	// MaxHotReloadDebounce caps how long a config change may sit unapplied.
	MaxHotReloadDebounce = time.Minute
	// AllHeartbeatsKey is the synthetic AND over all heartbeat statuses.
	AllHeartbeatsKey = "__all__"
)

// Status code bounds accepted for the error code. 1xx codes are informational
// in net/http and the body would follow with an implicit 200.
const (
	MinStatusCode = 200
	MaxStatusCode = 599
)

// Storage driver constants
const (
	StorageDriverSQLite   = "sqlite"
	StorageDriverPostgres = "postgres"
)

// Rate limiter internal constants
const (
	// RateLimitCleanupInterval is the interval for cleaning up rate limit cache
	RateLimitCleanupInterval = 5 * time.Minute
	// RateLimitMaxCacheSize is the maximum size of the rate limit cache
	RateLimitMaxCacheSize = 10000
)

// Error code constants
const (
	ErrorCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// Path constants
const (
	PathMetrics = "/metrics"
)
