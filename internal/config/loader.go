package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/leslieo2/go-healthchecks/internal/constants"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration with precedence:
// 1. Explicitly set CLI flags (highest priority)
// 2. Environment variables
// 3. Configuration file values
// 4. Default configuration values (lowest priority)
func LoadConfig(configFile string, flags *CLIFlags) (*Config, error) {
	config := DefaultConfig()

	if configFile = ResolveConfigFile(configFile); configFile != "" {
		fileConfig, err := LoadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
		config = fileConfig
	}

	loadFromEnv(config)

	if flags != nil {
		overrideWithCLI(config, flags)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// ResolveConfigFile returns the file LoadConfig reads: the explicit path, else
// HEALTHCHECKS_CONFIG, else healthchecks.yaml when it exists. An empty result
// means defaults only.
func ResolveConfigFile(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if env := os.Getenv(constants.EnvConfigFile); env != "" {
		return env
	}
	if _, err := os.Stat(constants.DefaultConfigFile); err == nil {
		return constants.DefaultConfigFile
	}
	return ""
}

// CLIFlags carries flag values together with the flag set that owns them, so
// only flags the user actually set override other sources.
type CLIFlags struct {
	FlagSet *pflag.FlagSet

	Host            *string
	Port            *string
	MetricsPort     *string
	ReadTimeout     *time.Duration
	WriteTimeout    *time.Duration
	IdleTimeout     *time.Duration
	MaxRequestSize  *int64
	ShutdownTimeout *time.Duration
	RemoteTimeout   *time.Duration
	ErrorCode       *int
	ETag            *bool
	Parallel        *bool
	StorageDriver   *string
	StorageDSN      *string
	LogLevel        *string
	RateLimit       *bool
	RateLimitRPS    *int
	HotReload       *bool
	ReloadDebounce  *time.Duration
	TLSEnabled      *bool
	TLSCertFile     *string
	TLSKeyFile      *string
}

func (f *CLIFlags) changed(name string) bool {
	if f.FlagSet == nil {
		return false
	}
	flag := f.FlagSet.Lookup(name)
	return flag != nil && flag.Changed
}

// LoadFile loads configuration from a YAML or JSON file. Values are decoded
// over DefaultConfig, so keys missing from the file keep their defaults.
func LoadFile(filePath string) (*Config, error) {
	if !filepath.IsAbs(filePath) {
		absPath, err := filepath.Abs(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for %s: %w", filePath, err)
		}
		filePath = absPath
	}

	data, err := os.ReadFile(filepath.Clean(filePath))
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	config := DefaultConfig()
	ext := filepath.Ext(filePath)
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".json":
		err = json.Unmarshal(data, config)
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}

	return config, nil
}

// loadFromEnv loads configuration from environment variables
func loadFromEnv(config *Config) {
	if val := os.Getenv(constants.EnvHost); val != "" {
		config.Server.Host = val
	}
	if val := os.Getenv(constants.EnvPort); val != "" {
		config.Server.Port = val
	}
	if val := os.Getenv(constants.EnvMetricsPort); val != "" {
		config.Server.MetricsPort = val
	}
	envDuration(constants.EnvReadTimeout, &config.Server.ReadTimeout)
	envDuration(constants.EnvWriteTimeout, &config.Server.WriteTimeout)
	envDuration(constants.EnvIdleTimeout, &config.Server.IdleTimeout)
	envDuration(constants.EnvShutdownTimeout, &config.Server.ShutdownTimeout)
	if val := os.Getenv(constants.EnvMaxRequestSize); val != "" {
		if size, err := strconv.ParseInt(val, 10, 64); err == nil {
			config.Server.MaxRequestSize = size
		}
	}

	envDuration(constants.EnvRemoteTimeout, &config.Checks.RemoteTimeout)
	if val := os.Getenv(constants.EnvErrorCode); val != "" {
		if code, err := strconv.Atoi(val); err == nil {
			config.Checks.ErrorCode = code
		}
	}
	if val := os.Getenv(constants.EnvErrorCodeHeader); val != "" {
		config.Checks.ErrorCodeHeader = val
	}
	envBool(constants.EnvETag, &config.Checks.ETag)

	envDuration(constants.EnvHeartbeatTimeout, &config.Heartbeat.DefaultTimeout)
	if val := os.Getenv(constants.EnvStorageDriver); val != "" {
		config.Storage.Driver = val
	}
	if val := os.Getenv(constants.EnvStorageDSN); val != "" {
		config.Storage.DSN = val
	}

	if val := os.Getenv(constants.EnvLogLevel); val != "" {
		config.Observability.Logging.Level = val
	}
	envBool(constants.EnvRateLimitEnabled, &config.Security.RateLimit.Enabled)
	if val := os.Getenv(constants.EnvRateLimitRPS); val != "" {
		if rps, err := strconv.Atoi(val); err == nil {
			config.Security.RateLimit.RequestsPerSecond = rps
		}
	}

	envBool(constants.EnvHotReload, &config.HotReload.Enabled)
	envDuration(constants.EnvHotReloadDebounce, &config.HotReload.Debounce)

	envBool(constants.EnvTLSEnabled, &config.TLS.Enabled)
	if val := os.Getenv(constants.EnvTLSCertFile); val != "" {
		config.TLS.CertFile = val
	}
	if val := os.Getenv(constants.EnvTLSKeyFile); val != "" {
		config.TLS.KeyFile = val
	}
}

func envDuration(key string, dst *time.Duration) {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envBool(key string, dst *bool) {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

// overrideWithCLI overrides configuration with CLI flag values
// Only explicitly set CLI flags override other configuration sources
func overrideWithCLI(config *Config, flags *CLIFlags) {
	if flags.Host != nil && flags.changed("host") {
		config.Server.Host = *flags.Host
	}
	if flags.Port != nil && flags.changed("port") {
		config.Server.Port = *flags.Port
	}
	if flags.MetricsPort != nil && flags.changed("metrics-port") {
		config.Server.MetricsPort = *flags.MetricsPort
	}
	if flags.ReadTimeout != nil && flags.changed("read-timeout") {
		config.Server.ReadTimeout = *flags.ReadTimeout
	}
	if flags.WriteTimeout != nil && flags.changed("write-timeout") {
		config.Server.WriteTimeout = *flags.WriteTimeout
	}
	if flags.IdleTimeout != nil && flags.changed("idle-timeout") {
		config.Server.IdleTimeout = *flags.IdleTimeout
	}
	if flags.MaxRequestSize != nil && flags.changed("max-request-size") {
		config.Server.MaxRequestSize = *flags.MaxRequestSize
	}
	if flags.ShutdownTimeout != nil && flags.changed("shutdown-timeout") {
		config.Server.ShutdownTimeout = *flags.ShutdownTimeout
	}

	if flags.RemoteTimeout != nil && flags.changed("remote-timeout") {
		config.Checks.RemoteTimeout = *flags.RemoteTimeout
	}
	if flags.ErrorCode != nil && flags.changed("error-code") {
		config.Checks.ErrorCode = *flags.ErrorCode
	}
	if flags.ETag != nil && flags.changed("etag") {
		config.Checks.ETag = *flags.ETag
	}
	if flags.Parallel != nil && flags.changed("parallel") {
		config.Checks.Parallel = *flags.Parallel
	}

	if flags.StorageDriver != nil && flags.changed("storage-driver") {
		config.Storage.Driver = *flags.StorageDriver
	}
	if flags.StorageDSN != nil && flags.changed("storage-dsn") {
		config.Storage.DSN = *flags.StorageDSN
	}
	if flags.LogLevel != nil && flags.changed("log-level") {
		config.Observability.Logging.Level = *flags.LogLevel
	}

	if flags.RateLimit != nil && flags.changed("rate-limit-enabled") {
		config.Security.RateLimit.Enabled = *flags.RateLimit
	}
	if flags.RateLimitRPS != nil && flags.changed("rate-limit-rps") {
		config.Security.RateLimit.RequestsPerSecond = *flags.RateLimitRPS
	}
	if flags.HotReload != nil && flags.changed("hot-reload") {
		config.HotReload.Enabled = *flags.HotReload
	}
	if flags.ReloadDebounce != nil && flags.changed("hot-reload-debounce") {
		config.HotReload.Debounce = *flags.ReloadDebounce
	}

	if flags.TLSEnabled != nil && flags.changed("tls-enabled") {
		config.TLS.Enabled = *flags.TLSEnabled
	}
	if flags.TLSCertFile != nil && flags.changed("tls-cert-file") {
		config.TLS.CertFile = *flags.TLSCertFile
	}
	if flags.TLSKeyFile != nil && flags.changed("tls-key-file") {
		config.TLS.KeyFile = *flags.TLSKeyFile
	}
}
