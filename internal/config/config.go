package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

type Config struct {
	Server      ServerConfig    `json:"server"`
	Storage     StorageConfig   `json:"storage"`
	Logging     LoggingConfig   `json:"logging"`
	CORS        CORSConfig      `json:"cors"`
	RateLimit   RateLimitConfig `json:"rateLimit"`
	Auth        AuthConfig      `json:"auth"`
	Modules     ModulesConfig   `json:"modules"`
	Tracing     TracingConfig   `json:"tracing"`
	Environment string          `json:"environment"`
}

type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// RequestSizeLimitMB caps request bodies on every API route.
	RequestSizeLimitMB int `json:"requestSizeLimitMB"`
}

type StorageConfig struct {
	Driver         string `json:"driver"`
	DatabaseURL    string `json:"databaseURL"`
	MaxConnections int    `json:"maxConnections"`
	MigrateOnStart bool   `json:"migrateOnStart"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

type CORSConfig struct {
	AllowedOrigins  []string `json:"allowedOrigins"`
	AllowAllOrigins bool     `json:"allowAllOrigins"`
}

type RateLimitConfig struct {
	RequestsPerWindow int           `json:"requestsPerWindow"`
	Window            time.Duration `json:"window"`
	TrustedProxyCIDRs []string      `json:"trustedProxyCIDRs"`
}

type AuthConfig struct {
	JWTSecret        string        `json:"jwtSecret"`
	JWTIssuer        string        `json:"jwtIssuer"`
	JWTExpiry        time.Duration `json:"jwtExpiry"`
	EnforceOwnership bool          `json:"enforceOwnership"`
}

type ModulesConfig struct {
	// CatalogPath overrides the embedded catalog seed when set.
	CatalogPath  string `json:"catalogPath"`
	StrictConfig bool   `json:"strictConfig"`
}

type TracingConfig struct {
	Enabled      bool    `json:"enabled"`
	Exporter     string  `json:"exporter"`
	ServiceName  string  `json:"serviceName"`
	OTLPEndpoint string  `json:"otlpEndpoint"`
	SampleRate   float64 `json:"sampleRate"`
}

// Defaults returns the configuration used when neither a file nor the
// environment provides a value.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               8080,
			RequestSizeLimitMB: 5,
		},
		Storage: StorageConfig{
			Driver:         StorageMemory,
			MaxConnections: 25,
			MigrateOnStart: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 5000,
			Window:            15 * time.Minute,
		},
		Auth: AuthConfig{
			JWTIssuer: "eventdeck",
			JWTExpiry: 24 * time.Hour,
		},
		Tracing: TracingConfig{
			Exporter:    "stdout",
			ServiceName: "eventdeck-server",
			SampleRate:  1.0,
		},
		Environment: "development",
	}
}

// Load builds the configuration from environment variables over Defaults.
func Load() (Config, error) {
	cfg := Defaults()
	applyEnv(&cfg)
	if err := finalize(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("SERVER_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnvInt("SERVER_PORT", cfg.Server.Port)
	cfg.Server.RequestSizeLimitMB = getEnvInt("REQUEST_SIZE_LIMIT", cfg.Server.RequestSizeLimitMB)

	cfg.Storage.Driver = strings.ToLower(getEnv("STORAGE_DRIVER", cfg.Storage.Driver))
	cfg.Storage.DatabaseURL = getEnv("DATABASE_URL", cfg.Storage.DatabaseURL)
	cfg.Storage.MaxConnections = getEnvInt("DATABASE_MAX_CONNECTIONS", cfg.Storage.MaxConnections)
	cfg.Storage.MigrateOnStart = getEnvBool("DATABASE_MIGRATE_ON_START", cfg.Storage.MigrateOnStart)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	if origins := getEnv("ALLOWED_ORIGINS", ""); origins != "" {
		cfg.CORS.AllowedOrigins = splitList(origins)
	}

	cfg.RateLimit.RequestsPerWindow = getEnvInt("RATE_LIMIT_REQUESTS", cfg.RateLimit.RequestsPerWindow)
	cfg.RateLimit.Window = time.Duration(getEnvInt("RATE_LIMIT_WINDOW_MINUTES", int(cfg.RateLimit.Window/time.Minute))) * time.Minute
	if cidrs := getEnv("TRUSTED_PROXY_CIDRS", ""); cidrs != "" {
		cfg.RateLimit.TrustedProxyCIDRs = splitList(cidrs)
	}

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTIssuer = getEnv("JWT_ISSUER", cfg.Auth.JWTIssuer)
	cfg.Auth.JWTExpiry = time.Duration(getEnvInt("JWT_EXPIRY_HOURS", int(cfg.Auth.JWTExpiry/time.Hour))) * time.Hour
	cfg.Auth.EnforceOwnership = getEnvBool("AUTH_ENFORCE_OWNERSHIP", cfg.Auth.EnforceOwnership)

	cfg.Modules.CatalogPath = getEnv("MODULES_CATALOG_PATH", cfg.Modules.CatalogPath)
	cfg.Modules.StrictConfig = getEnvBool("MODULES_STRICT_CONFIG", cfg.Modules.StrictConfig)

	cfg.Tracing.Enabled = getEnvBool("TRACING_ENABLED", cfg.Tracing.Enabled)
	cfg.Tracing.Exporter = getEnv("TRACING_EXPORTER", cfg.Tracing.Exporter)
	cfg.Tracing.ServiceName = getEnv("TRACING_SERVICE_NAME", cfg.Tracing.ServiceName)
	cfg.Tracing.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Tracing.OTLPEndpoint)
	cfg.Tracing.SampleRate = getEnvFloat("TRACING_SAMPLE_RATE", cfg.Tracing.SampleRate)

	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)
}

func finalize(cfg *Config) error {
	switch cfg.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if cfg.Storage.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q (must be memory or postgres)", cfg.Storage.Driver)
	}

	if cfg.Server.RequestSizeLimitMB <= 0 {
		return fmt.Errorf("REQUEST_SIZE_LIMIT must be positive")
	}
	if cfg.RateLimit.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW_MINUTES must be positive")
	}

	switch cfg.Environment {
	case "development", "test":
		cfg.CORS.AllowAllOrigins = true
	default:
		cfg.CORS.AllowAllOrigins = false
		if len(cfg.CORS.AllowedOrigins) == 0 {
			return fmt.Errorf("ALLOWED_ORIGINS must be set outside development")
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvFloat(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			out = append(out, item)
		}
	}
	return out
}
