package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration for the storefront service.
// It merges file defaults and environment overrides to support both local and deployed runs.
type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL string
	RedisURL    string

	JWTPrivateKeyPEM  string
	JWTPublicKeyPEM   string
	JWTKeyID          string
	AllowEphemeralJWT bool

	BcryptCost int

	SessionTTL time.Duration
	StepUpTTL  time.Duration

	// Download authorization knobs. Secrets fall back to AuthSecret so a
	// single-secret deployment still works.
	AuthSecret          string
	DownloadTokenSecret string
	IPHashSecret        string
	DownloadLimit       int
	DownloadWindow      time.Duration
	DownloadTokenTTL    time.Duration
	StaleDownloadAge    time.Duration
	AllowedFileHosts    []string

	MintThrottleMax  int
	MintThrottleWin  time.Duration
	LoginThrottleMax int
	LoginThrottleWin time.Duration

	MaxDBConns         int32
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	ReaperInterval     time.Duration
}

// configFile mirrors the YAML schema used by configs/default.yaml.
// It is intentionally separate from Config so runtime-only fields stay internal.
type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		PostgresURL string `yaml:"postgres_url"`
		RedisURL    string `yaml:"redis_url"`
	} `yaml:"dependencies"`
	Downloads struct {
		Limit           int      `yaml:"limit"`
		WindowDays      int      `yaml:"window_days"`
		TokenTTLSeconds int      `yaml:"token_ttl_seconds"`
		StaleAgeHours   int      `yaml:"stale_age_hours"`
		AllowedHosts    []string `yaml:"allowed_hosts"`
	} `yaml:"downloads"`
}

// LoadConfig resolves configuration in priority order: defaults -> file -> env.
// This order keeps local bootstrap simple while allowing environment-specific overrides.
func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:          "storefront",
		HTTPPort:           8080,
		GRPCPort:           9090,
		JWTKeyID:           "storefront-key-1",
		AllowEphemeralJWT:  true,
		BcryptCost:         12,
		SessionTTL:         24 * time.Hour,
		StepUpTTL:          10 * time.Minute,
		DownloadLimit:      3,
		DownloadWindow:     14 * 24 * time.Hour,
		DownloadTokenTTL:   300 * time.Second,
		StaleDownloadAge:   24 * time.Hour,
		MintThrottleMax:    30,
		MintThrottleWin:    time.Minute,
		LoginThrottleMax:   20,
		LoginThrottleWin:   time.Minute,
		MaxDBConns:         20,
		OutboxPollInterval: 2 * time.Second,
		OutboxBatchSize:    100,
		ReaperInterval:     time.Hour,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		if f.Dependencies.PostgresURL != "" {
			cfg.DatabaseURL = f.Dependencies.PostgresURL
		}
		if f.Dependencies.RedisURL != "" {
			cfg.RedisURL = f.Dependencies.RedisURL
		}
		if f.Downloads.Limit > 0 {
			cfg.DownloadLimit = f.Downloads.Limit
		}
		if f.Downloads.WindowDays > 0 {
			cfg.DownloadWindow = time.Duration(f.Downloads.WindowDays) * 24 * time.Hour
		}
		if f.Downloads.TokenTTLSeconds > 0 {
			cfg.DownloadTokenTTL = time.Duration(f.Downloads.TokenTTLSeconds) * time.Second
		}
		if f.Downloads.StaleAgeHours > 0 {
			cfg.StaleDownloadAge = time.Duration(f.Downloads.StaleAgeHours) * time.Hour
		}
		if len(f.Downloads.AllowedHosts) > 0 {
			cfg.AllowedFileHosts = f.Downloads.AllowedHosts
		}
	}

	cfg.DatabaseURL = envOrDefault("DB_URL", envOrDefault("POSTGRES_URL", cfg.DatabaseURL))
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.JWTPrivateKeyPEM = envOrDefault("JWT_PRIVATE_KEY_PEM", cfg.JWTPrivateKeyPEM)
	cfg.JWTPublicKeyPEM = envOrDefault("JWT_PUBLIC_KEY_PEM", cfg.JWTPublicKeyPEM)
	cfg.JWTKeyID = envOrDefault("JWT_KEY_ID", cfg.JWTKeyID)
	cfg.AllowEphemeralJWT = envBool("JWT_ALLOW_EPHEMERAL", cfg.AllowEphemeralJWT)

	cfg.AuthSecret = envOrDefault("AUTH_SECRET", cfg.AuthSecret)
	cfg.DownloadTokenSecret = envOrDefault("DOWNLOAD_TOKEN_SECRET", cfg.AuthSecret)
	cfg.IPHashSecret = envOrDefault("IP_HASH_SECRET", cfg.AuthSecret)
	// DIGITAL_PRODUCT_FILE_HOSTS is the legacy alias for the allow-list.
	cfg.AllowedFileHosts = envCSV("DOWNLOAD_FILE_ALLOWED_HOSTS", envCSV("DIGITAL_PRODUCT_FILE_HOSTS", cfg.AllowedFileHosts))

	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.BcryptCost = envInt("BCRYPT_ROUNDS", cfg.BcryptCost)
	cfg.MaxDBConns = int32(envInt("DB_MAX_CONNS", int(cfg.MaxDBConns)))

	cfg.SessionTTL = time.Duration(envInt("SESSION_EXPIRY_HOURS", int(cfg.SessionTTL.Hours()))) * time.Hour
	cfg.StepUpTTL = time.Duration(envInt("STEP_UP_TTL_SECONDS", int(cfg.StepUpTTL.Seconds()))) * time.Second
	cfg.DownloadLimit = envInt("DOWNLOAD_LIMIT", cfg.DownloadLimit)
	cfg.DownloadWindow = time.Duration(envInt("DOWNLOAD_WINDOW_DAYS", int(cfg.DownloadWindow.Hours()/24))) * 24 * time.Hour
	cfg.DownloadTokenTTL = time.Duration(envInt("DOWNLOAD_TOKEN_TTL_SECONDS", int(cfg.DownloadTokenTTL.Seconds()))) * time.Second
	cfg.StaleDownloadAge = time.Duration(envInt("STALE_DOWNLOAD_MAX_AGE_HOURS", int(cfg.StaleDownloadAge.Hours()))) * time.Hour
	cfg.MintThrottleMax = envInt("DOWNLOAD_MINT_THROTTLE_THRESHOLD", cfg.MintThrottleMax)
	cfg.MintThrottleWin = time.Duration(envInt("DOWNLOAD_MINT_THROTTLE_WINDOW_SECONDS", int(cfg.MintThrottleWin.Seconds()))) * time.Second
	cfg.LoginThrottleMax = envInt("LOGIN_THROTTLE_THRESHOLD", cfg.LoginThrottleMax)
	cfg.LoginThrottleWin = time.Duration(envInt("LOGIN_THROTTLE_WINDOW_SECONDS", int(cfg.LoginThrottleWin.Seconds()))) * time.Second
	cfg.OutboxPollInterval = time.Duration(envInt("OUTBOX_POLL_SECONDS", int(cfg.OutboxPollInterval.Seconds()))) * time.Second
	cfg.OutboxBatchSize = envInt("OUTBOX_BATCH_SIZE", cfg.OutboxBatchSize)
	cfg.ReaperInterval = time.Duration(envInt("REAPER_INTERVAL_SECONDS", int(cfg.ReaperInterval.Seconds()))) * time.Second

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing DB_URL/POSTGRES_URL")
	}
	if cfg.RedisURL == "" {
		return Config{}, fmt.Errorf("missing REDIS_URL")
	}
	if cfg.AuthSecret == "" {
		return Config{}, fmt.Errorf("missing AUTH_SECRET")
	}
	if (cfg.JWTPrivateKeyPEM == "" || cfg.JWTPublicKeyPEM == "") && !cfg.AllowEphemeralJWT {
		return Config{}, fmt.Errorf("missing JWT_PRIVATE_KEY_PEM or JWT_PUBLIC_KEY_PEM")
	}

	return cfg, nil
}

// envOrDefault returns an env var when present, otherwise the provided fallback.
func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

// envInt parses integer env vars with safe fallback on empty/invalid values.
func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// envBool parses common boolean env forms while keeping a deterministic fallback.
func envBool(name string, fallback bool) bool {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}

// envCSV parses comma-separated env vars and removes empty segments.
func envCSV(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		parts = append(parts, trimmed)
	}
	if len(parts) == 0 {
		return fallback
	}
	return parts
}
