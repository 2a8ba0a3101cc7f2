package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        string
	ServiceName string
	Version     string

	// Remote REST API
	UserAPIBaseURL         string
	AuthAPIBaseURL         string
	DownstreamReadTimeout  time.Duration
	DownstreamWriteTimeout time.Duration

	// Session
	SessionTTL    time.Duration
	SessionCookie string
	CookieSecure  bool

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RabbitURL     string

	// Security
	AllowedOrigins  []string
	AuthRateLimit   int
	AuthRateWindow  time.Duration
	MaxUploadBytes  int64
	ImportNoticeTTL time.Duration
	SnackbarTTL     time.Duration

	// Tracing
	TracingEnabled bool
	OTLPEndpoint   string
}

// Load reads configuration from the environment. A .env file is optional.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:           getEnv("APP_ENV", "dev"),
		Port:          getEnv("HTTP_PORT", "8080"),
		ServiceName:   getEnv("SERVICE_NAME", "user-console"),
		Version:       getEnv("APP_VERSION", "dev"),
		SessionCookie: getEnv("SESSION_COOKIE", "console_session"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RabbitURL:     os.Getenv("RABBIT_URL"),
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}
	cfg.CookieSecure = cfg.Env == "prod"

	cfg.UserAPIBaseURL = strings.TrimRight(getEnv("USER_API_BASE_URL", "http://localhost:5000"), "/")
	cfg.AuthAPIBaseURL = strings.TrimRight(getEnv("AUTH_API_BASE_URL", cfg.UserAPIBaseURL), "/")

	var err error
	if cfg.DownstreamReadTimeout, err = getDuration("DOWNSTREAM_READ_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	// imports of large spreadsheets are slow on the remote side
	if cfg.DownstreamWriteTimeout, err = getDuration("DOWNSTREAM_WRITE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getDuration("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.AuthRateWindow, err = getDuration("AUTH_RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if cfg.ImportNoticeTTL, err = getDuration("IMPORT_NOTICE_TTL", 900*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.SnackbarTTL, err = getDuration("SNACKBAR_TTL", 2*time.Second); err != nil {
		return nil, err
	}

	if cfg.RedisDB, err = getInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.AuthRateLimit, err = getInt("AUTH_RATE_LIMIT", 10); err != nil {
		return nil, err
	}
	maxUpload, err := getInt("MAX_UPLOAD_BYTES", 10<<20)
	if err != nil {
		return nil, err
	}
	cfg.MaxUploadBytes = int64(maxUpload)

	if cfg.TracingEnabled, err = getBool("TRACING_ENABLED", false); err != nil {
		return nil, err
	}

	cfg.AllowedOrigins = splitList(getEnv("ALLOWED_ORIGINS",
		"http://localhost:8080,http://127.0.0.1:8080,http://localhost:"+cfg.Port))

	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("SESSION_TTL must be positive")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q: %w", key, v, err)
	}
	return n, nil
}

func getBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid bool for %s: %q: %w", key, v, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
