package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config carries runtime settings for the dashboard service.
type Config struct {
	AppEnv    string
	LogLevel  string
	LogFormat string

	HTTPListenAddr string
	PublicBasePath string

	DatabaseURL    string
	DatabaseSchema string
	SQLitePath     string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTLS      bool

	JWTSecret string
	TokenTTL  time.Duration

	TurnstileSecret string

	BotAPIBaseURL string
	BotAPIKey     string
	BotAPITimeout time.Duration

	TelegramVerifyTokens bool

	PaymentWebhookUsernameMD5 string
	PaymentWebhookPasswordMD5 string

	TransactionTTL   time.Duration
	MetricsNamespace string
}

// ProxyConfig carries settings for the edge proxy binary.
type ProxyConfig struct {
	ListenAddr  string
	BackendURL  string
	APISecret   string
	StripPrefix string
	LogLevel    string
}

// Load reads dashboard configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		HTTPListenAddr: getEnv("HTTP_LISTEN_ADDR", ":8080"),
		PublicBasePath: getEnv("PUBLIC_BASE_PATH", ""),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DatabaseSchema: getEnv("DATABASE_SCHEMA", ""),
		SQLitePath:     getEnv("SQLITE_PATH", "botpanel.db"),

		RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		TurnstileSecret: os.Getenv("TURNSTILE_SECRET"),

		BotAPIBaseURL: getEnv("BOT_API_URL", ""),
		BotAPIKey:     os.Getenv("BOT_API_KEY"),

		PaymentWebhookUsernameMD5: strings.ToLower(os.Getenv("PAYMENT_WEBHOOK_USERNAME_MD5")),
		PaymentWebhookPasswordMD5: strings.ToLower(os.Getenv("PAYMENT_WEBHOOK_PASSWORD_MD5")),

		MetricsNamespace: getEnv("METRICS_NAMESPACE", "botpanel"),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.RedisTLS, err = getEnvBool("REDIS_TLS", false); err != nil {
		return nil, err
	}
	if cfg.TokenTTL, err = getEnvDuration("TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.BotAPITimeout, err = getEnvDuration("BOT_API_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.TransactionTTL, err = getEnvDuration("TRANSACTION_TTL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.TelegramVerifyTokens, err = getEnvBool("TELEGRAM_VERIFY_TOKENS", false); err != nil {
		return nil, err
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

// LoadProxy reads edge proxy configuration from the environment.
func LoadProxy() (*ProxyConfig, error) {
	cfg := &ProxyConfig{
		ListenAddr:  getEnv("PROXY_LISTEN_ADDR", ":8787"),
		BackendURL:  getEnv("BACKEND_URL", "https://api.botpanel.id"),
		APISecret:   os.Getenv("API_SECRET"),
		StripPrefix: getEnv("PROXY_STRIP_PREFIX", "/api/proxy"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
	}
	if strings.TrimSpace(cfg.BackendURL) == "" {
		return nil, fmt.Errorf("BACKEND_URL is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}
