package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	RunModeOnce  = "once"
	RunModeServe = "serve"

	DedupStore  = "store"
	DedupRedis  = "redis"
	DedupMemory = "memory"

	minHistoryLimit = 10
)

type Config struct {
	// Mongo
	MongoURI string
	MongoDB  string

	// Process
	Port       string
	RunMode    string
	LogLevel   string
	LogFormat  string
	TrustProxy bool

	// Auth
	JWTSecret string
	JWTExpiry time.Duration

	// Engine
	SettingsFile string
	HistoryLimit int
	DedupBackend string
	DedupWindow  time.Duration

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Email
	MailgunDomain  string
	MailgunAPIKey  string
	MailgunAPIBase string
	EmailFrom      string
	AppBaseURL     string

	// MQTT
	MQTTBrokerURL   string
	MQTTClientID    string
	MQTTTopicPrefix string
}

// Load reads the process configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:         getEnv("MONGO_DB", "fleet"),
		Port:            getEnv("PORT", "8080"),
		RunMode:         strings.ToLower(getEnv("RUN_MODE", RunModeOnce)),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		TrustProxy:      getEnvBool("TRUST_PROXY", false),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTExpiry:       getEnvDuration("JWT_EXPIRY", 24*time.Hour),
		SettingsFile:    getEnv("SETTINGS_FILE", ""),
		HistoryLimit:    getEnvInt("HISTORY_LIMIT", minHistoryLimit),
		DedupBackend:    strings.ToLower(getEnv("DEDUP_BACKEND", DedupStore)),
		DedupWindow:     getEnvDuration("DEDUP_WINDOW", 24*time.Hour),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		MailgunDomain:   getEnv("MAILGUN_DOMAIN", ""),
		MailgunAPIKey:   getEnv("MAILGUN_API_KEY", ""),
		MailgunAPIBase:  getEnv("MAILGUN_API_BASE", ""),
		EmailFrom:       getEnv("EMAIL_FROM", "Fleet Maintenance <alerts@localhost>"),
		AppBaseURL:      strings.TrimRight(getEnv("APP_BASE_URL", "http://localhost:3000"), "/"),
		MQTTBrokerURL:   getEnv("MQTT_BROKER_URL", ""),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", "fleet-maintenance-alerts"),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", "fleet/alerts"),
	}

	if cfg.HistoryLimit < minHistoryLimit {
		cfg.HistoryLimit = minHistoryLimit
	}

	switch cfg.RunMode {
	case RunModeOnce, RunModeServe:
	default:
		return nil, fmt.Errorf("invalid RUN_MODE %q: want %s or %s", cfg.RunMode, RunModeOnce, RunModeServe)
	}
	if cfg.RunMode == RunModeServe && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required when RUN_MODE is %s", RunModeServe)
	}

	switch cfg.DedupBackend {
	case DedupStore, DedupRedis, DedupMemory:
	default:
		return nil, fmt.Errorf("invalid DEDUP_BACKEND %q: want %s, %s or %s", cfg.DedupBackend, DedupStore, DedupRedis, DedupMemory)
	}

	if cfg.DedupWindow <= 0 {
		return nil, fmt.Errorf("invalid DEDUP_WINDOW %s: must be positive", cfg.DedupWindow)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
