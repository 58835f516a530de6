package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	// Inbox
	DataMode            string // sample | gmail
	SampleDataPath      string // empty = embedded dataset
	RandomSeed          int64  // 0 = time based
	ReplyDelay          time.Duration
	NewEmailRate        float64
	GmailMaxResults     int
	GmailTimeout        time.Duration
	FetchWorkers        int
	AutoReply           bool
	ConfidenceThreshold int

	// OAuth - Google
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	FrontendURL        string

	// Session
	SessionSecret string
	SessionTTL    time.Duration

	// Redis (OAuth state); empty keeps state in memory
	RedisURL string

	// HTTP
	AllowedOrigins    []string
	ProviderRateLimit int // requests per minute per client on provider routes
	SSEHeartbeat      time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Inbox
		DataMode:            strings.ToLower(getEnv("DATA_MODE", "sample")),
		SampleDataPath:      getEnv("SAMPLE_DATA_PATH", ""),
		RandomSeed:          int64(getEnvInt("RANDOM_SEED", 0)),
		ReplyDelay:          time.Duration(getEnvInt("REPLY_DELAY_MS", 1500)) * time.Millisecond,
		NewEmailRate:        getEnvFloat("REFRESH_NEW_EMAIL_RATE", 0.1),
		GmailMaxResults:     getEnvInt("GMAIL_MAX_RESULTS", 50),
		GmailTimeout:        time.Duration(getEnvInt("GMAIL_TIMEOUT_SEC", 30)) * time.Second,
		FetchWorkers:        getEnvInt("GMAIL_FETCH_WORKERS", 4),
		AutoReply:           getEnvBool("AI_AUTO_REPLY", true),
		ConfidenceThreshold: getEnvInt("CONFIDENCE_THRESHOLD", 80),

		// OAuth - Google
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/v1/oauth/google/callback"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),

		// Session
		SessionSecret: getEnv("SESSION_SECRET", ""),
		SessionTTL:    time.Duration(getEnvInt("SESSION_TTL_HOUR", 24)) * time.Hour,

		RedisURL: getEnv("REDIS_URL", ""),

		// HTTP
		AllowedOrigins:    getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		ProviderRateLimit: getEnvInt("PROVIDER_RATE_LIMIT", 30),
		SSEHeartbeat:      time.Duration(getEnvInt("SSE_HEARTBEAT_SEC", 30)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.DataMode {
	case "sample", "gmail":
	default:
		errs = append(errs, fmt.Errorf("DATA_MODE must be sample or gmail, got %q", c.DataMode))
	}
	if c.NewEmailRate < 0 || c.NewEmailRate > 1 {
		errs = append(errs, fmt.Errorf("REFRESH_NEW_EMAIL_RATE must be within [0,1], got %v", c.NewEmailRate))
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 100 {
		errs = append(errs, fmt.Errorf("CONFIDENCE_THRESHOLD must be within [0,100], got %d", c.ConfidenceThreshold))
	}
	if c.GmailMaxResults <= 0 {
		errs = append(errs, errors.New("GMAIL_MAX_RESULTS must be positive"))
	}
	if c.DataMode == "gmail" && !c.GoogleConfigured() {
		errs = append(errs, errors.New("DATA_MODE=gmail requires GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET"))
	}
	if c.GoogleConfigured() && c.SessionSecret == "" && c.IsProduction() {
		errs = append(errs, errors.New("SESSION_SECRET is required in production"))
	}

	return errors.Join(errs...)
}

// GoogleConfigured reports whether Gmail sign-in can be offered.
func (c *Config) GoogleConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := parts[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
