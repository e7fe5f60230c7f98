package internal

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Env           string
	LogLevel      string
	Port          uint16
	AllowedDomain string // Sender addresses must contain this substring
	MailProvider  string // "graph", "smtp" or "mock"
	Graph         GraphConfig
	SMTP          SMTPConfig
	NatsURL       string   // Empty disables event publishing
	CORSOrigins   []string // Origins allowed to call the API
	MaxUploadMB   int64
	DefaultDelay  int // Recommended inter-send delay in seconds
}

// GraphConfig holds Azure AD application credentials for Microsoft Graph
// delivery (client-credentials flow).
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// SMTPConfig holds SMTP relay settings for the alternative provider.
type SMTPConfig struct {
	Host     string
	Port     uint16
	Username string
	Password string
}

func NewConfig() (*Config, error) {
	// Try to load .env from current directory, then walk up to find it (max 2 levels)
	err := godotenv.Load()
	if err != nil {
		dir, _ := os.Getwd()
		found := false
		for i := 0; i < 2; i++ {
			dir = filepath.Join(dir, "..")
			if err := godotenv.Load(filepath.Join(dir, ".env")); err == nil {
				found = true
				break
			}
		}
		if !found {
			slog.Default().Warn("Warning: .env file not found, using environment variables and defaults")
		}
	}

	cfg := &Config{
		Env:           getEnv("ENV", "dev"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Port:          getEnvUint16("PORT", 3000),
		AllowedDomain: getEnv("ALLOWED_SENDER_DOMAIN", "@festal-inc.com"),
		MailProvider:  getEnv("MAIL_PROVIDER", "graph"),
		Graph: GraphConfig{
			TenantID:     getEnv("AZURE_TENANT_ID", ""),
			ClientID:     getEnv("AZURE_CLIENT_ID", ""),
			ClientSecret: getEnv("AZURE_CLIENT_SECRET", ""),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "localhost"),
			Port:     getEnvUint16("SMTP_PORT", 1025),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
		},
		NatsURL:      getEnv("NATS_URL", ""),
		CORSOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		MaxUploadMB:  getEnvInt64("MAX_UPLOAD_MB", 10),
		DefaultDelay: getEnvInt("DEFAULT_DELAY_SECONDS", 5),
	}

	// Validate env
	validEnv := cfg.Env == "dev" || cfg.Env == "prod"
	if !validEnv {
		slog.Default().Warn("Invalid environment. Using default: prod", slog.String("env", cfg.Env))
		cfg.Env = "prod"
	}

	// Validate log level
	validLevel := cfg.LogLevel == "info" || cfg.LogLevel == "debug" || cfg.LogLevel == "warn" || cfg.LogLevel == "error"
	if !validLevel {
		slog.Default().Warn("Invalid log level. Using default: info", slog.String("value", cfg.LogLevel))
		cfg.LogLevel = "info"
	}

	switch cfg.MailProvider {
	case "graph", "smtp", "mock":
	default:
		return nil, fmt.Errorf("invalid MAIL_PROVIDER %q (expected graph, smtp or mock)", cfg.MailProvider)
	}

	// The mock provider is a dev convenience only
	if cfg.Env == "prod" && cfg.MailProvider == "mock" {
		return nil, fmt.Errorf("MAIL_PROVIDER=mock is not allowed in production")
	}

	if cfg.MailProvider == "graph" {
		if cfg.Graph.TenantID == "" || cfg.Graph.ClientID == "" || cfg.Graph.ClientSecret == "" {
			return nil, fmt.Errorf("AZURE_TENANT_ID, AZURE_CLIENT_ID and AZURE_CLIENT_SECRET required when using the graph provider")
		}
	}

	if cfg.MaxUploadMB <= 0 {
		return nil, fmt.Errorf("MAX_UPLOAD_MB must be positive")
	}
	if cfg.DefaultDelay < 0 {
		return nil, fmt.Errorf("DEFAULT_DELAY_SECONDS must be non-negative")
	}

	return cfg, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvUint16(key string, defaultValue uint16) uint16 {
	if value := os.Getenv(key); value != "" {
		var intValue uint16
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		var intValue int64
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}
