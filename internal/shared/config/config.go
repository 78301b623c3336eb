package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	ObjectStoreType string
	LocalStoreDir   string
	MaxUploadBytes  int64
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	DatabaseURL     string
	Env             string
	SentryDSN       string

	Mail   MailConfig
	Letter LetterConfig

	RenderTimeout      time.Duration
	DeliveryTimeout    time.Duration
	BatchRatePerMinute int
}

// MailConfig describes the outbound mail transport.
type MailConfig struct {
	Provider string
	User     string
	Password string
	Host     string
	Port     int
	SSL      bool
	FromName string
	SelfTest bool

	OAuthClientID     string
	OAuthClientSecret string
	OAuthRefreshToken string

	ResendAPIKey string
}

// LetterConfig holds the fixed parts of the generated PDF letter.
type LetterConfig struct {
	Signature string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL not set in production; batches are kept in memory")
	}

	cfg := Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", getEnv("CORS_ORIGIN", "http://localhost:5173"))),
		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./output"),
		MaxUploadBytes:  getEnvInt64("MAX_UPLOAD_BYTES", 10<<20),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		DatabaseURL:     dbURL,
		Env:             env,
		SentryDSN:       getEnv("SENTRY_DSN", ""),
		Mail: MailConfig{
			Provider:          normalizeMailProvider(getEnv("MAIL_PROVIDER", "")),
			User:              getEnv("EMAIL_USER", ""),
			Password:          getEnv("EMAIL_PASS", ""),
			Host:              getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:              int(getEnvInt64("SMTP_PORT", 465)),
			SSL:               getEnvBool("SMTP_SSL", true),
			FromName:          getEnv("MAIL_FROM_NAME", "Mail Merge System"),
			SelfTest:          getEnvBool("MAIL_SELF_TEST", false),
			OAuthClientID:     getEnv("GMAIL_OAUTH_CLIENT_ID", ""),
			OAuthClientSecret: getEnv("GMAIL_OAUTH_CLIENT_SECRET", ""),
			OAuthRefreshToken: getEnv("GMAIL_OAUTH_REFRESH_TOKEN", ""),
			ResendAPIKey:      getEnv("RESEND_API_KEY", ""),
		},
		Letter: LetterConfig{
			Signature: getEnv("LETTER_SIGNATURE", "Conference Organizing Committee"),
		},
		RenderTimeout:      getEnvDuration("RENDER_TIMEOUT", 30*time.Second),
		DeliveryTimeout:    getEnvDuration("DELIVERY_TIMEOUT", 60*time.Second),
		BatchRatePerMinute: int(getEnvInt64("BATCH_RATE_PER_MINUTE", 30)),
	}

	if cfg.Mail.Provider == "" {
		cfg.Mail.Provider = inferMailProvider(cfg.Mail)
	}
	return cfg
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("config: %s invalid int %q, using %d", key, raw, def)
		return def
	}
	return val
}

func getEnvBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("config: %s invalid bool %q, using %t", key, raw, def)
		return def
	}
	return val
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	val, err := time.ParseDuration(raw)
	if err != nil || val <= 0 {
		log.Printf("config: %s invalid duration %q, using %s", key, raw, def)
		return def
	}
	return val
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeMailProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "smtp", "gmail":
		return "smtp"
	case "resend":
		return "resend"
	case "none", "disabled", "off":
		return "none"
	default:
		return ""
	}
}

// inferMailProvider picks a transport from whichever credentials are present.
func inferMailProvider(m MailConfig) string {
	switch {
	case m.ResendAPIKey != "":
		return "resend"
	case m.User != "":
		return "smtp"
	default:
		return "none"
	}
}
