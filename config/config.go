package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Cookie   CookieConfig
	Telegram TelegramConfig
	Schedule ScheduleConfig
	AWS      AWSConfig
	Groq     GroqConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing settings for the access/refresh pair.
type JWTConfig struct {
	Secret        string
	AccessMinutes int
	RefreshDays   int
}

// CookieConfig controls the refresh-token cookie.
type CookieConfig struct {
	Name     string
	Path     string
	Secure   bool
	SameSite string // Lax, Strict or None
}

// TelegramConfig holds Bot API settings.
type TelegramConfig struct {
	BotToken      string
	APIBaseURL    string // e.g. https://api.telegram.org
	BotUsername   string // without leading @
	BotID         int64  // 0 when not configured
	WebhookSecret string // compared with X-Telegram-Bot-Api-Secret-Token when set
	MiniAppURL    string // launched from the /start welcome button
	DeepLinkTTL   time.Duration
	SendTimeout   time.Duration
	NotifyTimeout time.Duration
}

// ScheduleConfig controls deferred quiz dispatch.
type ScheduleConfig struct {
	Location     *time.Location
	RunInServer  bool
	PollInterval time.Duration
}

// AWSConfig holds credentials and the bucket used for analytics exports.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	ExportsBucket        string
	PresignExpireMinutes int
}

// GroqConfig holds the OpenAI-compatible completion API used for quiz drafts.
type GroqConfig struct {
	APIKey       string
	APIURL       string
	Model        string
	AllowedUsers []string // emails; empty means nobody
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// DeepLink returns the t.me start link for a link token.
func (c TelegramConfig) DeepLink(token string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", c.BotUsername, token)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Load("env")

	botID, err := getEnvInt64("TELEGRAM_BOT_ID", 0)
	if err != nil {
		return nil, fmt.Errorf("TELEGRAM_BOT_ID: %w", err)
	}
	tz := getEnv("SCHEDULE_TIMEZONE", "America/Manaus")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("SCHEDULE_TIMEZONE %q: %w", tz, err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "pollminiapp"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:        getEnv("JWT_SECRET", "change-me-in-production"),
			AccessMinutes: getEnvInt("JWT_ACCESS_MINUTES", 1440),
			RefreshDays:   getEnvInt("REFRESH_TTL_DAYS", 14),
		},
		Cookie: CookieConfig{
			Name:     getEnv("REFRESH_COOKIE_NAME", "refresh_token"),
			Path:     getEnv("REFRESH_COOKIE_PATH", "/api/auth/token/refresh"),
			Secure:   getEnvBool("COOKIE_SECURE", true),
			SameSite: getEnv("COOKIE_SAMESITE", "Lax"),
		},
		Telegram: TelegramConfig{
			BotToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
			APIBaseURL:    getEnv("TELEGRAM_API_BASE", "https://api.telegram.org"),
			BotUsername:   strings.TrimPrefix(getEnv("TELEGRAM_BOT_USERNAME", "PollsICompBot"), "@"),
			BotID:         botID,
			WebhookSecret: getEnv("TELEGRAM_WEBHOOK_SECRET", ""),
			MiniAppURL:    getEnv("TELEGRAM_MINIAPP_URL", "https://poll-miniapp.vercel.app"),
			DeepLinkTTL:   time.Duration(getEnvInt("DEEP_LINK_TTL_MINUTES", 15)) * time.Minute,
			SendTimeout:   time.Duration(getEnvInt("TELEGRAM_SEND_TIMEOUT_SEC", 10)) * time.Second,
			NotifyTimeout: time.Duration(getEnvInt("TELEGRAM_NOTIFY_TIMEOUT_SEC", 5)) * time.Second,
		},
		Schedule: ScheduleConfig{
			Location:     loc,
			RunInServer:  getEnvBool("RUN_SCHEDULER_IN_SERVER", false),
			PollInterval: time.Duration(getEnvInt("SCHEDULE_POLL_INTERVAL_SEC", 5)) * time.Second,
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			ExportsBucket:        getEnv("AWS_S3_EXPORTS_BUCKET", "pollminiapp-exports"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Groq: GroqConfig{
			APIKey:       getEnv("GROQ_API_KEY", ""),
			APIURL:       getEnv("GROQ_API_URL", "https://api.groq.com/openai/v1"),
			Model:        getEnv("GROQ_MODEL", "llama-3.1-8b-instant"),
			AllowedUsers: splitTrim(getEnv("GROQ_ALLOWED_USERS", ""), ","),
		},
	}
	if cfg.Telegram.BotToken == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func getEnvBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if v == "" {
		return fallback
	}
	switch v {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitTrim(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
