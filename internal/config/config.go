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
	App struct {
		ENV string
	}

	Log struct {
		Level     string
		Format    string
		Component string
		Source    bool
	}

	DB struct {
		Driver   string
		DSN      string
		Host     string
		Port     string
		User     string
		Password string
		Name     string
	}

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	GRPC struct {
		Host string
		Port string
	}

	HTTP struct {
		Addr string
	}

	Telegram struct {
		Token         string
		Mode          string // poll | webhook
		WebhookURL    string
		WebhookSecret string
		AdminIDs      []int64
	}

	Admin struct {
		TokenHash string // bcrypt hash of the admin bearer token
	}

	Scheduler struct {
		Enabled         bool
		Interval        time.Duration
		RetryInterval   time.Duration
		BatchMin        int
		BatchMax        int
		LikeDelayMin    time.Duration
		LikeDelayMax    time.Duration
		ProfileDelayMin time.Duration
		ProfileDelayMax time.Duration
	}

	Referral struct {
		Threshold  int
		RewardDays int
		MaxUses    int
	}

	Sentry struct {
		DSN string
	}
}

// Error describes a configuration value that failed validation.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// New builds the configuration from the environment. A .env file in the
// working directory is loaded first when present.
func New() *Config {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.App.ENV = getEnvDefault("APP_ENV", "production")

	// Logger
	cfg.Log.Level = getEnvDefault("LOG_LEVEL", "info")
	cfg.Log.Format = getEnvDefault("LOG_FORMAT", "text")
	cfg.Log.Component = getEnvDefault("LOG_COMPONENT", "matchbot")
	cfg.Log.Source = isTruthy(os.Getenv("LOG_SOURCE"))

	// Database
	cfg.DB.Driver = strings.ToLower(getEnvDefault("DB_DRIVER", "mysql"))
	cfg.DB.DSN = os.Getenv("DB_DSN")
	if cfg.DB.DSN == "" {
		cfg.DB.DSN = buildDSN(cfg)
	}

	// Redis
	cfg.Redis.Addr = getEnvDefault("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnvDefault("REDIS_PASSWORD", "")
	cfg.Redis.DB = getEnvInt("REDIS_DB", 0)

	// gRPC
	cfg.GRPC.Host = getEnvDefault("GRPC_HOST", "127.0.0.1")
	cfg.GRPC.Port = getEnvDefault("GRPC_PORT", "50051")

	// HTTP
	cfg.HTTP.Addr = getEnvDefault("HTTP_ADDR", ":8080")

	// Telegram
	cfg.Telegram.Token = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.Telegram.Mode = strings.ToLower(getEnvDefault("TELEGRAM_MODE", "poll"))
	cfg.Telegram.WebhookURL = os.Getenv("TELEGRAM_WEBHOOK_URL")
	cfg.Telegram.WebhookSecret = os.Getenv("TELEGRAM_WEBHOOK_SECRET")
	cfg.Telegram.AdminIDs = parseIDs(os.Getenv("TELEGRAM_ADMIN_IDS"))

	cfg.Admin.TokenHash = os.Getenv("ADMIN_TOKEN_HASH")

	// Auto-like scheduler
	cfg.Scheduler.Enabled = getEnvBool("SCHEDULER_ENABLED", true)
	cfg.Scheduler.Interval = getEnvDuration("SCHEDULER_INTERVAL", 10*time.Minute)
	cfg.Scheduler.RetryInterval = getEnvDuration("SCHEDULER_RETRY_INTERVAL", time.Minute)
	cfg.Scheduler.BatchMin = getEnvInt("SCHEDULER_BATCH_MIN", 2)
	cfg.Scheduler.BatchMax = getEnvInt("SCHEDULER_BATCH_MAX", 4)
	cfg.Scheduler.LikeDelayMin = getEnvDuration("SCHEDULER_LIKE_DELAY_MIN", 10*time.Second)
	cfg.Scheduler.LikeDelayMax = getEnvDuration("SCHEDULER_LIKE_DELAY_MAX", 30*time.Second)
	cfg.Scheduler.ProfileDelayMin = getEnvDuration("SCHEDULER_PROFILE_DELAY_MIN", 5*time.Minute)
	cfg.Scheduler.ProfileDelayMax = getEnvDuration("SCHEDULER_PROFILE_DELAY_MAX", 15*time.Minute)

	// Referrals
	cfg.Referral.Threshold = getEnvInt("REFERRAL_THRESHOLD", 10)
	cfg.Referral.RewardDays = getEnvInt("REFERRAL_REWARD_DAYS", 1)
	cfg.Referral.MaxUses = getEnvInt("REFERRAL_MAX_USES", 10)

	cfg.Sentry.DSN = os.Getenv("SENTRY_DSN")

	return cfg
}

// Validate reports the first configuration value the server cannot run with.
func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return &Error{Field: "DB_DRIVER", Reason: fmt.Sprintf("unsupported driver %q", c.DB.Driver)}
	}
	switch c.Telegram.Mode {
	case "poll", "webhook":
	default:
		return &Error{Field: "TELEGRAM_MODE", Reason: fmt.Sprintf("unsupported mode %q", c.Telegram.Mode)}
	}
	if c.Telegram.Mode == "webhook" && c.Telegram.WebhookSecret == "" {
		return &Error{Field: "TELEGRAM_WEBHOOK_SECRET", Reason: "required in webhook mode"}
	}
	s := c.Scheduler
	if s.BatchMin < 1 || s.BatchMin > s.BatchMax {
		return &Error{Field: "SCHEDULER_BATCH_MIN", Reason: "must be between 1 and SCHEDULER_BATCH_MAX"}
	}
	if s.LikeDelayMin > s.LikeDelayMax {
		return &Error{Field: "SCHEDULER_LIKE_DELAY_MIN", Reason: "greater than SCHEDULER_LIKE_DELAY_MAX"}
	}
	if s.ProfileDelayMin > s.ProfileDelayMax {
		return &Error{Field: "SCHEDULER_PROFILE_DELAY_MIN", Reason: "greater than SCHEDULER_PROFILE_DELAY_MAX"}
	}
	if s.Interval <= 0 || s.RetryInterval <= 0 {
		return &Error{Field: "SCHEDULER_INTERVAL", Reason: "intervals must be positive"}
	}
	if c.Referral.Threshold < 1 {
		return &Error{Field: "REFERRAL_THRESHOLD", Reason: "must be positive"}
	}
	return nil
}

// IsAdmin reports whether the Telegram account is listed in TELEGRAM_ADMIN_IDS.
func (c *Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.Telegram.AdminIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func buildDSN(cfg *Config) string {
	cfg.DB.Host = getEnvDefault("DB_HOST", "localhost")
	cfg.DB.User = getEnvDefault("DB_USER", "root")
	cfg.DB.Password = getEnvDefault("DB_PASSWORD", "root")
	cfg.DB.Name = getEnvDefault("DB_NAME", "matchbot")

	switch cfg.DB.Driver {
	case "postgres":
		cfg.DB.Port = getEnvDefault("DB_PORT", "5432")
		return fmt.Sprintf(
			"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.DB.Host, cfg.DB.User, cfg.DB.Password, cfg.DB.Name, cfg.DB.Port,
		)
	case "sqlite":
		return cfg.DB.Name + ".db"
	default:
		cfg.DB.Port = getEnvDefault("DB_PORT", "3306")
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
			cfg.DB.User, cfg.DB.Password, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name,
		)
	}
}

func getEnvDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getEnvInt(k string, def int) int {
	if n, err := strconv.Atoi(getEnvDefault(k, "")); err == nil {
		return n
	}
	return def
}

func getEnvBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return isTruthy(v)
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(getEnvDefault(k, "")); err == nil {
		return d
	}
	return def
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

func parseIDs(v string) []int64 {
	var ids []int64
	for _, part := range strings.Split(v, ",") {
		if id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}
