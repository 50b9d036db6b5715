package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type R2 struct {
	AccountID  string
	AccessKey  string
	SecretKey  string
	BucketName string
	PublicURL  string
}

type Database struct {
	Driver      string
	PostgresURI string
	SQLitePath  string
	MaxRetries  int
	RetryDelay  time.Duration
	StaleAfter  time.Duration
}

type Scheduler struct {
	GracePeriod     time.Duration
	PollInterval    time.Duration
	JobDelay        time.Duration
	Cooldown        time.Duration
	ErrorBackoff    time.Duration
	ShutdownTimeout time.Duration
	ClaimRetention  time.Duration
}

type Pricing struct {
	Text     int64
	Image    int64
	Keywords int64
}

type Platforms struct {
	TelegramBotToken string
	TelegramAPIURL   string
	VKAPIURL         string
	VKAPIVersion     string
	PinterestAPIURL  string
	BloggerEndpoint  string
	RequestTimeout   time.Duration
	RatePerSecond    float64
}

type Config struct {
	HTTPAddr             string
	Database             Database
	RedisURI             string
	R2                   R2
	SecretKey            string
	BotSecret            string
	CookieName           string
	LogLevel             string
	GeneratorURL         string
	GeneratorAPIKey      string
	PaymentWebhookSecret string
	TokensPerUnit        int64
	WelcomeTokens        int64
	TokenDuration        time.Duration
	Pricing              Pricing
	Scheduler            Scheduler
	Platforms            Platforms
}

func LoadConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	return &Config{
		HTTPAddr: v.GetString("HTTP_ADDR"),
		Database: Database{
			Driver:      v.GetString("DATABASE_DRIVER"),
			PostgresURI: v.GetString("POSTGRES_URI"),
			SQLitePath:  v.GetString("SQLITE_PATH"),
			MaxRetries:  v.GetInt("DATABASE_MAX_RETRIES"),
			RetryDelay:  v.GetDuration("DATABASE_RETRY_DELAY"),
			StaleAfter:  v.GetDuration("DATABASE_STALE_AFTER"),
		},
		RedisURI: v.GetString("REDIS_URI"),
		R2: R2{
			AccountID:  v.GetString("R2_ACCOUNT_ID"),
			AccessKey:  v.GetString("R2_ACCESS_KEY"),
			SecretKey:  v.GetString("R2_SECRET_KEY"),
			BucketName: v.GetString("R2_BUCKET_NAME"),
			PublicURL:  v.GetString("R2_PUBLIC_URL"),
		},
		SecretKey:            v.GetString("SECRET_KEY"),
		BotSecret:            v.GetString("BOT_API_SECRET"),
		CookieName:           v.GetString("COOKIE_NAME"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		GeneratorURL:         v.GetString("GENERATOR_URL"),
		GeneratorAPIKey:      v.GetString("GENERATOR_API_KEY"),
		PaymentWebhookSecret: v.GetString("PAYMENT_WEBHOOK_SECRET"),
		TokensPerUnit:        v.GetInt64("TOKENS_PER_UNIT"),
		WelcomeTokens:        v.GetInt64("WELCOME_TOKENS"),
		TokenDuration:        v.GetDuration("TOKEN_DURATION"),
		Pricing: Pricing{
			Text:     v.GetInt64("PRICE_TEXT"),
			Image:    v.GetInt64("PRICE_IMAGE"),
			Keywords: v.GetInt64("PRICE_KEYWORDS"),
		},
		Scheduler: Scheduler{
			GracePeriod:     v.GetDuration("SCHEDULER_GRACE_PERIOD"),
			PollInterval:    v.GetDuration("SCHEDULER_POLL_INTERVAL"),
			JobDelay:        v.GetDuration("SCHEDULER_JOB_DELAY"),
			Cooldown:        v.GetDuration("SCHEDULER_COOLDOWN"),
			ErrorBackoff:    v.GetDuration("SCHEDULER_ERROR_BACKOFF"),
			ShutdownTimeout: v.GetDuration("SCHEDULER_SHUTDOWN_TIMEOUT"),
			ClaimRetention:  v.GetDuration("SCHEDULER_CLAIM_RETENTION"),
		},
		Platforms: Platforms{
			TelegramBotToken: v.GetString("TELEGRAM_BOT_TOKEN"),
			TelegramAPIURL:   v.GetString("TELEGRAM_API_URL"),
			VKAPIURL:         v.GetString("VK_API_URL"),
			VKAPIVersion:     v.GetString("VK_API_VERSION"),
			PinterestAPIURL:  v.GetString("PINTEREST_API_URL"),
			BloggerEndpoint:  v.GetString("BLOGGER_ENDPOINT"),
			RequestTimeout:   v.GetDuration("PLATFORM_REQUEST_TIMEOUT"),
			RatePerSecond:    v.GetFloat64("PLATFORM_RATE_PER_SECOND"),
		},
	}
}

// Validate rejects settings the server cannot start with. SECRET_KEY seals
// platform credentials with AES, so it must be 16, 24 or 32 bytes.
func (c *Config) Validate() error {
	switch len(c.SecretKey) {
	case 16, 24, 32:
	default:
		return fmt.Errorf("SECRET_KEY must be 16, 24 or 32 bytes, got %d", len(c.SecretKey))
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":3000")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("SQLITE_PATH", "autopost.db")
	v.SetDefault("DATABASE_MAX_RETRIES", 3)
	v.SetDefault("DATABASE_RETRY_DELAY", 2*time.Second)
	v.SetDefault("DATABASE_STALE_AFTER", 5*time.Minute)
	v.SetDefault("REDIS_URI", "localhost:6379")
	v.SetDefault("COOKIE_NAME", "autopost_session")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("TOKENS_PER_UNIT", 1)
	v.SetDefault("TOKEN_DURATION", 30*24*time.Hour)
	v.SetDefault("WELCOME_TOKENS", 50)
	v.SetDefault("PRICE_TEXT", 10)
	v.SetDefault("PRICE_IMAGE", 30)
	v.SetDefault("PRICE_KEYWORDS", 5)
	v.SetDefault("SCHEDULER_GRACE_PERIOD", 30*time.Second)
	v.SetDefault("SCHEDULER_POLL_INTERVAL", 10*time.Second)
	v.SetDefault("SCHEDULER_JOB_DELAY", 5*time.Second)
	v.SetDefault("SCHEDULER_COOLDOWN", 2*time.Minute)
	v.SetDefault("SCHEDULER_ERROR_BACKOFF", 60*time.Second)
	v.SetDefault("SCHEDULER_SHUTDOWN_TIMEOUT", 30*time.Second)
	v.SetDefault("SCHEDULER_CLAIM_RETENTION", 72*time.Hour)
	v.SetDefault("TELEGRAM_API_URL", "https://api.telegram.org")
	v.SetDefault("VK_API_URL", "https://api.vk.com/method")
	v.SetDefault("VK_API_VERSION", "5.199")
	v.SetDefault("PINTEREST_API_URL", "https://api.pinterest.com/v5")
	v.SetDefault("PLATFORM_REQUEST_TIMEOUT", 60*time.Second)
	v.SetDefault("PLATFORM_RATE_PER_SECOND", 1.0)
}
