package config

import (
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	Environment   string `mapstructure:"ENV"`
	HTTPAddr      string `mapstructure:"HTTP_ADDR"`
	DBDSN         string `mapstructure:"DB_DSN"`
	StoreDriver   string `mapstructure:"STORE_DRIVER"`
	MigrationsDir string `mapstructure:"MIGRATIONS_DIR"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	TelegramToken string `mapstructure:"TELEGRAM_TOKEN"`

	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string `mapstructure:"GOOGLE_REDIRECT_URL"`

	ICSFetchTimeout time.Duration `mapstructure:"ICS_FETCH_TIMEOUT"`
	ClassDuration   time.Duration `mapstructure:"CLASS_DURATION"`
	DefaultTimezone string        `mapstructure:"DEFAULT_TIMEZONE"`

	SyncCron        string `mapstructure:"SYNC_CRON"`
	SyncHorizonDays int    `mapstructure:"SYNC_HORIZON_DAYS"`

	TxMaxRetries       int `mapstructure:"TX_MAX_RETRIES"`
	RateLimitPerMinute int `mapstructure:"RATE_LIMIT_PER_MINUTE"`

	// TrustedProxies IP или CIDR через запятую; только им верим в X-Forwarded-For
	TrustedProxies []string `mapstructure:"TRUSTED_PROXIES"`
}

func Load() (*Config, error) {
	// Пытаемся загрузить .env файл (игнорируем ошибку, если файла нет)
	if err := godotenv.Load(".env"); err != nil {
		log.Println("⚠️  No .env file found, using environment variables")
	} else {
		log.Println("✅ Loaded configuration from .env file")
	}

	return FromEnv()
}

// FromEnv читает конфигурацию из переменных окружения без .env
func FromEnv() (*Config, error) {
	cfg := &Config{
		Environment:        os.Getenv("ENV"),
		HTTPAddr:           os.Getenv("HTTP_ADDR"),
		DBDSN:              os.Getenv("DB_DSN"),
		StoreDriver:        os.Getenv("STORE_DRIVER"),
		MigrationsDir:      os.Getenv("MIGRATIONS_DIR"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		TelegramToken:      os.Getenv("TELEGRAM_TOKEN"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),
		DefaultTimezone:    os.Getenv("DEFAULT_TIMEZONE"),
		SyncCron:           os.Getenv("SYNC_CRON"),
	}

	var err error
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.ICSFetchTimeout, err = durationEnv("ICS_FETCH_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.ClassDuration, err = durationEnv("CLASS_DURATION", time.Hour); err != nil {
		return nil, err
	}
	if cfg.SyncHorizonDays, err = intEnv("SYNC_HORIZON_DAYS", 14); err != nil {
		return nil, err
	}
	if cfg.TxMaxRetries, err = intEnv("TX_MAX_RETRIES", 5); err != nil {
		return nil, err
	}
	if cfg.RateLimitPerMinute, err = intEnv("RATE_LIMIT_PER_MINUTE", 60); err != nil {
		return nil, err
	}
	if cfg.TrustedProxies, err = proxiesEnv("TRUSTED_PROXIES"); err != nil {
		return nil, err
	}

	// Устанавливаем дефолтные значения
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = StoreDriverPostgres
	}
	if cfg.MigrationsDir == "" {
		cfg.MigrationsDir = "migrations"
	}
	if cfg.DefaultTimezone == "" {
		cfg.DefaultTimezone = "UTC"
	}
	if cfg.SyncCron == "" {
		cfg.SyncCron = "0 */6 * * *"
	}

	// Проверяем обязательные поля
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DBDSN == "" {
			return nil, fmt.Errorf("DB_DSN is required but not set")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreDriverPostgres, StoreDriverMemory, cfg.StoreDriver)
	}
	if _, err := time.LoadLocation(cfg.DefaultTimezone); err != nil {
		return nil, fmt.Errorf("DEFAULT_TIMEZONE: %w", err)
	}
	if cfg.ClassDuration <= 0 {
		return nil, fmt.Errorf("CLASS_DURATION must be positive, got %s", cfg.ClassDuration)
	}

	return cfg, nil
}

// Location часовой пояс по умолчанию для преподавателей без своего
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GoogleEnabled настроен ли OAuth-клиент Google Calendar
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// RedisEnabled настроена ли очередь событий
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// ValidateWorker проверяет, что воркеру есть откуда брать события и куда их доставлять.
// Память процесса воркера не видит бронирований сервера, поэтому memory не подходит.
func (c *Config) ValidateWorker() error {
	if !c.RedisEnabled() {
		return fmt.Errorf("REDIS_ADDR is required for the worker")
	}
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required for the worker")
	}
	if c.StoreDriver != StoreDriverPostgres {
		return fmt.Errorf("worker needs STORE_DRIVER=%s, got %q", StoreDriverPostgres, c.StoreDriver)
	}
	return nil
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func proxiesEnv(key string) ([]string, error) {
	v := os.Getenv(key)
	if v == "" {
		return nil, nil
	}

	var proxies []string
	for _, p := range strings.Split(v, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if net.ParseIP(p) == nil {
			if _, _, err := net.ParseCIDR(p); err != nil {
				return nil, fmt.Errorf("%s: %q is neither IP nor CIDR", key, p)
			}
		}
		proxies = append(proxies, p)
	}
	return proxies, nil
}
