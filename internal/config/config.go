// Package config содержит логику чтения конфигурации сервиса членских взносов.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/c3smembership/dues/internal/dues"
)

// ErrInvalidConfig возвращается при противоречивых настройках.
var ErrInvalidConfig = errors.New("invalid config")

// Config содержит параметры конфигурации сервиса членских взносов.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	BaseURL     string `env:"BASE_URL"`

	StaffLogin    string `env:"STAFF_LOGIN"`
	StaffPassword string `env:"STAFF_PASSWORD"`
	AuthSecret    string `env:"AUTH_SECRET"`

	NotificationSender string `env:"NOTIFICATION_SENDER" envDefault:"yes@c3s.cc"`
	MailToConsole      bool   `env:"MAIL_TO_CONSOLE" envDefault:"false"`
	MailerHost         string `env:"MAILER_HOST"`
	MailerPort         int    `env:"MAILER_PORT" envDefault:"587"`
	MailerLogin        string `env:"MAILER_LOGIN"`
	MailerPassword     string `env:"MAILER_PASSWORD"`

	DuesBaseRate       decimal.Decimal `env:"DUES_BASE_RATE" envDefault:"50"`
	DuesRates          string          `env:"DUES_RATES"`
	DuesFirstYear      int             `env:"DUES_FIRST_YEAR" envDefault:"2015"`
	DuesLastYear       int             `env:"DUES_LAST_YEAR" envDefault:"2020"`
	DispatchYear       int             `env:"DUES_DISPATCH_YEAR"`
	DispatchInterval   time.Duration   `env:"DUES_DISPATCH_INTERVAL" envDefault:"1m"`
	DispatchBatch      int             `env:"DUES_DISPATCH_BATCH" envDefault:"10"`
	DispatchRetryAfter time.Duration   `env:"DUES_DISPATCH_RETRY_AFTER" envDefault:"1h"`
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и
// переменных окружения. Переменные окружения важнее флагов, файл envPath не
// переопределяет уже заданные переменные. Отсутствие файла не ошибка.
func Parse(envPath string) (*Config, error) {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envBaseURL := cfg.BaseURL
	envDispatchYear := cfg.DispatchYear

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.BaseURL, "b", "", "public base URL for invoice links")
	flag.IntVar(&cfg.DispatchYear, "y", 0, "year to dispatch dues emails for, 0 disables dispatch")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envBaseURL != "" {
		cfg.BaseURL = envBaseURL
	}
	if envDispatchYear != 0 {
		cfg.DispatchYear = envDispatchYear
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://" + cfg.RunAddress
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.DuesFirstYear > c.DuesLastYear {
		return fmt.Errorf("%w: first dues year %d after last %d", ErrInvalidConfig, c.DuesFirstYear, c.DuesLastYear)
	}
	if c.DispatchYear != 0 && (c.DispatchYear < c.DuesFirstYear || c.DispatchYear > c.DuesLastYear) {
		return fmt.Errorf("%w: dispatch year %d outside %d-%d", ErrInvalidConfig, c.DispatchYear, c.DuesFirstYear, c.DuesLastYear)
	}
	if !c.MailToConsole && c.MailerHost == "" {
		return fmt.Errorf("%w: MAILER_HOST is required unless MAIL_TO_CONSOLE is set", ErrInvalidConfig)
	}
	return nil
}

// Rates возвращает таблицу ставок взноса.
func (c *Config) Rates() (dues.RateTable, error) {
	return dues.ParseRateTable(c.DuesBaseRate, c.DuesRates)
}
