// config/config.go
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is everything the service reads from the environment.
type Config struct {
	Port            int           `env:"PORT" envDefault:"3001"`
	BasePath        string        `env:"BASE_PATH" envDefault:"/api"`
	AllowedOrigins  string        `env:"ALLOWED_ORIGINS" envDefault:"*"`
	AccessLogPath   string        `env:"ACCESS_LOG_PATH" envDefault:"./access.log"`
	BodyLimitBytes  int           `env:"BODY_LIMIT_BYTES" envDefault:"4194304"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	RateLimitMax    int           `env:"RATE_LIMIT_MAX" envDefault:"1000000"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`

	Database DatabaseConfig
	Archive  ArchiveConfig
}

// DatabaseConfig describes the Postgres connection and its pool.
type DatabaseConfig struct {
	URL      string `env:"DATABASE_URL"`
	Username string `env:"DATABASE_USERNAME"`
	Password string `env:"DATABASE_PASSWORD"`
	Host     string `env:"DATABASE_HOST"`
	Port     int    `env:"DATABASE_PORT" envDefault:"5432"`
	Name     string `env:"DATABASE_NAME"`
	CAFile   string `env:"DATABASE_CA_FILE"`

	MaxConns         int           `env:"DATABASE_MAX_CONNS" envDefault:"20"`
	IdleTimeout      time.Duration `env:"DATABASE_IDLE_TIMEOUT" envDefault:"30s"`
	AcquireTimeout   time.Duration `env:"DATABASE_ACQUIRE_TIMEOUT" envDefault:"2s"`
	StatementTimeout time.Duration `env:"DATABASE_STATEMENT_TIMEOUT" envDefault:"10s"`
	AcquireRetries   int           `env:"DATABASE_ACQUIRE_RETRIES" envDefault:"3"`
}

// ArchiveConfig controls the optional export of game documents to R2.
type ArchiveConfig struct {
	Enabled         bool          `env:"ARCHIVE_ENABLED" envDefault:"false"`
	Interval        time.Duration `env:"ARCHIVE_INTERVAL" envDefault:"1h"`
	BatchSize       int           `env:"ARCHIVE_BATCH_SIZE" envDefault:"500"`
	AccountID       string        `env:"CLOUDFLARE_ACCOUNT_ID"`
	AccessKeyID     string        `env:"R2_ACCESS_KEY_ID"`
	AccessKeySecret string        `env:"R2_ACCESS_KEY_SECRET"`
	Bucket          string        `env:"R2_BUCKET_NAME"`
}

// Load reads an optional .env file and then parses the environment.
// The returned bool reports whether a .env file was found.
func Load() (*Config, bool, error) {
	dotenv := godotenv.Load() == nil

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, dotenv, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, dotenv, err
	}
	return cfg, dotenv, nil
}

// Validate checks the values env tags cannot express.
func (c *Config) Validate() error {
	if c.Database.URL == "" && c.Database.Host == "" {
		return errors.New("DATABASE_URL or DATABASE_HOST must be set")
	}
	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("DATABASE_MAX_CONNS must be positive, got %d", c.Database.MaxConns)
	}
	if c.Database.AcquireRetries < 0 {
		return fmt.Errorf("DATABASE_ACQUIRE_RETRIES must not be negative, got %d", c.Database.AcquireRetries)
	}
	if c.Archive.Enabled {
		if c.Archive.AccountID == "" || c.Archive.Bucket == "" {
			return errors.New("ARCHIVE_ENABLED requires CLOUDFLARE_ACCOUNT_ID and R2_BUCKET_NAME")
		}
		if c.Archive.BatchSize <= 0 {
			return fmt.Errorf("ARCHIVE_BATCH_SIZE must be positive, got %d", c.Archive.BatchSize)
		}
	}
	return nil
}

// Origins splits ALLOWED_ORIGINS and trims each entry.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// DSN builds the connection string handed to the postgres driver.
// DATABASE_URL wins over the component variables. The statement timeout
// travels as a runtime parameter so every pooled connection carries it.
func (d DatabaseConfig) DSN() string {
	var u *url.URL
	if d.URL != "" {
		parsed, err := url.Parse(d.URL)
		if err != nil {
			return d.URL
		}
		u = parsed
	} else {
		u = &url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
			Path:   "/" + d.Name,
		}
		if d.Username != "" {
			u.User = url.UserPassword(d.Username, d.Password)
		}
	}

	q := u.Query()
	if d.CAFile != "" {
		q.Set("sslmode", "verify-full")
		q.Set("sslrootcert", d.CAFile)
	}
	if d.AcquireTimeout > 0 && q.Get("connect_timeout") == "" {
		secs := int(d.AcquireTimeout.Round(time.Second) / time.Second)
		if secs < 1 {
			secs = 1
		}
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	if d.StatementTimeout > 0 && q.Get("statement_timeout") == "" {
		q.Set("statement_timeout", strconv.FormatInt(d.StatementTimeout.Milliseconds(), 10))
	}
	u.RawQuery = q.Encode()
	return u.String()
}
