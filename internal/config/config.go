// Package config reads service settings from the environment.
package config

import (
	"errors"
	"io/fs"
	"net"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

var ErrMissingSecret = errors.New("JWT_SECRET must be set")

type Database struct {
	Host    string `env:"DB_HOST,default=127.0.0.1"`
	Port    string `env:"DB_PORT,default=3306"`
	User    string `env:"DB_USER,default=root"`
	Pass    string `env:"DB_PASS"`
	Name    string `env:"DB_NAME,default=diabetes"`
	Retries int    `env:"DB_CONNECT_RETRIES,default=10"`
}

// DSN always sets parseTime so DATE, TIME and DATETIME columns scan into time values.
func (d Database) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Pass
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(d.Host, d.Port)
	cfg.DBName = d.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN()
}

type Config struct {
	HTTPAddr string `env:"HTTP_ADDR,default=:8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	DB Database

	JWTSecret  string        `env:"JWT_SECRET"`
	TokenTTL   time.Duration `env:"TOKEN_TTL,default=24h"`
	BcryptCost int           `env:"BCRYPT_COST,default=10"`

	RedisAddr    string        `env:"REDIS_ADDR"`
	MealCacheTTL time.Duration `env:"MEAL_CACHE_TTL,default=5m"`

	KafkaBrokers string `env:"KAFKA_BROKERS"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=diabetes-events"`

	RateLimit float64 `env:"RATE_LIMIT,default=10"`
	RateBurst int     `env:"RATE_BURST,default=20"`
}

// Load reads the given .env files (or ./.env) when they exist, then the process environment.
// Variables already set in the environment win over the files.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, err
	}
	return &cfg, nil
}

// RequireSecret is checked by commands that issue or verify tokens.
func (c *Config) RequireSecret() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return ErrMissingSecret
	}
	return nil
}

// Brokers splits KAFKA_BROKERS; an empty result disables event publishing.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// Level falls back to info on an unknown LOG_LEVEL.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || c.LogLevel == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
