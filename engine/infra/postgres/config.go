package postgres

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/compozy/plansync/pkg/config"
)

// Config holds PostgreSQL connection settings for the driver.
// Prefer providing a DSN via ConnString. When empty, a DSN will be
// synthesized from the individual fields.
type Config struct {
	ConnString string
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SSLMode    string

	MaxOpenConns       int
	ConnectTimeout     time.Duration
	PingTimeout        time.Duration
	HealthCheckTimeout time.Duration
}

// ConfigFromApp maps the application database section onto the driver config.
func ConfigFromApp(cfg *config.DatabaseConfig) *Config {
	return &Config{
		ConnString:   cfg.ConnString,
		Host:         cfg.Host,
		Port:         cfg.Port,
		User:         cfg.User,
		Password:     cfg.Password.Value(),
		DBName:       cfg.DBName,
		SSLMode:      cfg.SSLMode,
		MaxOpenConns: cfg.MaxOpenConns,
	}
}

// dsn returns ConnString when set, otherwise a postgres URL built from parts.
func dsn(cfg *Config) string {
	if strings.TrimSpace(cfg.ConnString) != "" {
		return cfg.ConnString
	}
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == "" {
		port = "5432"
	}
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     fmt.Sprintf("%s:%s", host, port),
		Path:     "/" + cfg.DBName,
		RawQuery: url.Values{"sslmode": []string{sslMode}}.Encode(),
	}
	if cfg.User != "" {
		if cfg.Password != "" {
			u.User = url.UserPassword(cfg.User, cfg.Password)
		} else {
			u.User = url.User(cfg.User)
		}
	}
	return u.String()
}
