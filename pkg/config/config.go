package config

import (
	"context"
	"time"
)

// Config is the root configuration for plansync. Every component receives
// the section it needs explicitly; nothing reads the environment directly.
type Config struct {
	Server      ServerConfig      `koanf:"server"      validate:"required"`
	Database    DatabaseConfig    `koanf:"database"    validate:"required"`
	Redis       RedisConfig       `koanf:"redis"`
	Temporal    TemporalConfig    `koanf:"temporal"`
	LLM         LLMConfig         `koanf:"llm"         validate:"required"`
	Calendar    CalendarConfig    `koanf:"calendar"    validate:"required"`
	Planner     PlannerConfig     `koanf:"planner"     validate:"required"`
	Credentials CredentialsConfig `koanf:"credentials"`
	Runtime     RuntimeConfig     `koanf:"runtime"     validate:"required"`
	Monitoring  MonitoringConfig  `koanf:"monitoring"`
}

type ServerConfig struct {
	Host    string        `koanf:"host"    validate:"required"        env:"SERVER_HOST"`
	Port    int           `koanf:"port"    validate:"min=1,max=65535" env:"SERVER_PORT"`
	Timeout time.Duration `koanf:"timeout"                            env:"SERVER_TIMEOUT"`
}

type DatabaseConfig struct {
	Driver       string          `koanf:"driver"         validate:"oneof=sqlite postgres" env:"DB_DRIVER"`
	Path         string          `koanf:"path"                                            env:"DB_PATH"`
	ConnString   string          `koanf:"conn_string"                                     env:"DB_CONN_STRING"`
	Host         string          `koanf:"host"                                            env:"DB_HOST"`
	Port         string          `koanf:"port"                                            env:"DB_PORT"`
	User         string          `koanf:"user"                                            env:"DB_USER"`
	Password     SensitiveString `koanf:"password"                                        env:"DB_PASSWORD"     sensitive:"true"`
	DBName       string          `koanf:"name"                                            env:"DB_NAME"`
	SSLMode      string          `koanf:"ssl_mode"                                        env:"DB_SSL_MODE"`
	MaxOpenConns int             `koanf:"max_open_conns" validate:"min=0"                 env:"DB_MAX_OPEN_CONNS"`
	AutoMigrate  bool            `koanf:"auto_migrate"                                    env:"DB_AUTO_MIGRATE"`
}

type RedisConfig struct {
	Addr     string          `koanf:"addr"     env:"REDIS_ADDR"`
	Password SensitiveString `koanf:"password" env:"REDIS_PASSWORD" sensitive:"true"`
	DB       int             `koanf:"db"       env:"REDIS_DB"       validate:"min=0"`
}

// Enabled reports whether a Redis address was configured.
func (c *RedisConfig) Enabled() bool {
	return c.Addr != ""
}

type MonitoringConfig struct {
	Enabled bool   `koanf:"enabled" env:"MONITORING_ENABLED"`
	Path    string `koanf:"path"    env:"MONITORING_PATH"`
}

type TemporalConfig struct {
	Enabled   bool   `koanf:"enabled"    env:"TEMPORAL_ENABLED"`
	HostPort  string `koanf:"host_port"  env:"TEMPORAL_HOST_PORT"`
	Namespace string `koanf:"namespace"  env:"TEMPORAL_NAMESPACE"`
	TaskQueue string `koanf:"task_queue" env:"TEMPORAL_TASK_QUEUE"`
}

type LLMConfig struct {
	Provider      string          `koanf:"provider"       validate:"oneof=openai anthropic google ollama mock" env:"LLM_PROVIDER"`
	Model         string          `koanf:"model"                                                               env:"LLM_MODEL"`
	APIKey        SensitiveString `koanf:"api_key"                                                             env:"LLM_API_KEY"        sensitive:"true"`
	BaseURL       string          `koanf:"base_url"                                                            env:"LLM_BASE_URL"`
	Temperature   float64         `koanf:"temperature"    validate:"min=0,max=2"                               env:"LLM_TEMPERATURE"`
	MaxTokens     int             `koanf:"max_tokens"     validate:"min=0"                                     env:"LLM_MAX_TOKENS"`
	Timeout       time.Duration   `koanf:"timeout"                                                             env:"LLM_TIMEOUT"`
	RetryAttempts int             `koanf:"retry_attempts" validate:"min=0,max=10"                              env:"LLM_RETRY_ATTEMPTS"`
	MockResponse  string          `koanf:"mock_response"                                                       env:"LLM_MOCK_RESPONSE"`

	// MaxConcurrency and RequestsPerMinute throttle model calls; zero disables.
	MaxConcurrency    int     `koanf:"max_concurrency"     validate:"min=0" env:"LLM_MAX_CONCURRENCY"`
	RequestsPerMinute float64 `koanf:"requests_per_minute" validate:"min=0" env:"LLM_REQUESTS_PER_MINUTE"`
}

type CalendarConfig struct {
	BaseURL           string        `koanf:"base_url"            validate:"required,url" env:"CALENDAR_BASE_URL"`
	DefaultCalendarID string        `koanf:"default_calendar_id" validate:"required"     env:"CALENDAR_DEFAULT_ID"`
	ProviderKey       string        `koanf:"provider_key"        validate:"required"     env:"CALENDAR_PROVIDER_KEY"`
	Timeout           time.Duration `koanf:"timeout"                                     env:"CALENDAR_TIMEOUT"`
	RetryCount        int           `koanf:"retry_count"         validate:"min=0,max=10" env:"CALENDAR_RETRY_COUNT"`
}

// PlannerConfig holds the knobs of the plan normalizer.
type PlannerConfig struct {
	DefaultMaxSteps        int `koanf:"default_max_steps"        validate:"min=1"  env:"PLANNER_DEFAULT_MAX_STEPS"`
	MaxStepsCap            int `koanf:"max_steps_cap"            validate:"min=1"  env:"PLANNER_MAX_STEPS_CAP"`
	MinDurationMinutes     int `koanf:"min_duration_minutes"     validate:"min=1"  env:"PLANNER_MIN_DURATION_MINUTES"`
	MaxDurationMinutes     int `koanf:"max_duration_minutes"     validate:"min=1"  env:"PLANNER_MAX_DURATION_MINUTES"`
	DefaultDurationMinutes int `koanf:"default_duration_minutes" validate:"min=1"  env:"PLANNER_DEFAULT_DURATION_MINUTES"`
}

type CredentialsConfig struct {
	Source       string          `koanf:"source"        validate:"oneof=static oauth" env:"CREDENTIALS_SOURCE"`
	StaticToken  SensitiveString `koanf:"static_token"                                env:"CREDENTIALS_STATIC_TOKEN"  sensitive:"true"`
	ClientID     string          `koanf:"client_id"                                   env:"OAUTH_CLIENT_ID"`
	ClientSecret SensitiveString `koanf:"client_secret"                               env:"OAUTH_CLIENT_SECRET"       sensitive:"true"`
	TokenURL     string          `koanf:"token_url"                                   env:"OAUTH_TOKEN_URL"`
	Scopes       []string        `koanf:"scopes"                                      env:"OAUTH_SCOPES"`
}

type RuntimeConfig struct {
	Environment     string        `koanf:"environment"      validate:"oneof=development staging production" env:"RUNTIME_ENVIRONMENT"`
	LogLevel        string        `koanf:"log_level"        validate:"oneof=debug info warn error"          env:"RUNTIME_LOG_LEVEL"`
	LogJSON         bool          `koanf:"log_json"                                                         env:"RUNTIME_LOG_JSON"`
	DispatchTimeout time.Duration `koanf:"dispatch_timeout"                                                 env:"RUNTIME_DISPATCH_TIMEOUT"`
}

// Service defines the configuration management service interface.
type Service interface {
	// Load loads configuration from the specified sources with precedence order.
	Load(ctx context.Context, sources ...Source) (*Config, error)
	// Validate checks if the configuration meets all validation requirements.
	Validate(config *Config) error
	// GetSource returns the source type that provided a specific key.
	GetSource(key string) SourceType
}

// Source defines the interface for configuration sources.
type Source interface {
	Load() (map[string]any, error)
	Type() SourceType
}

// SourceType identifies the type of configuration source.
type SourceType string

const (
	SourceCLI     SourceType = "cli"
	SourceYAML    SourceType = "yaml"
	SourceEnv     SourceType = "env"
	SourceDefault SourceType = "default"
)

// Metadata contains metadata about configuration sources.
type Metadata struct {
	Sources  map[string]SourceType `json:"sources"`
	LoadedAt time.Time             `json:"loaded_at"`
}

// Load loads configuration using the default service.
func Load() (*Config, error) {
	return NewService().Load(context.Background())
}

// Default returns a Config with default values for development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    5001,
			Timeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       "sqlite",
			Path:         "plansync.db",
			Host:         "localhost",
			Port:         "5432",
			User:         "postgres",
			DBName:       "plansync",
			SSLMode:      "disable",
			MaxOpenConns: 10,
			AutoMigrate:  true,
		},
		Temporal: TemporalConfig{
			Enabled:   false,
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "plansync",
		},
		LLM: LLMConfig{
			Provider:      "openai",
			Model:         "gpt-4o-mini",
			Temperature:   0.2,
			Timeout:       60 * time.Second,
			RetryAttempts: 2,
		},
		Calendar: CalendarConfig{
			BaseURL:           "https://www.googleapis.com/calendar/v3",
			DefaultCalendarID: "primary",
			ProviderKey:       "google",
			Timeout:           15 * time.Second,
			RetryCount:        2,
		},
		Planner: PlannerConfig{
			DefaultMaxSteps:        6,
			MaxStepsCap:            12,
			MinDurationMinutes:     15,
			MaxDurationMinutes:     240,
			DefaultDurationMinutes: 60,
		},
		Credentials: CredentialsConfig{
			Source:   "static",
			TokenURL: "https://oauth2.googleapis.com/token",
			Scopes:   []string{"https://www.googleapis.com/auth/calendar.events"},
		},
		Runtime: RuntimeConfig{
			Environment:     "development",
			LogLevel:        "info",
			DispatchTimeout: 10 * time.Minute,
		},
		Monitoring: MonitoringConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
