package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/teemow/garelay/internal/credentials"
	"github.com/teemow/garelay/internal/logging"
	"github.com/teemow/garelay/internal/sink"
)

// Defaults.
const (
	DefaultPort           = 8080
	DefaultServiceName    = "garelay"
	DefaultSQLDSN         = "garelay.db"
	DefaultRedisKeyPrefix = "garelay:"
	DefaultMongoDatabase  = "garelay"
	DefaultMetricsAddr    = ":9090"
)

// Config is the complete relay configuration.
type Config struct {
	Port        int    `yaml:"port" env:"PORT"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	Debug       bool   `yaml:"debug" env:"DEBUG"`
	LogFormat   string `yaml:"log_format" env:"LOG_FORMAT"`

	Google  GoogleConfig  `yaml:"google"`
	Sink    SinkConfig    `yaml:"sink"`
	Store   StoreConfig   `yaml:"store"`
	MCP     MCPConfig     `yaml:"mcp"`
	CORS    CORSConfig    `yaml:"cors"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// GoogleConfig is the OAuth client registered with Google.
type GoogleConfig struct {
	ClientID     string `yaml:"client_id" env:"GOOGLE_CLIENT_ID"`
	ClientSecret string `yaml:"client_secret" env:"GOOGLE_CLIENT_SECRET"`
	RedirectURI  string `yaml:"redirect_uri" env:"GOOGLE_REDIRECT_URI"`
}

// SinkConfig selects where the callback delivers credentials.
type SinkConfig struct {
	Mode         string `yaml:"mode" env:"SINK_MODE"`
	BridgeURL    string `yaml:"bridge_url" env:"MCP_BRIDGE_URL"`
	BridgeSecret string `yaml:"bridge_secret" env:"MCP_BRIDGE_SECRET"`
}

// StoreConfig selects and configures the credential store.
type StoreConfig struct {
	Type string `yaml:"type" env:"STORE_TYPE"`

	URL        string `yaml:"url" env:"STORE_URL"`
	ServiceKey string `yaml:"service_key" env:"STORE_SERVICE_KEY"`
	Table      string `yaml:"table" env:"STORE_TABLE"`

	SQLDSN string `yaml:"sql_dsn" env:"SQL_DSN"`

	RedisURL       string `yaml:"redis_url" env:"REDIS_URL"`
	RedisKeyPrefix string `yaml:"redis_key_prefix" env:"REDIS_KEY_PREFIX"`

	MongoURI      string `yaml:"mongo_uri" env:"MONGO_URI"`
	MongoDatabase string `yaml:"mongo_database" env:"MONGO_DATABASE"`
}

// MCPConfig controls the /mcp endpoint.
type MCPConfig struct {
	Enabled bool   `yaml:"enabled" env:"MCP_ENABLED"`
	Secret  string `yaml:"secret" env:"MCP_SECRET"`
}

// CORSConfig lists the origins allowed to call the relay from a browser.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

// MetricsConfig controls the dedicated Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"METRICS_ENABLED"`
	Addr    string `yaml:"addr" env:"METRICS_ADDR"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:        DefaultPort,
		ServiceName: DefaultServiceName,
		LogFormat:   logging.FormatJSON,
		Sink:        SinkConfig{Mode: sink.ModeStore},
		Store: StoreConfig{
			Type:           credentials.TypeREST,
			Table:          credentials.DefaultTable,
			SQLDSN:         DefaultSQLDSN,
			RedisKeyPrefix: DefaultRedisKeyPrefix,
			MongoDatabase:  DefaultMongoDatabase,
		},
		MCP:     MCPConfig{Enabled: true},
		CORS:    CORSConfig{AllowedOrigins: []string{"*"}},
		Metrics: MetricsConfig{Enabled: true, Addr: DefaultMetricsAddr},
	}
}

// Load builds a Config from the defaults, the YAML file at path (skipped
// when path is empty) and the environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// QueryEnabled reports whether /query, /disconnect and /mcp are served.
// They need direct store access, which the bridge variant does not have.
func (c Config) QueryEnabled() bool {
	return c.Sink.Mode == sink.ModeStore
}

// Validate checks the configuration for missing or inconsistent values.
func (c Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", c.Port))
	}
	if c.Google.ClientID == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_ID is required"))
	}
	if c.Google.ClientSecret == "" {
		errs = append(errs, errors.New("GOOGLE_CLIENT_SECRET is required"))
	}
	if c.Google.RedirectURI == "" {
		errs = append(errs, errors.New("GOOGLE_REDIRECT_URI is required"))
	}

	if err := sink.ValidateMode(c.Sink.Mode); err != nil {
		errs = append(errs, err)
	}

	switch c.Sink.Mode {
	case sink.ModeBridge:
		if c.Sink.BridgeURL == "" {
			errs = append(errs, errors.New("MCP_BRIDGE_URL is required in bridge mode"))
		}
		if c.Sink.BridgeSecret == "" {
			errs = append(errs, errors.New("MCP_BRIDGE_SECRET is required in bridge mode"))
		}
	case sink.ModeStore:
		errs = append(errs, c.Store.validate()...)
	}

	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.Addr) == "" {
		errs = append(errs, errors.New("METRICS_ADDR is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}

func (s StoreConfig) validate() []error {
	if err := credentials.ValidateType(s.Type); err != nil {
		return []error{err}
	}

	var errs []error
	switch s.Type {
	case credentials.TypeREST:
		if s.URL == "" {
			errs = append(errs, errors.New("STORE_URL is required for the rest store"))
		}
		if s.ServiceKey == "" {
			errs = append(errs, errors.New("STORE_SERVICE_KEY is required for the rest store"))
		}
	case credentials.TypeSQL:
		if s.SQLDSN == "" {
			errs = append(errs, errors.New("SQL_DSN is required for the sql store"))
		}
	case credentials.TypeRedis:
		if s.RedisURL == "" {
			errs = append(errs, errors.New("REDIS_URL is required for the redis store"))
		}
	case credentials.TypeMongo:
		if s.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo store"))
		}
		if s.MongoDatabase == "" {
			errs = append(errs, errors.New("MONGO_DATABASE is required for the mongo store"))
		}
	}
	return errs
}
