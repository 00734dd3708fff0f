package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix                = "VIDSTREAM"
	defaultHTTPAddress       = "0.0.0.0:8080"
	defaultDatabaseDriver    = "sqlite"
	defaultDatabaseDSN       = "vidstream.db"
	defaultMaxOpenConns      = 10
	defaultLogLevel          = "info"
	defaultLogFormat         = "json"
	defaultTokenTTLMinutes   = 60
	defaultHeartbeatSeconds  = 25
	defaultCatalogPageSize   = 10
	maxCatalogPageSize       = 100
	databaseDriverSQLite     = "sqlite"
	databaseDriverPostgres   = "postgres"
	databaseDriverMySQL      = "mysql"
	logFormatJSON            = "json"
	logFormatConsole         = "console"
	defaultAllowedOriginsAll = "*"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	DatabaseDriver    string
	DatabaseDSN       string
	MaxOpenConns      int
	LogLevel          string
	LogFormat         string
	SigningSecret     string
	TokenTTL          time.Duration
	AllowedOrigins    []string
	HeartbeatInterval time.Duration
	CatalogPageSize   int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.dsn", defaultDatabaseDSN)
	configViper.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("cors.allowed_origins", []string{defaultAllowedOriginsAll})
	configViper.SetDefault("realtime.heartbeat_seconds", defaultHeartbeatSeconds)
	configViper.SetDefault("catalog.page_size", defaultCatalogPageSize)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       strings.TrimSpace(configViper.GetString("http.address")),
		DatabaseDriver:    strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseDSN:       strings.TrimSpace(configViper.GetString("database.dsn")),
		MaxOpenConns:      configViper.GetInt("database.max_open_conns"),
		LogLevel:          configViper.GetString("log.level"),
		LogFormat:         strings.ToLower(strings.TrimSpace(configViper.GetString("log.format"))),
		SigningSecret:     configViper.GetString("auth.signing_secret"),
		TokenTTL:          time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
		AllowedOrigins:    normalizeOrigins(configViper.GetStringSlice("cors.allowed_origins")),
		HeartbeatInterval: time.Duration(configViper.GetInt("realtime.heartbeat_seconds")) * time.Second,
		CatalogPageSize:   configViper.GetInt("catalog.page_size"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if c.HTTPAddress == "" {
		return fmt.Errorf("http.address is required")
	}
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	switch c.DatabaseDriver {
	case databaseDriverSQLite, databaseDriverPostgres, databaseDriverMySQL:
	default:
		return fmt.Errorf("database.driver %q is not supported", c.DatabaseDriver)
	}
	if c.DatabaseDSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	switch c.LogFormat {
	case logFormatJSON, logFormatConsole:
	default:
		return fmt.Errorf("log.format %q is not supported", c.LogFormat)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl_minutes must be positive")
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("cors.allowed_origins requires at least one origin")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("realtime.heartbeat_seconds must be positive")
	}
	if c.CatalogPageSize <= 0 || c.CatalogPageSize > maxCatalogPageSize {
		return fmt.Errorf("catalog.page_size must be between 1 and %d", maxCatalogPageSize)
	}
	return nil
}

func normalizeOrigins(raw []string) []string {
	origins := make([]string, 0, len(raw))
	for _, entry := range raw {
		// env values arrive as a single comma separated string
		for _, origin := range strings.Split(entry, ",") {
			if trimmed := strings.TrimSpace(origin); trimmed != "" {
				origins = append(origins, trimmed)
			}
		}
	}
	return origins
}
