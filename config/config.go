/*
Package config loads service configuration.

SOURCES (later wins):
  1. built-in defaults
  2. config file (quotes.yaml/json/toml in . or ./config, or an explicit path)
  3. .env file in the working directory (loaded into the environment)
  4. environment variables prefixed QUOTES_, with "." replaced by "_"
     e.g. QUOTES_DATABASE_DRIVER=postgres, QUOTES_IMPORT_ON_MALFORMED=skip

USAGE:
  cfg, err := config.Load("")
  if err != nil {
      log.Fatal(err)
  }
*/
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the service.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Import   ImportConfig   `mapstructure:"import"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	CORSOrigins []string `mapstructure:"cors_origins"`
	// Developer enables SQL statement and request detail logging.
	Developer bool `mapstructure:"developer"`
}

// DatabaseConfig selects the backend. Path applies to sqlite; URL, or the
// individual connection fields, to postgres.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ImportConfig holds the reconciliation policies.
type ImportConfig struct {
	Source      string `mapstructure:"source"`
	Category    string `mapstructure:"category"`
	OnMalformed string `mapstructure:"on_malformed"` // abort | skip
	Atomicity   string `mapstructure:"atomicity"`    // per-record | all-or-nothing
	Strategy    string `mapstructure:"strategy"`     // lookup | upsert

	// InboxDir, when set, is polled for *.json files every PollInterval.
	InboxDir     string        `mapstructure:"inbox_dir"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.developer", false)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/quotes.db")
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "quotes")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("import.source", "CEPEA")
	v.SetDefault("import.category", "Café Robusta")
	v.SetDefault("import.on_malformed", "abort")
	v.SetDefault("import.atomicity", "per-record")
	v.SetDefault("import.strategy", "lookup")
	v.SetDefault("import.inbox_dir", "")
	v.SetDefault("import.poll_interval", "1m")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load reads configuration. An empty path searches for an optional
// quotes.{yaml,json,toml} file; a non-empty path must exist.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("quotes")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("QUOTES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerations and required fields.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if strings.TrimSpace(c.Database.Path) == "" {
			return errors.New("database.path is required for sqlite")
		}
	case "postgres":
		if c.Database.URL == "" && (c.Database.Host == "" || c.Database.Name == "") {
			return errors.New("database.url or database.host and database.name are required for postgres")
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", c.Database.Driver)
	}

	if err := oneOf("import.on_malformed", c.Import.OnMalformed, "abort", "skip"); err != nil {
		return err
	}
	if err := oneOf("import.atomicity", c.Import.Atomicity, "per-record", "all-or-nothing"); err != nil {
		return err
	}
	if err := oneOf("import.strategy", c.Import.Strategy, "lookup", "upsert"); err != nil {
		return err
	}
	if strings.TrimSpace(c.Import.Source) == "" {
		return errors.New("import.source is required")
	}
	if c.Import.InboxDir != "" && c.Import.PollInterval <= 0 {
		return errors.New("import.poll_interval must be positive when import.inbox_dir is set")
	}
	if c.Server.Address == "" {
		return errors.New("server.address is required")
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
}

// DSN returns the postgres connection URL.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     d.Host + ":" + strconv.Itoa(d.Port),
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else if d.User != "" {
		u.User = url.User(d.User)
	}
	return u.String()
}
