// Package config loads ogmctl settings from ogmctl.yaml and OGM_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/CaliLuke/go-cypherogm/driver"
)

// Config represents the ogmctl configuration
type Config struct {
	Neo4j   Neo4jConfig   `mapstructure:"neo4j"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// Neo4jConfig represents the server connection settings
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// LogConfig represents logger settings
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// MetricsConfig represents statement metrics settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Driver returns the connection settings in the form driver.Open takes.
func (c Neo4jConfig) Driver() driver.Config {
	return driver.Config{
		URI:      c.URI,
		Username: c.Username,
		Password: c.Password,
		Database: c.Database,
	}
}

// Load reads path, or ogmctl.yaml from the working directory when path is
// empty, applies OGM_ environment overrides and validates the result. A
// missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("neo4j.uri", "neo4j://localhost:7687")
	v.SetDefault("neo4j.username", "neo4j")
	v.SetDefault("neo4j.password", "")
	v.SetDefault("neo4j.database", "neo4j")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("metrics.enabled", false)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("ogmctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// OGM_NEO4J_URI overrides neo4j.uri
	v.SetEnvPrefix("OGM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings Load cannot default.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Neo4j.URI) == "" {
		return errors.New("neo4j.uri is required")
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// NewLogger builds a production logger, or a development one when
// cfg.Development is set, at cfg.Level.
func NewLogger(cfg LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
