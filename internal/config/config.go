package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all telos configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Inference InferenceConfig
}

type ServerConfig struct {
	Bind string
	Port int
}

type DatabaseConfig struct {
	Path string
}

type InferenceConfig struct {
	// ConfidenceThreshold separates auto-accepted relationships from ones
	// staged for review.
	ConfidenceThreshold float64
	// RequirePeriodMatch drops candidates whose action falls outside the
	// goal's active period during batch inference.
	RequirePeriodMatch bool
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37990,
		},
		Database: DatabaseConfig{
			Path: "", // resolved at runtime via store.DefaultDBPath()
		},
		Inference: InferenceConfig{
			ConfidenceThreshold: 0.7,
			RequirePeriodMatch:  true,
		},
	}
}

// DefaultConfigDir returns ~/.telos, the directory Load searches for
// config.yaml.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".telos"), nil
}

// Load reads config.yaml from dir, falling back to Default() when the file
// does not exist. Missing keys fall back individually.
func Load(dir string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetDefault("server.bind", cfg.Server.Bind)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("inference.confidence_threshold", cfg.Inference.ConfidenceThreshold)
	v.SetDefault("inference.require_period_match", cfg.Inference.RequirePeriodMatch)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config.yaml: %w", err)
	}

	cfg.Server.Bind = v.GetString("server.bind")
	cfg.Server.Port = v.GetInt("server.port")
	cfg.Database.Path = v.GetString("database.path")
	cfg.Inference.ConfidenceThreshold = v.GetFloat64("inference.confidence_threshold")
	cfg.Inference.RequirePeriodMatch = v.GetBool("inference.require_period_match")

	return cfg, nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
