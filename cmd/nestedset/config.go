package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jacentio/nestedset/tree"
)

// Config is the CLI configuration file:
//
//	database: sqlite=./nodes.db   # or postgres://..., dynamodb=<table>
//	table: nodes
//	path_separator: /
//	track_level: true
//	track_path: true
//	log_level: info
type Config struct {
	Database      string `yaml:"database"`
	Table         string `yaml:"table"`
	PathSeparator string `yaml:"path_separator"`
	TrackLevel    bool   `yaml:"track_level"`
	TrackPath     bool   `yaml:"track_path"`
	LogLevel      string `yaml:"log_level"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Database:      "sqlite=nodes.db",
		PathSeparator: "/",
		TrackLevel:    true,
		TrackPath:     true,
		LogLevel:      "warn",
	}
}

// LoadConfig reads path over the defaults. An empty path yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read the config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) treeConfig() tree.Config {
	return tree.Config{
		PathSeparator: c.PathSeparator,
		TrackLevel:    c.TrackLevel,
		TrackPath:     c.TrackPath,
	}
}

func (c Config) logger(w io.Writer) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}
