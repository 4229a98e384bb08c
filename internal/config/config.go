// Package config handles solidmesh configuration loading and management.
package config

import (
	"time"

	"github.com/chazu/solidmesh/pkg/mesh"
)

// Config holds all settings.
type Config struct {
	Mesh    MeshConfig    `yaml:"mesh"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
}

// MeshConfig holds mesh building settings.
type MeshConfig struct {
	Tolerance    *float64      `yaml:"tolerance"`     // nil merges only identical points
	Workers      int           `yaml:"workers"`       // parts triangulated at once
	SolveTimeout time.Duration `yaml:"solve_timeout"` // 0 disables
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr        string        `yaml:"addr"`
	EvalTimeout time.Duration `yaml:"eval_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Mesh: MeshConfig{
			Tolerance:    nil,
			Workers:      1,
			SolveTimeout: 0,
		},
		Server: ServerConfig{
			Addr:        "127.0.0.1:8080",
			EvalTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// MeshTolerance converts the configured tolerance into a merge policy.
func (c *Config) MeshTolerance() mesh.Tolerance {
	if c.Mesh.Tolerance == nil {
		return mesh.Exact()
	}
	return mesh.Within(*c.Mesh.Tolerance)
}
