// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Paths   PathsConfig   `toml:"paths"`
	Scoring ScoringConfig `toml:"scoring"`
}

// PathsConfig maps input/output path settings.
type PathsConfig struct {
	Input  *string `toml:"input"`
	Output *string `toml:"output"`
}

// ScoringConfig maps scoring parameter settings.
type ScoringConfig struct {
	RetryPenaltyMs       *float64 `toml:"retry-penalty-ms"`
	ClipMinMs            *float64 `toml:"clip-min-ms"`
	ClipMaxMs            *float64 `toml:"clip-max-ms"`
	ExcludeLeadingTrials *int     `toml:"exclude-leading-trials"`
	RTColumn             *string  `toml:"rt-column"`
	RTKeyboardColumn     *string  `toml:"rt-keyboard-column"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
