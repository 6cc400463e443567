package ecs

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Config holds the startup tunables a World/JobSystem pair can be built
// from. It is never required for programmatic construction (NewWorld takes
// its capacity directly) — Config only exists so a deployment can tune
// these without a recompile, the same way rdtc8822-debug-L1JGO-Whale's
// data tables are loaded from YAML rather than hardcoded.
type Config struct {
	World   WorldConfig   `yaml:"world"`
	Workers WorkersConfig `yaml:"workers"`
}

// WorldConfig tunes World construction.
type WorldConfig struct {
	InitialEntityCapacity int `yaml:"initial_entity_capacity"`
}

// WorkersConfig tunes the job system's worker pool.
type WorkersConfig struct {
	Count int `yaml:"count"` // 0 means "use runtime.NumCPU()-1"
}

// LoadConfig reads and parses a YAML config file at path.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ecs: read config %s", path)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, eris.Wrapf(err, "ecs: parse config %s", path)
	}
	return &cfg, nil
}

// NewWorldFromConfig constructs a World sized per cfg.World.
func NewWorldFromConfig(cfg *Config) *World {
	return NewWorld(cfg.World.InitialEntityCapacity)
}
