// Package config loads the actor host's YAML configuration: where its
// NameBroker lives, which spawnable actor kinds it knows how to
// launch as child processes, and its logging/debug knobs.
//
// Grounded on the teacher's internal/config/config.go: yaml.Unmarshal
// into a struct tree, post-load defaulting, glob-expanded multi-file
// loading for registry-style sections, and a ValidateConfiguration
// pass that checks referenced binaries actually exist on disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the actor host's top-level configuration document.
type Config struct {
	AppName string `yaml:"app_name"`
	Debug   bool   `yaml:"debug"`

	Host   HostConfig   `yaml:"host"`
	Broker BrokerConfig `yaml:"broker"`

	// BaseDir anchors relative paths in Spawnables (and SpawnFiles
	// glob patterns) the way the teacher's BaseDir anchors its pool
	// and cell files.
	BaseDir string `yaml:"basedir"`

	// Spawnables is the spawn registry given directly in this file.
	Spawnables []SpawnableConfig `yaml:"spawnables"`

	// SpawnFiles holds glob patterns for additional YAML documents
	// each contributing one spawnable (teacher's multi-file cells
	// convention, generalized to the spawn registry).
	SpawnFiles []string `yaml:"spawn_files"`
}

// HostConfig configures the local actor host's own addressing.
type HostConfig struct {
	Name string `yaml:"name"`
	Addr string `yaml:"addr"`
}

// BrokerConfig configures how this host reaches its NameBroker.
type BrokerConfig struct {
	Host          string `yaml:"host"`
	TimeoutMillis int    `yaml:"timeout_millis"`
}

// SpawnableConfig registers one process-hostable actor kind: the
// binary the process host (host.Spawn) launches to bring it up, and a
// human-facing description. This stands in for the original
// runtime's "import the actor's module by file path" bootstrap (spec
// REDESIGN FLAGS: a registry replaces reflection-based discovery).
type SpawnableConfig struct {
	Kind        string `yaml:"kind"`
	Binary      string `yaml:"binary"`
	Description string `yaml:"description"`
}

// Load reads and validates the configuration document at filename,
// applying defaults for anything left unset.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", filename, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", filename, err)
	}

	applyDefaults(&cfg)

	if cfg.Broker.TimeoutMillis < 0 {
		return nil, fmt.Errorf("config: broker.timeout_millis cannot be negative: %d", cfg.Broker.TimeoutMillis)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Host.Addr == "" {
		cfg.Host.Addr = "localhost"
	}
	if cfg.Broker.Host == "" {
		cfg.Broker.Host = "localhost"
	}
	if cfg.Broker.TimeoutMillis == 0 {
		cfg.Broker.TimeoutMillis = 1000
	}
}

// LoadSpawnables returns the full spawn registry: the inline
// Spawnables plus every entry contributed by a file matching
// SpawnFiles, mirroring the teacher's glob-expanded multi-file cells
// loading.
func (c *Config) LoadSpawnables() ([]SpawnableConfig, error) {
	all := append([]SpawnableConfig{}, c.Spawnables...)

	for _, pattern := range c.SpawnFiles {
		resolved := pattern
		if !filepath.IsAbs(resolved) && c.BaseDir != "" {
			resolved = filepath.Join(c.BaseDir, resolved)
		}

		matches, err := filepath.Glob(resolved)
		if err != nil {
			return nil, fmt.Errorf("config: invalid glob pattern %s: %w", pattern, err)
		}

		for _, file := range matches {
			data, err := os.ReadFile(file)
			if err != nil {
				return nil, fmt.Errorf("config: read spawn file %s: %w", file, err)
			}
			var doc struct {
				Spawnable SpawnableConfig `yaml:"spawnable"`
			}
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return nil, fmt.Errorf("config: parse spawn file %s: %w", file, err)
			}
			if doc.Spawnable.Kind != "" {
				all = append(all, doc.Spawnable)
			}
		}
	}

	return all, nil
}

// ValidateSpawnables checks that every spawnable's binary exists on
// disk, so a misconfigured registry fails fast at startup rather than
// at the first Spawn call.
func ValidateSpawnables(spawnables []SpawnableConfig) error {
	var problems []string
	seen := make(map[string]bool)

	for _, s := range spawnables {
		if seen[s.Kind] {
			problems = append(problems, fmt.Sprintf("duplicate spawnable kind %q", s.Kind))
			continue
		}
		seen[s.Kind] = true

		if s.Binary == "" {
			problems = append(problems, fmt.Sprintf("spawnable %q has no binary", s.Kind))
			continue
		}
		if !fileExists(s.Binary) {
			problems = append(problems, fmt.Sprintf("spawnable %q: binary %q does not exist", s.Kind, s.Binary))
		}
	}

	if len(problems) > 0 {
		msg := "config: spawn registry validation failed:\n"
		for _, p := range problems {
			msg += "  - " + p + "\n"
		}
		return fmt.Errorf("%s", msg)
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
