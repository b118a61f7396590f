package config

import (
	"os"
	"path/filepath"
)

// Resolver locates the actor host's configuration file by trying a
// fixed sequence of candidates and taking the first that exists.
// Grounded on the teacher's StandardConfigResolver
// (public/agent/config.go), generalized from its agent-framework
// vocabulary (flag/workbench env vars) to the actor host's own.
type Resolver struct {
	// FlagPath is the value of an explicit -config flag, if the
	// caller parsed one; empty means "not given".
	FlagPath string

	// EnvVar is the environment variable consulted after FlagPath,
	// e.g. "ACTORHOST_CONFIG".
	EnvVar string

	// DefaultName is the filename looked for in the current working
	// directory and next to the running binary, e.g. "actorhost.yaml".
	DefaultName string
}

// Resolve returns the first candidate path that exists, in order:
// explicit flag, environment variable, ./<DefaultName>, and finally
// <binary-dir>/<DefaultName>. It returns "" if none exist; callers
// decide whether a missing config is fatal.
func (r Resolver) Resolve() string {
	candidates := []string{}

	if r.FlagPath != "" {
		candidates = append(candidates, r.FlagPath)
	}
	if r.EnvVar != "" {
		if v := os.Getenv(r.EnvVar); v != "" {
			candidates = append(candidates, v)
		}
	}
	if r.DefaultName != "" {
		candidates = append(candidates, r.DefaultName)
		if exe, err := os.Executable(); err == nil {
			candidates = append(candidates, filepath.Join(filepath.Dir(exe), r.DefaultName))
		}
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

// LoadWithDefaults resolves a config path via r and loads it; if no
// candidate exists it returns a zero-value Config with defaults
// applied, rather than an error, so a host with no file on disk still
// starts with sane broker/host settings.
func (r Resolver) LoadWithDefaults() (*Config, error) {
	path := r.Resolve()
	if path == "" {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg, nil
	}
	return Load(path)
}
