// Package config loads git-black's own .git-black.toml settings file:
// worker-pool sizing and an optional author override for the commits it
// creates.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const defaultFileName = ".git-black.toml"

// Config is the decoded contents of .git-black.toml.
type Config struct {
	Core   CoreConfig   `toml:"core"`
	Author AuthorConfig `toml:"author"`
}

// CoreConfig holds pipeline-tuning settings.
type CoreConfig struct {
	// Workers bounds phase-1 blame/diff concurrency. Zero means the
	// orchestrator's built-in default.
	Workers int `toml:"workers"`
}

// AuthorConfig overrides the committer identity git-black otherwise
// reads from the repository's own `user.name`/`user.email`.
type AuthorConfig struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

// Default returns the zero-value configuration: no worker override, no
// author override.
func Default() *Config {
	return &Config{}
}

// Load reads .git-black.toml. If path is empty, it looks for
// defaultFileName at the repository root. A missing file is not an
// error — it yields Default().
func Load(repoRoot, path string) (*Config, error) {
	if path == "" {
		path = filepath.Join(repoRoot, defaultFileName)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
