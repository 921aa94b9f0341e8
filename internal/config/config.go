// Package config holds operator-level repository defaults, loaded from
// an optional YAML file so recurring settings (signing key, temp
// directory) don't need to be repeated on every invocation. The file may
// also carry concurrency and group entries, which Load validates but no
// command reads.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/andrel/aaus/internal/apkid"
)

// Config is the repository operator's config.yaml.
type Config struct {
	// RepoDir is the repository root this config applies to. Relative
	// paths elsewhere in the file resolve against the config's directory,
	// not RepoDir, matching the teacher's BaseDir convention.
	RepoDir string `yaml:"repo_dir,omitempty"`

	// SigningKeyFile is the default PKCS8 private key path, used when
	// --key is omitted from the command line.
	SigningKeyFile string `yaml:"signing_key_file,omitempty"`

	// TempDir overrides the directory the delta engine measures free
	// space in and writes working files to. Defaults to os.TempDir().
	TempDir string `yaml:"temp_dir,omitempty"`

	// Concurrency is checked to be non-negative by Validate. The delta
	// engine does not read it and always runs delta.MaxConcurrency workers.
	Concurrency int `yaml:"concurrency,omitempty"`

	// Groups maps a group name to its member package names. Validate
	// checks the names; no command applies these groups to the store.
	Groups map[string][]string `yaml:"groups,omitempty"`

	// BaseDir is the directory containing the config file, used to
	// resolve SigningKeyFile/TempDir when they're given as relative
	// paths. Not read from YAML; set by Load.
	BaseDir string `yaml:"-"`
}

// Load reads and parses a config file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err == nil {
		cfg.BaseDir = filepath.Dir(absPath)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every group name and member package name is
// well-formed.
func (c *Config) Validate() error {
	for name, members := range c.Groups {
		if _, err := apkid.NewGroupName(name); err != nil {
			return fmt.Errorf("group %q: %w", name, err)
		}
		for _, m := range members {
			if _, err := apkid.NewPackageName(m); err != nil {
				return fmt.Errorf("group %q member %q: %w", name, m, err)
			}
		}
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency)
	}
	return nil
}

// ResolvePath resolves a path that may be relative to the config file's
// directory. Absolute paths and empty strings are returned unchanged.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if c.BaseDir == "" {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}
