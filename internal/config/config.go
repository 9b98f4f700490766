// Package config loads fencecheck.toml, found by walking up from the
// working directory, and applies environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"fencecheck/internal/fragment"
	"fencecheck/internal/materialize"
	"fencecheck/internal/toolchain"
)

// FileName is the configuration file looked up from the working directory.
const FileName = "fencecheck.toml"

// Duration decodes "30s"-style strings.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	*d = Duration(v)
	return nil
}

// Config is the resolved configuration of a run.
type Config struct {
	// Path of the file the values came from; empty when only defaults apply.
	Path      string            `toml:"-"`
	Engine    EngineConfig      `toml:"engine"`
	CI        CIConfig          `toml:"ci"`
	Toolchain ToolchainConfig   `toml:"toolchain"`
	Targets   toolchain.Targets `toml:"targets"`
	Cache     CacheConfig       `toml:"cache"`
}

type EngineConfig struct {
	Language       string   `toml:"language"`
	Jobs           int      `toml:"jobs"`
	Timeout        Duration `toml:"timeout"`
	KeepOnFailure  bool     `toml:"keep_on_failure"`
	ScratchDir     string   `toml:"scratch_dir"`
	MaxOutputBytes int64    `toml:"max_output_bytes"`
}

type CIConfig struct {
	FailOnSkip    bool `toml:"fail_on_skip"`
	SkipThreshold int  `toml:"skip_threshold"`
}

type ToolchainConfig struct {
	Command      []string `toml:"command"`
	Probe        []string `toml:"probe"`
	ProbeTargets bool     `toml:"probe_targets"`
	Edition      string   `toml:"edition"`
	Env          []string `toml:"env"`
}

type CacheConfig struct {
	Enabled       bool   `toml:"enabled"`
	Dir           string `toml:"dir"`
	MemoryEntries int    `toml:"memory_entries"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			Language:       fragment.DefaultLanguage,
			Timeout:        Duration(toolchain.DefaultTimeout),
			MaxOutputBytes: toolchain.DefaultMaxOutputBytes,
		},
		Toolchain: ToolchainConfig{
			Command: append([]string(nil), toolchain.DefaultCommand...),
			Probe:   append([]string(nil), toolchain.DefaultProbeCommand...),
			Edition: materialize.DefaultEdition,
		},
		Targets: toolchain.DefaultTargets(),
		Cache:   CacheConfig{MemoryEntries: 1024},
	}
}

// Find walks up from startDir to locate fencecheck.toml.
func Find(startDir string) (path string, ok bool, err error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", false, nil
}

// Load resolves the configuration for startDir: defaults, then the nearest
// fencecheck.toml, then .env and FENCECHECK_* variables.
func Load(startDir string) (Config, error) {
	cfg := Default()
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, err
	}
	envDir := startDir
	if ok {
		if cfg, err = decodeFile(path, cfg); err != nil {
			return Config{}, err
		}
		envDir = filepath.Dir(path)
	}
	if err := cfg.applyEnv(envLookup(envDir)); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		if cfg.Path != "" {
			return Config{}, fmt.Errorf("%s: %w", cfg.Path, err)
		}
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads one file on top of the defaults, without environment.
func LoadFile(path string) (Config, error) {
	cfg, err := decodeFile(path, Default())
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func decodeFile(path string, cfg Config) (Config, error) {
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if meta.IsDefined("toolchain", "command") && len(cfg.Toolchain.Command) == 0 {
		return Config{}, fmt.Errorf("%s: [toolchain].command must not be empty", path)
	}
	if meta.IsDefined("targets") && len(cfg.Targets) == 0 {
		return Config{}, fmt.Errorf("%s: [[targets]] must list at least one target", path)
	}
	cfg.Path = path
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Engine.Language) == "" {
		return errors.New("[engine].language must not be empty")
	}
	if c.Engine.Jobs < 0 {
		return fmt.Errorf("[engine].jobs must be >= 0, got %d", c.Engine.Jobs)
	}
	if c.Engine.Timeout < 0 {
		return fmt.Errorf("[engine].timeout must not be negative, got %s", time.Duration(c.Engine.Timeout))
	}
	if c.CI.SkipThreshold < 0 {
		return fmt.Errorf("[ci].skip_threshold must be >= 0, got %d", c.CI.SkipThreshold)
	}
	if c.Cache.MemoryEntries < 0 {
		return fmt.Errorf("[cache].memory_entries must be >= 0, got %d", c.Cache.MemoryEntries)
	}
	seen := make(map[string]bool, len(c.Targets))
	for i, t := range c.Targets {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("targets[%d]: %w", i, err)
		}
		if seen[t.Name] {
			return fmt.Errorf("targets[%d]: duplicate target %q", i, t.Name)
		}
		seen[t.Name] = true
	}
	return nil
}

// Timeout returns the per-compile timeout.
func (c Config) Timeout() time.Duration { return time.Duration(c.Engine.Timeout) }

// Root is the directory holding the configuration file, or "".
func (c Config) Root() string {
	if c.Path == "" {
		return ""
	}
	return filepath.Dir(c.Path)
}
