// Package config loads reach.toml and REACH_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// FileName is the configuration file looked up in the project root.
const FileName = "reach.toml"

type Config struct {
	Output        string        `toml:"output"`
	Workers       int           `toml:"workers"`
	MaxIterations int           `toml:"max_iterations"`
	Timeout       time.Duration `toml:"timeout"`
	Granularity   string        `toml:"granularity"`
	SeedScript    string        `toml:"seed_script"`
	Seeds         []Seed        `toml:"seeds"`
	Files         Files         `toml:"files"`
	Resolve       Resolve       `toml:"resolve"`
	Report        Report        `toml:"report"`
	Metrics       Metrics       `toml:"metrics"`
}

type Seed struct {
	Symbol string `toml:"symbol"`
	File   string `toml:"file"`
}

type Files struct {
	Extensions []string `toml:"extensions"`
	Exclude    []string `toml:"exclude"`
}

type Resolve struct {
	Extensions     []string            `toml:"extensions"`
	Conditions     []string            `toml:"conditions"`
	ExtensionAlias map[string][]string `toml:"extension_alias"`
	CacheSize      int                 `toml:"cache_size"`
}

type Report struct {
	DB string `toml:"db"`
}

type Metrics struct {
	File string `toml:"file"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Load reads a TOML configuration file. Unset keys take their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadProject loads path when set, else <projectDir>/reach.toml when it
// exists, else the defaults.
func LoadProject(projectDir, path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	candidate := filepath.Join(projectDir, FileName)
	if _, err := os.Stat(candidate); err == nil {
		return Load(candidate)
	}
	return Default(), nil
}

func applyDefaults(cfg *Config) {
	if cfg.Output == "" {
		cfg.Output = "../output"
	}
	if cfg.MaxIterations == 0 {
		cfg.MaxIterations = 100000
	}
	if cfg.Granularity == "" {
		cfg.Granularity = "statement"
	}
	if len(cfg.Files.Extensions) == 0 {
		cfg.Files.Extensions = []string{".js", ".jsx", ".mjs", ".cjs", ".ts", ".mts", ".cts", ".tsx"}
	}
}

// Validate checks value ranges.
func Validate(cfg *Config) error {
	if cfg.Workers < 0 {
		return errors.New("workers must not be negative")
	}
	if cfg.MaxIterations < 0 {
		return errors.New("max_iterations must not be negative")
	}
	if cfg.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	switch cfg.Granularity {
	case "statement", "top-level":
	default:
		return fmt.Errorf("granularity %q: must be statement or top-level", cfg.Granularity)
	}
	for i, s := range cfg.Seeds {
		if s.Symbol == "" || s.File == "" {
			return fmt.Errorf("seeds[%d]: symbol and file are required", i)
		}
	}
	return nil
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overlays REACH_* variables onto cfg. Values come from lookup
// first and from the dotenv file second; a missing dotenv file is ignored.
func ApplyEnv(cfg *Config, dotenvPath string, lookup LookupFunc) error {
	file := map[string]string{}
	if dotenvPath != "" {
		vals, err := godotenv.Read(dotenvPath)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("config: read %s: %w", dotenvPath, err)
		}
		if vals != nil {
			file = vals
		}
	}
	get := func(key string) (string, bool) {
		if lookup != nil {
			if v, ok := lookup(key); ok {
				return v, true
			}
		}
		v, ok := file[key]
		return v, ok
	}

	if v, ok := get("REACH_OUTPUT"); ok && v != "" {
		cfg.Output = v
	}
	if v, ok := get("REACH_GRANULARITY"); ok && v != "" {
		cfg.Granularity = v
	}
	if v, ok := get("REACH_DB"); ok {
		cfg.Report.DB = v
	}
	if v, ok := get("REACH_METRICS_FILE"); ok {
		cfg.Metrics.File = v
	}
	if v, ok := get("REACH_SEED_SCRIPT"); ok {
		cfg.SeedScript = v
	}
	if v, ok := get("REACH_WORKERS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: REACH_WORKERS: %w", err)
		}
		cfg.Workers = n
	}
	if v, ok := get("REACH_MAX_ITERATIONS"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: REACH_MAX_ITERATIONS: %w", err)
		}
		cfg.MaxIterations = n
	}
	if v, ok := get("REACH_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: REACH_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	return Validate(cfg)
}
