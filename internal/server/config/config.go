package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/muhammadmuzzammil1998/jsonc"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageRegion = "region"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

// Corrupt payload policies.
const (
	OnCorruptRegenerate = "regenerate"
	OnCorruptFail       = "fail"
)

// Config holds the world configuration.
type Config struct {
	Seed          int64   `json:"seed" yaml:"seed"`
	GeneratorType string  `json:"generator_type" yaml:"generator_type"` // "default" or "flat"
	Height        int     `json:"height" yaml:"height"`
	SeaLevel      int     `json:"sea_level" yaml:"sea_level"`
	TreeChance    float64 `json:"tree_chance" yaml:"tree_chance"`
	CaveSeeds     int     `json:"cave_seeds" yaml:"cave_seeds"`

	ViewRadius int `json:"view_radius" yaml:"view_radius"` // spawn window radius in chunks
	Workers    int `json:"workers" yaml:"workers"`

	DataDir          string   `json:"data_dir" yaml:"data_dir"`
	Storage          string   `json:"storage" yaml:"storage"`
	AutosaveInterval Duration `json:"autosave_interval" yaml:"autosave_interval"`
	OnCorrupt        string   `json:"on_corrupt" yaml:"on_corrupt"`

	Debug    bool   `json:"debug" yaml:"debug"`
	LogLevel string `json:"log_level" yaml:"log_level"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		GeneratorType:    "default",
		Height:           256,
		SeaLevel:         16,
		TreeChance:       0.10,
		CaveSeeds:        5,
		ViewRadius:       4,
		Workers:          4,
		DataDir:          "data",
		Storage:          StorageRegion,
		AutosaveInterval: Duration(30 * time.Second),
		OnCorrupt:        OnCorruptRegenerate,
		LogLevel:         "info",
	}
}

// Load reads a config file on top of the defaults. The format follows the
// extension: .yaml and .yml are YAML, anything else is JSON with comments.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Merge applies file-loaded config values into cfg, but only for fields
// that were NOT explicitly set via CLI flags. explicitFlags contains the
// flag names that were explicitly provided on the command line.
func Merge(cfg *Config, fromFile *Config, explicitFlags map[string]bool) {
	if !explicitFlags["seed"] {
		cfg.Seed = fromFile.Seed
	}
	if !explicitFlags["generator"] {
		cfg.GeneratorType = fromFile.GeneratorType
	}
	if !explicitFlags["height"] {
		cfg.Height = fromFile.Height
	}
	if !explicitFlags["sea-level"] {
		cfg.SeaLevel = fromFile.SeaLevel
	}
	cfg.TreeChance = fromFile.TreeChance
	cfg.CaveSeeds = fromFile.CaveSeeds
	if !explicitFlags["view-radius"] {
		cfg.ViewRadius = fromFile.ViewRadius
	}
	if !explicitFlags["workers"] {
		cfg.Workers = fromFile.Workers
	}
	if !explicitFlags["data"] {
		cfg.DataDir = fromFile.DataDir
	}
	if !explicitFlags["storage"] {
		cfg.Storage = fromFile.Storage
	}
	if !explicitFlags["autosave"] {
		cfg.AutosaveInterval = fromFile.AutosaveInterval
	}
	cfg.OnCorrupt = fromFile.OnCorrupt
	if !explicitFlags["debug"] {
		cfg.Debug = fromFile.Debug
	}
	if !explicitFlags["log-level"] {
		cfg.LogLevel = fromFile.LogLevel
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.GeneratorType != "default" && c.GeneratorType != "flat":
		return fmt.Errorf("generator_type %q: want default or flat", c.GeneratorType)
	case c.Height < 1 || c.Height > 4096:
		return fmt.Errorf("height %d outside [1,4096]", c.Height)
	case c.TreeChance < 0 || c.TreeChance > 1:
		return fmt.Errorf("tree_chance %v outside [0,1]", c.TreeChance)
	case c.CaveSeeds < 0:
		return fmt.Errorf("cave_seeds %d is negative", c.CaveSeeds)
	case c.ViewRadius < 0:
		return fmt.Errorf("view_radius %d is negative", c.ViewRadius)
	case c.Workers < 1:
		return fmt.Errorf("workers %d: need at least 1", c.Workers)
	case c.AutosaveInterval < 0:
		return fmt.Errorf("autosave_interval %s is negative", c.AutosaveInterval)
	}
	switch c.Storage {
	case StorageRegion, StorageSQLite, StorageMemory:
	default:
		return fmt.Errorf("storage %q: want region, sqlite or memory", c.Storage)
	}
	switch c.OnCorrupt {
	case OnCorruptRegenerate, OnCorruptFail:
	default:
		return fmt.Errorf("on_corrupt %q: want regenerate or fail", c.OnCorrupt)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
