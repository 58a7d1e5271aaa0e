package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}
}

func TestLoadJSONWithComments(t *testing.T) {
	path := writeFile(t, "world.json", `{
		// world identity
		"seed": 42,
		"height": 128,
		/* persistence */
		"storage": "sqlite",
		"autosave_interval": "1m30s"
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := DefaultConfig()
	want.Seed = 42
	want.Height = 128
	want.Storage = StorageSQLite
	want.AutosaveInterval = Duration(90 * time.Second)
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "world.yaml", "seed: -7\nsea_level: 20\nautosave_interval: 45\ngenerator_type: flat\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Seed != -7 || cfg.SeaLevel != 20 || cfg.GeneratorType != "flat" {
		t.Errorf("Load = %+v", cfg)
	}
	if cfg.AutosaveInterval != Duration(45*time.Second) {
		t.Errorf("AutosaveInterval = %s, want 45s", cfg.AutosaveInterval)
	}
	if cfg.Workers != DefaultConfig().Workers {
		t.Errorf("Workers = %d, want default", cfg.Workers)
	}
}

func TestLoadEmptyYAML(t *testing.T) {
	cfg, err := Load(writeFile(t, "empty.yml", ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	for name, content := range map[string]string{
		"a.json": `{"seeed": 1}`,
		"a.yaml": "seeed: 1\n",
	} {
		if _, err := Load(writeFile(t, name, content)); err == nil {
			t.Errorf("Load(%s) accepted an unknown field", name)
		}
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "none.json")); err == nil {
		t.Error("Load of a missing file succeeded")
	}
}

func TestMerge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seed = 99
	cfg.DataDir = "flagdir"

	fromFile := DefaultConfig()
	fromFile.Seed = 1
	fromFile.DataDir = "filedir"
	fromFile.Height = 64
	fromFile.OnCorrupt = OnCorruptFail

	Merge(cfg, fromFile, map[string]bool{"seed": true})
	if cfg.Seed != 99 {
		t.Errorf("Seed = %d, want the explicit flag value 99", cfg.Seed)
	}
	if cfg.DataDir != "filedir" {
		t.Errorf("DataDir = %q, want the file value", cfg.DataDir)
	}
	if cfg.Height != 64 || cfg.OnCorrupt != OnCorruptFail {
		t.Errorf("Height, OnCorrupt = %d, %q", cfg.Height, cfg.OnCorrupt)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"generator", func(c *Config) { c.GeneratorType = "amplified" }, "generator_type"},
		{"height zero", func(c *Config) { c.Height = 0 }, "height"},
		{"height huge", func(c *Config) { c.Height = 5000 }, "height"},
		{"tree chance", func(c *Config) { c.TreeChance = 1.5 }, "tree_chance"},
		{"workers", func(c *Config) { c.Workers = 0 }, "workers"},
		{"storage", func(c *Config) { c.Storage = "s3" }, "storage"},
		{"on corrupt", func(c *Config) { c.OnCorrupt = "ignore" }, "on_corrupt"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"autosave", func(c *Config) { c.AutosaveInterval = -1 }, "autosave_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.want)
			}
		})
	}
}

func TestDurationJSON(t *testing.T) {
	d := Duration(2 * time.Minute)
	b, err := d.MarshalJSON()
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `"2m0s"` {
		t.Errorf("MarshalJSON = %s", b)
	}
	var back Duration
	if err := back.UnmarshalJSON([]byte(`2.5`)); err != nil {
		t.Fatal(err)
	}
	if back != Duration(2500*time.Millisecond) {
		t.Errorf("UnmarshalJSON(2.5) = %s", back)
	}
	if err := back.UnmarshalJSON([]byte(`"soon"`)); err == nil {
		t.Error("UnmarshalJSON accepted a bad duration")
	}
}
