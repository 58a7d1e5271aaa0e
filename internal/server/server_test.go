package server

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/OCharnyshevich/voxel-world/internal/server/config"
	"github.com/OCharnyshevich/voxel-world/internal/server/storage"
	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
	"github.com/OCharnyshevich/voxel-world/pkg/world/gen"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Height = 64
	cfg.ViewRadius = 1
	cfg.AutosaveInterval = config.Duration(10 * time.Millisecond)
	return cfg
}

func run(t *testing.T, s *Server, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
}

func TestNewGenerator(t *testing.T) {
	cfg := config.DefaultConfig()
	g, err := NewGenerator(cfg)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	if _, ok := g.(*gen.Terrain); !ok {
		t.Errorf("default generator is %T, want *gen.Terrain", g)
	}
	cfg.GeneratorType = "flat"
	g, _ = NewGenerator(cfg)
	if _, ok := g.(*gen.FlatGenerator); !ok {
		t.Errorf("flat generator is %T, want *gen.FlatGenerator", g)
	}
	cfg.GeneratorType = "default"
	cfg.SeaLevel = 2
	if _, err := NewGenerator(cfg); err == nil {
		t.Error("sea level 2 accepted")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage = "tape"
	if _, err := New(cfg, quietLogger()); err == nil {
		t.Error("New accepted an unknown storage backend")
	}
}

func TestServerPersistsAcrossRestart(t *testing.T) {
	for _, kind := range []string{config.StorageRegion, config.StorageSQLite} {
		t.Run(kind, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Storage = kind
			cfg.Seed = 99

			s, err := New(cfg, quietLogger())
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if _, err := s.World().PreGenerate(context.Background(), chunk.Pos{}, 1); err != nil {
				t.Fatalf("PreGenerate: %v", err)
			}
			if !s.World().SetBlockAt(1, 60, 1, block.Glass) {
				t.Fatal("SetBlockAt = false")
			}
			run(t, s, 30*time.Millisecond)

			lvl, err := storage.LoadLevel(cfg.DataDir, cfg)
			if err != nil {
				t.Fatalf("LoadLevel: %v", err)
			}
			if lvl.Chunks != 9 {
				t.Errorf("level chunks = %d, want 9", lvl.Chunks)
			}
			if lvl.LastSaved.IsZero() {
				t.Error("level LastSaved not set")
			}

			s2, err := New(cfg, quietLogger())
			if err != nil {
				t.Fatalf("second New: %v", err)
			}
			if _, err := s2.World().PreGenerate(context.Background(), chunk.Pos{}, 1); err != nil {
				t.Fatalf("PreGenerate: %v", err)
			}
			if got := s2.World().BlockAt(1, 60, 1); got != block.Glass {
				t.Errorf("BlockAt after restart = %d, want glass", got)
			}
			if st := s2.World().Stats(); st.Restored != 9 || st.Generated != 0 {
				t.Errorf("restart stats = %+v, want 9 restored", st)
			}
			if err := s2.Close(); err != nil {
				t.Errorf("Close: %v", err)
			}
		})
	}
}

func TestServerRejectsChangedSeed(t *testing.T) {
	cfg := testConfig(t)
	s, err := New(cfg, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	cfg.Seed++
	if _, err := New(cfg, quietLogger()); err == nil {
		t.Error("New accepted a different seed for an existing world")
	}
}

func TestMemoryStorageNeedsNoDataDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage = config.StorageMemory
	cfg.DataDir = ""
	s, err := New(cfg, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.World().PreGenerate(context.Background(), chunk.Pos{}, cfg.ViewRadius); err != nil {
		t.Fatal(err)
	}
	run(t, s, 20*time.Millisecond)
	if n := s.World().Stats().Loaded; n != 9 {
		t.Errorf("loaded = %d, want 9", n)
	}
}
