package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/OCharnyshevich/voxel-world/internal/server/config"
	"github.com/OCharnyshevich/voxel-world/internal/server/storage"
	"github.com/OCharnyshevich/voxel-world/internal/server/world"
	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
	"github.com/OCharnyshevich/voxel-world/pkg/world/gen"
)

// Server hosts one world: it opens the level and its chunk store, keeps the
// spawn window loaded and saves on a timer until shut down.
type Server struct {
	cfg   *config.Config
	log   *slog.Logger
	level *storage.Level
	store storage.ChunkStore
	world *world.World
}

// NewGenerator builds the generator named by cfg.GeneratorType.
func NewGenerator(cfg *config.Config) (gen.Generator, error) {
	if cfg.GeneratorType == "flat" {
		return gen.NewFlatGenerator(), nil
	}
	s := gen.DefaultSettings(cfg.Seed)
	s.Height = cfg.Height
	s.SeaLevel = cfg.SeaLevel
	s.CaveSeeds = cfg.CaveSeeds
	s.TreeChance = cfg.TreeChance
	t, err := gen.NewTerrain(s)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// New validates cfg, opens the level metadata and chunk store under
// cfg.DataDir and creates the world.
func New(cfg *config.Config, log *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	generator, err := NewGenerator(cfg)
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}

	var level *storage.Level
	if cfg.Storage != config.StorageMemory {
		if level, err = storage.LoadLevel(cfg.DataDir, cfg); err != nil {
			return nil, err
		}
	}
	store, err := storage.Open(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage, err)
	}

	w, err := world.New(world.Options{
		Registry:  block.Default(log),
		Generator: generator,
		Store:     store,
		Height:    cfg.Height,
		Workers:   cfg.Workers,
		OnCorrupt: cfg.OnCorrupt,
		Debug:     cfg.Debug,
		Log:       log,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	return &Server{cfg: cfg, log: log, level: level, store: store, world: w}, nil
}

// World returns the hosted world.
func (s *Server) World() *world.World { return s.world }

// Start loads the spawn window, then autosaves until ctx is cancelled and
// shuts down with a final save.
func (s *Server) Start(ctx context.Context) error {
	start := time.Now()
	n, err := s.world.PreGenerate(ctx, chunk.Pos{}, s.cfg.ViewRadius)
	if err != nil && ctx.Err() == nil {
		s.Close()
		return fmt.Errorf("load spawn: %w", err)
	}
	attrs := []any{
		"chunks", n,
		"took", time.Since(start).Round(time.Millisecond),
		"generator", s.cfg.GeneratorType,
		"seed", s.cfg.Seed,
		"storage", s.cfg.Storage,
	}
	if s.level != nil {
		attrs = append(attrs, "world", s.level.WorldID)
	}
	s.log.Info("world ready", attrs...)

	var tick <-chan time.Time
	if d := time.Duration(s.cfg.AutosaveInterval); d > 0 {
		t := time.NewTicker(d)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case <-ctx.Done():
			s.log.Info("world shutting down")
			return s.Close()
		case <-tick:
			s.autosave(ctx)
		}
	}
}

func (s *Server) autosave(ctx context.Context) {
	n, err := s.world.Save(ctx)
	if err != nil {
		s.log.Error("autosave", "error", err)
		return
	}
	st := s.world.Stats()
	s.log.Debug("autosave", "saved", n, "loaded", st.Loaded, "edits", st.Edits, "settles", st.Settles)
}

// Close saves every modified chunk, records the save in the level file and
// closes the store.
func (s *Server) Close() error {
	ctx := context.Background()
	n, saveErr := s.world.Save(ctx)
	if saveErr == nil {
		s.log.Info("world saved", "chunks", n)
	}

	var levelErr error
	if s.level != nil && saveErr == nil {
		list, err := s.store.List(ctx)
		if err != nil {
			levelErr = fmt.Errorf("list chunks: %w", err)
		} else {
			s.level.LastSaved = time.Now().UTC()
			s.level.Chunks = len(list)
			levelErr = storage.SaveLevel(s.cfg.DataDir, s.level)
		}
	}
	return errors.Join(saveErr, levelErr, s.store.Close())
}
