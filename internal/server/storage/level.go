package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/OCharnyshevich/voxel-world/internal/server/config"
)

// LevelFile is the name of the world metadata file inside the data dir.
const LevelFile = "level.json"

// ErrLevelMismatch is returned when the saved world was generated with
// settings that differ from the configuration.
var ErrLevelMismatch = errors.New("level settings mismatch")

// Level is the serializable world metadata.
type Level struct {
	WorldID   string    `json:"world_id"`
	Seed      int64     `json:"seed"`
	Generator string    `json:"generator"`
	Height    int       `json:"height"`
	SeaLevel  int       `json:"sea_level"`
	Created   time.Time `json:"created"`
	LastSaved time.Time `json:"last_saved,omitempty"`
	Chunks    int       `json:"chunks"`
}

// LoadLevel reads dir/level.json, creating it from cfg when absent. An
// existing level must match cfg's seed, generator and dimensions.
func LoadLevel(dir string, cfg *config.Config) (*Level, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, LevelFile)

	var lvl Level
	ok, err := readJSON(path, &lvl)
	if err != nil {
		return nil, err
	}
	if !ok {
		lvl = Level{
			WorldID:   uuid.NewString(),
			Seed:      cfg.Seed,
			Generator: cfg.GeneratorType,
			Height:    cfg.Height,
			SeaLevel:  cfg.SeaLevel,
			Created:   time.Now().UTC(),
		}
		if err := SaveLevel(dir, &lvl); err != nil {
			return nil, err
		}
		return &lvl, nil
	}

	if _, err := uuid.Parse(lvl.WorldID); err != nil {
		return nil, fmt.Errorf("level world_id %q: %w", lvl.WorldID, err)
	}
	switch {
	case lvl.Seed != cfg.Seed:
		return nil, fmt.Errorf("%w: seed %d, configured %d", ErrLevelMismatch, lvl.Seed, cfg.Seed)
	case lvl.Generator != cfg.GeneratorType:
		return nil, fmt.Errorf("%w: generator %q, configured %q", ErrLevelMismatch, lvl.Generator, cfg.GeneratorType)
	case lvl.Height != cfg.Height:
		return nil, fmt.Errorf("%w: height %d, configured %d", ErrLevelMismatch, lvl.Height, cfg.Height)
	case lvl.SeaLevel != cfg.SeaLevel:
		return nil, fmt.Errorf("%w: sea level %d, configured %d", ErrLevelMismatch, lvl.SeaLevel, cfg.SeaLevel)
	}
	return &lvl, nil
}

// SaveLevel writes lvl to dir/level.json atomically.
func SaveLevel(dir string, lvl *Level) error {
	return atomicWriteJSON(filepath.Join(dir, LevelFile), lvl)
}

// ReadLevel reads an existing dir/level.json without checking it against
// a configuration.
func ReadLevel(dir string) (*Level, error) {
	path := filepath.Join(dir, LevelFile)
	var lvl Level
	ok, err := readJSON(path, &lvl)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("read %s: %w", path, os.ErrNotExist)
	}
	if _, err := uuid.Parse(lvl.WorldID); err != nil {
		return nil, fmt.Errorf("level world_id %q: %w", lvl.WorldID, err)
	}
	return &lvl, nil
}
