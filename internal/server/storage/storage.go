package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/OCharnyshevich/voxel-world/internal/server/config"
	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
)

// ChunkStore persists encoded chunk payloads. Implementations are safe for
// concurrent use.
type ChunkStore interface {
	// Load returns the payload saved for pos, or ok=false if there is none.
	Load(ctx context.Context, pos chunk.Pos) (data []byte, ok bool, err error)
	// Save replaces the payload for pos.
	Save(ctx context.Context, pos chunk.Pos, data []byte) error
	// List returns every saved position in sorted order.
	List(ctx context.Context) ([]chunk.Pos, error)
	Close() error
}

// Entry is one payload in a batch save.
type Entry struct {
	Pos  chunk.Pos
	Data []byte
}

// BatchSaver is implemented by stores that write many payloads cheaper
// together than one by one.
type BatchSaver interface {
	SaveBatch(ctx context.Context, entries []Entry) error
}

// SaveAll saves entries through SaveBatch when the store supports it.
func SaveAll(ctx context.Context, s ChunkStore, entries []Entry) error {
	if b, ok := s.(BatchSaver); ok {
		return b.SaveBatch(ctx, entries)
	}
	for _, e := range entries {
		if err := s.Save(ctx, e.Pos, e.Data); err != nil {
			return err
		}
	}
	return nil
}

// Open creates the chunk store selected by cfg under cfg.DataDir.
func Open(cfg *config.Config, log *slog.Logger) (ChunkStore, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return NewMemoryStore(), nil
	case config.StorageSQLite:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", cfg.DataDir, err)
		}
		return OpenSQLite(filepath.Join(cfg.DataDir, "chunks.db"), log)
	default:
		return NewRegionStore(filepath.Join(cfg.DataDir, "region"), log)
	}
}

// atomicWriteJSON marshals v to JSON and writes it atomically using a temp file + rename.
func atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// readJSON decodes path into v. A missing file reports ok=false.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return true, nil
}
