package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
	"github.com/OCharnyshevich/voxel-world/pkg/world/region"
)

// maxOpenRegions bounds the region files kept in memory.
const maxOpenRegions = 16

// RegionStore keeps payloads in region files under one directory.
type RegionStore struct {
	dir string
	log *slog.Logger

	mu      sync.Mutex
	regions map[region.Coord]*region.Region
	order   []region.Coord // least recently used first
}

// NewRegionStore creates a RegionStore rooted at dir, creating it as needed.
func NewRegionStore(dir string, log *slog.Logger) (*RegionStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &RegionStore{dir: dir, log: log, regions: make(map[region.Coord]*region.Region)}, nil
}

// open returns the cached region for c, reading it on first use. Callers
// hold s.mu.
func (s *RegionStore) open(c region.Coord) (*region.Region, error) {
	if r, ok := s.regions[c]; ok {
		s.touch(c)
		return r, nil
	}
	r, err := region.Open(s.dir, c)
	if err != nil {
		return nil, err
	}
	if len(s.order) >= maxOpenRegions {
		oldest := s.order[0]
		if err := s.regions[oldest].Flush(); err != nil {
			return nil, fmt.Errorf("evict region %s: %w", oldest.FileName(), err)
		}
		s.order = s.order[1:]
		delete(s.regions, oldest)
	}
	s.regions[c] = r
	s.order = append(s.order, c)
	return r, nil
}

func (s *RegionStore) touch(c region.Coord) {
	for i, o := range s.order {
		if o == c {
			s.order = append(append(s.order[:i:i], s.order[i+1:]...), c)
			return
		}
	}
}

func (s *RegionStore) Load(ctx context.Context, pos chunk.Pos) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	c, idx := region.Of(pos)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, err := s.open(c)
	if err != nil {
		return nil, false, fmt.Errorf("load chunk %s: %w", pos, err)
	}
	data, ok, err := r.Get(idx)
	if err != nil {
		return nil, false, fmt.Errorf("load chunk %s: %w", pos, err)
	}
	return data, ok, nil
}

func (s *RegionStore) Save(ctx context.Context, pos chunk.Pos, data []byte) error {
	return s.SaveBatch(ctx, []Entry{{Pos: pos, Data: data}})
}

// SaveBatch groups entries by region and rewrites each touched file once.
func (s *RegionStore) SaveBatch(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	var touched []region.Coord
	seen := make(map[region.Coord]bool)
	for _, e := range entries {
		c, idx := region.Of(e.Pos)
		r, err := s.open(c)
		if err != nil {
			return fmt.Errorf("save chunk %s: %w", e.Pos, err)
		}
		if err := r.Put(idx, e.Data, now); err != nil {
			return fmt.Errorf("save chunk %s: %w", e.Pos, err)
		}
		if !seen[c] {
			seen[c] = true
			touched = append(touched, c)
		}
	}
	// A region evicted mid-batch was flushed on eviction and may since have
	// been reopened, so flush whatever is cached now.
	for _, c := range touched {
		r, ok := s.regions[c]
		if !ok {
			continue
		}
		if err := r.Flush(); err != nil {
			return fmt.Errorf("flush region %s: %w", c.FileName(), err)
		}
	}
	s.log.Debug("saved chunks", "chunks", len(entries), "regions", len(touched))
	return nil
}

func (s *RegionStore) List(ctx context.Context) ([]chunk.Pos, error) {
	coords, err := region.List(s.dir)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []chunk.Pos
	for _, c := range coords {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := s.open(c)
		if err != nil {
			return nil, err
		}
		for _, idx := range r.Slots() {
			out = append(out, c.ChunkAt(idx))
		}
	}
	chunk.SortPos(out)
	return out, nil
}

// Close flushes any region still holding unsaved entries.
func (s *RegionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.regions {
		if err := r.Flush(); err != nil {
			return err
		}
	}
	s.regions = make(map[region.Coord]*region.Region)
	s.order = nil
	return nil
}
