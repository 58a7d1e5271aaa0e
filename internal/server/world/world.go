package world

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/OCharnyshevich/voxel-world/internal/server/config"
	"github.com/OCharnyshevich/voxel-world/internal/server/storage"
	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
	"github.com/OCharnyshevich/voxel-world/pkg/world/gen"
	"github.com/OCharnyshevich/voxel-world/pkg/world/light"
	"github.com/OCharnyshevich/voxel-world/pkg/world/mesh"
)

// settleLimit bounds one settle pass. Light only rises during a settle, so
// the worklist drains long before this.
const settleLimit = 1 << 14

// Options configure a World.
type Options struct {
	Registry  *block.Registry
	Behaviors *block.Behaviors
	Generator gen.Generator
	Store     storage.ChunkStore
	Height    int
	Workers   int
	// OnCorrupt is config.OnCorruptRegenerate (default) or config.OnCorruptFail.
	OnCorrupt string
	// Debug audits chunk invariants after every light pass and edit and
	// logs violations at error level.
	Debug bool
	Log       *slog.Logger
}

// Stats counts world activity since creation.
type Stats struct {
	Loaded    int
	Generated uint64
	Restored  uint64
	Corrupt   uint64
	Saved     uint64
	Edits     uint64
	Settles   uint64
	Meshes    uint64
	// Violations counts invariant violations found by debug audits.
	Violations uint64
}

// faceKey identifies the neighbour a mesh face was culled against. A nil
// chunk means no neighbour was loaded.
type faceKey struct {
	c   *chunk.Chunk
	rev uint64
}

type meshEntry struct {
	mesh *mesh.Mesh
	nb   [4]faceKey
}

// World owns the loaded chunks and drives them through their lifecycle:
// load or generate, populate, light, then settle light with neighbours.
type World struct {
	opts   Options
	reg    *block.Registry
	gen    gen.Generator
	store  storage.ChunkStore
	light  *light.Engine
	mesher *mesh.Extractor
	log    *slog.Logger

	mu     sync.RWMutex
	chunks map[chunk.Pos]*chunk.Chunk // Lighted chunks only

	meshMu sync.Mutex
	meshes map[chunk.Pos]meshEntry

	loads singleflight.Group
	// editMu serialises edits, settles and unloads. Chunk locks are taken
	// one at a time beneath it.
	editMu sync.Mutex

	readyMu sync.Mutex
	ready   []func(chunk.Pos)

	generated, restored, corrupt, saved atomic.Uint64
	edits, settles, meshCount           atomic.Uint64
	violations                          atomic.Uint64
}

// New creates a World. Registry, Generator and Store are required.
func New(opts Options) (*World, error) {
	if opts.Registry == nil || opts.Generator == nil || opts.Store == nil {
		return nil, errors.New("new world: registry, generator and store are required")
	}
	if opts.Height == 0 {
		opts.Height = chunk.DefaultHeight
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.OnCorrupt == "" {
		opts.OnCorrupt = config.OnCorruptRegenerate
	}
	if opts.Behaviors == nil {
		opts.Behaviors = block.DefaultBehaviors()
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &World{
		opts:   opts,
		reg:    opts.Registry,
		gen:    opts.Generator,
		store:  opts.Store,
		light:  light.NewEngine(opts.Registry),
		mesher: mesh.NewExtractor(opts.Registry),
		log:    opts.Log,
		chunks: make(map[chunk.Pos]*chunk.Chunk),
		meshes: make(map[chunk.Pos]meshEntry),
	}, nil
}

// Height returns the number of cell layers of every chunk.
func (w *World) Height() int { return w.opts.Height }

// OnChunkReady registers fn to be called, outside any lock, each time a
// chunk becomes Lighted and joined with its neighbours.
func (w *World) OnChunkReady(fn func(chunk.Pos)) {
	w.readyMu.Lock()
	defer w.readyMu.Unlock()
	w.ready = append(w.ready, fn)
}

func (w *World) notifyReady(pos chunk.Pos) {
	w.readyMu.Lock()
	fns := slices.Clone(w.ready)
	w.readyMu.Unlock()
	for _, fn := range fns {
		fn(pos)
	}
}

// loaded returns the Lighted chunk at pos, or nil.
func (w *World) loaded(pos chunk.Pos) *chunk.Chunk {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.chunks[pos]
}

// Chunk returns the loaded chunk at pos.
func (w *World) Chunk(pos chunk.Pos) (*chunk.Chunk, bool) {
	c := w.loaded(pos)
	return c, c != nil
}

// Loaded returns the positions of all loaded chunks, sorted.
func (w *World) Loaded() []chunk.Pos {
	w.mu.RLock()
	out := make([]chunk.Pos, 0, len(w.chunks))
	for p := range w.chunks {
		out = append(out, p)
	}
	w.mu.RUnlock()
	chunk.SortPos(out)
	return out
}

// Ensure returns the chunk at pos, loading or generating it first if
// needed. Concurrent calls for the same position share one load.
func (w *World) Ensure(ctx context.Context, pos chunk.Pos) (*chunk.Chunk, error) {
	if c := w.loaded(pos); c != nil {
		return c, nil
	}
	v, err, _ := w.loads.Do(pos.String(), func() (any, error) {
		if c := w.loaded(pos); c != nil {
			return c, nil
		}
		return w.load(ctx, pos)
	})
	if err != nil {
		return nil, err
	}
	return v.(*chunk.Chunk), nil
}

func (w *World) newChunk(pos chunk.Pos) (*chunk.Chunk, error) {
	c, err := chunk.New(pos, w.reg, chunk.Options{Height: w.opts.Height, Debug: w.opts.Debug, Log: w.log})
	if err != nil {
		return nil, err
	}
	if err := c.Transition(chunk.Loaded); err != nil {
		return nil, err
	}
	return c, nil
}

// restore tries to fill c from the store. It reports false when there is
// nothing usable saved and the chunk must be generated.
func (w *World) restore(ctx context.Context, c *chunk.Chunk) (bool, error) {
	pos := c.Pos()
	data, ok, err := w.store.Load(ctx, pos)
	if err == nil && !ok {
		return false, nil
	}
	if err == nil {
		var p *chunk.Payload
		if p, err = chunk.DecodePayload(data); err == nil {
			err = c.Restore(p)
		}
	}
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, chunk.ErrCorrupted) {
		return false, fmt.Errorf("load chunk %s: %w", pos, err)
	}
	w.corrupt.Inc()
	if w.opts.OnCorrupt == config.OnCorruptFail {
		return false, err
	}
	w.log.Warn("corrupted chunk, regenerating", "chunk", pos.String(), "error", err)
	return false, nil
}

// load walks a new chunk from Empty to Lighted, publishes it and settles
// light with its neighbours.
func (w *World) load(ctx context.Context, pos chunk.Pos) (*chunk.Chunk, error) {
	c, err := w.newChunk(pos)
	if err != nil {
		return nil, err
	}
	restored, err := w.restore(ctx, c)
	if err != nil {
		return nil, err
	}

	steps := []struct {
		to  chunk.State
		run func(g *chunk.Grid)
	}{
		{chunk.Generating, nil},
		{chunk.Generated, func(g *chunk.Grid) { w.gen.Generate(g, pos) }},
		{chunk.Populated, func(g *chunk.Grid) { w.gen.Populate(g, pos) }},
		{chunk.Lighting, nil},
		{chunk.Lighted, func(g *chunk.Grid) {
			if !restored || g.LightEmpty() {
				w.light.Light(g)
			}
		}},
	}
	for _, s := range steps {
		if s.run != nil && (!restored || s.to == chunk.Lighted) {
			c.Edit(s.run)
		}
		if err := c.Transition(s.to); err != nil {
			return nil, err
		}
	}
	if w.opts.Debug && !restored {
		// Restored light may carry imports from neighbours, and Restore
		// already audited it.
		w.report("light", pos, c.AuditIsolated())
	}
	if restored {
		w.restored.Inc()
	} else {
		w.generated.Inc()
	}

	w.editMu.Lock()
	w.mu.Lock()
	w.chunks[pos] = c
	w.mu.Unlock()
	w.settle(append([]chunk.Pos{pos}, neighbors(pos)...))
	w.editMu.Unlock()

	w.log.Debug("chunk ready", "chunk", pos.String(), "restored", restored, "revision", c.Revision())
	w.notifyReady(pos)
	return c, nil
}

// audit checks a loaded chunk against the boundary layers of its loaded
// neighbours. Faces without a loaded neighbour are not bound-checked.
func (w *World) audit(op string, pos chunk.Pos) {
	c := w.loaded(pos)
	if c == nil {
		return
	}
	w.report(op, pos, c.AuditFaces([4]*chunk.FaceSlab(*w.borders(pos))))
}

func (w *World) report(op string, pos chunk.Pos, vs []chunk.Violation) {
	if len(vs) == 0 {
		return
	}
	w.violations.Add(uint64(len(vs)))
	w.log.Error("chunk invariants violated", "op", op, "chunk", pos.String(),
		"violations", len(vs), "first", vs[0].String())
}

func neighbors(pos chunk.Pos) []chunk.Pos {
	out := make([]chunk.Pos, 0, len(chunk.Faces))
	for _, f := range chunk.Faces {
		out = append(out, pos.Neighbor(f))
	}
	return out
}

// borders copies the facing boundary layer of every loaded neighbour of pos.
func (w *World) borders(pos chunk.Pos) *light.Borders {
	var b light.Borders
	for _, f := range chunk.Faces {
		if n := w.loaded(pos.Neighbor(f)); n != nil {
			b[f] = n.Face(f.Opposite())
		}
	}
	return &b
}

// settle joins light across chunk faces until no loaded chunk changes,
// starting from queue. Callers hold editMu.
func (w *World) settle(queue []chunk.Pos) {
	w.settles.Inc()
	visited := make(map[chunk.Pos]bool)
	if w.opts.Debug {
		defer func() {
			for p := range visited {
				w.audit("settle", p)
			}
		}()
	}
	queued := make(map[chunk.Pos]bool, len(queue))
	for _, p := range queue {
		queued[p] = true
	}
	for steps := 0; len(queue) > 0; steps++ {
		if steps == settleLimit {
			w.log.Error("light settle did not converge", "pending", len(queue))
			return
		}
		p := queue[0]
		queue = queue[1:]
		delete(queued, p)

		c := w.loaded(p)
		if c == nil {
			continue
		}
		visited[p] = true
		b := w.borders(p)
		var st light.Stats
		c.Edit(func(g *chunk.Grid) { st = w.light.Join(g, b) })
		if st.Updates == 0 {
			continue
		}
		for _, n := range neighbors(p) {
			if !queued[n] && w.loaded(n) != nil {
				queued[n] = true
				queue = append(queue, n)
			}
		}
	}
}

// BlockAt returns the block at a world cell, Air if its chunk is not loaded
// or y is out of range.
func (w *World) BlockAt(wx, wy, wz int) block.Type {
	if wy < 0 || wy >= w.opts.Height {
		return block.Air
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.chunks[chunk.WorldToChunk(wx, wz)]
	if !ok {
		return block.Air
	}
	return c.GetBlockWorld(wx, wy, wz)
}

// LightAt returns the sky and block light of a world cell. Cells above the
// world are in full sky light; unloaded and lower cells are dark.
func (w *World) LightAt(wx, wy, wz int) (sky, blk uint8) {
	if wy >= w.opts.Height {
		return block.MaxLight, 0
	}
	l, err := chunk.WorldToLocal(wx, wy, wz, w.opts.Height)
	if err != nil {
		return 0, 0
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.chunks[chunk.WorldToChunk(wx, wz)]
	if !ok {
		return 0, 0
	}
	return c.GetLight(l)
}

// HeightAt returns the highest non-Air y of a world column, or -1 if the
// column is empty or not loaded.
func (w *World) HeightAt(wx, wz int) int {
	c := w.loaded(chunk.WorldToChunk(wx, wz))
	if c == nil {
		return -1
	}
	top := -1
	c.View(func(g *chunk.Grid) {
		top = g.Top(wx&15, wz&15, func(t block.Type) bool { return t != block.Air })
	})
	return top
}

// SetBlockAt writes a block and relights every loaded chunk the change can
// reach. It returns false if the chunk is not loaded or y is out of range.
func (w *World) SetBlockAt(wx, wy, wz int, t block.Type) bool {
	l, err := chunk.WorldToLocal(wx, wy, wz, w.opts.Height)
	if err != nil {
		return false
	}
	if s, err := w.reg.Sanitize(t); err != nil {
		w.log.Warn("unknown block type written as air", "type", int(t), "error", err)
		t = s
	}

	w.editMu.Lock()
	defer w.editMu.Unlock()
	pos := chunk.WorldToChunk(wx, wz)
	c := w.loaded(pos)
	if c == nil {
		return false
	}

	var oldTop, newTop int
	changed := false
	c.Edit(func(g *chunk.Grid) {
		i := l.Index()
		if g.Block(i) == t {
			return
		}
		changed = true
		oldTop = g.Top(l.X, l.Z, w.reg.Opaque)
		g.SetBlock(i, t)
		newTop = g.Top(l.X, l.Z, w.reg.Opaque)
	})
	if !changed {
		return true
	}
	w.edits.Inc()

	// Clear the reachable box in every affected chunk before any of them
	// imports light back, so no removed light survives in a neighbour.
	var touched []chunk.Pos
	for dz := int32(-1); dz <= 1; dz++ {
		for dx := int32(-1); dx <= 1; dx++ {
			p := chunk.Pos{X: pos.X + dx, Z: pos.Z + dz}
			n := w.loaded(p)
			if n == nil {
				continue
			}
			box, ok := light.EditBox(p, w.opts.Height, wx, wy, wz, oldTop, newTop)
			if !ok {
				continue
			}
			n.Edit(func(g *chunk.Grid) { w.light.Reset(g, box) })
			touched = append(touched, p)
		}
	}
	w.settle(touched)
	return true
}

// Interact applies the registered behaviour of the block at a world cell.
// It reports whether the block changed.
func (w *World) Interact(wx, wy, wz int) bool {
	t := w.BlockAt(wx, wy, wz)
	next, ok := w.opts.Behaviors.Interact(t)
	if !ok || next == t {
		return false
	}
	return w.SetBlockAt(wx, wy, wz, next)
}

// Mesh returns the mesh of a loaded chunk, re-extracting it when the chunk
// or a neighbour changed since the cached one was built.
func (w *World) Mesh(pos chunk.Pos) (*mesh.Mesh, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.chunks[pos]
	if !ok {
		return nil, fmt.Errorf("mesh chunk %s: not loaded", pos)
	}

	var nb mesh.Neighbors
	var key [4]faceKey
	for _, f := range chunk.Faces {
		if n, ok := w.chunks[pos.Neighbor(f)]; ok {
			key[f] = faceKey{c: n, rev: n.Revision()}
			nb[f] = n.Face(f.Opposite())
		}
	}

	w.meshMu.Lock()
	e, ok := w.meshes[pos]
	w.meshMu.Unlock()
	if ok && !e.mesh.Stale(c) && e.nb == key {
		return e.mesh, nil
	}

	m, err := w.mesher.Extract(c, &nb)
	if err != nil {
		return nil, err
	}
	w.meshCount.Inc()
	w.meshMu.Lock()
	w.meshes[pos] = meshEntry{mesh: m, nb: key}
	w.meshMu.Unlock()
	return m, nil
}

// Save writes every modified chunk to the store in one batch and returns
// how many were written. A chunk edited while saving stays modified.
func (w *World) Save(ctx context.Context) (int, error) {
	w.mu.RLock()
	var dirty []*chunk.Chunk
	for _, c := range w.chunks {
		if c.Modified() {
			dirty = append(dirty, c)
		}
	}
	w.mu.RUnlock()
	return w.saveChunks(ctx, dirty)
}

func (w *World) saveChunks(ctx context.Context, cs []*chunk.Chunk) (int, error) {
	if len(cs) == 0 {
		return 0, nil
	}
	entries := make([]storage.Entry, 0, len(cs))
	revs := make([]uint64, 0, len(cs))
	for _, c := range cs {
		p := c.Snapshot()
		data, err := chunk.EncodePayload(p)
		if err != nil {
			return 0, fmt.Errorf("save chunk %s: %w", c.Pos(), err)
		}
		entries = append(entries, storage.Entry{Pos: c.Pos(), Data: data})
		revs = append(revs, p.Revision)
	}
	if err := storage.SaveAll(ctx, w.store, entries); err != nil {
		return 0, fmt.Errorf("save chunks: %w", err)
	}
	for i, c := range cs {
		c.MarkSaved(revs[i])
	}
	w.saved.Add(uint64(len(cs)))
	return len(cs), nil
}

// Unload saves the chunk at pos if modified and drops it. Unloading a chunk
// that is not loaded is a no-op. If the save fails the chunk stays loaded
// and Lighted with its edits.
func (w *World) Unload(ctx context.Context, pos chunk.Pos) error {
	w.editMu.Lock()
	defer w.editMu.Unlock()

	c := w.loaded(pos)
	if c == nil {
		return nil
	}
	// Edits take editMu, so nothing can change between this save and the
	// removal below.
	if c.Modified() {
		if _, err := w.saveChunks(ctx, []*chunk.Chunk{c}); err != nil {
			return fmt.Errorf("unload chunk %s: %w", pos, err)
		}
	}

	w.mu.Lock()
	delete(w.chunks, pos)
	w.mu.Unlock()
	w.meshMu.Lock()
	delete(w.meshes, pos)
	for _, n := range neighbors(pos) {
		delete(w.meshes, n)
	}
	w.meshMu.Unlock()

	if err := c.Transition(chunk.Unloading); err != nil {
		return err
	}
	return c.Transition(chunk.Destroyed)
}

// PreGenerate ensures every chunk within radius of center, nearest first,
// using the configured number of workers. It returns the number of chunks
// ensured.
func (w *World) PreGenerate(ctx context.Context, center chunk.Pos, radius int) (int, error) {
	var positions []chunk.Pos
	r := int32(radius)
	for dz := -r; dz <= r; dz++ {
		for dx := -r; dx <= r; dx++ {
			positions = append(positions, chunk.Pos{X: center.X + dx, Z: center.Z + dz})
		}
	}
	slices.SortStableFunc(positions, func(a, b chunk.Pos) int {
		return distance(center, a) - distance(center, b)
	})

	var done atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.opts.Workers)
	for _, p := range positions {
		g.Go(func() error {
			if _, err := w.Ensure(ctx, p); err != nil {
				return err
			}
			done.Inc()
			return nil
		})
	}
	err := g.Wait()
	return int(done.Load()), err
}

func distance(a, b chunk.Pos) int {
	dx, dz := int(a.X-b.X), int(a.Z-b.Z)
	return max(dx, -dx, dz, -dz)
}

// Stats returns a snapshot of the world counters.
func (w *World) Stats() Stats {
	w.mu.RLock()
	n := len(w.chunks)
	w.mu.RUnlock()
	return Stats{
		Loaded:     n,
		Generated:  w.generated.Load(),
		Restored:   w.restored.Load(),
		Corrupt:    w.corrupt.Load(),
		Saved:      w.saved.Load(),
		Edits:      w.edits.Load(),
		Settles:    w.settles.Load(),
		Violations: w.violations.Load(),
		Meshes:     w.meshCount.Load(),
	}
}
