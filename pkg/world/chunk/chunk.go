package chunk

import (
	"fmt"
	"log/slog"
	"sync"

	"go.uber.org/atomic"

	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
)

const (
	// DefaultHeight is the number of cell layers of a chunk unless configured.
	DefaultHeight = 256
	// MaxHeight bounds the configurable height; it must fit the payload's u16.
	MaxHeight = 4096

	chunkOverhead = 192
)

// Options configure a new Chunk.
type Options struct {
	// Height is the number of cell layers. Zero means DefaultHeight.
	Height int
	// Debug makes gated accessors panic on misuse instead of degrading to
	// Air or a no-op.
	Debug bool
	Log   *slog.Logger
}

// Chunk is a 16×H×16 column of cells with its light, biomes and lifecycle
// state. Readers take the shared lock; writers and long-running passes take
// the exclusive lock. A Chunk never locks another chunk.
type Chunk struct {
	mu   sync.RWMutex
	pos  Pos
	grid Grid

	state    atomic.Int32
	modified atomic.Bool
	revision atomic.Uint64

	debug bool
	log   *slog.Logger
}

// New creates an Empty chunk at pos.
func New(pos Pos, reg *block.Registry, opts Options) (*Chunk, error) {
	h := opts.Height
	if h == 0 {
		h = DefaultHeight
	}
	if h < 1 || h > MaxHeight {
		return nil, fmt.Errorf("new chunk %s: height %d outside [1,%d]", pos, h, MaxHeight)
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Chunk{
		pos:   pos,
		grid:  newGrid(h, reg),
		debug: opts.Debug,
		log:   log.With("chunk", pos.String()),
	}, nil
}

// Pos returns the chunk's position.
func (c *Chunk) Pos() Pos { return c.pos }

// Height returns the number of cell layers.
func (c *Chunk) Height() int { return c.grid.height }

// State returns the current lifecycle state.
func (c *Chunk) State() State { return State(c.state.Load()) }

// Modified reports whether blocks changed since the last save.
func (c *Chunk) Modified() bool { return c.modified.Load() }

// Revision increases on every mutation of blocks or light.
func (c *Chunk) Revision() uint64 { return c.revision.Load() }

// SolidCount returns the number of solid cells.
func (c *Chunk) SolidCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.grid.solid
}

// Transition moves the chunk to state to. Any step other than the single
// legal successor of the current state is an IllegalState error.
func (c *Chunk) Transition(to State) error {
	for {
		from := State(c.state.Load())
		if !CanTransition(from, to) {
			err := &Error{Kind: IllegalState, Op: "transition", Pos: &c.pos,
				Err: fmt.Errorf("%s -> %s", from, to)}
			c.log.Error("illegal chunk transition", "from", from.String(), "to", to.String())
			return err
		}
		if c.state.CAS(int32(from), int32(to)) {
			return nil
		}
	}
}

// MustTransition is Transition for callers that treat failure as a bug.
func (c *Chunk) MustTransition(to State) {
	if err := c.Transition(to); err != nil {
		panic(err)
	}
}

// Contains reports whether world cell (wx, wy, wz) belongs to this chunk.
func (c *Chunk) Contains(wx, wy, wz int) bool {
	return WorldToChunk(wx, wz) == c.pos && wy >= 0 && wy < c.grid.height
}

// misuse reports a caller bug: a panic in debug builds, a debug log otherwise.
func (c *Chunk) misuse(kind Kind, op string, detail error) {
	err := &Error{Kind: kind, Op: op, Pos: &c.pos, Err: detail}
	if c.debug {
		panic(err)
	}
	c.log.Debug("chunk misuse", "error", err)
}

func (c *Chunk) checkRead(op string) bool {
	if s := c.State(); !s.Readable() {
		c.misuse(IllegalState, op, fmt.Errorf("read in state %s", s))
		return false
	}
	return true
}

func (c *Chunk) checkWrite(op string) bool {
	if s := c.State(); !s.Writable() {
		c.misuse(IllegalState, op, fmt.Errorf("write in state %s", s))
		return false
	}
	return true
}

func (c *Chunk) checkLocal(op string, l Local) bool {
	if !l.Valid(c.grid.height) {
		c.misuse(OutOfBounds, op, fmt.Errorf("local %v", l))
		return false
	}
	return true
}

// GetBlock returns the block at l. Out-of-range positions read as Air.
func (c *Chunk) GetBlock(l Local) block.Type {
	if !c.checkLocal("get block", l) || !c.checkRead("get block") {
		return block.Air
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.grid.blocks[l.Index()]
}

// SetBlock overwrites the block at l and marks the chunk modified. It does
// not relight; callers schedule that. Returns false if nothing was written.
func (c *Chunk) SetBlock(l Local, t block.Type) bool {
	if !c.checkLocal("set block", l) || !c.checkWrite("set block") {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grid.SetBlock(l.Index(), t)
	if c.grid.blocksChanged {
		c.grid.blocksChanged = false
		c.modified.Store(true)
		c.revision.Inc()
	}
	return true
}

// GetBlockWorld is GetBlock addressed by world coordinates.
func (c *Chunk) GetBlockWorld(wx, wy, wz int) block.Type {
	if !c.Contains(wx, wy, wz) {
		c.misuse(OutOfBounds, "get block", fmt.Errorf("world (%d,%d,%d)", wx, wy, wz))
		return block.Air
	}
	return c.GetBlock(Local{X: wx & mask, Y: wy, Z: wz & mask})
}

// SetBlockWorld is SetBlock addressed by world coordinates.
func (c *Chunk) SetBlockWorld(wx, wy, wz int, t block.Type) bool {
	if !c.Contains(wx, wy, wz) {
		c.misuse(OutOfBounds, "set block", fmt.Errorf("world (%d,%d,%d)", wx, wy, wz))
		return false
	}
	return c.SetBlock(Local{X: wx & mask, Y: wy, Z: wz & mask}, t)
}

// GetLight returns the sky and block light at l.
func (c *Chunk) GetLight(l Local) (sky, blk uint8) {
	if !c.checkLocal("get light", l) || !c.checkRead("get light") {
		return 0, 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v := c.grid.light[l.Index()]
	return v >> 4, v & 0x0F
}

// SetLight stores both channels at l. Values are clamped to 15.
func (c *Chunk) SetLight(l Local, sky, blk uint8) {
	if !c.checkLocal("set light", l) || !c.checkWrite("set light") {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grid.SetLight(l.Index(), min(sky, block.MaxLight)<<4|min(blk, block.MaxLight))
	if c.grid.lightChanged {
		c.grid.lightChanged = false
		c.revision.Inc()
	}
}

// GetBiome returns the biome of local column (x, z).
func (c *Chunk) GetBiome(x, z int) Biome {
	if !c.checkLocal("get biome", Local{X: x, Z: z}) {
		return Plains
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.grid.Biome(x, z)
}

// SetBiome stores the biome of local column (x, z).
func (c *Chunk) SetBiome(x, z int, b Biome) {
	if !c.checkLocal("set biome", Local{X: x, Z: z}) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grid.SetBiome(x, z, b)
	c.revision.Inc()
}

// Edit runs fn with exclusive access to the raw grid. It bypasses the state
// gates and is meant for generation and lighting passes. A pass that changed
// blocks marks the chunk modified; any change bumps the revision once.
func (c *Chunk) Edit(fn func(g *Grid)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grid.blocksChanged, c.grid.lightChanged = false, false
	fn(&c.grid)
	if c.grid.blocksChanged {
		c.modified.Store(true)
	}
	if c.grid.blocksChanged || c.grid.lightChanged {
		c.revision.Inc()
	}
	c.grid.blocksChanged, c.grid.lightChanged = false, false
}

// View runs fn with shared access to the raw grid. fn must not mutate it.
func (c *Chunk) View(fn func(g *Grid)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(&c.grid)
}

// MarkSaved clears the modified flag if the chunk has not changed since the
// snapshot taken at revision.
func (c *Chunk) MarkSaved(revision uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revision.Load() != revision {
		return false
	}
	c.modified.Store(false)
	return true
}

// MemoryUsage approximates the bytes held by the chunk.
func (c *Chunk) MemoryUsage() int {
	return chunkOverhead + len(c.grid.blocks) + len(c.grid.light) + len(c.grid.biomes)
}

// FaceSlab is a copy of one boundary layer of a chunk: its blocks and light,
// indexed by u + y*Width where u runs along the face (see OnFace).
type FaceSlab struct {
	Face   Face
	Height int
	Blocks []block.Type
	Light  []uint8
}

// Block returns the type at (u, y) of the slab.
func (s *FaceSlab) Block(u, y int) block.Type { return s.Blocks[u+y*Width] }

// Sky returns the sky light at (u, y) of the slab.
func (s *FaceSlab) Sky(u, y int) uint8 { return s.Light[u+y*Width] >> 4 }

// BlockLight returns the block light at (u, y) of the slab.
func (s *FaceSlab) BlockLight(u, y int) uint8 { return s.Light[u+y*Width] & 0x0F }

// Face copies the boundary layer on side f under the shared lock.
func (c *Chunk) Face(f Face) *FaceSlab {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.grid.Face(f)
}

// Face copies the boundary layer on side f.
func (g *Grid) Face(f Face) *FaceSlab {
	s := &FaceSlab{
		Face:   f,
		Height: g.height,
		Blocks: make([]block.Type, Width*g.height),
		Light:  make([]uint8, Width*g.height),
	}
	for y := 0; y < g.height; y++ {
		for u := 0; u < Width; u++ {
			i := OnFace(f, u, y).Index()
			s.Blocks[u+y*Width] = g.blocks[i]
			s.Light[u+y*Width] = g.light[i]
		}
	}
	return s
}
