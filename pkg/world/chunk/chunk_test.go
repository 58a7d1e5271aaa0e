package chunk

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newReady returns a chunk advanced to Populated so blocks can be written.
func newReady(t *testing.T, pos Pos, height int, debug bool) *Chunk {
	t.Helper()
	c, err := New(pos, block.Default(quietLogger()), Options{Height: height, Debug: debug, Log: quietLogger()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, s := range []State{Loaded, Generating, Generated, Populated} {
		if err := c.Transition(s); err != nil {
			t.Fatalf("Transition(%s): %v", s, err)
		}
	}
	return c
}

func TestWorldToChunk(t *testing.T) {
	tests := []struct {
		wx, wz int
		want   Pos
	}{
		{0, 0, Pos{0, 0}},
		{15, 15, Pos{0, 0}},
		{16, -1, Pos{1, -1}},
		{-16, -17, Pos{-1, -2}},
		{-1, 31, Pos{-1, 1}},
	}
	for _, tt := range tests {
		if got := WorldToChunk(tt.wx, tt.wz); got != tt.want {
			t.Errorf("WorldToChunk(%d,%d) = %v, want %v", tt.wx, tt.wz, got, tt.want)
		}
	}
}

func TestWorldToLocal(t *testing.T) {
	l, err := WorldToLocal(-1, 64, 17, DefaultHeight)
	if err != nil {
		t.Fatalf("WorldToLocal: %v", err)
	}
	if want := (Local{X: 15, Y: 64, Z: 1}); l != want {
		t.Errorf("WorldToLocal(-1,64,17) = %v, want %v", l, want)
	}

	// Out-of-range y is OutOfBounds, not a crash.
	for _, wy := range []int{-1, DefaultHeight} {
		if _, err := WorldToLocal(0, wy, 0, DefaultHeight); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("WorldToLocal(0,%d,0) error = %v, want OutOfBounds", wy, err)
		}
	}
}

func TestChunkOriginRoundTrip(t *testing.T) {
	for _, p := range []Pos{{0, 0}, {3, -7}, {-100, 42}} {
		wx, wz := ChunkOrigin(p)
		if got := WorldToChunk(wx, wz); got != p {
			t.Errorf("WorldToChunk(ChunkOrigin(%v)) = %v", p, got)
		}
		if got := WorldToChunk(wx+15, wz+15); got != p {
			t.Errorf("far corner of %v maps to %v", p, got)
		}
	}
}

// Every cell of a chunk maps back to itself from world coordinates.
func TestWorldToLocalSweep(t *testing.T) {
	for cx := int32(-1000); cx <= 1000; cx += 37 {
		for cz := int32(-1000); cz <= 1000; cz += 53 {
			p := Pos{X: cx, Z: cz}
			wx, wz := ChunkOrigin(p)
			for lx := 0; lx < Width; lx++ {
				for lz := 0; lz < Width; lz++ {
					for _, ly := range []int{0, 1, 63, 128, DefaultHeight - 1} {
						want := Local{X: lx, Y: ly, Z: lz}
						got, err := WorldToLocal(wx+lx, ly, wz+lz, DefaultHeight)
						if err != nil || got != want {
							t.Fatalf("WorldToLocal(origin(%v)+%v) = %v, %v", p, want, got, err)
						}
						if c := WorldToChunk(wx+lx, wz+lz); c != p {
							t.Fatalf("WorldToChunk(origin(%v)+%v) = %v", p, want, c)
						}
					}
				}
			}
		}
	}
}

func TestLocalIndexRoundTrip(t *testing.T) {
	for _, l := range []Local{{0, 0, 0}, {15, 255, 15}, {3, 17, 9}} {
		if got := LocalAt(l.Index()); got != l {
			t.Errorf("LocalAt(%v.Index()) = %v", l, got)
		}
	}
	if got := (Local{X: 1, Y: 2, Z: 3}).Index(); got != 1+3*16+2*256 {
		t.Errorf("Index = %d, want %d", got, 1+3*16+2*256)
	}
}

func TestSortPos(t *testing.T) {
	ps := []Pos{{1, 0}, {0, 5}, {0, -1}, {-2, 9}}
	SortPos(ps)
	want := []Pos{{-2, 9}, {0, -1}, {0, 5}, {1, 0}}
	for i := range want {
		if ps[i] != want[i] {
			t.Fatalf("SortPos = %v, want %v", ps, want)
		}
	}
}

func TestFaceOpposite(t *testing.T) {
	for _, f := range Faces {
		if f.Opposite().Opposite() != f {
			t.Errorf("%s: opposite of opposite = %s", f, f.Opposite().Opposite())
		}
		p := Pos{X: 4, Z: 4}
		if got := p.Neighbor(f).Neighbor(f.Opposite()); got != p {
			t.Errorf("%s: neighbour round trip = %v", f, got)
		}
	}
}

func TestTransitions(t *testing.T) {
	c, err := New(Pos{}, block.Default(quietLogger()), Options{Height: 16, Log: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	if c.State() != Empty {
		t.Fatalf("new chunk state = %s, want empty", c.State())
	}
	if err := c.Transition(Generated); !errors.Is(err, ErrIllegalState) {
		t.Errorf("Empty -> Generated error = %v, want IllegalState", err)
	}
	for s := Loaded; s <= Destroyed; s++ {
		if err := c.Transition(s); err != nil {
			t.Fatalf("Transition(%s): %v", s, err)
		}
	}
	if err := c.Transition(Empty); KindOf(err) != IllegalState {
		t.Errorf("Destroyed -> Empty kind = %v, want IllegalState", KindOf(err))
	}
}

func TestSolidCountMaintained(t *testing.T) {
	c := newReady(t, Pos{}, 32, true)

	c.SetBlock(Local{1, 1, 1}, block.Stone)
	c.SetBlock(Local{2, 1, 1}, block.Stone)
	c.SetBlock(Local{3, 1, 1}, block.Water)
	if got := c.SolidCount(); got != 2 {
		t.Errorf("SolidCount = %d, want 2", got)
	}
	c.SetBlock(Local{1, 1, 1}, block.Air)
	c.SetBlock(Local{2, 1, 1}, block.Glass)
	if got := c.SolidCount(); got != 1 {
		t.Errorf("SolidCount after edits = %d, want 1", got)
	}
	if !c.Modified() {
		t.Error("Modified() = false after SetBlock")
	}
	if vs := c.Audit(); len(vs) != 0 {
		t.Errorf("Audit() = %v", vs)
	}
}

func TestRevisionMonotonic(t *testing.T) {
	c := newReady(t, Pos{}, 16, true)
	r0 := c.Revision()
	c.SetBlock(Local{0, 0, 0}, block.Dirt)
	r1 := c.Revision()
	c.SetBlock(Local{0, 0, 0}, block.Dirt) // no change
	r2 := c.Revision()
	c.SetLight(Local{0, 1, 0}, 15, 3)
	r3 := c.Revision()
	if !(r0 < r1 && r1 == r2 && r2 < r3) {
		t.Errorf("revisions = %d, %d, %d, %d; want strictly increasing on change only", r0, r1, r2, r3)
	}
}

func TestOutOfRangeReleaseDegrades(t *testing.T) {
	c := newReady(t, Pos{}, 16, false)
	if got := c.GetBlock(Local{X: 16}); got != block.Air {
		t.Errorf("GetBlock(16,0,0) = %d, want Air", got)
	}
	if c.SetBlock(Local{Y: 16}, block.Stone) {
		t.Error("SetBlock above height returned true")
	}
	if got := c.GetBlockWorld(100, 0, 0); got != block.Air {
		t.Errorf("GetBlockWorld outside chunk = %d, want Air", got)
	}
}

// Reading one past the top is Air and leaves the chunk untouched.
func TestReadAboveTop(t *testing.T) {
	const h = 32
	c := newReady(t, Pos{}, h, false)
	if !c.SetBlock(Local{Y: h - 1}, block.Glass) {
		t.Fatal("SetBlock at the top cell returned false")
	}
	c.MarkSaved(c.Revision())
	rev := c.Revision()

	if got := c.GetBlock(Local{Y: h}); got != block.Air {
		t.Errorf("GetBlock(0,%d,0) = %d, want Air", h, got)
	}
	if c.Revision() != rev || c.Modified() {
		t.Errorf("read above top changed the chunk: revision %d -> %d, modified %v", rev, c.Revision(), c.Modified())
	}
	if got := c.GetBlock(Local{Y: h - 1}); got != block.Glass {
		t.Errorf("GetBlock(0,%d,0) = %d, want glass", h-1, got)
	}
}

func TestOutOfRangeDebugPanics(t *testing.T) {
	c := newReady(t, Pos{}, 16, true)
	defer func() {
		r := recover()
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("recover() = %v, want OutOfBounds error", r)
		}
	}()
	c.GetBlock(Local{X: -1})
}

func TestStateGates(t *testing.T) {
	c, err := New(Pos{}, block.Default(quietLogger()), Options{Height: 16, Log: quietLogger()})
	if err != nil {
		t.Fatal(err)
	}
	c.MustTransition(Loaded)
	c.MustTransition(Generating)
	c.Edit(func(g *Grid) { g.SetBlockAt(0, 0, 0, block.Stone) })
	c.MustTransition(Generated)

	if got := c.GetBlock(Local{}); got != block.Stone {
		t.Errorf("GetBlock in Generated = %d, want Stone", got)
	}
	if c.SetBlock(Local{}, block.Air) {
		t.Error("SetBlock in Generated succeeded, want rejected")
	}
	c.MustTransition(Populated)
	if !c.SetBlock(Local{}, block.Air) {
		t.Error("SetBlock in Populated rejected")
	}
}

func TestFaceSlab(t *testing.T) {
	c := newReady(t, Pos{}, 16, true)
	c.SetBlock(Local{X: 15, Y: 3, Z: 7}, block.Stone)
	c.SetLight(Local{X: 15, Y: 4, Z: 7}, 2, 9)

	s := c.Face(East)
	if got := s.Block(7, 3); got != block.Stone {
		t.Errorf("east slab block(7,3) = %d, want Stone", got)
	}
	if got := s.BlockLight(7, 4); got != 9 {
		t.Errorf("east slab block light(7,4) = %d, want 9", got)
	}
	if got := s.Sky(7, 4); got != 2 {
		t.Errorf("east slab sky(7,4) = %d, want 2", got)
	}
	if got := c.Face(West).Block(7, 3); got != block.Air {
		t.Errorf("west slab block(7,3) = %d, want Air", got)
	}
}

func TestMarkSaved(t *testing.T) {
	c := newReady(t, Pos{}, 16, true)
	c.SetBlock(Local{}, block.Stone)
	rev := c.Snapshot().Revision
	c.SetBlock(Local{X: 1}, block.Stone)
	if c.MarkSaved(rev) {
		t.Error("MarkSaved with stale revision cleared modified")
	}
	if !c.MarkSaved(c.Revision()) || c.Modified() {
		t.Error("MarkSaved with current revision did not clear modified")
	}
}

func TestContainsAndMemoryUsage(t *testing.T) {
	c := newReady(t, Pos{X: -1, Z: 2}, 32, false)
	tests := []struct {
		wx, wy, wz int
		want       bool
	}{
		{-16, 0, 32, true},
		{-1, 31, 47, true},
		{0, 5, 40, false},
		{-5, 32, 40, false},
		{-5, -1, 40, false},
		{-5, 3, 48, false},
	}
	for _, tt := range tests {
		if got := c.Contains(tt.wx, tt.wy, tt.wz); got != tt.want {
			t.Errorf("Contains(%d,%d,%d) = %v, want %v", tt.wx, tt.wy, tt.wz, got, tt.want)
		}
	}
	if got, want := c.MemoryUsage(), 2*Width*Width*32+Width*Width; got < want {
		t.Errorf("MemoryUsage = %d, want at least %d", got, want)
	}
}

func TestAuditBoundaryCells(t *testing.T) {
	c := newReady(t, Pos{}, 16, false)
	// Open sky everywhere, plus block light on a west boundary cell that no
	// neighbour inside the chunk can explain.
	c.Edit(func(g *Grid) {
		for i := 0; i < g.Len(); i++ {
			g.SetLight(i, block.MaxLight<<4)
		}
		g.SetLight(Local{X: 0, Y: 5, Z: 5}.Index(), block.MaxLight<<4|9)
	})

	if vs := c.Audit(); len(vs) != 0 {
		t.Errorf("Audit() = %v, want boundary cells skipped", vs)
	}
	vs := c.AuditIsolated()
	if len(vs) != 1 || vs[0].Rule != "block light bound" || vs[0].At != (Local{X: 0, Y: 5, Z: 5}) {
		t.Errorf("AuditIsolated() = %v, want one block light bound at (0,5,5)", vs)
	}

	// A west neighbour holding light 10 next to the cell explains it.
	west := &FaceSlab{Face: East, Height: 16, Blocks: make([]block.Type, Width*16), Light: make([]uint8, Width*16)}
	for i := range west.Light {
		west.Light[i] = block.MaxLight << 4
	}
	west.Light[5+5*Width] = block.MaxLight<<4 | 10
	var faces [4]*FaceSlab
	faces[West] = west
	if vs := c.AuditFaces(faces); len(vs) != 0 {
		t.Errorf("AuditFaces(west lit) = %v", vs)
	}
}
