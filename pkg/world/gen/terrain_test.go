package gen

import (
	"flag"
	"fmt"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
)

var update = flag.Bool("update", false, "rewrite golden files in testdata")

var testRegistry = block.Default(slog.New(slog.NewTextHandler(io.Discard, nil)))

func emptyChunk(t *testing.T, pos chunk.Pos, height int) *chunk.Chunk {
	t.Helper()
	c, err := chunk.New(pos, testRegistry, chunk.Options{Height: height, Debug: true})
	if err != nil {
		t.Fatalf("chunk.New: %v", err)
	}
	c.MustTransition(chunk.Loaded)
	c.MustTransition(chunk.Generating)
	return c
}

// generated runs every stage and leaves the chunk Populated.
func generated(t *testing.T, g Generator, pos chunk.Pos, height int) *chunk.Chunk {
	t.Helper()
	c := emptyChunk(t, pos, height)
	c.Edit(func(grid *chunk.Grid) { g.Generate(grid, pos) })
	c.MustTransition(chunk.Generated)
	c.Edit(func(grid *chunk.Grid) { g.Populate(grid, pos) })
	c.MustTransition(chunk.Populated)
	return c
}

func newTerrain(t *testing.T, seed int64) *Terrain {
	t.Helper()
	tr, err := NewTerrain(DefaultSettings(seed))
	if err != nil {
		t.Fatalf("NewTerrain: %v", err)
	}
	return tr
}

func blocksCRC(c *chunk.Chunk) uint32 {
	p := c.Snapshot()
	buf := make([]byte, len(p.Blocks))
	for i, b := range p.Blocks {
		buf[i] = byte(b)
	}
	return crc32.ChecksumIEEE(buf)
}

// The same seed and position always produce the same blocks.
func TestTerrainDeterministic(t *testing.T) {
	pos := chunk.Pos{}
	a := generated(t, newTerrain(t, 12345), pos, chunk.DefaultHeight)
	b := generated(t, newTerrain(t, 12345), pos, chunk.DefaultHeight)

	if ca, cb := blocksCRC(a), blocksCRC(b); ca != cb {
		t.Fatalf("crc32(blocks) = %#08x and %#08x for the same seed", ca, cb)
	}
	pa, pb := a.Snapshot(), b.Snapshot()
	if pa.Biomes != pb.Biomes {
		t.Error("biomes differ for the same seed")
	}
}

// Chunk (0,0) of seed 42 must keep generating the recorded blocks. Run with
// -update to record it again after an intended generator change.
func TestTerrainGolden(t *testing.T) {
	path := filepath.Join("testdata", "seed42_0_0.crc")
	got := fmt.Sprintf("%#08x", blocksCRC(generated(t, newTerrain(t, 42), chunk.Pos{}, chunk.DefaultHeight)))

	if *update {
		if err := os.MkdirAll("testdata", 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(got+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		return
	}
	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		t.Skipf("no golden checksum yet (%s = %s), record it with -update", path, got)
	}
	if err != nil {
		t.Fatal(err)
	}
	if w := strings.TrimSpace(string(want)); got != w {
		t.Errorf("crc32(blocks) of seed 42 chunk (0,0) = %s, want %s", got, w)
	}
}

func TestTerrainSeedsDiffer(t *testing.T) {
	pos := chunk.Pos{X: 3, Z: -2}
	a := generated(t, newTerrain(t, 1), pos, chunk.DefaultHeight)
	b := generated(t, newTerrain(t, 2), pos, chunk.DefaultHeight)
	if blocksCRC(a) == blocksCRC(b) {
		t.Error("different seeds produced identical chunks")
	}
}

func TestNeighbourChunksDiffer(t *testing.T) {
	tr := newTerrain(t, 99)
	a := generated(t, tr, chunk.Pos{X: 0, Z: 0}, 64)
	b := generated(t, tr, chunk.Pos{X: 1, Z: 0}, 64)
	if blocksCRC(a) == blocksCRC(b) {
		t.Error("adjacent chunks produced identical blocks")
	}
}

func TestHeightfieldRange(t *testing.T) {
	tr := newTerrain(t, 7)
	s := tr.Settings()
	for wx := -200; wx < 200; wx += 7 {
		for wz := -200; wz < 200; wz += 11 {
			h, biome := tr.column(wx, wz)
			if h < s.SeaLevel-8 || h > s.SeaLevel+8 {
				t.Fatalf("column(%d,%d) height = %d, want [%d,%d]", wx, wz, h, s.SeaLevel-8, s.SeaLevel+8)
			}
			if biome > chunk.Mountains {
				t.Fatalf("column(%d,%d) biome = %d", wx, wz, biome)
			}
			if got := tr.SurfaceAt(wx, wz); got != h-1 {
				t.Fatalf("SurfaceAt(%d,%d) = %d, want %d", wx, wz, got, h-1)
			}
		}
	}
}

func TestBiomeThresholds(t *testing.T) {
	tests := []struct {
		n    float64
		want chunk.Biome
	}{
		{0.0, chunk.Desert},
		{0.3, chunk.Desert},
		{0.31, chunk.Plains},
		{0.5, chunk.Plains},
		{0.51, chunk.Forest},
		{0.7, chunk.Forest},
		{0.71, chunk.Mountains},
		{1.0, chunk.Mountains},
	}
	for _, tt := range tests {
		if got := biomeFor(tt.n); got != tt.want {
			t.Errorf("biomeFor(%v) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestColumnFill(t *testing.T) {
	tr := newTerrain(t, 5)
	pos := chunk.Pos{X: 2, Z: 2}
	c := emptyChunk(t, pos, 64)
	var hf *heightfield
	c.Edit(func(g *chunk.Grid) { hf = tr.shape(g, pos) })
	c.MustTransition(chunk.Generated)

	sea := tr.Settings().SeaLevel
	for x := 0; x < 16; x++ {
		for z := 0; z < 16; z++ {
			surf := hf[x][z]
			top := block.Grass
			if c.GetBiome(x, z) == chunk.Desert {
				top = block.Sand
			}
			for y := 0; y < 64; y++ {
				want := block.Air
				switch {
				case y < surf-2:
					want = block.Stone
				case y < surf:
					want = block.Dirt
				case y == surf:
					want = top
				case y < sea:
					want = block.Water
				}
				if got := c.GetBlock(chunk.Local{X: x, Y: y, Z: z}); got != want {
					t.Fatalf("block(%d,%d,%d) = %d, want %d (surface %d)", x, y, z, got, want, surf)
				}
			}
		}
	}
}

// Carving never changes the top non-Air non-Water block of a column.
func TestCavesPreserveSurface(t *testing.T) {
	carved := 0
	for _, tc := range []struct {
		seed int64
		pos  chunk.Pos
	}{
		{7, chunk.Pos{}},
		{1, chunk.Pos{X: -1, Z: 4}},
		{42, chunk.Pos{X: -1, Z: 4}},
		{12345, chunk.Pos{X: -1, Z: 4}},
	} {
		seed, pos := tc.seed, tc.pos
		tr := newTerrain(t, seed)
		c := emptyChunk(t, pos, chunk.DefaultHeight)

		c.Edit(func(g *chunk.Grid) {
			hf := tr.shape(g, pos)
			before := g.SolidCount()
			tr.carve(g, pos, hf)
			carved += before - g.SolidCount()

			for x := 0; x < 16; x++ {
				for z := 0; z < 16; z++ {
					if got := g.Top(x, z, isTerrain); got != hf[x][z] {
						t.Errorf("seed %d: top of column (%d,%d) = %d, want %d", seed, x, z, got, hf[x][z])
					}
				}
			}
		})
	}
	if carved == 0 {
		t.Error("caves removed no stone for any seed")
	}
}

func TestCavesOnlyReplaceStone(t *testing.T) {
	tr := newTerrain(t, 77)
	pos := chunk.Pos{}
	c := emptyChunk(t, pos, 64)
	c.Edit(func(g *chunk.Grid) {
		hf := tr.shape(g, pos)
		before := make([]block.Type, g.Len())
		for i := range before {
			before[i] = g.Block(i)
		}
		tr.carve(g, pos, hf)
		for i := range before {
			if got := g.Block(i); got != before[i] && !(before[i] == block.Stone && got == block.Air) {
				t.Fatalf("cell %v changed %d -> %d", chunk.LocalAt(i), before[i], got)
			}
		}
	})
}

// Walkers take every step even after wandering out of the chunk.
func TestCaveWalkersTakeEveryStep(t *testing.T) {
	tr := newTerrain(t, 7)
	s := tr.Settings()
	for _, pos := range []chunk.Pos{{}, {X: 3, Z: -8}, {X: -20, Z: 11}} {
		steps, outside := 0, 0
		tr.walkCaves(pos, s.SeaLevel, func(x, y, z int) {
			steps++
			if x < 0 || x >= chunk.Width || z < 0 || z >= chunk.Width {
				outside++
			}
		})
		if want := s.CaveSeeds * s.CaveSteps; steps != want {
			t.Errorf("chunk %v: walker steps = %d, want %d", pos, steps, want)
		}
		t.Logf("chunk %v: %d of %d steps outside the chunk", pos, outside, steps)
	}
}

func TestOresOnlyReplaceStone(t *testing.T) {
	tr := newTerrain(t, 31337)
	pos := chunk.Pos{X: 5, Z: 5}
	c := emptyChunk(t, pos, chunk.DefaultHeight)
	c.Edit(func(g *chunk.Grid) {
		tr.shape(g, pos)
		before := make([]block.Type, g.Len())
		for i := range before {
			before[i] = g.Block(i)
		}
		tr.placeOres(g, pos)
		ores := 0
		for i := range before {
			got := g.Block(i)
			if got == before[i] {
				continue
			}
			if before[i] != block.Stone {
				t.Fatalf("ore replaced %d at %v", before[i], chunk.LocalAt(i))
			}
			switch got {
			case block.CoalOre, block.IronOre, block.GoldOre, block.DiamondOre:
				ores++
			default:
				t.Fatalf("unexpected block %d at %v", got, chunk.LocalAt(i))
			}
		}
		if ores == 0 {
			t.Error("no ore placed")
		}
	})
}

func TestSolidCountAfterGeneration(t *testing.T) {
	c := generated(t, newTerrain(t, 2024), chunk.Pos{X: 9, Z: -9}, chunk.DefaultHeight)
	if vs := c.Audit(); len(vs) != 0 {
		t.Errorf("Audit() = %v", vs)
	}
	if !c.Modified() {
		t.Error("generated chunk should be marked modified until saved")
	}
}

func TestPlaceOakShape(t *testing.T) {
	c := emptyChunk(t, chunk.Pos{}, 32)
	c.Edit(func(g *chunk.Grid) {
		for x := 0; x < 16; x++ {
			for z := 0; z < 16; z++ {
				g.SetBlockAt(x, 9, z, block.Grass)
			}
		}
		g.SetBlockAt(9, 14, 8, block.Stone) // occupied cell inside the leaf box
		placeOak(g, 8, 10, 8)
	})
	c.MustTransition(chunk.Generated)

	for y := 10; y < 14; y++ {
		if got := c.GetBlock(chunk.Local{X: 8, Y: y, Z: 8}); got != block.OakLog {
			t.Errorf("trunk at y=%d = %d, want OakLog", y, got)
		}
	}
	if got := c.GetBlock(chunk.Local{X: 9, Y: 14, Z: 8}); got != block.Stone {
		t.Errorf("occupied cell overwritten with %d", got)
	}
	leaves := 0
	for x := 6; x <= 10; x++ {
		for y := 12; y <= 14; y++ {
			for z := 6; z <= 10; z++ {
				if c.GetBlock(chunk.Local{X: x, Y: y, Z: z}) == block.OakLeaves {
					leaves++
				}
			}
		}
	}
	// 75 cells in the box, minus two trunk cells and the stone.
	if leaves != 72 {
		t.Errorf("leaves = %d, want 72", leaves)
	}
	if got := c.GetBlock(chunk.Local{X: 8, Y: 15, Z: 8}); got != block.Air {
		t.Errorf("above canopy = %d, want Air", got)
	}
}

func TestPlaceOakClipsAtChunkEdge(t *testing.T) {
	c := emptyChunk(t, chunk.Pos{}, 32)
	placed := true
	c.Edit(func(g *chunk.Grid) {
		placeOak(g, 0, 10, 15)
		placed = g.BlockAt(0, 13, 15) == block.OakLog
	})
	if !placed {
		t.Error("trunk at chunk corner not placed")
	}
}

func TestForestGetsTrees(t *testing.T) {
	s := DefaultSettings(4)
	s.TreeChance = 1
	tr, err := NewTerrain(s)
	if err != nil {
		t.Fatal(err)
	}
	// Search a strip of chunks for a forest and check every such column sprouted.
	for cx := int32(0); cx < 32; cx++ {
		pos := chunk.Pos{X: cx}
		c := generated(t, tr, pos, 64)
		logs := 0
		forest := false
		c.View(func(g *chunk.Grid) {
			for i := 0; i < g.Len(); i++ {
				if g.Block(i) == block.OakLog {
					logs++
				}
			}
			for x := 0; x < 16; x++ {
				for z := 0; z < 16; z++ {
					forest = forest || g.Biome(x, z) == chunk.Forest
				}
			}
		})
		if forest {
			if logs == 0 {
				t.Errorf("forest chunk %v has no trees at chance 1", pos)
			}
			return
		}
	}
	t.Skip("no forest found in the searched strip")
}

func TestSettingsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"sea level too low", func(s *Settings) { s.SeaLevel = 4 }},
		{"sea level too high", func(s *Settings) { s.Height = 20; s.SeaLevel = 16 }},
		{"tree chance", func(s *Settings) { s.TreeChance = 1.5 }},
		{"noise scale", func(s *Settings) { s.NoiseScale = 0 }},
		{"ore row", func(s *Settings) { s.Ores = []Ore{{Type: block.CoalOre, MinY: 10, MaxY: 5}} }},
	}
	for _, tt := range tests {
		s := DefaultSettings(0)
		tt.mutate(&s)
		if _, err := NewTerrain(s); err == nil {
			t.Errorf("%s: NewTerrain succeeded, want error", tt.name)
		}
	}
}

func TestFlatGeneratorLayers(t *testing.T) {
	c := generated(t, NewFlatGenerator(), chunk.Pos{}, 16)

	tests := []struct {
		y     int
		block block.Type
	}{
		{0, block.Bedrock},
		{1, block.Stone},
		{2, block.Stone},
		{3, block.Dirt},
		{4, block.Grass},
		{5, block.Air},
	}
	for _, tt := range tests {
		if got := c.GetBlock(chunk.Local{X: 3, Y: tt.y, Z: 12}); got != tt.block {
			t.Errorf("y=%d: got %d, want %d", tt.y, got, tt.block)
		}
	}
	if got := NewFlatGenerator().SurfaceAt(100, -100); got != 4 {
		t.Errorf("SurfaceAt = %d, want 4", got)
	}
}
