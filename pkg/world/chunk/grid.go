package chunk

import (
	"fmt"

	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
)

// Biome is a column classification.
type Biome uint8

const (
	Desert Biome = iota
	Plains
	Forest
	Mountains
)

func (b Biome) String() string {
	switch b {
	case Desert:
		return "desert"
	case Plains:
		return "plains"
	case Forest:
		return "forest"
	case Mountains:
		return "mountains"
	}
	return fmt.Sprintf("biome(%d)", uint8(b))
}

// Grid is the raw cell storage of a chunk. Generation and lighting passes
// receive a *Grid from Chunk.Edit while the chunk's exclusive lock is held;
// a Grid must not be retained after the callback returns.
//
// Light is one byte per cell: sky light in the high nibble, block light in
// the low nibble.
type Grid struct {
	height int
	reg    *block.Registry
	blocks []block.Type
	light  []uint8
	biomes [layerArea]Biome
	solid  int

	blocksChanged bool
	lightChanged  bool
}

func newGrid(height int, reg *block.Registry) Grid {
	n := layerArea * height
	return Grid{
		height: height,
		reg:    reg,
		blocks: make([]block.Type, n),
		light:  make([]uint8, n),
	}
}

// Height returns the number of cell layers.
func (g *Grid) Height() int { return g.height }

// Len returns the number of cells.
func (g *Grid) Len() int { return len(g.blocks) }

// Registry returns the block registry the grid counts solids with.
func (g *Grid) Registry() *block.Registry { return g.reg }

// InBounds reports whether local (x, y, z) is inside the grid.
func (g *Grid) InBounds(x, y, z int) bool {
	return x >= 0 && x < Width && z >= 0 && z < Width && y >= 0 && y < g.height
}

// Block returns the type at cell index i.
func (g *Grid) Block(i int) block.Type { return g.blocks[i] }

// BlockAt returns the type at local (x, y, z), or Air outside the grid.
func (g *Grid) BlockAt(x, y, z int) block.Type {
	if !g.InBounds(x, y, z) {
		return block.Air
	}
	return g.blocks[x+z*Width+y*layerArea]
}

// SetBlock stores t at cell index i and keeps the solid count current.
func (g *Grid) SetBlock(i int, t block.Type) {
	old := g.blocks[i]
	if old == t {
		return
	}
	if g.reg.Solid(old) {
		g.solid--
	}
	if g.reg.Solid(t) {
		g.solid++
	}
	g.blocks[i] = t
	g.blocksChanged = true
}

// SetBlockAt stores t at local (x, y, z). Writes outside the grid are
// dropped and reported as false.
func (g *Grid) SetBlockAt(x, y, z int, t block.Type) bool {
	if !g.InBounds(x, y, z) {
		return false
	}
	g.SetBlock(x+z*Width+y*layerArea, t)
	return true
}

// Sky returns the sky light at cell index i.
func (g *Grid) Sky(i int) uint8 { return g.light[i] >> 4 }

// BlockLight returns the block light at cell index i.
func (g *Grid) BlockLight(i int) uint8 { return g.light[i] & 0x0F }

// Light returns the packed light byte at cell index i.
func (g *Grid) Light(i int) uint8 { return g.light[i] }

// SetSky stores the sky channel at cell index i.
func (g *Grid) SetSky(i int, v uint8) {
	b := g.light[i]&0x0F | v<<4
	if b != g.light[i] {
		g.light[i] = b
		g.lightChanged = true
	}
}

// SetBlockLight stores the block channel at cell index i.
func (g *Grid) SetBlockLight(i int, v uint8) {
	b := g.light[i]&0xF0 | v&0x0F
	if b != g.light[i] {
		g.light[i] = b
		g.lightChanged = true
	}
}

// SetLight stores the packed light byte at cell index i.
func (g *Grid) SetLight(i int, v uint8) {
	if g.light[i] != v {
		g.light[i] = v
		g.lightChanged = true
	}
}

// ClearLight zeroes both channels in every cell.
func (g *Grid) ClearLight() {
	for i := range g.light {
		if g.light[i] != 0 {
			g.light[i] = 0
			g.lightChanged = true
		}
	}
}

// Biome returns the biome of local column (x, z).
func (g *Grid) Biome(x, z int) Biome { return g.biomes[x+z*Width] }

// SetBiome stores the biome of local column (x, z).
func (g *Grid) SetBiome(x, z int, b Biome) { g.biomes[x+z*Width] = b }

// SolidCount returns the number of solid cells.
func (g *Grid) SolidCount() int { return g.solid }

// Top returns the highest y in column (x, z) whose block satisfies keep, or
// -1 if none does.
func (g *Grid) Top(x, z int, keep func(block.Type) bool) int {
	base := x + z*Width
	for y := g.height - 1; y >= 0; y-- {
		if keep(g.blocks[base+y*layerArea]) {
			return y
		}
	}
	return -1
}

func (g *Grid) recountSolid() int {
	n := 0
	for _, t := range g.blocks {
		if g.reg.Solid(t) {
			n++
		}
	}
	return n
}
