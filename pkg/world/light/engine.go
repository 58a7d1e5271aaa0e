package light

import (
	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
)

// maxSweeps bounds relaxation. A fixed point is reached after at most
// block.MaxLight changing sweeps, so hitting this limit means a bug.
const maxSweeps = 4 * block.MaxLight

const layerArea = chunk.Width * chunk.Width

// Borders holds copies of the neighbouring boundary layers, indexed by the
// face of this chunk they touch. Nil entries are absent neighbours.
type Borders [4]*chunk.FaceSlab

// Stats summarises one relaxation.
type Stats struct {
	// Sweeps is the number of sweeps that changed at least one cell.
	Sweeps int
	// Updates is the number of cell writes.
	Updates int
}

// Engine computes sky and block light. It holds no per-chunk state and is
// safe for concurrent use on distinct grids.
type Engine struct {
	reg *block.Registry

	// OnSweep, if set, is called after every relaxation sweep.
	OnSweep func(sweep int, g *chunk.Grid)
}

// NewEngine creates an Engine resolving opacity and emission through reg.
func NewEngine(reg *block.Registry) *Engine {
	return &Engine{reg: reg}
}

// Light computes the light of an isolated chunk: sky seeding, emission
// seeding, then relaxation to a fixed point. Neighbours are ignored.
func (e *Engine) Light(g *chunk.Grid) Stats {
	full := Full(g.Height())
	e.Reset(g, full)
	return e.Relax(g, full, nil)
}

// Relight recomputes light inside box, importing from the cells around it
// and from borders. It can lower light as well as raise it.
func (e *Engine) Relight(g *chunk.Grid, box Box, borders *Borders) Stats {
	e.Reset(g, box)
	return e.Relax(g, box, borders)
}

// Reset clears both channels inside box and re-seeds them: sky 15 above
// each column's highest opaque block, block light from emission.
func (e *Engine) Reset(g *chunk.Grid, box Box) {
	if box.Empty() {
		return
	}
	for z := box.MinZ; z <= box.MaxZ; z++ {
		for x := box.MinX; x <= box.MaxX; x++ {
			top := g.Top(x, z, e.reg.Opaque)
			for y := box.MinY; y <= box.MaxY; y++ {
				i := x + z*chunk.Width + y*layerArea
				var sky uint8
				if y > top {
					sky = block.MaxLight
				}
				g.SetLight(i, sky<<4|e.reg.Emission(g.Block(i)))
			}
		}
	}
}

// JoinFace imports light across face f from src, the neighbour's boundary
// layer, and spreads it through the slab next to f. Light only rises.
func (e *Engine) JoinFace(g *chunk.Grid, f chunk.Face, src *chunk.FaceSlab) Stats {
	var b Borders
	b[f] = src
	return e.Relax(g, Slab(f, g.Height()), &b)
}

// Join imports light from every present border and spreads it through the
// whole chunk. Light only rises.
func (e *Engine) Join(g *chunk.Grid, borders *Borders) Stats {
	return e.Relax(g, Full(g.Height()), borders)
}

// Relax raises light inside box until no cell changes. A cell takes the
// largest of its own value and each in-chunk neighbour's value minus
// max(1, opacity). Across a chunk face the first cell takes the border value
// minus its opacity. Cells outside box are read but never written.
func (e *Engine) Relax(g *chunk.Grid, box Box, borders *Borders) Stats {
	var st Stats
	if box.Empty() {
		return st
	}
	if borders == nil {
		borders = &Borders{}
	}
	for sweep := 0; sweep < maxSweeps; sweep++ {
		var n int
		if sweep%2 == 0 {
			n = e.sweepForward(g, box, borders)
		} else {
			n = e.sweepBackward(g, box, borders)
		}
		if e.OnSweep != nil {
			e.OnSweep(sweep, g)
		}
		if n == 0 {
			break
		}
		st.Sweeps++
		st.Updates += n
	}
	return st
}

func (e *Engine) sweepForward(g *chunk.Grid, box Box, borders *Borders) int {
	n := 0
	for y := box.MinY; y <= box.MaxY; y++ {
		for z := box.MinZ; z <= box.MaxZ; z++ {
			for x := box.MinX; x <= box.MaxX; x++ {
				if e.pull(g, x, y, z, borders) {
					n++
				}
			}
		}
	}
	return n
}

func (e *Engine) sweepBackward(g *chunk.Grid, box Box, borders *Borders) int {
	n := 0
	for y := box.MaxY; y >= box.MinY; y-- {
		for z := box.MaxZ; z >= box.MinZ; z-- {
			for x := box.MaxX; x >= box.MinX; x-- {
				if e.pull(g, x, y, z, borders) {
					n++
				}
			}
		}
	}
	return n
}

// pull raises cell (x, y, z) from its neighbours and reports a change.
func (e *Engine) pull(g *chunk.Grid, x, y, z int, borders *Borders) bool {
	i := x + z*chunk.Width + y*layerArea
	b := e.reg.Resolve(g.Block(i))
	if b.Opaque {
		// Opaque cells keep their seed: no sky, own emission.
		return false
	}
	cur := g.Light(i)
	sky, blk := cur>>4, cur&0x0F
	if sky == block.MaxLight && blk == block.MaxLight {
		return false
	}

	att := max(1, b.LightOpacity)
	from := func(v, a uint8) {
		sky = max(sky, sub(v>>4, a))
		blk = max(blk, sub(v&0x0F, a))
	}
	fromBorder := func(f chunk.Face, u int) {
		if s := borders[f]; s != nil && y < s.Height {
			from(s.Light[u+y*chunk.Width], b.LightOpacity)
		}
	}

	if x > 0 {
		from(g.Light(i-1), att)
	} else {
		fromBorder(chunk.West, z)
	}
	if x < chunk.Width-1 {
		from(g.Light(i+1), att)
	} else {
		fromBorder(chunk.East, z)
	}
	if z > 0 {
		from(g.Light(i-chunk.Width), att)
	} else {
		fromBorder(chunk.North, x)
	}
	if z < chunk.Width-1 {
		from(g.Light(i+chunk.Width), att)
	} else {
		fromBorder(chunk.South, x)
	}
	if y > 0 {
		from(g.Light(i-layerArea), att)
	}
	if y < g.Height()-1 {
		from(g.Light(i+layerArea), att)
	}

	if v := sky<<4 | blk; v != cur {
		g.SetLight(i, v)
		return true
	}
	return false
}

func sub(a, b uint8) uint8 {
	if a < b {
		return 0
	}
	return a - b
}
