package chunk

import (
	"fmt"

	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
)

// Violation describes one broken chunk invariant.
type Violation struct {
	Rule   string
	At     Local
	Detail string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s at (%d,%d,%d): %s", v.Rule, v.At.X, v.At.Y, v.At.Z, v.Detail)
}

const maxViolations = 32

// Audit checks the chunk's invariants and returns at most a handful of
// violations. Boundary cells may hold light imported from neighbours that
// are not known here, so their light bound is not checked.
func (c *Chunk) Audit() []Violation {
	return c.AuditFaces([4]*FaceSlab{})
}

// AuditIsolated is Audit for a chunk lit without neighbours: nothing
// crosses any face, so boundary cells are checked too.
func (c *Chunk) AuditIsolated() []Violation {
	var faces [4]*FaceSlab
	for _, f := range Faces {
		faces[f] = &FaceSlab{Face: f, Height: c.grid.height,
			Blocks: make([]block.Type, Width*c.grid.height), Light: make([]uint8, Width*c.grid.height)}
	}
	return c.AuditFaces(faces)
}

// AuditFaces is Audit with the boundary layers of the neighbours, indexed
// by this chunk's face as in light.Borders. Boundary cells next to a nil
// entry are not bound-checked.
func (c *Chunk) AuditFaces(faces [4]*FaceSlab) []Violation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.grid.audit(&faces)
}

func (g *Grid) audit(faces *[4]*FaceSlab) []Violation {
	var out []Violation
	report := func(rule string, l Local, format string, args ...any) bool {
		out = append(out, Violation{Rule: rule, At: l, Detail: fmt.Sprintf(format, args...)})
		return len(out) < maxViolations
	}

	if n := g.recountSolid(); n != g.solid {
		if !report("solid count", Local{}, "stored %d, recount %d", g.solid, n) {
			return out
		}
	}
	if g.lightEmpty() {
		return out
	}
	if faces == nil {
		faces = &[4]*FaceSlab{}
	}

	reg := g.reg
	for z := 0; z < Width; z++ {
		for x := 0; x < Width; x++ {
			top := g.Top(x, z, reg.Opaque)
			for y := g.height - 1; y >= 0; y-- {
				i := x + z*Width + y*layerArea
				l := Local{X: x, Y: y, Z: z}
				b := reg.Resolve(g.blocks[i])
				sky, blk := g.Sky(i), g.BlockLight(i)

				if y > top && sky != block.MaxLight {
					if !report("sky column", l, "sky %d above column top %d", sky, top) {
						return out
					}
				}
				if b.Opaque && sky != 0 {
					if !report("opaque sky", l, "sky %d inside %s", sky, b.Name) {
						return out
					}
				}
				boundSky, boundBlk, ok := g.lightBound(x, y, z, b, faces)
				if !ok {
					continue
				}
				skySeed := uint8(0)
				if y > top {
					skySeed = block.MaxLight
				}
				if sky > max(skySeed, boundSky) {
					if !report("sky bound", l, "sky %d, neighbours allow %d", sky, boundSky) {
						return out
					}
				}
				if blk > max(b.LightEmission, boundBlk) {
					if !report("block light bound", l, "block light %d, neighbours allow %d", blk, boundBlk) {
						return out
					}
				}
			}
		}
	}
	return out
}

// lightBound returns the most light the neighbours of (x, y, z) can pass
// into it: max(1, opacity) is lost per step inside the chunk, opacity alone
// across a face. ok is false when a face the cell touches has no slab.
func (g *Grid) lightBound(x, y, z int, b *block.Block, faces *[4]*FaceSlab) (sky, blk uint8, ok bool) {
	i := x + z*Width + y*layerArea
	att := max(1, b.LightOpacity)
	from := func(v, a uint8) {
		sky = max(sky, sub(v>>4, a))
		blk = max(blk, sub(v&0x0F, a))
	}
	side := func(inside bool, j int, f Face, u int) bool {
		if inside {
			from(g.light[j], att)
			return true
		}
		s := faces[f]
		if s == nil {
			return false
		}
		if y < s.Height {
			from(s.Light[u+y*Width], b.LightOpacity)
		}
		return true
	}
	if !side(x > 0, i-1, West, z) || !side(x < Width-1, i+1, East, z) ||
		!side(z > 0, i-Width, North, x) || !side(z < Width-1, i+Width, South, x) {
		return 0, 0, false
	}
	if y > 0 {
		from(g.light[i-layerArea], att)
	}
	if y < g.height-1 {
		from(g.light[i+layerArea], att)
	}
	return sky, blk, true
}

func (g *Grid) lightEmpty() bool {
	for _, v := range g.light {
		if v != 0 {
			return false
		}
	}
	return true
}

// LightEmpty reports whether no cell holds any light.
func (g *Grid) LightEmpty() bool { return g.lightEmpty() }

func sub(a, b uint8) uint8 {
	if a < b {
		return 0
	}
	return a - b
}
