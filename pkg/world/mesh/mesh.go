package mesh

import (
	"fmt"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
)

// Quad is one visible block face in chunk-local coordinates.
type Quad struct {
	// Corners are counter-clockwise seen from outside the block.
	Corners [4]mgl32.Vec3
	Normal  mgl32.Vec3
	Color   mgl32.Vec3
	// Light is the smoothed brightness at each corner, in [0, 1].
	Light [4]float32
}

// Mesh is the renderable surface of one chunk, grouped by material.
type Mesh struct {
	Pos      chunk.Pos
	Revision uint64
	Groups   map[string][]Quad
}

// Stale reports whether c changed after the mesh was extracted.
func (m *Mesh) Stale(c *chunk.Chunk) bool {
	return c.Revision() != m.Revision
}

// QuadCount returns the number of quads over all materials.
func (m *Mesh) QuadCount() int {
	n := 0
	for _, qs := range m.Groups {
		n += len(qs)
	}
	return n
}

// Materials returns the material names in sorted order.
func (m *Mesh) Materials() []string {
	out := make([]string, 0, len(m.Groups))
	for k := range m.Groups {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Neighbors holds the boundary layers of the four horizontal neighbours,
// indexed by the face of the meshed chunk they touch: nb[chunk.East] is the
// west layer of the chunk to the east. A nil entry is open air in full sky
// light.
type Neighbors [4]*chunk.FaceSlab

// Extractor turns lighted chunks into meshes.
type Extractor struct {
	reg   *block.Registry
	tints map[chunk.Biome]mgl32.Vec3
}

// DefaultTints colour tinted materials per biome.
var DefaultTints = map[chunk.Biome]mgl32.Vec3{
	chunk.Desert:    {0.749, 0.718, 0.333},
	chunk.Plains:    {0.486, 0.741, 0.419},
	chunk.Forest:    {0.349, 0.682, 0.188},
	chunk.Mountains: {0.541, 0.714, 0.537},
}

var white = mgl32.Vec3{1, 1, 1}

// NewExtractor creates an Extractor using the default biome tints.
func NewExtractor(reg *block.Registry) *Extractor {
	return &Extractor{reg: reg, tints: DefaultTints}
}

type faceDef struct {
	dx, dy, dz int
	normal     mgl32.Vec3
	corners    [4]mgl32.Vec3
}

var faceDefs = [6]faceDef{
	{1, 0, 0, mgl32.Vec3{1, 0, 0}, [4]mgl32.Vec3{{1, 0, 0}, {1, 1, 0}, {1, 1, 1}, {1, 0, 1}}},
	{-1, 0, 0, mgl32.Vec3{-1, 0, 0}, [4]mgl32.Vec3{{0, 0, 1}, {0, 1, 1}, {0, 1, 0}, {0, 0, 0}}},
	{0, 1, 0, mgl32.Vec3{0, 1, 0}, [4]mgl32.Vec3{{0, 1, 0}, {0, 1, 1}, {1, 1, 1}, {1, 1, 0}}},
	{0, -1, 0, mgl32.Vec3{0, -1, 0}, [4]mgl32.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 0, 1}, {0, 0, 1}}},
	{0, 0, 1, mgl32.Vec3{0, 0, 1}, [4]mgl32.Vec3{{1, 0, 1}, {1, 1, 1}, {0, 1, 1}, {0, 0, 1}}},
	{0, 0, -1, mgl32.Vec3{0, 0, -1}, [4]mgl32.Vec3{{0, 0, 0}, {0, 1, 0}, {1, 1, 0}, {1, 0, 0}}},
}

// Extract builds the mesh of c, which must be Lighted. Faces against
// neighbouring chunks are culled using nb.
func (x *Extractor) Extract(c *chunk.Chunk, nb *Neighbors) (*Mesh, error) {
	if s := c.State(); s != chunk.Lighted {
		pos := c.Pos()
		return nil, &chunk.Error{Kind: chunk.IllegalState, Op: "extract mesh", Pos: &pos,
			Err: fmt.Errorf("state %s", s)}
	}
	if nb == nil {
		nb = &Neighbors{}
	}

	m := &Mesh{Pos: c.Pos(), Groups: make(map[string][]Quad)}
	c.View(func(g *chunk.Grid) {
		m.Revision = c.Revision()
		s := sampler{g: g, nb: nb}
		for i := 0; i < g.Len(); i++ {
			t := g.Block(i)
			if t == block.Air {
				continue
			}
			l := chunk.LocalAt(i)
			b := x.reg.Resolve(t)
			color := white
			if b.Tinted {
				color = x.tint(g.Biome(l.X, l.Z))
			}
			for _, fd := range faceDefs {
				nt, _, ok := s.at(l.X+fd.dx, l.Y+fd.dy, l.Z+fd.dz)
				if !ok {
					nt = block.Air
				}
				if !x.visible(t, nt) {
					continue
				}
				q := Quad{Normal: fd.normal, Color: color}
				base := mgl32.Vec3{float32(l.X), float32(l.Y), float32(l.Z)}
				for k, corner := range fd.corners {
					q.Corners[k] = base.Add(corner)
					q.Light[k] = s.smooth(l, fd, corner)
				}
				m.Groups[b.Material] = append(m.Groups[b.Material], q)
			}
		}
	})
	return m, nil
}

// visible reports whether the face of t against neighbour nt is drawn.
func (x *Extractor) visible(t, nt block.Type) bool {
	n := x.reg.Resolve(nt)
	if n.Opaque {
		return false
	}
	return t != nt
}

func (x *Extractor) tint(b chunk.Biome) mgl32.Vec3 {
	if c, ok := x.tints[b]; ok {
		return c
	}
	return white
}

// sampler reads cells of the meshed chunk and its neighbour layers.
type sampler struct {
	g  *chunk.Grid
	nb *Neighbors
}

// at returns the block and rendered light (max of sky and block) of local
// cell (x, y, z), which may lie one step outside the chunk. ok is false when
// the cell is not available.
func (s *sampler) at(x, y, z int) (block.Type, uint8, bool) {
	if y < 0 {
		return block.Bedrock, 0, true
	}
	if y >= s.g.Height() {
		return block.Air, block.MaxLight, true
	}
	inX := x >= 0 && x < chunk.Width
	inZ := z >= 0 && z < chunk.Width
	switch {
	case inX && inZ:
		i := chunk.Local{X: x, Y: y, Z: z}.Index()
		return s.g.Block(i), max(s.g.Sky(i), s.g.BlockLight(i)), true
	case inZ && (x == -1 || x == chunk.Width):
		f := chunk.West
		if x == chunk.Width {
			f = chunk.East
		}
		return s.slab(f, z, y)
	case inX && (z == -1 || z == chunk.Width):
		f := chunk.North
		if z == chunk.Width {
			f = chunk.South
		}
		return s.slab(f, x, y)
	}
	return block.Air, 0, false
}

func (s *sampler) slab(f chunk.Face, u, y int) (block.Type, uint8, bool) {
	sl := s.nb[f]
	if sl == nil || y >= sl.Height {
		return block.Air, block.MaxLight, false
	}
	return sl.Block(u, y), max(sl.Sky(u, y), sl.BlockLight(u, y)), true
}

// smooth averages the light of the four cells touching a corner in the
// layer just outside face fd. Unavailable cells repeat the face cell.
func (s *sampler) smooth(l chunk.Local, fd faceDef, corner mgl32.Vec3) float32 {
	ox, oy, oz := l.X+fd.dx, l.Y+fd.dy, l.Z+fd.dz
	_, centre, ok := s.at(ox, oy, oz)
	if !ok {
		centre = block.MaxLight
	}

	// Step towards the corner along the two axes of the face plane.
	step := func(v float32) int {
		if v > 0.5 {
			return 1
		}
		return -1
	}
	var ax, ay, az, bx, by, bz int
	switch {
	case fd.dx != 0:
		ay, bz = step(corner.Y()), step(corner.Z())
	case fd.dy != 0:
		ax, bz = step(corner.X()), step(corner.Z())
	default:
		ax, by = step(corner.X()), step(corner.Y())
	}

	sum := float32(centre)
	for _, d := range [3][3]int{{ax, ay, az}, {bx, by, bz}, {ax + bx, ay + by, az + bz}} {
		_, v, ok := s.at(ox+d[0], oy+d[1], oz+d[2])
		if !ok {
			v = centre
		}
		sum += float32(v)
	}
	return sum / (4 * block.MaxLight)
}
