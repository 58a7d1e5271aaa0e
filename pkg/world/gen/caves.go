package gen

import (
	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
)

// carve digs random-walk caves. Each step clears the 3×3×3 box around the
// walker, turning Stone into Air and leaving every other block alone, so
// surface layers and water are never breached.
func (t *Terrain) carve(g *chunk.Grid, pos chunk.Pos, hf *heightfield) {
	t.walkCaves(pos, max(hf.max(), 2), func(x, y, z int) {
		excavate(g, x, y, z)
	})
}

// walkCaves calls visit for every step of every cave walker of the chunk at
// pos. Walkers keep stepping after leaving the chunk, since they may wander
// back; excavate ignores cells outside it.
func (t *Terrain) walkCaves(pos chunk.Pos, top int, visit func(x, y, z int)) {
	rng := newChunkRNG(t.settings.Seed, pos, saltCaves)
	for range t.settings.CaveSeeds {
		x := rng.nextN(chunk.Width)
		y := 1 + rng.nextN(top-1)
		z := rng.nextN(chunk.Width)

		for range t.settings.CaveSteps {
			visit(x, y, z)
			x += rng.step()
			y += rng.step()
			z += rng.step()
		}
	}
}

func excavate(g *chunk.Grid, cx, cy, cz int) {
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for dz := -1; dz <= 1; dz++ {
				x, y, z := cx+dx, cy+dy, cz+dz
				if g.BlockAt(x, y, z) == block.Stone {
					g.SetBlockAt(x, y, z, block.Air)
				}
			}
		}
	}
}
