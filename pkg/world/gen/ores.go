package gen

import (
	"math"

	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
)

// placeOres scatters ore veins. Veins wander one axis step at a time and
// replace Stone only.
func (t *Terrain) placeOres(g *chunk.Grid, pos chunk.Pos) {
	rng := newChunkRNG(t.settings.Seed, pos, saltOres)

	for _, ore := range t.settings.Ores {
		maxY := min(ore.MaxY, g.Height()-1)
		if maxY < ore.MinY {
			continue
		}
		veins := int(math.Floor(ore.Frequency*100 + 1e-9))
		for range veins {
			x := rng.nextN(chunk.Width)
			y := ore.MinY + rng.nextN(maxY-ore.MinY+1)
			z := rng.nextN(chunk.Width)
			placeVein(g, x, y, z, ore.Type, ore.VeinSize, rng)
		}
	}
}

func placeVein(g *chunk.Grid, x, y, z int, ore block.Type, size int, rng *chunkRNG) {
	for range size {
		if g.BlockAt(x, y, z) == block.Stone {
			g.SetBlockAt(x, y, z, ore)
		}

		switch rng.nextN(6) {
		case 0:
			x++
		case 1:
			x--
		case 2:
			y++
		case 3:
			y--
		case 4:
			z++
		case 5:
			z--
		}
	}
}
