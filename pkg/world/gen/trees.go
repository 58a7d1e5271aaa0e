package gen

import (
	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
)

const (
	trunkHeight = 4
	leafRadius  = 2 // 5×5 horizontally
	leafHalf    = 1 // 3 layers
)

// plantTrees places oaks on forest grass. Columns are visited in x-major
// order so the RNG stream is consumed identically on every run.
func (t *Terrain) plantTrees(g *chunk.Grid, pos chunk.Pos) {
	rng := newChunkRNG(t.settings.Seed, pos, saltVegetation)

	for x := 0; x < chunk.Width; x++ {
		for z := 0; z < chunk.Width; z++ {
			if g.Biome(x, z) != chunk.Forest {
				continue
			}
			if rng.nextFloat() >= t.settings.TreeChance {
				continue
			}
			y := g.Top(x, z, isTerrain)
			if y < 0 || g.BlockAt(x, y, z) != block.Grass || g.BlockAt(x, y+1, z) != block.Air {
				continue
			}
			placeOak(g, x, y+1, z)
		}
	}
}

func isTerrain(b block.Type) bool {
	return b != block.Air && b != block.Water
}

// placeOak grows a 4-tall trunk from baseY and a 5×3×5 leaf box centred on
// the trunk top. Leaves only fill empty cells; anything outside the chunk is
// dropped.
func placeOak(g *chunk.Grid, x, baseY, z int) {
	for y := baseY; y < baseY+trunkHeight; y++ {
		switch g.BlockAt(x, y, z) {
		case block.Air, block.OakLeaves:
			g.SetBlockAt(x, y, z, block.OakLog)
		}
	}

	top := baseY + trunkHeight - 1
	for dy := -leafHalf; dy <= leafHalf; dy++ {
		for dx := -leafRadius; dx <= leafRadius; dx++ {
			for dz := -leafRadius; dz <= leafRadius; dz++ {
				lx, ly, lz := x+dx, top+dy, z+dz
				if !g.InBounds(lx, ly, lz) || g.BlockAt(lx, ly, lz) != block.Air {
					continue
				}
				g.SetBlockAt(lx, ly, lz, block.OakLeaves)
			}
		}
	}
}
