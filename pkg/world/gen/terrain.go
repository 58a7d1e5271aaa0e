package gen

import (
	"math"

	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
)

const (
	heightOctaves     = 4
	heightPersistence = 0.5
	heightLacunarity  = 2.0
)

// heightfield holds the surface y (top terrain block) of every column,
// indexed [x][z].
type heightfield [chunk.Width][chunk.Width]int

func (hf *heightfield) max() int {
	m := hf[0][0]
	for x := range hf {
		for z := range hf[x] {
			m = max(m, hf[x][z])
		}
	}
	return m
}

// column returns the terrain height h (one above the surface block) and the
// biome of world column (wx, wz).
func (t *Terrain) column(wx, wz int) (int, chunk.Biome) {
	s := t.settings
	f := t.height.Fractal(float64(wx)*s.NoiseScale, float64(wz)*s.NoiseScale,
		heightOctaves, heightPersistence, heightLacunarity)
	n := min(max((f+1)/2, 0), 1)

	h := s.SeaLevel - heightSpread + int(math.Round(n*2*heightSpread))
	h = min(max(h, 1), s.Height)
	return h, biomeFor(n)
}

func biomeFor(n float64) chunk.Biome {
	switch {
	case n > 0.7:
		return chunk.Mountains
	case n > 0.5:
		return chunk.Forest
	case n > 0.3:
		return chunk.Plains
	default:
		return chunk.Desert
	}
}

// shape fills every column from the heightfield and records the biomes.
func (t *Terrain) shape(g *chunk.Grid, pos chunk.Pos) *heightfield {
	var hf heightfield
	ox, oz := pos.Origin()
	for x := 0; x < chunk.Width; x++ {
		for z := 0; z < chunk.Width; z++ {
			h, biome := t.column(ox+x, oz+z)
			g.SetBiome(x, z, biome)
			t.fillColumn(g, x, z, h, biome)
			hf[x][z] = h - 1
		}
	}
	return &hf
}

func (t *Terrain) fillColumn(g *chunk.Grid, x, z, h int, biome chunk.Biome) {
	top := block.Grass
	if biome == chunk.Desert {
		top = block.Sand
	}
	for y := 0; y < g.Height(); y++ {
		var b block.Type
		switch {
		case y < h-3:
			b = block.Stone
		case y < h-1:
			b = block.Dirt
		case y == h-1:
			b = top
		case y < t.settings.SeaLevel:
			b = block.Water
		default:
			return
		}
		g.SetBlockAt(x, y, z, b)
	}
}
