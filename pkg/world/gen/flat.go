package gen

import (
	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
)

// FlatGenerator generates a superflat world:
// bedrock at y=0, stone y=1..2, dirt y=3, grass y=4.
type FlatGenerator struct{}

// NewFlatGenerator creates a FlatGenerator.
func NewFlatGenerator() *FlatGenerator {
	return &FlatGenerator{}
}

var flatLayers = [...]block.Type{block.Bedrock, block.Stone, block.Stone, block.Dirt, block.Grass}

func (f *FlatGenerator) Generate(g *chunk.Grid, _ chunk.Pos) {
	for x := 0; x < chunk.Width; x++ {
		for z := 0; z < chunk.Width; z++ {
			for y, b := range flatLayers {
				g.SetBlockAt(x, y, z, b)
			}
			g.SetBiome(x, z, chunk.Plains)
		}
	}
}

func (f *FlatGenerator) Populate(*chunk.Grid, chunk.Pos) {}

func (f *FlatGenerator) SurfaceAt(_, _ int) int {
	return len(flatLayers) - 1 // grass
}
