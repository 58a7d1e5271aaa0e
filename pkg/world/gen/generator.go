package gen

import (
	"errors"
	"fmt"

	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
)

// Generator fills chunk grids deterministically from a seed.
type Generator interface {
	// Generate writes base terrain, caves and ores into an empty grid.
	Generate(g *chunk.Grid, pos chunk.Pos)
	// Populate adds features that sit on top of generated terrain.
	Populate(g *chunk.Grid, pos chunk.Pos)
	// SurfaceAt returns the y of the top terrain block of world column
	// (wx, wz) as produced by Generate before carving.
	SurfaceAt(wx, wz int) int
}

// Ore is one row of the ore table.
type Ore struct {
	Type      block.Type
	Frequency float64 // veins per chunk are ⌊Frequency·100⌋
	MinY      int
	MaxY      int
	VeinSize  int
}

// DefaultOres is the built-in ore table.
var DefaultOres = []Ore{
	{Type: block.CoalOre, Frequency: 0.20, MinY: 0, MaxY: 127, VeinSize: 8},
	{Type: block.IronOre, Frequency: 0.10, MinY: 0, MaxY: 63, VeinSize: 6},
	{Type: block.GoldOre, Frequency: 0.05, MinY: 0, MaxY: 31, VeinSize: 5},
	{Type: block.DiamondOre, Frequency: 0.02, MinY: 0, MaxY: 15, VeinSize: 4},
}

// Settings parameterise the terrain generator.
type Settings struct {
	Seed       int64
	Height     int
	SeaLevel   int
	CaveSeeds  int
	CaveSteps  int
	TreeChance float64
	// NoiseScale is the base frequency of the heightfield noise, in cycles
	// per block.
	NoiseScale float64
	Ores       []Ore
}

// DefaultSettings returns the standard generator settings for seed.
func DefaultSettings(seed int64) Settings {
	return Settings{
		Seed:       seed,
		Height:     chunk.DefaultHeight,
		SeaLevel:   16,
		CaveSeeds:  5,
		CaveSteps:  50,
		TreeChance: 0.10,
		NoiseScale: 1.0 / 64,
		Ores:       DefaultOres,
	}
}

// heightSpread is how far terrain rises above or sinks below sea level.
const heightSpread = 8

// Validate checks that the settings describe a world terrain fits in.
func (s Settings) Validate() error {
	if s.Height < 1 || s.Height > chunk.MaxHeight {
		return fmt.Errorf("height %d outside [1,%d]", s.Height, chunk.MaxHeight)
	}
	if s.SeaLevel-heightSpread < 1 || s.SeaLevel+heightSpread > s.Height {
		return fmt.Errorf("sea level %d needs [%d,%d] inside height %d",
			s.SeaLevel, s.SeaLevel-heightSpread, s.SeaLevel+heightSpread, s.Height)
	}
	if s.CaveSeeds < 0 || s.CaveSteps < 0 {
		return errors.New("cave seeds and steps must not be negative")
	}
	if s.TreeChance < 0 || s.TreeChance > 1 {
		return fmt.Errorf("tree chance %v outside [0,1]", s.TreeChance)
	}
	if s.NoiseScale <= 0 {
		return fmt.Errorf("noise scale %v must be positive", s.NoiseScale)
	}
	for _, o := range s.Ores {
		if o.Frequency < 0 || o.VeinSize < 0 || o.MaxY < o.MinY || o.MinY < 0 {
			return fmt.Errorf("ore %d: bad table row %+v", o.Type, o)
		}
	}
	return nil
}

// Terrain is the four-stage noise generator: heightfield and biomes,
// cave carving, ore veins, then vegetation in Populate.
type Terrain struct {
	settings Settings
	height   *Noise
}

// NewTerrain creates a Terrain generator.
func NewTerrain(s Settings) (*Terrain, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("terrain settings: %w", err)
	}
	return &Terrain{
		settings: s,
		height:   NewNoise(s.Seed ^ saltTerrain),
	}, nil
}

// Settings returns the generator's settings.
func (t *Terrain) Settings() Settings { return t.settings }

func (t *Terrain) Generate(g *chunk.Grid, pos chunk.Pos) {
	// Pass 1: heightfield, biomes and column fill.
	hf := t.shape(g, pos)

	// Pass 2: carve caves.
	t.carve(g, pos, hf)

	// Pass 3: ore veins.
	t.placeOres(g, pos)
}

func (t *Terrain) Populate(g *chunk.Grid, pos chunk.Pos) {
	t.plantTrees(g, pos)
}

func (t *Terrain) SurfaceAt(wx, wz int) int {
	h, _ := t.column(wx, wz)
	return h - 1
}
