package gen

import "github.com/OCharnyshevich/voxel-world/pkg/world/chunk"

const (
	lcgMul = 6364136223846793005
	lcgInc = 1442695040888963407

	// Odd multipliers decorrelating neighbouring chunk coordinates.
	chunkPrimeX = 0x9E3779B97F4A7C15
	chunkPrimeZ = 0xC2B2AE3D27D4EB4F
)

// Per-stage salts so stages draw independent streams.
const (
	saltTerrain    = 0x100
	saltCaves      = 0x300
	saltOres       = 0x500
	saltVegetation = 0x600
)

// chunkRNG is the deterministic per-chunk, per-stage random source.
type chunkRNG struct {
	state uint64
}

func newChunkRNG(seed int64, pos chunk.Pos, salt uint64) *chunkRNG {
	s := uint64(seed) ^ uint64(int64(pos.X))*chunkPrimeX ^ uint64(int64(pos.Z))*chunkPrimeZ ^ salt
	return &chunkRNG{state: mix64(s)}
}

func (r *chunkRNG) next() uint64 {
	r.state = r.state*lcgMul + lcgInc
	return r.state
}

// nextN returns a value in [0, n). n must be positive.
func (r *chunkRNG) nextN(n int) int {
	return int((r.next() >> 33) % uint64(n))
}

// nextFloat returns a value in [0, 1).
func (r *chunkRNG) nextFloat() float64 {
	return float64(r.next()>>40) / (1 << 24)
}

// step returns -1, 0 or +1.
func (r *chunkRNG) step() int {
	return r.nextN(3) - 1
}

func mix64(z uint64) uint64 {
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}
