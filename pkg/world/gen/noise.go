package gen

// Simplex noise over a seeded permutation table. Values are in [-1, 1].

var grad2 = [8][2]float64{
	{1, 1}, {-1, 1}, {1, -1}, {-1, -1},
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
}

// Noise produces deterministic 2D simplex noise from a seed.
type Noise struct {
	perm [512]uint8
}

// NewNoise builds the permutation table for seed.
func NewNoise(seed int64) *Noise {
	n := &Noise{}

	var p [256]uint8
	for i := range p {
		p[i] = uint8(i)
	}

	// Fisher-Yates driven by the same LCG as the chunk RNG.
	s := uint64(seed)
	for i := 255; i > 0; i-- {
		s = s*lcgMul + lcgInc
		j := int((s >> 33) % uint64(i+1))
		p[i], p[j] = p[j], p[i]
	}
	for i := range n.perm {
		n.perm[i] = p[i&255]
	}
	return n
}

// At returns the noise value at (x, y).
func (n *Noise) At(x, y float64) float64 {
	const (
		f2 = 0.36602540378443864676 // (sqrt(3) - 1) / 2
		g2 = 0.21132486540518711775 // (3 - sqrt(3)) / 6
	)

	s := (x + y) * f2
	i := fastFloor(x + s)
	j := fastFloor(y + s)

	t := float64(i+j) * g2
	x0 := x - (float64(i) - t)
	y0 := y - (float64(j) - t)

	i1, j1 := 0, 1
	if x0 > y0 {
		i1, j1 = 1, 0
	}

	x1 := x0 - float64(i1) + g2
	y1 := y0 - float64(j1) + g2
	x2 := x0 - 1 + 2*g2
	y2 := y0 - 1 + 2*g2

	ii := i & 255
	jj := j & 255
	g0 := n.perm[ii+int(n.perm[jj])] & 7
	g1 := n.perm[ii+i1+int(n.perm[jj+j1])] & 7
	gg := n.perm[ii+1+int(n.perm[jj+1])] & 7

	return 70 * (corner(grad2[g0], x0, y0) + corner(grad2[g1], x1, y1) + corner(grad2[gg], x2, y2))
}

// Fractal sums octaves of noise. Each octave scales frequency by lacunarity
// and amplitude by persistence; the sum is divided by the total amplitude so
// the result stays in [-1, 1].
func (n *Noise) Fractal(x, y float64, octaves int, persistence, lacunarity float64) float64 {
	var total, maxAmp float64
	freq, amp := 1.0, 1.0
	for range octaves {
		total += n.At(x*freq, y*freq) * amp
		maxAmp += amp
		amp *= persistence
		freq *= lacunarity
	}
	if maxAmp == 0 {
		return 0
	}
	return total / maxAmp
}

func corner(g [2]float64, x, y float64) float64 {
	t := 0.5 - x*x - y*y
	if t < 0 {
		return 0
	}
	t *= t
	return t * t * (g[0]*x + g[1]*y)
}

func fastFloor(x float64) int {
	xi := int(x)
	if x < float64(xi) {
		return xi - 1
	}
	return xi
}
