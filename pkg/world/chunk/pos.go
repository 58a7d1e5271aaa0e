package chunk

import (
	"cmp"
	"fmt"
	"slices"
)

// Width is the horizontal edge length of a chunk, in blocks.
const Width = 16

const (
	shift     = 4
	mask      = Width - 1
	layerArea = Width * Width
)

// Pos identifies a chunk by its column coordinates. Pos is comparable and
// usable as a map key.
type Pos struct {
	X, Z int32
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Z)
}

// Compare orders positions lexicographically by X, then Z.
func (p Pos) Compare(o Pos) int {
	if c := cmp.Compare(p.X, o.X); c != 0 {
		return c
	}
	return cmp.Compare(p.Z, o.Z)
}

// Less reports whether p sorts before o.
func (p Pos) Less(o Pos) bool { return p.Compare(o) < 0 }

// Neighbor returns the position of the chunk across face f.
func (p Pos) Neighbor(f Face) Pos {
	dx, dz := f.Offset()
	return Pos{X: p.X + int32(dx), Z: p.Z + int32(dz)}
}

// Origin returns the world coordinates of the chunk's (0, 0) column.
func (p Pos) Origin() (wx, wz int) {
	return int(p.X) * Width, int(p.Z) * Width
}

// SortPos sorts positions in place using Compare.
func SortPos(ps []Pos) {
	slices.SortFunc(ps, Pos.Compare)
}

// Local is a cell position inside one chunk.
type Local struct {
	X, Y, Z int
}

// Valid reports whether l lies inside a chunk of the given height.
func (l Local) Valid(height int) bool {
	return l.X >= 0 && l.X < Width && l.Z >= 0 && l.Z < Width && l.Y >= 0 && l.Y < height
}

// Index is the position of l in the flat block and light arrays.
func (l Local) Index() int {
	return l.X + l.Z*Width + l.Y*layerArea
}

// LocalAt is the inverse of Local.Index.
func LocalAt(i int) Local {
	return Local{X: i & mask, Z: (i >> shift) & mask, Y: i / layerArea}
}

// WorldToChunk returns the chunk holding world column (wx, wz).
func WorldToChunk(wx, wz int) Pos {
	return Pos{X: int32(wx >> shift), Z: int32(wz >> shift)}
}

// WorldToLocal converts world coordinates to a cell position within the
// holding chunk. wy outside [0, height) is an OutOfBounds error.
func WorldToLocal(wx, wy, wz, height int) (Local, error) {
	if wy < 0 || wy >= height {
		return Local{}, &Error{Kind: OutOfBounds, Op: "world to local",
			Err: fmt.Errorf("y=%d outside [0,%d)", wy, height)}
	}
	return Local{X: wx & mask, Y: wy, Z: wz & mask}, nil
}

// ChunkOrigin returns the world coordinates of the chunk's (0, 0) column.
func ChunkOrigin(p Pos) (wx, wz int) {
	return p.Origin()
}

// Face is one of the four vertical sides of a chunk.
type Face uint8

const (
	North Face = iota // -Z
	South             // +Z
	West              // -X
	East              // +X
)

// Faces lists every horizontal face.
var Faces = [4]Face{North, South, West, East}

func (f Face) String() string {
	switch f {
	case North:
		return "north"
	case South:
		return "south"
	case West:
		return "west"
	case East:
		return "east"
	}
	return fmt.Sprintf("face(%d)", uint8(f))
}

// Opposite returns the face on the other side of a shared boundary.
func (f Face) Opposite() Face {
	return f ^ 1
}

// Offset returns the chunk step across f.
func (f Face) Offset() (dx, dz int) {
	switch f {
	case North:
		return 0, -1
	case South:
		return 0, 1
	case West:
		return -1, 0
	default:
		return 1, 0
	}
}

// OnFace returns the cell of the boundary layer of f at offset u along the
// face and height y. u runs along X for north and south, Z for west and east.
func OnFace(f Face, u, y int) Local {
	switch f {
	case North:
		return Local{X: u, Y: y, Z: 0}
	case South:
		return Local{X: u, Y: y, Z: Width - 1}
	case West:
		return Local{X: 0, Y: y, Z: u}
	default:
		return Local{X: Width - 1, Y: y, Z: u}
	}
}

// FaceDepth returns how far l is from face f, 0 for the boundary layer.
func FaceDepth(f Face, l Local) int {
	switch f {
	case North:
		return l.Z
	case South:
		return Width - 1 - l.Z
	case West:
		return l.X
	default:
		return Width - 1 - l.X
	}
}

// FaceU returns the along-face offset of l for face f.
func FaceU(f Face, l Local) int {
	if f == North || f == South {
		return l.X
	}
	return l.Z
}
