package light

import (
	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
)

// Radius is the farthest a change in one cell can alter light elsewhere.
const Radius = block.MaxLight

// Box is an inclusive range of local cells.
type Box struct {
	MinX, MinY, MinZ int
	MaxX, MaxY, MaxZ int
}

// Full covers a whole chunk of the given height.
func Full(height int) Box {
	return Box{MaxX: chunk.Width - 1, MaxY: height - 1, MaxZ: chunk.Width - 1}
}

// Slab covers the layers within Radius of face f, the reach of light that
// enters the chunk through f.
func Slab(f chunk.Face, height int) Box {
	b := Full(height)
	depth := min(Radius, chunk.Width) - 1
	switch f {
	case chunk.North:
		b.MaxZ = depth
	case chunk.South:
		b.MinZ = chunk.Width - 1 - depth
	case chunk.West:
		b.MaxX = depth
	case chunk.East:
		b.MinX = chunk.Width - 1 - depth
	}
	return b
}

// Empty reports whether the box holds no cells.
func (b Box) Empty() bool {
	return b.MinX > b.MaxX || b.MinY > b.MaxY || b.MinZ > b.MaxZ
}

// Contains reports whether local (x, y, z) is inside the box.
func (b Box) Contains(x, y, z int) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY && z >= b.MinZ && z <= b.MaxZ
}

// Cells returns the number of cells in the box.
func (b Box) Cells() int {
	if b.Empty() {
		return 0
	}
	return (b.MaxX - b.MinX + 1) * (b.MaxY - b.MinY + 1) * (b.MaxZ - b.MinZ + 1)
}

// EditBox returns the part of chunk pos that an edit at world (wx, wy, wz)
// can affect. oldTop and newTop are the edited column's highest opaque y
// before and after the edit; when they differ the sky column between them
// changed too, so the box is widened to cover it.
func EditBox(pos chunk.Pos, height, wx, wy, wz, oldTop, newTop int) (Box, bool) {
	lo, hi := wy, wy
	if oldTop != newTop {
		lo = min(lo, oldTop+1, newTop+1)
		hi = max(hi, oldTop, newTop)
	}
	ox, oz := pos.Origin()
	b := Box{
		MinX: max(wx-Radius-ox, 0), MaxX: min(wx+Radius-ox, chunk.Width-1),
		MinY: max(lo-Radius, 0), MaxY: min(hi+Radius, height-1),
		MinZ: max(wz-Radius-oz, 0), MaxZ: min(wz+Radius-oz, chunk.Width-1),
	}
	return b, !b.Empty()
}
