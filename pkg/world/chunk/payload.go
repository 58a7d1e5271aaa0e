package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"

	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
)

const (
	// PayloadMagic opens every chunk payload ("VOXC" read as little-endian u32 0x564F5843).
	PayloadMagic uint32 = 0x564F5843
	// PayloadVersion is the only payload layout this package reads and writes.
	PayloadVersion uint16 = 1

	payloadHeaderSize = 4 + 2 + 4 + 4 + 2 + 4 + 8
	payloadCRCSize    = 4
)

// Payload is the decoded, persistable content of one chunk. The modified
// flag is never part of it.
type Payload struct {
	Pos        Pos
	Height     int
	SolidCount uint32
	Revision   uint64
	Blocks     []block.Type
	Light      []uint8
	Biomes     [layerArea]Biome
}

// PayloadSize returns the encoded length of a payload for the given height.
func PayloadSize(height int) int {
	return payloadHeaderSize + 2*layerArea*height + layerArea + payloadCRCSize
}

// Snapshot copies the chunk's persistable state under the shared lock.
func (c *Chunk) Snapshot() *Payload {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p := &Payload{
		Pos:        c.pos,
		Height:     c.grid.height,
		SolidCount: uint32(c.grid.solid),
		Revision:   c.revision.Load(),
		Blocks:     append([]block.Type(nil), c.grid.blocks...),
		Light:      append([]uint8(nil), c.grid.light...),
		Biomes:     c.grid.biomes,
	}
	return p
}

// EncodePayload serialises p in the little-endian payload layout followed
// by a CRC-32 (IEEE) of every preceding byte.
func EncodePayload(p *Payload) ([]byte, error) {
	cells := layerArea * p.Height
	if p.Height < 1 || p.Height > MaxHeight {
		return nil, fmt.Errorf("encode payload %s: height %d outside [1,%d]", p.Pos, p.Height, MaxHeight)
	}
	if len(p.Blocks) != cells || len(p.Light) != cells {
		return nil, fmt.Errorf("encode payload %s: %d blocks and %d light cells, want %d",
			p.Pos, len(p.Blocks), len(p.Light), cells)
	}

	buf := make([]byte, PayloadSize(p.Height))
	le := binary.LittleEndian
	le.PutUint32(buf[0:], PayloadMagic)
	le.PutUint16(buf[4:], PayloadVersion)
	le.PutUint32(buf[6:], uint32(p.Pos.X))
	le.PutUint32(buf[10:], uint32(p.Pos.Z))
	le.PutUint16(buf[14:], uint16(p.Height))
	le.PutUint32(buf[16:], p.SolidCount)
	le.PutUint64(buf[20:], p.Revision)

	off := payloadHeaderSize
	for i, t := range p.Blocks {
		buf[off+i] = byte(t)
	}
	off += cells
	copy(buf[off:], p.Light)
	off += cells
	for i, b := range p.Biomes {
		buf[off+i] = byte(b)
	}
	off += layerArea

	le.PutUint32(buf[off:], crc32.ChecksumIEEE(buf[:off]))
	return buf, nil
}

// DecodePayload parses and verifies an encoded payload. Any mismatch of
// magic, version, length or checksum is a Corrupted error.
func DecodePayload(data []byte) (*Payload, error) {
	pos := Pos{}
	if len(data) < payloadHeaderSize+payloadCRCSize {
		return nil, corrupted(pos, "payload is %d bytes, shorter than header", len(data))
	}
	le := binary.LittleEndian
	if m := le.Uint32(data[0:]); m != PayloadMagic {
		return nil, corrupted(pos, "bad magic %#x", m)
	}
	if v := le.Uint16(data[4:]); v != PayloadVersion {
		return nil, corrupted(pos, "unsupported version %d", v)
	}
	pos = Pos{X: int32(le.Uint32(data[6:])), Z: int32(le.Uint32(data[10:]))}
	height := int(le.Uint16(data[14:]))
	if height < 1 || height > MaxHeight {
		return nil, corrupted(pos, "height %d outside [1,%d]", height, MaxHeight)
	}
	if want := PayloadSize(height); len(data) != want {
		return nil, corrupted(pos, "payload is %d bytes, want %d for height %d", len(data), want, height)
	}

	body := len(data) - payloadCRCSize
	if sum, want := crc32.ChecksumIEEE(data[:body]), le.Uint32(data[body:]); sum != want {
		return nil, corrupted(pos, "crc %#08x, stored %#08x", sum, want)
	}

	cells := layerArea * height
	p := &Payload{
		Pos:        pos,
		Height:     height,
		SolidCount: le.Uint32(data[16:]),
		Revision:   le.Uint64(data[20:]),
		Blocks:     make([]block.Type, cells),
		Light:      make([]uint8, cells),
	}
	off := payloadHeaderSize
	for i := range p.Blocks {
		p.Blocks[i] = block.Type(data[off+i])
	}
	off += cells
	copy(p.Light, data[off:off+cells])
	off += cells
	for i := range p.Biomes {
		p.Biomes[i] = Biome(data[off+i])
	}
	return p, nil
}

// PayloadHeader parses only the fixed header of an encoded payload. The
// returned Payload has no cells and the checksum is not verified.
func PayloadHeader(data []byte) (*Payload, error) {
	if len(data) < payloadHeaderSize {
		return nil, corrupted(Pos{}, "payload is %d bytes, shorter than header", len(data))
	}
	le := binary.LittleEndian
	if m := le.Uint32(data[0:]); m != PayloadMagic {
		return nil, corrupted(Pos{}, "bad magic %#x", m)
	}
	if v := le.Uint16(data[4:]); v != PayloadVersion {
		return nil, corrupted(Pos{}, "unsupported version %d", v)
	}
	return &Payload{
		Pos:        Pos{X: int32(le.Uint32(data[6:])), Z: int32(le.Uint32(data[10:]))},
		Height:     int(le.Uint16(data[14:])),
		SolidCount: le.Uint32(data[16:]),
		Revision:   le.Uint64(data[20:]),
	}, nil
}

// PayloadCRC returns the checksum stored in an encoded payload.
func PayloadCRC(data []byte) (uint32, error) {
	if len(data) < payloadCRCSize {
		return 0, errors.New("payload too short")
	}
	return binary.LittleEndian.Uint32(data[len(data)-payloadCRCSize:]), nil
}

// Restore replaces the chunk's contents with p. The chunk must be Loaded.
// Unknown block tags become Air with a warning. The stored solid count is
// verified when no tag was remapped, and the light invariants are audited;
// failures are Corrupted errors and leave the chunk unchanged.
func (c *Chunk) Restore(p *Payload) error {
	if s := c.State(); s != Loaded {
		return &Error{Kind: IllegalState, Op: "restore", Pos: &c.pos, Err: fmt.Errorf("restore in state %s", s)}
	}
	if p.Pos != c.pos {
		return corrupted(c.pos, "payload belongs to chunk %s", p.Pos)
	}
	if p.Height != c.grid.height {
		return corrupted(c.pos, "payload height %d, chunk height %d", p.Height, c.grid.height)
	}

	g := newGrid(p.Height, c.grid.reg)
	remapped := 0
	for i, t := range p.Blocks {
		if !g.reg.Known(t) {
			remapped++
			t, _ = g.reg.Sanitize(t)
		}
		g.blocks[i] = t
	}
	copy(g.light, p.Light)
	g.biomes = p.Biomes
	g.solid = g.recountSolid()

	if remapped > 0 {
		c.log.Warn("payload had unknown block types", "cells", remapped)
	} else if g.solid != int(p.SolidCount) {
		return corrupted(c.pos, "solid count %d, recount %d", p.SolidCount, g.solid)
	}
	if vs := g.audit(nil); len(vs) > 0 {
		return corrupted(c.pos, "%d invariant violations, first: %s", len(vs), vs[0])
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.grid = g
	c.revision.Store(p.Revision)
	c.modified.Store(remapped > 0)
	return nil
}
