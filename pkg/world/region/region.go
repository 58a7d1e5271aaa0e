// Package region stores chunk payloads in region files: 32×32 chunks per
// file, a location table and a timestamp table followed by 4 KiB sectors.
package region

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
)

const (
	// Size is the number of chunks along each side of a region.
	Size = 32
	// Entries is the number of chunk slots per region file.
	Entries = Size * Size

	sectorSize    = 4096
	headerSectors = 2 // location table + timestamp table
	maxSectors    = 0xFF

	compressionNone = 3
	compressionZstd = 4

	// Ext is the region file extension.
	Ext = ".vxr"
)

var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

// Coord addresses a region file.
type Coord struct {
	X, Z int32
}

// Of returns the region holding pos and the slot of pos inside it.
func Of(pos chunk.Pos) (Coord, int) {
	return Coord{X: pos.X >> 5, Z: pos.Z >> 5}, int(pos.X&31) + int(pos.Z&31)*Size
}

// ChunkAt returns the chunk position of slot idx in region c.
func (c Coord) ChunkAt(idx int) chunk.Pos {
	return chunk.Pos{X: c.X*Size + int32(idx%Size), Z: c.Z*Size + int32(idx/Size)}
}

// FileName returns the base name of the region file, r.<rx>.<rz>.vxr.
func (c Coord) FileName() string {
	return fmt.Sprintf("r.%d.%d%s", c.X, c.Z, Ext)
}

// ParseFileName is the inverse of FileName.
func ParseFileName(name string) (Coord, bool) {
	rest, ok := strings.CutPrefix(name, "r.")
	if !ok {
		return Coord{}, false
	}
	rest, ok = strings.CutSuffix(rest, Ext)
	if !ok {
		return Coord{}, false
	}
	xs, zs, ok := strings.Cut(rest, ".")
	if !ok {
		return Coord{}, false
	}
	x, err := strconv.ParseInt(xs, 10, 32)
	if err != nil {
		return Coord{}, false
	}
	z, err := strconv.ParseInt(zs, 10, 32)
	if err != nil {
		return Coord{}, false
	}
	return Coord{X: int32(x), Z: int32(z)}, true
}

// Region is an in-memory copy of one region file. Entries are kept
// compressed; Get decompresses on demand.
type Region struct {
	Coord Coord
	path  string

	entries    [Entries][]byte
	kinds      [Entries]byte
	timestamps [Entries]uint32
	dirty      bool
}

// Open reads the region file for c under dir. A missing file yields an
// empty region.
func Open(dir string, c Coord) (*Region, error) {
	r := &Region{Coord: c, path: filepath.Join(dir, c.FileName())}
	data, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return r, nil
		}
		return nil, fmt.Errorf("read region %s: %w", r.path, err)
	}
	if err := r.parse(data); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Region) corrupt(format string, args ...any) error {
	return &chunk.Error{Kind: chunk.Corrupted, Op: "read region " + r.Coord.FileName(), Err: fmt.Errorf(format, args...)}
}

func (r *Region) parse(data []byte) error {
	if len(data) < headerSectors*sectorSize {
		return r.corrupt("file is %d bytes, header needs %d", len(data), headerSectors*sectorSize)
	}
	for i := 0; i < Entries; i++ {
		loc := binary.BigEndian.Uint32(data[i*4:])
		if loc == 0 {
			continue
		}
		off, count := int(loc>>8)*sectorSize, int(loc&0xFF)*sectorSize
		if off < headerSectors*sectorSize || off+count > len(data) || count == 0 {
			return r.corrupt("slot %d points outside the file", i)
		}
		length := int(binary.BigEndian.Uint32(data[off:]))
		if length < 1 || 4+length > count {
			return r.corrupt("slot %d has length %d in %d bytes", i, length, count)
		}
		kind := data[off+4]
		if kind != compressionZstd && kind != compressionNone {
			return r.corrupt("slot %d has unknown compression %d", i, kind)
		}
		r.entries[i] = bytes.Clone(data[off+5 : off+4+length])
		r.kinds[i] = kind
		r.timestamps[i] = binary.BigEndian.Uint32(data[sectorSize+i*4:])
	}
	return nil
}

// Has reports whether slot idx holds a chunk.
func (r *Region) Has(idx int) bool {
	return r.entries[idx] != nil
}

// Get returns the decompressed payload in slot idx.
func (r *Region) Get(idx int) ([]byte, bool, error) {
	raw := r.entries[idx]
	if raw == nil {
		return nil, false, nil
	}
	if r.kinds[idx] == compressionNone {
		return bytes.Clone(raw), true, nil
	}
	out, err := decoder.DecodeAll(raw, nil)
	if err != nil {
		return nil, false, r.corrupt("slot %d: %v", idx, err)
	}
	return out, true, nil
}

// Put stores payload in slot idx, compressed.
func (r *Region) Put(idx int, payload []byte, now time.Time) error {
	compressed := encoder.EncodeAll(payload, nil)
	if sectorsFor(len(compressed)) > maxSectors {
		return fmt.Errorf("put slot %d: %d bytes exceed %d sectors", idx, len(compressed), maxSectors)
	}
	r.entries[idx] = compressed
	r.kinds[idx] = compressionZstd
	r.timestamps[idx] = uint32(now.Unix())
	r.dirty = true
	return nil
}

// Delete clears slot idx.
func (r *Region) Delete(idx int) {
	if r.entries[idx] != nil {
		r.entries[idx] = nil
		r.timestamps[idx] = 0
		r.dirty = true
	}
}

// Timestamp returns the Unix time slot idx was last written.
func (r *Region) Timestamp(idx int) uint32 {
	return r.timestamps[idx]
}

// Slots returns the occupied slots in ascending order.
func (r *Region) Slots() []int {
	var out []int
	for i := range r.entries {
		if r.entries[i] != nil {
			out = append(out, i)
		}
	}
	return out
}

// Dirty reports whether the region changed since it was read or flushed.
func (r *Region) Dirty() bool { return r.dirty }

func sectorsFor(compressed int) int {
	return (4 + 1 + compressed + sectorSize - 1) / sectorSize
}

// Flush rewrites the region file atomically if anything changed. The
// directory is created as needed.
func (r *Region) Flush() error {
	if !r.dirty {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("create region dir: %w", err)
	}

	locations := make([]byte, sectorSize)
	timestamps := make([]byte, sectorSize)

	var dataBuf bytes.Buffer
	currentSector := uint32(headerSectors)
	for i, e := range r.entries {
		if e == nil {
			continue
		}
		payloadLen := uint32(len(e)) + 1
		totalLen := 4 + payloadLen
		sectorCount := (totalLen + sectorSize - 1) / sectorSize

		off := i * 4
		binary.BigEndian.PutUint32(locations[off:off+4], currentSector<<8|sectorCount&0xFF)
		binary.BigEndian.PutUint32(timestamps[off:off+4], r.timestamps[i])

		var header [5]byte
		binary.BigEndian.PutUint32(header[0:4], payloadLen)
		header[4] = r.kinds[i]
		dataBuf.Write(header[:])
		dataBuf.Write(e)
		if pad := int(sectorCount)*sectorSize - int(totalLen); pad > 0 {
			dataBuf.Write(make([]byte, pad))
		}
		currentSector += sectorCount
	}

	tmp := r.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp region file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmp)
	}()

	if _, err := f.Write(locations); err != nil {
		return fmt.Errorf("write locations: %w", err)
	}
	if _, err := f.Write(timestamps); err != nil {
		return fmt.Errorf("write timestamps: %w", err)
	}
	if _, err := f.Write(dataBuf.Bytes()); err != nil {
		return fmt.Errorf("write chunk data: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync region file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close region file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("rename region file: %w", err)
	}
	r.dirty = false
	return nil
}

// List returns the region coordinates with files under dir, sorted.
func List(dir string) ([]Coord, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list regions: %w", err)
	}
	var out []Coord
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		if c, ok := ParseFileName(e.Name()); ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Z < out[j].Z
	})
	return out, nil
}
