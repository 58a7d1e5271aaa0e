package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"

	"github.com/fatih/color"

	"github.com/OCharnyshevich/voxel-world/internal/server/storage"
	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
)

var (
	okColor   = color.New(color.FgGreen)
	badColor  = color.New(color.FgRed, color.Bold)
	headColor = color.New(color.FgCyan)
)

type tool struct {
	store storage.ChunkStore
	reg   *block.Registry
	out   io.Writer
}

type report struct {
	ok, bad int
}

func (t *tool) info(ctx context.Context, dir string) error {
	lvl, err := storage.ReadLevel(dir)
	if err != nil {
		return err
	}
	list, err := t.store.List(ctx)
	if err != nil {
		return err
	}
	headColor.Fprintf(t.out, "world %s\n", lvl.WorldID)
	fmt.Fprintf(t.out, "  seed       %d\n", lvl.Seed)
	fmt.Fprintf(t.out, "  generator  %s\n", lvl.Generator)
	fmt.Fprintf(t.out, "  height     %d (sea level %d)\n", lvl.Height, lvl.SeaLevel)
	fmt.Fprintf(t.out, "  created    %s\n", lvl.Created.Format("2006-01-02 15:04:05"))
	if !lvl.LastSaved.IsZero() {
		fmt.Fprintf(t.out, "  last saved %s\n", lvl.LastSaved.Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintf(t.out, "  chunks     %d stored\n", len(list))
	return nil
}

// load decodes and restores the stored chunk at pos into a fresh chunk,
// which runs every payload and light check.
func (t *tool) load(ctx context.Context, pos chunk.Pos) (*chunk.Chunk, error) {
	data, ok, err := t.store.Load(ctx, pos)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("chunk %s is not stored", pos)
	}
	p, err := chunk.DecodePayload(data)
	if err != nil {
		return nil, err
	}
	c, err := chunk.New(pos, t.reg, chunk.Options{Height: p.Height})
	if err != nil {
		return nil, err
	}
	c.MustTransition(chunk.Loaded)
	if err := c.Restore(p); err != nil {
		return nil, err
	}
	return c, nil
}

func (t *tool) verify(ctx context.Context) (report, error) {
	var r report
	list, err := t.store.List(ctx)
	if err != nil {
		return r, err
	}
	for _, pos := range list {
		if _, err := t.load(ctx, pos); err != nil {
			r.bad++
			badColor.Fprintf(t.out, "BAD ")
			fmt.Fprintf(t.out, "%s: %v\n", pos, err)
			continue
		}
		r.ok++
	}
	c := okColor
	if r.bad > 0 {
		c = badColor
	}
	c.Fprintf(t.out, "%d chunks ok, %d bad\n", r.ok, r.bad)
	return r, nil
}

func (t *tool) chunk(ctx context.Context, pos chunk.Pos) error {
	data, ok, err := t.store.Load(ctx, pos)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("chunk %s is not stored", pos)
	}
	h, err := chunk.PayloadHeader(data)
	if err != nil {
		return err
	}
	headColor.Fprintf(t.out, "chunk %s\n", h.Pos)
	fmt.Fprintf(t.out, "  height   %d\n", h.Height)
	fmt.Fprintf(t.out, "  solid    %d\n", h.SolidCount)
	fmt.Fprintf(t.out, "  revision %d\n", h.Revision)
	fmt.Fprintf(t.out, "  bytes    %d\n", len(data))

	c, err := t.load(ctx, pos)
	if err != nil {
		badColor.Fprintf(t.out, "  invalid: %v\n", err)
		return nil
	}
	counts := make(map[block.Type]int)
	biomes := make(map[chunk.Biome]int)
	top := -1
	c.View(func(g *chunk.Grid) {
		for i := range chunk.Width * chunk.Width * h.Height {
			counts[g.Block(i)]++
		}
		for x := range chunk.Width {
			for z := range chunk.Width {
				biomes[g.Biome(x, z)]++
				top = max(top, g.Top(x, z, func(b block.Type) bool { return b != block.Air }))
			}
		}
	})
	fmt.Fprintf(t.out, "  top      %d\n", top)
	for _, b := range t.reg.All() {
		if n := counts[b.Type]; n > 0 && b.Type != block.Air {
			fmt.Fprintf(t.out, "  %-12s %d\n", b.Name, n)
		}
	}
	for _, b := range slices.Sorted(maps.Keys(biomes)) {
		fmt.Fprintf(t.out, "  biome %-9s %d columns\n", b, biomes[b])
	}
	okColor.Fprintln(t.out, "  valid")
	return nil
}
