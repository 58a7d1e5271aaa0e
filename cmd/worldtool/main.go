// Command worldtool inspects and verifies a saved world.
//
//	worldtool info   -data ./data
//	worldtool verify -data ./data -storage sqlite
//	worldtool chunk  -data ./data -x 3 -z -2
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"

	"github.com/OCharnyshevich/voxel-world/internal/server/config"
	"github.com/OCharnyshevich/voxel-world/internal/server/storage"
	"github.com/OCharnyshevich/voxel-world/pkg/world/block"
	"github.com/OCharnyshevich/voxel-world/pkg/world/chunk"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: worldtool info|verify|chunk [flags]")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	fs := flag.NewFlagSet(os.Args[1], flag.ExitOnError)
	cfg := config.DefaultConfig()
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "world data directory")
	fs.StringVar(&cfg.Storage, "storage", cfg.Storage, "chunk storage: region or sqlite")
	x := fs.Int("x", 0, "chunk x (chunk)")
	z := fs.Int("z", 0, "chunk z (chunk)")
	fs.Parse(os.Args[2:])

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.Open(cfg, log)
	if err != nil {
		color.Red("open store: %v", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()
	t := &tool{store: store, reg: block.Default(log), out: color.Output}
	switch os.Args[1] {
	case "info":
		err = t.info(ctx, cfg.DataDir)
	case "verify":
		var r report
		if r, err = t.verify(ctx); err == nil && r.bad > 0 {
			os.Exit(1)
		}
	case "chunk":
		err = t.chunk(ctx, chunk.Pos{X: int32(*x), Z: int32(*z)})
	default:
		usage()
	}
	if err != nil {
		color.Red("%s: %v", os.Args[1], err)
		os.Exit(1)
	}
}
