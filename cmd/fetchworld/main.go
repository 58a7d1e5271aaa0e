// Command fetchworld downloads a saved world (a data directory holding
// level.json and its chunk store) from any go-getter source into a local
// data directory.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	get "github.com/hashicorp/go-getter"

	"github.com/OCharnyshevich/voxel-world/internal/server/storage"
)

func main() {
	var (
		src   = flag.String("src", "", "world source, e.g. https://example.com/world.tar.gz or git::https://host/repo.git//worlds/spawn")
		out   = flag.String("o", "./data", "output data dir")
		force = flag.Bool("force", false, "replace a non-empty output dir")
	)
	flag.Parse()

	if *src == "" {
		panic("world source required")
	}

	if *out == "" {
		panic("output dir path required")
	}

	log.Default().Printf("start downloading world %s", *src)

	info, err := fetch(*src, *out, *force, func(dst, src string) error { return get.Get(dst, src) })
	if err != nil {
		panic(err)
	}

	log.Default().Printf("done downloading world %s: seed %d, generator %s, %d chunks", info.WorldID, info.Seed, info.Generator, info.Chunks)
}

// fetch downloads src into a temporary directory next to out and moves it
// into place once it reads as a world. out is only replaced when it is
// missing, empty or force is set.
func fetch(src, out string, force bool, download func(dst, src string) error) (*storage.Level, error) {
	out = filepath.Clean(out)
	empty, err := isEmptyDir(out)
	if err != nil {
		return nil, err
	}
	if !empty && !force {
		return nil, fmt.Errorf("%s is not empty, use -force to replace it", out)
	}

	parent := filepath.Dir(out)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.MkdirTemp(parent, ".fetchworld-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	// go-getter wants to create the destination itself.
	dst := filepath.Join(tmp, "world")
	if err := download(dst, src); err != nil {
		return nil, fmt.Errorf("download %s: %w", src, err)
	}
	info, err := storage.ReadLevel(dst)
	if err != nil {
		return nil, fmt.Errorf("downloaded data is not a world: %w", err)
	}

	if err := os.RemoveAll(out); err != nil {
		return nil, err
	}
	if err := os.Rename(dst, out); err != nil {
		return nil, err
	}
	return info, nil
}

// isEmptyDir reports whether path is missing or an empty directory.
func isEmptyDir(path string) (bool, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if !fi.IsDir() {
		return false, fmt.Errorf("%s is not a directory", path)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}
