package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/OCharnyshevich/voxel-world/internal/server"
	"github.com/OCharnyshevich/voxel-world/internal/server/config"
)

func main() {
	cfg := config.DefaultConfig()

	configPath := flag.String("config", "", "path to a JSON (with comments) or YAML config file")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "world seed")
	flag.StringVar(&cfg.GeneratorType, "generator", cfg.GeneratorType, "world generator: default or flat")
	flag.IntVar(&cfg.Height, "height", cfg.Height, "world height in blocks")
	flag.IntVar(&cfg.SeaLevel, "sea-level", cfg.SeaLevel, "sea level")
	flag.IntVar(&cfg.ViewRadius, "view-radius", cfg.ViewRadius, "spawn window radius in chunks")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "chunk generation workers")
	flag.StringVar(&cfg.DataDir, "data", cfg.DataDir, "world data directory")
	flag.StringVar(&cfg.Storage, "storage", cfg.Storage, "chunk storage: region, sqlite or memory")
	flag.Var(&cfg.AutosaveInterval, "autosave", "autosave interval, 0 disables")
	flag.BoolVar(&cfg.Debug, "debug", cfg.Debug, "audit chunk invariants after every light pass and edit, logging violations")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn or error")
	flag.Parse()

	if *configPath != "" {
		fromFile, err := config.Load(*configPath)
		if err != nil {
			slog.Error("load config", "error", err)
			os.Exit(1)
		}
		explicit := make(map[string]bool)
		flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
		config.Merge(cfg, fromFile, explicit)
	}

	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		slog.Error("parse log level", "error", err)
		os.Exit(1)
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	srv, err := server.New(cfg, log)
	if err != nil {
		log.Error("create server", "error", err)
		os.Exit(1)
	}
	if err := srv.Start(ctx); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
