package main

import (
	"context"
	"flag"
	"log"
	"time"

	"voxelstream/internal/config"
	"voxelstream/internal/noise"
	"voxelstream/internal/world"
)

func main() {
	var (
		cfgPath string
		x, z    float64
		outDir  string
	)
	flag.StringVar(&cfgPath, "config", "", "path to configuration file")
	flag.Float64Var(&x, "x", 0, "world x inside the chunk to render")
	flag.Float64Var(&z, "z", 0, "world z inside the chunk to render")
	flag.StringVar(&outDir, "out", ".", "directory for the preview image")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	generator, err := world.NewTerrainGenerator(cfg, noise.NewMemo(cfg.Cache.NoiseMemo), log.New(log.Writer(), "generator ", log.LstdFlags))
	if err != nil {
		log.Fatalf("create generator: %v", err)
	}

	size := cfg.World.ChunkSize
	centerX, centerZ := world.CenterFor(x, size), world.CenterFor(z, size)
	start := time.Now()
	chunk, err := generator.Generate(context.Background(), centerX, centerZ)
	if err != nil {
		log.Fatalf("generate chunk: %v", err)
	}
	log.Printf("chunk %s: %d voxels in %s", chunk.Key(), chunk.InstanceCount(), time.Since(start))

	path, err := world.SavePreview(chunk, outDir)
	if err != nil {
		log.Fatalf("save preview: %v", err)
	}
	log.Printf("preview written to %s", path)
}
