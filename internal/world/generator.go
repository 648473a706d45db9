package world

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"math/rand"
	"time"

	"voxelstream/internal/config"
	"voxelstream/internal/noise"
	"voxelstream/internal/terrain"
	"voxelstream/internal/vegetation"
)

// Generator builds the chunk centered at the given world coordinates.
type Generator interface {
	Generate(ctx context.Context, centerX, centerZ float64) (*Chunk, error)
}

// TerrainGenerator runs the full pipeline: octave synthesis, density
// carving, exposure culling, then vegetation.
type TerrainGenerator struct {
	size       int
	synth      *terrain.Synthesizer
	field      terrain.DensityField
	placer     *vegetation.Placer
	markers    config.MarkerConfig
	vegetation bool
	seed       int64
	logger     *log.Logger
}

// NewTerrainGenerator wires the generator from cfg. The noise memo is shared
// by every build and is safe for concurrent use. A nil logger logs through
// the standard logger.
func NewTerrainGenerator(cfg *config.Config, memo *noise.Memo, logger *log.Logger) (*TerrainGenerator, error) {
	synth, err := terrain.NewSynthesizer(cfg.World, memo)
	if err != nil {
		return nil, fmt.Errorf("terrain synthesizer: %w", err)
	}
	placer, err := vegetation.NewPlacer(cfg.Vegetation)
	if err != nil {
		return nil, fmt.Errorf("vegetation placer: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &TerrainGenerator{
		size:       cfg.World.ChunkSize,
		synth:      synth,
		field:      terrain.NewDensityField(cfg.Density),
		placer:     placer,
		markers:    cfg.Markers,
		vegetation: cfg.Vegetation.Enabled,
		seed:       cfg.Vegetation.Seed,
		logger:     logger,
	}, nil
}

// Size is the chunk edge length.
func (g *TerrainGenerator) Size() int { return g.size }

func (g *TerrainGenerator) Generate(ctx context.Context, centerX, centerZ float64) (*Chunk, error) {
	key := KeyFor(centerX, centerZ)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	heights, err := g.synth.Synthesize(centerX, centerZ)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", key, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	half := float64(g.size / 2)
	left, top := centerX-half, centerZ-half
	occ := terrain.Carve(heights, g.size, left, top, g.field)

	positions, types := terrainInstances(occ, left, top, g.markers)
	terrainCount := len(types)
	if g.vegetation {
		positions, types = g.plantTrees(key, heights, occ, left, top, positions, types)
	}

	chunk := NewChunk(centerX, centerZ, g.size, heights, occ, positions, types)
	g.logger.Printf("chunk %s generated: %d terrain voxels, %d tree voxels in %s",
		key, terrainCount, len(types)-terrainCount, time.Since(start).Round(time.Microsecond))
	return chunk, nil
}

// NewTerrainChunk builds a chunk straight from an occupancy, without
// vegetation. Heights are taken from the occupancy.
func NewTerrainChunk(centerX, centerZ float64, occ *terrain.Occupancy, markers config.MarkerConfig) *Chunk {
	size := occ.Size()
	half := float64(size / 2)
	positions, types := terrainInstances(occ, centerX-half, centerZ-half, markers)
	return NewChunk(centerX, centerZ, size, occ.Heights(), occ, positions, types)
}

// terrainInstances emits one instance per exposed solid voxel. Every
// goldenEvery-th voxel past goldenMinIndex becomes a golden marker.
func terrainInstances(occ *terrain.Occupancy, left, top float64, markers config.MarkerConfig) ([]float32, []float32) {
	size := occ.Size()
	var positions, types []float32
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			height := occ.Height(size*i + j)
			for k := 0; k < height; k++ {
				if !occ.Exposed(i, j, k) {
					continue
				}
				p := len(types)
				kind := VoxelTerrain
				if markers.GoldenEvery > 0 && p%markers.GoldenEvery == 0 && p >= markers.GoldenMinIndex {
					kind = VoxelGolden
				}
				positions = append(positions, float32(left)+float32(i), float32(k), float32(top)+float32(j), FlagNormal)
				types = append(types, float32(kind))
			}
		}
	}
	return positions, types
}

// plantTrees appends tree voxels. The random stream is derived from the
// configured seed and the chunk key, so a chunk regrows the same trees no
// matter which worker builds it.
func (g *TerrainGenerator) plantTrees(key Key, heights []float64, occ *terrain.Occupancy, left, top float64, positions, types []float32) ([]float32, []float32) {
	rng := rand.New(rand.NewSource(g.seed ^ keySeed(key)))
	trees := g.placer.Plant(heights, g.size, rng)
	if len(trees) == 0 {
		return positions, types
	}

	seen := make(map[[3]int]struct{})
	grown := 0
	for _, tree := range trees {
		base := int(heights[g.size*tree.Row+tree.Col])
		voxels := tree.Voxels(grown, rng)
		grown += len(tree.Branches)
		for _, v := range voxels {
			i, y, j := tree.Row+v.Offset[0], base+v.Offset[1], tree.Col+v.Offset[2]
			// Canopies that overhang the chunk are clipped; the neighbor
			// owns those columns.
			if i < 0 || j < 0 || i >= g.size || j >= g.size {
				continue
			}
			if y < 0 || occ.SolidAt(i, j, y) {
				continue
			}
			cell := [3]int{i, y, j}
			if _, dup := seen[cell]; dup {
				continue
			}
			seen[cell] = struct{}{}

			kind := VoxelTrunk
			if v.Part == vegetation.PartFoliage {
				kind = VoxelFoliage
			}
			positions = append(positions, float32(left)+float32(i), float32(y), float32(top)+float32(j), FlagNormal)
			types = append(types, float32(kind))
		}
	}
	return positions, types
}

func keySeed(key Key) int64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return int64(h.Sum64())
}
