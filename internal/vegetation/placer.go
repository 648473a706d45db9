package vegetation

import (
	"fmt"
	"math"
	"math/rand"

	"voxelstream/internal/config"
)

// Placer finds hilltop columns in a height-map and plants trees on them.
type Placer struct {
	cfg     config.VegetationConfig
	species []*Species
}

// Tree is one planted tree, rooted on local column (Row, Col).
type Tree struct {
	Row      int
	Col      int
	Species  *Species
	Branches []Branch
}

// TreeVoxel is a tree voxel relative to the root column, Offset[1] counted
// from the column's surface height.
type TreeVoxel struct {
	Offset [3]int
	Part   Part
}

func NewPlacer(cfg config.VegetationConfig) (*Placer, error) {
	p := &Placer{cfg: cfg}
	for _, sc := range cfg.Species {
		s, err := NewSpecies(sc)
		if err != nil {
			return nil, err
		}
		p.species = append(p.species, s)
	}
	if cfg.Enabled && len(p.species) == 0 {
		return nil, fmt.Errorf("vegetation: no species configured")
	}
	return p, nil
}

// Species returns the compiled species in configuration order.
func (p *Placer) Species() []*Species { return p.species }

// Candidates scans size×size heights (row-major) for columns at least as
// high as every column within the configured neighborhood, skipping the
// border. After a hit the scan skips ahead by the stride along the row, and
// a row with a hit skips ahead by the stride as well.
func (p *Placer) Candidates(heights []float64, size int) []int {
	border, reach, stride := p.cfg.Border, p.cfg.Neighborhood, p.cfg.ScanStride
	if stride <= 0 {
		stride = 1
	}
	var out []int
	for i := border; i < size-border; {
		rowHit := false
		for j := border; j < size-border; {
			if localMaximum(heights, size, i, j, reach) {
				out = append(out, size*i+j)
				rowHit = true
				j += stride
				continue
			}
			j++
		}
		if rowHit {
			i += stride
			continue
		}
		i++
	}
	return out
}

func localMaximum(heights []float64, size, i, j, reach int) bool {
	h := heights[size*i+j]
	for k := -reach; k <= reach; k++ {
		for l := -reach; l <= reach; l++ {
			r, c := i+k, j+l
			if r < 0 || c < 0 || r >= size || c >= size {
				continue
			}
			if heights[size*r+c] > h {
				return false
			}
		}
	}
	return true
}

// Plant picks up to TreesPerChunk candidate columns at random (a column may
// be picked twice) and grows a tree on each. The primary species is chosen
// with PrimaryChance, the second otherwise.
func (p *Placer) Plant(heights []float64, size int, rng *rand.Rand) []Tree {
	if !p.cfg.Enabled || len(p.species) == 0 || p.cfg.TreesPerChunk <= 0 {
		return nil
	}
	candidates := p.Candidates(heights, size)
	if len(candidates) == 0 {
		return nil
	}
	trees := make([]Tree, 0, p.cfg.TreesPerChunk)
	for n := 0; n < p.cfg.TreesPerChunk; n++ {
		idx := candidates[rng.Intn(len(candidates))]
		species := p.species[0]
		if rng.Float64() >= p.cfg.PrimaryChance && len(p.species) > 1 {
			species = p.species[1]
		}
		trees = append(trees, Tree{
			Row:      idx / size,
			Col:      idx % size,
			Species:  species,
			Branches: species.Generate(rng),
		})
	}
	return trees
}

// Voxels materializes one voxel at the rounded start of every branch,
// dropping duplicates. first is the chunk-wide ordinal of the tree's first
// branch: the branch count of the trees grown before it in the same chunk.
func (t Tree) Voxels(first int, rng *rand.Rand) []TreeVoxel {
	seen := make(map[[3]int]struct{}, len(t.Branches))
	out := make([]TreeVoxel, 0, len(t.Branches))
	for n, b := range t.Branches {
		ordinal := first + n
		off := [3]int{
			int(math.Round(b.Start.X())),
			int(math.Round(b.Start.Y())),
			int(math.Round(b.Start.Z())),
		}
		part := t.Species.PartFor(b, ordinal, rng)
		if _, dup := seen[off]; dup {
			continue
		}
		seen[off] = struct{}{}
		out = append(out, TreeVoxel{Offset: off, Part: part})
	}
	return out
}
