package terrain

import (
	"math"

	"voxelstream/internal/config"
)

// DensityField is a 3-D gradient-style value noise. Each lattice corner gets
// a pseudo-random unit vector; the density at a point is the smoothly
// blended dot products plus a bias. Levels with density >= 0 are solid.
type DensityField struct {
	enabled     bool
	gridSpacing float64
	seed        float64
	bias        float64
}

// NewDensityField builds the field described by cfg. A disabled field
// reports every level as solid.
func NewDensityField(cfg config.DensityConfig) DensityField {
	return DensityField{
		enabled:     cfg.Enabled,
		gridSpacing: cfg.GridSpacing,
		seed:        cfg.Seed,
		bias:        cfg.Bias,
	}
}

var cornerOffsets = [8][3]float64{
	{0, 0, 0}, {0, 0, 1}, {0, 1, 0}, {0, 1, 1},
	{1, 0, 0}, {1, 0, 1}, {1, 1, 0}, {1, 1, 1},
}

// At samples the field at world column (x, z) and height level.
func (f DensityField) At(x, z, level float64) float64 {
	if !f.enabled {
		return 1
	}
	p := [3]float64{x / f.gridSpacing, z / f.gridSpacing, level / f.gridSpacing}
	base := [3]float64{math.Floor(p[0]), math.Floor(p[1]), math.Floor(p[2])}
	frac := [3]float64{p[0] - base[0], p[1] - base[1], p[2] - base[2]}

	var dots [8]float64
	for c, off := range cornerOffsets {
		corner := [3]float64{base[0] + off[0], base[1] + off[1], base[2] + off[2]}
		g := f.gradient(corner)
		dots[c] = (frac[0]-off[0])*g[0] + (frac[1]-off[1])*g[1] + (frac[2]-off[2])*g[2]
	}

	x00 := smoothMix(dots[0], dots[4], frac[0])
	x01 := smoothMix(dots[1], dots[5], frac[0])
	x10 := smoothMix(dots[2], dots[6], frac[0])
	x11 := smoothMix(dots[3], dots[7], frac[0])

	y0 := smoothMix(x00, x10, frac[1])
	y1 := smoothMix(x01, x11, frac[1])

	return smoothMix(y0, y1, frac[2]) + f.bias
}

// gradient picks a unit vector on the sphere for a lattice corner.
func (f DensityField) gradient(corner [3]float64) [3]float64 {
	theta := 2 * math.Pi * hashUnit(corner, f.seed)
	shifted := [3]float64{corner[0] + 1, corner[1] + 2, corner[2] + 3}
	phi := math.Acos(2*hashUnit(shifted, f.seed+1) - 1)
	return [3]float64{
		math.Cos(theta) * math.Sin(phi),
		math.Sin(theta) * math.Sin(phi),
		math.Cos(phi),
	}
}

// hashUnit is the classic sine-fract hash, returning a value in [0, 1).
func hashUnit(p [3]float64, seed float64) float64 {
	dot := (p[0]+seed)*12.9898 + (p[1]+seed)*78.233 + (p[2]+seed)*54.53
	v := math.Abs(math.Sin(dot) * 43758.5453)
	return v - math.Floor(v)
}

func smoothMix(a0, a1, w float64) float64 {
	return (a1-a0)*(3-2*w)*w*w + a0
}

// Carve samples the field for every level under each column of heights
// (size×size, row-major, rows along x) and builds the occupancy. Each
// column is truncated after its topmost solid level and its height entry is
// rewritten to that corrected height.
func Carve(heights []float64, size int, topLeftX, topLeftZ float64, field DensityField) *Occupancy {
	columns := make([][]float64, size*size)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			idx := size*i + j
			h := int(heights[idx])
			if h < 0 {
				h = 0
			}
			levels := make([]float64, h)
			top := 0
			for k := 0; k < h; k++ {
				d := field.At(topLeftX+float64(i), topLeftZ+float64(j), float64(k))
				levels[k] = d
				if d >= 0 {
					top = k + 1
				}
			}
			columns[idx] = levels[:top]
			heights[idx] = float64(top)
		}
	}
	return NewOccupancy(size, columns)
}
