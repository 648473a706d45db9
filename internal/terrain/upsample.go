package terrain

import (
	"errors"
	"fmt"
	"math"
)

// ErrNotSquare reports a matrix whose length is not a perfect square.
var ErrNotSquare = errors.New("not a square matrix")

// Kernel is a 2×2 weight window applied in row-major order
// (top-left, top-right, bottom-left, bottom-right). Weights sum to 16.
type Kernel [4]float64

// One kernel per sub-cell parity. Each favors the coarse cell nearest to the
// refined sub-cell with weight 9.
var (
	KernelTopLeft     = Kernel{9, 3, 3, 1}
	KernelTopRight    = Kernel{3, 9, 1, 3}
	KernelBottomLeft  = Kernel{3, 1, 9, 3}
	KernelBottomRight = Kernel{1, 3, 3, 9}
)

// squareDim returns the edge length of a square matrix with n cells.
func squareDim(n int) (int, error) {
	dim := int(math.Sqrt(float64(n)))
	for dim*dim > n {
		dim--
	}
	for (dim+1)*(dim+1) <= n {
		dim++
	}
	if dim*dim != n {
		return 0, fmt.Errorf("%w: %d cells", ErrNotSquare, n)
	}
	return dim, nil
}

// Convolve2x2 slides k over every 2×2 window of a dim×dim matrix and returns
// the (dim-1)×(dim-1) result, normalized by 16.
func Convolve2x2(k Kernel, matrix []float64) ([]float64, error) {
	dim, err := squareDim(len(matrix))
	if err != nil {
		return nil, err
	}
	if dim < 2 {
		return nil, fmt.Errorf("%w: %d×%d is too small to convolve", ErrNotSquare, dim, dim)
	}
	n := dim - 1
	out := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			idx := dim*i + j
			sum := k[0]*matrix[idx] + k[1]*matrix[idx+1] + k[2]*matrix[idx+dim] + k[3]*matrix[idx+dim+1]
			out[n*i+j] = sum / 16
		}
	}
	return out, nil
}

// Upsample refines a padded (d+2)×(d+2) grid into a (2d+2)×(2d+2) grid. Each
// output cell is the kernel matching its row and column parity, evaluated on
// the coarse window at (i/2, j/2).
func Upsample(grid []float64) ([]float64, error) {
	dim, err := squareDim(len(grid))
	if err != nil {
		return nil, err
	}
	if dim < 3 {
		return nil, fmt.Errorf("%w: padded grid %d×%d has no interior", ErrNotSquare, dim, dim)
	}

	var parts [4][]float64
	for p, k := range [4]Kernel{KernelTopLeft, KernelTopRight, KernelBottomLeft, KernelBottomRight} {
		if parts[p], err = Convolve2x2(k, grid); err != nil {
			return nil, err
		}
	}

	sub := dim - 1
	target := (dim-2)*2 + 2
	out := make([]float64, target*target)
	for i := 0; i < target; i++ {
		for j := 0; j < target; j++ {
			parity := (i%2)*2 + j%2
			out[target*i+j] = parts[parity][sub*(i/2)+j/2]
		}
	}
	return out, nil
}
