package terrain

import (
	"errors"
	"testing"
)

func TestConvolve2x2RejectsNonSquareMatrix(t *testing.T) {
	_, err := Convolve2x2(KernelTopLeft, make([]float64, 10))
	if !errors.Is(err, ErrNotSquare) {
		t.Fatalf("expected ErrNotSquare, got %v", err)
	}
	if _, err := Upsample(make([]float64, 15)); !errors.Is(err, ErrNotSquare) {
		t.Fatalf("expected ErrNotSquare from upsample, got %v", err)
	}
}

func TestConvolve2x2WeightsWindow(t *testing.T) {
	m := []float64{
		1, 2, 3,
		4, 5, 6,
		7, 8, 9,
	}
	got, err := Convolve2x2(KernelTopLeft, m)
	if err != nil {
		t.Fatalf("convolve: %v", err)
	}
	want := []float64{
		(9*1 + 3*2 + 3*4 + 1*5) / 16.0,
		(9*2 + 3*3 + 3*5 + 1*6) / 16.0,
		(9*4 + 3*5 + 3*7 + 1*8) / 16.0,
		(9*5 + 3*6 + 3*8 + 1*9) / 16.0,
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cell %d: got %v want %v", i, got[i], want[i])
		}
	}
}

func TestUpsampleMatchesKernelPerParity(t *testing.T) {
	// 4×4 padded grid (d = 2) refines to 6×6 (2d + 2).
	grid := []float64{
		3, 1, 4, 1,
		5, 9, 2, 6,
		5, 3, 5, 8,
		9, 7, 9, 3,
	}
	out, err := Upsample(grid)
	if err != nil {
		t.Fatalf("upsample: %v", err)
	}
	const dim, target = 4, 6
	if len(out) != target*target {
		t.Fatalf("length: got %d want %d", len(out), target*target)
	}

	kernels := map[[2]int]Kernel{
		{0, 0}: KernelTopLeft,
		{0, 1}: KernelTopRight,
		{1, 0}: KernelBottomLeft,
		{1, 1}: KernelBottomRight,
	}
	for i := 0; i < target; i++ {
		for j := 0; j < target; j++ {
			k := kernels[[2]int{i % 2, j % 2}]
			r, c := i/2, j/2
			want := (k[0]*grid[dim*r+c] + k[1]*grid[dim*r+c+1] + k[2]*grid[dim*(r+1)+c] + k[3]*grid[dim*(r+1)+c+1]) / 16
			if got := out[target*i+j]; got != want {
				t.Fatalf("cell (%d,%d): got %v want %v", i, j, got, want)
			}
		}
	}
}

func TestUpsamplePreservesConstantGrid(t *testing.T) {
	grid := make([]float64, 25)
	for i := range grid {
		grid[i] = 7
	}
	out, err := Upsample(grid)
	if err != nil {
		t.Fatalf("upsample: %v", err)
	}
	if len(out) != 64 {
		t.Fatalf("length: got %d want 64", len(out))
	}
	for i, v := range out {
		if v != 7 {
			t.Fatalf("cell %d: got %v want 7", i, v)
		}
	}
}
