package terrain

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"voxelstream/internal/config"
	"voxelstream/internal/noise"
)

// ErrInvalidOctave reports an octave width that cannot be refined up to the
// chunk size by repeated doubling.
var ErrInvalidOctave = errors.New("invalid octave")

// Synthesizer builds chunk height-maps from layered octave noise. Every octave
// grid carries a one-cell border sampled from the eight neighboring chunks'
// noise, so adjoining chunks refine identical values along their shared edge.
type Synthesizer struct {
	size      int
	maxHeight float64
	widths    []int
	memo      *noise.Memo
}

// NewSynthesizer validates the octave layout of cfg. memo may be nil, in
// which case every octave regenerates its noise.
func NewSynthesizer(cfg config.WorldConfig, memo *noise.Memo) (*Synthesizer, error) {
	s := &Synthesizer{
		size:      cfg.ChunkSize,
		maxHeight: cfg.MaxHeight,
		widths:    cfg.OctaveWidths(),
		memo:      memo,
	}
	if len(s.widths) != cfg.Octaves {
		return nil, fmt.Errorf("%w: chunk size %d cannot hold %d octaves from divisor %d", ErrInvalidOctave, cfg.ChunkSize, cfg.Octaves, cfg.BaseDivisor)
	}
	for _, w := range s.widths {
		if err := s.checkWidth(w); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Size is the chunk edge length in columns.
func (s *Synthesizer) Size() int { return s.size }

// MaxHeight is the clamp applied after every octave.
func (s *Synthesizer) MaxHeight() float64 { return s.maxHeight }

// Widths returns the octave grid widths, coarsest first.
func (s *Synthesizer) Widths() []int {
	out := make([]int, len(s.widths))
	copy(out, s.widths)
	return out
}

// Seed formats the noise seed of the octave grid of width w centered at
// (cx, cy).
func Seed(cx, cy float64, width int) string {
	return strconv.FormatFloat(cx, 'f', -1, 64) + " " + strconv.FormatFloat(cy, 'f', -1, 64) + " " + strconv.Itoa(width)
}

// CoarseScale is the amplitude of an octave: (size/width)^-1 / 2^octave.
func CoarseScale(size, width, octave int) float64 {
	return float64(width) / float64(size) / math.Pow(2, float64(octave))
}

func (s *Synthesizer) checkWidth(width int) error {
	if width <= 0 || s.size%width != 0 {
		return fmt.Errorf("%w: width %d does not divide chunk size %d", ErrInvalidOctave, width, s.size)
	}
	if ratio := s.size / width; ratio&(ratio-1) != 0 {
		return fmt.Errorf("%w: chunk size %d is not a power-of-two multiple of width %d", ErrInvalidOctave, s.size, width)
	}
	return nil
}

func (s *Synthesizer) array(cx, cy float64, width int, scale float64) []float64 {
	return s.memo.Array(Seed(cx, cy, width), width, s.maxHeight, scale)
}

// PaddedOctave returns the (size+2)×(size+2) refined grid of one octave,
// including the border cells shared with the neighboring chunks.
func (s *Synthesizer) PaddedOctave(cx, cy float64, width, octave int) ([]float64, error) {
	if err := s.checkWidth(width); err != nil {
		return nil, err
	}
	scale := CoarseScale(s.size, width, octave)
	w, p := width, width+2
	step := float64(s.size)
	grid := make([]float64, p*p)

	center := s.array(cx, cy, w, scale)
	for i := 0; i < w; i++ {
		copy(grid[p*(i+1)+1:p*(i+1)+1+w], center[w*i:w*i+w])
	}

	// Rows follow the first axis, columns the second.
	top := s.array(cx-step, cy, w, scale)
	bottom := s.array(cx+step, cy, w, scale)
	for j := 0; j < w; j++ {
		grid[j+1] = top[w*(w-1)+j]
		grid[p*(w+1)+j+1] = bottom[j]
	}
	left := s.array(cx, cy-step, w, scale)
	right := s.array(cx, cy+step, w, scale)
	for i := 0; i < w; i++ {
		grid[p*(i+1)] = left[w*i+w-1]
		grid[p*(i+1)+w+1] = right[w*i]
	}

	grid[0] = s.array(cx-step, cy-step, w, scale)[w*w-1]
	grid[w+1] = s.array(cx-step, cy+step, w, scale)[w*(w-1)]
	grid[p*(w+1)] = s.array(cx+step, cy-step, w, scale)[w-1]
	grid[p*p-1] = s.array(cx+step, cy+step, w, scale)[0]

	var err error
	for d := w; d < s.size; d *= 2 {
		if grid, err = Upsample(grid); err != nil {
			return nil, fmt.Errorf("upsample octave %d: %w", octave, err)
		}
	}
	return grid, nil
}

// Octave is PaddedOctave with the border stripped.
func (s *Synthesizer) Octave(cx, cy float64, width, octave int) ([]float64, error) {
	padded, err := s.PaddedOctave(cx, cy, width, octave)
	if err != nil {
		return nil, err
	}
	return StripBorder(padded, s.size), nil
}

// SynthesizePadded sums every octave into a padded height grid. After each
// octave the running heights are clamped to [0, maxHeight] and floored.
func (s *Synthesizer) SynthesizePadded(cx, cy float64) ([]float64, error) {
	p := s.size + 2
	heights := make([]float64, p*p)
	for octave, width := range s.widths {
		layer, err := s.PaddedOctave(cx, cy, width, octave)
		if err != nil {
			return nil, err
		}
		for i, v := range layer {
			heights[i] = math.Floor(clamp(heights[i]+v, 0, s.maxHeight))
		}
	}
	return heights, nil
}

// Synthesize returns the size×size height-map of the chunk centered at
// (cx, cy).
func (s *Synthesizer) Synthesize(cx, cy float64) ([]float64, error) {
	padded, err := s.SynthesizePadded(cx, cy)
	if err != nil {
		return nil, err
	}
	return StripBorder(padded, s.size), nil
}

// StripBorder removes the one-cell padding of a (size+2)² grid.
func StripBorder(padded []float64, size int) []float64 {
	p := size + 2
	out := make([]float64, size*size)
	for i := 0; i < size; i++ {
		copy(out[size*i:size*i+size], padded[p*(i+1)+1:p*(i+1)+1+size])
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
