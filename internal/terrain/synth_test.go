package terrain

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"voxelstream/internal/config"
	"voxelstream/internal/noise"
)

func testWorld() config.WorldConfig {
	return config.WorldConfig{ChunkSize: 32, MaxHeight: 100, Octaves: 3, BaseDivisor: 8}
}

func newTestSynth(t *testing.T) *Synthesizer {
	t.Helper()
	s, err := NewSynthesizer(testWorld(), noise.NewMemo(256))
	if err != nil {
		t.Fatalf("new synthesizer: %v", err)
	}
	return s
}

func TestNewSynthesizerRejectsBadOctaves(t *testing.T) {
	cfg := testWorld()
	cfg.Octaves = 4
	if _, err := NewSynthesizer(cfg, nil); !errors.Is(err, ErrInvalidOctave) {
		t.Fatalf("expected ErrInvalidOctave, got %v", err)
	}

	s := newTestSynth(t)
	if _, err := s.PaddedOctave(0, 0, 3, 0); !errors.Is(err, ErrInvalidOctave) {
		t.Fatalf("width 3 should be rejected, got %v", err)
	}
	if _, err := s.PaddedOctave(0, 0, 0, 0); !errors.Is(err, ErrInvalidOctave) {
		t.Fatalf("width 0 should be rejected, got %v", err)
	}
}

func TestSeedFormat(t *testing.T) {
	if got := Seed(-64, 128, 8); got != "-64 128 8" {
		t.Fatalf("seed: got %q", got)
	}
	if got := CoarseScale(64, 8, 1); got != 1.0/16 {
		t.Fatalf("coarse scale: got %v", got)
	}
}

func TestSynthesizeIsDeterministic(t *testing.T) {
	a, err := newTestSynth(t).Synthesize(32, -64)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	// A fresh synthesizer without a memo must agree bit for bit.
	plain, err := NewSynthesizer(testWorld(), nil)
	if err != nil {
		t.Fatalf("new synthesizer: %v", err)
	}
	b, err := plain.Synthesize(32, -64)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("height-maps differ between runs")
	}
	if len(a) != 32*32 {
		t.Fatalf("length: got %d want %d", len(a), 32*32)
	}
}

func TestSynthesizeClampsAndFloors(t *testing.T) {
	heights, err := newTestSynth(t).Synthesize(0, 0)
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	for i, h := range heights {
		if h < 0 || h > 100 {
			t.Fatalf("column %d out of range: %v", i, h)
		}
		if h != math.Floor(h) {
			t.Fatalf("column %d not whole: %v", i, h)
		}
	}
}

func TestAdjacentChunksShareBorderValues(t *testing.T) {
	s := newTestSynth(t)
	const size = 32
	p := size + 2

	origin, err := s.SynthesizePadded(0, 0)
	if err != nil {
		t.Fatalf("synthesize origin: %v", err)
	}

	// Neighbor along the first axis: origin's last two padded rows are the
	// neighbor's first two.
	down, err := s.SynthesizePadded(size, 0)
	if err != nil {
		t.Fatalf("synthesize neighbor: %v", err)
	}
	for j := 0; j < p; j++ {
		for r := 0; r < 2; r++ {
			if got, want := origin[p*(size+r)+j], down[p*r+j]; got != want {
				t.Fatalf("row seam mismatch at row %d col %d: %v vs %v", r, j, got, want)
			}
		}
	}

	// Neighbor along the second axis: last two padded columns.
	right, err := s.SynthesizePadded(0, size)
	if err != nil {
		t.Fatalf("synthesize neighbor: %v", err)
	}
	for i := 0; i < p; i++ {
		for c := 0; c < 2; c++ {
			if got, want := origin[p*i+size+c], right[p*i+c]; got != want {
				t.Fatalf("column seam mismatch at row %d col %d: %v vs %v", i, c, got, want)
			}
		}
	}

	// Stripped height-maps: origin's ghost row equals the neighbor's first row.
	downHeights := StripBorder(down, size)
	for j := 0; j < size; j++ {
		if got, want := origin[p*(size+1)+j+1], downHeights[j]; got != want {
			t.Fatalf("ghost row mismatch at col %d: %v vs %v", j, got, want)
		}
	}
}

func TestOctaveCoversChunk(t *testing.T) {
	s := newTestSynth(t)
	for octave, width := range s.Widths() {
		layer, err := s.Octave(0, 0, width, octave)
		if err != nil {
			t.Fatalf("octave %d: %v", octave, err)
		}
		if len(layer) != 32*32 {
			t.Fatalf("octave %d length: got %d", octave, len(layer))
		}
		limit := 99 * CoarseScale(32, width, octave)
		for i, v := range layer {
			if v < 0 || v > limit+1e-9 {
				t.Fatalf("octave %d cell %d outside [0, %v]: %v", octave, i, limit, v)
			}
		}
	}
}
