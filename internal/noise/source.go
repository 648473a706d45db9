// Package noise produces the seeded pseudo-random streams every terrain
// octave is built from. A stream is a pure function of its seed string.
package noise

import (
	"math"
	"strconv"
	"strings"
	"sync"

	"voxelstream/internal/cache"
)

// Source is a small-state counter generator seeded from a string hash. Two
// sources created from the same seed yield identical sequences.
type Source struct {
	a, b, c, d uint32
}

// NewSource seeds a stream from seed. Seeds are hashed byte-wise, so distinct
// strings map to unrelated states.
func NewSource(seed string) *Source {
	h := newSeedHash(seed)
	return &Source{a: h.next(), b: h.next(), c: h.next(), d: h.next()}
}

// Next returns the next value in [0, 1).
func (s *Source) Next() float64 {
	t := s.a + s.b
	s.a = s.b ^ (s.b >> 9)
	s.b = s.c + (s.c << 3)
	s.c = s.c<<21 | s.c>>11
	s.d++
	t += s.d
	s.c += t
	return float64(t) / 4294967296.0
}

type seedHash struct {
	h uint32
}

func newSeedHash(seed string) *seedHash {
	h := uint32(1779033703) ^ uint32(len(seed))
	for i := 0; i < len(seed); i++ {
		h = (h ^ uint32(seed[i])) * 3432918353
		h = h<<13 | h>>19
	}
	return &seedHash{h: h}
}

func (s *seedHash) next() uint32 {
	h := s.h
	h = (h ^ h>>16) * 2246822507
	h = (h ^ h>>13) * 3266489909
	h ^= h >> 16
	s.h = h
	return h
}

// CreateNoiseArray fills a size×size row-major array where each cell is
// floor(maxHeight × next) × scale.
func CreateNoiseArray(seed string, size int, maxHeight, scale float64) []float64 {
	if size <= 0 {
		return nil
	}
	src := NewSource(seed)
	out := make([]float64, size*size)
	for i := range out {
		out[i] = math.Floor(maxHeight*src.Next()) * scale
	}
	return out
}

// Memo shares noise arrays between chunk builds. Returned slices are shared
// and must be treated as read-only. Safe for concurrent use.
type Memo struct {
	mu      sync.Mutex
	entries *cache.Bounded[string, []float64]
	hits    uint64
	misses  uint64
}

// NewMemo keeps at most limit arrays.
func NewMemo(limit int) *Memo {
	return &Memo{entries: cache.NewBounded[string, []float64](limit)}
}

// Array returns CreateNoiseArray(seed, size, maxHeight, scale), computing it
// at most once while it stays memoized.
func (m *Memo) Array(seed string, size int, maxHeight, scale float64) []float64 {
	if m == nil {
		return CreateNoiseArray(seed, size, maxHeight, scale)
	}
	key := memoKey(seed, size, maxHeight, scale)

	m.mu.Lock()
	if arr, ok := m.entries.Get(key); ok {
		m.hits++
		m.mu.Unlock()
		return arr
	}
	m.misses++
	m.mu.Unlock()

	arr := CreateNoiseArray(seed, size, maxHeight, scale)

	m.mu.Lock()
	m.entries.Insert(key, arr)
	m.mu.Unlock()
	return arr
}

// Stats reports memo hits and misses.
func (m *Memo) Stats() (hits, misses uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}

func memoKey(seed string, size int, maxHeight, scale float64) string {
	var b strings.Builder
	b.WriteString(seed)
	b.WriteByte('|')
	b.WriteString(strconv.Itoa(size))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(maxHeight, 'g', -1, 64))
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(scale, 'g', -1, 64))
	return b.String()
}
