package world

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/go-gl/mathgl/mgl64"

	"voxelstream/internal/cache"
	"voxelstream/internal/config"
)

// ChunkCache streams the (2r+1)×(2r+1) neighborhood of chunks around the
// observer. Chunks leaving the neighborhood move to a bounded retained set
// and are promoted back without regeneration if they re-enter; the oldest
// retained chunks are reclaimed once the limit is exceeded. A key is never
// both active and retained.
//
// EnsureNeighborhood must only be called from one goroutine (the tick);
// the read accessors are safe from any goroutine.
type ChunkCache struct {
	size      int
	radius    int
	generator Generator
	pool      pond.Pool
	logger    *log.Logger

	mu       sync.RWMutex
	active   map[Key]*Chunk
	retained *cache.Bounded[Key, *Chunk]
	current  *Chunk
	centerX  float64
	centerZ  float64
	primed   bool
}

// NewChunkCache starts a build pool of cfg.BuildWorkers workers. Close
// releases it.
func NewChunkCache(cfg config.CacheConfig, size int, generator Generator, logger *log.Logger) *ChunkCache {
	workers := cfg.BuildWorkers
	if workers <= 0 {
		workers = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &ChunkCache{
		size:      size,
		radius:    cfg.Radius,
		generator: generator,
		pool:      pond.NewPool(workers),
		logger:    logger,
		active:    make(map[Key]*Chunk),
		retained:  cache.NewBounded[Key, *Chunk](cfg.CacheLimit),
	}
}

// Close waits for running builds and stops the pool.
func (c *ChunkCache) Close() {
	c.pool.StopAndWait()
}

type chunkSlot struct {
	key  Key
	x, z float64
}

// EnsureNeighborhood makes the neighborhood around pos active: reusing
// active chunks, promoting retained ones, and building the rest on the pool.
// A failed build leaves that key absent (it is retried next call) and its
// error is returned; every other transition still happens.
func (c *ChunkCache) EnsureNeighborhood(ctx context.Context, pos mgl64.Vec3) error {
	cx, cz := CenterFor(pos.X(), c.size), CenterFor(pos.Z(), c.size)
	side := 2*c.radius + 1

	c.mu.Lock()
	if c.primed && cx == c.centerX && cz == c.centerZ && len(c.active) == side*side {
		c.mu.Unlock()
		return nil
	}

	next := make(map[Key]*Chunk, side*side)
	var misses []chunkSlot
	step := float64(c.size)
	for i := -c.radius; i <= c.radius; i++ {
		for j := -c.radius; j <= c.radius; j++ {
			x, z := cx+float64(i)*step, cz+float64(j)*step
			key := KeyFor(x, z)
			if ch, ok := c.active[key]; ok {
				next[key] = ch
				continue
			}
			if ch, ok := c.retained.Promote(key); ok {
				next[key] = ch
				c.logger.Printf("chunk %s promoted from retained", key)
				continue
			}
			misses = append(misses, chunkSlot{key: key, x: x, z: z})
		}
	}
	c.mu.Unlock()

	built, buildErr := c.build(ctx, misses)
	for key, ch := range built {
		next[key] = ch
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for key, ch := range c.active {
		if _, keep := next[key]; keep {
			continue
		}
		evicted := c.retained.Insert(key, ch)
		if c.retained.Contains(key) {
			c.logger.Printf("chunk %s retained", key)
		}
		for _, ev := range evicted {
			c.logger.Printf("chunk %s reclaimed", ev.Key)
		}
	}
	c.active = next
	c.current = next[KeyFor(cx, cz)]
	c.centerX, c.centerZ = cx, cz
	c.primed = true
	return buildErr
}

func (c *ChunkCache) build(ctx context.Context, misses []chunkSlot) (map[Key]*Chunk, error) {
	if len(misses) == 0 {
		return nil, nil
	}
	start := time.Now()
	chunks := make([]*Chunk, len(misses))
	errs := make([]error, len(misses))

	var wg sync.WaitGroup
	for n, slot := range misses {
		n, slot := n, slot
		wg.Add(1)
		c.pool.Submit(func() {
			defer wg.Done()
			chunks[n], errs[n] = c.generator.Generate(ctx, slot.x, slot.z)
		})
	}
	wg.Wait()

	built := make(map[Key]*Chunk, len(misses))
	var failed []error
	for n, slot := range misses {
		if errs[n] != nil {
			failed = append(failed, fmt.Errorf("build chunk %s: %w", slot.key, errs[n]))
			continue
		}
		if chunks[n] == nil {
			failed = append(failed, fmt.Errorf("build chunk %s: generator returned no chunk", slot.key))
			continue
		}
		built[slot.key] = chunks[n]
	}
	c.logger.Printf("built %d/%d chunks in %s", len(built), len(misses), time.Since(start).Round(time.Millisecond))
	return built, errors.Join(failed...)
}

// Current is the chunk under the observer, nil before the first call or if
// its build failed.
func (c *ChunkCache) Current() *Chunk {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Chunk looks up an active chunk.
func (c *ChunkCache) Chunk(key Key) (*Chunk, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.active[key]
	return ch, ok
}

// ChunkAt returns the active chunk containing world (x, z).
func (c *ChunkCache) ChunkAt(x, z float64) (*Chunk, bool) {
	return c.Chunk(KeyFor(CenterFor(x, c.size), CenterFor(z, c.size)))
}

// Active returns the active chunks ordered by key.
func (c *ChunkCache) Active() []*Chunk {
	c.mu.RLock()
	out := make([]*Chunk, 0, len(c.active))
	for _, ch := range c.active {
		out = append(out, ch)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(a, b int) bool { return out[a].key < out[b].key })
	return out
}

// ActiveKeys returns the active keys, sorted.
func (c *ChunkCache) ActiveKeys() []Key {
	chunks := c.Active()
	keys := make([]Key, len(chunks))
	for n, ch := range chunks {
		keys[n] = ch.key
	}
	return keys
}

// RetainedKeys returns the retained keys, oldest first.
func (c *ChunkCache) RetainedKeys() []Key {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.retained.Keys()
}

// Candidates returns the chunks whose columns a body at pos may touch: the
// current chunk, plus the edge neighbors when pos is within margin of that
// edge, plus the diagonal neighbor when near two edges. Neighbors that are
// not active are skipped.
func (c *ChunkCache) Candidates(pos mgl64.Vec3, margin float64) []*Chunk {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cx, cz := CenterFor(pos.X(), c.size), CenterFor(pos.Z(), c.size)
	current, ok := c.active[KeyFor(cx, cz)]
	if !ok {
		return nil
	}
	out := []*Chunk{current}

	half := float64(c.size) / 2
	step := float64(c.size)
	dx, dz := pos.X()-cx, pos.Z()-cz
	sx, sz := 0, 0
	if half-math.Abs(dx) <= margin {
		sx = sign(dx)
	}
	if half-math.Abs(dz) <= margin {
		sz = sign(dz)
	}
	add := func(i, j int) {
		if ch, ok := c.active[KeyFor(cx+float64(i)*step, cz+float64(j)*step)]; ok {
			out = append(out, ch)
		}
	}
	if sx != 0 {
		add(sx, 0)
	}
	if sz != 0 {
		add(0, sz)
	}
	if sx != 0 && sz != 0 {
		add(sx, sz)
	}
	return out
}

func sign(v float64) int {
	if v < 0 {
		return -1
	}
	return 1
}
