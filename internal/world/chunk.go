package world

import (
	"fmt"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"voxelstream/internal/terrain"
)

// VoxelType tags each rendered voxel. Values travel to the renderer as floats.
type VoxelType float32

const (
	VoxelTerrain VoxelType = 0
	VoxelTrunk   VoxelType = 1
	VoxelFoliage VoxelType = 2
	VoxelGolden  VoxelType = 3
)

// Highlight flags stored in the fourth component of every instance.
const (
	FlagNormal    float32 = 0
	FlagCandidate float32 = 2
	FlagSelected  float32 = 3
)

// Key identifies a chunk by its rounded center.
type Key string

// KeyFor formats the key of the chunk centered at (x, z).
func KeyFor(x, z float64) Key {
	return Key(fmt.Sprintf("%d %d", roundHalfUp(x), roundHalfUp(z)))
}

// CenterFor returns the center coordinate of the chunk containing pos along
// one axis.
func CenterFor(pos float64, size int) float64 {
	s := float64(size)
	return math.Floor((pos+s/2)/s) * s
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}

// instances is an immutable snapshot of a chunk's renderable voxels. Edits
// build a new value and swap the pointer, so readers never observe a
// positions/types pair of different lengths.
type instances struct {
	positions []float32 // x, y, z, flag per voxel
	types     []float32
	version   uint64
}

func (in *instances) count() int { return len(in.types) }

func (in *instances) find(x, y, z float32) int {
	for i := 0; i < in.count(); i++ {
		p := in.positions[4*i : 4*i+3]
		if p[0] == x && p[1] == y && p[2] == z {
			return i
		}
	}
	return -1
}

func (in *instances) clone() *instances {
	out := &instances{
		positions: make([]float32, len(in.positions)),
		types:     make([]float32, len(in.types)),
		version:   in.version + 1,
	}
	copy(out.positions, in.positions)
	copy(out.types, in.types)
	return out
}

// Snapshot is a read-only view of a chunk's instance data. Slices are shared
// with the chunk and must not be modified.
type Snapshot struct {
	Key       Key
	CenterX   float64
	CenterZ   float64
	Positions []float32
	Types     []float32
	Count     int
	Version   uint64
}

// Chunk is a square patch of columns centered at (centerX, centerZ).
type Chunk struct {
	key     Key
	centerX float64
	centerZ float64
	size    int

	mu          sync.RWMutex
	heights     []float64
	occ         *terrain.Occupancy
	inst        *instances
	highlighted int
	golden      int
}

// NewChunk wraps generated terrain. heights and occ must describe the same
// size×size columns; positions and types are the initial instance buffers.
func NewChunk(centerX, centerZ float64, size int, heights []float64, occ *terrain.Occupancy, positions, types []float32) *Chunk {
	return &Chunk{
		key:         KeyFor(centerX, centerZ),
		centerX:     centerX,
		centerZ:     centerZ,
		size:        size,
		heights:     heights,
		occ:         occ,
		inst:        &instances{positions: positions, types: types, version: 1},
		highlighted: -1,
	}
}

func (c *Chunk) Key() Key         { return c.key }
func (c *Chunk) Size() int        { return c.size }
func (c *Chunk) CenterX() float64 { return c.centerX }
func (c *Chunk) CenterZ() float64 { return c.centerZ }

// TopLeft is the world coordinate of local column (0, 0).
func (c *Chunk) TopLeft() (float64, float64) {
	half := float64(c.size / 2)
	return c.centerX - half, c.centerZ - half
}

// Contains reports whether world (x, z) lies inside the chunk's columns.
func (c *Chunk) Contains(x, z float64) bool {
	left, top := c.TopLeft()
	s := float64(c.size)
	return x >= left && x < left+s && z >= top && z < top+s
}

// Values packs center x, center z, size and instance count for the renderer.
func (c *Chunk) Values() mgl32.Vec4 {
	c.mu.RLock()
	n := c.inst.count()
	c.mu.RUnlock()
	return mgl32.Vec4{float32(c.centerX), float32(c.centerZ), float32(c.size), float32(n)}
}

func (c *Chunk) InstancePositions() []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inst.positions
}

func (c *Chunk) InstanceTypes() []float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inst.types
}

func (c *Chunk) InstanceCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inst.count()
}

// Snapshot returns a consistent view of the instance buffers.
func (c *Chunk) Snapshot() Snapshot {
	c.mu.RLock()
	in := c.inst
	c.mu.RUnlock()
	return Snapshot{
		Key:       c.key,
		CenterX:   c.centerX,
		CenterZ:   c.centerZ,
		Positions: in.positions,
		Types:     in.types,
		Count:     in.count(),
		Version:   in.version,
	}
}

// HeightMap returns a copy of the corrected column heights.
func (c *Chunk) HeightMap() []float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]float64, len(c.heights))
	copy(out, c.heights)
	return out
}

// Occupancy returns the current column occupancy. It is immutable; edits
// replace it.
func (c *Chunk) Occupancy() *terrain.Occupancy {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.occ
}

// GoldenCollected counts golden marker voxels removed from this chunk.
func (c *Chunk) GoldenCollected() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.golden
}

// local maps integer world coordinates to a local column.
func (c *Chunk) local(x, z int) (int, int, bool) {
	left, top := c.TopLeft()
	i, j := x-int(left), z-int(top)
	if i < 0 || j < 0 || i >= c.size || j >= c.size {
		return 0, 0, false
	}
	return i, j, true
}

// SolidAt reports whether the voxel at integer world (x, level, z) is solid
// terrain. ok is false when the column belongs to another chunk.
func (c *Chunk) SolidAt(x, z, level int) (solid, ok bool) {
	i, j, ok := c.local(x, z)
	if !ok {
		return false, false
	}
	c.mu.RLock()
	occ := c.occ
	c.mu.RUnlock()
	return occ.SolidAt(i, j, level), true
}

// ColumnHeight is the corrected height of the column at integer world (x, z).
func (c *Chunk) ColumnHeight(x, z int) (int, bool) {
	i, j, ok := c.local(x, z)
	if !ok {
		return 0, false
	}
	c.mu.RLock()
	occ := c.occ
	c.mu.RUnlock()
	return occ.Height(c.size*i + j), true
}

func roundTarget(target mgl32.Vec3) (float32, float32, float32) {
	return float32(math.Round(float64(target.X()))),
		float32(math.Round(float64(target.Y()))),
		float32(math.Round(float64(target.Z())))
}

// Highlight clears the previous highlight and, when show is set, flags the
// voxel at target as a removal candidate. It reports whether this chunk owns
// the targeted voxel.
func (c *Chunk) Highlight(show bool, target mgl32.Vec3) bool {
	x, y, z := roundTarget(target)

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := -1
	if show && c.Contains(float64(x), float64(z)) {
		idx = c.inst.find(x, y, z)
	}
	if idx >= 0 && idx == c.highlighted && c.inst.positions[4*idx+3] == FlagCandidate {
		return true
	}

	var next *instances
	if c.highlighted >= 0 && c.highlighted < c.inst.count() && c.inst.positions[4*c.highlighted+3] != FlagNormal {
		next = c.inst.clone()
		next.positions[4*c.highlighted+3] = FlagNormal
	}
	c.highlighted = -1
	if idx >= 0 {
		if next == nil {
			next = c.inst.clone()
		}
		next.positions[4*idx+3] = FlagCandidate
		c.highlighted = idx
	}
	if next != nil {
		c.inst = next
	}
	return idx >= 0
}

// EditVoxel removes or places the voxel at target. It returns false when
// target is outside the chunk, when removing a voxel that does not exist, or
// when placing onto an occupied position. Each edit rebuilds the instance
// buffers and swaps them in one step; terrain edits also re-cull the face
// neighbors, so a removal uncovers the voxels below and beside it.
func (c *Chunk) EditVoxel(remove bool, target mgl32.Vec3) bool {
	x, y, z := roundTarget(target)
	if !c.Contains(float64(x), float64(z)) || y < 0 {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if remove {
		return c.removeLocked(x, y, z)
	}
	return c.placeLocked(x, y, z)
}

func (c *Chunk) removeLocked(x, y, z float32) bool {
	idx := c.inst.find(x, y, z)
	if idx < 0 {
		return false
	}
	cur := c.inst
	n := cur.count()
	next := &instances{
		positions: make([]float32, 0, 4*(n-1)),
		types:     make([]float32, 0, n-1),
		version:   cur.version + 1,
	}
	next.positions = append(next.positions, cur.positions[:4*idx]...)
	next.positions = append(next.positions, cur.positions[4*idx+4:]...)
	next.types = append(next.types, cur.types[:idx]...)
	next.types = append(next.types, cur.types[idx+1:]...)

	kind := VoxelType(cur.types[idx])
	if kind == VoxelGolden {
		c.golden++
	}
	switch {
	case c.highlighted == idx:
		c.highlighted = -1
	case c.highlighted > idx:
		c.highlighted--
	}
	if kind == VoxelTerrain || kind == VoxelGolden {
		c.setLevelLocked(int(x), int(z), int(y), -1)
		c.resurfaceLocked(next, int(x), int(y), int(z))
	}
	c.inst = next
	return true
}

func (c *Chunk) placeLocked(x, y, z float32) bool {
	if c.inst.find(x, y, z) >= 0 {
		return false
	}
	cur := c.inst
	next := &instances{
		positions: make([]float32, len(cur.positions), len(cur.positions)+4),
		types:     make([]float32, len(cur.types), len(cur.types)+1),
		version:   cur.version + 1,
	}
	copy(next.positions, cur.positions)
	copy(next.types, cur.types)
	if c.highlighted >= 0 && c.highlighted < cur.count() {
		next.positions[4*c.highlighted+3] = FlagNormal
	}
	c.highlighted = -1

	c.setLevelLocked(int(x), int(z), int(y), 1)
	c.resurfaceLocked(next, int(x), int(y), int(z))
	next.positions = append(next.positions, x, y, z, FlagSelected)
	next.types = append(next.types, float32(VoxelTerrain))
	c.highlighted = next.count() - 1
	c.inst = next
	return true
}

// faceNeighbors are the six cells sharing a face with an edited voxel.
var faceNeighbors = [6][3]int{
	{-1, 0, 0}, {1, 0, 0},
	{0, -1, 0}, {0, 1, 0},
	{0, 0, -1}, {0, 0, 1},
}

// resurfaceLocked re-runs the exposure test on the face neighbors of an
// edited terrain voxel against the current occupancy. Neighbors uncovered by
// a removal gain a terrain instance; neighbors buried by a placement lose
// theirs. next must be the unpublished buffer being built for this edit.
func (c *Chunk) resurfaceLocked(next *instances, x, y, z int) {
	for _, d := range faceNeighbors {
		nx, ny, nz := x+d[0], y+d[1], z+d[2]
		i, j, ok := c.local(nx, nz)
		if !ok || ny < 0 {
			continue
		}
		fx, fy, fz := float32(nx), float32(ny), float32(nz)
		idx := next.find(fx, fy, fz)
		exposed := c.occ.Exposed(i, j, ny)
		switch {
		case exposed && idx < 0:
			next.positions = append(next.positions, fx, fy, fz, FlagNormal)
			next.types = append(next.types, float32(VoxelTerrain))
		case !exposed && idx >= 0 && c.occ.SolidAt(i, j, ny):
			kind := VoxelType(next.types[idx])
			if kind != VoxelTerrain && kind != VoxelGolden {
				continue
			}
			next.positions = append(next.positions[:4*idx], next.positions[4*idx+4:]...)
			next.types = append(next.types[:idx], next.types[idx+1:]...)
			switch {
			case c.highlighted == idx:
				c.highlighted = -1
			case c.highlighted > idx:
				c.highlighted--
			}
		}
	}
}

// setLevelLocked keeps occupancy and heights in step with terrain edits.
func (c *Chunk) setLevelLocked(x, z, level int, density float64) {
	i, j, ok := c.local(x, z)
	if !ok {
		return
	}
	idx := c.size*i + j
	occ, err := c.occ.WithLevel(idx, level, density)
	if err != nil {
		return
	}
	c.occ = occ
	heights := make([]float64, len(c.heights))
	copy(heights, c.heights)
	heights[idx] = float64(occ.Height(idx))
	c.heights = heights
}
