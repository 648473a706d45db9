package terrain

import "fmt"

// Occupancy holds the per-level densities of every column of a chunk in one
// flat slice. Column c occupies levels[offsets[c]:offsets[c+1]]; its length
// is the column's corrected height, so the top stored level is always solid.
// An Occupancy is never mutated after construction.
type Occupancy struct {
	size    int
	offsets []int
	levels  []float64
}

// NewOccupancy flattens size×size columns.
func NewOccupancy(size int, columns [][]float64) *Occupancy {
	o := &Occupancy{
		size:    size,
		offsets: make([]int, size*size+1),
	}
	total := 0
	for c := 0; c < size*size && c < len(columns); c++ {
		total += len(columns[c])
	}
	o.levels = make([]float64, 0, total)
	for c := 0; c < size*size; c++ {
		o.offsets[c] = len(o.levels)
		if c < len(columns) {
			o.levels = append(o.levels, columns[c]...)
		}
	}
	o.offsets[size*size] = len(o.levels)
	return o
}

// Size is the chunk edge length in columns.
func (o *Occupancy) Size() int { return o.size }

// Column returns the densities of column idx (row-major, size*i + j). The
// slice aliases the occupancy and must not be modified.
func (o *Occupancy) Column(idx int) []float64 {
	if idx < 0 || idx >= o.size*o.size {
		return nil
	}
	return o.levels[o.offsets[idx]:o.offsets[idx+1]]
}

// Height is the corrected height of column idx.
func (o *Occupancy) Height(idx int) int {
	if idx < 0 || idx >= o.size*o.size {
		return 0
	}
	return o.offsets[idx+1] - o.offsets[idx]
}

// Solid reports whether level of column idx is solid. Anything out of range
// is empty.
func (o *Occupancy) Solid(idx, level int) bool {
	col := o.Column(idx)
	if level < 0 || level >= len(col) {
		return false
	}
	return col[level] >= 0
}

// SolidAt is Solid addressed by local row i and column j.
func (o *Occupancy) SolidAt(i, j, level int) bool {
	if i < 0 || j < 0 || i >= o.size || j >= o.size {
		return false
	}
	return o.Solid(o.size*i+j, level)
}

// Exposed reports whether the voxel at (i, j, level) would be visible: it
// must be solid and sit on a chunk boundary column, at the bottom or top of
// its column, or next to an empty or out-of-range neighbor level.
func (o *Occupancy) Exposed(i, j, level int) bool {
	if !o.SolidAt(i, j, level) {
		return false
	}
	height := o.Height(o.size*i + j)
	if i == 0 || j == 0 || i == o.size-1 || j == o.size-1 {
		return true
	}
	if level == 0 || level == height-1 {
		return true
	}
	return !o.SolidAt(i-1, j, level) ||
		!o.SolidAt(i+1, j, level) ||
		!o.SolidAt(i, j-1, level) ||
		!o.SolidAt(i, j+1, level) ||
		!o.SolidAt(i, j, level-1) ||
		!o.SolidAt(i, j, level+1)
}

// WithLevel returns a copy with one level of column idx replaced by density.
// Columns grow with empty levels when needed and are trimmed back to their
// topmost solid level, keeping heights consistent with densities.
func (o *Occupancy) WithLevel(idx, level int, density float64) (*Occupancy, error) {
	if idx < 0 || idx >= o.size*o.size {
		return nil, fmt.Errorf("column %d outside %d×%d chunk", idx, o.size, o.size)
	}
	if level < 0 {
		return nil, fmt.Errorf("level %d below ground", level)
	}
	columns := make([][]float64, o.size*o.size)
	for c := range columns {
		columns[c] = o.Column(c)
	}

	col := make([]float64, len(columns[idx]))
	copy(col, columns[idx])
	for len(col) <= level {
		col = append(col, -1)
	}
	col[level] = density
	columns[idx] = trimColumn(col)
	return NewOccupancy(o.size, columns), nil
}

func trimColumn(col []float64) []float64 {
	top := len(col)
	for top > 0 && col[top-1] < 0 {
		top--
	}
	return col[:top]
}

// Heights returns the corrected height of every column.
func (o *Occupancy) Heights() []float64 {
	out := make([]float64, o.size*o.size)
	for c := range out {
		out[c] = float64(o.Height(c))
	}
	return out
}
