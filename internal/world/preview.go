package world

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

const (
	previewTileWidth   = 8
	previewTileHeight  = 4
	previewBlockHeight = 4
	previewAmbient     = 0.2
)

// previewPalette mirrors the renderer's per-type colors.
var previewPalette = map[VoxelType]string{
	VoxelTerrain: "#6b8f47",
	VoxelTrunk:   "#6e4a2c",
	VoxelFoliage: "#2f7d32",
	VoxelGolden:  "#e3b341",
}

type previewVoxel struct {
	i, y, j int
	kind    VoxelType
	flag    float32
	sx, sy  int
}

// SavePreview renders an isometric PNG of the chunk's instances into dir and
// returns the file path. Flagged voxels are drawn brighter.
func SavePreview(c *Chunk, dir string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("chunk is nil")
	}
	if dir == "" {
		return "", fmt.Errorf("output directory is empty")
	}

	snap := c.Snapshot()
	left, top := c.TopLeft()
	maxY := 1
	voxels := make([]previewVoxel, 0, snap.Count)
	for n := 0; n < snap.Count; n++ {
		p := snap.Positions[4*n : 4*n+4]
		v := previewVoxel{
			i:    int(p[0]) - int(left),
			y:    int(p[1]),
			j:    int(p[2]) - int(top),
			kind: VoxelType(snap.Types[n]),
			flag: p[3],
		}
		v.sx = (v.i - v.j) * previewTileWidth / 2
		v.sy = (v.i+v.j)*previewTileHeight/2 - v.y*previewBlockHeight
		if v.y+1 > maxY {
			maxY = v.y + 1
		}
		voxels = append(voxels, v)
	}

	// Painter's order: far to near, bottom to top.
	sort.Slice(voxels, func(a, b int) bool {
		va, vb := voxels[a], voxels[b]
		if da, db := va.i+va.j, vb.i+vb.j; da != db {
			return da < db
		}
		if va.y != vb.y {
			return va.y < vb.y
		}
		return va.i < vb.i
	})

	size := c.Size()
	width := 2*size*previewTileWidth/2 + previewTileWidth
	height := 2*size*previewTileHeight/2 + maxY*previewBlockHeight + 2*previewTileHeight
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.NRGBA{R: 12, G: 14, B: 22, A: 255}}, image.Point{}, draw.Src)

	originX := size*previewTileWidth/2 + previewTileWidth/2
	originY := maxY*previewBlockHeight + previewTileHeight
	for _, v := range voxels {
		drawVoxel(img, originX+v.sx, originY+v.sy, v)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create preview dir: %w", err)
	}
	name := "chunk_" + strings.ReplaceAll(string(c.Key()), " ", "_") + ".png"
	path := filepath.Join(dir, name)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create preview: %w", err)
	}
	defer file.Close()
	if err := png.Encode(file, img); err != nil {
		return "", fmt.Errorf("encode preview: %w", err)
	}
	return path, nil
}

func drawVoxel(img *image.NRGBA, x, y int, v previewVoxel) {
	base := voxelColor(v.kind)
	boost := 0.0
	if v.flag != FlagNormal {
		boost = 0.35
	}
	w, h, b := previewTileWidth/2, previewTileHeight/2, previewBlockHeight

	topFace := []image.Point{{x, y - b}, {x + w, y - b + h}, {x, y - b + 2*h}, {x - w, y - b + h}}
	leftFace := []image.Point{{x - w, y - b + h}, {x, y - b + 2*h}, {x, y + 2*h}, {x - w, y + h}}
	rightFace := []image.Point{{x + w, y - b + h}, {x, y - b + 2*h}, {x, y + 2*h}, {x + w, y + h}}

	fillPolygon(img, leftFace, shade(base, previewAmbient+0.45+boost))
	fillPolygon(img, rightFace, shade(base, previewAmbient+0.3+boost))
	fillPolygon(img, topFace, shade(base, previewAmbient+0.8+boost))
}

func voxelColor(kind VoxelType) color.NRGBA {
	if hex, ok := previewPalette[kind]; ok {
		if col, ok := parseHexColor(hex); ok {
			return col
		}
	}
	return color.NRGBA{R: 128, G: 128, B: 128, A: 255}
}

func parseHexColor(value string) (color.NRGBA, bool) {
	value = strings.TrimPrefix(strings.TrimSpace(value), "#")
	if len(value) != 6 {
		return color.NRGBA{}, false
	}
	v, err := strconv.ParseUint(value, 16, 32)
	if err != nil {
		return color.NRGBA{}, false
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, true
}

func shade(base color.NRGBA, factor float64) color.NRGBA {
	factor = math.Max(0, math.Min(1, factor))
	scale := func(c uint8) uint8 { return uint8(math.Round(float64(c) * factor)) }
	return color.NRGBA{R: scale(base.R), G: scale(base.G), B: scale(base.B), A: 255}
}

// fillPolygon scan-converts a convex polygon, clipped to the image.
func fillPolygon(img *image.NRGBA, pts []image.Point, col color.NRGBA) {
	if len(pts) < 3 {
		return
	}
	bounds := img.Bounds()
	lo, hi := pts[0].Y, pts[0].Y
	for _, p := range pts[1:] {
		lo, hi = min(lo, p.Y), max(hi, p.Y)
	}
	lo, hi = max(lo, bounds.Min.Y), min(hi, bounds.Max.Y-1)

	xs := make([]int, 0, len(pts))
	for y := lo; y <= hi; y++ {
		xs = xs[:0]
		for n := range pts {
			a, b := pts[n], pts[(n+1)%len(pts)]
			if a.Y == b.Y || y < min(a.Y, b.Y) || y >= max(a.Y, b.Y) {
				continue
			}
			xs = append(xs, a.X+(y-a.Y)*(b.X-a.X)/(b.Y-a.Y))
		}
		sort.Ints(xs)
		for n := 0; n+1 < len(xs); n += 2 {
			from, to := max(xs[n], bounds.Min.X), min(xs[n+1], bounds.Max.X-1)
			for x := from; x <= to; x++ {
				img.SetNRGBA(x, y, col)
			}
		}
	}
}
