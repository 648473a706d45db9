package network

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
)

// frameMagic opens every binary chunk frame.
var frameMagic = [4]byte{'V', 'X', 'C', '1'}

const frameHeaderSize = 4 + 4 + 4 + 8 + 4

var ErrBadFrame = errors.New("malformed chunk frame")

// ChunkFrame is one chunk's instance buffers as sent to renderers.
type ChunkFrame struct {
	CenterX   int32
	CenterZ   int32
	Version   uint64
	Positions []float32 // x, y, z, flag per voxel
	Types     []float32
}

// Count is the number of voxels in the frame.
func (f ChunkFrame) Count() int { return len(f.Types) }

// FrameCodec packs chunk frames little-endian and compresses them with zstd.
// It is safe for concurrent use.
type FrameCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewFrameCodec accepts "fastest", "default", "better" or "best".
func NewFrameCodec(level string) (*FrameCodec, error) {
	var encLevel zstd.EncoderLevel
	switch level {
	case "", "fastest":
		encLevel = zstd.SpeedFastest
	case "default":
		encLevel = zstd.SpeedDefault
	case "better":
		encLevel = zstd.SpeedBetterCompression
	case "best":
		encLevel = zstd.SpeedBestCompression
	default:
		return nil, fmt.Errorf("unknown compression level %q", level)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return &FrameCodec{enc: enc, dec: dec}, nil
}

func (c *FrameCodec) Close() {
	c.enc.Close()
	c.dec.Close()
}

func (c *FrameCodec) Encode(f ChunkFrame) ([]byte, error) {
	count := f.Count()
	if len(f.Positions) != 4*count {
		return nil, fmt.Errorf("%w: %d positions for %d voxels", ErrBadFrame, len(f.Positions), count)
	}
	raw := make([]byte, frameHeaderSize+20*count)
	copy(raw, frameMagic[:])
	binary.LittleEndian.PutUint32(raw[4:], uint32(f.CenterX))
	binary.LittleEndian.PutUint32(raw[8:], uint32(f.CenterZ))
	binary.LittleEndian.PutUint64(raw[12:], f.Version)
	binary.LittleEndian.PutUint32(raw[20:], uint32(count))
	off := frameHeaderSize
	for _, v := range f.Positions {
		binary.LittleEndian.PutUint32(raw[off:], math.Float32bits(v))
		off += 4
	}
	for _, v := range f.Types {
		binary.LittleEndian.PutUint32(raw[off:], math.Float32bits(v))
		off += 4
	}
	return c.enc.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

func (c *FrameCodec) Decode(data []byte) (ChunkFrame, error) {
	raw, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		return ChunkFrame{}, fmt.Errorf("decompress chunk frame: %w", err)
	}
	if len(raw) < frameHeaderSize || !bytes.Equal(raw[:4], frameMagic[:]) {
		return ChunkFrame{}, ErrBadFrame
	}
	f := ChunkFrame{
		CenterX: int32(binary.LittleEndian.Uint32(raw[4:])),
		CenterZ: int32(binary.LittleEndian.Uint32(raw[8:])),
		Version: binary.LittleEndian.Uint64(raw[12:]),
	}
	count := int(binary.LittleEndian.Uint32(raw[20:]))
	if len(raw) != frameHeaderSize+20*count {
		return ChunkFrame{}, fmt.Errorf("%w: %d bytes for %d voxels", ErrBadFrame, len(raw), count)
	}
	f.Positions = make([]float32, 4*count)
	f.Types = make([]float32, count)
	off := frameHeaderSize
	for n := range f.Positions {
		f.Positions[n] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
		off += 4
	}
	for n := range f.Types {
		f.Types[n] = math.Float32frombits(binary.LittleEndian.Uint32(raw[off:]))
		off += 4
	}
	return f, nil
}
