package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a JSON and YAML friendly wrapper around time.Duration that
// accepts human readable strings such as "150ms" in configuration files while
// still allowing numeric representations when necessary.
type Duration time.Duration

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalJSON encodes the duration using the canonical string representation.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON decodes a duration from either a string (e.g. "250ms") or a
// numeric value representing nanoseconds. Empty strings and null values decode
// to zero.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if len(b) == 0 {
		return fmt.Errorf("duration: empty value")
	}
	if string(b) == "null" {
		*d = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("duration: decode string: %w", err)
		}
		return d.parse(s)
	}
	var n int64
	if err := json.Unmarshal(b, &n); err == nil {
		*d = Duration(time.Duration(n))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*d = Duration(time.Duration(f))
		return nil
	}
	return fmt.Errorf("duration: invalid value %s", string(b))
}

// MarshalYAML mirrors MarshalJSON.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts the same forms as UnmarshalJSON.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration: expected scalar, got yaml kind %d", node.Kind)
	}
	if node.Tag == "!!int" || node.Tag == "!!float" {
		var f float64
		if err := node.Decode(&f); err != nil {
			return fmt.Errorf("duration: decode number: %w", err)
		}
		*d = Duration(time.Duration(f))
		return nil
	}
	return d.parse(node.Value)
}

func (d *Duration) parse(s string) error {
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("duration: parse %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config captures the tunable parameters of the world core and its stream server.
type Config struct {
	World       WorldConfig       `json:"world" yaml:"world"`
	Density     DensityConfig     `json:"density" yaml:"density"`
	Vegetation  VegetationConfig  `json:"vegetation" yaml:"vegetation"`
	Markers     MarkerConfig      `json:"markers" yaml:"markers"`
	Cache       CacheConfig       `json:"cache" yaml:"cache"`
	Physics     PhysicsConfig     `json:"physics" yaml:"physics"`
	Environment EnvironmentConfig `json:"environment" yaml:"environment"`
	Server      ServerConfig      `json:"server" yaml:"server"`
}

type WorldConfig struct {
	ChunkSize   int     `json:"chunkSize" yaml:"chunkSize"`     // columns per chunk edge
	MaxHeight   float64 `json:"maxHeight" yaml:"maxHeight"`     // height-map clamp
	Octaves     int     `json:"octaves" yaml:"octaves"`         // octave count
	BaseDivisor int     `json:"baseDivisor" yaml:"baseDivisor"` // first octave width = chunkSize/baseDivisor
}

type DensityConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled"`
	GridSpacing float64 `json:"gridSpacing" yaml:"gridSpacing"`
	Seed        float64 `json:"seed" yaml:"seed"`
	Bias        float64 `json:"bias" yaml:"bias"`
}

type VegetationConfig struct {
	Enabled       bool            `json:"enabled" yaml:"enabled"`
	TreesPerChunk int             `json:"treesPerChunk" yaml:"treesPerChunk"`
	Border        int             `json:"border" yaml:"border"`             // columns skipped at the chunk edge
	Neighborhood  int             `json:"neighborhood" yaml:"neighborhood"` // half width of the local maximum window
	ScanStride    int             `json:"scanStride" yaml:"scanStride"`     // skip after a hit
	PrimaryChance float64         `json:"primaryChance" yaml:"primaryChance"`
	Seed          int64           `json:"seed" yaml:"seed"`
	Species       []SpeciesConfig `json:"species" yaml:"species"`
}

// SpeciesConfig describes one L-system grammar and how its voxels are typed.
type SpeciesConfig struct {
	Name          string            `json:"name" yaml:"name"`
	Axiom         string            `json:"axiom" yaml:"axiom"`
	Rules         map[string]string `json:"rules" yaml:"rules"`
	Depth         int               `json:"depth" yaml:"depth"`
	Angle         float64           `json:"angle" yaml:"angle"` // degrees
	SegmentLength float64           `json:"segmentLength" yaml:"segmentLength"`
	Typing        string            `json:"typing" yaml:"typing"` // "height" or "leaf"
	TrunkHeight   float64           `json:"trunkHeight" yaml:"trunkHeight"`
	BlendHeight   float64           `json:"blendHeight" yaml:"blendHeight"`
	FoliageAfter  int               `json:"foliageAfter" yaml:"foliageAfter"`
}

type MarkerConfig struct {
	GoldenEvery    int `json:"goldenEvery" yaml:"goldenEvery"`
	GoldenMinIndex int `json:"goldenMinIndex" yaml:"goldenMinIndex"`
}

type CacheConfig struct {
	Radius       int `json:"radius" yaml:"radius"` // 1 streams a 3x3 neighborhood
	CacheLimit   int `json:"cacheLimit" yaml:"cacheLimit"`
	BuildWorkers int `json:"buildWorkers" yaml:"buildWorkers"`
	NoiseMemo    int `json:"noiseMemo" yaml:"noiseMemo"`
}

type PhysicsConfig struct {
	Gravity          float64    `json:"gravity" yaml:"gravity"`
	JumpSpeed        float64    `json:"jumpSpeed" yaml:"jumpSpeed"`
	Radius           float64    `json:"radius" yaml:"radius"`
	MaxHeightToCheck float64    `json:"maxHeightToCheck" yaml:"maxHeightToCheck"`
	BoundaryMargin   float64    `json:"boundaryMargin" yaml:"boundaryMargin"`
	WalkSpeed        float64    `json:"walkSpeed" yaml:"walkSpeed"`
	Spawn            SpawnPoint `json:"spawn" yaml:"spawn"`
}

type SpawnPoint struct {
	X float64 `json:"x" yaml:"x"`
	Z float64 `json:"z" yaml:"z"`
}

type EnvironmentConfig struct {
	DayLength   Duration `json:"dayLength" yaml:"dayLength"`
	InitialHour float64  `json:"initialHour" yaml:"initialHour"`
	CycleSpeed  float64  `json:"cycleSpeed" yaml:"cycleSpeed"`
}

type ServerConfig struct {
	TickRate         Duration `json:"tickRate" yaml:"tickRate"` // e.g. "16ms"
	Listen           string   `json:"listen" yaml:"listen"`
	MaxQueue         int      `json:"maxQueue" yaml:"maxQueue"` // per-session outbound buffer
	EditsPerSecond   float64  `json:"editsPerSecond" yaml:"editsPerSecond"`
	EditBurst        int      `json:"editBurst" yaml:"editBurst"`
	CompressionLevel string   `json:"compressionLevel" yaml:"compressionLevel"`
}

// Load reads configuration from a JSON or YAML file if provided. An empty
// path returns defaults. The raw document is checked against the embedded
// schema before it is decoded over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	if isYAML(path) {
		if err := validateYAMLDocument(data); err != nil {
			return nil, fmt.Errorf("check config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else {
		if err := validateDocument(data); err != nil {
			return nil, fmt.Errorf("check config: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// OctaveWidths returns the noise grid width of every octave, coarsest first.
func (w WorldConfig) OctaveWidths() []int {
	widths := make([]int, 0, w.Octaves)
	div := w.BaseDivisor
	for o := 0; o < w.Octaves; o++ {
		if div <= 0 || w.ChunkSize%div != 0 {
			return widths
		}
		widths = append(widths, w.ChunkSize/div)
		div *= 2
	}
	return widths
}

func (c *Config) Validate() error {
	if c.World.ChunkSize <= 0 {
		return errors.New("world.chunkSize must be positive")
	}
	if c.World.MaxHeight <= 0 {
		return errors.New("world.maxHeight must be positive")
	}
	if c.World.Octaves <= 0 {
		return errors.New("world.octaves must be positive")
	}
	if !powerOfTwo(c.World.BaseDivisor) {
		return errors.New("world.baseDivisor must be a power of two")
	}
	if len(c.World.OctaveWidths()) != c.World.Octaves {
		return errors.New("world.chunkSize must be divisible by every octave width")
	}
	if c.Density.Enabled && c.Density.GridSpacing <= 0 {
		return errors.New("density.gridSpacing must be positive")
	}
	if err := c.Vegetation.validate(); err != nil {
		return err
	}
	if c.Markers.GoldenEvery <= 0 {
		return errors.New("markers.goldenEvery must be positive")
	}
	if c.Markers.GoldenMinIndex < 0 {
		return errors.New("markers.goldenMinIndex cannot be negative")
	}
	if c.Cache.Radius < 0 {
		return errors.New("cache.radius cannot be negative")
	}
	if c.Cache.CacheLimit < 0 {
		return errors.New("cache.cacheLimit cannot be negative")
	}
	if c.Cache.BuildWorkers <= 0 {
		return errors.New("cache.buildWorkers must be positive")
	}
	if c.Cache.NoiseMemo <= 0 {
		return errors.New("cache.noiseMemo must be positive")
	}
	if c.Physics.Radius <= 0 {
		return errors.New("physics.radius must be positive")
	}
	if c.Physics.MaxHeightToCheck <= 0 {
		return errors.New("physics.maxHeightToCheck must be positive")
	}
	if c.Physics.Gravity > 0 {
		return errors.New("physics.gravity cannot be positive")
	}
	if c.Physics.WalkSpeed < 0 || c.Physics.JumpSpeed < 0 {
		return errors.New("physics walk/jump speeds cannot be negative")
	}
	if c.Physics.BoundaryMargin < 0 {
		return errors.New("physics.boundaryMargin cannot be negative")
	}
	if c.Environment.DayLength <= 0 {
		return errors.New("environment.dayLength must be positive")
	}
	if c.Environment.InitialHour < 0 || c.Environment.InitialHour >= 24 {
		return errors.New("environment.initialHour must be within [0, 24)")
	}
	if c.Environment.CycleSpeed < 0 {
		return errors.New("environment.cycleSpeed cannot be negative")
	}
	if c.Server.TickRate <= 0 {
		return errors.New("server.tickRate must be positive")
	}
	if c.Server.Listen == "" {
		return errors.New("server.listen must be set")
	}
	if c.Server.MaxQueue <= 0 {
		return errors.New("server.maxQueue must be positive")
	}
	if c.Server.EditsPerSecond <= 0 || c.Server.EditBurst <= 0 {
		return errors.New("server edit rate and burst must be positive")
	}
	return nil
}

func (v VegetationConfig) validate() error {
	if !v.Enabled {
		return nil
	}
	if len(v.Species) == 0 {
		return errors.New("vegetation.species must not be empty")
	}
	if v.TreesPerChunk < 0 || v.Border < 0 || v.Neighborhood < 0 {
		return errors.New("vegetation tree count, border and neighborhood cannot be negative")
	}
	if v.ScanStride <= 0 {
		return errors.New("vegetation.scanStride must be positive")
	}
	if v.PrimaryChance < 0 || v.PrimaryChance > 1 {
		return errors.New("vegetation.primaryChance must be within [0, 1]")
	}
	for i, s := range v.Species {
		if s.Name == "" {
			return fmt.Errorf("vegetation.species[%d].name must be set", i)
		}
		if s.Axiom == "" {
			return fmt.Errorf("vegetation.species[%d].axiom must be set", i)
		}
		for symbol := range s.Rules {
			if len(symbol) != 1 {
				return fmt.Errorf("vegetation.species[%d].rules key %q must be a single symbol", i, symbol)
			}
		}
		if s.Depth < 0 {
			return fmt.Errorf("vegetation.species[%d].depth cannot be negative", i)
		}
		if s.SegmentLength <= 0 {
			return fmt.Errorf("vegetation.species[%d].segmentLength must be positive", i)
		}
		if s.Typing != "height" && s.Typing != "leaf" {
			return fmt.Errorf("vegetation.species[%d].typing must be height or leaf", i)
		}
	}
	return nil
}

func powerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
