package vegetation

import (
	"fmt"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"voxelstream/internal/config"
)

// Branch is one drawn segment. Step is the turtle's move count once the
// segment is drawn; Leaf is set by the '*' symbol.
type Branch struct {
	Start mgl64.Vec3
	End   mgl64.Vec3
	Step  int
	Leaf  bool
}

// Part says how a tree voxel is rendered.
type Part int

const (
	PartTrunk Part = iota
	PartFoliage
)

type typingMode int

const (
	typeByHeight typingMode = iota
	typeByLeaf
)

// Species is a grammar plus the parameters used to draw and type it.
type Species struct {
	Name          string
	Grammar       *Grammar
	Depth         int
	Angle         float64
	SegmentLength float64

	typing       typingMode
	trunkHeight  float64
	blendHeight  float64
	foliageAfter int
}

// NewSpecies compiles a species configuration and checks that its grammar
// only uses symbols the turtle understands.
func NewSpecies(cfg config.SpeciesConfig) (*Species, error) {
	g, err := NewGrammar(cfg.Axiom, cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("species %s: %w", cfg.Name, err)
	}
	if err := g.validate(); err != nil {
		return nil, fmt.Errorf("species %s: %w", cfg.Name, err)
	}
	s := &Species{
		Name:          cfg.Name,
		Grammar:       g,
		Depth:         cfg.Depth,
		Angle:         cfg.Angle,
		SegmentLength: cfg.SegmentLength,
		trunkHeight:   cfg.TrunkHeight,
		blendHeight:   cfg.BlendHeight,
		foliageAfter:  cfg.FoliageAfter,
	}
	switch cfg.Typing {
	case "leaf":
		s.typing = typeByLeaf
	case "height", "":
		s.typing = typeByHeight
	default:
		return nil, fmt.Errorf("species %s: unknown typing %q", cfg.Name, cfg.Typing)
	}
	return s, nil
}

// angleJitter holds the multipliers a turn angle is randomly scaled by.
var angleJitter = [5]float64{1 / 1.4, 1 / 1.2, 1, 1.2, 1.4}

func jitter(rng *rand.Rand) float64 {
	return angleJitter[rng.Intn(len(angleJitter))]
}

// Generate expands the grammar at the species depth and walks it with a
// fresh turtle. Each call returns a new branch list; turn angles are
// jittered from rng, so trees differ while keeping their structure.
func (s *Species) Generate(rng *rand.Rand) []Branch {
	return s.Interpret(s.Grammar.Expand(s.Depth), rng)
}

// Interpret walks an already expanded string.
func (s *Species) Interpret(program string, rng *rand.Rand) []Branch {
	t := NewTurtle()
	var branches []Branch
	for i := 0; i < len(program); i++ {
		switch program[i] {
		case 'F':
			start := t.Position
			t.Move(s.SegmentLength)
			branches = append(branches, Branch{Start: start, End: t.Position, Step: t.Moves})
		case 'f':
			t.Move(s.SegmentLength)
		case '+':
			t.Yaw(s.Angle * jitter(rng))
		case '-':
			t.Yaw(-s.Angle * jitter(rng))
		case '&':
			t.Pitch(s.Angle * jitter(rng))
		case '^':
			t.Pitch(-s.Angle * jitter(rng))
		case '\\':
			t.Roll(s.Angle * jitter(rng))
		case '/':
			t.Roll(-s.Angle * jitter(rng))
		case '|':
			t.Yaw(180)
		case '[':
			t.Push()
		case ']':
			t.Pop()
		case '*':
			if n := len(branches); n > 0 {
				branches[n-1].Leaf = true
			}
		}
	}
	return branches
}

// PartFor types a tree voxel grown from branch b. ordinal counts tree
// voxels across the whole chunk, so leaf-typed species turn to foliage once
// the chunk has grown foliageAfter of them.
func (s *Species) PartFor(b Branch, ordinal int, rng *rand.Rand) Part {
	if s.typing == typeByLeaf {
		if b.Leaf || ordinal >= s.foliageAfter {
			return PartFoliage
		}
		return PartTrunk
	}
	y := b.Start.Y()
	switch {
	case y < s.trunkHeight:
		return PartTrunk
	case y < s.blendHeight:
		if rng.Float64() < 0.5 {
			return PartTrunk
		}
		return PartFoliage
	default:
		return PartFoliage
	}
}
