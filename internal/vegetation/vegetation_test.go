package vegetation

import (
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"voxelstream/internal/config"
)

func TestGrammarMemoizesDepths(t *testing.T) {
	g, err := NewGrammar("A", map[string]string{"A": "F[+A]A"})
	if err != nil {
		t.Fatalf("new grammar: %v", err)
	}
	if got := g.Expand(0); got != "A" {
		t.Fatalf("depth 0: got %q", got)
	}
	if got := g.Expand(2); got != "F[+F[+A]A]F[+A]A" {
		t.Fatalf("depth 2: got %q", got)
	}
	if g.Memoized() != 3 {
		t.Fatalf("memoized depths: got %d want 3", g.Memoized())
	}
	g.Expand(1)
	if g.Memoized() != 3 {
		t.Fatalf("shallower request must not grow the memo")
	}
}

func TestGrammarRejectsLongRuleKeys(t *testing.T) {
	if _, err := NewGrammar("A", map[string]string{"AB": "F"}); err == nil {
		t.Fatalf("expected multi-symbol rule key to fail")
	}
	if _, err := NewSpecies(config.SpeciesConfig{Name: "bad", Axiom: "FQ", SegmentLength: 1}); err == nil {
		t.Fatalf("expected unknown symbol to fail")
	}
}

func TestTurtleStartsFacingUp(t *testing.T) {
	tt := NewTurtle()
	if !tt.Heading.ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-9) {
		t.Fatalf("heading: got %v", tt.Heading)
	}
	tt.Move(2)
	if !tt.Position.ApproxEqualThreshold(mgl64.Vec3{0, 2, 0}, 1e-9) {
		t.Fatalf("position after move: got %v", tt.Position)
	}
	if tt.Moves != 1 {
		t.Fatalf("moves: got %d", tt.Moves)
	}
	if !tt.Transform.Col(3).Vec3().ApproxEqualThreshold(mgl64.Vec3{0, 2, 0}, 1e-9) {
		t.Fatalf("transform translation: got %v", tt.Transform.Col(3))
	}
}

func TestTurtleFrameStaysOrthonormal(t *testing.T) {
	tt := NewTurtle()
	tt.Yaw(33)
	tt.Pitch(-71)
	tt.Roll(12)
	tt.Yaw(180)
	for name, v := range map[string]mgl64.Vec3{"heading": tt.Heading, "left": tt.Left, "up": tt.Up} {
		if math.Abs(v.Len()-1) > 1e-9 {
			t.Fatalf("%s not unit length: %v", name, v.Len())
		}
	}
	if math.Abs(tt.Heading.Dot(tt.Left)) > 1e-9 || math.Abs(tt.Heading.Dot(tt.Up)) > 1e-9 || math.Abs(tt.Left.Dot(tt.Up)) > 1e-9 {
		t.Fatalf("frame lost orthogonality")
	}
}

func TestTurtlePushPopRestoresFrame(t *testing.T) {
	tt := NewTurtle()
	tt.Move(1)
	tt.Push()
	tt.Pitch(45)
	tt.Move(3)
	if !tt.Pop() {
		t.Fatalf("pop should succeed")
	}
	if !tt.Position.ApproxEqualThreshold(mgl64.Vec3{0, 1, 0}, 1e-9) || tt.Moves != 1 {
		t.Fatalf("frame not restored: %v moves=%d", tt.Position, tt.Moves)
	}
	if tt.Pop() {
		t.Fatalf("pop on empty stack should report false")
	}
}

func TestInterpretRecordsBranches(t *testing.T) {
	s, err := NewSpecies(config.SpeciesConfig{Name: "test", Axiom: "F", SegmentLength: 1, Angle: 90, Typing: "leaf", FoliageAfter: 100})
	if err != nil {
		t.Fatalf("new species: %v", err)
	}
	rng := rand.New(rand.NewSource(1))
	branches := s.Interpret("FfF[&F*]F", rng)
	if len(branches) != 4 {
		t.Fatalf("branches: got %d want 4", len(branches))
	}
	if branches[0].Step != 1 || branches[1].Step != 3 || !branches[1].Start.ApproxEqualThreshold(mgl64.Vec3{0, 2, 0}, 1e-9) {
		t.Fatalf("second branch should start after the silent move: %+v", branches[1])
	}
	if !branches[2].Leaf || branches[3].Leaf {
		t.Fatalf("only the branch before '*' is a leaf: %+v", branches)
	}
	// The bracket restores the frame, so the last branch continues straight up.
	if !branches[3].Start.ApproxEqualThreshold(mgl64.Vec3{0, 3, 0}, 1e-9) {
		t.Fatalf("last branch start: got %v", branches[3].Start)
	}
	if branches[2].End.Y() >= 4-1e-9 {
		t.Fatalf("pitched branch should leave the vertical axis: %v", branches[2].End)
	}
}

func TestGenerateCountsEveryF(t *testing.T) {
	for _, sc := range config.DefaultSpecies() {
		s, err := NewSpecies(sc)
		if err != nil {
			t.Fatalf("species %s: %v", sc.Name, err)
		}
		program := s.Grammar.Expand(s.Depth)
		want := strings.Count(program, "F")
		first := s.Generate(rand.New(rand.NewSource(7)))
		second := s.Generate(rand.New(rand.NewSource(8)))
		if len(first) != want || len(second) != want {
			t.Fatalf("species %s: got %d and %d branches want %d", sc.Name, len(first), len(second), want)
		}
	}
}

func TestPartForTyping(t *testing.T) {
	species := config.DefaultSpecies()
	conifer, err := NewSpecies(species[1])
	if err != nil {
		t.Fatalf("species: %v", err)
	}
	rng := rand.New(rand.NewSource(3))
	low := Branch{Start: mgl64.Vec3{0, 1, 0}}
	high := Branch{Start: mgl64.Vec3{0, 9, 0}}
	if conifer.PartFor(low, 0, rng) != PartTrunk || conifer.PartFor(high, 0, rng) != PartFoliage {
		t.Fatalf("height typing mismatch")
	}

	broadleaf, err := NewSpecies(species[0])
	if err != nil {
		t.Fatalf("species: %v", err)
	}
	if broadleaf.PartFor(Branch{Leaf: true}, 0, rng) != PartFoliage {
		t.Fatalf("leaf branch should be foliage")
	}
	if broadleaf.PartFor(Branch{}, 0, rng) != PartTrunk {
		t.Fatalf("early non-leaf branch should be trunk")
	}
	if broadleaf.PartFor(Branch{}, 100, rng) != PartFoliage {
		t.Fatalf("late branch should be foliage")
	}
}

func TestFoliageOrdinalCountsAcrossTrees(t *testing.T) {
	s, err := NewSpecies(config.SpeciesConfig{Name: "pole", Axiom: "FFFF", SegmentLength: 1, Typing: "leaf", FoliageAfter: 3})
	if err != nil {
		t.Fatalf("new species: %v", err)
	}
	rng := rand.New(rand.NewSource(5))
	tree := Tree{Species: s, Branches: s.Generate(rng)}
	if len(tree.Branches) != 4 {
		t.Fatalf("branches: got %d want 4", len(tree.Branches))
	}

	tests := []struct {
		name  string
		first int
		want  []Part
	}{
		{name: "first tree", first: 0, want: []Part{PartTrunk, PartTrunk, PartTrunk, PartFoliage}},
		{name: "second tree", first: 4, want: []Part{PartFoliage, PartFoliage, PartFoliage, PartFoliage}},
		{name: "straddling", first: 2, want: []Part{PartTrunk, PartFoliage, PartFoliage, PartFoliage}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			voxels := tree.Voxels(tt.first, rng)
			if len(voxels) != len(tt.want) {
				t.Fatalf("voxels: got %d want %d", len(voxels), len(tt.want))
			}
			for n, v := range voxels {
				if v.Part != tt.want[n] {
					t.Fatalf("voxel %d: got part %d want %d", n, v.Part, tt.want[n])
				}
			}
		})
	}
}

func testVegetation() config.VegetationConfig {
	cfg := config.Default().Vegetation
	return cfg
}

func cone(i, j, pi, pj int) float64 {
	d := math.Abs(float64(i-pi)) + math.Abs(float64(j-pj))
	return math.Max(0, 30-3*d)
}

func TestCandidatesFindHilltops(t *testing.T) {
	const size = 32
	// A tilted plane never has a maximum inside the scan window; two
	// steep cones on top of it do.
	heights := make([]float64, size*size)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			heights[size*i+j] = float64(i+j) + cone(i, j, 8, 8) + cone(i, j, 20, 24)
		}
	}

	p, err := NewPlacer(testVegetation())
	if err != nil {
		t.Fatalf("new placer: %v", err)
	}
	got := p.Candidates(heights, size)
	want := []int{size*8 + 8, size*20 + 24}
	if len(got) != len(want) {
		t.Fatalf("candidates: got %v want %v", got, want)
	}
	for n := range want {
		if got[n] != want[n] {
			t.Fatalf("candidate %d: got row %d col %d", n, got[n]/size, got[n]%size)
		}
	}
}

func TestCandidatesAcceptPlateaus(t *testing.T) {
	const size = 16
	heights := make([]float64, size*size)
	p, err := NewPlacer(testVegetation())
	if err != nil {
		t.Fatalf("new placer: %v", err)
	}
	got := p.Candidates(heights, size)
	if len(got) != 1 || got[0] != size*5+5 {
		t.Fatalf("flat ground: got %v, want only the first scanned column", got)
	}
}

func TestCandidatesSkipBorder(t *testing.T) {
	const size = 16
	heights := make([]float64, size*size)
	heights[size*2+2] = 50
	p, err := NewPlacer(testVegetation())
	if err != nil {
		t.Fatalf("new placer: %v", err)
	}
	for _, idx := range p.Candidates(heights, size) {
		r, c := idx/size, idx%size
		if r < 5 || c < 5 || r >= size-5 || c >= size-5 {
			t.Fatalf("candidate inside border: row %d col %d", r, c)
		}
		if localMaximum(heights, size, r, c, 5) == false {
			t.Fatalf("candidate is not a local maximum")
		}
	}
}

func TestPlantIsReproducibleForSeed(t *testing.T) {
	const size = 32
	heights := make([]float64, size*size)
	for i := range heights {
		heights[i] = float64((i*7)%5 + 3)
	}
	p, err := NewPlacer(testVegetation())
	if err != nil {
		t.Fatalf("new placer: %v", err)
	}
	a := p.Plant(heights, size, rand.New(rand.NewSource(42)))
	b := p.Plant(heights, size, rand.New(rand.NewSource(42)))
	if len(a) != 3 || len(b) != 3 {
		t.Fatalf("expected three trees, got %d and %d", len(a), len(b))
	}
	for n := range a {
		if a[n].Row != b[n].Row || a[n].Col != b[n].Col || a[n].Species != b[n].Species || len(a[n].Branches) != len(b[n].Branches) {
			t.Fatalf("tree %d differs between identical seeds", n)
		}
		voxels := a[n].Voxels(0, rand.New(rand.NewSource(1)))
		if len(voxels) == 0 || voxels[0].Offset != [3]int{0, 0, 0} {
			t.Fatalf("tree %d should start at its root column: %+v", n, voxels)
		}
		seen := map[[3]int]bool{}
		for _, v := range voxels {
			if seen[v.Offset] {
				t.Fatalf("duplicate voxel %v", v.Offset)
			}
			seen[v.Offset] = true
		}
	}
}
