package physics

import (
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"voxelstream/internal/config"
)

// grid is a column source covering x, z in [lo, hi). Unlisted columns are
// one level tall.
type grid struct {
	lo, hi  int
	columns map[[2]int][]bool
}

func (g grid) SolidAt(x, z, level int) (bool, bool) {
	if x < g.lo || z < g.lo || x >= g.hi || z >= g.hi {
		return false, false
	}
	col, ok := g.columns[[2]int{x, z}]
	if !ok {
		col = []bool{true}
	}
	if level < 0 || level >= len(col) {
		return false, true
	}
	return col[level], true
}

func solidColumn(height int) []bool {
	col := make([]bool, height)
	for n := range col {
		col[n] = true
	}
	return col
}

func testPhysics() config.PhysicsConfig {
	return config.Default().Physics
}

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFallLandsOnColumnTop(t *testing.T) {
	cfg := testPhysics()
	r := NewResolver(cfg)
	r.Reset(epoch)

	g := grid{lo: -8, hi: 8, columns: map[[2]int][]bool{{0, 0}: solidColumn(5)}}
	top := 4.5
	obs := &Observer{Position: mgl64.Vec3{0, top + 1 + cfg.MaxHeightToCheck, 0}}

	contact := r.Step(obs, mgl64.Vec3{}, []Column{g}, epoch.Add(time.Second))
	if contact != ContactGround {
		t.Fatalf("contact: got %s want ground", contact)
	}
	if want := top + cfg.MaxHeightToCheck; math.Abs(obs.Position.Y()-want) > 1e-9 {
		t.Fatalf("rest height: got %v want %v", obs.Position.Y(), want)
	}
	if !obs.Grounded || obs.VerticalSpeed != 0 {
		t.Fatalf("observer should be grounded at rest: %+v", obs)
	}
}

func TestGroundedObserverStaysPut(t *testing.T) {
	cfg := testPhysics()
	r := NewResolver(cfg)
	r.Reset(epoch)
	g := grid{lo: -8, hi: 8}
	rest := 0.5 + cfg.MaxHeightToCheck
	obs := &Observer{Position: mgl64.Vec3{1, rest, 1}, Grounded: true}
	now := epoch
	for n := 0; n < 100; n++ {
		now = now.Add(16 * time.Millisecond)
		r.Step(obs, mgl64.Vec3{}, []Column{g}, now)
		if !obs.Grounded || math.Abs(obs.Position.Y()-rest) > 1e-9 {
			t.Fatalf("tick %d: drifted to %v grounded=%v", n, obs.Position.Y(), obs.Grounded)
		}
	}
}

func TestFreeFallWithoutSources(t *testing.T) {
	r := NewResolver(testPhysics())
	r.Reset(epoch)
	obs := &Observer{Position: mgl64.Vec3{0, 50, 0}, Grounded: true}
	contact := r.Step(obs, mgl64.Vec3{}, []Column{nil}, epoch.Add(time.Second))
	if contact != ContactNone || obs.Grounded {
		t.Fatalf("expected free fall, got %s grounded=%v", contact, obs.Grounded)
	}
	if math.Abs(obs.Position.Y()-(50-9.8)) > 1e-9 {
		t.Fatalf("height after 1s: got %v", obs.Position.Y())
	}
}

func TestLateralMoveIntoColumnSnaps(t *testing.T) {
	cfg := testPhysics()
	r := NewResolver(cfg)
	g := grid{lo: 0, hi: 32, columns: map[[2]int][]bool{{11, 5}: solidColumn(6)}}
	sources := []Column{g}
	y := 0.5 + cfg.MaxHeightToCheck

	tests := []struct {
		name     string
		from, to mgl64.Vec3
		want     mgl64.Vec3
	}{
		{
			name: "into column",
			from: mgl64.Vec3{10, y, 5},
			to:   mgl64.Vec3{10.35, y, 5},
			want: mgl64.Vec3{10, y, 5},
		},
		{
			name: "from off grid",
			from: mgl64.Vec3{10.2, y, 5},
			to:   mgl64.Vec3{10.45, y, 5},
			want: mgl64.Vec3{10, y, 5},
		},
		{
			name: "slide along wall",
			from: mgl64.Vec3{10, y, 5},
			to:   mgl64.Vec3{10.3, y, 5.3},
			want: mgl64.Vec3{10, y, 5.3},
		},
		{
			name: "open ground",
			from: mgl64.Vec3{4, y, 4},
			to:   mgl64.Vec3{4.35, y, 4.2},
			want: mgl64.Vec3{4.35, y, 4.2},
		},
		{
			name: "beyond radius",
			from: mgl64.Vec3{9.5, y, 5},
			to:   mgl64.Vec3{9.9, y, 5},
			want: mgl64.Vec3{9.9, y, 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.ResolveLateral(tt.from, tt.to, sources)
			if !got.ApproxEqualThreshold(tt.want, 1e-9) {
				t.Fatalf("got %v want %v", got, tt.want)
			}
		})
	}
}

func TestHeadBandDecidesBlocking(t *testing.T) {
	cfg := testPhysics()
	r := NewResolver(cfg)
	// Two levels tall: inside the head band at floor height, below it once
	// the observer stands three levels higher.
	g := grid{lo: 0, hi: 32, columns: map[[2]int][]bool{{11, 5}: solidColumn(2)}}
	floor := mgl64.Vec3{10.35, 0.5 + cfg.MaxHeightToCheck, 5}
	if !r.LateralBlocked(floor, []Column{g}) {
		t.Fatalf("a step at head band should block")
	}
	raised := mgl64.Vec3{10.35, 3.5 + cfg.MaxHeightToCheck, 5}
	if r.LateralBlocked(raised, []Column{g}) {
		t.Fatalf("a column below the head band should not block")
	}
}

func TestJumpOnlyWhenGrounded(t *testing.T) {
	cfg := testPhysics()
	obs := &Observer{}
	if obs.Jump(cfg.JumpSpeed) {
		t.Fatalf("airborne observer jumped")
	}
	obs.Grounded = true
	if !obs.Jump(cfg.JumpSpeed) || obs.VerticalSpeed != cfg.JumpSpeed || obs.Grounded {
		t.Fatalf("grounded jump: %+v", obs)
	}
	if obs.Jump(cfg.JumpSpeed) {
		t.Fatalf("double jump allowed")
	}
}

func TestJumpRisesThenHitsCeiling(t *testing.T) {
	cfg := testPhysics()
	r := NewResolver(cfg)
	r.Reset(epoch)
	// An overhang: empty at levels 1..3, solid at 4.
	g := grid{lo: -4, hi: 4, columns: map[[2]int][]bool{{0, 0}: {true, false, false, false, true}}}
	obs := &Observer{Position: mgl64.Vec3{0, 0.5 + cfg.MaxHeightToCheck, 0}, Grounded: true}
	obs.Jump(cfg.JumpSpeed)

	contact := r.Step(obs, mgl64.Vec3{}, []Column{g}, epoch.Add(200*time.Millisecond))
	if contact != ContactCeiling {
		t.Fatalf("contact: got %s want ceiling (y=%v)", contact, obs.Position.Y())
	}
	if obs.Position.Y() != 3.5 || obs.VerticalSpeed != 0 {
		t.Fatalf("head should stop under level 4: %+v", obs)
	}
}

func TestWalkUsesConfiguredSpeed(t *testing.T) {
	cfg := testPhysics()
	r := NewResolver(cfg)
	r.Reset(epoch)
	g := grid{lo: -64, hi: 64}
	obs := &Observer{Position: mgl64.Vec3{0, 0.5 + cfg.MaxHeightToCheck, 0}, Grounded: true}
	r.Step(obs, mgl64.Vec3{3, 7, 4}, []Column{g}, epoch.Add(250*time.Millisecond))
	want := mgl64.Vec3{0.6, 0, 0.8}.Mul(cfg.WalkSpeed * 0.25)
	if math.Abs(obs.Position.X()-want.X()) > 1e-9 || math.Abs(obs.Position.Z()-want.Z()) > 1e-9 {
		t.Fatalf("walk: got %v want %v", obs.Position, want)
	}
}
