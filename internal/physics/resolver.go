package physics

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"voxelstream/internal/config"
)

const epsilon = 1e-9

// headroom is how many levels below the head a lateral move must clear.
const headroom = 2

// Resolver moves an observer through voxel occupancy. Voxel (x, level, z)
// fills the unit cube centered on those integer coordinates, so a column
// whose topmost solid level is L has its walking surface at L+0.5.
//
// The resolver holds two clocks: the last step, which sets the integration
// interval, and the last vertical contact, from which gravity accumulates.
type Resolver struct {
	gravity   float64
	jumpSpeed float64
	radius    float64
	eyeHeight float64
	walkSpeed float64

	lastStep    time.Time
	lastContact time.Time
}

func NewResolver(cfg config.PhysicsConfig) *Resolver {
	return &Resolver{
		gravity:   cfg.Gravity,
		jumpSpeed: cfg.JumpSpeed,
		radius:    cfg.Radius,
		eyeHeight: cfg.MaxHeightToCheck,
		walkSpeed: cfg.WalkSpeed,
	}
}

// JumpSpeed is the configured jump impulse.
func (r *Resolver) JumpSpeed() float64 { return r.jumpSpeed }

// EyeHeight is the distance from the feet to Observer.Position.
func (r *Resolver) EyeHeight() float64 { return r.eyeHeight }

// Reset restarts both clocks at now.
func (r *Resolver) Reset(now time.Time) {
	r.lastStep = now
	r.lastContact = now
}

// Step advances obs to now: walk is the requested horizontal direction
// (normalized here, y ignored), then gravity and any jump impulse are
// integrated. Sources that do not own a queried column are skipped.
func (r *Resolver) Step(obs *Observer, walk mgl64.Vec3, sources []Column, now time.Time) Contact {
	if r.lastStep.IsZero() {
		r.Reset(now)
	}
	dt := now.Sub(r.lastStep).Seconds()
	if dt < 0 {
		dt = 0
	}
	r.lastStep = now

	flat := mgl64.Vec3{walk.X(), 0, walk.Z()}
	if l := flat.Len(); l > epsilon && dt > 0 {
		delta := flat.Mul(r.walkSpeed * dt / l)
		obs.Position = r.ResolveLateral(obs.Position, obs.Position.Add(delta), sources)
	}

	vy := obs.VerticalSpeed + r.gravity*now.Sub(r.lastContact).Seconds()
	return r.ResolveVertical(obs, vy*dt, sources, now)
}

// ResolveLateral returns where a move from current toward proposed ends.
// If the full move is blocked, each axis is retried alone; blocked axes snap
// to the nearest whole coordinate and free ones advance.
func (r *Resolver) ResolveLateral(current, proposed mgl64.Vec3, sources []Column) mgl64.Vec3 {
	if !r.LateralBlocked(proposed, sources) {
		return proposed
	}
	out := current
	alongX := mgl64.Vec3{proposed.X(), current.Y(), current.Z()}
	alongZ := mgl64.Vec3{current.X(), current.Y(), proposed.Z()}
	blockedX := proposed.X() != current.X() && r.LateralBlocked(alongX, sources)
	blockedZ := proposed.Z() != current.Z() && r.LateralBlocked(alongZ, sources)
	if !blockedX && !blockedZ {
		blockedX, blockedZ = true, true
	}
	if blockedX {
		out[0] = math.Round(current.X())
	} else {
		out[0] = proposed.X()
	}
	if blockedZ {
		out[2] = math.Round(current.Z())
	} else {
		out[2] = proposed.Z()
	}
	return out
}

// LateralBlocked reports whether a body at pos overlaps a solid voxel at or
// up to two levels below head height. The body is tested against the faces
// and corners of its cell: a neighbor column counts only when the shared face
// or corner is within radius of pos.
func (r *Resolver) LateralBlocked(pos mgl64.Vec3, sources []Column) bool {
	cx, cz := math.Round(pos.X()), math.Round(pos.Z())
	head := int(math.Round(pos.Y()))
	for dx := -1; dx <= 1; dx++ {
		for dz := -1; dz <= 1; dz++ {
			px, pz := pos.X(), pos.Z()
			if dx != 0 {
				px = cx + 0.5*float64(dx)
			}
			if dz != 0 {
				pz = cz + 0.5*float64(dz)
			}
			if math.Hypot(px-pos.X(), pz-pos.Z()) >= r.radius {
				continue
			}
			x, z := int(cx)+dx, int(cz)+dz
			for k := 0; k <= headroom; k++ {
				if solidIn(sources, x, z, head-k) {
					return true
				}
			}
		}
	}
	return false
}

// ResolveVertical moves obs by dy. The whole travel is swept so a fast fall
// cannot skip a thin floor. Landing snaps the feet onto the surface, zeroes
// the speed and marks the observer grounded; hitting a ceiling stops the
// rise. Either contact restarts the gravity clock.
func (r *Resolver) ResolveVertical(obs *Observer, dy float64, sources []Column, now time.Time) Contact {
	x, z := int(math.Round(obs.Position.X())), int(math.Round(obs.Position.Z()))

	if dy <= 0 {
		feet := obs.Position.Y() - r.eyeHeight
		if level, ok := highestSolid(sources, x, z, feet, feet+dy); ok {
			obs.Position[1] = float64(level) + 0.5 + r.eyeHeight
			obs.VerticalSpeed = 0
			obs.Grounded = true
			r.lastContact = now
			return ContactGround
		}
	} else {
		head := obs.Position.Y()
		if level, ok := lowestSolid(sources, x, z, head, head+dy); ok {
			obs.Position[1] = float64(level) - 0.5
			obs.VerticalSpeed = 0
			obs.Grounded = false
			r.lastContact = now
			return ContactCeiling
		}
	}

	obs.Position[1] += dy
	obs.Grounded = false
	return ContactNone
}

// highestSolid finds the highest level whose top face lies in [to, from].
func highestSolid(sources []Column, x, z int, from, to float64) (int, bool) {
	hi := int(math.Floor(from - 0.5 + epsilon))
	lo := int(math.Ceil(to - 0.5 - epsilon))
	if lo < 0 {
		lo = 0
	}
	for level := hi; level >= lo; level-- {
		if solidIn(sources, x, z, level) {
			return level, true
		}
	}
	return 0, false
}

// lowestSolid finds the lowest level whose bottom face lies in [from, to].
func lowestSolid(sources []Column, x, z int, from, to float64) (int, bool) {
	lo := int(math.Ceil(from + 0.5 - epsilon))
	hi := int(math.Floor(to + 0.5 + epsilon))
	if lo < 0 {
		lo = 0
	}
	for level := lo; level <= hi; level++ {
		if solidIn(sources, x, z, level) {
			return level, true
		}
	}
	return 0, false
}

func solidIn(sources []Column, x, z, level int) bool {
	if level < 0 {
		return false
	}
	for _, src := range sources {
		if src == nil {
			continue
		}
		if solid, ok := src.SolidAt(x, z, level); ok {
			return solid
		}
	}
	return false
}
