package physics

import "github.com/go-gl/mathgl/mgl64"

// Observer is the body the world streams around. Position is the eye; the
// feet sit maxHeightToCheck below it.
type Observer struct {
	Position      mgl64.Vec3
	VerticalSpeed float64
	Grounded      bool
}

// Jump gives a grounded observer an upward impulse. It reports whether the
// jump happened.
func (o *Observer) Jump(speed float64) bool {
	if !o.Grounded {
		return false
	}
	o.VerticalSpeed = speed
	o.Grounded = false
	return true
}

// Column answers occupancy queries in integer world coordinates. ok is false
// when the column is not owned by the source.
type Column interface {
	SolidAt(x, z, level int) (solid, ok bool)
}

// Contact is the outcome of vertical resolution.
type Contact int

const (
	ContactNone Contact = iota
	ContactGround
	ContactCeiling
)

func (c Contact) String() string {
	switch c {
	case ContactGround:
		return "ground"
	case ContactCeiling:
		return "ceiling"
	default:
		return "none"
	}
}
