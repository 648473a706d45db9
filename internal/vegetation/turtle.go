package vegetation

import (
	"github.com/go-gl/mathgl/mgl64"
)

// Frame is the complete turtle state. It is a value type, so pushing a
// frame onto the stack is a full copy. Transform maps turtle-local
// coordinates (left, up, heading) to world space.
type Frame struct {
	Position  mgl64.Vec3
	Heading   mgl64.Vec3
	Left      mgl64.Vec3
	Up        mgl64.Vec3
	Transform mgl64.Mat4
	Moves     int
}

// Turtle walks a symbol string. Heading, Left and Up stay orthonormal.
type Turtle struct {
	Frame
	stack []Frame
}

// NewTurtle starts at the origin facing +Y (straight up), with Left along
// -X and Up along +Z after the initial pitch.
func NewTurtle() *Turtle {
	t := &Turtle{Frame: Frame{
		Heading: mgl64.Vec3{0, 0, -1},
		Left:    mgl64.Vec3{-1, 0, 0},
		Up:      mgl64.Vec3{0, 1, 0},
	}}
	t.Pitch(-90)
	return t
}

// Move advances along the heading by step.
func (t *Turtle) Move(step float64) {
	delta := t.Heading.Mul(step)
	t.Position = t.Position.Add(delta)
	t.Moves++
	t.sync()
}

// Yaw turns about Up.
func (t *Turtle) Yaw(degrees float64) {
	q := t.rotate(degrees, t.Up)
	t.Heading = q.Rotate(t.Heading).Normalize()
	t.Left = q.Rotate(t.Left).Normalize()
	t.sync()
}

// Pitch turns about Left.
func (t *Turtle) Pitch(degrees float64) {
	q := t.rotate(degrees, t.Left)
	t.Heading = q.Rotate(t.Heading).Normalize()
	t.Up = q.Rotate(t.Up).Normalize()
	t.sync()
}

// Roll turns about Heading.
func (t *Turtle) Roll(degrees float64) {
	q := t.rotate(degrees, t.Heading)
	t.Left = q.Rotate(t.Left).Normalize()
	t.Up = q.Rotate(t.Up).Normalize()
	t.sync()
}

func (t *Turtle) rotate(degrees float64, axis mgl64.Vec3) mgl64.Quat {
	return mgl64.QuatRotate(mgl64.DegToRad(degrees), axis)
}

func (t *Turtle) sync() {
	t.Transform = mgl64.Mat4FromCols(t.Left.Vec4(0), t.Up.Vec4(0), t.Heading.Vec4(0), t.Position.Vec4(1))
}

// Push saves a copy of the current frame.
func (t *Turtle) Push() {
	t.stack = append(t.stack, t.Frame)
}

// Pop restores the most recently pushed frame. It reports false, leaving the
// turtle untouched, when the stack is empty.
func (t *Turtle) Pop() bool {
	if len(t.stack) == 0 {
		return false
	}
	t.Frame = t.stack[len(t.stack)-1]
	t.stack = t.stack[:len(t.stack)-1]
	return true
}

// Depth is the number of saved frames.
func (t *Turtle) Depth() int { return len(t.stack) }
