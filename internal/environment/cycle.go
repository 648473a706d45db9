// Package environment computes the lighting state handed to renderers.
package environment

import (
	"math"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"voxelstream/internal/config"
)

const orbitRadius = 2000

// Cycle is a day/night clock. Its speed multiplies wall-clock time and can
// be changed while running without a jump in the time of day.
type Cycle struct {
	mu        sync.Mutex
	dayLength time.Duration
	base      time.Time
	baseFrac  float64
	speed     float64
}

type State struct {
	TimeOfDay         float64    `json:"timeOfDay"`
	Progress          float64    `json:"progress"`
	Phase             string     `json:"phase"`
	SunAngle          float64    `json:"sunAngle"`
	SunPosition       mgl64.Vec3 `json:"sunPosition"`
	SunLightIntensity float64    `json:"sunLightIntensity"`
	AmbientIntensity  float64    `json:"ambientIntensity"`
	Speed             float64    `json:"speed"`
}

// NewCycle starts the clock at start with the configured hour.
func NewCycle(cfg config.EnvironmentConfig, start time.Time) *Cycle {
	dayLength := cfg.DayLength.Duration()
	if dayLength <= 0 {
		dayLength = 20 * time.Minute
	}
	frac := math.Mod(cfg.InitialHour/24, 1)
	if frac < 0 {
		frac = 0
	}
	return &Cycle{
		dayLength: dayLength,
		base:      start,
		baseFrac:  frac,
		speed:     cfg.CycleSpeed,
	}
}

func (c *Cycle) progressLocked(now time.Time) float64 {
	elapsed := now.Sub(c.base)
	if elapsed < 0 {
		elapsed = 0
	}
	return math.Mod(c.baseFrac+c.speed*float64(elapsed)/float64(c.dayLength), 1)
}

// SetSpeed changes the speed from now on.
func (c *Cycle) SetSpeed(now time.Time, speed float64) {
	if speed < 0 {
		speed = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.baseFrac = c.progressLocked(now)
	c.base = now
	c.speed = speed
}

func (c *Cycle) State(now time.Time) State {
	if c == nil {
		return State{}
	}
	c.mu.Lock()
	progress := c.progressLocked(now)
	speed := c.speed
	c.mu.Unlock()

	hour := progress * 24
	// Sunrise at 06:00 puts the sun on the horizon, noon at the zenith.
	orbital := math.Mod(progress+0.75, 1) * 2 * math.Pi
	elevation := math.Max(0, math.Sin(orbital))
	return State{
		TimeOfDay:         hour,
		Progress:          progress,
		Phase:             Phase(hour),
		SunAngle:          progress * 2 * math.Pi,
		SunPosition:       mgl64.Vec3{math.Cos(orbital) * orbitRadius, math.Sin(orbital) * orbitRadius, 0},
		SunLightIntensity: 0.15 + 0.85*elevation,
		AmbientIntensity:  0.2 + 0.6*elevation,
		Speed:             speed,
	}
}

// Phase names the part of the day an hour falls in.
func Phase(hour float64) string {
	switch {
	case hour >= 5 && hour < 7:
		return "dawn"
	case hour >= 7 && hour < 18:
		return "day"
	case hour >= 18 && hour < 21:
		return "dusk"
	default:
		return "night"
	}
}
