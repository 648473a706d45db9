package environment

import (
	"testing"
	"time"

	"voxelstream/internal/config"
)

var start = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func testEnvironment(dayLength time.Duration, hour, speed float64) config.EnvironmentConfig {
	return config.EnvironmentConfig{DayLength: config.Duration(dayLength), InitialHour: hour, CycleSpeed: speed}
}

func TestCycleProgress(t *testing.T) {
	cycle := NewCycle(testEnvironment(24*time.Minute, 6, 1), start)
	state := cycle.State(start)
	if state.TimeOfDay < 5.9 || state.TimeOfDay > 6.1 {
		t.Fatalf("initial timeOfDay = %.2f, want around 6", state.TimeOfDay)
	}
	midday := cycle.State(start.Add(6 * time.Minute))
	if midday.TimeOfDay < 11.9 || midday.TimeOfDay > 12.1 {
		t.Fatalf("midday timeOfDay = %.2f, want around 12", midday.TimeOfDay)
	}
	if midday.SunPosition.Y() <= 0 || midday.Phase != "day" {
		t.Fatalf("sun should be up at midday: %+v", midday)
	}
	night := cycle.State(start.Add(20 * time.Minute))
	if night.SunPosition.Y() >= 0 || night.Phase != "night" {
		t.Fatalf("sun should be down at night: %+v", night)
	}
	if night.AmbientIntensity >= midday.AmbientIntensity {
		t.Fatalf("ambient should be lower at night: night %.2f midday %.2f", night.AmbientIntensity, midday.AmbientIntensity)
	}
}

func TestCycleSpeedScalesTime(t *testing.T) {
	fast := NewCycle(testEnvironment(24*time.Minute, 0, 4), start)
	if got := fast.State(start.Add(time.Minute)).TimeOfDay; got < 3.9 || got > 4.1 {
		t.Fatalf("4× speed after 1 min: got %.2f want 4", got)
	}
	frozen := NewCycle(testEnvironment(24*time.Minute, 9, 0), start)
	if got := frozen.State(start.Add(time.Hour)).TimeOfDay; got < 8.99 || got > 9.01 {
		t.Fatalf("zero speed should freeze the clock, got %.2f", got)
	}
}

func TestSetSpeedIsContinuous(t *testing.T) {
	cycle := NewCycle(testEnvironment(24*time.Minute, 0, 1), start)
	switchAt := start.Add(3 * time.Minute)
	before := cycle.State(switchAt).TimeOfDay
	cycle.SetSpeed(switchAt, 2)
	if after := cycle.State(switchAt).TimeOfDay; after < before-1e-9 || after > before+1e-9 {
		t.Fatalf("speed change jumped the clock: %.4f -> %.4f", before, after)
	}
	if got := cycle.State(switchAt.Add(time.Minute)).TimeOfDay; got < 4.9 || got > 5.1 {
		t.Fatalf("after doubling: got %.2f want 5", got)
	}
}

func TestPhaseBoundaries(t *testing.T) {
	tests := []struct {
		hour float64
		want string
	}{
		{4.99, "night"},
		{5, "dawn"},
		{7, "day"},
		{18, "dusk"},
		{21, "night"},
	}
	for _, tt := range tests {
		if got := Phase(tt.hour); got != tt.want {
			t.Fatalf("phase(%v): got %s want %s", tt.hour, got, tt.want)
		}
	}
}
