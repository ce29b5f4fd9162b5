package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/sphgrid/components"
)

func TestCollectorWindowSteps(t *testing.T) {
	tests := []struct {
		window, dt float64
		want       int64
	}{
		{1.0, 0.01, 100},
		{0.5, 0.004, 125},
		{0.001, 0.01, 1},
	}
	for _, tt := range tests {
		c := NewCollector(tt.window, tt.dt, 10)
		if got := c.WindowDurationSteps(); got != tt.want {
			t.Errorf("NewCollector(%v, %v) steps = %d, want %d", tt.window, tt.dt, got, tt.want)
		}
	}
}

func TestCollectorFlush(t *testing.T) {
	c := NewCollector(0.1, 0.01, 4)
	if c.ShouldFlush(9) {
		t.Error("flush before window end")
	}
	if !c.ShouldFlush(10) {
		t.Error("no flush at window end")
	}

	c.Record(NewMoveEvent(2, 3))
	c.Record(NewMoveEvent(4, 2))
	c.Record(NewModeSwitchEvent(5, components.ModeWave))
	c.Record(NewClampEvent(6, 8))
	c.RecordQueries(200, 50)

	stats := c.Flush(10, FluidSample{
		Speeds:    []float64{1, 2, 3, 4},
		Densities: []float64{10, 10, 10, 10},
		Mass:      2,
		Mode:      components.ModeWave.String(),
	})

	if stats.MoveCommands != 2 || stats.MovedParticles != 5 {
		t.Errorf("moves = %d/%d, want 2/5", stats.MoveCommands, stats.MovedParticles)
	}
	if stats.ModeSwitches != 1 || stats.ClampedParticles != 8 {
		t.Errorf("switches/clamped = %d/%d", stats.ModeSwitches, stats.ClampedParticles)
	}
	// 8 clamps over 10 steps of 4 particles
	if math.Abs(stats.ClampRate-0.2) > 1e-9 {
		t.Errorf("clamp rate = %v, want 0.2", stats.ClampRate)
	}
	if math.Abs(stats.QueryAcceptRate-0.25) > 1e-9 {
		t.Errorf("accept rate = %v, want 0.25", stats.QueryAcceptRate)
	}
	// ½·2·(1+4+9+16)
	if math.Abs(stats.KineticEnergy-30) > 1e-9 {
		t.Errorf("kinetic energy = %v, want 30", stats.KineticEnergy)
	}
	if stats.DensityMean != 10 || stats.DensityStd != 0 {
		t.Errorf("density = %v ± %v", stats.DensityMean, stats.DensityStd)
	}
	if math.Abs(stats.SimTimeSec-0.1) > 1e-9 {
		t.Errorf("sim time = %v", stats.SimTimeSec)
	}

	next := c.Flush(20, FluidSample{})
	if next.WindowStartStep != 10 || next.MoveCommands != 0 || next.ClampRate != 0 || next.QueryAcceptRate != 0 {
		t.Errorf("counters not reset: %+v", next)
	}
}
