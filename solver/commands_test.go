package solver

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/pthm-cable/sphgrid/components"
)

// snapshot copies every particle in original order.
func snapshot(s *Solver) []components.Particle {
	out := make([]components.Particle, s.NumParticles())
	for i := range out {
		out[i] = s.Particle(i)
	}
	return out
}

// drain applies queued commands the way the first stage of Step does, without
// running the rest of the pipeline.
func drain(s *Solver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyCommands()
}

func TestMoveParticlesTouchesOnlyRange(t *testing.T) {
	s := newTestSolver(t, smallConfig(), Options{})
	pos := mgl32.Vec3{0, 5, 0}
	vel := mgl32.Vec3{0, -70, 0}

	before := snapshot(s)
	if err := s.MoveParticles(0, 2, pos, vel); err != nil {
		t.Fatal(err)
	}

	// Queued only; nothing moves until the commands stage.
	if after := snapshot(s); after[0] != before[0] || after[1] != before[1] {
		t.Fatal("particles moved before the command was applied")
	}

	drain(s)
	after := snapshot(s)
	for i := range after {
		switch i {
		case 0, 1:
			if after[i].Pos != pos || after[i].Vel != vel {
				t.Errorf("particle %d = %+v, want pos %v vel %v", i, after[i], pos, vel)
			}
		default:
			if after[i] != before[i] {
				t.Errorf("particle %d changed: %+v -> %+v", i, before[i], after[i])
			}
		}
	}
}

func TestMoveParticlesWraps(t *testing.T) {
	s := newTestSolver(t, smallConfig(), Options{})
	n := s.NumParticles()
	pos := mgl32.Vec3{1, 2, 3}

	before := snapshot(s)
	if err := s.MoveParticles(n-2, 4, pos, mgl32.Vec3{}); err != nil {
		t.Fatal(err)
	}
	drain(s)
	after := snapshot(s)

	moved := map[int]bool{n - 2: true, n - 1: true, 0: true, 1: true}
	for i := range after {
		if moved[i] {
			if after[i].Pos != pos {
				t.Errorf("particle %d not moved", i)
			}
		} else if after[i] != before[i] {
			t.Errorf("particle %d changed", i)
		}
	}
}

func TestMoveParticlesValidation(t *testing.T) {
	s := newTestSolver(t, smallConfig(), Options{})
	n := s.NumParticles()

	tests := []struct {
		name         string
		begin, count int
		wantErr      bool
	}{
		{"empty", 0, 0, false},
		{"all", 0, n, false},
		{"negative begin wraps", -1, 1, false},
		{"begin past end wraps", n + 3, 2, false},
		{"negative count", 0, -1, true},
		{"too many", 0, n + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.MoveParticles(tt.begin, tt.count, mgl32.Vec3{}, mgl32.Vec3{})
			if tt.wantErr {
				if !errors.Is(err, ErrMoveCount) {
					t.Errorf("error = %v, want ErrMoveCount", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestNegativeBeginWrapsToEnd(t *testing.T) {
	s := newTestSolver(t, smallConfig(), Options{})
	n := s.NumParticles()
	pos := mgl32.Vec3{4, 4, 4}

	if err := s.MoveParticles(-1, 1, pos, mgl32.Vec3{}); err != nil {
		t.Fatal(err)
	}
	drain(s)
	if got := s.Particle(n - 1).Pos; got != pos {
		t.Errorf("particle %d = %v, want %v", n-1, got, pos)
	}
}

func TestCommandsApplyInOrder(t *testing.T) {
	s := newTestSolver(t, smallConfig(), Options{})

	first := mgl32.Vec3{1, 1, 1}
	second := mgl32.Vec3{2, 2, 2}
	s.MoveParticles(5, 1, first, mgl32.Vec3{})
	s.MoveParticles(5, 1, second, mgl32.Vec3{})
	s.SetBoundaryMode(components.ModeGround)
	s.SetBoundaryMode(components.ModeWave)
	drain(s)

	if got := s.Particle(5).Pos; got != second {
		t.Errorf("particle 5 = %v, want last command %v", got, second)
	}
	if s.Mode() != components.ModeWave {
		t.Errorf("mode = %v, want wave", s.Mode())
	}
}

func TestMovedParticleIsHashedInSameStep(t *testing.T) {
	s := newTestSolver(t, smallConfig(), Options{})
	const i = 7
	pos := mgl32.Vec3{1.5, 6, -2.5}
	if err := s.MoveParticles(i, 1, pos, mgl32.Vec3{0, -70, 0}); err != nil {
		t.Fatal(err)
	}
	s.Step()

	idx := s.index
	h := idx.Hasher.Hash(pos, idx.Jitter())
	if got := idx.Counter.Hashes[i]; got != h {
		t.Fatalf("bucket of particle %d = %d, want %d", i, got, h)
	}

	begin, end := idx.BucketRange(h)
	slot := -1
	for sl := begin; sl < end; sl++ {
		if idx.Inverse[sl] == i {
			slot = sl
		}
	}
	if slot < 0 {
		t.Fatalf("particle %d not in bucket %d range [%d, %d)", i, h, begin, end)
	}
	if got := idx.BuiltPosition(slot); got != pos {
		t.Errorf("hashed position = %v, want %v", got, pos)
	}
	nb, _ := idx.QuerySlotInto(nil, slot, s.cfg.Derived.RadiusSq32)
	found := false
	for _, m := range nb {
		if m.Slot == slot {
			found = true
		}
	}
	if !found {
		t.Error("moved particle not returned by its own neighbor query")
	}
}
