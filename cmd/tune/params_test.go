package main

import (
	"math"
	"testing"

	"github.com/pthm-cable/sphgrid/config"
	"github.com/pthm-cable/sphgrid/systems"
)

func TestParamVectorRoundTrip(t *testing.T) {
	pv := NewParamVector()
	def := pv.DefaultVector()
	back := pv.Denormalize(pv.Normalize(def))
	for i := range def {
		if math.Abs(back[i]-def[i]) > 1e-9 {
			t.Errorf("%s: %v -> %v", pv.Specs[i].Name, def[i], back[i])
		}
	}
}

func TestApplyToConfig(t *testing.T) {
	pv := NewParamVector()
	tests := []struct {
		name        string
		values      []float64
		width       int
		wantScale   float64
		wantBuckets int
		wantJitter  bool
	}{
		{"defaults", []float64{2, 20, 1}, 1024, 2, 1 << 20, true},
		{"rounded buckets", []float64{1.5, 11.6, 0.2}, 1024, 1.5, 1 << 12, false},
		{"clamped to range", []float64{9, 30, 0.7}, 1024, 4, 1 << 20, true},
		{"capped by group width", []float64{2, 16, 1}, 64, 2, 64 * 64, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Solver.ThreadsPerGroup = tt.width
			pv.ApplyToConfig(cfg, tt.values)

			if cfg.Hash.CellScale != tt.wantScale {
				t.Errorf("cell scale = %v, want %v", cfg.Hash.CellScale, tt.wantScale)
			}
			if cfg.Solver.NumBuckets != tt.wantBuckets {
				t.Errorf("buckets = %d, want %d", cfg.Solver.NumBuckets, tt.wantBuckets)
			}
			if cfg.Hash.Jitter != tt.wantJitter {
				t.Errorf("jitter = %v, want %v", cfg.Hash.Jitter, tt.wantJitter)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("applied config invalid: %v", err)
			}
			want := float32(tt.wantScale * cfg.Fluid.Radius)
			if cfg.Derived.CellSize32 != want {
				t.Errorf("derived cell size = %v, want %v", cfg.Derived.CellSize32, want)
			}
		})
	}
}

func TestExtractFromConfig(t *testing.T) {
	pv := NewParamVector()
	got := pv.ExtractFromConfig(config.Default())
	want := pv.DefaultVector()
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("%s = %v, want %v", pv.Specs[i].Name, got[i], want[i])
		}
	}
}

func TestComputeFitness(t *testing.T) {
	perfect := computeFitness(systems.RecallStats{Recall: 1, AcceptRate: 0.5})
	lossy := computeFitness(systems.RecallStats{Recall: 0.8, AcceptRate: 0.5})
	wasteful := computeFitness(systems.RecallStats{Recall: 1, AcceptRate: 0.1})

	if perfect != 2 {
		t.Errorf("perfect = %v, want 2", perfect)
	}
	if lossy <= perfect || wasteful <= perfect {
		t.Errorf("fitness ordering wrong: perfect=%v lossy=%v wasteful=%v", perfect, lossy, wasteful)
	}
	if got := computeFitness(systems.RecallStats{}); got != worstFitness {
		t.Errorf("empty stats = %v, want worst", got)
	}
}

func TestEvaluateSmallRun(t *testing.T) {
	cfg := config.Default()
	cfg.Solver.NumParticles = 64
	cfg.Solver.NumBuckets = 16
	cfg.Solver.ThreadsPerGroup = 4
	cfg.Recompute()

	pv := NewParamVector()
	fe := NewFitnessEvaluator(pv, 2, []int64{1, 2}, cfg)
	f := fe.Evaluate([]float64{2, 4, 1})
	if f <= 0 || f >= worstFitness {
		t.Errorf("fitness = %v", f)
	}
	if r := fe.LastRecall(); r <= 0 || r > 1 {
		t.Errorf("recall = %v", r)
	}
}
