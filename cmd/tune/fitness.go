package main

import (
	"math"
	"sync"

	"github.com/pthm-cable/sphgrid/config"
	"github.com/pthm-cable/sphgrid/solver"
	"github.com/pthm-cable/sphgrid/systems"
)

// Fitness weights. A missed neighbor costs more than a wasted bucket visit.
const (
	missWeight = 10.0
	costWeight = 1.0

	// Returned when a run cannot be scored at all
	worstFitness = 1e6
)

// FitnessEvaluator runs short headless solves and scores the hash grid.
type FitnessEvaluator struct {
	params     *ParamVector
	steps      int
	seeds      []int64
	baseConfig *config.Config

	mu         sync.Mutex
	lastRecall float64 // mean recall from the most recent Evaluate call
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, steps int, seeds []int64, baseCfg *config.Config) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:     params,
		steps:      steps,
		seeds:      seeds,
		baseConfig: baseCfg,
	}
}

// LastRecall returns the mean recall from the most recent evaluation.
func (fe *FitnessEvaluator) LastRecall() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.lastRecall
}

// Evaluate computes fitness for a parameter vector (lower = better). All
// seeds run in parallel and the fitness is their mean.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]systems.RecallStats, len(fe.seeds))
	errs := make([]error, len(fe.seeds))
	var wg sync.WaitGroup

	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, s int64) {
			defer wg.Done()
			results[idx], errs[idx] = fe.runSolver(x, s)
		}(i, seed)
	}
	wg.Wait()

	var totalFitness, totalRecall float64
	for i, r := range results {
		if errs[i] != nil {
			totalFitness += worstFitness
			continue
		}
		totalFitness += computeFitness(r)
		totalRecall += r.Recall
	}

	n := float64(len(fe.seeds))
	fe.mu.Lock()
	fe.lastRecall = totalRecall / n
	fe.mu.Unlock()

	return totalFitness / n
}

// runSolver steps a fresh solver and measures recall on its final index.
func (fe *FitnessEvaluator) runSolver(x []float64, seed int64) (systems.RecallStats, error) {
	cfg := fe.baseConfig.Clone()
	cfg.Solver.Seed = seed
	fe.params.ApplyToConfig(cfg, x)

	s, err := solver.New(cfg)
	if err != nil {
		return systems.RecallStats{}, err
	}
	defer s.Close()

	s.Run(fe.steps)
	return s.MeasureRecall(), nil
}

// computeFitness scores one run: missWeight per unit of lost recall plus
// costWeight per bucket member visited for each true neighbor.
func computeFitness(r systems.RecallStats) float64 {
	if r.AcceptRate <= 0 {
		return worstFitness
	}
	cost := r.Recall / r.AcceptRate // accessed / true neighbors
	f := missWeight*(1-r.Recall) + costWeight*cost
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return worstFitness
	}
	return f
}
