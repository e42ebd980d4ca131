// Package stats summarizes the fitness distribution of a generation.
package stats

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/darwin/internal/optimization"
)

// Summarize computes the statistics of one generation. Best and Worst are
// interpreted under goal. An empty generation yields NaN statistics.
func Summarize(generation int, fitnesses []float64, goal optimization.Goal) optimization.GenerationStats {
	s := optimization.GenerationStats{
		Generation: generation,
		Size:       len(fitnesses),
	}
	if len(fitnesses) == 0 {
		s.Best, s.Worst, s.Mean, s.StdDev = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		return s
	}

	hi, lo := floats.Max(fitnesses), floats.Min(fitnesses)
	s.Best, s.Worst = goal.Best(hi, lo), goal.Worst(hi, lo)

	if len(fitnesses) == 1 {
		s.Mean = fitnesses[0]
		return s
	}
	s.Mean, s.StdDev = stat.MeanStdDev(fitnesses, nil)
	return s
}

// Improvement returns how much better current is than previous under goal.
// Positive values mean progress.
func Improvement(previous, current optimization.GenerationStats, goal optimization.Goal) float64 {
	if goal == optimization.Minimize {
		return previous.Best - current.Best
	}
	return current.Best - previous.Best
}
