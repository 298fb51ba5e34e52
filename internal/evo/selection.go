package evo

import (
	"fmt"
	"math/rand"
)

// Selector draws k individuals from an evaluated population.
type Selector interface {
	Name() string
	Select(rng *rand.Rand, population []Individual, k int) ([]Individual, error)
}

// TournamentSelector samples Size contestants with replacement and keeps the
// lowest fitness. Size 1 is uniform random selection.
type TournamentSelector struct {
	Size int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) Select(rng *rand.Rand, population []Individual, k int) ([]Individual, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if len(population) == 0 {
		return nil, fmt.Errorf("population is empty")
	}
	if k < 0 {
		return nil, fmt.Errorf("selection count must be >= 0, got %d", k)
	}
	for i := range population {
		if !population[i].Valid {
			return nil, fmt.Errorf("individual %d has no fitness", i)
		}
	}

	size := s.Size
	if size <= 0 {
		size = 3
	}

	chosen := make([]Individual, 0, k)
	for n := 0; n < k; n++ {
		best := population[rng.Intn(len(population))]
		for i := 1; i < size; i++ {
			candidate := population[rng.Intn(len(population))]
			if candidate.Fitness < best.Fitness {
				best = candidate
			}
		}
		chosen = append(chosen, best)
	}
	return chosen, nil
}

// BestSelector returns the k lowest-fitness individuals, best first.
type BestSelector struct{}

func (BestSelector) Name() string {
	return "best"
}

func (BestSelector) Select(_ *rand.Rand, population []Individual, k int) ([]Individual, error) {
	if k < 0 || k > len(population) {
		return nil, fmt.Errorf("selection count must be in [0, %d], got %d", len(population), k)
	}
	ranked := rankPopulation(population)
	return ranked[:k], nil
}
