package evo

import (
	"math"
	"sort"

	"bioevo/internal/model"
)

// HallOfFame keeps the K best distinct individuals seen so far, best first.
type HallOfFame struct {
	k       int
	entries []Individual
}

func NewHallOfFame(k int) *HallOfFame {
	if k <= 0 {
		k = 1
	}
	return &HallOfFame{k: k, entries: make([]Individual, 0, k)}
}

// Update offers every evaluated, finite individual to the hall.
func (h *HallOfFame) Update(population []Individual) {
	for _, ind := range population {
		if !ind.Valid || math.IsNaN(ind.Fitness) || math.IsInf(ind.Fitness, 0) {
			continue
		}
		if len(h.entries) == h.k && ind.Fitness >= h.entries[len(h.entries)-1].Fitness {
			continue
		}
		if h.contains(ind.Params) {
			continue
		}
		pos := sort.Search(len(h.entries), func(i int) bool {
			return h.entries[i].Fitness > ind.Fitness
		})
		h.entries = append(h.entries, Individual{})
		copy(h.entries[pos+1:], h.entries[pos:])
		h.entries[pos] = ind
		if len(h.entries) > h.k {
			h.entries = h.entries[:h.k]
		}
	}
}

func (h *HallOfFame) contains(p model.Params) bool {
	for _, e := range h.entries {
		if e.Params == p {
			return true
		}
	}
	return false
}

func (h *HallOfFame) Len() int {
	return len(h.entries)
}

// Best returns the champion; ok is false while the hall is empty.
func (h *HallOfFame) Best() (Individual, bool) {
	if len(h.entries) == 0 {
		return Individual{}, false
	}
	return h.entries[0], true
}

func (h *HallOfFame) Entries() []model.HallOfFameEntry {
	out := make([]model.HallOfFameEntry, len(h.entries))
	for i, e := range h.entries {
		out[i] = model.HallOfFameEntry{Rank: i + 1, Params: e.Params, Fitness: e.Fitness}
	}
	return out
}
