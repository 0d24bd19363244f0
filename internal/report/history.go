package report

import (
	"sync"
	"sync/atomic"

	"evocosm/internal/evo"
	"evocosm/internal/model"
)

// HistoryListener keeps per-generation fitness statistics, the evaluation
// count and the fittest organism seen at any generation end.
type HistoryListener[G evo.Genome[G]] struct {
	evo.NullListener[G]

	evaluations atomic.Int64

	mu       sync.Mutex
	stats    []model.GenerationStats
	best     evo.Organism[G]
	bestGen  int
	haveBest bool
}

func NewHistoryListener[G evo.Genome[G]]() *HistoryListener[G] {
	return &HistoryListener[G]{}
}

func (h *HistoryListener[G]) FitnessTestEnd(evo.Organism[G]) {
	h.evaluations.Add(1)
}

func (h *HistoryListener[G]) GenerationEnd(pop evo.Population[G], iteration int) {
	stats, err := evo.NewFitnessStats(pop)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats = append(h.stats, model.GenerationStats{
		Generation: iteration,
		Best:       stats.Max,
		Worst:      stats.Min,
		Mean:       stats.Mean,
		Sigma:      stats.Sigma,
	})
	if !h.haveBest || stats.Best.Fitness > h.best.Fitness {
		h.best = stats.Best
		h.bestGen = iteration
		h.haveBest = true
	}
}

func (h *HistoryListener[G]) Generations() []model.GenerationStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]model.GenerationStats(nil), h.stats...)
}

func (h *HistoryListener[G]) Evaluations() int64 {
	return h.evaluations.Load()
}

// Best returns the fittest organism and the generation it was scored in.
func (h *HistoryListener[G]) Best() (evo.Organism[G], int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.haveBest {
		return evo.Organism[G]{}, 0, false
	}
	return h.best.Clone(), h.bestGen, true
}
