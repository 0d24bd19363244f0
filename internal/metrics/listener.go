// Package metrics exports run progress as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"evocosm/internal/evo"
)

// Collectors holds the metric families shared by every run registered on a
// Registerer. Runs are told apart by the "run" label.
type Collectors struct {
	Generation  *prometheus.GaugeVec
	BestFitness *prometheus.GaugeVec
	MeanFitness *prometheus.GaugeVec
	Evaluations *prometheus.CounterVec
	Errors      *prometheus.CounterVec
}

func NewCollectors(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		Generation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "evocosm",
			Name:      "generation",
			Help:      "Current generation of the run.",
		}, []string{"run"}),
		BestFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "evocosm",
			Name:      "best_fitness",
			Help:      "Best raw fitness of the latest generation.",
		}, []string{"run"}),
		MeanFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "evocosm",
			Name:      "mean_fitness",
			Help:      "Mean raw fitness of the latest generation.",
		}, []string{"run"}),
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evocosm",
			Name:      "fitness_evaluations_total",
			Help:      "Organisms scored by the landscape.",
		}, []string{"run"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evocosm",
			Name:      "errors_total",
			Help:      "Errors reported by the run.",
		}, []string{"run"}),
	}
	if reg == nil {
		return c, nil
	}
	for _, col := range []prometheus.Collector{c.Generation, c.BestFitness, c.MeanFitness, c.Evaluations, c.Errors} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Listener records one run's progress into Collectors.
type Listener[G evo.Genome[G]] struct {
	evo.NullListener[G]

	generation  prometheus.Gauge
	best        prometheus.Gauge
	mean        prometheus.Gauge
	evaluations prometheus.Counter
	errors      prometheus.Counter
}

func NewListener[G evo.Genome[G]](c *Collectors, runID string) *Listener[G] {
	return &Listener[G]{
		generation:  c.Generation.WithLabelValues(runID),
		best:        c.BestFitness.WithLabelValues(runID),
		mean:        c.MeanFitness.WithLabelValues(runID),
		evaluations: c.Evaluations.WithLabelValues(runID),
		errors:      c.Errors.WithLabelValues(runID),
	}
}

func (l *Listener[G]) GenerationBegin(_ evo.Population[G], iteration int) {
	l.generation.Set(float64(iteration))
}

func (l *Listener[G]) GenerationEnd(pop evo.Population[G], _ int) {
	stats, err := evo.NewFitnessStats(pop)
	if err != nil {
		return
	}
	l.best.Set(stats.Max)
	l.mean.Set(stats.Mean)
}

func (l *Listener[G]) FitnessTestEnd(evo.Organism[G]) {
	l.evaluations.Inc()
}

func (l *Listener[G]) ReportError(string) {
	l.errors.Inc()
}
