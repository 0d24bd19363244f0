package report

import (
	"log/slog"

	"evocosm/internal/evo"
)

// LogListener forwards run events to a structured logger. Per-generation
// events are logged at debug level.
type LogListener[G evo.Genome[G]] struct {
	evo.NullListener[G]
	Logger *slog.Logger
}

func NewLogListener[G evo.Genome[G]](logger *slog.Logger) *LogListener[G] {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogListener[G]{Logger: logger}
}

func (l *LogListener[G]) GenerationBegin(pop evo.Population[G], iteration int) {
	l.Logger.Debug("generation begin", "iteration", iteration, "population", len(pop))
}

func (l *LogListener[G]) GenerationEnd(pop evo.Population[G], iteration int) {
	stats, err := evo.NewFitnessStats(pop)
	if err != nil {
		l.Logger.Warn("generation end", "iteration", iteration, "err", err)
		return
	}
	l.Logger.Debug("generation end",
		"iteration", iteration,
		"best", stats.Max,
		"mean", stats.Mean,
		"sigma", stats.Sigma,
	)
}

func (l *LogListener[G]) Report(text string) {
	l.Logger.Info(text)
}

func (l *LogListener[G]) ReportError(text string) {
	l.Logger.Error(text)
}

func (l *LogListener[G]) RunComplete(pop evo.Population[G]) {
	stats, err := evo.NewFitnessStats(pop)
	if err != nil {
		l.Logger.Info("run complete")
		return
	}
	l.Logger.Info("run complete", "best", stats.Max, "mean", stats.Mean)
}
