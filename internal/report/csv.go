// Package report provides listeners that turn run events into progress output.
package report

import (
	"fmt"
	"io"
	"sync"

	"evocosm/internal/evo"
)

const CSVHeader = "iteration,best,mean,sigma"

// CSVListener writes one line per generation after fitness testing. Report
// text is written as a comment line so the output stays parseable.
type CSVListener[G evo.Genome[G]] struct {
	evo.NullListener[G]

	mu     sync.Mutex
	w      io.Writer
	header bool
	err    error
}

func NewCSVListener[G evo.Genome[G]](w io.Writer, header bool) *CSVListener[G] {
	return &CSVListener[G]{w: w, header: header}
}

func (l *CSVListener[G]) GenerationEnd(pop evo.Population[G], iteration int) {
	stats, err := evo.NewFitnessStats(pop)
	if err != nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.header {
		l.write("%s\n", CSVHeader)
		l.header = false
	}
	l.write("%d,%g,%g,%g\n", iteration, stats.Max, stats.Mean, stats.Sigma)
}

func (l *CSVListener[G]) Report(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.write("# %s\n", text)
}

func (l *CSVListener[G]) ReportError(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.write("# error: %s\n", text)
}

func (l *CSVListener[G]) write(format string, args ...any) {
	if l.err != nil {
		return
	}
	_, l.err = fmt.Fprintf(l.w, format, args...)
}

// Err returns the first write error, if any.
func (l *CSVListener[G]) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}
