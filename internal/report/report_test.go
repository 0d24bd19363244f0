package report

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evocosm/internal/evo"
)

type genes []float64

func (g genes) Clone() genes { return append(genes(nil), g...) }

func pop(fitness ...float64) evo.Population[genes] {
	out := make(evo.Population[genes], len(fitness))
	for i, f := range fitness {
		out[i] = evo.Organism[genes]{Fitness: f, Genes: genes{f}}
	}
	return out
}

func TestCSVListenerWritesProgress(t *testing.T) {
	var buf bytes.Buffer
	l := NewCSVListener[genes](&buf, true)
	l.GenerationEnd(pop(1, 3), 1)
	l.Report("terminated at generation 2")
	l.GenerationEnd(pop(2, 2), 2)
	require.NoError(t, l.Err())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, CSVHeader, lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1,3,2,1.41421"), lines[1])
	assert.Equal(t, "# terminated at generation 2", lines[2])
	assert.Equal(t, "2,2,2,0", lines[3])
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestCSVListenerKeepsFirstError(t *testing.T) {
	l := NewCSVListener[genes](failingWriter{}, false)
	l.GenerationEnd(pop(1), 1)
	l.ReportError("boom")
	require.EqualError(t, l.Err(), "disk full")
}

func TestLogListenerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	var l evo.Listener[genes] = NewLogListener[genes](logger)

	l.GenerationBegin(pop(1), 1)
	l.GenerationEnd(pop(1), 1)
	l.Report("halfway")
	l.ReportError("landscape failed")
	l.RunComplete(pop(4, 2))

	out := buf.String()
	assert.NotContains(t, out, "generation begin")
	assert.Contains(t, out, "msg=halfway")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "best=4")
}

func TestHistoryListenerTracksBestAcrossGenerations(t *testing.T) {
	h := NewHistoryListener[genes]()
	_, _, ok := h.Best()
	assert.False(t, ok)

	first := pop(1, 4)
	for _, org := range first {
		h.FitnessTestEnd(org)
	}
	h.GenerationEnd(first, 1)
	h.GenerationEnd(pop(2, 3), 2)

	gens := h.Generations()
	require.Len(t, gens, 2)
	assert.Equal(t, 4.0, gens[0].Best)
	assert.Equal(t, 1.0, gens[0].Worst)
	assert.Equal(t, 2.5, gens[1].Mean)
	assert.Equal(t, int64(2), h.Evaluations())

	best, gen, ok := h.Best()
	require.True(t, ok)
	assert.Equal(t, 1, gen)
	assert.Equal(t, genes{4}, best.Genes)
}
