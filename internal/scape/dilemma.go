package scape

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/sourcegraph/conc/pool"

	"evocosm/internal/evo"
	"evocosm/internal/fsm"
)

const (
	Cooperate = 0
	Defect    = 1
)

// Payoffs for the row player: reward, sucker, temptation and punishment.
const (
	PayoffReward     = 3.0
	PayoffSucker     = 0.0
	PayoffTemptation = 5.0
	PayoffPunishment = 1.0
)

var payoff = [2][2]float64{
	{PayoffReward, PayoffSucker},
	{PayoffTemptation, PayoffPunishment},
}

// Strategy is a genome that can play repeated games: it reads the opponent's
// previous move and emits its own.
type Strategy[G any] interface {
	evo.Genome[G]
	Reset()
	Inputs() int
	Outputs() int
}

type moveFunc[G any] func(rng *rand.Rand, g G, opponent int) (int, error)

// PrisonersDilemma scores a population with a round-robin iterated prisoner's
// dilemma. Each strategy plays every other strategy for Rounds rounds and its
// fitness is its mean payoff per round.
type PrisonersDilemma[G Strategy[G]] struct {
	Rounds   int
	Workers  int
	Listener evo.Listener[G]
	move     moveFunc[G]
}

func newDilemma[G Strategy[G]](rounds, workers int, listener evo.Listener[G], move moveFunc[G]) *PrisonersDilemma[G] {
	if rounds < 1 {
		rounds = 1
	}
	if workers < 1 {
		workers = 1
	}
	if listener == nil {
		listener = evo.NullListener[G]{}
	}
	return &PrisonersDilemma[G]{Rounds: rounds, Workers: workers, Listener: listener, move: move}
}

func NewMachineDilemma(rounds, workers int, listener evo.Listener[*fsm.Machine]) *PrisonersDilemma[*fsm.Machine] {
	return newDilemma(rounds, workers, listener, func(_ *rand.Rand, m *fsm.Machine, opponent int) (int, error) {
		return m.Transition(opponent)
	})
}

func NewFuzzyDilemma(rounds, workers int, listener evo.Listener[*fsm.Fuzzy]) *PrisonersDilemma[*fsm.Fuzzy] {
	return newDilemma(rounds, workers, listener, func(rng *rand.Rand, f *fsm.Fuzzy, opponent int) (int, error) {
		return f.Transition(rng, opponent)
	})
}

// Test leaves a lone organism's fitness alone; scores only exist relative to
// a population.
func (d *PrisonersDilemma[G]) Test(_ context.Context, _ *rand.Rand, org *evo.Organism[G]) float64 {
	return org.Fitness
}

func (d *PrisonersDilemma[G]) TestPopulation(ctx context.Context, rng *rand.Rand, pop evo.Population[G]) (float64, error) {
	if len(pop) == 0 {
		return 0, evo.ErrEmptyPopulation
	}
	for i := range pop {
		if in, out := pop[i].Genes.Inputs(), pop[i].Genes.Outputs(); in != 2 || out != 2 {
			return 0, fmt.Errorf("organism %d: strategy needs 2 inputs and 2 outputs, got %d/%d", i, in, out)
		}
	}
	if len(pop) == 1 {
		pop[0].Fitness = 0
		return 0, nil
	}

	seeds := make([]int64, len(pop))
	for i := range seeds {
		seeds[i] = rng.Int63()
	}
	scores := make([]float64, len(pop))

	if d.Workers <= 1 {
		for red := range pop {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			score, err := d.playRow(rand.New(rand.NewSource(seeds[red])), pop, red, false)
			if err != nil {
				return 0, err
			}
			scores[red] = score
		}
	} else {
		p := pool.New().WithContext(ctx).WithMaxGoroutines(d.Workers)
		for red := range pop {
			red := red
			p.Go(func(ctx context.Context) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				score, err := d.playRow(rand.New(rand.NewSource(seeds[red])), pop, red, true)
				scores[red] = score
				return err
			})
		}
		if err := p.Wait(); err != nil {
			return 0, err
		}
	}

	total := 0.0
	for i := range pop {
		pop[i].Fitness = scores[i]
		total += scores[i]
	}
	return total / float64(len(pop)), nil
}

// playRow plays red against every other organism. With private set the games
// run on copies so rows can be played concurrently.
func (d *PrisonersDilemma[G]) playRow(rng *rand.Rand, pop evo.Population[G], red int, private bool) (float64, error) {
	d.Listener.FitnessTestBegin(pop[red])
	redGenes := pop[red].Genes
	if private {
		redGenes = redGenes.Clone()
	}

	score := 0.0
	for blue := range pop {
		if blue == red {
			continue
		}
		blueGenes := pop[blue].Genes
		if private {
			blueGenes = blueGenes.Clone()
		}
		got, err := d.play(rng, redGenes, blueGenes)
		if err != nil {
			return 0, fmt.Errorf("game %d vs %d: %w", red, blue, err)
		}
		score += got
	}
	score /= float64((len(pop) - 1) * d.Rounds)

	org := pop[red]
	org.Fitness = score
	d.Listener.FitnessTestEnd(org)
	return score, nil
}

// play returns red's total payoff. Both strategies start from their initial
// states and treat the move before the first round as cooperation.
func (d *PrisonersDilemma[G]) play(rng *rand.Rand, red, blue G) (float64, error) {
	red.Reset()
	blue.Reset()
	prevRed, prevBlue := Cooperate, Cooperate
	total := 0.0
	for round := 0; round < d.Rounds; round++ {
		redMove, err := d.move(rng, red, prevBlue)
		if err != nil {
			return 0, err
		}
		blueMove, err := d.move(rng, blue, prevRed)
		if err != nil {
			return 0, err
		}
		total += payoff[redMove][blueMove]
		prevRed, prevBlue = redMove, blueMove
	}
	return total, nil
}
