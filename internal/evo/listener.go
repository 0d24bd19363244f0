package evo

// Listener observes a run. Implementations must treat every population and
// organism they receive as read-only.
type Listener[G Genome[G]] interface {
	GenerationBegin(pop Population[G], iteration int)
	GenerationEnd(pop Population[G], iteration int)
	FitnessTestBegin(org Organism[G])
	FitnessTestEnd(org Organism[G])
	Report(text string)
	ReportError(text string)
	RunComplete(pop Population[G])
}

// NullListener ignores every event. Embed it to implement a subset.
type NullListener[G Genome[G]] struct{}

func (NullListener[G]) GenerationBegin(Population[G], int) {}
func (NullListener[G]) GenerationEnd(Population[G], int)   {}
func (NullListener[G]) FitnessTestBegin(Organism[G])       {}
func (NullListener[G]) FitnessTestEnd(Organism[G])         {}
func (NullListener[G]) Report(string)                      {}
func (NullListener[G]) ReportError(string)                 {}
func (NullListener[G]) RunComplete(Population[G])          {}

// MultiListener fans every event out in order.
type MultiListener[G Genome[G]] []Listener[G]

func (m MultiListener[G]) GenerationBegin(pop Population[G], iteration int) {
	for _, l := range m {
		l.GenerationBegin(pop, iteration)
	}
}

func (m MultiListener[G]) GenerationEnd(pop Population[G], iteration int) {
	for _, l := range m {
		l.GenerationEnd(pop, iteration)
	}
}

func (m MultiListener[G]) FitnessTestBegin(org Organism[G]) {
	for _, l := range m {
		l.FitnessTestBegin(org)
	}
}

func (m MultiListener[G]) FitnessTestEnd(org Organism[G]) {
	for _, l := range m {
		l.FitnessTestEnd(org)
	}
}

func (m MultiListener[G]) Report(text string) {
	for _, l := range m {
		l.Report(text)
	}
}

func (m MultiListener[G]) ReportError(text string) {
	for _, l := range m {
		l.ReportError(text)
	}
}

func (m MultiListener[G]) RunComplete(pop Population[G]) {
	for _, l := range m {
		l.RunComplete(pop)
	}
}
