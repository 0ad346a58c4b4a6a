package metrics

import "github.com/san-kum/cyclectl/internal/sim"

// PhaseEntries counts how many times an axis entered a phase, e.g. how many
// loads were released during a run.
type PhaseEntries struct {
	axis  string
	phase string
	prev  string
	count int
}

func NewPhaseEntries(axis, phase string) *PhaseEntries {
	return &PhaseEntries{axis: axis, phase: phase}
}

func (p *PhaseEntries) Name() string { return p.axis + "_" + p.phase + "_entries" }

func (p *PhaseEntries) Observe(s sim.Sample) {
	cur := s.Phases[p.axis]
	if cur == p.phase && p.prev != p.phase {
		p.count++
	}
	p.prev = cur
}

func (p *PhaseEntries) Value() float64 { return float64(p.count) }

func (p *PhaseEntries) Reset() {
	p.prev = ""
	p.count = 0
}
