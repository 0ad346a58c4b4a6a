package metrics

import (
	"github.com/san-kum/cyclectl/internal/sim"
)

// Limit is an allowed range for one measured channel.
type Limit struct {
	Min, Max float64
}

// Stability is the fraction of ticks on which every limited channel stayed
// inside its soft limits.
type Stability struct {
	name       string
	limits     map[string]Limit
	violations int
	samples    int
}

func NewStability(limits map[string]Limit) *Stability {
	return &Stability{
		name:   "stability",
		limits: limits,
	}
}

func (s *Stability) Name() string {
	return s.name
}

func (s *Stability) Observe(sample sim.Sample) {
	s.samples++
	for ch, lim := range s.limits {
		v, ok := sample.Channels[ch]
		if !ok {
			continue
		}
		if v < lim.Min || v > lim.Max {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}
