package sim

import (
	"log/slog"
	"maps"
	"slices"
)

// PhaseLogger logs supervisor phase changes and ownership changes.
type PhaseLogger struct {
	log     *slog.Logger
	phases  map[string]string
	holders map[string]string
}

func NewPhaseLogger(log *slog.Logger) *PhaseLogger {
	return &PhaseLogger{log: log}
}

func (p *PhaseLogger) OnTick(s Sample) {
	for _, axis := range slices.Sorted(maps.Keys(s.Phases)) {
		if prev, ok := p.phases[axis]; ok && prev != s.Phases[axis] {
			p.log.Info("phase", "tick", s.Tick, "axis", axis, "from", prev, "to", s.Phases[axis])
		}
	}
	for _, res := range slices.Sorted(maps.Keys(s.Holders)) {
		if prev, ok := p.holders[res]; ok && prev != s.Holders[res] {
			p.log.Debug("holder", "tick", s.Tick, "resource", res, "from", prev, "to", s.Holders[res])
		}
	}
	p.phases = s.Phases
	p.holders = s.Holders
}

// Recorder keeps every sample it sees.
type Recorder struct {
	Samples []Sample
}

func (r *Recorder) OnTick(s Sample) {
	r.Samples = append(r.Samples, s)
}
