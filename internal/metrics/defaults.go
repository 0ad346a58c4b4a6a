package metrics

import (
	"github.com/san-kum/cyclectl/internal/config"
	"github.com/san-kum/cyclectl/internal/sim"
)

// Standard returns the metrics recorded for every run.
func Standard(cfg *config.Config) []sim.Metric {
	return []sim.Metric{
		NewControlEffort("elbow", "slide", "turn"),
		NewStability(map[string]Limit{
			"elbow": {cfg.Elbow.Min, cfg.Elbow.Max},
			"slide": {cfg.Slide.Min, cfg.Slide.Max},
		}),
		NewTickBudget(cfg.Period()),
		NewPhaseEntries("cycle", "release"),
	}
}
