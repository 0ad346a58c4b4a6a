package metrics

import (
	"time"

	"github.com/san-kum/cyclectl/internal/sim"
)

// TickBudget reports the worst scheduler pass as a fraction of the budget.
// Values above 1 mean at least one tick overran.
type TickBudget struct {
	budget time.Duration
	worst  time.Duration
}

func NewTickBudget(budget time.Duration) *TickBudget {
	return &TickBudget{budget: budget}
}

func (t *TickBudget) Name() string { return "tick_budget" }

func (t *TickBudget) Observe(s sim.Sample) {
	if s.Elapsed > t.worst {
		t.worst = s.Elapsed
	}
}

func (t *TickBudget) Value() float64 {
	if t.budget <= 0 {
		return 0
	}
	return float64(t.worst) / float64(t.budget)
}

func (t *TickBudget) Reset() { t.worst = 0 }
