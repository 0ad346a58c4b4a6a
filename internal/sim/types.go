package sim

import (
	"math"
	"time"

	"github.com/san-kum/cyclectl/internal/scheduler"
)

type State []float64

func (s State) Clone() State {
	c := make(State, len(s))
	copy(c, s)
	return c
}

// IsValid reports whether every component is finite.
func (s State) IsValid() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

type Control []float64

type Dynamics interface {
	Derivative(x State, u Control, t float64) State
	StateDim() int
	ControlDim() int
}

type Integrator interface {
	Step(dyn Dynamics, x State, u Control, t float64, dt float64) State
}

// Process is the physical side of the loop: it is advanced once per tick
// after the scheduler has written its outputs.
type Process interface {
	Step(dt float64)
	Channels() map[string]float64
	Outputs() map[string]float64
}

// Sample is the loop state recorded after one tick.
type Sample struct {
	Tick     int                `json:"tick"`
	Time     float64            `json:"time"`
	Channels map[string]float64 `json:"channels"`
	Outputs  map[string]float64 `json:"outputs"`
	Phases   map[string]string  `json:"phases,omitempty"`
	Holders  map[string]string  `json:"holders"`
	Elapsed  time.Duration      `json:"elapsed"`
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

type Observer interface {
	OnTick(s Sample)
}

type Result struct {
	Samples  []Sample
	Metrics  map[string]float64
	Stats    scheduler.Stats
	Overruns int
}

// Channel returns the time series of one measured channel.
func (r *Result) Channel(name string) []float64 {
	out := make([]float64, 0, len(r.Samples))
	for _, s := range r.Samples {
		out = append(out, s.Channels[name])
	}
	return out
}

// Final returns the last sample, or the zero Sample for an empty run.
func (r *Result) Final() Sample {
	if len(r.Samples) == 0 {
		return Sample{}
	}
	return r.Samples[len(r.Samples)-1]
}
