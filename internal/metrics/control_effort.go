package metrics

import (
	"math"

	"github.com/san-kum/cyclectl/internal/sim"
)

// ControlEffort is the mean absolute actuator output per tick, summed over
// the selected output channels (all of them when none are given).
type ControlEffort struct {
	name     string
	channels []string
	sum      float64
	samples  int
}

func NewControlEffort(channels ...string) *ControlEffort {
	return &ControlEffort{
		name:     "control_effort",
		channels: channels,
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(s sim.Sample) {
	if len(c.channels) == 0 {
		for _, val := range s.Outputs {
			c.sum += math.Abs(val)
		}
	} else {
		for _, ch := range c.channels {
			c.sum += math.Abs(s.Outputs[ch])
		}
	}
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
