package control

import (
	"fmt"
	"math"
)

// PID is a discrete PID controller with a bounded output.
//
// The integral accumulator resets whenever the setpoint changes, and the
// first update after a setpoint change or Reset uses a zero derivative so a
// stale error history never produces an output spike.
type PID struct {
	Kp        float64
	Ki        float64
	Kd        float64
	Bound     float64 // output is clamped to [-Bound, Bound]; <= 0 means unbounded
	Tolerance float64

	setpoint float64
	integral float64
	prevErr  float64
	err      float64
	output   float64
	measured bool
	seeded   bool

	continuous bool
	minInput   float64
	maxInput   float64
}

func NewPID(kp, ki, kd, bound, tolerance float64) *PID {
	return &PID{
		Kp:        kp,
		Ki:        ki,
		Kd:        kd,
		Bound:     bound,
		Tolerance: tolerance,
	}
}

// EnableContinuousInput treats min and max as the same point, so the error
// is always taken along the shortest way around (headings, wrapped angles).
func (p *PID) EnableContinuousInput(min, max float64) {
	p.continuous = true
	p.minInput = min
	p.maxInput = max
}

func (p *PID) Setpoint() float64 { return p.setpoint }

// SetSetpoint changes the target. A different value clears the integral.
func (p *PID) SetSetpoint(sp float64) {
	if sp == p.setpoint {
		return
	}
	p.setpoint = sp
	p.integral = 0
	p.seeded = false
}

// Update advances the controller by dt seconds with a new measurement and
// returns the bounded output. With dt <= 0 or a NaN measurement the
// integral and derivative are left alone and the previous output is reused.
func (p *PID) Update(measurement, dt float64) float64 {
	if math.IsNaN(measurement) || math.IsInf(measurement, 0) {
		return p.output
	}

	err := p.errorFor(measurement)
	p.err = err
	p.measured = true

	if dt <= 0 || math.IsNaN(dt) {
		return p.output
	}

	p.integral += err * dt

	derivative := 0.0
	if p.seeded {
		derivative = (err - p.prevErr) / dt
	}

	p.output = p.clamp(p.Kp*err + p.Ki*p.integral + p.Kd*derivative)
	p.prevErr = err
	p.seeded = true

	return p.output
}

func (p *PID) errorFor(measurement float64) float64 {
	err := p.setpoint - measurement
	if !p.continuous {
		return err
	}
	span := p.maxInput - p.minInput
	if span <= 0 {
		return err
	}
	half := span / 2
	err = math.Mod(err+half, span)
	if err < 0 {
		err += span
	}
	return err - half
}

func (p *PID) clamp(u float64) float64 {
	if p.Bound <= 0 {
		return u
	}
	return math.Max(-p.Bound, math.Min(p.Bound, u))
}

// AtTarget reports whether the last measured error is within tolerance,
// boundary inclusive. It is false until the first measurement.
func (p *PID) AtTarget() bool {
	return p.measured && math.Abs(p.err) <= p.Tolerance
}

func (p *PID) Output() float64 { return p.output }

// Error returns the last measured error.
func (p *PID) Error() float64 { return p.err }

// Integral returns the current accumulator value.
func (p *PID) Integral() float64 { return p.integral }

// Reset clears integral and derivative state
func (p *PID) Reset() {
	p.integral = 0
	p.prevErr = 0
	p.err = 0
	p.output = 0
	p.measured = false
	p.seeded = false
}

// Params returns tunable parameters for live adjustment
func (p *PID) Params() map[string]float64 {
	return map[string]float64{
		"kp":        p.Kp,
		"ki":        p.Ki,
		"kd":        p.Kd,
		"bound":     p.Bound,
		"tolerance": p.Tolerance,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) error {
	switch name {
	case "kp":
		p.Kp = value
	case "ki":
		p.Ki = value
	case "kd":
		p.Kd = value
	case "bound":
		p.Bound = value
	case "tolerance":
		if value < 0 {
			return fmt.Errorf("tolerance must be non-negative, got %f", value)
		}
		p.Tolerance = value
	default:
		return fmt.Errorf("unknown pid parameter: %s", name)
	}
	return nil
}
