// Package hw declares the hardware-facing contracts the control core drives.
//
// The core never talks to drivers directly. Everything it needs from the
// outside world is expressed through these small interfaces:
//
//   - [Actuator]: bounded scalar output or absolute servo position
//   - [Sensor]: a measurement sampled once at the start of a tick
//   - [Drivetrain]: holonomic drive sink (forward, strafe, turn)
//   - [InputSource]: discrete events plus continuous axes, polled per tick
//   - [Clock]: monotonic loop time
//
// Implementations live in the simulation host (package sim) or in real
// driver code outside this module.
package hw

import "time"

type Actuator interface {
	Set(value float64)
}

type Sensor interface {
	Read() float64
}

type Drivetrain interface {
	Drive(forward, strafe, turn float64)
}

// Input is one poll of the input devices.
type Input struct {
	Events  []string
	Axes    map[string]float64
	Buttons map[string]bool
}

// Axis returns the named axis value or 0.
func (in Input) Axis(name string) float64 {
	if in.Axes == nil {
		return 0
	}
	return in.Axes[name]
}

// Button reports whether the named button is held.
func (in Input) Button(name string) bool {
	if in.Buttons == nil {
		return false
	}
	return in.Buttons[name]
}

type InputSource interface {
	Poll() Input
}

type Clock interface {
	Now() time.Duration
}

// Periodic is implemented by clocks that advance in fixed steps.
type Periodic interface {
	Period() time.Duration
}

// ActuatorFunc adapts a function to an Actuator.
type ActuatorFunc func(float64)

func (f ActuatorFunc) Set(v float64) { f(v) }

// SensorFunc adapts a function to a Sensor.
type SensorFunc func() float64

func (f SensorFunc) Read() float64 { return f() }
