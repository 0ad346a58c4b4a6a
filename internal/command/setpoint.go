package command

import (
	"fmt"
	"time"

	"github.com/san-kum/cyclectl/internal/control"
	"github.com/san-kum/cyclectl/internal/hw"
)

// MoveToSetpoint drives an actuator with a PID controller until the
// measurement is within the controller's tolerance. The actuator is forced
// to zero in End whether or not the move was interrupted.
type MoveToSetpoint struct {
	Base
	pid      *control.PID
	actuator hw.Actuator
	sensor   hw.Sensor
	clock    hw.Clock
	target   float64
	last     time.Duration
}

func NewMoveToSetpoint(name string, pid *control.PID, act hw.Actuator, sensor hw.Sensor, clock hw.Clock, target float64, res Resource) *MoveToSetpoint {
	c := &MoveToSetpoint{
		pid:      pid,
		actuator: act,
		sensor:   sensor,
		clock:    clock,
		target:   target,
	}
	if name == "" {
		name = fmt.Sprintf("move(%s→%.1f)", res, target)
	}
	c.SetName(name)
	c.Require(res)
	return c
}

func (c *MoveToSetpoint) Target() float64 { return c.target }

func (c *MoveToSetpoint) Initialize() {
	c.pid.Reset()
	c.pid.SetSetpoint(c.target)
	c.last = previousTick(c.clock)
}

func (c *MoveToSetpoint) Execute() {
	now := c.clock.Now()
	dt := (now - c.last).Seconds()
	c.last = now
	c.actuator.Set(c.pid.Update(c.sensor.Read(), dt))
}

func (c *MoveToSetpoint) IsFinished() bool {
	return c.pid.AtTarget()
}

func (c *MoveToSetpoint) End(bool) {
	c.actuator.Set(0)
}

// Snap turns the drivetrain to a fixed heading while the driver keeps
// control of translation.
type Snap struct {
	Base
	pid       *control.PID
	drive     hw.Drivetrain
	heading   hw.Sensor
	clock     hw.Clock
	translate func() (forward, strafe float64)
	angle     float64
	last      time.Duration
}

func NewSnap(pid *control.PID, drive hw.Drivetrain, heading hw.Sensor, clock hw.Clock, angle float64, translate func() (float64, float64), res Resource) *Snap {
	c := &Snap{
		pid:       pid,
		drive:     drive,
		heading:   heading,
		clock:     clock,
		translate: translate,
		angle:     angle,
	}
	c.SetName(fmt.Sprintf("snap(%.0f)", angle))
	c.Require(res)
	return c
}

func (c *Snap) Angle() float64 { return c.angle }

func (c *Snap) Initialize() {
	c.pid.Reset()
	c.pid.SetSetpoint(c.angle)
	c.last = previousTick(c.clock)
}

func (c *Snap) Execute() {
	now := c.clock.Now()
	dt := (now - c.last).Seconds()
	c.last = now
	turn := c.pid.Update(c.heading.Read(), dt)
	var forward, strafe float64
	if c.translate != nil {
		forward, strafe = c.translate()
	}
	c.drive.Drive(forward, strafe, turn)
}

func (c *Snap) IsFinished() bool {
	return c.pid.AtTarget()
}

func (c *Snap) End(bool) {
	c.drive.Drive(0, 0, 0)
}

// previousTick backdates the first sample by one loop period. The scheduler
// executes a command in the same pass it initializes it, and a zero dt
// there would hold the actuator at zero for a tick.
func previousTick(clock hw.Clock) time.Duration {
	if p, ok := clock.(hw.Periodic); ok {
		return clock.Now() - p.Period()
	}
	return clock.Now()
}
