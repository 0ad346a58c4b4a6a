package sim

import (
	"math"

	"github.com/san-kum/cyclectl/internal/config"
	"github.com/san-kum/cyclectl/internal/robot"
)

const (
	xElbow = iota
	xElbowVel
	xSlide
	xSlideVel
	xHeading
	xTurnRate
	xLoad
	xWinch
	stateDim
)

const (
	uElbow = iota
	uSlide
	uTurn
	uRollers
	uTilt
	uBox
	uDrone
	uWinch
	controlDim
)

// Plant simulates the robot: two motor-driven joints and the drivetrain
// yaw as first-order lagged rate models, servo channels that follow their
// command instantly, a winch that pays out cable at a fixed rate, and a
// load that fills while the lowered intake runs and drains while the box
// is open.
type Plant struct {
	cfg   config.PlantConfig
	integ Integrator

	tiltDown float64
	tiltUp   float64
	boxOpen  float64
	boxShut  float64

	x State
	u Control
	t float64

	forward float64
	strafe  float64
}

func NewPlant(cfg *config.Config, integ Integrator) *Plant {
	p := &Plant{
		cfg:      cfg.Plant,
		integ:    integ,
		tiltDown: cfg.Intake.DownPosition,
		tiltUp:   cfg.Intake.UpPosition,
		boxOpen:  cfg.Box.OpenPosition,
		boxShut:  cfg.Box.ClosedPosition,
		x:        make(State, stateDim),
		u:        make(Control, controlDim),
	}
	p.x[xElbow] = cfg.Elbow.Positions["driving"]
	p.x[xSlide] = cfg.Slide.Positions["in"]
	p.u[uTilt] = cfg.Intake.UpPosition
	p.u[uBox] = cfg.Box.ClosedPosition
	p.u[uDrone] = cfg.Drone.StartPosition
	return p
}

func (p *Plant) StateDim() int   { return stateDim }
func (p *Plant) ControlDim() int { return controlDim }

func (p *Plant) Derivative(x State, u Control, t float64) State {
	lag := math.Max(p.cfg.MotorLag, 1e-3)
	dx := make(State, stateDim)

	dx[xElbow] = x[xElbowVel]
	dx[xElbowVel] = (p.cfg.ElbowRate*clampUnit(u[uElbow]) - x[xElbowVel]) / lag
	dx[xSlide] = x[xSlideVel]
	dx[xSlideVel] = (p.cfg.SlideRate*clampUnit(u[uSlide]) - x[xSlideVel]) / lag
	dx[xHeading] = x[xTurnRate]
	dx[xTurnRate] = (p.cfg.TurnRate*clampUnit(u[uTurn]) - x[xTurnRate]) / lag

	dx[xWinch] = p.cfg.WinchRate * clampUnit(u[uWinch])

	if p.lowered(u) {
		dx[xLoad] += p.cfg.LoadRate * clampUnit(u[uRollers])
	}
	if p.opened(u) {
		dx[xLoad] -= 2 * p.cfg.LoadRate
	}
	return dx
}

// lowered and opened classify a servo by whichever end position it is
// closer to.
func (p *Plant) lowered(u Control) bool {
	return math.Abs(u[uTilt]-p.tiltDown) < math.Abs(u[uTilt]-p.tiltUp)
}

func (p *Plant) opened(u Control) bool {
	return math.Abs(u[uBox]-p.boxOpen) < math.Abs(u[uBox]-p.boxShut)
}

// Step advances the plant by dt seconds under the current commands.
func (p *Plant) Step(dt float64) {
	next := p.integ.Step(p, p.x, p.u, p.t, dt)
	if !next.IsValid() {
		return
	}
	next[xHeading] = wrapDegrees(next[xHeading])
	next[xLoad] = math.Max(0, next[xLoad])
	p.x = next
	p.t += dt
}

func (p *Plant) Channels() map[string]float64 {
	return map[string]float64{
		"elbow":   p.x[xElbow],
		"slide":   p.x[xSlide],
		"heading": p.x[xHeading],
		"load":    p.x[xLoad],
		"tilt":    p.u[uTilt],
		"box":     p.u[uBox],
		"drone":   p.u[uDrone],
		"winch":   p.x[xWinch],
	}
}

func (p *Plant) Outputs() map[string]float64 {
	return map[string]float64{
		"elbow":   p.u[uElbow],
		"slide":   p.u[uSlide],
		"turn":    p.u[uTurn],
		"forward": p.forward,
		"strafe":  p.strafe,
		"rollers": p.u[uRollers],
		"winch":   p.u[uWinch],
	}
}

// State returns a copy of the integrated state.
func (p *Plant) State() State { return p.x.Clone() }

// SetLoad places a load in the box, as if fed by hand.
func (p *Plant) SetLoad(v float64) { p.x[xLoad] = v }

func (p *Plant) SetHeading(deg float64) { p.x[xHeading] = wrapDegrees(deg) }

func (p *Plant) Drive(forward, strafe, turn float64) {
	p.forward, p.strafe = forward, strafe
	p.u[uTurn] = turn
}

func (p *Plant) Read() float64 { return p.x[xHeading] }

// Hardware exposes the plant as robot devices.
func (p *Plant) Hardware() robot.Hardware {
	return robot.Hardware{
		Drive:       p,
		Heading:     p,
		Elbow:       channel{p, uElbow},
		ElbowPos:    sensor{p, xElbow},
		Slide:       channel{p, uSlide},
		SlidePos:    sensor{p, xSlide},
		IntakeMotor: channel{p, uRollers},
		IntakeTilt:  channel{p, uTilt},
		BoxServo:    channel{p, uBox},
		DroneServo:  channel{p, uDrone},
		WinchMotor:  channel{p, uWinch},
		Load:        sensor{p, xLoad},
	}
}

type channel struct {
	p *Plant
	i int
}

func (c channel) Set(v float64) { c.p.u[c.i] = v }

type sensor struct {
	p *Plant
	i int
}

func (s sensor) Read() float64 { return s.p.x[s.i] }

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func wrapDegrees(deg float64) float64 {
	d := math.Mod(deg+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}
