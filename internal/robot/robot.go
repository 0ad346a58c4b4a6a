// Package robot wires the command scheduler to a scoring robot: its
// resources, the commands that move it through an operating cycle, the
// manual default commands and the two-axis supervisor that decides what
// runs each tick.
package robot

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/cyclectl/internal/command"
	"github.com/san-kum/cyclectl/internal/config"
	"github.com/san-kum/cyclectl/internal/control"
	"github.com/san-kum/cyclectl/internal/fsm"
	"github.com/san-kum/cyclectl/internal/hw"
	"github.com/san-kum/cyclectl/internal/scheduler"
)

const (
	Drive  command.Resource = "drive"
	Intake command.Resource = "intake"
	Elbow  command.Resource = "elbow"
	Slide  command.Resource = "slide"
	Box    command.Resource = "box"
	Drone  command.Resource = "drone"
	Winch  command.Resource = "winch"
)

// Resources lists every resource the robot registers a default for.
func Resources() []command.Resource {
	return []command.Resource{Drive, Intake, Elbow, Slide, Box, Drone, Winch}
}

// Hardware is the set of devices the robot drives. Load may be nil when no
// load sensor is fitted; the cycle then only advances on explicit pickup.
type Hardware struct {
	Drive   hw.Drivetrain
	Heading hw.Sensor

	Elbow    hw.Actuator
	ElbowPos hw.Sensor
	Slide    hw.Actuator
	SlidePos hw.Sensor

	IntakeMotor hw.Actuator
	IntakeTilt  hw.Actuator
	BoxServo    hw.Actuator
	DroneServo  hw.Actuator
	WinchMotor  hw.Actuator
	Load        hw.Sensor
}

var ErrMissingDevice = errors.New("robot: missing device")

func (h Hardware) validate() error {
	required := []struct {
		name string
		dev  any
	}{
		{"drive", h.Drive},
		{"heading", h.Heading},
		{"elbow", h.Elbow},
		{"elbow_pos", h.ElbowPos},
		{"slide", h.Slide},
		{"slide_pos", h.SlidePos},
		{"intake_motor", h.IntakeMotor},
		{"intake_tilt", h.IntakeTilt},
		{"box_servo", h.BoxServo},
		{"drone_servo", h.DroneServo},
		{"winch_motor", h.WinchMotor},
	}
	for _, r := range required {
		if r.dev == nil {
			return fmt.Errorf("%w: %s", ErrMissingDevice, r.name)
		}
	}
	return nil
}

// Robot owns the controllers, the supervisor machines and the latest input
// poll. It implements scheduler.Supervisor.
type Robot struct {
	cfg    *config.Config
	hw     Hardware
	clock  hw.Clock
	source hw.InputSource
	log    *slog.Logger

	elbowPID   *control.PID
	slidePID   *control.PID
	headingPID *control.PID

	input hw.Input
	level string

	// field zero of the heading sensor, set by ResetGyro
	headingOffset float64
	launched      bool

	// operator latches used in manual mode
	tiltDown bool
	boxOpen  bool

	maneuver *fsm.Machine
	cycle    *fsm.Machine

	// The scheduler forgets terminal statuses shortly after a command ends,
	// so the last status seen for the snap and the cycle step is kept here.
	snap       command.Command
	snapStatus command.Status
	step       command.Command
	stepStatus command.Status

	sched *scheduler.Scheduler
}

type Option func(*Robot)

func WithLogger(log *slog.Logger) Option {
	return func(r *Robot) {
		r.log = log
	}
}

func New(cfg *config.Config, hardware Hardware, clock hw.Clock, source hw.InputSource, opts ...Option) (*Robot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := hardware.validate(); err != nil {
		return nil, err
	}
	r := &Robot{
		cfg:    cfg,
		hw:     hardware,
		clock:  clock,
		source: source,
		log:    slog.Default(),
		level:  cfg.Cycle.Level,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.elbowPID = newPID(cfg.Elbow.PID)
	r.slidePID = newPID(cfg.Slide.PID)
	r.headingPID = newPID(cfg.Heading)
	r.headingPID.EnableContinuousInput(-180, 180)

	r.maneuver = r.newManeuverMachine()
	r.cycle = r.newCycleMachine()
	return r, nil
}

func newPID(c config.PIDConfig) *control.PID {
	return control.NewPID(c.Kp, c.Ki, c.Kd, c.Bound, c.Tolerance)
}

// Install registers the default commands, makes r the scheduler's
// supervisor and schedules the setup command.
func (r *Robot) Install(s *scheduler.Scheduler) error {
	r.sched = s
	for _, def := range r.Defaults() {
		if err := s.RegisterDefault(def.Requirements()[0], def); err != nil {
			return err
		}
	}
	s.SetSupervisor(r)
	return s.Schedule(r.Setup())
}

// Input returns the input polled at the start of the current tick.
func (r *Robot) Input() hw.Input { return r.input }

// Level returns the selected scoring level.
func (r *Robot) Level() string { return r.level }

// Heading returns the drivetrain heading relative to the field zero, in
// degrees within [-180, 180).
func (r *Robot) Heading() float64 {
	return wrapDegrees(r.hw.Heading.Read() - r.headingOffset)
}

// Manual reports whether the closed-loop cycle is disabled.
func (r *Robot) Manual() bool { return r.cfg.Cycle.Manual }

func (r *Robot) Maneuver() fsm.State { return r.maneuver.Current() }

func (r *Robot) Cycle() fsm.State { return r.cycle.Current() }

// Machines returns the supervisor axes, maneuver first.
func (r *Robot) Machines() []*fsm.Machine {
	return []*fsm.Machine{r.maneuver, r.cycle}
}

// Controllers exposes the live PID controllers for tuning views.
func (r *Robot) Controllers() map[string]*control.PID {
	return map[string]*control.PID{
		"elbow":   r.elbowPID,
		"slide":   r.slidePID,
		"heading": r.headingPID,
	}
}

func (r *Robot) Phases() map[string]string {
	mode := "auto"
	if r.Manual() {
		mode = "manual"
	}
	return map[string]string{
		"maneuver": string(r.maneuver.Current()),
		"cycle":    string(r.cycle.Current()),
		"level":    r.level,
		"mode":     mode,
	}
}

func wrapDegrees(deg float64) float64 {
	d := math.Mod(deg+180, 360)
	if d < 0 {
		d += 360
	}
	return d - 180
}
