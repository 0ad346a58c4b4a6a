package robot

import (
	"github.com/san-kum/cyclectl/internal/command"
	"github.com/san-kum/cyclectl/internal/config"
	"github.com/san-kum/cyclectl/internal/hw"
)

// Defaults returns one default command per resource, in Resources order.
func (r *Robot) Defaults() []command.Command {
	return []command.Command{
		command.NewRun("manual-drive", r.manualDrive, Drive),
		command.NewRun("intake-rollers", r.runRollers, Intake),
		command.NewRun("manual-elbow", func() { r.manualJoint(r.hw.Elbow, "elbow", r.cfg.Elbow) }, Elbow),
		command.NewRun("manual-slide", func() { r.manualJoint(r.hw.Slide, "slide", r.cfg.Slide) }, Slide),
		command.NewRun("hold-box", r.holdBox, Box),
		command.NewRun("hold-drone", r.holdDrone, Drone),
		command.NewRun("manual-winch", r.runWinch, Winch),
	}
}

func (r *Robot) manualDrive() {
	forward, strafe := r.translation()
	turn := deadband(r.input.Axis("turn"), r.cfg.Drive.Deadband) * r.driveScale()
	r.hw.Drive.Drive(forward, strafe, turn)
}

// runRollers spins the intake while the cycle is collecting, reverses it
// while the outtake button is held and stops it otherwise.
func (r *Robot) runRollers() {
	if r.Manual() {
		r.manualIntake()
		return
	}
	switch {
	case r.input.Button("outtake"):
		r.hw.IntakeMotor.Set(r.cfg.Intake.OuttakeSpeed)
	case r.cycle.Is(CycleIntake):
		r.hw.IntakeMotor.Set(r.cfg.Intake.IntakeSpeed)
	default:
		r.hw.IntakeMotor.Set(0)
	}
}

// manualIntake latches the tilt on intake_down/intake_up and runs the
// rollers only while intake or outtake is held.
func (r *Robot) manualIntake() {
	switch {
	case r.input.Button("intake_down"):
		r.tiltDown = true
	case r.input.Button("intake_up"):
		r.tiltDown = false
	}
	if r.tiltDown {
		r.hw.IntakeTilt.Set(r.cfg.Intake.DownPosition)
	} else {
		r.hw.IntakeTilt.Set(r.cfg.Intake.UpPosition)
	}

	switch {
	case r.input.Button("intake"):
		r.hw.IntakeMotor.Set(r.cfg.Intake.IntakeSpeed)
	case r.input.Button("outtake"):
		r.hw.IntakeMotor.Set(r.cfg.Intake.OuttakeSpeed)
	default:
		r.hw.IntakeMotor.Set(0)
	}
}

// holdBox keeps the box shut. In manual mode open_box and close_box latch
// it instead.
func (r *Robot) holdBox() {
	if r.Manual() {
		switch {
		case r.input.Button("open_box"):
			r.boxOpen = true
		case r.input.Button("close_box"):
			r.boxOpen = false
		}
	}
	if r.boxOpen {
		r.hw.BoxServo.Set(r.cfg.Box.OpenPosition)
	} else {
		r.hw.BoxServo.Set(r.cfg.Box.ClosedPosition)
	}
}

func (r *Robot) holdDrone() {
	if r.launched {
		r.hw.DroneServo.Set(r.cfg.Drone.LaunchPosition)
	} else {
		r.hw.DroneServo.Set(r.cfg.Drone.StartPosition)
	}
}

func (r *Robot) runWinch() {
	switch {
	case r.input.Button("winch"):
		r.hw.WinchMotor.Set(r.cfg.Winch.Speed)
	case r.input.Button("unwinch"):
		r.hw.WinchMotor.Set(-r.cfg.Winch.Speed)
	default:
		r.hw.WinchMotor.Set(0)
	}
}

func (r *Robot) manualJoint(act hw.Actuator, axis string, cfg config.JointConfig) {
	v := r.input.Axis(axis)
	switch {
	case v >= cfg.Deadband:
		act.Set(cfg.ManualSpeed)
	case v <= -cfg.Deadband:
		act.Set(-cfg.ManualSpeed)
	default:
		act.Set(0)
	}
}
