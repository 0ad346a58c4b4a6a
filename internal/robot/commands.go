package robot

import (
	"fmt"
	"math"
	"time"

	"github.com/san-kum/cyclectl/internal/command"
	"github.com/san-kum/cyclectl/internal/hw"
)

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// MoveElbow returns a command that drives the elbow to a named position.
func (r *Robot) MoveElbow(position string) *command.MoveToSetpoint {
	target := r.cfg.Elbow.Positions[position]
	return command.NewMoveToSetpoint("elbow→"+position, r.elbowPID, r.hw.Elbow, r.hw.ElbowPos, r.clock, target, Elbow)
}

// MoveSlide returns a command that drives the slide to a named position.
func (r *Robot) MoveSlide(position string) *command.MoveToSetpoint {
	target := r.cfg.Slide.Positions[position]
	return command.NewMoveToSetpoint("slide→"+position, r.slidePID, r.hw.Slide, r.hw.SlidePos, r.clock, target, Slide)
}

func (r *Robot) closeBox() *command.Instant {
	return command.NewInstant("close-box", func() { r.hw.BoxServo.Set(r.cfg.Box.ClosedPosition) }, Box)
}

func (r *Robot) openBox() *command.Instant {
	return command.NewInstant("open-box", func() { r.hw.BoxServo.Set(r.cfg.Box.OpenPosition) }, Box)
}

func (r *Robot) stowIntake() *command.Instant {
	return command.NewInstant("stow-intake", func() {
		r.hw.IntakeMotor.Set(0)
		r.hw.IntakeTilt.Set(r.cfg.Intake.UpPosition)
	}, Intake)
}

// IntakeMode closes the box, lowers the intake, brings the arm down to the
// intake position and starts the rollers.
func (r *Robot) IntakeMode() *command.Sequential {
	return command.NewSequential("intake-mode",
		r.closeBox(),
		command.NewInstant("lower-intake", func() { r.hw.IntakeTilt.Set(r.cfg.Intake.DownPosition) }, Intake),
		r.MoveSlide("in"),
		r.MoveElbow("intake"),
		command.NewInstant("start-rollers", func() { r.hw.IntakeMotor.Set(r.cfg.Intake.IntakeSpeed) }, Intake),
	)
}

// SecureLoad lets the rollers finish, stows the intake and levels the arm.
func (r *Robot) SecureLoad() *command.Sequential {
	return command.NewSequential("secure-load",
		command.NewWait(r.clock, seconds(r.cfg.Cycle.SecureDelay)),
		r.MoveSlide("in"),
		r.stowIntake(),
		r.MoveElbow("level"),
	)
}

// Transfer raises the arm, then extends the slide, to a scoring level.
func (r *Robot) Transfer(level string) *command.Sequential {
	return command.NewSequential(fmt.Sprintf("transfer(%s)", level),
		r.MoveElbow(level),
		r.MoveSlide(level),
	)
}

// Release opens the box for the configured hold time and closes it again.
func (r *Robot) Release() *command.Sequential {
	return command.NewSequential("release",
		r.openBox(),
		command.NewWait(r.clock, seconds(r.cfg.Box.ReleaseHold)),
		r.closeBox(),
	)
}

// Home retracts the slide and parks the arm in the driving position.
func (r *Robot) Home() *command.Sequential {
	return command.NewSequential("home",
		r.stowIntake(),
		r.MoveSlide("in"),
		r.MoveElbow("driving"),
	)
}

// Setup puts the servos into their start positions.
func (r *Robot) Setup() *command.Sequential {
	return command.NewSequential("setup",
		command.NewInstant("arm-drone", func() { r.hw.DroneServo.Set(r.cfg.Drone.StartPosition) }, Drone),
		r.closeBox(),
		r.stowIntake(),
	)
}

// DroneMode parks the slide and raises the arm to the launch angle.
func (r *Robot) DroneMode() *command.Sequential {
	return command.NewSequential("drone-mode",
		r.closeBox(),
		r.MoveSlide("in"),
		r.MoveElbow("drone"),
	)
}

// LaunchDrone fires the launcher, holds the arm while the drone clears and
// then homes. The launcher is not re-armed.
func (r *Robot) LaunchDrone() *command.Sequential {
	return command.NewSequential("launch-drone",
		command.NewInstant("release-drone", func() {
			r.launched = true
			r.hw.DroneServo.Set(r.cfg.Drone.LaunchPosition)
		}, Drone),
		command.NewWait(r.clock, seconds(r.cfg.Drone.LaunchHold)),
		r.Home(),
	)
}

// ResetGyro makes the current heading the field zero. It requires no
// resource, so it runs alongside whatever drives.
func (r *Robot) ResetGyro() *command.Instant {
	return command.NewInstant("reset-gyro", func() {
		r.headingOffset = r.hw.Heading.Read()
	})
}

// Snap turns to a field heading in degrees while the driver keeps
// translating with the sticks.
func (r *Robot) Snap(angle float64) *command.Snap {
	return command.NewSnap(r.headingPID, r.hw.Drive, hw.SensorFunc(r.Heading), r.clock, angle, r.translation, Drive)
}

// translation returns the driver's forward and strafe in the robot frame.
// Field-centric sticks are rotated by the heading first.
func (r *Robot) translation() (forward, strafe float64) {
	scale := r.driveScale()
	forward = deadband(r.input.Axis("forward"), r.cfg.Drive.Deadband) * scale
	strafe = deadband(r.input.Axis("strafe"), r.cfg.Drive.Deadband) * scale
	if !r.cfg.Drive.FieldCentric {
		return forward, strafe
	}
	sin, cos := math.Sincos(r.Heading() * math.Pi / 180)
	return forward*cos - strafe*sin, forward*sin + strafe*cos
}

func (r *Robot) driveScale() float64 {
	scale := r.cfg.Drive.InputMultiplier
	if r.input.Axis("slow") >= 0.5 {
		scale *= r.cfg.Drive.SlowScale
	}
	return scale
}

func deadband(v, band float64) float64 {
	if v > -band && v < band {
		return 0
	}
	return v
}
