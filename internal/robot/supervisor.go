package robot

import (
	"github.com/san-kum/cyclectl/internal/command"
	"github.com/san-kum/cyclectl/internal/fsm"
	"github.com/san-kum/cyclectl/internal/scheduler"
)

// Maneuver axis.
const (
	Manual   fsm.State = "manual"
	Snapping fsm.State = "snapping"

	SnapNorth     fsm.Event = "snap_north"
	SnapEast      fsm.Event = "snap_east"
	SnapSouth     fsm.Event = "snap_south"
	SnapWest      fsm.Event = "snap_west"
	DriveOverride fsm.Event = "drive_override"
	Snapped       fsm.Event = "snapped"
)

// Operating cycle axis.
const (
	CycleIdle     fsm.State = "idle"
	CycleIntake   fsm.State = "intake"
	CycleSecure   fsm.State = "secure"
	CycleTransfer fsm.State = "transfer"
	CycleRelease  fsm.State = "release"
	CycleReset    fsm.State = "reset"
	CycleDrone    fsm.State = "drone"

	StartIntake fsm.Event = "intake"
	Pickup      fsm.Event = "pickup"
	Loaded      fsm.Event = "loaded"
	Secured     fsm.Event = "secured"
	ReleaseLoad fsm.Event = "release"
	Released    fsm.Event = "released"
	Homed       fsm.Event = "homed"
	Abort       fsm.Event = "abort"
	Preempted   fsm.Event = "preempted"
	DroneMode   fsm.Event = "drone_mode"
	LaunchDrone fsm.Event = "drone_launch"
	DroneCancel fsm.Event = "drone_cancel"
)

// ResetGyroEvent schedules ResetGyro. It belongs to neither axis.
const ResetGyroEvent = "reset_gyro"


// Heading in degrees for each snap event.
var snapAngles = []struct {
	event fsm.Event
	angle float64
}{
	{SnapNorth, 0},
	{SnapEast, -90},
	{SnapSouth, 180},
	{SnapWest, 90},
}

// Events that select the scoring level instead of driving a transition.
var levelEvents = map[string]string{
	"level_low":    "low",
	"level_medium": "medium",
	"level_high":   "high",
}

func (r *Robot) newManeuverMachine() *fsm.Machine {
	m := fsm.New("maneuver", Manual, Snapping)
	m.SetLogger(r.log)
	for _, sa := range snapAngles {
		m.MustAdd(
			fsm.Transition{From: Manual, Event: sa.event, To: Snapping, Do: func() { r.startSnap(sa.angle) }},
			fsm.Transition{From: Snapping, Event: sa.event, To: Snapping, Do: func() { r.startSnap(sa.angle) }},
		)
	}
	m.MustAdd(
		fsm.Transition{From: Snapping, Event: DriveOverride, To: Manual, Do: r.stopSnap},
		fsm.Transition{From: Snapping, Event: Snapped, To: Manual, Do: r.clearSnap},
		fsm.Transition{From: Snapping, Event: Preempted, To: Manual, Do: r.clearSnap},
	)
	return m
}

func (r *Robot) newCycleMachine() *fsm.Machine {
	m := fsm.New("cycle", CycleIdle, CycleIntake, CycleSecure, CycleTransfer, CycleRelease, CycleReset, CycleDrone)
	m.SetLogger(r.log)
	m.MustAdd(
		fsm.Transition{From: CycleIdle, Event: StartIntake, To: CycleIntake, Do: func() { r.startStep(r.IntakeMode()) }},
		fsm.Transition{From: CycleIntake, Event: Pickup, To: CycleSecure, Do: func() { r.startStep(r.SecureLoad()) }},
		fsm.Transition{From: CycleIntake, Event: Loaded, To: CycleSecure, Do: func() { r.startStep(r.SecureLoad()) }},
		fsm.Transition{From: CycleSecure, Event: Secured, To: CycleTransfer, Do: func() { r.startStep(r.Transfer(r.level)) }},
		fsm.Transition{From: CycleTransfer, Event: ReleaseLoad, To: CycleRelease, Guard: r.stepDone, Do: func() { r.startStep(r.Release()) }},
		fsm.Transition{From: CycleRelease, Event: Released, To: CycleReset, Do: func() { r.startStep(r.Home()) }},
		fsm.Transition{From: CycleReset, Event: Homed, To: CycleIdle, Do: r.clearStep},
		fsm.Transition{From: CycleIdle, Event: DroneMode, To: CycleDrone, Do: func() { r.startStep(r.DroneMode()) }},
		fsm.Transition{From: CycleDrone, Event: LaunchDrone, To: CycleReset, Guard: r.stepDone, Do: func() { r.startStep(r.LaunchDrone()) }},
		fsm.Transition{From: CycleDrone, Event: DroneCancel, To: CycleReset, Do: func() { r.startStep(r.Home()) }},
	)
	for _, s := range []fsm.State{CycleIntake, CycleSecure, CycleTransfer, CycleRelease, CycleDrone} {
		m.MustAdd(fsm.Transition{From: s, Event: Abort, To: CycleReset, Do: func() { r.startStep(r.Home()) }})
	}
	for _, s := range []fsm.State{CycleIntake, CycleSecure, CycleTransfer, CycleRelease, CycleReset, CycleDrone} {
		m.MustAdd(fsm.Transition{From: s, Event: Preempted, To: CycleIdle, Do: r.clearStep})
	}
	return m
}

// Advance polls the input source and moves both axes. External events are
// applied first; an axis that moved on an external event skips its
// automatic transition for this tick. In manual mode the cycle axis stays
// idle and ignores its events.
func (r *Robot) Advance(s *scheduler.Scheduler) {
	r.sched = s
	if r.source != nil {
		r.input = r.source.Poll()
	}
	r.snapStatus = r.observe(r.snap, r.snapStatus)
	r.stepStatus = r.observe(r.step, r.stepStatus)

	var maneuverMoved, cycleMoved bool
	for _, name := range r.input.Events {
		if level, ok := levelEvents[name]; ok {
			r.level = level
			continue
		}
		if name == ResetGyroEvent {
			if err := s.Schedule(r.ResetGyro()); err != nil {
				r.log.Warn("gyro reset rejected", "error", err)
			}
			continue
		}
		ev := fsm.Event(name)
		if r.maneuver.Fire(ev) {
			maneuverMoved = true
		}
		if !r.Manual() && r.cycle.Fire(ev) {
			cycleMoved = true
		}
	}

	if !maneuverMoved {
		if ev, ok := r.maneuverAuto(); ok {
			r.maneuver.Fire(ev)
		}
	}
	if !cycleMoved && !r.Manual() {
		if ev, ok := r.cycleAuto(); ok {
			r.cycle.Fire(ev)
		}
	}
}

func (r *Robot) maneuverAuto() (fsm.Event, bool) {
	if !r.maneuver.Is(Snapping) || r.snap == nil {
		return "", false
	}
	switch r.snapStatus {
	case command.Finished:
		return Snapped, true
	case command.Canceled:
		return Preempted, true
	}
	return "", false
}

func (r *Robot) cycleAuto() (fsm.Event, bool) {
	state := r.cycle.Current()
	if state == CycleIdle {
		return "", false
	}
	if r.step != nil && r.stepStatus == command.Canceled {
		return Preempted, true
	}

	switch state {
	case CycleIntake:
		if r.hw.Load != nil && r.hw.Load.Read() >= r.cfg.Cycle.LoadThreshold {
			return Loaded, true
		}
	case CycleSecure:
		if r.stepDone() {
			return Secured, true
		}
	case CycleRelease:
		if r.stepDone() {
			return Released, true
		}
	case CycleReset:
		if r.stepDone() {
			return Homed, true
		}
	}
	return "", false
}

// observe refreshes the status seen for cmd. Terminal statuses stick.
func (r *Robot) observe(cmd command.Command, last command.Status) command.Status {
	if cmd == nil {
		return command.Idle
	}
	if last == command.Finished || last == command.Canceled {
		return last
	}
	return r.sched.Status(cmd)
}

func (r *Robot) stepDone() bool {
	return r.step != nil && r.stepStatus == command.Finished
}

// startStep replaces the cycle's running command. A step the scheduler
// refuses counts as preempted, so the cycle falls back to idle on the next
// tick instead of waiting on it.
func (r *Robot) startStep(cmd command.Command) {
	if r.step != nil {
		r.sched.Cancel(r.step)
	}
	r.step, r.stepStatus = cmd, command.Scheduled
	if err := r.sched.Schedule(cmd); err != nil {
		r.log.Warn("cycle step rejected", "command", command.NameOf(cmd), "error", err)
		r.stepStatus = command.Canceled
	}
}

func (r *Robot) clearStep() {
	r.step, r.stepStatus = nil, command.Idle
}

func (r *Robot) startSnap(angle float64) {
	if r.snap != nil {
		r.sched.Cancel(r.snap)
	}
	r.snap, r.snapStatus = r.Snap(angle), command.Scheduled
	if err := r.sched.Schedule(r.snap); err != nil {
		r.log.Warn("snap rejected", "angle", angle, "error", err)
		r.snapStatus = command.Canceled
	}
}

func (r *Robot) stopSnap() {
	if r.snap != nil {
		r.sched.Cancel(r.snap)
	}
	r.clearSnap()
}

func (r *Robot) clearSnap() {
	r.snap, r.snapStatus = nil, command.Idle
}
