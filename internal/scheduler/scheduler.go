package scheduler

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/san-kum/cyclectl/internal/command"
)

// Supervisor is advanced once at the start of every tick, before any
// command runs. Schedule and Cancel calls made from Advance take effect
// immediately.
type Supervisor interface {
	Advance(s *Scheduler)
}

// PhaseReporter is implemented by supervisors that expose their current
// phases for snapshots.
type PhaseReporter interface {
	Phases() map[string]string
}

type slot struct {
	def     command.Command
	defInit bool
	holder  command.Command
}

// Stats counts scheduler activity since construction.
type Stats struct {
	Ticks       uint64 `json:"ticks"`
	Accepted    uint64 `json:"accepted"`
	Rejected    uint64 `json:"rejected"`
	Interrupted uint64 `json:"interrupted"`
	Finished    uint64 `json:"finished"`
	Canceled    uint64 `json:"canceled"`
	Faults      uint64 `json:"faults"`
}

// Scheduler maps every resource to the command currently driving it.
//
// It is a plain value owned by the control loop; several independent
// instances may coexist. It is not safe for concurrent use: all calls must
// come from the goroutine that calls Tick.
type Scheduler struct {
	log        *slog.Logger
	supervisor Supervisor

	slots    map[command.Resource]*slot
	order    []command.Resource
	defaults map[command.Command]command.Resource
	active   []command.Command
	status   map[command.Command]command.Status

	// retired maps commands that reached a terminal status to the tick it
	// happened on; prune forgets them a tick later.
	retired map[command.Command]uint64

	inPass          bool
	pendingSchedule []command.Command

	stats Stats
}

type Option func(*Scheduler)

func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) {
		s.log = log
	}
}

func WithSupervisor(sv Supervisor) Option {
	return func(s *Scheduler) {
		s.supervisor = sv
	}
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		log:      slog.Default(),
		slots:    make(map[command.Resource]*slot),
		defaults: make(map[command.Command]command.Resource),
		status:   make(map[command.Command]command.Status),
		retired:  make(map[command.Command]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) SetSupervisor(sv Supervisor) { s.supervisor = sv }

func (s *Scheduler) slot(r command.Resource) *slot {
	sl, ok := s.slots[r]
	if !ok {
		sl = &slot{}
		s.slots[r] = sl
		s.order = append(s.order, r)
	}
	return sl
}

// RegisterDefault installs cmd as the fallback for r. The command must
// require exactly r. A previously registered default that is currently
// running is ended as interrupted.
func (s *Scheduler) RegisterDefault(r command.Resource, cmd command.Command) error {
	if cmd == nil {
		return ErrNilCommand
	}
	reqs := cmd.Requirements()
	if len(reqs) != 1 || reqs[0] != r {
		return fmt.Errorf("%w: %s must require exactly %s, got %v", ErrInvalidDefault, command.NameOf(cmd), r, reqs)
	}
	if owner, ok := s.defaults[cmd]; ok && owner != r {
		return fmt.Errorf("%w: %s is already the default for %s", ErrInvalidDefault, command.NameOf(cmd), owner)
	}
	if s.status[cmd].Active() {
		return fmt.Errorf("%w: %s is scheduled", ErrInvalidDefault, command.NameOf(cmd))
	}

	sl := s.slot(r)
	if sl.def != nil {
		if sl.defInit {
			s.endDefault(sl, true)
		}
		delete(s.defaults, sl.def)
	}
	sl.def = cmd
	sl.defInit = false
	s.defaults[cmd] = r
	return nil
}

// Schedule makes cmd the active holder of every resource it declares.
//
// The request is rejected with a *ConflictError when any of those resources
// is held by a non-interruptible command. Otherwise current holders are
// ended as interrupted and cmd starts on the next execution pass. Requests
// made by commands during the execution pass are deferred to the end of
// that pass and return nil; a later rejection is only logged and counted.
// Scheduling a command that is already scheduled is a no-op.
func (s *Scheduler) Schedule(cmd command.Command) error {
	if cmd == nil {
		return ErrNilCommand
	}
	if _, ok := s.defaults[cmd]; ok {
		return ErrDefaultCommand
	}
	if s.inPass {
		s.pendingSchedule = append(s.pendingSchedule, cmd)
		return nil
	}
	return s.schedule(cmd)
}

func (s *Scheduler) schedule(cmd command.Command) error {
	if s.status[cmd].Active() {
		return nil
	}

	reqs := cmd.Requirements()
	for _, r := range reqs {
		sl, ok := s.slots[r]
		if !ok || sl.holder == nil {
			continue
		}
		if !sl.holder.Interruptible() {
			s.stats.Rejected++
			err := &ConflictError{Resource: r, Holder: command.NameOf(sl.holder), Command: command.NameOf(cmd)}
			s.log.Warn("schedule rejected", "command", err.Command, "resource", r, "holder", err.Holder)
			return err
		}
	}

	for _, r := range reqs {
		sl := s.slot(r)
		switch {
		case sl.holder != nil:
			s.log.Debug("command interrupted", "command", command.NameOf(sl.holder), "by", command.NameOf(cmd))
			s.stats.Interrupted++
			s.end(sl.holder, true)
		case sl.defInit:
			s.endDefault(sl, true)
		}
	}

	for _, r := range reqs {
		s.slots[r].holder = cmd
	}
	s.active = append(s.active, cmd)
	s.status[cmd] = command.Scheduled
	delete(s.retired, cmd)
	s.stats.Accepted++
	s.log.Debug("command scheduled", "command", command.NameOf(cmd), "resources", reqs)
	return nil
}

// Cancel ends cmd as interrupted and releases its resources. It reports
// whether a cancellation happened; default commands and commands that are
// not scheduled are ignored. A cancel requested during the execution pass
// takes effect on the spot: the command does not run for the rest of the
// pass, whatever IsFinished would have reported.
func (s *Scheduler) Cancel(cmd command.Command) bool {
	if cmd == nil {
		return false
	}
	if _, ok := s.defaults[cmd]; ok {
		return false
	}
	if !s.status[cmd].Active() {
		return false
	}
	s.stats.Canceled++
	s.end(cmd, true)
	return true
}

// CancelAll cancels every explicitly scheduled command.
func (s *Scheduler) CancelAll() {
	for _, cmd := range slices.Clone(s.active) {
		s.Cancel(cmd)
	}
}

// Tick runs one pass of the control loop: advance the supervisor, execute
// every active command, run defaults on unclaimed resources, then apply
// schedule requests deferred during the pass.
func (s *Scheduler) Tick() {
	s.stats.Ticks++

	if s.supervisor != nil {
		s.advance()
	}
	s.prune()

	idle := make([]command.Resource, 0, len(s.order))
	for _, r := range s.order {
		if sl := s.slots[r]; sl.holder == nil && sl.def != nil {
			idle = append(idle, r)
		}
	}

	s.inPass = true
	for _, cmd := range slices.Clone(s.active) {
		if s.status[cmd].Active() {
			s.run(cmd)
		}
	}
	for _, r := range idle {
		s.runDefault(s.slots[r])
	}
	s.inPass = false

	s.drain()
}

func (s *Scheduler) advance() {
	defer func() {
		if r := recover(); r != nil {
			s.stats.Faults++
			s.log.Error("supervisor fault", "panic", r)
		}
	}()
	s.supervisor.Advance(s)
}

func (s *Scheduler) run(cmd command.Command) {
	if s.status[cmd] == command.Scheduled {
		if !s.call(cmd, "initialize", cmd.Initialize) {
			return
		}
		// canceled from its own Initialize
		if s.status[cmd] != command.Scheduled {
			return
		}
		s.status[cmd] = command.Running
		if s.checkFinished(cmd) {
			return
		}
	}
	if !s.call(cmd, "execute", cmd.Execute) {
		return
	}
	if s.status[cmd] != command.Running {
		return
	}
	s.checkFinished(cmd)
}

// checkFinished ends cmd and releases its resources when it reports
// finished. It returns true when cmd is no longer active.
func (s *Scheduler) checkFinished(cmd command.Command) bool {
	var done bool
	if !s.call(cmd, "is_finished", func() { done = cmd.IsFinished() }) {
		return true
	}
	if !done {
		return false
	}
	s.stats.Finished++
	s.end(cmd, false)
	s.log.Debug("command finished", "command", command.NameOf(cmd))
	return true
}

func (s *Scheduler) runDefault(sl *slot) {
	if sl.def == nil || sl.holder != nil {
		return
	}
	def := sl.def
	if !sl.defInit {
		if !s.call(def, "initialize", def.Initialize) {
			return
		}
		sl.defInit = true
	}
	if !s.call(def, "execute", def.Execute) {
		return
	}
	var done bool
	if s.call(def, "is_finished", func() { done = def.IsFinished() }) && done {
		s.endDefault(sl, false)
	}
}

func (s *Scheduler) endDefault(sl *slot, interrupted bool) {
	def := sl.def
	sl.defInit = false
	s.call(def, "end", func() { def.End(interrupted) })
}

func (s *Scheduler) drain() {
	schedules := s.pendingSchedule
	s.pendingSchedule = nil
	for _, cmd := range schedules {
		_ = s.schedule(cmd)
	}
}

// end calls End on a running command, releases its resources and records
// the terminal status. Commands that never initialized are not ended.
func (s *Scheduler) end(cmd command.Command, interrupted bool) {
	if s.status[cmd] == command.Running {
		s.call(cmd, "end", func() { cmd.End(interrupted) })
	}
	s.release(cmd)
	if interrupted {
		s.status[cmd] = command.Canceled
	} else {
		s.status[cmd] = command.Finished
	}
	s.retired[cmd] = s.stats.Ticks
}

// prune forgets terminal statuses older than the previous tick, so commands
// built fresh on every supervisor transition do not pile up. A terminal
// status stays readable through the whole tick after the command ended.
func (s *Scheduler) prune() {
	for cmd, tick := range s.retired {
		if tick+1 >= s.stats.Ticks {
			continue
		}
		delete(s.retired, cmd)
		if !s.status[cmd].Active() {
			delete(s.status, cmd)
		}
	}
}

func (s *Scheduler) release(cmd command.Command) {
	for _, r := range cmd.Requirements() {
		if sl, ok := s.slots[r]; ok && sl.holder == cmd {
			sl.holder = nil
		}
	}
	s.active = slices.DeleteFunc(s.active, func(c command.Command) bool { return c == cmd })
}

// call runs one lifecycle method, converting a panic into a fault so the
// loop keeps ticking.
func (s *Scheduler) call(cmd command.Command, phase string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			s.fault(cmd, phase, r)
		}
	}()
	fn()
	return true
}

func (s *Scheduler) fault(cmd command.Command, phase string, r any) {
	s.stats.Faults++
	s.log.Error("command fault", "command", command.NameOf(cmd), "phase", phase, "panic", r)

	if res, ok := s.defaults[cmd]; ok {
		s.slots[res].defInit = false
		return
	}
	if !s.status[cmd].Active() || phase == "end" {
		return
	}
	if s.status[cmd] == command.Running {
		func() {
			defer func() { _ = recover() }()
			cmd.End(true)
		}()
	}
	s.release(cmd)
	s.status[cmd] = command.Canceled
	s.retired[cmd] = s.stats.Ticks
}

// Status returns the lifecycle status of cmd. A default command reports
// Running while it drives its unclaimed resource, Scheduled until its first
// pass, and Idle while preempted. Finished and Canceled are kept through
// the tick after the command ended; after that the command reads Idle.
func (s *Scheduler) Status(cmd command.Command) command.Status {
	if r, ok := s.defaults[cmd]; ok {
		sl := s.slots[r]
		switch {
		case sl.holder != nil:
			return command.Idle
		case sl.defInit:
			return command.Running
		default:
			return command.Scheduled
		}
	}
	return s.status[cmd]
}

// IsScheduled reports whether cmd currently holds its resources.
func (s *Scheduler) IsScheduled(cmd command.Command) bool {
	return s.Status(cmd).Active()
}

// Holder returns the command driving r and whether it is the default.
func (s *Scheduler) Holder(r command.Resource) (command.Command, bool) {
	sl, ok := s.slots[r]
	if !ok {
		return nil, false
	}
	if sl.holder != nil {
		return sl.holder, false
	}
	return sl.def, sl.def != nil
}

// Default returns the registered default for r.
func (s *Scheduler) Default(r command.Resource) command.Command {
	if sl, ok := s.slots[r]; ok {
		return sl.def
	}
	return nil
}

// Resources lists known resources in registration order.
func (s *Scheduler) Resources() []command.Resource {
	return slices.Clone(s.order)
}

// Active lists explicitly scheduled commands in schedule order.
func (s *Scheduler) Active() []command.Command {
	return slices.Clone(s.active)
}

func (s *Scheduler) Stats() Stats { return s.stats }

// Holding is one row of a snapshot.
type Holding struct {
	Resource command.Resource `json:"resource"`
	Command  string           `json:"command"`
	Default  bool             `json:"default"`
}

// Snapshot is a read-only view of the scheduler between ticks.
type Snapshot struct {
	Tick     uint64            `json:"tick"`
	Holders  []Holding         `json:"holders"`
	Commands []string          `json:"commands"`
	Phases   map[string]string `json:"phases,omitempty"`
	Tracked  int               `json:"tracked"`
	Stats    Stats             `json:"stats"`
}

// State captures holders, active commands and supervisor phases.
func (s *Scheduler) State() Snapshot {
	snap := Snapshot{
		Tick:     s.stats.Ticks,
		Holders:  make([]Holding, 0, len(s.order)),
		Commands: make([]string, 0, len(s.active)),
		Tracked:  len(s.status),
		Stats:    s.stats,
	}
	for _, r := range s.order {
		cmd, isDefault := s.Holder(r)
		h := Holding{Resource: r, Default: isDefault, Command: "-"}
		if cmd != nil {
			h.Command = command.NameOf(cmd)
		}
		snap.Holders = append(snap.Holders, h)
	}
	for _, cmd := range s.active {
		snap.Commands = append(snap.Commands, command.NameOf(cmd))
	}
	if pr, ok := s.supervisor.(PhaseReporter); ok {
		snap.Phases = pr.Phases()
	}
	return snap
}
