package scheduler_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/cyclectl/internal/command"
	"github.com/san-kum/cyclectl/internal/control"
	"github.com/san-kum/cyclectl/internal/hw"
	"github.com/san-kum/cyclectl/internal/scheduler"
)

const (
	arm   command.Resource = "arm"
	slide command.Resource = "slide"
)

type recorder struct {
	command.Base
	finishAfter int
	inits       int
	execs       int
	endCalls    int
	interrupted bool
	panicOn     string
	onExecute   func()
}

func newRecorder(name string, finishAfter int, res ...command.Resource) *recorder {
	p := &recorder{finishAfter: finishAfter}
	p.SetName(name)
	p.Require(res...)
	return p
}

func (p *recorder) Initialize() {
	p.inits++
	if p.panicOn == "initialize" {
		panic("boom")
	}
}

func (p *recorder) Execute() {
	p.execs++
	if p.onExecute != nil {
		p.onExecute()
	}
	if p.panicOn == "execute" {
		panic("boom")
	}
}

func (p *recorder) IsFinished() bool {
	return p.finishAfter >= 0 && p.execs >= p.finishAfter
}

func (p *recorder) End(interrupted bool) {
	p.endCalls++
	p.interrupted = interrupted
}

type joint struct{ pos, out float64 }

func (j *joint) Set(v float64) { j.out = v }
func (j *joint) Read() float64 { return j.pos }

type recordingSupervisor struct {
	calls   int
	onTick  func(s *scheduler.Scheduler)
	explode bool
}

func (r *recordingSupervisor) Advance(s *scheduler.Scheduler) {
	r.calls++
	if r.explode {
		panic("supervisor boom")
	}
	if r.onTick != nil {
		r.onTick(s)
	}
}

func (r *recordingSupervisor) Phases() map[string]string {
	return map[string]string{"cycle": "idle"}
}

var _ = Describe("Scheduler", func() {
	var (
		s       *scheduler.Scheduler
		holdArm *recorder
	)

	BeforeEach(func() {
		s = scheduler.New()
		holdArm = newRecorder("hold-arm", -1, arm)
		Expect(s.RegisterDefault(arm, holdArm)).To(Succeed())
	})

	Describe("default commands", func() {
		It("runs the default on an unclaimed resource every tick", func() {
			s.Tick()
			s.Tick()
			Expect(holdArm.inits).To(Equal(1))
			Expect(holdArm.execs).To(Equal(2))
			Expect(s.IsScheduled(holdArm)).To(BeTrue())

			cmd, isDefault := s.Holder(arm)
			Expect(cmd).To(BeIdenticalTo(holdArm))
			Expect(isDefault).To(BeTrue())
		})

		It("ignores cancel requests against a default", func() {
			s.Tick()
			Expect(s.Cancel(holdArm)).To(BeFalse())
			Expect(holdArm.endCalls).To(BeZero())
		})

		It("refuses to schedule a default explicitly", func() {
			Expect(s.Schedule(holdArm)).To(MatchError(scheduler.ErrDefaultCommand))
		})

		It("validates the default's requirements", func() {
			Expect(s.RegisterDefault(slide, newRecorder("x", -1, arm))).To(MatchError(scheduler.ErrInvalidDefault))
			Expect(s.RegisterDefault(slide, newRecorder("x", -1, arm, slide))).To(MatchError(scheduler.ErrInvalidDefault))
			Expect(s.RegisterDefault(slide, nil)).To(MatchError(scheduler.ErrNilCommand))
		})

		It("ends a running default that gets replaced", func() {
			s.Tick()
			replacement := newRecorder("hold-arm-2", -1, arm)
			Expect(s.RegisterDefault(arm, replacement)).To(Succeed())
			Expect(holdArm.interrupted).To(BeTrue())
			s.Tick()
			Expect(replacement.execs).To(Equal(1))
			Expect(holdArm.execs).To(Equal(1))
		})
	})

	Describe("scheduling", func() {
		It("preempts the default and reverts to it on the tick after finishing", func() {
			clock := hw.NewTickClock(20 * time.Millisecond)
			j := &joint{}
			pid := control.NewPID(0.05, 0, 0, 1, 1)
			move := command.NewMoveToSetpoint("", pid, j, j, clock, 100, arm)

			s.Tick()
			Expect(s.Schedule(move)).To(Succeed())
			Expect(holdArm.endCalls).To(Equal(1))
			Expect(holdArm.interrupted).To(BeTrue())

			cmd, isDefault := s.Holder(arm)
			Expect(cmd).To(BeIdenticalTo(move))
			Expect(isDefault).To(BeFalse())

			for i := 0; i < 1000 && s.IsScheduled(move); i++ {
				clock.Advance()
				s.Tick()
				j.pos += j.out * 200 * clock.Period().Seconds()
			}

			Expect(s.Status(move)).To(Equal(command.Finished))
			Expect(j.pos).To(BeNumerically("~", 100, 1))
			Expect(j.out).To(BeZero())

			cmd, isDefault = s.Holder(arm)
			Expect(cmd).To(BeIdenticalTo(holdArm))
			Expect(isDefault).To(BeTrue())
			Expect(holdArm.execs).To(Equal(1))

			s.Tick()
			Expect(holdArm.inits).To(Equal(2))
			Expect(holdArm.execs).To(Equal(2))
		})

		It("keeps at most one running command per resource", func() {
			cmds := []*recorder{
				newRecorder("a", 3, arm),
				newRecorder("b", 2, arm, slide),
				newRecorder("c", 4, slide),
				newRecorder("d", 1, arm),
			}
			for tick := 0; tick < 40; tick++ {
				Expect(s.Schedule(cmds[tick%len(cmds)])).To(Succeed())
				s.Tick()

				for _, r := range []command.Resource{arm, slide} {
					running := 0
					for _, c := range cmds {
						if s.Status(c) == command.Running && command.Overlaps(c.Requirements(), []command.Resource{r}) {
							running++
						}
					}
					Expect(running).To(BeNumerically("<=", 1), "resource %s at tick %d", r, tick)
				}
			}
		})

		It("interrupts a holder and releases all of its resources", func() {
			both := newRecorder("both", -1, arm, slide)
			Expect(s.Schedule(both)).To(Succeed())
			s.Tick()

			armOnly := newRecorder("arm-only", -1, arm)
			Expect(s.Schedule(armOnly)).To(Succeed())
			Expect(both.interrupted).To(BeTrue())
			Expect(s.Status(both)).To(Equal(command.Canceled))

			cmd, _ := s.Holder(slide)
			Expect(cmd).To(BeNil())
			Expect(s.Stats().Interrupted).To(Equal(uint64(1)))
		})

		It("rejects requests over a non-interruptible holder", func() {
			locked := newRecorder("locked", -1, arm)
			locked.SetInterruptible(false)
			Expect(s.Schedule(locked)).To(Succeed())
			s.Tick()

			err := s.Schedule(newRecorder("intruder", -1, arm, slide))
			Expect(errors.Is(err, scheduler.ErrResourceConflict)).To(BeTrue())

			var conflict *scheduler.ConflictError
			Expect(errors.As(err, &conflict)).To(BeTrue())
			Expect(conflict.Resource).To(Equal(arm))
			Expect(conflict.Holder).To(Equal("locked"))

			cmd, _ := s.Holder(arm)
			Expect(cmd).To(BeIdenticalTo(locked))
			Expect(locked.endCalls).To(BeZero())
			Expect(s.Stats().Rejected).To(Equal(uint64(1)))
		})

		It("treats scheduling an active command as a no-op", func() {
			p := newRecorder("p", -1, arm)
			Expect(s.Schedule(p)).To(Succeed())
			s.Tick()
			Expect(s.Schedule(p)).To(Succeed())
			Expect(p.endCalls).To(BeZero())
			Expect(s.Stats().Accepted).To(Equal(uint64(1)))
		})

		It("runs commands without resources alongside holders", func() {
			poller := newRecorder("poller", -1)
			holder := newRecorder("holder", -1, arm)
			Expect(s.Schedule(holder)).To(Succeed())
			Expect(s.Schedule(poller)).To(Succeed())
			s.Tick()
			Expect(poller.execs).To(Equal(1))
			Expect(holder.execs).To(Equal(1))
			Expect(s.IsScheduled(holder)).To(BeTrue())
		})

		It("forgets terminal statuses a tick after the command ended", func() {
			first := newRecorder("first", 1, arm)
			Expect(s.Schedule(first)).To(Succeed())
			s.Tick()
			Expect(s.Status(first)).To(Equal(command.Finished))

			s.Tick()
			Expect(s.Status(first)).To(Equal(command.Finished))

			s.Tick()
			Expect(s.Status(first)).To(Equal(command.Idle))

			for i := 0; i < 200; i++ {
				Expect(s.Schedule(newRecorder("burst", 1, arm))).To(Succeed())
				s.Tick()
			}
			Expect(s.State().Tracked).To(BeNumerically("<=", 2))
		})

		It("finishes an instant without executing it", func() {
			calls := 0
			inst := command.NewInstant("open", func() { calls++ }, arm)
			Expect(s.Schedule(inst)).To(Succeed())
			s.Tick()
			Expect(calls).To(Equal(1))
			Expect(s.Status(inst)).To(Equal(command.Finished))
			Expect(holdArm.execs).To(BeZero())
		})
	})

	Describe("cancel", func() {
		It("ends a running command as interrupted and reverts to the default", func() {
			p := newRecorder("p", -1, arm)
			Expect(s.Schedule(p)).To(Succeed())
			s.Tick()
			Expect(s.Cancel(p)).To(BeTrue())
			Expect(p.interrupted).To(BeTrue())
			Expect(s.Status(p)).To(Equal(command.Canceled))

			cmd, isDefault := s.Holder(arm)
			Expect(cmd).To(BeIdenticalTo(holdArm))
			Expect(isDefault).To(BeTrue())
			Expect(s.Cancel(p)).To(BeFalse())
		})

		It("stops a sequence at the active child", func() {
			clock := hw.NewTickClock(20 * time.Millisecond)
			a := newRecorder("a", 1, arm)
			b := newRecorder("b", -1, slide)
			c := newRecorder("c", 1, arm)
			seq := command.NewSequential("abc", a, command.NewWait(clock, 0), b, c)
			Expect(seq.Requirements()).To(ConsistOf(arm, slide))

			Expect(s.Schedule(seq)).To(Succeed())
			s.Tick()
			s.Tick()
			Expect(a.endCalls).To(Equal(1))
			Expect(a.interrupted).To(BeFalse())
			Expect(b.inits).To(Equal(1))

			Expect(s.Cancel(seq)).To(BeTrue())
			Expect(b.interrupted).To(BeTrue())
			s.Tick()
			Expect(c.inits).To(BeZero())
			Expect(s.Status(seq)).To(Equal(command.Canceled))
		})

		It("defers requests made during the pass to the end of it", func() {
			next := newRecorder("next", -1, arm)
			var deferredErr error
			first := newRecorder("first", -1, arm)
			first.onExecute = func() { deferredErr = s.Schedule(next) }

			Expect(s.Schedule(first)).To(Succeed())
			s.Tick()

			Expect(deferredErr).NotTo(HaveOccurred())
			Expect(first.interrupted).To(BeTrue())
			cmd, _ := s.Holder(arm)
			Expect(cmd).To(BeIdenticalTo(next))
			Expect(next.inits).To(BeZero())
		})

		It("cancels a command mid-pass before it runs again", func() {
			victim := newRecorder("victim", -1, slide)
			canceller := newRecorder("canceller", 1)
			canceller.onExecute = func() { s.Cancel(victim) }
			Expect(s.Schedule(victim)).To(Succeed())
			Expect(s.Schedule(canceller)).To(Succeed())
			s.Tick()
			Expect(victim.interrupted).To(BeTrue())
			Expect(s.IsScheduled(victim)).To(BeFalse())
		})

		It("ends a later command as interrupted even when it would finish this pass", func() {
			victim := newRecorder("victim", 2, slide)
			canceller := newRecorder("canceller", -1)
			var canceled bool
			Expect(s.Schedule(canceller)).To(Succeed())
			Expect(s.Schedule(victim)).To(Succeed())
			s.Tick()
			Expect(victim.execs).To(Equal(1))

			canceller.onExecute = func() { canceled = s.Cancel(victim) }
			s.Tick()

			Expect(canceled).To(BeTrue())
			Expect(victim.execs).To(Equal(1))
			Expect(victim.endCalls).To(Equal(1))
			Expect(victim.interrupted).To(BeTrue())
			Expect(s.Status(victim)).To(Equal(command.Canceled))
			Expect(s.Stats().Finished).To(BeZero())
		})

		It("lets a command cancel itself from Execute", func() {
			self := newRecorder("self", 1, arm)
			self.onExecute = func() { s.Cancel(self) }
			Expect(s.Schedule(self)).To(Succeed())
			s.Tick()

			Expect(self.endCalls).To(Equal(1))
			Expect(self.interrupted).To(BeTrue())
			Expect(s.Status(self)).To(Equal(command.Canceled))
			cmd, isDefault := s.Holder(arm)
			Expect(cmd).To(BeIdenticalTo(holdArm))
			Expect(isDefault).To(BeTrue())
		})

		It("releases a finished command before deferred schedules run", func() {
			done := newRecorder("done", 1, arm)
			follower := newRecorder("follower", -1, arm)
			trigger := newRecorder("trigger", 1)
			trigger.onExecute = func() { _ = s.Schedule(follower) }

			Expect(s.Schedule(done)).To(Succeed())
			Expect(s.Schedule(trigger)).To(Succeed())
			s.Tick()

			Expect(done.endCalls).To(Equal(1))
			Expect(done.interrupted).To(BeFalse())
			Expect(s.Status(done)).To(Equal(command.Finished))
			cmd, _ := s.Holder(arm)
			Expect(cmd).To(BeIdenticalTo(follower))
		})
	})

	Describe("faults", func() {
		It("cancels a command that panics and keeps ticking", func() {
			bad := newRecorder("bad", -1, arm)
			bad.panicOn = "execute"
			Expect(s.Schedule(bad)).To(Succeed())

			Expect(s.Tick).NotTo(Panic())
			Expect(s.Status(bad)).To(Equal(command.Canceled))
			Expect(bad.interrupted).To(BeTrue())
			Expect(s.Stats().Faults).To(Equal(uint64(1)))

			cmd, isDefault := s.Holder(arm)
			Expect(cmd).To(BeIdenticalTo(holdArm))
			Expect(isDefault).To(BeTrue())
		})

		It("does not end a command that failed to initialize", func() {
			bad := newRecorder("bad", -1, arm)
			bad.panicOn = "initialize"
			Expect(s.Schedule(bad)).To(Succeed())
			Expect(s.Tick).NotTo(Panic())
			Expect(bad.endCalls).To(BeZero())
			Expect(s.Status(bad)).To(Equal(command.Canceled))
		})
	})

	Describe("supervisor", func() {
		It("advances before commands run and reports phases", func() {
			p := newRecorder("from-supervisor", -1, arm)
			sv := &recordingSupervisor{}
			sv.onTick = func(s *scheduler.Scheduler) {
				if sv.calls == 1 {
					Expect(s.Schedule(p)).To(Succeed())
				}
			}
			s.SetSupervisor(sv)
			s.Tick()

			Expect(p.inits).To(Equal(1))
			Expect(p.execs).To(Equal(1))
			Expect(holdArm.execs).To(BeZero())

			snap := s.State()
			Expect(snap.Tick).To(Equal(uint64(1)))
			Expect(snap.Phases).To(HaveKeyWithValue("cycle", "idle"))
			Expect(snap.Holders).To(ContainElement(scheduler.Holding{Resource: arm, Command: "from-supervisor"}))
			Expect(snap.Commands).To(ConsistOf("from-supervisor"))
		})

		It("survives a panicking supervisor", func() {
			s.SetSupervisor(&recordingSupervisor{explode: true})
			Expect(s.Tick).NotTo(Panic())
			Expect(holdArm.execs).To(Equal(1))
			Expect(s.Stats().Faults).To(Equal(uint64(1)))
		})
	})
})
