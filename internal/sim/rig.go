package sim

import (
	"log/slog"

	"github.com/san-kum/cyclectl/internal/config"
	"github.com/san-kum/cyclectl/internal/hw"
	"github.com/san-kum/cyclectl/internal/robot"
	"github.com/san-kum/cyclectl/internal/scheduler"
)

// Rig is a fully wired simulated robot: plant, robot supervisor, scheduler
// and control loop sharing one tick clock. The clock is passed in so input
// sources that replay against time can share it.
type Rig struct {
	Config    *config.Config
	Clock     *hw.TickClock
	Plant     *Plant
	Robot     *robot.Robot
	Scheduler *scheduler.Scheduler
	Loop      *Loop
}

func NewRig(cfg *config.Config, integ Integrator, clock *hw.TickClock, source hw.InputSource, log *slog.Logger) (*Rig, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	plant := NewPlant(cfg, integ)
	sched := scheduler.New(scheduler.WithLogger(log.With("component", "scheduler")))

	r, err := robot.New(cfg, plant.Hardware(), clock, source, robot.WithLogger(log.With("component", "robot")))
	if err != nil {
		return nil, err
	}
	if err := r.Install(sched); err != nil {
		return nil, err
	}

	return &Rig{
		Config:    cfg,
		Clock:     clock,
		Plant:     plant,
		Robot:     r,
		Scheduler: sched,
		Loop:      NewLoop(sched, clock, plant, WithLogger(log.With("component", "loop"))),
	}, nil
}
