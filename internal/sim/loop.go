package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/san-kum/cyclectl/internal/hw"
	"github.com/san-kum/cyclectl/internal/scheduler"
)

// Loop drives a scheduler at a fixed period against a simulated process.
// Each tick advances the clock, runs one scheduler pass, steps the process
// and records a Sample.
type Loop struct {
	sched     *scheduler.Scheduler
	clock     *hw.TickClock
	process   Process
	log       *slog.Logger
	metrics   []Metric
	observers []Observer

	budget   time.Duration
	ticks    int
	overruns int
}

type LoopOption func(*Loop)

func WithLogger(log *slog.Logger) LoopOption {
	return func(l *Loop) {
		l.log = log
	}
}

// WithBudget sets the wall time a scheduler pass may take before it counts
// as an overrun. It defaults to the clock period; zero disables the check.
func WithBudget(d time.Duration) LoopOption {
	return func(l *Loop) {
		l.budget = d
	}
}

func NewLoop(sched *scheduler.Scheduler, clock *hw.TickClock, process Process, opts ...LoopOption) *Loop {
	l := &Loop{
		sched:   sched,
		clock:   clock,
		process: process,
		log:     slog.Default(),
		budget:  clock.Period(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loop) AddMetric(m Metric)     { l.metrics = append(l.metrics, m) }
func (l *Loop) AddObserver(o Observer) { l.observers = append(l.observers, o) }

func (l *Loop) Scheduler() *scheduler.Scheduler { return l.sched }

func (l *Loop) Ticks() int { return l.ticks }

// Step runs a single tick.
func (l *Loop) Step() Sample {
	l.clock.Advance()

	start := time.Now()
	l.sched.Tick()
	elapsed := time.Since(start)
	if l.budget > 0 && elapsed > l.budget {
		l.overruns++
		l.log.Warn("tick overrun", "tick", l.ticks+1, "elapsed", elapsed, "budget", l.budget)
	}

	l.process.Step(l.clock.Period().Seconds())
	l.ticks++

	s := l.sample(elapsed)
	for _, m := range l.metrics {
		m.Observe(s)
	}
	for _, obs := range l.observers {
		obs.OnTick(s)
	}
	return s
}

func (l *Loop) sample(elapsed time.Duration) Sample {
	snap := l.sched.State()
	holders := make(map[string]string, len(snap.Holders))
	for _, h := range snap.Holders {
		holders[string(h.Resource)] = h.Command
	}
	return Sample{
		Tick:     l.ticks,
		Time:     l.clock.Now().Seconds(),
		Channels: l.process.Channels(),
		Outputs:  l.process.Outputs(),
		Phases:   snap.Phases,
		Holders:  holders,
		Elapsed:  elapsed,
	}
}

// Run executes ticks back to back without pacing.
func (l *Loop) Run(ctx context.Context, ticks int) (*Result, error) {
	if ticks <= 0 {
		return nil, fmt.Errorf("ticks must be positive, got %d", ticks)
	}
	for _, m := range l.metrics {
		m.Reset()
	}

	result := &Result{
		Samples: make([]Sample, 0, ticks),
		Metrics: make(map[string]float64),
	}
	overruns := l.overruns

	for i := 0; i < ticks; i++ {
		select {
		case <-ctx.Done():
			l.finish(result, overruns)
			return result, ctx.Err()
		default:
		}
		result.Samples = append(result.Samples, l.Step())
	}

	l.finish(result, overruns)
	return result, nil
}

func (l *Loop) finish(result *Result, overrunsBefore int) {
	for _, m := range l.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	result.Stats = l.sched.Stats()
	result.Overruns = l.overruns - overrunsBefore
}

// RunRealtime paces ticks with the clock period. It stops after ticks
// ticks (unbounded when ticks <= 0), when ctx is done, or when callback
// returns false.
func (l *Loop) RunRealtime(ctx context.Context, ticks int, callback func(Sample) bool) error {
	ticker := time.NewTicker(l.clock.Period())
	defer ticker.Stop()

	for i := 0; ticks <= 0 || i < ticks; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		s := l.Step()
		if callback != nil && !callback(s) {
			return nil
		}
	}
	return nil
}
