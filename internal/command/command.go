package command

import (
	"fmt"
	"slices"
)

// Resource identifies a physical output that at most one command may drive.
type Resource string

// Status is the lifecycle position of a scheduled command.
type Status int

const (
	Idle Status = iota
	Scheduled
	Running
	Finished
	Canceled
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scheduled:
		return "scheduled"
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Active reports whether the status holds resources.
func (s Status) Active() bool {
	return s == Scheduled || s == Running
}

// Command is a schedulable unit of behavior.
//
// The scheduler calls Initialize once when the command starts, Execute on
// every tick while it runs, and End exactly once when it finishes
// (interrupted=false) or is preempted or canceled (interrupted=true).
// Implementations must not block.
type Command interface {
	Initialize()
	Execute()
	IsFinished() bool
	End(interrupted bool)
	Requirements() []Resource
	Interruptible() bool
}

// Named is implemented by commands that carry a display name.
type Named interface {
	Name() string
}

// NameOf returns a human readable name for cmd.
func NameOf(cmd Command) string {
	if cmd == nil {
		return "<none>"
	}
	if n, ok := cmd.(Named); ok && n.Name() != "" {
		return n.Name()
	}
	return fmt.Sprintf("%T", cmd)
}

// Base carries the resource set, interruptible flag and name shared by all
// commands in this package. Its lifecycle methods are no-ops; embedders
// override what they need.
type Base struct {
	name             string
	requires         []Resource
	nonInterruptible bool
}

func (b *Base) Initialize()      {}
func (b *Base) Execute()         {}
func (b *Base) IsFinished() bool { return false }
func (b *Base) End(bool)         {}

func (b *Base) Name() string { return b.name }

// Requirements returns the declared resources, sorted and deduplicated.
func (b *Base) Requirements() []Resource { return b.requires }

func (b *Base) Interruptible() bool { return !b.nonInterruptible }

// Require adds resources to the declared set.
func (b *Base) Require(rs ...Resource) {
	b.requires = Union(b.requires, rs)
}

func (b *Base) SetName(name string) { b.name = name }

// SetInterruptible controls whether other commands may preempt this one.
func (b *Base) SetInterruptible(v bool) { b.nonInterruptible = !v }

// Union merges resource lists into a sorted set.
func Union(lists ...[]Resource) []Resource {
	var out []Resource
	for _, l := range lists {
		out = append(out, l...)
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// Overlaps reports whether two resource sets share an element.
func Overlaps(a, b []Resource) bool {
	for _, r := range a {
		if slices.Contains(b, r) {
			return true
		}
	}
	return false
}
