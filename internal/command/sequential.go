package command

import "strings"

// Sequential runs its children strictly in order, one at a time.
//
// Its declared resources are the union of every child's resources, fixed at
// construction, so nothing can claim an actuator between two steps of the
// sequence. Children that are already finished right after Initialize
// (instants, zero waits) are stepped over within the same tick.
type Sequential struct {
	Base
	children []Command
	cursor   int
}

func NewSequential(name string, children ...Command) *Sequential {
	s := &Sequential{children: children, cursor: -1}
	s.SetName(name)
	interruptible := true
	for _, c := range children {
		s.Require(c.Requirements()...)
		if !c.Interruptible() {
			interruptible = false
		}
	}
	s.SetInterruptible(interruptible)
	return s
}

func (s *Sequential) Initialize() {
	s.cursor = 0
	if len(s.children) == 0 {
		return
	}
	s.children[0].Initialize()
	s.skipFinished()
}

func (s *Sequential) Execute() {
	if s.cursor < 0 || s.cursor >= len(s.children) {
		return
	}
	s.children[s.cursor].Execute()
	s.skipFinished()
}

// skipFinished ends the current child while it reports finished and starts
// the next one.
func (s *Sequential) skipFinished() {
	for s.cursor < len(s.children) && s.children[s.cursor].IsFinished() {
		s.children[s.cursor].End(false)
		s.cursor++
		if s.cursor < len(s.children) {
			s.children[s.cursor].Initialize()
		}
	}
}

func (s *Sequential) IsFinished() bool {
	return s.cursor >= len(s.children)
}

// End interrupts only the active child; later children never start.
func (s *Sequential) End(interrupted bool) {
	if interrupted && s.cursor >= 0 && s.cursor < len(s.children) {
		s.children[s.cursor].End(true)
	}
	s.cursor = -1
}

// Current returns the active child, or nil when not running.
func (s *Sequential) Current() Command {
	if s.cursor < 0 || s.cursor >= len(s.children) {
		return nil
	}
	return s.children[s.cursor]
}

// Step returns the index of the active child, -1 when not running.
func (s *Sequential) Step() int {
	if s.cursor >= len(s.children) {
		return -1
	}
	return s.cursor
}

func (s *Sequential) Len() int { return len(s.children) }

func (s *Sequential) Name() string {
	if s.Base.Name() != "" {
		return s.Base.Name()
	}
	names := make([]string, len(s.children))
	for i, c := range s.children {
		names[i] = NameOf(c)
	}
	return "seq[" + strings.Join(names, ",") + "]"
}
