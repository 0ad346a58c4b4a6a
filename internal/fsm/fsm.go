// Package fsm implements small total state machines for supervisory logic.
//
// A Machine is total: every (state, event) pair has an outcome. Events with
// no transition from the current state, or whose guard refuses, leave the
// state unchanged. A machine found in a state outside its declared set is
// reset to its safe state instead of failing.
package fsm

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

type (
	State string
	Event string
)

var (
	ErrUnknownState        = errors.New("fsm: unknown state")
	ErrDuplicateTransition = errors.New("fsm: duplicate transition")
)

// Transition moves the machine From a state To another on Event. Guard, when
// set, must return true for the transition to fire. Do runs after the state
// has changed.
type Transition struct {
	From  State
	Event Event
	To    State
	Guard func() bool
	Do    func()
}

type key struct {
	from  State
	event Event
}

// EnterFunc is called after the machine enters a state.
type EnterFunc func(from State, ev Event)

type Machine struct {
	name    string
	log     *slog.Logger
	safe    State
	current State

	states  []State
	known   map[State]bool
	table   map[key]Transition
	order   []key
	onEnter map[State][]EnterFunc

	fired   uint64
	ignored uint64
	resets  uint64
}

// New creates a machine over states, starting in (and resetting to) safe.
// The safe state is always part of the state set.
func New(name string, safe State, states ...State) *Machine {
	m := &Machine{
		name:    name,
		log:     slog.Default(),
		safe:    safe,
		current: safe,
		known:   make(map[State]bool),
		table:   make(map[key]Transition),
		onEnter: make(map[State][]EnterFunc),
	}
	m.addState(safe)
	for _, s := range states {
		m.addState(s)
	}
	return m
}

func (m *Machine) addState(s State) {
	if m.known[s] {
		return
	}
	m.known[s] = true
	m.states = append(m.states, s)
}

func (m *Machine) SetLogger(log *slog.Logger) { m.log = log }

func (m *Machine) Name() string { return m.name }

// Add registers transitions. Both ends must be declared states and each
// (from, event) pair may only be defined once.
func (m *Machine) Add(ts ...Transition) error {
	for _, t := range ts {
		if !m.known[t.From] {
			return fmt.Errorf("%w: %s (from %s --%s-->)", ErrUnknownState, t.From, t.From, t.Event)
		}
		if !m.known[t.To] {
			return fmt.Errorf("%w: %s (%s --%s-->)", ErrUnknownState, t.To, t.From, t.Event)
		}
		k := key{t.From, t.Event}
		if _, dup := m.table[k]; dup {
			return fmt.Errorf("%w: %s --%s-->", ErrDuplicateTransition, t.From, t.Event)
		}
		m.table[k] = t
		m.order = append(m.order, k)
	}
	return nil
}

// MustAdd is Add for statically built tables.
func (m *Machine) MustAdd(ts ...Transition) {
	if err := m.Add(ts...); err != nil {
		panic(err)
	}
}

// OnEnter registers fn to run whenever the machine enters s.
func (m *Machine) OnEnter(s State, fn EnterFunc) {
	m.onEnter[s] = append(m.onEnter[s], fn)
}

// Current returns the current state, repairing an unrecognized one first.
func (m *Machine) Current() State {
	m.repair()
	return m.current
}

func (m *Machine) Is(s State) bool { return m.Current() == s }

func (m *Machine) Safe() State { return m.safe }

func (m *Machine) repair() {
	if m.known[m.current] {
		return
	}
	m.log.Warn("unknown state, resetting", "machine", m.name, "state", m.current, "safe", m.safe)
	m.current = m.safe
	m.resets++
}

// Can reports whether ev would fire from the current state.
func (m *Machine) Can(ev Event) bool {
	t, ok := m.table[key{m.Current(), ev}]
	return ok && (t.Guard == nil || t.Guard())
}

// Fire applies ev and reports whether a transition happened.
func (m *Machine) Fire(ev Event) bool {
	from := m.Current()
	t, ok := m.table[key{from, ev}]
	if !ok {
		m.ignored++
		m.log.Debug("event ignored", "machine", m.name, "state", from, "event", ev)
		return false
	}
	if t.Guard != nil && !t.Guard() {
		m.ignored++
		m.log.Debug("event refused by guard", "machine", m.name, "state", from, "event", ev)
		return false
	}

	m.current = t.To
	m.fired++
	m.log.Debug("transition", "machine", m.name, "from", from, "event", ev, "to", t.To)
	if t.Do != nil {
		t.Do()
	}
	for _, fn := range m.onEnter[t.To] {
		fn(from, ev)
	}
	return true
}

// Reset returns to the safe state without running hooks.
func (m *Machine) Reset() {
	m.current = m.safe
}

// Set forces the current state without running hooks. Values outside the
// declared set are repaired on the next access.
func (m *Machine) Set(s State) {
	m.current = s
}

// States lists declared states in declaration order.
func (m *Machine) States() []State {
	return slices.Clone(m.states)
}

// Events lists every event that appears in the table, sorted.
func (m *Machine) Events() []Event {
	seen := make(map[Event]bool)
	var out []Event
	for _, k := range m.order {
		if !seen[k.event] {
			seen[k.event] = true
			out = append(out, k.event)
		}
	}
	slices.Sort(out)
	return out
}

// Transitions lists the table in registration order.
func (m *Machine) Transitions() []Transition {
	out := make([]Transition, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.table[k])
	}
	return out
}

// Counters reports fired transitions, ignored events and unknown-state resets.
func (m *Machine) Counters() (fired, ignored, resets uint64) {
	return m.fired, m.ignored, m.resets
}

func (m *Machine) String() string {
	return fmt.Sprintf("%s(%s)", m.name, m.Current())
}
