package automation

import (
	"maps"

	"github.com/san-kum/cyclectl/internal/hw"
)

// Player replays a scenario against a clock. It implements hw.InputSource;
// each step's events are delivered exactly once, on the first poll at or
// after the step time.
type Player struct {
	steps   []Step
	clock   hw.Clock
	next    int
	axes    map[string]float64
	buttons map[string]bool
}

func NewPlayer(s *Scenario, clock hw.Clock) *Player {
	return &Player{
		steps:   s.sorted(),
		clock:   clock,
		axes:    make(map[string]float64),
		buttons: make(map[string]bool),
	}
}

func (p *Player) Poll() hw.Input {
	now := p.clock.Now().Seconds()
	var events []string
	for p.next < len(p.steps) && p.steps[p.next].At <= now+1e-9 {
		st := p.steps[p.next]
		events = append(events, st.Events...)
		maps.Copy(p.axes, st.Axes)
		maps.Copy(p.buttons, st.Buttons)
		p.next++
	}
	return hw.Input{
		Events:  events,
		Axes:    maps.Clone(p.axes),
		Buttons: maps.Clone(p.buttons),
	}
}

// Done reports whether every step has been delivered.
func (p *Player) Done() bool { return p.next >= len(p.steps) }

// Manual is an input source fed by an interactive front end. Events pushed
// between polls are delivered on the next poll; axes and buttons hold.
type Manual struct {
	events  []string
	axes    map[string]float64
	buttons map[string]bool
}

func NewManual() *Manual {
	return &Manual{
		axes:    make(map[string]float64),
		buttons: make(map[string]bool),
	}
}

func (m *Manual) Push(events ...string) { m.events = append(m.events, events...) }

func (m *Manual) SetAxis(name string, v float64) { m.axes[name] = v }

func (m *Manual) Axis(name string) float64 { return m.axes[name] }

func (m *Manual) SetButton(name string, held bool) { m.buttons[name] = held }

// Toggle flips a button and returns its new state.
func (m *Manual) Toggle(name string) bool {
	m.buttons[name] = !m.buttons[name]
	return m.buttons[name]
}

func (m *Manual) Poll() hw.Input {
	in := hw.Input{
		Events:  m.events,
		Axes:    maps.Clone(m.axes),
		Buttons: maps.Clone(m.buttons),
	}
	m.events = nil
	return in
}
