package viz

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/cyclectl/internal/automation"
	"github.com/san-kum/cyclectl/internal/sim"
)

const (
	width           = 48
	height          = 16
	historyCapacity = 300
	axisStep        = 0.25
)

// Keys that push a supervisor event.
var eventKeys = map[string]string{
	"i": "intake",
	"p": "pickup",
	"r": "release",
	"a": "abort",
	"1": "level_low",
	"2": "level_medium",
	"3": "level_high",
	"N": "snap_north",
	"E": "snap_east",
	"S": "snap_south",
	"W": "snap_west",
	"o": "drive_override",
	"d": "drone_mode",
	"L": "drone_launch",
	"D": "drone_cancel",
	"G": "reset_gyro",
}

// Keys that toggle a held button.
var buttonKeys = map[string]string{
	"t": "outtake",
	"w": "winch",
	"b": "unwinch",
}

// Keys that nudge a held axis.
var axisKeys = map[string]struct {
	axis  string
	delta float64
}{
	"up":    {"forward", axisStep},
	"down":  {"forward", -axisStep},
	"left":  {"turn", axisStep},
	"right": {"turn", -axisStep},
	",":     {"strafe", -axisStep},
	".":     {"strafe", axisStep},
	"=":     {"elbow", axisStep},
	"-":     {"elbow", -axisStep},
	"0":     {"slide", axisStep},
	"9":     {"slide", -axisStep},
}

var graphChannels = []string{"elbow", "slide", "heading", "load"}

type TickMsg time.Time

// Model runs a rig in real time and renders it. Operator keys feed a
// Manual input source that the robot polls every tick.
type Model struct {
	rig     *sim.Rig
	input   *automation.Manual
	canvas  *Canvas
	theme   Theme
	styles  styles
	running bool
	help    bool
	graph   int
	last    sim.Sample
	history map[string][]float64
	events  []string
}

func NewModel(rig *sim.Rig, input *automation.Manual, theme string) Model {
	t := GetTheme(theme)
	return Model{
		rig:     rig,
		input:   input,
		canvas:  NewCanvas(width, height),
		theme:   t,
		styles:  newStyles(t),
		running: true,
		history: make(map[string][]float64),
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.rig.Clock.Period(), func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd { return m.tick() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg.String())
	case TickMsg:
		if m.running {
			m.step()
		}
		return m, m.tick()
	}
	return m, nil
}

func (m Model) handleKey(key string) (Model, tea.Cmd) {
	if ev, ok := eventKeys[key]; ok {
		m.input.Push(ev)
		m.events = append(m.events, ev)
		if len(m.events) > 5 {
			m.events = m.events[1:]
		}
		return m, nil
	}
	if b, ok := buttonKeys[key]; ok {
		m.input.Toggle(b)
		return m, nil
	}
	if a, ok := axisKeys[key]; ok {
		v := m.input.Axis(a.axis) + a.delta
		m.input.SetAxis(a.axis, math.Max(-1, math.Min(1, v)))
		return m, nil
	}

	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case " ", "space":
		m.running = !m.running
	case "x":
		for _, k := range axisKeys {
			m.input.SetAxis(k.axis, 0)
		}
	case "z":
		if m.input.Axis("slow") > 0 {
			m.input.SetAxis("slow", 0)
		} else {
			m.input.SetAxis("slow", 1)
		}
	case "g":
		m.graph = (m.graph + 1) % len(graphChannels)
	case "c":
		m.theme = NextTheme(m.theme)
		m.styles = newStyles(m.theme)
	case "?":
		m.help = !m.help
	case "n":
		// single step while paused
		if !m.running {
			m.step()
		}
	}
	return m, nil
}

func (m *Model) step() {
	m.last = m.rig.Loop.Step()
	for _, ch := range graphChannels {
		h := append(m.history[ch], m.last.Channels[ch])
		if len(h) > historyCapacity {
			h = h[1:]
		}
		m.history[ch] = h
	}
}

func (m Model) frame() Frame {
	cfg := m.rig.Config
	ch := m.last.Channels
	if ch == nil {
		ch = m.rig.Plant.Channels()
	}
	return Frame{
		Elbow:   ch["elbow"],
		Slide:   ch["slide"],
		Heading: ch["heading"],
		Load:    ch["load"],
		Lowered: math.Abs(ch["tilt"]-cfg.Intake.DownPosition) < math.Abs(ch["tilt"]-cfg.Intake.UpPosition),
		Open:    math.Abs(ch["box"]-cfg.Box.OpenPosition) < math.Abs(ch["box"]-cfg.Box.ClosedPosition),
	}
}

func (m Model) View() string {
	DrawRobot(m.canvas, m.frame())
	canvasView := m.styles.canvas.Render(m.canvas.String())

	var s strings.Builder
	st := m.styles
	status := st.idle.Render("RUNNING")
	if !m.running {
		status = st.active.Render("PAUSED")
	}
	s.WriteString(st.header.Render("CYCLECTL") + "  " + status + "\n")

	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.2fs  tick %d", m.last.Time, m.last.Tick))
	for _, axis := range []string{"maneuver", "cycle", "level"} {
		row(strings.ToUpper(axis[:1])+axis[1:], m.rig.Robot.Phases()[axis])
	}

	s.WriteString("\n" + st.header.Render("RESOURCES"))
	s.WriteString("\n")
	for _, h := range m.rig.Scheduler.State().Holders {
		name := h.Command
		if h.Default {
			name = st.label.Render(name)
		} else {
			name = st.active.Render(name)
		}
		s.WriteString(st.label.Render(string(h.Resource)) + name + "\n")
	}

	s.WriteString("\n" + st.header.Render("CONTROLLERS") + "\n")
	pids := m.rig.Robot.Controllers()
	for _, name := range slices.Sorted(maps.Keys(pids)) {
		pid := pids[name]
		mark := " "
		if pid.AtTarget() {
			mark = "✓"
		}
		row(name, fmt.Sprintf("sp %7.2f  err %7.2f  out %5.2f %s", pid.Setpoint(), pid.Error(), pid.Output(), mark))
	}

	stats := m.rig.Scheduler.Stats()
	if stats.Faults > 0 {
		s.WriteString("\n" + st.fault.Render(fmt.Sprintf("%d command faults", stats.Faults)) + "\n")
	}
	if len(m.events) > 0 {
		s.WriteString("\n")
		row("Events", strings.Join(m.events, " "))
	}

	name := graphChannels[m.graph]
	if series := m.history[name]; len(series) > 1 {
		chart := asciigraph.Plot(series, asciigraph.Height(5), asciigraph.Width(36), asciigraph.Caption(name))
		s.WriteString(st.graph.Render(chart) + "\n")
	}

	s.WriteString(st.help.Render("I:Intake P:Pickup R:Release A:Abort 1-3:Level d:Drone\nSP:Pause Q:Quit ?:Help"))
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, st.panel.Render(s.String()))
	if m.help {
		return helpText + "\n" + mainView
	}
	return mainView
}

const helpText = `
  i  intake       p  pickup        r  release     a  abort
  1  level low    2  level medium  3  level high
  N E S W  snap heading            o  drive override
  ↑ ↓  forward    ← →  turn        , .  strafe
  - =  elbow      9 0  slide       x  zero axes   z  slow mode
  d  drone mode   L  launch drone  D  cancel drone  G  reset gyro
  t  outtake      w  winch         b  unwinch
  g  graph        c  theme         n  step (paused)
  space pause     q  quit          ?  help
`

// Run starts the live view in the alternate screen.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
