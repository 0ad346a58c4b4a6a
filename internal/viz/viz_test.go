package viz

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/cyclectl/internal/automation"
	"github.com/san-kum/cyclectl/internal/config"
	"github.com/san-kum/cyclectl/internal/hw"
	"github.com/san-kum/cyclectl/internal/integrators"
	"github.com/san-kum/cyclectl/internal/logging"
	"github.com/san-kum/cyclectl/internal/sim"
)

func TestCanvas(t *testing.T) {
	c := NewCanvas(4, 2)
	if w, h := c.Dots(); w != 8 || h != 8 {
		t.Fatalf("expected 8x8 dots, got %dx%d", w, h)
	}

	c.Line(0, 0, 7, 7)
	for i := 0; i < 8; i++ {
		if !c.IsSet(i, i) {
			t.Errorf("diagonal dot %d not set", i)
		}
	}
	c.Set(100, 100)
	c.Set(-1, 3)

	rows := strings.Split(c.String(), "\n")
	if len(rows) != 2 || len([]rune(rows[0])) != 4 {
		t.Errorf("unexpected canvas shape %q", c.String())
	}

	c.Clear()
	if c.IsSet(0, 0) {
		t.Error("clear should reset dots")
	}
}

func newTestModel(t *testing.T) (Model, *automation.Manual) {
	t.Helper()
	cfg := config.DefaultConfig()
	input := automation.NewManual()
	clock := hw.NewTickClock(cfg.Period())
	rig, err := sim.NewRig(cfg, integrators.NewRK4(), clock, input, logging.Discard())
	if err != nil {
		t.Fatal(err)
	}
	return NewModel(rig, input, "field"), input
}

func press(m Model, key string) Model {
	var msg tea.KeyMsg
	switch key {
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModelKeys(t *testing.T) {
	m, input := newTestModel(t)

	m = press(m, "i")
	m = press(m, "3")
	for i := 0; i < 6; i++ {
		m = press(m, "up")
	}
	m = press(m, "t")
	m = press(m, "w")

	in := input.Poll()
	if strings.Join(in.Events, ",") != "intake,level_high" {
		t.Errorf("unexpected events %v", in.Events)
	}
	if in.Axis("forward") != 1 {
		t.Errorf("forward should clamp at 1, got %f", in.Axis("forward"))
	}
	if !in.Button("outtake") || !in.Button("winch") {
		t.Error("outtake and winch should toggle on")
	}

	m = press(m, "x")
	if input.Axis("forward") != 0 {
		t.Error("x should zero the axes")
	}

	m = press(m, " ")
	if m.running {
		t.Error("space should pause")
	}
	m = press(m, "n")
	if m.last.Tick != 1 {
		t.Errorf("n should step once while paused, got tick %d", m.last.Tick)
	}

	next, _ := m.Update(TickMsg{})
	if next.(Model).last.Tick != 1 {
		t.Error("paused model should not advance on tick")
	}
}

func TestModelView(t *testing.T) {
	m, _ := newTestModel(t)
	m = press(m, "i")
	for i := 0; i < 3; i++ {
		next, _ := m.Update(TickMsg{})
		m = next.(Model)
	}

	view := m.View()
	for _, want := range []string{"CYCLECTL", "intake", "manual-drive", "elbow"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	m = press(m, "?")
	if !strings.Contains(m.View(), "drive override") {
		t.Error("help overlay missing")
	}
}
