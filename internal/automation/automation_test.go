package automation

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/san-kum/cyclectl/internal/hw"
)

func TestPlayerDeliversEventsOnce(t *testing.T) {
	s := &Scenario{
		Name:     "t",
		Duration: 1,
		Steps: []Step{
			{At: 0.04, Events: []string{"release"}},
			{At: 0.02, Events: []string{"intake"}, Axes: map[string]float64{"forward": 0.5}},
		},
	}
	clock := hw.NewTickClock(20 * time.Millisecond)
	p := NewPlayer(s, clock)

	if in := p.Poll(); len(in.Events) != 0 {
		t.Fatalf("expected no events at t=0, got %v", in.Events)
	}

	clock.Advance()
	in := p.Poll()
	if len(in.Events) != 1 || in.Events[0] != "intake" {
		t.Fatalf("expected [intake], got %v", in.Events)
	}
	if in.Axis("forward") != 0.5 {
		t.Errorf("expected forward 0.5, got %f", in.Axis("forward"))
	}

	if in := p.Poll(); len(in.Events) != 0 {
		t.Errorf("events must not repeat, got %v", in.Events)
	}

	clock.Advance()
	in = p.Poll()
	if len(in.Events) != 1 || in.Events[0] != "release" {
		t.Fatalf("expected [release], got %v", in.Events)
	}
	if in.Axis("forward") != 0.5 {
		t.Error("axes should hold between steps")
	}
	if !p.Done() {
		t.Error("player should be done")
	}
}

func TestPlayerCatchesUp(t *testing.T) {
	s, err := Builtin("snap")
	if err != nil {
		t.Fatal(err)
	}
	clock := hw.NewTickClock(time.Second)
	clock.Set(10 * time.Second)

	in := NewPlayer(s, clock).Poll()
	want := []string{"snap_east", "snap_south", "drive_override", "snap_north"}
	if len(in.Events) != len(want) {
		t.Fatalf("expected %v, got %v", want, in.Events)
	}
	for i := range want {
		if in.Events[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], in.Events[i])
		}
	}
	if in.Axis("forward") != 0 {
		t.Error("later step should override forward axis")
	}
}

func TestManual(t *testing.T) {
	m := NewManual()
	m.Push("intake", "level_low")
	m.SetAxis("turn", -1)

	in := m.Poll()
	if len(in.Events) != 2 {
		t.Fatalf("expected 2 events, got %v", in.Events)
	}
	if in.Axis("turn") != -1 {
		t.Error("axis not reported")
	}

	if !m.Toggle("outtake") {
		t.Error("toggle should press the button")
	}
	in = m.Poll()
	if len(in.Events) != 0 {
		t.Error("events should clear after poll")
	}
	if !in.Button("outtake") || in.Axis("turn") != -1 {
		t.Error("buttons and axes should hold")
	}
}

func TestBuiltins(t *testing.T) {
	names := Builtins()
	if len(names) != 5 {
		t.Errorf("expected 5 builtins, got %v", names)
	}
	for _, name := range names {
		s, err := Builtin(name)
		if err != nil {
			t.Fatal(err)
		}
		if err := s.Validate(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}

	if _, err := Builtin("nope"); !errors.Is(err, ErrUnknownScenario) {
		t.Errorf("expected ErrUnknownScenario, got %v", err)
	}
	if _, err := Resolve("missing.yaml"); !errors.Is(err, ErrUnknownScenario) {
		t.Errorf("expected ErrUnknownScenario, got %v", err)
	}

	a, _ := Builtin("abort")
	a.Steps[0].At = 4
	b, _ := Builtin("abort")
	if b.Steps[0].At == 4 {
		t.Error("Builtin should return a copy")
	}
}

func TestScenarioFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	s, _ := Builtin("full-cycle")
	if err := SaveScenario(path, s); err != nil {
		t.Fatal(err)
	}

	loaded, err := Resolve(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Name != "full-cycle" || len(loaded.Steps) != len(s.Steps) {
		t.Errorf("unexpected scenario %+v", loaded)
	}
	if loaded.Steps[0].Events[1] != "intake" {
		t.Errorf("unexpected events %v", loaded.Steps[0].Events)
	}

	bad := &Scenario{Name: "bad", Duration: 1, Steps: []Step{{At: 2}}}
	if err := bad.Validate(); err == nil {
		t.Error("step past duration should fail")
	}
	if err := (&Scenario{Name: "zero"}).Validate(); err == nil {
		t.Error("zero duration should fail")
	}
}
