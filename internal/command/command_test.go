package command

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/san-kum/cyclectl/internal/control"
	"github.com/san-kum/cyclectl/internal/hw"
)

// recorder logs lifecycle calls into a shared journal.
type recorder struct {
	Base
	journal *[]string
	ticks   int
	needed  int
}

func newRecorder(name string, journal *[]string, ticks int, res ...Resource) *recorder {
	r := &recorder{journal: journal, needed: ticks}
	r.SetName(name)
	r.Require(res...)
	return r
}

func (r *recorder) Initialize() { *r.journal = append(*r.journal, r.Name()+".init") }
func (r *recorder) Execute() {
	r.ticks++
	*r.journal = append(*r.journal, r.Name()+".exec")
}
func (r *recorder) IsFinished() bool { return r.ticks >= r.needed }
func (r *recorder) End(interrupted bool) {
	if interrupted {
		*r.journal = append(*r.journal, r.Name()+".interrupted")
		return
	}
	*r.journal = append(*r.journal, r.Name()+".end")
}

func TestUnion(t *testing.T) {
	got := Union([]Resource{"b", "a"}, []Resource{"a", "c"})
	want := []Resource{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if !Overlaps([]Resource{"a"}, want) || Overlaps([]Resource{"z"}, want) {
		t.Error("overlap check wrong")
	}
}

func TestSequentialOrder(t *testing.T) {
	var journal []string
	a := newRecorder("a", &journal, 1, "arm")
	b := newRecorder("b", &journal, 2, "slide")
	c := newRecorder("c", &journal, 1, "arm")
	seq := NewSequential("abc", a, b, c)

	if got := seq.Requirements(); !reflect.DeepEqual(got, []Resource{"arm", "slide"}) {
		t.Errorf("unexpected requirements %v", got)
	}

	seq.Initialize()
	for i := 0; i < 10 && !seq.IsFinished(); i++ {
		seq.Execute()
	}
	if !seq.IsFinished() {
		t.Fatal("sequence did not finish")
	}

	want := []string{
		"a.init", "a.exec", "a.end",
		"b.init", "b.exec", "b.exec", "b.end",
		"c.init", "c.exec", "c.end",
	}
	if !reflect.DeepEqual(journal, want) {
		t.Errorf("expected %v\ngot %v", want, journal)
	}
}

func TestSequentialCancelStopsLaterChildren(t *testing.T) {
	var journal []string
	a := newRecorder("a", &journal, 1)
	b := newRecorder("b", &journal, 5)
	c := newRecorder("c", &journal, 1)
	seq := NewSequential("abc", a, b, c)

	seq.Initialize()
	seq.Execute() // a finishes, b starts
	seq.Execute() // b runs
	if seq.Current() != b {
		t.Fatalf("expected b active, got %s", NameOf(seq.Current()))
	}
	seq.End(true)

	want := []string{"a.init", "a.exec", "a.end", "b.init", "b.exec", "b.interrupted"}
	if !reflect.DeepEqual(journal, want) {
		t.Errorf("expected %v\ngot %v", want, journal)
	}
	if seq.IsFinished() {
		t.Error("canceled sequence must not report finished")
	}
}

func TestSequentialSkipsInstants(t *testing.T) {
	var journal []string
	log := func(s string) func() { return func() { journal = append(journal, s) } }
	seq := NewSequential("", NewInstant("one", log("one")), NewInstant("two", log("two")), newRecorder("r", &journal, 1))

	seq.Initialize()
	want := []string{"one", "two", "r.init"}
	if !reflect.DeepEqual(journal, want) {
		t.Errorf("expected %v, got %v", want, journal)
	}
	if seq.Step() != 2 {
		t.Errorf("expected step 2, got %d", seq.Step())
	}
}

func TestSequentialOnlyInstantsFinishesOnInitialize(t *testing.T) {
	n := 0
	seq := NewSequential("", NewInstant("x", func() { n++ }), NewInstant("y", func() { n++ }))
	seq.Initialize()
	if !seq.IsFinished() || n != 2 {
		t.Errorf("expected finished after 2 actions, finished=%v n=%d", seq.IsFinished(), n)
	}
}

func TestSequentialNested(t *testing.T) {
	var journal []string
	inner := NewSequential("inner", newRecorder("a", &journal, 1), newRecorder("b", &journal, 1))
	outer := NewSequential("outer", inner, newRecorder("c", &journal, 1))
	outer.Initialize()
	for i := 0; i < 10 && !outer.IsFinished(); i++ {
		outer.Execute()
	}
	want := []string{"a.init", "a.exec", "a.end", "b.init", "b.exec", "b.end", "c.init", "c.exec", "c.end"}
	if !reflect.DeepEqual(journal, want) {
		t.Errorf("expected %v\ngot %v", want, journal)
	}
}

func TestSequentialInterruptible(t *testing.T) {
	a := NewInstant("a", nil)
	b := NewInstant("b", nil)
	b.SetInterruptible(false)
	if NewSequential("", a, b).Interruptible() {
		t.Error("sequence with a non-interruptible child must be non-interruptible")
	}
	if !NewSequential("", a).Interruptible() {
		t.Error("expected interruptible sequence")
	}
}

func TestWait(t *testing.T) {
	clock := hw.NewTickClock(20 * time.Millisecond)
	w := NewWait(clock, 100*time.Millisecond)
	w.Initialize()

	ticks := 0
	for !w.IsFinished() {
		clock.Advance()
		ticks++
		if ticks > 100 {
			t.Fatal("wait never finished")
		}
	}
	if ticks != 5 {
		t.Errorf("expected 5 ticks, got %d", ticks)
	}
}

func TestWaitZero(t *testing.T) {
	w := NewWait(hw.NewTickClock(time.Millisecond), 0)
	w.Initialize()
	if !w.IsFinished() {
		t.Error("zero wait should finish immediately")
	}
}

func TestFuncHooks(t *testing.T) {
	var journal []string
	done := false
	f := NewFunc("f", "arm")
	f.OnInit = func() { journal = append(journal, "init") }
	f.OnExecute = func() { journal = append(journal, "exec") }
	f.OnEnd = func(interrupted bool) {
		if interrupted {
			journal = append(journal, "interrupted")
		}
	}
	f.Done = func() bool { return done }

	f.Initialize()
	f.Execute()
	if f.IsFinished() {
		t.Error("should not be finished")
	}
	done = true
	if !f.IsFinished() {
		t.Error("should be finished")
	}
	f.End(true)

	want := []string{"init", "exec", "interrupted"}
	if !reflect.DeepEqual(journal, want) {
		t.Errorf("expected %v, got %v", want, journal)
	}
	if NewRun("r", func() {}).IsFinished() {
		t.Error("run command must never finish")
	}
}

func TestWaitUntil(t *testing.T) {
	ready := false
	w := NewWaitUntil("ready", func() bool { return ready })
	if w.IsFinished() {
		t.Error("should wait")
	}
	ready = true
	if !w.IsFinished() {
		t.Error("should finish")
	}
}

type joint struct {
	pos, out float64
}

func (j *joint) Set(v float64) { j.out = v }
func (j *joint) Read() float64 { return j.pos }

func (j *joint) step(rate, dt float64) {
	j.pos += j.out * rate * dt
}

func TestMoveToSetpointConverges(t *testing.T) {
	clock := hw.NewTickClock(20 * time.Millisecond)
	pid := control.NewPID(0.05, 0, 0, 1, 1)
	j := &joint{}
	cmd := NewMoveToSetpoint("", pid, j, j, clock, 90, "elbow")

	cmd.Initialize()
	for i := 0; i < 500; i++ {
		cmd.Execute()
		if cmd.IsFinished() {
			break
		}
		j.step(200, 0.02)
		clock.Advance()
	}
	if !cmd.IsFinished() {
		t.Fatalf("did not reach target, pos=%f", j.pos)
	}
	if math.Abs(j.pos-90) > 1 {
		t.Errorf("expected position near 90, got %f", j.pos)
	}
	cmd.End(false)
	if j.out != 0 {
		t.Errorf("expected neutral output after end, got %f", j.out)
	}
}

func TestMoveToSetpointNeutralOnInterrupt(t *testing.T) {
	clock := hw.NewTickClock(20 * time.Millisecond)
	j := &joint{}
	cmd := NewMoveToSetpoint("", control.NewPID(1, 0, 0, 1, 0), j, j, clock, 50, "slide")
	cmd.Initialize()
	clock.Advance()
	cmd.Execute()
	if j.out != 1 {
		t.Fatalf("expected saturated output, got %f", j.out)
	}
	cmd.End(true)
	if j.out != 0 {
		t.Errorf("expected neutral output, got %f", j.out)
	}
}

func TestMoveToSetpointDrivesOnFirstTick(t *testing.T) {
	clock := hw.NewTickClock(20 * time.Millisecond)
	clock.Advance()
	j := &joint{}
	cmd := NewMoveToSetpoint("", control.NewPID(1, 0, 0, 1, 0), j, j, clock, 50, "slide")

	cmd.Initialize()
	cmd.Execute()
	if j.out != 1 {
		t.Errorf("expected full output in the initializing tick, got %f", j.out)
	}
}

type drivetrain struct{ forward, strafe, turn float64 }

func (d *drivetrain) Drive(f, s, t float64) { d.forward, d.strafe, d.turn = f, s, t }

func TestSnapTurnsTowardAngle(t *testing.T) {
	clock := hw.NewTickClock(20 * time.Millisecond)
	pid := control.NewPID(0.02, 0, 0, 1, 2)
	pid.EnableContinuousInput(-180, 180)
	heading := -170.0
	d := &drivetrain{}
	cmd := NewSnap(pid, d, hw.SensorFunc(func() float64 { return heading }), clock, 170, func() (float64, float64) { return 0.5, 0 }, "drive")

	cmd.Initialize()
	cmd.Execute()
	if d.turn >= 0 {
		t.Errorf("expected negative turn across the wrap, got %f", d.turn)
	}
	if d.forward != 0.5 {
		t.Errorf("expected driver translation passed through, got %f", d.forward)
	}
	cmd.End(false)
	if d.turn != 0 || d.forward != 0 {
		t.Error("expected drivetrain stopped")
	}
}
