package integrators

import (
	"math"
	"testing"

	"github.com/san-kum/cyclectl/internal/sim"
)

type simpleDynamics struct{}

func (s *simpleDynamics) Derivative(x sim.State, u sim.Control, t float64) sim.State {
	return sim.State{x[1], -x[0]}
}

func (s *simpleDynamics) StateDim() int   { return 2 }
func (s *simpleDynamics) ControlDim() int { return 0 }

// lagDynamics is a first-order motor lag: v' = (k*u - v) / tau.
type lagDynamics struct {
	k, tau float64
}

func (l *lagDynamics) Derivative(x sim.State, u sim.Control, t float64) sim.State {
	return sim.State{(l.k*u[0] - x[0]) / l.tau}
}

func (l *lagDynamics) StateDim() int   { return 1 }
func (l *lagDynamics) ControlDim() int { return 1 }

func TestRK4Accuracy(t *testing.T) {
	dyn := &simpleDynamics{}
	integ := NewRK4()

	x0 := sim.State{1.0, 0.0}
	u := sim.Control{}
	dt := 0.01
	steps := 100

	x := x0
	for i := 0; i < steps; i++ {
		x = integ.Step(dyn, x, u, float64(i)*dt, dt)
	}

	expectedX := math.Cos(float64(steps) * dt)
	expectedV := -math.Sin(float64(steps) * dt)

	if math.Abs(x[0]-expectedX) > 1e-4 {
		t.Errorf("position error too large: got %.6f, expected %.6f", x[0], expectedX)
	}

	if math.Abs(x[1]-expectedV) > 1e-4 {
		t.Errorf("velocity error too large: got %.6f, expected %.6f", x[1], expectedV)
	}
}

func TestMotorLagStep(t *testing.T) {
	dyn := &lagDynamics{k: 120, tau: 0.05}
	u := sim.Control{1}
	dt := 0.02

	tests := []struct {
		name  string
		integ sim.Integrator
		tol   float64
	}{
		{"rk4", NewRK4(), 1e-2},
		{"euler", NewEuler(), 5},
	}

	for _, tt := range tests {
		x := sim.State{0}
		for i := 0; i < 10; i++ {
			x = tt.integ.Step(dyn, x, u, float64(i)*dt, dt)
		}
		expected := 120 * (1 - math.Exp(-0.2/0.05))
		if math.Abs(x[0]-expected) > tt.tol {
			t.Errorf("%s: got %.4f, expected %.4f", tt.name, x[0], expected)
		}
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"rk4", "euler", ""} {
		if _, err := ByName(name); err != nil {
			t.Errorf("%q: %v", name, err)
		}
	}
	if _, err := ByName("verlet"); err == nil {
		t.Error("expected error for unknown integrator")
	}
}
