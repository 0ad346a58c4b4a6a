package automation

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"sort"

	"gopkg.in/yaml.v3"
)

var ErrUnknownScenario = errors.New("automation: unknown scenario")

// Scenario is a scripted sequence of operator inputs.
type Scenario struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Duration    float64 `yaml:"duration"`
	Steps       []Step  `yaml:"steps"`
}

// Step fires Events at time At (seconds) and updates the held axes and
// buttons. Axes and buttons keep their value until a later step changes
// them.
type Step struct {
	At      float64            `yaml:"at"`
	Events  []string           `yaml:"events,omitempty"`
	Axes    map[string]float64 `yaml:"axes,omitempty"`
	Buttons map[string]bool    `yaml:"buttons,omitempty"`
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := scenario.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &scenario, nil
}

// SaveScenario writes a scenario as YAML.
func SaveScenario(path string, s *Scenario) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (s *Scenario) Validate() error {
	if s.Duration <= 0 {
		return fmt.Errorf("scenario %q: duration must be positive", s.Name)
	}
	for i, st := range s.Steps {
		if st.At < 0 || st.At > s.Duration {
			return fmt.Errorf("scenario %q: step %d at %.3fs is outside [0, %.3f]", s.Name, i+1, st.At, s.Duration)
		}
	}
	return nil
}

// sorted returns the steps ordered by time, keeping file order for ties.
func (s *Scenario) sorted() []Step {
	steps := slices.Clone(s.Steps)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].At < steps[j].At })
	return steps
}

var builtins = map[string]*Scenario{
	"full-cycle": {
		Name:        "full-cycle",
		Description: "intake until loaded, transfer high, release, home",
		Duration:    14,
		Steps: []Step{
			{At: 0.2, Events: []string{"level_high", "intake"}},
			{At: 6.0, Events: []string{"release"}},
			{At: 7.5, Events: []string{"release"}},
		},
	},
	"abort": {
		Name:        "abort",
		Description: "start intake, abort while collecting",
		Duration:    5,
		Steps: []Step{
			{At: 0.2, Events: []string{"intake"}},
			{At: 0.6, Events: []string{"abort"}},
		},
	},
	"snap": {
		Name:        "snap",
		Description: "heading snaps with driver translation and an override",
		Duration:    5,
		Steps: []Step{
			{At: 0.2, Events: []string{"snap_east"}, Axes: map[string]float64{"forward": 0.5}},
			{At: 2.0, Events: []string{"snap_south"}},
			{At: 2.3, Events: []string{"drive_override"}, Axes: map[string]float64{"forward": 0}},
			{At: 3.0, Events: []string{"snap_north"}},
		},
	},
	"drone": {
		Name:        "drone",
		Description: "zero the gyro, raise the arm, launch the drone, run the winch",
		Duration:    7,
		Steps: []Step{
			{At: 0.2, Events: []string{"reset_gyro", "drone_mode"}},
			{At: 2.0, Events: []string{"drone_launch"}},
			{At: 4.5, Buttons: map[string]bool{"winch": true}},
			{At: 5.5, Buttons: map[string]bool{"winch": false}},
		},
	},
	"manual": {
		Name:        "manual",
		Description: "operator drives the joints by stick",
		Duration:    4,
		Steps: []Step{
			{At: 0.2, Axes: map[string]float64{"elbow": 1}},
			{At: 1.2, Axes: map[string]float64{"elbow": 0, "slide": 1}},
			{At: 2.0, Axes: map[string]float64{"slide": 0, "turn": 0.5, "slow": 1}},
			{At: 3.0, Axes: map[string]float64{"turn": 0}, Buttons: map[string]bool{"outtake": true}},
		},
	},
}

// Builtin returns a copy of a built-in scenario.
func Builtin(name string) (*Scenario, error) {
	s, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScenario, name)
	}
	c := *s
	c.Steps = slices.Clone(s.Steps)
	return &c, nil
}

func Builtins() []string {
	return slices.Sorted(maps.Keys(builtins))
}

// Resolve returns the built-in scenario called name, or loads name as a
// YAML file.
func Resolve(name string) (*Scenario, error) {
	if s, err := Builtin(name); err == nil {
		return s, nil
	}
	if _, err := os.Stat(name); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScenario, name)
	}
	return LoadScenario(name)
}
