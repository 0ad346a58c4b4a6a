package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPeriod   = 0.02
	DefaultDuration = 30.0
	DefaultLevel    = "medium"
)

// Levels are the scoring heights a transfer can target, lowest first.
var Levels = []string{"low", "medium", "high"}

var ErrInvalid = errors.New("config: invalid")

type Config struct {
	Loop    LoopConfig   `yaml:"loop"`
	Drive   DriveConfig  `yaml:"drive"`
	Heading PIDConfig    `yaml:"heading"`
	Elbow   JointConfig  `yaml:"elbow"`
	Slide   JointConfig  `yaml:"slide"`
	Intake  IntakeConfig `yaml:"intake"`
	Box     BoxConfig    `yaml:"box"`
	Drone   DroneConfig  `yaml:"drone"`
	Winch   WinchConfig  `yaml:"winch"`
	Cycle   CycleConfig  `yaml:"cycle"`
	Plant   PlantConfig  `yaml:"plant"`
}

// LoopConfig sets the control loop cadence, in seconds.
type LoopConfig struct {
	Period     float64 `yaml:"period"`
	Duration   float64 `yaml:"duration"`
	Integrator string  `yaml:"integrator"`
}

type PIDConfig struct {
	Kp        float64 `yaml:"kp"`
	Ki        float64 `yaml:"ki"`
	Kd        float64 `yaml:"kd"`
	Bound     float64 `yaml:"bound"`
	Tolerance float64 `yaml:"tolerance"`
}

// JointConfig describes a closed-loop joint. Positions are named targets
// in sensor units; Min and Max are soft limits used by stability metrics.
type JointConfig struct {
	PID         PIDConfig          `yaml:"pid"`
	Positions   map[string]float64 `yaml:"positions"`
	ManualSpeed float64            `yaml:"manual_speed"`
	Deadband    float64            `yaml:"deadband"`
	Min         float64            `yaml:"min"`
	Max         float64            `yaml:"max"`
}

// DriveConfig shapes the driver sticks. With FieldCentric set, forward and
// strafe are taken relative to the field instead of the robot.
type DriveConfig struct {
	InputMultiplier float64 `yaml:"input_multiplier"`
	SlowScale       float64 `yaml:"slow_scale"`
	Deadband        float64 `yaml:"deadband"`
	FieldCentric    bool    `yaml:"field_centric"`
}

type IntakeConfig struct {
	IntakeSpeed  float64 `yaml:"intake_speed"`
	OuttakeSpeed float64 `yaml:"outtake_speed"`
	DownPosition float64 `yaml:"down_position"`
	UpPosition   float64 `yaml:"up_position"`
}

type BoxConfig struct {
	OpenPosition   float64 `yaml:"open_position"`
	ClosedPosition float64 `yaml:"closed_position"`
	ReleaseHold    float64 `yaml:"release_hold"`
}

// DroneConfig holds the launcher servo positions. LaunchHold is how long
// the arm stays up after the launcher fires.
type DroneConfig struct {
	StartPosition  float64 `yaml:"start_position"`
	LaunchPosition float64 `yaml:"launch_position"`
	LaunchHold     float64 `yaml:"launch_hold"`
}

type WinchConfig struct {
	Speed float64 `yaml:"speed"`
}

// CycleConfig tunes the operating cycle. Manual disables the closed-loop
// cycle entirely and leaves every mechanism on operator control.
type CycleConfig struct {
	SecureDelay   float64 `yaml:"secure_delay"`
	LoadThreshold float64 `yaml:"load_threshold"`
	Level         string  `yaml:"level"`
	Manual        bool    `yaml:"manual"`
}

// PlantConfig parameterizes the simulated robot.
type PlantConfig struct {
	ElbowRate float64 `yaml:"elbow_rate"`
	SlideRate float64 `yaml:"slide_rate"`
	TurnRate  float64 `yaml:"turn_rate"`
	MotorLag  float64 `yaml:"motor_lag"`
	LoadRate  float64 `yaml:"load_rate"`
	WinchRate float64 `yaml:"winch_rate"`
}

func DefaultConfig() *Config {
	return &Config{
		Loop: LoopConfig{
			Period:     DefaultPeriod,
			Duration:   DefaultDuration,
			Integrator: "rk4",
		},
		Drive: DriveConfig{
			InputMultiplier: 0.8,
			SlowScale:       0.3,
			Deadband:        0.05,
		},
		Heading: PIDConfig{Kp: 0.02, Bound: 1, Tolerance: 2},
		Elbow: JointConfig{
			PID: PIDConfig{Kp: 0.04, Ki: 0, Kd: 0, Bound: 1, Tolerance: 2},
			Positions: map[string]float64{
				"intake":  0,
				"driving": 10,
				"level":   20,
				"drone":   60,
				"low":     110,
				"medium":  130,
				"high":    150,
			},
			ManualSpeed: 0.5,
			Deadband:    0.1,
			Min:         -5,
			Max:         180,
		},
		Slide: JointConfig{
			PID: PIDConfig{Kp: 0.2, Ki: 0, Kd: 0, Bound: 1, Tolerance: 0.5},
			Positions: map[string]float64{
				"in":     0,
				"low":    6,
				"medium": 12,
				"high":   18,
			},
			ManualSpeed: 0.5,
			Deadband:    0.1,
			Min:         -1,
			Max:         24,
		},
		Intake: IntakeConfig{
			IntakeSpeed:  1,
			OuttakeSpeed: -0.6,
			DownPosition: 0.15,
			UpPosition:   0.85,
		},
		Box: BoxConfig{
			OpenPosition:   0.6,
			ClosedPosition: 0.1,
			ReleaseHold:    1.0,
		},
		Drone: DroneConfig{
			StartPosition:  0.2,
			LaunchPosition: 0.8,
			LaunchHold:     0.5,
		},
		Winch: WinchConfig{Speed: 1},
		Cycle: CycleConfig{
			SecureDelay:   0.25,
			LoadThreshold: 2,
			Level:         DefaultLevel,
		},
		Plant: PlantConfig{
			ElbowRate: 120,
			SlideRate: 30,
			TurnRate:  360,
			MotorLag:  0.05,
			LoadRate:  1.5,
			WinchRate: 8,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Period returns the loop period as a duration.
func (c *Config) Period() time.Duration {
	return time.Duration(c.Loop.Period * float64(time.Second))
}

// Ticks returns the number of loop periods in the configured duration.
func (c *Config) Ticks() int {
	if c.Loop.Period <= 0 {
		return 0
	}
	return int(c.Loop.Duration/c.Loop.Period + 0.5)
}

var (
	elbowPositions = []string{"intake", "driving", "level", "drone", "low", "medium", "high"}
	slidePositions = []string{"in", "low", "medium", "high"}
)

// Validate reports the first inconsistency found.
func (c *Config) Validate() error {
	if c.Loop.Period <= 0 {
		return fmt.Errorf("%w: loop.period must be positive, got %g", ErrInvalid, c.Loop.Period)
	}
	if c.Loop.Duration < 0 {
		return fmt.Errorf("%w: loop.duration must not be negative", ErrInvalid)
	}
	switch c.Loop.Integrator {
	case "rk4", "euler":
	default:
		return fmt.Errorf("%w: unknown integrator %q", ErrInvalid, c.Loop.Integrator)
	}
	if err := c.Heading.validate("heading"); err != nil {
		return err
	}
	if err := c.Elbow.validate("elbow", elbowPositions); err != nil {
		return err
	}
	if err := c.Slide.validate("slide", slidePositions); err != nil {
		return err
	}
	if c.Drive.SlowScale < 0 || c.Drive.SlowScale > 1 {
		return fmt.Errorf("%w: drive.slow_scale must be within [0, 1]", ErrInvalid)
	}
	if c.Box.ReleaseHold < 0 || c.Cycle.SecureDelay < 0 || c.Drone.LaunchHold < 0 {
		return fmt.Errorf("%w: delays must not be negative", ErrInvalid)
	}
	if !slices.Contains(Levels, c.Cycle.Level) {
		return fmt.Errorf("%w: unknown level %q", ErrInvalid, c.Cycle.Level)
	}
	return nil
}

func (p PIDConfig) validate(name string) error {
	if p.Tolerance < 0 {
		return fmt.Errorf("%w: %s tolerance must not be negative", ErrInvalid, name)
	}
	if p.Kp < 0 || p.Ki < 0 || p.Kd < 0 {
		return fmt.Errorf("%w: %s gains must not be negative", ErrInvalid, name)
	}
	return nil
}

func (j JointConfig) validate(name string, required []string) error {
	if err := j.PID.validate(name); err != nil {
		return err
	}
	for _, pos := range required {
		if _, ok := j.Positions[pos]; !ok {
			return fmt.Errorf("%w: %s.positions.%s missing", ErrInvalid, name, pos)
		}
	}
	if j.Max < j.Min {
		return fmt.Errorf("%w: %s max below min", ErrInvalid, name)
	}
	return nil
}
