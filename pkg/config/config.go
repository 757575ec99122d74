// Package config loads the YAML settings shared by the cutlab commands:
// logging, the mesh kernel, script evaluation, the grab strategy and the
// cutter thresholds.
package config

import (
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/emilyslouie/xri-two-hands/pkg/cut"
	"github.com/emilyslouie/xri-two-hands/pkg/engine"
	"github.com/emilyslouie/xri-two-hands/pkg/grab"
	"github.com/emilyslouie/xri-two-hands/pkg/kernel/sdfx"
	"github.com/emilyslouie/xri-two-hands/pkg/logging"
)

// Config is the root of a cutlab settings file.
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Kernel KernelConfig `yaml:"kernel"`
	Engine EngineConfig `yaml:"engine"`
	Grab   GrabConfig   `yaml:"grab"`
	Cutter CutterConfig `yaml:"cutter"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type KernelConfig struct {
	// MeshCells is the marching cubes resolution along the longest axis.
	MeshCells int `yaml:"mesh_cells"`
}

type EngineConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// GrabConfig selects and tunes the two-handed blend strategy.
type GrabConfig struct {
	Strategy    string      `yaml:"strategy"`
	Lerp        float64     `yaml:"lerp"`
	SlerpMethod string      `yaml:"slerp_method"`
	ShortWay    bool        `yaml:"short_way"`
	Scale       ScaleConfig `yaml:"scale"`
	Staff       StaffConfig `yaml:"staff"`
	Twist       TwistConfig `yaml:"twist"`
}

type ScaleConfig struct {
	Multiplier   float64 `yaml:"multiplier"`
	AveragePoses bool    `yaml:"average_poses"`
}

type StaffConfig struct {
	Align [3]float64 `yaml:"align"`
}

type TwistConfig struct {
	Mode string `yaml:"mode"`
}

// CutterConfig holds the hinge thresholds, in degrees, and the blade box.
type CutterConfig struct {
	ActuateThreshold float64    `yaml:"actuate_threshold"`
	ReleaseThreshold float64    `yaml:"release_threshold"`
	BladeExtents     [3]float64 `yaml:"blade_extents"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Log:    LogConfig{Level: logging.DefaultLevel},
		Kernel: KernelConfig{MeshCells: sdfx.DefaultMeshCells},
		Engine: EngineConfig{Timeout: engine.EvalTimeout},
		Grab: GrabConfig{
			Strategy: grab.KindAverage.String(),
			Lerp:     grab.DefaultLerp,
			ShortWay: true,
			Scale:    ScaleConfig{Multiplier: 1, AveragePoses: true},
			Staff:    StaffConfig{Align: [3]float64{0, 0, 1}},
			Twist:    TwistConfig{Mode: grab.ControlTop.String()},
		},
		Cutter: CutterConfig{
			ActuateThreshold: cut.DefaultActuateThreshold,
			ReleaseThreshold: cut.DefaultReleaseThreshold,
			BladeExtents:     [3]float64{0.5, 0.5, 0.5},
		},
	}
}

// Load decodes YAML from r over the defaults and validates the result.
// Unknown keys are rejected.
func Load(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "config: decode")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile reads a settings file. An empty path yields Default.
func LoadFile(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "config: open")
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "config: %s", path)
	}
	return c, nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(err, "config: log.level")
	}
	if c.Kernel.MeshCells < 0 {
		return errors.Errorf("config: kernel.mesh_cells is %d, must not be negative", c.Kernel.MeshCells)
	}
	if c.Engine.Timeout < 0 {
		return errors.Errorf("config: engine.timeout is %v, must not be negative", c.Engine.Timeout)
	}
	if _, err := grab.ParseKind(strings.TrimSpace(c.Grab.Strategy)); err != nil {
		return errors.Wrap(err, "config: grab.strategy")
	}
	if math.IsNaN(c.Grab.Lerp) || c.Grab.Lerp < 0 || c.Grab.Lerp > 1 {
		return errors.Errorf("config: grab.lerp is %v, must be in [0, 1]", c.Grab.Lerp)
	}
	if _, err := grab.ParseSlerpMethod(c.Grab.SlerpMethod); err != nil {
		return errors.Wrap(err, "config: grab.slerp_method")
	}
	if _, err := grab.ParseControlMode(c.Grab.Twist.Mode); err != nil {
		return errors.Wrap(err, "config: grab.twist.mode")
	}
	if math.IsNaN(c.Grab.Scale.Multiplier) || math.IsInf(c.Grab.Scale.Multiplier, 0) || c.Grab.Scale.Multiplier <= 0 {
		return errors.Errorf("config: grab.scale.multiplier is %v, must be positive", c.Grab.Scale.Multiplier)
	}
	if align := mgl64.Vec3(c.Grab.Staff.Align).Len(); align == 0 || !finite(align) {
		return errors.Errorf("config: grab.staff.align %v must be a finite non-zero vector", c.Grab.Staff.Align)
	}
	if !finite(c.Cutter.ActuateThreshold) || !finite(c.Cutter.ReleaseThreshold) {
		return errors.Errorf("config: cutter thresholds %v and %v must be finite",
			c.Cutter.ActuateThreshold, c.Cutter.ReleaseThreshold)
	}
	if c.Cutter.ReleaseThreshold >= c.Cutter.ActuateThreshold {
		return errors.Errorf("config: cutter.release_threshold %v must be below actuate_threshold %v",
			c.Cutter.ReleaseThreshold, c.Cutter.ActuateThreshold)
	}
	for _, e := range c.Cutter.BladeExtents {
		if e < 0 || !finite(e) {
			return errors.Errorf("config: cutter.blade_extents %v must be finite and not negative", c.Cutter.BladeExtents)
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Strategy builds the configured grab strategy.
func (c *Config) Strategy() (grab.Strategy, error) {
	kind, err := grab.ParseKind(strings.TrimSpace(c.Grab.Strategy))
	if err != nil {
		return nil, errors.Wrap(err, "config: grab.strategy")
	}
	switch kind {
	case grab.KindAverage:
		return c.average()
	case grab.KindScale:
		avg, err := c.average()
		if err != nil {
			return nil, err
		}
		s := grab.NewScale()
		s.Average = avg
		s.Multiplier = c.Grab.Scale.Multiplier
		s.AveragePoses = c.Grab.Scale.AveragePoses
		return s, nil
	case grab.KindStabilized:
		return grab.NewStabilized(), nil
	case grab.KindStaff:
		s := grab.NewStaff()
		s.Align = mgl64.Vec3(c.Grab.Staff.Align).Normalize()
		return s, nil
	case grab.KindTwist:
		mode, err := grab.ParseControlMode(c.Grab.Twist.Mode)
		if err != nil {
			return nil, errors.Wrap(err, "config: grab.twist.mode")
		}
		t := grab.NewTwist()
		t.Mode = mode
		return t, nil
	}
	return nil, errors.Errorf("config: no constructor for strategy %s", kind)
}

func (c *Config) average() (*grab.Average, error) {
	method, err := grab.ParseSlerpMethod(c.Grab.SlerpMethod)
	if err != nil {
		return nil, errors.Wrap(err, "config: grab.slerp_method")
	}
	a := grab.NewAverage()
	a.Lerp = c.Grab.Lerp
	a.Method = method
	a.ShortWay = c.Grab.ShortWay
	return a, nil
}

// CutterOptions returns the cutter options for the configured thresholds
// and blade box.
func (c *Config) CutterOptions() []cut.Option {
	return []cut.Option{
		cut.WithThresholds(c.Cutter.ActuateThreshold, c.Cutter.ReleaseThreshold),
		cut.WithBladeExtents(mgl64.Vec3(c.Cutter.BladeExtents)),
	}
}
