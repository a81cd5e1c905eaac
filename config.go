package mrs

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LaunchType selects how the initial state is defined.
type LaunchType int

const (
	// LaunchFromState starts from a GCRF state vector at T0.
	LaunchFromState LaunchType = 0
	// LaunchFromPad starts from the launch site, MET 0 being T0.
	LaunchFromPad LaunchType = 1
)

// MissionConfig is the complete configuration surface of a mission.
type MissionConfig struct {
	Name         string              `mapstructure:"name" validate:"required"`
	LaunchType   LaunchType          `mapstructure:"launch_type" validate:"oneof=0 1"`
	T0UTC        string              `mapstructure:"t0_utc" validate:"required"`
	T0MET        float64             `mapstructure:"t0_met"`
	EndMET       float64             `mapstructure:"end_met"` // zero means the last segment
	LaunchSite   *LaunchSiteConfig   `mapstructure:"launch_site"`
	InitialState *StateVectorConfig  `mapstructure:"initial_state"`
	Integrator   IntegratorConfig    `mapstructure:"integrator"`
	Segments     []SegmentConfig     `mapstructure:"segments" validate:"required,min=1,dive"`
	Propagation  []PropagationConfig `mapstructure:"propagation" validate:"required,min=1,dive"`
	Forces       []ForcesConfig      `mapstructure:"forces" validate:"required,min=1,dive"`
	Maneuvers    []ManeuverConfig    `mapstructure:"maneuvers" validate:"dive"`
	Events       []EventConfig       `mapstructure:"events" validate:"dive"`
	Guidance     GuidanceConfig      `mapstructure:"guidance"`
	Vehicle      VehicleConfig       `mapstructure:"vehicle"`
}

// LaunchSiteConfig is the geodetic position of the launch pad.
type LaunchSiteConfig struct {
	Name string  `mapstructure:"name"`
	Lat  float64 `mapstructure:"lat" validate:"gte=-90,lte=90"`   // degrees
	Lon  float64 `mapstructure:"lon" validate:"gte=-180,lte=360"` // degrees
	Alt  float64 `mapstructure:"alt"`                             // meters
}

// StateVectorConfig is a GCRF state in meters and meters per second.
type StateVectorConfig struct {
	R []float64 `mapstructure:"r" validate:"len=3"`
	V []float64 `mapstructure:"v" validate:"len=3"`
}

// IntegratorConfig tunes the adaptive integrator.
type IntegratorConfig struct {
	Atol        float64 `mapstructure:"atol" validate:"gte=0"`
	Rtol        float64 `mapstructure:"rtol" validate:"gte=0"`
	InitialStep float64 `mapstructure:"initial_step" validate:"gte=0"`
	MinStep     float64 `mapstructure:"min_step" validate:"gte=0"`
}

// SegmentConfig is a row of the mission segment table. ConfigID indexes the
// propagation table for propagate segments and the maneuver table for maneuvers.
type SegmentConfig struct {
	MET      float64 `mapstructure:"met"`
	Type     string  `mapstructure:"type" validate:"oneof=propagate maneuver 0 1"`
	ConfigID int     `mapstructure:"config_id" validate:"gte=0"`
	Comment  string  `mapstructure:"comment"`
}

// PropagationConfig selects the solver of a segment. ForcesID indexes the forces table.
type PropagationConfig struct {
	Mode       string  `mapstructure:"mode" validate:"oneof=fixed integrate 0 1"`
	Method     string  `mapstructure:"method"`
	Step       float64 `mapstructure:"step" validate:"gte=0"` // fixed step, or maximum adaptive step
	ForcesID   int     `mapstructure:"forces_id" validate:"gte=0"`
	Downsample int     `mapstructure:"downsample" validate:"gte=0"`
	Comment    string  `mapstructure:"comment"`
}

// ForcesConfig selects the force terms of a propagation.
type ForcesConfig struct {
	EarthDegree uint8    `mapstructure:"earth_degree"`
	MoonDegree  uint8    `mapstructure:"moon_degree"`
	Bodies      []string `mapstructure:"bodies"`
	Atmosphere  string   `mapstructure:"atmosphere"`
	Drag        bool     `mapstructure:"drag"`
	SRP         bool     `mapstructure:"srp"`
	EarthTides  bool     `mapstructure:"earth_tides"`
	MoonTides   bool     `mapstructure:"moon_tides"`
	ActiveSC    bool     `mapstructure:"active_sc"`
	Comment     string   `mapstructure:"comment"`
}

// ManeuverConfig is an impulsive delta-v, in km/s along the frame axes.
type ManeuverConfig struct {
	Frame   string    `mapstructure:"frame" validate:"required"`
	DX      float64   `mapstructure:"dx"`
	DY      float64   `mapstructure:"dy"`
	DZ      float64   `mapstructure:"dz"`
	Args    []float64 `mapstructure:"args"`
	Body    string    `mapstructure:"body"` // reference body, Earth when empty
	Comment string    `mapstructure:"comment"`
}

// EventConfig is a row of the mission event table.
type EventConfig struct {
	MET  float64 `mapstructure:"met"`
	Name string  `mapstructure:"name" validate:"required"`
}

// GuidanceConfig holds the elevation and heading tables.
type GuidanceConfig struct {
	Name         string              `mapstructure:"name"`
	Elevation    []GuidanceRowConfig `mapstructure:"elevation" validate:"dive"`
	Heading      []GuidanceRowConfig `mapstructure:"heading" validate:"dive"`
	StaticFrames []StaticFrameConfig `mapstructure:"static_frames" validate:"dive"`
}

// GuidanceRowConfig is a guidance entry, the angle being in degrees.
type GuidanceRowConfig struct {
	MET   float64 `mapstructure:"met"`
	Frame string  `mapstructure:"frame" validate:"required"`
	Angle float64 `mapstructure:"angle"`
}

// StaticFrameConfig defines the user frame SM<Index> by its three GCRF axes.
type StaticFrameConfig struct {
	Index int         `mapstructure:"index" validate:"gte=0,lte=9"`
	Axes  [][]float64 `mapstructure:"axes" validate:"len=3,dive,len=3"`
}

// VehicleConfig describes the staged spacecraft.
type VehicleConfig struct {
	Name     string             `mapstructure:"name"`
	Elements []ElementConfig    `mapstructure:"elements" validate:"dive"`
	Static   StaticValuesConfig `mapstructure:"static"`
}

// ElementConfig is a vehicle element, present Count times (one when zero).
type ElementConfig struct {
	Name        string            `mapstructure:"name" validate:"required"`
	Count       int               `mapstructure:"count" validate:"gte=0"`
	Parts       []PartConfig      `mapstructure:"parts" validate:"dive"`
	Engines     []EngineConfig    `mapstructure:"engines" validate:"dive"`
	Throttle    []ThrottleConfig  `mapstructure:"throttle" validate:"dive"`
	Drag        []DragPointConfig `mapstructure:"drag" validate:"dive"`
	MaxThrottle float64           `mapstructure:"max_throttle" validate:"gte=0"`
}

// PartConfig is a part of an element. A missing staging time, or one of at
// least 999999, means the part never stages.
type PartConfig struct {
	Name     string   `mapstructure:"name" validate:"required"`
	Staging  *float64 `mapstructure:"staging"`
	Dry      float64  `mapstructure:"dry" validate:"gte=0"`
	Fuel     float64  `mapstructure:"fuel" validate:"gte=0"`
	DragArea float64  `mapstructure:"drag_area" validate:"gte=0"`
}

// EngineConfig is an engine type of an element.
type EngineConfig struct {
	Name        string  `mapstructure:"name" validate:"required"`
	Description string  `mapstructure:"description"`
	ThrustSL    float64 `mapstructure:"thrust_sl" validate:"gte=0"`
	ThrustVac   float64 `mapstructure:"thrust_vac" validate:"gte=0"`
	FuelFlow    float64 `mapstructure:"fuel_flow" validate:"gte=0"`
}

// ThrottleConfig is a row of the throttle table. A missing End, or -1, holds
// Start until the next row.
type ThrottleConfig struct {
	MET         float64  `mapstructure:"met"`
	Start       float64  `mapstructure:"start"`
	End         *float64 `mapstructure:"end"`
	Engine      int      `mapstructure:"engine" validate:"gte=0"`
	Count       int      `mapstructure:"count" validate:"gte=0"`
	Description string   `mapstructure:"description"`
}

// DragPointConfig is a row of the drag coefficient table.
type DragPointConfig struct {
	Mach float64 `mapstructure:"mach" validate:"gte=0"`
	Cd   float64 `mapstructure:"cd" validate:"gte=0"`
}

// StaticValuesConfig are the values used for a static spacecraft.
type StaticValuesConfig struct {
	Mass     float64 `mapstructure:"mass" validate:"gte=0"`
	DragArea float64 `mapstructure:"drag_area" validate:"gte=0"`
	Cd       float64 `mapstructure:"cd" validate:"gte=0"`
	Cr       float64 `mapstructure:"cr" validate:"gte=0"`
	SRPArea  float64 `mapstructure:"srp_area" validate:"gte=0"`
}

// LoadMission reads a mission file (TOML, YAML or JSON) and validates it.
func LoadMission(path string) (*MissionConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading mission %s: %w", path, err)
	}
	cfg := &MissionConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding mission %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// t0Formats are the accepted formats of T0UTC, always read as UTC.
var t0Formats = []string{time.RFC3339Nano, "2006-01-02T15:04:05.000", "2006-01-02T15:04:05", "2006-01-02 15:04:05"}

// T0 returns the parsed reference time.
func (c *MissionConfig) T0() (time.Time, error) {
	s := strings.TrimSpace(c.T0UTC)
	for _, layout := range t0Formats {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse t0 '%s'", c.T0UTC)
}
