package mrs

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const yamlMission = `
name: demo
launch_type: 1
t0_utc: "2021-06-01T12:00:00Z"
launch_site:
  name: LC-39A
  lat: 28.608
  lon: -80.604
segments:
  - {met: -10, type: propagate, config_id: 0, comment: pad}
  - {met: 0, type: propagate, config_id: 1, comment: ascent}
  - {met: 600, type: propagate, config_id: 1}
propagation:
  - {mode: fixed, step: 1, forces_id: 0}
  - {mode: integrate, method: rkf78, step: 10, forces_id: 0}
forces:
  - {earth_degree: 2, atmosphere: us76, drag: true, active_sc: true}
guidance:
  elevation:
    - {met: 0, frame: Launch_ENU, angle: 90}
  heading:
    - {met: 0, frame: Launch_ENU, angle: 90}
vehicle:
  name: rocket
  elements:
    - name: core
      parts:
        - {name: stage, staging: 150, dry: 2000, fuel: 5000, drag_area: 1}
        - {name: capsule, dry: 500}
      engines:
        - {name: engine, thrust_sl: 180000, thrust_vac: 200000, fuel_flow: 100}
      throttle:
        - {met: -10, start: 0, end: -1, engine: 0, count: 0}
        - {met: 0, start: 1, engine: 0, count: 1, description: Liftoff}
`

const tomlMission = `
name = "leo"
launch_type = 0
t0_utc = "2021-06-01 12:00:00"
t0_met = 0

[initial_state]
r = [6778000.0, 0.0, 0.0]
v = [0.0, 7668.6, 0.0]

[[segments]]
met = 0.0
type = "propagate"
config_id = 0

[[segments]]
met = 5400.0
type = "propagate"
config_id = 0

[[propagation]]
mode = "integrate"
step = 60.0
forces_id = 0

[[forces]]
earth_degree = 2

[vehicle.static]
mass = 500.0
`

func writeMission(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// configErrors returns the configuration errors of err, failing if there are none.
func configErrors(t *testing.T, err error) ConfigurationErrors {
	t.Helper()
	require.Error(t, err)
	var errs ConfigurationErrors
	require.True(t, errors.As(err, &errs), "expected configuration errors, got %v", err)
	return errs
}

func hasField(errs ConfigurationErrors, field string) bool {
	for _, e := range errs {
		if strings.Contains(e.Field, field) {
			return true
		}
	}
	return false
}

func TestLoadMissionYAML(t *testing.T) {
	cfg, err := LoadMission(writeMission(t, "mission.yaml", yamlMission))
	require.NoError(t, err)
	require.Equal(t, "demo", cfg.Name)
	require.Equal(t, LaunchFromPad, cfg.LaunchType)
	require.Len(t, cfg.Segments, 3)
	require.Equal(t, 600.0, cfg.Segments[2].MET)
	require.Equal(t, "rkf78", cfg.Propagation[1].Method)
	require.True(t, cfg.Forces[0].Drag)
	core := cfg.Vehicle.Elements[0]
	require.NotNil(t, core.Parts[0].Staging)
	require.Equal(t, 150.0, *core.Parts[0].Staging)
	require.Nil(t, core.Parts[1].Staging)
	require.Equal(t, "Liftoff", core.Throttle[1].Description)

	plan, err := compile(cfg, WGS84Frames{}, MeeusEphemeris{})
	require.NoError(t, err)
	require.Empty(t, plan.warnings)
	require.Equal(t, MethodRKF78, plan.propagations[1].Method)
	require.Equal(t, MethodRK4, plan.propagations[0].Method)
	require.Equal(t, ModeFixed, plan.propagations[0].Mode)
	require.Nil(t, plan.vehicle.Elements[0].Throttle.Entries[0].End, "an end of -1 holds the start value")
	require.NotNil(t, plan.frames.Launch)
	require.Equal(t, 600.0, plan.stopMET)
}

func TestLoadMissionTOML(t *testing.T) {
	cfg, err := LoadMission(writeMission(t, "mission.toml", tomlMission))
	require.NoError(t, err)
	require.Equal(t, LaunchFromState, cfg.LaunchType)
	require.Equal(t, []float64{6778e3, 0, 0}, cfg.InitialState.R)
	require.Equal(t, 500.0, cfg.Vehicle.Static.Mass)
	t0, err := cfg.T0()
	require.NoError(t, err)
	require.Equal(t, time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC), t0)
}

func TestLoadMissionErrors(t *testing.T) {
	_, err := LoadMission(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	// Schema error: the name is required.
	_, err = LoadMission(writeMission(t, "noname.yaml", strings.Replace(yamlMission, "name: demo", "", 1)))
	errs := configErrors(t, err)
	require.Equal(t, "schema", errs[0].Component)
	require.Contains(t, errs[0].Field, "Name")
}

func TestT0Formats(t *testing.T) {
	exp := time.Date(2021, 6, 1, 12, 0, 0, 500e6, time.UTC)
	for _, s := range []string{"2021-06-01T12:00:00.5Z", "2021-06-01T14:00:00.5+02:00", "2021-06-01T12:00:00.500", " 2021-06-01 12:00:00.5 "} {
		c := MissionConfig{T0UTC: s}
		t0, err := c.T0()
		require.NoError(t, err, s)
		require.True(t, t0.Equal(exp), "%s gave %s", s, t0)
		require.Equal(t, time.UTC, t0.Location())
	}
	c := MissionConfig{T0UTC: "yesterday"}
	_, err := c.T0()
	require.Error(t, err)
}

func TestValidateReportsAllErrors(t *testing.T) {
	cfg := padConfig()
	cfg.Segments[2].MET = -20
	cfg.Guidance.Heading[0].Frame = "ECEF"
	cfg.Propagation[1].ForcesID = 4
	cfg.Forces[0].Atmosphere = "" // drag without atmosphere
	cfg.Vehicle.Elements[0].Throttle[1].Start = 1.5
	cfg.Vehicle.Elements[0].Drag[2].Mach = 0.5
	errs := configErrors(t, cfg.Validate())
	for _, field := range []string{"segments[2].met", "heading[0].frame", "propagation[1].forces_id", "forces[0].drag", "throttle[1].start", "drag[2]"} {
		require.True(t, hasField(errs, field), "missing error on %s in %v", field, errs)
	}
	// Errors carry the offending MET when there is one.
	for _, e := range errs {
		if strings.HasPrefix(e.Field, "segments") {
			require.Equal(t, -20.0, e.MET)
		}
	}
}

func TestValidateFramePairs(t *testing.T) {
	cfg := padConfig()
	cfg.Guidance.Heading = []GuidanceRowConfig{{MET: 0, Frame: "GCRF", Angle: 0}}
	errs := configErrors(t, cfg.Validate())
	require.Equal(t, "guidance", errs[0].Component)
	require.Equal(t, 0.0, errs[0].MET)

	// The pair is only checked where a row applies.
	cfg = padConfig()
	cfg.Guidance.Heading = append(cfg.Guidance.Heading, GuidanceRowConfig{MET: 60, Frame: "GCRF", Angle: 90})
	errs = configErrors(t, cfg.Validate())
	require.Len(t, errs, 1)
	require.Equal(t, 60.0, errs[0].MET)

	// A single track is an error.
	cfg = padConfig()
	cfg.Guidance.Heading = nil
	errs = configErrors(t, cfg.Validate())
	require.Equal(t, "guidance", errs[0].Component)

	// Launch_ENU requires a launch site.
	cfg = orbitConfig()
	cfg.Guidance = GuidanceConfig{
		Elevation: []GuidanceRowConfig{{MET: 0, Frame: "Launch_ENU", Angle: 0}},
		Heading:   []GuidanceRowConfig{{MET: 0, Frame: "Launch_ENU", Angle: 0}},
	}
	errs = configErrors(t, cfg.Validate())
	require.True(t, hasField(errs, "elevation[0].frame"))

	// Both tracks are checked even when the first one is invalid.
	cfg = padConfig()
	cfg.Guidance.Elevation[1].Frame = "ECEF"
	cfg.Guidance.Heading[0].Frame = "nowhere"
	errs = configErrors(t, cfg.Validate())
	require.True(t, hasField(errs, "elevation[1].frame"), "missing elevation error in %v", errs)
	require.True(t, hasField(errs, "heading[0].frame"), "missing heading error in %v", errs)
	for _, e := range errs {
		require.NotEqual(t, "", e.Field, "no frame pair check on invalid tracks: %v", e)
	}
}

func TestValidateSegments(t *testing.T) {
	cfg := orbitConfig()
	cfg.T0MET = -5
	errs := configErrors(t, cfg.Validate())
	require.True(t, hasField(errs, "t0_met"))

	cfg = orbitConfig()
	cfg.Segments[1].ConfigID = 7
	errs = configErrors(t, cfg.Validate())
	require.True(t, hasField(errs, "segments[1].config_id"))

	cfg = orbitConfig()
	cfg.Segments[0].Type = "maneuver"
	errs = configErrors(t, cfg.Validate())
	require.True(t, hasField(errs, "segments[0].type"))

	cfg = orbitConfig()
	cfg.Maneuvers = []ManeuverConfig{{Frame: "EFvel_ENU_delta", DX: 1}}
	cfg.Segments[1].Type = "maneuver"
	cfg.Segments[1].ConfigID = 0
	errs = configErrors(t, cfg.Validate())
	require.True(t, hasField(errs, "maneuvers[0].frame"))

	cfg = orbitConfig()
	cfg.EndMET = -10
	errs = configErrors(t, cfg.Validate())
	require.True(t, hasField(errs, "end_met"))

	cfg = orbitConfig()
	cfg.Vehicle.Static.Mass = 0
	errs = configErrors(t, cfg.Validate())
	require.True(t, hasField(errs, "forces[0].active_sc"))
}

func TestValidateWarnings(t *testing.T) {
	cfg := padConfig()
	cfg.T0MET = 12
	cfg.Forces[0].Atmosphere = "nrlmsise00"
	cfg.Forces[0].EarthDegree = 40
	cfg.Forces[0].MoonDegree = 2
	plan, err := compile(cfg, WGS84Frames{}, MeeusEphemeris{})
	require.NoError(t, err)
	require.Len(t, plan.warnings, 4)
	require.Contains(t, plan.warnings[0], "t0_met")
	require.Contains(t, plan.warnings[1], "US76")
	require.Contains(t, plan.warnings[2], "moon degree")
	require.Contains(t, plan.warnings[3], "truncated to 6")
	require.Equal(t, 0.0, plan.epoch.T0MET)
}
