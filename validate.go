package mrs

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	structValidator = validator.New()
	noMET           = math.NaN()
)

// SegmentType is the type of a mission segment.
type SegmentType uint8

const (
	// SegmentPropagate propagates with a propagation setting.
	SegmentPropagate SegmentType = iota + 1
	// SegmentManeuver applies an impulsive maneuver, then keeps propagating
	// with the previous propagation setting.
	SegmentManeuver
)

func (s SegmentType) String() string {
	switch s {
	case SegmentPropagate:
		return "propagate"
	case SegmentManeuver:
		return "maneuver"
	}
	panic("cannot stringify unknown segment type")
}

// PropagationMode selects between holding the vehicle and integrating its motion.
type PropagationMode uint8

const (
	// ModeFixed holds the vehicle fixed to the rotating Earth.
	ModeFixed PropagationMode = iota + 1
	// ModeIntegrate integrates the equations of motion.
	ModeIntegrate
)

func (m PropagationMode) String() string {
	switch m {
	case ModeFixed:
		return "fixed"
	case ModeIntegrate:
		return "integrate"
	}
	panic("cannot stringify unknown propagation mode")
}

// Integration methods.
const (
	MethodRKF78 = "RKF78"
	MethodRK4   = "RK4"
)

type segment struct {
	MET      float64
	Type     SegmentType
	ConfigID int
	Comment  string
}

type propagation struct {
	Mode       PropagationMode
	Method     string
	Step       float64
	ForcesID   int
	Forces     *ForceModel
	Downsample int
	Comment    string
}

type maneuver struct {
	Frame      Frame
	DX, DY, DZ float64 // m/s
	Body       string
	Comment    string
}

// missionPlan is a validated mission, ready to run.
type missionPlan struct {
	name         string
	launchType   LaunchType
	epoch        Epoch
	stopMET      float64
	launchSite   *LaunchSiteConfig
	initial      *StateVectorConfig
	integrator   IntegratorConfig
	segments     []segment
	propagations []propagation
	maneuvers    []maneuver
	events       []EventConfig
	guidance     Guidance
	vehicle      *Vehicle
	frames       *FrameResolver
	warnings     []string
}

// Validate checks the whole configuration before any propagation. It returns
// ConfigurationErrors listing every problem found.
func (c *MissionConfig) Validate() error {
	_, err := compile(c, WGS84Frames{}, MeeusEphemeris{})
	return err
}

// schemaErrors runs the structural checks of the validate tags.
func schemaErrors(c *MissionConfig) ConfigurationErrors {
	var errs ConfigurationErrors
	err := structValidator.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return ConfigurationErrors{{Component: "schema", MET: noMET, Reason: "cannot validate", Err: err}}
	}
	for _, fe := range verrs {
		reason := fmt.Sprintf("failed on the '%s' rule", fe.Tag())
		if fe.Param() != "" {
			reason = fmt.Sprintf("failed on the '%s=%s' rule", fe.Tag(), fe.Param())
		}
		errs = append(errs, &ConfigurationError{Component: "schema", MET: noMET, Field: fe.Namespace(), Reason: reason})
	}
	return errs
}

// compile validates the configuration and builds the mission plan.
func compile(c *MissionConfig, earth EarthFrames, eph Ephemeris) (*missionPlan, error) {
	if errs := schemaErrors(c); len(errs) > 0 {
		return nil, errs
	}
	var errs ConfigurationErrors
	add := func(component string, met float64, field, format string, args ...interface{}) {
		errs = append(errs, confErr(component, met, field, format, args...))
	}
	p := &missionPlan{name: c.Name, launchType: c.LaunchType, launchSite: c.LaunchSite, initial: c.InitialState, integrator: c.Integrator}

	// Header
	t0, err := c.T0()
	if err != nil {
		add("mission", noMET, "t0_utc", "%s", err)
	}
	p.epoch = Epoch{T0: t0, T0MET: c.T0MET}
	switch c.LaunchType {
	case LaunchFromPad:
		if c.LaunchSite == nil {
			add("mission", noMET, "launch_site", "a launch from the pad requires a launch site")
		}
		if c.T0MET != 0 {
			p.warnings = append(p.warnings, fmt.Sprintf("t0_met %g ignored for a launch from the pad", c.T0MET))
		}
		p.epoch.T0MET = 0
	case LaunchFromState:
		if c.InitialState == nil {
			add("mission", noMET, "initial_state", "a launch from a state vector requires an initial state")
		} else if c.Segments[0].MET != c.T0MET {
			add("mission", c.Segments[0].MET, "t0_met", "the initial state at MET %g must be given at the first segment MET", c.T0MET)
		}
	}
	if p.integrator.Atol == 0 {
		p.integrator.Atol = 1e-9
	}
	if p.integrator.Rtol == 0 {
		p.integrator.Rtol = 1e-9
	}

	// Frames
	p.frames = &FrameResolver{}
	if c.LaunchSite != nil {
		b := earth.GeodeticENU(c.LaunchSite.Lat, c.LaunchSite.Lon, p.epoch.JD(0))
		p.frames.Launch = &b
	}
	for _, sf := range c.Guidance.StaticFrames {
		if p.frames.Static[sf.Index] != nil {
			add("guidance", noMET, fmt.Sprintf("static_frames[SM%d]", sf.Index), "defined twice")
			continue
		}
		b := Basis{X: sf.Axes[0], Y: sf.Axes[1], Z: sf.Axes[2]}
		if !b.orthonormal(1e-6) {
			add("guidance", noMET, fmt.Sprintf("static_frames[SM%d]", sf.Index), "axes are not a right handed orthonormal basis")
			continue
		}
		p.frames.Static[sf.Index] = &b
	}
	frameUsable := func(f Frame) error {
		if f == FrameLaunchENU && p.frames.Launch == nil {
			return fmt.Errorf("frame %s requires a launch site", f)
		}
		if f.IsStatic() && p.frames.Static[f-FrameSM0] == nil {
			return fmt.Errorf("static frame %s is not defined", f)
		}
		return nil
	}

	// Forces
	forces := make([]*ForceModel, len(c.Forces))
	limiter, _ := eph.(interface{ MaxDegree(body string) uint8 })
	for i, fc := range c.Forces {
		field := fmt.Sprintf("forces[%d]", i)
		fm := &ForceModel{EarthDegree: fc.EarthDegree, MoonDegree: fc.MoonDegree, Drag: fc.Drag, SRP: fc.SRP,
			EarthTides: fc.EarthTides, MoonTides: fc.MoonTides, ActiveSC: fc.ActiveSC}
		for _, body := range fc.Bodies {
			obj, err := CelestialObjectFromString(body)
			if err != nil {
				add("forces", noMET, field+".bodies", "%s", err)
				continue
			}
			if obj.Name != Earth.Name {
				fm.ThirdBodies = append(fm.ThirdBodies, obj.Name)
			}
		}
		atmos, exact, err := AtmosphereFromName(fc.Atmosphere)
		if err != nil {
			add("forces", noMET, field+".atmosphere", "%s", err)
		} else if !exact {
			p.warnings = append(p.warnings, fmt.Sprintf("%s: atmosphere '%s' replaced by US76", field, fc.Atmosphere))
		}
		fm.Atmosphere = atmos
		if fc.Drag && atmos == nil {
			add("forces", noMET, field+".drag", "drag requires an atmosphere model")
		}
		if fc.MoonDegree > 0 && !containsFold(fm.ThirdBodies, Moon.Name) {
			p.warnings = append(p.warnings, fmt.Sprintf("%s: moon degree %d unused without the Moon as perturbing body", field, fc.MoonDegree))
		}
		if limiter != nil {
			if maxDeg := limiter.MaxDegree(Earth.Name); fc.EarthDegree > maxDeg {
				p.warnings = append(p.warnings, fmt.Sprintf("%s: Earth degree %d truncated to %d", field, fc.EarthDegree, maxDeg))
			}
			if maxDeg := limiter.MaxDegree(Moon.Name); fc.MoonDegree > maxDeg {
				p.warnings = append(p.warnings, fmt.Sprintf("%s: Moon degree %d truncated to %d", field, fc.MoonDegree, maxDeg))
			}
		}
		if fc.ActiveSC && len(c.Vehicle.Elements) == 0 {
			add("forces", noMET, field+".active_sc", "an active spacecraft requires vehicle elements")
		}
		if !fc.ActiveSC && c.Vehicle.Static.Mass <= 0 {
			add("forces", noMET, field+".active_sc", "a static spacecraft requires a positive static mass")
		}
		forces[i] = fm
	}

	// Propagation settings
	for i, pc := range c.Propagation {
		field := fmt.Sprintf("propagation[%d]", i)
		prop := propagation{Step: pc.Step, ForcesID: pc.ForcesID, Downsample: pc.Downsample, Comment: pc.Comment}
		if prop.Downsample == 0 {
			prop.Downsample = 1
		}
		if pc.Mode == "fixed" || pc.Mode == "0" {
			prop.Mode = ModeFixed
			prop.Method = MethodRK4
		} else {
			prop.Mode = ModeIntegrate
			switch strings.ToUpper(strings.TrimSpace(pc.Method)) {
			case "", "RKF78", "DOP853":
				prop.Method = MethodRKF78
			case "RK4":
				prop.Method = MethodRK4
			default:
				add("propagation", noMET, field+".method", "unknown integration method '%s'", pc.Method)
			}
		}
		if prop.Method == MethodRK4 && prop.Step <= 0 {
			add("propagation", noMET, field+".step", "a fixed step integration requires a positive step")
		}
		if pc.ForcesID >= len(forces) {
			add("propagation", noMET, field+".forces_id", "no forces setting %d", pc.ForcesID)
		} else {
			prop.Forces = forces[pc.ForcesID]
		}
		p.propagations = append(p.propagations, prop)
	}

	// Maneuvers
	for i, mc := range c.Maneuvers {
		field := fmt.Sprintf("maneuvers[%d]", i)
		m := maneuver{DX: mc.DX * 1e3, DY: mc.DY * 1e3, DZ: mc.DZ * 1e3, Body: Earth.Name, Comment: mc.Comment}
		if mc.Body != "" {
			obj, err := CelestialObjectFromString(mc.Body)
			if err != nil {
				add("maneuvers", noMET, field+".body", "%s", err)
			} else {
				m.Body = obj.Name
			}
		}
		f, err := FrameFromString(mc.Frame)
		if err != nil {
			add("maneuvers", noMET, field+".frame", "%s", err)
		} else {
			switch {
			case f.IsDelta():
				add("maneuvers", noMET, field+".frame", "delta frame %s cannot define a maneuver", f)
			case (f == FrameEarthENU || f == FrameLaunchENU) && m.Body != Earth.Name:
				add("maneuvers", noMET, field+".frame", "frame %s is only defined about the Earth", f)
			default:
				if err := frameUsable(f); err != nil {
					add("maneuvers", noMET, field+".frame", "%s", err)
				}
			}
		}
		m.Frame = f
		p.maneuvers = append(p.maneuvers, m)
	}

	// Segments
	for i, sc := range c.Segments {
		field := fmt.Sprintf("segments[%d]", i)
		seg := segment{MET: sc.MET, ConfigID: sc.ConfigID, Comment: sc.Comment}
		if sc.Type == "maneuver" || sc.Type == "1" {
			seg.Type = SegmentManeuver
			if sc.ConfigID >= len(p.maneuvers) {
				add("segments", sc.MET, field+".config_id", "no maneuver %d", sc.ConfigID)
			}
			if i == 0 {
				add("segments", sc.MET, field+".type", "the first segment must propagate")
			}
		} else {
			seg.Type = SegmentPropagate
			if sc.ConfigID >= len(p.propagations) {
				add("segments", sc.MET, field+".config_id", "no propagation setting %d", sc.ConfigID)
			}
		}
		if i > 0 && sc.MET <= c.Segments[i-1].MET {
			add("segments", sc.MET, field+".met", "MET must be strictly increasing (previous is %g)", c.Segments[i-1].MET)
		}
		p.segments = append(p.segments, seg)
	}
	p.stopMET = c.Segments[len(c.Segments)-1].MET
	if c.EndMET != 0 {
		if c.EndMET <= c.Segments[0].MET {
			add("mission", c.EndMET, "end_met", "the end MET must be after the first segment (%g)", c.Segments[0].MET)
		} else if c.EndMET < p.stopMET {
			p.stopMET = c.EndMET
		}
	}

	// Guidance
	p.guidance.Name = c.Guidance.Name
	var okE, okH bool
	p.guidance.Elevation, okE = compileTrack("elevation", c.Guidance.Elevation, frameUsable, &errs)
	p.guidance.Heading, okH = compileTrack("heading", c.Guidance.Heading, frameUsable, &errs)
	if okE && okH {
		if (len(p.guidance.Elevation) == 0) != (len(p.guidance.Heading) == 0) {
			add("guidance", noMET, "", "both elevation and heading tracks must be defined")
		} else {
			mets := append(p.guidance.Elevation.Breakpoints(), p.guidance.Heading.Breakpoints()...)
			sort.Float64s(mets)
			for i, met := range mets {
				if i > 0 && met == mets[i-1] {
					continue
				}
				cmd := p.guidance.At(met)
				if err := CheckFramePair(cmd.ElevationFrame, cmd.HeadingFrame); err != nil {
					add("guidance", met, "", "%s", err)
				}
			}
		}
	}

	// Vehicle
	p.vehicle = compileVehicle(c.Vehicle, &errs)

	// Events
	p.events = append([]EventConfig(nil), c.Events...)
	sort.SliceStable(p.events, func(i, j int) bool { return p.events[i].MET < p.events[j].MET })

	if err := errs.orNil(); err != nil {
		return nil, err
	}
	return p, nil
}

func compileTrack(name string, rows []GuidanceRowConfig, usable func(Frame) error, errs *ConfigurationErrors) (GuidanceTrack, bool) {
	ok := true
	track := make(GuidanceTrack, 0, len(rows))
	for i, row := range rows {
		field := fmt.Sprintf("%s[%d]", name, i)
		f, err := FrameFromString(row.Frame)
		if err == nil {
			err = usable(f)
		}
		if err != nil {
			*errs = append(*errs, confErr("guidance", row.MET, field+".frame", "%s", err))
			ok = false
		}
		if i > 0 && row.MET <= rows[i-1].MET {
			*errs = append(*errs, confErr("guidance", row.MET, field+".met", "MET must be strictly increasing (previous is %g)", rows[i-1].MET))
			ok = false
		}
		track = append(track, GuidanceEntry{MET: row.MET, Frame: f, Angle: row.Angle})
	}
	return track, ok
}

func compileVehicle(vc VehicleConfig, errs *ConfigurationErrors) *Vehicle {
	add := func(field string, met float64, format string, args ...interface{}) {
		*errs = append(*errs, confErr("vehicle", met, field, format, args...))
	}
	elements := make([]Element, 0, len(vc.Elements))
	for _, ec := range vc.Elements {
		field := fmt.Sprintf("elements[%s]", ec.Name)
		e := Element{Name: ec.Name, Count: ec.Count, Throttle: ThrottleSchedule{Max: ec.MaxThrottle}}
		if e.Count == 0 {
			e.Count = 1
		}
		if e.Throttle.Max == 0 {
			e.Throttle.Max = DefaultMaxThrottle
		}
		for _, pc := range ec.Parts {
			part := Part{Name: pc.Name, Dry: pc.Dry, Fuel: pc.Fuel, DragArea: pc.DragArea}
			if pc.Staging != nil && *pc.Staging < NeverStagesMET {
				staging := *pc.Staging
				part.Staging = &staging
			}
			e.Parts = append(e.Parts, part)
		}
		for _, en := range ec.Engines {
			e.Engines = append(e.Engines, Engine{Name: en.Name, Description: en.Description, ThrustSL: en.ThrustSL, ThrustVac: en.ThrustVac, FuelFlow: en.FuelFlow})
		}
		for j, tc := range ec.Throttle {
			row := fmt.Sprintf("%s.throttle[%d]", field, j)
			entry := ThrottleEntry{MET: tc.MET, Start: tc.Start, Engine: tc.Engine, Count: tc.Count, Description: tc.Description}
			if tc.Start < 0 || tc.Start > e.Throttle.Max {
				add(row+".start", tc.MET, "throttle %g outside [0, %g]", tc.Start, e.Throttle.Max)
			}
			if tc.End != nil && *tc.End != -1 {
				if *tc.End < 0 || *tc.End > e.Throttle.Max {
					add(row+".end", tc.MET, "throttle %g outside [0, %g]", *tc.End, e.Throttle.Max)
				}
				end := *tc.End
				entry.End = &end
			}
			if tc.Count > 0 && tc.Engine >= len(e.Engines) {
				add(row+".engine", tc.MET, "no engine %d", tc.Engine)
			}
			if j > 0 && tc.MET <= ec.Throttle[j-1].MET {
				add(row+".met", tc.MET, "MET must be strictly increasing (previous is %g)", ec.Throttle[j-1].MET)
			}
			e.Throttle.Entries = append(e.Throttle.Entries, entry)
		}
		for j, dc := range ec.Drag {
			if j > 0 && dc.Mach <= ec.Drag[j-1].Mach {
				add(fmt.Sprintf("%s.drag[%d]", field, j), noMET, "Mach must be strictly increasing")
			}
			e.Drag = append(e.Drag, DragPoint{Mach: dc.Mach, Cd: dc.Cd})
		}
		elements = append(elements, e)
	}
	static := StaticValues{Mass: vc.Static.Mass, DragArea: vc.Static.DragArea, Cd: vc.Static.Cd, Cr: vc.Static.Cr, SRPArea: vc.Static.SRPArea}
	return NewVehicle(vc.Name, elements, static)
}

func containsFold(list []string, s string) bool {
	for _, l := range list {
		if strings.EqualFold(l, s) {
			return true
		}
	}
	return false
}
