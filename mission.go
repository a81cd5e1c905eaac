package mrs

import (
	"context"
	"fmt"
	"math"
	"sort"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// RunOptions are the collaborators and options of a run. Zero values select
// the default services.
type RunOptions struct {
	EndMET    float64 // optional early stop, zero for none
	Logger    kitlog.Logger
	Metrics   *Metrics
	Ephemeris Ephemeris
	Earth     EarthFrames
	Detectors []Detector // nil selects the Mach 1 and max Q detectors
	Resume    *Checkpoint
	trace     func(met float64, segment int)
}

// Checkpoint is the state at the entry of a segment, from which a run may be resumed.
type Checkpoint struct {
	MET         float64
	R, V        []float64
	Fuel        []float64
	Segment     int
	Propagation int // propagation setting in use, needed after a maneuver segment
}

// Result is the output of a run.
type Result struct {
	States      []State // logged states, by increasing MET
	Events      []Event // by increasing MET
	Checkpoints []Checkpoint
}

// Final returns the last state of the run.
func (r *Result) Final() State {
	if len(r.States) == 0 {
		return State{}
	}
	return r.States[len(r.States)-1]
}

// Mission runs a validated mission configuration, segment by segment.
type Mission struct {
	plan      *missionPlan
	opts      RunOptions
	logger    kitlog.Logger
	metrics   *Metrics
	earth     EarthFrames
	ephemeris Ephemeris
	ev        *Evaluator
	state     State
	segment   int
	propIdx   int
	logSteps  int // accepted steps since the segment entry, for downsampling
	result    Result
	detectors []Detector
	depleted  []bool
}

// NewMission validates the configuration and prepares a run.
func NewMission(cfg *MissionConfig, opts RunOptions) (*Mission, error) {
	m := &Mission{opts: opts, logger: opts.Logger, metrics: opts.Metrics, earth: opts.Earth, ephemeris: opts.Ephemeris, detectors: opts.Detectors}
	if m.logger == nil {
		m.logger = kitlog.NewNopLogger()
	}
	if m.earth == nil {
		m.earth = WGS84Frames{}
	}
	if m.ephemeris == nil {
		m.ephemeris = MeeusEphemeris{}
	}
	if m.detectors == nil {
		m.detectors = []Detector{&Mach1Detector{}, &MaxQDetector{}}
	}
	plan, err := compile(cfg, m.earth, m.ephemeris)
	if err != nil {
		return nil, err
	}
	m.plan = plan
	for _, w := range plan.warnings {
		level.Warn(m.logger).Log("subsys", "conf", "mission", plan.name, "warning", w)
	}
	if opts.EndMET != 0 {
		if opts.EndMET <= plan.segments[0].MET {
			return nil, confErr("mission", opts.EndMET, "end_met", "the end MET must be after the first segment (%g)", plan.segments[0].MET)
		}
		plan.stopMET = math.Min(plan.stopMET, opts.EndMET)
	}
	m.ev = &Evaluator{Vehicle: plan.vehicle, Guidance: plan.guidance, Frames: plan.frames, Ephemeris: m.ephemeris, Earth: m.earth, Epoch: plan.epoch}
	m.depleted = make([]bool, len(plan.vehicle.Elements))
	return m, nil
}

// Run validates cfg and propagates the mission.
func Run(ctx context.Context, cfg *MissionConfig, opts RunOptions) (*Result, error) {
	m, err := NewMission(cfg, opts)
	if err != nil {
		return nil, err
	}
	return m.Run(ctx)
}

// StopMET returns the MET at which the run stops.
func (m *Mission) StopMET() float64 {
	return m.plan.stopMET
}

// Run propagates the mission up to the stop MET. On error, the partial result is returned with it.
func (m *Mission) Run(ctx context.Context) (*Result, error) {
	segs := m.plan.segments
	stop := m.plan.stopMET
	first := 0
	if cp := m.opts.Resume; cp != nil {
		if cp.Segment < 0 || cp.Segment >= len(segs) || cp.MET != segs[cp.Segment].MET {
			return nil, confErr("checkpoint", cp.MET, "segment", "checkpoint does not match segment %d", cp.Segment)
		}
		if cp.Propagation < 0 || cp.Propagation >= len(m.plan.propagations) || len(cp.Fuel) != m.plan.vehicle.NumFuel() {
			return nil, confErr("checkpoint", cp.MET, "", "checkpoint does not match this mission")
		}
		first = cp.Segment
		m.propIdx = cp.Propagation
		m.state = State{MET: cp.MET, R: append([]float64(nil), cp.R...), V: append([]float64(nil), cp.V...), Fuel: append([]float64(nil), cp.Fuel...)}
		for i, e := range m.plan.vehicle.Elements {
			m.depleted[i] = len(e.Engines) > 0 && m.hasFuelParts(cp.MET, i) && m.plan.vehicle.ElementFuel(cp.MET, i, cp.Fuel) == 0
		}
		level.Info(m.logger).Log("subsys", "sched", "resume", cp.MET, "segment", cp.Segment)
	} else {
		m.state = m.initialState()
	}
	m.state.Segment = first
	m.state.Mass = m.mass(m.state.MET, m.state.Fuel)
	m.record(true)
	level.Info(m.logger).Log("subsys", "sched", "mission", m.plan.name, "start", m.state.MET, "stop", stop)

	lastDiscrete := math.NaN()
	for i := first; i < len(segs); i++ {
		seg := segs[i]
		if seg.MET > stop {
			break
		}
		m.segment = i
		m.logSteps = 0
		m.state.Segment = i
		m.metrics.segment()
		if i > 0 {
			m.emit(Event{MET: seg.MET, Description: fmt.Sprintf("Segment %d (%s): %s", i, seg.Type, seg.Comment), Source: SegmentEvent, Index: i, State: m.state.clone()})
		}
		m.result.Checkpoints = append(m.result.Checkpoints, Checkpoint{MET: seg.MET, R: append([]float64(nil), m.state.R...), V: append([]float64(nil), m.state.V...),
			Fuel: append([]float64(nil), m.state.Fuel...), Segment: i, Propagation: m.propIdx})
		if seg.Type == SegmentManeuver {
			if err := m.applyManeuver(seg); err != nil {
				return &m.result, err
			}
		} else {
			m.propIdx = seg.ConfigID
		}
		prop := &m.plan.propagations[m.propIdx]
		level.Info(m.logger).Log("subsys", "sched", "segment", i, "met", seg.MET, "type", seg.Type, "mode", prop.Mode, "method", prop.Method, "comment", seg.Comment)
		m.discrete(seg.MET)
		lastDiscrete = seg.MET
		if seg.MET >= stop {
			break
		}
		end := stop
		if i+1 < len(segs) && segs[i+1].MET < stop {
			end = segs[i+1].MET
		}
		if err := m.propagate(ctx, prop, seg.MET, end); err != nil {
			level.Error(m.logger).Log("subsys", "sched", "met", m.state.MET, "err", err)
			return &m.result, err
		}
	}
	if lastDiscrete != stop {
		m.discrete(stop)
	}
	for _, d := range m.detectors {
		if e, ok := d.Finish(); ok {
			m.emit(e)
		}
	}
	sort.SliceStable(m.result.Events, func(i, j int) bool { return m.result.Events[i].MET < m.result.Events[j].MET })
	m.record(true)
	level.Info(m.logger).Log("subsys", "sched", "status", "finished", "met", m.state.MET, "mass(kg)", m.state.Mass, "events", len(m.result.Events))
	return &m.result, nil
}

// initialState returns the state at the first segment.
func (m *Mission) initialState() State {
	met := m.plan.segments[0].MET
	st := State{MET: met, Fuel: m.plan.vehicle.InitialFuel()}
	if m.plan.launchType == LaunchFromPad {
		site := m.plan.launchSite
		st.R, st.V = m.earth.GeodeticToGCRF(site.Lat, site.Lon, site.Alt, m.plan.epoch.JD(met))
	} else {
		st.R = append([]float64(nil), m.plan.initial.R...)
		st.V = append([]float64(nil), m.plan.initial.V...)
	}
	return st
}

// propagate integrates from start to end, breaking the integration at every discontinuity.
func (m *Mission) propagate(ctx context.Context, prop *propagation, start, end float64) error {
	t := start
	for _, bp := range m.breakpoints(start, end) {
		if err := newArc(ctx, m, prop, t, bp).run(); err != nil {
			return err
		}
		t = bp
		if bp < end {
			m.discrete(bp)
		}
	}
	m.record(true)
	return nil
}

// breakpoints returns the sorted METs in (start, end] where the integration must restart.
func (m *Mission) breakpoints(start, end float64) []float64 {
	var all []float64
	all = append(all, m.plan.vehicle.StagingTimes()...)
	all = append(all, m.plan.vehicle.ThrottleTimes()...)
	all = append(all, m.plan.guidance.Elevation.Breakpoints()...)
	all = append(all, m.plan.guidance.Heading.Breakpoints()...)
	for _, e := range m.plan.events {
		all = append(all, e.MET)
	}
	points := []float64{end}
	for _, met := range all {
		if met > start && met < end {
			points = append(points, met)
		}
	}
	sort.Float64s(points)
	uniq := points[:1]
	for _, met := range points[1:] {
		if met != uniq[len(uniq)-1] {
			uniq = append(uniq, met)
		}
	}
	return uniq
}

// discrete emits the table events which happen exactly at met.
func (m *Mission) discrete(met float64) {
	m.state.Mass = m.mass(met, m.state.Fuel)
	for _, e := range m.plan.vehicle.Elements {
		for j, p := range e.Parts {
			if p.Staging != nil && *p.Staging == met {
				m.emit(Event{MET: met, Description: fmt.Sprintf("%s: Staging of %s.", e.Name, p.Name), Source: StagingEvent, Index: j, State: m.state.clone()})
			}
		}
		for j, row := range e.Throttle.Entries {
			if row.MET == met && row.Description != "" {
				m.emit(Event{MET: met, Description: fmt.Sprintf("%s: %s", e.Name, row.Description), Source: ThrottleEvent, Index: j, State: m.state.clone()})
			}
		}
	}
	for j, g := range m.plan.guidance.Elevation {
		if g.MET == met {
			m.emit(Event{MET: met, Description: fmt.Sprintf("Elevation: %s %.4f deg", g.Frame, g.Angle), Source: ElevationEvent, Index: j, State: m.state.clone()})
		}
	}
	for j, g := range m.plan.guidance.Heading {
		if g.MET == met {
			m.emit(Event{MET: met, Description: fmt.Sprintf("Heading: %s %.4f deg", g.Frame, g.Angle), Source: HeadingEvent, Index: j, State: m.state.clone()})
		}
	}
	for j, e := range m.plan.events {
		if e.MET == met {
			m.emit(Event{MET: met, Description: e.Name, Source: UserEvent, Index: j, State: m.state.clone()})
		}
	}
}

// applyManeuver adds the impulsive delta-v of a maneuver segment to the velocity.
func (m *Mission) applyManeuver(seg segment) error {
	mv := m.plan.maneuvers[seg.ConfigID]
	k := Kinematics{R: m.state.R, V: m.state.V}
	if mv.Body != Earth.Name {
		rb, vb, err := m.ephemeris.BodyState(mv.Body, m.plan.epoch.Time(seg.MET))
		if err != nil {
			return &NumericalError{Component: "maneuver", MET: seg.MET, Reason: err.Error(), LastState: m.state.clone()}
		}
		k = Kinematics{R: sub(m.state.R, rb), V: sub(m.state.V, vb)}
	}
	b, err := m.plan.frames.Basis(mv.Frame, k)
	if err != nil {
		return &NumericalError{Component: "maneuver", MET: seg.MET, Reason: err.Error(), LastState: m.state.clone()}
	}
	Δv := b.Along(mv.DX, mv.DY, mv.DZ)
	for i := 0; i < 3; i++ {
		m.state.V[i] += Δv[i]
	}
	desc := mv.Comment
	if desc == "" {
		desc = fmt.Sprintf("Maneuver %d", seg.ConfigID)
	}
	m.emit(Event{MET: seg.MET, Description: fmt.Sprintf("%s (%s, %.3f m/s)", desc, mv.Frame, norm(Δv)), Source: ManeuverEvent, Index: seg.ConfigID, State: m.state.clone()})
	m.record(true)
	return nil
}

// accept is called by the arcs on every accepted step.
func (m *Mission) accept(met float64, s []float64, prop *propagation) {
	m.logSteps++
	m.state.MET = met
	m.state.R = append(m.state.R[:0:0], s[0:3]...)
	m.state.V = append(m.state.V[:0:0], s[3:6]...)
	m.state.Fuel = append(m.state.Fuel[:0:0], s[6:]...)
	m.state.Mass = m.mass(met, m.state.Fuel)

	for i, e := range m.plan.vehicle.Elements {
		if m.depleted[i] || len(e.Engines) == 0 || !m.hasFuelParts(met, i) {
			continue
		}
		if m.plan.vehicle.ElementFuel(met, i, m.state.Fuel) == 0 {
			m.depleted[i] = true
			m.emit(Event{MET: met, Description: fmt.Sprintf("%s: fuel depleted.", e.Name), Source: FuelEvent, Index: i, State: m.state.clone()})
		}
	}

	sample := FlightSample{State: m.state}
	if atmos := prop.Forces.Atmosphere; atmos != nil {
		alt := m.earth.Altitude(m.state.R, m.plan.epoch.JD(met))
		vRel := norm(relativeVelocity(m.state.R, m.state.V))
		sample.Mach = vRel / atmos.SpeedOfSound(alt)
		sample.Q = 0.5 * atmos.Density(alt) * vRel * vRel
		sample.Valid = true
	}
	for _, d := range m.detectors {
		if d.Cleared() {
			continue
		}
		if e, ok := d.Observe(sample); ok {
			m.emit(e)
		}
	}
	if m.logSteps%prop.Downsample == 0 {
		m.record(false)
	}
}

// hasFuelParts returns whether element e has an attached part which was loaded with fuel.
func (m *Mission) hasFuelParts(met float64, e int) bool {
	for _, p := range m.plan.vehicle.Elements[e].Parts {
		if !p.StagedAt(met) && p.Fuel > 0 {
			return true
		}
	}
	return false
}

// mass returns the vehicle mass, or the static mass for a vehicle without elements.
func (m *Mission) mass(met float64, fuel []float64) float64 {
	if len(m.plan.vehicle.Elements) == 0 {
		return m.plan.vehicle.Static.Mass
	}
	return m.plan.vehicle.Evaluate(met, fuel).Mass
}

// record appends the current state to the logged states. Unless forced, a state
// at the MET of the last one is not logged again.
func (m *Mission) record(force bool) {
	if n := len(m.result.States); n > 0 {
		last := m.result.States[n-1]
		if last.MET == m.state.MET && (!force || statesEqual(last, m.state)) {
			return
		}
	}
	m.result.States = append(m.result.States, m.state.clone())
}

func statesEqual(a, b State) bool {
	for i := 0; i < 3; i++ {
		if a.R[i] != b.R[i] || a.V[i] != b.V[i] {
			return false
		}
	}
	return a.Mass == b.Mass && a.Segment == b.Segment
}

func (m *Mission) emit(e Event) {
	if len(e.State.R) == 3 {
		e.Flight = NewFlightData(m.earth, m.plan.launchSite, e.State.R, e.State.V, m.plan.epoch.JD(e.State.MET))
	}
	m.metrics.event(e.Source)
	level.Info(m.logger).Log("subsys", "sched", "met", e.MET, "source", e.Source, "event", e.Description)
	m.result.Events = append(m.result.Events, e)
}
