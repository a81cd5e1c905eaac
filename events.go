package mrs

import "fmt"

// State is the vehicle state at a given MET, in GCRF.
type State struct {
	MET     float64
	R, V    []float64 // m, m/s
	Mass    float64   // kg
	Fuel    []float64 // kg per part
	Segment int       // index of the active mission segment
}

func (s State) String() string {
	return fmt.Sprintf("MET=%.3f R=%.3f V=%.3f m=%.1f", s.MET, s.R, s.V, s.Mass)
}

func (s State) clone() State {
	c := s
	c.R = append([]float64(nil), s.R...)
	c.V = append([]float64(nil), s.V...)
	c.Fuel = append([]float64(nil), s.Fuel...)
	return c
}

// EventSource is what triggered an event.
type EventSource uint8

const (
	// SegmentEvent is the entry in a new mission segment (configuration switch).
	SegmentEvent EventSource = iota + 1
	// ManeuverEvent is an impulsive maneuver.
	ManeuverEvent
	// StagingEvent is the detachment of a part.
	StagingEvent
	// ThrottleEvent is a described throttle table entry.
	ThrottleEvent
	// ElevationEvent is a new elevation guidance entry.
	ElevationEvent
	// HeadingEvent is a new heading guidance entry.
	HeadingEvent
	// FuelEvent is the depletion of an element's fuel.
	FuelEvent
	// UserEvent comes from the mission event table.
	UserEvent
	// DetectorEvent is raised by a detector (Mach 1, max Q).
	DetectorEvent
)

func (s EventSource) String() string {
	switch s {
	case SegmentEvent:
		return "segment"
	case ManeuverEvent:
		return "maneuver"
	case StagingEvent:
		return "staging"
	case ThrottleEvent:
		return "throttle"
	case ElevationEvent:
		return "elevation"
	case HeadingEvent:
		return "heading"
	case FuelEvent:
		return "fuel"
	case UserEvent:
		return "user"
	case DetectorEvent:
		return "detector"
	}
	panic("cannot stringify unknown event source")
}

// Event is a discrete mission event.
type Event struct {
	MET         float64
	Description string
	Source      EventSource
	Index       int // index in the triggering table (segment, guidance, throttle, ...)
	State       State
	Flight      FlightData
}

func (e Event) String() string {
	return fmt.Sprintf("[%s] MET %.3f: %s", e.Source, e.MET, e.Description)
}

// FlightSample is what detectors observe after each accepted step.
type FlightSample struct {
	State
	Mach, Q float64
	Valid   bool // false without an atmosphere model
}

// Detector watches the flight for a condition.
type Detector interface {
	Cleared() bool                      // returns whether the detector has fired
	Observe(s FlightSample) (Event, bool) // returns an event as soon as it is detected
	Finish() (Event, bool)              // returns an event only known at the end of the run
	String() string
}

// Mach1Detector fires when the vehicle first goes supersonic. The crossing MET
// and state are linearly interpolated between the two bracketing steps.
type Mach1Detector struct {
	prev    *FlightSample
	cleared bool
}

// Cleared implements the Detector interface.
func (d *Mach1Detector) Cleared() bool {
	return d.cleared
}

// Observe implements the Detector interface.
func (d *Mach1Detector) Observe(s FlightSample) (Event, bool) {
	if d.cleared || !s.Valid {
		return Event{}, false
	}
	prev := d.prev
	cur := s
	d.prev = &cur
	if prev == nil || prev.Mach >= 1 || s.Mach < 1 {
		return Event{}, false
	}
	d.cleared = true
	frac := (1 - prev.Mach) / (s.Mach - prev.Mach)
	st := s.State.clone()
	st.MET = prev.MET + frac*(s.MET-prev.MET)
	for i := 0; i < 3; i++ {
		st.R[i] = prev.R[i] + frac*(s.R[i]-prev.R[i])
		st.V[i] = prev.V[i] + frac*(s.V[i]-prev.V[i])
	}
	st.Mass = prev.Mass + frac*(s.Mass-prev.Mass)
	return Event{MET: st.MET, Description: "Mach 1.", Source: DetectorEvent, Index: -1, State: st}, true
}

// Finish implements the Detector interface.
func (d *Mach1Detector) Finish() (Event, bool) {
	return Event{}, false
}

func (d *Mach1Detector) String() string {
	return "Mach 1 detector"
}

// MaxQDetector reports the maximum dynamic pressure of the run.
type MaxQDetector struct {
	best    *FlightSample
	cleared bool
}

// Cleared implements the Detector interface.
func (d *MaxQDetector) Cleared() bool {
	return d.cleared
}

// Observe implements the Detector interface.
func (d *MaxQDetector) Observe(s FlightSample) (Event, bool) {
	if s.Valid && s.Q > 0 && (d.best == nil || s.Q > d.best.Q) {
		best := s
		best.State = s.State.clone()
		d.best = &best
	}
	return Event{}, false
}

// Finish implements the Detector interface.
func (d *MaxQDetector) Finish() (Event, bool) {
	if d.best == nil || d.cleared {
		return Event{}, false
	}
	d.cleared = true
	return Event{MET: d.best.MET, Description: fmt.Sprintf("Max Q (%.1f Pa).", d.best.Q), Source: DetectorEvent, Index: -1, State: d.best.State}, true
}

func (d *MaxQDetector) String() string {
	return "max Q detector"
}
