package mrs

import "math"

// DefaultMaxThrottle is the throttle limit used when an element does not set one.
const DefaultMaxThrottle = 1.2

// ThrottleEntry is one row of an element's throttle table.
type ThrottleEntry struct {
	MET   float64
	Start float64
	// End is the throttle reached at the next entry's MET. A nil End holds
	// Start until the next entry (HoldUntilNext).
	End         *float64
	Engine      int // index in the element's engines
	Count       int // number of active engines
	Description string
}

// HoldUntilNext returns whether the throttle is held at Start until the next entry.
func (e ThrottleEntry) HoldUntilNext() bool {
	return e.End == nil
}

// ThrottleSchedule sequences the throttle and the active engines of an element.
type ThrottleSchedule struct {
	Entries []ThrottleEntry
	Max     float64 // zero means DefaultMaxThrottle
}

// ThrottleSetting is the output of the sequencer at a given MET.
type ThrottleSetting struct {
	Throttle float64
	Engine   int
	Count    int
	Index    int // governing entry, -1 for an empty schedule
}

func (s ThrottleSchedule) max() float64 {
	if s.Max <= 0 {
		return DefaultMaxThrottle
	}
	return s.Max
}

// At returns the throttle setting at met. Between two entries the throttle ramps
// linearly from Start to End, or holds Start. Engine changes are instantaneous.
// Before the first entry the first Start holds (miss is true), after the last
// entry its Start holds. The throttle is clamped to [0, Max].
func (s ThrottleSchedule) At(met float64) (setting ThrottleSetting, miss bool) {
	if len(s.Entries) == 0 {
		return ThrottleSetting{Index: -1}, true
	}
	i := 0
	if met < s.Entries[0].MET {
		miss = true
	} else {
		for i+1 < len(s.Entries) && s.Entries[i+1].MET <= met {
			i++
		}
	}
	e := s.Entries[i]
	throttle := e.Start
	if !miss && !e.HoldUntilNext() && i+1 < len(s.Entries) {
		next := s.Entries[i+1]
		frac := (met - e.MET) / (next.MET - e.MET)
		throttle = e.Start + frac*(*e.End-e.Start)
	}
	throttle = math.Max(0, math.Min(s.max(), throttle))
	return ThrottleSetting{Throttle: throttle, Engine: e.Engine, Count: e.Count, Index: i}, miss
}

// Breakpoints returns the METs of the entries.
func (s ThrottleSchedule) Breakpoints() []float64 {
	mets := make([]float64, len(s.Entries))
	for i, e := range s.Entries {
		mets[i] = e.MET
	}
	return mets
}
