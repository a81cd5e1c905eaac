package mrs

// GuidanceEntry is one row of a guidance track: from MET on, the angle
// (degrees) is given in Frame.
type GuidanceEntry struct {
	MET   float64
	Frame Frame
	Angle float64
}

// GuidanceTrack is an elevation or heading table, ordered by strictly increasing MET.
type GuidanceTrack []GuidanceEntry

// Lookup returns the frame and angle active at met, and the index of the governing entry.
// The last entry whose MET is not after met governs. When the next entry uses the
// same frame, and that frame interpolates, the angle is linearly interpolated
// between both entries. Before the first entry the first one holds and miss is
// true; after the last entry the last one holds. An empty track points along the
// velocity.
func (t GuidanceTrack) Lookup(met float64) (frame Frame, angle float64, index int, miss bool) {
	if len(t) == 0 {
		return FrameNone, 0, -1, true
	}
	if met < t[0].MET {
		return t[0].Frame, t[0].Angle, 0, true
	}
	index = t.governing(met)
	cur := t[index]
	if index == len(t)-1 {
		return cur.Frame, cur.Angle, index, false
	}
	next := t[index+1]
	if next.Frame != cur.Frame || !cur.Frame.Interpolates() {
		return cur.Frame, cur.Angle, index, false
	}
	frac := (met - cur.MET) / (next.MET - cur.MET)
	return cur.Frame, cur.Angle + frac*(next.Angle-cur.Angle), index, false
}

// governing returns the index of the last entry whose MET is not after met.
func (t GuidanceTrack) governing(met float64) int {
	lo, hi := 0, len(t)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if t[mid].MET <= met {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// Breakpoints returns the METs of the entries.
func (t GuidanceTrack) Breakpoints() []float64 {
	mets := make([]float64, len(t))
	for i, e := range t {
		mets[i] = e.MET
	}
	return mets
}

// Guidance holds both tracks, which are looked up independently.
type Guidance struct {
	Name      string
	Elevation GuidanceTrack
	Heading   GuidanceTrack
}

// GuidanceCommand is the guidance at a given MET.
type GuidanceCommand struct {
	ElevationFrame, HeadingFrame Frame
	Elevation, Heading           float64 // degrees
	ElevationIndex, HeadingIndex int
	Miss                         bool
}

// At returns the guidance command at met.
func (g Guidance) At(met float64) GuidanceCommand {
	var cmd GuidanceCommand
	var missE, missH bool
	cmd.ElevationFrame, cmd.Elevation, cmd.ElevationIndex, missE = g.Elevation.Lookup(met)
	cmd.HeadingFrame, cmd.Heading, cmd.HeadingIndex, missH = g.Heading.Lookup(met)
	cmd.Miss = missE || missH
	return cmd
}
