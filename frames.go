package mrs

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Frame is a guidance and maneuver reference frame.
type Frame uint8

// The numeric values match the frame identifiers of the mission tables.
const (
	// FrameEarthENU is the local East/North/Up frame of the spherical Earth.
	FrameEarthENU Frame = iota + 1
	// FrameEFvelDelta gives offsets to the ENU angles of the Earth-fixed velocity.
	FrameEFvelDelta
	// FrameSFvelDelta gives offsets to the ENU angles of the inertial velocity.
	FrameSFvelDelta
	// FrameLaunchENU is the ENU frame frozen at the launch site at MET 0.
	// Its elevation is a pitch angle measured from the Up axis.
	FrameLaunchENU
	// FrameGCRF gives declination and right ascension in GCRF.
	FrameGCRF
	// FrameVUW is the velocity frame: V along velocity, W = V x r, U = W x V.
	FrameVUW
	// FrameVNB is the velocity frame: V along velocity, N = r x V, B = V x N.
	FrameVNB
	// FrameNone points along the inertial velocity, angles are ignored.
	FrameNone Frame = 10
	// FrameSM0 is the first of ten user defined inertial frames (FrameSM0+9 is the last).
	FrameSM0 Frame = 20
)

// NumStaticFrames is the number of user defined inertial frames.
const NumStaticFrames = 10

type frameFamily uint8

const (
	familyENU       frameFamily = iota + 1 // Earth-ENU and the delta frames
	familyLaunch                           // Launch-ENU
	familyExclusive                        // both tracks must use the very same frame
)

type frameInfo struct {
	name   string
	alias  string // name used in the mission tables
	family frameFamily
	delta  bool
	// interpolates is whether two consecutive entries in this frame are
	// linearly interpolated instead of held.
	interpolates bool
}

var frameInfos = map[Frame]frameInfo{
	FrameEarthENU:   {"Earth_ENU", "F_Earth_ENU_abs", familyENU, false, true},
	FrameEFvelDelta: {"EFvel_ENU_delta", "F_EFvel_Earth_ENU_delta", familyENU, true, true},
	FrameSFvelDelta: {"SFvel_ENU_delta", "F_SFvel_Earth_ENU_delta", familyENU, true, true},
	FrameLaunchENU:  {"Launch_ENU", "F_Launch_ENU_abs", familyLaunch, false, true},
	FrameGCRF:       {"GCRF", "F_GCRF_abs", familyExclusive, false, true},
	FrameVUW:        {"VUW", "F_VUW_abs", familyExclusive, false, true},
	FrameVNB:        {"VNB", "F_VNB_abs", familyExclusive, false, true},
	FrameNone:       {"none", "F_none", familyExclusive, false, false},
}

func init() {
	for i := 0; i < NumStaticFrames; i++ {
		f := FrameSM0 + Frame(i)
		frameInfos[f] = frameInfo{fmt.Sprintf("SM%d", i), fmt.Sprintf("F_SM%d_abs", i), familyExclusive, false, true}
	}
}

func (f Frame) info() frameInfo {
	info, ok := frameInfos[f]
	if !ok {
		panic(fmt.Sprintf("unknown frame %d", uint8(f)))
	}
	return info
}

// Valid returns whether this is a known frame.
func (f Frame) Valid() bool {
	_, ok := frameInfos[f]
	return ok
}

func (f Frame) String() string {
	if !f.Valid() {
		return fmt.Sprintf("Frame(%d)", uint8(f))
	}
	return f.info().name
}

// IsDelta returns whether the angles are offsets to a velocity direction.
func (f Frame) IsDelta() bool {
	return f.info().delta
}

// Exclusive returns whether this frame cannot be combined with another one.
func (f Frame) Exclusive() bool {
	return f.info().family == familyExclusive
}

// Interpolates returns whether consecutive entries in this frame are interpolated.
func (f Frame) Interpolates() bool {
	return f.info().interpolates
}

// IsStatic returns whether this is one of the user defined inertial frames.
func (f Frame) IsStatic() bool {
	return f >= FrameSM0 && f < FrameSM0+NumStaticFrames
}

// FrameFromString returns the frame from its name, its table alias or its number.
func FrameFromString(s string) (Frame, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		// Static frames are numbered from 20 on, as in FrameSM0.
		if f := Frame(n); n > 0 && n < 256 && f.Valid() {
			return f, nil
		}
		return 0, fmt.Errorf("unknown frame number %d", n)
	}
	for f, info := range frameInfos {
		if strings.EqualFold(s, info.name) || strings.EqualFold(s, info.alias) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("unknown frame '%s'", s)
}

// CheckFramePair returns an error if the elevation and heading frames cannot be combined.
func CheckFramePair(elev, head Frame) error {
	if !elev.Valid() || !head.Valid() {
		return fmt.Errorf("unknown frame in pair (%s, %s)", elev, head)
	}
	ei, hi := elev.info(), head.info()
	switch {
	case ei.family == familyExclusive || hi.family == familyExclusive:
		if elev != head {
			return fmt.Errorf("frame %s must be used for both elevation and heading (got %s/%s)", exclusiveOf(elev, head), elev, head)
		}
	case hi.family == familyLaunch && ei.family != familyLaunch:
		return fmt.Errorf("Launch_ENU heading requires a Launch_ENU elevation (got %s)", elev)
	}
	return nil
}

func exclusiveOf(a, b Frame) Frame {
	if a.Exclusive() {
		return a
	}
	return b
}

// Kinematics is the position and velocity used to build the frames, relative
// to the reference body.
type Kinematics struct {
	R, V []float64
}

// FrameResolver turns guidance angles and maneuver components into GCRF vectors.
type FrameResolver struct {
	Launch *Basis                 // Launch-ENU basis, nil without a launch site
	Static [NumStaticFrames]*Basis // user defined frames
}

// Resolve returns the GCRF unit vector of the given elevation and heading (degrees).
func (fr *FrameResolver) Resolve(elevFrame Frame, elevDeg float64, headFrame Frame, headDeg float64, k Kinematics) ([]float64, error) {
	if err := CheckFramePair(elevFrame, headFrame); err != nil {
		return nil, err
	}
	if elevFrame == FrameNone {
		if norm(k.V) == 0 {
			return nil, fmt.Errorf("no frame guidance requires a nonzero velocity")
		}
		return unit(k.V), nil
	}
	if elevFrame.Exclusive() {
		b, err := fr.Basis(elevFrame, k)
		if err != nil {
			return nil, err
		}
		sδ, cδ := math.Sincos(elevDeg * deg2rad)
		sα, cα := math.Sincos(headDeg * deg2rad)
		return b.Along(cδ*cα, cδ*sα, sδ), nil
	}

	enu := enuBasis(k.R)
	hd := headDeg * deg2rad
	switch headFrame {
	case FrameEFvelDelta:
		hd += velocityHeading(enu, relativeVelocity(k.R, k.V))
	case FrameSFvelDelta:
		hd += velocityHeading(enu, k.V)
	}
	sh, ch := math.Sincos(hd)

	if elevFrame == FrameLaunchENU {
		if fr.Launch == nil {
			return nil, fmt.Errorf("Launch_ENU frame used without a launch site")
		}
		sp, cp := math.Sincos(elevDeg * deg2rad)
		return fr.Launch.Along(sp*sh, sp*ch, cp), nil
	}

	el := elevDeg * deg2rad
	switch elevFrame {
	case FrameEFvelDelta:
		el += velocityElevation(enu, relativeVelocity(k.R, k.V))
	case FrameSFvelDelta:
		el += velocityElevation(enu, k.V)
	}
	se, ce := math.Sincos(el)
	return enu.Along(ce*sh, ce*ch, se), nil
}

// velocityElevation returns the elevation of v above the local horizontal, zero for a zero velocity.
func velocityElevation(enu Basis, v []float64) float64 {
	vHat := unit(v)
	return math.Asin(math.Max(-1, math.Min(1, dot(vHat, enu.Z))))
}

// velocityHeading returns the compass heading of v, zero for a zero velocity.
func velocityHeading(enu Basis, v []float64) float64 {
	return math.Atan2(dot(v, enu.X), dot(v, enu.Y))
}

// Basis returns the axes of the frame at the given kinematics. Maneuver
// components are expressed along these axes. Delta frames have no basis.
// The no frame basis is VNB, so that its first axis is the velocity.
func (fr *FrameResolver) Basis(f Frame, k Kinematics) (Basis, error) {
	switch {
	case f == FrameEarthENU:
		return enuBasis(k.R), nil
	case f == FrameLaunchENU:
		if fr.Launch == nil {
			return Basis{}, fmt.Errorf("Launch_ENU frame used without a launch site")
		}
		return *fr.Launch, nil
	case f == FrameGCRF:
		return Basis{X: []float64{1, 0, 0}, Y: []float64{0, 1, 0}, Z: []float64{0, 0, 1}}, nil
	case f == FrameVUW:
		V, err := velocityAxis(k)
		if err != nil {
			return Basis{}, err
		}
		W := unit(cross(V, k.R))
		return Basis{X: V, Y: cross(W, V), Z: W}, nil
	case f == FrameVNB, f == FrameNone:
		V, err := velocityAxis(k)
		if err != nil {
			return Basis{}, err
		}
		N := unit(cross(k.R, V))
		return Basis{X: V, Y: N, Z: cross(V, N)}, nil
	case f.IsStatic():
		b := fr.Static[f-FrameSM0]
		if b == nil {
			return Basis{}, fmt.Errorf("static frame %s is not defined", f)
		}
		return *b, nil
	}
	return Basis{}, fmt.Errorf("frame %s has no basis", f)
}

func velocityAxis(k Kinematics) ([]float64, error) {
	if norm(k.V) == 0 {
		return nil, fmt.Errorf("velocity frame undefined for a zero velocity")
	}
	if norm(cross(k.R, k.V)) == 0 {
		return nil, fmt.Errorf("velocity frame undefined for a radial velocity")
	}
	return unit(k.V), nil
}
