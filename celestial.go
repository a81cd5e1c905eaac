package mrs

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/base"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/moonposition"
	"github.com/soniakeys/meeus/v3/nutation"
	"github.com/soniakeys/meeus/v3/solar"
)

const (
	// AU is one astronomical unit in meters.
	AU = 1.49597870700e11
	// ttMinusUTC approximates TT-UTC in seconds, good enough for low precision ephemerides.
	ttMinusUTC = 69.184
)

// CelestialObject defines a celestial object.
type CelestialObject struct {
	Name   string
	Radius float64   // equatorial radius (m)
	μ      float64   // gravitational parameter (m^3/s^2)
	J      []float64 // unnormalized zonal coefficients, J[n] for n >= 2
	K2     float64   // degree 2 Love number
}

// GM returns μ (which is unexported because it's a lowercase letter)
func (c CelestialObject) GM() float64 {
	return c.μ
}

// Jn returns the zonal coefficient J_n, or zero if it is not known.
func (c CelestialObject) Jn(n int) float64 {
	if n < 2 || n >= len(c.J) {
		return 0
	}
	return c.J[n]
}

// MaxDegree returns the highest supported zonal degree.
func (c CelestialObject) MaxDegree() uint8 {
	if len(c.J) < 3 {
		return 0
	}
	return uint8(len(c.J) - 1)
}

// String implements the Stringer interface.
func (c CelestialObject) String() string {
	return c.Name + " body"
}

// CelestialObjectFromString returns the object from its name.
func CelestialObjectFromString(name string) (CelestialObject, error) {
	switch strings.ToLower(name) {
	case "earth":
		return Earth, nil
	case "moon":
		return Moon, nil
	case "sun":
		return Sun, nil
	default:
		return CelestialObject{}, fmt.Errorf("undefined body '%s'", name)
	}
}

/* Definitions */

// Earth is home (EGM2008 zonal terms).
var Earth = CelestialObject{"Earth", 6378136.3, 3.986004415e14,
	[]float64{0, 0, 1.0826266835531513e-3, -2.5326564853322355e-6, -1.6196215913670001e-6, -2.2729608063399999e-7, 5.4068123910100004e-7}, 0.30}

// Moon is where the trajectory eventually goes.
var Moon = CelestialObject{"Moon", 1738000, 4.902800066e12, []float64{0, 0, 2.0330e-4, 8.4759e-6}, 0.024}

// Sun is our closest star.
var Sun = CelestialObject{"Sun", 695700e3, 1.32712440018e20, nil, 0}

// Ephemeris provides body states and gravity fields. Implementations must be
// side-effect free: the engine calls them at every force evaluation.
type Ephemeris interface {
	// BodyState returns the GCRF position and velocity of the body relative to the Earth.
	BodyState(body string, t time.Time) (r, v []float64, err error)
	// GravityField returns the acceleration caused by the body at rRel, the GCRF
	// position relative to the body center, using harmonics up to the given degree
	// (0 is a point mass).
	GravityField(body string, degree uint8, rRel []float64) ([]float64, error)
}

// MeeusEphemeris implements Ephemeris with Meeus' low precision solar and lunar
// theories and zonal harmonics. Sun and Moon positions are of date (no precession
// correction to GCRF), which is well below what SRP and third body terms need.
type MeeusEphemeris struct{}

// BodyState implements the Ephemeris interface.
func (e MeeusEphemeris) BodyState(body string, t time.Time) (r, v []float64, err error) {
	pos := func(jde float64) ([]float64, error) {
		switch strings.ToLower(body) {
		case "earth":
			return []float64{0, 0, 0}, nil
		case "sun":
			return sunPosition(jde), nil
		case "moon":
			return moonPosition(jde), nil
		}
		return nil, fmt.Errorf("no ephemeris for body '%s'", body)
	}
	jde := julian.TimeToJD(t) + ttMinusUTC/86400
	if r, err = pos(jde); err != nil {
		return nil, nil, err
	}
	// Central difference over two minutes.
	const δt = 60.
	before, _ := pos(jde - δt/86400)
	after, _ := pos(jde + δt/86400)
	v = scale(1/(2*δt), sub(after, before))
	return r, v, nil
}

// GravityField implements the Ephemeris interface. Degrees above the supported
// maximum are truncated to it.
func (e MeeusEphemeris) GravityField(body string, degree uint8, rRel []float64) ([]float64, error) {
	obj, err := CelestialObjectFromString(body)
	if err != nil {
		return nil, err
	}
	if degree > obj.MaxDegree() {
		degree = obj.MaxDegree()
	}
	return zonalAcceleration(obj, int(degree), rRel), nil
}

// MaxDegree returns the highest degree GravityField honors for the body.
func (e MeeusEphemeris) MaxDegree(body string) uint8 {
	obj, err := CelestialObjectFromString(body)
	if err != nil {
		return 0
	}
	return obj.MaxDegree()
}

// zonalAcceleration returns the point mass plus zonal harmonics acceleration up to degree.
// Each zonal term n contributes μ Jn R^n / r^(n+2) [((n+1)Pn(s) + s Pn'(s)) r̂ - Pn'(s) ẑ],
// with s = z/r.
func zonalAcceleration(c CelestialObject, degree int, r []float64) []float64 {
	rNorm := norm(r)
	rHat := scale(1/rNorm, r)
	acc := scale(-c.μ/(rNorm*rNorm), rHat)
	if degree < 2 {
		return acc
	}
	s := rHat[2]
	// Legendre polynomials and their derivatives by recursion.
	P := make([]float64, degree+1)
	dP := make([]float64, degree+1)
	P[0], P[1] = 1, s
	dP[0], dP[1] = 0, 1
	for k := 1; k < degree; k++ {
		P[k+1] = ((2*float64(k)+1)*s*P[k] - float64(k)*P[k-1]) / float64(k+1)
		dP[k+1] = dP[k-1] + (2*float64(k)+1)*P[k]
	}
	Rr := c.Radius / rNorm
	for n := 2; n <= degree; n++ {
		Jn := c.Jn(n)
		if Jn == 0 {
			continue
		}
		fact := c.μ * Jn * math.Pow(Rr, float64(n)) / (rNorm * rNorm)
		radial := (float64(n)+1)*P[n] + s*dP[n]
		acc[0] += fact * radial * rHat[0]
		acc[1] += fact * radial * rHat[1]
		acc[2] += fact * (radial*rHat[2] - dP[n])
	}
	return acc
}

// sunPosition returns the geocentric equatorial position of the Sun (m).
func sunPosition(jde float64) []float64 {
	α, δ := solar.ApparentEquatorial(jde)
	r := solar.Radius(base.J2000Century(jde)) * AU
	sα, cα := math.Sincos(α.Rad())
	sδ, cδ := math.Sincos(δ.Rad())
	return []float64{r * cδ * cα, r * cδ * sα, r * sδ}
}

// moonPosition returns the geocentric equatorial position of the Moon (m).
func moonPosition(jde float64) []float64 {
	λ, β, Δ := moonposition.Position(jde)
	Δ *= 1e3
	sλ, cλ := math.Sincos(λ.Rad())
	sβ, cβ := math.Sincos(β.Rad())
	ecl := []float64{Δ * cβ * cλ, Δ * cβ * sλ, Δ * sβ}
	// Ecliptic to equatorial: rotation about the first axis by -ε.
	return MxV33(R1(-nutation.MeanObliquity(jde).Rad()), ecl)
}
