package mrs

import (
	"fmt"
	"math"
	"strings"
)

const (
	// SolarPressure is the solar radiation pressure at 1 AU (N/m^2).
	SolarPressure = 4.56e-6
)

// ForceModel is the set of force terms summed during a segment.
// Disabled terms are skipped and contribute an exact zero.
type ForceModel struct {
	EarthDegree uint8
	MoonDegree  uint8
	ThirdBodies []string   // perturbing bodies other than the Earth
	Atmosphere  Atmosphere // nil when no atmosphere model is used
	Drag        bool
	SRP         bool
	EarthTides  bool
	MoonTides   bool
	ActiveSC    bool // use the staged vehicle, its thrust and guidance
}

// Forces is the breakdown of one evaluation. All accelerations are GCRF m/s^2.
type Forces struct {
	Gravity, Drag, SRP, Tides, Thrust []float64
	FuelFlow                          []float64 // kg/s per fuel entry
	Mass                              float64
	Altitude                          float64
	Mach                              float64 // zero without atmosphere
	DynamicPressure                   float64 // Pa, zero without atmosphere
	ThrustMagnitude                   float64 // N
	Direction                         []float64
	Guidance                          GuidanceCommand
	Stage                             StageStatus
}

// Acceleration returns the sum of all the terms, always in the same order.
func (f Forces) Acceleration() []float64 {
	acc := make([]float64, 3)
	for i := 0; i < 3; i++ {
		acc[i] = f.Gravity[i] + f.Drag[i] + f.SRP[i] + f.Tides[i] + f.Thrust[i]
	}
	return acc
}

// Evaluator assembles the forces from the services and the vehicle.
type Evaluator struct {
	Vehicle   *Vehicle
	Guidance  Guidance
	Frames    *FrameResolver
	Ephemeris Ephemeris
	Earth     EarthFrames
	Epoch     Epoch
}

// Evaluate returns the forces at met for the position r, velocity v and fuel.
func (ev *Evaluator) Evaluate(met float64, r, v, fuel []float64, fm *ForceModel) (Forces, error) {
	f := Forces{
		Drag:     []float64{0, 0, 0},
		SRP:      []float64{0, 0, 0},
		Tides:    []float64{0, 0, 0},
		Thrust:   []float64{0, 0, 0},
		FuelFlow: make([]float64, ev.Vehicle.NumFuel()),
		Mass:     ev.Vehicle.Static.Mass,
	}
	t := ev.Epoch.Time(met)
	jd := ev.Epoch.JD(met)

	// Gravity
	grav, err := ev.Ephemeris.GravityField("Earth", fm.EarthDegree, r)
	if err != nil {
		return f, err
	}
	bodies := make(map[string][]float64, len(fm.ThirdBodies))
	for _, body := range fm.ThirdBodies {
		rb, _, err := ev.Ephemeris.BodyState(body, t)
		if err != nil {
			return f, err
		}
		bodies[strings.ToLower(body)] = rb
		var degree uint8
		if strings.EqualFold(body, "moon") {
			degree = fm.MoonDegree
		}
		direct, err := ev.Ephemeris.GravityField(body, degree, sub(r, rb))
		if err != nil {
			return f, err
		}
		indirect, err := ev.Ephemeris.GravityField(body, 0, scale(-1, rb))
		if err != nil {
			return f, err
		}
		for i := 0; i < 3; i++ {
			grav[i] += direct[i] - indirect[i]
		}
	}
	f.Gravity = grav

	// Vehicle
	pressureFraction := 0.
	f.Altitude = ev.Earth.Altitude(r, jd)
	vRel := relativeVelocity(r, v)
	var ρ float64
	if fm.Atmosphere != nil {
		ρ = fm.Atmosphere.Density(f.Altitude)
		pressureFraction = fm.Atmosphere.PressureFraction(f.Altitude)
		vRelNorm := norm(vRel)
		f.Mach = vRelNorm / fm.Atmosphere.SpeedOfSound(f.Altitude)
		f.DynamicPressure = 0.5 * ρ * vRelNorm * vRelNorm
	}
	if fm.ActiveSC {
		f.Stage = ev.Vehicle.Evaluate(met, fuel)
		f.Mass = f.Stage.Mass
		f.ThrustMagnitude, f.FuelFlow = ev.Vehicle.Propulsion(f.Stage, pressureFraction)
	}
	if f.Mass <= 0 {
		return f, fmt.Errorf("non positive vehicle mass %g kg", f.Mass)
	}

	// Drag
	if fm.Drag && fm.Atmosphere != nil {
		cda := ev.Vehicle.Static.Cd * ev.Vehicle.Static.DragArea
		if fm.ActiveSC {
			cda = ev.Vehicle.CdA(met, f.Mach)
		}
		f.Drag = scale(-0.5*ρ*norm(vRel)*cda/f.Mass, vRel)
	}

	// Solar radiation pressure
	if fm.SRP {
		rs, ok := bodies["sun"]
		if !ok {
			if rs, _, err = ev.Ephemeris.BodyState("Sun", t); err != nil {
				return f, err
			}
		}
		f.SRP = srpAcceleration(r, rs, ev.Vehicle.Static.Cr*ev.Vehicle.Static.SRPArea/f.Mass)
	}

	// Tides
	if fm.EarthTides || fm.MoonTides {
		rm, ok := bodies["moon"]
		if !ok {
			if rm, _, err = ev.Ephemeris.BodyState("Moon", t); err != nil {
				return f, err
			}
		}
		if fm.EarthTides {
			rs, ok := bodies["sun"]
			if !ok {
				if rs, _, err = ev.Ephemeris.BodyState("Sun", t); err != nil {
					return f, err
				}
			}
			tm := tidalAcceleration(Earth, Moon.GM(), r, rm)
			ts := tidalAcceleration(Earth, Sun.GM(), r, rs)
			for i := 0; i < 3; i++ {
				f.Tides[i] += tm[i] + ts[i]
			}
		}
		if fm.MoonTides {
			tm := tidalAcceleration(Moon, Earth.GM(), sub(r, rm), scale(-1, rm))
			for i := 0; i < 3; i++ {
				f.Tides[i] += tm[i]
			}
		}
	}

	// Thrust
	if fm.ActiveSC && f.ThrustMagnitude > 0 {
		f.Guidance = ev.Guidance.At(met)
		dir, err := ev.Frames.Resolve(f.Guidance.ElevationFrame, f.Guidance.Elevation, f.Guidance.HeadingFrame, f.Guidance.Heading, Kinematics{R: r, V: v})
		if err != nil {
			return f, err
		}
		f.Direction = dir
		f.Thrust = scale(f.ThrustMagnitude/f.Mass, dir)
	}
	return f, nil
}

// FuelFlow returns only the fuel derivatives at met, used when the vehicle is held.
func (ev *Evaluator) FuelFlow(met float64, r, fuel []float64, fm *ForceModel) []float64 {
	if !fm.ActiveSC {
		return make([]float64, ev.Vehicle.NumFuel())
	}
	pressureFraction := 0.
	if fm.Atmosphere != nil {
		pressureFraction = fm.Atmosphere.PressureFraction(ev.Earth.Altitude(r, ev.Epoch.JD(met)))
	}
	_, flow := ev.Vehicle.Propulsion(ev.Vehicle.Evaluate(met, fuel), pressureFraction)
	return flow
}

// srpAcceleration returns the solar radiation pressure acceleration at r, with
// the Sun at rs and the given Cr*A/m, using a cylindrical Earth shadow.
func srpAcceleration(r, rs []float64, crAm float64) []float64 {
	sHat := unit(rs)
	if proj := dot(r, sHat); proj < 0 {
		perp := sub(r, scale(proj, sHat))
		if norm(perp) < Earth.Radius {
			return []float64{0, 0, 0}
		}
	}
	d := sub(rs, r)
	dNorm := norm(d)
	p := SolarPressure * (AU / dNorm) * (AU / dNorm)
	return scale(-p*crAm/dNorm, d)
}

// tidalAcceleration returns the acceleration at r caused by the deformation of
// body by a perturber of gravitational parameter μb at rb (both relative to body).
func tidalAcceleration(body CelestialObject, μb float64, r, rb []float64) []float64 {
	rNorm, rbNorm := norm(r), norm(rb)
	rHat, rbHat := unit(r), unit(rb)
	c := dot(rHat, rbHat)
	fact := body.K2 / 2 * μb * math.Pow(body.Radius, 5) / (math.Pow(rbNorm, 3) * math.Pow(rNorm, 4))
	return combine(fact*(3-15*c*c), rHat, fact*6*c, rbHat, 0, rbHat)
}
