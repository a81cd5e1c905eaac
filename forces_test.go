package mrs

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

func testEvaluator(v *Vehicle) *Evaluator {
	return &Evaluator{
		Vehicle: v,
		Guidance: Guidance{
			Elevation: GuidanceTrack{{MET: 0, Frame: FrameEarthENU, Angle: 90}},
			Heading:   GuidanceTrack{{MET: 0, Frame: FrameEarthENU, Angle: 0}},
		},
		Frames:    &FrameResolver{},
		Ephemeris: MeeusEphemeris{},
		Earth:     WGS84Frames{},
		Epoch:     Epoch{T0: time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
}

func TestForcesStaticPointMass(t *testing.T) {
	ev := testEvaluator(NewVehicle("sc", nil, StaticValues{Mass: 500}))
	r := []float64{7000e3, 0, 0}
	f, err := ev.Evaluate(0, r, []float64{0, 7500, 0}, nil, &ForceModel{})
	if err != nil {
		t.Fatal(err)
	}
	if !vectorsEqual(f.Acceleration(), []float64{-Earth.GM() / (7000e3 * 7000e3), 0, 0}) {
		t.Fatalf("incorrect acceleration %v", f.Acceleration())
	}
	for _, term := range [][]float64{f.Drag, f.SRP, f.Tides, f.Thrust} {
		if term[0] != 0 || term[1] != 0 || term[2] != 0 {
			t.Fatal("disabled terms must be exactly zero")
		}
	}
	if f.Mass != 500 || f.Mach != 0 {
		t.Fatalf("incorrect breakdown %+v", f)
	}
}

func TestForcesDragDisabledIsExact(t *testing.T) {
	ev := testEvaluator(NewVehicle("sc", nil, StaticValues{Mass: 500, Cd: 2.2, DragArea: 0}))
	r := []float64{6378e3 + 120e3, 1000e3, 200e3}
	v := []float64{-800, 7600, 300}
	off, err := ev.Evaluate(10, r, v, nil, &ForceModel{EarthDegree: 4, Atmosphere: US76{}})
	if err != nil {
		t.Fatal(err)
	}
	on, err := ev.Evaluate(10, r, v, nil, &ForceModel{EarthDegree: 4, Atmosphere: US76{}, Drag: true})
	if err != nil {
		t.Fatal(err)
	}
	a0, a1 := off.Acceleration(), on.Acceleration()
	for i := 0; i < 3; i++ {
		if a0[i] != a1[i] {
			t.Fatalf("zero drag area differs from disabled drag: %v != %v", a1, a0)
		}
	}
	ev.Vehicle.Static.DragArea = 4
	on, _ = ev.Evaluate(10, r, v, nil, &ForceModel{EarthDegree: 4, Atmosphere: US76{}, Drag: true})
	vRel := relativeVelocity(r, v)
	if dot(on.Drag, vRel) >= 0 {
		t.Fatal("drag must oppose the relative velocity")
	}
	ρ := US76{}.Density(on.Altitude)
	if !scalar.EqualWithinRel(norm(on.Drag), 0.5*ρ*dot(vRel, vRel)*2.2*4/500, 1e-9) {
		t.Fatalf("incorrect drag magnitude %g", norm(on.Drag))
	}
}

func TestForcesActiveVehicle(t *testing.T) {
	v := testVehicle()
	ev := testEvaluator(v)
	r, vel := WGS84Frames{}.GeodeticToGCRF(28.5, -80.6, 0, ev.Epoch.JD(1))
	fm := &ForceModel{Atmosphere: US76{}, Drag: true, ActiveSC: true}
	f, err := ev.Evaluate(1, r, vel, v.InitialFuel(), fm)
	if err != nil {
		t.Fatal(err)
	}
	if f.Mass != v.Evaluate(1, v.InitialFuel()).Mass {
		t.Fatal("vehicle mass not used")
	}
	if !scalar.EqualWithinRel(f.ThrustMagnitude, 11*845e3, 1e-3) {
		t.Fatalf("liftoff thrust %f", f.ThrustMagnitude)
	}
	// Straight up along the spherical vertical.
	if !vectorsEqual(unit(f.Thrust), unit(r)) {
		t.Fatalf("thrust %v not vertical", f.Thrust)
	}
	if !scalar.EqualWithinRel(norm(f.Thrust), f.ThrustMagnitude/f.Mass, 1e-12) {
		t.Fatal("incorrect thrust acceleration")
	}
	if f.FuelFlow[0] != -2700 || f.FuelFlow[3] != -300 {
		t.Fatalf("incorrect fuel flow %v", f.FuelFlow)
	}
	if !floats.Equal(ev.FuelFlow(1, r, v.InitialFuel(), fm), f.FuelFlow) {
		t.Fatal("held fuel flow differs from the evaluated one")
	}
	if flow := ev.FuelFlow(1, r, v.InitialFuel(), &ForceModel{}); flow[0] != 0 {
		t.Fatal("static spacecraft burns no fuel")
	}
	// Guidance is only resolved when thrusting.
	if g, _ := ev.Evaluate(155, r, vel, v.InitialFuel(), fm); g.Thrust[0] != 0 || g.Direction != nil {
		t.Fatal("no thrust expected during the coast")
	}
}

func TestForcesNonPositiveMass(t *testing.T) {
	ev := testEvaluator(NewVehicle("sc", nil, StaticValues{}))
	if _, err := ev.Evaluate(0, []float64{7000e3, 0, 0}, []float64{0, 7500, 0}, nil, &ForceModel{}); err == nil {
		t.Fatal("zero mass should fail")
	}
}

func TestForcesThirdBodiesAndTides(t *testing.T) {
	ev := testEvaluator(NewVehicle("sc", nil, StaticValues{Mass: 500, Cr: 1.5, SRPArea: 10}))
	r := []float64{42164e3, 0, 0}
	v := []float64{0, 3075, 0}
	base, _ := ev.Evaluate(0, r, v, nil, &ForceModel{})
	f, err := ev.Evaluate(0, r, v, nil, &ForceModel{ThirdBodies: []string{"Moon", "Sun"}, MoonDegree: 2, SRP: true, EarthTides: true, MoonTides: true})
	if err != nil {
		t.Fatal(err)
	}
	third := norm(sub(f.Gravity, base.Gravity))
	// Luni-solar perturbations in GEO are of the order of 1e-5 m/s^2.
	if third < 1e-6 || third > 1e-4 {
		t.Fatalf("third body perturbation %g m/s^2", third)
	}
	srp := norm(f.SRP)
	if srp != 0 && !scalar.EqualWithinRel(srp, SolarPressure*1.5*10/500, 0.05) {
		t.Fatalf("SRP %g m/s^2", srp)
	}
	tides := norm(f.Tides)
	if tides == 0 || tides > 1e-8 {
		t.Fatalf("tidal perturbation %g m/s^2", tides)
	}
}

func TestSRPShadow(t *testing.T) {
	rs := []float64{AU, 0, 0}
	if acc := srpAcceleration([]float64{-7000e3, 0, 0}, rs, 0.01); norm(acc) != 0 {
		t.Fatal("spacecraft behind the Earth should be in shadow")
	}
	lit := srpAcceleration([]float64{7000e3, 0, 0}, rs, 0.01)
	if lit[0] >= 0 || math.Abs(lit[1]) > 0 {
		t.Fatalf("SRP should push away from the Sun: %v", lit)
	}
	if acc := srpAcceleration([]float64{-7000e3, 7000e3, 0}, rs, 0.01); norm(acc) == 0 {
		t.Fatal("spacecraft beside the shadow cylinder should be lit")
	}
}
