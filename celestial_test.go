package mrs

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
)

func TestCelestialObject(t *testing.T) {
	for _, name := range []string{"Earth", "moon", "SUN"} {
		obj, err := CelestialObjectFromString(name)
		if err != nil {
			t.Fatal(err)
		}
		if obj.GM() <= 0 || obj.Radius <= 0 {
			t.Fatalf("invalid %s", obj)
		}
	}
	if _, err := CelestialObjectFromString("Pluto"); err == nil {
		t.Fatal("Pluto should not be supported")
	}
	if Earth.Jn(2) != Earth.J[2] || Earth.Jn(1) != 0 || Earth.Jn(42) != 0 || Sun.Jn(2) != 0 {
		t.Fatal("incorrect zonal coefficients")
	}
	if Earth.MaxDegree() != 6 || Moon.MaxDegree() != 3 || Sun.MaxDegree() != 0 {
		t.Fatalf("incorrect maximum degrees %d %d %d", Earth.MaxDegree(), Moon.MaxDegree(), Sun.MaxDegree())
	}
}

func TestMeeusEphemeris(t *testing.T) {
	eph := MeeusEphemeris{}
	dt := time.Date(2018, 3, 20, 12, 0, 0, 0, time.UTC)
	rs, vs, err := eph.BodyState("Sun", dt)
	if err != nil {
		t.Fatal(err)
	}
	if !scalar.EqualWithinRel(norm(rs), AU, 0.02) {
		t.Fatalf("Sun at %f AU", norm(rs)/AU)
	}
	// Close to the March equinox: the Sun is near the x axis, crossing the equator.
	if rs[0] < 0.99*norm(rs) || math.Abs(rs[2]) > 0.01*norm(rs) {
		t.Fatalf("Sun not near the vernal equinox direction: %v", rs)
	}
	// Apparent motion of the Sun is about 29.8 km/s.
	if !scalar.EqualWithinRel(norm(vs), 29.8e3, 0.05) {
		t.Fatalf("Sun apparent velocity %f m/s", norm(vs))
	}
	rm, vm, err := eph.BodyState("Moon", dt)
	if err != nil {
		t.Fatal(err)
	}
	if norm(rm) < 356e6 || norm(rm) > 407e6 {
		t.Fatalf("Moon at %f km", norm(rm)/1e3)
	}
	if norm(vm) < 900 || norm(vm) > 1150 {
		t.Fatalf("Moon velocity %f m/s", norm(vm))
	}
	re, ve, _ := eph.BodyState("Earth", dt)
	if norm(re) != 0 || norm(ve) != 0 {
		t.Fatal("Earth should be at the origin")
	}
	if _, _, err := eph.BodyState("Mars", dt); err == nil {
		t.Fatal("Mars has no ephemeris")
	}
}

func TestGravityField(t *testing.T) {
	eph := MeeusEphemeris{}
	r := []float64{7000e3, 0, 0}
	acc, err := eph.GravityField("Earth", 0, r)
	if err != nil {
		t.Fatal(err)
	}
	if !vectorsEqual(acc, []float64{-Earth.GM() / (7000e3 * 7000e3), 0, 0}) {
		t.Fatalf("incorrect point mass %v", acc)
	}
	// Truncated above the maximum degree.
	high, _ := eph.GravityField("Earth", 42, []float64{5000e3, 1000e3, 4000e3})
	six, _ := eph.GravityField("Earth", 6, []float64{5000e3, 1000e3, 4000e3})
	if !floats.Equal(high, six) {
		t.Fatal("degree not truncated")
	}
	if eph.MaxDegree("Moon") != 3 || eph.MaxDegree("Vesta") != 0 {
		t.Fatal("incorrect maximum degree")
	}
	if _, err := eph.GravityField("Vesta", 0, r); err == nil {
		t.Fatal("unknown body accepted")
	}
}

// TestZonalJ2 compares the recursion with the closed form of the J2 acceleration.
func TestZonalJ2(t *testing.T) {
	for _, r := range [][]float64{{7000e3, 0, 0}, {-1000e3, 5000e3, 4500e3}, {100e3, 200e3, -6900e3}} {
		rNorm := norm(r)
		s := r[2] / rNorm
		fact := 1.5 * Earth.Jn(2) * math.Pow(Earth.Radius/rNorm, 2)
		μr3 := Earth.GM() / math.Pow(rNorm, 3)
		exp := []float64{
			-μr3 * r[0] * (1 - fact*(5*s*s-1)),
			-μr3 * r[1] * (1 - fact*(5*s*s-1)),
			-μr3 * r[2] * (1 - fact*(5*s*s-3)),
		}
		got := zonalAcceleration(Earth, 2, r)
		if !floats.EqualApprox(got, exp, 1e-12) {
			t.Fatalf("J2 at %v: got %v, expected %v", r, got, exp)
		}
	}
}

func TestZonalHigherDegrees(t *testing.T) {
	r := []float64{-1000e3, 5000e3, 4500e3}
	j2 := zonalAcceleration(Earth, 2, r)
	j6 := zonalAcceleration(Earth, 6, r)
	diff := norm(sub(j6, j2))
	// J3 to J6 are about a thousandth of J2.
	j2Only := norm(sub(j2, zonalAcceleration(Earth, 0, r)))
	if diff == 0 || diff > 0.01*j2Only {
		t.Fatalf("higher degrees contribute %g m/s^2 for %g m/s^2 of J2", diff, j2Only)
	}
	// An equatorial position has no z acceleration from the even zonals.
	even := zonalAcceleration(CelestialObject{Radius: Earth.Radius, μ: Earth.GM(), J: []float64{0, 0, Earth.Jn(2), 0, Earth.Jn(4)}}, 4, []float64{0, 7000e3, 0})
	if even[2] != 0 {
		t.Fatalf("even zonals produce %g m/s^2 out of the equator", even[2])
	}
}
