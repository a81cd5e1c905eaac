package mrs

import (
	"math"
	"strings"
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestOrbitRV2COE(t *testing.T) {
	// Vallado, example 2-5, in meters.
	R := []float64{6524.834e3, 6862.875e3, 6448.296e3}
	V := []float64{4.901327e3, 5.533756e3, -1.976341e3}
	o := NewOrbitFromRV(R, V, Earth)
	a, e, i, Ω, ω, ν := o.a, o.e, o.i, o.Ω, o.ω, o.ν
	for _, c := range []struct {
		name      string
		got, want float64
	}{
		{"a", a / 1e3, 36127.343},
		{"e", e, 0.832853},
		{"i", i / deg2rad, 87.869126},
		{"Ω", Ω / deg2rad, 227.898260},
		{"ω", ω / deg2rad, 53.384931},
		{"ν", ν / deg2rad, 92.335157},
	} {
		if !scalar.EqualWithinRel(c.got, c.want, 1e-4) {
			t.Fatalf("%s = %f, expected %f", c.name, c.got, c.want)
		}
	}
	if !scalar.EqualWithinRel(o.ArgLatitudeU()/deg2rad, 145.720695, 1e-4) {
		t.Fatalf("argument of latitude invalid: %f", o.ArgLatitudeU()/deg2rad)
	}
	if !scalar.EqualWithinRel(o.Energyξ()/1e6, -5.516604, 1e-4) {
		t.Fatalf("incorrect energy ξ=%f", o.Energyξ())
	}
	if !scalar.EqualWithinAbs(o.Apoapsis()-o.Periapsis(), 2*a*e, 1e-6) {
		t.Fatal("incorrect apsides")
	}
	if o.PeriapsisAltitude() != o.Periapsis()-Earth.Radius {
		t.Fatal("incorrect periapsis altitude")
	}
	if !strings.Contains(o.String(), "a=36127.") {
		t.Fatalf("unexpected string %s", o)
	}
}

func TestOrbitCircularEquatorial(t *testing.T) {
	r := 7000e3
	vc := math.Sqrt(Earth.GM() / r)
	o := NewOrbitFromRV([]float64{0, r, 0}, []float64{-vc, 0, 0}, Earth)
	a, e, i := o.a, o.e, o.i
	if !scalar.EqualWithinRel(a, r, 1e-9) || e > 1e-9 || i > 1e-9 {
		t.Fatalf("expected a circular equatorial orbit, got %s", o)
	}
	for _, x := range []float64{a, e, i, o.ArgLatitudeU(), o.TrueLongλ()} {
		if math.IsNaN(x) {
			t.Fatalf("NaN element in %s", o)
		}
	}
	if !strings.Contains(o.String(), "λ=") {
		t.Fatalf("circular equatorial orbits use the true longitude: %s", o)
	}
}
