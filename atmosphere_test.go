package mrs

import (
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestUS76(t *testing.T) {
	atmos := US76{}
	if !scalar.EqualWithinRel(atmos.Density(0), 1.225, 1e-3) {
		t.Fatalf("sea level density %f", atmos.Density(0))
	}
	if !scalar.EqualWithinAbs(atmos.PressureFraction(0), 1, 1e-12) {
		t.Fatalf("sea level pressure fraction %f", atmos.PressureFraction(0))
	}
	if !scalar.EqualWithinRel(atmos.SpeedOfSound(0), 340.29, 1e-3) {
		t.Fatalf("sea level speed of sound %f", atmos.SpeedOfSound(0))
	}
	// Tropopause: 216.65 K, 22632 Pa at 11 km geopotential.
	if !scalar.EqualWithinRel(atmos.SpeedOfSound(11019), 295.07, 1e-3) {
		t.Fatalf("tropopause speed of sound %f", atmos.SpeedOfSound(11019))
	}
	if !scalar.EqualWithinRel(atmos.PressureFraction(11019), 22632.06/101325, 1e-3) {
		t.Fatalf("tropopause pressure fraction %f", atmos.PressureFraction(11019))
	}
	// Below ground holds the sea level values.
	if atmos.Density(-100) != atmos.Density(0) {
		t.Fatal("negative altitude not clamped")
	}
	prevρ, prevP := atmos.Density(0), atmos.PressureFraction(0)
	for alt := 500.; alt < 1000e3; alt += 500 {
		ρ, p := atmos.Density(alt), atmos.PressureFraction(alt)
		if ρ <= 0 || ρ > prevρ*1.2 {
			t.Fatalf("density %g at %g m", ρ, alt)
		}
		if p <= 0 || p > prevP {
			t.Fatalf("pressure fraction increased at %g m", alt)
		}
		prevρ, prevP = ρ, p
	}
}

func TestExponentialAtmosphere(t *testing.T) {
	atmos := ExponentialAtmosphere{}
	if atmos.Density(0) != 1.225 {
		t.Fatalf("sea level density %f", atmos.Density(0))
	}
	if !scalar.EqualWithinRel(atmos.Density(400e3), 3.725e-12, 1e-12) {
		t.Fatalf("400 km density %g", atmos.Density(400e3))
	}
	if atmos.SpeedOfSound(0) != (US76{}).SpeedOfSound(0) {
		t.Fatal("speed of sound should be the US76 one")
	}
}

func TestAtmosphereFromName(t *testing.T) {
	for name, exp := range map[string]Atmosphere{"us76": US76{}, "USSA76": US76{}, "exponential": ExponentialAtmosphere{}, "none": nil, "": nil, "-": nil} {
		atmos, exact, err := AtmosphereFromName(name)
		if err != nil || !exact || atmos != exp {
			t.Fatalf("'%s': got %v, %v, %v", name, atmos, exact, err)
		}
	}
	atmos, exact, err := AtmosphereFromName("nrlmsise00")
	if err != nil || exact || atmos != (US76{}) {
		t.Fatal("NRLMSISE-00 should fall back to US76")
	}
	if _, _, err := AtmosphereFromName("jacchia"); err == nil {
		t.Fatal("unknown model accepted")
	}
}
