package mrs

import (
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func ptr(f float64) *float64 {
	return &f
}

func TestThrottleHoldSequence(t *testing.T) {
	s := ThrottleSchedule{Entries: []ThrottleEntry{
		{MET: -10, Start: 0, End: ptr(0), Engine: 0, Count: 0},
		{MET: 0, Start: 0, Engine: 0, Count: 9},
		{MET: 0.3, Start: 1, Engine: 0, Count: 9},
	}}
	for met := -10.; met < 0.3; met += 0.01 {
		setting, miss := s.At(met)
		if miss {
			t.Fatalf("MET %g should not be a miss", met)
		}
		if setting.Throttle != 0 {
			t.Fatalf("MET %g: throttle %g, expected 0", met, setting.Throttle)
		}
	}
	for _, met := range []float64{0.3, 0.31, 100, 1e6} {
		setting, _ := s.At(met)
		if setting.Throttle != 1 || setting.Count != 9 || setting.Index != 2 {
			t.Fatalf("MET %g: got %+v", met, setting)
		}
	}
	if setting, _ := s.At(-5); setting.Count != 0 {
		t.Fatal("no engine should be active before MET 0")
	}
	if setting, _ := s.At(0); setting.Count != 9 {
		t.Fatal("the engine count should change at the entry MET")
	}
}

func TestThrottleRampAndClamp(t *testing.T) {
	s := ThrottleSchedule{Max: 1, Entries: []ThrottleEntry{
		{MET: 0, Start: 0.5, End: ptr(1.5), Count: 1},
		{MET: 10, Start: 0.8, End: ptr(-0.5), Count: 1},
		{MET: 20, Start: 0.7, Count: 2},
	}}
	cases := map[float64]float64{0: 0.5, 2.5: 0.75, 5: 1, 7.5: 1, 10: 0.8, 12: 0.54, 20: 0.7, 25: 0.7}
	for met, exp := range cases {
		setting, _ := s.At(met)
		if !scalar.EqualWithinAbs(setting.Throttle, exp, 1e-12) {
			t.Fatalf("MET %g: throttle %g, expected %g", met, setting.Throttle, exp)
		}
	}
	// Clamped at zero near the end of the second ramp.
	if setting, _ := s.At(19.9); setting.Throttle != 0 {
		t.Fatalf("throttle should be clamped to zero, got %g", setting.Throttle)
	}
	for met := -1.; met < 30; met += 0.1 {
		setting, _ := s.At(met)
		if setting.Throttle < 0 || setting.Throttle > 1 {
			t.Fatalf("MET %g: throttle %g outside [0, 1]", met, setting.Throttle)
		}
	}
}

func TestThrottleMiss(t *testing.T) {
	s := ThrottleSchedule{Entries: []ThrottleEntry{{MET: 5, Start: 0.6, Count: 1}}}
	setting, miss := s.At(0)
	if !miss || setting.Throttle != 0.6 || setting.Index != 0 {
		t.Fatalf("before the first entry its start should hold: %+v, %v", setting, miss)
	}
	setting, miss = ThrottleSchedule{}.At(0)
	if !miss || setting.Index != -1 {
		t.Fatal("empty schedule should be a miss")
	}
	if (ThrottleSchedule{}).max() != DefaultMaxThrottle {
		t.Fatal("incorrect default maximum throttle")
	}
}
