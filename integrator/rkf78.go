package integrator

import (
	"fmt"
	"math"
)

// Fehlberg 7(8) coefficients. The 8th order solution is propagated.
var (
	rkfC = [13]float64{0, 2. / 27, 1. / 9, 1. / 6, 5. / 12, 1. / 2, 5. / 6, 1. / 6, 2. / 3, 1. / 3, 1, 0, 1}
	rkfA = [13][12]float64{
		{},
		{2. / 27},
		{1. / 36, 1. / 12},
		{1. / 24, 0, 1. / 8},
		{5. / 12, 0, -25. / 16, 25. / 16},
		{1. / 20, 0, 0, 1. / 4, 1. / 5},
		{-25. / 108, 0, 0, 125. / 108, -65. / 27, 125. / 54},
		{31. / 300, 0, 0, 0, 61. / 225, -2. / 9, 13. / 900},
		{2, 0, 0, -53. / 6, 704. / 45, -107. / 9, 67. / 90, 3},
		{-91. / 108, 0, 0, 23. / 108, -976. / 135, 311. / 54, -19. / 60, 17. / 6, -1. / 12},
		{2383. / 4100, 0, 0, -341. / 164, 4496. / 1025, -301. / 82, 2133. / 4100, 45. / 82, 45. / 164, 18. / 41},
		{3. / 205, 0, 0, 0, 0, -6. / 41, -3. / 205, -3. / 41, 3. / 41, 6. / 41},
		{-1777. / 4100, 0, 0, -341. / 164, 4496. / 1025, -289. / 82, 2193. / 4100, 51. / 82, 33. / 164, 12. / 41, 0, 1},
	}
	rkfB8 = [13]float64{0, 0, 0, 0, 0, 34. / 105, 9. / 35, 9. / 35, 9. / 280, 9. / 280, 0, 41. / 840, 41. / 840}
)

const (
	rkfErrCoeff = 41. / 840
	safety      = 0.9
	minFactor   = 0.2
	maxFactor   = 5.
)

// RKF78 is an adaptive Runge-Kutta-Fehlberg 7(8) solver.
type RKF78 struct {
	Atol, Rtol  float64 // absolute and relative tolerances
	InitialStep float64 // first step tried after each (re)start, defaults to 1
	MinStep     float64 // smallest step allowed before failing, defaults to 1e-10
	MaxStep     float64 // zero means unbounded
}

// Stats summarizes one call to Solve.
type Stats struct {
	Accepted, Rejected, Evaluations int
	LastStep                        float64 // last accepted step size
}

// StepError is returned when the solver cannot continue.
type StepError struct {
	T, Step float64
	Reason  string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("integration failed at t=%g (h=%g): %s", e.T, e.Step, e.Reason)
}

// Solve integrates from t0 to tEnd, landing exactly on tEnd, unless Stop returns true.
// The step size history starts over on every call.
func (r RKF78) Solve(t0, tEnd float64, inte Integrable) (stats Stats, err error) {
	if tEnd <= t0 {
		return stats, nil
	}
	h := r.InitialStep
	if h <= 0 {
		h = 1
	}
	minStep := r.MinStep
	if minStep <= 0 {
		minStep = 1e-10
	}
	atol, rtol := r.Atol, r.Rtol
	if atol <= 0 && rtol <= 0 {
		atol, rtol = 1e-9, 1e-9
	}

	t := t0
	var k [13][]float64
	for t < tEnd && !inte.Stop(t) {
		if r.MaxStep > 0 && h > r.MaxStep {
			h = r.MaxStep
		}
		last := false
		if t+h >= tEnd {
			h = tEnd - t
			last = true
		}
		y := inte.GetState()
		n := len(y)
		tmp := make([]float64, n)
		for s := 0; s < 13; s++ {
			copy(tmp, y)
			for j := 0; j < s; j++ {
				if a := rkfA[s][j]; a != 0 {
					for i := range tmp {
						tmp[i] += h * a * k[j][i]
					}
				}
			}
			k[s] = inte.Func(t+rkfC[s]*h, tmp)
			stats.Evaluations++
		}
		yNew := make([]float64, n)
		errNorm := 0.
		for i := range y {
			sum := 0.
			for s := 0; s < 13; s++ {
				sum += rkfB8[s] * k[s][i]
			}
			yNew[i] = y[i] + h*sum
			e := h * rkfErrCoeff * (k[0][i] + k[10][i] - k[11][i] - k[12][i])
			sc := atol + rtol*math.Max(math.Abs(y[i]), math.Abs(yNew[i]))
			errNorm += (e / sc) * (e / sc)
		}
		if n > 0 {
			errNorm = math.Sqrt(errNorm / float64(n))
		}
		if math.IsNaN(errNorm) || math.IsInf(errNorm, 0) {
			return stats, &StepError{T: t, Step: h, Reason: "non-finite state"}
		}

		if errNorm <= 1 {
			if last {
				t = tEnd
			} else {
				t += h
			}
			inte.SetState(t, yNew)
			stats.Accepted++
			stats.LastStep = h
		} else {
			stats.Rejected++
		}
		factor := maxFactor
		if errNorm > 0 {
			factor = math.Min(maxFactor, math.Max(minFactor, safety*math.Pow(errNorm, -1./8)))
		}
		if errNorm <= 1 && last {
			break
		}
		h *= factor
		if h < minStep && tEnd-t > minStep {
			return stats, &StepError{T: t, Step: h, Reason: "step size underflow"}
		}
	}
	return stats, nil
}
