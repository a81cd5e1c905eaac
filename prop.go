package mrs

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ChristopherRabotin/ode"
	"github.com/go-kit/kit/log/level"

	"github.com/ThibaultBS/MRS-Missions/integrator"
)

// dryFuel is the fuel (kg) below which a part is considered empty. A leftover
// of a step landing on depletion keeps the engine lit for the first RK stage only
// and the adaptive step never recovers from it.
const dryFuel = 1e-6

// arc integrates the vehicle over one interval without discontinuity: no
// staging, maneuver, segment, throttle or guidance entry falls strictly inside.
// It implements the integrator.Integrable interface (and the one of the ode package).
type arc struct {
	m     *Mission
	ctx   context.Context
	prop  *propagation
	start float64
	end   float64
	// endLeft is the last MET before end: tables changing at end are not
	// yet applied when the solver evaluates at end.
	endLeft float64
	state   []float64 // R, V, then fuel
	met     float64
	steps   int
	// Fixed step bookkeeping.
	fixedStep  float64
	fixedSteps int
	// Fixed mode holds the Earth-fixed position.
	rECEF      []float64
	missLogged bool
	err        error
}

func newArc(ctx context.Context, m *Mission, prop *propagation, start, end float64) *arc {
	a := &arc{m: m, ctx: ctx, prop: prop, start: start, end: end, met: start}
	a.endLeft = math.Nextafter(end, math.Inf(-1))
	a.state = make([]float64, 6+len(m.state.Fuel))
	copy(a.state[0:3], m.state.R)
	copy(a.state[3:6], m.state.V)
	copy(a.state[6:], m.state.Fuel)
	if prop.Mode == ModeFixed {
		a.rECEF = ECI2ECEF(m.state.R, m.earth.RotationAngle(m.plan.epoch.JD(start)))
	}
	if prop.Method == MethodRK4 {
		n := math.Ceil((end-start)/prop.Step - 1e-9)
		if n < 1 {
			n = 1
		}
		a.fixedSteps = int(n)
		a.fixedStep = (end - start) / n
	}
	return a
}

// run integrates the arc from start to end.
func (a *arc) run() error {
	if a.end <= a.start {
		return nil
	}
	if a.prop.Method == MethodRK4 {
		ode.NewRK4(a.start, a.fixedStep, a).Solve() // Blocking.
		a.m.metrics.addSteps(a.steps, 0)
		return a.err
	}
	solver := integrator.RKF78{
		Atol:        a.m.plan.integrator.Atol,
		Rtol:        a.m.plan.integrator.Rtol,
		InitialStep: a.m.plan.integrator.InitialStep,
		MinStep:     a.m.plan.integrator.MinStep,
		MaxStep:     a.prop.Step,
	}
	stats, err := solver.Solve(a.start, a.end, a)
	a.m.metrics.addSteps(stats.Accepted, stats.Rejected)
	level.Debug(a.m.logger).Log("subsys", "prop", "from", a.start, "to", a.end, "accepted", stats.Accepted, "rejected", stats.Rejected, "lastStep", stats.LastStep)
	if a.err != nil {
		return a.err
	}
	var stepErr *integrator.StepError
	if errors.As(err, &stepErr) {
		return &NumericalError{Component: "integrator", MET: stepErr.T, Reason: stepErr.Reason, LastState: a.m.state.clone()}
	}
	return err
}

// GetState implements the Integrable interface.
func (a *arc) GetState() []float64 {
	return a.state
}

// Stop implements the Integrable interface.
func (a *arc) Stop(t float64) bool {
	if a.err != nil {
		return true
	}
	if err := a.ctx.Err(); err != nil {
		a.err = err
		return true
	}
	if a.prop.Method == MethodRK4 {
		return a.steps >= a.fixedSteps
	}
	return t >= a.end
}

// SetState implements the Integrable interface.
func (a *arc) SetState(t float64, s []float64) {
	if a.err != nil {
		return
	}
	a.steps++
	met := t
	if a.prop.Method == MethodRK4 {
		met = a.start + float64(a.steps)*a.fixedStep
		if a.steps == a.fixedSteps {
			met = a.end
		}
	}
	if a.prop.Mode == ModeFixed {
		// Exact co-rotation with the Earth.
		r := ECEF2ECI(a.rECEF, a.m.earth.RotationAngle(a.m.plan.epoch.JD(met)))
		v := cross(earthSpin, r)
		copy(s[0:3], r)
		copy(s[3:6], v)
	}
	if !finite(s) {
		a.err = &NumericalError{Component: "integrator", MET: met, Reason: "non-finite state", LastState: a.m.state.clone()}
		return
	}
	for i := 6; i < len(s); i++ {
		if s[i] < dryFuel {
			s[i] = 0
		}
	}
	a.state = s
	a.met = met
	a.m.accept(met, s, a.prop)
}

// Func implements the Integrable interface.
func (a *arc) Func(t float64, s []float64) []float64 {
	fDot := make([]float64, len(s))
	if a.err != nil {
		return fDot
	}
	met := math.Max(t, a.start)
	if met >= a.end {
		met = a.endLeft
	}
	r, v, fuel := s[0:3], s[3:6], s[6:]
	a.m.metrics.evaluation()
	if a.m.opts.trace != nil {
		a.m.opts.trace(met, a.m.segment)
	}
	if a.prop.Mode == ModeFixed {
		copy(fDot[6:], a.m.ev.FuelFlow(met, r, fuel, a.prop.Forces))
		return fDot
	}
	forces, err := a.m.ev.Evaluate(met, r, v, fuel, a.prop.Forces)
	if err != nil {
		a.err = &NumericalError{Component: "forces", MET: met, Reason: err.Error(), LastState: a.m.state.clone()}
		return fDot
	}
	if (forces.Guidance.Miss || forces.Stage.Miss) && !a.missLogged {
		a.missLogged = true
		level.Debug(a.m.logger).Log("subsys", "guid", "met", met, "lookup", "before the first table entry, holding it")
	}
	acc := forces.Acceleration()
	for i := 0; i < 3; i++ {
		fDot[i] = v[i]
		fDot[i+3] = acc[i]
	}
	copy(fDot[6:], forces.FuelFlow)
	if !finite(fDot) {
		a.err = &NumericalError{Component: "forces", MET: met, Reason: fmt.Sprintf("non-finite derivative %v", fDot[:6]), LastState: a.m.state.clone()}
		return make([]float64, len(s))
	}
	return fDot
}
