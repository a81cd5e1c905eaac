package mrs

import "math"

// NeverStagesMET is the staging time at or above which a part never detaches.
const NeverStagesMET = 999999.

// Part is a piece of an element which detaches at its staging time.
type Part struct {
	Name     string
	Staging  *float64 // nil means NeverStages
	Dry      float64  // kg
	Fuel     float64  // initial fuel (kg)
	DragArea float64  // m^2
}

// NeverStages returns whether this part stays attached for the whole mission.
func (p Part) NeverStages() bool {
	return p.Staging == nil
}

// StagedAt returns whether the part is detached at met.
func (p Part) StagedAt(met float64) bool {
	return p.Staging != nil && met >= *p.Staging
}

// Engine is a rocket engine type.
type Engine struct {
	Name        string
	Description string
	ThrustSL    float64 // sea level thrust (N)
	ThrustVac   float64 // vacuum thrust (N)
	FuelFlow    float64 // fuel flow at 100% throttle (kg/s)
}

// Thrust returns the thrust of one engine at full throttle for the pressure
// fraction p/p0 (0 is vacuum, 1 is sea level).
func (e Engine) Thrust(pressureFraction float64) float64 {
	return e.ThrustVac + (e.ThrustSL-e.ThrustVac)*pressureFraction
}

// DragPoint is a row of a drag coefficient table.
type DragPoint struct {
	Mach, Cd float64
}

// DragTable is a piecewise linear drag coefficient as a function of Mach, ordered by Mach.
type DragTable []DragPoint

// Cd returns the drag coefficient at the given Mach number, held past both ends.
func (d DragTable) Cd(mach float64) float64 {
	if mach <= d[0].Mach {
		return d[0].Cd
	}
	for i := 1; i < len(d); i++ {
		if mach < d[i].Mach {
			frac := (mach - d[i-1].Mach) / (d[i].Mach - d[i-1].Mach)
			return d[i-1].Cd + frac*(d[i].Cd-d[i-1].Cd)
		}
	}
	return d[len(d)-1].Cd
}

// Element is a group of parts and engines, present Count times on the vehicle
// (e.g. two boosters).
type Element struct {
	Name     string
	Count    int
	Parts    []Part
	Engines  []Engine
	Throttle ThrottleSchedule
	Drag     DragTable // empty means the static Cd
}

// StaticValues are used instead of the elements when the spacecraft is not active.
// Cr and SRPArea are always used for solar radiation pressure.
type StaticValues struct {
	Mass, DragArea, Cd, Cr, SRPArea float64
}

// Vehicle is the staged spacecraft. The fuel of each part is carried in the
// integrated state, in the order of FuelIndex.
type Vehicle struct {
	Name     string
	Elements []Element
	Static   StaticValues
	offsets  []int
}

// NewVehicle returns a vehicle with its fuel layout computed.
func NewVehicle(name string, elements []Element, static StaticValues) *Vehicle {
	v := &Vehicle{Name: name, Elements: elements, Static: static}
	v.offsets = make([]int, len(elements)+1)
	for i, e := range elements {
		v.offsets[i+1] = v.offsets[i] + len(e.Parts)
	}
	return v
}

// NumFuel returns the number of fuel entries in the state.
func (v *Vehicle) NumFuel() int {
	return v.offsets[len(v.Elements)]
}

// FuelIndex returns the state index of the fuel of part p of element e.
func (v *Vehicle) FuelIndex(e, p int) int {
	return v.offsets[e] + p
}

// InitialFuel returns the fuel of all parts, as loaded.
func (v *Vehicle) InitialFuel() []float64 {
	fuel := make([]float64, v.NumFuel())
	for i, e := range v.Elements {
		for j, p := range e.Parts {
			fuel[v.FuelIndex(i, j)] = p.Fuel
		}
	}
	return fuel
}

// ActiveEngine is a set of identical engines firing on one element.
type ActiveEngine struct {
	Element  int
	Engine   Engine
	Count    int     // number of engines firing on one instance of the element
	Throttle float64 // fraction of full thrust
	FuelPart int     // state index of the feeding part
}

// StageStatus is the vehicle configuration at a given MET.
type StageStatus struct {
	Mass     float64 // kg
	DragArea float64 // m^2, sum over active parts
	Engines  []ActiveEngine
	Throttle []ThrottleSetting // per element
	Miss     bool              // a throttle table was looked up before its first entry
}

// Evaluate returns the mass, drag area and active engines at met, for the given fuel.
// Staged parts are excluded entirely, and each element draws from its first
// attached part which still has fuel.
func (v *Vehicle) Evaluate(met float64, fuel []float64) StageStatus {
	var st StageStatus
	st.Throttle = make([]ThrottleSetting, len(v.Elements))
	for i, e := range v.Elements {
		count := float64(e.Count)
		feed := -1
		for j, p := range e.Parts {
			if p.StagedAt(met) {
				continue
			}
			f := math.Max(0, fuel[v.FuelIndex(i, j)])
			st.Mass += count * (p.Dry + f)
			st.DragArea += count * p.DragArea
			if feed < 0 && f > 0 {
				feed = v.FuelIndex(i, j)
			}
		}
		setting, miss := e.Throttle.At(met)
		st.Throttle[i] = setting
		st.Miss = st.Miss || miss
		if setting.Index < 0 || setting.Count == 0 || setting.Throttle == 0 {
			continue
		}
		if setting.Engine < 0 || setting.Engine >= len(e.Engines) {
			continue
		}
		// Staged or dry elements have no active engine.
		if feed < 0 {
			continue
		}
		st.Engines = append(st.Engines, ActiveEngine{
			Element:  i,
			Engine:   e.Engines[setting.Engine],
			Count:    setting.Count,
			Throttle: setting.Throttle,
			FuelPart: feed,
		})
	}
	return st
}

// Propulsion returns the total thrust (N) at the pressure fraction and the fuel
// derivatives (kg/s, one per fuel entry). Dry elements produce no thrust.
func (v *Vehicle) Propulsion(st StageStatus, pressureFraction float64) (thrust float64, flow []float64) {
	flow = make([]float64, v.NumFuel())
	for _, ae := range st.Engines {
		n := float64(ae.Count) * ae.Throttle
		thrust += float64(v.Elements[ae.Element].Count) * n * ae.Engine.Thrust(pressureFraction)
		flow[ae.FuelPart] -= n * ae.Engine.FuelFlow
	}
	return thrust, flow
}

// CdA returns the drag coefficient times area (m^2) of the attached parts at the Mach number.
// Elements without a drag table use the static Cd.
func (v *Vehicle) CdA(met, mach float64) float64 {
	cda := 0.
	for _, e := range v.Elements {
		area := 0.
		for _, p := range e.Parts {
			if !p.StagedAt(met) {
				area += p.DragArea
			}
		}
		if area == 0 {
			continue
		}
		cd := v.Static.Cd
		if len(e.Drag) > 0 {
			cd = e.Drag.Cd(mach)
		}
		cda += float64(e.Count) * cd * area
	}
	return cda
}

// ElementFuel returns the fuel left in the attached parts of element e.
func (v *Vehicle) ElementFuel(met float64, e int, fuel []float64) float64 {
	total := 0.
	for j, p := range v.Elements[e].Parts {
		if !p.StagedAt(met) {
			total += math.Max(0, fuel[v.FuelIndex(e, j)])
		}
	}
	return total
}

// StagingTimes returns the staging METs of the parts which detach.
func (v *Vehicle) StagingTimes() []float64 {
	var mets []float64
	for _, e := range v.Elements {
		for _, p := range e.Parts {
			if !p.NeverStages() {
				mets = append(mets, *p.Staging)
			}
		}
	}
	return mets
}

// ThrottleTimes returns the METs of all throttle entries.
func (v *Vehicle) ThrottleTimes() []float64 {
	var mets []float64
	for _, e := range v.Elements {
		mets = append(mets, e.Throttle.Breakpoints()...)
	}
	return mets
}
