package mrs

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Atmosphere provides the properties of the atmosphere at a geodetic altitude (m).
type Atmosphere interface {
	Density(alt float64) float64          // kg/m^3
	PressureFraction(alt float64) float64 // p/p0 in [0, 1]
	SpeedOfSound(alt float64) float64     // m/s
}

const (
	us76P0   = 101325.0  // sea level pressure (Pa)
	us76R0   = 6356766.0 // effective Earth radius for geopotential altitude (m)
	us76GMR  = 0.034163195
	us76Top  = 86000.0 // geometric altitude above which the layers do not apply
	airGamma = 1.4
	airRGas  = 287.0528 // specific gas constant of air (J/kg/K)
	us76TopT = 186.8673
)

// us76Layer is a layer of constant lapse rate, starting at a geopotential altitude.
type us76Layer struct {
	H, T, P, L float64 // base geopotential altitude (m), temperature (K), pressure (Pa), lapse rate (K/m)
}

var us76Layers = []us76Layer{
	{0, 288.15, 101325.0, -0.0065},
	{11000, 216.65, 22632.06, 0},
	{20000, 216.65, 5474.889, 0.001},
	{32000, 228.65, 868.0187, 0.0028},
	{47000, 270.65, 110.9063, 0},
	{51000, 270.65, 66.93887, -0.0028},
	{71000, 214.65, 3.956420, -0.002},
}

// expRow is a row of the exponential density model: base altitude (m), density (kg/m^3), scale height (m).
type expRow struct {
	h0, ρ0, H float64
}

// Vallado, Fundamentals of Astrodynamics and Applications, table 8-4.
var expTable = []expRow{
	{0, 1.225, 7249}, {25e3, 3.899e-2, 6349}, {30e3, 1.774e-2, 6682}, {40e3, 3.972e-3, 7554},
	{50e3, 1.057e-3, 8382}, {60e3, 3.206e-4, 7714}, {70e3, 8.770e-5, 6549}, {80e3, 1.905e-5, 5799},
	{90e3, 3.396e-6, 5382}, {100e3, 5.297e-7, 5877}, {110e3, 9.661e-8, 7263}, {120e3, 2.438e-8, 9473},
	{130e3, 8.484e-9, 12636}, {140e3, 3.845e-9, 16149}, {150e3, 2.070e-9, 22523}, {180e3, 5.464e-10, 29740},
	{200e3, 2.789e-10, 37105}, {250e3, 7.248e-11, 45546}, {300e3, 2.418e-11, 53628}, {350e3, 9.518e-12, 53298},
	{400e3, 3.725e-12, 58515}, {450e3, 1.585e-12, 60828}, {500e3, 6.967e-13, 63822}, {600e3, 1.454e-13, 71835},
	{700e3, 3.614e-14, 88667}, {800e3, 1.170e-14, 124640}, {900e3, 5.245e-15, 181050}, {1000e3, 3.019e-15, 268000},
}

func expDensity(alt float64) float64 {
	if alt < 0 {
		alt = 0
	}
	i := sort.Search(len(expTable), func(i int) bool { return expTable[i].h0 > alt }) - 1
	row := expTable[i]
	return row.ρ0 * math.Exp(-(alt-row.h0)/row.H)
}

// US76 is the U.S. Standard Atmosphere 1976 up to 86 km, continued by the
// exponential model above.
type US76 struct{}

// state returns the temperature and pressure below 86 km.
func (US76) state(alt float64) (T, P float64) {
	if alt < 0 {
		alt = 0
	}
	H := us76R0 * alt / (us76R0 + alt)
	layer := us76Layers[0]
	for _, l := range us76Layers {
		if H >= l.H {
			layer = l
		}
	}
	dH := H - layer.H
	if layer.L == 0 {
		return layer.T, layer.P * math.Exp(-us76GMR*dH/layer.T)
	}
	T = layer.T + layer.L*dH
	return T, layer.P * math.Pow(layer.T/T, us76GMR/layer.L)
}

// Density implements the Atmosphere interface.
func (a US76) Density(alt float64) float64 {
	if alt >= us76Top {
		return expDensity(alt)
	}
	T, P := a.state(alt)
	return P / (airRGas * T)
}

// PressureFraction implements the Atmosphere interface.
func (a US76) PressureFraction(alt float64) float64 {
	if alt >= us76Top {
		// Isothermal decay above the last layer.
		_, P := a.state(us76Top - 1)
		return P / us76P0 * math.Exp(-us76GMR*(alt-us76Top)/us76TopT)
	}
	_, P := a.state(alt)
	return P / us76P0
}

// SpeedOfSound implements the Atmosphere interface.
func (a US76) SpeedOfSound(alt float64) float64 {
	T := us76TopT
	if alt < us76Top {
		T, _ = a.state(alt)
	}
	return math.Sqrt(airGamma * airRGas * T)
}

// ExponentialAtmosphere uses the piecewise exponential density model everywhere,
// with the US76 pressure and temperature profiles.
type ExponentialAtmosphere struct {
	US76
}

// Density implements the Atmosphere interface.
func (ExponentialAtmosphere) Density(alt float64) float64 {
	return expDensity(alt)
}

// AtmosphereFromName returns the atmosphere model by its name, or nil for none.
// NRLMSISE-00 requests fall back to US76, which exact reports.
func AtmosphereFromName(name string) (atmos Atmosphere, exact bool, err error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "-":
		return nil, true, nil
	case "us76", "ussa76":
		return US76{}, true, nil
	case "exponential", "exp":
		return ExponentialAtmosphere{}, true, nil
	case "nrlmsise00", "nrlmsise-00":
		return US76{}, false, nil
	default:
		return nil, false, fmt.Errorf("unknown atmosphere model '%s'", name)
	}
}
