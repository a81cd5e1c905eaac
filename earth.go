package mrs

import (
	"fmt"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
	"github.com/soniakeys/meeus/v3/julian"
	sunit "github.com/soniakeys/unit"
)

// WGS-84 ellipsoid parameters.
const (
	wgs84A  = 6378137.0             // semi-major axis (meters)
	wgs84F  = 1.0 / 298.257223563   // flattening
	wgs84E2 = wgs84F * (2 - wgs84F) // first eccentricity squared
)

// Epoch maps mission elapsed time to UTC.
type Epoch struct {
	T0    time.Time // UTC at T0MET
	T0MET float64
}

// Time returns the UTC time at the given MET.
func (e Epoch) Time(met float64) time.Time {
	return e.T0.Add(time.Duration((met - e.T0MET) * float64(time.Second))).UTC()
}

// JD returns the Julian date at the given MET.
func (e Epoch) JD(met float64) float64 {
	return julian.TimeToJD(e.Time(met))
}

// EarthFrames converts between the inertial frame and Earth-bound frames.
type EarthFrames interface {
	// RotationAngle returns the Earth rotation angle (GMST) in radians at the Julian date.
	RotationAngle(jd float64) float64
	// Altitude returns the geodetic altitude in meters of the GCRF position r.
	Altitude(r []float64, jd float64) float64
	// Geodetic returns the latitude and longitude in degrees, longitude in
	// (-180, 180], and the altitude in meters of the GCRF position r.
	Geodetic(r []float64, jd float64) (latDeg, lonDeg, altM float64)
	// GeodeticToGCRF returns the GCRF position and velocity of a point fixed on
	// the Earth (latitude and longitude in degrees, altitude in meters).
	GeodeticToGCRF(latDeg, lonDeg, altM, jd float64) (r, v []float64)
	// GeodeticENU returns the East/North/Up basis, normal to the ellipsoid, of a
	// point fixed on the Earth, frozen at the Julian date.
	GeodeticENU(latDeg, lonDeg, jd float64) Basis
}

// WGS84Frames implements EarthFrames on the WGS-84 ellipsoid with a GMST-only rotation.
type WGS84Frames struct{}

// RotationAngle implements the EarthFrames interface.
func (WGS84Frames) RotationAngle(jd float64) float64 {
	return satellite.ThetaG_JD(jd)
}

// Altitude implements the EarthFrames interface.
func (f WGS84Frames) Altitude(r []float64, jd float64) float64 {
	_, _, alt := f.Geodetic(r, jd)
	return alt
}

// Geodetic implements the EarthFrames interface.
func (f WGS84Frames) Geodetic(r []float64, jd float64) (latDeg, lonDeg, altM float64) {
	// go-satellite works in kilometers and does not wrap the longitude.
	alt, _, ll := satellite.ECIToLLA(satellite.Vector3{X: r[0] / 1e3, Y: r[1] / 1e3, Z: r[2] / 1e3}, f.RotationAngle(jd))
	lon := math.Remainder(ll.Longitude, 2*math.Pi)
	if lon == -math.Pi {
		lon = math.Pi
	}
	return sunit.Angle(ll.Latitude).Deg(), sunit.Angle(lon).Deg(), alt * 1e3
}

// GeodeticToGCRF implements the EarthFrames interface.
func (f WGS84Frames) GeodeticToGCRF(latDeg, lonDeg, altM, jd float64) (r, v []float64) {
	sLat, cLat := math.Sincos(sunit.AngleFromDeg(latDeg).Rad())
	sLon, cLon := math.Sincos(sunit.AngleFromDeg(lonDeg).Rad())
	// Radius of curvature in the prime vertical.
	N := wgs84A / math.Sqrt(1-wgs84E2*sLat*sLat)
	ecef := []float64{(N + altM) * cLat * cLon, (N + altM) * cLat * sLon, (N*(1-wgs84E2) + altM) * sLat}
	r = ECEF2ECI(ecef, f.RotationAngle(jd))
	v = cross(earthSpin, r)
	return r, v
}

// GeodeticENU implements the EarthFrames interface.
func (f WGS84Frames) GeodeticENU(latDeg, lonDeg, jd float64) Basis {
	sLat, cLat := math.Sincos(sunit.AngleFromDeg(latDeg).Rad())
	// Inertial longitude of the site.
	sLon, cLon := math.Sincos(sunit.AngleFromDeg(lonDeg).Rad() + f.RotationAngle(jd))
	return Basis{
		X: []float64{-sLon, cLon, 0},
		Y: []float64{-sLat * cLon, -sLat * sLon, cLat},
		Z: []float64{cLat * cLon, cLat * sLon, sLat},
	}
}

// relativeVelocity returns the velocity with respect to the rotating Earth (and its atmosphere).
func relativeVelocity(r, v []float64) []float64 {
	return sub(v, cross(earthSpin, r))
}

// FlightData are the Earth-relative quantities of a state.
type FlightData struct {
	Lat, Lon, Alt   float64 // degrees, degrees, meters
	Downrange       float64 // great circle distance to the launch site in meters, NaN without a site
	FlightPathAngle float64 // elevation of the Earth-relative velocity above the local horizon, degrees
	Heading         float64 // azimuth of the Earth-relative velocity from the North, degrees in [0, 360)
}

func (f FlightData) String() string {
	return fmt.Sprintf("lat=%.4f lon=%.4f alt=%.3fkm range=%.3fkm fpa=%.3f hdg=%.3f", f.Lat, f.Lon, f.Alt/1e3, f.Downrange/1e3, f.FlightPathAngle, f.Heading)
}

// NewFlightData returns the flight data of the GCRF state (r, v) at the Julian date.
// The site may be nil.
func NewFlightData(earth EarthFrames, site *LaunchSiteConfig, r, v []float64, jd float64) FlightData {
	var f FlightData
	f.Lat, f.Lon, f.Alt = earth.Geodetic(r, jd)
	f.Downrange = math.NaN()
	if site != nil {
		// Haversine on the mean Earth radius.
		φ1, φ2 := sunit.AngleFromDeg(site.Lat).Rad(), sunit.AngleFromDeg(f.Lat).Rad()
		Δλ := Deg2rad(f.Lon - site.Lon)
		h := math.Pow(math.Sin((φ2-φ1)/2), 2) + math.Cos(φ1)*math.Cos(φ2)*math.Pow(math.Sin(Δλ/2), 2)
		f.Downrange = 2 * Earth.Radius * math.Asin(math.Sqrt(math.Min(h, 1)))
	}
	enu := earth.GeodeticENU(f.Lat, f.Lon, jd)
	vRel := relativeVelocity(r, v)
	e, n, u := dot(vRel, enu.X), dot(vRel, enu.Y), dot(vRel, enu.Z)
	f.FlightPathAngle = sunit.Angle(math.Atan2(u, math.Hypot(e, n))).Deg()
	f.Heading = Rad2deg(math.Atan2(e, n))
	return f
}
