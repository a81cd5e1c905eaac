package mrs

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	// EarthRotationRate is the average Earth rotation rate in radians per second.
	EarthRotationRate = 7.2921158553e-5
)

// earthSpin is the Earth angular velocity vector in GCRF.
var earthSpin = []float64{0, 0, EarthRotationRate}

// R1 rotation about the 1st axis.
func R1(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, c, s, 0, -s, c})
}

// R3 rotation about the 3rd axis.
func R3(x float64) *mat.Dense {
	s, c := math.Sincos(x)
	return mat.NewDense(3, 3, []float64{c, s, 0, -s, c, 0, 0, 0, 1})
}

// MxV33 multiplies a matrix with a vector. Note that there is no dimension check!
func MxV33(m mat.Matrix, v []float64) []float64 {
	var rVec mat.VecDense
	rVec.MulVec(m, mat.NewVecDense(len(v), v))
	return []float64{rVec.AtVec(0), rVec.AtVec(1), rVec.AtVec(2)}
}

// ECI2ECEF converts the provided GCRF vector to ECEF for the Earth rotation angle θgst (radians).
func ECI2ECEF(R []float64, θgst float64) []float64 {
	return MxV33(R3(θgst), R)
}

// ECEF2ECI converts the provided ECEF vector to GCRF for the Earth rotation angle θgst (radians).
func ECEF2ECI(R []float64, θgst float64) []float64 {
	return ECI2ECEF(R, -θgst)
}

// Basis is an orthonormal triad expressed in GCRF. X, Y and Z are the frame's
// first, second and third axes (for topocentric frames: East, North, Up).
type Basis struct {
	X, Y, Z []float64
}

// Along returns the GCRF vector for the components (x, y, z) along the basis axes.
func (b Basis) Along(x, y, z float64) []float64 {
	return combine(x, b.X, y, b.Y, z, b.Z)
}

// Matrix returns the matrix whose rows are the basis axes (GCRF to frame).
func (b Basis) Matrix() *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	m.SetRow(0, b.X)
	m.SetRow(1, b.Y)
	m.SetRow(2, b.Z)
	return m
}

// orthonormal returns whether the basis matrix is a rotation within tol.
func (b Basis) orthonormal(tol float64) bool {
	m := b.Matrix()
	var mmT mat.Dense
	mmT.Mul(m, m.T())
	eye := mat.NewDiagDense(3, []float64{1, 1, 1})
	return mat.EqualApprox(&mmT, eye, tol) && math.Abs(mat.Det(m)-1) < tol
}

// enuBasis returns the spherical East/North/Up basis at the GCRF position r.
// The Earth rotation axis is taken as the GCRF z axis.
func enuBasis(r []float64) Basis {
	up := unit(r)
	east := unit(cross([]float64{0, 0, 1}, up))
	if norm(east) == 0 {
		// At the poles, East is arbitrary: use the GCRF y axis.
		east = []float64{0, 1, 0}
	}
	north := cross(up, east)
	return Basis{X: east, Y: north, Z: up}
}
