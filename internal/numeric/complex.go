package numeric

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// toRealBlock lifts an m x n complex matrix to the equivalent 2m x 2n real
// block matrix:
//
//	[ Re(A)  -Im(A) ]
//	[ Im(A)   Re(A) ]
//
// so that solving the real system against [Re(x); Im(x)] is equivalent to
// solving A x = b in the complex domain.
func toRealBlock(a [][]complex128) *mat.Dense {
	m := len(a)
	if m == 0 {
		return mat.NewDense(0, 0, nil)
	}
	n := len(a[0])
	d := mat.NewDense(2*m, 2*n, nil)
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			re, im := real(a[i][j]), imag(a[i][j])
			d.Set(i, j, re)
			d.Set(i, n+j, -im)
			d.Set(m+i, j, im)
			d.Set(m+i, n+j, re)
		}
	}
	return d
}

func toRealVector(b []complex128) *mat.VecDense {
	m := len(b)
	v := mat.NewVecDense(2*m, nil)
	for i, c := range b {
		v.SetVec(i, real(c))
		v.SetVec(m+i, imag(c))
	}
	return v
}

func fromRealVector(v mat.Vector, n int) []complex128 {
	out := make([]complex128, n)
	for i := 0; i < n; i++ {
		out[i] = complex(v.AtVec(i), v.AtVec(n+i))
	}
	return out
}

// Solve returns x such that a*x = b. When a is square it uses LU
// factorization; when it is over-determined it uses QR least squares.
// Returns ok=false (nil slice) if a is singular or rank-deficient.
func Solve(a [][]complex128, b []complex128) ([]complex128, bool) {
	m := len(a)
	if m == 0 {
		return nil, true
	}
	n := len(a[0])
	blk := toRealBlock(a)
	rhs := toRealVector(b)

	if m == n {
		var lu mat.LU
		lu.Factorize(blk)
		if lu.Cond() > 1e14 || math.IsInf(lu.Cond(), 1) {
			return nil, false
		}
		var x mat.VecDense
		if err := lu.SolveVecTo(&x, false, rhs); err != nil {
			return nil, false
		}
		return fromRealVector(&x, n), true
	}

	if m < n {
		return nil, false
	}

	var qr mat.QR
	qr.Factorize(blk)
	var x mat.VecDense
	if err := qr.SolveVecTo(&x, false, rhs); err != nil {
		return nil, false
	}
	return fromRealVector(&x, n), true
}

// PseudoInverse returns the Moore-Penrose pseudoinverse of the m x n complex
// matrix a, computed via the SVD of its real block embedding (the same
// approach the teacher project's matrix.InverseSVD takes for the real
// case). Returns ok=false if the SVD fails to converge.
func PseudoInverse(a [][]complex128) (pinv [][]complex128, ok bool) {
	m := len(a)
	if m == 0 {
		return nil, true
	}
	n := len(a[0])
	blk := toRealBlock(a)

	var svd mat.SVD
	if !svd.Factorize(blk, mat.SVDThin) {
		return nil, false
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	maxS := 0.0
	for _, si := range s {
		if si > maxS {
			maxS = si
		}
	}
	eps := 1e-12 * math.Max(float64(2*m), float64(2*n)) * maxS

	sp := mat.NewDense(len(s), len(s), nil)
	for i := range s {
		if s[i] > eps {
			sp.Set(i, i, 1.0/s[i])
		}
	}

	var vSp mat.Dense
	vSp.Mul(&v, sp)
	uT := mat.DenseCopyOf(u.T())

	var pinvBlk mat.Dense
	pinvBlk.Mul(&vSp, uT)

	// pinvBlk is 2n x 2m, the real block embedding of the n x m complex
	// pseudoinverse; unpack it the same way toRealBlock packed the input.
	pinv = make([][]complex128, n)
	for i := 0; i < n; i++ {
		pinv[i] = make([]complex128, m)
		for j := 0; j < m; j++ {
			re := pinvBlk.At(i, j)
			im := pinvBlk.At(n+i, j)
			pinv[i][j] = complex(re, im)
		}
	}
	return pinv, true
}

// MulMatVec multiplies an m x n complex matrix by a length-n complex vector.
func MulMatVec(a [][]complex128, x []complex128) []complex128 {
	m := len(a)
	out := make([]complex128, m)
	for i := 0; i < m; i++ {
		var sum complex128
		for j, v := range x {
			sum += a[i][j] * v
		}
		out[i] = sum
	}
	return out
}

// FrobeniusNorm returns the Frobenius norm of a complex matrix.
func FrobeniusNorm(a [][]complex128) float64 {
	sum := 0.0
	for _, row := range a {
		for _, v := range row {
			sum += real(v)*real(v) + imag(v)*imag(v)
		}
	}
	return math.Sqrt(sum)
}

// NormVec returns the Euclidean norm of a complex vector.
func NormVec(v []complex128) float64 {
	sum := 0.0
	for _, c := range v {
		sum += real(c)*real(c) + imag(c)*imag(c)
	}
	return math.Sqrt(sum)
}

// Invert returns the inverse of a square complex matrix via Solve against
// the identity, reporting ok=false if a is singular.
func Invert(a [][]complex128) (inv [][]complex128, ok bool) {
	n := len(a)
	inv = make([][]complex128, n)
	for i := range inv {
		inv[i] = make([]complex128, n)
	}
	for col := 0; col < n; col++ {
		e := make([]complex128, n)
		e[col] = 1
		x, solved := Solve(a, e)
		if !solved {
			return nil, false
		}
		for row := 0; row < n; row++ {
			inv[row][col] = x[row]
		}
	}
	return inv, true
}

// MulMat multiplies two complex matrices.
func MulMat(a, b [][]complex128) [][]complex128 {
	m := len(a)
	if m == 0 {
		return nil
	}
	k := len(a[0])
	n := 0
	if len(b) > 0 {
		n = len(b[0])
	}
	out := make([][]complex128, m)
	for i := 0; i < m; i++ {
		out[i] = make([]complex128, n)
		for j := 0; j < n; j++ {
			var sum complex128
			for l := 0; l < k; l++ {
				sum += a[i][l] * b[l][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

// SubMat subtracts two equally-shaped complex matrices.
func SubMat(a, b [][]complex128) [][]complex128 {
	out := make([][]complex128, len(a))
	for i := range a {
		out[i] = make([]complex128, len(a[i]))
		for j := range a[i] {
			out[i][j] = a[i][j] - b[i][j]
		}
	}
	return out
}
