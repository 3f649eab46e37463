package solver

import (
	"math/cmplx"

	"github.com/CK6170/vnacal-go/internal/numeric"
	"github.com/CK6170/vnacal-go/newcal"
	"github.com/CK6170/vnacal-go/param"
	"github.com/CK6170/vnacal-go/vnaerr"
)

// trlRoles identifies which of a builder's three 2x2 measurements is the
// through, the symmetric reflect, and the line, by the shape convention
// newcal.Builder.AddThrough/AddDoubleReflect/AddLine produce.
type trlRoles struct {
	through, reflect, line *newcal.Measurement
	reflectHandle          param.Handle
	lineHandles            [2][2]param.Handle
}

func classifyTRL(b *newcal.Builder) (*trlRoles, error) {
	if len(b.Measurements) != 3 {
		return nil, vnaerr.Usagef("TRL requires exactly three measurements, got %d", len(b.Measurements))
	}
	r := &trlRoles{}
	for _, ms := range b.Measurements {
		if ms.Rows != 2 || ms.Cols != 2 {
			return nil, vnaerr.Usagef("TRL requires 2x2 measurements")
		}
		s := ms.SMatrix
		switch {
		case s[0][0] == param.Match && s[1][1] == param.Match && s[0][1] == param.Open && s[1][0] == param.Open:
			r.through = ms
		case s[0][1] == param.Handle{} && s[1][0] == (param.Handle{}) && s[0][0] != param.Match && s[1][1] != param.Match:
			r.reflect = ms
			r.reflectHandle = s[0][0]
		default:
			r.line = ms
			r.lineHandles = [2][2]param.Handle{{s[0][0], s[0][1]}, {s[1][0], s[1][1]}}
		}
	}
	if r.through == nil || r.reflect == nil || r.line == nil {
		return nil, vnaerr.Usagef("TRL could not classify measurements as through/reflect/line")
	}
	return r, nil
}

func sToT(s [2][2]complex128) [2][2]complex128 {
	det := s[0][0]*s[1][1] - s[0][1]*s[1][0]
	s21 := s[1][0]
	return [2][2]complex128{
		{-det / s21, s[0][0] / s21},
		{-s[1][1] / s21, 1 / s21},
	}
}

func mul2x2(a, b [2][2]complex128) [2][2]complex128 {
	var out [2][2]complex128
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			out[i][j] = a[i][0]*b[0][j] + a[i][1]*b[1][j]
		}
	}
	return out
}

func invert2x2(a [2][2]complex128) ([2][2]complex128, bool) {
	det := a[0][0]*a[1][1] - a[0][1]*a[1][0]
	if det == 0 {
		return [2][2]complex128{}, false
	}
	return [2][2]complex128{
		{a[1][1] / det, -a[0][1] / det},
		{-a[1][0] / det, a[0][0] / det},
	}, true
}

// solveTRLLineAndReflect computes the unknown line transmission and
// reflect coefficients at one frequency from the three measured S
// matrices, following the classic through-line eigenvalue-ratio algebra:
// T = T_line * T_through^-1 has the line's forward/reverse propagation
// factors as eigenvalues. The physical root is the one closer to the
// caller-declared initial guess, per spec §4.G.
func solveTRLLineAndReflect(mt, ml [2][2]complex128, mr00, mr11 complex128, lineGuess, reflectGuess complex128) (line, reflect complex128, err error) {
	Tt := sToT(mt)
	Tl := sToT(ml)
	TtInv, ok := invert2x2(Tt)
	if !ok {
		return 0, 0, vnaerr.Mathf("TRL: singular through T-matrix")
	}
	T := mul2x2(Tl, TtInv)
	tr := T[0][0] + T[1][1]
	det := T[0][0]*T[1][1] - T[0][1]*T[1][0]
	disc := tr*tr - 4*det
	sq := cmplx.Sqrt(disc)
	l1 := (tr + sq) / 2
	l2 := (tr - sq) / 2
	if l1 == 0 && l2 == 0 {
		return 0, 0, vnaerr.Mathf("TRL: degenerate quadratic for line propagation")
	}
	if cmplx.Abs(l1-lineGuess) <= cmplx.Abs(l2-lineGuess) {
		line = l1
	} else {
		line = l2
	}

	// Reflect: the measured reflect coefficients at each port, corrected
	// for the through's estimated source match/directivity via the same
	// cascade ratio, averaged across both ports (symmetric reflect).
	rho00 := (mr00 - Tt[0][1]/Tt[1][1]) / (1 - mr00*Tt[1][0]/Tt[1][1])
	rho11 := (mr11 - Tt[1][0]/Tt[0][0]) / (1 - mr11*Tt[0][1]/Tt[0][0])
	avg := (rho00 + rho11) / 2
	root := cmplx.Sqrt(avg * avg)
	if cmplx.Abs(root-reflectGuess) <= cmplx.Abs(-root-reflectGuess) {
		reflect = root
	} else {
		reflect = -root
	}
	return line, reflect, nil
}

// solveTRL implements the TRL analytic fast path: it solves for the two
// unknown standard parameters in closed form, installs them, and finishes
// with a linear Simple solve of the now-fully-known 10-equation/7-unknown
// (T-family) or equivalent U-family system.
func solveTRL(b *newcal.Builder, opts Options) (*Result, error) {
	roles, err := classifyTRL(b)
	if err != nil {
		return nil, err
	}
	lineGuess, err := evalHandle(b.Store, roles.lineHandles[0][1], b.Freqs[0], nil)
	if err != nil {
		lineGuess = 1
	}
	reflectInit, err := b.Store.InitialGuess(roles.reflectHandle)
	var reflectGuess complex128 = 1
	if err == nil {
		if v, e := evalHandle(b.Store, reflectInit, b.Freqs[0], nil); e == nil {
			reflectGuess = v
		}
	}

	eqLists := structuralEquations(b)
	res := newResult(b, TRL)

	for fi, f := range b.Freqs {
		mt := [2][2]complex128{{roles.through.M[fi][0][0], roles.through.M[fi][0][1]}, {roles.through.M[fi][1][0], roles.through.M[fi][1][1]}}
		ml := [2][2]complex128{{roles.line.M[fi][0][0], roles.line.M[fi][0][1]}, {roles.line.M[fi][1][0], roles.line.M[fi][1][1]}}
		mr00 := roles.reflect.M[fi][0][0]
		mr11 := roles.reflect.M[fi][1][1]

		line, reflect, err := solveTRLLineAndReflect(mt, ml, mr00, mr11, lineGuess, reflectGuess)
		if err != nil {
			return nil, err
		}
		guesses := map[param.Handle]complex128{
			roles.reflectHandle:      reflect,
			roles.lineHandles[0][1]:  line,
			roles.lineHandles[1][0]:  line,
		}
		res.Unknowns[roles.reflectHandle] = append(res.Unknowns[roles.reflectHandle], reflect)
		res.Unknowns[roles.lineHandles[0][1]] = append(res.Unknowns[roles.lineHandles[0][1]], line)

		for sysIdx := 0; sysIdx < res.Systems; sysIdx++ {
			A, rhs, leak, err := assembleSystem(b, eqLists, sysIdx, fi, f, opts, guesses)
			if err != nil {
				return nil, err
			}
			x, ok := numeric.Solve(A, rhs)
			if !ok {
				return nil, vnaerr.Mathf("TRL: final linear solve failed at frequency %g", f)
			}
			res.ErrorTerms[sysIdx][fi] = x
			res.Leakage[sysIdx][fi] = meanLeakage(leak)
			res.ChiSquare += residualChiSquare(A, x, rhs, leak, opts)
		}
		lineGuess, reflectGuess = line, reflect
	}
	finalizeChiSquare(b, res, opts)
	return res, nil
}
