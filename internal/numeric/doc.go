// Package numeric implements the calibration engine's numeric primitives:
// complex-valued linear solves (QR/LU, least squares, Moore-Penrose
// pseudoinverse), a real cubic spline, and rational-function interpolation
// with a restartable segment hint.
//
// The complex solves are not available pre-built in gonum (gonum/mat's
// complex support is limited to basic dense arithmetic, with no complex
// QR/LU/SVD factorizations — see DESIGN.md). We instead lift every complex
// m x n system to an equivalent real 2m x 2n block system and drive gonum's
// real decompositions, in the spirit of the teacher project's
// matrix.InverseSVD, which hands a real problem to gonum/mat and copies the
// result back out.
package numeric
