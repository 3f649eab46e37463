package vnacal

import "github.com/CK6170/vnacal-go/apply"

// Apply computes corrected S-matrices for calibration ci from raw a,b wave
// matrices, per spec §6's apply(ci, f[], a, b, out).
func (cs *CalSet) Apply(ci int, opts apply.Options, freqs []float64, a, b [][][]complex128) ([][][]complex128, error) {
	c, err := cs.Calibration(ci)
	if err != nil {
		return nil, err
	}
	out, err := apply.Apply(c.toApplyCalibration(), opts, freqs, a, b)
	return out, cs.report(err)
}

// ApplyM computes corrected S-matrices for calibration ci from an
// already-divided raw m matrix, per spec §6's apply_m(ci, f[], m, out).
func (cs *CalSet) ApplyM(ci int, opts apply.Options, freqs []float64, m [][][]complex128) ([][][]complex128, error) {
	c, err := cs.Calibration(ci)
	if err != nil {
		return nil, err
	}
	out, err := apply.ApplyM(c.toApplyCalibration(), opts, freqs, m)
	return out, cs.report(err)
}

// toApplyCalibration adapts a vnacal.Calibration's persisted fields into
// the apply package's independent Calibration view, caching it so repeated
// Apply/ApplyM calls on the same calibration reuse apply.Calibration's own
// interpolator cache (DESIGN.md Open Question 11) instead of rebuilding it
// on every call.
func (c *Calibration) toApplyCalibration() *apply.Calibration {
	if c.applyView == nil {
		c.applyView = &apply.Calibration{
			Type:       c.Type,
			Layout:     c.Layout,
			Freqs:      c.Freqs,
			ErrorTerms: c.ErrorTerms,
			Leakage:    c.Leakage,
		}
	}
	return c.applyView
}
