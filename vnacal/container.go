package vnacal

import (
	"github.com/CK6170/vnacal-go/newcal"
	"github.com/CK6170/vnacal-go/proptree"
	"github.com/CK6170/vnacal-go/solver"
)

// AddCalibration promotes a completed solver.Result into a named,
// persisted Calibration, releasing the builder's parameter holds (the
// result's own solved values now live in the store via solver.Solve's
// SetSolution calls, so the builder's temporary holds are no longer
// needed). The name must be unique within cs.
func (cs *CalSet) AddCalibration(name string, b *newcal.Builder, res *solver.Result, z0 Z0) (*Calibration, error) {
	if name == "" {
		return nil, cs.report(errUsage("calibration name must not be empty"))
	}
	if _, _, err := cs.FindCalibration(name); err == nil {
		return nil, cs.report(errUsage("a calibration named %q already exists", name))
	}
	c := &Calibration{
		Name:       name,
		Type:       res.Type,
		Layout:     res.Layout,
		Freqs:      append([]float64(nil), res.Freqs...),
		Z0:         z0,
		ErrorTerms: res.ErrorTerms,
		Leakage:    res.Leakage,
		Properties: proptree.New(),
	}
	cs.Calibrations = append(cs.Calibrations, c)
	if b != nil {
		b.Release()
	}
	return c, nil
}

// FindCalibration returns the named calibration and its index, or NOENT if
// no calibration with that name exists.
func (cs *CalSet) FindCalibration(name string) (*Calibration, int, error) {
	for i, c := range cs.Calibrations {
		if c.Name == name {
			return c, i, nil
		}
	}
	return nil, -1, cs.report(errNoEnt("no calibration named %q", name))
}

// GetCalibrationEnd returns the number of calibrations currently held
// (the exclusive upper bound of a valid calibration index).
func (cs *CalSet) GetCalibrationEnd() int { return len(cs.Calibrations) }

// Calibration returns the calibration at index ci, or a Usage error if ci
// is out of range.
func (cs *CalSet) Calibration(ci int) (*Calibration, error) {
	if ci < 0 || ci >= len(cs.Calibrations) {
		return nil, cs.report(errUsage("calibration index %d out of range [0,%d)", ci, len(cs.Calibrations)))
	}
	return cs.Calibrations[ci], nil
}

// DeleteCalibration removes the calibration at index ci, shifting later
// indices down by one.
func (cs *CalSet) DeleteCalibration(ci int) error {
	if ci < 0 || ci >= len(cs.Calibrations) {
		return cs.report(errUsage("calibration index %d out of range [0,%d)", ci, len(cs.Calibrations)))
	}
	cs.Calibrations = append(cs.Calibrations[:ci], cs.Calibrations[ci+1:]...)
	return nil
}

// GetFilename returns the path this container was last saved to or loaded
// from, or "" if neither has happened yet.
func (cs *CalSet) GetFilename() string { return cs.Filename }

func validPrecision(p int) bool { return p == MaxPrecision || p >= 1 }

// SetFPrecision sets the decimal digits used to format frequencies on
// save, or MaxPrecision for round-trip-exact hexadecimal floating point.
func (cs *CalSet) SetFPrecision(p int) error {
	if !validPrecision(p) {
		return cs.report(errUsage("fprecision must be >= 1 or MaxPrecision, got %d", p))
	}
	cs.FPrecision = p
	return nil
}

// SetDPrecision sets the decimal digits used to format error-term and z0
// data values on save, or MaxPrecision for round-trip-exact hexadecimal
// floating point.
func (cs *CalSet) SetDPrecision(p int) error {
	if !validPrecision(p) {
		return cs.report(errUsage("dprecision must be >= 1 or MaxPrecision, got %d", p))
	}
	cs.DPrecision = p
	return nil
}
