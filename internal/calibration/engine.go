// Package calibration turns raw LEMI-423 counts into physical units and
// loads coil frequency responses.
package calibration

import (
	"fmt"
	"math"

	"github.com/bvkay/LEMI-423-Reader/internal/b423"
	"github.com/bvkay/LEMI-423-Reader/internal/domain"
)

// Linear applies one coefficient pair to a raw count.
func Linear(raw int32, p domain.Pair) float64 {
	return float64(raw)*p.K + p.A
}

// ValidateDipole rejects electrode separations that cannot normalise Ex/Ey.
func ValidateDipole(d domain.Dipole) error {
	if err := validateLength("dipole.ex", d.Ex); err != nil {
		return err
	}
	return validateLength("dipole.ey", d.Ey)
}

func validateLength(field string, v float64) error {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return &domain.ConfigurationError{Field: field, Reason: fmt.Sprintf("%v is not a finite distance", v)}
	case v <= 0:
		return &domain.ConfigurationError{Field: field, Reason: fmt.Sprintf("%v m must be > 0", v)}
	}
	return nil
}

// Calibrate scales every record with the header coefficients. Bx/By/Bz come
// out in mV; Ex/Ey in µV divided by the dipole length in meters, i.e. mV/km.
// rate only sets CalibratedSample.Time; pass 0 to leave it on the second.
// Nothing is computed when the dipole is invalid.
func Calibrate(recs []domain.SampleRecord, c domain.Coefficients, d domain.Dipole, rate int) ([]domain.CalibratedSample, error) {
	if err := ValidateDipole(d); err != nil {
		return nil, err
	}

	// µV/m and mV/km are the same unit, so dividing by meters is the whole
	// normalisation.
	out := make([]domain.CalibratedSample, len(recs))
	for i, r := range recs {
		out[i] = domain.CalibratedSample{
			Second: r.Second,
			Index:  r.Index,
			Time:   b423.SampleTime(r.Second, r.Index, rate),
			Bx:     Linear(r.Bx, c[domain.Bx]),
			By:     Linear(r.By, c[domain.By]),
			Bz:     Linear(r.Bz, c[domain.Bz]),
			Ex:     Linear(r.Ex, c[domain.Ex]) / d.Ex,
			Ey:     Linear(r.Ey, c[domain.Ey]) / d.Ey,
		}
	}
	return out, nil
}
