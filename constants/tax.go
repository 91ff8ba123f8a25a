package constants

import "math"

// AllowedTaxRates is the permitted VAT rate set for the jurisdiction, in percent.
var AllowedTaxRates = []float64{19.0, 7.0, 0.0}

// AmountTolerance is the maximum accepted drift between gross and net+tax,
// in currency units.
const AmountTolerance = 0.01

// IsAllowedTaxRate reports whether rate is one of the permitted VAT rates.
func IsAllowedTaxRate(rate float64) bool {
	for _, r := range AllowedTaxRates {
		if math.Abs(rate-r) < 1e-9 {
			return true
		}
	}
	return false
}

// SnapTaxRate snaps a noisy OCR rate to the nearest permitted rate if it is
// within 0.5 percentage points, otherwise returns the input and false.
func SnapTaxRate(rate float64) (float64, bool) {
	for _, r := range AllowedTaxRates {
		if math.Abs(rate-r) <= 0.5 {
			return r, true
		}
	}
	return rate, false
}
