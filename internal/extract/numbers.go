package extract

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseDecimal parses a monetary or quantity value with locale-aware
// separator handling. Both "1.234,56" (German) and "1,234.56" (English) are
// accepted, as are bare "59,99" / "59.99". Currency markers are stripped.
func ParseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	for _, marker := range []string{"€", "$", "£", "EUR", "eur"} {
		s = strings.ReplaceAll(s, marker, "")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		// the rightmost separator is the decimal mark
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		// a single comma with exactly three trailing digits is ambiguous;
		// treat it as a thousands separator only when more groups follow
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			// multiple dots can only be thousands separators
			s = strings.ReplaceAll(s, ".", "")
		} else if len(s)-lastDot-1 == 3 && lastDot > 0 {
			// "1.234" reads as one thousand two hundred thirty-four
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if neg {
		v = -v
	}
	return v, nil
}
