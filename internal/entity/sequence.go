package entity

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NumberSequence is the per-tenant invoice number counter state.
// Mutated only under a row-level exclusive lock.
type NumberSequence struct {
	TenantID      uuid.UUID `json:"tenant_id"`
	Prefix        string    `json:"prefix"`
	Separator     string    `json:"separator"`
	YearFormat    bool      `json:"year_format"` // include the year segment
	Padding       int       `json:"padding"`     // zero-pad width of the counter
	Counter       int64     `json:"counter"`
	LastResetYear int       `json:"last_reset_year"`
	ResetYearly   bool      `json:"reset_yearly"`
}

// FormatNumber renders an invoice number from format settings and a counter
// value. Side-effect free; shared by Next and PreviewFormat.
func FormatNumber(prefix, separator string, yearFormat bool, padding int, year int, counter int64) string {
	var parts []string
	if prefix != "" {
		parts = append(parts, prefix)
	}
	if yearFormat {
		parts = append(parts, fmt.Sprintf("%d", year))
	}
	if padding > 0 {
		parts = append(parts, fmt.Sprintf("%0*d", padding, counter))
	} else {
		parts = append(parts, fmt.Sprintf("%d", counter))
	}
	return strings.Join(parts, separator)
}
