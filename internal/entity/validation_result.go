package entity

import (
	"time"

	"github.com/google/uuid"
)

// Issue is one normalized finding from the validation service.
type Issue struct {
	Severity string `json:"severity"` // "error" | "warning"
	Code     string `json:"code"`
	Message  string `json:"message"`
	Location string `json:"location,omitempty"`
}

// ValidationResult is one validation attempt against an invoice.
// Append-only: re-validation inserts a new row, history is never mutated.
type ValidationResult struct {
	ID               uuid.UUID `json:"id"`
	InvoiceID        uuid.UUID `json:"invoice_id"`
	Valid            bool      `json:"valid"`
	ValidatorVersion string    `json:"validator_version"`
	Issues           []Issue   `json:"issues,omitempty"`
	ErrorCount       int       `json:"error_count"`
	WarningCount     int       `json:"warning_count"`
	// Unreachable marks a synthetic result recorded when the validation
	// service could not be reached; the invoice stays pending.
	Unreachable bool      `json:"unreachable,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Errors returns the messages of all error-severity issues.
func (v *ValidationResult) Errors() []string {
	var out []string
	for _, is := range v.Issues {
		if is.Severity == "error" {
			out = append(out, is.Message)
		}
	}
	return out
}
