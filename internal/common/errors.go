package common

import (
	"errors"
	"fmt"
)

// Error kinds for the pipeline taxonomy. Terminal kinds abort a document's
// run; recoverable kinds are absorbed into the attempt's output.
var (
	ErrExtractionFailed     = errors.New("extraction failed")
	ErrStructuringDegraded  = errors.New("structuring degraded")
	ErrProviderFailure      = errors.New("provider failure")
	ErrGeneration           = errors.New("generation error")
	ErrValidatorUnreachable = errors.New("validator unreachable")
	ErrPersistenceFailure   = errors.New("persistence failure")
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("not found")
)

// WrapKind preserves a typed error kind with operation context.
func WrapKind(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ClassifyKind maps an error onto its machine-readable kind string,
// for batch outcomes and upload logs.
func ClassifyKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrExtractionFailed):
		return "extraction_failed"
	case errors.Is(err, ErrGeneration):
		return "generation_error"
	case errors.Is(err, ErrPersistenceFailure):
		return "persistence_failure"
	case errors.Is(err, ErrProviderFailure):
		return "provider_failure"
	case errors.Is(err, ErrValidatorUnreachable):
		return "validator_unreachable"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal_error"
	}
}
