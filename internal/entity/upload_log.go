package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/belegwerk/einvoice/constants"
)

// UploadLog is one raw upload attempt. Write-once; never mutated.
type UploadLog struct {
	ID           uuid.UUID               `json:"id"`
	TenantID     uuid.UUID               `json:"tenant_id"`
	Filename     string                  `json:"filename"`
	DeclaredType string                  `json:"declared_type"`
	SizeBytes    int64                   `json:"size_bytes"`
	Outcome      constants.UploadOutcome `json:"outcome"`
	ErrorKind    string                  `json:"error_kind,omitempty"`
	ErrorDetail  string                  `json:"error_detail,omitempty"`
	InvoiceID    *uuid.UUID              `json:"invoice_id,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
}
