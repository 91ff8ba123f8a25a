package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/belegwerk/einvoice/constants"
)

// Invoice is the durable invoice record. Created once per successfully
// orchestrated document; never deleted by the pipeline.
type Invoice struct {
	ID              uuid.UUID                  `json:"id"`
	TenantID        uuid.UUID                  `json:"tenant_id"`
	PublicID        uuid.UUID                  `json:"public_id"`
	InvoiceNumber   string                     `json:"invoice_number"`
	Draft           InvoiceDraft               `json:"draft"`
	SourceType      constants.SourceType       `json:"source_type"`
	Confidence      float64                    `json:"confidence"` // document score, [0,100]
	SKR03Account    string                     `json:"skr03_account,omitempty"`
	CategoryLabel   string                     `json:"category_label,omitempty"`
	ValidationState constants.ValidationStatus `json:"validation_status"`
	ValidationErrs  []string                   `json:"validation_errors,omitempty"`
	XMLKey          string                     `json:"xml_key,omitempty"`        // artifact store key
	HybridPDFKey    string                     `json:"hybrid_pdf_key,omitempty"` // artifact store key
	CreatedAt       time.Time                  `json:"created_at"`
	UpdatedAt       time.Time                  `json:"updated_at"`
}
