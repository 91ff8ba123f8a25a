package constants

// DocumentState is the per-attempt pipeline state. Transitions are
// one-directional; FAILED is absorbing.
type DocumentState string

const (
	StateReceived    DocumentState = "RECEIVED"
	StateExtracting  DocumentState = "EXTRACTING"
	StateScoring     DocumentState = "SCORING"
	StateStructuring DocumentState = "STRUCTURING"
	StateGenerating  DocumentState = "GENERATING"
	StateValidating  DocumentState = "VALIDATING"
	StateValid       DocumentState = "VALID"
	StateInvalid     DocumentState = "INVALID"
	StatePersisted   DocumentState = "PERSISTED"
	StateFailed      DocumentState = "FAILED"
)

// ValidationStatus is the durable validation state on an invoice row.
// PENDING also covers "validator unreachable, retry later".
type ValidationStatus string

const (
	ValidationPending ValidationStatus = "pending"
	ValidationValid   ValidationStatus = "valid"
	ValidationInvalid ValidationStatus = "invalid"
)

// SourceType records how an invoice entered the system.
type SourceType string

const (
	SourceOCR    SourceType = "ocr"
	SourceManual SourceType = "manual"
	SourceXML    SourceType = "xml"
)

// UploadOutcome is the terminal result of a raw upload attempt.
type UploadOutcome string

const (
	UploadSuccess UploadOutcome = "success"
	UploadError   UploadOutcome = "error"
)
