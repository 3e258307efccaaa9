package models

type ImportJobStatus string

const (
	ImportJobStatusPending   ImportJobStatus = "pending"
	ImportJobStatusReady     ImportJobStatus = "ready"
	ImportJobStatusCompleted ImportJobStatus = "completed"
	ImportJobStatusFailed    ImportJobStatus = "failed"
)

type ImportRowAction string

const (
	ImportRowActionCreate ImportRowAction = "create"
	ImportRowActionUpdate ImportRowAction = "update"
	ImportRowActionError  ImportRowAction = "error"
)

// Roster fields a spreadsheet column can be mapped to.
const (
	FieldFullName = "full_name"
	FieldEmail    = "email"
	FieldJersey   = "jersey"
	FieldPosition = "position"
)

type ImportEventType string

const (
	ImportEventTypeApplied ImportEventType = "roster.import.applied"
)
