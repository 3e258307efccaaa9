package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rosterpilot/roster_backend/config"
	"github.com/rosterpilot/roster_backend/utils"
	"gorm.io/gorm"
)

// Outbox publish statuses for ImportEventRecord.PublishStatus.
// Keep these as strings (DB values) for backwards compatibility.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

type ImportEventRecord struct {
	ID          int             `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	TeamId      int             `gorm:"not null;index" json:"team_id"`
	ImportJobId int             `gorm:"not null;index" json:"import_job_id"`
	EventType   ImportEventType `gorm:"size:64;not null" json:"event_type"`
	OccurredAt  time.Time       `gorm:"index;not null" json:"occurred_at"`
	Payload     []byte          `gorm:"type:blob" json:"payload"`
	// Outbox metadata (publish happens after commit via dispatcher).
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `gorm:"index" json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// ImportAppliedEvent is the payload published when an import completes.
type ImportAppliedEvent struct {
	ImportJobId    int        `json:"import_job_id"`
	TeamId         int        `json:"team_id"`
	Status         string     `json:"status"`
	TotalRows      int        `json:"total_rows"`
	CreatedCount   int        `json:"created_count"`
	UpdatedCount   int        `json:"updated_count"`
	ErrorCount     int        `json:"error_count"`
	ProcessedAt    *time.Time `json:"processed_at"`
	ErrorReportUrl *string    `json:"error_report_url,omitempty"`
}

// RecordImportEvent implements the transactional outbox: the event row is
// written inside the caller's DB transaction but publishing to Pub/Sub is
// performed asynchronously by the outbox dispatcher after commit.
func RecordImportEvent(ctx context.Context, db *gorm.DB, job *ImportJob, eventType ImportEventType, event ImportAppliedEvent) error {

	if job.ErrorReportPath != nil {
		// Subscribers are outside the API, so they get an absolute URL.
		reportURL := utils.BuildObjectAccessURL(*job.ErrorReportPath)
		event.ErrorReportUrl = &reportURL
	}

	payload, err := utils.MarshalToJSON(event)
	if err != nil {
		return err
	}

	record := ImportEventRecord{
		TeamId:        job.TeamId,
		ImportJobId:   job.ID,
		EventType:     eventType,
		OccurredAt:    time.Now().UTC(),
		Payload:       []byte(payload),
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return db.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

func ConvertToImportEventMessage(record ImportEventRecord) config.ImportEventMessage {
	return config.ImportEventMessage{
		ID:            record.ID,
		TeamId:        record.TeamId,
		ImportJobId:   record.ImportJobId,
		EventType:     string(record.EventType),
		OccurredAt:    record.OccurredAt,
		Payload:       record.Payload,
		CorrelationId: record.CorrelationId,
	}
}
