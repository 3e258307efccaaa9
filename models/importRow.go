package models

import (
	"context"
	"time"

	"github.com/rosterpilot/roster_backend/config"
	"github.com/rosterpilot/roster_backend/utils"
)

type ImportRow struct {
	ID          int             `gorm:"primary_key" json:"id"`
	ImportJobId int             `gorm:"not null;index;uniqueIndex:idx_row_job_number,priority:1" json:"import_job_id"`
	PlayerId    *int            `gorm:"index" json:"player_id"`
	RowNumber   int             `gorm:"not null;uniqueIndex:idx_row_job_number,priority:2" json:"row_number"`
	Payload     []byte          `gorm:"type:json" json:"payload"`
	Action      ImportRowAction `gorm:"type:enum('create','update','error');not null" json:"action"`
	Errors      []byte          `gorm:"type:json" json:"errors"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RowPayload is the normalized per-row field set. A nil field means the
// cell was absent or blank.
type RowPayload struct {
	FullName *string `json:"full_name"`
	Email    *string `json:"email"`
	Jersey   *string `json:"jersey"`
	Position *string `json:"position"`
}

// ErrorBag maps field name to its ordered validation messages.
type ErrorBag map[string][]string

type ImportRowResource struct {
	ID        int             `json:"id"`
	RowNumber int             `json:"row_number"`
	Action    ImportRowAction `json:"action"`
	Payload   *RowPayload     `json:"payload"`
	Errors    ErrorBag        `json:"errors"`
}

func (row *ImportRow) ToResource() ImportRowResource {
	resource := ImportRowResource{
		ID:        row.ID,
		RowNumber: row.RowNumber,
		Action:    row.Action,
		Errors:    ErrorBag{},
	}
	if len(row.Payload) > 0 {
		var payload RowPayload
		if err := utils.UnmarshalFromJSON(row.Payload, &payload); err == nil {
			resource.Payload = &payload
		}
	}
	if len(row.Errors) > 0 {
		var bag ErrorBag
		if err := utils.UnmarshalFromJSON(row.Errors, &bag); err == nil {
			resource.Errors = bag
		}
	}
	return resource
}

func (row *ImportRow) DecodePayload() (*RowPayload, error) {
	if len(row.Payload) == 0 {
		return nil, nil
	}
	var payload RowPayload
	if err := utils.UnmarshalFromJSON(row.Payload, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// GetImportRows fetches a job's rows ordered by their original file position.
func GetImportRows(ctx context.Context, importJobId int) ([]*ImportRow, error) {

	db := config.GetDB()
	var rows []*ImportRow

	err := db.WithContext(ctx).
		Where("import_job_id = ?", importJobId).
		Order("row_number ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
