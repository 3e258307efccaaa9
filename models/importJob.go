package models

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/rosterpilot/roster_backend/config"
	"github.com/rosterpilot/roster_backend/utils"
)

type ImportJob struct {
	ID               int             `gorm:"primary_key" json:"id"`
	TeamId           int             `gorm:"not null;index;uniqueIndex:idx_import_team_hash,priority:1" json:"team_id"`
	UserId           int             `gorm:"not null;index" json:"user_id"`
	User             *User           `gorm:"foreignKey:UserId" json:"user,omitempty"`
	OriginalFilename string          `gorm:"size:255;not null" json:"original_filename"`
	StoredPath       string          `gorm:"size:512;not null" json:"stored_path"`
	FileHash         string          `gorm:"size:64;not null;uniqueIndex:idx_import_team_hash,priority:2" json:"file_hash"`
	Status           ImportJobStatus `gorm:"type:enum('pending','ready','completed','failed');not null;default:'pending'" json:"status"`
	TotalRows        int             `gorm:"not null;default:0" json:"total_rows"`
	CreatedCount     int             `gorm:"not null;default:0" json:"created_count"`
	UpdatedCount     int             `gorm:"not null;default:0" json:"updated_count"`
	ErrorCount       int             `gorm:"not null;default:0" json:"error_count"`
	ColumnMap        []byte          `gorm:"type:json" json:"column_map"`
	ErrorReportPath  *string         `gorm:"size:512" json:"error_report_path"`
	ProcessedAt      *time.Time      `json:"processed_at"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// Wire shape returned by the imports endpoints.
type ImportJobResource struct {
	ID                   int                 `json:"id"`
	Status               ImportJobStatus     `json:"status"`
	OriginalFilename     string              `json:"original_filename"`
	FileHash             string              `json:"file_hash"`
	Counts               ImportJobCounts     `json:"counts"`
	ColumnMap            json.RawMessage     `json:"column_map"`
	ProcessedAt          *time.Time          `json:"processed_at"`
	CreatedAt            time.Time           `json:"created_at"`
	ErrorReportAvailable bool                `json:"error_report_available"`
	ErrorReportUrl       *string             `json:"error_report_url"`
	User                 *ImportJobUser      `json:"user,omitempty"`
	Rows                 []ImportRowResource `json:"rows,omitempty"`
}

type ImportJobCounts struct {
	Total   int `json:"total"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Errors  int `json:"errors"`
}

type ImportJobUser struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Email *string `json:"email"`
}

func (job *ImportJob) ToResource(rows []*ImportRow) *ImportJobResource {
	resource := &ImportJobResource{
		ID:                   job.ID,
		Status:               job.Status,
		OriginalFilename:     job.OriginalFilename,
		FileHash:             job.FileHash,
		ProcessedAt:          job.ProcessedAt,
		CreatedAt:            job.CreatedAt,
		ErrorReportAvailable: job.ErrorReportPath != nil,
		Counts: ImportJobCounts{
			Total:   job.TotalRows,
			Created: job.CreatedCount,
			Updated: job.UpdatedCount,
			Errors:  job.ErrorCount,
		},
	}
	if len(job.ColumnMap) > 0 {
		resource.ColumnMap = json.RawMessage(job.ColumnMap)
	}
	if job.ErrorReportPath != nil {
		url := "/imports/" + strconv.Itoa(job.ID) + "/errors"
		resource.ErrorReportUrl = &url
	}
	if job.User != nil {
		resource.User = &ImportJobUser{
			ID:    job.User.ID,
			Name:  job.User.Name,
			Email: job.User.Email,
		}
	}
	for _, row := range rows {
		resource.Rows = append(resource.Rows, row.ToResource())
	}
	return resource
}

/*
caches:
	ImportJobList:$teamId
*/

func (job ImportJob) RemoveAllRedis() error {
	return utils.RemoveRedisList[ImportJob](job.TeamId)
}

func GetImportJob(ctx context.Context, teamId int, id int) (*ImportJob, error) {
	return utils.FetchModel[ImportJob](ctx, teamId, id, "User")
}

// GetRecentImportJobs lists the latest jobs for a team, newest first.
func GetRecentImportJobs(ctx context.Context, teamId int, limit int) ([]*ImportJob, error) {

	cached, err := utils.RetrieveRedisList[ImportJob](teamId)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	db := config.GetDB()
	var results []*ImportJob

	err = db.WithContext(ctx).
		Preload("User").
		Where("team_id = ?", teamId).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&results).Error
	if err != nil {
		return nil, err
	}

	if err := utils.StoreRedisList[ImportJob](results, teamId); err != nil {
		return nil, err
	}

	return results, nil
}
