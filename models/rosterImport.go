package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rosterpilot/roster_backend/config"
	"github.com/rosterpilot/roster_backend/utils"
	"gorm.io/gorm"
)

// MaxImportRows bounds the synchronous dry-run work.
const MaxImportRows = 5000

// StoreUploadResult carries the upload outcome back to the HTTP layer.
type StoreUploadResult struct {
	Job       *ImportJob
	Duplicate bool
	Columns   []string
}

// StoreUpload persists an uploaded roster file and creates the import job.
// Re-uploading identical bytes for the same team returns the existing job.
func StoreUpload(ctx context.Context, teamId int, userId int, originalFilename string, data []byte) (*StoreUploadResult, error) {

	db := config.GetDB()

	if err := utils.ValidateResourceId[User](ctx, teamId, userId); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	fileHash := hex.EncodeToString(sum[:])

	var existing ImportJob
	err := db.WithContext(ctx).
		Preload("User").
		Where("team_id = ? AND file_hash = ?", teamId, fileHash).
		First(&existing).Error
	if err == nil {
		columns, err := AvailableColumns(ctx, &existing)
		if err != nil {
			return nil, err
		}
		return &StoreUploadResult{Job: &existing, Duplicate: true, Columns: columns}, nil
	}

	storedPath := fmt.Sprintf("imports/%d/%s_%s", teamId, uuid.NewString(), filepath.Base(originalFilename))
	if err := utils.WriteObject(ctx, storedPath, data, contentTypeForFilename(originalFilename)); err != nil {
		return nil, err
	}

	job := ImportJob{
		TeamId:           teamId,
		UserId:           userId,
		OriginalFilename: originalFilename,
		StoredPath:       storedPath,
		FileHash:         fileHash,
		Status:           ImportJobStatusPending,
	}
	if err := db.WithContext(ctx).Create(&job).Error; err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).Preload("User").First(&job, job.ID).Error; err != nil {
		return nil, err
	}

	columns, err := AvailableColumns(ctx, &job)
	if err != nil {
		return nil, err
	}

	if err := job.RemoveAllRedis(); err != nil {
		return nil, err
	}

	return &StoreUploadResult{Job: &job, Duplicate: false, Columns: columns}, nil
}

// AvailableColumns detects the mappable columns in the job's stored file.
func AvailableColumns(ctx context.Context, job *ImportJob) ([]string, error) {
	rows, err := loadSpreadsheetRows(ctx, job)
	if err != nil {
		return nil, err
	}
	return AvailableColumnNames(rows), nil
}

// loadSpreadsheetRows fetches the stored upload and parses it into raw rows.
func loadSpreadsheetRows(ctx context.Context, job *ImportJob) ([]utils.RawRow, error) {
	data, err := utils.ReadObject(ctx, job.StoredPath)
	if err != nil {
		return nil, NewValidationError("file", "Failed to read the uploaded file. Please ensure it is a valid CSV or XLSX.")
	}

	rows, err := utils.ReadSpreadsheet(job.OriginalFilename, data)
	if err != nil {
		return nil, NewValidationError("file", "Failed to read the uploaded file. Please ensure it is a valid CSV or XLSX.")
	}
	return rows, nil
}

// PerformDryRun recomputes the job's per-row outcomes from scratch and
// transitions it to ready. Nothing is persisted when any step fails.
func PerformDryRun(ctx context.Context, job *ImportJob, columnMap map[string]any) (*ImportJob, error) {

	db := config.GetDB()
	logger := config.GetLogger()

	lock, err := utils.ObtainImportLock(ctx, job.ID, "RosterImport", "PerformDryRun")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	rows, err := loadSpreadsheetRows(ctx, job)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, NewValidationError("file", "The uploaded file is empty.")
	}

	selectors, dataRows, err := BuildColumnSelectors(columnMap, rows)
	if err != nil {
		return nil, err
	}

	existingPlayers, err := PlayersByEmail(ctx, job.TeamId)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	seenEmails := NewSeenEmails()
	var rowRecords []ImportRow
	createdCount := 0
	updatedCount := 0
	errorCount := 0
	processedRows := 0

	for index, rawRow := range dataRows {
		rowNumber := index + 2
		payload := ExtractRowPayload(rawRow, selectors)
		if payload == nil {
			continue
		}

		processedRows++
		if processedRows > MaxImportRows {
			return nil, NewValidationError("file", fmt.Sprintf("The roster is limited to %d rows.", MaxImportRows))
		}

		rowErrors := ValidateRowPayload(payload, seenEmails)

		action := ImportRowActionCreate
		var playerId *int

		if len(rowErrors) > 0 {
			action = ImportRowActionError
			errorCount++
		} else {
			emailKey := strings.ToLower(utils.DereferencePtr(payload.Email))
			if player, ok := existingPlayers[emailKey]; ok {
				action = ImportRowActionUpdate
				playerId = &player.ID
				updatedCount++
			} else {
				createdCount++
			}
		}

		payloadJSON, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		var errorsJSON []byte
		if len(rowErrors) > 0 {
			errorsJSON, err = json.Marshal(rowErrors)
			if err != nil {
				return nil, err
			}
		}

		rowRecords = append(rowRecords, ImportRow{
			ImportJobId: job.ID,
			PlayerId:    playerId,
			RowNumber:   rowNumber,
			Payload:     payloadJSON,
			Action:      action,
			Errors:      errorsJSON,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	columnMapJSON, err := json.Marshal(columnMap)
	if err != nil {
		return nil, err
	}

	// Previous rows are discarded and the fresh batch lands atomically.
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	if err := tx.Where("import_job_id = ?", job.ID).Delete(&ImportRow{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if len(rowRecords) > 0 {
		if err := tx.CreateInBatches(&rowRecords, 500).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Model(&ImportJob{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
		"column_map":        columnMapJSON,
		"status":            ImportJobStatusReady,
		"total_rows":        processedRows,
		"created_count":     createdCount,
		"updated_count":     updatedCount,
		"error_count":       errorCount,
		"error_report_path": nil,
		"processed_at":      nil,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		config.LogError(logger, "RosterImport", "PerformDryRun", "Failed to commit dry-run results", job.ID, err)
		return nil, err
	}

	if err := job.RemoveAllRedis(); err != nil {
		return nil, err
	}

	refreshed, err := GetImportJob(ctx, job.TeamId, job.ID)
	if err != nil {
		return nil, err
	}
	return refreshed, nil
}

// ApplyImport replays the ready rows against the roster inside a single
// transaction, then finalizes counts and the error report.
func ApplyImport(ctx context.Context, job *ImportJob) (*ImportJob, error) {

	db := config.GetDB()

	if job.Status != ImportJobStatusReady {
		return nil, NewValidationError("import", "Dry-run must be completed before applying the import.")
	}

	lock, err := utils.ObtainImportLock(ctx, job.ID, "RosterImport", "ApplyImport")
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = lock.Release(ctx)
	}()

	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}

	// The caller's struct may predate a concurrent apply; trust the stored
	// status now that the lock is held.
	var current ImportJob
	if err := tx.First(&current, job.ID).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if current.Status != ImportJobStatusReady {
		tx.Rollback()
		return nil, NewValidationError("import", "Dry-run must be completed before applying the import.")
	}
	job.TotalRows = current.TotalRows
	job.CreatedCount = current.CreatedCount
	job.UpdatedCount = current.UpdatedCount
	job.ErrorCount = current.ErrorCount

	var rows []*ImportRow
	if err := tx.
		Where("import_job_id = ? AND action IN ?", job.ID, []ImportRowAction{ImportRowActionCreate, ImportRowActionUpdate}).
		Order("row_number ASC").
		Find(&rows).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	demoted := 0
	for _, row := range rows {
		payload, err := row.DecodePayload()
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if payload == nil {
			payload = &RowPayload{}
		}

		var player Player
		if row.Action == ImportRowActionUpdate {
			err := tx.
				Where("team_id = ? AND email = ?", job.TeamId, utils.DereferencePtr(payload.Email)).
				First(&player).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// The matched player disappeared since dry run.
				row.Action = ImportRowActionCreate
				player = Player{TeamId: job.TeamId}
				demoted++
			} else if err != nil {
				tx.Rollback()
				return nil, err
			}
		} else {
			player = Player{TeamId: job.TeamId}
		}

		player.FullName = utils.DereferencePtr(payload.FullName)
		player.Email = utils.DereferencePtr(payload.Email)
		player.Jersey = payload.Jersey
		player.Position = payload.Position

		if err := tx.Save(&player).Error; err != nil {
			tx.Rollback()
			return nil, err
		}

		row.PlayerId = &player.ID
		if err := tx.Save(row).Error; err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	processedAt := time.Now().UTC()
	if err := tx.Model(&ImportJob{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
		"status":       ImportJobStatusCompleted,
		"processed_at": processedAt,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}

	job.Status = ImportJobStatusCompleted
	job.ProcessedAt = &processedAt
	job.CreatedCount += demoted
	job.UpdatedCount -= demoted
	if job.ErrorCount > 0 {
		// The report lands at a fixed key right after commit.
		reportPath := errorReportPath(job)
		job.ErrorReportPath = &reportPath
	}
	if err := RecordImportEvent(ctx, tx, job, ImportEventTypeApplied, ImportAppliedEvent{
		ImportJobId:  job.ID,
		TeamId:       job.TeamId,
		Status:       string(ImportJobStatusCompleted),
		TotalRows:    job.TotalRows,
		CreatedCount: job.CreatedCount,
		UpdatedCount: job.UpdatedCount,
		ErrorCount:   job.ErrorCount,
		ProcessedAt:  &processedAt,
	}); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	// Count/report bookkeeping happens outside the transaction; re-running
	// apply-completion only re-derives it from the committed rows.
	if err := UpdateCounts(ctx, job); err != nil {
		return nil, err
	}
	if err := GenerateErrorReport(ctx, job); err != nil {
		return nil, err
	}

	if err := job.RemoveAllRedis(); err != nil {
		return nil, err
	}

	refreshed, err := GetImportJob(ctx, job.TeamId, job.ID)
	if err != nil {
		return nil, err
	}
	return refreshed, nil
}

// UpdateCounts refreshes the job's counts to match the stored rows.
func UpdateCounts(ctx context.Context, job *ImportJob) error {

	db := config.GetDB()

	var total, created, updated, errored int64
	if err := db.WithContext(ctx).Model(&ImportRow{}).
		Where("import_job_id = ?", job.ID).Count(&total).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Model(&ImportRow{}).
		Where("import_job_id = ? AND action = ?", job.ID, ImportRowActionCreate).Count(&created).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Model(&ImportRow{}).
		Where("import_job_id = ? AND action = ?", job.ID, ImportRowActionUpdate).Count(&updated).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Model(&ImportRow{}).
		Where("import_job_id = ? AND action = ?", job.ID, ImportRowActionError).Count(&errored).Error; err != nil {
		return err
	}

	job.TotalRows = int(total)
	job.CreatedCount = int(created)
	job.UpdatedCount = int(updated)
	job.ErrorCount = int(errored)

	return db.WithContext(ctx).Model(&ImportJob{}).Where("id = ?", job.ID).Updates(map[string]interface{}{
		"total_rows":    job.TotalRows,
		"created_count": job.CreatedCount,
		"updated_count": job.UpdatedCount,
		"error_count":   job.ErrorCount,
	}).Error
}

// GenerateErrorReport writes (or clears) the downloadable error CSV.
func GenerateErrorReport(ctx context.Context, job *ImportJob) error {

	db := config.GetDB()

	if job.ErrorReportPath != nil {
		exists, err := utils.ObjectExists(ctx, *job.ErrorReportPath)
		if err != nil {
			return err
		}
		if exists {
			if err := utils.DeleteObject(ctx, *job.ErrorReportPath); err != nil {
				return err
			}
		}
	}

	var errorRows []*ImportRow
	if err := db.WithContext(ctx).
		Where("import_job_id = ? AND action = ?", job.ID, ImportRowActionError).
		Order("row_number ASC").
		Find(&errorRows).Error; err != nil {
		return err
	}

	if len(errorRows) == 0 {
		job.ErrorReportPath = nil
		return db.WithContext(ctx).Model(&ImportJob{}).Where("id = ?", job.ID).
			Update("error_report_path", nil).Error
	}

	lines := []string{"row_number,full_name,email,jersey,position,errors"}
	for _, row := range errorRows {
		payload, err := row.DecodePayload()
		if err != nil {
			return err
		}
		if payload == nil {
			payload = &RowPayload{}
		}

		var bag ErrorBag
		if len(row.Errors) > 0 {
			if err := json.Unmarshal(row.Errors, &bag); err != nil {
				return err
			}
		}

		line := []string{
			fmt.Sprint(row.RowNumber),
			escapeForCsv(utils.DereferencePtr(payload.FullName)),
			escapeForCsv(utils.DereferencePtr(payload.Email)),
			escapeForCsv(utils.DereferencePtr(payload.Jersey)),
			escapeForCsv(utils.DereferencePtr(payload.Position)),
			escapeForCsv(strings.Join(flattenErrorBag(bag), "; ")),
		}
		lines = append(lines, strings.Join(line, ","))
	}

	path := errorReportPath(job)
	if err := utils.WriteObject(ctx, path, []byte(strings.Join(lines, "\n")), "text/csv"); err != nil {
		return err
	}

	job.ErrorReportPath = &path
	return db.WithContext(ctx).Model(&ImportJob{}).Where("id = ?", job.ID).
		Update("error_report_path", path).Error
}

// flattenErrorBag flattens field messages in the fixed field order so the
// report is deterministic.
func flattenErrorBag(bag ErrorBag) []string {
	var messages []string
	for _, field := range []string{FieldFullName, FieldEmail, FieldJersey, FieldPosition} {
		messages = append(messages, bag[field]...)
	}
	for field, fieldMessages := range bag {
		switch field {
		case FieldFullName, FieldEmail, FieldJersey, FieldPosition:
			continue
		}
		messages = append(messages, fieldMessages...)
	}
	return messages
}

func errorReportPath(job *ImportJob) string {
	return fmt.Sprintf("imports/%d/reports/import_%d_errors.csv", job.TeamId, job.ID)
}

func escapeForCsv(value string) string {
	needsQuotes := strings.ContainsAny(value, "\",\n")
	escaped := strings.ReplaceAll(value, `"`, `""`)
	if needsQuotes {
		return `"` + escaped + `"`
	}
	return escaped
}

func contentTypeForFilename(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".txt":
		return "text/csv"
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
