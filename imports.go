package main

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rosterpilot/roster_backend/config"
	"github.com/rosterpilot/roster_backend/models"
	"github.com/rosterpilot/roster_backend/utils"
)

const recentImportLimit = 10

type dryRunRequest struct {
	ColumnMap map[string]any `json:"column_map" binding:"required"`
}

// fetchImportJob resolves the :id path param within the caller's team.
func fetchImportJob(c *gin.Context) (*models.ImportJob, bool) {
	teamId, _ := utils.GetTeamIdFromContext(c.Request.Context())
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return nil, false
	}
	job, err := models.GetImportJob(c.Request.Context(), teamId, id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return nil, false
	}
	return job, true
}

func listImportsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		teamId, _ := utils.GetTeamIdFromContext(c.Request.Context())

		jobs, err := models.GetRecentImportJobs(c.Request.Context(), teamId, recentImportLimit)
		if err != nil {
			respondError(c, err)
			return
		}

		resources := make([]*models.ImportJobResource, 0, len(jobs))
		for _, job := range jobs {
			resources = append(resources, job.ToResource(nil))
		}
		c.JSON(http.StatusOK, gin.H{"data": resources})
	}
}

func dryRunImportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := fetchImportJob(c)
		if !ok {
			return
		}

		var req dryRunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindingError(c, err, "The column map field is required.")
			return
		}

		refreshed, err := models.PerformDryRun(c.Request.Context(), job, req.ColumnMap)
		if err != nil {
			respondError(c, err)
			return
		}

		rows, err := models.GetImportRows(c.Request.Context(), refreshed.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": refreshed.ToResource(rows)})
	}
}

func applyImportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := fetchImportJob(c)
		if !ok {
			return
		}

		refreshed, err := models.ApplyImport(c.Request.Context(), job)
		if err != nil {
			respondError(c, err)
			return
		}

		rows, err := models.GetImportRows(c.Request.Context(), refreshed.ID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": refreshed.ToResource(rows)})
	}
}

func downloadErrorReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		job, ok := fetchImportJob(c)
		if !ok {
			return
		}
		if job.ErrorReportPath == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		exists, err := utils.ObjectExists(c.Request.Context(), *job.ErrorReportPath)
		if err != nil || !exists {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		// GCS serves reports via a short-lived signed URL; local storage
		// streams the file directly.
		if utils.GetStorageProvider() == utils.StorageProviderGCS {
			signed, err := utils.SignDownload(c.Request.Context(), *job.ErrorReportPath, 15*time.Minute)
			if err == nil {
				c.Redirect(http.StatusFound, signed.DownloadURL)
				return
			}
			config.LogError(logger, "imports.go", "downloadErrorReportHandler", "SignDownload", job.ID, err)
		}

		data, err := utils.ReadObject(c.Request.Context(), *job.ErrorReportPath)
		if err != nil {
			respondError(c, err)
			return
		}
		filename := fmt.Sprintf("import_%d_errors.csv", job.ID)
		c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
		c.Data(http.StatusOK, "text/csv", data)
	}
}
