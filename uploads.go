package main

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rosterpilot/roster_backend/config"
	"github.com/rosterpilot/roster_backend/models"
	"github.com/rosterpilot/roster_backend/utils"
)

const maxRosterUploadBytes int64 = 10 * 1024 * 1024

var rosterUploadExtensions = map[string]bool{
	".csv":  true,
	".txt":  true,
	".xlsx": true,
	".json": true,
}

// uploadRosterHandler accepts the roster file, dedupes by content hash and
// creates the pending import job.
func uploadRosterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		teamId, _ := utils.GetTeamIdFromContext(c.Request.Context())
		userId, _ := utils.GetUserIdFromContext(c.Request.Context())

		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"message": "The file field is required.",
				"errors":  gin.H{"file": []string{"The file field is required."}},
			})
			return
		}
		if fileHeader.Size > maxRosterUploadBytes {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"message": "The file is too large.",
				"errors":  gin.H{"file": []string{"The file is too large."}},
			})
			return
		}
		ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
		if !rosterUploadExtensions[ext] {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"message": "The file must be a CSV or XLSX.",
				"errors":  gin.H{"file": []string{"The file must be a CSV or XLSX."}},
			})
			return
		}

		src, err := fileHeader.Open()
		if err != nil {
			config.LogError(logger, "uploads.go", "uploadRosterHandler", "Open", fileHeader.Filename, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
			return
		}
		defer src.Close()
		data, err := io.ReadAll(src)
		if err != nil {
			config.LogError(logger, "uploads.go", "uploadRosterHandler", "ReadAll", fileHeader.Filename, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
			return
		}

		result, err := models.StoreUpload(c.Request.Context(), teamId, userId, filepath.Base(fileHeader.Filename), data)
		if err != nil {
			respondError(c, err)
			return
		}

		status := http.StatusCreated
		if result.Duplicate {
			status = http.StatusOK
		}
		c.JSON(status, gin.H{
			"data": result.Job.ToResource(nil),
			"meta": gin.H{
				"duplicate": result.Duplicate,
				"columns":   result.Columns,
			},
		})
	}
}
