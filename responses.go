package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rosterpilot/roster_backend/models"
	"github.com/rosterpilot/roster_backend/utils"
)

// respondError maps service errors onto the HTTP surface. Validation
// failures keep their field-keyed message bags.
func respondError(c *gin.Context, err error) {
	if vErr, ok := models.AsValidationError(err); ok {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": vErr.Error(),
			"errors":  vErr.Errors,
		})
		return
	}
	if errors.Is(err, utils.ErrorRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// respondBindingError renders request binding failures, keeping per-field
// tags when the validator produced them.
func respondBindingError(c *gin.Context, err error, fallback string) {
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"message": fallback,
			"errors":  utils.ProcessValidationErrors(err),
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": fallback})
}
