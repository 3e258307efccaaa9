package main

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rosterpilot/roster_backend/models"
	"github.com/rosterpilot/roster_backend/utils"
)

func listPlayersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		teamId, _ := utils.GetTeamIdFromContext(c.Request.Context())

		players, err := models.GetAllPlayers(c.Request.Context(), teamId)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": players})
	}
}

func getPlayerHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		teamId, _ := utils.GetTeamIdFromContext(c.Request.Context())
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil || id <= 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		player, err := models.GetPlayer(c.Request.Context(), teamId, id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": player})
	}
}
