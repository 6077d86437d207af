package main

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/ocr_backend/models"
	"github.com/gin-gonic/gin"
)

func creditSummaryHandler(c *gin.Context) {
	user, err := models.GetUser(c.Request.Context(), currentUserId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":           user.ID,
		"plan_type":         user.PlanType,
		"credits_remaining": user.CreditsRemaining,
	})
}

func creditTransactionsHandler(c *gin.Context) {
	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	transactions, err := models.GetCreditTransactions(c.Request.Context(), currentUserId(c), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}
