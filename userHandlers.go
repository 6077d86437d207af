package main

import (
	"net/http"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/models"
	"bitbucket.org/mmdatafocus/ocr_backend/utils"
	"bitbucket.org/mmdatafocus/ocr_backend/workflow"
	"github.com/gin-gonic/gin"
)

func registerHandler(c *gin.Context) {
	var input models.NewUser
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	if _, err := models.GetUserByEmail(ctx, input.Email); err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
		return
	}

	user, err := input.MapInput()
	if err != nil {
		respondError(c, err)
		return
	}
	if err := user.Store(config.GetDB(), ctx); err != nil {
		// Unique index on email catches concurrent registrations.
		if utils.IsDuplicateKeyErr(err) {
			c.JSON(http.StatusConflict, gin.H{"error": "email already registered"})
			return
		}
		respondError(c, err)
		return
	}

	token, err := utils.JwtGenerate(user.ID, user.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token, "user": user})
}

type loginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func loginHandler(c *gin.Context) {
	var input loginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	user, err := models.GetUserByEmail(c.Request.Context(), input.Email)
	if err != nil || utils.ComparePassword(user.PasswordHash, input.Password) != nil {
		// Same response for unknown email and wrong password.
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := utils.JwtGenerate(user.ID, user.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

func meHandler(c *gin.Context) {
	user, err := models.GetUser(c.Request.Context(), currentUserId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

type addCreditsInput struct {
	Amount      int    `json:"amount" binding:"required,gt=0"`
	Description string `json:"description"`
}

func addCreditsHandler(c *gin.Context) {
	userId, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input addCreditsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	description := input.Description
	if description == "" {
		description = "Manual credit addition"
	}

	ctx := c.Request.Context()
	if err := workflow.AddCreditsToUser(ctx, userId, input.Amount, description); err != nil {
		respondError(c, err)
		return
	}
	user, err := models.GetUser(ctx, userId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": user.ID, "credits_remaining": user.CreditsRemaining})
}
