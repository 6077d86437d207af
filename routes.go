package main

import (
	"errors"
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/ocr_backend/middlewares"
	"bitbucket.org/mmdatafocus/ocr_backend/utils"
	"github.com/gin-gonic/gin"
)

func registerRoutes(r *gin.Engine) {
	api := r.Group("/api")

	users := api.Group("/users")
	users.POST("/register", registerHandler)
	users.POST("/login", loginHandler)
	users.GET("/me", middlewares.RequireAuth(), meHandler)
	users.POST("/:id/credits", middlewares.RequireAdmin(), addCreditsHandler)

	templates := api.Group("/templates", middlewares.RequireAuth())
	templates.GET("", listTemplatesHandler)
	templates.POST("", createTemplateHandler)
	templates.GET("/:id", getTemplateHandler)
	templates.PUT("/:id", updateTemplateHandler)
	templates.DELETE("/:id", deleteTemplateHandler)

	documents := api.Group("/documents", middlewares.RequireAuth())
	documents.POST("/upload", uploadDocumentHandler)
	documents.GET("", listDocumentsHandler)
	documents.GET("/:id", getDocumentHandler)
	documents.DELETE("/:id", deleteDocumentHandler)
	documents.GET("/:id/download", downloadDocumentHandler)
	documents.GET("/:id/status", documentStatusHandler)
	documents.GET("/:id/results", documentResultsHandler)
	documents.GET("/:id/credits", documentCreditsHandler)
	documents.POST("/:id/process", processDocumentHandler)

	ocrGroup := api.Group("/ocr", middlewares.RequireAuth())
	ocrGroup.POST("/process_document", processByIdsHandler)
	ocrGroup.PUT("/data/:id", updateOCRDataHandler)
	ocrGroup.PUT("/line-items/values/:id", updateLineItemValueHandler)
	ocrGroup.POST("/field/:field_id/load_tally_options", loadTallyOptionsHandler)
	ocrGroup.POST("/sub-field/:sub_field_id/load_tally_options", loadSubFieldTallyOptionsHandler)
	ocrGroup.GET("/field/:field_id/options", getFieldOptionsHandler)
	ocrGroup.POST("/field/:field_id/refresh_options", refreshTallyOptionsHandler)

	credits := api.Group("/credits", middlewares.RequireAuth())
	credits.GET("/summary", creditSummaryHandler)
	credits.GET("/transactions", creditTransactionsHandler)

	exports := api.Group("/exports", middlewares.RequireAuth())
	exports.GET("/:id/excel", exportExcelHandler)
	exports.GET("/:id/json", exportJSONHandler)
}

// respondBindError reports request binding failures, with per-field
// detail when the validator produced any.
func respondBindError(c *gin.Context, err error) {
	if fields := utils.ProcessValidationErrors(err); fields != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// respondError maps domain errors to HTTP statuses.
func respondError(c *gin.Context, err error) {
	var notFound *utils.NotFoundError
	var validation *utils.ValidationError
	var external *utils.ExternalServiceError
	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFound.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": validation.Error()})
	case errors.As(err, &external):
		c.JSON(http.StatusBadGateway, gin.H{"error": external.Error()})
	default:
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func currentUserId(c *gin.Context) int {
	claim := middlewares.CtxValue(c.Request.Context())
	if claim == nil {
		return 0
	}
	return claim.ID
}

func isAdmin(c *gin.Context) bool {
	claim := middlewares.CtxValue(c.Request.Context())
	return claim != nil && claim.Role == "admin"
}

func pathId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}
