package main

import (
	"errors"
	"io"
	"net/http"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/models"
	"bitbucket.org/mmdatafocus/ocr_backend/tally"
	"github.com/gin-gonic/gin"
)

type actualValueInput struct {
	ActualValue string `json:"actual_value" binding:"required"`
}

// updateOCRDataHandler records a human correction for one scalar field.
// The predicted value is kept; reads resolve actual over predicted.
func updateOCRDataHandler(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input actualValueInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	record, err := models.GetOCRDataRecord(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ownsDocument(c, record.DocumentId) {
		return
	}
	if err := record.SetActualValue(config.GetDB(), ctx, input.ActualValue); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func updateLineItemValueHandler(c *gin.Context) {
	id, ok := pathId(c, "id")
	if !ok {
		return
	}
	var input actualValueInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	ctx := c.Request.Context()
	value, err := models.GetOCRLineItemValue(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	lineItem, err := models.GetOCRLineItem(ctx, value.OCRItemsId)
	if err != nil {
		respondError(c, err)
		return
	}
	if !ownsDocument(c, lineItem.DocumentId) {
		return
	}
	if err := value.SetActualValue(config.GetDB(), ctx, input.ActualValue); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, value)
}

func loadTallyOptionsHandler(c *gin.Context) {
	fieldId, ok := pathId(c, "field_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, ok := ownedTemplateField(c, ctx, fieldId); !ok {
		return
	}

	var request tally.LoadRequest
	if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	count, err := tally.LoadFieldOptions(ctx, tally.NewConnector(), fieldId, request)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"field_id": fieldId, "options_loaded": count})
}

func loadSubFieldTallyOptionsHandler(c *gin.Context) {
	subFieldId, ok := pathId(c, "sub_field_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	subField, err := models.GetSubTemplateField(ctx, subFieldId)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, ok := ownedTemplateField(c, ctx, subField.FieldId); !ok {
		return
	}

	var request tally.LoadRequest
	if err := c.ShouldBindJSON(&request); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	count, err := tally.LoadSubFieldOptions(ctx, tally.NewConnector(), subFieldId, request)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sub_field_id": subFieldId, "options_loaded": count})
}

func getFieldOptionsHandler(c *gin.Context) {
	fieldId, ok := pathId(c, "field_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, ok := ownedTemplateField(c, ctx, fieldId); !ok {
		return
	}
	options, err := models.GetFieldOptions(ctx, fieldId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"field_id": fieldId, "options": options})
}

func refreshTallyOptionsHandler(c *gin.Context) {
	fieldId, ok := pathId(c, "field_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, ok := ownedTemplateField(c, ctx, fieldId); !ok {
		return
	}
	count, err := tally.RefreshFieldOptions(ctx, tally.NewConnector(), fieldId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"field_id": fieldId, "options_loaded": count})
}

// ownsDocument enforces document ownership for correction endpoints.
func ownsDocument(c *gin.Context, documentId int) bool {
	document, err := models.GetDocument(c.Request.Context(), documentId)
	if err != nil {
		respondError(c, err)
		return false
	}
	if document.UserId != currentUserId(c) && !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your document"})
		return false
	}
	return true
}
