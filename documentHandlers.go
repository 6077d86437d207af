package main

import (
	"net/http"
	"strconv"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/models"
	"bitbucket.org/mmdatafocus/ocr_backend/ocr"
	"bitbucket.org/mmdatafocus/ocr_backend/reconcile"
	"bitbucket.org/mmdatafocus/ocr_backend/workflow"
	"github.com/gin-gonic/gin"
)

func uploadDocumentHandler(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}

	templateId := 0
	if v := c.PostForm("template_id"); v != "" {
		templateId, err = strconv.Atoi(v)
		if err != nil || templateId <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template_id"})
			return
		}
	}

	ctx := c.Request.Context()
	if templateId > 0 {
		template, err := models.GetTemplate(ctx, templateId)
		if err != nil {
			respondError(c, err)
			return
		}
		if template.UserId != currentUserId(c) && !isAdmin(c) {
			c.JSON(http.StatusForbidden, gin.H{"error": "not your template"})
			return
		}
	}

	storedPath, err := saveUploadedFile(c, file)
	if err != nil {
		respondError(c, err)
		return
	}

	document := &models.Document{
		UserId:           currentUserId(c),
		TemplateId:       templateId,
		FilePath:         storedPath,
		OriginalFilename: file.Filename,
		Status:           models.DocumentStatusPending,
	}
	if err := document.Store(config.GetDB(), ctx); err != nil {
		// Orphaned file is worse than a lost upload.
		_ = removeStoredFile(storedPath)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, document)
}

func listDocumentsHandler(c *gin.Context) {
	documents, err := models.GetDocuments(c.Request.Context(), currentUserId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": documents})
}

func getDocumentHandler(c *gin.Context) {
	document, ok := ownedDocument(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, document)
}

func deleteDocumentHandler(c *gin.Context) {
	document, ok := ownedDocument(c)
	if !ok {
		return
	}
	if err := document.Delete(config.GetDB(), c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	if err := removeStoredFile(document.FilePath); err != nil {
		config.LogError(config.GetLogger(), "documents", "deleteDocumentHandler",
			"remove stored file", document.FilePath, err)
	}
	c.JSON(http.StatusOK, gin.H{"deleted": document.ID})
}

func downloadDocumentHandler(c *gin.Context) {
	document, ok := ownedDocument(c)
	if !ok {
		return
	}
	c.FileAttachment(document.FilePath, document.OriginalFilename)
}

func documentStatusHandler(c *gin.Context) {
	document, ok := ownedDocument(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"document_id":  document.ID,
		"status":       document.Status,
		"processed_at": document.ProcessedAt,
	})
}

// documentResultsHandler returns the resolved extraction output: scalar
// fields keyed by field name and tables reconstructed row by row.
func documentResultsHandler(c *gin.Context) {
	document, ok := ownedDocument(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	template, err := models.GetTemplateWithFields(ctx, document.TemplateId)
	if err != nil {
		respondError(c, err)
		return
	}

	records, err := models.GetOCRData(ctx, document.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	fieldNames := make(map[int]string, len(template.TemplateFields))
	for _, field := range template.TemplateFields {
		fieldNames[field.ID] = field.FieldName
	}
	fields := make(map[string]*string)
	for _, record := range records {
		name, known := fieldNames[record.FieldId]
		if !known {
			continue
		}
		fields[name] = record.ResolvedValue()
	}

	tables, err := workflow.GetDocumentTables(ctx, document, template)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"document_id": document.ID,
		"template_id": template.ID,
		"status":      document.Status,
		"fields":      fields,
		"tables":      tables,
	})
}

func documentCreditsHandler(c *gin.Context) {
	document, ok := ownedDocument(c)
	if !ok {
		return
	}
	transactions, err := models.GetDocumentCreditTransactions(c.Request.Context(), document.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": document.ID, "transactions": transactions})
}

func processDocumentHandler(c *gin.Context) {
	document, ok := ownedDocument(c)
	if !ok {
		return
	}
	templateId := document.TemplateId
	if v := c.Query("template_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template_id"})
			return
		}
		templateId = id
	}
	runProcessing(c, document.ID, templateId)
}

type processInput struct {
	DocumentId int `json:"doc_id" binding:"required"`
	TemplateId int `json:"template_id" binding:"required"`
}

func processByIdsHandler(c *gin.Context) {
	var input processInput
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	document, err := models.GetDocument(c.Request.Context(), input.DocumentId)
	if err != nil {
		respondError(c, err)
		return
	}
	if document.UserId != currentUserId(c) && !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your document"})
		return
	}
	runProcessing(c, input.DocumentId, input.TemplateId)
}

func runProcessing(c *gin.Context, documentId, templateId int) {
	ctx := c.Request.Context()

	extractor, err := ocr.NewGeminiExtractor(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	// Disambiguation degrades to top-fuzzy matching when Claude is not
	// configured; extraction itself is mandatory.
	var disambiguator reconcile.Disambiguator
	if claude, err := reconcile.NewClaudeDisambiguator(); err == nil {
		disambiguator = claude
	} else {
		config.GetLogger().Warn("disambiguation model unavailable: " + err.Error())
	}
	processor := workflow.NewProcessor(extractor, disambiguator)

	result, err := processor.ProcessDocument(ctx, documentId, templateId)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func ownedDocument(c *gin.Context) (*models.Document, bool) {
	id, ok := pathId(c, "id")
	if !ok {
		return nil, false
	}
	document, err := models.GetDocument(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if document.UserId != currentUserId(c) && !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your document"})
		return nil, false
	}
	return document, true
}
