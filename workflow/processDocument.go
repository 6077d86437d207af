package workflow

import (
	"context"
	"os"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/models"
	"bitbucket.org/mmdatafocus/ocr_backend/ocr"
	"bitbucket.org/mmdatafocus/ocr_backend/reconcile"
	"bitbucket.org/mmdatafocus/ocr_backend/utils"
)

// defaultConfidence is attached to machine output until the extraction
// service reports per-field confidence.
const defaultConfidence = 0.8

// Processor drives one document through the extraction pipeline. Both
// collaborators are interfaces so the pipeline is testable without
// external services.
type Processor struct {
	extractor     ocr.Extractor
	disambiguator reconcile.Disambiguator
}

func NewProcessor(extractor ocr.Extractor, disambiguator reconcile.Disambiguator) *Processor {
	return &Processor{extractor: extractor, disambiguator: disambiguator}
}

// ProcessResult is what a completed (or failed) processing attempt reports
// back to the caller.
type ProcessResult struct {
	DocumentId        int                    `json:"document_id"`
	TemplateId        int                    `json:"template_id"`
	Status            models.DocumentStatus  `json:"status"`
	ExtractedData     map[string]any         `json:"extracted_data"`
	TableData         map[string]TableData   `json:"table_data"`
	OCRRecordsCreated int                    `json:"ocr_records_created"`
	LineItemsCreated  int                    `json:"line_items_created"`
}

// ProcessDocument runs the full pipeline for one document: status
// transitions, credit charge, flat-field and per-table extraction,
// normalization, coercion, reconciliation and persistence. A flat-field
// parse failure fails the document; a single table's failure only drops
// that table.
func (p *Processor) ProcessDocument(ctx context.Context, documentId, templateId int) (*ProcessResult, error) {
	logger := config.GetLogger()
	db := config.GetDB()

	document, err := models.GetDocument(ctx, documentId)
	if err != nil {
		return nil, err
	}
	template, err := models.GetTemplateWithFields(ctx, templateId)
	if err != nil {
		return nil, err
	}

	redisLock, err := ObtainRedisProcessingLock(ctx, documentId)
	if err != nil {
		return nil, err
	}
	if redisLock != nil {
		defer redisLock.Release(context.Background())
	}

	if err := AcquireDocumentProcessingLock(db, documentId); err != nil {
		return nil, err
	}
	defer ReleaseDocumentProcessingLock(db, documentId)

	// Both locks are held, so a document still marked PROCESSING belongs
	// to an attempt that died mid-flight. Fail it, refunding whatever that
	// attempt charged, and let it re-enter like any terminal document.
	if document.Status == models.DocumentStatusProcessing {
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := document.SetStatus(tx, ctx, models.DocumentStatusFailed); err != nil {
				return err
			}
			return RefundCreditsForFailedOCR(tx, ctx, document.UserId, document)
		})
		if err != nil {
			return nil, err
		}
	}

	// A terminal document re-enters through PENDING with its previous
	// attempt's records purged.
	if document.Status == models.DocumentStatusProcessed || document.Status == models.DocumentStatusFailed {
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := document.PurgeOCRRecords(tx, ctx); err != nil {
				return err
			}
			return document.SetStatus(tx, ctx, models.DocumentStatusPending)
		})
		if err != nil {
			return nil, err
		}
	}

	if err := CheckUserCredits(ctx, document.UserId, DefaultOCRCost); err != nil {
		return nil, err
	}

	// PROCESSING is entered before the source file is even checked so a
	// concurrent reader immediately sees the attempt.
	if err := document.SetStatus(db, ctx, models.DocumentStatusProcessing); err != nil {
		return nil, err
	}

	// The document has already entered PROCESSING, so a failed charge
	// (drained balance, DB error) must land in FAILED rather than leave
	// the document stuck mid-transition.
	if err := db.Transaction(func(tx *gorm.DB) error {
		return DeductCreditsForOCR(tx, ctx, document.UserId, document)
	}); err != nil {
		return p.failAttempt(ctx, document, "failed to charge credits", err)
	}

	if _, err := os.Stat(document.FilePath); err != nil {
		return p.failAttempt(ctx, document, "document file not found", err)
	}

	if len(template.TemplateFields) == 0 {
		return p.failAttempt(ctx, document, "no fields defined for template", nil)
	}

	var textFields, tableFields []*models.TemplateField
	for _, field := range template.TemplateFields {
		if field.IsTable() {
			tableFields = append(tableFields, field)
		} else {
			textFields = append(textFields, field)
		}
	}

	image, mimeType, err := ocr.PrepareImage(document.FilePath)
	if err != nil {
		return p.failAttempt(ctx, document, "failed to read document file", err)
	}

	extractedData := make(map[string]any)
	var scalarRecords []*models.OCRData

	if len(textFields) > 0 {
		prompt := ocr.BuildTextPrompt(template, textFields)
		fieldNames := make([]string, 0, len(textFields))
		for _, field := range textFields {
			fieldNames = append(fieldNames, field.FieldName)
		}

		response, err := p.extractor.Extract(ctx, image, mimeType, prompt)
		if err != nil {
			return p.failAttempt(ctx, document, "extraction service call failed", err)
		}

		fields, err := ocr.ParseFlatResponse(response, fieldNames)
		if err != nil {
			// A flat-field parse failure is fatal to the whole document.
			return p.failAttempt(ctx, document, "failed to parse extraction response", err)
		}

		for _, field := range textFields {
			record := p.buildScalarRecord(ctx, document.ID, field, fields[field.FieldName])
			if record == nil {
				continue
			}
			scalarRecords = append(scalarRecords, record)
			extractedData[field.FieldName] = *record.PredictedValue
		}
	}

	var tableExtractions []tableExtraction
	for _, tableField := range tableFields {
		if len(tableField.SubTemplateFields) == 0 {
			continue
		}

		prompt := ocr.BuildTablePrompt(template, tableField, tableField.SubTemplateFields)
		columnNames := make([]string, 0, len(tableField.SubTemplateFields))
		for _, subField := range tableField.SubTemplateFields {
			columnNames = append(columnNames, subField.FieldName)
		}

		response, err := p.extractor.Extract(ctx, image, mimeType, prompt)
		if err != nil {
			config.LogError(logger, "processDocument.go", "ProcessDocument", "Extract table", tableField.FieldName, err)
			continue
		}

		rows, err := ocr.ParseTableResponse(response, columnNames)
		if err != nil {
			// One table's parse failure never takes down sibling tables
			// or the scalar fields.
			config.LogError(logger, "processDocument.go", "ProcessDocument", "ParseTableResponse", tableField.FieldName, err)
			continue
		}

		tableExtractions = append(tableExtractions, buildTableExtraction(ctx, tableField, rows, p.disambiguator))
	}

	lineItemsCreated := 0
	err = db.Transaction(func(tx *gorm.DB) error {
		for _, record := range scalarRecords {
			if err := record.Store(tx, ctx); err != nil {
				return err
			}
		}
		for _, extraction := range tableExtractions {
			created, err := persistTableExtraction(tx, ctx, document.ID, extraction)
			if err != nil {
				return err
			}
			lineItemsCreated += created
		}
		return document.SetStatus(tx, ctx, models.DocumentStatusProcessed)
	})
	if err != nil {
		return p.failAttempt(ctx, document, "failed to persist extraction results", err)
	}

	tableData := make(map[string]TableData, len(tableExtractions))
	for _, extraction := range tableExtractions {
		lineItems, err := models.GetOCRLineItems(ctx, document.ID, extraction.field.ID)
		if err != nil {
			return nil, err
		}
		tableData[extraction.field.FieldName] = ReconstructTable(extraction.field, lineItems)
	}

	return &ProcessResult{
		DocumentId:        document.ID,
		TemplateId:        template.ID,
		Status:            document.Status,
		ExtractedData:     extractedData,
		TableData:         tableData,
		OCRRecordsCreated: len(scalarRecords),
		LineItemsCreated:  lineItemsCreated,
	}, nil
}

// buildScalarRecord coerces one flat field value and resolves SELECT
// fields against their vocabulary. Returns nil when the field produced
// nothing worth storing.
func (p *Processor) buildScalarRecord(ctx context.Context, documentId int, field *models.TemplateField, rawValue any) *models.OCRData {
	if rawValue == nil {
		return nil
	}

	converted, note := models.SafeConvertTemplateFieldValue(rawValue, field.FieldType, field.FieldName)
	if converted == nil {
		return nil
	}
	value := models.FormatValue(converted)

	if field.FieldType == models.FieldTypeSelect {
		options := reconcile.OptionsFromField(field.FieldOptions)
		resolved := reconcile.ResolveSelectValue(ctx, value, field.FieldName, options, p.disambiguator)
		if resolved.Value == nil {
			return nil
		}
		value = *resolved.Value
	}

	return &models.OCRData{
		DocumentId:     documentId,
		FieldId:        field.ID,
		PredictedValue: &value,
		Confidence:     defaultConfidence,
		ConversionNote: note,
	}
}

// failAttempt drives the document to FAILED and refunds the attempt's
// charge. The original error is returned so the API layer can surface it.
func (p *Processor) failAttempt(ctx context.Context, document *models.Document, message string, cause error) (*ProcessResult, error) {
	logger := config.GetLogger()
	config.LogError(logger, "processDocument.go", "ProcessDocument", message, document.ID, cause)

	db := config.GetDB()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := document.SetStatus(tx, ctx, models.DocumentStatusFailed); err != nil {
			return err
		}
		return RefundCreditsForFailedOCR(tx, ctx, document.UserId, document)
	})
	if err != nil {
		config.LogError(logger, "processDocument.go", "failAttempt", "mark failed", document.ID, err)
	}

	if cause != nil {
		return nil, cause
	}
	return nil, utils.NewValidationError("%s", message)
}
