package main

import (
	"fmt"
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/ocr_backend/models"
	"bitbucket.org/mmdatafocus/ocr_backend/workflow"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// exportJSONHandler returns the resolved extraction output as a
// downloadable JSON document.
func exportJSONHandler(c *gin.Context) {
	document, ok := ownedDocument(c)
	if !ok {
		return
	}
	payload, err := buildExportPayload(c, document)
	if err != nil {
		respondError(c, err)
		return
	}

	filename := exportFilename(document, "json")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.JSON(http.StatusOK, payload)
}

// exportExcelHandler writes one workbook: a Fields sheet for scalar values
// and one sheet per extracted table.
func exportExcelHandler(c *gin.Context) {
	document, ok := ownedDocument(c)
	if !ok {
		return
	}
	payload, err := buildExportPayload(c, document)
	if err != nil {
		respondError(c, err)
		return
	}

	f := excelize.NewFile()
	sheetName := "Fields"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		respondError(c, err)
		return
	}

	f.SetCellValue(sheetName, "A1", "Field")
	f.SetCellValue(sheetName, "B1", "Value")
	for i, name := range payload.FieldOrder {
		row := fmt.Sprint(i + 2)
		f.SetCellValue(sheetName, "A"+row, name)
		if v := payload.Fields[name]; v != nil {
			f.SetCellValue(sheetName, "B"+row, *v)
		}
	}

	for tableName, table := range payload.Tables {
		sheet := sanitizeSheetName(tableName)
		if _, err := f.NewSheet(sheet); err != nil {
			respondError(c, err)
			return
		}
		for colIdx, column := range table.Columns {
			cell, _ := excelize.CoordinatesToCellName(colIdx+1, 1)
			f.SetCellValue(sheet, cell, column.Name)
		}
		for rowIdx, row := range table.Rows {
			for colIdx, column := range table.Columns {
				if v := row[column.Name]; v != nil {
					cell, _ := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
					f.SetCellValue(sheet, cell, *v)
				}
			}
		}
	}

	filename := exportFilename(document, "xlsx")
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := f.Write(c.Writer); err != nil {
		c.Error(err)
	}
}

type exportPayload struct {
	DocumentId int                          `json:"document_id"`
	Filename   string                       `json:"filename"`
	Status     models.DocumentStatus        `json:"status"`
	Fields     map[string]*string           `json:"fields"`
	FieldOrder []string                     `json:"-"`
	Tables     map[string]workflow.TableData `json:"tables"`
}

func buildExportPayload(c *gin.Context, document *models.Document) (*exportPayload, error) {
	ctx := c.Request.Context()

	template, err := models.GetTemplateWithFields(ctx, document.TemplateId)
	if err != nil {
		return nil, err
	}
	records, err := models.GetOCRData(ctx, document.ID)
	if err != nil {
		return nil, err
	}

	byFieldId := make(map[int]*models.OCRData, len(records))
	for _, record := range records {
		byFieldId[record.FieldId] = record
	}

	payload := &exportPayload{
		DocumentId: document.ID,
		Filename:   document.OriginalFilename,
		Status:     document.Status,
		Fields:     make(map[string]*string),
	}
	// Template field order drives export order.
	for _, field := range template.TemplateFields {
		if field.IsTable() {
			continue
		}
		payload.FieldOrder = append(payload.FieldOrder, field.FieldName)
		if record, found := byFieldId[field.ID]; found {
			payload.Fields[field.FieldName] = record.ResolvedValue()
		} else {
			payload.Fields[field.FieldName] = nil
		}
	}

	payload.Tables, err = workflow.GetDocumentTables(ctx, document, template)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

func exportFilename(document *models.Document, ext string) string {
	base := strings.TrimSuffix(document.OriginalFilename, "."+strings.ToLower(ext))
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}
	if base == "" {
		base = fmt.Sprintf("document_%d", document.ID)
	}
	return base + "." + ext
}

// sanitizeSheetName keeps Excel's 31-char limit and strips characters
// Excel rejects in sheet names.
func sanitizeSheetName(name string) string {
	replacer := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")
	clean := replacer.Replace(name)
	if clean == "" {
		clean = "Table"
	}
	if len(clean) > 31 {
		clean = clean[:31]
	}
	return clean
}
