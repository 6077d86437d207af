package workflow

import (
	"context"
	"sort"

	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/ocr_backend/models"
	"bitbucket.org/mmdatafocus/ocr_backend/reconcile"
)

// TableColumn describes one reconstructed table column.
type TableColumn struct {
	Name           string          `json:"name"`
	DataType       models.DataType `json:"data_type"`
	SubTempFieldId int             `json:"sub_temp_field_id"`
}

// TableData is the read-side shape of one extracted table.
type TableData struct {
	FieldId  int                  `json:"field_id"`
	Columns  []TableColumn        `json:"columns"`
	Rows     []map[string]*string `json:"rows"`
	RowCount int                  `json:"row_count"`
}

// tableExtraction carries one table's converted cells between extraction
// and persistence.
type tableExtraction struct {
	field *models.TemplateField
	rows  []rowExtraction
}

type rowExtraction struct {
	cells []cellExtraction
}

type cellExtraction struct {
	subField *models.SubTemplateField
	value    string
	note     *string
}

// buildTableExtraction converts one table's normalized rows into cell
// records, coercing each cell to its declared column type and resolving
// SELECT columns against their vocabulary.
func buildTableExtraction(ctx context.Context, field *models.TemplateField, rows []map[string]any, disambiguator reconcile.Disambiguator) tableExtraction {
	extraction := tableExtraction{field: field}

	for _, row := range rows {
		var record rowExtraction
		for _, subField := range field.SubTemplateFields {
			rawValue, present := row[subField.FieldName]
			if !present || rawValue == nil {
				continue
			}

			converted, note := models.SafeConvertSubTemplateFieldValue(rawValue, subField.DataType, subField.FieldName)
			if converted == nil {
				continue
			}
			value := models.FormatValue(converted)

			if subField.DataType == models.DataTypeSelect {
				options := reconcile.OptionsFromSubField(subField.SubFieldOptions)
				resolved := reconcile.ResolveSelectValue(ctx, value, subField.FieldName, options, disambiguator)
				if resolved.Value == nil {
					continue
				}
				value = *resolved.Value
			}

			record.cells = append(record.cells, cellExtraction{
				subField: subField,
				value:    value,
				note:     note,
			})
		}
		extraction.rows = append(extraction.rows, record)
	}
	return extraction
}

// persistTableExtraction writes one OCRLineItem per row tagged with its
// zero-based position and one OCRLineItemValue per non-null cell.
func persistTableExtraction(tx *gorm.DB, ctx context.Context, documentId int, extraction tableExtraction) (int, error) {
	created := 0
	for rowIndex, row := range extraction.rows {
		lineItem := &models.OCRLineItem{
			DocumentId: documentId,
			FieldId:    extraction.field.ID,
			RowIndex:   rowIndex,
		}
		if err := lineItem.Store(tx, ctx); err != nil {
			return created, err
		}
		created++

		for _, cell := range row.cells {
			value := cell.value
			lineItemValue := &models.OCRLineItemValue{
				OCRItemsId:     lineItem.ID,
				SubTempFieldId: cell.subField.ID,
				PredictedValue: &value,
				Confidence:     defaultConfidence,
				ConversionNote: cell.note,
			}
			if err := lineItemValue.Store(tx, ctx); err != nil {
				return created, err
			}
		}
	}
	return created, nil
}

// ReconstructTable rebuilds a table from its stored rows and cells. Pure
// with respect to its inputs: rows come back ordered by row_index, each
// cell resolves actual over predicted, and columns the extraction never
// filled appear as nil. For an unedited table the result is isomorphic to
// what extraction produced.
func ReconstructTable(field *models.TemplateField, lineItems []*models.OCRLineItem) TableData {
	columns := make([]TableColumn, 0, len(field.SubTemplateFields))
	columnNames := make(map[int]string, len(field.SubTemplateFields))
	for _, subField := range field.SubTemplateFields {
		columns = append(columns, TableColumn{
			Name:           subField.FieldName,
			DataType:       subField.DataType,
			SubTempFieldId: subField.ID,
		})
		columnNames[subField.ID] = subField.FieldName
	}

	ordered := make([]*models.OCRLineItem, len(lineItems))
	copy(ordered, lineItems)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].RowIndex < ordered[j].RowIndex
	})

	rows := make([]map[string]*string, 0, len(ordered))
	for _, lineItem := range ordered {
		row := make(map[string]*string, len(columns))
		for _, column := range columns {
			row[column.Name] = nil
		}
		for _, value := range lineItem.Values {
			name, known := columnNames[value.SubTempFieldId]
			if !known {
				continue
			}
			row[name] = value.ResolvedValue()
		}
		rows = append(rows, row)
	}

	return TableData{
		FieldId:  field.ID,
		Columns:  columns,
		Rows:     rows,
		RowCount: len(rows),
	}
}

// GetDocumentTables reconstructs every extracted table for a document.
func GetDocumentTables(ctx context.Context, document *models.Document, template *models.Template) (map[string]TableData, error) {
	tables := make(map[string]TableData)
	for _, field := range template.TemplateFields {
		if !field.IsTable() {
			continue
		}
		lineItems, err := models.GetOCRLineItems(ctx, document.ID, field.ID)
		if err != nil {
			return nil, err
		}
		if len(lineItems) == 0 {
			continue
		}
		tables[field.FieldName] = ReconstructTable(field, lineItems)
	}
	return tables, nil
}
