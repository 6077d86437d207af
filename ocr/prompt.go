package ocr

import (
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/ocr_backend/models"
)

// BuildTextPrompt merges template-level and field-level AI instructions into
// a single extraction prompt for all non-table fields. Identical inputs
// always produce identical text.
func BuildTextPrompt(template *models.Template, textFields []*models.TemplateField) string {
	var parts []string

	if template.AiInstructions != "" {
		parts = append(parts, fmt.Sprintf("General Instructions: %s", template.AiInstructions))
	}

	var fieldInstructions []string
	for _, field := range textFields {
		if field.AiInstructions != "" {
			fieldInstructions = append(fieldInstructions, fmt.Sprintf("- %s: %s", field.FieldName, field.AiInstructions))
		}
	}
	if len(fieldInstructions) > 0 {
		parts = append(parts, "Field-specific Instructions:\n"+strings.Join(fieldInstructions, "\n"))
	}

	fieldNames := make([]string, 0, len(textFields))
	for _, field := range textFields {
		fieldNames = append(fieldNames, field.FieldName)
	}
	parts = append(parts, fmt.Sprintf("Extract the following fields: %s", strings.Join(fieldNames, ", ")))
	parts = append(parts, "Return as JSON object mapping field names to values.")

	return strings.Join(parts, "\n\n")
}

// BuildTablePrompt merges template, table and column level AI instructions
// into an extraction prompt for one table field.
func BuildTablePrompt(template *models.Template, tableField *models.TemplateField, subFields []*models.SubTemplateField) string {
	var parts []string

	if template.AiInstructions != "" {
		parts = append(parts, fmt.Sprintf("General Instructions: %s", template.AiInstructions))
	}

	if tableField.AiInstructions != "" {
		parts = append(parts, fmt.Sprintf("Table Instructions: %s", tableField.AiInstructions))
	}

	var columnInstructions []string
	for _, subField := range subFields {
		if subField.AiInstructions != "" {
			columnInstructions = append(columnInstructions, fmt.Sprintf("- %s: %s", subField.FieldName, subField.AiInstructions))
		}
	}
	if len(columnInstructions) > 0 {
		parts = append(parts, "Column-specific Instructions:\n"+strings.Join(columnInstructions, "\n"))
	}

	columnNames := make([]string, 0, len(subFields))
	for _, subField := range subFields {
		columnNames = append(columnNames, subField.FieldName)
	}
	parts = append(parts, fmt.Sprintf("Extract table data for %s with columns: %s", tableField.FieldName, strings.Join(columnNames, ", ")))
	parts = append(parts, "Return as JSON with 'rows' array containing objects for each row.")

	return strings.Join(parts, "\n\n")
}
