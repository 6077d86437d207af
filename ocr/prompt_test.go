package ocr

import (
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/ocr_backend/models"
)

func TestBuildTextPrompt_AllInstructionLevels(t *testing.T) {
	template := &models.Template{
		AiInstructions: "This is a purchase invoice from a Myanmar vendor.",
	}
	fields := []*models.TemplateField{
		{FieldName: "vendor_name", FieldType: models.FieldTypeText, AiInstructions: "Use the name printed in the letterhead."},
		{FieldName: "invoice_date", FieldType: models.FieldTypeDate},
		{FieldName: "total_amount", FieldType: models.FieldTypeCurrency, AiInstructions: "The grand total, not the subtotal."},
	}

	prompt := BuildTextPrompt(template, fields)

	wantOrder := []string{
		"General Instructions: This is a purchase invoice from a Myanmar vendor.",
		"Field-specific Instructions:",
		"- vendor_name: Use the name printed in the letterhead.",
		"- total_amount: The grand total, not the subtotal.",
		"Extract the following fields: vendor_name, invoice_date, total_amount",
		"Return as JSON object mapping field names to values.",
	}
	lastIdx := -1
	for _, want := range wantOrder {
		idx := strings.Index(prompt, want)
		if idx < 0 {
			t.Fatalf("prompt missing %q\nprompt:\n%s", want, prompt)
		}
		if idx < lastIdx {
			t.Errorf("prompt parts out of order at %q", want)
		}
		lastIdx = idx
	}

	if strings.Contains(prompt, "- invoice_date:") {
		t.Error("field without instructions should not appear in the instruction list")
	}

	if again := BuildTextPrompt(template, fields); again != prompt {
		t.Error("prompt is not deterministic for identical inputs")
	}
}

func TestBuildTextPrompt_NoInstructions(t *testing.T) {
	template := &models.Template{}
	fields := []*models.TemplateField{
		{FieldName: "vendor_name", FieldType: models.FieldTypeText},
	}

	prompt := BuildTextPrompt(template, fields)

	if strings.Contains(prompt, "General Instructions") {
		t.Error("empty template instruction should be omitted")
	}
	if strings.Contains(prompt, "Field-specific Instructions") {
		t.Error("empty field instruction section should be omitted")
	}
	if !strings.HasPrefix(prompt, "Extract the following fields: vendor_name") {
		t.Errorf("unexpected prompt:\n%s", prompt)
	}
}

func TestBuildTablePrompt(t *testing.T) {
	template := &models.Template{AiInstructions: "Invoice document."}
	tableField := &models.TemplateField{
		FieldName:      "line_items",
		FieldType:      models.FieldTypeTable,
		AiInstructions: "The itemized charges table in the middle of the page.",
	}
	subFields := []*models.SubTemplateField{
		{FieldName: "description", DataType: models.DataTypeString},
		{FieldName: "quantity", DataType: models.DataTypeFloat, AiInstructions: "Numeric quantity only."},
		{FieldName: "unit_price", DataType: models.DataTypeFloat},
	}

	prompt := BuildTablePrompt(template, tableField, subFields)

	for _, want := range []string{
		"General Instructions: Invoice document.",
		"Table Instructions: The itemized charges table in the middle of the page.",
		"Column-specific Instructions:",
		"- quantity: Numeric quantity only.",
		"Extract table data for line_items with columns: description, quantity, unit_price",
		"Return as JSON with 'rows' array containing objects for each row.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q\nprompt:\n%s", want, prompt)
		}
	}
}
