package models

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestConvertTemplateFieldValue_Date_CanonicalFormat(t *testing.T) {
	cases := map[string]string{
		"24-Jun-2025": "24/06/2025",
		"2025-06-24":  "24/06/2025",
		"24/06/2025":  "24/06/2025",
		"24-06-2025":  "24/06/2025",
		"24 Jun 2025": "24/06/2025",
		"2025/06/24":  "24/06/2025",
	}
	for input, want := range cases {
		got, err := ConvertTemplateFieldValue(input, FieldTypeDate, "invoice_date")
		if err != nil {
			t.Fatalf("date %q: unexpected error: %v", input, err)
		}
		if got != want {
			t.Errorf("date %q: got %v, want %s", input, got, want)
		}
	}
}

func TestConvertTemplateFieldValue_Date_UnparseableKeepsRaw(t *testing.T) {
	got, err := ConvertTemplateFieldValue("sometime last week", FieldTypeDate, "invoice_date")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "sometime last week" {
		t.Errorf("got %v, want raw value back", got)
	}
}

func TestConvertTemplateFieldValue_Number(t *testing.T) {
	got, err := ConvertTemplateFieldValue("1,234", FieldTypeNumber, "total")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != int64(1234) {
		t.Errorf("got %v (%T), want int64 1234", got, got)
	}

	got, err = ConvertTemplateFieldValue("1,234.50", FieldTypeNumber, "total")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1234.5 {
		t.Errorf("got %v, want 1234.5", got)
	}

	got, err = ConvertTemplateFieldValue("1.5e3", FieldTypeNumber, "total")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 1500.0 {
		t.Errorf("got %v, want 1500", got)
	}
}

func TestConvertTemplateFieldValue_Currency_ExactDecimal(t *testing.T) {
	got, err := ConvertTemplateFieldValue("$1,234.56", FieldTypeCurrency, "total_amount")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, ok := got.(decimal.Decimal)
	if !ok {
		t.Fatalf("got %T, want decimal.Decimal", got)
	}
	if !d.Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("got %s, want 1234.56", d)
	}

	// Indian-style grouping.
	got, err = ConvertTemplateFieldValue("₹1,23,456.78", FieldTypeCurrency, "total_amount")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.(decimal.Decimal).Equal(decimal.RequireFromString("123456.78")) {
		t.Errorf("got %s, want 123456.78", got)
	}
}

func TestConvertTemplateFieldValue_Email(t *testing.T) {
	got, err := ConvertTemplateFieldValue("Billing@Example.COM", FieldTypeEmail, "contact_email")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "billing@example.com" {
		t.Errorf("got %v, want lower-cased email", got)
	}

	if _, err := ConvertTemplateFieldValue("not-an-email", FieldTypeEmail, "contact_email"); err == nil {
		t.Error("expected error for value without @ and .")
	}
}

func TestConvertSubTemplateFieldValue_Boolean(t *testing.T) {
	for _, token := range []string{"true", "1", "Yes", "Y", "ON", "enabled", "Active"} {
		got, err := ConvertSubTemplateFieldValue(token, DataTypeBoolean, "taxable")
		if err != nil {
			t.Fatalf("token %q: unexpected error: %v", token, err)
		}
		if got != true {
			t.Errorf("token %q: got %v, want true", token, got)
		}
	}
	for _, token := range []string{"false", "0", "No", "n", "off", "disabled", "INACTIVE"} {
		got, err := ConvertSubTemplateFieldValue(token, DataTypeBoolean, "taxable")
		if err != nil {
			t.Fatalf("token %q: unexpected error: %v", token, err)
		}
		if got != false {
			t.Errorf("token %q: got %v, want false", token, got)
		}
	}
	if _, err := ConvertSubTemplateFieldValue("maybe", DataTypeBoolean, "taxable"); err == nil {
		t.Error("expected error for unknown boolean token")
	}
}

func TestConvertSubTemplateFieldValue_Numeric(t *testing.T) {
	got, err := ConvertSubTemplateFieldValue("10", DataTypeFloat, "quantity")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 10.0 {
		t.Errorf("got %v, want 10.0", got)
	}

	got, err = ConvertSubTemplateFieldValue("2.50", DataTypeFloat, "unit_price")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 2.5 {
		t.Errorf("got %v, want 2.5", got)
	}

	got, err = ConvertSubTemplateFieldValue("1,200", DataTypeInteger, "count")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != int64(1200) {
		t.Errorf("got %v, want 1200", got)
	}
}

func TestConvert_EmptyAndNil(t *testing.T) {
	for _, v := range []any{nil, "", "   "} {
		got, err := ConvertTemplateFieldValue(v, FieldTypeNumber, "total")
		if err != nil || got != nil {
			t.Errorf("value %v: got (%v, %v), want (nil, nil)", v, got, err)
		}
	}
}

func TestSafeConvert_FailOpenKeepsRawValue(t *testing.T) {
	got, note := SafeConvertTemplateFieldValue("twelve", FieldTypeNumber, "total")
	if got != "twelve" {
		t.Errorf("got %v, want original raw value", got)
	}
	if note == nil || !strings.Contains(*note, "twelve") {
		t.Errorf("expected a conversion note mentioning the raw value, got %v", note)
	}

	got, note = SafeConvertTemplateFieldValue("42", FieldTypeNumber, "total")
	if note != nil {
		t.Errorf("unexpected note on success: %v", *note)
	}
	if got != int64(42) {
		t.Errorf("got %v, want 42", got)
	}
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"ACME", "ACME"},
		{int64(10), "10"},
		{10.0, "10"},
		{2.5, "2.5"},
		{true, "true"},
		{decimal.RequireFromString("1234.56"), "1234.56"},
		{nil, ""},
	}
	for _, c := range cases {
		if got := FormatValue(c.in); got != c.want {
			t.Errorf("FormatValue(%v): got %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCanTransitionDocumentStatus(t *testing.T) {
	allowed := []struct{ from, to DocumentStatus }{
		{DocumentStatusPending, DocumentStatusProcessing},
		{DocumentStatusProcessing, DocumentStatusProcessed},
		{DocumentStatusProcessing, DocumentStatusFailed},
		{DocumentStatusProcessed, DocumentStatusPending},
		{DocumentStatusFailed, DocumentStatusPending},
	}
	for _, c := range allowed {
		if !CanTransitionDocumentStatus(c.from, c.to) {
			t.Errorf("expected %s -> %s to be allowed", c.from, c.to)
		}
	}

	denied := []struct{ from, to DocumentStatus }{
		{DocumentStatusPending, DocumentStatusProcessed},
		{DocumentStatusPending, DocumentStatusFailed},
		{DocumentStatusPending, DocumentStatusPending},
		{DocumentStatusProcessing, DocumentStatusPending},
		{DocumentStatusProcessed, DocumentStatusProcessing},
		{DocumentStatusFailed, DocumentStatusProcessed},
	}
	for _, c := range denied {
		if CanTransitionDocumentStatus(c.from, c.to) {
			t.Errorf("expected %s -> %s to be rejected", c.from, c.to)
		}
	}
}
