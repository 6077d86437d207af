package main

import (
	"reflect"
	"testing"

	"bitbucket.org/mmdatafocus/ocr_backend/models"
)

func TestSplitAndTrim(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"a,b,c", []string{"a", "b", "c"}},
		{" a , ,b ", []string{"a", "b"}},
		{"https://app.example.com", []string{"https://app.example.com"}},
	}
	for _, tc := range cases {
		if got := splitAndTrim(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Errorf("splitAndTrim(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestExportFilename(t *testing.T) {
	doc := &models.Document{ID: 12, OriginalFilename: "invoice_jan.pdf"}
	if got := exportFilename(doc, "xlsx"); got != "invoice_jan.xlsx" {
		t.Errorf("exportFilename = %q, want invoice_jan.xlsx", got)
	}
	if got := exportFilename(doc, "json"); got != "invoice_jan.json" {
		t.Errorf("exportFilename = %q, want invoice_jan.json", got)
	}

	doc = &models.Document{ID: 9, OriginalFilename: ""}
	if got := exportFilename(doc, "json"); got != "document_9.json" {
		t.Errorf("exportFilename for empty name = %q, want document_9.json", got)
	}
}

func TestSanitizeSheetName(t *testing.T) {
	if got := sanitizeSheetName("item_description"); got != "item_description" {
		t.Errorf("sanitizeSheetName = %q", got)
	}
	if got := sanitizeSheetName("a/b:c*d"); got != "a_b_c_d" {
		t.Errorf("sanitizeSheetName = %q, want a_b_c_d", got)
	}
	long := "this_table_name_is_far_too_long_for_excel_sheets"
	if got := sanitizeSheetName(long); len(got) != 31 {
		t.Errorf("sanitizeSheetName length = %d, want 31", len(got))
	}
	if got := sanitizeSheetName(""); got != "Table" {
		t.Errorf("sanitizeSheetName empty = %q, want Table", got)
	}
}
