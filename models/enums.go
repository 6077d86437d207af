package models

// DocumentStatus is the document processing lifecycle.
// PENDING -> PROCESSING -> PROCESSED | FAILED. Reprocessing a terminal
// document purges its OCR rows and resets to PENDING.
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusProcessed  DocumentStatus = "processed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

func IsValidDocumentStatus(s string) bool {
	switch DocumentStatus(s) {
	case DocumentStatusPending, DocumentStatusProcessing, DocumentStatusProcessed, DocumentStatusFailed:
		return true
	default:
		return false
	}
}

// CanTransitionDocumentStatus returns whether a document may move from one
// status to another. A reprocess request is the PROCESSED/FAILED -> PENDING
// edge; everything else follows the forward path.
func CanTransitionDocumentStatus(from, to DocumentStatus) bool {
	switch from {
	case DocumentStatusPending:
		return to == DocumentStatusProcessing
	case DocumentStatusProcessing:
		return to == DocumentStatusProcessed || to == DocumentStatusFailed
	case DocumentStatusProcessed, DocumentStatusFailed:
		return to == DocumentStatusPending
	default:
		return false
	}
}

// FieldType is the declared type of a top-level template field.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeSelect   FieldType = "select"
	FieldTypeNumber   FieldType = "number"
	FieldTypeDate     FieldType = "date"
	FieldTypeEmail    FieldType = "email"
	FieldTypeCurrency FieldType = "currency"
	FieldTypeTable    FieldType = "table"
)

func IsValidFieldType(s string) bool {
	switch FieldType(s) {
	case FieldTypeText, FieldTypeSelect, FieldTypeNumber, FieldTypeDate,
		FieldTypeEmail, FieldTypeCurrency, FieldTypeTable:
		return true
	default:
		return false
	}
}

// DataType is the declared cell type of a table column.
type DataType string

const (
	DataTypeString  DataType = "string"
	DataTypeInteger DataType = "integer"
	DataTypeFloat   DataType = "float"
	DataTypeDate    DataType = "date"
	DataTypeBoolean DataType = "boolean"
	DataTypeSelect  DataType = "select"
)

func IsValidDataType(s string) bool {
	switch DataType(s) {
	case DataTypeString, DataTypeInteger, DataTypeFloat, DataTypeDate,
		DataTypeBoolean, DataTypeSelect:
		return true
	default:
		return false
	}
}

// ExportFormat for document exports.
type ExportFormat string

const (
	ExportFormatExcel ExportFormat = "excel"
	ExportFormatJSON  ExportFormat = "json"
)

// Credit transaction reference types.
const (
	CreditReferenceDocument       = "document"
	CreditReferenceDocumentRefund = "document_refund"
	CreditReferenceManualAddition = "manual_addition"
)
