package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/utils"
	"gorm.io/gorm"
)

// OCRData is one extracted scalar value: (document, non-table field).
// PredictedValue is the machine output; ActualValue is the human correction.
// ActualValue wins everywhere a value is read back.
type OCRData struct {
	ID             int       `gorm:"primary_key" json:"id"`
	DocumentId     int       `gorm:"not null;index:idx_ocr_data_doc_field,priority:1" json:"document_id"`
	FieldId        int       `gorm:"not null;index:idx_ocr_data_doc_field,priority:2" json:"field_id"`
	PredictedValue *string   `gorm:"type:text" json:"predicted_value"`
	ActualValue    *string   `gorm:"type:text" json:"actual_value"`
	Confidence     float64   `json:"confidence"`
	ConversionNote *string   `gorm:"type:text" json:"conversion_note,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ResolvedValue applies the predicted/actual precedence rule.
func (o *OCRData) ResolvedValue() *string {
	if o.ActualValue != nil {
		return o.ActualValue
	}
	return o.PredictedValue
}

func (o *OCRData) Store(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Create(&o).Error
}

// SetActualValue records a human correction for the field.
func (o *OCRData) SetActualValue(tx *gorm.DB, ctx context.Context, value string) error {
	if err := tx.WithContext(ctx).Model(&OCRData{}).Where("id = ?", o.ID).
		Update("actual_value", value).Error; err != nil {
		return err
	}
	o.ActualValue = &value
	return nil
}

func GetOCRData(ctx context.Context, documentId int) ([]*OCRData, error) {
	var results []*OCRData
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("document_id = ?", documentId).Order("id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetOCRDataRecord(ctx context.Context, id int) (*OCRData, error) {
	var result OCRData
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.NewNotFoundError("ocr data", id)
	}
	return &result, nil
}

func GetOCRDataForField(ctx context.Context, documentId, fieldId int) (*OCRData, error) {
	var result OCRData
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("document_id = ? AND field_id = ?", documentId, fieldId).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}
