package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/utils"
	"gorm.io/gorm"
)

// OCRLineItem is one extracted table row: (document, TABLE field, row_index).
// row_index is zero-based, unique within the (document, field) pair, and
// defines read-back ordering.
type OCRLineItem struct {
	ID         int       `gorm:"primary_key" json:"id"`
	DocumentId int       `gorm:"not null;uniqueIndex:idx_line_item_row,priority:1" json:"document_id"`
	FieldId    int       `gorm:"not null;uniqueIndex:idx_line_item_row,priority:2" json:"field_id"`
	RowIndex   int       `gorm:"not null;uniqueIndex:idx_line_item_row,priority:3" json:"row_index"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Values []*OCRLineItemValue `gorm:"foreignKey:OCRItemsId;constraint:OnDelete:CASCADE" json:"values,omitempty"`
}

func (li *OCRLineItem) Store(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Create(&li).Error
}

// GetOCRLineItems returns a document's rows for one table field with cell
// values preloaded, ordered by row_index.
func GetOCRLineItems(ctx context.Context, documentId, fieldId int) ([]*OCRLineItem, error) {
	var results []*OCRLineItem
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Preload("Values").
		Where("document_id = ? AND field_id = ?", documentId, fieldId).
		Order("row_index ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetOCRLineItem(ctx context.Context, id int) (*OCRLineItem, error) {
	var result OCRLineItem
	db := config.GetDB()
	if err := db.WithContext(ctx).Preload("Values").First(&result, id).Error; err != nil {
		return nil, utils.NewNotFoundError("line item", id)
	}
	return &result, nil
}

// GetTableFieldIdsForDocument lists the distinct TABLE fields that produced
// rows for the document.
func GetTableFieldIdsForDocument(ctx context.Context, documentId int) ([]int, error) {
	var fieldIds []int
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(&OCRLineItem{}).
		Distinct("field_id").
		Where("document_id = ?", documentId).
		Order("field_id ASC").
		Pluck("field_id", &fieldIds).Error; err != nil {
		return nil, err
	}
	return fieldIds, nil
}

// OCRLineItemValue is one table cell: (row, column). Same predicted/actual
// pair and precedence rule as OCRData.
type OCRLineItemValue struct {
	ID             int       `gorm:"primary_key" json:"id"`
	OCRItemsId     int       `gorm:"not null;index" json:"ocr_items_id"`
	SubTempFieldId int       `gorm:"not null;index" json:"sub_temp_field_id"`
	PredictedValue *string   `gorm:"type:text" json:"predicted_value"`
	ActualValue    *string   `gorm:"type:text" json:"actual_value"`
	Confidence     float64   `json:"confidence"`
	ConversionNote *string   `gorm:"type:text" json:"conversion_note,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func GetOCRLineItemValue(ctx context.Context, id int) (*OCRLineItemValue, error) {
	var result OCRLineItemValue
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.NewNotFoundError("line item value", id)
	}
	return &result, nil
}

func (v *OCRLineItemValue) ResolvedValue() *string {
	if v.ActualValue != nil {
		return v.ActualValue
	}
	return v.PredictedValue
}

func (v *OCRLineItemValue) Store(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Create(&v).Error
}

func (v *OCRLineItemValue) SetActualValue(tx *gorm.DB, ctx context.Context, value string) error {
	if err := tx.WithContext(ctx).Model(&OCRLineItemValue{}).Where("id = ?", v.ID).
		Update("actual_value", value).Error; err != nil {
		return err
	}
	v.ActualValue = &value
	return nil
}
