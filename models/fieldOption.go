package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"gorm.io/gorm"
)

// FieldOption is one (value, label) vocabulary entry for a SELECT field.
// Vocabularies are usually loaded from Tally, not hand-entered.
type FieldOption struct {
	ID          int       `gorm:"primary_key" json:"id"`
	FieldId     int       `gorm:"not null;index" json:"field_id"`
	OptionValue string    `gorm:"not null;size:200" json:"option_value"`
	OptionLabel string    `gorm:"not null;size:200" json:"option_label"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewFieldOption struct {
	Value string `json:"value" binding:"required"`
	Label string `json:"label"`
}

func (input NewFieldOption) MapInput() *FieldOption {
	label := input.Label
	if label == "" {
		label = input.Value
	}
	return &FieldOption{
		OptionValue: input.Value,
		OptionLabel: label,
	}
}

// SubTemplateFieldOption is the vocabulary entry for a SELECT table column.
type SubTemplateFieldOption struct {
	ID             int       `gorm:"primary_key" json:"id"`
	SubTempFieldId int       `gorm:"not null;index" json:"sub_temp_field_id"`
	OptionValue    string    `gorm:"not null;size:200" json:"option_value"`
	OptionLabel    string    `gorm:"not null;size:200" json:"option_label"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ReplaceFieldOptions swaps a field's vocabulary for the given entries.
// Delete-then-insert inside one transaction; a concurrent reconciliation
// read sees whichever snapshot exists at its query time.
func ReplaceFieldOptions(ctx context.Context, fieldId int, options []*FieldOption) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("field_id = ?", fieldId).Delete(&FieldOption{}).Error; err != nil {
			return err
		}
		for _, opt := range options {
			opt.FieldId = fieldId
		}
		if len(options) == 0 {
			return nil
		}
		return tx.Create(&options).Error
	})
}

func ReplaceSubFieldOptions(ctx context.Context, subFieldId int, options []*SubTemplateFieldOption) error {
	db := config.GetDB()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sub_temp_field_id = ?", subFieldId).Delete(&SubTemplateFieldOption{}).Error; err != nil {
			return err
		}
		for _, opt := range options {
			opt.SubTempFieldId = subFieldId
		}
		if len(options) == 0 {
			return nil
		}
		return tx.Create(&options).Error
	})
}

func GetFieldOptions(ctx context.Context, fieldId int) ([]*FieldOption, error) {
	var results []*FieldOption
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("field_id = ?", fieldId).Order("id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func GetSubFieldOptions(ctx context.Context, subFieldId int) ([]*SubTemplateFieldOption, error) {
	var results []*SubTemplateFieldOption
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("sub_temp_field_id = ?", subFieldId).Order("id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
