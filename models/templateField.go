package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/utils"
	"gorm.io/gorm"
)

// TemplateField is one scalar field (or one table) within a template.
// Only TABLE fields own SubTemplateFields; only SELECT fields own
// FieldOptions.
type TemplateField struct {
	ID             int       `gorm:"primary_key" json:"id"`
	TemplateId     int       `gorm:"not null;index" json:"template_id"`
	FieldName      string    `gorm:"not null;size:100" json:"field_name"`
	FieldOrder     int       `gorm:"not null" json:"field_order"`
	FieldType      FieldType `gorm:"not null;size:20" json:"field_type"`
	AiInstructions string    `gorm:"type:text" json:"ai_instructions"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	SubTemplateFields []*SubTemplateField `gorm:"foreignKey:FieldId;constraint:OnDelete:CASCADE" json:"sub_template_fields,omitempty"`
	FieldOptions      []*FieldOption      `gorm:"foreignKey:FieldId;constraint:OnDelete:CASCADE" json:"field_options,omitempty"`
}

type NewTemplateField struct {
	FieldName      string                `json:"field_name" binding:"required"`
	FieldType      string                `json:"field_type" binding:"required"`
	AiInstructions string                `json:"ai_instructions"`
	SubFields      []NewSubTemplateField `json:"sub_fields"`
	Options        []NewFieldOption      `json:"options"`
}

func (input NewTemplateField) MapInput(order int) (*TemplateField, error) {
	if !IsValidFieldType(input.FieldType) {
		return nil, utils.NewValidationError("invalid field type: %s", input.FieldType)
	}
	fieldType := FieldType(input.FieldType)
	if fieldType != FieldTypeTable && len(input.SubFields) > 0 {
		return nil, utils.NewValidationError("field %s: only table fields may declare sub fields", input.FieldName)
	}
	field := &TemplateField{
		FieldName:      input.FieldName,
		FieldOrder:     order,
		FieldType:      fieldType,
		AiInstructions: input.AiInstructions,
	}
	for _, sf := range input.SubFields {
		sub, err := sf.MapInput()
		if err != nil {
			return nil, err
		}
		field.SubTemplateFields = append(field.SubTemplateFields, sub)
	}
	for _, opt := range input.Options {
		field.FieldOptions = append(field.FieldOptions, opt.MapInput())
	}
	return field, nil
}

// IsTable reports whether this field extracts row data instead of one value.
func (f *TemplateField) IsTable() bool {
	return f.FieldType == FieldTypeTable
}

func (f *TemplateField) Store(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Create(&f).Error
}

func (f *TemplateField) Delete(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Delete(&f).Error
}

func GetTemplateField(ctx context.Context, id int) (*TemplateField, error) {
	var result TemplateField
	db := config.GetDB()
	if err := db.WithContext(ctx).Preload("FieldOptions").Preload("SubTemplateFields").First(&result, id).Error; err != nil {
		return nil, utils.NewNotFoundError("template field", id)
	}
	return &result, nil
}

// SubTemplateField is one column of a TABLE field.
type SubTemplateField struct {
	ID             int       `gorm:"primary_key" json:"id"`
	FieldId        int       `gorm:"not null;index" json:"field_id"`
	FieldName      string    `gorm:"not null;size:100" json:"field_name"`
	DataType       DataType  `gorm:"not null;size:20" json:"data_type"`
	AiInstructions string    `gorm:"type:text" json:"ai_instructions"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	SubFieldOptions []*SubTemplateFieldOption `gorm:"foreignKey:SubTempFieldId;constraint:OnDelete:CASCADE" json:"sub_field_options,omitempty"`
}

type NewSubTemplateField struct {
	FieldName      string           `json:"field_name" binding:"required"`
	DataType       string           `json:"data_type" binding:"required"`
	AiInstructions string           `json:"ai_instructions"`
	Options        []NewFieldOption `json:"options"`
}

func (input NewSubTemplateField) MapInput() (*SubTemplateField, error) {
	if !IsValidDataType(input.DataType) {
		return nil, utils.NewValidationError("invalid data type: %s", input.DataType)
	}
	sub := &SubTemplateField{
		FieldName:      input.FieldName,
		DataType:       DataType(input.DataType),
		AiInstructions: input.AiInstructions,
	}
	for _, opt := range input.Options {
		sub.SubFieldOptions = append(sub.SubFieldOptions, &SubTemplateFieldOption{
			OptionValue: opt.Value,
			OptionLabel: opt.Label,
		})
	}
	return sub, nil
}

func GetSubTemplateField(ctx context.Context, id int) (*SubTemplateField, error) {
	var result SubTemplateField
	db := config.GetDB()
	if err := db.WithContext(ctx).Preload("SubFieldOptions").First(&result, id).Error; err != nil {
		return nil, utils.NewNotFoundError("sub template field", id)
	}
	return &result, nil
}
