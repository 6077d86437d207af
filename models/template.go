package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/utils"
	"gorm.io/gorm"
)

// Template is a named, reusable extraction profile. It owns an ordered list
// of TemplateFields and an optional template-level AI instruction that is
// prepended to every extraction prompt.
type Template struct {
	ID             int       `gorm:"primary_key" json:"id"`
	UserId         int       `gorm:"not null;index" json:"user_id"`
	Name           string    `gorm:"not null;size:100" json:"name"`
	Description    string    `gorm:"type:text" json:"description"`
	AiInstructions string    `gorm:"type:text" json:"ai_instructions"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	TemplateFields []*TemplateField `gorm:"constraint:OnDelete:CASCADE" json:"template_fields,omitempty"`
}

type NewTemplate struct {
	Name           string             `json:"name" binding:"required"`
	Description    string             `json:"description"`
	AiInstructions string             `json:"ai_instructions"`
	Fields         []NewTemplateField `json:"fields"`
}

func (input NewTemplate) MapInput(userId int) (*Template, error) {
	t := &Template{
		UserId:         userId,
		Name:           input.Name,
		Description:    input.Description,
		AiInstructions: input.AiInstructions,
	}
	for i, f := range input.Fields {
		field, err := f.MapInput(i)
		if err != nil {
			return nil, err
		}
		t.TemplateFields = append(t.TemplateFields, field)
	}
	return t, nil
}

func (t *Template) Store(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Create(&t).Error
}

func (t *Template) Delete(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Select("TemplateFields").Delete(&t).Error
}

func GetTemplate(ctx context.Context, id int) (*Template, error) {
	var result Template
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.NewNotFoundError("template", id)
	}
	return &result, nil
}

// GetTemplateWithFields loads a template with its ordered fields, sub-fields
// and option vocabularies in one go. This is the shape the processing
// pipeline consumes.
func GetTemplateWithFields(ctx context.Context, id int) (*Template, error) {
	var result Template
	db := config.GetDB()
	err := db.WithContext(ctx).
		Preload("TemplateFields", func(db *gorm.DB) *gorm.DB {
			return db.Order("template_fields.field_order ASC")
		}).
		Preload("TemplateFields.FieldOptions").
		Preload("TemplateFields.SubTemplateFields").
		Preload("TemplateFields.SubTemplateFields.SubFieldOptions").
		First(&result, id).Error
	if err != nil {
		return nil, utils.NewNotFoundError("template", id)
	}
	return &result, nil
}

func GetTemplates(ctx context.Context, userId int) ([]*Template, error) {
	var results []*Template
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("user_id = ?", userId).Order("id ASC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
