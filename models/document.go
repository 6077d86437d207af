package models

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/utils"
	"gorm.io/gorm"
)

// Document is one uploaded source file under processing.
type Document struct {
	ID               int            `gorm:"primary_key" json:"id"`
	UserId           int            `gorm:"not null;index" json:"user_id"`
	TemplateId       int            `gorm:"index" json:"template_id"`
	FilePath         string         `gorm:"not null;size:500" json:"file_path"`
	OriginalFilename string         `gorm:"not null;size:255" json:"original_filename"`
	Status           DocumentStatus `gorm:"not null;size:20;default:'pending'" json:"status"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	ProcessedAt      *time.Time     `json:"processed_at"`

	OCRData      []*OCRData     `gorm:"foreignKey:DocumentId;constraint:OnDelete:CASCADE" json:"-"`
	OCRLineItems []*OCRLineItem `gorm:"foreignKey:DocumentId;constraint:OnDelete:CASCADE" json:"-"`
}

func (d *Document) Store(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Create(&d).Error
}

func (d *Document) Delete(tx *gorm.DB, ctx context.Context) error {
	return tx.WithContext(ctx).Delete(&d).Error
}

// SetStatus persists a lifecycle transition. Illegal transitions are a
// programming error and are rejected.
func (d *Document) SetStatus(tx *gorm.DB, ctx context.Context, to DocumentStatus) error {
	if !CanTransitionDocumentStatus(d.Status, to) {
		return utils.NewValidationError("illegal document status transition %s -> %s", d.Status, to)
	}
	updates := map[string]interface{}{"status": to}
	if to == DocumentStatusProcessed {
		now := time.Now().UTC()
		updates["processed_at"] = &now
		d.ProcessedAt = &now
	}
	if err := tx.WithContext(ctx).Model(&Document{}).Where("id = ?", d.ID).Updates(updates).Error; err != nil {
		return err
	}
	d.Status = to
	return nil
}

func GetDocument(ctx context.Context, id int) (*Document, error) {
	var result Document
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.NewNotFoundError("document", id)
	}
	return &result, nil
}

func GetDocuments(ctx context.Context, userId int) ([]*Document, error) {
	var results []*Document
	db := config.GetDB()
	if err := db.WithContext(ctx).Where("user_id = ?", userId).Order("id DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// PurgeOCRRecords deletes every OCRData, OCRLineItem and OCRLineItemValue
// row belonging to the document. Runs before every reprocess so no row from
// an earlier attempt leaks into the next one.
func (d *Document) PurgeOCRRecords(tx *gorm.DB, ctx context.Context) error {
	if err := tx.WithContext(ctx).
		Where("ocr_items_id IN (?)",
			tx.Model(&OCRLineItem{}).Select("id").Where("document_id = ?", d.ID)).
		Delete(&OCRLineItemValue{}).Error; err != nil {
		return err
	}
	if err := tx.WithContext(ctx).Where("document_id = ?", d.ID).Delete(&OCRLineItem{}).Error; err != nil {
		return err
	}
	return tx.WithContext(ctx).Where("document_id = ?", d.ID).Delete(&OCRData{}).Error
}
