package models

import (
	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/utils"
)

func MigrateTable() {
	db := config.GetDB()
	err := db.AutoMigrate(
		&User{},
		&Template{},
		&TemplateField{},
		&SubTemplateField{},
		&FieldOption{},
		&SubTemplateFieldOption{},
		&Document{},
		&OCRData{},
		&OCRLineItem{},
		&OCRLineItemValue{},
		&CreditTransaction{},
	)
	utils.ErrorPanic(err)
}
