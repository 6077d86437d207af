package main

import (
	"context"
	"net/http"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/models"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func listTemplatesHandler(c *gin.Context) {
	templates, err := models.GetTemplates(c.Request.Context(), currentUserId(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"templates": templates})
}

func createTemplateHandler(c *gin.Context) {
	var input models.NewTemplate
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}

	template, err := input.MapInput(currentUserId(c))
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	if err := template.Store(config.GetDB(), ctx); err != nil {
		respondError(c, err)
		return
	}

	created, err := models.GetTemplateWithFields(ctx, template.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func getTemplateHandler(c *gin.Context) {
	template, ok := ownedTemplate(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, template)
}

// updateTemplateHandler replaces the template's metadata and its whole field
// list. Fields are recreated, so existing OCR rows keep pointing at the old
// field ids; results of already processed documents are not rewritten.
func updateTemplateHandler(c *gin.Context) {
	template, ok := ownedTemplate(c)
	if !ok {
		return
	}
	var input models.NewTemplate
	if err := c.ShouldBindJSON(&input); err != nil {
		respondBindError(c, err)
		return
	}
	replacement, err := input.MapInput(template.UserId)
	if err != nil {
		respondError(c, err)
		return
	}

	ctx := c.Request.Context()
	err = config.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Model(&models.Template{}).Where("id = ?", template.ID).
			Updates(map[string]interface{}{
				"name":            replacement.Name,
				"description":     replacement.Description,
				"ai_instructions": replacement.AiInstructions,
			}).Error; err != nil {
			return err
		}
		if err := tx.WithContext(ctx).Where("template_id = ?", template.ID).
			Delete(&models.TemplateField{}).Error; err != nil {
			return err
		}
		for _, field := range replacement.TemplateFields {
			field.TemplateId = template.ID
			if err := field.Store(tx, ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}

	updated, err := models.GetTemplateWithFields(ctx, template.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func deleteTemplateHandler(c *gin.Context) {
	template, ok := ownedTemplate(c)
	if !ok {
		return
	}
	if err := template.Delete(config.GetDB(), c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": template.ID})
}

// ownedTemplate loads the :id template with fields and enforces ownership.
func ownedTemplate(c *gin.Context) (*models.Template, bool) {
	id, ok := pathId(c, "id")
	if !ok {
		return nil, false
	}
	template, err := models.GetTemplateWithFields(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if template.UserId != currentUserId(c) && !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your template"})
		return nil, false
	}
	return template, true
}

// ownedTemplateField resolves a field id to its field and parent template,
// enforcing ownership through the template.
func ownedTemplateField(c *gin.Context, ctx context.Context, fieldId int) (*models.TemplateField, bool) {
	field, err := models.GetTemplateField(ctx, fieldId)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	template, err := models.GetTemplate(ctx, field.TemplateId)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	if template.UserId != currentUserId(c) && !isAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your template"})
		return nil, false
	}
	return field, true
}
