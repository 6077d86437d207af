package main

import (
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"bitbucket.org/mmdatafocus/ocr_backend/config"
	"bitbucket.org/mmdatafocus/ocr_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxUploadBytes = 20 << 20

var allowedUploadExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".pdf":  true,
}

// saveUploadedFile writes a multipart upload into the local upload
// directory under a generated name and returns the stored path.
func saveUploadedFile(c *gin.Context, file *multipart.FileHeader) (string, error) {
	if file.Size > maxUploadBytes {
		return "", utils.NewValidationError("file too large: %d bytes (max %d)", file.Size, maxUploadBytes)
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !allowedUploadExtensions[ext] {
		return "", utils.NewValidationError("unsupported file type: %s", ext)
	}

	dir := config.GetUploadDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	storedName := uuid.NewString() + ext
	storedPath := filepath.Join(dir, storedName)
	if err := c.SaveUploadedFile(file, storedPath); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return storedPath, nil
}

// removeStoredFile deletes an uploaded file, tolerating an already
// missing path.
func removeStoredFile(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
