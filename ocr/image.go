package ocr

import (
	"bytes"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"bitbucket.org/mmdatafocus/ocr_backend/utils"
)

// maxImageDimension bounds the longest side sent to the extraction model.
// Scanned pages routinely come in at 300dpi and upload limits apply.
const maxImageDimension = 2048

// PrepareImage loads a document image from disk, downsizes it when it
// exceeds the model upload bound and re-encodes it as JPEG. PDFs and
// already-small JPEGs are passed through untouched.
func PrepareImage(filePath string) (data []byte, mimeType string, err error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, "", utils.NewNotFoundError("document file", 0)
	}

	mimeType = detectMimeType(filePath)
	if mimeType == "application/pdf" {
		return raw, mimeType, nil
	}

	src, err := imaging.Open(filePath, imaging.AutoOrientation(true))
	if err != nil {
		// Not decodable as an image; send the bytes as-is and let the
		// model decide.
		return raw, mimeType, nil
	}

	bounds := src.Bounds()
	if bounds.Dx() <= maxImageDimension && bounds.Dy() <= maxImageDimension && mimeType == "image/jpeg" {
		return raw, mimeType, nil
	}

	if bounds.Dx() > maxImageDimension || bounds.Dy() > maxImageDimension {
		src = imaging.Fit(src, maxImageDimension, maxImageDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: 90}); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "image/jpeg", nil
}

func detectMimeType(filePath string) string {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	default:
		return "image/jpeg"
	}
}
