package validators

import (
	"fmt"
	"net/http"
)

// MaxImageSize caps uploaded image payloads.
const MaxImageSize = 5 << 20 // 5 MiB

// imageExtensions maps accepted sniffed content types to the file
// extension stored objects use.
var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ImageResult contains the result of image upload validation.
type ImageResult struct {
	Valid       bool   `json:"valid"`
	ContentType string `json:"content_type,omitempty"`
	Ext         string `json:"ext,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ValidateImage checks an uploaded payload by sniffing its real
// content type. The client's declared type and filename extension are
// ignored; only the bytes decide.
func ValidateImage(data []byte) ImageResult {
	if len(data) == 0 {
		return ImageResult{Error: "empty file"}
	}
	if len(data) > MaxImageSize {
		return ImageResult{Error: fmt.Sprintf("file size exceeds maximum limit of %dMB", MaxImageSize/1024/1024)}
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return ImageResult{Error: "only jpeg, png, gif and webp images are allowed"}
	}

	return ImageResult{
		Valid:       true,
		ContentType: contentType,
		Ext:         ext,
	}
}
