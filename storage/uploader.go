package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

var ErrUnsupportedContentType = errors.New("unsupported content type")

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

// GetExtensionFromContentType maps an accepted proof content type to a file
// extension.
func GetExtensionFromContentType(contentType string) (string, error) {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg", nil
	case "image/png":
		return ".png", nil
	case "image/gif":
		return ".gif", nil
	case "image/webp":
		return ".webp", nil
	case "video/mp4":
		return ".mp4", nil
	case "video/webm":
		return ".webm", nil
	case "application/pdf":
		return ".pdf", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType)
	}
}
