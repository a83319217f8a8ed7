package storage

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

const defaultExtension = "jpg"

// NewObjectKey returns "<uuid>.<ext>" with the extension derived from contentType.
func NewObjectKey(contentType string) string {
	return uuid.NewString() + "." + ExtensionFor(contentType)
}

// ExtensionFor maps a content type to a file extension, defaulting to jpg.
func ExtensionFor(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		return "jpg"
	case strings.Contains(ct, "png"):
		return "png"
	case strings.Contains(ct, "gif"):
		return "gif"
	case strings.Contains(ct, "webp"):
		return "webp"
	default:
		return defaultExtension
	}
}

// ContentTypeForKey infers the content type from the key's extension,
// defaulting to image/jpeg.
func ContentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}
