package storage

import (
	"fmt"
	"mime"
	"net/http"
	"path"
	"strings"
)

const maxNameExtLen = 6

// UploadPath is the key of a user's photo inside BucketUploads.
func UploadPath(userID, objectID, ext string) string {
	return fmt.Sprintf("%s/%s.%s", userID, objectID, strings.TrimPrefix(ext, "."))
}

// GeneratedPath is the key of a generation result inside BucketGenerated.
func GeneratedPath(userID, generationID string) string {
	return fmt.Sprintf("%s/%s.png", userID, generationID)
}

// GuessExtension picks the upload extension from the file name (at most six
// characters after the last dot), then the declared content type, then the
// sniffed content of data, and finally "jpg".
func GuessExtension(filename, contentType string, data []byte) string {
	name := strings.ToLower(strings.TrimSpace(path.Base(filename)))
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		ext := name[idx+1:]
		if ext != "" && len(ext) <= maxNameExtLen {
			return ext
		}
	}
	if ext := extensionForMIME(contentType); ext != "" {
		return ext
	}
	if len(data) > 0 {
		if ext := extensionForMIME(http.DetectContentType(data)); ext != "" {
			return ext
		}
	}
	return "jpg"
}

func extensionForMIME(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = contentType
	}
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	switch {
	case strings.Contains(mediaType, "jpeg"), strings.Contains(mediaType, "jpg"):
		return "jpg"
	case strings.Contains(mediaType, "png"):
		return "png"
	case strings.Contains(mediaType, "webp"):
		return "webp"
	default:
		return ""
	}
}
