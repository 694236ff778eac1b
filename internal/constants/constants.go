// Package constants provides shared constants used across the codebase.
package constants

import (
	"path/filepath"
	"strings"
)

// HTTP API constants
const (
	// MaxUploadSize caps the multipart body of an image upload
	MaxUploadSize = 32 << 20

	// UploadField is the multipart field carrying the image
	UploadField = "file"

	// UserIDParam is the query parameter naming the index id
	UserIDParam = "user_id"

	// DefaultTokenHeader is the header carrying the shared secret
	DefaultTokenHeader = "access_token"
)

// Processing constants
const (
	// WorkerPoolSize is the default number of concurrent pipeline stages
	WorkerPoolSize = 4

	// DefaultTopK is the number of matches scored per query
	DefaultTopK = 1

	// ExactSearchLimit is the in-memory index size up to which queries scan
	// every vector instead of the HNSW graph
	ExactSearchLimit = 4096
)

// imageExtensions lists the files bulk indexing and the watcher pick up.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

// IsImageFile reports whether path has a supported image extension.
func IsImageFile(path string) bool {
	return imageExtensions[strings.ToLower(filepath.Ext(path))]
}
