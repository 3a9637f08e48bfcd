package media

import (
	"path/filepath"
	"sort"
	"strings"
)

// accepted upload extensions and the MIME type sent to engines
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpg":  "video/mpeg",
	".mpeg": "video/mpeg",
}

// checks if the file is an accepted video based on extension
func IsVideoFile(path string) bool {
	_, ok := videoTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

// AllowedExtensions returns the accepted extensions without the leading
// dot, sorted.
func AllowedExtensions() []string {
	exts := make([]string, 0, len(videoTypes))
	for ext := range videoTypes {
		exts = append(exts, strings.TrimPrefix(ext, "."))
	}
	sort.Strings(exts)
	return exts
}

// MIMEType returns the video MIME type for path, or
// application/octet-stream for unknown extensions.
func MIMEType(path string) string {
	if mt, ok := videoTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "application/octet-stream"
}
