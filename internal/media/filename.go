package media

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces name to a flat ASCII filename that is safe to
// join onto a storage directory. Path separators become underscores and
// the result never starts or ends with a dot or underscore. It may return
// an empty string.
func SecureFilename(name string) string {
	name = norm.NFKD.String(name)
	name = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, name)

	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// StoredName sanitizes an uploaded video filename while keeping its
// lowercased extension, substituting "video" for a stem that sanitizes
// away entirely.
func StoredName(original string) string {
	ext := strings.ToLower(filepath.Ext(original))
	stem := SecureFilename(strings.TrimSuffix(original, filepath.Ext(original)))
	if stem == "" {
		stem = "video"
	}
	return stem + ext
}
