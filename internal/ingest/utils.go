package ingest

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/content-extractor/constants"
)

// AllowedExt checks ext against allow, or against every extension the
// detector knows when allow is nil.
func AllowedExt(ext string, allow map[string]struct{}) bool {
	ext = constants.NormalizeExt(ext)
	if ext == "" {
		return false
	}
	if allow == nil {
		_, ok := constants.ExtensionStrategies[ext]
		return ok
	}
	_, ok := allow[ext]
	return ok
}

// ExtSet builds an allow set from user input such as ".pdf, PNG".
func ExtSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		if e = constants.NormalizeExt(strings.TrimSpace(e)); e != "" {
			out[e] = struct{}{}
		}
	}
	return out
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// MIMEOf guesses the MIME type from the extension; "" when unknown.
func MIMEOf(path string) string {
	return mime.TypeByExtension(filepath.Ext(path))
}
