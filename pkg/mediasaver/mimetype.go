package mediasaver

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// sniffLen is the number of leading bytes inspected by DetectMimeType.
const sniffLen = 512

// DetectMimeType returns the image type of head, falling back to the display
// name's extension and finally to DefaultMimeType.
func DetectMimeType(head []byte, displayName string) string {
	if len(head) > 0 {
		if detected := http.DetectContentType(head); strings.HasPrefix(detected, "image/") {
			return detected
		}
	}
	if ext := filepath.Ext(displayName); ext != "" {
		if byExt := mime.TypeByExtension(strings.ToLower(ext)); strings.HasPrefix(byExt, "image/") {
			if i := strings.Index(byExt, ";"); i >= 0 {
				byExt = byExt[:i]
			}
			return byExt
		}
	}
	return DefaultMimeType
}
