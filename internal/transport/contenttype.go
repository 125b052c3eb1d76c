package transport

import (
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultContentType is used when no content type can be determined.
const DefaultContentType = "application/octet-stream"

// ContentType infers the MIME type for an object. The destination key's
// extension takes precedence; when the extension is unknown and bytes are
// available, the content itself is sniffed.
func ContentType(key string, data []byte) string {
	ext := strings.ToLower(path.Ext(key))
	if ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}

	if len(data) > 0 {
		if mt := mimetype.Detect(data); mt != nil {
			return mt.String()
		}
	}

	return DefaultContentType
}
