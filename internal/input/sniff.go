package input

import (
	"bytes"
	"net/http"
)

var (
	tiffLittle = []byte{'I', 'I', 0x2A, 0x00}
	tiffBig    = []byte{'M', 'M', 0x00, 0x2A}
)

// SniffContentType guesses the MIME type from magic bytes. Scanners often
// produce TIFF, which http.DetectContentType does not know.
func SniffContentType(b []byte) string {
	if bytes.HasPrefix(b, tiffLittle) || bytes.HasPrefix(b, tiffBig) {
		return "image/tiff"
	}
	ct := http.DetectContentType(b)
	if i := bytes.IndexByte([]byte(ct), ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct
}
