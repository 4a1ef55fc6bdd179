package extract

import (
	"strings"

	"golang.org/x/text/encoding/charmap"
)

const replacementChar = "\uFFFD"

// decodeText reads data as UTF-8 and, when that produces replacement
// characters, re-decodes the original bytes as Latin-1. A leading byte-order
// mark is dropped.
func decodeText(data []byte) string {
	text := strings.ToValidUTF8(string(data), replacementChar)
	if strings.Contains(text, replacementChar) {
		if latin, err := charmap.ISO8859_1.NewDecoder().Bytes(data); err == nil {
			text = string(latin)
		}
	}
	text = strings.TrimPrefix(text, "\ufeff")
	return strings.ReplaceAll(text, "\r\n", "\n")
}
