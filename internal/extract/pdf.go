package extract

import (
	"bytes"
	"strings"

	"github.com/ledongthuc/pdf"
)

// extractPDF joins the embedded text of every page with blank lines. Pages
// whose text cannot be decoded are skipped; a document that cannot be opened
// is a failure. The parser panics on some malformed inputs.
func extractPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", failure("pdf", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", failure("pdf", err)
	}

	var content strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pageText = strings.TrimSpace(pageText)
		if pageText == "" {
			continue
		}

		if content.Len() > 0 {
			content.WriteString("\n\n")
		}
		content.WriteString(pageText)
	}

	return content.String(), nil
}
