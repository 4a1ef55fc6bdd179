package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	inlineSpace = regexp.MustCompile(`[ \t\f\v]+`)
	blankLines  = regexp.MustCompile(`\n\s*\n\s*`)
)

var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "main": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"li": true, "ul": true, "ol": true, "table": true, "tr": true,
	"pre": true, "blockquote": true, "br": true,
}

// extractHTML keeps the visible body text with block elements separated by
// blank lines so paragraph chunking still applies.
func extractHTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(decodeBytes(data)))
	if err != nil {
		return "", failure("html", err)
	}

	doc.Find("script, style, noscript, nav, footer, header, aside").Remove()

	var b strings.Builder
	walkText(doc.Find("body"), &b)

	text := strings.ReplaceAll(b.String(), "\u00a0", " ")
	text = inlineSpace.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

func walkText(s *goquery.Selection, b *strings.Builder) {
	s.Contents().Each(func(_ int, c *goquery.Selection) {
		name := goquery.NodeName(c)
		if name == "#text" {
			b.WriteString(strings.ReplaceAll(c.Text(), "\n", " "))
			return
		}
		if blockElements[name] {
			b.WriteString("\n\n")
			walkText(c, b)
			b.WriteString("\n\n")
			return
		}
		walkText(c, b)
	})
}

func decodeBytes(data []byte) []byte {
	return []byte(decodeText(data))
}
