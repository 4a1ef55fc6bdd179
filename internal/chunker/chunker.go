// Package chunker splits extracted content into retrieval units: paragraph
// groups for prose and fixed-size row batches for tables.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/docchat/backend/internal/extract"
	"github.com/docchat/backend/pkg/config"
)

const (
	paragraphSep = "\n\n"
	cellSep      = " ; "
)

var (
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
	lineBreaks     = regexp.MustCompile(`[\r\n]+`)
)

type Chunker struct {
	pdfSize   int
	txtSize   int
	docxSize  int
	groupSize int
}

func New(cfg config.IngestionConfig) *Chunker {
	return &Chunker{
		pdfSize:   cfg.PDFChunkSize,
		txtSize:   cfg.TXTChunkSize,
		docxSize:  cfg.DOCXChunkSize,
		groupSize: cfg.TableGroupSize,
	}
}

// TargetSize is the text chunk target for a format tag.
func (c *Chunker) TargetSize(format string) int {
	switch format {
	case "docx":
		return c.docxSize
	case "pdf":
		return c.pdfSize
	default:
		return c.txtSize
	}
}

// Split chunks an extraction result according to its shape.
func (c *Chunker) Split(res *extract.Result) []string {
	if res == nil {
		return nil
	}
	switch res.Kind {
	case extract.KindText:
		return ChunkText(res.Text, c.TargetSize(res.Format))
	case extract.KindTable:
		return ChunkTable(res.Rows, c.groupSize)
	default:
		return nil
	}
}

// ChunkText greedily packs blank-line separated paragraphs into chunks of at
// most target characters. A paragraph is never split, so a single paragraph
// longer than target becomes a chunk of its own.
func ChunkText(text string, target int) []string {
	var chunks []string
	var buf strings.Builder
	size := 0

	for _, para := range paragraphBreak.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		n := utf8.RuneCountInString(para)

		if buf.Len() > 0 && size+len(paragraphSep)+n > target {
			chunks = append(chunks, strings.TrimSpace(buf.String()))
			buf.Reset()
			size = 0
		}
		if buf.Len() > 0 {
			buf.WriteString(paragraphSep)
			size += len(paragraphSep)
		}
		buf.WriteString(para)
		size += n
	}

	if buf.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(buf.String()))
	}
	return chunks
}

// ChunkTable renders rows in batches of groupSize. Every batch starts with a
// header line built from the first row's keys; values follow that column
// order and missing ones render empty.
func ChunkTable(rows []extract.Row, groupSize int) []string {
	if len(rows) == 0 {
		return nil
	}
	if groupSize <= 0 {
		groupSize = len(rows)
	}

	columns := rows[0].Keys()
	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = flatten(col)
	}
	headerLine := strings.Join(header, cellSep)

	chunks := make([]string, 0, (len(rows)+groupSize-1)/groupSize)
	for start := 0; start < len(rows); start += groupSize {
		end := min(start+groupSize, len(rows))

		lines := make([]string, 0, end-start+1)
		lines = append(lines, headerLine)
		for _, row := range rows[start:end] {
			values := make([]string, len(columns))
			for i, col := range columns {
				v, _ := row.Get(col)
				values[i] = flatten(v)
			}
			lines = append(lines, strings.Join(values, cellSep))
		}
		chunks = append(chunks, strings.Join(lines, "\n"))
	}
	return chunks
}

func flatten(s string) string {
	return lineBreaks.ReplaceAllString(s, " ")
}
