// Package extract turns uploaded bytes into plain text or ordered row records
// depending on the file format.
package extract

import (
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/docchat/backend/pkg/logger"
)

var (
	// ErrUnsupportedFormat marks an unrecognised format. The accompanying
	// Result is empty and callers treat it as zero chunks.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrExtractionFailure means the parser could not process the bytes.
	ErrExtractionFailure = errors.New("extraction failed")
)

type Kind int

const (
	KindNone Kind = iota
	KindText
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindTable:
		return "table"
	default:
		return "none"
	}
}

type Result struct {
	Format string
	Kind   Kind
	Text   string
	Rows   []Row
	// SkippedRows counts malformed table rows dropped during parsing.
	SkippedRows int
}

var mediaTypeFormats = map[string]string{
	"application/pdf": "pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":       "xlsx",
	"application/vnd.ms-excel": "xls",
	"text/csv":                 "csv",
	"text/plain":               "txt",
	"text/markdown":            "md",
	"text/html":                "html",
}

// Format returns the lower-cased extension of filename, falling back to the
// declared media type when the name has no extension.
func Format(filename, mediaType string) string {
	if ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), ".")); ext != "" {
		return ext
	}
	if mt, _, err := mime.ParseMediaType(mediaType); err == nil {
		return mediaTypeFormats[mt]
	}
	return ""
}

func Extract(data []byte, filename, mediaType string) (*Result, error) {
	format := Format(filename, mediaType)
	res := &Result{Format: format}

	var err error
	switch format {
	case "pdf":
		res.Kind = KindText
		res.Text, err = extractPDF(data)
	case "docx":
		res.Kind = KindText
		res.Text, err = extractDOCX(data)
	case "txt", "md":
		res.Kind = KindText
		res.Text = decodeText(data)
	case "html", "htm":
		res.Kind = KindText
		res.Text, err = extractHTML(data)
	case "csv":
		res.Kind = KindTable
		res.Rows, res.SkippedRows = parseCSV(decodeText(data))
	case "xlsx":
		res.Kind = KindTable
		res.Rows, err = extractWorkbook(data)
	case "xls":
		res.Kind = KindTable
		res.Rows, err = extractLegacyWorkbook(data)
	default:
		return res, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("Content extracted",
		zap.String("file_name", filename),
		zap.String("format", format),
		zap.Stringer("kind", res.Kind),
		zap.Int("text_length", len(res.Text)),
		zap.Int("rows", len(res.Rows)),
		zap.Int("skipped_rows", res.SkippedRows),
	)
	return res, nil
}

// ExtractFile extracts the file at path and removes it on every exit path.
func ExtractFile(path, filename, mediaType string) (*Result, error) {
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove upload temp file", zap.String("path", path), zap.Error(err))
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return Extract(data, filename, mediaType)
}

func failure(format string, err any) error {
	return fmt.Errorf("%w: %s: %v", ErrExtractionFailure, format, err)
}
