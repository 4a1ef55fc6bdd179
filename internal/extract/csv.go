package extract

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/docchat/backend/pkg/logger"
)

// delimiterPriority is the tie-break order for delimiter detection.
var delimiterPriority = []rune{';', ',', '\t', '|'}

const delimiterSampleLines = 10

// detectDelimiter picks the first delimiter, in priority order, that occurs
// in the header line and splits most sampled lines into the same number of
// fields. Without a consistent candidate it takes the one most frequent in
// the header, and comma when none occurs at all.
func detectDelimiter(text string) rune {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == delimiterSampleLines {
			break
		}
	}
	if len(lines) == 0 {
		return ','
	}

	header := lines[0]
	best, bestCount := ',', 0
	for _, d := range delimiterPriority {
		n := strings.Count(header, string(d))
		if n == 0 {
			continue
		}
		consistent := 0
		for _, line := range lines[1:] {
			if strings.Count(line, string(d)) == n {
				consistent++
			}
		}
		if len(lines) == 1 || consistent*2 >= len(lines)-1 {
			return d
		}
		if n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

// parseCSV returns the data rows keyed by the header record and the number of
// malformed records skipped. A quote left open on one line would otherwise
// swallow every following line into a single field, so such a record is
// dropped and parsing resumes on the next physical line.
func parseCSV(text string) ([]Row, int) {
	comma := detectDelimiter(text)

	var headers []string
	var rows []Row
	skipped := 0

	for rest := text; rest != ""; {
		r := newCSVReader(rest, comma)
		resume := ""

		for {
			start := r.InputOffset()
			record, err := r.Read()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				var parseErr *csv.ParseError
				if errors.As(err, &parseErr) {
					skipped++
					logger.Debug("Skipping malformed CSV row", zap.Int("line", parseErr.Line), zap.Error(err))
					continue
				}
				logger.Warn("CSV read aborted", zap.Error(err))
				break
			}

			if raw := rest[start:r.InputOffset()]; unterminatedQuote(raw, comma) {
				skipped++
				first, after, _ := strings.Cut(strings.TrimLeft(rest[start:], "\n"), "\n")
				logger.Debug("Skipping CSV row with unterminated quote", zap.String("row", first))
				resume = after
				break
			}

			if blank(record) {
				continue
			}
			if headers == nil {
				headers = normalizeHeaders(record)
				continue
			}
			rows = append(rows, rowFromCells(headers, record))
		}

		rest = resume
	}

	if skipped > 0 {
		logger.Warn("CSV rows skipped", zap.Int("skipped", skipped), zap.Int("rows", len(rows)))
	}
	return rows, skipped
}

func newCSVReader(text string, comma rune) *csv.Reader {
	r := csv.NewReader(strings.NewReader(text))
	r.Comma = comma
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	return r
}

// unterminatedQuote reports whether raw, one record as read leniently, spans
// several lines only because a quoted field was never closed.
func unterminatedQuote(raw string, comma rune) bool {
	if !strings.Contains(strings.TrimRight(raw, "\n"), "\n") {
		return false
	}
	r := csv.NewReader(strings.NewReader(raw))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	_, err := r.Read()
	return errors.Is(err, csv.ErrQuote)
}
