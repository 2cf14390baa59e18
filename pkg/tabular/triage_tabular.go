// Package tabular reads uploaded ticket files into ordered rows of
// column-name → value maps.
package tabular

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Supported file formats.
const (
	FormatCSV  = ".csv"
	FormatXLSX = ".xlsx"
	FormatText = ".txt"
)

// ErrUnsupportedFormat is returned for file extensions with no reader.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Record is one row keyed by column name.
type Record = map[string]string

// ReadFile picks a reader from the extension of name.
func ReadFile(name string, r io.Reader) ([]Record, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case FormatCSV:
		return ReadCSV(r)
	case FormatXLSX:
		return ReadXLSX(r)
	case FormatText:
		return ReadFlatText(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Supported reports whether name has an extension ReadFile accepts.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case FormatCSV, FormatXLSX, FormatText:
		return true
	}
	return false
}

// decodeUTF8 strips a leading byte order mark and replaces invalid UTF-8.
func decodeUTF8(r io.Reader) io.Reader {
	return transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
}

// ReadCSV reads a CSV file whose first row is the header. Short rows leave
// their missing columns empty; fully blank rows are skipped.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(decodeUTF8(r))
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return fromRows(rows), nil
}

// ReadXLSX reads the first sheet of a workbook whose first row is the header.
func ReadXLSX(r io.Reader) ([]Record, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return fromRows(rows), nil
}

func fromRows(rows [][]string) []Record {
	if len(rows) == 0 {
		return nil
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	records := make([]Record, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		rec := make(Record, len(header))
		for i, col := range header {
			if col == "" {
				continue
			}
			if i < len(row) {
				rec[col] = strings.TrimSpace(row[i])
			} else {
				rec[col] = ""
			}
		}
		records = append(records, rec)
	}
	return records
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ReadFlatText reads "key: value" records separated by dash lines.
//
// A line of three or more dashes closes the current record. Lines with a
// colon are split on the first colon. A colon-less line continues the
// Description of the current record, joined with a single space. Empty
// records are dropped.
func ReadFlatText(r io.Reader) ([]Record, error) {
	var (
		records []Record
		current = Record{}
	)
	flush := func() {
		if len(current) > 0 {
			records = append(records, current)
			current = Record{}
		}
	}

	scanner := bufio.NewScanner(decodeUTF8(r))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case isSeparator(line):
			flush()
		case strings.Contains(line, ":"):
			key, value, _ := strings.Cut(line, ":")
			current[strings.TrimSpace(key)] = strings.TrimSpace(value)
		case line == "":
		default:
			if desc, ok := current["Description"]; ok {
				current["Description"] = desc + " " + line
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	flush()
	return records, nil
}

// isSeparator matches a trimmed line of three or more dashes. A line like
// that inside a Description closes the record.
func isSeparator(line string) bool {
	return len(line) >= 3 && strings.Trim(line, "-") == ""
}
