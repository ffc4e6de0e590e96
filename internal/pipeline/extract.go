package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"lessonmap/internal"
)

var ErrNoHeader = errors.New("input has no header row")

const utf8BOM = "\ufeff"

// ReadRows loads the input file and decodes it by extension.
func ReadRows(path string) ([]internal.Row, []byte, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, nil, err
	}
	rows, err := ParseTable(path, blob)
	if err != nil {
		return nil, blob, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return rows, blob, nil
}

func ParseTable(name string, blob []byte) ([]internal.Row, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return parseXLSX(blob)
	default:
		return parseCSV(bytes.NewReader(blob))
	}
}

func parseCSV(r io.Reader) ([]internal.Row, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	headers := normalizeHeaders(header)
	if len(headers) == 0 {
		return nil, ErrNoHeader
	}

	out := []internal.Row{}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				out = append(out, internal.Row{LineNo: perr.StartLine, Err: err})
				continue
			}
			return nil, err
		}
		line, _ := reader.FieldPos(0)
		out = append(out, internal.Row{LineNo: line, Values: rowValues(headers, record)})
	}
	return out, nil
}

func parseXLSX(content []byte) ([]internal.Row, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		var headers []string
		out := []internal.Row{}
		for i, row := range rows {
			if headers == nil {
				if isBlankRow(row) {
					continue
				}
				headers = normalizeHeaders(row)
				continue
			}
			if isBlankRow(row) {
				continue
			}
			out = append(out, internal.Row{LineNo: i + 1, Values: rowValues(headers, row)})
		}
		if headers != nil {
			return out, nil
		}
	}
	return nil, ErrNoHeader
}

func normalizeHeaders(cells []string) []string {
	out := make([]string, len(cells))
	nonEmpty := 0
	for i, c := range cells {
		c = strings.TrimSpace(strings.TrimPrefix(c, utf8BOM))
		out[i] = c
		if c != "" {
			nonEmpty++
		}
	}
	if nonEmpty == 0 {
		return nil
	}
	return out
}

func rowValues(headers, cells []string) map[string]string {
	values := make(map[string]string, len(headers))
	for i, h := range headers {
		if h == "" || i >= len(cells) {
			continue
		}
		if prev, ok := values[h]; ok && strings.TrimSpace(prev) != "" {
			continue
		}
		values[h] = cells[i]
	}
	return values
}

func isBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
