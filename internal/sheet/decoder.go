// Package sheet reads uploaded spreadsheets into header-keyed rows and
// writes blank import templates.
package sheet

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/closeplan/internal/core"
)

// ctxCheckEvery is how many rows are converted between context checks.
var ctxCheckEvery = 500

// Decoder implements core.SheetDecoder for xlsx, xlsm and csv uploads.
type Decoder struct{}

// NewDecoder creates a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Format returns the lower-case extension of fileName if it is supported.
func Format(fileName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".xlsx", ".xlsm", ".csv":
		return ext, nil
	default:
		return "", fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, ext)
	}
}

// Decode reads the first worksheet (or the CSV body) of r. The first row is
// the header; every later row maps each header to its cell, "" when the
// row is shorter than the header.
func (d *Decoder) Decode(ctx context.Context, fileName string, r io.Reader) ([]core.RawRow, error) {
	ext, err := Format(fileName)
	if err != nil {
		return nil, err
	}

	var table [][]string
	if ext == ".csv" {
		table, err = readCSV(r)
	} else {
		table, err = readWorkbook(r)
	}
	if err != nil {
		return nil, err
	}

	return toRows(ctx, table)
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(NewUTF8Sanitizer(NewBOMSkippingReader(r)))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	table, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return table, nil
}

// readWorkbook returns the first sheet with raw cell values, so date cells
// arrive as Excel serials rather than in the workbook's display format.
func readWorkbook(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", core.ErrEmptyFile)
	}

	table, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return table, nil
}

func toRows(ctx context.Context, table [][]string) ([]core.RawRow, error) {
	if len(table) == 0 || isBlank(table[0]) {
		return nil, fmt.Errorf("%w: no header row", core.ErrEmptyFile)
	}
	header := table[0]

	rows := make([]core.RawRow, 0, len(table)-1)
	for i, cells := range table[1:] {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		row := make(core.RawRow, len(header))
		for col, name := range header {
			if strings.TrimSpace(name) == "" {
				continue
			}
			v := ""
			if col < len(cells) {
				v = cells[col]
			}
			// Repeated headers keep their first non-empty value.
			if prev, ok := row[name]; ok && prev != "" {
				continue
			}
			row[name] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
