package sheet

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/closeplan/internal/core"
)

// templateSheet names the single worksheet of a generated template.
const templateSheet = "Import"

// WriteTemplate writes an xlsx workbook whose first row holds p's headers.
// Picklist columns get a dropdown of the allowed values.
func WriteTemplate(w io.Writer, p *core.Profile) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", templateSheet); err != nil {
		return fmt.Errorf("write template: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("write template: %w", err)
	}

	for i, col := range p.Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("write template: %w", err)
		}
		if err := f.SetCellValue(templateSheet, cell, col.Header); err != nil {
			return fmt.Errorf("write template: %w", err)
		}
		if err := f.SetCellStyle(templateSheet, cell, cell, bold); err != nil {
			return fmt.Errorf("write template: %w", err)
		}

		if col.Kind == core.KindPicklist {
			if err := addDropdown(f, i+1, p.Allowed(col.Field)); err != nil {
				return fmt.Errorf("write template: %s: %w", col.Header, err)
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}

// dropdownRows is how many data rows a picklist dropdown covers.
var dropdownRows = 1000

func addDropdown(f *excelize.File, col int, values []string) error {
	if len(values) == 0 {
		return nil
	}
	first, err := excelize.CoordinatesToCellName(col, 2)
	if err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(col, dropdownRows+1)
	if err != nil {
		return err
	}

	dv := excelize.NewDataValidation(true)
	dv.Sqref = first + ":" + last
	if err := dv.SetDropList(values); err != nil {
		// Long catalogues do not fit in an inline list; leave the column free-form.
		if errors.Is(err, excelize.ErrDataValidationFormulaLength) {
			return nil
		}
		return err
	}
	return f.AddDataValidation(templateSheet, dv)
}
