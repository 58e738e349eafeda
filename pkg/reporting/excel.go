package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const paramsSheet = "Parameters"

// writeTableXLSX writes a header plus rows to a single-sheet workbook
// with a bold header row.
func writeTableXLSX(path string, header []string, rows [][]string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	fx.SetSheetName(fx.GetSheetName(0), paramsSheet)

	headerStyle, err := fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return err
	}

	for col, name := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := fx.SetCellValue(paramsSheet, cell, name); err != nil {
			return err
		}
		if err := fx.SetCellStyle(paramsSheet, cell, cell, headerStyle); err != nil {
			return err
		}
	}
	for r, row := range rows {
		for c, val := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return err
			}
			if err := fx.SetCellValue(paramsSheet, cell, val); err != nil {
				return err
			}
		}
	}

	return fx.SaveAs(path)
}

// readTableXLSX reads back the first sheet as header plus rows.
func readTableXLSX(path string) ([]string, [][]string, error) {
	fx, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer fx.Close()

	rows, err := fx.GetRows(fx.GetSheetName(0))
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: %s is empty", ErrBadSchema, path)
	}
	return rows[0], rows[1:], nil
}
