package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Write serialises the workbook as xlsx. Each sheet gets a bold header row
// followed by its data rows.
func (w *Workbook) Write(out io.Writer) error {
	f, err := w.render()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// Save writes the workbook into dir under w.Name and returns the full path.
// The file is written to a temp file first and renamed into place.
func (w *Workbook) Save(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	path := filepath.Join(dir, safeFileName(w.Name))
	tmp := path + ".tmp"

	file, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	if err := w.Write(file); err != nil {
		file.Close()
		os.Remove(tmp)
		return "", err
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to close export file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to save export file: %w", err)
	}
	return path, nil
}

func (w *Workbook) render() (*excelize.File, error) {
	if len(w.Sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	f := excelize.NewFile()
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, sheet := range w.Sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet.Name); err != nil {
				f.Close()
				return nil, fmt.Errorf("sheet %q: %w", sheet.Name, err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %q: %w", sheet.Name, err)
		}

		if err := writeSheet(f, sheet, bold); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %q: %w", sheet.Name, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSheet(f *excelize.File, sheet Sheet, headerStyle int) error {
	header := make([]any, len(sheet.Columns))
	for i, c := range sheet.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheet.Name, "A1", &header); err != nil {
		return err
	}
	if len(sheet.Columns) > 0 {
		last, err := excelize.CoordinatesToCellName(len(sheet.Columns), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet.Name, "A1", last, headerStyle); err != nil {
			return err
		}
	}

	for r, row := range sheet.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet.Name, cell, &values); err != nil {
			return err
		}
	}

	for i, c := range sheet.Columns {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet.Name, col, col, columnWidth(c, sheet.Rows, i)); err != nil {
			return err
		}
	}
	return nil
}

// columnWidth sizes a column to its longest cell, capped at 60 characters.
func columnWidth(header string, rows [][]any, col int) float64 {
	width := len(header)
	for _, row := range rows {
		if col < len(row) {
			if n := len(fmt.Sprint(row[col])); n > width {
				width = n
			}
		}
	}
	if width > 60 {
		width = 60
	}
	return float64(width + 2)
}

func safeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
}
