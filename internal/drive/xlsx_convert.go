package drive

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// convertXLSXToCSV writes the first sheet of an XLSX file as CSV. Rows are
// streamed so large exports do not load into memory at once.
func convertXLSXToCSV(xlsxPath, csvPath string) error {
	f, err := excelize.OpenFile(xlsxPath)
	if err != nil {
		return fmt.Errorf("failed to open xlsx file %s: %w", xlsxPath, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return fmt.Errorf("xlsx file %s has no sheets", xlsxPath)
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return fmt.Errorf("failed to read rows from sheet %s: %w", sheets[0], err)
	}
	defer rows.Close()

	tmp, err := os.CreateTemp(filepath.Dir(csvPath), ".convert-*")
	if err != nil {
		return fmt.Errorf("failed to create csv file for %s: %w", csvPath, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	width := 0
	for rows.Next() {
		record, err := rows.Columns()
		if err != nil {
			tmp.Close()
			return fmt.Errorf("failed to read row from %s: %w", xlsxPath, err)
		}
		// trailing empty cells are dropped by excelize; pad to the header width
		if width == 0 {
			width = len(record)
		}
		for len(record) < width {
			record = append(record, "")
		}
		if err := w.Write(record); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write csv row to %s: %w", csvPath, err)
		}
	}
	w.Flush()

	if err := rows.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("error iterating rows in %s: %w", xlsxPath, err)
	}
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush csv %s: %w", csvPath, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), csvPath)
}
