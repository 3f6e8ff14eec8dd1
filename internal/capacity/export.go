package capacity

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// Header is the fixed first row of an export.
func Header() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = c.Title()
	}
	return out
}

// WriteCSV writes the rows as shown, header first.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.Cells()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportFile writes the current view of t to path.
func ExportFile(path string, t *Table) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create export: %w", err)
	}
	rows := t.Rows()
	if err := WriteCSV(f, rows); err != nil {
		f.Close()
		return 0, fmt.Errorf("write export: %w", err)
	}
	return len(rows), f.Close()
}
