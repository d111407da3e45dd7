package catalog

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

// ExportCSV writes the scan list newest first as a CSV table with one row
// per scan. The metadata document is left out.
func (c *Catalog) ExportCSV(ctx context.Context, w io.Writer) error {
	scans, err := c.Scans(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"scan_name", "scan_system", "path", "time_folder", "has_report", "schema", "voxels", "is_curated"}); err != nil {
		return err
	}
	for _, s := range scans {
		var t string
		if s.Time != nil {
			t = s.Time.Format(time.DateTime)
		}
		row := []string{
			s.Name,
			s.System,
			s.Path,
			t,
			strconv.FormatBool(s.HasReport),
			s.Schema,
			strconv.Itoa(s.Voxels),
			strconv.FormatBool(s.IsCurated),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
