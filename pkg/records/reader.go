package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"scanrecon/internal/models"
)

// Stream is a fully read record file.
type Stream struct {
	Layout  *Layout
	Records []models.Record

	// Skipped holds one *models.MalformedRecordError per row that was dropped
	Skipped []error
}

// newCSVReader configures a reader for record rows: variable field counts are
// reported by ParseRow rather than by the csv package.
func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true
	return cr
}

// Read parses a complete record stream. The first non-empty row must be the
// header. Repeated header rows are skipped; malformed rows are collected in
// Stream.Skipped.
func Read(r io.Reader) (*Stream, error) {
	cr := newCSVReader(r)
	s := &Stream{}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				s.Skipped = append(s.Skipped, &models.MalformedRecordError{Line: perr.Line, Reason: perr.Err.Error()})
				continue
			}
			return nil, &models.ReconstructionError{Reason: "error reading record stream", Err: err}
		}
		if isBlank(row) {
			continue
		}
		line, _ := cr.FieldPos(0)

		if s.Layout == nil {
			if !IsHeader(row) {
				return nil, &models.ReconstructionError{Reason: fmt.Sprintf("first row does not start with %q", ImageNameColumn)}
			}
			if s.Layout, err = ParseHeader(row); err != nil {
				return nil, err
			}
			continue
		}
		if IsHeader(row) {
			continue
		}

		rec, err := s.Layout.ParseRow(row, line, len(s.Records))
		if err != nil {
			s.Skipped = append(s.Skipped, err)
			continue
		}
		s.Records = append(s.Records, rec)
	}

	if s.Layout == nil {
		return nil, &models.ReconstructionError{Reason: "record stream is empty"}
	}
	return s, nil
}

// ReadFile reads a complete record file.
func ReadFile(path string) (*Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &models.ReconstructionError{Reason: "error opening record file", Err: err}
	}
	defer f.Close()
	return Read(f)
}

// SplitRow splits a single line of the record stream into fields.
func SplitRow(line string) ([]string, error) {
	cr := newCSVReader(strings.NewReader(line))
	row, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	return row, err
}

// Filter returns the records whose named value equals want. The column may be
// a channel, an axis index or the camera column.
func Filter(recs []models.Record, column string, want float64) []models.Record {
	var out []models.Record
	for _, r := range recs {
		var v float64
		var ok bool
		switch {
		case models.AxisName(column).Valid():
			var idx int
			idx, ok = r.Indices[models.AxisName(column)]
			v = float64(idx)
		case contains(cameraColumns, column):
			_, err := fmt.Sscan(r.CameraID, &v)
			ok = err == nil
		default:
			v, ok = r.Values[column]
		}
		if ok && v == want {
			out = append(out, r)
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
