package records

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"scanrecon/internal/models"
)

// ParseRow converts one data row into a Record. line is the 1-based line
// number used in error messages; seq is the arrival position stored on the
// record.
//
// Rows with the wrong number of fields, an unparseable camera or axis index,
// or an unparseable required channel or timestamp fail with
// *models.MalformedRecordError.
// Other non-numeric channel cells become NaN.
func (l *Layout) ParseRow(row []string, line, seq int) (models.Record, error) {
	if len(row) != len(l.Columns) {
		return models.Record{}, &models.MalformedRecordError{
			Line:   line,
			Reason: fmt.Sprintf("expected %d fields, got %d", len(l.Columns), len(row)),
		}
	}

	rec := models.Record{
		Indices: make(map[models.AxisName]int, len(l.Axes)),
		Values:  make(map[string]float64),
		Seq:     seq,
	}

	cam, err := NormalizeCameraID(row[l.Camera])
	if err != nil {
		return models.Record{}, &models.MalformedRecordError{Line: line, Reason: err.Error()}
	}
	rec.CameraID = cam

	if l.ImageName >= 0 {
		rec.ImageName = strings.TrimSpace(row[l.ImageName])
	}
	if l.PulseWidth >= 0 {
		rec.PulseWidth = strings.TrimSpace(row[l.PulseWidth])
	}
	if l.Timestamp >= 0 {
		ts, err := parseFloat(row[l.Timestamp])
		switch {
		case err == nil:
			rec.Timestamp = ts
		case l.required[l.Timestamp]:
			return models.Record{}, &models.MalformedRecordError{
				Line:   line,
				Reason: fmt.Sprintf("timestamp: %v", err),
			}
		}
	}

	for a, n := range l.Axes {
		idx, err := parseIndex(row[n])
		if err != nil {
			return models.Record{}, &models.MalformedRecordError{
				Line:   line,
				Reason: fmt.Sprintf("axis %s: %v", a, err),
			}
		}
		rec.Indices[a] = idx
	}

	for n, name := range l.Columns {
		if n == l.Camera || n == l.ImageName || n == l.PulseWidth {
			continue
		}
		if _, isAxis := l.Axes[models.AxisName(name)]; isAxis {
			continue
		}
		v, err := parseFloat(row[n])
		if err != nil {
			if l.required[n] {
				return models.Record{}, &models.MalformedRecordError{
					Line:   line,
					Reason: fmt.Sprintf("column %s: %v", name, err),
				}
			}
			v = math.NaN()
		}
		rec.Values[name] = v
	}

	return rec, nil
}

// NormalizeCameraID canonicalizes a camera identifier cell. Integral numbers
// written as floats ("201.0") map to their integer form.
func NormalizeCameraID(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty camera id")
	}
	if _, err := strconv.Atoi(s); err == nil {
		return s, nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f != math.Trunc(f) || math.IsInf(f, 0) {
			return "", fmt.Errorf("camera id %q is not integral", s)
		}
		return strconv.FormatInt(int64(f), 10), nil
	}
	return s, nil
}

func parseIndex(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("index %q is not an integer", s)
	}
	return int(f), nil
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}
