// Package records reads the comma delimited, header-first record stream that
// the acquisition process appends one row per voxel per camera to.
//
// Columns are located by name, so column order is not part of the format.
package records

import (
	"fmt"
	"sort"
	"strings"

	"scanrecon/internal/models"
)

// Column names with special meaning in the record stream.
const (
	ImageNameColumn  = "imageName"
	PulseWidthColumn = "pulseWidth"

	// EnergyColumn is the signal energy of the sample beam ROI
	EnergyColumn = "roiFFTEnergy"
)

// cameraColumns are the camera identifier column names seen over time.
var cameraColumns = []string{"cameraID", "CameraID", "cameraSN"}

var timestampColumns = []string{"timestamp", "POSIXTime"}

// Layout caches the column position of every field of interest. It is
// resolved once from the header row.
type Layout struct {
	Columns []string

	// Camera, ImageName, Timestamp and PulseWidth are column positions, or -1
	// when the column is absent
	Camera     int
	ImageName  int
	Timestamp  int
	PulseWidth int

	// Axes maps every axis index column present to its position
	Axes map[models.AxisName]int

	index    map[string]int
	required map[int]bool
}

// IsHeader reports whether a row is a header row.
func IsHeader(row []string) bool {
	return len(row) > 0 && strings.TrimSpace(row[0]) == ImageNameColumn
}

// ParseHeader resolves the column layout from a header row. The camera
// identifier column is mandatory.
func ParseHeader(row []string) (*Layout, error) {
	l := &Layout{
		Columns:    make([]string, len(row)),
		Camera:     -1,
		ImageName:  -1,
		Timestamp:  -1,
		PulseWidth: -1,
		Axes:       make(map[models.AxisName]int),
		index:      make(map[string]int, len(row)),
		required:   make(map[int]bool),
	}
	for n, name := range row {
		name = strings.TrimSpace(name)
		l.Columns[n] = name
		if _, dup := l.index[name]; !dup {
			l.index[name] = n
		}
	}

	l.Camera = l.first(cameraColumns)
	if l.Camera < 0 {
		return nil, &models.ReconstructionError{Reason: fmt.Sprintf("header has no camera column (want one of %v)", cameraColumns)}
	}
	l.ImageName = l.first([]string{ImageNameColumn})
	l.Timestamp = l.first(timestampColumns)
	l.PulseWidth = l.first([]string{PulseWidthColumn})

	for _, a := range models.DeclarationOrder {
		if n, ok := l.index[string(a)]; ok {
			l.Axes[a] = n
		}
	}
	return l, nil
}

func (l *Layout) first(names []string) int {
	for _, name := range names {
		if n, ok := l.index[name]; ok {
			return n
		}
	}
	return -1
}

// Column returns the position of the named column.
func (l *Layout) Column(name string) (int, bool) {
	n, ok := l.index[name]
	return n, ok
}

// Has reports whether the named column is present.
func (l *Layout) Has(name string) bool {
	_, ok := l.index[name]
	return ok
}

// FirstPresent returns the first of names that is a column of the layout.
func (l *Layout) FirstPresent(names ...string) (string, bool) {
	for _, name := range names {
		if l.Has(name) {
			return name, true
		}
	}
	return "", false
}

// Require checks that every listed axis and channel column exists and marks
// the channels as required: a row whose required channel does not parse is
// malformed rather than coerced to NaN.
func (l *Layout) Require(axes []models.AxisName, channels []string) error {
	var missing []string
	for _, a := range axes {
		if _, ok := l.Axes[a]; !ok {
			missing = append(missing, string(a))
		}
	}
	for _, c := range channels {
		n, ok := l.index[c]
		if !ok {
			missing = append(missing, c)
			continue
		}
		l.required[n] = true
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &models.ReconstructionError{Reason: fmt.Sprintf("header is missing columns %v", missing)}
	}
	return nil
}

// RequireTimeSeries checks the columns needed by a time series display and
// marks the timestamp as required.
func (l *Layout) RequireTimeSeries(channel string) error {
	var missing []string
	if l.Timestamp < 0 {
		missing = append(missing, timestampColumns[0])
	} else {
		l.required[l.Timestamp] = true
	}
	if l.PulseWidth < 0 {
		missing = append(missing, PulseWidthColumn)
	}
	if err := l.Require(nil, []string{channel}); err != nil {
		missing = append(missing, channel)
	}
	if len(missing) > 0 {
		return &models.ReconstructionError{Reason: fmt.Sprintf("header is missing columns %v", missing)}
	}
	return nil
}
