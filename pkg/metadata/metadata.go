// Package metadata reads the scan metadata document written next to every
// scan and normalizes it into per-axis extents, camera lists and beam roles.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"

	"scanrecon/internal/models"
)

// SampleRole is the beam role of the camera that images the sample.
const SampleRole = "sample"

// ScanMetadata is the immutable description of one scan.
type ScanMetadata struct {
	// Schema is the key layout generation the document used
	Schema SchemaKind

	// Axes holds every axis the document declares
	Axes map[models.AxisName]models.AxisSpec

	// CameraIDs lists the cameras (beams) recorded during the scan
	CameraIDs []string

	// CameraRoles maps camera id to its physical role ("sample", "reference", ...)
	CameraRoles map[string]string

	// PulseWidths lists the exposure width labels of a multi-exposure scan
	PulseWidths []string

	// NumImages is the number of images per camera in a time series scan
	NumImages int

	LocalScanDataDir  string
	SyncedScanDataDir string
}

// Load reads and parses a metadata document.
func Load(path string) (*ScanMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &models.ConfigurationError{Reason: "error reading scan metadata", Err: err}
	}
	return Parse(data)
}

// Parse normalizes a metadata document.
func Parse(data []byte) (*ScanMetadata, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &models.ConfigurationError{Reason: "error parsing scan metadata", Err: err}
	}

	schema, err := DetectSchema(doc)
	if err != nil {
		return nil, err
	}
	axes, err := schema.Extract(doc)
	if err != nil {
		return nil, err
	}

	meta := &ScanMetadata{
		Schema:      schema.Kind(),
		Axes:        axes,
		CameraRoles: make(map[string]string),
	}

	cams := doc.group("cameraParameters")
	meta.CameraIDs = cameraIDs(cams["cameraIDNumbers"])
	for id, role := range cams.group("cameraLocations") {
		meta.CameraRoles[id] = fmt.Sprint(role)
	}
	if n, err := cams.float("numImages"); err == nil {
		meta.NumImages = int(n)
	}

	if widths, ok := doc.group("delayParameters")["pulseWidths_s"].([]interface{}); ok {
		for _, w := range widths {
			meta.PulseWidths = append(meta.PulseWidths, fmt.Sprint(w))
		}
	}

	files := doc.group("fileParameters")
	meta.LocalScanDataDir, _ = files["localScanDataDir"].(string)
	meta.SyncedScanDataDir, _ = files["syncedScanDataDir"].(string)

	return meta, nil
}

// cameraIDs accepts either a list of ids or a mapping keyed by id.
func cameraIDs(v interface{}) []string {
	var ids []string
	switch t := v.(type) {
	case []interface{}:
		for _, id := range t {
			ids = append(ids, formatID(id))
		}
		return ids
	case map[string]interface{}:
		for id := range t {
			ids = append(ids, id)
		}
	default:
		return nil
	}
	sort.Slice(ids, func(a, b int) bool {
		na, errA := strconv.Atoi(ids[a])
		nb, errB := strconv.Atoi(ids[b])
		if errA == nil && errB == nil {
			return na < nb
		}
		return ids[a] < ids[b]
	})
	return ids
}

func formatID(v interface{}) string {
	if f, ok := v.(float64); ok && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return fmt.Sprint(v)
}

// Axis returns the spec for axis a.
func (m *ScanMetadata) Axis(a models.AxisName) (models.AxisSpec, bool) {
	s, ok := m.Axes[a]
	return s, ok
}

// Count returns the number of positions along axis a. Axes the document does
// not declare did not vary and count as 1.
func (m *ScanMetadata) Count(a models.AxisName) int {
	if s, ok := m.Axes[a]; ok {
		return s.Count
	}
	return 1
}

// Declared returns the axes present in the document in declaration order.
func (m *ScanMetadata) Declared() []models.AxisName {
	var out []models.AxisName
	for _, a := range models.DeclarationOrder {
		if _, ok := m.Axes[a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// TotalVoxels is the product of every axis count.
func (m *ScanMetadata) TotalVoxels() int {
	total := 1
	for _, s := range m.Axes {
		total *= s.Count
	}
	return total
}

// HasRoles reports whether the document maps cameras to beam roles.
func (m *ScanMetadata) HasRoles() bool {
	return len(m.CameraRoles) > 0
}

// document is a decoded JSON object with typed accessors.
type document map[string]interface{}

func (d document) has(key string) bool {
	_, ok := d[key]
	return ok
}

func (d document) group(key string) document {
	if g, ok := d[key].(map[string]interface{}); ok {
		return document(g)
	}
	return document{}
}

func (d document) float(key string) (float64, error) {
	v, ok := d[key]
	if !ok {
		return 0, &models.ConfigurationError{Reason: fmt.Sprintf("missing metadata key %q", key)}
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, &models.ConfigurationError{Reason: fmt.Sprintf("metadata key %q is not numeric", key), Err: err}
		}
		return f, nil
	}
	return 0, &models.ConfigurationError{Reason: fmt.Sprintf("metadata key %q has type %T", key, v)}
}
