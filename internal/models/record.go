package models

// Record is one measurement event from the record stream.
type Record struct {
	// ImageName is the name of the hologram image the record was computed from
	ImageName string

	// CameraID identifies the camera (optical path) that produced the record
	CameraID string

	// Timestamp is the acquisition time column, if present
	Timestamp float64

	// PulseWidth is the exposure width label used by multi-exposure scans
	PulseWidth string

	// Indices holds the integer index of every axis column present in the stream
	Indices map[AxisName]int

	// Values holds the scalar channel values keyed by column name
	Values map[string]float64

	// Seq is the arrival position of the record in its stream. Later records
	// supersede earlier ones for the same voxel and camera.
	Seq int
}

// Index returns the record's index along axis a, or 0 when the column was
// absent from the stream.
func (r Record) Index(a AxisName) int {
	return r.Indices[a]
}

// Value returns the value of channel name and whether it was present.
func (r Record) Value(name string) (float64, bool) {
	v, ok := r.Values[name]
	return v, ok
}
