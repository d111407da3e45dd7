package monitor

import (
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Frame is one display image of one camera.
type Frame struct {
	Camera string

	// Plane is the plane index of the image: the current plane in image
	// mode, the slice index in slices mode
	Plane int

	Width  int
	Height int

	// Raw holds the last value written per pixel, row-major by vertical index
	Raw []float64

	// Normalized is Raw rescaled with the camera's Min and Max to [0, 1]
	Normalized []float64

	// Min and Max are the extremes of every value the camera produced
	Min, Max float64
}

// At returns the raw value of pixel (h, v).
func (f Frame) At(h, v int) float64 {
	return f.Raw[v*f.Width+h]
}

// Series is the time graph of one camera at one pulse width.
type Series struct {
	Camera     string
	PulseWidth string
	Times      []float64
	Values     []float64
	Min, Max   float64
	Mean       float64
}

// Snapshot is a read-only copy of the monitor state, published once per
// pass. Nothing in a snapshot is shared with the live buffers.
type Snapshot struct {
	Session string
	Taken   time.Time
	State   State
	Mode    Mode
	Display Display

	// Records counts the records applied in this session
	Records int

	// Progress estimates completion as records per camera over the expected
	// voxel count, capped at 1
	Progress float64

	Frames   []Frame
	Series   []Series
	Warnings []string
}

// Frame returns the frame of a camera at a plane.
func (s *Snapshot) Frame(camera string, plane int) (Frame, bool) {
	for _, f := range s.Frames {
		if f.Camera == camera && f.Plane == plane {
			return f, true
		}
	}
	return Frame{}, false
}

// Sink receives every published snapshot.
type Sink interface {
	Update(s *Snapshot) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(s *Snapshot) error

func (f SinkFunc) Update(s *Snapshot) error { return f(s) }

// Normalize rescales values linearly so that min maps to 0 and max to 1. When
// min equals max the values are only shifted.
func Normalize(values []float64, min, max float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	norm := max - min
	if norm == 0 {
		norm = 1
	}
	floats.AddConst(-min, out)
	floats.Scale(1/norm, out)
	return out
}

// extremes tracks the running min and max of the finite values seen.
type extremes struct {
	min, max float64
	seen     bool
}

func (e *extremes) add(v float64) {
	if math.IsNaN(v) {
		return
	}
	if !e.seen {
		e.min, e.max, e.seen = v, v, true
		return
	}
	if v < e.min {
		e.min = v
	}
	if v > e.max {
		e.max = v
	}
}

func seriesMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}
