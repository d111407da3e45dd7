package models

import "math"

// Volume is a dense 3D intensity volume over three selected scan axes.
type Volume struct {
	// Data holds the voxel values in row-major order with the last axis
	// varying fastest: Data[(a*Shape[1]+b)*Shape[2]+c]
	Data []float64

	// Shape is the number of voxels along each selected axis
	Shape [3]int

	// Axes names the scan axis behind each dimension
	Axes [3]AxisName
}

// NewVolume allocates a zero-filled volume.
func NewVolume(axes [3]AxisName, shape [3]int) *Volume {
	return &Volume{
		Data:  make([]float64, shape[0]*shape[1]*shape[2]),
		Shape: shape,
		Axes:  axes,
	}
}

// Len returns the number of voxels.
func (v *Volume) Len() int {
	return v.Shape[0] * v.Shape[1] * v.Shape[2]
}

// Offset returns the flat index of voxel (a, b, c) and whether it lies inside
// the volume.
func (v *Volume) Offset(a, b, c int) (int, bool) {
	if a < 0 || b < 0 || c < 0 || a >= v.Shape[0] || b >= v.Shape[1] || c >= v.Shape[2] {
		return 0, false
	}
	return (a*v.Shape[1]+b)*v.Shape[2] + c, true
}

// At returns the value at voxel (a, b, c), or NaN outside the volume.
func (v *Volume) At(a, b, c int) float64 {
	idx, ok := v.Offset(a, b, c)
	if !ok {
		return math.NaN()
	}
	return v.Data[idx]
}

// Set writes the value at voxel (a, b, c). Writes outside the volume are
// reported as false and dropped.
func (v *Volume) Set(a, b, c int, value float64) bool {
	idx, ok := v.Offset(a, b, c)
	if !ok {
		return false
	}
	v.Data[idx] = value
	return true
}

// Clone returns a deep copy.
func (v *Volume) Clone() *Volume {
	out := &Volume{Shape: v.Shape, Axes: v.Axes, Data: make([]float64, len(v.Data))}
	copy(out.Data, v.Data)
	return out
}
