package reconstruction

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"scanrecon/internal/models"
)

// VolumeGrid holds the physical coordinates of the three axes of a
// reconstructed volume.
type VolumeGrid struct {
	// Axes names the scan axis behind each dimension
	Axes [3]models.AxisName

	// Coords holds the coordinate of every index along each axis
	Coords [3][]float64
}

// NewVolumeGrid builds the coordinate grid for three axes. Each axis gets
// shape[n] evenly spaced coordinates from its Min to its Max; the step size
// is not used so that rounding in the step does not shift the end points.
//
// A shape larger than the metadata count (records beyond the declared
// extent) continues past Max with the declared step size.
func NewVolumeGrid(specs [3]models.AxisSpec, shape [3]int) (*VolumeGrid, error) {
	g := &VolumeGrid{}
	for n, spec := range specs {
		if shape[n] < 1 {
			return nil, &models.ConfigurationError{Reason: fmt.Sprintf("axis %s has empty shape", spec.Name)}
		}
		g.Axes[n] = spec.Name
		g.Coords[n] = Coordinates(spec, shape[n])
	}
	return g, nil
}

// Coordinates returns size coordinates along one axis, the first spec.Count
// of them spanning [Min, Max] exactly.
func Coordinates(spec models.AxisSpec, size int) []float64 {
	coords := make([]float64, size)
	count := spec.Count
	if count > size {
		count = size
	}
	switch {
	case count <= 1:
		coords[0] = spec.Min
	default:
		floats.Span(coords[:count], spec.Min, spec.Max)
		coords[count-1] = spec.Max
	}
	for n := count; n < size; n++ {
		coords[n] = coords[count-1] + float64(n-count+1)*spec.StepSize
	}
	return coords
}

// Region returns the grid of the sub-volume starting at start with the given
// size. Bounds are not checked; callers crop the volume first.
func (g *VolumeGrid) Region(start, size [3]int) *VolumeGrid {
	r := &VolumeGrid{Axes: g.Axes}
	for n := range r.Coords {
		r.Coords[n] = append([]float64(nil), g.Coords[n][start[n]:start[n]+size[n]]...)
	}
	return r
}

// Shape returns the number of coordinates along each axis.
func (g *VolumeGrid) Shape() [3]int {
	return [3]int{len(g.Coords[0]), len(g.Coords[1]), len(g.Coords[2])}
}

// At returns the physical position of voxel (a, b, c).
func (g *VolumeGrid) At(a, b, c int) [3]float64 {
	return [3]float64{g.Coords[0][a], g.Coords[1][b], g.Coords[2][c]}
}

// Labels returns the physical coordinate label of each axis.
func (g *VolumeGrid) Labels() [3]string {
	return [3]string{g.Axes[0].Label(), g.Axes[1].Label(), g.Axes[2].Label()}
}

// Dimension returns the position of axis a in the grid.
func (g *VolumeGrid) Dimension(a models.AxisName) (int, bool) {
	for n, v := range g.Axes {
		if v == a {
			return n, true
		}
	}
	return -1, false
}
