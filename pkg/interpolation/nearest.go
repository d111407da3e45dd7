package interpolation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"

	"scanrecon/internal/models"
)

// Point3D is a voxel position in physical coordinates together with its
// flat index in the volume.
type Point3D struct {
	X, Y, Z float64
	Index   int
}

// Compare implements the kdtree.Comparable interface
func (p Point3D) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(Point3D)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	case 2:
		return p.Z - q.Z
	default:
		panic("illegal dimension")
	}
}

// Dims returns the number of dimensions for the KD-tree
func (p Point3D) Dims() int { return 3 }

// Distance returns the squared Euclidean distance between two points
func (p Point3D) Distance(c kdtree.Comparable) float64 {
	q := c.(Point3D)
	dx := p.X - q.X
	dy := p.Y - q.Y
	dz := p.Z - q.Z
	return dx*dx + dy*dy + dz*dz
}

// Points3D is a collection of Point3D that satisfies kdtree.Interface
type Points3D []Point3D

func (p Points3D) Index(i int) kdtree.Comparable         { return p[i] }
func (p Points3D) Len() int                              { return len(p) }
func (p Points3D) Slice(start, end int) kdtree.Interface { return p[start:end] }

// Pivot implements the kdtree.Interface method
func (p Points3D) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(pointPlane{Points3D: p, Dim: d}, kdtree.MedianOfRandoms(pointPlane{Points3D: p, Dim: d}, 100))
}

// pointPlane implements sort.Interface and kdtree.SortSlicer for Points3D
type pointPlane struct {
	Points3D
	kdtree.Dim
}

func (p pointPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.Points3D[i].X < p.Points3D[j].X
	case 1:
		return p.Points3D[i].Y < p.Points3D[j].Y
	case 2:
		return p.Points3D[i].Z < p.Points3D[j].Z
	default:
		panic("illegal dimension")
	}
}

func (p pointPlane) Slice(start, end int) kdtree.SortSlicer {
	return pointPlane{Points3D: p.Points3D[start:end], Dim: p.Dim}
}

func (p pointPlane) Swap(i, j int) {
	p.Points3D[i], p.Points3D[j] = p.Points3D[j], p.Points3D[i]
}

// FillNearest returns a copy of volume where every NaN voxel takes the value
// of the nearest finite voxel in physical space. It also returns the number
// of voxels filled. A volume without finite voxels is returned unchanged.
func FillNearest(volume *models.Volume, coords [3][]float64) (*models.Volume, int, error) {
	for n := range coords {
		if len(coords[n]) != volume.Shape[n] {
			return nil, 0, fmt.Errorf("axis %s has %d coordinates for %d voxels", volume.Axes[n], len(coords[n]), volume.Shape[n])
		}
	}

	var finite Points3D
	var holes []Point3D
	for a := 0; a < volume.Shape[0]; a++ {
		for b := 0; b < volume.Shape[1]; b++ {
			for c := 0; c < volume.Shape[2]; c++ {
				idx, _ := volume.Offset(a, b, c)
				p := Point3D{X: coords[0][a], Y: coords[1][b], Z: coords[2][c], Index: idx}
				if math.IsNaN(volume.Data[idx]) {
					holes = append(holes, p)
				} else {
					finite = append(finite, p)
				}
			}
		}
	}

	out := volume.Clone()
	if len(holes) == 0 || len(finite) == 0 {
		return out, 0, nil
	}

	tree := kdtree.New(finite, false)
	for _, h := range holes {
		nearest, _ := tree.Nearest(h)
		out.Data[h.Index] = volume.Data[nearest.(Point3D).Index]
	}
	return out, len(holes), nil
}
