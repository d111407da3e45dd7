// Package interpolation resamples reconstructed volumes onto other coordinate
// grids, for example to subtract a homogeneous background scan that was taken
// with a different step size.
package interpolation

import (
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"

	"scanrecon/internal/models"
)

// ProgressCallback is a function that reports progress during interpolation
type ProgressCallback func(completed, total int, message string)

// Trilinear interpolates a volume sampled on a rectilinear grid.
type Trilinear struct {
	volume *models.Volume
	coords [3][]float64

	progressCallback ProgressCallback
}

// NewTrilinear creates an interpolator for a volume whose voxel (a, b, c) lies
// at (coords[0][a], coords[1][b], coords[2][c]). Coordinates must be strictly
// increasing along every axis.
func NewTrilinear(volume *models.Volume, coords [3][]float64) (*Trilinear, error) {
	for n := range coords {
		if len(coords[n]) != volume.Shape[n] {
			return nil, fmt.Errorf("axis %s has %d coordinates for %d voxels", volume.Axes[n], len(coords[n]), volume.Shape[n])
		}
		for i := 1; i < len(coords[n]); i++ {
			if coords[n][i] <= coords[n][i-1] {
				return nil, fmt.Errorf("coordinates of axis %s are not increasing", volume.Axes[n])
			}
		}
	}
	return &Trilinear{volume: volume, coords: coords}, nil
}

// SetProgressCallback sets a callback function for reporting resampling progress
func (t *Trilinear) SetProgressCallback(callback ProgressCallback) {
	t.progressCallback = callback
}

// At returns the interpolated value at point p. Points outside the grid are
// NaN. Neighbours with zero weight do not contribute, so a point on a grid
// node returns that node's value even when a neighbour is NaN.
func (t *Trilinear) At(p [3]float64) float64 {
	var lo, hi [3]int
	var frac [3]float64
	for n := range p {
		var ok bool
		lo[n], hi[n], frac[n], ok = bracket(t.coords[n], p[n])
		if !ok {
			return math.NaN()
		}
	}

	sum := 0.0
	for corner := 0; corner < 8; corner++ {
		var idx [3]int
		w := 1.0
		for n := 0; n < 3; n++ {
			if corner&(1<<n) == 0 {
				idx[n] = lo[n]
				w *= 1 - frac[n]
			} else {
				idx[n] = hi[n]
				w *= frac[n]
			}
		}
		if w == 0 {
			continue
		}
		sum += w * t.volume.At(idx[0], idx[1], idx[2])
	}
	return sum
}

// Resample evaluates the volume on a target grid. Planes along the first
// target axis are spread across the available CPU cores.
func (t *Trilinear) Resample(target [3][]float64) *models.Volume {
	shape := [3]int{len(target[0]), len(target[1]), len(target[2])}
	out := models.NewVolume(t.volume.Axes, shape)

	numCPU := runtime.NumCPU()
	t.reportProgress(0, shape[0], fmt.Sprintf("Resampling %v onto %v using %d cores", t.volume.Shape, shape, numCPU))

	planes := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex
	completed := 0
	for w := 0; w < numCPU; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for a := range planes {
				for b := 0; b < shape[1]; b++ {
					for c := 0; c < shape[2]; c++ {
						out.Set(a, b, c, t.At([3]float64{target[0][a], target[1][b], target[2][c]}))
					}
				}
				mu.Lock()
				completed++
				t.reportProgress(completed, shape[0], "")
				mu.Unlock()
			}
		}()
	}
	for a := 0; a < shape[0]; a++ {
		planes <- a
	}
	close(planes)
	wg.Wait()

	return out
}

func (t *Trilinear) reportProgress(completed, total int, message string) {
	if t.progressCallback != nil {
		t.progressCallback(completed, total, message)
	}
}

// bracket finds the grid nodes around x and the fractional position between
// them. A single node grid only contains its own coordinate.
func bracket(coords []float64, x float64) (lo, hi int, frac float64, ok bool) {
	n := len(coords)
	if n == 0 || math.IsNaN(x) || x < coords[0] || x > coords[n-1] {
		return 0, 0, 0, false
	}
	i := sort.SearchFloat64s(coords, x)
	if coords[i] == x {
		return i, i, 0, true
	}
	lo, hi = i-1, i
	return lo, hi, (x - coords[lo]) / (coords[hi] - coords[lo]), true
}
