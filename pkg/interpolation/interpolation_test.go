package interpolation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanrecon/internal/models"
)

var xyz = [3]models.AxisName{models.AxisX, models.AxisY, models.AxisZ}

// linearVolume samples f(x, y, z) = 1 + 2x + 3y + 4z, which trilinear
// interpolation reproduces exactly.
func linearVolume(coords [3][]float64) *models.Volume {
	vol := models.NewVolume(xyz, [3]int{len(coords[0]), len(coords[1]), len(coords[2])})
	for a, x := range coords[0] {
		for b, y := range coords[1] {
			for c, z := range coords[2] {
				vol.Set(a, b, c, linear(x, y, z))
			}
		}
	}
	return vol
}

func linear(x, y, z float64) float64 { return 1 + 2*x + 3*y + 4*z }

func TestTrilinearAt(t *testing.T) {
	coords := [3][]float64{{0, 1, 2}, {-1, 0.5}, {10, 12, 14, 16}}
	tri, err := NewTrilinear(linearVolume(coords), coords)
	require.NoError(t, err)

	points := [][3]float64{
		{0, -1, 10},
		{2, 0.5, 16},
		{0.25, 0, 11},
		{1.5, -0.2, 15.9},
	}
	for _, p := range points {
		assert.InDelta(t, linear(p[0], p[1], p[2]), tri.At(p), 1e-9, "point %v", p)
	}

	outside := [][3]float64{
		{-0.1, 0, 12},
		{0, 0.6, 12},
		{0, 0, 16.5},
		{math.NaN(), 0, 12},
	}
	for _, p := range outside {
		assert.True(t, math.IsNaN(tri.At(p)), "point %v", p)
	}
}

func TestTrilinearIgnoresZeroWeightNaN(t *testing.T) {
	coords := [3][]float64{{0, 1}, {0}, {0}}
	vol := models.NewVolume(xyz, [3]int{2, 1, 1})
	vol.Data = []float64{7, math.NaN()}

	tri, err := NewTrilinear(vol, coords)
	require.NoError(t, err)
	assert.Equal(t, 7.0, tri.At([3]float64{0, 0, 0}))
	assert.True(t, math.IsNaN(tri.At([3]float64{0.5, 0, 0})))

	// A single node axis only matches its own coordinate
	assert.True(t, math.IsNaN(tri.At([3]float64{0, 0.1, 0})))
}

func TestNewTrilinearValidates(t *testing.T) {
	vol := models.NewVolume(xyz, [3]int{2, 1, 1})

	_, err := NewTrilinear(vol, [3][]float64{{0, 1, 2}, {0}, {0}})
	assert.Error(t, err)

	_, err = NewTrilinear(vol, [3][]float64{{1, 0}, {0}, {0}})
	assert.Error(t, err)
}

func TestResample(t *testing.T) {
	source := [3][]float64{{0, 1, 2, 3}, {0, 2}, {0, 1}}
	tri, err := NewTrilinear(linearVolume(source), source)
	require.NoError(t, err)

	var calls int
	tri.SetProgressCallback(func(completed, total int, message string) {
		calls++
		assert.Equal(t, 7, total)
	})

	target := [3][]float64{{0, 0.5, 1, 1.5, 2, 2.5, 3.5}, {1}, {0, 0.5, 1}}
	out := tri.Resample(target)
	assert.Equal(t, [3]int{7, 1, 3}, out.Shape)
	assert.Equal(t, 8, calls, "one start message and one per plane")

	for a, x := range target[0] {
		for c, z := range target[2] {
			got := out.At(a, 0, c)
			if x > 3 {
				assert.True(t, math.IsNaN(got))
				continue
			}
			assert.InDelta(t, linear(x, 1, z), got, 1e-9)
		}
	}
}

func TestFillNearest(t *testing.T) {
	coords := [3][]float64{{0, 1, 2, 10}, {0}, {0}}
	vol := models.NewVolume(xyz, [3]int{4, 1, 1})
	vol.Data = []float64{5, math.NaN(), math.NaN(), 8}

	filled, n, err := FillNearest(vol, coords)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float64{5, 5, 5, 8}, filled.Data)
	assert.True(t, math.IsNaN(vol.Data[1]), "input is not modified")

	empty := models.NewVolume(xyz, [3]int{2, 1, 1})
	empty.Data = []float64{math.NaN(), math.NaN()}
	filled, n, err = FillNearest(empty, [3][]float64{{0, 1}, {0}, {0}})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.True(t, math.IsNaN(filled.Data[0]))

	_, _, err = FillNearest(vol, [3][]float64{{0}, {0}, {0}})
	assert.Error(t, err)
}
