package reconstruction

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanrecon/internal/models"
	"scanrecon/pkg/metadata"
)

// axesWithCounts builds specs with the given counts and unit steps.
func axesWithCounts(counts map[models.AxisName]int) map[models.AxisName]models.AxisSpec {
	out := make(map[models.AxisName]models.AxisSpec, len(counts))
	for a, c := range counts {
		out[a] = models.AxisSpec{Name: a, Min: 0, Max: float64(c - 1), StepSize: 1, Count: c}
	}
	return out
}

func TestSelectAxes(t *testing.T) {
	i, j, k := models.AxisX, models.AxisY, models.AxisZ
	tests := []struct {
		name   string
		counts map[models.AxisName]int
		want   [3]models.AxisName
	}{
		{"plane scan", map[models.AxisName]int{i: 5, j: 4, k: 1}, [3]models.AxisName{i, j, k}},
		{"point scan", map[models.AxisName]int{i: 1, j: 1, k: 1}, [3]models.AxisName{i, j, k}},
		{"line scan along depth", map[models.AxisName]int{i: 1, j: 1, k: 7}, [3]models.AxisName{k, i, j}},
		{"plane of y and depth", map[models.AxisName]int{i: 1, j: 3, k: 7}, [3]models.AxisName{j, k, i}},
		{
			"transducer volume",
			map[models.AxisName]int{i: 1, j: 1, k: 1, models.AxisAxial: 10, models.AxisAzimuth: 20},
			[3]models.AxisName{models.AxisAxial, models.AxisAzimuth, i},
		},
		{
			"angular scan",
			map[models.AxisName]int{
				i: 4, j: 1, k: 1, models.AxisAxial: 1, models.AxisAzimuth: 1,
				models.AxisAlpha: 3, models.AxisBeta: 1, models.AxisGamma: 9,
			},
			[3]models.AxisName{i, models.AxisAlpha, models.AxisGamma},
		},
		{
			"more than three varying",
			map[models.AxisName]int{i: 2, j: 2, k: 2, models.AxisAxial: 2, models.AxisAzimuth: 2},
			[3]models.AxisName{i, j, k},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectAxes(axesWithCounts(tt.counts))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelectAxesIsStable(t *testing.T) {
	// Every varying/static pattern over all eight axes.
	for mask := 0; mask < 1<<len(models.DeclarationOrder); mask++ {
		counts := make(map[models.AxisName]int)
		for n, a := range models.DeclarationOrder {
			counts[a] = 1
			if mask&(1<<n) != 0 {
				counts[a] = n + 2
			}
		}
		axes := axesWithCounts(counts)

		first, err := SelectAxes(axes)
		require.NoError(t, err)
		again, err := SelectAxes(axes)
		require.NoError(t, err)
		assert.Equal(t, first, again)

		seen := map[models.AxisName]bool{}
		for _, a := range first {
			assert.True(t, a.Valid())
			assert.False(t, seen[a], "axis %s selected twice for mask %b", a, mask)
			seen[a] = true
		}
	}
}

func TestResolveAxes(t *testing.T) {
	axes := axesWithCounts(map[models.AxisName]int{models.AxisX: 3, models.AxisY: 3, models.AxisZ: 1})

	got, err := ResolveAxes(axes, []models.AxisName{models.AxisZ, models.AxisX, models.AxisY})
	require.NoError(t, err)
	assert.Equal(t, [3]models.AxisName{models.AxisZ, models.AxisX, models.AxisY}, got)

	var cfgErr *models.ConfigurationError
	_, err = ResolveAxes(axes, []models.AxisName{models.AxisX, models.AxisY, models.AxisAlpha})
	assert.ErrorAs(t, err, &cfgErr)

	_, err = ResolveAxes(axes, []models.AxisName{models.AxisX, models.AxisY})
	assert.ErrorAs(t, err, &cfgErr)

	_, err = ResolveAxes(axes, []models.AxisName{models.AxisX, models.AxisX, models.AxisY})
	assert.ErrorAs(t, err, &cfgErr)

	_, err = SelectAxes(axesWithCounts(map[models.AxisName]int{models.AxisX: 3}))
	assert.ErrorAs(t, err, &cfgErr)
}

func TestParseAxes(t *testing.T) {
	got, err := ParseAxes([]string{"x", "k", "alphaAng"})
	require.NoError(t, err)
	assert.Equal(t, []models.AxisName{models.AxisX, models.AxisZ, models.AxisAlpha}, got)

	_, err = ParseAxes([]string{"w"})
	assert.Error(t, err)
}

func TestGridBoundaryExactness(t *testing.T) {
	specs := []struct{ min, max, step float64 }{
		{0, 1, 0.1},
		{0.1, 0.7, 0.1},
		{-3.3, 3.3, 0.3},
		{8, 12, 1},
		{1e-3, 2e-3, 1e-4},
		{5, 5, 1},
	}
	for _, s := range specs {
		spec, err := models.NewAxisSpec(models.AxisX, s.min, s.max, s.step)
		require.NoError(t, err)

		coords := Coordinates(spec, spec.Count)
		require.Len(t, coords, spec.Count)
		assert.Equal(t, spec.Min, coords[0])
		if spec.Count > 1 {
			assert.Equal(t, spec.Max, coords[spec.Count-1])
		}
		for n := 1; n < len(coords); n++ {
			assert.Greater(t, coords[n], coords[n-1])
		}
	}
}

func TestGridBeyondDeclaredExtent(t *testing.T) {
	x, _ := models.NewAxisSpec(models.AxisX, 0, 2, 1)
	y, _ := models.NewAxisSpec(models.AxisY, 0, 0, 1)
	z, _ := models.NewAxisSpec(models.AxisZ, 1, 2, 0.5)

	g, err := NewVolumeGrid([3]models.AxisSpec{x, y, z}, [3]int{4, 1, 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 2, 3}, g.Coords[0])
	assert.Equal(t, []float64{0}, g.Coords[1])
	assert.Equal(t, []float64{1, 1.5, 2}, g.Coords[2])
	assert.Equal(t, [3]int{4, 1, 3}, g.Shape())
	assert.Equal(t, [3]float64{3, 0, 1.5}, g.At(3, 0, 1))
	assert.Equal(t, [3]string{"x", "y", "z"}, g.Labels())

	d, ok := g.Dimension(models.AxisZ)
	assert.True(t, ok)
	assert.Equal(t, 2, d)

	r := g.Region([3]int{1, 0, 1}, [3]int{2, 1, 2})
	assert.Equal(t, [3]int{2, 1, 2}, r.Shape())
	assert.Equal(t, [3]float64{1, 0, 1.5}, r.At(0, 0, 0))
	assert.Equal(t, g.Axes, r.Axes)
	r.Coords[0][0] = -1
	assert.Equal(t, 1.0, g.Coords[0][1], "region coordinates are copies")

	_, err = NewVolumeGrid([3]models.AxisSpec{x, y, z}, [3]int{4, 0, 3})
	assert.Error(t, err)
}

func TestResolveSampleCamera(t *testing.T) {
	recs := []models.Record{
		{CameraID: "12", Seq: 1},
		{CameraID: "201", Seq: 0},
	}

	t.Run("single camera", func(t *testing.T) {
		meta := &metadata.ScanMetadata{CameraIDs: []string{"7"}}
		cam, err := ResolveSampleCamera(meta, recs)
		require.NoError(t, err)
		assert.Equal(t, "7", cam)
	})

	t.Run("role mapping", func(t *testing.T) {
		meta := &metadata.ScanMetadata{
			CameraIDs:   []string{"12", "201"},
			CameraRoles: map[string]string{"12": "reference", "201": "sample"},
		}
		cam, err := ResolveSampleCamera(meta, recs)
		require.NoError(t, err)
		assert.Equal(t, "201", cam)
	})

	t.Run("role mapping without sample", func(t *testing.T) {
		meta := &metadata.ScanMetadata{
			CameraIDs:   []string{"12", "201"},
			CameraRoles: map[string]string{"12": "reference", "201": "laser"},
		}
		_, err := ResolveSampleCamera(meta, recs)
		var cfgErr *models.ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("first arrival without roles", func(t *testing.T) {
		meta := &metadata.ScanMetadata{CameraIDs: []string{"12", "201"}}
		cam, err := ResolveSampleCamera(meta, recs)
		require.NoError(t, err)
		assert.Equal(t, "201", cam)

		_, err = ResolveSampleCamera(meta, nil)
		assert.Error(t, err)
	})

	t.Run("cameras from records", func(t *testing.T) {
		cam, err := ResolveSampleCamera(&metadata.ScanMetadata{}, recs[:1])
		require.NoError(t, err)
		assert.Equal(t, "12", cam)
		assert.Equal(t, []string{"201", "12"}, Cameras(recs))
	})
}
