package visualization

import (
	"image/jpeg"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanrecon/internal/models"
	"scanrecon/pkg/monitor"
)

// testVolume returns a 4x3x2 volume over x, y, z where voxel (a, b, c) holds
// a + 10b + 100c.
func testVolume() *models.Volume {
	vol := models.NewVolume([3]models.AxisName{models.AxisX, models.AxisY, models.AxisZ}, [3]int{4, 3, 2})
	for a := 0; a < 4; a++ {
		for b := 0; b < 3; b++ {
			for c := 0; c < 2; c++ {
				vol.Set(a, b, c, float64(a+10*b+100*c))
			}
		}
	}
	return vol
}

func TestNewViewerWindow(t *testing.T) {
	vol := testVolume()
	vol.Data[0] = math.NaN()
	vol.Data[1] = math.Inf(1)

	low, high := NewViewer(vol).Window()
	assert.Equal(t, 1.0, low)
	assert.Equal(t, 123.0, high)
}

func TestExtractSlice(t *testing.T) {
	viewer := NewViewer(testVolume())
	viewer.SetWindow(0, 65535)

	// Slicing along z leaves x horizontal and y vertical
	img, err := viewer.ExtractSlice("z", 1)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 3, img.Bounds().Dy())
	assert.InDelta(t, 2+10*1+100, float64(img.Gray16At(2, 1).Y), 1)

	// Index column names work too; slicing along i leaves y by z
	img, err = viewer.ExtractSlice("i", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())
	assert.InDelta(t, 3+10*2+100, float64(img.Gray16At(2, 1).Y), 1)

	img, err = viewer.ExtractSlice("y", 0)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, 2, img.Bounds().Dy())

	_, err = viewer.ExtractSlice("invalid", 0)
	assert.Error(t, err)

	_, err = viewer.ExtractSlice("alphaAng", 0)
	assert.Error(t, err, "axis not in the volume")

	_, err = viewer.ExtractSlice("z", 2)
	assert.Error(t, err)
}

func TestExtractSliceScaling(t *testing.T) {
	vol := models.NewVolume([3]models.AxisName{models.AxisX, models.AxisY, models.AxisZ}, [3]int{3, 1, 1})
	vol.Data = []float64{2, 4, math.NaN()}

	img, err := NewViewer(vol).ExtractSlice("z", 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), img.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(65535), img.Gray16At(1, 0).Y)
	assert.Equal(t, uint16(0), img.Gray16At(2, 0).Y, "NaN is black")
}

func TestExtractRegion(t *testing.T) {
	vol := testVolume()
	viewer := NewViewer(vol)

	region, err := viewer.ExtractRegion([3]int{1, 1, 0}, [3]int{2, 2, 2})
	require.NoError(t, err)
	assert.Equal(t, [3]int{2, 2, 2}, region.Shape)
	assert.Equal(t, vol.Axes, region.Axes)
	for a := 0; a < 2; a++ {
		for b := 0; b < 2; b++ {
			for c := 0; c < 2; c++ {
				assert.Equal(t, vol.At(1+a, 1+b, c), region.At(a, b, c))
			}
		}
	}

	_, err = viewer.ExtractRegion([3]int{-1, 0, 0}, [3]int{1, 1, 1})
	assert.Error(t, err)
	_, err = viewer.ExtractRegion([3]int{0, 0, 0}, [3]int{0, 1, 1})
	assert.Error(t, err)
	_, err = viewer.ExtractRegion([3]int{3, 0, 0}, [3]int{2, 1, 1})
	assert.Error(t, err)
}

func TestSaveSliceSequence(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "slices")
	viewer := NewViewer(testVolume())

	n, err := viewer.SaveSliceSequence("x", dir)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	for pos := 0; pos < 4; pos++ {
		f, err := os.Open(filepath.Join(dir, "slice_x_00"+string(rune('0'+pos))+".jpg"))
		require.NoError(t, err)
		cfg, err := jpeg.DecodeConfig(f)
		f.Close()
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Width)
		assert.Equal(t, 2, cfg.Height)
	}

	_, err = viewer.SaveSliceSequence("q", dir)
	assert.Error(t, err)
}

func TestFrameWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	w, err := NewFrameWriter(dir)
	require.NoError(t, err)

	frame := monitor.Frame{
		Camera:     "201",
		Plane:      4,
		Width:      3,
		Height:     2,
		Raw:        []float64{1, 2, 3, 4, 5, 6},
		Normalized: []float64{0, 0.2, 0.4, 0.6, 0.8, 1},
		Min:        1,
		Max:        6,
	}
	var sink monitor.Sink = w
	require.NoError(t, sink.Update(&monitor.Snapshot{Session: "s", Frames: []monitor.Frame{frame}}))
	require.NoError(t, sink.Update(&monitor.Snapshot{Session: "s", Frames: []monitor.Frame{frame}}))
	assert.Equal(t, 2, w.Written())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "frames are replaced, temporaries removed")
	assert.Equal(t, "camera_201_plane_004.jpg", entries[0].Name())

	img := FrameImage(frame)
	assert.Equal(t, uint16(0), img.Gray16At(0, 0).Y)
	assert.Equal(t, uint16(65535), img.Gray16At(2, 1).Y)
	assert.InDelta(t, 0.6*65535, float64(img.Gray16At(0, 1).Y), 1)
}
