package reconstruction

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanrecon/internal/models"
	"scanrecon/pkg/metadata"
	"scanrecon/pkg/records"
)

// planeMeta declares a 3 x 2 plane scan with two cameras.
const planeMeta = `{
  "scanParameters": {
    "xROICenter_mm": 1, "xLength_mm": 2, "xScanStepSize_mm": 1,
    "yROICenter_mm": 0.5, "yLength_mm": 1, "yScanStepSize_mm": 1,
    "zROIStart_mm": 3, "zLength_mm": 0, "zScanStepSize_mm": 1
  },
  "cameraParameters": {
    "cameraIDNumbers": [201, 12],
    "cameraLocations": {"201": "sample", "12": "reference"}
  }
}`

const planeRecords = `imageName,cameraID,POSIXTime,i,j,k,roiFFTEnergy,objectEnergy_J,referenceEnergy_J
img0,201,0,10,20,0,1,0.5,0.1
img0,12,0,10,20,0,100,0.5,0.1
img1,201,1,11,20,0,2,0.5,0.1
img2,201,2,12,20,0,3,nan?,0.1
img3,201,3,10,21,0,4,0.5,0.1
img4,201,4,11,21,0,5,2e31,0.1
img1,201,5,11,20,0,20,0.5,0.1
`

func mustMeta(t *testing.T, doc string) *metadata.ScanMetadata {
	t.Helper()
	meta, err := metadata.Parse([]byte(doc))
	require.NoError(t, err)
	return meta
}

func mustStream(t *testing.T, data string) *records.Stream {
	t.Helper()
	s, err := records.Read(strings.NewReader(data))
	require.NoError(t, err)
	return s
}

func rec(seq int, cam string, i, j, k int, energy float64) models.Record {
	return models.Record{
		CameraID: cam,
		Seq:      seq,
		Indices:  map[models.AxisName]int{models.AxisX: i, models.AxisY: j, models.AxisZ: k},
		Values:   map[string]float64{records.EnergyColumn: energy},
	}
}

func TestScatterLastWriteWins(t *testing.T) {
	axes := [3]models.AxisName{models.AxisX, models.AxisY, models.AxisZ}
	recs := []models.Record{
		rec(0, "1", 5, 7, 0, 1),
		rec(1, "1", 6, 7, 0, 2),
		rec(2, "1", 5, 7, 0, 3),
		rec(3, "1", 5, 8, 0, 4),
		rec(4, "1", 5, 7, 0, 5),
	}

	// Any presentation order yields the value of the greatest Seq.
	orders := [][]int{{0, 1, 2, 3, 4}, {4, 3, 2, 1, 0}, {2, 4, 0, 3, 1}, {4, 0, 1, 2, 3}}
	for _, order := range orders {
		shuffled := make([]models.Record, len(order))
		for n, o := range order {
			shuffled[n] = recs[o]
		}
		vol, faults := Scatter(shuffled, axes, [3]int{2, 2, 1}, records.EnergyColumn, DefaultSanityThreshold)
		assert.Zero(t, faults)
		if diff := cmp.Diff([]float64{5, 4, 2, 0}, vol.Data); diff != "" {
			t.Errorf("order %v: volume mismatch (-want +got):\n%s", order, diff)
		}
	}
}

func TestScatterSanityThreshold(t *testing.T) {
	axes := [3]models.AxisName{models.AxisX, models.AxisY, models.AxisZ}
	recs := []models.Record{
		rec(0, "1", 0, 0, 0, 2e30),
		rec(1, "1", 1, 0, 0, -5),
		rec(2, "1", 2, 0, 0, 0.5),
	}
	vol, faults := Scatter(recs, axes, [3]int{3, 1, 1}, records.EnergyColumn, 1)
	assert.Equal(t, 2, faults)
	assert.True(t, math.IsNaN(vol.Data[0]))
	assert.True(t, math.IsNaN(vol.Data[1]))
	assert.Equal(t, 0.5, vol.Data[2])

	th := Thresholds{ChannelLaser: 10, "roiFFTEnergy": 3}
	assert.Equal(t, 10.0, th.For("objectEnergy_J"))
	assert.Equal(t, 3.0, th.For(records.EnergyColumn))
	assert.Equal(t, DefaultSanityThreshold, th.For("referenceEnergy_J"))
	assert.Equal(t, DefaultSanityThreshold, Thresholds(nil).For("anything"))
}

func TestSummarize(t *testing.T) {
	v := &models.Volume{Data: []float64{1, 3, math.NaN(), math.Inf(1)}, Shape: [3]int{4, 1, 1}}
	s := Summarize(v)
	assert.Equal(t, 2, s.Finite)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 3.0, s.Max)
	assert.Equal(t, 2.0, s.Mean)

	empty := Summarize(&models.Volume{Data: []float64{math.NaN()}, Shape: [3]int{1, 1, 1}})
	assert.Zero(t, empty.Finite)
	assert.True(t, math.IsNaN(empty.Mean))
}

func TestReconstruct(t *testing.T) {
	meta := mustMeta(t, planeMeta)
	stream := mustStream(t, planeRecords)

	params := Params{Channels: []string{ChannelEnergy, ChannelLaser, ChannelReference}}
	res, err := NewReconstructor(meta, params).Reconstruct(stream)
	require.NoError(t, err)

	assert.Equal(t, [3]models.AxisName{models.AxisX, models.AxisY, models.AxisZ}, res.Axes)
	assert.Equal(t, "201", res.SampleCamera)
	assert.Equal(t, []string{"201", "12"}, res.Cameras)
	assert.Equal(t, map[string]string{
		ChannelEnergy:    "roiFFTEnergy",
		ChannelLaser:     "objectEnergy_J",
		ChannelReference: "referenceEnergy_J",
	}, res.Columns)

	assert.Equal(t, [3]int{3, 2, 1}, res.Grid.Shape())
	assert.Equal(t, []float64{0, 1, 2}, res.Grid.Coords[0])
	assert.Equal(t, []float64{0, 1}, res.Grid.Coords[1])
	assert.Equal(t, []float64{3}, res.Grid.Coords[2])

	energy, err := res.Volume(ChannelEnergy, "")
	require.NoError(t, err)
	// Indices start at i=10, j=20; the retake of img1 replaces 2 by 20.
	if diff := cmp.Diff([]float64{1, 4, 20, 5, 3, 0}, energy.Data); diff != "" {
		t.Errorf("energy mismatch (-want +got):\n%s", diff)
	}

	laser, err := res.Volume("objectEnergy_J", "201")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(laser.At(2, 0, 0)), "non-numeric cell")
	assert.True(t, math.IsNaN(laser.At(1, 1, 0)), "above sanity threshold")
	assert.Equal(t, 0.5, laser.At(0, 0, 0))

	ref, err := res.Volume(ChannelEnergy, "12")
	require.NoError(t, err)
	assert.Equal(t, 100.0, ref.At(0, 0, 0))
	assert.Equal(t, 0.0, ref.At(1, 0, 0))

	_, err = res.Volume(ChannelEnergy, "99")
	assert.Error(t, err)
	_, err = res.Volume("roiMean", "")
	assert.Error(t, err)
}

func TestReconstructErrors(t *testing.T) {
	meta := mustMeta(t, planeMeta)

	t.Run("unknown axis", func(t *testing.T) {
		_, err := NewReconstructor(meta, Params{Axes: []models.AxisName{models.AxisX, models.AxisY, models.AxisBeta}}).
			Reconstruct(mustStream(t, planeRecords))
		var cfgErr *models.ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	})

	t.Run("missing channel", func(t *testing.T) {
		_, err := NewReconstructor(meta, Params{Channels: []string{"roiMean"}}).Reconstruct(mustStream(t, planeRecords))
		var recErr *models.ReconstructionError
		assert.ErrorAs(t, err, &recErr)
	})

	t.Run("missing varying axis column", func(t *testing.T) {
		stream := mustStream(t, "imageName,cameraID,i,roiFFTEnergy\nimg0,201,0,1\n")
		_, err := NewReconstructor(meta, DefaultParams()).Reconstruct(stream)
		var recErr *models.ReconstructionError
		assert.ErrorAs(t, err, &recErr)
	})

	t.Run("no sample role", func(t *testing.T) {
		m := mustMeta(t, strings.Replace(planeMeta, `"sample"`, `"object"`, 1))
		_, err := NewReconstructor(m, DefaultParams()).Reconstruct(mustStream(t, planeRecords))
		var cfgErr *models.ConfigurationError
		assert.ErrorAs(t, err, &cfgErr)
	})
}

func TestReconstructSelectAndGrow(t *testing.T) {
	meta := mustMeta(t, planeMeta)
	stream := mustStream(t, planeRecords+"img9,201,9,14,20,0,9,0.5,0.1\n")

	res, err := NewReconstructor(meta, Params{SelectColumn: "cameraID", SelectValue: 201}).Reconstruct(stream)
	require.NoError(t, err)

	assert.Equal(t, []string{"201"}, res.Cameras)
	// i runs 10..14: five voxels although the metadata declares three.
	assert.Equal(t, [3]int{5, 2, 1}, res.Grid.Shape())
	assert.Equal(t, []float64{0, 1, 2, 3, 4}, res.Grid.Coords[0])

	v, err := res.Volume(ChannelEnergy, "")
	require.NoError(t, err)
	assert.Equal(t, 9.0, v.At(4, 0, 0))

	_, err = NewReconstructor(meta, Params{SelectColumn: "nope"}).Reconstruct(stream)
	assert.Error(t, err)
}

func writeScan(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0644))
	}
	return dir
}

func TestFindScanFiles(t *testing.T) {
	dir := writeScan(t, map[string]string{
		"scan.json":          "{}",
		"imageInfoAsync.csv": "",
		"imageInfo.csv":      "",
		"other.csv":          "",
	})
	files, err := FindScanFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "imageInfo.csv"), files.Records)
	assert.Equal(t, filepath.Join(dir, "scan.json"), files.Metadata)

	dir = writeScan(t, map[string]string{"scan.json": "{}", "data.txt": ""})
	files, err = FindScanFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data.txt"), files.Records)

	dir = writeScan(t, map[string]string{"scan.json": "{}", "image_info.csv": "", "x.csv": ""})
	files, err = FindScanFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "image_info.csv"), files.Records)

	_, err = FindScanFiles(writeScan(t, map[string]string{"imageInfo.csv": ""}))
	var cfgErr *models.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)

	_, err = FindScanFiles(writeScan(t, map[string]string{"scan.json": "{}", "a.csv": "", "b.csv": ""}))
	assert.Error(t, err)
}

func TestLoadScan(t *testing.T) {
	dir := writeScan(t, map[string]string{
		"scan.json":     planeMeta,
		"imageInfo.csv": planeRecords + "broken,row\n",
	})

	scan, err := LoadScan(dir, DefaultParams())
	require.NoError(t, err)
	assert.Len(t, scan.Stream.Skipped, 1)
	assert.Equal(t, [3]string{"x", "y", "z"}, scan.Labels())

	energy, grid, err := scan.Volume(ChannelEnergy, "")
	require.NoError(t, err)
	assert.Equal(t, [3]int{3, 2, 1}, grid.Shape())
	assert.Equal(t, 20.0, energy.At(1, 0, 0))

	// Channels outside the reconstruction are built on demand.
	ref, _, err := scan.Volume(ChannelReference, "")
	require.NoError(t, err)
	assert.Equal(t, 0.1, ref.At(0, 1, 0))
	assert.Equal(t, 0.0, ref.At(2, 1, 0))

	ts, _, err := scan.Volume("POSIXTime", "12")
	require.NoError(t, err)
	assert.Equal(t, 0.0, ts.At(0, 0, 0))

	_, _, err = scan.Volume("missing", "")
	assert.Error(t, err)
}
