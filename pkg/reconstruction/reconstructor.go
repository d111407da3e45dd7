// Package reconstruction turns a complete, axis indexed record stream into
// dense per-camera volumes over three selected scan axes.
//
// The batch pipeline is:
//  1. Select the three axes to materialize (explicit or automatic)
//  2. Resolve the channel columns and the sample camera
//  3. Size the volume from the metadata counts and the observed indices
//  4. Scatter every record into its voxel, last write wins
//  5. Build the coordinate grid of the volume
package reconstruction

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"scanrecon/internal/models"
	"scanrecon/pkg/logging"
	"scanrecon/pkg/metadata"
	"scanrecon/pkg/records"
)

// Params holds the batch reconstruction parameters. It is passed once at the
// start of a reconstruction and never modified.
type Params struct {
	// Axes names the three axes to materialize. Empty selects them
	// automatically from the metadata.
	Axes []models.AxisName

	// Channels lists channel aliases or column names to reconstruct. Empty
	// reconstructs the energy channel only.
	Channels []string

	// SelectColumn, when set, keeps only records whose SelectColumn value
	// equals SelectValue.
	SelectColumn string
	SelectValue  float64

	// Thresholds overrides the sanity threshold per channel column or alias.
	Thresholds Thresholds
}

// DefaultParams returns parameters reconstructing the energy channel over
// automatically selected axes.
func DefaultParams() Params {
	return Params{Channels: []string{ChannelEnergy}}
}

// Result is the outcome of one batch reconstruction.
type Result struct {
	// Axes are the three materialized axes
	Axes [3]models.AxisName

	// Grid holds the coordinates of every volume in the result
	Grid *VolumeGrid

	// SampleCamera is the camera recording the sample beam
	SampleCamera string

	// Cameras lists every camera present in the records, in arrival order
	Cameras []string

	// Columns maps each requested channel to the record column it resolved to
	Columns map[string]string

	// Volumes holds one volume per camera per channel column
	Volumes map[string]map[string]*models.Volume
}

// Volume returns the volume of channel (alias or column) for camera. An
// empty camera selects the sample camera.
func (r *Result) Volume(channel, camera string) (*models.Volume, error) {
	if camera == "" {
		camera = r.SampleCamera
	}
	col, ok := r.Columns[channel]
	if !ok {
		col = channel
	}
	byCol, ok := r.Volumes[camera]
	if !ok {
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("no records for camera %s", camera)}
	}
	v, ok := byCol[col]
	if !ok {
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("channel %s was not reconstructed", channel)}
	}
	return v, nil
}

// Reconstructor builds dense volumes from a finished record stream.
type Reconstructor struct {
	meta   *metadata.ScanMetadata
	params Params
}

// NewReconstructor creates a reconstructor for one scan.
//
// Parameters:
//   - meta: The scan metadata, owned by the caller
//   - params: Reconstruction parameters
//
// Returns:
//   - A new Reconstructor
func NewReconstructor(meta *metadata.ScanMetadata, params Params) *Reconstructor {
	if len(params.Channels) == 0 {
		params.Channels = []string{ChannelEnergy}
	}
	return &Reconstructor{meta: meta, params: params}
}

// Reconstruct runs the batch pipeline over a complete record stream.
//
// Configuration problems (unknown axes, unresolvable sample camera) are
// reported as a ConfigurationError before any volume is allocated. A stream
// missing a required column yields a ReconstructionError.
//
// Parameters:
//   - stream: The parsed record stream
//
// Returns:
//   - The per-camera, per-channel volumes and their coordinate grid
//   - An error if the reconstruction could not be performed
func (r *Reconstructor) Reconstruct(stream *records.Stream) (*Result, error) {
	axes, err := ResolveAxes(r.meta.Axes, r.params.Axes)
	if err != nil {
		return nil, err
	}
	var specs [3]models.AxisSpec
	var varying []models.AxisName
	for n, a := range axes {
		specs[n], _ = r.meta.Axis(a)
		if specs[n].Varies() {
			varying = append(varying, a)
		}
	}
	if err := stream.Layout.Require(varying, nil); err != nil {
		return nil, err
	}

	res := &Result{
		Axes:    axes,
		Columns: make(map[string]string, len(r.params.Channels)),
		Volumes: make(map[string]map[string]*models.Volume),
	}
	for _, ch := range r.params.Channels {
		col, err := ResolveChannel(stream.Layout, ch)
		if err != nil {
			return nil, err
		}
		res.Columns[ch] = col
	}

	recs := stream.Records
	if r.params.SelectColumn != "" {
		if !stream.Layout.Has(r.params.SelectColumn) {
			return nil, &models.ConfigurationError{Reason: fmt.Sprintf("select column %q is not in the record stream", r.params.SelectColumn)}
		}
		recs = records.Filter(recs, r.params.SelectColumn, r.params.SelectValue)
		logging.Infof("Filtering to %s = %g: %s of %s records kept", r.params.SelectColumn, r.params.SelectValue,
			humanize.Comma(int64(len(recs))), humanize.Comma(int64(len(stream.Records))))
	}

	if res.SampleCamera, err = ResolveSampleCamera(r.meta, recs); err != nil {
		return nil, err
	}

	byCamera := make(map[string][]models.Record)
	res.Cameras = Cameras(recs)
	for _, rec := range recs {
		byCamera[rec.CameraID] = append(byCamera[rec.CameraID], rec)
	}

	shape := volumeShape(specs, byCamera)
	if res.Grid, err = NewVolumeGrid(specs, shape); err != nil {
		return nil, err
	}
	logging.Infof("Choosing axes %v of size %v for 3d data (%s voxels, %s records, %d cameras)",
		axes, shape, humanize.Comma(int64(shape[0]*shape[1]*shape[2])),
		humanize.Comma(int64(len(recs))), len(res.Cameras))

	for _, cam := range res.Cameras {
		res.Volumes[cam] = make(map[string]*models.Volume, len(res.Columns))
		for _, col := range res.Columns {
			if _, done := res.Volumes[cam][col]; done {
				continue
			}
			vol, faults := Scatter(byCamera[cam], axes, shape, col, r.params.Thresholds.For(col))
			if faults > 0 {
				logging.Warningf("Camera %s channel %s: %d values above the sanity threshold replaced by NaN", cam, col, faults)
			}
			s := Summarize(vol)
			logging.Debugf("Camera %s channel %s: %d finite voxels, min %g max %g mean %g", cam, col, s.Finite, s.Min, s.Max, s.Mean)
			res.Volumes[cam][col] = vol
		}
	}

	if _, ok := res.Volumes[res.SampleCamera]; !ok {
		logging.Warningf("Sample camera %s has no records", res.SampleCamera)
	}
	return res, nil
}

// volumeShape sizes each dimension as the larger of the metadata count and
// the index extent observed for any camera, so that every record lands
// inside the volume.
func volumeShape(specs [3]models.AxisSpec, byCamera map[string][]models.Record) [3]int {
	var shape [3]int
	for n, spec := range specs {
		shape[n] = spec.Count
	}
	for _, recs := range byCamera {
		lo, hi := indexBounds(recs, [3]models.AxisName{specs[0].Name, specs[1].Name, specs[2].Name})
		for n := range shape {
			if ext := hi[n] - lo[n] + 1; ext > shape[n] {
				shape[n] = ext
			}
		}
	}
	return shape
}

func indexBounds(recs []models.Record, axes [3]models.AxisName) (lo, hi [3]int) {
	for n, rec := range recs {
		for d, a := range axes {
			idx := rec.Index(a)
			if n == 0 || idx < lo[d] {
				lo[d] = idx
			}
			if n == 0 || idx > hi[d] {
				hi[d] = idx
			}
		}
	}
	return lo, hi
}

// Scatter writes the column value of every record into a zero-filled volume.
//
// Each axis index is offset by the smallest index seen on that axis, so a
// scan starting at an arbitrary ROI origin maps onto a zero based volume.
// Records are applied in arrival order: when several records address the same
// voxel the one with the greatest Seq wins, regardless of the order of recs.
// Voxels without a record stay 0. Values whose magnitude exceeds threshold
// are stored as NaN and counted in faults.
func Scatter(recs []models.Record, axes [3]models.AxisName, shape [3]int, column string, threshold float64) (vol *models.Volume, faults int) {
	vol = models.NewVolume(axes, shape)
	lo, _ := indexBounds(recs, axes)

	for _, rec := range bySeq(recs) {
		v, ok := rec.Value(column)
		if !ok {
			continue
		}
		if math.Abs(v) > threshold {
			v = math.NaN()
			faults++
		}
		vol.Set(rec.Index(axes[0])-lo[0], rec.Index(axes[1])-lo[1], rec.Index(axes[2])-lo[2], v)
	}
	return vol, faults
}

// Summary describes the finite values of a volume.
type Summary struct {
	Finite   int
	Min, Max float64
	Mean     float64
	StdDev   float64
}

// Summarize computes statistics over the finite voxels of v. All statistics
// are NaN when no voxel is finite.
func Summarize(v *models.Volume) Summary {
	vals := make([]float64, 0, len(v.Data))
	for _, x := range v.Data {
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			vals = append(vals, x)
		}
	}
	s := Summary{Finite: len(vals)}
	if len(vals) == 0 {
		s.Min, s.Max, s.Mean, s.StdDev = math.NaN(), math.NaN(), math.NaN(), math.NaN()
		return s
	}
	s.Min, s.Max = floats.Min(vals), floats.Max(vals)
	s.Mean, s.StdDev = stat.MeanStdDev(vals, nil)
	return s
}
