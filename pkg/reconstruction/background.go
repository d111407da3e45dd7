package reconstruction

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"scanrecon/internal/models"
	"scanrecon/pkg/interpolation"
	"scanrecon/pkg/logging"
)

// Resample evaluates a volume reconstructed on grid from at the coordinates
// of grid to. Both grids must span the same axes in the same order. Voxels of
// the target that fall outside the source grid are NaN.
func Resample(vol *models.Volume, from, to *VolumeGrid) (*models.Volume, error) {
	if from.Axes != to.Axes {
		return nil, &models.ConfigurationError{Reason: fmt.Sprintf("cannot resample axes %v onto %v", from.Axes, to.Axes)}
	}
	tri, err := interpolation.NewTrilinear(vol, from.Coords)
	if err != nil {
		return nil, &models.ReconstructionError{Reason: "resample", Err: err}
	}
	tri.SetProgressCallback(func(completed, total int, message string) {
		if message != "" {
			logging.Debugf("%s", message)
		}
	})
	return tri.Resample(to.Coords), nil
}

// SubtractBackground removes a homogeneous background scan from a sample
// volume. The background is resampled onto the sample grid first, so the two
// scans may use different step sizes and extents. Sample voxels outside the
// background scan become NaN.
func SubtractBackground(sample *models.Volume, grid *VolumeGrid, background *models.Volume, bgGrid *VolumeGrid) (*models.Volume, error) {
	bg, err := Resample(background, bgGrid, grid)
	if err != nil {
		return nil, err
	}
	out := sample.Clone()
	floats.Sub(out.Data, bg.Data)

	missing := 0
	for _, v := range bg.Data {
		if math.IsNaN(v) {
			missing++
		}
	}
	if missing > 0 {
		logging.Warningf("%d of %d voxels lie outside the background scan", missing, len(bg.Data))
	}
	return out, nil
}
