// Package visualization renders reconstructed volumes and live monitor frames
// as grayscale images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"os"
	"path/filepath"

	"scanrecon/internal/models"
)

// Viewer extracts 2D slices and 3D regions from a reconstructed volume.
type Viewer struct {
	volume *models.Volume

	// low and high are the values mapped to black and white
	low, high float64
}

// NewViewer creates a viewer scaled to the finite extremes of the volume.
func NewViewer(volume *models.Volume) *Viewer {
	v := &Viewer{volume: volume}
	first := true
	for _, x := range volume.Data {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		if first {
			v.low, v.high, first = x, x, false
			continue
		}
		v.low = math.Min(v.low, x)
		v.high = math.Max(v.high, x)
	}
	return v
}

// SetWindow overrides the values mapped to black and white.
func (v *Viewer) SetWindow(low, high float64) {
	v.low, v.high = low, high
}

// Window returns the values mapped to black and white.
func (v *Viewer) Window() (low, high float64) {
	return v.low, v.high
}

// Dimension resolves an axis given by index column or coordinate label to its
// position in the volume.
func (v *Viewer) Dimension(axis string) (int, error) {
	a, err := models.ParseAxisName(axis)
	if err != nil {
		return 0, err
	}
	for n, va := range v.volume.Axes {
		if va == a {
			return n, nil
		}
	}
	return 0, fmt.Errorf("axis %s is not a dimension of the volume %v", a, v.volume.Axes)
}

// ExtractSlice extracts the 2D slice at index position along axis. The image
// spans the two remaining dimensions: the first horizontally, the second
// vertically. NaN voxels are black.
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray16, error) {
	dim, err := v.Dimension(axis)
	if err != nil {
		return nil, err
	}
	shape := v.volume.Shape
	if position < 0 || position >= shape[dim] {
		return nil, fmt.Errorf("position %d outside axis %s of size %d", position, axis, shape[dim])
	}

	h, w := otherDims(dim)
	img := image.NewGray16(image.Rect(0, 0, shape[h], shape[w]))
	var idx [3]int
	idx[dim] = position
	for y := 0; y < shape[w]; y++ {
		idx[w] = y
		for x := 0; x < shape[h]; x++ {
			idx[h] = x
			img.SetGray16(x, y, color.Gray16{Y: v.gray(v.volume.At(idx[0], idx[1], idx[2]))})
		}
	}
	return img, nil
}

// ExtractRegion extracts a 3D subvolume starting at start with the given size.
func (v *Viewer) ExtractRegion(start, size [3]int) (*models.Volume, error) {
	for n := range start {
		if start[n] < 0 {
			return nil, fmt.Errorf("start coordinates must be non-negative")
		}
		if size[n] <= 0 {
			return nil, fmt.Errorf("size dimensions must be positive")
		}
		if start[n]+size[n] > v.volume.Shape[n] {
			return nil, fmt.Errorf("region extends beyond volume boundaries")
		}
	}

	region := models.NewVolume(v.volume.Axes, size)
	for a := 0; a < size[0]; a++ {
		for b := 0; b < size[1]; b++ {
			for c := 0; c < size[2]; c++ {
				region.Set(a, b, c, v.volume.At(start[0]+a, start[1]+b, start[2]+c))
			}
		}
	}
	return region, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	return saveJPEG(img, filename)
}

// SaveSliceSequence extracts and saves every slice along axis. It returns the
// number of images written.
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) (int, error) {
	dim, err := v.Dimension(axis)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return 0, err
	}

	label := v.volume.Axes[dim].Label()
	for pos := 0; pos < v.volume.Shape[dim]; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return pos, err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.jpg", label, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return pos, err
		}
	}
	return v.volume.Shape[dim], nil
}

func (v *Viewer) gray(x float64) uint16 {
	if math.IsNaN(x) {
		return 0
	}
	span := v.high - v.low
	if span == 0 {
		span = 1
	}
	return toGray16((x - v.low) / span)
}

// toGray16 maps [0, 1] to the full 16 bit range, clamping outside values.
func toGray16(f float64) uint16 {
	if math.IsNaN(f) {
		return 0
	}
	return uint16(math.Max(0, math.Min(65535, f*65535)))
}

func otherDims(dim int) (int, int) {
	switch dim {
	case 0:
		return 1, 2
	case 1:
		return 0, 2
	}
	return 0, 1
}

func saveJPEG(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: 90}); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
