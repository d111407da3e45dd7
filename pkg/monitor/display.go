package monitor

import (
	"fmt"

	"scanrecon/internal/models"
	"scanrecon/pkg/metadata"
)

// Display is the geometry of the monitor images: Horizontal and Vertical
// span one image, Plane distinguishes images (slices mode) or triggers a
// reset when it advances (image mode).
type Display struct {
	Horizontal models.AxisName
	Vertical   models.AxisName
	Plane      models.AxisName

	Width  int
	Height int
	Planes int
}

// Axes returns the display axes in horizontal, vertical, plane order.
func (d Display) Axes() [3]models.AxisName {
	return [3]models.AxisName{d.Horizontal, d.Vertical, d.Plane}
}

// SelectDisplay picks the display axes for a scan.
//
// Axes are considered from the innermost acquisition loop outwards. The two
// innermost varying axes span the image and the next one is the plane; static
// axes fill in when fewer axes vary. A scan where nothing varies shows x, y
// and z. In slices mode the slice axis is excluded from the image axes and
// always becomes the plane.
func SelectDisplay(meta *metadata.ScanMetadata, mode Mode, sliceAxis models.AxisName, pinned []models.AxisName) (Display, error) {
	var axes [3]models.AxisName

	switch {
	case len(pinned) > 0:
		if len(pinned) != 3 {
			return Display{}, &models.ConfigurationError{Reason: fmt.Sprintf("display needs 3 axes, got %d", len(pinned))}
		}
		for n, a := range pinned {
			if !a.Valid() {
				return Display{}, &models.ConfigurationError{Reason: fmt.Sprintf("unknown display axis %q", a)}
			}
			axes[n] = a
		}
	default:
		var varying, static []models.AxisName
		for _, a := range models.LoopOrder {
			if mode == ModeSlices && a == sliceAxis {
				continue
			}
			if meta.Count(a) > 1 {
				varying = append(varying, a)
			} else {
				static = append(static, a)
			}
		}
		switch {
		case len(varying) >= 3:
			axes = [3]models.AxisName{varying[0], varying[1], varying[2]}
		case len(varying) == 2:
			axes = [3]models.AxisName{varying[0], varying[1], static[0]}
		case len(varying) == 1:
			axes = [3]models.AxisName{varying[0], static[0], static[1]}
		default:
			axes = [3]models.AxisName{models.AxisX, models.AxisY, models.AxisZ}
		}
	}

	if mode == ModeSlices {
		if !sliceAxis.Valid() {
			return Display{}, &models.ConfigurationError{Reason: fmt.Sprintf("slices mode needs a slice axis, got %q", sliceAxis)}
		}
		if axes[0] == sliceAxis || axes[1] == sliceAxis {
			return Display{}, &models.ConfigurationError{Reason: fmt.Sprintf("slice axis %s is also an image axis", sliceAxis)}
		}
		axes[2] = sliceAxis
	}

	return Display{
		Horizontal: axes[0],
		Vertical:   axes[1],
		Plane:      axes[2],
		Width:      meta.Count(axes[0]),
		Height:     meta.Count(axes[1]),
		Planes:     meta.Count(axes[2]),
	}, nil
}
