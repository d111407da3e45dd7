package visualization

import (
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"

	"scanrecon/pkg/logging"
	"scanrecon/pkg/monitor"
)

// FrameWriter is a monitor sink that writes the normalized frames of every
// snapshot as JPEG images, one file per camera and plane. Files are replaced
// on each update so a viewer can poll the directory.
type FrameWriter struct {
	Dir string

	written int
}

// NewFrameWriter creates the output directory and returns a sink writing to it.
func NewFrameWriter(dir string) (*FrameWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating frame directory: %w", err)
	}
	return &FrameWriter{Dir: dir}, nil
}

// Update implements monitor.Sink.
func (w *FrameWriter) Update(s *monitor.Snapshot) error {
	for _, f := range s.Frames {
		path := filepath.Join(w.Dir, FrameFileName(f.Camera, f.Plane))
		tmp := path + ".tmp"
		if err := saveJPEG(FrameImage(f), tmp); err != nil {
			os.Remove(tmp)
			return fmt.Errorf("error writing frame %s: %w", path, err)
		}
		if err := os.Rename(tmp, path); err != nil {
			return fmt.Errorf("error writing frame %s: %w", path, err)
		}
		w.written++
	}
	logging.Debugf("Session %s: wrote %d frames (%s, %.0f%%)", s.Session, len(s.Frames), s.State, s.Progress*100)
	return nil
}

// Written returns the number of frame files written so far.
func (w *FrameWriter) Written() int {
	return w.written
}

// FrameFileName is the file a frame is written to.
func FrameFileName(camera string, plane int) string {
	return fmt.Sprintf("camera_%s_plane_%03d.jpg", camera, plane)
}

// FrameImage renders the normalized values of a frame. Row v of the image is
// vertical index v.
func FrameImage(f monitor.Frame) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, f.Width, f.Height))
	for y := 0; y < f.Height; y++ {
		for x := 0; x < f.Width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: toGray16(f.Normalized[y*f.Width+x])})
		}
	}
	return img
}
