package records

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"scanrecon/internal/models"
	"scanrecon/pkg/metadata"
)

// Asynchronous acquisitions write imageInfoAsync.csv without voxel indices;
// the image number encoded in the image name identifies the voxel instead.
const (
	AsyncFileName  = "imageInfoAsync.csv"
	MergedFileName = "imageInfo.csv"

	imageNamePrefix = "hologramImage"
)

// locationColumns are the generated location columns, in output order.
var locationColumns = []string{
	"k", "i", "j", "ustxZ", "ustxX", "alphai", "betai", "gammai",
	"alpha", "beta", "gamma", "imageNumber", "cameraID",
}

// droppedAsyncColumns are recomputed from the image number, so whatever the
// asynchronous writer put in them is discarded.
var droppedAsyncColumns = map[string]bool{
	"i": true, "j": true, "k": true, "ustxX": true, "ustxZ": true,
	"alphai": true, "betai": true, "gammai": true,
	"alpha": true, "beta": true, "gamma": true,
}

type asyncKey struct {
	camera string
	image  int
}

// MergeAsync converts an asynchronous record file into a regular, indexed one.
// Retaken images are reduced to their most recent row, every voxel of the scan
// gets exactly one row per camera, and voxels without data are filled with 0.
// The output file is replaced atomically so that a tailing reader sees either
// the old or the new file.
//
// An empty or missing input file is not an error.
func MergeAsync(meta *metadata.ScanMetadata, asyncPath, outPath string) error {
	f, err := os.Open(asyncPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error opening async record file: %w", err)
	}
	defer f.Close()

	cr := newCSVReader(f)
	header, err := cr.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("error reading async header: %w", err)
	}
	for n := range header {
		header[n] = strings.TrimSpace(header[n])
	}

	nameCol, camCol := -1, -1
	var dataCols []int
	for n, name := range header {
		switch {
		case name == ImageNameColumn:
			nameCol = n
		case contains(cameraColumns, name):
			camCol = n
		case droppedAsyncColumns[name]:
		default:
			dataCols = append(dataCols, n)
		}
	}
	if nameCol < 0 || camCol < 0 {
		return &models.ReconstructionError{Reason: "async record file needs imageName and cameraID columns"}
	}

	// Later rows replace earlier ones: the last acquisition of a retaken
	// image wins.
	rows := make(map[asyncKey][]string)
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil || len(row) != len(header) {
			continue
		}
		name := strings.TrimSpace(row[nameCol])
		if !strings.HasPrefix(name, imageNamePrefix) {
			continue
		}
		num, err := strconv.Atoi(strings.TrimPrefix(name, imageNamePrefix))
		if err != nil {
			continue
		}
		cam, err := NormalizeCameraID(row[camCol])
		if err != nil {
			continue
		}
		rows[asyncKey{camera: cam, image: num}] = row
	}

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".imageInfo-*.csv")
	if err != nil {
		return fmt.Errorf("error creating merged record file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	out := append([]string{ImageNameColumn}, locationColumns...)
	for _, n := range dataCols {
		out = append(out, header[n])
	}
	if err := w.Write(out); err != nil {
		tmp.Close()
		return err
	}

	for _, cam := range meta.CameraIDs {
		image := 0
		err := forEachLocation(meta, func(loc map[string]string) error {
			line := make([]string, 0, len(out))
			line = append(line, imageNamePrefix+strconv.Itoa(image))
			for _, c := range locationColumns[:len(locationColumns)-2] {
				line = append(line, loc[c])
			}
			line = append(line, strconv.Itoa(image), cam)

			data, ok := rows[asyncKey{camera: cam, image: image}]
			for _, n := range dataCols {
				if ok && strings.TrimSpace(data[n]) != "" {
					line = append(line, data[n])
				} else {
					line = append(line, "0")
				}
			}
			image++
			return w.Write(line)
		})
		if err != nil {
			tmp.Close()
			return fmt.Errorf("error writing merged record file: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing merged record file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), outPath)
}

// forEachLocation visits every voxel in acquisition order: alpha, beta, z, y,
// x, gamma, azimuth, axial from the outermost loop inwards.
func forEachLocation(meta *metadata.ScanMetadata, visit func(map[string]string) error) error {
	order := []models.AxisName{
		models.AxisAlpha, models.AxisBeta, models.AxisZ, models.AxisY,
		models.AxisX, models.AxisGamma, models.AxisAzimuth, models.AxisAxial,
	}
	counts := make([]int, len(order))
	for n, a := range order {
		counts[n] = meta.Count(a)
	}

	idx := make([]int, len(order))
	loc := make(map[string]string, len(locationColumns))
	for {
		for n, a := range order {
			loc[string(a)] = strconv.Itoa(idx[n])
		}
		for _, r := range []struct {
			axis models.AxisName
			col  string
		}{{models.AxisAlpha, "alpha"}, {models.AxisBeta, "beta"}, {models.AxisGamma, "gamma"}} {
			angle := 0.0
			if spec, ok := meta.Axis(r.axis); ok {
				angle = spec.Min + float64(idx[indexOf(order, r.axis)])*spec.StepSize
			}
			loc[r.col] = strconv.FormatFloat(angle, 'g', -1, 64)
		}
		if err := visit(loc); err != nil {
			return err
		}

		// Advance the innermost loop first.
		n := len(order) - 1
		for ; n >= 0; n-- {
			idx[n]++
			if idx[n] < counts[n] {
				break
			}
			idx[n] = 0
		}
		if n < 0 {
			return nil
		}
	}
}

func indexOf(order []models.AxisName, a models.AxisName) int {
	for n, v := range order {
		if v == a {
			return n
		}
	}
	return -1
}
