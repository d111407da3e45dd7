package reconstruction

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"

	"scanrecon/internal/models"
	"scanrecon/pkg/logging"
	"scanrecon/pkg/metadata"
	"scanrecon/pkg/records"
)

// Record file names in order of preference when a scan folder holds several.
var recordFileNames = []string{records.MergedFileName, "image_info.csv"}

// ScanFiles are the files of one scan folder.
type ScanFiles struct {
	Records  string
	Metadata string
}

// FindScanFiles locates the record file and the metadata document of a scan
// folder. The record file is the only *.csv file of the folder (or the only
// *.txt file when there is no csv); with several candidates imageInfo.csv and
// then image_info.csv are preferred. The metadata document is required.
func FindScanFiles(dir string) (ScanFiles, error) {
	var files ScanFiles

	metas, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return files, err
	}
	if len(metas) == 0 {
		return files, &models.ConfigurationError{Reason: fmt.Sprintf("no metadata json file in %s", dir)}
	}
	sort.Strings(metas)
	files.Metadata = metas[0]

	candidates, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return files, err
	}
	if len(candidates) == 0 {
		if candidates, err = filepath.Glob(filepath.Join(dir, "*.txt")); err != nil {
			return files, err
		}
	}
	sort.Strings(candidates)

	switch len(candidates) {
	case 0:
		return files, &models.ReconstructionError{Reason: fmt.Sprintf("no record file in %s", dir)}
	case 1:
		files.Records = candidates[0]
		return files, nil
	}
	for _, name := range recordFileNames {
		for _, c := range candidates {
			if filepath.Base(c) == name {
				files.Records = c
				return files, nil
			}
		}
	}
	return files, &models.ReconstructionError{Reason: fmt.Sprintf("cannot tell which of %d record files in %s to use", len(candidates), dir)}
}

// ScanData is a loaded and reconstructed scan.
type ScanData struct {
	Dir    string
	Meta   *metadata.ScanMetadata
	Stream *records.Stream
	Result *Result

	records []models.Record
	params  Params
}

// LoadScan loads a scan folder and reconstructs it.
//
// Parameters:
//   - dir: The scan folder holding the metadata json and the record file
//   - params: Reconstruction parameters
//
// Returns:
//   - The loaded scan
//   - An error if the folder cannot be read or reconstructed
func LoadScan(dir string, params Params) (*ScanData, error) {
	files, err := FindScanFiles(dir)
	if err != nil {
		return nil, err
	}
	meta, err := metadata.Load(files.Metadata)
	if err != nil {
		return nil, err
	}
	stream, err := records.ReadFile(files.Records)
	if err != nil {
		return nil, err
	}
	for _, e := range stream.Skipped {
		logging.Warningf("%s: %v", filepath.Base(files.Records), e)
	}
	logging.Infof("Loaded %s records from %s (%s schema, %s voxels declared)",
		humanize.Comma(int64(len(stream.Records))), files.Records, meta.Schema,
		humanize.Comma(int64(meta.TotalVoxels())))

	res, err := NewReconstructor(meta, params).Reconstruct(stream)
	if err != nil {
		return nil, err
	}

	recs := stream.Records
	if params.SelectColumn != "" {
		recs = records.Filter(recs, params.SelectColumn, params.SelectValue)
	}
	return &ScanData{
		Dir:     dir,
		Meta:    meta,
		Stream:  stream,
		Result:  res,
		records: recs,
		params:  params,
	}, nil
}

// Grid returns the coordinate grid shared by every volume of the scan.
func (s *ScanData) Grid() *VolumeGrid {
	return s.Result.Grid
}

// Labels returns the physical coordinate label of each volume axis.
func (s *ScanData) Labels() [3]string {
	return s.Result.Grid.Labels()
}

// Volume returns the dense volume of a channel for a camera together with its
// coordinate grid. channel is an alias or any numeric column of the record
// stream; an empty camera selects the sample camera. Columns that were not
// part of the reconstruction are scattered on first use.
func (s *ScanData) Volume(channel, camera string) (*models.Volume, *VolumeGrid, error) {
	if camera == "" {
		camera = s.Result.SampleCamera
	}
	if v, err := s.Result.Volume(channel, camera); err == nil {
		return v, s.Result.Grid, nil
	}

	col, err := ResolveChannel(s.Stream.Layout, channel)
	if err != nil {
		return nil, nil, err
	}
	byCol, ok := s.Result.Volumes[camera]
	if !ok {
		return nil, nil, &models.ConfigurationError{Reason: fmt.Sprintf("no records for camera %s", camera)}
	}
	if v, ok := byCol[col]; ok {
		return v, s.Result.Grid, nil
	}

	var recs []models.Record
	for _, r := range s.records {
		if r.CameraID == camera {
			recs = append(recs, r)
		}
	}
	v, faults := Scatter(recs, s.Result.Axes, s.Result.Grid.Shape(), col, s.params.Thresholds.For(col))
	if faults > 0 {
		logging.Warningf("Camera %s channel %s: %d values above the sanity threshold replaced by NaN", camera, col, faults)
	}
	byCol[col] = v
	s.Result.Columns[channel] = col
	return v, s.Result.Grid, nil
}
