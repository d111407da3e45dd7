package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"scanrecon/internal/models"
	"scanrecon/pkg/catalog"
	"scanrecon/pkg/interpolation"
	"scanrecon/pkg/logging"
	"scanrecon/pkg/reconstruction"
	"scanrecon/pkg/visualization"
)

func runReconstruct(args []string) error {
	fs, cfgPath := newFlagSet("reconstruct")
	scanDir := fs.String("scan", "", "Scan folder holding the metadata json and the record file")
	axes := fs.String("axes", "", "Comma separated axes to reconstruct (default: selected from the metadata)")
	channel := fs.String("channel", reconstruction.ChannelEnergy, "Channel alias or record column")
	camera := fs.String("camera", "", "Camera ID (default: the sample camera)")
	background := fs.String("background", "", "Homogeneous background scan folder to subtract")
	fill := fs.Bool("fill", false, "Fill NaN voxels from the nearest finite voxel")
	slicesDir := fs.String("slices-dir", "", "Directory to save slices along every axis")
	region := fs.String("region", "", "Crop to START:SIZE voxels, e.g. 0,0,2:4,4,1")
	dbPath := fs.String("db", "", "Catalog database to record the run in")
	fs.Parse(args)

	if *scanDir == "" {
		fs.Usage()
		return fmt.Errorf("-scan is required")
	}
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	params, err := cfg.BatchParams()
	if err != nil {
		return err
	}
	if *axes != "" {
		if params.Axes, err = reconstruction.ParseAxes(splitList(*axes)); err != nil {
			return err
		}
	}
	params.Channels = appendMissing(params.Channels, *channel)

	opts := reconstructOptions{
		channel:    *channel,
		camera:     *camera,
		background: *background,
		fill:       *fill,
		slicesDir:  *slicesDir,
	}
	if *region != "" {
		if opts.start, opts.size, err = parseRegion(*region); err != nil {
			return err
		}
		opts.crop = true
	}

	started := time.Now()
	err = reconstruct(*scanDir, params, opts)
	if *dbPath != "" {
		recordRun(*dbPath, *scanDir, "reconstruct", started, err)
	}
	return err
}

type reconstructOptions struct {
	channel    string
	camera     string
	background string
	fill       bool
	slicesDir  string

	crop        bool
	start, size [3]int
}

func reconstruct(scanDir string, params reconstruction.Params, opts reconstructOptions) error {
	channel := opts.channel
	scan, err := reconstruction.LoadScan(scanDir, params)
	if err != nil {
		return err
	}
	vol, grid, err := scan.Volume(channel, opts.camera)
	if err != nil {
		return err
	}

	if opts.background != "" {
		bgParams := params
		bgParams.Axes = append([]models.AxisName(nil), grid.Axes[:]...)
		bgParams.SelectColumn = ""
		bg, err := reconstruction.LoadScan(opts.background, bgParams)
		if err != nil {
			return fmt.Errorf("background scan: %w", err)
		}
		bgVol, bgGrid, err := bg.Volume(channel, "")
		if err != nil {
			return fmt.Errorf("background scan: %w", err)
		}
		if vol, err = reconstruction.SubtractBackground(vol, grid, bgVol, bgGrid); err != nil {
			return err
		}
	}

	if opts.fill {
		var n int
		if vol, n, err = interpolation.FillNearest(vol, grid.Coords); err != nil {
			return err
		}
		logging.Infof("Filled %s voxels from their nearest neighbour", humanize.Comma(int64(n)))
	}

	viewer := visualization.NewViewer(vol)
	if opts.crop {
		region, err := viewer.ExtractRegion(opts.start, opts.size)
		if err != nil {
			return &models.ConfigurationError{Reason: fmt.Sprintf("region %v+%v of a %v volume: %v", opts.start, opts.size, vol.Shape, err)}
		}
		vol, grid = region, grid.Region(opts.start, opts.size)
		viewer = visualization.NewViewer(vol)
	}

	printSummary(scan, vol, grid, channel)

	if opts.slicesDir != "" {
		for _, a := range grid.Axes {
			dir := filepath.Join(opts.slicesDir, a.Label())
			n, err := viewer.SaveSliceSequence(string(a), dir)
			if err != nil {
				logging.Warningf("Failed to save %s slices: %v", a.Label(), err)
				continue
			}
			fmt.Printf("Saved %d %s slices to %s\n", n, a.Label(), dir)
		}
	}
	return nil
}

func printSummary(scan *reconstruction.ScanData, vol *models.Volume, grid *reconstruction.VolumeGrid, channel string) {
	s := reconstruction.Summarize(vol)
	labels := grid.Labels()
	shape := grid.Shape()

	fmt.Println("================================")
	fmt.Printf("Scan: %s\n", scan.Dir)
	fmt.Printf("Sample camera: %s (cameras %v)\n", scan.Result.SampleCamera, scan.Result.Cameras)
	fmt.Printf("Channel: %s -> %s\n", channel, scan.Result.Columns[channel])
	fmt.Println("================================")
	for n := range labels {
		c := grid.Coords[n]
		fmt.Printf("%-9s %4d points  %g .. %g\n", labels[n], shape[n], c[0], c[len(c)-1])
	}
	fmt.Printf("Finite voxels: %s of %s\n", humanize.Comma(int64(s.Finite)), humanize.Comma(int64(vol.Len())))
	fmt.Printf("Min %g  Max %g  Mean %g  StdDev %g\n", s.Min, s.Max, s.Mean, s.StdDev)
}

// recordRun stores the outcome of a command in the catalog. Failures to
// record are logged only.
func recordRun(dbPath, scanDir, kind string, started time.Time, runErr error) {
	c, err := catalog.Open(dbPath)
	if err != nil {
		logging.Warningf("Cannot open catalog %s: %v", dbPath, err)
		return
	}
	defer c.Close()

	run := catalog.Run{
		Scan:     filepath.Base(scanDir),
		System:   filepath.Base(filepath.Dir(filepath.Dir(scanDir))),
		Kind:     kind,
		Started:  started,
		Finished: time.Now(),
		Status:   "ok",
	}
	var timeout *models.TimeoutError
	switch {
	case errors.As(runErr, &timeout):
		run.Status = "timeout"
		run.Detail = runErr.Error()
	case runErr != nil:
		run.Status = "failed"
		run.Detail = runErr.Error()
	}
	id, err := c.RecordRun(context.Background(), run)
	if err != nil {
		logging.Warningf("Cannot record run: %v", err)
		return
	}
	logging.Infof("Recorded %s run %s", kind, id)
}

// parseRegion reads START:SIZE with three comma separated voxel counts on
// each side.
func parseRegion(s string) (start, size [3]int, err error) {
	lo, hi, ok := strings.Cut(s, ":")
	if !ok {
		return start, size, fmt.Errorf("region %q is not START:SIZE", s)
	}
	if start, err = parseTriple(lo); err != nil {
		return start, size, fmt.Errorf("region start: %w", err)
	}
	if size, err = parseTriple(hi); err != nil {
		return start, size, fmt.Errorf("region size: %w", err)
	}
	return start, size, nil
}

func parseTriple(s string) ([3]int, error) {
	var v [3]int
	parts := splitList(s)
	if len(parts) != 3 {
		return v, fmt.Errorf("%q needs three values", s)
	}
	for n, p := range parts {
		i, err := strconv.Atoi(p)
		if err != nil {
			return v, err
		}
		v[n] = i
	}
	return v, nil
}

func appendMissing(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
