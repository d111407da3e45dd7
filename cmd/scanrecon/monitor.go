package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"scanrecon/pkg/acquisition"
	"scanrecon/pkg/logging"
	"scanrecon/pkg/metadata"
	"scanrecon/pkg/monitor"
	"scanrecon/pkg/records"
	"scanrecon/pkg/visualization"
)

func runMonitor(args []string) error {
	fs, cfgPath := newFlagSet("monitor")
	metaPath := fs.String("metadata", "", "Scan metadata json written before acquisition starts")
	recordsPath := fs.String("records", "", "Record file written by the acquisition process (default: imageInfo.csv next to the metadata)")
	mode := fs.String("mode", "", "Display mode: image, slices or timegraph (default from config)")
	sliceAxis := fs.String("slice-axis", "", "Axis with one image per index in slices mode")
	framesDir := fs.String("frames", "", "Directory to write the display frames to")
	dbPath := fs.String("db", "", "Catalog database to record the run in")
	fs.Parse(args)

	command := fs.Args()
	if *metaPath == "" || len(command) == 0 {
		fs.Usage()
		return fmt.Errorf("-metadata and an acquisition command are required")
	}
	if *recordsPath == "" {
		*recordsPath = filepath.Join(filepath.Dir(*metaPath), records.MergedFileName)
	}

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *mode != "" {
		cfg.Monitor.Mode = *mode
	}
	if *sliceAxis != "" {
		cfg.Monitor.SliceAxis = *sliceAxis
	}
	mcfg, err := cfg.MonitorConfig(*recordsPath)
	if err != nil {
		return err
	}
	meta, err := metadata.Load(*metaPath)
	if err != nil {
		return err
	}

	var opts []monitor.Option
	if *framesDir != "" {
		w, err := visualization.NewFrameWriter(*framesDir)
		if err != nil {
			return err
		}
		opts = append(opts, monitor.WithSink(w))
	}

	if err := monitor.ClearStaleCancel(meta, mcfg); err != nil {
		return err
	}
	proc, err := acquisition.Start(command[0], command[1:], "")
	if err != nil {
		return err
	}
	m, err := monitor.New(meta, proc, mcfg, opts...)
	if err != nil {
		proc.Terminate()
		return err
	}
	logging.Infof("Monitor session %s: %s mode, display %v, acquisition pid %d",
		m.Session(), mcfg.Mode, m.Display().Axes(), proc.PID())

	// The first interrupt requests cooperative cancellation, the second
	// abandons the session.
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go func() {
		<-sigs
		logging.Warningf("Interrupted; asking %s to stop", proc.Name())
		m.Cancel()
		<-sigs
		stop()
	}()

	started := time.Now()
	err = m.Run(ctx)

	snap := m.Snapshot()
	if snap != nil {
		fmt.Printf("Session %s %s: %d records, %.0f%% complete, %d warnings\n",
			snap.Session, snap.State, snap.Records, snap.Progress*100, len(snap.Warnings))
	}
	if *dbPath != "" {
		recordRun(*dbPath, filepath.Dir(*metaPath), "monitor", started, err)
	}
	return err
}
