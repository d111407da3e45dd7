package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"scanrecon/pkg/catalog"
	"scanrecon/pkg/logging"
	"scanrecon/pkg/metadata"
	"scanrecon/pkg/records"
)

func runMergeAsync(args []string) error {
	fs, cfgPath := newFlagSet("merge-async")
	metaPath := fs.String("metadata", "", "Scan metadata json")
	dir := fs.String("dir", "", "Folder holding imageInfoAsync.csv (default: the metadata folder)")
	fs.Parse(args)

	if *metaPath == "" {
		fs.Usage()
		return fmt.Errorf("-metadata is required")
	}
	if *dir == "" {
		*dir = filepath.Dir(*metaPath)
	}
	if _, err := loadConfig(*cfgPath); err != nil {
		return err
	}
	meta, err := metadata.Load(*metaPath)
	if err != nil {
		return err
	}

	out := filepath.Join(*dir, records.MergedFileName)
	if err := records.MergeAsync(meta, filepath.Join(*dir, records.AsyncFileName), out); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", out)
	return nil
}

func runCatalog(args []string) error {
	fs, cfgPath := newFlagSet("catalog")
	root := fs.String("root", "", "Data folder holding <system>/syncedScanDataFiles/<scan>")
	dbPath := fs.String("db", "", "Catalog database (default from config)")
	systems := fs.String("systems", "", "Comma separated scan systems to index (default: all)")
	csvPath := fs.String("csv", "", "Write the scan list as CSV")
	curate := fs.String("curate", "", "Mark SYSTEM/SCAN as curated")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if *dbPath == "" {
		*dbPath = cfg.Catalog.Database
	}

	c, err := catalog.Open(*dbPath)
	if err != nil {
		return err
	}
	defer c.Close()
	ctx := context.Background()

	if *root != "" {
		if _, err := c.Refresh(ctx, *root, splitList(*systems)...); err != nil {
			return err
		}
	}
	if *curate != "" {
		system, name, ok := strings.Cut(*curate, "/")
		if !ok {
			return fmt.Errorf("-curate needs SYSTEM/SCAN, got %q", *curate)
		}
		if err := c.SetCurated(ctx, system, name, true); err != nil {
			return err
		}
	}

	scans, err := c.Scans(ctx)
	if err != nil {
		return err
	}
	for _, s := range scans {
		when := "undated"
		if s.Time != nil {
			when = humanize.Time(*s.Time)
		}
		flags := ""
		if s.HasReport {
			flags += " report"
		}
		if s.IsCurated {
			flags += " curated"
		}
		fmt.Printf("%-12s %-40s %-16s %10s voxels%s\n", s.System, s.Name, when, humanize.Comma(int64(s.Voxels)), flags)
	}

	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			return err
		}
		if err := c.ExportCSV(ctx, f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		logging.Infof("Wrote scan list to %s", *csvPath)
	}
	return nil
}
