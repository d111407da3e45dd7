// Package catalog keeps a sqlite index of the scans found in a data folder and
// of the reconstruction and monitoring runs made on them.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"scanrecon/pkg/logging"
)

// Scan is one scan folder.
type Scan struct {
	Name   string
	System string

	// Path is relative to the catalog root, with forward slashes
	Path string

	// Time is parsed from the folder name; nil when the name has no timestamp
	Time *time.Time

	HasReport bool

	// Metadata is the raw JSON metadata document, empty when missing
	Metadata string

	// Schema and Voxels summarize the metadata when it could be parsed
	Schema string
	Voxels int

	// IsCurated is set by an operator and kept across refreshes
	IsCurated bool
}

// Run is one reconstruction or monitoring session on a scan.
type Run struct {
	ID       string
	Scan     string
	System   string
	Kind     string
	Started  time.Time
	Finished time.Time
	Status   string
	Detail   string
}

// Catalog is the scan index database.
type Catalog struct {
	*sql.DB
}

// Open opens or creates the catalog database at path and brings its schema
// up to date.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	c := &Catalog{db}
	if err := c.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	version, dirty, err := c.SchemaVersion()
	if err != nil {
		db.Close()
		return nil, err
	}
	if dirty {
		db.Close()
		return nil, fmt.Errorf("catalog %s is at dirty schema version %d; fix it by hand and force the version", path, version)
	}
	logging.Debugf("Opened catalog %s at schema version %d", path, version)
	return c, nil
}

// Upsert inserts scans or refreshes the stored ones. The curated flag of an
// existing scan is left untouched.
func (c *Catalog) Upsert(ctx context.Context, scans []Scan) error {
	tx, err := c.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scans (scan_name, scan_system, path, time_folder, has_report, metadata, meta_schema, voxels)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (scan_name, scan_system) DO UPDATE SET
			path = excluded.path,
			time_folder = excluded.time_folder,
			has_report = excluded.has_report,
			metadata = excluded.metadata,
			meta_schema = excluded.meta_schema,
			voxels = excluded.voxels,
			updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range scans {
		var t sql.NullInt64
		if s.Time != nil {
			t = sql.NullInt64{Int64: s.Time.Unix(), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, s.Name, s.System, s.Path, t, s.HasReport, s.Metadata, s.Schema, s.Voxels); err != nil {
			return fmt.Errorf("error storing scan %s/%s: %w", s.System, s.Name, err)
		}
	}
	return tx.Commit()
}

// Refresh discovers the scans under root and stores them. It returns the
// number of scans found.
func (c *Catalog) Refresh(ctx context.Context, root string, systems ...string) (int, error) {
	scans, err := Discover(root, systems...)
	if err != nil {
		return 0, err
	}
	if err := c.Upsert(ctx, scans); err != nil {
		return 0, err
	}
	logging.Infof("Found %s scan folders under %s", humanize.Comma(int64(len(scans))), root)
	return len(scans), nil
}

// Scans lists the catalog newest first. Scans without a folder timestamp
// come last.
func (c *Catalog) Scans(ctx context.Context) ([]Scan, error) {
	rows, err := c.QueryContext(ctx, `
		SELECT scan_name, scan_system, path, time_folder, has_report, metadata, meta_schema, voxels, is_curated
		FROM scans ORDER BY time_folder DESC, scan_system, scan_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scans []Scan
	for rows.Next() {
		var s Scan
		var t sql.NullInt64
		if err := rows.Scan(&s.Name, &s.System, &s.Path, &t, &s.HasReport, &s.Metadata, &s.Schema, &s.Voxels, &s.IsCurated); err != nil {
			return nil, err
		}
		if t.Valid {
			ts := time.Unix(t.Int64, 0)
			s.Time = &ts
		}
		scans = append(scans, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return scans, nil
}

// SetCurated marks or unmarks a scan as curated.
func (c *Catalog) SetCurated(ctx context.Context, system, name string, curated bool) error {
	res, err := c.ExecContext(ctx, "UPDATE scans SET is_curated = ? WHERE scan_system = ? AND scan_name = ?", curated, system, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no scan %s/%s in catalog", system, name)
	}
	return nil
}

// RecordRun stores a run and returns its generated id.
func (c *Catalog) RecordRun(ctx context.Context, r Run) (string, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := c.ExecContext(ctx, `
		INSERT INTO runs (run_id, scan_name, scan_system, kind, started, finished, status, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Scan, r.System, r.Kind, r.Started.UnixMilli(), r.Finished.UnixMilli(), r.Status, r.Detail)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}

// Runs lists the runs of a scan folder name, most recent first.
func (c *Catalog) Runs(ctx context.Context, scan string) ([]Run, error) {
	rows, err := c.QueryContext(ctx, `
		SELECT run_id, scan_name, scan_system, kind, started, finished, status, detail
		FROM runs WHERE scan_name = ? ORDER BY started DESC`, scan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished int64
		if err := rows.Scan(&r.ID, &r.Scan, &r.System, &r.Kind, &started, &finished, &r.Status, &r.Detail); err != nil {
			return nil, err
		}
		r.Started = time.UnixMilli(started)
		r.Finished = time.UnixMilli(finished)
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}
