package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"scanrecon/pkg/logging"
	"scanrecon/pkg/metadata"
)

const (
	// SyncedDirName is the folder of a scan system that holds its scans
	SyncedDirName = "syncedScanDataFiles"

	// ReportFileName is the PDF report generated after a scan
	ReportFileName = "scan_report.pdf"

	// FolderTimeLayout is the timestamp prefix of a scan folder name
	FolderTimeLayout = "2006_01_02_15_04"
)

// reportDirs are the folders, relative to a scan folder, searched for the
// report.
var reportDirs = []string{".", "syncedDataFiles"}

// Discover walks <root>/<system>/syncedScanDataFiles/<scan> and describes
// every scan folder whose name contains a digit. An empty systems list
// searches every system under root. Scans are returned sorted by path.
func Discover(root string, systems ...string) ([]Scan, error) {
	if len(systems) == 0 {
		systems = []string{"*"}
	}

	var dirs []string
	for _, s := range systems {
		matches, err := filepath.Glob(filepath.Join(root, s, SyncedDirName, "*"))
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, matches...)
	}
	sort.Strings(dirs)

	var scans []Scan
	for _, dir := range dirs {
		name := filepath.Base(dir)
		if !strings.ContainsFunc(name, unicode.IsDigit) {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		rel, err := filepath.Rel(root, dir)
		if err != nil {
			return nil, err
		}
		scans = append(scans, describe(dir, filepath.ToSlash(rel)))
	}
	return scans, nil
}

func describe(dir, rel string) Scan {
	parts := strings.Split(rel, "/")
	s := Scan{
		Name:   parts[len(parts)-1],
		System: parts[0],
		Path:   rel,
	}
	if t, ok := FolderTime(s.Name); ok {
		s.Time = &t
	}
	for _, d := range reportDirs {
		if _, err := os.Stat(filepath.Join(dir, d, ReportFileName)); err == nil {
			s.HasReport = true
			break
		}
	}

	docs, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	if len(docs) == 0 {
		return s
	}
	data, err := os.ReadFile(docs[0])
	if err != nil || !json.Valid(data) {
		logging.Warningf("Error decoding JSON %s", docs[0])
		return s
	}
	s.Metadata = string(data)
	if meta, err := metadata.Parse(data); err == nil {
		s.Schema = meta.Schema.String()
		s.Voxels = meta.TotalVoxels()
	} else {
		logging.Debugf("%s: %v", docs[0], err)
	}
	return s
}

// FolderTime parses the local time prefix of a scan folder name such as
// 2019_06_12_14_03_phantom.
func FolderTime(name string) (time.Time, bool) {
	if len(name) < len(FolderTimeLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(FolderTimeLayout, name[:len(FolderTimeLayout)], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
