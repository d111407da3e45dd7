package reconstruction

import (
	"sort"

	"scanrecon/internal/models"
	"scanrecon/pkg/logging"
	"scanrecon/pkg/metadata"
)

// ResolveSampleCamera determines which camera recorded the sample beam.
//
// A scan with a single camera uses it unconditionally. With several cameras
// the metadata role mapping decides, and a mapping without a "sample" entry is
// a ConfigurationError. Without a role mapping the camera of the first record
// in arrival order is used; this depends on acquisition order and is logged
// as a warning.
func ResolveSampleCamera(meta *metadata.ScanMetadata, recs []models.Record) (string, error) {
	cams := meta.CameraIDs
	if len(cams) == 0 {
		cams = Cameras(recs)
	}
	switch len(cams) {
	case 0:
		return "", &models.ConfigurationError{Reason: "no cameras in scan metadata or records"}
	case 1:
		return cams[0], nil
	}

	if meta.HasRoles() {
		ids := make([]string, 0, len(meta.CameraRoles))
		for id := range meta.CameraRoles {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if meta.CameraRoles[id] == metadata.SampleRole {
				return id, nil
			}
		}
		return "", &models.ConfigurationError{Reason: "camera roles are set but no camera is marked " + metadata.SampleRole}
	}

	first, ok := firstArrival(recs)
	if !ok {
		return "", &models.ConfigurationError{Reason: "several cameras, no role mapping and no records to pick a sample camera from"}
	}
	logging.Warningf("No camera roles in scan metadata; using camera %s of the first record as the sample beam", first)
	return first, nil
}

// Cameras returns the distinct camera ids of recs in order of first arrival.
func Cameras(recs []models.Record) []string {
	sorted := bySeq(recs)
	var out []string
	seen := make(map[string]bool)
	for _, r := range sorted {
		if !seen[r.CameraID] {
			seen[r.CameraID] = true
			out = append(out, r.CameraID)
		}
	}
	return out
}

func firstArrival(recs []models.Record) (string, bool) {
	if len(recs) == 0 {
		return "", false
	}
	first := recs[0]
	for _, r := range recs[1:] {
		if r.Seq < first.Seq {
			first = r
		}
	}
	return first.CameraID, true
}

// bySeq returns a copy of recs in arrival order.
func bySeq(recs []models.Record) []models.Record {
	out := make([]models.Record, len(recs))
	copy(out, recs)
	sort.SliceStable(out, func(a, b int) bool { return out[a].Seq < out[b].Seq })
	return out
}
