package reconstruction

import (
	"fmt"

	"scanrecon/internal/models"
)

// SelectAxes chooses the three axes to materialize as a dense volume when the
// caller did not name them.
//
// Axes are partitioned into varying (count > 1) and static ones, both kept in
// declaration order, and picked as follows:
//   - three or more varying axes: the first three varying axes (volume scan)
//   - two varying axes: both, plus the first static axis (plane scan)
//   - one varying axis: it, plus the first two static axes (line scan)
//   - no varying axis: the first three static axes (point scan), which are the
//     translation axes
//
// The result depends only on the axis counts, so the same metadata always
// yields the same selection.
//
// Parameters:
//   - axes: every axis declared by the scan metadata
//
// Returns:
//   - The three selected axis names in the order given above
//   - A ConfigurationError if fewer than three axes are declared
func SelectAxes(axes map[models.AxisName]models.AxisSpec) ([3]models.AxisName, error) {
	var varying, static []models.AxisName
	for _, a := range models.DeclarationOrder {
		spec, ok := axes[a]
		if !ok {
			continue
		}
		if spec.Varies() {
			varying = append(varying, a)
		} else {
			static = append(static, a)
		}
	}

	var sel [3]models.AxisName
	if len(varying)+len(static) < 3 {
		return sel, &models.ConfigurationError{
			Reason: fmt.Sprintf("need at least 3 axes to build a volume, metadata declares %d", len(varying)+len(static)),
		}
	}

	var picked []models.AxisName
	switch {
	case len(varying) >= 3:
		picked = varying[:3]
	case len(varying) == 2:
		picked = append(varying[:2:2], static[0])
	case len(varying) == 1:
		picked = append(varying[:1:1], static[:2]...)
	default:
		picked = static[:3]
	}
	copy(sel[:], picked)
	return sel, nil
}

// ResolveAxes returns the requested axes verbatim, or the automatic selection
// when none are requested. Every requested axis must be declared by the
// metadata.
func ResolveAxes(axes map[models.AxisName]models.AxisSpec, requested []models.AxisName) ([3]models.AxisName, error) {
	var sel [3]models.AxisName
	if len(requested) == 0 {
		return SelectAxes(axes)
	}
	if len(requested) != 3 {
		return sel, &models.ConfigurationError{Reason: fmt.Sprintf("exactly 3 axes must be requested, got %d", len(requested))}
	}

	seen := make(map[models.AxisName]bool, 3)
	for n, a := range requested {
		if _, ok := axes[a]; !ok {
			return sel, &models.ConfigurationError{Reason: fmt.Sprintf("requested axis %s is not declared by the scan metadata", a)}
		}
		if seen[a] {
			return sel, &models.ConfigurationError{Reason: fmt.Sprintf("axis %s requested twice", a)}
		}
		seen[a] = true
		sel[n] = a
	}
	return sel, nil
}

// ParseAxes converts a list of axis names or coordinate labels ("i", "x",
// "alphai", ...) to axis names.
func ParseAxes(names []string) ([]models.AxisName, error) {
	out := make([]models.AxisName, 0, len(names))
	for _, s := range names {
		a, err := models.ParseAxisName(s)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
