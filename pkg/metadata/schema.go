package metadata

import (
	"fmt"

	"scanrecon/internal/models"
)

// SchemaKind tags which generation of the metadata key layout a document uses.
type SchemaKind int

const (
	// Legacy documents give absolute max extents per translation axis; every
	// translation axis starts at 0.
	Legacy SchemaKind = iota

	// Modern documents give a center (or start) position plus a length.
	Modern
)

func (k SchemaKind) String() string {
	switch k {
	case Legacy:
		return "legacy"
	case Modern:
		return "modern"
	}
	return fmt.Sprintf("SchemaKind(%d)", int(k))
}

// Schema extracts normalized axis specs from one metadata layout.
type Schema interface {
	Kind() SchemaKind
	Extract(doc document) (map[models.AxisName]models.AxisSpec, error)
}

// translationStepKeys are the scanParameters step size keys for i, j and k.
var translationStepKeys = [3]string{"xScanStepSize_mm", "yScanStepSize_mm", "zScanStepSize_mm"}

var translationAxes = [3]models.AxisName{models.AxisX, models.AxisY, models.AxisZ}

// LegacySchema reads `XMax (mm)` style top level keys, or `xMax_mm` style keys
// inside scanParameters.
type LegacySchema struct {
	// TopLevel is set for the oldest documents that carry extents at the root
	TopLevel bool
}

func (LegacySchema) Kind() SchemaKind { return Legacy }

var (
	legacyTopMaxKeys  = [3]string{"XMax (mm)", "YMax (mm)", "ZMax (mm)"}
	legacyTopStepKeys = [3]string{"XStep (mm)", "YStep (mm)", "ZStep (mm)"}
	legacyMaxKeys     = [3]string{"xMax_mm", "yMax_mm", "zMax_mm"}
)

func (s LegacySchema) Extract(doc document) (map[models.AxisName]models.AxisSpec, error) {
	axes := make(map[models.AxisName]models.AxisSpec)
	params := doc.group("scanParameters")

	for n, name := range translationAxes {
		var max, step float64
		var err error
		if s.TopLevel {
			if max, err = doc.float(legacyTopMaxKeys[n]); err != nil {
				return nil, err
			}
			// Step sizes live at the root or in scanParameters.
			if step, err = doc.float(legacyTopStepKeys[n]); err != nil {
				if step, err = params.float(translationStepKeys[n]); err != nil {
					return nil, err
				}
			}
		} else {
			if max, err = params.float(legacyMaxKeys[n]); err != nil {
				return nil, err
			}
			if step, err = params.float(translationStepKeys[n]); err != nil {
				return nil, err
			}
		}
		spec, err := models.NewAxisSpec(name, 0, max, step)
		if err != nil {
			return nil, err
		}
		axes[name] = spec
	}

	if err := extractOptionalAxes(params, axes); err != nil {
		return nil, err
	}
	return axes, nil
}

// ModernSchema reads center plus length keys from scanParameters.
type ModernSchema struct{}

func (ModernSchema) Kind() SchemaKind { return Modern }

func (ModernSchema) Extract(doc document) (map[models.AxisName]models.AxisSpec, error) {
	axes := make(map[models.AxisName]models.AxisSpec)
	params := doc.group("scanParameters")

	x, err := centered(params, models.AxisX, "xROICenter_mm", "xLength_mm", "xScanStepSize_mm")
	if err != nil {
		return nil, err
	}
	y, err := centered(params, models.AxisY, "yROICenter_mm", "yLength_mm", "yScanStepSize_mm")
	if err != nil {
		return nil, err
	}
	// Depth is anchored at the ROI start, not centered.
	z, err := started(params, models.AxisZ, "zROIStart_mm", "zLength_mm", "zScanStepSize_mm")
	if err != nil {
		return nil, err
	}
	axes[x.Name], axes[y.Name], axes[z.Name] = x, y, z

	if err := extractOptionalAxes(params, axes); err != nil {
		return nil, err
	}
	return axes, nil
}

// extractOptionalAxes adds the transducer axes when azimuthLength_mm is
// present and the rotation axes when alphaAngle_deg is present.
func extractOptionalAxes(params document, axes map[models.AxisName]models.AxisSpec) error {
	if params.has("azimuthLength_mm") {
		axial, err := started(params, models.AxisAxial, "axialROIStart_mm", "axialLength_mm", "axialScanStepSize_mm")
		if err != nil {
			return err
		}
		azimuth, err := centered(params, models.AxisAzimuth, "azimuthROICenter_mm", "azimuthLength_mm", "azimuthScanStepSize_mm")
		if err != nil {
			return err
		}
		axes[axial.Name], axes[azimuth.Name] = axial, azimuth
	}

	if params.has("alphaAngle_deg") {
		for _, r := range []struct {
			name                models.AxisName
			center, angle, step string
		}{
			{models.AxisAlpha, "alphaCenter_deg", "alphaAngle_deg", "alphaScanStepSize_deg"},
			{models.AxisBeta, "betaCenter_deg", "betaAngle_deg", "betaScanStepSize_deg"},
			{models.AxisGamma, "gammaCenter_deg", "gammaAngle_deg", "gammaScanStepSize_deg"},
		} {
			spec, err := centered(params, r.name, r.center, r.angle, r.step)
			if err != nil {
				return err
			}
			axes[r.name] = spec
		}
	}
	return nil
}

func centered(params document, name models.AxisName, centerKey, lengthKey, stepKey string) (models.AxisSpec, error) {
	center, err := params.float(centerKey)
	if err != nil {
		return models.AxisSpec{}, err
	}
	length, err := params.float(lengthKey)
	if err != nil {
		return models.AxisSpec{}, err
	}
	step, err := params.float(stepKey)
	if err != nil {
		return models.AxisSpec{}, err
	}
	return models.NewAxisSpec(name, center-0.5*length, center+0.5*length, step)
}

func started(params document, name models.AxisName, startKey, lengthKey, stepKey string) (models.AxisSpec, error) {
	start, err := params.float(startKey)
	if err != nil {
		return models.AxisSpec{}, err
	}
	length, err := params.float(lengthKey)
	if err != nil {
		return models.AxisSpec{}, err
	}
	step, err := params.float(stepKey)
	if err != nil {
		return models.AxisSpec{}, err
	}
	return models.NewAxisSpec(name, start, start+length, step)
}

// DetectSchema picks the schema generation from the keys present.
func DetectSchema(doc document) (Schema, error) {
	if doc.has(legacyTopMaxKeys[0]) {
		return LegacySchema{TopLevel: true}, nil
	}
	if !doc.has("scanParameters") {
		return nil, &models.ConfigurationError{Reason: "metadata has neither legacy extents nor scanParameters"}
	}
	params := doc.group("scanParameters")
	if params.has(legacyMaxKeys[0]) {
		return LegacySchema{}, nil
	}
	if params.has("xROICenter_mm") && params.has("xLength_mm") {
		return ModernSchema{}, nil
	}
	return nil, &models.ConfigurationError{Reason: "scanParameters match neither the legacy nor the modern schema"}
}
