package models

import (
	"fmt"
	"math"
)

// AxisName identifies one scannable dimension of the instrument. The value is
// the name of the integer index column written to the record stream.
type AxisName string

const (
	// Translation stages
	AxisX AxisName = "i"
	AxisY AxisName = "j"
	AxisZ AxisName = "k"

	// Ultrasound transducer element axes
	AxisAxial   AxisName = "ustxZ"
	AxisAzimuth AxisName = "ustxX"

	// Rotation angles
	AxisAlpha AxisName = "alphai"
	AxisBeta  AxisName = "betai"
	AxisGamma AxisName = "gammai"
)

// DeclarationOrder is the order axes are declared in scan metadata: translation
// axes first, then axial/azimuth, then alpha/beta/gamma. Batch axis selection
// walks axes in this order.
var DeclarationOrder = []AxisName{
	AxisX, AxisY, AxisZ,
	AxisAxial, AxisAzimuth,
	AxisAlpha, AxisBeta, AxisGamma,
}

// LoopOrder lists axes from the innermost acquisition loop outwards. The live
// monitor picks its display axes in this order.
var LoopOrder = []AxisName{
	AxisAxial, AxisAzimuth,
	AxisX, AxisY, AxisZ,
	AxisAlpha, AxisBeta, AxisGamma,
}

// coordinateLabels maps an index axis to the name of its physical coordinate.
var coordinateLabels = map[AxisName]string{
	AxisX:       "x",
	AxisY:       "y",
	AxisZ:       "z",
	AxisAzimuth: "azim_x",
	AxisAxial:   "axial_z",
	AxisAlpha:   "alphaAng",
	AxisBeta:    "betaAng",
	AxisGamma:   "gammaAng",
}

// Label returns the physical coordinate label used for plot axes.
func (a AxisName) Label() string {
	if l, ok := coordinateLabels[a]; ok {
		return l
	}
	return string(a)
}

// Valid reports whether a is one of the eight known axes.
func (a AxisName) Valid() bool {
	_, ok := coordinateLabels[a]
	return ok
}

// ParseAxisName accepts either the index column name ("i") or the coordinate
// label ("x") and returns the axis.
func ParseAxisName(s string) (AxisName, error) {
	if AxisName(s).Valid() {
		return AxisName(s), nil
	}
	for a, l := range coordinateLabels {
		if l == s {
			return a, nil
		}
	}
	return "", &ConfigurationError{Reason: fmt.Sprintf("unknown axis %q", s)}
}

// AxisSpec is one scannable dimension of a scan.
type AxisSpec struct {
	Name     AxisName
	Min      float64
	Max      float64
	StepSize float64

	// Count is floor((Max-Min)/StepSize)+1. A count of 1 means the axis did
	// not vary during the scan.
	Count int
}

// NewAxisSpec builds an AxisSpec and derives its count from the step size.
func NewAxisSpec(name AxisName, min, max, step float64) (AxisSpec, error) {
	spec := AxisSpec{Name: name, Min: min, Max: max, StepSize: step}

	extent := max - min
	switch {
	case math.IsNaN(extent) || math.IsNaN(step):
		return spec, &ConfigurationError{Reason: fmt.Sprintf("axis %s has non-numeric extent or step", name)}
	case extent < 0:
		return spec, &ConfigurationError{Reason: fmt.Sprintf("axis %s max %g is below min %g", name, max, min)}
	case extent == 0:
		spec.Count = 1
		return spec, nil
	case step <= 0:
		return spec, &ConfigurationError{Reason: fmt.Sprintf("axis %s has length %g but step size %g", name, extent, step)}
	}

	// Plain floor, matching the acquisition loop: a 0.3 length at 0.1 steps
	// evaluates to 2.999..., so the scanner writes indices 0..2 only.
	spec.Count = int(math.Floor(extent/step)) + 1
	return spec, nil
}

// Varies reports whether the axis took more than one position.
func (s AxisSpec) Varies() bool {
	return s.Count > 1
}
