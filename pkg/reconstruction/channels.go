package reconstruction

import (
	"fmt"

	"scanrecon/internal/models"
	"scanrecon/pkg/records"
)

// Channel aliases accepted wherever a channel column is named.
const (
	ChannelEnergy    = "energy"
	ChannelLaser     = "laser"
	ChannelReference = "reference"
)

// channelAliases lists the record columns an alias may refer to, in order of
// preference. The first one present in the stream is used.
var channelAliases = map[string][]string{
	ChannelEnergy:    {records.EnergyColumn},
	ChannelLaser:     {"objectIntensityMean_V", "objectEnergy_J", "objectBeamIntensity"},
	ChannelReference: {"referenceEnergy_J", "referenceIntensityMean_V", "referenceBeamIntensity"},
}

// DefaultSanityThreshold is the magnitude above which a channel value is
// treated as a sensor fault.
const DefaultSanityThreshold = 1e30

// ResolveChannel maps a channel alias or column name to a column of the
// record stream.
func ResolveChannel(l *records.Layout, name string) (string, error) {
	if cols, ok := channelAliases[name]; ok {
		if col, ok := l.FirstPresent(cols...); ok {
			return col, nil
		}
		return "", &models.ReconstructionError{Reason: fmt.Sprintf("no column for channel %s (want one of %v)", name, cols)}
	}
	if l.Has(name) {
		return name, nil
	}
	return "", &models.ReconstructionError{Reason: fmt.Sprintf("record stream has no column %q", name)}
}

// Thresholds maps a channel column to its sanity threshold.
type Thresholds map[string]float64

// For returns the threshold for column, falling back to the threshold of the
// column's alias and then to DefaultSanityThreshold.
func (t Thresholds) For(column string) float64 {
	if v, ok := t[column]; ok && v > 0 {
		return v
	}
	for alias, cols := range channelAliases {
		if contains(cols, column) {
			if v, ok := t[alias]; ok && v > 0 {
				return v
			}
		}
	}
	return DefaultSanityThreshold
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
