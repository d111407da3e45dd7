// Package monitor reconstructs a scan while it is still running. A monitor
// tails the growing record file on a fixed period, scatters new records into
// per-camera display buffers and publishes read-only snapshots to a sink.
package monitor

import (
	"fmt"
	"time"

	"scanrecon/internal/models"
	"scanrecon/pkg/acquisition"
	"scanrecon/pkg/records"
)

// Mode selects what the monitor displays.
type Mode string

const (
	// ModeImage shows the current plane of the two innermost varying axes.
	// The buffers are cleared whenever a new plane starts.
	ModeImage Mode = "image"

	// ModeSlices keeps one image per index of a chosen slice axis.
	ModeSlices Mode = "slices"

	// ModeTimeGraph plots one channel against time per camera and pulse
	// width, for time series scans.
	ModeTimeGraph Mode = "timegraph"
)

// ParseMode converts a configuration string to a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeImage, ModeSlices, ModeTimeGraph:
		return m, nil
	case "":
		return ModeImage, nil
	}
	return "", &models.ConfigurationError{Reason: fmt.Sprintf("unknown monitor mode %q", s)}
}

// DefaultInterval is the refresh period of the monitor.
const DefaultInterval = 3 * time.Second

// Config is the immutable configuration of one monitoring session.
type Config struct {
	Mode Mode

	// RecordsPath is the record file written by the acquisition process
	RecordsPath string

	// AsyncPath, when set, is an asynchronous record file that is merged into
	// RecordsPath before every pass
	AsyncPath string

	// DisplayAxes pins the horizontal, vertical and plane axes. Empty picks
	// them from the scan metadata.
	DisplayAxes []models.AxisName

	// SliceAxis is the axis with one image per index in slices mode
	SliceAxis models.AxisName

	// Channel is the displayed column in image and slices modes
	Channel string

	// GraphChannel is the plotted column in timegraph mode
	GraphChannel string

	// Interval is the refresh period
	Interval time.Duration

	// CancelDir is where the cancel marker is created. Empty uses the local
	// scan data directory from the metadata.
	CancelDir string

	// GracePeriod bounds the wait for the acquisition process after a cancel
	// request
	GracePeriod time.Duration
}

// DefaultConfig returns an image mode configuration for a record file.
func DefaultConfig(recordsPath string) Config {
	return Config{
		Mode:         ModeImage,
		RecordsPath:  recordsPath,
		Channel:      records.EnergyColumn,
		GraphChannel: records.EnergyColumn,
		Interval:     DefaultInterval,
		GracePeriod:  acquisition.DefaultGracePeriod,
	}
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeImage
	}
	if c.Channel == "" {
		c.Channel = records.EnergyColumn
	}
	if c.GraphChannel == "" {
		c.GraphChannel = records.EnergyColumn
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = acquisition.DefaultGracePeriod
	}
	return c
}

// State is the lifecycle state of a monitor.
type State int

const (
	// AwaitingHeader: the record file does not exist yet or its header has
	// not been read.
	AwaitingHeader State = iota

	// Accumulating: records are being scattered into the buffers.
	Accumulating

	// Draining: the acquisition process has exited and the final pass runs.
	Draining

	// Finished: no further updates; the buffers belong to the caller.
	Finished
)

func (s State) String() string {
	switch s {
	case AwaitingHeader:
		return "awaiting header"
	case Accumulating:
		return "accumulating"
	case Draining:
		return "draining"
	case Finished:
		return "finished"
	}
	return fmt.Sprintf("State(%d)", int(s))
}
