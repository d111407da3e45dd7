package acquisition

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"scanrecon/internal/models"
	"scanrecon/pkg/logging"
	"scanrecon/pkg/timeutil"
)

// CancelFileName is the marker the acquisition process watches for in its
// local scan data directory.
const CancelFileName = "cancel"

// DefaultGracePeriod is how long a cancelled process may take to exit before
// it is terminated.
const DefaultGracePeriod = 30 * time.Second

// Canceller runs the cancel protocol: request a stop through the marker
// file, wait for the process to exit, terminate it when the grace period
// runs out.
type Canceller struct {
	// Dir is the local scan data directory the marker is created in
	Dir string

	// GracePeriod defaults to DefaultGracePeriod
	GracePeriod time.Duration

	// Clock defaults to the real clock
	Clock timeutil.Clock
}

// MarkerPath returns the path of the cancel marker.
func (c *Canceller) MarkerPath() string {
	return filepath.Join(c.Dir, CancelFileName)
}

// Request creates the zero byte cancel marker.
func (c *Canceller) Request() error {
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return fmt.Errorf("error creating scan data directory: %w", err)
	}
	f, err := os.OpenFile(c.MarkerPath(), os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating cancel marker: %w", err)
	}
	return f.Close()
}

// Requested reports whether the cancel marker exists.
func (c *Canceller) Requested() bool {
	_, err := os.Stat(c.MarkerPath())
	return err == nil
}

// Clear removes a stale cancel marker left by a previous scan.
func (c *Canceller) Clear() error {
	err := os.Remove(c.MarkerPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Cancel asks p to stop and waits up to the grace period for it to exit. A
// process that is still running afterwards is terminated and Cancel returns
// a *models.TimeoutError naming the process and the grace period.
func (c *Canceller) Cancel(ctx context.Context, p Process) error {
	grace := c.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	clock := c.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	if err := c.Request(); err != nil {
		return err
	}
	if p.Exited() {
		return nil
	}
	logging.Infof("Scan cancelling; waiting up to %v for %s (pid %d) to exit", grace, p.Name(), p.PID())

	exited := make(chan error, 1)
	go func() { exited <- p.Wait() }()

	select {
	case err := <-exited:
		if err != nil {
			logging.Infof("Acquisition process %s exited: %v", p.Name(), err)
		} else {
			logging.Infof("Acquisition process %s exited cleanly", p.Name())
		}
		return nil
	case <-clock.After(grace):
		terr := p.Terminate()
		timeout := &models.TimeoutError{Process: p.Name(), PID: p.PID(), GracePeriod: grace, TerminateErr: terr}
		logging.Errorf("%v. %s", timeout, timeout.Guidance())
		return timeout
	case <-ctx.Done():
		return ctx.Err()
	}
}
