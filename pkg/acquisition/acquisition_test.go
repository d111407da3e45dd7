package acquisition

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scanrecon/internal/models"
	"scanrecon/pkg/timeutil"
)

// fakeProcess exits when its exit channel is closed, either by the test or
// by Terminate.
type fakeProcess struct {
	mu         sync.Mutex
	exit       chan struct{}
	terminated bool
	ignoreTerm bool
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{exit: make(chan struct{})}
}

func (p *fakeProcess) Name() string { return "ScanningSystem.exe" }
func (p *fakeProcess) PID() int     { return 4242 }

func (p *fakeProcess) Exited() bool {
	select {
	case <-p.exit:
		return true
	default:
		return false
	}
}

func (p *fakeProcess) Wait() error {
	<-p.exit
	return nil
}

func (p *fakeProcess) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminated = true
	if p.ignoreTerm {
		return errors.New("permission denied")
	}
	p.stop()
	return nil
}

func (p *fakeProcess) stop() {
	select {
	case <-p.exit:
	default:
		close(p.exit)
	}
}

func (p *fakeProcess) wasTerminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

func TestCancelTimesOut(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c := &Canceller{Dir: filepath.Join(t.TempDir(), "local"), GracePeriod: 30 * time.Second, Clock: clock}
	proc := newFakeProcess()

	result := make(chan error, 1)
	go func() { result <- c.Cancel(context.Background(), proc) }()

	clock.BlockUntil(1)
	assert.True(t, c.Requested(), "marker is created before waiting")

	clock.Advance(29 * time.Second)
	assert.False(t, proc.wasTerminated())
	clock.Advance(time.Second)

	var err error
	select {
	case err = <-result:
	case <-time.After(5 * time.Second):
		t.Fatal("Cancel did not return after the grace period")
	}

	var timeout *models.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.True(t, proc.wasTerminated())
	assert.Equal(t, 30*time.Second, timeout.GracePeriod)
	assert.Contains(t, err.Error(), "30s")
	assert.Contains(t, err.Error(), "ScanningSystem.exe")
	assert.Contains(t, err.Error(), "4242")
	assert.Contains(t, timeout.Guidance(), "ScanningSystem.exe")
	assert.NoError(t, timeout.TerminateErr)
}

func TestCancelReportsFailedTerminate(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c := &Canceller{Dir: t.TempDir(), GracePeriod: time.Second, Clock: clock}
	proc := newFakeProcess()
	proc.ignoreTerm = true

	result := make(chan error, 1)
	go func() { result <- c.Cancel(context.Background(), proc) }()
	clock.BlockUntil(1)
	clock.Advance(time.Second)

	err := <-result
	var timeout *models.TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.EqualError(t, timeout.TerminateErr, "permission denied")
}

func TestCancelCleanExit(t *testing.T) {
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	c := &Canceller{Dir: t.TempDir(), Clock: clock}
	proc := newFakeProcess()

	result := make(chan error, 1)
	go func() { result <- c.Cancel(context.Background(), proc) }()
	clock.BlockUntil(1)
	proc.stop()

	select {
	case err := <-result:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Cancel did not return after the process exited")
	}
	assert.False(t, proc.wasTerminated())
}

func TestCancelAlreadyExited(t *testing.T) {
	c := &Canceller{Dir: t.TempDir()}
	proc := newFakeProcess()
	proc.stop()
	assert.NoError(t, c.Cancel(context.Background(), proc))
	assert.True(t, c.Requested())
}

func TestCancelContext(t *testing.T) {
	c := &Canceller{Dir: t.TempDir(), Clock: timeutil.NewMockClock(time.Unix(0, 0))}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Cancel(ctx, newFakeProcess())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMarker(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scan")
	c := &Canceller{Dir: dir}
	assert.False(t, c.Requested())
	require.NoError(t, c.Request())

	info, err := os.Stat(filepath.Join(dir, CancelFileName))
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	require.NoError(t, c.Clear())
	assert.False(t, c.Requested())
	assert.NoError(t, c.Clear())
}

func TestExecProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	p, err := Start("sh", []string{"-c", "exit 0"}, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "sh", p.Name())
	assert.Positive(t, p.PID())
	assert.NoError(t, p.Wait())
	assert.True(t, p.Exited())
	assert.NoError(t, p.Terminate())

	p, err = Start("sh", []string{"-c", "sleep 60"}, t.TempDir())
	require.NoError(t, err)
	assert.False(t, p.Exited())
	require.NoError(t, p.Terminate())
	assert.Error(t, p.Wait())
}
