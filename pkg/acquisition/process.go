// Package acquisition wraps the external process that drives the scanner
// hardware and appends to the record stream, and implements the cooperative
// cancel protocol used to stop it.
package acquisition

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Process is an external acquisition process.
type Process interface {
	// Name identifies the process in operator messages.
	Name() string

	// PID returns the operating system process id.
	PID() int

	// Exited reports without blocking whether the process has exited.
	Exited() bool

	// Wait blocks until the process exits and returns its exit error.
	Wait() error

	// Terminate stops the process forcefully.
	Terminate() error
}

// ExecProcess is a Process started with os/exec.
type ExecProcess struct {
	cmd  *exec.Cmd
	name string

	done chan struct{}
	err  error
}

// Start launches an acquisition command. Its standard output and error are
// passed through to ours.
func Start(command string, args []string, dir string) (*ExecProcess, error) {
	cmd := exec.Command(command, args...)
	cmd.Dir = dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	setProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting acquisition process %s: %w", command, err)
	}

	p := &ExecProcess{
		cmd:  cmd,
		name: filepath.Base(command),
		done: make(chan struct{}),
	}
	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()
	return p, nil
}

func (p *ExecProcess) Name() string { return p.name }

func (p *ExecProcess) PID() int { return p.cmd.Process.Pid }

func (p *ExecProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *ExecProcess) Wait() error {
	<-p.done
	return p.err
}

func (p *ExecProcess) Terminate() error {
	if p.Exited() {
		return nil
	}
	return terminate(p.cmd)
}
