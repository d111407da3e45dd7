//go:build !unix

package acquisition

import "os/exec"

func setProcessGroup(cmd *exec.Cmd) {}

func terminate(cmd *exec.Cmd) error {
	return cmd.Process.Kill()
}
