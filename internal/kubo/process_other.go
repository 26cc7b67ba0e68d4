//go:build !unix

package kubo

import (
	"os"
	"os/exec"
)

func setProcessGroup(*exec.Cmd) {}

func interruptProcess(cmd *exec.Cmd) error {
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}
