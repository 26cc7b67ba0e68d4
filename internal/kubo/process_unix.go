//go:build unix

package kubo

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup detaches the daemon from the terminal's process group so
// a Ctrl+C aimed at pinpost prompts does not reach it.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func interruptProcess(cmd *exec.Cmd) error {
	pgid, err := unix.Getpgid(cmd.Process.Pid)
	if err != nil {
		return err
	}
	return unix.Kill(-pgid, unix.SIGINT)
}
