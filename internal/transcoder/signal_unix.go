//go:build !windows

package transcoder

import (
	"os"
	"os/exec"
	"syscall"
)

// gracefulTermination reports whether the platform has a cooperative
// termination signal distinct from a hard kill.
const gracefulTermination = true

// setProcessGroup puts the child in its own process group so signals also
// reach any helpers ffmpeg started.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func interruptProcess(p *os.Process) error {
	if err := syscall.Kill(-p.Pid, syscall.SIGTERM); err != nil {
		return p.Signal(syscall.SIGTERM)
	}
	return nil
}

func killProcess(p *os.Process) error {
	if err := syscall.Kill(-p.Pid, syscall.SIGKILL); err != nil {
		return p.Kill()
	}
	return nil
}
