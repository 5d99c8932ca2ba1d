//go:build windows

package transcoder

import (
	"os"
	"os/exec"
)

// Windows has no SIGTERM equivalent for console processes, so
// cancellation kills immediately.
const gracefulTermination = false

func setProcessGroup(*exec.Cmd) {}

func interruptProcess(p *os.Process) error {
	return p.Kill()
}

func killProcess(p *os.Process) error {
	return p.Kill()
}
