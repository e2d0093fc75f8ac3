//go:build unix

package process

import (
	"os"
	"syscall"
)

const suspendSupported = true

func suspendProcess(p *os.Process) error {
	return p.Signal(syscall.SIGSTOP)
}

func resumeProcess(p *os.Process) error {
	return p.Signal(syscall.SIGCONT)
}
