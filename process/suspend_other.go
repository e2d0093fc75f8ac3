//go:build !unix

package process

import (
	"errors"
	"os"
)

const suspendSupported = false

var errNoSuspend = errors.New("process suspension not available")

func suspendProcess(*os.Process) error {
	return errNoSuspend
}

func resumeProcess(*os.Process) error {
	return errNoSuspend
}
