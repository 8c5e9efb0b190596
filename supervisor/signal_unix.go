//go:build unix

package supervisor

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func terminate(p *os.Process) error {
	return sendSignal(p, unix.SIGTERM)
}

func kill(p *os.Process) error {
	return sendSignal(p, unix.SIGKILL)
}

func sendSignal(p *os.Process, sig unix.Signal) error {
	if err := unix.Kill(p.Pid, sig); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	return nil
}
