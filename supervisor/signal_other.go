//go:build !unix

package supervisor

import "os"

// No SIGTERM outside unix; both paths end the process outright.
func terminate(p *os.Process) error {
	return p.Kill()
}

func kill(p *os.Process) error {
	return p.Kill()
}
