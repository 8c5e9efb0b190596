package supervisor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Process is a child server the launcher owns.
type Process interface {
	Start() error
	// Terminate asks the process to exit.
	Terminate() error
	Kill() error
	// Exited is closed once the process has been reaped.
	Exited() <-chan struct{}
	ExitErr() error
}

type ExecProcess struct {
	cmd    *exec.Cmd
	exited chan struct{}

	mu      sync.Mutex
	started bool
	exitErr error
}

func NewExecProcess(stdout, stderr io.Writer, name string, args ...string) *ExecProcess {
	cmd := exec.Command(name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = os.Environ()
	return &ExecProcess{
		cmd:    cmd,
		exited: make(chan struct{}),
	}
}

func (p *ExecProcess) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errors.New("process already started")
	}
	if err := p.cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", p.cmd.Path, err)
	}
	p.started = true

	go func() {
		err := p.cmd.Wait()
		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()
		close(p.exited)
	}()
	return nil
}

func (p *ExecProcess) Pid() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *ExecProcess) Terminate() error {
	return p.signal(terminate)
}

func (p *ExecProcess) Kill() error {
	return p.signal(kill)
}

func (p *ExecProcess) signal(send func(*os.Process) error) error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return errors.New("process not started")
	}

	select {
	case <-p.exited:
		return nil
	default:
	}
	if err := send(p.cmd.Process); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

func (p *ExecProcess) Exited() <-chan struct{} {
	return p.exited
}

func (p *ExecProcess) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitErr
}
