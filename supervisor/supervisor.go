// Package supervisor runs the detection server as a child process, waits for
// it to come up, optionally exposes it through a public tunnel, and tears
// everything down along a single shutdown path.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrServerExited = errors.New("server process exited")
	ErrTunnelClosed = errors.New("tunnel closed")
)

type Config struct {
	Backend      *url.URL
	ReadyTimeout time.Duration
	GracePeriod  time.Duration
}

type Supervisor struct {
	cfg        Config
	proc       Process
	probe      Prober
	openTunnel TunnelOpener
	state      *StateMachine
	log        *logrus.Logger
	out        io.Writer

	mu       sync.Mutex
	started  bool
	tunnel   Tunnel
	stopOnce sync.Once
}

// New builds a supervisor. openTunnel may be nil to serve locally only. The
// public URL is written to out once the tunnel is up.
func New(cfg Config, proc Process, probe Prober, openTunnel TunnelOpener, log *logrus.Logger, out io.Writer) *Supervisor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if out == nil {
		out = io.Discard
	}
	s := &Supervisor{
		cfg:        cfg,
		proc:       proc,
		probe:      probe,
		openTunnel: openTunnel,
		log:        log,
		out:        out,
	}
	s.state = NewStateMachine(func(from, to State) {
		log.WithFields(logrus.Fields{"from": from.String(), "to": to.String()}).Info("Launcher state changed")
	})
	return s
}

func (s *Supervisor) State() State {
	return s.state.State()
}

// PublicURL is empty until the tunnel is open.
func (s *Supervisor) PublicURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tunnel == nil {
		return ""
	}
	return s.tunnel.URL()
}

// Run launches the server and blocks until ctx ends, the server exits, or the
// tunnel fails. It always returns in the stopped state. Cancellation of ctx is
// a normal stop and yields nil.
func (s *Supervisor) Run(ctx context.Context) error {
	if err := s.launch(ctx); err != nil {
		if ctx.Err() != nil {
			s.shutdown("interrupted")
			return nil
		}
		s.shutdown(err.Error())
		return err
	}
	if err := s.state.Transition(StateRunning); err != nil {
		s.shutdown(err.Error())
		return err
	}

	tunnelDone := make(chan error, 1)
	s.mu.Lock()
	tunnel := s.tunnel
	s.mu.Unlock()
	if tunnel != nil {
		go func() {
			err := tunnel.Wait()
			if err == nil {
				err = ErrTunnelClosed
			}
			tunnelDone <- err
		}()
	}

	var result error
	select {
	case <-ctx.Done():
		s.shutdown("interrupted")
	case <-s.proc.Exited():
		result = fmt.Errorf("%w: %v", ErrServerExited, s.proc.ExitErr())
		s.shutdown("server exited")
	case err := <-tunnelDone:
		result = fmt.Errorf("tunnel failed: %w", err)
		s.shutdown("tunnel failed")
	}
	return result
}

func (s *Supervisor) launch(ctx context.Context) error {
	if err := s.proc.Start(); err != nil {
		return fmt.Errorf("launch server: %w", err)
	}
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	readyCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadyTimeout)
	defer cancel()

	ready := make(chan error, 1)
	go func() { ready <- s.probe.WaitReady(readyCtx) }()

	select {
	case err := <-ready:
		if err != nil {
			return fmt.Errorf("wait for server: %w", err)
		}
	case <-s.proc.Exited():
		return fmt.Errorf("%w before becoming ready: %v", ErrServerExited, s.proc.ExitErr())
	}
	s.log.WithField("url", s.cfg.Backend.String()).Info("Server is ready")

	if s.openTunnel == nil {
		fmt.Fprintf(s.out, "Serving locally at %s\n", s.cfg.Backend)
		return nil
	}

	tunnel, err := s.openTunnel(ctx, s.cfg.Backend)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.tunnel = tunnel
	s.mu.Unlock()

	s.log.WithField("public_url", tunnel.URL()).Info("Tunnel established")
	fmt.Fprintf(s.out, "Public URL: %s\n", tunnel.URL())
	return nil
}

// shutdown is the only teardown path: SIGTERM, wait out the grace period,
// SIGKILL if still alive, close the tunnel, then stopped.
func (s *Supervisor) shutdown(reason string) {
	s.stopOnce.Do(func() {
		s.log.WithField("reason", reason).Info("Stopping")
		if err := s.state.Transition(StateStopping); err != nil {
			s.log.WithError(err).Error("Unexpected state during shutdown")
		}

		s.stopProcess()

		s.mu.Lock()
		tunnel := s.tunnel
		s.mu.Unlock()
		if tunnel != nil {
			if err := tunnel.Close(); err != nil {
				s.log.WithError(err).Warn("Failed to close tunnel")
			}
		}

		if err := s.state.Transition(StateStopped); err != nil {
			s.log.WithError(err).Error("Unexpected state during shutdown")
		}
	})
}

func (s *Supervisor) stopProcess() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}

	select {
	case <-s.proc.Exited():
		return
	default:
	}

	if err := s.proc.Terminate(); err != nil {
		s.log.WithError(err).Warn("Failed to send SIGTERM")
	}

	grace := time.NewTimer(s.cfg.GracePeriod)
	defer grace.Stop()
	select {
	case <-s.proc.Exited():
		return
	case <-grace.C:
	}

	s.log.WithField("grace_period", s.cfg.GracePeriod.String()).Warn("Server ignored SIGTERM, killing")
	if err := s.proc.Kill(); err != nil {
		s.log.WithError(err).Error("Failed to send SIGKILL")
		return
	}

	reap := time.NewTimer(s.cfg.GracePeriod)
	defer reap.Stop()
	select {
	case <-s.proc.Exited():
	case <-reap.C:
		s.log.Error("Server still running after SIGKILL")
	}
}
