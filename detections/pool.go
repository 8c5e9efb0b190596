package detections

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	ErrPoolClosed     = errors.New("pool is closed")
	ErrAcquireTimeout = errors.New("timeout waiting for available session")
)

// SessionFactory builds one inference session over the shared model weights.
type SessionFactory func() (Runner, error)

type SessionPool struct {
	sessions       chan Runner
	size           int
	factory        SessionFactory
	acquireTimeout time.Duration
	log            *logrus.Logger

	mu         sync.Mutex
	closed     bool
	lost       int
	lastErrors []error
	stop       chan struct{}

	metrics *PoolMetrics
}

type PoolMetrics struct {
	mu              sync.RWMutex
	inUse           int
	totalAcquired   int64
	totalReleased   int64
	acquireFailures int64
	replenished     int64
	waitTime        time.Duration
}

type PoolStats struct {
	Size            int           `json:"pool_size"`
	InUse           int           `json:"sessions_in_use"`
	TotalAcquired   int64         `json:"total_acquired"`
	TotalReleased   int64         `json:"total_released"`
	AcquireFailures int64         `json:"acquire_failures"`
	Replenished     int64         `json:"replenished"`
	WaitTime        time.Duration `json:"wait_time_ns"`
}

func NewSessionPool(factory SessionFactory, size int, log *logrus.Logger) (*SessionPool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	pool := &SessionPool{
		sessions:       make(chan Runner, size),
		size:           size,
		factory:        factory,
		acquireTimeout: AcquireTimeout,
		log:            log,
		stop:           make(chan struct{}),
		metrics:        &PoolMetrics{},
	}

	for i := 0; i < size; i++ {
		session, err := factory()
		if err != nil {
			pool.Destroy()
			return nil, fmt.Errorf("failed to initialize session %d: %w", i, err)
		}
		pool.sessions <- session
	}

	go pool.healthCheck(HealthCheckPeriod)

	return pool, nil
}

func (p *SessionPool) Size() int {
	return p.size
}

func (p *SessionPool) Acquire(ctx context.Context) (Runner, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPoolClosed
	}

	start := time.Now()
	defer func() {
		p.metrics.mu.Lock()
		p.metrics.waitTime += time.Since(start)
		p.metrics.mu.Unlock()
	}()

	timer := time.NewTimer(p.acquireTimeout)
	defer timer.Stop()

	select {
	case session, ok := <-p.sessions:
		if !ok {
			return nil, ErrPoolClosed
		}
		p.metrics.mu.Lock()
		p.metrics.inUse++
		p.metrics.totalAcquired++
		p.metrics.mu.Unlock()
		return session, nil
	case <-timer.C:
		p.metrics.mu.Lock()
		p.metrics.acquireFailures++
		p.metrics.mu.Unlock()
		return nil, ErrAcquireTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release hands the session back. A session whose last run failed is
// destroyed and a replacement is built in the background; the health check
// retries if that build fails.
func (p *SessionPool) Release(session Runner, healthy bool) {
	p.metrics.mu.Lock()
	p.metrics.inUse--
	p.metrics.totalReleased++
	p.metrics.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		session.Destroy()
		return
	}
	if !healthy {
		session.Destroy()
		p.lost++
		go p.replenishSessions()
		return
	}
	p.sessions <- session
}

func (p *SessionPool) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}

	p.closed = true
	close(p.stop)
	close(p.sessions)

	for session := range p.sessions {
		session.Destroy()
	}
}

func (p *SessionPool) healthCheck(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.replenishSessions()
		}
	}
}

// replenishSessions rebuilds lost sessions. Each slot is claimed under the
// lock before building, so concurrent callers never overfill the pool.
func (p *SessionPool) replenishSessions() {
	for {
		p.mu.Lock()
		if p.closed || p.lost == 0 {
			p.mu.Unlock()
			return
		}
		p.lost--
		p.mu.Unlock()

		session, err := p.factory()
		if err != nil {
			p.mu.Lock()
			p.lost++
			p.mu.Unlock()
			p.recordError(err)
			return
		}

		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			session.Destroy()
			return
		}
		p.sessions <- session
		p.mu.Unlock()

		p.metrics.mu.Lock()
		p.metrics.replenished++
		p.metrics.mu.Unlock()
	}
}

func (p *SessionPool) recordError(err error) {
	p.log.WithError(err).Warn("Failed to replenish model session")

	p.mu.Lock()
	defer p.mu.Unlock()

	p.lastErrors = append(p.lastErrors, err)
	if len(p.lastErrors) > 10 {
		p.lastErrors = p.lastErrors[1:]
	}
}

func (p *SessionPool) Stats() PoolStats {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()
	return PoolStats{
		Size:            p.size,
		InUse:           p.metrics.inUse,
		TotalAcquired:   p.metrics.totalAcquired,
		TotalReleased:   p.metrics.totalReleased,
		AcquireFailures: p.metrics.acquireFailures,
		Replenished:     p.metrics.replenished,
		WaitTime:        p.metrics.waitTime,
	}
}
