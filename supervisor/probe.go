package supervisor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	readyPath          = "/api/info"
	probeInterval      = 250 * time.Millisecond
	probeClientTimeout = 2 * time.Second
)

// Prober reports when the child server is accepting requests.
type Prober interface {
	WaitReady(ctx context.Context) error
}

type HTTPProbe struct {
	client   *resty.Client
	url      string
	interval time.Duration
}

func NewHTTPProbe(baseURL string) *HTTPProbe {
	return &HTTPProbe{
		client:   resty.New().SetTimeout(probeClientTimeout),
		url:      strings.TrimRight(baseURL, "/") + readyPath,
		interval: probeInterval,
	}
}

// WaitReady polls until the info endpoint answers 200 or ctx ends.
func (p *HTTPProbe) WaitReady(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var lastErr error
	for {
		resp, err := p.client.R().SetContext(ctx).Get(p.url)
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode() == http.StatusOK:
			return nil
		default:
			lastErr = fmt.Errorf("%s answered %d", p.url, resp.StatusCode())
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("server not ready: %w (last probe: %v)", ctx.Err(), lastErr)
			}
			return fmt.Errorf("server not ready: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}
