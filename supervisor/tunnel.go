package supervisor

import (
	"context"
	"fmt"
	"net/url"

	"golang.ngrok.com/ngrok"
	"golang.ngrok.com/ngrok/config"
)

// Tunnel exposes the local server at a public URL.
type Tunnel interface {
	URL() string
	// Wait blocks until the tunnel stops forwarding.
	Wait() error
	Close() error
}

type TunnelOpener func(ctx context.Context, backend *url.URL) (Tunnel, error)

// NgrokOpener forwards a fresh ngrok HTTP endpoint to the backend.
func NgrokOpener(authToken string) TunnelOpener {
	return func(ctx context.Context, backend *url.URL) (Tunnel, error) {
		fwd, err := ngrok.ListenAndForward(ctx, backend,
			config.HTTPEndpoint(),
			ngrok.WithAuthtoken(authToken),
		)
		if err != nil {
			return nil, fmt.Errorf("open ngrok tunnel: %w", err)
		}
		return fwd, nil
	}
}
