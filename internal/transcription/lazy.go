package transcription

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Provider hands out a process-wide engine client that is created lazily,
// exactly once per successful initialization. Racing first callers share a
// single in-flight initialization; a failed attempt leaves the provider
// uninitialized so a later call can retry.
type Provider struct {
	newClient func() (*Client, error)
	group     singleflight.Group
	client    atomic.Pointer[Client]
}

// NewProvider creates a provider that builds the client from config on
// first use.
func NewProvider(config Config) *Provider {
	return &Provider{
		newClient: func() (*Client, error) { return NewClient(config) },
	}
}

// Ready reports whether the engine client has been initialized. Health
// reporting uses this without forcing an initialization.
func (p *Provider) Ready() bool {
	return p.client.Load() != nil
}

// Get returns the shared client, initializing it on first use. Callers that
// race the initialization all observe the same result; ctx cancellation
// abandons the wait without cancelling the initialization itself.
func (p *Provider) Get(ctx context.Context) (*Client, error) {
	if c := p.client.Load(); c != nil {
		return c, nil
	}

	ch := p.group.DoChan("client", func() (interface{}, error) {
		if c := p.client.Load(); c != nil {
			return c, nil
		}
		c, err := p.newClient()
		if err != nil {
			return nil, err
		}
		p.client.Store(c)
		return c, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Client), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
