// Package netx answers the single question the sync engine asks of the
// network: is the backend reachable right now?
package netx

import (
	"context"
	"net/http"
	"time"
)

// Prober checks reachability by issuing a HEAD request to a fixed URL.
// Any HTTP response, whatever its status, counts as online; only a
// transport failure (DNS, refused connection, timeout) counts as offline.
type Prober struct {
	client *http.Client
	url    string
}

func NewProber(url string, timeout time.Duration) *Prober {
	return &Prober{
		client: &http.Client{Timeout: timeout},
		url:    url,
	}
}

func (p *Prober) Online(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}

// Static is a connectivity source with a fixed answer.
type Static bool

func (s Static) Online(context.Context) bool { return bool(s) }
