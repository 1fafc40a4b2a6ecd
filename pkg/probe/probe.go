// Package probe discovers how many simultaneous connections a server
// tolerates before committing to a worker count.
package probe

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/juju/ratelimit"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/parget/parget/pkg/client"
	"github.com/parget/parget/pkg/logging"
)

const (
	defaultTimeout = time.Second
	defaultGrace   = time.Second

	// Each probe drains at most drainBytes of body through a token bucket of
	// this rate, so a probe round costs the server close to nothing.
	defaultRate = 1024
	drainBytes  = 1024
)

type Prober struct {
	// Timeout bounds each individual probe request.
	Timeout time.Duration

	// Grace is the recovery pause between successful rounds.
	Grace time.Duration

	// Rate caps body reception per probe, in bytes per second.
	Rate int64

	Logger zerolog.Logger

	client *client.HTTPClient
}

// New returns a Prober using c for its requests. The client must not perform
// transport-level retries: a failed request is the signal the prober is
// looking for.
func New(c *client.HTTPClient) *Prober {
	return &Prober{
		Timeout: defaultTimeout,
		Grace:   defaultGrace,
		Rate:    defaultRate,
		Logger:  logging.GetLogger(),
		client:  c,
	}
}

// Probe ramps up one concurrency level at a time. At level n it issues n
// concurrent lightweight requests against url; if all n return 200 it records
// n and, after a grace pause, tries n+1. The first level with any non-200 (or
// failed) request is taken as the ceiling: Probe stops immediately and returns
// the last fully-successful level. A return of 0 means even a single
// connection failed and the caller should fall back to one worker. A failed
// round is never retried.
func (p *Prober) Probe(ctx context.Context, url string, maxCandidate int) int {
	best := 0
	for n := 1; n <= maxCandidate; n++ {
		if ctx.Err() != nil {
			return best
		}
		if !p.round(ctx, url, n) {
			p.Logger.Info().Int("connections", n).Int("effective", best).Msg("Probe ceiling")
			return best
		}
		best = n
		p.Logger.Debug().Int("connections", n).Msg("Probe round ok")

		if n < maxCandidate {
			select {
			case <-ctx.Done():
				return best
			case <-time.After(p.Grace):
			}
		}
	}
	p.Logger.Info().Int("effective", best).Msg("Probe complete")
	return best
}

func (p *Prober) round(ctx context.Context, url string, n int) bool {
	statuses := make([]int, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			statuses[i] = p.request(ctx, url)
			return nil
		})
	}
	_ = g.Wait()

	for _, status := range statuses {
		if status != http.StatusOK {
			return false
		}
	}
	return true
}

func (p *Prober) request(ctx context.Context, url string) int {
	reqCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()

	bucket := ratelimit.NewBucketWithRate(float64(p.Rate), p.Rate)
	_, _ = io.CopyN(io.Discard, ratelimit.Reader(resp.Body, bucket), drainBytes)

	return resp.StatusCode
}
