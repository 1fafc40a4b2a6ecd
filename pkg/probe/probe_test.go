package probe_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/parget/parget/pkg/client"
	"github.com/parget/parget/pkg/probe"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
}

// limitedServer serves 200s while at most limit requests are in flight and
// 503s beyond that. Successful requests are held open briefly so the requests
// of one probe round actually overlap.
type limitedServer struct {
	limit    int32
	inFlight atomic.Int32
	requests atomic.Int32
}

func (s *limitedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.requests.Add(1)
	if s.inFlight.Add(1) > s.limit {
		s.inFlight.Add(-1)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	defer s.inFlight.Add(-1)
	time.Sleep(100 * time.Millisecond)
	w.Write([]byte("ok"))
}

func newProber() *probe.Prober {
	p := probe.New(client.NewHTTPClient(client.Options{Timeout: 2 * time.Second}))
	p.Timeout = 2 * time.Second
	p.Grace = time.Millisecond
	return p
}

func TestProbeFindsCeiling(t *testing.T) {
	srv := &limitedServer{limit: 3}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	got := newProber().Probe(context.Background(), ts.URL, 8)
	assert.Equal(t, 3, got)
}

func TestProbeReachesCandidate(t *testing.T) {
	srv := &limitedServer{limit: 10}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	got := newProber().Probe(context.Background(), ts.URL, 3)
	assert.Equal(t, 3, got)
	assert.Equal(t, int32(1+2+3), srv.requests.Load())
}

func TestProbeStopsAtFirstFailedRound(t *testing.T) {
	srv := &limitedServer{limit: 2}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	got := newProber().Probe(context.Background(), ts.URL, 8)
	assert.Equal(t, 2, got)
	// 1 + 2 succeed, the round of 3 fails and nothing beyond it is tried
	assert.Equal(t, int32(1+2+3), srv.requests.Load())
}

func TestProbeSingleConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	got := newProber().Probe(context.Background(), ts.URL, 8)
	assert.Zero(t, got)
}

func TestProbeHonorsContext(t *testing.T) {
	srv := &limitedServer{limit: 10}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := newProber().Probe(ctx, ts.URL, 8)
	assert.Zero(t, got)
}
