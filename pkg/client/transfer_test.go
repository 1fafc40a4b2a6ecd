package client_test

import (
	"bytes"
	"context"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parget/parget/pkg/client"
)

func makeTestContent(size int) []byte {
	rnd := rand.New(rand.NewSource(42))
	data := make([]byte, size)
	rnd.Read(data)
	return data
}

func newRangeServer(content []byte) *httptest.Server {
	fs := fstest.MapFS{"file.bin": &fstest.MapFile{Data: content}}
	return httptest.NewServer(http.FileServer(http.FS(fs)))
}

func TestTransferRange(t *testing.T) {
	content := makeTestContent(64 * 1024)
	ts := newRangeServer(content)
	defer ts.Close()

	c := client.NewHTTPClient(client.Options{})
	var sink bytes.Buffer
	err := c.Transfer(context.Background(), client.TransferRequest{
		URL:   ts.URL + "/file.bin",
		Start: 1000,
		End:   4999,
		Sink:  &sink,
	})
	require.NoError(t, err)
	assert.Equal(t, content[1000:5000], sink.Bytes())
}

func TestTransferWholeResource(t *testing.T) {
	content := makeTestContent(4096)
	ts := newRangeServer(content)
	defer ts.Close()

	c := client.NewHTTPClient(client.Options{})
	var sink bytes.Buffer
	err := c.Transfer(context.Background(), client.TransferRequest{
		URL:   ts.URL + "/file.bin",
		Start: 0,
		End:   -1,
		Sink:  &sink,
	})
	require.NoError(t, err)
	assert.Equal(t, content, sink.Bytes())
}

func TestTransferProgressReported(t *testing.T) {
	content := makeTestContent(200 * 1024)
	ts := newRangeServer(content)
	defer ts.Close()

	c := client.NewHTTPClient(client.Options{})
	var sink bytes.Buffer
	var last, total int64
	calls := 0
	err := c.Transfer(context.Background(), client.TransferRequest{
		URL:   ts.URL + "/file.bin",
		Start: 0,
		End:   int64(len(content) - 1),
		Sink:  &sink,
		OnProgress: func(received, expected int64) {
			calls++
			assert.GreaterOrEqual(t, received, last)
			last = received
			total = expected
		},
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls, 2)
	assert.Equal(t, int64(len(content)), last)
	assert.Equal(t, int64(len(content)), total)
}

func TestTransferRangeIgnored(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// pretend ranges are unsupported
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("full body"))
	}))
	defer ts.Close()

	c := client.NewHTTPClient(client.Options{})
	err := c.Transfer(context.Background(), client.TransferRequest{
		URL:   ts.URL,
		Start: 0,
		End:   3,
		Sink:  &bytes.Buffer{},
	})
	assert.ErrorIs(t, err, client.ErrRangeUnsupported)
}

func TestTransferErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	c := client.NewHTTPClient(client.Options{})
	err := c.Transfer(context.Background(), client.TransferRequest{
		URL:   ts.URL,
		Start: 0,
		End:   -1,
		Sink:  &bytes.Buffer{},
	})
	assert.ErrorIs(t, err, client.ErrUnexpectedStatus)
}

type testGate struct {
	release chan struct{}
	calls   atomic.Int32
}

func (g *testGate) AwaitResume(ctx context.Context) error {
	g.calls.Add(1)
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestTransferConsultsGate(t *testing.T) {
	content := makeTestContent(100 * 1024)
	ts := newRangeServer(content)
	defer ts.Close()

	gate := &testGate{release: make(chan struct{})}
	close(gate.release) // open gate: every read passes straight through

	c := client.NewHTTPClient(client.Options{})
	var sink bytes.Buffer
	err := c.Transfer(context.Background(), client.TransferRequest{
		URL:   ts.URL + "/file.bin",
		Start: 0,
		End:   int64(len(content) - 1),
		Sink:  &sink,
		Gate:  gate,
	})
	require.NoError(t, err)
	assert.Equal(t, content, sink.Bytes())
	assert.GreaterOrEqual(t, gate.calls.Load(), int32(1))
}

func TestTransferAbortWhilePaused(t *testing.T) {
	content := makeTestContent(4096)
	ts := newRangeServer(content)
	defer ts.Close()

	gate := &testGate{release: make(chan struct{})} // never released

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	c := client.NewHTTPClient(client.Options{})
	err := c.Transfer(ctx, client.TransferRequest{
		URL:   ts.URL + "/file.bin",
		Start: 0,
		End:   -1,
		Sink:  &bytes.Buffer{},
		Gate:  gate,
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
