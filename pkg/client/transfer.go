package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrRangeUnsupported = errors.New("server ignored range request")
	ErrShortBody        = errors.New("response body shorter than expected")
)

const copyBufferSize = 32 * 1024

// Gate blocks data reception while a download is paused. AwaitResume returns
// nil once reception may continue, or the context error if the transfer is
// aborted while waiting.
type Gate interface {
	AwaitResume(ctx context.Context) error
}

// TransferRequest describes a single streaming request. Start/End are
// inclusive byte offsets; a negative End requests the whole resource.
type TransferRequest struct {
	URL   string
	Start int64
	End   int64

	// Sink receives the response body. For ranged transfers the caller hands
	// in a writer already positioned at the range's offset in the
	// destination file.
	Sink io.Writer

	// OnProgress, when non-nil, is invoked with (received, total) after the
	// response headers arrive and again after every body read. Total is -1
	// when the server does not declare a length.
	OnProgress func(received, total int64)

	// Gate, when non-nil, is consulted before every body read. While the
	// gate is closed the transfer stops draining the connection: the socket
	// stays open and no received bytes are discarded, so resuming continues
	// exactly where reception stopped.
	Gate Gate
}

// Transfer streams one HTTP request into the request's sink. It returns only
// after the full declared body has been received, the context is cancelled, or
// the transfer fails. There is no retrying at this layer.
func (c *HTTPClient) Transfer(ctx context.Context, t TransferRequest) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", t.URL, err)
	}

	ranged := t.End >= 0
	if ranged {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", t.Start, t.End))
	}

	resp, err := c.Do(req)
	if err != nil {
		return fmt.Errorf("error executing request for %s: %w", t.URL, err)
	}
	defer resp.Body.Close()

	if ranged && resp.StatusCode == http.StatusOK {
		return fmt.Errorf("%w: got 200 for bytes=%d-%d", ErrRangeUnsupported, t.Start, t.End)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("%w: %d for %s", ErrUnexpectedStatus, resp.StatusCode, t.URL)
	}

	total := resp.ContentLength
	if t.OnProgress != nil {
		t.OnProgress(0, total)
	}

	var received int64
	buf := make([]byte, copyBufferSize)
	for {
		if t.Gate != nil {
			if err := t.Gate.AwaitResume(ctx); err != nil {
				return err
			}
		}
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := t.Sink.Write(buf[:n]); werr != nil {
				return fmt.Errorf("error writing response for %s: %w", t.URL, werr)
			}
			received += int64(n)
			if t.OnProgress != nil {
				t.OnProgress(received, total)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("error reading response for %s: %w", t.URL, err)
		}
	}

	if total >= 0 && received != total {
		return fmt.Errorf("%w: received %d of %d bytes for %s", ErrShortBody, received, total, t.URL)
	}
	return nil
}
