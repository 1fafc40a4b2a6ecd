package client

import (
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/parget/parget/pkg/logging"
	"github.com/parget/parget/pkg/version"
)

const (
	retryMinWait     = 100 * time.Millisecond
	retryMaxWait     = 3000 * time.Millisecond // do not backoff further than 3 seconds
	retrySleepJitter = 500                     // (will add 0-500 additional milliseconds), multiplied by time.Millisecond in backoffFunc
)

// Options configures an HTTPClient.
type Options struct {
	// ConnectTimeout bounds connection establishment, not the transfer itself.
	ConnectTimeout time.Duration

	// MaxRetries is the number of transport-level retries. Range transfers
	// are issued with this set to zero: the download worker owns the retry
	// protocol and a silent transport retry would corrupt its write cursor.
	MaxRetries int

	ForceHTTP2 bool

	// Timeout, when non-zero, bounds the whole request. Used by the
	// concurrency prober.
	Timeout time.Duration

	// Transport overrides the base transport while keeping the User-Agent
	// and retry layers. Tests use this to stub the network.
	Transport http.RoundTripper
}

// HTTPClient is a thin wrapper around http.Client. All requests carry the
// parget User-Agent and follow redirects, logging each hop.
type HTTPClient struct {
	*http.Client
}

type userAgentTransport struct {
	transport http.RoundTripper
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", fmt.Sprintf("parget/%s", version.GetVersion()))
	return t.transport.RoundTrip(req)
}

func NewHTTPClient(opts Options) *HTTPClient {
	connectTimeout := opts.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = 5 * time.Second
	}
	var baseTransport http.RoundTripper = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     opts.ForceHTTP2,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if opts.Transport != nil {
		baseTransport = opts.Transport
	}

	retryClient := &retryablehttp.Client{
		HTTPClient: &http.Client{
			Transport:     &userAgentTransport{transport: baseTransport},
			CheckRedirect: checkRedirectFunc,
			Timeout:       opts.Timeout,
		},
		Logger:       nil,
		RetryWaitMin: retryMinWait,
		RetryWaitMax: retryMaxWait,
		RetryMax:     opts.MaxRetries,
		CheckRetry:   retryablehttp.DefaultRetryPolicy,
		Backoff:      backoffFunc,
	}

	return &HTTPClient{Client: retryClient.StandardClient()}
}

// backoffFunc is a wrapper around retryablehttp.DefaultBackoff that adds a
// random jitter to avoid thundering-herd behavior across concurrent requests.
func backoffFunc(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
	sleep := time.Duration(rand.Intn(retrySleepJitter)) * time.Millisecond
	sleep += retryablehttp.DefaultBackoff(min, max, attemptNum, resp)
	return sleep
}

// checkRedirectFunc is a wrapper around http.Client.CheckRedirect that logs redirects
func checkRedirectFunc(req *http.Request, via []*http.Request) error {
	logger := logging.GetLogger()
	logger.Trace().
		Str("redirect_url", req.URL.String()).
		Str("url", via[0].URL.String()).
		Int("status", req.Response.StatusCode).
		Msg("Redirect")
	return nil
}
