package telegram

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/hackbot/core/logger"
	"github.com/m3rciful/hackbot/core/telegram/netutil"
)

// HTTPClientOptions overrides the defaults of BuildHTTPClient. Zero values keep defaults.
type HTTPClientOptions struct {
	// Timeout bounds a whole request. Defaults to 30s.
	Timeout time.Duration
	// ResponseHeaderTimeout defaults to 5s.
	ResponseHeaderTimeout time.Duration
	// MaxRetries counts extra attempts after a transient dial or timeout
	// failure. Defaults to 3.
	MaxRetries int
	// RetryBackoff grows linearly per attempt. Defaults to 2s.
	RetryBackoff time.Duration
	// NoRetry returns the plain transport: every failure reaches the caller.
	NoRetry bool
}

// BuildHTTPClient returns an HTTP client with dial-level retries. It serves
// the Bot API as well as the generator and info source backends.
func BuildHTTPClient(opts HTTPClientOptions) *http.Client {
	timeout := orDefault(opts.Timeout, 30*time.Second)
	dialer := &net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: orDefault(opts.ResponseHeaderTimeout, 5*time.Second),
		ExpectContinueTimeout: time.Second,
	}
	if opts.NoRetry {
		return &http.Client{Timeout: timeout, Transport: base}
	}
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &retryTransport{
			base:       base,
			maxRetries: retries,
			backoff:    orDefault(opts.RetryBackoff, 2*time.Second),
		},
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// retryTransport repeats a request whose round trip failed before any
// response arrived. Requests with a body that cannot be replayed are tried once.
type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	for attempt := 1; ; attempt++ {
		resp, err := t.base.RoundTrip(req)
		if err == nil || attempt > t.maxRetries || !netutil.ShouldRetry(err) {
			return resp, err
		}
		next, ok := replay(req)
		if !ok {
			return nil, err
		}
		delay := t.backoff * time.Duration(attempt)
		logger.Debug(ctx, "http", "roundtrip.retry",
			slog.String("status", "retry"),
			slog.String("host", req.URL.Host),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("error_kind", netutil.ErrorKind(err)),
		)
		if werr := wait(ctx, delay); werr != nil {
			return nil, werr
		}
		req = next
	}
}

func replay(req *http.Request) (*http.Request, bool) {
	next := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return next, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	next.Body = body
	return next, true
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
