// Package transfer streams a single URL to a local file with cooperative
// cancellation and progress callbacks.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// ChunkSize is the copy granularity. Cancellation is observed at every chunk boundary.
const ChunkSize = 4 * 1024

// ErrCanceled is carried by a Canceled result.
var ErrCanceled = errors.New("transfer canceled")

type Outcome int

const (
	Success Outcome = iota
	Canceled
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case Canceled:
		return "canceled"
	default:
		return "failed"
	}
}

// Result is the outcome of one transfer. Err is set for Canceled and Failed.
type Result struct {
	Outcome   Outcome
	BytesRead int64
	Err       error
}

// ProgressFunc receives the running byte count and the total, which is -1 when
// the server did not announce a length.
type ProgressFunc func(bytesRead, total int64)

type Options struct {
	UserAgent      string
	ConnectTimeout time.Duration
	// RateLimitBPS caps throughput in bytes per second. 0 disables the cap.
	RateLimitBPS int64
}

// Client performs transfers. It is safe for concurrent use.
type Client struct {
	http      *http.Client
	userAgent string
	limiter   *rate.Limiter
}

func NewClient(opts Options) *Client {
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// Only connect and header phases are bounded; a large body may take as long as it needs.
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = timeout
	tr.ResponseHeaderTimeout = timeout

	c := &Client{
		http:      &http.Client{Transport: tr},
		userAgent: opts.UserAgent,
	}
	if opts.RateLimitBPS > 0 {
		burst := int(opts.RateLimitBPS)
		if burst < ChunkSize {
			burst = ChunkSize
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimitBPS), burst)
	}
	return c
}

// NewClientWith wraps an existing http.Client, mostly for tests.
func NewClientWith(hc *http.Client, opts Options) *Client {
	c := NewClient(opts)
	c.http = hc
	return c
}

// Transfer fetches url into dest. On return either dest holds the complete
// body (Success) or no file exists at dest. cancel may be nil.
func (c *Client) Transfer(ctx context.Context, url, dest string, cancel *atomic.Bool, progress ProgressFunc) Result {
	n, err := c.transfer(ctx, url, dest, cancel, progress)
	switch {
	case err == nil:
		return Result{Outcome: Success, BytesRead: n}
	case errors.Is(err, ErrCanceled) || errors.Is(err, context.Canceled):
		os.Remove(dest)
		return Result{Outcome: Canceled, BytesRead: n, Err: ErrCanceled}
	default:
		os.Remove(dest)
		return Result{Outcome: Failed, BytesRead: n, Err: err}
	}
}

func (c *Client) transfer(ctx context.Context, url, dest string, cancel *atomic.Bool, progress ProgressFunc) (int64, error) {
	if isCancelled(ctx, cancel) {
		return 0, ErrCanceled
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("request %s: unexpected status %s", url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("create destination dir: %w", err)
	}
	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create destination: %w", err)
	}
	defer f.Close()

	total := resp.ContentLength
	if total < 0 {
		total = -1
	}

	buf := make([]byte, ChunkSize)
	var read int64
	for {
		if isCancelled(ctx, cancel) {
			return read, ErrCanceled
		}

		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if c.limiter != nil {
				if err := c.limiter.WaitN(ctx, n); err != nil {
					if ctx.Err() != nil {
						return read, ctx.Err()
					}
					return read, fmt.Errorf("rate limit: %w", err)
				}
			}
			if _, werr := f.Write(buf[:n]); werr != nil {
				return read, fmt.Errorf("write %s: %w", dest, werr)
			}
			read += int64(n)
			if progress != nil {
				progress(read, total)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return read, ctx.Err()
			}
			return read, fmt.Errorf("read body: %w", rerr)
		}
	}

	if total > 0 && read != total {
		return read, fmt.Errorf("short body: got %d of %d bytes", read, total)
	}
	if err := f.Sync(); err != nil {
		return read, fmt.Errorf("sync %s: %w", dest, err)
	}
	return read, nil
}

func isCancelled(ctx context.Context, cancel *atomic.Bool) bool {
	if cancel != nil && cancel.Load() {
		return true
	}
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
