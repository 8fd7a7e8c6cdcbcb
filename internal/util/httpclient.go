package util

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

func NewHTTPClient(timeout time.Duration) *http.Client {
	tr := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 60 * time.Second}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: tr}
}

// Backoff describes the wait between attempts. Initial == Max gives a fixed
// delay; otherwise the delay doubles up to Max.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration
}

// Fixed is a constant delay between attempts.
func Fixed(d time.Duration) Backoff { return Backoff{Initial: d, Max: d} }

var ErrNoAttempts = errors.New("retry: no attempts")

// Retry calls fn up to attempts times, waiting per b between failures.
// fn receives the 1-based attempt number. The last error is returned when
// every attempt fails; ctx cancellation aborts the wait.
func Retry(ctx context.Context, attempts int, b Backoff, fn func(attempt int) error) error {
	if attempts < 1 {
		return ErrNoAttempts
	}
	d := b.Initial
	var err error
	for i := 1; i <= attempts; i++ {
		if i > 1 && d > 0 {
			t := time.NewTimer(d)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return errors.Join(err, ctx.Err())
			}
			if d < b.Max {
				d *= 2
				if d > b.Max {
					d = b.Max
				}
			}
		}
		if err = fn(i); err == nil {
			return nil
		}
	}
	return err
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
