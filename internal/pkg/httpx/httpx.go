package httpx

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type HTTPStatusCoder interface {
	HTTPStatusCode() int
}

// StatusError is a non-2xx response from an upstream API.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512]
	}
	return fmt.Sprintf("%s http %d: %s", e.Service, e.StatusCode, strings.TrimSpace(body))
}

func (e *StatusError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// StatusCode extracts the upstream status carried by err, or 0.
func StatusCode(err error) int {
	var sc HTTPStatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatusCode()
	}
	return 0
}

func IsRetryableHTTPStatus(code int) bool {
	if code == 408 || code == 429 || code == 529 {
		return true
	}
	return code >= 500 && code <= 599
}

func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if code := StatusCode(err); code != 0 {
		return IsRetryableHTTPStatus(code)
	}
	return false
}

// RetryAfterDuration reads Retry-After (seconds) from resp, falling back when
// it is absent or unparseable. A positive max caps the result.
func RetryAfterDuration(resp *http.Response, fallback, max time.Duration) time.Duration {
	sleepFor := fallback
	if resp != nil {
		if ra := strings.TrimSpace(resp.Header.Get("Retry-After")); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs >= 0 {
				sleepFor = time.Duration(secs) * time.Second
			}
		}
	}
	if max > 0 && sleepFor > max {
		sleepFor = max
	}
	return sleepFor
}

func JitterSleep(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delta := base.Seconds() * 0.2
	low := base.Seconds() - delta
	high := base.Seconds() + delta
	if low < 0 {
		low = 0
	}
	v := low + rand.Float64()*(high-low)
	return time.Duration(v * float64(time.Second))
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
