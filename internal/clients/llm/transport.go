package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/ejwhite7/zendesk-academy/internal/observability"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/httpx"
	"github.com/ejwhite7/zendesk-academy/internal/pkg/logger"
)

type transport struct {
	log        *logger.Logger
	service    string
	httpClient *http.Client
	maxRetries int
}

func (t *transport) doOnce(ctx context.Context, url string, headers map[string]string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpx.StatusError{Service: t.service, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

// post retries transient failures (timeouts, 429, 529, 5xx) with doubling
// backoff, preferring the server's Retry-After.
func (t *transport) post(ctx context.Context, url string, headers map[string]string, body any, out any) (err error) {
	ctx, span := observability.StartSpan(ctx, "llm.complete", attribute.String("llm.provider", t.service))
	start := time.Now()
	status := "error"
	defer func() {
		observability.Current().ObserveUpstream(t.service, "complete", status, time.Since(start))
		observability.EndSpan(span, err)
	}()

	backoff := 1 * time.Second
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		resp, raw, reqErr := t.doOnce(ctx, url, headers, body)
		if resp != nil {
			status = strconv.Itoa(resp.StatusCode)
		}
		if reqErr == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("%s decode error: %w", t.service, uErr)
			}
			return nil
		}
		if !httpx.IsRetryableError(reqErr) || attempt == t.maxRetries {
			return reqErr
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)
		t.log.Warn("LLM request retrying",
			"attempt", attempt+1,
			"max_retries", t.maxRetries,
			"sleep", sleepFor.String(),
			"error", reqErr.Error(),
		)
		if sErr := httpx.Sleep(ctx, sleepFor); sErr != nil {
			return sErr
		}
		backoff *= 2
	}
	return fmt.Errorf("unreachable retry loop")
}
