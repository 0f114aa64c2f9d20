package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"shareit/internal/metrics"
	"shareit/internal/models"

	"github.com/rs/zerolog"
)

// forwardedHeaders are copied from the caller to the server.
var forwardedHeaders = []string{models.UserIDHeader, models.RequestIDHeader, "Content-Type", "Accept"}

// ServerClient replays validated requests against the sharing server.
type ServerClient struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryPolicy
	logger     *zerolog.Logger
}

// Response is a fully read upstream answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func NewServerClient(baseURL string, timeout time.Duration, retry RetryPolicy, logger *zerolog.Logger) *ServerClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ServerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retry:      retry,
		logger:     logger,
	}
}

// Forward sends the request upstream. Only GET requests are retried,
// on transport errors and on 502/503/504.
func (c *ServerClient) Forward(ctx context.Context, method, path, rawQuery string, header http.Header, body []byte) (*Response, error) {
	endpoint := c.baseURL + path
	if rawQuery != "" {
		endpoint += "?" + rawQuery
	}

	attempts := 1
	if method == http.MethodGet && c.retry.MaxRetries > 0 {
		attempts += c.retry.MaxRetries
	}

	for attempt := 1; ; attempt++ {
		resp, err := c.do(ctx, method, endpoint, header, body)
		if err == nil && !retryable(resp.StatusCode) {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt >= attempts {
			if err != nil {
				return nil, fmt.Errorf("upstream %s %s: %w", method, path, err)
			}
			return resp, nil
		}

		delay := c.retry.NextDelay(attempt)
		event := c.logger.Warn().Str("method", method).Str("path", path).Int("attempt", attempt).Dur("delay", delay)
		if err != nil {
			event = event.Err(err)
		} else {
			event = event.Int("status", resp.StatusCode)
		}
		event.Msg("Retrying upstream request")
		metrics.IncUpstreamRetry()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *ServerClient) do(ctx context.Context, method, endpoint string, header http.Header, body []byte) (*Response, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, err
	}
	for _, name := range forwardedHeaders {
		if v := header.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
