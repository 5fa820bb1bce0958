// Package groupapi talks to the group server: protobuf-over-HTTP group
// state and history fetches, authenticated with per-day group credentials.
package groupapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// BasicAuth holds HTTP basic auth credentials.
type BasicAuth struct {
	Username string
	Password string
}

// Transport handles low-level HTTP communication with the group server.
// It manages rate limiting, auth headers, and request/response logging.
type Transport struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewTransport creates a new HTTP transport. logger may be nil.
func NewTransport(baseURL string, tlsConf *tls.Config, logger *zap.Logger) *Transport {
	client := &http.Client{}
	if tlsConf != nil {
		client.Transport = &http.Transport{TLSClientConfig: tlsConf}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transport{
		baseURL: baseURL,
		client:  client,
		logger:  logger,
	}
}

// Do executes an HTTP request with automatic retry on 429 (Too Many
// Requests). It respects the Retry-After header, capping the wait at
// 10 minutes.
func (t *Transport) Do(req *http.Request) (*http.Response, error) {
	const maxRetries = 3
	const maxWait = 10 * time.Minute

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("transport: read request body: %w", err)
		}
	}

	for attempt := 0; attempt < maxRetries+1; attempt++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		resp, err := t.client.Do(req)
		if err != nil {
			return nil, err
		}

		if resp.StatusCode != http.StatusTooManyRequests {
			t.logger.Debug("http request",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Int("status", resp.StatusCode))
			return resp, nil
		}

		// On 429, read the body for logging and close it before sleeping.
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		wait := time.Duration(5<<attempt) * time.Second // 5s, 10s, 20s, 40s
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
				wait = time.Duration(secs) * time.Second
			}
		}
		wait = min(wait, maxWait)

		if attempt == maxRetries {
			t.logger.Warn("rate limited, no retries left",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("retryAfter", resp.Header.Get("Retry-After")))
			return &http.Response{
				StatusCode: http.StatusTooManyRequests,
				Header:     resp.Header,
				Body:       io.NopCloser(bytes.NewReader(respBody)),
				Request:    req,
			}, nil
		}

		t.logger.Info("rate limited, retrying",
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Duration("wait", wait),
			zap.Int("attempt", attempt+1))

		select {
		case <-time.After(wait):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}

	return nil, fmt.Errorf("transport: retry loop exhausted")
}

// Get performs a GET request expecting a protobuf response body.
func (t *Transport) Get(ctx context.Context, path string, auth *BasicAuth) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("transport: new request: %w", err)
	}
	req.Header.Set("Accept", "application/x-protobuf")
	if auth != nil {
		req.SetBasicAuth(auth.Username, auth.Password)
	}
	return t.doAndRead(req)
}

// Patch performs a PATCH request with a protobuf body, used to submit
// group changes.
func (t *Transport) Patch(ctx context.Context, path string, body []byte, auth *BasicAuth) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("transport: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Accept", "application/x-protobuf")
	if auth != nil {
		req.SetBasicAuth(auth.Username, auth.Password)
	}
	return t.doAndRead(req)
}

// GetJSON performs a GET request and unmarshals the JSON response into
// result.
func (t *Transport) GetJSON(ctx context.Context, path string, auth *BasicAuth, result any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("transport: new request: %w", err)
	}
	if auth != nil {
		req.SetBasicAuth(auth.Username, auth.Password)
	}
	body, status, err := t.doAndRead(req)
	if err != nil {
		return status, err
	}
	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return status, fmt.Errorf("transport: unmarshal response: %w", err)
		}
	}
	return status, nil
}

// doAndRead executes the request and reads the response body.
func (t *Transport) doAndRead(req *http.Request) ([]byte, int, error) {
	resp, err := t.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("transport: read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
