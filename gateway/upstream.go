package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// UpstreamTimeout bounds every upstream call; past it the call fails as a
// timeout instead of hanging.
const UpstreamTimeout = 30 * time.Second

// apiKeyHeader carries the credential on upstream requests.
const apiKeyHeader = "apiKey"

// UpstreamClient is the wire boundary to the external data API. Non-2xx
// statuses come back as (status, body, nil); only transport-level failures
// (timeout, connection refused, DNS) return an error.
type UpstreamClient interface {
	Call(ctx context.Context, endpoint string, params map[string]any, apiKey, method string) (int, json.RawMessage, error)
}

// HTTPUpstreamClient reaches the upstream HTTP(S) JSON API with an API-key
// header and a bounded timeout.
type HTTPUpstreamClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPUpstreamClient(baseURL string) *HTTPUpstreamClient {
	return &HTTPUpstreamClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: UpstreamTimeout},
	}
}

func (c *HTTPUpstreamClient) Call(ctx context.Context, endpoint string, params map[string]any, apiKey, method string) (int, json.RawMessage, error) {
	target := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")

	var body io.Reader
	if method == http.MethodGet {
		if len(params) > 0 {
			q := url.Values{}
			for k, v := range params {
				q.Set(k, toQueryValue(v))
			}
			target += "?" + q.Encode()
		}
	} else {
		payload, err := json.Marshal(params)
		if err != nil {
			return 0, nil, &UpstreamTransportError{Endpoint: endpoint, Err: err}
		}
		body = bytes.NewReader(payload)
	}

	ctx, cancel := context.WithTimeout(ctx, UpstreamTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, &UpstreamTransportError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set(apiKeyHeader, apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return 0, nil, ErrUpstreamTimeout
		}
		return 0, nil, &UpstreamTransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &UpstreamTransportError{Endpoint: endpoint, Err: err}
	}
	return resp.StatusCode, json.RawMessage(raw), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}

func toQueryValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}
