package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/samueltorres/r8backend/pkg/backend"
)

// Client calls the counter API of a remote server. It implements
// CounterBackend, so limiter code can use a remote backend and a local
// one interchangeably.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

func (c *Client) Add(ctx context.Context, key string, value int64, ttl int64) (bool, error) {
	return c.call(ctx, "/v1/add", AddRequest{Key: key, Value: value, TTL: ttl})
}

func (c *Client) Incr(ctx context.Context, key string, amount, maximum, ttl int64) (bool, error) {
	return c.call(ctx, "/v1/incr", IncrRequest{Key: key, Amount: amount, Maximum: maximum, TTL: ttl})
}

func (c *Client) Decr(ctx context.Context, key string, amount, minimum, ttl int64) (bool, error) {
	return c.call(ctx, "/v1/decr", DecrRequest{Key: key, Amount: amount, Minimum: minimum, TTL: ttl})
}

func (c *Client) IncrAndSum(ctx context.Context, key string, keys []string, amount, maximum, ttl int64) (bool, error) {
	return c.call(ctx, "/v1/incr_and_sum", IncrAndSumRequest{Key: key, Keys: keys, Amount: amount, Maximum: maximum, TTL: ttl})
}

func (c *Client) call(ctx context.Context, path string, body interface{}) (bool, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return false, errors.Wrap(err, "could not encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return false, errors.Wrap(err, "could not create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, errors.Wrapf(err, "counter api %s", path)
	}
	defer resp.Body.Close()

	var res Response
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return false, errors.Wrapf(err, "counter api %s: could not decode response (status %d)", path, resp.StatusCode)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return res.OK, nil
	case http.StatusConflict:
		return false, errors.Wrap(backend.ErrContentionExhausted, res.Error)
	default:
		return false, errors.Errorf("counter api %s: status %d: %s", path, resp.StatusCode, res.Error)
	}
}
