// Package exchange posts an authorization code and its state token to the backend
// token-exchange endpoint and returns the raw response for classification.
package exchange

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/googler-dev/googler-web/internal/config"
	"github.com/googler-dev/googler-web/internal/handshake"
	"github.com/googler-dev/googler-web/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/sjson"
)

const userAgent = "googler-web"

// ErrBodyTooLarge is recorded on a response whose body exceeds the configured limit.
var ErrBodyTooLarge = errors.New("exchange: response body too large")

// Client performs the one-shot code exchange. It never retries.
type Client struct {
	httpClient   *http.Client
	endpoint     string
	maxBodyBytes int64
}

// NewClient builds a client from the application configuration, honouring the exchange
// timeout and the outbound proxy.
func NewClient(cfg *config.Config) *Client {
	httpClient := &http.Client{Timeout: cfg.Exchange.Timeout()}
	httpClient = util.SetProxy(&cfg.SDKConfig, httpClient)
	return New(cfg.Exchange.Endpoint, httpClient, cfg.Exchange.MaxBodyBytes)
}

// New creates a client for endpoint using httpClient. Redirects are not followed so that
// a 3xx answer from the endpoint is classified instead of silently replayed as a GET.
func New(endpoint string, httpClient *http.Client, maxBodyBytes int64) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.DefaultExchangeTimeout * time.Second}
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = config.DefaultMaxBodyBytes
	}
	clone := *httpClient
	clone.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Client{
		httpClient:   &clone,
		endpoint:     strings.TrimSpace(endpoint),
		maxBodyBytes: maxBodyBytes,
	}
}

// Endpoint returns the URL the client posts to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Exchange posts {code, state} to the endpoint. A returned error means the request did
// not complete; a completed request always yields a Response, with body read problems
// recorded in Response.BodyErr.
func (c *Client) Exchange(ctx context.Context, req handshake.ExchangeRequest) (*handshake.Response, error) {
	payload, err := requestBody(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("exchange: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Accept-Encoding", "gzip, br, zstd")
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("exchange: request failed: %w", err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Debugf("exchange: failed to close response body: %v", errClose)
		}
	}()

	out := &handshake.Response{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		out.Body = body
		out.BodyErr = fmt.Errorf("exchange: failed to read response body: %w", err)
		return out, nil
	}
	if int64(len(body)) > c.maxBodyBytes {
		out.Body = body[:c.maxBodyBytes]
		out.BodyErr = fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, c.maxBodyBytes)
		return out, nil
	}
	decoded, err := decodeBody(body, resp.Header.Get("Content-Encoding"), c.maxBodyBytes)
	if err != nil {
		out.Body = body
		if errors.Is(err, ErrBodyTooLarge) {
			out.Body = decoded
		}
		out.BodyErr = err
		return out, nil
	}
	out.Body = decoded
	return out, nil
}

func requestBody(req handshake.ExchangeRequest) ([]byte, error) {
	payload, err := sjson.SetBytes([]byte(`{}`), "code", req.Code)
	if err != nil {
		return nil, fmt.Errorf("exchange: failed to encode code: %w", err)
	}
	payload, err = sjson.SetBytes(payload, "state", req.State)
	if err != nil {
		return nil, fmt.Errorf("exchange: failed to encode state: %w", err)
	}
	return payload, nil
}
