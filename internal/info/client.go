// Package info fetches baseline account state from the upstream REST
// info endpoint.
package info

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hlview/hl-dashboard/internal/account"
)

const (
	MainnetAPIURL = "https://api.hyperliquid.xyz"
	TestnetAPIURL = "https://api.hyperliquid-testnet.xyz"

	infoPath           = "/info"
	requestTimeout     = 10 * time.Second
	httpErrorStatusMin = 400
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zerolog.Logger
	debug      bool
}

type Opt func(*Client)

func OptLogger(l *zerolog.Logger) Opt {
	return func(c *Client) { c.logger = l }
}

func OptDebug() Opt {
	return func(c *Client) { c.debug = true }
}

func OptHTTPClient(h *http.Client) Opt {
	return func(c *Client) { c.httpClient = h }
}

func NewClient(baseURL string, opts ...Opt) *Client {
	if baseURL == "" {
		baseURL = MainnetAPIURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UserState fetches the clearinghouse baseline for an address. The
// address is lower-cased before the request, matching how subscription
// keys are built.
func (c *Client) UserState(ctx context.Context, address string) (account.Snapshot, error) {
	address = strings.ToLower(address)
	body, err := c.post(ctx, map[string]string{
		"type": "clearinghouseState",
		"user": address,
	})
	if err != nil {
		return account.Snapshot{}, fmt.Errorf("fetch clearinghouseState: %w", err)
	}

	var state account.ClearinghouseState
	if err := json.Unmarshal(body, &state); err != nil {
		return account.Snapshot{}, fmt.Errorf("decode clearinghouseState: %w", err)
	}
	return state.Snapshot(address), nil
}

func (c *Client) post(ctx context.Context, payload any) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	url := c.baseURL + infoPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	if c.debug && c.logger != nil {
		c.logger.Debug().Msgf("HTTP request: POST %s body:%s", url, jsonData)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if c.debug && c.logger != nil {
		c.logger.Debug().Msgf("HTTP response: status:%s body:%s", resp.Status, body)
	}

	if resp.StatusCode >= httpErrorStatusMin {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return body, nil
}
