// Package breach queries the Have I Been Pwned v3 API for breaches of an account.
package breach

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/yajur-khanna/asm-tool/internal/config"
	"github.com/yajur-khanna/asm-tool/internal/findings"
	"github.com/yajur-khanna/asm-tool/internal/httpclient"
	"github.com/yajur-khanna/asm-tool/internal/logger"
	"github.com/yajur-khanna/asm-tool/internal/stage"
)

const maxResponseSize = 8 << 20

type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *logger.Logger
}

func New(cfg config.BreachConfig, httpCfg config.HTTPConfig, log *logger.Logger) *Client {
	return NewWithClient(cfg, httpclient.NewAPIClient(httpCfg, cfg.Timeout), log)
}

func NewWithClient(cfg config.BreachConfig, client *http.Client, log *logger.Logger) *Client {
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  client,
		logger:  log.WithComponent("breach"),
	}
}

// Lookup returns the breaches recorded for account. Not found is an empty list; a
// missing API key is ErrToolUnavailable.
func (c *Client) Lookup(ctx context.Context, account string) ([]findings.Breach, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("no breach API key configured: %w", stage.ErrToolUnavailable)
	}

	endpoint := fmt.Sprintf("%s/breachedaccount/%s", c.baseURL, url.PathEscape(account))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("hibp-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := httpclient.DoWithContext(ctx, c.client, req)
	if err != nil {
		return nil, err
	}
	defer httpclient.CloseBody(resp)

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return []findings.Breach{}, nil
	default:
		return nil, fmt.Errorf("breach lookup returned status %d", resp.StatusCode)
	}

	var breaches []findings.Breach
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(&breaches); err != nil {
		return nil, fmt.Errorf("failed to decode breach response: %w", err)
	}
	if breaches == nil {
		breaches = []findings.Breach{}
	}

	c.logger.Debugw("Breach lookup complete", "account", account, "breaches", len(breaches))
	return breaches, nil
}
