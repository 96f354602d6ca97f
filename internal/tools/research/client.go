package research

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"toolsmith/internal/logging"
	"toolsmith/internal/tools"
)

const (
	DefaultNPMRegistryURL = "https://registry.npmjs.org"
	DefaultPkgSiteURL     = "https://pkg.go.dev"
	DefaultSearchURL      = "https://html.duckduckgo.com/html/"

	maxBodyBytes = 1 << 20
	userAgent    = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 toolsmith"
)

// Client performs the HTTP lookups behind the research tools.
// Base URLs are fields so tests can point them at an httptest server.
type Client struct {
	HTTP           *http.Client
	NPMRegistryURL string
	PkgSiteURL     string
	SearchURL      string
	Timeout        time.Duration
	Cache          *LookupCache
}

// NewClient returns a client against the public endpoints.
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		HTTP:           &http.Client{},
		NPMRegistryURL: DefaultNPMRegistryURL,
		PkgSiteURL:     DefaultPkgSiteURL,
		SearchURL:      DefaultSearchURL,
		Timeout:        timeout,
		Cache:          NewLookupCache(256, 30*time.Minute),
	}
}

// get fetches url and returns the body. Non-2xx statuses are errors.
func (c *Client) get(ctx context.Context, url, accept string) ([]byte, error) {
	if c.Cache != nil {
		if entry, ok := c.Cache.Get(url); ok {
			logging.ToolsDebug("lookup cache hit: %s (%d cached)", url, c.Cache.Size())
			return []byte(entry.Value), nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("not found: %s", url)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if c.Cache != nil {
		c.Cache.Set(url, string(body))
	}
	return body, nil
}

// inputSchema is the single-argument schema every research tool shares.
func inputSchema(description string) tools.ToolSchema {
	return tools.ToolSchema{
		Required: []string{"input"},
		Properties: map[string]tools.Property{
			"input": {Type: "string", Description: description},
		},
	}
}
