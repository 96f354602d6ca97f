package research

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"toolsmith/internal/logging"
	"toolsmith/internal/tools"
)

// NPMPackage is one npm-search result.
type NPMPackage struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
}

type npmSearchResponse struct {
	Objects []struct {
		Package struct {
			Name        string `json:"name"`
			Description string `json:"description"`
		} `json:"package"`
		Score struct {
			Final float64 `json:"final"`
		} `json:"score"`
	} `json:"objects"`
}

// NPMSearchTool returns the npm-search tool.
func (c *Client) NPMSearchTool() *tools.Tool {
	return &tools.Tool{
		Name:        "npm-search",
		Description: "Search NPM to find packages given a search string. The response is an array of JSON objects including package names, descriptions, and overall quality scores.",
		Category:    tools.CategoryPackages,
		Priority:    70,
		Execute:     c.executeNPMSearch,
		Schema:      inputSchema("The search string"),
	}
}

func (c *Client) executeNPMSearch(ctx context.Context, args map[string]any) (string, error) {
	query, err := tools.StringArg(args, "input")
	if err != nil {
		return "", err
	}
	results, err := c.SearchNPM(ctx, query)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return "", tools.ErrNoResults
	}
	data, err := json.Marshal(results)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SearchNPM queries the registry search endpoint.
func (c *Client) SearchNPM(ctx context.Context, query string) ([]NPMPackage, error) {
	endpoint := strings.TrimRight(c.NPMRegistryURL, "/") + "/-/v1/search?text=" + url.QueryEscape(query)
	logging.ToolsDebug("npm search: %q", query)

	body, err := c.get(ctx, endpoint, "application/json")
	if err != nil {
		return nil, err
	}
	var resp npmSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode npm search response: %w", err)
	}

	results := make([]NPMPackage, 0, len(resp.Objects))
	for _, obj := range resp.Objects {
		results = append(results, NPMPackage{
			Name:        obj.Package.Name,
			Description: obj.Package.Description,
			Score:       obj.Score.Final,
		})
	}
	return results, nil
}

// NPMInfoTool returns the npm-info tool.
func (c *Client) NPMInfoTool() *tools.Tool {
	return &tools.Tool{
		Name:        "npm-info",
		Description: "Query NPM to fetch the README file of a particular package by name. Use this to discover implementation and usage details for a given package.",
		Category:    tools.CategoryPackages,
		Priority:    65,
		Execute:     c.executeNPMInfo,
		Schema:      inputSchema("The exact package name"),
	}
}

func (c *Client) executeNPMInfo(ctx context.Context, args map[string]any) (string, error) {
	name, err := tools.StringArg(args, "input")
	if err != nil {
		return "", err
	}
	return c.NPMReadme(ctx, strings.TrimSpace(name))
}

// NPMReadme returns the README of the named package, or
// "No details available" when the registry has none.
func (c *Client) NPMReadme(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("package name is required")
	}
	endpoint := strings.TrimRight(c.NPMRegistryURL, "/") + "/" + url.PathEscape(name)
	logging.ToolsDebug("npm info: %s", name)

	body, err := c.get(ctx, endpoint, "application/json")
	if err != nil {
		return "", err
	}
	var doc struct {
		Readme string `json:"readme"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", fmt.Errorf("failed to decode npm package document: %w", err)
	}
	if strings.TrimSpace(doc.Readme) == "" {
		return "No details available", nil
	}
	return doc.Readme, nil
}
