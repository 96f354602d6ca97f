package research

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"toolsmith/internal/logging"
	"toolsmith/internal/tools"
)

// SearchResult represents a single search result.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

const maxSearchResults = 8

// WebSearchTool returns the web-search tool.
func (c *Client) WebSearchTool() *tools.Tool {
	return &tools.Tool{
		Name:        "web-search",
		Description: "Search the web for documentation, API details and examples. Input should be a search query.",
		Category:    tools.CategoryResearch,
		Priority:    60,
		Execute:     c.executeWebSearch,
		Schema:      inputSchema("The search query"),
	}
}

func (c *Client) executeWebSearch(ctx context.Context, args map[string]any) (string, error) {
	query, err := tools.StringArg(args, "input")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query is required")
	}

	results, err := c.SearchWeb(ctx, query)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	if len(results) == 0 {
		logging.Tools("Web search returned no results for: %s", query)
		return "", tools.ErrNoResults
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Search Results for: %s\n\n", query)
	for i, result := range results {
		fmt.Fprintf(&sb, "## %d. %s\n", i+1, result.Title)
		fmt.Fprintf(&sb, "**URL:** %s\n", result.URL)
		if result.Snippet != "" {
			fmt.Fprintf(&sb, "\n%s\n", result.Snippet)
		}
		sb.WriteString("\n")
	}

	logging.Tools("Web search completed: %d results for %q", len(results), query)
	return sb.String(), nil
}

// SearchWeb performs a search using the DuckDuckGo HTML interface.
func (c *Client) SearchWeb(ctx context.Context, query string) ([]SearchResult, error) {
	endpoint := c.SearchURL + "?q=" + url.QueryEscape(query)
	body, err := c.get(ctx, endpoint, "text/html,application/xhtml+xml")
	if err != nil {
		return nil, err
	}
	return parseDuckDuckGoResults(string(body), maxSearchResults)
}

// parseDuckDuckGoResults extracts search results from DuckDuckGo HTML.
func parseDuckDuckGoResults(htmlContent string, maxResults int) ([]SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var results []SearchResult
	var findResults func(*html.Node)
	findResults = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" && hasClass(n, "result") {
			result := extractResult(n)
			if result.URL != "" && result.Title != "" {
				results = append(results, result)
			}
			return
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			findResults(ch)
		}
	}

	findResults(doc)
	return results, nil
}

// extractResult extracts a single search result from a result div.
func extractResult(n *html.Node) SearchResult {
	var result SearchResult

	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			switch {
			case hasClass(n, "result__a"):
				result.URL = getAttrValue(n, "href")
				result.Title = getTextContent(n)
			case hasClass(n, "result__snippet"):
				result.Snippet = getTextContent(n)
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			extract(ch)
		}
	}
	extract(n)

	// Unwrap DuckDuckGo redirect links.
	if rest, ok := strings.CutPrefix(result.URL, "//duckduckgo.com/l/?"); ok {
		if q, err := url.ParseQuery(rest); err == nil && q.Get("uddg") != "" {
			result.URL = q.Get("uddg")
		}
	}

	return result
}

func getAttrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// getTextContent returns all text content within a node, space separated.
func getTextContent(n *html.Node) string {
	var parts []string
	var getText func(*html.Node)
	getText = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			getText(ch)
		}
	}
	getText(n)
	return strings.Join(parts, " ")
}
