package research

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"toolsmith/internal/logging"
	"toolsmith/internal/tools"
)

// GoPackage is one go-search result.
type GoPackage struct {
	Path     string `json:"path"`
	Synopsis string `json:"synopsis"`
}

const maxGoResults = 10

// GoSearchTool returns the go-search tool.
func (c *Client) GoSearchTool() *tools.Tool {
	return &tools.Tool{
		Name:        "go-search",
		Description: "Search pkg.go.dev to find Go packages given a search string. The response is an array of JSON objects with import paths and synopses.",
		Category:    tools.CategoryPackages,
		Priority:    80,
		Execute:     c.executeGoSearch,
		Schema:      inputSchema("The search string"),
	}
}

func (c *Client) executeGoSearch(ctx context.Context, args map[string]any) (string, error) {
	query, err := tools.StringArg(args, "input")
	if err != nil {
		return "", err
	}
	results, err := c.SearchGo(ctx, query)
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

// SearchGo scrapes the pkg.go.dev package search page.
func (c *Client) SearchGo(ctx context.Context, query string) ([]GoPackage, error) {
	endpoint := strings.TrimRight(c.PkgSiteURL, "/") + "/search?m=package&q=" + url.QueryEscape(query)
	logging.ToolsDebug("go search: %q", query)

	body, err := c.get(ctx, endpoint, "text/html")
	if err != nil {
		return nil, err
	}
	return parseGoSearchResults(string(body), maxGoResults)
}

func parseGoSearchResults(htmlContent string, maxResults int) ([]GoPackage, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var results []GoPackage
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && hasClass(n, "SearchSnippet") {
			if pkg := extractGoSnippet(n); pkg.Path != "" {
				results = append(results, pkg)
			}
			return
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)
	return results, nil
}

func extractGoSnippet(n *html.Node) GoPackage {
	var pkg GoPackage
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && pkg.Path == "" && getAttrValue(n, "data-test-id") == "snippet-title":
				pkg.Path = strings.TrimPrefix(getAttrValue(n, "href"), "/")
			case n.Data == "p" && hasClass(n, "SearchSnippet-synopsis"):
				pkg.Synopsis = getTextContent(n)
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(n)
	if i := strings.IndexAny(pkg.Path, "?#"); i >= 0 {
		pkg.Path = pkg.Path[:i]
	}
	return pkg
}

// GoInfoTool returns the go-info tool.
func (c *Client) GoInfoTool() *tools.Tool {
	return &tools.Tool{
		Name:        "go-info",
		Description: "Fetch the README and synopsis of a Go package from pkg.go.dev by import path. Use this to discover implementation and usage details for a given package.",
		Category:    tools.CategoryPackages,
		Priority:    75,
		Execute:     c.executeGoInfo,
		Schema:      inputSchema("The package import path"),
	}
}

func (c *Client) executeGoInfo(ctx context.Context, args map[string]any) (string, error) {
	path, err := tools.StringArg(args, "input")
	if err != nil {
		return "", err
	}
	return c.GoReadme(ctx, strings.TrimSpace(path))
}

// GoReadme returns the package synopsis and README text, or
// "No details available" when the page carries neither.
func (c *Client) GoReadme(ctx context.Context, importPath string) (string, error) {
	if importPath == "" {
		return "", fmt.Errorf("import path is required")
	}
	endpoint := strings.TrimRight(c.PkgSiteURL, "/") + "/" + strings.TrimPrefix(importPath, "/")
	logging.ToolsDebug("go info: %s", importPath)

	body, err := c.get(ctx, endpoint, "text/html")
	if err != nil {
		return "", err
	}
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	var synopsis, readme string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if synopsis == "" && n.Data == "meta" && getAttrValue(n, "name") == "description" {
				synopsis = strings.TrimSpace(getAttrValue(n, "content"))
			}
			if readme == "" && hasClass(n, "Overview-readmeContent") {
				var sb strings.Builder
				renderText(n, &sb)
				readme = cleanText(sb.String())
				return
			}
		}
		for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
			walk(ch)
		}
	}
	walk(doc)

	switch {
	case readme != "" && synopsis != "":
		return synopsis + "\n\n" + readme, nil
	case readme != "":
		return readme, nil
	case synopsis != "":
		return synopsis, nil
	default:
		return "No details available", nil
	}
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(getAttrValue(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

// renderText flattens a README subtree to plain text, keeping code blocks
// and list structure.
func renderText(n *html.Node, sb *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "svg":
			return
		case "pre":
			sb.WriteString("\n```\n")
			for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
				renderText(ch, sb)
			}
			sb.WriteString("\n```\n")
			return
		case "h1", "h2", "h3", "h4":
			sb.WriteString("\n\n# ")
		case "p", "div":
			sb.WriteString("\n\n")
		case "li":
			sb.WriteString("\n- ")
		case "br":
			sb.WriteString("\n")
		}
	}
	for ch := n.FirstChild; ch != nil; ch = ch.NextSibling {
		renderText(ch, sb)
	}
}

var blankLines = regexp.MustCompile(`\n{3,}`)

func cleanText(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}
