// Package web provides the network-facing tools: raw HTTP requests,
// search via SerpAPI, and opening URLs in the default browser.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/quillsh/quill/internal/tools"
)

const (
	bodyCap          = 10000
	searchResultCap  = 5
	serpAPIKeyEnvVar = "SERPAPI_API_KEY"
)

// Register adds the web tools to the registry.
func Register(reg *tools.Registry) {
	reg.MustRegister(&tools.Tool{
		Name:        "http_request",
		Description: "Send an HTTP request and return the status and response body",
		Params: []tools.Parameter{
			{Name: "url", Type: "string", Description: "Request URL", Required: true},
			{Name: "method", Type: "string", Description: "HTTP method", Default: "GET",
				Enum: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD"}},
			{Name: "body", Type: "string", Description: "Request body"},
			{Name: "headers", Type: "string", Description: "One 'Name: value' header per line"},
			{Name: "timeout", Type: "integer", Description: "Seconds before the request is abandoned", Default: float64(30)},
		},
		Func: httpRequest,
	})

	reg.MustRegister(&tools.Tool{
		Name:        "web_search",
		Description: "Search the web and return the top results (needs SERPAPI_API_KEY)",
		Params: []tools.Parameter{
			{Name: "query", Type: "string", Description: "Search query", Required: true},
		},
		Func: webSearch,
	})

	reg.MustRegister(&tools.Tool{
		Name:        "open_browser",
		Description: "Open a URL in the default browser",
		Params: []tools.Parameter{
			{Name: "url", Type: "string", Description: "URL to open", Required: true},
		},
		Func: openBrowser,
	})
}

func httpRequest(ctx context.Context, args map[string]any) (string, error) {
	target := tools.StringArg(args, "url", "")
	method := strings.ToUpper(tools.StringArg(args, "method", "GET"))
	body := tools.StringArg(args, "body", "")
	headers := tools.StringArg(args, "headers", "")
	timeout := tools.IntArg(args, "timeout", 30)

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(reqCtx, method, target, reader)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	for _, line := range strings.Split(headers, "\n") {
		name, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		req.Header.Set(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, bodyCap+1))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	out := string(data)
	if len(out) > bodyCap {
		out = out[:bodyCap] + "... (truncated)"
	}
	return fmt.Sprintf("%s\n\n%s", resp.Status, out), nil
}

// serpResponse covers the slice of the SerpAPI payload we read.
type serpResponse struct {
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
}

func webSearch(ctx context.Context, args map[string]any) (string, error) {
	query := tools.StringArg(args, "query", "")

	apiKey := os.Getenv(serpAPIKeyEnvVar)
	if apiKey == "" {
		return "", fmt.Errorf("web search unavailable: %s is not set", serpAPIKeyEnvVar)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", apiKey)
	params.Set("engine", "google")

	reqCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet,
		"https://serpapi.com/search?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build search request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search failed: %s", resp.Status)
	}

	var parsed serpResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("parse search response: %w", err)
	}
	if len(parsed.Organic) == 0 {
		return "no results for " + query, nil
	}

	var b strings.Builder
	for i, r := range parsed.Organic {
		if i >= searchResultCap {
			break
		}
		fmt.Fprintf(&b, "%d. %s\n   %s\n   %s\n", i+1, r.Title, r.Link, r.Snippet)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func openBrowser(ctx context.Context, args map[string]any) (string, error) {
	target := tools.StringArg(args, "url", "")

	if _, err := url.ParseRequestURI(target); err != nil {
		return "", fmt.Errorf("invalid url %q: %w", target, err)
	}

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", target)
	case "windows":
		cmd = exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", target)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", target)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("open browser: %w", err)
	}
	return "Opened " + target + " in the default browser.", nil
}
