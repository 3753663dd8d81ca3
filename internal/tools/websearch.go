package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// WebSearch performs live web search for time-sensitive queries via a
// Google Custom Search compatible endpoint. Without an endpoint and API
// key configured it reports ErrUnavailable so handlers can degrade to the
// wiki lookup.
type WebSearch struct {
	client   *http.Client
	endpoint string
	apiKey   string
	cx       string
}

// NewWebSearch creates the web.search tool.
func NewWebSearch(endpoint, apiKey, cx string) *WebSearch {
	return &WebSearch{
		client:   &http.Client{Timeout: 15 * time.Second},
		endpoint: endpoint,
		apiKey:   apiKey,
		cx:       cx,
	}
}

func (w *WebSearch) Name() string     { return "web.search" }
func (w *WebSearch) Idempotent() bool { return true }

// Invoke runs a live search. Args: query (string, required), limit (int,
// default 3). Result: results ([]{title, snippet, url}), count.
func (w *WebSearch) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return nil, err
	}
	if w.endpoint == "" || w.apiKey == "" {
		return nil, fmt.Errorf("%w: web search not configured", ErrUnavailable)
	}
	limit := intArg(args, "limit", 3)

	params := url.Values{
		"key": {w.apiKey},
		"q":   {query},
		"num": {strconv.Itoa(limit)},
	}
	if w.cx != "" {
		params.Set("cx", w.cx)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("web search: create request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("web search: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("web search: status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Items []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			Link    string `json:"link"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("web search: decode response: %w", err)
	}

	results := make([]map[string]any, 0, len(payload.Items))
	for _, item := range payload.Items {
		results = append(results, map[string]any{
			"title":   item.Title,
			"snippet": item.Snippet,
			"url":     item.Link,
		})
	}

	return map[string]any{
		"results": results,
		"count":   len(results),
	}, nil
}
