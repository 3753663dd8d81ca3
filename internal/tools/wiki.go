package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultWikiEndpoint = "https://en.wikipedia.org/w/api.php"

// WikiSearch looks up encyclopedic knowledge via the Wikipedia search API.
// Safe to retry; idempotent.
type WikiSearch struct {
	client   *http.Client
	endpoint string
}

// NewWikiSearch creates the wiki.search tool. An empty endpoint uses the
// public Wikipedia API.
func NewWikiSearch(endpoint string) *WikiSearch {
	if endpoint == "" {
		endpoint = defaultWikiEndpoint
	}
	return &WikiSearch{
		client:   &http.Client{Timeout: 15 * time.Second},
		endpoint: endpoint,
	}
}

func (w *WikiSearch) Name() string     { return "wiki.search" }
func (w *WikiSearch) Idempotent() bool { return true }

// Invoke runs a search. Args: query (string, required), limit (int,
// default 3). Result: results ([]{title, snippet, url}), count.
func (w *WikiSearch) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return nil, err
	}
	limit := intArg(args, "limit", 3)

	params := url.Values{
		"action":   {"query"},
		"list":     {"search"},
		"srsearch": {query},
		"format":   {"json"},
		"srlimit":  {strconv.Itoa(limit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("wiki: create request: %w", err)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wiki: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("wiki: status %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Query struct {
			Search []struct {
				Title   string `json:"title"`
				Snippet string `json:"snippet"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("wiki: decode response: %w", err)
	}

	results := make([]map[string]any, 0, len(payload.Query.Search))
	for _, item := range payload.Query.Search {
		results = append(results, map[string]any{
			"title":   item.Title,
			"snippet": stripTags(item.Snippet),
			"url":     "https://en.wikipedia.org/wiki/" + strings.ReplaceAll(item.Title, " ", "_"),
		})
	}

	return map[string]any{
		"results": results,
		"count":   len(results),
	}, nil
}

// stripTags removes the highlight markup the search API embeds in
// snippets.
func stripTags(s string) string {
	var b strings.Builder
	inTag := false
	for _, r := range s {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
