// Package tools provides the copywriter agent's tools: web search and
// access to the local creator transcript library.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultTavilyBaseURL is the public Tavily API endpoint.
const DefaultTavilyBaseURL = "https://api.tavily.com"

// ErrMissingQuery is returned when the model calls search without a query.
var ErrMissingQuery = errors.New("missing query argument")

// TavilySearch is a web search tool backed by the Tavily API.
type TavilySearch struct {
	client     *resty.Client
	maxResults uint
}

// NewTavilySearch creates the search tool. An empty baseURL uses the public
// Tavily endpoint; maxResults of zero asks for five results.
func NewTavilySearch(baseURL, apiKey string, maxResults uint) *TavilySearch {
	if baseURL == "" {
		baseURL = DefaultTavilyBaseURL
	}
	if maxResults == 0 {
		maxResults = 5
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(apiKey).
		SetTimeout(30 * time.Second).
		SetRetryCount(2)

	return &TavilySearch{
		client:     client,
		maxResults: maxResults,
	}
}

func (t *TavilySearch) Name() string { return "tavily_search" }

func (t *TavilySearch) Description() string {
	return "Search the web for current information. Returns a JSON list of results with title, url, and content."
}

func (t *TavilySearch) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query.",
			},
		},
		"required": []string{"query"},
	}
}

type tavilyResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

type tavilyResponse struct {
	Answer  string         `json:"answer,omitempty"`
	Results []tavilyResult `json:"results"`
}

// Call performs the search and returns the results as a JSON document.
func (t *TavilySearch) Call(ctx context.Context, args map[string]any) (string, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return "", ErrMissingQuery
	}

	var parsed tavilyResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"query":       query,
			"max_results": t.maxResults,
		}).
		SetResult(&parsed).
		Post("/search")
	if err != nil {
		return "", fmt.Errorf("searching: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("search returned %s: %s", resp.Status(), resp.String())
	}

	out, err := json.Marshal(parsed.Results)
	if err != nil {
		return "", fmt.Errorf("encoding search results: %w", err)
	}

	return string(out), nil
}
