package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultEndpoint = "https://google.serper.dev/search"

// reliableDomains are preferred sources for financial fact-checking.
var reliableDomains = []string{
	"naver.com",
	"hankyung.com",
	"mk.co.kr",
	"yna.co.kr",
	"edaily.co.kr",
	"mt.co.kr",
	"sedaily.com",
	"fnnews.com",
	"chosun.com",
	"dart.fss.or.kr",
	"krx.co.kr",
	"fss.or.kr",
}

// Client calls the Serper search API.
type Client struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
	MaxResults int
}

// NewClient constructs a search client for the given API key.
func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:     apiKey,
		Endpoint:   defaultEndpoint,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		MaxResults: 10,
	}
}

type searchRequest struct {
	Q   string `json:"q"`
	Num int    `json:"num,omitempty"`
	GL  string `json:"gl,omitempty"`
	HL  string `json:"hl,omitempty"`
}

type searchResponse struct {
	Organic []organicResult `json:"organic"`
}

type organicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Search runs one query and returns a plain-text digest of the results.
// Results from reliable domains are preferred; when fewer than two reliable
// hits exist, the filter relaxes to the top three raw results so a thin
// result set still yields something to compare against.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	payload, err := json.Marshal(searchRequest{Q: query, Num: c.MaxResults, GL: "kr", HL: "ko"})
	if err != nil {
		return "", fmt.Errorf("search marshal: %w", err)
	}

	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("search %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search %q: unexpected status %d", query, resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("search %q: decode: %w", query, err)
	}

	selected := selectResults(parsed.Organic)
	if len(selected) == 0 {
		return "검색 결과 없음", nil
	}
	return formatResults(selected), nil
}

func selectResults(all []organicResult) []organicResult {
	var reliable []organicResult
	for _, r := range all {
		if isReliableDomain(r.Link) {
			reliable = append(reliable, r)
		}
	}
	if len(reliable) >= 2 {
		return reliable
	}
	if len(all) > 3 {
		return all[:3]
	}
	return all
}

func isReliableDomain(link string) bool {
	for _, domain := range reliableDomains {
		if strings.Contains(link, domain) {
			return true
		}
	}
	return false
}

func formatResults(results []organicResult) string {
	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "제목: %s\n내용: %s\n출처: %s", r.Title, r.Snippet, r.Link)
	}
	return b.String()
}

var _ Searcher = (*Client)(nil)
