package wikipedia

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultAPIURL = "https://en.wikipedia.org/api/rest_v1"

// ErrNotFound is returned when no page exists for the requested topic.
var ErrNotFound = errors.New("wikipedia: page not found")

// Client queries the Wikipedia REST summary endpoint.
type Client struct {
	apiURL string
	client *http.Client
}

// NewClient creates a Wikipedia client. An empty apiURL selects the public
// English Wikipedia REST API.
func NewClient(apiURL string) *Client {
	if strings.TrimSpace(apiURL) == "" {
		apiURL = defaultAPIURL
	}
	return &Client{
		apiURL: strings.TrimRight(apiURL, "/"),
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Summary is the condensed page summary for a topic. Type carries the page
// quality tag reported by the API ("standard", "disambiguation", ...).
type Summary struct {
	Title       string
	Description string
	Extract     string
	URL         string
	Type        string
}

type summaryResponse struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Extract     string `json:"extract"`
	Type        string `json:"type"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// Summary fetches the page summary for a topic.
func (c *Client) Summary(ctx context.Context, topic string) (Summary, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return Summary{}, errors.New("wikipedia: topic is required")
	}
	title := url.PathEscape(strings.ReplaceAll(topic, " ", "_"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/page/summary/"+title, nil)
	if err != nil {
		return Summary{}, fmt.Errorf("wikipedia: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Summary{}, fmt.Errorf("wikipedia: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return Summary{}, ErrNotFound
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Summary{}, fmt.Errorf("wikipedia: unexpected status %s", resp.Status)
	}

	var decoded summaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Summary{}, fmt.Errorf("wikipedia: decode response: %w", err)
	}
	if strings.TrimSpace(decoded.Extract) == "" {
		return Summary{}, ErrNotFound
	}

	return Summary{
		Title:       decoded.Title,
		Description: decoded.Description,
		Extract:     decoded.Extract,
		URL:         decoded.ContentURLs.Desktop.Page,
		Type:        decoded.Type,
	}, nil
}
