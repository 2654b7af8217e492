package source

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	unsplashSearchURL  = "https://api.unsplash.com/search/photos"
	unsplashMaxPerPage = 30
)

// UnsplashClient searches the Unsplash photo API.
type UnsplashClient struct {
	apiClient
	key       string
	userAgent string
	searchURL string
}

// NewUnsplashClient builds an Unsplash client. An empty access key is allowed;
// searches then warn and return no candidates instead of failing the run.
func NewUnsplashClient(key, userAgent string, timeout time.Duration, logger *zap.Logger) *UnsplashClient {
	return &UnsplashClient{
		apiClient: newAPIClient("unsplash", timeout, logger),
		key:       key,
		userAgent: userAgent,
		searchURL: unsplashSearchURL,
	}
}

// Name implements Client.
func (c *UnsplashClient) Name() string { return "unsplash" }

type unsplashResponse struct {
	Results []struct {
		Width          int    `json:"width"`
		Height         int    `json:"height"`
		Description    string `json:"description"`
		AltDescription string `json:"alt_description"`
		URLs           struct {
			Regular string `json:"regular"`
			Thumb   string `json:"thumb"`
		} `json:"urls"`
	} `json:"results"`
}

// Search implements Client.
func (c *UnsplashClient) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if c.key == "" {
		c.logger.Warn("unsplash API key not provided")
		return nil, nil
	}
	if limit <= 0 || limit > unsplashMaxPerPage {
		limit = unsplashMaxPerPage
	}

	params := map[string]string{
		"query":    query,
		"per_page": strconv.Itoa(limit),
	}
	headers := map[string]string{
		"Authorization": "Client-ID " + c.key,
		"User-Agent":    c.userAgent,
	}

	var resp unsplashResponse
	if err := c.getJSON(ctx, c.searchURL, params, headers, &resp); err != nil {
		return nil, err
	}

	results := make([]Candidate, 0, len(resp.Results))
	for _, item := range resp.Results {
		if item.URLs.Regular == "" {
			continue
		}
		title := item.Description
		if title == "" {
			title = item.AltDescription
		}
		results = append(results, Candidate{
			URL:          item.URLs.Regular,
			ThumbnailURL: item.URLs.Thumb,
			Title:        title,
			Source:       "unsplash",
			Width:        item.Width,
			Height:       item.Height,
		})
	}
	return results, nil
}
