package source

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	pexelsSearchURL  = "https://api.pexels.com/v1/search"
	pexelsMaxPerPage = 80
)

// PexelsClient searches the Pexels photo API.
type PexelsClient struct {
	apiClient
	key       string
	userAgent string
	searchURL string
}

// NewPexelsClient builds a Pexels client. An empty key is allowed; searches
// then warn and return no candidates instead of failing the run.
func NewPexelsClient(key, userAgent string, timeout time.Duration, logger *zap.Logger) *PexelsClient {
	return &PexelsClient{
		apiClient: newAPIClient("pexels", timeout, logger),
		key:       key,
		userAgent: userAgent,
		searchURL: pexelsSearchURL,
	}
}

// Name implements Client.
func (c *PexelsClient) Name() string { return "pexels" }

type pexelsResponse struct {
	Photos []struct {
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Alt    string `json:"alt"`
		Src    struct {
			Original string `json:"original"`
			Medium   string `json:"medium"`
		} `json:"src"`
	} `json:"photos"`
}

// Search implements Client.
func (c *PexelsClient) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if c.key == "" {
		c.logger.Warn("pexels API key not provided")
		return nil, nil
	}
	if limit <= 0 || limit > pexelsMaxPerPage {
		limit = pexelsMaxPerPage
	}

	params := map[string]string{
		"query":    query,
		"per_page": strconv.Itoa(limit),
		"size":     "medium",
	}
	headers := map[string]string{
		"Authorization": c.key,
		"User-Agent":    c.userAgent,
	}

	var resp pexelsResponse
	if err := c.getJSON(ctx, c.searchURL, params, headers, &resp); err != nil {
		return nil, err
	}

	results := make([]Candidate, 0, len(resp.Photos))
	for _, item := range resp.Photos {
		if item.Src.Original == "" {
			continue
		}
		results = append(results, Candidate{
			URL:          item.Src.Original,
			ThumbnailURL: item.Src.Medium,
			Title:        item.Alt,
			Source:       "pexels",
			Width:        item.Width,
			Height:       item.Height,
		})
	}
	return results, nil
}
