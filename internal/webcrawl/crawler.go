// Package webcrawl implements the breadth-first website source: it walks a
// site from a seed URL, depth- and domain-scoped, and extracts image
// candidates from markup and inline styles.
package webcrawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/boxhunt/boxhunt/internal/metrics"
	"github.com/boxhunt/boxhunt/internal/source"
)

// ErrInvalidSeed is returned when the seed is not an absolute http(s) URL.
var ErrInvalidSeed = errors.New("invalid seed URL")

const maxPageBytes = 5 << 20

// Config controls crawl scoping and politeness.
type Config struct {
	MaxDepth      int
	RespectRobots bool
	Delay         time.Duration
	FetchTimeout  time.Duration
	UserAgent     string
}

// Crawler is the website Source Client. One Crawler may serve many crawl
// calls; frontier, visited, and seen-image state are scoped per call.
type Crawler struct {
	cfg     Config
	client  *http.Client
	robots  robotsPolicy
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New builds a Crawler from config.
func New(cfg Config, logger *zap.Logger) *Crawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Delay), 1)
	}
	return &Crawler{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.FetchTimeout},
		robots:  newRobotsPolicy(cfg.RespectRobots, cfg.UserAgent, logger),
		limiter: limiter,
		logger:  logger,
	}
}

// Name implements source.Client.
func (c *Crawler) Name() string { return "website" }

// Search implements source.Client; the query is the seed URL.
func (c *Crawler) Search(ctx context.Context, query string, limit int) ([]source.Candidate, error) {
	return c.Crawl(ctx, query, limit)
}

type frontierEntry struct {
	url   string
	depth int
}

// Crawl walks the site breadth-first from seedURL until the frontier empties
// or maxImages candidates are collected. No URL is processed twice, no entry
// beyond MaxDepth is processed, and only links on the seed's host are
// followed. Page-level failures are logged and skipped.
func (c *Crawler) Crawl(ctx context.Context, seedURL string, maxImages int) ([]source.Candidate, error) {
	seed, err := url.Parse(seedURL)
	if err != nil || (seed.Scheme != "http" && seed.Scheme != "https") || seed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeed, seedURL)
	}
	normalizedSeed, err := normalizeURL(seedURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSeed, seedURL)
	}
	if maxImages <= 0 {
		maxImages = 50
	}

	c.logger.Info("starting website crawl",
		zap.String("seed", normalizedSeed),
		zap.Int("max_images", maxImages),
		zap.Int("max_depth", c.cfg.MaxDepth),
	)

	frontier := []frontierEntry{{url: normalizedSeed, depth: 0}}
	visited := make(map[string]struct{})
	seenImages := make(map[string]struct{})
	var results []source.Candidate

	for len(frontier) > 0 && len(results) < maxImages {
		entry := frontier[0]
		frontier = frontier[1:]

		if _, ok := visited[entry.url]; ok {
			continue
		}
		if entry.depth > c.cfg.MaxDepth {
			continue
		}
		visited[entry.url] = struct{}{}

		if err := c.limiter.Wait(ctx); err != nil {
			return results, err
		}

		if !c.robots.Allowed(ctx, entry.url) {
			c.logger.Warn("robots.txt disallows page", zap.String("url", entry.url))
			continue
		}

		pageURL, html, err := c.fetchPage(ctx, entry.url)
		if err != nil {
			c.logger.Warn("page fetch failed",
				zap.String("url", entry.url),
				zap.Int("depth", entry.depth),
				zap.Error(err),
			)
			continue
		}
		metrics.PageCrawled(pageURL.Hostname())

		content, err := extractPage(html, pageURL)
		if err != nil {
			c.logger.Warn("page parse failed", zap.String("url", entry.url), zap.Error(err))
			continue
		}

		added := 0
		sourceTag := domainLabel(entry.url)
		for _, ref := range content.images {
			if _, ok := seenImages[ref.url]; ok {
				continue
			}
			seenImages[ref.url] = struct{}{}
			results = append(results, source.Candidate{
				URL:          ref.url,
				ThumbnailURL: ref.url,
				Title:        ref.title,
				Source:       sourceTag,
				Width:        ref.width,
				Height:       ref.height,
			})
			added++
			if len(results) >= maxImages {
				break
			}
		}
		c.logger.Debug("page scraped",
			zap.String("url", entry.url),
			zap.Int("depth", entry.depth),
			zap.Int("new_images", added),
			zap.Int("total_images", len(results)),
			zap.Int("frontier", len(frontier)),
		)

		if len(results) < maxImages && entry.depth < c.cfg.MaxDepth {
			for _, link := range content.links {
				linkURL, err := url.Parse(link)
				if err != nil || !sameHost(linkURL, seed) {
					continue
				}
				if _, ok := visited[link]; ok {
					continue
				}
				frontier = append(frontier, frontierEntry{url: link, depth: entry.depth + 1})
			}
		}
	}

	c.logger.Info("website crawl complete",
		zap.String("seed", normalizedSeed),
		zap.Int("pages_visited", len(visited)),
		zap.Int("images_found", len(results)),
	)
	return results, nil
}

// fetchPage gets one page and decodes its body into UTF-8 via the charset
// recovery chain.
func (c *Crawler) fetchPage(ctx context.Context, pageURL string) (*url.URL, string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("do request: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Debug("close page body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}

	finalURL := resp.Request.URL
	return finalURL, decodeHTML(body, resp.Header.Get("Content-Type")), nil
}
