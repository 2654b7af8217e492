// Package hunt orchestrates a harvest end to end: source fan-out, the image
// pipeline, and the metadata store.
package hunt

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/boxhunt/boxhunt/internal/config"
	"github.com/boxhunt/boxhunt/internal/metrics"
	"github.com/boxhunt/boxhunt/internal/pipeline"
	"github.com/boxhunt/boxhunt/internal/source"
	"github.com/boxhunt/boxhunt/internal/store"
	"github.com/boxhunt/boxhunt/internal/webcrawl"
)

// Harvester drives collection runs. Construct it with Build for the standard
// wiring, or New when injecting fakes.
type Harvester struct {
	cfg     config.Config
	sources *source.Manager
	crawler *webcrawl.Crawler
	proc    *pipeline.Processor
	store   *store.Store
	logger  *zap.Logger
}

// New wires a Harvester from already-built components.
func New(cfg config.Config, sources *source.Manager, crawler *webcrawl.Crawler, proc *pipeline.Processor, st *store.Store, logger *zap.Logger) *Harvester {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harvester{
		cfg:     cfg,
		sources: sources,
		crawler: crawler,
		proc:    proc,
		store:   st,
		logger:  logger,
	}
}

// Build opens the collection's store and assembles the standard component
// stack, resuming dedup state from any previous run.
func Build(cfg config.Config, collection string, logger *zap.Logger) (*Harvester, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	st, err := store.Open(cfg.MetadataFile(collection), cfg.ImagesDir(collection), logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	proc := pipeline.New(pipeline.Config{
		ImagesDir:      st.ImagesDir(),
		UserAgent:      cfg.Fetch.UserAgent,
		Timeout:        cfg.FetchTimeout(),
		MaxFileSize:    cfg.Filter.MaxFileSize,
		MinWidth:       cfg.Filter.MinWidth,
		MinHeight:      cfg.Filter.MinHeight,
		AllowedFormats: cfg.Filter.AllowedFormats,
		MaxConcurrent:  cfg.Fetch.MaxConcurrent,
	}, pipeline.NewIndex(cfg.Dedup.HammingThreshold), pipeline.NewURLSet(), logger)

	crawler := webcrawl.New(webcrawl.Config{
		MaxDepth:      cfg.Crawl.MaxDepth,
		RespectRobots: cfg.Crawl.RespectRobots,
		Delay:         cfg.RequestDelay(),
		FetchTimeout:  cfg.LinkTimeout(),
		UserAgent:     cfg.Fetch.UserAgent,
	}, logger)

	var clients []source.Client
	for _, name := range cfg.Sources.Enabled {
		switch name {
		case "pexels":
			clients = append(clients, source.NewPexelsClient(cfg.Sources.PexelsKey, cfg.Fetch.UserAgent, cfg.FetchTimeout(), logger))
		case "unsplash":
			clients = append(clients, source.NewUnsplashClient(cfg.Sources.UnsplashKey, cfg.Fetch.UserAgent, cfg.FetchTimeout(), logger))
		default:
			logger.Warn("unknown source in config; skipping", zap.String("source", name))
		}
	}

	h := New(cfg, source.NewManager(logger, clients...), crawler, proc, st, logger)
	if err := h.Resume(); err != nil {
		return nil, err
	}
	return h, nil
}

// Store exposes the underlying metadata store.
func (h *Harvester) Store() *store.Store { return h.store }

// Report summarizes one harvest run.
type Report struct {
	RunID      string
	Keywords   int
	Candidates int
	Saved      int
	Failures   int
	Duration   time.Duration
}

// Resume reloads perceptual hashes and collected URLs from the store so a new
// run never re-downloads or re-admits what earlier runs kept.
func (h *Harvester) Resume() error {
	hashes, err := h.store.LoadHashes()
	if err != nil {
		return fmt.Errorf("load hashes: %w", err)
	}
	h.proc.Index().Seed(hashes, h.logger)

	urls, err := h.store.LoadURLs()
	if err != nil {
		return fmt.Errorf("load urls: %w", err)
	}
	h.proc.MarkKnown(urls)

	h.logger.Info("resume state loaded",
		zap.Int("known_hashes", len(hashes)),
		zap.Int("known_urls", len(urls)),
	)
	return nil
}

// HarvestKeyword searches every enabled source for one keyword and runs the
// results through the pipeline. It returns the number of records saved.
func (h *Harvester) HarvestKeyword(ctx context.Context, keyword string) (int, error) {
	candidates, err := h.sources.Search(ctx, keyword, h.cfg.Search.CountPerSource)
	if err != nil {
		return 0, fmt.Errorf("search %q: %w", keyword, err)
	}
	perSource := make(map[string]int)
	for _, cand := range candidates {
		perSource[cand.Source]++
	}
	for src, n := range perSource {
		metrics.CandidatesFound(src, n)
	}
	h.logger.Info("keyword searched",
		zap.String("keyword", keyword),
		zap.Int("candidates", len(candidates)),
	)
	return h.process(ctx, candidates)
}

// HarvestKeywords runs every keyword with the configured politeness delay in
// between. A failing keyword is logged and does not stop the rest.
func (h *Harvester) HarvestKeywords(ctx context.Context, keywords []string) (Report, error) {
	report := Report{RunID: uuid.NewString(), Keywords: len(keywords)}
	logger := h.logger.With(zap.String("run_id", report.RunID))
	start := time.Now()

	logger.Info("harvest run starting", zap.Int("keywords", len(keywords)))
	for i, keyword := range keywords {
		if i > 0 && h.cfg.RequestDelay() > 0 {
			select {
			case <-ctx.Done():
				report.Duration = time.Since(start)
				return report, ctx.Err()
			case <-time.After(h.cfg.RequestDelay()):
			}
		}
		saved, err := h.HarvestKeyword(ctx, keyword)
		if err != nil {
			report.Failures++
			logger.Warn("keyword harvest failed", zap.String("keyword", keyword), zap.Error(err))
			continue
		}
		report.Saved += saved
	}
	report.Duration = time.Since(start)

	logger.Info("harvest run complete",
		zap.Int("saved", report.Saved),
		zap.Int("failed_keywords", report.Failures),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

// Scrape harvests a single website, crawling from seedURL.
func (h *Harvester) Scrape(ctx context.Context, seedURL string, maxImages int) (int, error) {
	logger := h.logger.With(zap.String("run_id", uuid.NewString()))

	candidates, err := h.crawler.Crawl(ctx, seedURL, maxImages)
	if err != nil {
		return 0, fmt.Errorf("crawl %q: %w", seedURL, err)
	}
	perSource := make(map[string]int)
	for _, cand := range candidates {
		perSource[cand.Source]++
	}
	for src, n := range perSource {
		metrics.CandidatesFound(src, n)
	}
	logger.Info("site crawled", zap.String("seed", seedURL), zap.Int("candidates", len(candidates)))
	return h.process(ctx, candidates)
}

// process sends candidates through the pipeline and persists whatever
// survives. Records that made it to disk are saved even when some siblings
// failed to persist.
func (h *Harvester) process(ctx context.Context, candidates []source.Candidate) (int, error) {
	records, procErr := h.proc.ProcessBatch(ctx, candidates)
	if len(records) > 0 {
		if err := h.store.Save(records); err != nil {
			return 0, fmt.Errorf("save records: %w", err)
		}
	}
	return len(records), procErr
}

// Cleanup removes orphaned image files and clears the failed-URL cache so
// previously failing URLs become retryable.
func (h *Harvester) Cleanup() (removed, cleared int, err error) {
	removed, err = h.store.CleanupOrphans()
	if err != nil {
		return 0, 0, err
	}
	cleared = h.proc.FailedURLs().Clear()
	h.logger.Info("cleanup complete",
		zap.Int("orphans_removed", removed),
		zap.Int("failed_urls_cleared", cleared),
	)
	return removed, cleared, nil
}

// Statistics proxies the store's aggregate view.
func (h *Harvester) Statistics() (store.Stats, error) {
	return h.store.Statistics()
}

// Export writes the collection metadata in the given format and returns the
// output path.
func (h *Harvester) Export(format, outPath string) (string, error) {
	return h.store.Export(format, outPath)
}

// SourceStatus is one source's connectivity probe result.
type SourceStatus struct {
	Name    string
	OK      bool
	Results int
	Err     string
}

// TestSources probes every enabled source with a small search so operators can
// check credentials before a long run.
func (h *Harvester) TestSources(ctx context.Context) []SourceStatus {
	clients := h.sources.Clients()
	statuses := make([]SourceStatus, 0, len(clients))
	for _, client := range clients {
		status := SourceStatus{Name: client.Name()}
		results, err := client.Search(ctx, "cardboard box", 5)
		if err != nil {
			status.Err = err.Error()
		} else {
			status.OK = true
			status.Results = len(results)
		}
		statuses = append(statuses, status)
	}
	return statuses
}
