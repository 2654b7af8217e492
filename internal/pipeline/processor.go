// Package pipeline turns image candidates into accepted, deduplicated,
// on-disk images plus metadata records.
package pipeline

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/boxhunt/boxhunt/internal/metrics"
	"github.com/boxhunt/boxhunt/internal/source"
	"github.com/boxhunt/boxhunt/internal/store"
)

// Config controls per-candidate processing.
type Config struct {
	ImagesDir      string
	UserAgent      string
	Timeout        time.Duration
	MaxFileSize    int64
	MinWidth       int
	MinHeight      int
	AllowedFormats []string
	MaxConcurrent  int
}

// Processor runs the download-validate-fingerprint-dedup-persist pipeline
// over candidate batches. The semaphore bounds only the download stage; an
// already-downloaded image is never blocked behind the download limiter.
type Processor struct {
	cfg    Config
	client *http.Client
	index  *Index
	failed *URLSet
	known  *URLSet
	sem    *semaphore.Weighted
	logger *zap.Logger
}

// New builds a Processor around an injected dedup index and failed-URL set so
// several collections can run in one process without sharing state.
func New(cfg Config, index *Index, failed *URLSet, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 3
	}
	if failed == nil {
		failed = NewURLSet()
	}
	return &Processor{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		index:  index,
		failed: failed,
		known:  NewURLSet(),
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger: logger,
	}
}

// MarkKnown records URLs already persisted by earlier runs; they are skipped
// without a download attempt.
func (p *Processor) MarkKnown(urls map[string]struct{}) {
	p.known.AddAll(urls)
}

// FailedURLs exposes the per-run failed-URL cache.
func (p *Processor) FailedURLs() *URLSet { return p.failed }

// Index exposes the dedup index.
func (p *Processor) Index() *Index { return p.index }

// ProcessBatch runs the pipeline over all candidates with at most
// MaxConcurrent downloads in flight. Per-candidate failures are absorbed;
// persistence errors are collected into the returned error while leaving
// sibling candidates untouched.
func (p *Processor) ProcessBatch(ctx context.Context, candidates []source.Candidate) ([]store.Record, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var (
		mu        sync.Mutex
		records   []store.Record
		persistWG sync.WaitGroup
		errs      []error
	)

	for _, cand := range candidates {
		persistWG.Add(1)
		go func(cand source.Candidate) {
			defer persistWG.Done()
			defer func() {
				if r := recover(); r != nil {
					p.logger.Error("candidate pipeline panicked",
						zap.String("url", cand.URL),
						zap.Any("panic", r),
					)
				}
			}()
			record, err := p.processOne(ctx, cand)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			if record == nil {
				return
			}
			mu.Lock()
			records = append(records, *record)
			mu.Unlock()
		}(cand)
	}
	persistWG.Wait()

	p.logger.Info("batch processed",
		zap.Int("candidates", len(candidates)),
		zap.Int("accepted", len(records)),
		zap.Int("failures", len(errs)),
	)
	return records, errors.Join(errs...)
}

// processOne runs one candidate through every stage. A nil record with a nil
// error means the candidate was rejected; only persistence failures surface
// as errors.
func (p *Processor) processOne(ctx context.Context, cand source.Candidate) (*store.Record, error) {
	if p.known.Contains(cand.URL) {
		p.logger.Debug("skipping already-collected URL", zap.String("url", cand.URL))
		return nil, nil
	}
	if p.failed.Contains(cand.URL) {
		p.logger.Debug("skipping previously failed URL", zap.String("url", cand.URL))
		return nil, nil
	}

	data, err := p.boundedDownload(ctx, cand.URL)
	if err != nil {
		p.failed.Add(cand.URL)
		reason := "download"
		if errors.Is(err, errOversized) {
			reason = "oversized"
		}
		metrics.ImageRejected(reason)
		p.logger.Warn("download rejected", zap.String("url", cand.URL), zap.Error(err))
		return nil, nil
	}

	img, ext, err := validateImage(data, p.cfg.MinWidth, p.cfg.MinHeight, p.cfg.AllowedFormats)
	if err != nil {
		// The fetch itself succeeded, so the URL is not cached as failed.
		reason := "invalid"
		if errors.Is(err, errTooSmall) {
			reason = "too_small"
		}
		metrics.ImageRejected(reason)
		p.logger.Debug("image rejected", zap.String("url", cand.URL), zap.Error(err))
		return nil, nil
	}

	hash, err := Fingerprint(img)
	if err != nil {
		metrics.ImageRejected("invalid")
		p.logger.Debug("fingerprint failed", zap.String("url", cand.URL), zap.Error(err))
		return nil, nil
	}

	if !p.index.Admit(hash) {
		metrics.ImageRejected("duplicate")
		p.logger.Debug("duplicate image skipped", zap.String("url", cand.URL), zap.String("hash", hash.String()))
		return nil, nil
	}

	filename := generateFilename(cand.Source, cand.URL, ext)
	downloadTime := time.Now().UTC()
	if err := os.WriteFile(filepath.Join(p.cfg.ImagesDir, filename), data, 0o644); err != nil {
		metrics.ImageRejected("persist")
		return nil, fmt.Errorf("write image %s: %w", filename, err)
	}
	p.known.Add(cand.URL)
	metrics.ImageAccepted(cand.Source, int64(len(data)))

	bounds := img.Bounds()
	return &store.Record{
		Filename:       filename,
		URL:            cand.URL,
		Source:         cand.Source,
		Title:          cand.Title,
		Width:          bounds.Dx(),
		Height:         bounds.Dy(),
		FileSize:       int64(len(data)),
		PerceptualHash: hash.String(),
		DownloadTime:   downloadTime,
	}, nil
}

// boundedDownload gates the download stage behind the concurrency semaphore.
func (p *Processor) boundedDownload(ctx context.Context, url string) ([]byte, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire download slot: %w", err)
	}
	metrics.DownloadStarted()
	defer func() {
		metrics.DownloadFinished()
		p.sem.Release(1)
	}()
	return p.download(ctx, url)
}

var invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// generateFilename derives a collision-resistant name from the source tag, a
// timestamp, and a short hash of the source URL.
func generateFilename(sourceTag, url, ext string) string {
	tag := invalidFilenameChars.ReplaceAllString(sourceTag, "_")
	if tag == "" {
		tag = "unknown"
	}
	sum := sha1.Sum([]byte(url))
	return fmt.Sprintf("%s_%d_%s.%s", tag, time.Now().Unix(), hex.EncodeToString(sum[:])[:12], ext)
}
