package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/gif"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boxhunt/boxhunt/internal/source"
)

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestProcessor(t *testing.T, maxConcurrent int) (*Processor, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		ImagesDir:      dir,
		UserAgent:      "boxhunt-test",
		Timeout:        5 * time.Second,
		MaxFileSize:    1 << 20,
		MinWidth:       64,
		MinHeight:      64,
		AllowedFormats: []string{"jpg", "png", "webp"},
		MaxConcurrent:  maxConcurrent,
	}
	return New(cfg, NewIndex(5), NewURLSet(), zap.NewNop()), dir
}

func TestProcessBatch_AcceptsDistinctImages(t *testing.T) {
	t.Parallel()

	images := map[string][]byte{
		"/a.png": pngBytes(t, halfWhite(128, 96)),
		"/b.png": pngBytes(t, topWhite(128, 96)),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, ok := images[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	proc, dir := newTestProcessor(t, 3)
	records, err := proc.ProcessBatch(context.Background(), []source.Candidate{
		{URL: srv.URL + "/a.png", Source: "pexels", Title: "left split"},
		{URL: srv.URL + "/b.png", Source: "unsplash", Title: "top split"},
	})
	require.NoError(t, err)
	require.Len(t, records, 2)

	for _, rec := range records {
		assert.Equal(t, 128, rec.Width)
		assert.Equal(t, 96, rec.Height)
		assert.NotEmpty(t, rec.PerceptualHash)
		assert.True(t, strings.HasSuffix(rec.Filename, ".png"), rec.Filename)

		data, err := os.ReadFile(filepath.Join(dir, rec.Filename))
		require.NoError(t, err)
		assert.Equal(t, rec.FileSize, int64(len(data)))
	}
}

func TestProcessBatch_RejectsNearDuplicatesWithinBatch(t *testing.T) {
	t.Parallel()

	// Same structure at two scales: distinct URLs and bytes, matching hashes.
	images := map[string][]byte{
		"/small.png": pngBytes(t, halfWhite(64, 64)),
		"/large.png": pngBytes(t, halfWhite(512, 512)),
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(images[r.URL.Path])
	}))
	defer srv.Close()

	proc, _ := newTestProcessor(t, 3)
	records, err := proc.ProcessBatch(context.Background(), []source.Candidate{
		{URL: srv.URL + "/small.png", Source: "website"},
		{URL: srv.URL + "/large.png", Source: "website"},
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, proc.Index().Len())
}

func TestProcessBatch_SeededIndexRejectsOnResume(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngBytes(t, halfWhite(128, 128)))
	}))
	defer srv.Close()

	hash, err := Fingerprint(halfWhite(128, 128))
	require.NoError(t, err)

	proc, _ := newTestProcessor(t, 3)
	proc.Index().Seed(map[string]struct{}{hash.String(): {}}, zap.NewNop())

	records, err := proc.ProcessBatch(context.Background(), []source.Candidate{
		{URL: srv.URL + "/again.png", Source: "pexels"},
	})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestProcessBatch_KnownURLSkippedWithoutFetch(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write(pngBytes(t, halfWhite(128, 128)))
	}))
	defer srv.Close()

	url := srv.URL + "/seen.png"
	proc, _ := newTestProcessor(t, 3)
	proc.MarkKnown(map[string]struct{}{url: {}})

	records, err := proc.ProcessBatch(context.Background(), []source.Candidate{{URL: url, Source: "pexels"}})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, int32(0), hits.Load())
}

func TestProcessBatch_DownloadConcurrencyBound(t *testing.T) {
	t.Parallel()

	const limit = 3
	var inFlight, peak atomic.Int32
	img := pngBytes(t, halfWhite(128, 128))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cur := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			old := peak.Load()
			if cur <= old || peak.CompareAndSwap(old, cur) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		_, _ = w.Write(img)
	}))
	defer srv.Close()

	proc, _ := newTestProcessor(t, limit)
	candidates := make([]source.Candidate, 12)
	for i := range candidates {
		candidates[i] = source.Candidate{
			URL:    srv.URL + "/img-" + string(rune('a'+i)) + ".png",
			Source: "website",
		}
	}

	_, err := proc.ProcessBatch(context.Background(), candidates)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(limit))
}

func TestProcessBatch_FailedURLCachedAndNotRetried(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	url := srv.URL + "/missing.png"
	proc, _ := newTestProcessor(t, 3)

	records, err := proc.ProcessBatch(context.Background(), []source.Candidate{{URL: url, Source: "pexels"}})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.True(t, proc.FailedURLs().Contains(url))

	// Second batch with the same URL does not touch the server again.
	_, err = proc.ProcessBatch(context.Background(), []source.Candidate{{URL: url, Source: "pexels"}})
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())
}

func TestProcessBatch_OversizedRejected(t *testing.T) {
	t.Parallel()

	big := pngBytes(t, halfWhite(256, 256))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(big)
	}))
	defer srv.Close()

	proc, _ := newTestProcessor(t, 3)
	proc.cfg.MaxFileSize = 128

	url := srv.URL + "/huge.png"
	records, err := proc.ProcessBatch(context.Background(), []source.Candidate{{URL: url, Source: "website"}})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.True(t, proc.FailedURLs().Contains(url))
}

func TestProcessBatch_TooSmallNotCachedAsFailed(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngBytes(t, halfWhite(16, 16)))
	}))
	defer srv.Close()

	url := srv.URL + "/tiny.png"
	proc, _ := newTestProcessor(t, 3)

	records, err := proc.ProcessBatch(context.Background(), []source.Candidate{{URL: url, Source: "website"}})
	require.NoError(t, err)
	assert.Empty(t, records)
	// The fetch succeeded; only the validation failed, so the URL stays retryable.
	assert.False(t, proc.FailedURLs().Contains(url))
}

func TestValidateImage_FormatAllowlist(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, gif.Encode(&buf, halfWhite(128, 128), nil))

	_, _, err := validateImage(buf.Bytes(), 64, 64, []string{"jpg", "png"})
	require.ErrorIs(t, err, errFormatNotAllowed)

	_, ext, err := validateImage(buf.Bytes(), 64, 64, []string{"gif"})
	require.NoError(t, err)
	assert.Equal(t, "gif", ext)
}

func TestValidateImage_RejectsGarbage(t *testing.T) {
	t.Parallel()

	_, _, err := validateImage([]byte("definitely not an image"), 1, 1, []string{"png"})
	require.Error(t, err)
}

func TestGenerateFilename(t *testing.T) {
	t.Parallel()

	name := generateFilename("my source!", "https://example.com/cat.jpg", "jpg")
	assert.True(t, strings.HasPrefix(name, "my_source_"), name)
	assert.True(t, strings.HasSuffix(name, ".jpg"), name)
	assert.NotContains(t, name, "!")

	// Same URL always contributes the same hash fragment.
	a := generateFilename("website", "https://example.com/x.png", "png")
	b := generateFilename("website", "https://example.com/x.png", "png")
	assert.Equal(t, a[strings.LastIndex(a, "_"):], b[strings.LastIndex(b, "_"):])
}
