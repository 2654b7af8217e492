// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	candidatesTotal   *prometheus.CounterVec
	pagesCrawledTotal *prometheus.CounterVec
	imagesAccepted    *prometheus.CounterVec
	imagesRejected    *prometheus.CounterVec
	bytesDownloaded   *prometheus.CounterVec
	downloadsInFlight prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus collectors. It is safe to call multiple
// times; helpers below are no-ops until it has been called.
func Init() {
	once.Do(func() {
		candidatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boxhunt_candidates_total",
				Help: "Total image candidates discovered, labeled by source.",
			},
			[]string{"source"},
		)

		pagesCrawledTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boxhunt_pages_crawled_total",
				Help: "Total pages fetched by the website crawler, labeled by host.",
			},
			[]string{"host"},
		)

		imagesAccepted = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boxhunt_images_accepted_total",
				Help: "Total images accepted into the collection, labeled by source.",
			},
			[]string{"source"},
		)

		imagesRejected = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boxhunt_images_rejected_total",
				Help: "Total images rejected by the pipeline, labeled by reason.",
			},
			[]string{"reason"},
		)

		bytesDownloaded = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "boxhunt_download_bytes_total",
				Help: "Total image bytes downloaded, labeled by source.",
			},
			[]string{"source"},
		)

		downloadsInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "boxhunt_downloads_in_flight",
				Help: "Number of image downloads currently in flight.",
			},
		)
	})
}

// CandidatesFound records candidates discovered by a source.
func CandidatesFound(source string, n int) {
	if candidatesTotal != nil && n > 0 {
		candidatesTotal.WithLabelValues(source).Add(float64(n))
	}
}

// PageCrawled records one fetched page.
func PageCrawled(host string) {
	if pagesCrawledTotal != nil {
		if host == "" {
			host = "unknown"
		}
		pagesCrawledTotal.WithLabelValues(host).Inc()
	}
}

// ImageAccepted records one accepted image and its byte size.
func ImageAccepted(source string, bytes int64) {
	if imagesAccepted != nil {
		imagesAccepted.WithLabelValues(source).Inc()
	}
	if bytesDownloaded != nil && bytes > 0 {
		bytesDownloaded.WithLabelValues(source).Add(float64(bytes))
	}
}

// ImageRejected records one rejected image by reason
// (download, oversized, invalid, too_small, duplicate, persist).
func ImageRejected(reason string) {
	if imagesRejected != nil {
		imagesRejected.WithLabelValues(reason).Inc()
	}
}

// DownloadStarted marks one download in flight.
func DownloadStarted() {
	if downloadsInFlight != nil {
		downloadsInFlight.Inc()
	}
}

// DownloadFinished marks one download complete.
func DownloadFinished() {
	if downloadsInFlight != nil {
		downloadsInFlight.Dec()
	}
}
