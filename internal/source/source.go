// Package source defines the candidate model and the pluggable image sources
// that produce candidates for the processing pipeline.
package source

import "context"

// Candidate is a discovered image reference with provenance metadata. It has
// no identity beyond its URL until the pipeline processes it.
type Candidate struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url"`
	Title        string `json:"title"`
	Source       string `json:"source"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

// Client is a pluggable image source. Implementations must clamp limit to
// whatever their provider supports and must not panic across this boundary;
// recoverable provider failures are returned as errors for the Manager to
// isolate.
type Client interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Candidate, error)
}
