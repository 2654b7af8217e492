package pipeline

import (
	"sync"

	"go.uber.org/zap"
)

// Index is the in-memory authority for "is this image a near-duplicate". It
// holds every accepted hash and admits a new one only if no existing hash is
// within the Hamming threshold. Scan and append happen under one lock hold,
// so two near-duplicates racing through the same batch cannot both be
// admitted.
type Index struct {
	mu        sync.Mutex
	threshold int
	hashes    []Hash
}

// NewIndex builds an empty Index with the given Hamming threshold.
func NewIndex(threshold int) *Index {
	return &Index{threshold: threshold}
}

// Seed loads persisted hex hashes, typically from the metadata store at
// startup. Unparseable entries are logged and skipped.
func (ix *Index) Seed(hashes map[string]struct{}, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for s := range hashes {
		h, err := ParseHash(s)
		if err != nil {
			logger.Warn("skipping unparseable stored hash", zap.String("hash", s))
			continue
		}
		ix.hashes = append(ix.hashes, h)
	}
}

// Admit returns true and records h if it is not a near-duplicate of any
// admitted hash; it returns false otherwise. The scan is linear, which is
// fine at one collection's scale.
func (ix *Index) Admit(h Hash) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	for _, existing := range ix.hashes {
		if h.Distance(existing) <= ix.threshold {
			return false
		}
	}
	ix.hashes = append(ix.hashes, h)
	return true
}

// Len returns the number of admitted hashes.
func (ix *Index) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.hashes)
}

// URLSet is a concurrency-safe string set used for the per-run failed-URL
// cache and for URLs already persisted by earlier runs.
type URLSet struct {
	mu  sync.Mutex
	set map[string]struct{}
}

// NewURLSet builds an empty URLSet.
func NewURLSet() *URLSet {
	return &URLSet{set: make(map[string]struct{})}
}

// Add records a URL.
func (s *URLSet) Add(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set[url] = struct{}{}
}

// AddAll records every URL in urls.
func (s *URLSet) AddAll(urls map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for u := range urls {
		s.set[u] = struct{}{}
	}
}

// Contains reports whether url has been recorded.
func (s *URLSet) Contains(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.set[url]
	return ok
}

// Len returns the set size.
func (s *URLSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.set)
}

// Clear empties the set and returns how many entries were dropped.
func (s *URLSet) Clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.set)
	s.set = make(map[string]struct{})
	return n
}
