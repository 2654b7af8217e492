// Package store implements the append-only metadata store backing
// deduplication resume, statistics, and orphan cleanup.
package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Record is the durable unit written once per accepted image and never
// mutated afterwards. ID is assigned by the store at write time.
type Record struct {
	ID             int64     `json:"id"`
	Filename       string    `json:"filename"`
	URL            string    `json:"url"`
	Source         string    `json:"source"`
	Title          string    `json:"title"`
	Width          int       `json:"width"`
	Height         int       `json:"height"`
	FileSize       int64     `json:"file_size"`
	PerceptualHash string    `json:"perceptual_hash"`
	DownloadTime   time.Time `json:"download_time"`
	CreatedAt      time.Time `json:"created_at"`
	Status         string    `json:"status"`
}

// StatusDownloaded is the status every record carries at creation.
const StatusDownloaded = "downloaded"

var header = []string{
	"id", "filename", "url", "source", "title",
	"width", "height", "file_size", "perceptual_hash",
	"download_time", "created_at", "status",
}

// Store is a per-collection, single-writer, append-only CSV store.
type Store struct {
	path      string
	imagesDir string
	nextID    int64
	logger    *zap.Logger
}

// Open prepares the store at path, creating the file with its schema header
// and the images directory when absent, and determines the next record ID
// from existing rows.
func Open(path, imagesDir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, dir := range []string{filepath.Dir(path), imagesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	s := &Store{path: path, imagesDir: imagesDir, nextID: 1, logger: logger}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.writeHeader(); err != nil {
			return nil, err
		}
		logger.Info("created metadata store", zap.String("path", path))
		return s, nil
	}

	records, err := s.Records()
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.ID >= s.nextID {
			s.nextID = r.ID + 1
		}
	}
	return s, nil
}

// Path returns the store's file path.
func (s *Store) Path() string { return s.path }

// ImagesDir returns the images directory paired with this store.
func (s *Store) ImagesDir() string { return s.imagesDir }

func (s *Store) writeHeader() error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush header: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

// Save assigns monotonically increasing IDs to the given records, stamps
// CreatedAt and Status, and appends them all in one write.
func (s *Store) Save(records []Record) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open store for append: %w", err)
	}
	w := csv.NewWriter(f)
	for i := range records {
		records[i].ID = s.nextID
		s.nextID++
		records[i].CreatedAt = now
		if records[i].Status == "" {
			records[i].Status = StatusDownloaded
		}
		if err := w.Write(toRow(records[i])); err != nil {
			_ = f.Close()
			return fmt.Errorf("write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush records: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	s.logger.Info("saved metadata records", zap.Int("count", len(records)))
	return nil
}

// Records reads every persisted record. Malformed rows are logged and skipped
// so one bad row cannot poison resume.
func (s *Store) Records() ([]Record, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			s.logger.Debug("close store file", zap.Error(cerr))
		}
	}()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var records []Record
	first := true
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read store: %w", err)
		}
		if first {
			first = false
			continue
		}
		rec, err := fromRow(row)
		if err != nil {
			s.logger.Warn("skipping malformed store row", zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// LoadHashes returns every persisted perceptual hash; called at startup to
// seed the dedup index so a resumed run recognizes earlier acceptances.
func (s *Store) LoadHashes() (map[string]struct{}, error) {
	records, err := s.Records()
	if err != nil {
		return nil, err
	}
	hashes := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.PerceptualHash != "" {
			hashes[r.PerceptualHash] = struct{}{}
		}
	}
	return hashes, nil
}

// LoadURLs returns every persisted source URL for URL-based resume.
func (s *Store) LoadURLs() (map[string]struct{}, error) {
	records, err := s.Records()
	if err != nil {
		return nil, err
	}
	urls := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.URL != "" {
			urls[r.URL] = struct{}{}
		}
	}
	return urls, nil
}

// Stats aggregates collection-level counts.
type Stats struct {
	TotalImages int            `json:"total_images"`
	TotalBytes  int64          `json:"total_bytes"`
	Sources     map[string]int `json:"sources"`
	Formats     map[string]int `json:"formats"`
	AvgWidth    int            `json:"avg_width"`
	AvgHeight   int            `json:"avg_height"`
}

// Statistics computes aggregate counts over the full store.
func (s *Store) Statistics() (Stats, error) {
	stats := Stats{Sources: make(map[string]int), Formats: make(map[string]int)}

	records, err := s.Records()
	if err != nil {
		return stats, err
	}
	if len(records) == 0 {
		return stats, nil
	}

	var widthSum, heightSum int64
	for _, r := range records {
		stats.TotalImages++
		stats.TotalBytes += r.FileSize
		if r.Source != "" {
			stats.Sources[r.Source]++
		}
		if ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(r.Filename), ".")); ext != "" {
			stats.Formats[ext]++
		}
		widthSum += int64(r.Width)
		heightSum += int64(r.Height)
	}
	stats.AvgWidth = int(widthSum / int64(len(records)))
	stats.AvgHeight = int(heightSum / int64(len(records)))
	return stats, nil
}

// CleanupOrphans deletes files in the images directory that no record
// references and returns the count removed. A filename appearing in any
// record is never deleted.
func (s *Store) CleanupOrphans() (int, error) {
	records, err := s.Records()
	if err != nil {
		return 0, err
	}
	referenced := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.Filename != "" {
			referenced[r.Filename] = struct{}{}
		}
	}

	entries, err := os.ReadDir(s.imagesDir)
	if err != nil {
		return 0, fmt.Errorf("read images dir: %w", err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		if _, ok := referenced[entry.Name()]; ok {
			continue
		}
		if err := os.Remove(filepath.Join(s.imagesDir, entry.Name())); err != nil {
			s.logger.Error("remove orphan failed", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		removed++
		s.logger.Debug("removed orphan file", zap.String("file", entry.Name()))
	}
	if removed > 0 {
		s.logger.Info("cleaned up orphan files", zap.Int("removed", removed))
	}
	return removed, nil
}

func toRow(r Record) []string {
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.Filename,
		r.URL,
		r.Source,
		r.Title,
		strconv.Itoa(r.Width),
		strconv.Itoa(r.Height),
		strconv.FormatInt(r.FileSize, 10),
		r.PerceptualHash,
		r.DownloadTime.UTC().Format(time.RFC3339),
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.Status,
	}
}

func fromRow(row []string) (Record, error) {
	if len(row) != len(header) {
		return Record{}, fmt.Errorf("expected %d fields, got %d", len(header), len(row))
	}
	id, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return Record{}, fmt.Errorf("parse id %q: %w", row[0], err)
	}
	width, _ := strconv.Atoi(row[5])
	height, _ := strconv.Atoi(row[6])
	fileSize, _ := strconv.ParseInt(row[7], 10, 64)
	downloadTime, _ := time.Parse(time.RFC3339, row[9])
	createdAt, _ := time.Parse(time.RFC3339, row[10])
	return Record{
		ID:             id,
		Filename:       row[1],
		URL:            row[2],
		Source:         row[3],
		Title:          row[4],
		Width:          width,
		Height:         height,
		FileSize:       fileSize,
		PerceptualHash: row[8],
		DownloadTime:   downloadTime,
		CreatedAt:      createdAt,
		Status:         row[11],
	}, nil
}
