package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// Export serializes the full store to outPath in the given format ("csv" or
// "json"). An empty outPath picks a timestamped file next to the store. The
// store itself is never modified.
func (s *Store) Export(format, outPath string) (string, error) {
	switch format {
	case "csv", "json":
	default:
		return "", fmt.Errorf("unsupported export format %q", format)
	}

	if outPath == "" {
		stamp := time.Now().Format("20060102_150405")
		outPath = filepath.Join(filepath.Dir(s.path), fmt.Sprintf("metadata_export_%s.%s", stamp, format))
	}

	switch format {
	case "json":
		records, err := s.Records()
		if err != nil {
			return "", err
		}
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal records: %w", err)
		}
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			return "", fmt.Errorf("write export: %w", err)
		}
	case "csv":
		if err := s.copyFile(outPath); err != nil {
			return "", err
		}
	}

	s.logger.Info("exported metadata", zap.String("format", format), zap.String("path", outPath))
	return outPath, nil
}

func (s *Store) copyFile(outPath string) error {
	src, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			s.logger.Debug("close store file", zap.Error(cerr))
		}
	}()

	dst, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("copy store: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close export: %w", err)
	}
	return nil
}
