package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var errOversized = errors.New("image exceeds max file size")

// download fetches one image URL with the configured user agent and size cap.
// The declared Content-Length is checked before the body is read, and the
// actual byte count is re-checked afterwards because servers lie.
func (p *Processor) download(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if resp.ContentLength > p.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: declared %d bytes", errOversized, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, p.cfg.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(data)) > p.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes read", errOversized, len(data))
	}

	return data, nil
}
