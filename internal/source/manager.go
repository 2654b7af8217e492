package source

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrNoClients is returned by Search when the Manager has no sources to query.
var ErrNoClients = errors.New("no source clients configured")

// Manager fans a query out concurrently to every registered Client and merges
// the results. A failing client contributes zero candidates and never aborts
// its siblings.
type Manager struct {
	clients []Client
	logger  *zap.Logger
}

// NewManager builds a Manager over the given clients, preserving registration
// order for result concatenation.
func NewManager(logger *zap.Logger, clients ...Client) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{clients: clients, logger: logger}
}

// Names returns the registered client names in registration order.
func (m *Manager) Names() []string {
	names := make([]string, 0, len(m.clients))
	for _, c := range m.clients {
		names = append(names, c.Name())
	}
	return names
}

// Clients returns the registered clients in registration order.
func (m *Manager) Clients() []Client {
	return m.clients
}

// Search queries every client concurrently with the same query and per-source
// limit. Results are concatenated in registration order once all clients have
// finished. Client errors are logged and treated as empty results.
func (m *Manager) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if len(m.clients) == 0 {
		return nil, ErrNoClients
	}

	perClient := make([][]Candidate, len(m.clients))
	var wg sync.WaitGroup
	for i, client := range m.clients {
		wg.Add(1)
		go func(i int, client Client) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("source client panicked",
						zap.String("source", client.Name()),
						zap.Any("panic", r),
					)
				}
			}()
			results, err := client.Search(ctx, query, limit)
			if err != nil {
				m.logger.Error("source search failed",
					zap.String("source", client.Name()),
					zap.String("query", query),
					zap.Error(err),
				)
				return
			}
			perClient[i] = results
		}(i, client)
	}
	wg.Wait()

	var merged []Candidate
	for _, results := range perClient {
		merged = append(merged, results...)
	}
	m.logger.Info("source search complete",
		zap.String("query", query),
		zap.Int("candidates", len(merged)),
	)
	return merged, nil
}
