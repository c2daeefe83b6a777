package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/probevisor/internal/domain"
	"github.com/hamed0406/probevisor/internal/repo"
)

// Store is an in-process ResultStore and AlertStore. Nothing survives a restart.
type Store struct {
	mu     sync.RWMutex
	latest map[string]domain.CheckResult
	alerts map[string]repo.AlertRecord
}

var (
	_ repo.ResultStore = (*Store)(nil)
	_ repo.AlertStore  = (*Store)(nil)
)

func New() *Store {
	return &Store{
		latest: make(map[string]domain.CheckResult),
		alerts: make(map[string]repo.AlertRecord),
	}
}

// Append records r unless a newer result for the same service is already stored.
func (m *Store) Append(ctx context.Context, r *domain.CheckResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.latest[r.Service]; ok && cur.CheckedAt.After(r.CheckedAt) {
		return nil
	}
	m.latest[r.Service] = *r
	return nil
}

func (m *Store) Latest(ctx context.Context) ([]domain.CheckResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.CheckResult, 0, len(m.latest))
	for _, r := range m.latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Service < out[j].Service })
	return out, nil
}

func (m *Store) Get(ctx context.Context, service string) (*repo.AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.alerts[service]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Store) Set(ctx context.Context, service string, lastState bool, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := repo.AlertRecord{Service: service, LastState: lastState}
	if prev, ok := m.alerts[service]; ok {
		rec.LastSentAt = prev.LastSentAt
	}
	if !sentAt.IsZero() {
		ts := sentAt
		rec.LastSentAt = &ts
	}
	m.alerts[service] = rec
	return nil
}
