package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hamed0406/keepalive/internal/domain"
)

type Store struct {
	mu     sync.RWMutex
	latest map[string]domain.Outcome
}

func New() *Store {
	return &Store{latest: make(map[string]domain.Outcome)}
}

func (m *Store) Record(ctx context.Context, o domain.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.latest[o.TargetID]; ok && cur.CheckedAt.After(o.CheckedAt) {
		return nil
	}
	m.latest[o.TargetID] = o
	return nil
}

// Latest returns one outcome per target, ordered by target ID.
func (m *Store) Latest(ctx context.Context) ([]domain.Outcome, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Outcome, 0, len(m.latest))
	for _, o := range m.latest {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TargetID < out[j].TargetID })
	return out, nil
}
