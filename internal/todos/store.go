package todos

import (
	"context"
	"sort"
	"sync"
	"time"

	"todo-backend/internal/ranking"
)

// Store is the durable record of todo items. Implementations report a
// missing item as ErrNotFound; any other error is treated as a store failure.
type Store interface {
	List(ctx context.Context) ([]Item, error)
	Get(ctx context.Context, id string) (Item, error)
	Insert(ctx context.Context, item Item) error
	Replace(ctx context.Context, item Item) error
	Delete(ctx context.Context, id string) (Item, error)

	// OrderBounds returns the order extremes over every item except excludeID.
	OrderBounds(ctx context.Context, excludeID string) (ranking.Bounds, error)

	// SetOrders applies all ranks as one batch. If any id is missing nothing
	// is written and ErrNotFound is returned.
	SetOrders(ctx context.Context, ranks []ranking.Rank, updatedAt time.Time) error
}

func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return ranking.Less(items[i].rankKey(), items[j].rankKey())
	})
}

// MemoryStore keeps items in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Item
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Item)}
}

func (m *MemoryStore) List(_ context.Context) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	sortItems(out)
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return it, nil
}

func (m *MemoryStore) Insert(_ context.Context, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[item.ID] = item
	return nil
}

func (m *MemoryStore) Replace(_ context.Context, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[item.ID]; !ok {
		return ErrNotFound
	}
	m.items[item.ID] = item
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	it, ok := m.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	delete(m.items, id)
	return it, nil
}

func (m *MemoryStore) OrderBounds(_ context.Context, excludeID string) (ranking.Bounds, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	b := ranking.NoItems
	for id, it := range m.items {
		if id == excludeID {
			continue
		}
		b = b.Observe(it.Order)
	}
	return b, nil
}

func (m *MemoryStore) SetOrders(_ context.Context, ranks []ranking.Rank, updatedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range ranks {
		if _, ok := m.items[r.ID]; !ok {
			return ErrNotFound
		}
	}
	for _, r := range ranks {
		it := m.items[r.ID]
		it.Order = r.Order
		it.UpdatedAt = updatedAt
		m.items[r.ID] = it
	}
	return nil
}
