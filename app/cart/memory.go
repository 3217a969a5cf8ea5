package cart

import (
	"context"
	"errors"
	"sync"
)

// ErrInvalidQuantity is returned by Add for a quantity below one.
var ErrInvalidQuantity = errors.New("cart: quantity must be at least 1")

// MemoryStore keeps carts in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	carts map[Owner]map[string]Item
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{carts: map[Owner]map[string]Item{}}
}

func (m *MemoryStore) Items(_ context.Context, owner Owner) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Item, 0, len(m.carts[owner]))
	for _, it := range m.carts[owner] {
		out = append(out, it)
	}
	sortItems(out)
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, owner Owner, key string) (Item, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.carts[owner][key]
	return it, ok, nil
}

func (m *MemoryStore) Add(_ context.Context, owner Owner, item Item) (Item, error) {
	if item.Quantity < 1 {
		return Item{}, ErrInvalidQuantity
	}
	item = normalize(item)

	m.mu.Lock()
	defer m.mu.Unlock()
	lines := m.carts[owner]
	if lines == nil {
		lines = map[string]Item{}
		m.carts[owner] = lines
	}
	if existing, ok := lines[item.Key]; ok {
		item.Quantity += existing.Quantity
		item.AddedAt = existing.AddedAt
	}
	lines[item.Key] = item
	return item, nil
}

func (m *MemoryStore) SetQuantity(_ context.Context, owner Owner, key string, qty int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.carts[owner][key]
	if !ok {
		return false, nil
	}
	if qty <= 0 {
		delete(m.carts[owner], key)
		return true, nil
	}
	it.Quantity = qty
	m.carts[owner][key] = it
	return true, nil
}

func (m *MemoryStore) Remove(_ context.Context, owner Owner, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts[owner], key)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context, owner Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, owner)
	return nil
}
