package storage

import (
	"sync"

	"github.com/example/courier-booking/internal/models"
)

// OrderStore defines persistence for submitted orders. The gateway records
// every placed order so the history and tracking screens have a local
// source even when the platform API is unreachable.
type OrderStore interface {
	SaveOrder(o *models.Order) error
	UpdateStatus(orderID, status string) error
	ListByUser(userID string) ([]*models.Order, error)
}

type MemoryStore struct {
	mu     sync.RWMutex
	orders map[string]*models.Order
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{orders: make(map[string]*models.Order)}
}

func (m *MemoryStore) SaveOrder(o *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

func (m *MemoryStore) UpdateStatus(orderID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o, ok := m.orders[orderID]; ok {
		o.Status = status
	}
	return nil
}

func (m *MemoryStore) ListByUser(userID string) ([]*models.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Order, 0)
	for _, o := range m.orders {
		if o.UserID == userID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MemoryStore) Get(id string) (*models.Order, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, false
	}
	cp := *o
	return &cp, true
}
