package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/James-Hooson/Bonsai-Biz/internal/order/domain"
)

// Memory is a process-local Store used for STORE=memory and tests.
type Memory struct {
	mu       sync.RWMutex
	products map[domain.ProductID]domain.Product
	orders   map[domain.OrderID]domain.Order
	byKey    map[string]domain.OrderID
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		products: make(map[domain.ProductID]domain.Product),
		orders:   make(map[domain.OrderID]domain.Order),
		byKey:    make(map[string]domain.OrderID),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) GetProduct(_ context.Context, id domain.ProductID) (domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

func (m *Memory) ListProducts(context.Context) ([]domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *Memory) CreateProduct(_ context.Context, p domain.Product) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == "" {
		p.ID = domain.ProductID(uuid.NewString())
	}
	if _, exists := m.products[p.ID]; exists {
		return domain.Product{}, domain.ErrProductExists
	}
	now := m.now()
	p.CreatedAt, p.UpdatedAt = now, now
	m.products[p.ID] = p
	return p, nil
}

func (m *Memory) UpdateProduct(_ context.Context, p domain.Product) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.products[p.ID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	p.CreatedAt = cur.CreatedAt
	p.UpdatedAt = m.now()
	m.products[p.ID] = p
	return p, nil
}

func (m *Memory) DeleteProduct(_ context.Context, id domain.ProductID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return domain.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *Memory) CreateOrder(_ context.Context, in NewOrder) (domain.Order, error) {
	if len(in.Items) == 0 {
		return domain.Order{}, errors.New("order must have at least one item")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if in.IdempotencyKey != "" {
		if _, taken := m.byKey[in.IdempotencyKey]; taken {
			return domain.Order{}, domain.ErrDuplicateIdempotencyKey
		}
	}
	now := m.now()
	o := domain.Order{
		ID:             domain.OrderID(uuid.NewString()),
		Status:         domain.OrderStatusPending,
		CustomerEmail:  in.CustomerEmail,
		Items:          append([]domain.OrderItem(nil), in.Items...),
		IdempotencyKey: in.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.orders[o.ID] = o
	if in.IdempotencyKey != "" {
		m.byKey[in.IdempotencyKey] = o.ID
	}
	return cloneOrder(o), nil
}

func (m *Memory) GetOrder(_ context.Context, id domain.OrderID) (domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (m *Memory) GetOrderByIdempotencyKey(_ context.Context, key string) (domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byKey[key]
	if !ok || key == "" {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(m.orders[id]), nil
}

func (m *Memory) AttachSession(_ context.Context, id domain.OrderID, sessionID, sessionURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.PaymentSessionID = sessionID
	o.PaymentSessionURL = sessionURL
	o.UpdatedAt = m.now()
	m.orders[id] = o
	return nil
}

func (m *Memory) CompleteOrder(_ context.Context, id domain.OrderID, c Completion) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return false, domain.ErrOrderNotFound
	}
	if o.Status != domain.OrderStatusPending {
		return false, nil
	}
	o.Status = domain.OrderStatusCompleted
	o.PaymentTransactionID = c.TransactionID
	if o.CustomerEmail == "" {
		o.CustomerEmail = c.CustomerEmail
	}
	o.UpdatedAt = m.now()
	m.orders[id] = o
	return true, nil
}

func (m *Memory) ListAbandoned(_ context.Context, olderThan time.Time) ([]domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.Order
	for _, o := range m.orders {
		if o.Abandoned() && o.CreatedAt.Before(olderThan) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func cloneOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}
