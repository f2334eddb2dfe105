package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"food-marketplace/internal/domain"
)

// MemoryOrderRepository keeps orders in a map guarded by a single mutex. The
// conditional writes check status and version under the lock, so it gives the
// same guarantees as the Postgres repository inside one process.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
	seq    int64
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]*domain.Order)}
}

func (r *MemoryOrderRepository) NextOrderNumber(_ context.Context, at time.Time) (string, error) {
	r.mu.Lock()
	r.seq++
	n := r.seq
	r.mu.Unlock()
	return formatOrderNumber(at, n), nil
}

func (r *MemoryOrderRepository) Create(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return ErrConflict
	}
	for _, existing := range r.orders {
		if existing.Number == o.Number {
			return ErrConflict
		}
	}
	r.orders[o.ID] = o.Clone()
	return nil
}

func (r *MemoryOrderRepository) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.NotFound("order %s", id)
	}
	return o.Clone(), nil
}

func (r *MemoryOrderRepository) UpdateStatus(_ context.Context, o *domain.Order, expected domain.OrderStatus, expectedVersion int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[o.ID]
	if !ok {
		return domain.NotFound("order %s", o.ID)
	}
	if cur.Status != expected || cur.Version != expectedVersion {
		return ErrConflict
	}
	r.orders[o.ID] = o.Clone()
	return nil
}

func (r *MemoryOrderRepository) AssignPartner(_ context.Context, id, partnerID string, at time.Time) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[id]
	if !ok {
		return nil, domain.NotFound("order %s", id)
	}
	if cur.Status != domain.StatusHandedToDelivery || cur.Assigned() {
		return nil, ErrConflict
	}
	p := partnerID
	cur.DeliveryPartnerID = &p
	cur.UpdatedAt = at
	cur.Version++
	return cur.Clone(), nil
}

func (r *MemoryOrderRepository) ListAvailable(_ context.Context, limit int) ([]*domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}
	r.mu.RLock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.Status == domain.StatusHandedToDelivery && !o.Assigned() {
			out = append(out, o.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryOrderRepository) ListForActor(_ context.Context, actor domain.Actor, limit int, cursor string) ([]*domain.Order, string, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.RLock()
	var after *domain.Order
	if cursor != "" {
		c, ok := r.orders[cursor]
		if !ok {
			r.mu.RUnlock()
			return nil, "", nil
		}
		after = c.Clone()
	}
	var out []*domain.Order
	for _, o := range r.orders {
		if visibleInList(actor, o) && (after == nil || newerFirst(after, o)) {
			out = append(out, o.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return newerFirst(out[i], out[j]) })
	next := ""
	if len(out) > limit {
		out = out[:limit]
	}
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

// newerFirst orders by (created_at, id) descending, the same key the Postgres
// repository pages on.
func newerFirst(a, b *domain.Order) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func visibleInList(actor domain.Actor, o *domain.Order) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleCustomer:
		return o.CustomerID == actor.ID
	case domain.RoleVendor:
		return o.VendorID == actor.ID
	case domain.RoleDelivery:
		return o.PartnerID() == actor.ID
	}
	return false
}
