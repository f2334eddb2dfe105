package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"food-marketplace/internal/domain"
)

type CatalogRepository struct {
	db *pgxpool.Pool
}

func NewCatalogRepository(db *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) GetVendor(ctx context.Context, id string) (*domain.Vendor, error) {
	var (
		v            domain.Vendor
		minimum, fee string
		prepMinutes  int
	)
	err := r.db.QueryRow(ctx, `
		SELECT id, name, is_open, minimum_order::text, prep_minutes, delivery_fee::text
		FROM vendors WHERE id = $1
	`, id).Scan(&v.ID, &v.Name, &v.Open, &minimum, &prepMinutes, &fee)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("vendor %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get vendor: %w", err)
	}
	if v.MinimumOrder, err = decimal.NewFromString(minimum); err != nil {
		return nil, fmt.Errorf("decode minimum order: %w", err)
	}
	if v.DeliveryFee, err = decimal.NewFromString(fee); err != nil {
		return nil, fmt.Errorf("decode delivery fee: %w", err)
	}
	v.PrepTime = time.Duration(prepMinutes) * time.Minute
	return &v, nil
}

// GetMenuItems returns the requested items that belong to vendorID. Unknown
// IDs are simply missing from the result.
func (r *CatalogRepository) GetMenuItems(ctx context.Context, vendorID string, ids []string) (map[string]*domain.MenuItem, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, vendor_id, name, price::text, available
		FROM menu_items WHERE vendor_id = $1 AND id = ANY($2::text[])
	`, vendorID, ids)
	if err != nil {
		return nil, fmt.Errorf("get menu items: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*domain.MenuItem, len(ids))
	for rows.Next() {
		var (
			m     domain.MenuItem
			price string
		)
		if err := rows.Scan(&m.ID, &m.VendorID, &m.Name, &price, &m.Available); err != nil {
			return nil, fmt.Errorf("scan menu item: %w", err)
		}
		if m.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("decode price of %s: %w", m.ID, err)
		}
		out[m.ID] = &m
	}
	return out, rows.Err()
}

// MemoryCatalog is the catalog used with the in-memory store and in tests.
type MemoryCatalog struct {
	mu      sync.RWMutex
	vendors map[string]domain.Vendor
	items   map[string]domain.MenuItem
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		vendors: make(map[string]domain.Vendor),
		items:   make(map[string]domain.MenuItem),
	}
}

func (c *MemoryCatalog) AddVendor(v domain.Vendor) {
	c.mu.Lock()
	c.vendors[v.ID] = v
	c.mu.Unlock()
}

func (c *MemoryCatalog) AddMenuItem(m domain.MenuItem) {
	c.mu.Lock()
	c.items[m.ID] = m
	c.mu.Unlock()
}

func (c *MemoryCatalog) SetVendorOpen(id string, open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.vendors[id]; ok {
		v.Open = open
		c.vendors[id] = v
	}
}

func (c *MemoryCatalog) GetVendor(_ context.Context, id string) (*domain.Vendor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vendors[id]
	if !ok {
		return nil, domain.NotFound("vendor %s", id)
	}
	return &v, nil
}

func (c *MemoryCatalog) GetMenuItems(_ context.Context, vendorID string, ids []string) (map[string]*domain.MenuItem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]*domain.MenuItem, len(ids))
	for _, id := range ids {
		if m, ok := c.items[id]; ok && m.VendorID == vendorID {
			m := m
			out[id] = &m
		}
	}
	return out, nil
}
