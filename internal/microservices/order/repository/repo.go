package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"food-marketplace/internal/domain"
)

// ErrConflict means a conditional write found the row in a different state
// than the caller read. The service decides what that means for the command.
var ErrConflict = errors.New("write precondition failed")

type OrderRepositoryInterface interface {
	// NextOrderNumber hands out a unique human-readable order number.
	NextOrderNumber(ctx context.Context, at time.Time) (string, error)
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	// UpdateStatus persists o's status, timestamps and last history entry
	// only if the stored row still has expected status and version.
	UpdateStatus(ctx context.Context, o *domain.Order, expected domain.OrderStatus, expectedVersion int) error
	// AssignPartner sets the delivery partner only if the order is handed to
	// delivery and nobody holds it yet. It returns the updated order.
	AssignPartner(ctx context.Context, id, partnerID string, at time.Time) (*domain.Order, error)
	// ListAvailable returns unassigned handed-off orders, oldest first.
	ListAvailable(ctx context.Context, limit int) ([]*domain.Order, error)
	// ListForActor pages through the orders the actor takes part in, newest
	// first. cursor is the last order ID of the previous page; a cursor that
	// names no order yields an empty page.
	ListForActor(ctx context.Context, actor domain.Actor, limit int, cursor string) ([]*domain.Order, string, error)
}

type CatalogRepositoryInterface interface {
	GetVendor(ctx context.Context, id string) (*domain.Vendor, error)
	GetMenuItems(ctx context.Context, vendorID string, ids []string) (map[string]*domain.MenuItem, error)
}

type Repository struct {
	OrderRepo   OrderRepositoryInterface
	CatalogRepo CatalogRepositoryInterface
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{
		OrderRepo:   NewOrderRepository(pool),
		CatalogRepo: NewCatalogRepository(pool),
	}
}

func NewInMemory(catalog *MemoryCatalog) *Repository {
	return &Repository{
		OrderRepo:   NewMemoryOrderRepository(),
		CatalogRepo: catalog,
	}
}
