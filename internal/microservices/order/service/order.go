package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"food-marketplace/internal/audit"
	"food-marketplace/internal/common/logger"
	"food-marketplace/internal/common/metrics"
	"food-marketplace/internal/domain"
	"food-marketplace/internal/microservices/order/guard"
	"food-marketplace/internal/microservices/order/repository"
	"food-marketplace/internal/realtime"
)

type OrderServiceInterface interface {
	PlaceOrder(ctx context.Context, actor domain.Actor, req domain.PlaceOrderRequest) (*Result, error)
	UpdateStatus(ctx context.Context, actor domain.Actor, orderID string, requested domain.OrderStatus) (*Result, error)
	AssignDeliveryPartner(ctx context.Context, actor domain.Actor, orderID, partnerID string) (*Result, error)
	GetOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error)
	ListAvailableDeliveries(ctx context.Context, actor domain.Actor, limit int) ([]*domain.Order, error)
	ListOrders(ctx context.Context, actor domain.Actor, limit int, cursor string) ([]*domain.Order, string, error)
	CanFollow(ctx context.Context, actor domain.Actor, orderID string) error
}

// Result is what a successful command produced: the order as committed and
// the events it emitted, already handed to the dispatcher.
type Result struct {
	Order  *domain.Order
	Events []domain.Envelope
}

type Options struct {
	Dispatcher realtime.Dispatcher
	Audit      audit.Logger
	Metrics    *metrics.CommandMetrics
	Logger     *logger.Logger
	TaxRate    decimal.Decimal
	Clock      func() time.Time
}

type OrderService struct {
	orders  repository.OrderRepositoryInterface
	catalog repository.CatalogRepositoryInterface

	dispatcher realtime.Dispatcher
	audit      audit.Logger
	metrics    *metrics.CommandMetrics
	log        *logger.Logger
	taxRate    decimal.Decimal
	now        func() time.Time
}

func NewOrderService(orders repository.OrderRepositoryInterface, catalog repository.CatalogRepositoryInterface, opts Options) *OrderService {
	s := &OrderService{
		orders:     orders,
		catalog:    catalog,
		dispatcher: opts.Dispatcher,
		audit:      opts.Audit,
		metrics:    opts.Metrics,
		log:        opts.Logger,
		taxRate:    opts.TaxRate,
		now:        opts.Clock,
	}
	if s.log == nil {
		s.log = logger.Discard()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

func (s *OrderService) PlaceOrder(ctx context.Context, actor domain.Actor, req domain.PlaceOrderRequest) (res *Result, err error) {
	defer s.observe("place_order", s.now(), &err)

	// role first, so non-customers learn nothing about which vendors exist
	if err := guard.AuthorizePlacer(actor); err != nil {
		return nil, err
	}
	if req.VendorID == "" {
		return nil, domain.NewError(domain.ErrValidation, "", "vendor_id is required")
	}
	vendor, err := s.catalog.GetVendor(ctx, req.VendorID)
	if err != nil {
		return nil, err
	}
	if err := guard.AuthorizePlacement(actor, vendor); err != nil {
		return nil, err
	}
	if err := validatePlacement(req); err != nil {
		return nil, err
	}

	lines, err := s.snapshotItems(ctx, req)
	if err != nil {
		return nil, err
	}
	lines, pricing, err := quote(lines, vendor, s.taxRate)
	if err != nil {
		return nil, err
	}

	now := s.now()
	number, err := s.orders.NextOrderNumber(ctx, now)
	if err != nil {
		return nil, err
	}
	o := &domain.Order{
		ID:                  uuid.NewString(),
		Number:              number,
		CustomerID:          actor.ID,
		VendorID:            vendor.ID,
		Items:               lines,
		Pricing:             pricing,
		Status:              domain.StatusPending,
		History:             []domain.HistoryEntry{{Status: domain.StatusPending, At: now, ActorID: actor.ID, ActorRole: actor.Role}},
		DeliveryAddress:     req.DeliveryAddress,
		PaymentMethod:       req.PaymentMethod,
		CreatedAt:           now,
		UpdatedAt:           now,
		EstimatedCompletion: now.Add(vendor.PrepTime),
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("built an invalid order: %w", err)
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	res = &Result{Order: o, Events: placedEnvelopes(o, now)}
	s.commit("order_placed", res, actor, audit.Record{Command: "place_order", NewStatus: o.Status})
	return res, nil
}

func validatePlacement(req domain.PlaceOrderRequest) error {
	if len(req.Items) == 0 {
		return domain.NewError(domain.ErrValidation, "", "at least one item is required")
	}
	for _, it := range req.Items {
		if it.MenuItemID == "" {
			return domain.NewError(domain.ErrValidation, "", "menu_item_id is required")
		}
		if it.Quantity < 1 {
			return domain.NewError(domain.ErrValidation, "", "invalid quantity %d for item %s", it.Quantity, it.MenuItemID)
		}
	}
	if req.DeliveryAddress.Street == "" || req.DeliveryAddress.City == "" {
		return domain.NewError(domain.ErrValidation, "", "delivery address needs street and city")
	}
	if !req.PaymentMethod.Valid() {
		return domain.NewError(domain.ErrValidation, "", "invalid payment method %q", req.PaymentMethod)
	}
	return nil
}

// snapshotItems copies name and price of every requested item from the
// vendor's menu.
func (s *OrderService) snapshotItems(ctx context.Context, req domain.PlaceOrderRequest) ([]domain.LineItem, error) {
	ids := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		ids = append(ids, it.MenuItemID)
	}
	menu, err := s.catalog.GetMenuItems(ctx, req.VendorID, ids)
	if err != nil {
		return nil, err
	}
	lines := make([]domain.LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		m, ok := menu[it.MenuItemID]
		if !ok {
			return nil, domain.NewError(domain.ErrItemUnavailable, "", "item %s is not on this vendor's menu", it.MenuItemID)
		}
		if !m.Available {
			return nil, domain.NewError(domain.ErrItemUnavailable, "", "item %s is not available", m.Name)
		}
		lines = append(lines, domain.LineItem{
			MenuItemID: m.ID,
			Name:       m.Name,
			UnitPrice:  m.Price,
			Quantity:   it.Quantity,
		})
	}
	return lines, nil
}

func (s *OrderService) UpdateStatus(ctx context.Context, actor domain.Actor, orderID string, requested domain.OrderStatus) (res *Result, err error) {
	defer s.observe("update_status", s.now(), &err)

	if !requested.Valid() {
		return nil, domain.NewError(domain.ErrValidation, "", "unknown status %q", requested)
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := guard.AuthorizeTransition(actor, o, requested); err != nil {
		return nil, err
	}
	if !domain.CanTransition(o.Status, requested) {
		return nil, domain.InvalidTransition(o.Status, requested)
	}

	expected, version := o.Status, o.Version
	now := s.now()
	o.Apply(requested, actor, now)
	if err := s.orders.UpdateStatus(ctx, o, expected, version); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("failed to update order status: %w", err)
		}
		// somebody else moved the order first
		cur, gerr := s.orders.GetByID(ctx, orderID)
		if gerr != nil {
			return nil, gerr
		}
		return nil, domain.NewError(domain.ErrInvalidTransition, "",
			"order %s moved to %s before it could become %s", cur.Number, cur.Status, requested)
	}

	res = &Result{Order: o, Events: transitionEnvelopes(o, actor, now)}
	s.commit("status_updated", res, actor, audit.Record{Command: "update_status", OldStatus: expected, NewStatus: o.Status})
	return res, nil
}

// AssignDeliveryPartner writes the partner once. A delivery partner may leave
// partnerID empty to claim the order for itself.
func (s *OrderService) AssignDeliveryPartner(ctx context.Context, actor domain.Actor, orderID, partnerID string) (res *Result, err error) {
	defer s.observe("assign_partner", s.now(), &err)

	if partnerID == "" && actor.Role == domain.RoleDelivery {
		partnerID = actor.ID
	}
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := guard.AuthorizeAssignment(actor, o, partnerID); err != nil {
		return nil, err
	}

	now := s.now()
	updated, err := s.orders.AssignPartner(ctx, orderID, partnerID, now)
	if err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return nil, fmt.Errorf("failed to assign partner: %w", err)
		}
		cur, gerr := s.orders.GetByID(ctx, orderID)
		if gerr != nil {
			return nil, gerr
		}
		if cur.Assigned() {
			return nil, domain.NewError(domain.ErrAlreadyAssigned, domain.ReasonAlreadyAssigned,
				"order %s already has a delivery partner", cur.Number)
		}
		return nil, domain.NewError(domain.ErrNotReadyForAssignment, domain.ReasonWrongStatus,
			"order %s is %s", cur.Number, cur.Status)
	}

	res = &Result{Order: updated, Events: assignedEnvelopes(updated, now)}
	s.commit("partner_assigned", res, actor, audit.Record{
		Command:   "assign_partner",
		OldStatus: updated.Status,
		NewStatus: updated.Status,
		PartnerID: partnerID,
	})
	return res, nil
}

func (s *OrderService) GetOrder(ctx context.Context, actor domain.Actor, orderID string) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !guard.CanView(actor, o) {
		return nil, domain.NewError(domain.ErrUnauthorized, domain.ReasonOwnershipMismatch, "order %s belongs to someone else", o.Number)
	}
	return o, nil
}

// ListAvailableDeliveries is the unassigned pool, oldest first.
func (s *OrderService) ListAvailableDeliveries(ctx context.Context, actor domain.Actor, limit int) ([]*domain.Order, error) {
	if actor.Role != domain.RoleDelivery && actor.Role != domain.RoleAdmin {
		return nil, domain.NewError(domain.ErrUnauthorized, domain.ReasonRoleMismatch, "only delivery partners can browse the pool")
	}
	return s.orders.ListAvailable(ctx, limit)
}

func (s *OrderService) ListOrders(ctx context.Context, actor domain.Actor, limit int, cursor string) ([]*domain.Order, string, error) {
	if !actor.Role.Valid() || actor.ID == "" {
		return nil, "", domain.NewError(domain.ErrUnauthorized, domain.ReasonRoleMismatch, "unknown actor")
	}
	return s.orders.ListForActor(ctx, actor, limit, cursor)
}

// CanFollow lets the realtime gateway reuse the read rule for order channels.
func (s *OrderService) CanFollow(ctx context.Context, actor domain.Actor, orderID string) error {
	_, err := s.GetOrder(ctx, actor, orderID)
	return err
}

// commit runs the side effects of a command that has been persisted. None of
// them can fail the command.
func (s *OrderService) commit(action string, res *Result, actor domain.Actor, rec audit.Record) {
	o := res.Order
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(res.Events)
	}
	if s.audit != nil {
		rec.Timestamp = o.UpdatedAt
		rec.OrderID = o.ID
		rec.OrderNumber = o.Number
		rec.ActorID = actor.ID
		rec.ActorRole = actor.Role
		s.audit.Log(rec)
	}
	s.log.Info(action, map[string]any{
		"order_id":     o.ID,
		"order_number": o.Number,
		"status":       o.Status,
		"actor":        actor.String(),
		"events":       len(res.Events),
	})
}

func (s *OrderService) observe(command string, start time.Time, err *error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Commands.WithLabelValues(command, resultLabel(*err)).Inc()
	s.metrics.LatencyMS.WithLabelValues(command).Observe(float64(s.now().Sub(start).Milliseconds()))
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Kind.Error()
	}
	return "error"
}
