package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCard   PaymentMethod = "card"
	PaymentCash   PaymentMethod = "cash"
	PaymentWallet PaymentMethod = "wallet"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCard, PaymentCash, PaymentWallet:
		return true
	}
	return false
}

type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code,omitempty"`
	Notes      string `json:"notes,omitempty"`
}

// LineItem is a snapshot of a menu item taken when the order was placed.
type LineItem struct {
	MenuItemID string          `json:"menu_item_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	LineTotal  decimal.Decimal `json:"line_total"`
}

type Pricing struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Tax         decimal.Decimal `json:"tax"`
	Discount    decimal.Decimal `json:"discount"`
	Total       decimal.Decimal `json:"total"`
}

// Balanced reports whether Total = Subtotal + DeliveryFee + Tax - Discount
// to the cent.
func (p Pricing) Balanced() bool {
	want := p.Subtotal.Add(p.DeliveryFee).Add(p.Tax).Sub(p.Discount).Round(2)
	return want.Equal(p.Total.Round(2))
}

type HistoryEntry struct {
	Status    OrderStatus `json:"status"`
	At        time.Time   `json:"at"`
	ActorID   string      `json:"actor_id"`
	ActorRole Role        `json:"actor_role"`
}

type Order struct {
	ID                  string         `json:"id"`
	Number              string         `json:"order_number"`
	CustomerID          string         `json:"customer_id"`
	VendorID            string         `json:"vendor_id"`
	DeliveryPartnerID   *string        `json:"delivery_partner_id"`
	Items               []LineItem     `json:"items"`
	Pricing             Pricing        `json:"pricing"`
	Status              OrderStatus    `json:"status"`
	History             []HistoryEntry `json:"status_history"`
	DeliveryAddress     Address        `json:"delivery_address"`
	PaymentMethod       PaymentMethod  `json:"payment_method"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
	EstimatedCompletion time.Time      `json:"estimated_completion"`
	DeliveredAt         *time.Time     `json:"delivered_at"`
	CancelledAt         *time.Time     `json:"cancelled_at"`
	Version             int            `json:"version"`
}

// Apply moves the order to next and appends the matching history entry.
// It does not consult the transition table; callers validate first.
func (o *Order) Apply(next OrderStatus, actor Actor, at time.Time) {
	o.Status = next
	o.History = append(o.History, HistoryEntry{Status: next, At: at, ActorID: actor.ID, ActorRole: actor.Role})
	o.UpdatedAt = at
	o.Version++
	switch next {
	case StatusDelivered:
		if o.DeliveredAt == nil {
			t := at
			o.DeliveredAt = &t
		}
	case StatusCancelled:
		if o.CancelledAt == nil {
			t := at
			o.CancelledAt = &t
		}
	}
}

func (o *Order) Assigned() bool { return o.DeliveryPartnerID != nil }

func (o *Order) PartnerID() string {
	if o.DeliveryPartnerID == nil {
		return ""
	}
	return *o.DeliveryPartnerID
}

// IsParticipant reports whether id is the customer, vendor or assigned
// delivery partner of the order.
func (o *Order) IsParticipant(id string) bool {
	return id != "" && (id == o.CustomerID || id == o.VendorID || id == o.PartnerID())
}

// Clone returns a deep copy so stored orders are never aliased by callers.
func (o *Order) Clone() *Order {
	c := *o
	c.Items = append([]LineItem(nil), o.Items...)
	c.History = append([]HistoryEntry(nil), o.History...)
	if o.DeliveryPartnerID != nil {
		p := *o.DeliveryPartnerID
		c.DeliveryPartnerID = &p
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		c.DeliveredAt = &t
	}
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		c.CancelledAt = &t
	}
	return &c
}

// Validate checks the record-level invariants.
func (o *Order) Validate() error {
	if o.Number == "" {
		return errors.New("order number is empty")
	}
	if len(o.Items) == 0 {
		return errors.New("order has no items")
	}
	for _, it := range o.Items {
		if it.Quantity < 1 {
			return fmt.Errorf("item %s has quantity %d", it.MenuItemID, it.Quantity)
		}
	}
	if len(o.History) == 0 || o.History[len(o.History)-1].Status != o.Status {
		return fmt.Errorf("status history does not end in %s", o.Status)
	}
	if o.DeliveryPartnerID != nil && !o.Status.AtOrAfterHandoff() {
		return fmt.Errorf("partner assigned while %s", o.Status)
	}
	if (o.Status == StatusOutForDelivery || o.Status == StatusDelivered) && o.DeliveryPartnerID == nil {
		return fmt.Errorf("no partner assigned while %s", o.Status)
	}
	if (o.Status == StatusDelivered) != (o.DeliveredAt != nil) {
		return errors.New("delivered_at does not match status")
	}
	if !o.Pricing.Balanced() {
		return errors.New("pricing total does not balance")
	}
	return nil
}

// Vendor and MenuItem are the catalog data snapshotted at placement time.
type Vendor struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Open         bool            `json:"open"`
	MinimumOrder decimal.Decimal `json:"minimum_order"`
	PrepTime     time.Duration   `json:"prep_time"`
	DeliveryFee  decimal.Decimal `json:"delivery_fee"`
}

type MenuItem struct {
	ID        string          `json:"id"`
	VendorID  string          `json:"vendor_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
}
