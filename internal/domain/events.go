package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventOrderPlaced           EventType = "order_placed"
	EventOrderAccepted         EventType = "order_accepted"
	EventOrderPrepared         EventType = "order_prepared"
	EventDeliveryAvailable     EventType = "delivery_available"
	EventOrderHandedToDelivery EventType = "order_handed_to_delivery"
	EventOrderAssigned         EventType = "order_assigned"
	EventOrderPickedUp         EventType = "order_picked_up"
	EventOrderDelivered        EventType = "order_delivered"
	EventOrderCancelled        EventType = "order_cancelled"
)

// ChannelKey addresses a realtime channel: user:<id>, role:<role> or order:<id>.
type ChannelKey string

func UserChannel(id string) ChannelKey  { return ChannelKey("user:" + id) }
func RoleChannel(r Role) ChannelKey     { return ChannelKey("role:" + string(r)) }
func OrderChannel(id string) ChannelKey { return ChannelKey("order:" + id) }
func (k ChannelKey) String() string     { return string(k) }

// Payload is the closed set of event bodies, one per row of the routing table.
type Payload interface {
	EventType() EventType
}

type OrderPlaced struct {
	CustomerID          string          `json:"customer_id"`
	ItemCount           int             `json:"item_count"`
	Total               decimal.Decimal `json:"total"`
	EstimatedCompletion time.Time       `json:"estimated_completion"`
}

type OrderAccepted struct {
	VendorID            string    `json:"vendor_id"`
	EstimatedCompletion time.Time `json:"estimated_completion"`
}

type OrderPrepared struct {
	VendorID string `json:"vendor_id"`
}

type DeliveryAvailable struct {
	VendorID        string          `json:"vendor_id"`
	DeliveryAddress Address         `json:"delivery_address"`
	Total           decimal.Decimal `json:"total"`
}

type OrderHandedToDelivery struct {
	VendorID string `json:"vendor_id"`
}

type OrderAssigned struct {
	PartnerID       string  `json:"partner_id"`
	VendorID        string  `json:"vendor_id"`
	DeliveryAddress Address `json:"delivery_address"`
}

type OrderPickedUp struct {
	PartnerID string `json:"partner_id"`
}

type OrderDelivered struct {
	PartnerID   string    `json:"partner_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

type OrderCancelled struct {
	CancelledBy Role   `json:"cancelled_by"`
	ActorID     string `json:"actor_id"`
}

func (OrderPlaced) EventType() EventType           { return EventOrderPlaced }
func (OrderAccepted) EventType() EventType         { return EventOrderAccepted }
func (OrderPrepared) EventType() EventType         { return EventOrderPrepared }
func (DeliveryAvailable) EventType() EventType     { return EventDeliveryAvailable }
func (OrderHandedToDelivery) EventType() EventType { return EventOrderHandedToDelivery }
func (OrderAssigned) EventType() EventType         { return EventOrderAssigned }
func (OrderPickedUp) EventType() EventType         { return EventOrderPickedUp }
func (OrderDelivered) EventType() EventType        { return EventOrderDelivered }
func (OrderCancelled) EventType() EventType        { return EventOrderCancelled }

type Event struct {
	ID          string      `json:"id"`
	Type        EventType   `json:"type"`
	OrderID     string      `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	Status      OrderStatus `json:"status"`
	OccurredAt  time.Time   `json:"occurred_at"`
	Payload     Payload     `json:"payload"`
}

func NewEvent(o *Order, p Payload, at time.Time) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        p.EventType(),
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Status:      o.Status,
		OccurredAt:  at,
		Payload:     p,
	}
}

func (e *Event) UnmarshalJSON(b []byte) error {
	type plain Event
	var raw struct {
		plain
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	p, err := newPayload(raw.Type)
	if err != nil {
		return err
	}
	if len(raw.Payload) > 0 {
		if err := json.Unmarshal(raw.Payload, p); err != nil {
			return fmt.Errorf("decode %s payload: %w", raw.Type, err)
		}
	}
	*e = Event(raw.plain)
	e.Payload = derefPayload(p)
	return nil
}

func newPayload(t EventType) (any, error) {
	switch t {
	case EventOrderPlaced:
		return &OrderPlaced{}, nil
	case EventOrderAccepted:
		return &OrderAccepted{}, nil
	case EventOrderPrepared:
		return &OrderPrepared{}, nil
	case EventDeliveryAvailable:
		return &DeliveryAvailable{}, nil
	case EventOrderHandedToDelivery:
		return &OrderHandedToDelivery{}, nil
	case EventOrderAssigned:
		return &OrderAssigned{}, nil
	case EventOrderPickedUp:
		return &OrderPickedUp{}, nil
	case EventOrderDelivered:
		return &OrderDelivered{}, nil
	case EventOrderCancelled:
		return &OrderCancelled{}, nil
	}
	return nil, fmt.Errorf("unknown event type %q", t)
}

func derefPayload(p any) Payload {
	switch v := p.(type) {
	case *OrderPlaced:
		return *v
	case *OrderAccepted:
		return *v
	case *OrderPrepared:
		return *v
	case *DeliveryAvailable:
		return *v
	case *OrderHandedToDelivery:
		return *v
	case *OrderAssigned:
		return *v
	case *OrderPickedUp:
		return *v
	case *OrderDelivered:
		return *v
	case *OrderCancelled:
		return *v
	}
	return nil
}

// Envelope is one (recipient channel, event) pair produced by a command.
// Several envelopes may share an event; the router delivers each event to a
// session at most once per dispatch.
type Envelope struct {
	Channel ChannelKey `json:"channel"`
	Event   Event      `json:"event"`
}
