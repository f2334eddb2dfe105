package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOrder() *Order {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	sub := decimal.RequireFromString("24.50")
	fee := decimal.RequireFromString("3.00")
	tax := decimal.RequireFromString("2.45")
	return &Order{
		ID:         "o-1",
		Number:     "ORD_20261019_000001",
		CustomerID: "cust-1",
		VendorID:   "vend-1",
		Items: []LineItem{
			{MenuItemID: "m-1", Name: "Margherita", UnitPrice: decimal.RequireFromString("12.25"), Quantity: 2, LineTotal: sub},
		},
		Pricing:   Pricing{Subtotal: sub, DeliveryFee: fee, Tax: tax, Discount: decimal.Zero, Total: decimal.RequireFromString("29.95")},
		Status:    StatusPending,
		History:   []HistoryEntry{{Status: StatusPending, At: now, ActorID: "cust-1", ActorRole: RoleCustomer}},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrder_ApplyKeepsHistoryInSync(t *testing.T) {
	o := sampleOrder()
	require.NoError(t, o.Validate())

	vendor := Actor{ID: "vend-1", Role: RoleVendor}
	at := o.CreatedAt.Add(time.Minute)
	o.Apply(StatusAccepted, vendor, at)

	assert.Equal(t, StatusAccepted, o.Status)
	assert.Len(t, o.History, 2)
	assert.Equal(t, 1, o.Version)
	assert.Equal(t, at, o.UpdatedAt)
	require.NoError(t, o.Validate())
}

func TestOrder_DeliveredAtSetOnce(t *testing.T) {
	o := sampleOrder()
	partner := "drv-1"
	o.DeliveryPartnerID = &partner
	o.Status = StatusOutForDelivery
	o.History = append(o.History, HistoryEntry{Status: StatusOutForDelivery})

	first := o.CreatedAt.Add(time.Hour)
	o.Apply(StatusDelivered, Actor{ID: partner, Role: RoleDelivery}, first)
	o.Apply(StatusDelivered, Actor{ID: partner, Role: RoleDelivery}, first.Add(time.Hour))

	require.NotNil(t, o.DeliveredAt)
	assert.Equal(t, first, *o.DeliveredAt)
}

func TestOrder_ValidateRejectsBrokenInvariants(t *testing.T) {
	o := sampleOrder()
	o.Status = StatusAccepted
	assert.Error(t, o.Validate(), "history tail mismatch")

	o = sampleOrder()
	p := "drv-1"
	o.DeliveryPartnerID = &p
	assert.Error(t, o.Validate(), "partner before handoff")

	o = sampleOrder()
	o.Items = nil
	assert.Error(t, o.Validate())

	o = sampleOrder()
	o.Pricing.Total = decimal.RequireFromString("30.00")
	assert.Error(t, o.Validate())
}

func TestOrder_CloneIsDeep(t *testing.T) {
	o := sampleOrder()
	p := "drv-1"
	o.DeliveryPartnerID = &p

	c := o.Clone()
	c.History[0].ActorID = "someone-else"
	*c.DeliveryPartnerID = "drv-2"
	c.Items[0].Quantity = 9

	assert.Equal(t, "cust-1", o.History[0].ActorID)
	assert.Equal(t, "drv-1", o.PartnerID())
	assert.Equal(t, 2, o.Items[0].Quantity)
}

func TestEvent_JSONKeepsPayloadVariant(t *testing.T) {
	o := sampleOrder()
	ev := NewEvent(o, OrderCancelled{CancelledBy: RoleCustomer, ActorID: "cust-1"}, o.CreatedAt)

	b, err := json.Marshal(Envelope{Channel: OrderChannel(o.ID), Event: ev})
	require.NoError(t, err)

	var got Envelope
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, ChannelKey("order:o-1"), got.Channel)
	assert.Equal(t, EventOrderCancelled, got.Event.Type)
	assert.Equal(t, OrderCancelled{CancelledBy: RoleCustomer, ActorID: "cust-1"}, got.Event.Payload)
}

func TestEvent_UnknownTypeRejected(t *testing.T) {
	var ev Event
	err := json.Unmarshal([]byte(`{"type":"order_teleported","payload":{}}`), &ev)
	assert.Error(t, err)
}
