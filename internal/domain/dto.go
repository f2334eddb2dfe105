package domain

import "github.com/shopspring/decimal"

type PlaceOrderItem struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
}

type PlaceOrderRequest struct {
	VendorID        string           `json:"vendor_id"`
	Items           []PlaceOrderItem `json:"items"`
	DeliveryAddress Address          `json:"delivery_address"`
	PaymentMethod   PaymentMethod    `json:"payment_method"`
}

type UpdateStatusRequest struct {
	Status OrderStatus `json:"status"`
}

type AssignPartnerRequest struct {
	PartnerID *string `json:"partner_id,omitempty"`
}

type PlaceOrderResponse struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Status      OrderStatus     `json:"status"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// OrderListResponse is a page of orders ordered by creation time.
type OrderListResponse struct {
	Orders     []*Order `json:"orders"`
	NextCursor string   `json:"next_cursor,omitempty"`
}
