package handlers

import (
	"net/http"

	"food-marketplace/internal/common/logger"
	"food-marketplace/internal/microservices/order/service"
)

type Handler struct {
	OrderHandler *OrderHandler
}

func New(s *service.Service, lg *logger.Logger) *Handler {
	return &Handler{
		OrderHandler: NewOrderHandler(s.OrderService, lg),
	}
}

// Register mounts the REST routes on mux.
func Register(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("POST /api/v1/orders", h.OrderHandler.PlaceOrder)
	mux.HandleFunc("GET /api/v1/orders", h.OrderHandler.ListOrders)
	mux.HandleFunc("GET /api/v1/orders/{order_id}", h.OrderHandler.GetOrder)
	mux.HandleFunc("GET /api/v1/orders/{order_id}/history", h.OrderHandler.GetHistory)
	mux.HandleFunc("PATCH /api/v1/orders/{order_id}/status", h.OrderHandler.UpdateStatus)
	mux.HandleFunc("POST /api/v1/orders/{order_id}/assignment", h.OrderHandler.AssignPartner)
	mux.HandleFunc("GET /api/v1/deliveries/available", h.OrderHandler.ListAvailable)
}
