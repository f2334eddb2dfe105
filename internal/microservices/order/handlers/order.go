package handlers

import (
	"encoding/json"
	"net/http"

	"food-marketplace/internal/common/httpx"
	"food-marketplace/internal/common/logger"
	"food-marketplace/internal/domain"
	"food-marketplace/internal/microservices/order/service"
)

const maxBodyBytes = 1 << 20

type OrderHandler struct {
	service service.OrderServiceInterface
	log     *logger.Logger
}

func NewOrderHandler(s service.OrderServiceInterface, lg *logger.Logger) *OrderHandler {
	return &OrderHandler{service: s, log: lg}
}

func (oh *OrderHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := oh.actor(w, r)
	if !ok {
		return
	}
	var req domain.PlaceOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}

	res, err := oh.service.PlaceOrder(r.Context(), actor, req)
	if err != nil {
		oh.writeError(w, r, err)
		return
	}
	o := res.Order
	writeJSON(w, http.StatusCreated, domain.PlaceOrderResponse{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		Status:      o.Status,
		TotalAmount: o.Pricing.Total,
	})
}

func (oh *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := oh.actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	orders, next, err := oh.service.ListOrders(r.Context(), actor, clamp(atoiDefault(q.Get("limit"), 20), 1, 100), q.Get("cursor"))
	if err != nil {
		oh.writeError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	writeJSON(w, http.StatusOK, domain.OrderListResponse{Orders: orders, NextCursor: next})
}

func (oh *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := oh.actor(w, r)
	if !ok {
		return
	}
	o, err := oh.service.GetOrder(r.Context(), actor, param(r, "order_id"))
	if err != nil {
		oh.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (oh *OrderHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	actor, ok := oh.actor(w, r)
	if !ok {
		return
	}
	o, err := oh.service.GetOrder(r.Context(), actor, param(r, "order_id"))
	if err != nil {
		oh.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order_id":     o.ID,
		"order_number": o.Number,
		"status":       o.Status,
		"history":      o.History,
	})
}

func (oh *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := oh.actor(w, r)
	if !ok {
		return
	}
	var req domain.UpdateStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	status, err := domain.ParseStatus(string(req.Status))
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "validation_failed", err.Error(), "")
		return
	}

	res, err := oh.service.UpdateStatus(r.Context(), actor, param(r, "order_id"), status)
	if err != nil {
		oh.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Order)
}

func (oh *OrderHandler) AssignPartner(w http.ResponseWriter, r *http.Request) {
	actor, ok := oh.actor(w, r)
	if !ok {
		return
	}
	var req domain.AssignPartnerRequest
	if r.ContentLength != 0 && !decodeBody(w, r, &req) {
		return
	}
	partnerID := ""
	if req.PartnerID != nil {
		partnerID = *req.PartnerID
	}

	res, err := oh.service.AssignDeliveryPartner(r.Context(), actor, param(r, "order_id"), partnerID)
	if err != nil {
		oh.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Order)
}

func (oh *OrderHandler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	actor, ok := oh.actor(w, r)
	if !ok {
		return
	}
	orders, err := oh.service.ListAvailableDeliveries(r.Context(), actor, clamp(atoiDefault(r.URL.Query().Get("limit"), 50), 1, 200))
	if err != nil {
		oh.writeError(w, r, err)
		return
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (oh *OrderHandler) actor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, err := httpx.ActorFromRequest(r, false)
	if err != nil {
		oh.writeError(w, r, err)
		return domain.Actor{}, false
	}
	return actor, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid_json", "invalid JSON body: "+err.Error(), "")
		return false
	}
	return true
}
