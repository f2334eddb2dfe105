package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"food-marketplace/internal/domain"
)

// problemTypes maps error kinds to a status and a machine-readable type.
var problemTypes = []struct {
	kind   error
	status int
	typ    string
}{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrUnauthorized, http.StatusForbidden, "unauthorized"},
	{domain.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{domain.ErrAlreadyAssigned, http.StatusConflict, "already_assigned"},
	{domain.ErrNotReadyForAssignment, http.StatusConflict, "not_ready_for_assignment"},
	{domain.ErrBelowMinimumOrder, http.StatusUnprocessableEntity, "below_minimum_order"},
	{domain.ErrVendorUnavailable, http.StatusUnprocessableEntity, "vendor_unavailable"},
	{domain.ErrItemUnavailable, http.StatusUnprocessableEntity, "item_unavailable"},
	{domain.ErrValidation, http.StatusBadRequest, "validation_failed"},
}

func (oh *OrderHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, p := range problemTypes {
		if errors.Is(err, p.kind) {
			writeProblem(w, p.status, p.typ, err.Error(), domain.ReasonOf(err))
			return
		}
	}
	oh.log.Error("request_failed", err, map[string]any{"method": r.Method, "path": r.URL.Path})
	writeProblem(w, http.StatusInternalServerError, "internal_error", "internal error", "")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeProblem writes a simplified RFC 7807 body.
func writeProblem(w http.ResponseWriter, code int, typ, detail, reason string) {
	resp := map[string]any{
		"type":   typ,
		"title":  http.StatusText(code),
		"status": code,
		"detail": detail,
	}
	if reason != "" {
		resp["reason"] = reason
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

func param(r *http.Request, key string) string {
	return r.PathValue(key)
}

func atoiDefault(s string, d int) int {
	if s == "" {
		return d
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return n
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
