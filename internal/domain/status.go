package domain

import "fmt"

type OrderStatus string

const (
	StatusPending          OrderStatus = "pending"
	StatusAccepted         OrderStatus = "accepted"
	StatusPrepared         OrderStatus = "prepared"
	StatusHandedToDelivery OrderStatus = "handed_to_delivery"
	StatusOutForDelivery   OrderStatus = "out_for_delivery"
	StatusDelivered        OrderStatus = "delivered"
	StatusCancelled        OrderStatus = "cancelled"
)

// AllStatuses lists the closed status set in lifecycle order.
var AllStatuses = []OrderStatus{
	StatusPending,
	StatusAccepted,
	StatusPrepared,
	StatusHandedToDelivery,
	StatusOutForDelivery,
	StatusDelivered,
	StatusCancelled,
}

var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:          {StatusAccepted, StatusCancelled},
	StatusAccepted:         {StatusPrepared, StatusCancelled},
	StatusPrepared:         {StatusHandedToDelivery},
	StatusHandedToDelivery: {StatusOutForDelivery},
	StatusOutForDelivery:   {StatusDelivered},
	StatusDelivered:        {},
	StatusCancelled:        {},
}

// CanTransition reports whether requested is directly reachable from current.
// Same-state requests, skipped states and anything leaving a terminal status
// are rejected.
func CanTransition(current, requested OrderStatus) bool {
	for _, s := range transitions[current] {
		if s == requested {
			return true
		}
	}
	return false
}

// AllowedNext returns the statuses reachable from s.
func AllowedNext(s OrderStatus) []OrderStatus {
	out := make([]OrderStatus, len(transitions[s]))
	copy(out, transitions[s])
	return out
}

func (s OrderStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s OrderStatus) IsTerminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// AtOrAfterHandoff reports whether s is on the delivery side of the lifecycle.
func (s OrderStatus) AtOrAfterHandoff() bool {
	switch s {
	case StatusHandedToDelivery, StatusOutForDelivery, StatusDelivered:
		return true
	}
	return false
}

func (s OrderStatus) String() string { return string(s) }

func ParseStatus(v string) (OrderStatus, error) {
	s := OrderStatus(v)
	if !s.Valid() {
		return "", fmt.Errorf("unknown order status %q", v)
	}
	return s, nil
}
