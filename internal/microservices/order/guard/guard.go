// Package guard decides whether an actor may perform a command on an order.
// It never looks at the transition table: a caller that passes the guard
// learns about state-machine rules only afterwards, from the validator.
package guard

import (
	"food-marketplace/internal/domain"
)

func deny(reason, format string, args ...any) error {
	return domain.NewError(domain.ErrUnauthorized, reason, format, args...)
}

// AuthorizePlacer checks that actor may place orders at all. It needs no
// catalog data.
func AuthorizePlacer(actor domain.Actor) error {
	if actor.Role != domain.RoleCustomer {
		return deny(domain.ReasonRoleMismatch, "only customers can place orders, got %s", actor.Role)
	}
	if actor.ID == "" {
		return deny(domain.ReasonOwnershipMismatch, "customer identity is empty")
	}
	return nil
}

// AuthorizePlacement allows only customers to place orders, and only with an
// open vendor.
func AuthorizePlacement(actor domain.Actor, vendor *domain.Vendor) error {
	if err := AuthorizePlacer(actor); err != nil {
		return err
	}
	if vendor == nil || !vendor.Open {
		return domain.NewError(domain.ErrVendorUnavailable, domain.ReasonVendorClosed, "vendor is not open for orders")
	}
	return nil
}

// AuthorizeTransition applies the rule attached to the requested target
// status.
func AuthorizeTransition(actor domain.Actor, o *domain.Order, requested domain.OrderStatus) error {
	switch requested {
	case domain.StatusAccepted, domain.StatusPrepared, domain.StatusHandedToDelivery:
		return requireVendorOwner(actor, o, requested)
	case domain.StatusOutForDelivery, domain.StatusDelivered:
		return requireAssignedPartner(actor, o, requested)
	case domain.StatusCancelled:
		return authorizeCancel(actor, o)
	case domain.StatusPending:
		// nobody moves an order back to pending; owners still get to hear
		// that from the validator
		if actor.Role == domain.RoleAdmin || (actor.Role == domain.RoleCustomer && actor.ID == o.CustomerID) {
			return nil
		}
		return deny(domain.ReasonRoleMismatch, "%s cannot set order to %s", actor.Role, requested)
	}
	return deny(domain.ReasonRoleMismatch, "unknown status %q", requested)
}

// AuthorizeAssignment covers both a partner claiming an order for itself and
// the owning vendor assigning a named partner. partnerID is the partner that
// would be written.
func AuthorizeAssignment(actor domain.Actor, o *domain.Order, partnerID string) error {
	switch actor.Role {
	case domain.RoleDelivery:
		if partnerID != actor.ID {
			return deny(domain.ReasonOwnershipMismatch, "delivery partners can only claim orders for themselves")
		}
	case domain.RoleVendor:
		if actor.ID != o.VendorID {
			return deny(domain.ReasonOwnershipMismatch, "order %s belongs to another vendor", o.Number)
		}
		if partnerID == "" {
			return domain.NewError(domain.ErrValidation, "", "vendor assignment needs a partner_id")
		}
	default:
		return deny(domain.ReasonRoleMismatch, "%s cannot assign delivery partners", actor.Role)
	}
	if o.Status != domain.StatusHandedToDelivery {
		return domain.NewError(domain.ErrNotReadyForAssignment, domain.ReasonWrongStatus,
			"order %s is %s, not %s", o.Number, o.Status, domain.StatusHandedToDelivery)
	}
	if o.Assigned() {
		return domain.NewError(domain.ErrAlreadyAssigned, domain.ReasonAlreadyAssigned,
			"order %s already has a delivery partner", o.Number)
	}
	return nil
}

// CanView reports whether actor may read the order or follow its channel.
func CanView(actor domain.Actor, o *domain.Order) bool {
	if actor.Role == domain.RoleAdmin {
		return true
	}
	if o.IsParticipant(actor.ID) {
		return true
	}
	// the pool is visible to every partner until someone claims it
	return actor.Role == domain.RoleDelivery && o.Status == domain.StatusHandedToDelivery && !o.Assigned()
}

func requireVendorOwner(actor domain.Actor, o *domain.Order, requested domain.OrderStatus) error {
	if actor.Role != domain.RoleVendor {
		return deny(domain.ReasonRoleMismatch, "only the vendor can set %s", requested)
	}
	if actor.ID != o.VendorID {
		return deny(domain.ReasonOwnershipMismatch, "order %s belongs to another vendor", o.Number)
	}
	return nil
}

func requireAssignedPartner(actor domain.Actor, o *domain.Order, requested domain.OrderStatus) error {
	if actor.Role != domain.RoleDelivery {
		return deny(domain.ReasonRoleMismatch, "only the delivery partner can set %s", requested)
	}
	if !o.Assigned() {
		return deny(domain.ReasonWrongStatus, "order %s has no delivery partner yet", o.Number)
	}
	if actor.ID != o.PartnerID() {
		return deny(domain.ReasonOwnershipMismatch, "order %s is assigned to another partner", o.Number)
	}
	return nil
}

func authorizeCancel(actor domain.Actor, o *domain.Order) error {
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleCustomer:
		if actor.ID == o.CustomerID {
			return nil
		}
	case domain.RoleVendor:
		if actor.ID == o.VendorID {
			return nil
		}
	default:
		return deny(domain.ReasonRoleMismatch, "%s cannot cancel orders", actor.Role)
	}
	return deny(domain.ReasonOwnershipMismatch, "order %s belongs to someone else", o.Number)
}
