package guard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"food-marketplace/internal/domain"
)

var (
	customer = domain.Actor{ID: "cust-1", Role: domain.RoleCustomer}
	vendor   = domain.Actor{ID: "vend-1", Role: domain.RoleVendor}
	partner  = domain.Actor{ID: "drv-1", Role: domain.RoleDelivery}
	admin    = domain.Actor{ID: "ops", Role: domain.RoleAdmin}
)

func order(status domain.OrderStatus, partnerID string) *domain.Order {
	o := &domain.Order{ID: "o-1", Number: "ORD_1", CustomerID: customer.ID, VendorID: vendor.ID, Status: status}
	if partnerID != "" {
		o.DeliveryPartnerID = &partnerID
	}
	return o
}

func assertDenied(t *testing.T, err error, kind error, reason string) {
	t.Helper()
	if assert.Error(t, err) {
		assert.True(t, errors.Is(err, kind), "got %v", err)
		assert.Equal(t, reason, domain.ReasonOf(err))
	}
}

func TestAuthorizePlacement(t *testing.T) {
	open := &domain.Vendor{ID: "vend-1", Open: true}
	closed := &domain.Vendor{ID: "vend-1"}

	assert.NoError(t, AuthorizePlacement(customer, open))
	assertDenied(t, AuthorizePlacement(vendor, open), domain.ErrUnauthorized, domain.ReasonRoleMismatch)
	assertDenied(t, AuthorizePlacement(customer, closed), domain.ErrVendorUnavailable, domain.ReasonVendorClosed)
	// role is checked before anything about the vendor
	assertDenied(t, AuthorizePlacement(vendor, nil), domain.ErrUnauthorized, domain.ReasonRoleMismatch)

	assert.NoError(t, AuthorizePlacer(customer))
	assertDenied(t, AuthorizePlacer(vendor), domain.ErrUnauthorized, domain.ReasonRoleMismatch)
	assertDenied(t, AuthorizePlacer(domain.Actor{Role: domain.RoleCustomer}), domain.ErrUnauthorized, domain.ReasonOwnershipMismatch)
}

func TestAuthorizeTransition_VendorSteps(t *testing.T) {
	otherVendor := domain.Actor{ID: "vend-2", Role: domain.RoleVendor}
	for _, target := range []domain.OrderStatus{domain.StatusAccepted, domain.StatusPrepared, domain.StatusHandedToDelivery} {
		o := order(domain.StatusPending, "")
		assert.NoError(t, AuthorizeTransition(vendor, o, target))
		assertDenied(t, AuthorizeTransition(otherVendor, o, target), domain.ErrUnauthorized, domain.ReasonOwnershipMismatch)
		assertDenied(t, AuthorizeTransition(customer, o, target), domain.ErrUnauthorized, domain.ReasonRoleMismatch)
		assertDenied(t, AuthorizeTransition(admin, o, target), domain.ErrUnauthorized, domain.ReasonRoleMismatch)
	}
}

func TestAuthorizeTransition_PartnerSteps(t *testing.T) {
	other := domain.Actor{ID: "drv-2", Role: domain.RoleDelivery}
	o := order(domain.StatusHandedToDelivery, partner.ID)

	assert.NoError(t, AuthorizeTransition(partner, o, domain.StatusOutForDelivery))
	assert.NoError(t, AuthorizeTransition(partner, o, domain.StatusDelivered))
	assertDenied(t, AuthorizeTransition(other, o, domain.StatusOutForDelivery), domain.ErrUnauthorized, domain.ReasonOwnershipMismatch)
	assertDenied(t, AuthorizeTransition(vendor, o, domain.StatusOutForDelivery), domain.ErrUnauthorized, domain.ReasonRoleMismatch)

	unassigned := order(domain.StatusHandedToDelivery, "")
	assertDenied(t, AuthorizeTransition(partner, unassigned, domain.StatusOutForDelivery), domain.ErrUnauthorized, domain.ReasonWrongStatus)
}

func TestAuthorizeTransition_Cancel(t *testing.T) {
	o := order(domain.StatusAccepted, "")
	assert.NoError(t, AuthorizeTransition(customer, o, domain.StatusCancelled))
	assert.NoError(t, AuthorizeTransition(vendor, o, domain.StatusCancelled))
	assert.NoError(t, AuthorizeTransition(admin, o, domain.StatusCancelled))

	stranger := domain.Actor{ID: "cust-9", Role: domain.RoleCustomer}
	assertDenied(t, AuthorizeTransition(stranger, o, domain.StatusCancelled), domain.ErrUnauthorized, domain.ReasonOwnershipMismatch)
	assertDenied(t, AuthorizeTransition(partner, o, domain.StatusCancelled), domain.ErrUnauthorized, domain.ReasonRoleMismatch)
}

func TestAuthorizeTransition_DoesNotCheckCurrentStatus(t *testing.T) {
	// a delivered order: the owner is allowed past the guard so the
	// validator can answer with InvalidTransition
	o := order(domain.StatusDelivered, partner.ID)
	assert.NoError(t, AuthorizeTransition(customer, o, domain.StatusCancelled))
}

func TestAuthorizeAssignment(t *testing.T) {
	ready := order(domain.StatusHandedToDelivery, "")

	assert.NoError(t, AuthorizeAssignment(partner, ready, partner.ID))
	assert.NoError(t, AuthorizeAssignment(vendor, ready, "drv-7"))

	assertDenied(t, AuthorizeAssignment(partner, ready, "drv-7"), domain.ErrUnauthorized, domain.ReasonOwnershipMismatch)
	assertDenied(t, AuthorizeAssignment(customer, ready, customer.ID), domain.ErrUnauthorized, domain.ReasonRoleMismatch)
	assertDenied(t, AuthorizeAssignment(domain.Actor{ID: "vend-2", Role: domain.RoleVendor}, ready, "drv-7"),
		domain.ErrUnauthorized, domain.ReasonOwnershipMismatch)

	assertDenied(t, AuthorizeAssignment(partner, order(domain.StatusPrepared, ""), partner.ID),
		domain.ErrNotReadyForAssignment, domain.ReasonWrongStatus)
	assertDenied(t, AuthorizeAssignment(partner, order(domain.StatusHandedToDelivery, "drv-2"), partner.ID),
		domain.ErrAlreadyAssigned, domain.ReasonAlreadyAssigned)
}

func TestCanView(t *testing.T) {
	o := order(domain.StatusHandedToDelivery, "")
	assert.True(t, CanView(customer, o))
	assert.True(t, CanView(vendor, o))
	assert.True(t, CanView(admin, o))
	assert.True(t, CanView(partner, o))
	assert.False(t, CanView(domain.Actor{ID: "cust-9", Role: domain.RoleCustomer}, o))

	taken := order(domain.StatusOutForDelivery, "drv-2")
	assert.False(t, CanView(partner, taken))
}
