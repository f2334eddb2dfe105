package service

import (
	"time"

	"food-marketplace/internal/domain"
)

func envelope(key domain.ChannelKey, ev domain.Event) domain.Envelope {
	return domain.Envelope{Channel: key, Event: ev}
}

func placedEnvelopes(o *domain.Order, at time.Time) []domain.Envelope {
	ev := domain.NewEvent(o, domain.OrderPlaced{
		CustomerID:          o.CustomerID,
		ItemCount:           len(o.Items),
		Total:               o.Pricing.Total,
		EstimatedCompletion: o.EstimatedCompletion,
	}, at)
	return []domain.Envelope{envelope(domain.UserChannel(o.VendorID), ev)}
}

func assignedEnvelopes(o *domain.Order, at time.Time) []domain.Envelope {
	ev := domain.NewEvent(o, domain.OrderAssigned{
		PartnerID:       o.PartnerID(),
		VendorID:        o.VendorID,
		DeliveryAddress: o.DeliveryAddress,
	}, at)
	return []domain.Envelope{envelope(domain.UserChannel(o.PartnerID()), ev)}
}

// transitionEnvelopes returns the fixed recipient set for the status o just
// moved to. actor is who moved it, which only matters for cancellations.
func transitionEnvelopes(o *domain.Order, actor domain.Actor, at time.Time) []domain.Envelope {
	customer := domain.UserChannel(o.CustomerID)
	vendor := domain.UserChannel(o.VendorID)
	follow := domain.OrderChannel(o.ID)

	switch o.Status {
	case domain.StatusAccepted:
		ev := domain.NewEvent(o, domain.OrderAccepted{VendorID: o.VendorID, EstimatedCompletion: o.EstimatedCompletion}, at)
		return []domain.Envelope{envelope(customer, ev), envelope(follow, ev)}

	case domain.StatusPrepared:
		ready := domain.NewEvent(o, domain.OrderPrepared{VendorID: o.VendorID}, at)
		pool := domain.NewEvent(o, domain.DeliveryAvailable{
			VendorID:        o.VendorID,
			DeliveryAddress: o.DeliveryAddress,
			Total:           o.Pricing.Total,
		}, at)
		return []domain.Envelope{envelope(customer, ready), envelope(domain.RoleChannel(domain.RoleDelivery), pool)}

	case domain.StatusHandedToDelivery:
		ev := domain.NewEvent(o, domain.OrderHandedToDelivery{VendorID: o.VendorID}, at)
		return []domain.Envelope{envelope(customer, ev)}

	case domain.StatusOutForDelivery:
		ev := domain.NewEvent(o, domain.OrderPickedUp{PartnerID: o.PartnerID()}, at)
		return []domain.Envelope{envelope(customer, ev), envelope(vendor, ev)}

	case domain.StatusDelivered:
		deliveredAt := at
		if o.DeliveredAt != nil {
			deliveredAt = *o.DeliveredAt
		}
		ev := domain.NewEvent(o, domain.OrderDelivered{PartnerID: o.PartnerID(), DeliveredAt: deliveredAt}, at)
		return []domain.Envelope{
			envelope(customer, ev),
			envelope(vendor, ev),
			envelope(domain.UserChannel(o.PartnerID()), ev),
			envelope(follow, ev),
		}

	case domain.StatusCancelled:
		ev := domain.NewEvent(o, domain.OrderCancelled{CancelledBy: actor.Role, ActorID: actor.ID}, at)
		var out []domain.Envelope
		switch actor.Role {
		case domain.RoleCustomer:
			out = append(out, envelope(vendor, ev))
		case domain.RoleVendor:
			out = append(out, envelope(customer, ev))
		default:
			out = append(out, envelope(customer, ev), envelope(vendor, ev))
		}
		return append(out, envelope(follow, ev))
	}
	return nil
}
