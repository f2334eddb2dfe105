package httpx

import (
	"net/http"

	"food-marketplace/internal/domain"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

// ActorFromRequest reads the identity set by the upstream session layer.
// Browsers cannot set headers on a WebSocket upgrade, so allowQuery also
// accepts actor_id and role query parameters.
func ActorFromRequest(r *http.Request, allowQuery bool) (domain.Actor, error) {
	id := r.Header.Get(HeaderActorID)
	role := r.Header.Get(HeaderActorRole)
	if allowQuery {
		q := r.URL.Query()
		if id == "" {
			id = q.Get("actor_id")
		}
		if role == "" {
			role = q.Get("role")
		}
	}
	if id == "" {
		return domain.Actor{}, domain.NewError(domain.ErrUnauthorized, domain.ReasonRoleMismatch, "missing actor identity")
	}
	parsed, err := domain.ParseRole(role)
	if err != nil {
		return domain.Actor{}, domain.NewError(domain.ErrUnauthorized, domain.ReasonRoleMismatch, "unknown role %q", role)
	}
	return domain.Actor{ID: id, Role: parsed}, nil
}
