// Package realtime routes order events to connected sessions.
//
// A Router keeps channel membership: every session sits in its identity
// channel (user:<id>) and its role channel (role:<role>) for as long as it is
// connected, and joins order channels (order:<id>) on request. Delivery never
// blocks. Each session owns a bounded buffer and an event that does not fit is
// dropped and counted.
package realtime

import (
	"sync"

	"github.com/google/uuid"

	"food-marketplace/internal/common/logger"
	"food-marketplace/internal/common/metrics"
	"food-marketplace/internal/domain"
)

// Session is one connected client.
type Session struct {
	ID    string
	Actor domain.Actor

	send      chan domain.Event
	done      chan struct{}
	closeOnce sync.Once

	// guarded by Router.mu
	channels map[domain.ChannelKey]struct{}
}

// Events is the session's outbound queue.
func (s *Session) Events() <-chan domain.Event { return s.send }

// Done is closed once the session has been disconnected.
func (s *Session) Done() <-chan struct{} { return s.done }

type Router struct {
	mu       sync.RWMutex
	channels map[domain.ChannelKey]map[string]*Session
	sessions map[string]*Session

	bufferSize int
	metrics    *metrics.RealtimeMetrics
	log        *logger.Logger
}

func NewRouter(bufferSize int, m *metrics.RealtimeMetrics, lg *logger.Logger) *Router {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Router{
		channels:   make(map[domain.ChannelKey]map[string]*Session),
		sessions:   make(map[string]*Session),
		bufferSize: bufferSize,
		metrics:    m,
		log:        lg,
	}
}

// Connect registers a session for actor in its identity and role channels.
func (r *Router) Connect(actor domain.Actor) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		Actor:    actor,
		send:     make(chan domain.Event, r.bufferSize),
		done:     make(chan struct{}),
		channels: make(map[domain.ChannelKey]struct{}),
	}
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.join(s, domain.UserChannel(actor.ID))
	r.join(s, domain.RoleChannel(actor.Role))
	r.mu.Unlock()

	r.metrics.Sessions.Inc()
	r.log.Debug("session_connected", map[string]any{"session_id": s.ID, "actor": actor.String()})
	return s
}

// Disconnect removes the session from every channel. Calling it twice is
// harmless.
func (r *Router) Disconnect(s *Session) {
	r.mu.Lock()
	_, ok := r.sessions[s.ID]
	if ok {
		for key := range s.channels {
			r.leave(s, key)
		}
		delete(r.sessions, s.ID)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	s.closeOnce.Do(func() { close(s.done) })
	r.metrics.Sessions.Dec()
	r.log.Debug("session_disconnected", map[string]any{"session_id": s.ID, "actor": s.Actor.String()})
}

// Join adds a connected session to key. It reports false for a session that
// has already been disconnected.
func (r *Router) Join(s *Session, key domain.ChannelKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return false
	}
	r.join(s, key)
	return true
}

func (r *Router) Leave(s *Session, key domain.ChannelKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leave(s, key)
}

func (r *Router) join(s *Session, key domain.ChannelKey) {
	members, ok := r.channels[key]
	if !ok {
		members = make(map[string]*Session)
		r.channels[key] = members
	}
	members[s.ID] = s
	s.channels[key] = struct{}{}
}

func (r *Router) leave(s *Session, key domain.ChannelKey) {
	if members, ok := r.channels[key]; ok {
		delete(members, s.ID)
		if len(members) == 0 {
			delete(r.channels, key)
		}
	}
	delete(s.channels, key)
}

// DeliveryStats summarises one Deliver call.
type DeliveryStats struct {
	Delivered int
	Dropped   int
}

// Deliver routes envelopes in order. A session reachable through several of
// the envelopes' channels gets each event once.
func (r *Router) Deliver(envs []domain.Envelope) DeliveryStats {
	var stats DeliveryStats
	seen := make(map[string]map[string]struct{})

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, env := range envs {
		got, ok := seen[env.Event.ID]
		if !ok {
			got = make(map[string]struct{})
			seen[env.Event.ID] = got
		}
		for id, s := range r.channels[env.Channel] {
			if _, dup := got[id]; dup {
				continue
			}
			got[id] = struct{}{}
			select {
			case s.send <- env.Event:
				stats.Delivered++
			default:
				stats.Dropped++
				r.metrics.Dropped.WithLabelValues("buffer_full").Inc()
				r.log.Warn("event_dropped", map[string]any{
					"session_id": s.ID,
					"event_id":   env.Event.ID,
					"event_type": env.Event.Type,
					"order_id":   env.Event.OrderID,
				})
			}
		}
	}
	r.metrics.Delivered.Add(float64(stats.Delivered))
	return stats
}

// Members returns how many sessions are in key.
func (r *Router) Members(key domain.ChannelKey) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[key])
}

func (r *Router) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
