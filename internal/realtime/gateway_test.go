package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"food-marketplace/internal/common/logger"
	"food-marketplace/internal/domain"
)

type staticAccess map[string]string // order ID -> only actor allowed

func (a staticAccess) CanFollow(_ context.Context, actor domain.Actor, orderID string) error {
	owner, ok := a[orderID]
	if !ok {
		return domain.NotFound("order %s", orderID)
	}
	if owner != actor.ID {
		return domain.NewError(domain.ErrUnauthorized, domain.ReasonOwnershipMismatch, "not a participant")
	}
	return nil
}

func startGateway(t *testing.T, r *Router) *httptest.Server {
	t.Helper()
	gw := NewGateway(r, staticAccess{"o-1": "cust-1"}, GatewayConfig{PongWait: time.Second}, logger.Discard())
	srv := httptest.NewServer(gw)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, actor domain.Actor) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	h := http.Header{}
	h.Set("X-Actor-ID", actor.ID)
	h.Set("X-Actor-Role", string(actor.Role))
	conn, _, err := websocket.DefaultDialer.Dial(url, h)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestGateway_SubscribeAndReceive(t *testing.T) {
	r := newTestRouter(8)
	srv := startGateway(t, r)
	conn := dial(t, srv, customer)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "subscribe", OrderID: "o-1"}))
	var ack ControlMessage
	readJSON(t, conn, &ack)
	assert.Equal(t, "subscribed", ack.Type)
	assert.Equal(t, 1, r.Members(domain.OrderChannel("o-1")))

	ev := testEvent("o-1", domain.OrderAccepted{VendorID: "vend-1"})
	r.Deliver([]domain.Envelope{
		{Channel: domain.UserChannel("cust-1"), Event: ev},
		{Channel: domain.OrderChannel("o-1"), Event: ev},
	})

	var got domain.Event
	readJSON(t, conn, &got)
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, domain.EventOrderAccepted, got.Type)

	// the duplicate envelope must not produce a second frame
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestGateway_SubscribeDenied(t *testing.T) {
	r := newTestRouter(8)
	srv := startGateway(t, r)
	conn := dial(t, srv, vendor)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "subscribe", OrderID: "o-1"}))
	var reply ControlMessage
	readJSON(t, conn, &reply)
	assert.Equal(t, "error", reply.Type)
	assert.Equal(t, domain.ReasonOwnershipMismatch, reply.Reason)
	assert.Equal(t, 0, r.Members(domain.OrderChannel("o-1")))
}

func TestGateway_UnknownAction(t *testing.T) {
	r := newTestRouter(8)
	srv := startGateway(t, r)
	conn := dial(t, srv, customer)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "teleport", OrderID: "o-1"}))
	var reply ControlMessage
	readJSON(t, conn, &reply)
	assert.Equal(t, "error", reply.Type)
}

func TestGateway_DisconnectLeavesChannels(t *testing.T) {
	r := newTestRouter(8)
	srv := startGateway(t, r)
	conn := dial(t, srv, customer)

	require.NoError(t, conn.WriteJSON(ClientMessage{Action: "subscribe", OrderID: "o-1"}))
	var ack ControlMessage
	readJSON(t, conn, &ack)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return r.SessionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, r.Members(domain.OrderChannel("o-1")))
	assert.Equal(t, 0, r.Members(domain.UserChannel("cust-1")))
}

func TestGateway_RequiresIdentity(t *testing.T) {
	r := newTestRouter(8)
	srv := startGateway(t, r)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?actor_id=drv-1&role=delivery", nil)
	require.NoError(t, err)
	_ = conn.Close()
}
