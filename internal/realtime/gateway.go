package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"food-marketplace/internal/common/httpx"
	"food-marketplace/internal/common/logger"
	"food-marketplace/internal/domain"
)

// OrderAccess decides whether actor may follow an order's channel.
type OrderAccess interface {
	CanFollow(ctx context.Context, actor domain.Actor, orderID string) error
}

type GatewayConfig struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

func (c GatewayConfig) withDefaults() GatewayConfig {
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	return c
}

// ClientMessage is what clients send over the socket.
type ClientMessage struct {
	Action  string `json:"action"`
	OrderID string `json:"order_id"`
}

// ControlMessage answers a ClientMessage.
type ControlMessage struct {
	Type    string `json:"type"`
	OrderID string `json:"order_id,omitempty"`
	Error   string `json:"error,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type Gateway struct {
	router   *Router
	access   OrderAccess
	cfg      GatewayConfig
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewGateway(r *Router, access OrderAccess, cfg GatewayConfig, lg *logger.Logger) *Gateway {
	return &Gateway{
		router: r,
		access: access,
		cfg:    cfg.withDefaults(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// identity comes from the trusted session layer in front of us
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: lg,
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, err := httpx.ActorFromRequest(r, true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error
		g.log.Warn("ws_upgrade_failed", map[string]any{"actor": actor.String(), "error": err.Error()})
		return
	}

	s := g.router.Connect(actor)
	c := &wsConn{
		conn:    conn,
		session: s,
		control: make(chan ControlMessage, 8),
		gw:      g,
	}
	go c.writePump()
	c.readPump(r.Context())
}

type wsConn struct {
	conn    *websocket.Conn
	session *Session
	control chan ControlMessage
	gw      *Gateway
}

// readPump owns the read side and tears the session down when the client
// goes away.
func (c *wsConn) readPump(ctx context.Context) {
	defer func() {
		c.gw.router.Disconnect(c.session)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(c.gw.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.gw.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.gw.cfg.PongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.gw.log.Warn("ws_read_failed", map[string]any{"session_id": c.session.ID, "error": err.Error()})
			}
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply(ControlMessage{Type: "error", Error: "malformed message"})
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *wsConn) handle(ctx context.Context, msg ClientMessage) {
	if msg.OrderID == "" {
		c.reply(ControlMessage{Type: "error", Error: "order_id is required"})
		return
	}
	key := domain.OrderChannel(msg.OrderID)
	switch msg.Action {
	case "subscribe":
		if err := c.gw.access.CanFollow(ctx, c.session.Actor, msg.OrderID); err != nil {
			c.reply(ControlMessage{Type: "error", OrderID: msg.OrderID, Error: err.Error(), Reason: domain.ReasonOf(err)})
			return
		}
		if c.gw.router.Join(c.session, key) {
			c.reply(ControlMessage{Type: "subscribed", OrderID: msg.OrderID})
		}
	case "unsubscribe":
		c.gw.router.Leave(c.session, key)
		c.reply(ControlMessage{Type: "unsubscribed", OrderID: msg.OrderID})
	default:
		c.reply(ControlMessage{Type: "error", OrderID: msg.OrderID, Error: "unknown action " + msg.Action})
	}
}

func (c *wsConn) reply(m ControlMessage) {
	select {
	case c.control <- m:
	default:
	}
}

// writePump is the only writer on the connection.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.gw.cfg.PongWait * 9 / 10)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev := <-c.session.Events():
			if err := c.writeJSON(ev); err != nil {
				return
			}
		case m := <-c.control:
			if err := c.writeJSON(m); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.gw.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.session.Done():
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.gw.cfg.WriteWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *wsConn) writeJSON(v any) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.gw.cfg.WriteWait))
	return c.conn.WriteJSON(v)
}
