// Package gateway bridges one websocket connection to the order core.
// Each session runs a reader goroutine for inbound commands and a
// writer goroutine that pushes the initial snapshot, live hub events
// and command errors, so a slow client never stalls another.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"cafe-system/internal/domain"
	"cafe-system/internal/hub"
	"cafe-system/internal/lifecycle"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Command is one inbound client message.
type Command struct {
	Type    string          `json:"type"`
	OrderID string          `json:"orderId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Envelope is one outbound server message.
type Envelope struct {
	Type   string          `json:"type"` // snapshot | order_update | error
	Order  *domain.Order   `json:"order,omitempty"`
	Orders []*domain.Order `json:"orders,omitempty"`
	Error  string          `json:"error,omitempty"`
	Ref    string          `json:"ref,omitempty"` // command type the error answers
}

// commandTargets maps the mark_* command surface onto target statuses.
var commandTargets = map[string]domain.Status{
	"mark_preparing": domain.StatusPreparing,
	"mark_ready":     domain.StatusReady,
	"mark_served":    domain.StatusServed,
	"mark_paid":      domain.StatusCompleted,
}

type Gateway struct {
	core     *lifecycle.Service
	hub      *hub.Hub
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func New(core *lifecycle.Service, h *hub.Hub, log *zap.Logger) *Gateway {
	return &Gateway{
		core: core,
		hub:  h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// role views connect from LAN origins the server cannot know up front
			CheckOrigin: func(*http.Request) bool { return true },
		},
		log: log,
	}
}

// ServeHTTP upgrades the connection and runs the session until the
// client goes away.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	sub := g.hub.Subscribe()
	s := &session{
		gw:     g,
		conn:   conn,
		sub:    sub,
		outbox: make(chan Envelope, 16),
		log:    g.log.With(zap.String("session", sub.ID)),
	}
	s.log.Info("client connected", zap.String("remote", conn.RemoteAddr().String()))
	go s.writeLoop()
	s.readLoop()
}

type session struct {
	gw     *Gateway
	conn   *websocket.Conn
	sub    *hub.Subscription
	outbox chan Envelope // session-local replies, mainly command errors
	log    *zap.Logger
}

// readLoop consumes commands until the connection drops. A malformed
// or rejected command is answered on this session only; it never stops
// the loop and never reaches other subscribers.
func (s *session) readLoop() {
	defer func() {
		s.sub.Close()
		_ = s.conn.Close()
		s.log.Info("client disconnected")
	}()
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd Command
		if err := s.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("read failed", zap.Error(err))
			}
			return
		}
		if err := s.dispatch(cmd); err != nil {
			s.log.Debug("command rejected", zap.String("type", cmd.Type), zap.Error(err))
			s.reply(Envelope{Type: "error", Error: err.Error(), Ref: cmd.Type})
		}
	}
}

func (s *session) dispatch(cmd Command) error {
	// commands already accepted here complete even if the client
	// disconnects before the broadcast goes out
	ctx := context.Background()

	switch cmd.Type {
	case "place_order":
		var req lifecycle.PlaceRequest
		if err := json.Unmarshal(cmd.Payload, &req); err != nil {
			return errors.Join(domain.ErrValidation, err)
		}
		_, err := s.gw.core.Place(ctx, req)
		return err
	default:
		target, ok := commandTargets[cmd.Type]
		if !ok {
			return errors.Join(domain.ErrValidation, errors.New("unknown command "+cmd.Type))
		}
		if cmd.OrderID == "" {
			return errors.Join(domain.ErrValidation, errors.New("orderId is required"))
		}
		_, err := s.gw.core.Advance(ctx, cmd.OrderID, target)
		return err
	}
}

// reply queues a session-local envelope, dropping it if the client is
// not draining its own replies.
func (s *session) reply(e Envelope) {
	select {
	case s.outbox <- e:
	default:
	}
}

// writeLoop sends the full snapshot first, then forwards hub events and
// session replies until the subscription or connection closes.
func (s *session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	if !s.write(Envelope{Type: "snapshot", Orders: s.gw.core.Orders()}) {
		return
	}
	for {
		select {
		case order, ok := <-s.sub.C:
			if !ok {
				// dropped by the hub or unsubscribed by the reader
				_ = s.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription closed"),
					time.Now().Add(writeWait))
				return
			}
			if !s.write(Envelope{Type: "order_update", Order: order}) {
				return
			}
		case e := <-s.outbox:
			if !s.write(e) {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *session) write(e Envelope) bool {
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(e); err != nil {
		s.log.Debug("write failed", zap.Error(err))
		return false
	}
	return true
}
