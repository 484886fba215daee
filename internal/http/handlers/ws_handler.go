package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/collab-platform/backend/internal/auth"
	"github.com/collab-platform/backend/internal/config"
	"github.com/collab-platform/backend/internal/events"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WSHub fans redis events out to open sockets. User events are routed by
// the user_id in the payload; negotiation events go to sockets that
// subscribed to that chat. Subscribing also marks presence, which
// suppresses push for that user.
type WSHub struct {
	cfg        *config.Config
	subscriber events.Subscriber
	presence   events.Presence
	log        *zap.Logger

	mu    sync.RWMutex
	conns map[uuid.UUID][]*wsConn
}

// messageWriter is the slice of *websocket.Conn the hub writes through.
type messageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

type wsConn struct {
	conn   messageWriter
	userID uuid.UUID

	// gorilla/fasthttp sockets allow one concurrent writer; the two
	// subscriber goroutines both deliver here.
	writeMu sync.Mutex

	mu   sync.Mutex
	subs map[uuid.UUID]bool // negotiation ids this socket watches
}

func (wc *wsConn) write(data []byte) error {
	wc.writeMu.Lock()
	defer wc.writeMu.Unlock()
	return wc.conn.WriteMessage(websocket.TextMessage, data)
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, presence events.Presence, log *zap.Logger) *WSHub {
	return &WSHub{
		cfg:        cfg,
		subscriber: subscriber,
		presence:   presence,
		log:        log,
		conns:      make(map[uuid.UUID][]*wsConn),
	}
}

func (h *WSHub) Start(ctx context.Context) {
	_ = h.subscriber.Subscribe(ctx, events.StreamNegotiation, func(event events.Event) {
		h.routeNegotiation(event)
	})
	_ = h.subscriber.Subscribe(ctx, events.StreamUser, func(event events.Event) {
		h.routeUser(event)
	})
}

func (h *WSHub) routeNegotiation(event events.Event) {
	negID, ok := payloadUUID(event.Payload, "negotiation_id")
	if !ok {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, list := range h.conns {
		for _, wc := range list {
			wc.mu.Lock()
			watching := wc.subs[negID]
			wc.mu.Unlock()
			if watching {
				_ = wc.write(data)
			}
		}
	}
}

func (h *WSHub) routeUser(event events.Event) {
	userID, ok := payloadUUID(event.Payload, "user_id")
	if !ok {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, wc := range h.conns[userID] {
		_ = wc.write(data)
	}
}

func payloadUUID(payload map[string]any, key string) (uuid.UUID, bool) {
	s, _ := payload[key].(string)
	if s == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

type wsClientMessage struct {
	Type          string `json:"type"` // subscribe / unsubscribe
	NegotiationID string `json:"negotiation_id"`
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	wc := &wsConn{conn: conn, userID: claims.UserID, subs: make(map[uuid.UUID]bool)}

	h.mu.Lock()
	h.conns[wc.userID] = append(h.conns[wc.userID], wc)
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		list := h.conns[wc.userID]
		for i, c := range list {
			if c == wc {
				h.conns[wc.userID] = append(list[:i], list[i+1:]...)
				break
			}
		}
		if len(h.conns[wc.userID]) == 0 {
			delete(h.conns, wc.userID)
		}
		h.mu.Unlock()

		wc.mu.Lock()
		for negID := range wc.subs {
			_ = h.presence.Leave(context.Background(), negID, wc.userID)
		}
		wc.mu.Unlock()
		conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var msg wsClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		negID, err := uuid.Parse(msg.NegotiationID)
		if err != nil {
			continue
		}

		switch msg.Type {
		case "subscribe":
			wc.mu.Lock()
			wc.subs[negID] = true
			wc.mu.Unlock()
			if err := h.presence.Join(context.Background(), negID, wc.userID); err != nil {
				h.log.Warn("presence join failed", zap.Error(err))
			}
		case "unsubscribe":
			wc.mu.Lock()
			delete(wc.subs, negID)
			wc.mu.Unlock()
			if err := h.presence.Leave(context.Background(), negID, wc.userID); err != nil {
				h.log.Warn("presence leave failed", zap.Error(err))
			}
		}
	}
}
