package chat

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/stylevault/backend/internal/auth"
	"github.com/stylevault/backend/internal/logger"
	"github.com/stylevault/backend/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 16
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Configure allowed origins for production
		return true
	},
}

// Client is one websocket subscriber of a session.
type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID string
	send      chan *Event
}

// WritePump pushes hub events and keepalive pings to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ReadPump drains the connection until it closes. Inbound frames are
// discarded; messages enter through the HTTP endpoint, the socket only
// streams.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		metrics.Default().ChatStreamClosed()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// WSHandler upgrades chat stream connections.
type WSHandler struct {
	hub         *Hub
	authService *auth.Service
	chatService *Service
	log         *logger.Logger
}

func NewWSHandler(hub *Hub, authService *auth.Service, chatService *Service) *WSHandler {
	return &WSHandler{
		hub:         hub,
		authService: authService,
		chatService: chatService,
		log:         logger.Default().WithComponent("chat-ws"),
	}
}

// ServeWS handles GET /chat/{session_id}/ws. Authentication uses a
// ?token= query parameter because the browser WebSocket API cannot set
// headers. The session must exist and belong to the caller before the
// connection is upgraded.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, `{"code":"UNAUTHORIZED","message":"missing token parameter"}`, http.StatusUnauthorized)
		return
	}

	user, err := h.authService.Authenticate(r.Context(), token, auth.TokenAccess)
	if err != nil {
		http.Error(w, `{"code":"INVALID_TOKEN","message":"invalid or expired token"}`, http.StatusUnauthorized)
		return
	}

	sessionID := r.PathValue("session_id")
	if _, err := h.chatService.History(r.Context(), user, sessionID); err != nil {
		switch {
		case errors.Is(err, ErrSessionNotFound):
			http.Error(w, `{"code":"SESSION_NOT_FOUND","message":"chat session not found"}`, http.StatusNotFound)
		case errors.Is(err, ErrNotSessionOwner):
			http.Error(w, `{"code":"FORBIDDEN","message":"not authorized to access this chat"}`, http.StatusForbidden)
		default:
			http.Error(w, `{"code":"INTERNAL_ERROR","message":"failed to load session"}`, http.StatusInternalServerError)
		}
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	client := &Client{
		hub:       h.hub,
		conn:      conn,
		sessionID: sessionID,
		send:      make(chan *Event, sendBufferSize),
	}
	h.hub.register <- client
	metrics.Default().ChatStreamOpened()

	go client.WritePump()
	go client.ReadPump()
}
