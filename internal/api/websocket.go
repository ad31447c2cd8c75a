package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"powpow/internal/chat"
	"powpow/internal/notify"
	"powpow/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	wsSendBuffer   = 32
	wsMaxFrameSize = 4096
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingPeriod   = wsPongWait * 9 / 10
)

// CommandSubmitter runs a chat command and waits for its reply
type CommandSubmitter interface {
	Submit(ctx context.Context, msg chat.InboundMessage) (chat.Reply, error)
}

// wsFrame is the envelope of every outbound frame
type wsFrame struct {
	Event string      `json:"event"` // "reply" or "notice"
	Data  interface{} `json:"data"`
}

type noticeData struct {
	Text string `json:"text"`
}

// wsClient is one chat identity's connection
type wsClient struct {
	conn     *websocket.Conn
	ip       string
	identity string
	name     string
	send     chan []byte
	done     chan struct{}
	doneOnce sync.Once
}

func (c *wsClient) shutdown() {
	c.doneOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// WebSocketHub manages one connection per chat identity with DoS protection.
// It is the interactive chat transport: text frames are commands, replies and
// notices are pushed back. It implements notify.Sender.
type WebSocketHub struct {
	clients map[string]*wsClient // by identity
	mu      sync.RWMutex

	commands     CommandSubmitter
	replyTimeout time.Duration
	upgrader     websocket.Upgrader
	log          *logrus.Entry

	// Connection limiting, total and per IP
	conns *ConnectionLimiter
}

// NewWebSocketHub creates a new hub with connection limiting. A nil conns
// uses the default limits. allowedOrigins follows IsAllowedOrigin.
func NewWebSocketHub(commands CommandSubmitter, conns *ConnectionLimiter, replyTimeout time.Duration, allowedOrigins []string) *WebSocketHub {
	if replyTimeout <= 0 {
		replyTimeout = 5 * time.Second
	}
	if conns == nil {
		conns = NewConnectionLimiter(0, 0)
	}

	h := &WebSocketHub{
		clients:      make(map[string]*wsClient),
		commands:     commands,
		replyTimeout: replyTimeout,
		log:          logger.Component("websocket"),
		conns:        conns,
	}

	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")

			// Non-browser chat bridges send no Origin
			if origin == "" || IsAllowedOrigin(origin, allowedOrigins) {
				return true
			}

			h.log.WithField("origin", origin).Warn("WebSocket connection rejected")
			RecordConnectionRejected("origin")
			return false
		},
	}

	return h
}

// Send pushes a notice to the identity's connection
func (h *WebSocketHub) Send(ctx context.Context, identity, text string) error {
	h.mu.RLock()
	c, ok := h.clients[identity]
	h.mu.RUnlock()
	if !ok {
		return notify.ErrNotConnected
	}

	payload, err := json.Marshal(wsFrame{Event: "notice", Data: noticeData{Text: text}})
	if err != nil {
		return err
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return notify.ErrNotConnected
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ClientCount returns the number of connected identities
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Connected reports whether the identity has an open connection
func (h *WebSocketHub) Connected(identity string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[identity]
	return ok
}

// Close drops every connection
func (h *WebSocketHub) Close() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.shutdown()
	}
}

// register adds c, replacing any older connection of the same identity
func (h *WebSocketHub) register(c *wsClient) {
	h.mu.Lock()
	old := h.clients[c.identity]
	h.clients[c.identity] = c
	count := len(h.clients)
	h.mu.Unlock()

	if old != nil {
		old.shutdown()
	}

	h.log.WithFields(logrus.Fields{
		"identity": c.identity,
		"ip":       c.ip,
		"total":    count,
	}).Info("Client connected")
	UpdateWSConnections(count)
}

func (h *WebSocketHub) unregister(c *wsClient) {
	h.mu.Lock()
	if h.clients[c.identity] == c {
		delete(h.clients, c.identity)
	}
	count := len(h.clients)
	h.mu.Unlock()

	c.shutdown()
	h.conns.Release(c.ip)

	h.log.WithFields(logrus.Fields{
		"identity":  c.identity,
		"remaining": count,
	}).Info("Client disconnected")
	UpdateWSConnections(count)
}

// HandleWebSocket handles GET /ws?identity=&name= with DoS protection
func (h *WebSocketHub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ip := GetClientIP(r)

	identity := strings.TrimSpace(r.URL.Query().Get("identity"))
	if identity == "" {
		RecordConnectionRejected("identity")
		http.Error(w, "identity is required", http.StatusBadRequest)
		return
	}
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		name = identity
	}

	if reason, ok := h.conns.Acquire(ip); !ok {
		h.log.WithFields(logrus.Fields{"ip": ip, "reason": reason}).Warn("WebSocket connection rejected")
		RecordConnectionRejected(reason)
		if reason == "ws_total_limit" {
			http.Error(w, "Too many connections", http.StatusServiceUnavailable)
		} else {
			http.Error(w, "Too many connections from your IP", http.StatusTooManyRequests)
		}
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("WebSocket upgrade failed")
		h.conns.Release(ip) // Release the slot we reserved
		return
	}

	c := &wsClient{
		conn:     conn,
		ip:       ip,
		identity: identity,
		name:     name,
		send:     make(chan []byte, wsSendBuffer),
		done:     make(chan struct{}),
	}
	h.register(c)

	go h.writePump(c)
	go h.readPump(c)
}

// readPump turns each text frame into a command. Frames are handled one at
// a time so replies keep the order of the commands.
func (h *WebSocketHub) readPump(c *wsClient) {
	defer h.unregister(c)

	c.conn.SetReadLimit(wsMaxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		kind, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		reply := h.submit(c, string(message))
		payload, err := json.Marshal(wsFrame{Event: "reply", Data: reply})
		if err != nil {
			continue
		}

		select {
		case c.send <- payload:
		case <-c.done:
			return
		}
	}
}

func (h *WebSocketHub) submit(c *wsClient, text string) chat.Reply {
	ctx, cancel := context.WithTimeout(context.Background(), h.replyTimeout)
	defer cancel()

	reply, err := h.commands.Submit(ctx, chat.InboundMessage{
		Identity:    c.identity,
		DisplayName: c.name,
		Text:        text,
		ReceivedAt:  time.Now(),
	})
	if err != nil {
		return chat.Reply{Identity: c.identity, Text: submitErrorText(err), Err: err}
	}
	return reply
}

// writePump owns every write on the connection
func (h *WebSocketHub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.shutdown()
				return
			}
			IncrementWSMessages()

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		}
	}
}

// submitErrorText is the reply when a command never reached the engine
func submitErrorText(err error) string {
	if errors.Is(err, chat.ErrQueueFull) {
		return chat.MsgSlowDown
	}
	return chat.MsgInternal
}
