package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"soccer-game/internal/logger"
	"soccer-game/internal/matchmaking"
	"soccer-game/internal/middleware"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 512
	sendBufferSize = 256
	frameTimeout   = 15 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// Hub tracks every open session per participant. A participant may have
// several sessions open; events go to all of them.
type Hub struct {
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	deliver    chan *Delivery
	done       chan struct{}
	stopped    chan struct{}
	stopOnce   sync.Once
	running    atomic.Bool
	callbacks  sync.WaitGroup

	onLastDisconnect func(participantID string)
	log              *zap.Logger
}

type Client struct {
	hub           *Hub
	conn          *websocket.Conn
	participantID string
	send          chan []byte
	handle        func(c *Client, message []byte)
}

// Delivery is a message for all of a participant's sessions, or only for
// Client when it is set.
type Delivery struct {
	ParticipantID string
	Client        *Client
	Message       []byte
}

func NewHub(l *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan *Delivery, sendBufferSize),
		done:       make(chan struct{}),
		stopped:    make(chan struct{}),
		log:        logger.OrNop(l).With(zap.String("component", "hub")),
	}
}

// SetDisconnectHandler sets the callback run once a participant's last
// session has closed. Call before Run.
func (h *Hub) SetDisconnectHandler(fn func(participantID string)) {
	h.onLastDisconnect = fn
}

func (h *Hub) Run() {
	h.running.Store(true)
	defer close(h.stopped)

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.participantID] == nil {
				h.clients[client.participantID] = make(map[*Client]struct{})
			}
			h.clients[client.participantID][client] = struct{}{}
			n := len(h.clients[client.participantID])
			h.mu.Unlock()
			h.log.Debug("client registered", zap.String("participantId", client.participantID), zap.Int("sessions", n))

		case client := <-h.unregister:
			h.mu.Lock()
			last := h.removeLocked(client)
			h.mu.Unlock()
			if last {
				h.lastSessionClosed(client.participantID)
			}

		case d := <-h.deliver:
			var dropped []string
			h.mu.Lock()
			targets := h.clients[d.ParticipantID]
			for client := range targets {
				if d.Client != nil && d.Client != client {
					continue
				}
				select {
				case client.send <- d.Message:
				default:
					// Slow consumer; close it rather than block the hub.
					if h.removeLocked(client) {
						dropped = append(dropped, client.participantID)
					}
				}
			}
			h.mu.Unlock()
			for _, id := range dropped {
				h.lastSessionClosed(id)
			}

		case <-h.done:
			h.mu.Lock()
			for _, set := range h.clients {
				for client := range set {
					close(client.send)
				}
			}
			h.clients = make(map[string]map[*Client]struct{})
			h.mu.Unlock()
			return
		}
	}
}

// Stop closes every session, ends Run and waits for in-flight disconnect
// callbacks.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
	if h.running.Load() {
		<-h.stopped
		h.callbacks.Wait()
	}
}

// removeLocked drops client and reports whether it was the participant's
// last session.
func (h *Hub) removeLocked(client *Client) bool {
	set, ok := h.clients[client.participantID]
	if !ok {
		return false
	}
	if _, ok := set[client]; !ok {
		return false
	}
	delete(set, client)
	close(client.send)
	if len(set) > 0 {
		return false
	}
	delete(h.clients, client.participantID)
	return true
}

// lastSessionClosed runs the disconnect callback off the hub goroutine, since
// the callback usually sends events back through the hub. A participant that
// reconnected in the meantime is left alone.
func (h *Hub) lastSessionClosed(participantID string) {
	h.log.Debug("last session closed", zap.String("participantId", participantID))
	if h.onLastDisconnect == nil {
		return
	}
	h.callbacks.Add(1)
	go func() {
		defer h.callbacks.Done()
		if h.Connected(participantID) {
			return
		}
		h.onLastDisconnect(participantID)
	}()
}

// Connected reports whether participantID has at least one open session.
func (h *Hub) Connected(participantID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[participantID]) > 0
}

// Sessions returns the number of open sessions for participantID.
func (h *Hub) Sessions(participantID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[participantID])
}

// Deliver queues message for every session of participantID. It is the local
// delivery target of the event bus.
func (h *Hub) Deliver(participantID string, message []byte) {
	h.enqueue(&Delivery{ParticipantID: participantID, Message: message})
}

func (h *Hub) reply(client *Client, message []byte) {
	h.enqueue(&Delivery{ParticipantID: client.participantID, Client: client, Message: message})
}

func (h *Hub) enqueue(d *Delivery) {
	select {
	case h.deliver <- d:
	case <-h.done:
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read error", zap.String("participantId", c.participantID), zap.Error(err))
			}
			break
		}
		if c.handle != nil {
			c.handle(c, message)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
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

// SessionNotifier pushes matchmaking events to participants: directly to the
// sessions held by this process, and through the event bus to sessions held
// by other instances.
type SessionNotifier struct {
	hub *Hub
	bus Publisher
	log *zap.Logger
}

// Publisher fans an encoded event out to other instances.
type Publisher interface {
	Enabled() bool
	Publish(participantID string, payload []byte)
}

func NewSessionNotifier(hub *Hub, bus Publisher, l *zap.Logger) *SessionNotifier {
	return &SessionNotifier{hub: hub, bus: bus, log: logger.OrNop(l)}
}

var _ matchmaking.Notifier = (*SessionNotifier)(nil)

func (n *SessionNotifier) Notify(participantID string, event matchmaking.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.log.Error("failed to marshal event", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}

	n.hub.Deliver(participantID, payload)
	if n.bus != nil && n.bus.Enabled() {
		go n.bus.Publish(participantID, payload)
	}
}

// Inbound frame types.
const (
	frameJoinQueue  = "joinQueue"
	frameAgree      = "agree"
	frameLeaveQueue = "leaveQueue"
	frameStatus     = "status"
)

type inboundFrame struct {
	Type string `json:"type"`
}

// WSReply answers an inbound frame on the session that sent it.
type WSReply struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
	Code  string      `json:"code,omitempty"`
}

type WebSocketHandler struct {
	hub *Hub
	mm  Matchmaker
	log *zap.Logger
}

func NewWebSocketHandler(hub *Hub, mm Matchmaker, l *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, mm: mm, log: logger.OrNop(l)}
}

// HandleMatchmakingWebSocket upgrades an authenticated request to a
// matchmaking session.
// GET /ws/matchmaking
func (h *WebSocketHandler) HandleMatchmakingWebSocket(w http.ResponseWriter, r *http.Request) {
	participantID, ok := middleware.GetParticipantID(r.Context())
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.String("participantId", participantID), zap.Error(err))
		return
	}

	client := &Client{
		hub:           h.hub,
		conn:          conn,
		participantID: participantID,
		send:          make(chan []byte, sendBufferSize),
		handle:        h.handleFrame,
	}

	select {
	case h.hub.register <- client:
	case <-h.hub.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()

	h.sendReply(client, WSReply{Type: frameStatus, Data: h.mm.Status(participantID)})
}

func (h *WebSocketHandler) handleFrame(c *Client, message []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		h.sendReply(c, WSReply{Type: "error", Error: "Invalid message", Code: "INVALID_MESSAGE"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), frameTimeout)
	defer cancel()

	switch frame.Type {
	case frameJoinQueue:
		res, err := h.mm.Join(ctx, c.participantID)
		if err != nil {
			h.log.Error("join failed", zap.String("participantId", c.participantID), zap.Error(err))
			h.sendReply(c, WSReply{Type: "error", Error: "Failed to join queue"})
			return
		}
		h.sendReply(c, WSReply{Type: "joinResult", Data: res})

	case frameAgree:
		res, err := h.mm.Agree(ctx, c.participantID)
		code, body := agreeOutcome(res, err)
		if errBody, ok := body.(ErrorResponse); ok {
			if code >= http.StatusInternalServerError {
				h.log.Warn("agree failed", zap.String("participantId", c.participantID), zap.Error(err))
			}
			h.sendReply(c, WSReply{Type: "error", Error: errBody.Error, Code: errBody.Code})
			return
		}
		h.sendReply(c, WSReply{Type: "agreeResult", Data: body})

	case frameLeaveQueue:
		h.sendReply(c, WSReply{Type: "leaveResult", Data: h.mm.Leave(ctx, c.participantID)})

	case frameStatus:
		h.sendReply(c, WSReply{Type: frameStatus, Data: h.mm.Status(c.participantID)})

	default:
		h.sendReply(c, WSReply{Type: "error", Error: "Unknown message type", Code: "UNKNOWN_TYPE"})
	}
}

func (h *WebSocketHandler) sendReply(c *Client, reply WSReply) {
	data, err := json.Marshal(reply)
	if err != nil {
		h.log.Error("failed to marshal reply", zap.String("type", reply.Type), zap.Error(err))
		return
	}
	h.hub.reply(c, data)
}
