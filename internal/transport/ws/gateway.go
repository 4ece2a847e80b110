package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"intake/internal/domain"
	"intake/internal/events"
	"intake/internal/observability/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Path is the fixed notification endpoint clients dial.
const Path = "/ws/notifications"

const (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
	maxMsgSize   = 512
	sendBuffer   = 16
)

// SessionLookup is the narrow gate the gateway authenticates upgrades
// against; it hides the session backend entirely.
type SessionLookup interface {
	Lookup(ctx context.Context, token string) (domain.UserID, domain.SessionID, error)
}

// PendingCounter supplies the best-effort pending-items snapshot sent right
// after a connection authenticates.
type PendingCounter interface {
	CountOpenTickets(ctx context.Context, userID uuid.UUID) (int64, error)
	CountOpenTasks(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Gateway owns the connection registry. All registry mutation happens behind
// one mutex via register/unregister/authenticate/sweep; nothing else touches
// the maps.
type Gateway struct {
	sessions   SessionLookup
	pending    PendingCounter // optional
	cookieName string
	upgrader   websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	users   map[domain.UserID]map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte

	// sessionUser comes from the upgrade cookie; the AUTH message must
	// declare the same user.
	sessionUser domain.UserID

	// Guarded by Gateway.mu.
	userID        domain.UserID
	isAlive       bool
	authenticated bool
}

func NewGateway(sessions SessionLookup, pending PendingCounter, cookieName string) *Gateway {
	return &Gateway{
		sessions:   sessions,
		pending:    pending,
		cookieName: cookieName,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Cross-origin policy is enforced by the HTTP middleware
			// stack; the cookie gate below is the real check.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
		users:   make(map[domain.UserID]map[*client]struct{}),
	}
}

// authMessage is the one client-initiated frame the gateway understands.
type authMessage struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type ackMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type pendingMessage struct {
	Type        string `json:"type"`
	OpenTickets int64  `json:"openTickets"`
	OpenTasks   int64  `json:"openTasks"`
}

// ServeHTTP gates the upgrade on a live session cookie. Anything else gets a
// plain HTTP error and never reaches the WebSocket handshake.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	cookie, err := r.Cookie(g.cookieName)
	if err != nil || cookie.Value == "" {
		http.Error(w, "missing session", http.StatusUnauthorized)
		return
	}
	userID, _, err := g.sessions.Lookup(r.Context(), cookie.Value)
	if err != nil {
		http.Error(w, "invalid session", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake failure.
		slog.Warn("ws upgrade failed", "error", err, "remote", r.RemoteAddr)
		return
	}

	c := &client{
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		sessionUser: userID,
		isAlive:     true,
	}
	g.register(c)

	conn.SetReadLimit(maxMsgSize)
	conn.SetPongHandler(func(string) error {
		g.markAlive(c)
		return nil
	})

	go c.writePump()
	g.readLoop(c)
}

// readLoop runs on the request goroutine until the peer goes away. Errors
// here only ever cost this one connection.
func (g *Gateway) readLoop(c *client) {
	defer func() {
		g.unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("ws read", "error", err)
			}
			return
		}
		var msg authMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type != "AUTH" {
			continue
		}
		declared, err := uuid.Parse(msg.UserID)
		if err != nil || declared != c.sessionUser {
			slog.Warn("ws auth mismatch", "session_user", c.sessionUser, "declared", msg.UserID)
			return
		}
		g.authenticate(c, declared)
	}
}

func (c *client) writePump() {
	defer func() { _ = c.conn.Close() }()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	// Registry dropped us; say goodbye before closing.
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
}

func (g *Gateway) register(c *client) {
	g.mu.Lock()
	g.clients[c] = struct{}{}
	g.mu.Unlock()
	metrics.WSConnections.Inc()
}

// unregister removes the connection from the global set and its user set,
// dropping the user entry when it empties. Idempotent: close and liveness
// eviction can race.
func (g *Gateway) unregister(c *client) {
	g.mu.Lock()
	if _, ok := g.clients[c]; !ok {
		g.mu.Unlock()
		return
	}
	delete(g.clients, c)
	if c.authenticated {
		if set, ok := g.users[c.userID]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(g.users, c.userID)
			}
		}
	}
	g.mu.Unlock()
	close(c.send)
	metrics.WSConnections.Dec()
}

func (g *Gateway) authenticate(c *client, userID domain.UserID) {
	g.mu.Lock()
	if _, ok := g.clients[c]; !ok {
		g.mu.Unlock()
		return
	}
	c.authenticated = true
	c.userID = userID
	set, ok := g.users[userID]
	if !ok {
		set = make(map[*client]struct{})
		g.users[userID] = set
	}
	set[c] = struct{}{}
	g.mu.Unlock()

	c.trySend(mustJSON(ackMessage{Type: "AUTH_ACK", Message: "authenticated"}))
	g.sendPendingSnapshot(c, userID)
	slog.Info("ws client authenticated", "user_id", userID)
}

// sendPendingSnapshot is best effort: a failed count query is logged, never
// fatal to the connection.
func (g *Gateway) sendPendingSnapshot(c *client, userID domain.UserID) {
	if g.pending == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tickets, err := g.pending.CountOpenTickets(ctx, userID)
	if err != nil {
		slog.Warn("pending ticket count failed", "user_id", userID, "error", err)
		return
	}
	tasks, err := g.pending.CountOpenTasks(ctx, userID)
	if err != nil {
		slog.Warn("pending task count failed", "user_id", userID, "error", err)
		return
	}
	c.trySend(mustJSON(pendingMessage{Type: "PENDING", OpenTickets: tickets, OpenTasks: tasks}))
}

func (g *Gateway) markAlive(c *client) {
	g.mu.Lock()
	c.isAlive = true
	g.mu.Unlock()
}

// Broadcast delivers an event to every authenticated, open connection. Note
// this is deliberately global even when the event names a target user — the
// registry's per-user bookkeeping only serves teardown and introspection.
// Callers needing user-scoped delivery must filter upstream.
func (g *Gateway) Broadcast(n events.Notification) {
	if n.Type == "" {
		n.Type = events.TypeNotification
	}
	data, err := json.Marshal(n)
	if err != nil {
		slog.Error("notification marshal failed", "error", err)
		return
	}

	g.mu.Lock()
	targets := make([]*client, 0, len(g.clients))
	for c := range g.clients {
		if c.authenticated {
			targets = append(targets, c)
		}
	}
	g.mu.Unlock()

	for _, c := range targets {
		if c.trySend(data) {
			metrics.WSNotificationsSentTotal.Inc()
		}
	}
}

// Run drives the liveness sweep until the context ends.
func (g *Gateway) Run(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Sweep()
		}
	}
}

// Sweep terminates connections that missed the previous ping, then arms the
// next round: isAlive drops to false and only a pong raises it again.
func (g *Gateway) Sweep() {
	g.mu.Lock()
	var stale, live []*client
	for c := range g.clients {
		if !c.isAlive {
			stale = append(stale, c)
			continue
		}
		c.isAlive = false
		live = append(live, c)
	}
	g.mu.Unlock()

	for _, c := range stale {
		slog.Info("ws liveness eviction", "user_id", c.userID)
		g.unregister(c)
		_ = c.conn.Close()
	}
	for _, c := range live {
		// WriteControl is safe alongside the writePump.
		if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
			g.unregister(c)
			_ = c.conn.Close()
		}
	}
}

// trySend queues without blocking; a connection too slow to drain its buffer
// loses the message rather than stalling the broadcaster.
func (c *client) trySend(data []byte) bool {
	defer func() {
		// send may close under us when eviction races a broadcast.
		_ = recover()
	}()
	select {
	case c.send <- data:
		return true
	default:
		slog.Warn("ws send buffer full, dropping", "user_id", c.userID)
		return false
	}
}

// ConnectionCount reports open (registered) connections.
func (g *Gateway) ConnectionCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// UserConnectionCount reports authenticated connections for one user.
func (g *Gateway) UserConnectionCount(userID domain.UserID) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.users[userID])
}

func mustJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
