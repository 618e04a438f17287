package draft

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourusername/draftforme-backend/internal/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Pools can carry a few dozen champions.
	maxMessageSize = 16 * 1024

	recommendTimeout = 30 * time.Second
)

// SessionObserver tracks open sessions.
type SessionObserver interface {
	SessionOpened()
	SessionClosed()
}

// Server upgrades draft websocket connections, one Session per connection.
type Server struct {
	rec           Recommender
	defaultRegion string
	defaultTier   string
	topN          int
	observer      SessionObserver
	upgrader      websocket.Upgrader
}

// NewServer accepts connections from allowedOrigins; "*" allows any origin.
func NewServer(rec Recommender, defaultRegion, defaultTier string, topN int, allowedOrigins []string, observer SessionObserver) *Server {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &Server{
		rec:           rec,
		defaultRegion: defaultRegion,
		defaultTier:   defaultTier,
		topN:          topN,
		observer:      observer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// InitialState reads region, tier, role and priority from the query string.
func (s *Server) InitialState(r *http.Request) State {
	q := r.URL.Query()

	region := q.Get("region")
	if !models.ValidRegion(region) {
		region = s.defaultRegion
	}
	tier := q.Get("tier")
	if !models.ValidTier(tier) {
		tier = s.defaultTier
	}
	role, ok := models.ParseRole(q.Get("role"))
	if !ok {
		role = models.RoleMid
	}

	st := New(region, tier, role)
	if p, err := strconv.Atoi(q.Get("priority")); err == nil {
		if next, err := WithPriority(st, p); err == nil {
			st = next
		}
	}
	return st
}

// ServeWS handles one draft connection until the client goes away.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WARN] Draft websocket upgrade failed: %v", err)
		return
	}

	session := NewSession(s.rec, s.InitialState(r), s.topN)
	if s.observer != nil {
		s.observer.SessionOpened()
	}
	log.Printf("[INFO] Draft session %s opened from %s", session.ID, r.RemoteAddr)

	c := &client{
		session: session,
		conn:    conn,
		send:    make(chan Reply, 16),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), recommendTimeout)
	c.send <- session.Snapshot(ctx)
	cancel()

	go c.writePump()
	c.readPump()

	if s.observer != nil {
		s.observer.SessionClosed()
	}
	log.Printf("[INFO] Draft session %s closed", session.ID)
}

type client struct {
	session *Session
	conn    *websocket.Conn
	send    chan Reply
	done    chan struct{} // closed when the reader exits
	stopped chan struct{} // closed when the writer exits
}

// readPump applies each client message and queues the reply.
func (c *client) readPump() {
	defer func() {
		close(c.done)
		if err := c.conn.Close(); err != nil {
			log.Printf("[DEBUG] Draft websocket close: %v", err)
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WARN] Draft session %s read error: %v", c.session.ID, err)
			}
			return
		}

		var msg ClientMessage
		var reply Reply
		if err := json.Unmarshal(data, &msg); err != nil {
			reply = c.session.Snapshot(context.Background())
			reply.Error = "malformed message: " + err.Error()
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), recommendTimeout)
			reply = c.session.Apply(ctx, msg)
			cancel()
		}

		select {
		case c.send <- reply:
		case <-c.stopped:
			return
		}
	}
}

// writePump serialises replies and keeps the connection alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		close(c.stopped)
		_ = c.conn.Close()
	}()

	for {
		select {
		case reply := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteJSON(reply); err != nil {
				log.Printf("[WARN] Draft session %s write error: %v", c.session.ID, err)
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
