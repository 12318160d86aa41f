package rest

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seatshield/ticket-fraud-backend/internal/domain/risk"
	"github.com/seatshield/ticket-fraud-backend/internal/metrics"
)

// ThreatEvent is one message on the live threat feed
type ThreatEvent struct {
	Type       string           `json:"type"`
	Assessment *risk.Assessment `json:"assessment"`
	Timestamp  time.Time        `json:"timestamp"`
}

const eventTypeFlaggedAssessment = "assessment.flagged"

// LiveFeedConfig holds WebSocket tuning
type LiveFeedConfig struct {
	WriteTimeout    time.Duration
	PongTimeout     time.Duration
	PingPeriod      time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
}

// DefaultLiveFeedConfig returns default configuration
func DefaultLiveFeedConfig() LiveFeedConfig {
	return LiveFeedConfig{
		WriteTimeout:    10 * time.Second,
		PongTimeout:     60 * time.Second,
		PingPeriod:      54 * time.Second, // Must be less than PongTimeout
		MaxMessageSize:  512,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  64,
	}
}

// LiveFeed pushes flagged assessments to connected dashboard clients
// over WebSocket. It implements the fraud engine's publisher interface;
// publishing never blocks the scoring path, a congested feed drops
// events instead.
type LiveFeed struct {
	clients     map[*liveClient]bool
	register    chan *liveClient
	unregister  chan *liveClient
	broadcast   chan []byte
	done        chan struct{}
	closeOnce   sync.Once
	connections atomic.Int64

	secret  string
	config  LiveFeedConfig
	logger  *slog.Logger
	metrics *metrics.Registry
}

// liveClient is one connected feed consumer
type liveClient struct {
	feed   *LiveFeed
	conn   *websocket.Conn
	send   chan []byte
	userID string
}

// NewLiveFeed creates the feed and starts its dispatch loop. The
// metrics registry may be nil.
func NewLiveFeed(secret string, logger *slog.Logger, registry *metrics.Registry) *LiveFeed {
	if logger == nil {
		logger = slog.Default()
	}

	feed := &LiveFeed{
		clients:    make(map[*liveClient]bool),
		register:   make(chan *liveClient),
		unregister: make(chan *liveClient),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		secret:     secret,
		config:     DefaultLiveFeedConfig(),
		logger:     logger,
		metrics:    registry,
	}

	go feed.run()
	return feed
}

// PublishAssessment queues a flagged assessment for delivery. Never
// blocks; when the feed is congested the event is dropped.
func (f *LiveFeed) PublishAssessment(assessment *risk.Assessment) {
	event := ThreatEvent{
		Type:       eventTypeFlaggedAssessment,
		Assessment: assessment,
		Timestamp:  time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		f.logger.Error("failed to marshal threat event", slog.Any("error", err))
		return
	}

	select {
	case f.broadcast <- payload:
	case <-f.done:
	default:
		f.logger.Warn("live feed congested, dropping event",
			slog.String("session_id", assessment.SessionID))
	}
}

// Close shuts down the feed and disconnects every client. Safe to
// call more than once.
func (f *LiveFeed) Close() {
	f.closeOnce.Do(func() {
		close(f.done)
	})
}

// ClientCount returns the number of connected clients
func (f *LiveFeed) ClientCount() int {
	return int(f.connections.Load())
}

func (f *LiveFeed) run() {
	for {
		select {
		case client := <-f.register:
			f.clients[client] = true
			f.updateConnectionCount(1)
			f.logger.Debug("live feed client connected",
				slog.String("user_id", client.userID),
				slog.Int("clients", len(f.clients)))

		case client := <-f.unregister:
			if _, ok := f.clients[client]; ok {
				delete(f.clients, client)
				close(client.send)
				f.updateConnectionCount(-1)
			}

		case payload := <-f.broadcast:
			for client := range f.clients {
				select {
				case client.send <- payload:
				default:
					// Consumer can't keep up. Cut it loose rather than
					// buffering without bound.
					delete(f.clients, client)
					close(client.send)
					f.updateConnectionCount(-1)
				}
			}

		case <-f.done:
			for client := range f.clients {
				delete(f.clients, client)
				close(client.send)
				f.updateConnectionCount(-1)
			}
			return
		}
	}
}

// ServeHTTP upgrades the connection and attaches the client to the feed.
// GET /api/v1/threats/live?token=...
func (f *LiveFeed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Browsers can't set an Authorization header on a WebSocket
	// request, so the token rides in the query string.
	token := r.URL.Query().Get("token")
	if token == "" {
		writeUnauthorized(w, "Missing token")
		return
	}

	claims, err := validateToken(f.secret, token)
	if err != nil {
		f.logger.Debug("live feed token rejected", slog.Any("error", err))
		writeUnauthorized(w, "Invalid or expired token")
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  f.config.ReadBufferSize,
		WriteBufferSize: f.config.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		f.logger.Error("websocket upgrade failed", slog.Any("error", err))
		return
	}

	client := &liveClient{
		feed:   f,
		conn:   conn,
		send:   make(chan []byte, f.config.SendBufferSize),
		userID: claims.UserID,
	}

	select {
	case f.register <- client:
	case <-f.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// readPump drains inbound frames. The feed is one-way; clients only
// send control frames, anything else just keeps the connection alive.
func (c *liveClient) readPump() {
	defer func() {
		select {
		case c.feed.unregister <- c:
		case <-c.feed.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.feed.config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.feed.config.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.feed.config.PongTimeout))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.feed.logger.Debug("live feed read error", slog.Any("error", err))
			}
			return
		}
	}
}

// writePump delivers queued events and keeps the connection alive with
// pings
func (c *liveClient) writePump() {
	ticker := time.NewTicker(c.feed.config.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.feed.config.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.feed.config.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (f *LiveFeed) updateConnectionCount(delta int64) {
	f.connections.Add(delta)
	if f.metrics != nil {
		f.metrics.UpdateLiveFeedConnections(delta)
	}
}
