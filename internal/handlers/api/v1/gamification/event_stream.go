// ===============================
// FILE: internal/handlers/api/v1/gamification/event_stream.go
// ===============================

package gamification

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"unigame/internal/events"

	"github.com/gofrs/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	clientSendSize = 64
)

// streamMessage is the frame written for every delivered event
type streamMessage struct {
	Type  string       `json:"type"`
	Event events.Event `json:"event"`
}

// EventStream pushes committed gamification events to websocket clients.
// Clients may narrow the stream with ?types=points.*,badge.awarded and
// ?userId=N.
type EventStream struct {
	bus      events.EventBus
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// NewEventStream creates a websocket handler backed by bus. An empty or "*"
// allowedOrigin accepts any origin.
func NewEventStream(bus events.EventBus, allowedOrigin string, logger *zap.Logger) *EventStream {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EventStream{
		bus:    bus,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowedOrigin == "" || allowedOrigin == "*" {
					return true
				}
				return r.Header.Get("Origin") == allowedOrigin
			},
		},
	}
}

type streamClient struct {
	id       string
	conn     *websocket.Conn
	userID   *int64
	send     chan events.Event
	done     chan struct{}
	doneOnce sync.Once
	logger   *zap.Logger
}

// ServeHTTP handles GET /api/v1/gamification/events
func (s *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	patterns := parsePatterns(r.URL.Query().Get("types"))

	var userID *int64
	if raw := r.URL.Query().Get("userId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "userId must be an integer", http.StatusBadRequest)
			return
		}
		userID = &id
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &streamClient{
		id:     "ws-" + uuid.Must(uuid.NewV4()).String(),
		conn:   conn,
		userID: userID,
		send:   make(chan events.Event, clientSendSize),
		done:   make(chan struct{}),
		logger: s.logger,
	}

	handler := events.NewEventHandlerFunc(client.id, client.deliver)
	subscribed := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if err := s.bus.SubscribePattern(p, handler); err != nil {
			s.logger.Error("Failed to subscribe websocket client", zap.String("pattern", p), zap.Error(err))
			continue
		}
		subscribed = append(subscribed, p)
	}

	s.logger.Info("WebSocket client connected",
		zap.String("client_id", client.id),
		zap.Strings("patterns", subscribed),
	)

	defer func() {
		for _, p := range subscribed {
			_ = s.bus.Unsubscribe(p, client.id)
		}
		client.close()
		s.logger.Info("WebSocket client disconnected", zap.String("client_id", client.id))
	}()

	go client.writeMessages()
	client.readMessages()
}

// deliver queues an event for the client. Slow clients lose events rather
// than stall the bus workers.
func (c *streamClient) deliver(_ context.Context, event events.Event) error {
	if c.userID != nil {
		if uid := event.GetUserID(); uid == nil || *uid != *c.userID {
			return nil
		}
	}

	select {
	case <-c.done:
	case c.send <- event:
	default:
		c.logger.Debug("WebSocket client lagging, event dropped",
			zap.String("client_id", c.id),
			zap.String("event_type", event.GetEventType()),
		)
	}
	return nil
}

// readMessages drains the connection so control frames are processed and
// returns once the peer goes away.
func (c *streamClient) readMessages() {
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("WebSocket read error", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}
	}
}

func (c *streamClient) writeMessages() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case event := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(streamMessage{Type: event.GetEventType(), Event: event}); err != nil {
				c.logger.Debug("WebSocket write failed", zap.String("client_id", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *streamClient) close() {
	c.doneOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func parsePatterns(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{"*"}
	}

	seen := make(map[string]struct{})
	patterns := make([]string, 0)
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		patterns = append(patterns, p)
	}

	if len(patterns) == 0 {
		return []string{"*"}
	}
	return patterns
}
