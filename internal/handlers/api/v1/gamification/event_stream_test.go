package gamification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"unigame/internal/events"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type receivedMessage struct {
	Type  string `json:"type"`
	Event struct {
		EventType string `json:"event_type"`
		UserID    *int64 `json:"user_id"`
		Points    int    `json:"points"`
		Balance   int    `json:"balance"`
	} `json:"event"`
}

func startStream(t *testing.T, allowedOrigin string) (events.EventBus, *httptest.Server) {
	t.Helper()
	bus := events.NewInMemoryEventBus(events.DefaultEventBusConfig(), zap.NewNop())
	require.NoError(t, bus.Start(context.Background()))

	srv := httptest.NewServer(NewEventStream(bus, allowedOrigin, zap.NewNop()))
	t.Cleanup(func() {
		srv.Close()
		_ = bus.Stop(context.Background())
	})
	return bus, srv
}

func dial(t *testing.T, srv *httptest.Server, query string, header http.Header) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForHandlers(t *testing.T, bus events.EventBus, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return bus.Stats().HandlersCount == n
	}, time.Second, 5*time.Millisecond)
}

func TestEventStream_DeliversEvents(t *testing.T) {
	bus, srv := startStream(t, "*")
	conn := dial(t, srv, "", nil)
	waitForHandlers(t, bus, 1)

	require.NoError(t, bus.Publish(context.Background(), events.NewPointsAddedEvent(42, 20, 20, time.Now())))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg receivedMessage
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, events.EventPointsAdded, msg.Type)
	assert.Equal(t, events.EventPointsAdded, msg.Event.EventType)
	require.NotNil(t, msg.Event.UserID)
	assert.Equal(t, int64(42), *msg.Event.UserID)
	assert.Equal(t, 20, msg.Event.Balance)
}

func TestEventStream_FiltersByUserAndType(t *testing.T) {
	bus, srv := startStream(t, "")
	conn := dial(t, srv, "?types=points.*&userId=2", nil)
	waitForHandlers(t, bus, 1)

	ctx := context.Background()
	now := time.Now()
	require.NoError(t, bus.Publish(ctx, events.NewPointsAddedEvent(1, 5, 5, now)))
	require.NoError(t, bus.Publish(ctx, events.NewStreakUpdatedEvent(2, 0, 1, now)))
	require.NoError(t, bus.Publish(ctx, events.NewPointsAddedEvent(2, 7, 7, now)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg receivedMessage
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, events.EventPointsAdded, msg.Type)
	require.NotNil(t, msg.Event.UserID)
	assert.Equal(t, int64(2), *msg.Event.UserID)
	assert.Equal(t, 7, msg.Event.Points)
}

func TestEventStream_UnsubscribesOnDisconnect(t *testing.T) {
	bus, srv := startStream(t, "*")
	conn := dial(t, srv, "?types=points.added,reward.*", nil)
	waitForHandlers(t, bus, 2)

	require.NoError(t, conn.Close())
	waitForHandlers(t, bus, 0)
}

func TestEventStream_RejectsBadUserID(t *testing.T) {
	_, srv := startStream(t, "*")

	resp, err := http.Get(srv.URL + "/?userId=me")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventStream_ChecksOrigin(t *testing.T) {
	_, srv := startStream(t, "https://campus.example.edu")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	conn := dial(t, srv, "", http.Header{"Origin": {"https://campus.example.edu"}})
	assert.NotNil(t, conn)
}

func TestParsePatterns(t *testing.T) {
	assert.Equal(t, []string{"*"}, parsePatterns(""))
	assert.Equal(t, []string{"*"}, parsePatterns(" , "))
	assert.Equal(t, []string{"points.*", "badge.awarded"}, parsePatterns("points.*, badge.awarded,points.*"))
}
