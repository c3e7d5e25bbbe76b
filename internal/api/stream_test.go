package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/salescast/internal/api/handlers"
	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/pkg/logger"
)

func newStreamServer(t *testing.T, hub *Hub) string {
	t.Helper()
	log := logger.Nop()
	router := NewRouter(RouterDeps{
		Predictions: handlers.NewPredictionHandler(seededStore(t), log),
		Health:      handlers.NewHealthHandler("salescast-api", nil),
		Stream:      hub,
		Logger:      log,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/runs"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitSubscribers(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Subscribers() == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub(logger.Nop())
	url := newStreamServer(t, hub)

	a := dial(t, url)
	b := dial(t, url)
	waitSubscribers(t, hub, 2)

	hub.Publish(contracts.RunEvent{
		RunID: "r1",
		Mode:  "train",
		Kind:  contracts.EventStage,
		Stage: &contracts.PipelineResult{Stage: contracts.StageHeat, Success: true, OutputCount: 12},
	})

	for _, conn := range []*websocket.Conn{a, b} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var ev contracts.RunEvent
		require.NoError(t, conn.ReadJSON(&ev))
		assert.Equal(t, "r1", ev.RunID)
		assert.Equal(t, contracts.EventStage, ev.Kind)
		require.NotNil(t, ev.Stage)
		assert.Equal(t, contracts.StageHeat, ev.Stage.Stage)
		assert.Equal(t, 12, ev.Stage.OutputCount)
	}
}

func TestHub_ReplaysLastEvent(t *testing.T) {
	hub := NewHub(logger.Nop())
	url := newStreamServer(t, hub)

	hub.Publish(contracts.RunEvent{RunID: "r0", Kind: contracts.EventRun, Status: "succeeded"})

	conn := dial(t, url)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev contracts.RunEvent
	require.NoError(t, conn.ReadJSON(&ev))
	assert.Equal(t, "r0", ev.RunID)
	assert.Equal(t, "succeeded", ev.Status)
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub := NewHub(logger.Nop())
	url := newStreamServer(t, hub)

	conn := dial(t, url)
	waitSubscribers(t, hub, 1)

	require.NoError(t, conn.Close())
	waitSubscribers(t, hub, 0)
}

func TestRouter_NoStreamWithoutHub(t *testing.T) {
	rec, _ := get(t, newTestRouter(seededStore(t), nil, nil), "/ws/runs")
	assert.Equal(t, 404, rec.Code)
}
