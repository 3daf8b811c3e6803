package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConn struct {
	connected bool
	subs      int
}

func (s *stubConn) IsConnected() bool      { return s.connected }
func (s *stubConn) SubscriptionCount() int { return s.subs }

type stubPublisher struct {
	connected bool
}

func (s *stubPublisher) IsConnected() bool { return s.connected }

func TestHealthHandler(t *testing.T) {
	h := NewHealthServer(":0", &stubConn{connected: true, subs: 3}, &stubPublisher{connected: true})

	rec := httptest.NewRecorder()
	h.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Healthy)
	assert.True(t, status.WebSocket.Connected)
	assert.Equal(t, 3, status.WebSocket.Subscriptions)
	assert.True(t, status.NATS.Connected)
}

func TestReadyHandlerWhenDisconnected(t *testing.T) {
	h := NewHealthServer(":0", &stubConn{connected: false}, nil)

	rec := httptest.NewRecorder()
	h.readyHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadyHandlerWhenConnected(t *testing.T) {
	h := NewHealthServer(":0", &stubConn{connected: true}, nil)

	rec := httptest.NewRecorder()
	h.readyHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLiveHandlerAlwaysOK(t *testing.T) {
	h := NewHealthServer(":0", &stubConn{}, nil)

	rec := httptest.NewRecorder()
	h.liveHandler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStopMarksUnhealthy(t *testing.T) {
	h := NewHealthServer(":0", &stubConn{connected: true}, nil)

	require.NoError(t, h.Stop(httptest.NewRequest(http.MethodGet, "/", nil).Context()))

	rec := httptest.NewRecorder()
	h.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStatusHandlerWithoutPublisher(t *testing.T) {
	h := NewHealthServer(":0", &stubConn{connected: true, subs: 1}, nil)

	rec := httptest.NewRecorder()
	h.statusHandler(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.NATS.Connected)
}
