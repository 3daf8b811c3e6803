package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hlview/hl-dashboard/pkg/goplus"
	"github.com/hlview/hl-dashboard/pkg/logger"
)

// ConnRef is the connection manager surface the health server reads.
type ConnRef interface {
	IsConnected() bool
	SubscriptionCount() int
}

// PublisherRef is the optional NATS publisher surface.
type PublisherRef interface {
	IsConnected() bool
}

type HealthServer struct {
	addr      string
	conn      ConnRef
	publisher PublisherRef
	server    *http.Server

	mu           sync.RWMutex
	healthy      bool
	healthySince time.Time
	startTime    time.Time
}

func NewHealthServer(addr string, conn ConnRef, publisher PublisherRef) *HealthServer {
	return &HealthServer{
		addr:         addr,
		conn:         conn,
		publisher:    publisher,
		healthy:      true,
		healthySince: time.Now(),
		startTime:    time.Now(),
	}
}

func (h *HealthServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", h.healthHandler)
	mux.HandleFunc("/health/ready", h.readyHandler)
	mux.HandleFunc("/health/live", h.liveHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/status", h.statusHandler)

	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	goplus.Go(func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("health server error")
		}
	})

	logger.Info().Str("addr", h.addr).Msg("health server started")
	return nil
}

func (h *HealthServer) Stop(ctx context.Context) error {
	h.mu.Lock()
	h.healthy = false
	h.mu.Unlock()

	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func (h *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := h.getHealthStatus()
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(status)
}

func (h *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	healthy := h.healthy
	h.mu.RUnlock()

	if !healthy || (h.conn != nil && !h.conn.IsConnected()) {
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *HealthServer) liveHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (h *HealthServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.getHealthStatus())
}

func (h *HealthServer) getHealthStatus() HealthStatus {
	h.mu.RLock()
	healthy := h.healthy
	healthySince := h.healthySince
	h.mu.RUnlock()

	wsConnected := false
	subscriptions := 0
	if h.conn != nil {
		wsConnected = h.conn.IsConnected()
		subscriptions = h.conn.SubscriptionCount()
	}

	natsConnected := false
	if h.publisher != nil {
		natsConnected = h.publisher.IsConnected()
	}

	return HealthStatus{
		Healthy:      healthy,
		HealthySince: healthySince.Format(time.RFC3339),
		Uptime:       time.Since(h.startTime).String(),
		WebSocket: WebSocketStatus{
			Connected:     wsConnected,
			Subscriptions: subscriptions,
		},
		NATS: NATSStatus{
			Connected: natsConnected,
		},
	}
}

type HealthStatus struct {
	Healthy      bool            `json:"healthy"`
	HealthySince string          `json:"healthy_since"`
	Uptime       string          `json:"uptime"`
	WebSocket    WebSocketStatus `json:"websocket"`
	NATS         NATSStatus      `json:"nats"`
}

type WebSocketStatus struct {
	Connected     bool `json:"connected"`
	Subscriptions int  `json:"subscriptions"`
}

type NATSStatus struct {
	Connected bool `json:"connected"`
}
