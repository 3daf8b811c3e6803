package ws

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"

	"github.com/hlview/hl-dashboard/internal/monitor"
	"github.com/hlview/hl-dashboard/internal/wire"
	"github.com/hlview/hl-dashboard/pkg/logger"
)

// Manager owns the single upstream connection. It keeps logical
// subscriptions alive across transport churn: on every successful
// (re)connect it replays each registered subscription, so consumers never
// resubscribe manually. Status transitions and message pulses are
// broadcast to registered observers.
type Manager struct {
	url         string
	clk         clock.Clock
	maxAttempts int
	debug       bool

	mu       sync.Mutex
	client   *Client
	connDone chan struct{}
	closed   bool
	attempts int
	bo       *backoff.ExponentialBackOff

	statusMu  sync.RWMutex
	status    Status
	statusObs map[int64]func(Status)
	pulseObs  map[int64]func()
	obsSeq    int64

	subsMu sync.RWMutex
	subs   map[string]*entry
	cbSeq  atomic.Int64
	// connGen increments on every successful dial; registry sends are
	// deduplicated per generation.
	connGen atomic.Int64

	lastPong    atomic.Int64
	reconnectMu sync.Mutex
}

type Option func(*Manager)

func WithClock(clk clock.Clock) Option {
	return func(m *Manager) { m.clk = clk }
}

func WithMaxAttempts(n int) Option {
	return func(m *Manager) { m.maxAttempts = n }
}

func WithBackoff(base, max time.Duration) Option {
	return func(m *Manager) {
		m.bo.InitialInterval = base
		m.bo.MaxInterval = max
		m.bo.Reset()
	}
}

func WithDebugFrames() Option {
	return func(m *Manager) { m.debug = true }
}

func NewManager(url string, opts ...Option) *Manager {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = defaultBaseDelay
	bo.Multiplier = 1.5
	bo.MaxInterval = defaultMaxDelay
	// Jitter is added separately so the base schedule stays monotonic.
	bo.RandomizationFactor = 0
	bo.MaxElapsedTime = 0
	bo.Reset()

	m := &Manager{
		url:         url,
		clk:         clock.New(),
		maxAttempts: defaultMaxRetries,
		bo:          bo,
		status:      StatusDisconnected,
		statusObs:   make(map[int64]func(Status)),
		pulseObs:    make(map[int64]func()),
		subs:        make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect opens the upstream connection. It is idempotent: a no-op while
// connected or connecting. An explicit call also recovers from the
// terminal error status by resetting the retry counter.
func (m *Manager) Connect(ctx context.Context) error {
	switch m.Status() {
	case StatusConnected, StatusConnecting:
		return nil
	}

	m.mu.Lock()
	m.closed = false
	m.attempts = 0
	m.bo.Reset()
	m.mu.Unlock()

	m.setStatus(StatusConnecting)

	if err := m.dial(ctx); err != nil {
		logger.Error().Err(err).Msg("ws connect failed")
		m.setStatus(StatusDisconnected)
		go m.reconnectLoop()
		return err
	}
	return nil
}

// Close is the intentional shutdown: no reconnect is scheduled and the
// liveness watchdog stops.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	client := m.client
	m.client = nil
	if m.connDone != nil {
		close(m.connDone)
		m.connDone = nil
	}
	m.mu.Unlock()

	if client != nil {
		client.Close()
	}
	m.setStatus(StatusDisconnected)
	return nil
}

func (m *Manager) Status() Status {
	m.statusMu.RLock()
	defer m.statusMu.RUnlock()
	return m.status
}

func (m *Manager) IsConnected() bool {
	return m.Status() == StatusConnected
}

// OnStatusChange registers a status observer and synchronously invokes it
// once with the current status, so late subscribers see current state.
// The returned function removes the observer.
func (m *Manager) OnStatusChange(cb func(Status)) func() {
	m.statusMu.Lock()
	m.obsSeq++
	id := m.obsSeq
	m.statusObs[id] = cb
	current := m.status
	m.statusMu.Unlock()

	cb(current)

	var once sync.Once
	return func() {
		once.Do(func() {
			m.statusMu.Lock()
			delete(m.statusObs, id)
			m.statusMu.Unlock()
		})
	}
}

// OnPulse registers an observer fired on every inbound frame, carrying no
// payload. Meant for liveness indicators, decoupled from data delivery.
func (m *Manager) OnPulse(cb func()) func() {
	m.statusMu.Lock()
	m.obsSeq++
	id := m.obsSeq
	m.pulseObs[id] = cb
	m.statusMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.statusMu.Lock()
			delete(m.pulseObs, id)
			m.statusMu.Unlock()
		})
	}
}

func (m *Manager) dial(ctx context.Context) error {
	client := NewClient(m.url, m.clk)
	client.SetDebug(m.debug)
	client.SetFrameHandler(m.handleFrame)
	client.SetDisconnectCallback(func() {
		go m.handleDisconnect()
	})

	if err := client.Connect(ctx); err != nil {
		return err
	}

	connDone := make(chan struct{})
	m.mu.Lock()
	m.client = client
	m.connDone = connDone
	m.attempts = 0
	m.bo.Reset()
	m.mu.Unlock()

	m.connGen.Add(1)
	m.lastPong.Store(m.clk.Now().UnixNano())
	m.setStatus(StatusConnected)
	monitor.GetMetrics().SetWebSocketConnected(true)

	go m.watchdog(client, connDone)

	m.replaySubscriptions(client)
	return nil
}

func (m *Manager) handleDisconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	client := m.client
	m.client = nil
	if m.connDone != nil {
		close(m.connDone)
		m.connDone = nil
	}
	m.mu.Unlock()

	if client != nil {
		client.Close()
	}

	monitor.GetMetrics().SetWebSocketConnected(false)
	m.setStatus(StatusDisconnected)
	m.reconnectLoop()
}

// reconnectLoop retries with exponential backoff until connected, the
// attempt ceiling is reached, or Close is called. TryLock keeps a single
// loop running across concurrent disconnect reports.
func (m *Manager) reconnectLoop() {
	if !m.reconnectMu.TryLock() {
		return
	}
	defer m.reconnectMu.Unlock()

	for {
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		if m.attempts >= m.maxAttempts {
			m.mu.Unlock()
			logger.Error().Int("attempts", m.maxAttempts).Msg("reconnect attempts exhausted")
			m.setStatus(StatusError)
			return
		}
		m.attempts++
		attempt := m.attempts
		delay := m.nextDelay() + jitter()
		m.mu.Unlock()

		logger.Warn().Int("attempt", attempt).Dur("delay", delay).Msg("reconnecting")
		monitor.GetMetrics().IncReconnectAttempts()

		<-m.clk.After(delay)

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		m.setStatus(StatusConnecting)

		ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
		err := m.dial(ctx)
		cancel()
		if err == nil {
			logger.Info().Msg("reconnected")
			return
		}

		logger.Error().Err(err).Int("attempt", attempt).Msg("reconnect failed")
		m.setStatus(StatusDisconnected)
	}
}

// nextDelay advances the backoff schedule: base × 1.5^attempt, capped.
func (m *Manager) nextDelay() time.Duration {
	d := m.bo.NextBackOff()
	if d == backoff.Stop {
		d = m.bo.MaxInterval
	}
	return d
}

func jitter() time.Duration {
	return time.Duration(rand.Int63n(int64(maxJitter)))
}

// watchdog forces a reconnect when no liveness reply arrived within
// pongWait. This catches half-open connections the transport layer never
// reports as closed.
func (m *Manager) watchdog(client *Client, done chan struct{}) {
	ticker := m.clk.Ticker(watchdogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			last := time.Unix(0, m.lastPong.Load())
			if m.clk.Now().Sub(last) > pongWait {
				logger.Warn().Time("last_pong", last).Msg("liveness timeout, forcing reconnect")
				client.closeTransport()
				return
			}
		}
	}
}

func (m *Manager) handleFrame(frame wire.Frame) {
	m.notifyPulse()

	switch frame.Kind {
	case wire.KindPong:
		m.lastPong.Store(m.clk.Now().UnixNano())
	case wire.KindAck:
		logger.Debug().RawJSON("ack", nonEmpty(frame.Data)).Msg("subscription acknowledged")
	default:
		monitor.GetMetrics().IncFramesReceived(string(frame.Channel))
		m.route(frame)
	}
}

func nonEmpty(data []byte) []byte {
	if len(data) == 0 {
		return []byte("{}")
	}
	return data
}

func (m *Manager) setStatus(s Status) {
	m.statusMu.Lock()
	if m.status == s {
		m.statusMu.Unlock()
		return
	}
	m.status = s
	callbacks := make([]func(Status), 0, len(m.statusObs))
	for _, cb := range m.statusObs {
		callbacks = append(callbacks, cb)
	}
	m.statusMu.Unlock()

	for _, cb := range callbacks {
		cb(s)
	}
}

func (m *Manager) notifyPulse() {
	m.statusMu.RLock()
	callbacks := make([]func(), 0, len(m.pulseObs))
	for _, cb := range m.pulseObs {
		callbacks = append(callbacks, cb)
	}
	m.statusMu.RUnlock()

	for _, cb := range callbacks {
		cb()
	}
}
