package ws

import (
	"context"
	"sync"

	"github.com/hlview/hl-dashboard/internal/monitor"
	"github.com/hlview/hl-dashboard/internal/wire"
	"github.com/hlview/hl-dashboard/pkg/logger"
)

// entry is one logical subscription: a canonical key shared by every
// consumer interested in that channel/parameter combination. sentGen
// records the connection generation whose wire subscribe was already
// sent, so Subscribe and the reconnect replay cannot both send one.
type entry struct {
	sub       wire.Subscription
	callbacks map[int64]Callback
	sentGen   int64
}

// Handle detaches one consumer from a subscription entry. Unsubscribe is
// idempotent: calling it again after the first is a no-op.
type Handle struct {
	key  string
	id   int64
	m    *Manager
	once sync.Once
}

func (h *Handle) Unsubscribe() {
	h.once.Do(func() {
		h.m.unsubscribe(h.key, h.id)
	})
}

// Subscribe registers cb under the subscription's canonical key. The
// first consumer of a key sends the wire-level subscribe (or, when the
// connection is down, leaves it to the replay path); later consumers
// share the entry. Subscribing is the lazy connection trigger.
func (m *Manager) Subscribe(sub wire.Subscription, cb Callback) *Handle {
	key := sub.Key()
	id := m.cbSeq.Add(1)

	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	connected := client != nil && client.IsConnected()
	gen := m.connGen.Load()

	m.subsMu.Lock()
	e, exists := m.subs[key]
	if !exists {
		e = &entry{sub: sub, callbacks: make(map[int64]Callback)}
		m.subs[key] = e
	}
	e.callbacks[id] = cb
	send := connected && e.sentGen != gen
	if send {
		e.sentGen = gen
	}
	m.subsMu.Unlock()

	monitor.GetMetrics().SetSubscriptions(m.SubscriptionCount())

	if send {
		if err := client.Subscribe(sub); err != nil {
			logger.Error().Err(err).Str("key", key).Msg("subscribe send failed")
		}
	}

	if m.Status() == StatusDisconnected {
		go func() {
			if err := m.Connect(context.Background()); err != nil {
				logger.Error().Err(err).Msg("lazy connect failed")
			}
		}()
	}

	return &Handle{key: key, id: id, m: m}
}

func (m *Manager) unsubscribe(key string, id int64) {
	m.subsMu.Lock()
	e, exists := m.subs[key]
	if !exists {
		m.subsMu.Unlock()
		return
	}
	delete(e.callbacks, id)
	empty := len(e.callbacks) == 0
	if empty {
		delete(m.subs, key)
	}
	m.subsMu.Unlock()

	monitor.GetMetrics().SetSubscriptions(m.SubscriptionCount())

	if !empty {
		return
	}

	m.mu.Lock()
	client := m.client
	m.mu.Unlock()

	if client != nil && client.IsConnected() {
		if err := client.Unsubscribe(e.sub); err != nil {
			logger.Error().Err(err).Str("key", key).Msg("unsubscribe send failed")
		}
	}
	logger.Info().Str("key", key).Msg("unsubscribed")
}

func (m *Manager) SubscriptionCount() int {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()
	return len(m.subs)
}

func (m *Manager) replaySubscriptions(client *Client) {
	gen := m.connGen.Load()

	m.subsMu.Lock()
	subs := make([]wire.Subscription, 0, len(m.subs))
	for _, e := range m.subs {
		if e.sentGen == gen {
			continue
		}
		e.sentGen = gen
		subs = append(subs, e.sub)
	}
	m.subsMu.Unlock()

	for _, sub := range subs {
		if err := client.Subscribe(sub); err != nil {
			logger.Error().Err(err).Str("key", sub.Key()).Msg("resubscribe failed")
		}
	}

	if len(subs) > 0 {
		logger.Info().Int("count", len(subs)).Msg("subscriptions replayed")
	}
}
