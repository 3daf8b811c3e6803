package ws

import (
	"strings"

	"github.com/hlview/hl-dashboard/internal/monitor"
	"github.com/hlview/hl-dashboard/internal/wire"
	"github.com/hlview/hl-dashboard/pkg/logger"
)

// route delivers a data frame to the matching subscription entry: exact
// canonical key first, with a channel-prefix fallback only for frames
// that carry no user at all. A frame scoped to a user nobody subscribes
// to must never leak into another user's feed. Callbacks run
// synchronously on the read loop, preserving receipt order. Unmatched
// frames are dropped, not fatal.
func (m *Manager) route(frame wire.Frame) {
	channel := string(frame.Channel)
	user := wire.UserOf(frame.Data)

	key := channel
	if user != "" {
		key = channel + ":" + strings.ToLower(user)
	}

	callbacks := m.callbacksFor(key)
	if len(callbacks) == 0 && user == "" {
		callbacks = m.callbacksForPrefix(channel + ":")
	}
	if len(callbacks) == 0 {
		monitor.GetMetrics().IncFramesDropped(channel)
		logger.Debug().Str("channel", channel).Str("key", key).Msg("dropping unmatched frame")
		return
	}

	for _, cb := range callbacks {
		cb(frame)
	}
}

func (m *Manager) callbacksFor(key string) []Callback {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()

	e, exists := m.subs[key]
	if !exists || len(e.callbacks) == 0 {
		return nil
	}

	callbacks := make([]Callback, 0, len(e.callbacks))
	for _, cb := range e.callbacks {
		callbacks = append(callbacks, cb)
	}
	return callbacks
}

func (m *Manager) callbacksForPrefix(prefix string) []Callback {
	m.subsMu.RLock()
	defer m.subsMu.RUnlock()

	var callbacks []Callback
	for key, e := range m.subs {
		if strings.HasPrefix(key, prefix) {
			for _, cb := range e.callbacks {
				callbacks = append(callbacks, cb)
			}
		}
	}
	return callbacks
}
