package stream

import (
	"sync"

	"github.com/hlview/hl-dashboard/internal/monitor"
	"github.com/hlview/hl-dashboard/internal/wire"
	"github.com/hlview/hl-dashboard/pkg/logger"
)

// SubscribePrices registers cb for mid-price pushes. The wire-level
// allMids subscription is reference-counted: the first subscriber
// creates it, the last one tears it down. cb fires immediately with the
// current map when the cache is already populated.
func (s *Service) SubscribePrices(cb func(map[string]string)) func() {
	s.mu.Lock()
	s.priceRefs++
	if s.priceHandle == nil {
		s.priceHandle = s.mgr.Subscribe(wire.AllMidsSub(), s.handlePriceFrame)
	}
	s.mu.Unlock()

	cancel := s.prices.Subscribe(cb)

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()

			s.mu.Lock()
			s.priceRefs--
			var handle = s.priceHandle
			if s.priceRefs > 0 {
				handle = nil
			} else {
				s.priceHandle = nil
			}
			s.mu.Unlock()

			if handle != nil {
				handle.Unsubscribe()
			}
		})
	}
}

// handlePriceFrame replaces the cached map wholesale on each push.
func (s *Service) handlePriceFrame(frame wire.Frame) {
	mids, err := wire.DecodeAllMids(frame.Data)
	if err != nil {
		monitor.GetMetrics().IncFramesDropped(string(frame.Channel))
		logger.Warn().Err(err).Msg("dropping malformed price frame")
		return
	}
	s.prices.Update(mids.Mids)
}
