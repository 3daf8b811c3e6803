package stream

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hlview/hl-dashboard/internal/account"
	"github.com/hlview/hl-dashboard/internal/monitor"
	"github.com/hlview/hl-dashboard/internal/wire"
	"github.com/hlview/hl-dashboard/pkg/logger"
)

// SubscribeAccountState delivers reconciled account states for an address
// to cb. The REST baseline is fetched first (its failure is the only
// error surfaced to the caller; the caller decides whether to retry).
// cb may receive nil, meaning "no usable data yet"; callers must ignore
// it, not treat it as a clear. The returned function unsubscribes and is
// idempotent.
func (s *Service) SubscribeAccountState(ctx context.Context, address string, cb func(*account.State)) (func(), error) {
	addr := strings.ToLower(address)
	if addr == "" {
		return nil, fmt.Errorf("address cannot be empty")
	}

	s.mu.Lock()
	feed, exists := s.feeds[addr]
	if !exists {
		feed = &accountFeed{
			address: addr,
			active:  true,
			subs:    make(map[int64]func(*account.State)),
		}
		s.feeds[addr] = feed
	}
	s.mu.Unlock()

	feed.mu.Lock()
	feed.seq++
	id := feed.seq
	feed.subs[id] = cb
	feed.mu.Unlock()

	// baselineMu serializes the fetch so subscribers racing onto a fresh
	// feed do not each hit the REST endpoint.
	feed.baselineMu.Lock()
	feed.mu.Lock()
	needBaseline := feed.state == nil
	feed.mu.Unlock()

	if needBaseline {
		snap, err := s.fetchBaseline(ctx, addr)
		if err != nil {
			feed.baselineMu.Unlock()
			s.dropSubscriber(feed, id)
			return nil, err
		}

		feed.mu.Lock()
		// A push may have produced a state while the fetch was in
		// flight; the push wins, the stale baseline is discarded.
		if feed.state == nil && feed.active {
			feed.state = account.Reconcile(nil, snap)
		}
		feed.mu.Unlock()
	}
	feed.baselineMu.Unlock()

	if exists = feed.ensureSubscribed(s); !exists {
		logger.Debug().Str("address", addr).Msg("account feed attached")
	}

	feed.mu.Lock()
	current := feed.state
	feed.mu.Unlock()
	if current != nil {
		cb(current)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.dropSubscriber(feed, id)
		})
	}, nil
}

// fetchBaseline consults the TTL cache before hitting the REST endpoint.
func (s *Service) fetchBaseline(ctx context.Context, addr string) (account.Snapshot, error) {
	if snap, ok := s.baselines.Get(addr); ok {
		monitor.GetMetrics().IncBaselineFetches("hit")
		return snap, nil
	}

	monitor.GetMetrics().IncBaselineFetches("miss")
	snap, err := s.info.UserState(ctx, addr)
	if err != nil {
		monitor.GetMetrics().IncBaselineFetches("error")
		return account.Snapshot{}, fmt.Errorf("baseline fetch for %s: %w", addr, err)
	}

	s.baselines.Set(addr, snap)
	return snap, nil
}

// ensureSubscribed attaches the feed to the connection manager once.
// Reports whether the wire subscription already existed.
func (f *accountFeed) ensureSubscribed(s *Service) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.handle != nil {
		return true
	}
	f.handle = s.mgr.Subscribe(wire.WebData2Sub(f.address), s.accountFrameHandler(f))
	return false
}

// accountFrameHandler reconciles each inbound account frame and fans the
// result out. Frames arriving after the feed was torn down are ignored
// (late results must not resurrect dead callbacks).
func (s *Service) accountFrameHandler(f *accountFeed) func(wire.Frame) {
	return func(frame wire.Frame) {
		snap, err := wire.DecodeAccountData(frame.Data)
		if err != nil {
			monitor.GetMetrics().IncFramesDropped(string(frame.Channel))
			logger.Warn().Err(err).Str("address", f.address).Msg("dropping malformed account frame")
			return
		}
		if snap.User != "" && strings.ToLower(snap.User) != f.address {
			monitor.GetMetrics().IncFramesDropped(string(frame.Channel))
			logger.Warn().Str("address", f.address).Str("user", snap.User).Msg("dropping account frame for another user")
			return
		}

		f.mu.Lock()
		if !f.active {
			f.mu.Unlock()
			return
		}
		prev := f.state
		next := account.Reconcile(prev, snap)
		f.state = next
		callbacks := make([]func(*account.State), 0, len(f.subs))
		for _, cb := range f.subs {
			callbacks = append(callbacks, cb)
		}
		f.mu.Unlock()

		if next == prev {
			monitor.GetMetrics().IncReconciliations("suppressed")
		} else {
			monitor.GetMetrics().IncReconciliations("applied")
		}

		for _, cb := range callbacks {
			cb(next)
		}

		if next != prev {
			s.publishState(next)
		}
	}
}

// publishState hands the state to the NATS publisher on the worker pool;
// a full pool degrades to a synchronous publish.
func (s *Service) publishState(state *account.State) {
	if s.publisher == nil {
		return
	}

	err := s.pool.Submit(func() {
		if err := s.publisher.PublishAccountState(state); err != nil {
			logger.Error().Err(err).Str("address", state.User).Msg("publish account state failed")
		}
	})
	if err != nil {
		logger.Warn().Err(err).Msg("worker pool full, publishing synchronously")
		if err = s.publisher.PublishAccountState(state); err != nil {
			logger.Error().Err(err).Str("address", state.User).Msg("publish account state failed")
		}
	}
}

func (s *Service) dropSubscriber(f *accountFeed, id int64) {
	f.mu.Lock()
	delete(f.subs, id)
	empty := len(f.subs) == 0
	var handle = f.handle
	if empty {
		f.active = false
		f.handle = nil
	}
	f.mu.Unlock()

	if !empty {
		return
	}

	s.mu.Lock()
	delete(s.feeds, f.address)
	s.mu.Unlock()

	if handle != nil {
		handle.Unsubscribe()
	}
	logger.Debug().Str("address", f.address).Msg("account feed detached")
}

// Warm prefetches baselines for a set of addresses on the worker pool so
// the first panel mount hits the cache.
func (s *Service) Warm(ctx context.Context, addresses []string) {
	var wg sync.WaitGroup
	for _, address := range addresses {
		addr := strings.ToLower(address)
		wg.Add(1)
		if err := s.pool.Submit(func() {
			defer wg.Done()
			if _, err := s.fetchBaseline(ctx, addr); err != nil {
				logger.Warn().Err(err).Str("address", addr).Msg("baseline warmup failed")
			}
		}); err != nil {
			wg.Done()
		}
	}
	wg.Wait()
}
