// Package stream is the boundary UI collaborators consume: account-state
// feeds reconciled from a REST baseline plus push updates, the live
// mid-price map, and connection status/pulse observers. Connection churn
// is hidden behind the subscriptions.
package stream

import (
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/hlview/hl-dashboard/internal/account"
	"github.com/hlview/hl-dashboard/internal/cache"
	"github.com/hlview/hl-dashboard/internal/info"
	"github.com/hlview/hl-dashboard/internal/natspub"
	"github.com/hlview/hl-dashboard/internal/ws"
)

const defaultPoolSize = 64

type Service struct {
	mgr       *ws.Manager
	info      *info.Client
	prices    *cache.PriceCache
	baselines *cache.BaselineCache
	pool      *ants.Pool
	publisher *natspub.Publisher // nil disables fan-out

	mu          sync.Mutex
	feeds       map[string]*accountFeed
	priceHandle *ws.Handle
	priceRefs   int
}

// accountFeed is the per-address reconciliation state shared by every
// subscriber to that address.
type accountFeed struct {
	address string

	// baselineMu serializes the one REST baseline fetch per fresh feed.
	baselineMu sync.Mutex

	mu     sync.Mutex
	active bool
	state  *account.State
	subs   map[int64]func(*account.State)
	seq    int64
	handle *ws.Handle
}

func NewService(mgr *ws.Manager, infoClient *info.Client, baselines *cache.BaselineCache, poolSize int, publisher *natspub.Publisher) (*Service, error) {
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	return &Service{
		mgr:       mgr,
		info:      infoClient,
		prices:    cache.NewPriceCache(),
		baselines: baselines,
		pool:      pool,
		publisher: publisher,
		feeds:     make(map[string]*accountFeed),
	}, nil
}

func (s *Service) Close() {
	s.pool.Release()
}

// OnStatusChange mirrors the connection manager's status observer.
func (s *Service) OnStatusChange(cb func(ws.Status)) func() {
	return s.mgr.OnStatusChange(cb)
}

// OnPulse mirrors the connection manager's per-frame liveness pulse.
func (s *Service) OnPulse(cb func()) func() {
	return s.mgr.OnPulse(cb)
}

// Prices returns the mid-price cache for direct reads.
func (s *Service) Prices() *cache.PriceCache {
	return s.prices
}
