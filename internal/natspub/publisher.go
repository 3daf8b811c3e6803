// Package natspub fans reconciled account states out to external
// consumers over NATS. Publishing is optional: a nil *Publisher is safe
// to use and publishes nothing.
package natspub

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/hlview/hl-dashboard/internal/account"
	"github.com/hlview/hl-dashboard/internal/monitor"
)

const topicAccountState = "hl.dashboard.account_state"

type Publisher struct {
	conn   *nats.Conn
	mu     sync.RWMutex
	closed bool
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	monitor.GetMetrics().SetNATSConnected(true)

	return &Publisher{conn: conn}, nil
}

// PublishAccountState publishes one reconciled state on a per-address
// subject.
func (p *Publisher) PublishAccountState(state *account.State) error {
	if p == nil {
		return nil
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal account state: %w", err)
	}

	subject := topicAccountState + "." + strings.ToLower(state.User)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish account state: %w", err)
	}

	monitor.GetMetrics().IncStatesPublished()
	return nil
}

func (p *Publisher) IsConnected() bool {
	if p == nil {
		return false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !p.closed && p.conn != nil && !p.conn.IsClosed()
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true

	monitor.GetMetrics().SetNATSConnected(false)

	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}
