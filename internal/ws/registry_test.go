package ws

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/hlview/hl-dashboard/internal/wire"
)

func drainCommands(t *testing.T, msgs chan []byte, wait time.Duration) []wire.Command {
	t.Helper()

	var cmds []wire.Command
	timeout := time.After(wait)
	for {
		select {
		case msg := <-msgs:
			var cmd wire.Command
			if err := json.Unmarshal(msg, &cmd); err != nil {
				t.Fatalf("unmarshal command %s: %v", msg, err)
			}
			cmds = append(cmds, cmd)
		case <-timeout:
			return cmds
		}
	}
}

func TestSubscribeCollapsesEquivalentKeys(t *testing.T) {
	server, conns, msgs := newEchoServer(t)

	m := NewManager(toWSURL(server))
	defer m.Close()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	waitConn(t, conns)

	h1 := m.Subscribe(wire.WebData2Sub("0xAABB"), func(wire.Frame) {})
	h2 := m.Subscribe(wire.WebData2Sub("0xaabb"), func(wire.Frame) {})
	defer h1.Unsubscribe()
	defer h2.Unsubscribe()

	if got := m.SubscriptionCount(); got != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", got)
	}

	cmds := drainCommands(t, msgs, 300*time.Millisecond)
	subscribes := 0
	for _, cmd := range cmds {
		if cmd.Method == "subscribe" {
			subscribes++
		}
	}
	if subscribes != 1 {
		t.Errorf("wire subscribes = %d, want exactly 1", subscribes)
	}
}

func TestUnsubscribeIdempotentAndSharedEntry(t *testing.T) {
	server, conns, msgs := newEchoServer(t)

	m := NewManager(toWSURL(server))
	defer m.Close()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	waitConn(t, conns)

	h1 := m.Subscribe(wire.WebData2Sub("0xabc"), func(wire.Frame) {})
	h2 := m.Subscribe(wire.WebData2Sub("0xABC"), func(wire.Frame) {})
	drainCommands(t, msgs, 200*time.Millisecond)

	// First consumer leaves: the entry survives, no wire unsubscribe.
	h1.Unsubscribe()
	h1.Unsubscribe()
	if got := m.SubscriptionCount(); got != 1 {
		t.Errorf("SubscriptionCount() after first leave = %d, want 1", got)
	}
	if cmds := drainCommands(t, msgs, 200*time.Millisecond); len(cmds) != 0 {
		t.Errorf("unexpected wire traffic after partial unsubscribe: %v", cmds)
	}

	// Last consumer leaves: exactly one wire unsubscribe, repeats are no-ops.
	h2.Unsubscribe()
	h2.Unsubscribe()
	h2.Unsubscribe()
	if got := m.SubscriptionCount(); got != 0 {
		t.Errorf("SubscriptionCount() after last leave = %d, want 0", got)
	}

	cmds := drainCommands(t, msgs, 300*time.Millisecond)
	unsubscribes := 0
	for _, cmd := range cmds {
		if cmd.Method == "unsubscribe" {
			unsubscribes++
		}
	}
	if unsubscribes != 1 {
		t.Errorf("wire unsubscribes = %d, want exactly 1", unsubscribes)
	}
}

func TestRouteExactKeyMatch(t *testing.T) {
	clk := clock.NewMock()
	m := NewManager("ws://127.0.0.1:1/ws", WithClock(clk))

	var delivered atomic.Int32
	handle := m.Subscribe(wire.WebData2Sub("0xABC"), func(wire.Frame) { delivered.Add(1) })
	defer handle.Unsubscribe()

	m.route(wire.Frame{
		Kind:    wire.KindData,
		Channel: wire.ChannelWebData2,
		Data:    []byte(`{"user":"0xAbC","clearinghouseState":{}}`),
	})

	if got := delivered.Load(); got != 1 {
		t.Errorf("delivered = %d, want 1", got)
	}
}

func TestRoutePrefixFallbackWithoutUser(t *testing.T) {
	clk := clock.NewMock()
	m := NewManager("ws://127.0.0.1:1/ws", WithClock(clk))

	var delivered atomic.Int32
	handle := m.Subscribe(wire.WebData2Sub("0xabc"), func(wire.Frame) { delivered.Add(1) })
	defer handle.Unsubscribe()

	// Frame without its user parameter still reaches channel subscribers.
	m.route(wire.Frame{
		Kind:    wire.KindData,
		Channel: wire.ChannelWebData2,
		Data:    []byte(`{"clearinghouseState":{}}`),
	})

	if got := delivered.Load(); got != 1 {
		t.Errorf("delivered = %d, want 1", got)
	}
}

func TestRouteDropsFrameForOtherUser(t *testing.T) {
	clk := clock.NewMock()
	m := NewManager("ws://127.0.0.1:1/ws", WithClock(clk))

	var delivered atomic.Int32
	handle := m.Subscribe(wire.WebData2Sub("0xabc"), func(wire.Frame) { delivered.Add(1) })
	defer handle.Unsubscribe()

	// A frame scoped to a user nobody subscribes to must not fall back to
	// the channel broadcast and land in another user's feed.
	m.route(wire.Frame{
		Kind:    wire.KindData,
		Channel: wire.ChannelWebData2,
		Data:    []byte(`{"user":"0xdef","clearinghouseState":{"marginSummary":{"accountValue":"999.0"}}}`),
	})

	if got := delivered.Load(); got != 0 {
		t.Errorf("foreign user's frame delivered %d times, want 0", got)
	}

	// The matching user still gets through.
	m.route(wire.Frame{
		Kind:    wire.KindData,
		Channel: wire.ChannelWebData2,
		Data:    []byte(`{"user":"0xABC","clearinghouseState":{}}`),
	})
	if got := delivered.Load(); got != 1 {
		t.Errorf("delivered = %d, want 1", got)
	}
}

func TestRouteUnmatchedFrameDropped(t *testing.T) {
	clk := clock.NewMock()
	m := NewManager("ws://127.0.0.1:1/ws", WithClock(clk))

	var delivered atomic.Int32
	handle := m.Subscribe(wire.WebData2Sub("0xabc"), func(wire.Frame) { delivered.Add(1) })
	defer handle.Unsubscribe()

	m.route(wire.Frame{
		Kind:    wire.KindData,
		Channel: wire.ChannelAllMids,
		Data:    []byte(`{"mids":{}}`),
	})

	if got := delivered.Load(); got != 0 {
		t.Errorf("delivered = %d, want 0", got)
	}
}

func TestReplaySkipsAlreadySentSubscriptions(t *testing.T) {
	server, conns, msgs := newEchoServer(t)

	m := NewManager(toWSURL(server))
	defer m.Close()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	waitConn(t, conns)

	handle := m.Subscribe(wire.WebData2Sub("0xabc"), func(wire.Frame) {})
	defer handle.Unsubscribe()
	drainCommands(t, msgs, 200*time.Millisecond)

	// A replay on the same connection generation must not resend what
	// Subscribe already sent.
	m.mu.Lock()
	client := m.client
	m.mu.Unlock()
	m.replaySubscriptions(client)

	if cmds := drainCommands(t, msgs, 300*time.Millisecond); len(cmds) != 0 {
		t.Errorf("replay resent %d commands on the same connection: %v", len(cmds), cmds)
	}
}

func TestSubscriptionReplayOnReconnect(t *testing.T) {
	server, conns, msgs := newEchoServer(t)

	m := NewManager(toWSURL(server), WithBackoff(10*time.Millisecond, 20*time.Millisecond))
	defer m.Close()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	conn1 := waitConn(t, conns)

	h1 := m.Subscribe(wire.WebData2Sub("0xabc"), func(wire.Frame) {})
	h2 := m.Subscribe(wire.AllMidsSub(), func(wire.Frame) {})
	defer h1.Unsubscribe()
	defer h2.Unsubscribe()
	drainCommands(t, msgs, 200*time.Millisecond)

	// Server drops the connection; the manager reconnects and replays.
	conn1.Close()
	waitConn(t, conns)

	cmds := drainCommands(t, msgs, time.Second)
	replayed := make(map[string]bool)
	for _, cmd := range cmds {
		if cmd.Method != "subscribe" {
			continue
		}
		raw, err := json.Marshal(cmd.Subscription)
		if err != nil {
			t.Fatalf("marshal replayed subscription: %v", err)
		}
		var sub wire.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			t.Fatalf("unmarshal replayed subscription: %v", err)
		}
		replayed[sub.Key()] = true
	}

	if len(replayed) != 2 {
		t.Fatalf("replayed %d distinct subscriptions, want 2: %v", len(replayed), replayed)
	}
	if !replayed["webData2:0xabc"] || !replayed["allMids"] {
		t.Errorf("replayed keys = %v, want webData2:0xabc and allMids", replayed)
	}
}
