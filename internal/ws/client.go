package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"

	"github.com/hlview/hl-dashboard/internal/wire"
	"github.com/hlview/hl-dashboard/pkg/logger"
)

// Client owns one physical websocket. It reads frames, keeps the
// transport alive with periodic pings and reports an unexpected close
// exactly once. Reconnection policy lives in the Manager.
type Client struct {
	url     string
	conn    *websocket.Conn
	mu      sync.RWMutex
	writeMu sync.Mutex
	clk     clock.Clock
	debug   bool

	done      chan struct{}
	closeOnce sync.Once

	onFrame      func(wire.Frame)
	onDisconnect func()
}

func NewClient(url string, clk clock.Clock) *Client {
	if url == "" {
		panic("ws: URL cannot be empty")
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Client{
		url:  url,
		clk:  clk,
		done: make(chan struct{}),
	}
}

// SetFrameHandler must be called before Connect.
func (c *Client) SetFrameHandler(handler func(wire.Frame)) {
	c.onFrame = handler
}

// SetDisconnectCallback registers the handler invoked once when the
// connection closes for any reason other than Close.
func (c *Client) SetDisconnectCallback(callback func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = callback
}

func (c *Client) SetDebug(on bool) {
	c.debug = on
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial error: %w", err)
	}

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	// ctx bounds the dial only. Close drops the transport, unblocking
	// ReadMessage.
	go func() {
		<-c.done
		c.closeTransport()
	}()

	go c.readPump()
	go c.pingPump()

	return nil
}

// closeTransport drops the socket without the disconnect notification.
func (c *Client) closeTransport() {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
}

// Close is an intentional shutdown: idempotent, no disconnect callback.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.closeTransport()
	})
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil
}

func (c *Client) readPump() {
	defer func() {
		c.closeTransport()
		c.notifyDisconnect()
	}()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			return
		}

		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				logger.Error().Err(err).Msg("ws read error")
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(pongWait))

		if c.debug {
			logger.Debug().Msgf("[<] %s", msg)
		}

		frame, err := wire.Decode(msg)
		if err != nil {
			logger.Warn().Err(err).Msg("dropping undecodable frame")
			continue
		}

		if c.onFrame != nil {
			c.onFrame(frame)
		}
	}
}

func (c *Client) pingPump() {
	ticker := c.clk.Ticker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.Ping(); err != nil {
				// The read pump observes the broken socket and reports
				// the disconnect.
				c.closeTransport()
				return
			}
		}
	}
}

// Ping sends both a control-frame ping and the application-level ping the
// upstream expects.
func (c *Client) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("connection closed")
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		return err
	}
	return conn.WriteJSON(wire.PingCmd())
}

func (c *Client) Subscribe(sub wire.Subscription) error {
	return c.writeJSON(wire.SubscribeCmd(sub))
}

func (c *Client) Unsubscribe(sub wire.Subscription) error {
	return c.writeJSON(wire.UnsubscribeCmd(sub))
}

func (c *Client) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("connection closed")
	}

	if c.debug {
		bts, _ := json.Marshal(v)
		logger.Debug().Msgf("[>] %s", bts)
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

func (c *Client) notifyDisconnect() {
	select {
	case <-c.done:
		// Intentional close, nothing to report.
		return
	default:
	}

	c.mu.RLock()
	callback := c.onDisconnect
	c.mu.RUnlock()

	if callback != nil {
		callback()
	}
}
