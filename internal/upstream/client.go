// Package upstream maintains the websocket connection to the game server
// and hands every binary message to a Handler in arrival order.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler receives raw messages. It is called from a single goroutine.
type Handler interface {
	Handle(message []byte)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(message []byte)

func (f HandlerFunc) Handle(message []byte) { f(message) }

// Config controls dialing and keepalive.
type Config struct {
	URL              string        `mapstructure:"url"`
	Origin           string        `mapstructure:"origin"`
	ReconnectDelay   time.Duration `mapstructure:"reconnect_delay"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	// ReadTimeout closes a connection that has been silent this long.
	// Zero disables it.
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

// Stats describe the connection history.
type Stats struct {
	Connected     bool      `json:"connected"`
	ConnectionID  string    `json:"connectionId,omitempty"`
	Connects      uint64    `json:"connects"`
	DialFailures  uint64    `json:"dialFailures"`
	Messages      uint64    `json:"messages"`
	TextMessages  uint64    `json:"textMessages"`
	LastConnected time.Time `json:"lastConnected,omitempty"`
}

// Client dials the upstream server and redials after every disconnect.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *zap.Logger

	mu            sync.RWMutex
	connected     bool
	connID        string
	lastConnected time.Time

	connects     atomic.Uint64
	dialFailures atomic.Uint64
	messages     atomic.Uint64
	textMessages atomic.Uint64
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: logger,
	}
}

// Run connects and reads until ctx is cancelled. After a disconnect or a
// failed dial it waits ReconnectDelay before trying again.
func (c *Client) Run(ctx context.Context, h Handler) error {
	for {
		err := c.session(ctx, h)
		if ctx.Err() != nil {
			c.logger.Info("upstream client stopped")
			return nil
		}
		c.logger.Warn("upstream disconnected",
			zap.Error(err),
			zap.Duration("reconnectIn", c.cfg.ReconnectDelay),
		)

		select {
		case <-ctx.Done():
			c.logger.Info("upstream client stopped")
			return nil
		case <-time.After(c.cfg.ReconnectDelay):
		}
	}
}

// session runs one connection from dial to close.
func (c *Client) session(ctx context.Context, h Handler) error {
	var header http.Header
	if c.cfg.Origin != "" {
		header = http.Header{"Origin": {c.cfg.Origin}}
	}

	conn, resp, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		c.dialFailures.Add(1)
		if resp != nil {
			return fmt.Errorf("dial %s: status %d: %w", c.cfg.URL, resp.StatusCode, err)
		}
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	defer func() { _ = conn.Close() }()

	connID := uuid.New().String()
	c.setConnected(true, connID)
	defer c.setConnected(false, "")
	c.connects.Add(1)

	logger := c.logger.With(zap.String("connID", connID))
	logger.Info("upstream connected", zap.String("url", c.cfg.URL))

	if c.cfg.MaxMessageSize > 0 {
		conn.SetReadLimit(c.cfg.MaxMessageSize)
	}
	c.extendDeadline(conn)
	conn.SetPongHandler(func(string) error {
		c.extendDeadline(conn)
		return nil
	})

	// Closing the connection unblocks ReadMessage on cancel.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()

	if c.cfg.PingInterval > 0 {
		go c.pingLoop(conn, stop, logger)
	}

	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Errorf("connection closed: %w", closeErr)
			}
			return fmt.Errorf("read: %w", err)
		}
		c.extendDeadline(conn)

		if msgType != websocket.BinaryMessage {
			c.textMessages.Add(1)
			logger.Debug("ignoring non-binary message", zap.Int("length", len(message)))
			continue
		}
		c.messages.Add(1)
		h.Handle(message)
	}
}

func (c *Client) pingLoop(conn *websocket.Conn, stop <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				logger.Debug("upstream ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) extendDeadline(conn *websocket.Conn) {
	if c.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
}

func (c *Client) setConnected(connected bool, connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = connected
	c.connID = connID
	if connected {
		c.lastConnected = time.Now()
	}
}

// Stats returns a snapshot of the connection counters.
func (c *Client) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Connected:     c.connected,
		ConnectionID:  c.connID,
		Connects:      c.connects.Load(),
		DialFailures:  c.dialFailures.Load(),
		Messages:      c.messages.Load(),
		TextMessages:  c.textMessages.Load(),
		LastConnected: c.lastConnected,
	}
}
