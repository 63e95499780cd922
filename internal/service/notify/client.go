package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"portal-agent/internal/domain"
	"portal-agent/internal/service"
	"portal-agent/pkg/logger"

	"github.com/gorilla/websocket"
)

// Dialer opens the socket. *websocket.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, urlStr string, requestHeader http.Header) (*websocket.Conn, *http.Response, error)
}

// Options configures the notification socket client
type Options struct {
	URL    URLOptions
	Token  string
	Tenant string
	Dialer Dialer
	// After schedules reconnect attempts; defaults to time.After
	After func(time.Duration) <-chan time.Time
}

// Status is a snapshot of the client for the control API
type Status struct {
	State      domain.ConnectionState        `json:"state"`
	Attempts   int                           `json:"reconnect_attempts"`
	GaveUp     bool                          `json:"gave_up"`
	Unread     int64                         `json:"unread"`
	Permission domain.NotificationPermission `json:"permission"`
}

// Client keeps one notification socket open for a session and turns
// inbound messages into toasts and desktop notifications. It never sends
// application frames.
type Client struct {
	opts    Options
	toasts  service.Toaster
	desktop *DesktopCenter
	logger  *logger.Logger

	unread atomic.Int64

	mu       sync.Mutex
	state    domain.ConnectionState
	attempts int
	gaveUp   bool
	running  bool
	cancel   context.CancelFunc
	conn     *websocket.Conn
	done     chan struct{}
}

// NewClient creates a client; nothing connects until Start
func NewClient(opts Options, toasts service.Toaster, desktop *DesktopCenter, logger *logger.Logger) *Client {
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}
	if opts.After == nil {
		opts.After = time.After
	}
	return &Client{
		opts:    opts,
		toasts:  toasts,
		desktop: desktop,
		logger:  logger.Component("notify"),
		state:   domain.ConnDisconnected,
	}
}

// Start connects in the background. It is a no-op while a connection loop
// is already running.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	url, err := BuildURL(c.opts.URL, c.opts.Token, c.opts.Tenant)
	if err != nil {
		c.logger.WithError(err).Error("Refusing to open notification socket")
		return fmt.Errorf("invalid notification socket URL: %w", err)
	}

	// The loop outlives the caller's request, only Stop ends it
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true
	c.attempts = 0
	c.gaveUp = false

	c.logger.WithField("url", redact(url)).Info("Starting notification socket")
	go c.run(runCtx, url, c.done)
	return nil
}

// Stop closes the socket with a normal closure and cancels any pending
// reconnect. No reconnect follows.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	// Cancel under the lock so a connection cannot be published after it
	c.cancel()
	conn, done := c.conn, c.done
	c.running = false
	c.mu.Unlock()

	c.logger.Info("Stopping notification socket")
	if conn != nil {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		if err := conn.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			c.logger.WithError(err).Debug("Failed to send close frame")
		}
		_ = conn.Close()
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	c.setState(domain.ConnDisconnected)
	c.logger.Info("Notification socket stopped")
	return nil
}

// UpdateSession switches the socket to a new token or tenant with a fresh
// reconnect budget. Unchanged inputs are a no-op.
func (c *Client) UpdateSession(ctx context.Context, token, tenant string) error {
	c.mu.Lock()
	unchanged := c.opts.Token == token && c.opts.Tenant == tenant
	c.mu.Unlock()

	if unchanged {
		return nil
	}

	if err := c.Stop(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.opts.Token = token
	c.opts.Tenant = tenant
	c.mu.Unlock()

	return c.Start(ctx)
}

// MarkChatAsRead resets the unread counter
func (c *Client) MarkChatAsRead() {
	c.unread.Store(0)
}

// UnreadCount returns the number of chat messages received since the last
// MarkChatAsRead
func (c *Client) UnreadCount() int64 {
	return c.unread.Load()
}

// RequestNotificationPermission answers the one-time desktop notification
// prompt
func (c *Client) RequestNotificationPermission(answer domain.NotificationPermission) domain.NotificationPermission {
	return c.desktop.RequestPermission(answer)
}

// State returns a snapshot of the client
func (c *Client) State() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		State:      c.state,
		Attempts:   c.attempts,
		GaveUp:     c.gaveUp,
		Unread:     c.unread.Load(),
		Permission: c.desktop.Permission(),
	}
}

// HandleFrame parses one inbound frame and raises its side effects. Invalid
// frames are logged and dropped.
func (c *Client) HandleFrame(messageType int, payload []byte) {
	n, err := ParseNotification(messageType, payload)
	if err != nil {
		c.logger.WithError(err).WithField("bytes", len(payload)).Debug("Dropped notification frame")
		return
	}

	switch n.Type {
	case domain.NotificationChatMessage:
		c.handleChat(n.Chat)
	case domain.NotificationSystem:
		c.toasts.Info(n.System.Title, n.System.Body)
	}
}

func (c *Client) handleChat(msg *domain.ChatMessage) {
	c.unread.Add(1)

	title := "New message"
	if msg.SenderName != "" {
		title = "New message from " + msg.SenderName
	}
	preview := truncate(msg.Message, toastMessageLimit)
	c.toasts.Info(title, preview)

	if msg.SenderName != "" && msg.ChatRoomName != "" {
		tag := fmt.Sprintf("chat-room-%d", msg.ChatRoomID)
		c.desktop.Show(tag, msg.SenderName+" in "+msg.ChatRoomName, preview)
	}
}

func (c *Client) run(ctx context.Context, url string, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.done == done {
			c.running = false
			c.state = domain.ConnDisconnected
		}
		c.mu.Unlock()
		close(done)
	}()

	log := c.logger.WithField("url", redact(url))

	for {
		c.setState(domain.ConnConnecting)

		conn, _, err := c.opts.Dialer.DialContext(ctx, url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.WithError(err).Warn("Notification socket connection failed")
		} else {
			if !c.opened(ctx, conn) {
				_ = conn.Close()
				return
			}
			log.Info("Notification socket connected")

			code := c.readLoop(conn)
			c.mu.Lock()
			c.conn = nil
			c.mu.Unlock()
			_ = conn.Close()

			if ctx.Err() != nil {
				return
			}
			if code == websocket.CloseNormalClosure {
				log.Info("Notification socket closed by server")
				return
			}
			log.WithField("code", code).Warn("Notification socket closed abnormally")
		}

		delay, ok := c.nextDelay()
		c.setState(domain.ConnDisconnected)
		if !ok {
			log.WithField("attempts", MaxReconnectAttempts).Warn("Giving up on notification socket until the session changes")
			return
		}

		log.WithField("delay", delay).Debug("Scheduling notification socket reconnect")
		select {
		case <-ctx.Done():
			return
		case <-c.opts.After(delay):
		}
	}
}

// opened publishes a fresh connection unless Stop won the race
func (c *Client) opened(ctx context.Context, conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ctx.Err() != nil {
		return false
	}
	c.conn = conn
	c.state = domain.ConnOpen
	c.attempts = 0
	return true
}

func (c *Client) nextDelay() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attempts >= MaxReconnectAttempts {
		c.gaveUp = true
		return 0, false
	}
	c.attempts++
	return Backoff(c.attempts), true
}

// readLoop consumes frames until the connection ends and returns the close
// code
func (c *Client) readLoop(conn *websocket.Conn) int {
	for {
		messageType, r, err := conn.NextReader()
		if err != nil {
			return closeCode(err)
		}

		payload, err := io.ReadAll(io.LimitReader(r, MaxPayloadBytes+1))
		if err != nil {
			return closeCode(err)
		}
		if len(payload) > MaxPayloadBytes {
			if _, err := io.Copy(io.Discard, r); err != nil {
				return closeCode(err)
			}
		}

		c.HandleFrame(messageType, payload)
	}
}

func closeCode(err error) int {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return closeErr.Code
	}
	return websocket.CloseAbnormalClosure
}

func (c *Client) setState(state domain.ConnectionState) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}
