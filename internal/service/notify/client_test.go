package notify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"portal-agent/internal/domain"
	"portal-agent/internal/service/toast"
	"portal-agent/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

const chatFrame = `{"type":"chat_message","data":{"chat_room_id":42,"chat_room_name":"Logistics","sender_name":"Ana","message":"Hi","timestamp":"2024-05-01T10:00:00Z"}}`

// failingDialer never connects and records every attempt
type failingDialer struct {
	mu    sync.Mutex
	dials []string
}

func (d *failingDialer) DialContext(ctx context.Context, url string, _ http.Header) (*websocket.Conn, *http.Response, error) {
	d.mu.Lock()
	d.dials = append(d.dials, url)
	d.mu.Unlock()
	return nil, nil, errors.New("connection refused")
}

func (d *failingDialer) last() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[len(d.dials)-1]
}

func (d *failingDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dials)
}

// delayRecorder fires reconnect timers immediately and remembers the delays
type delayRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *delayRecorder) after(d time.Duration) <-chan time.Time {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func (r *delayRecorder) list() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

func newTestClient(opts Options, permission domain.NotificationPermission) (*Client, *toast.Feed, *DesktopCenter) {
	feed := toast.NewFeed(0, logger.NewNop())
	desktop := NewDesktopCenter(permission, logger.NewNop())
	if opts.URL.APIURL == "" {
		opts.URL.APIURL = "http://localhost:8000/api/v1"
	}
	if opts.Token == "" {
		opts.Token = "tok"
	}
	if opts.Tenant == "" {
		opts.Tenant = "acme"
	}
	return NewClient(opts, feed, desktop, logger.NewNop()), feed, desktop
}

func TestClient_ChatMessage(t *testing.T) {
	c, feed, desktop := newTestClient(Options{}, domain.PermissionGranted)

	c.HandleFrame(websocket.TextMessage, []byte(chatFrame))

	assert.Equal(t, int64(1), c.UnreadCount())
	toasts := feed.List()
	require.Len(t, toasts, 1)
	assert.Contains(t, toasts[0].Title+" "+toasts[0].Message, "Ana")
	assert.Contains(t, toasts[0].Message, "Hi")

	shown := desktop.List()
	require.Len(t, shown, 1)
	assert.Equal(t, "chat-room-42", shown[0].Tag)

	c.MarkChatAsRead()
	assert.Zero(t, c.UnreadCount())
}

func TestClient_DesktopNotificationRules(t *testing.T) {
	c, _, desktop := newTestClient(Options{}, domain.PermissionGranted)

	c.HandleFrame(websocket.TextMessage, []byte(chatFrame))
	c.HandleFrame(websocket.TextMessage, []byte(strings.Replace(chatFrame, `"Hi"`, `"Again"`, 1)))
	shown := desktop.List()
	require.Len(t, shown, 1, "same room replaces instead of stacking")
	assert.Equal(t, "Again", shown[0].Body)

	c.HandleFrame(websocket.TextMessage, []byte(`{"type":"chat_message","data":{"chat_room_id":7,"sender_name":"Ana","message":"no room","timestamp":"t"}}`))
	assert.Len(t, desktop.List(), 1, "no desktop notification without a room name")
	assert.Equal(t, int64(3), c.UnreadCount())

	denied, _, deniedDesktop := newTestClient(Options{}, domain.PermissionDefault)
	denied.HandleFrame(websocket.TextMessage, []byte(chatFrame))
	assert.Empty(t, deniedDesktop.List())
}

func TestClient_SystemNotificationToastOnly(t *testing.T) {
	c, feed, desktop := newTestClient(Options{}, domain.PermissionGranted)

	c.HandleFrame(websocket.TextMessage, []byte(`{"type":"system_notification","data":{"title":"Maintenance","body":"Tonight at 22:00"}}`))

	assert.Zero(t, c.UnreadCount())
	assert.Empty(t, desktop.List())
	toasts := feed.List()
	require.Len(t, toasts, 1)
	assert.Equal(t, "Maintenance", toasts[0].Title)
}

func TestClient_InvalidFramesHaveNoSideEffects(t *testing.T) {
	c, feed, desktop := newTestClient(Options{}, domain.PermissionGranted)

	frames := []string{
		`{"type":"chat_message","data":{"chat_room_id":42,"message":"Hi"}}`,
		`{"type":"chat_message","__proto__":{},"data":{"chat_room_id":42,"sender_name":"Ana","message":"Hi","timestamp":"t"}}`,
		`{"type":"chat_message","data":{"chat_room_id":42,"sender_name":"Ana","message":"` + strings.Repeat("a", MaxPayloadBytes) + `","timestamp":"t"}}`,
		`not json`,
	}
	for _, frame := range frames {
		c.HandleFrame(websocket.TextMessage, []byte(frame))
	}

	assert.Zero(t, c.UnreadCount())
	assert.Empty(t, feed.List())
	assert.Empty(t, desktop.List())
}

func TestClient_ToastEscapesMarkup(t *testing.T) {
	c, feed, _ := newTestClient(Options{}, domain.PermissionDefault)

	c.HandleFrame(websocket.TextMessage, []byte(`{"type":"chat_message","data":{"chat_room_id":1,"sender_name":"<b>x</b>","message":"<script>alert(1)</script>","timestamp":"t"}}`))

	toasts := feed.List()
	require.Len(t, toasts, 1)
	assert.Equal(t, "&lt;script&gt;alert(1)&lt;/script&gt;", toasts[0].Message)
	assert.NotContains(t, toasts[0].Title, "<b>")
}

func TestClient_LongMessageTruncated(t *testing.T) {
	c, feed, _ := newTestClient(Options{}, domain.PermissionDefault)

	c.HandleFrame(websocket.TextMessage, []byte(`{"type":"chat_message","data":{"chat_room_id":1,"message":"`+strings.Repeat("b", 150)+`","timestamp":"t"}}`))

	msg := feed.List()[0].Message
	assert.Equal(t, strings.Repeat("b", 100)+"...", msg)
	assert.Equal(t, "New message", feed.List()[0].Title)
}

func TestClient_BackoffThenGiveUp(t *testing.T) {
	dialer := &failingDialer{}
	delays := &delayRecorder{}
	c, _, _ := newTestClient(Options{Dialer: dialer, After: delays.after}, domain.PermissionDefault)

	require.NoError(t, c.Start(context.Background()))
	require.Eventually(t, func() bool { return c.State().GaveUp }, waitFor, tick)

	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
	}, delays.list())
	assert.Equal(t, 1+MaxReconnectAttempts, dialer.count(), "no sixth reconnect")

	require.Eventually(t, func() bool { return c.State().State == domain.ConnDisconnected }, waitFor, tick)

	// same session stays parked
	require.NoError(t, c.UpdateSession(context.Background(), "tok", "acme"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1+MaxReconnectAttempts, dialer.count())

	// a new token starts over with a fresh budget
	require.NoError(t, c.UpdateSession(context.Background(), "tok2", "acme"))
	require.Eventually(t, func() bool { return dialer.count() == 2*(1+MaxReconnectAttempts) }, waitFor, tick)
	require.Eventually(t, func() bool { return c.State().GaveUp }, waitFor, tick)
	assert.Contains(t, dialer.last(), "token=tok2")
}

func TestClient_StopCancelsPendingReconnect(t *testing.T) {
	dialer := &failingDialer{}
	parked := make(chan time.Duration, 1)
	fire := make(chan time.Time, 1)
	after := func(d time.Duration) <-chan time.Time {
		parked <- d
		return fire
	}
	c, _, _ := newTestClient(Options{Dialer: dialer, After: after}, domain.PermissionDefault)

	require.NoError(t, c.Start(context.Background()))
	select {
	case d := <-parked:
		assert.Equal(t, time.Second, d)
	case <-time.After(waitFor):
		t.Fatal("reconnect was never scheduled")
	}

	require.NoError(t, c.Stop(context.Background()))
	fire <- time.Now()
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 1, dialer.count(), "no dial after a deliberate stop")
	state := c.State()
	assert.Equal(t, domain.ConnDisconnected, state.State)
	assert.False(t, state.GaveUp)
}

func TestClient_StartRejectsDisallowedHost(t *testing.T) {
	dialer := &failingDialer{}
	c, _, _ := newTestClient(Options{
		URL:    URLOptions{APIURL: "https://portal.example.org", WSURL: "wss://evil.example.com"},
		Dialer: dialer,
	}, domain.PermissionDefault)

	assert.Error(t, c.Start(context.Background()))
	assert.Zero(t, dialer.count())
	assert.Equal(t, domain.ConnDisconnected, c.State().State)
}

// socketServer is a notification endpoint whose behaviour per connection is
// scripted by the test
type socketServer struct {
	*httptest.Server
	mu         sync.Mutex
	conns      int
	closeCodes chan int
	query      chan string
}

func newSocketServer(t *testing.T, handle func(s *socketServer, n int, conn *websocket.Conn)) *socketServer {
	s := &socketServer{closeCodes: make(chan int, 10), query: make(chan string, 10)}
	upgrader := websocket.Upgrader{}

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != NotificationsPath {
			http.NotFound(w, r)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		s.query <- r.URL.RawQuery

		s.mu.Lock()
		s.conns++
		n := s.conns
		s.mu.Unlock()

		handle(s, n, conn)
	}))
	t.Cleanup(s.Close)
	return s
}

// drain reads until the client goes away and reports the close code
func (s *socketServer) drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				s.closeCodes <- closeErr.Code
			} else {
				s.closeCodes <- websocket.CloseAbnormalClosure
			}
			return
		}
	}
}

func TestClient_LiveSocket(t *testing.T) {
	srv := newSocketServer(t, func(s *socketServer, n int, conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte(chatFrame))
		_ = conn.WriteMessage(websocket.BinaryMessage, []byte(chatFrame))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"chat_message","data":{"chat_room_id":1,"message":"`+strings.Repeat("z", 2*MaxPayloadBytes)+`","timestamp":"t"}}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"system_notification","data":{"title":"Done","body":"ok"}}`))
		s.drain(conn)
	})

	c, feed, _ := newTestClient(Options{URL: URLOptions{APIURL: srv.URL}}, domain.PermissionDefault)
	require.NoError(t, c.Start(context.Background()))

	require.Eventually(t, func() bool { return len(feed.List()) == 2 }, waitFor, tick)
	assert.Equal(t, int64(1), c.UnreadCount())
	assert.Equal(t, domain.ConnOpen, c.State().State)
	assert.Equal(t, "Done", feed.List()[1].Title)
	assert.Equal(t, "tenant=acme&token=tok", <-srv.query)

	require.NoError(t, c.Stop(context.Background()))
	assert.Equal(t, websocket.CloseNormalClosure, <-srv.closeCodes)
	assert.Equal(t, domain.ConnDisconnected, c.State().State)

	time.Sleep(20 * time.Millisecond)
	srv.mu.Lock()
	assert.Equal(t, 1, srv.conns, "no reconnect after a deliberate close")
	srv.mu.Unlock()
}

func TestClient_ReconnectsAfterAbnormalClose(t *testing.T) {
	srv := newSocketServer(t, func(s *socketServer, n int, conn *websocket.Conn) {
		if n == 1 {
			msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "restart")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			_ = conn.Close()
			return
		}
		_ = conn.WriteMessage(websocket.TextMessage, []byte(chatFrame))
		s.drain(conn)
		_ = conn.Close()
	})

	delays := &delayRecorder{}
	c, _, _ := newTestClient(Options{URL: URLOptions{APIURL: srv.URL}, After: delays.after}, domain.PermissionDefault)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Stop(context.Background()) })

	require.Eventually(t, func() bool { return c.UnreadCount() == 1 }, waitFor, tick)
	assert.Equal(t, []time.Duration{time.Second}, delays.list())

	state := c.State()
	assert.Equal(t, domain.ConnOpen, state.State)
	assert.Zero(t, state.Attempts, "a successful open resets the budget")
}

func TestClient_ServerNormalCloseDoesNotReconnect(t *testing.T) {
	srv := newSocketServer(t, func(s *socketServer, n int, conn *websocket.Conn) {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = conn.Close()
	})

	delays := &delayRecorder{}
	c, _, _ := newTestClient(Options{URL: URLOptions{APIURL: srv.URL}, After: delays.after}, domain.PermissionDefault)
	require.NoError(t, c.Start(context.Background()))

	require.Eventually(t, func() bool {
		srv.mu.Lock()
		defer srv.mu.Unlock()
		return srv.conns == 1
	}, waitFor, tick)
	require.Eventually(t, func() bool { return c.State().State == domain.ConnDisconnected }, waitFor, tick)

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, delays.list())
	srv.mu.Lock()
	assert.Equal(t, 1, srv.conns)
	srv.mu.Unlock()
}
