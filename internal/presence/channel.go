package presence

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/metrics"
	"github.com/slimkiddjudas/BlogProjectFrontend-sub000/internal/session"
)

var errServerDisconnect = errors.New("presence: server closed the channel")

// ReconnectPolicy controls what happens after an unexpected close.
// MaxAttempts 0 disables reconnection. A disconnect event sent by the server
// ends the channel for the current user unless ReconnectOnDisconnect is set.
type ReconnectPolicy struct {
	MaxAttempts           int
	InitialBackoff        time.Duration
	MaxBackoff            time.Duration
	ReconnectOnDisconnect bool
}

var DefaultReconnectPolicy = ReconnectPolicy{
	MaxAttempts:    5,
	InitialBackoff: time.Second,
	MaxBackoff:     30 * time.Second,
}

func (p ReconnectPolicy) backoff(attempt int) time.Duration {
	d := p.InitialBackoff
	if d <= 0 {
		d = time.Second
	}
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

type Options struct {
	Dialer Dialer
	// Header supplies the handshake headers, normally the visitor's cookies.
	Header func() http.Header
	Policy ReconnectPolicy
}

type msgSession struct{ user *session.User }
type msgDialed struct {
	gen  int
	conn Conn
	err  error
}
type msgCount struct {
	gen int
	n   int
}
type msgClosed struct {
	gen int
	err error
}
type msgRetry struct{ gen int }

// Channel keeps one websocket open while a user is signed in and tracks the
// server's active user count. A single goroutine owns the connection; session
// changes are applied in the order Observe receives them.
type Channel struct {
	url    string
	dialer Dialer
	header func() http.Header
	policy ReconnectPolicy

	inbox     chan interface{}
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	mu        sync.RWMutex
	count     int
	connected bool
	conn      Conn

	subMu     sync.Mutex
	listeners map[int]func(int)
	nextSub   int
}

func New(url string, opts Options) *Channel {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = WebsocketDialer{}
	}
	header := opts.Header
	if header == nil {
		header = func() http.Header { return http.Header{} }
	}
	c := &Channel{
		url:       url,
		dialer:    dialer,
		header:    header,
		policy:    opts.Policy,
		inbox:     make(chan interface{}, 16),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
		listeners: make(map[int]func(int)),
	}
	go c.run()
	return c
}

func (c *Channel) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

func (c *Channel) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Handle returns the open connection, or nil when there is none.
func (c *Channel) Handle() Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// OnCount registers fn for count updates. The returned func removes it.
func (c *Channel) OnCount(fn func(int)) func() {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.listeners[id] = fn
	c.subMu.Unlock()

	return func() {
		c.subMu.Lock()
		delete(c.listeners, id)
		c.subMu.Unlock()
	}
}

// Observe feeds a session state into the channel. Unresolved states are
// ignored.
func (c *Channel) Observe(state session.State) {
	if !state.Resolved() {
		return
	}
	var user *session.User
	if state.Authenticated() {
		u := *state.User
		user = &u
	}
	c.send(msgSession{user: user})
}

// Close tears down the connection and stops the channel. It is safe to call
// more than once.
func (c *Channel) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
	<-c.done
}

func (c *Channel) send(msg interface{}) bool {
	select {
	case c.inbox <- msg:
		return true
	case <-c.done:
		return false
	}
}

type loop struct {
	gen      int
	userID   string
	conn     Conn
	dialing  bool
	cancel   context.CancelFunc
	retry    *time.Timer
	attempts int
	// kicked is set when the server ended the channel for userID.
	kicked bool
}

func (c *Channel) run() {
	defer close(c.done)
	var l loop
	for {
		select {
		case <-c.stop:
			c.teardown(&l)
			return
		case msg := <-c.inbox:
			c.handle(&l, msg)
		}
	}
}

func (c *Channel) handle(l *loop, msg interface{}) {
	switch m := msg.(type) {
	case msgSession:
		if m.user == nil {
			if l.userID != "" || l.conn != nil || l.dialing {
				c.teardown(l)
			}
			l.userID = ""
			l.kicked = false
			return
		}
		if m.user.ID == l.userID && (l.conn != nil || l.dialing || l.retry != nil || l.kicked) {
			return
		}
		c.teardown(l)
		l.userID = m.user.ID
		l.attempts = 0
		l.kicked = false
		c.connect(l)

	case msgDialed:
		if m.gen != l.gen {
			if m.conn != nil {
				_ = m.conn.Close()
			}
			return
		}
		l.dialing = false
		if l.cancel != nil {
			l.cancel()
			l.cancel = nil
		}
		if m.err != nil {
			metrics.PresenceConnections.WithLabelValues("failed").Inc()
			log.Printf("presence connect failed: %v", m.err)
			c.scheduleRetry(l)
			return
		}
		metrics.PresenceConnections.WithLabelValues("connected").Inc()
		l.conn = m.conn
		l.attempts = 0
		c.mu.Lock()
		c.conn = m.conn
		c.connected = true
		c.mu.Unlock()
		go c.read(m.gen, m.conn)

	case msgCount:
		if m.gen != l.gen || l.conn == nil {
			return
		}
		c.setCount(m.n)

	case msgClosed:
		if m.gen != l.gen || l.conn == nil {
			return
		}
		kicked := errors.Is(m.err, errServerDisconnect)
		if m.err != nil && !kicked {
			log.Printf("presence connection error: %v", m.err)
		}
		_ = l.conn.Close()
		l.conn = nil
		c.reset()
		if kicked && !c.policy.ReconnectOnDisconnect {
			log.Printf("presence channel closed by server for user %s", l.userID)
			l.kicked = true
			return
		}
		c.scheduleRetry(l)

	case msgRetry:
		if m.gen != l.gen || l.userID == "" || l.conn != nil || l.dialing {
			return
		}
		l.retry = nil
		c.connect(l)
	}
}

func (c *Channel) connect(l *loop) {
	l.gen++
	gen := l.gen
	userID := l.userID
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.dialing = true

	go func() {
		conn, err := c.dialer.Dial(ctx, c.url, c.header())
		if err == nil {
			data, _ := json.Marshal(announce{UserID: userID})
			if werr := conn.WriteJSON(Envelope{Event: EventUserLoggedIn, Data: data}); werr != nil {
				_ = conn.Close()
				conn, err = nil, werr
			}
		}
		if !c.send(msgDialed{gen: gen, conn: conn, err: err}) && conn != nil {
			_ = conn.Close()
		}
	}()
}

func (c *Channel) read(gen int, conn Conn) {
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			c.send(msgClosed{gen: gen, err: err})
			return
		}
		switch env.Event {
		case EventActiveUsersCount:
			var n int
			if err := json.Unmarshal(env.Data, &n); err != nil || n < 0 {
				continue
			}
			c.send(msgCount{gen: gen, n: n})
		case EventDisconnect:
			c.send(msgClosed{gen: gen, err: errServerDisconnect})
			return
		}
	}
}

func (c *Channel) scheduleRetry(l *loop) {
	if l.userID == "" || l.attempts >= c.policy.MaxAttempts {
		return
	}
	l.attempts++
	gen := l.gen
	l.retry = time.AfterFunc(c.policy.backoff(l.attempts), func() {
		c.send(msgRetry{gen: gen})
	})
}

// teardown drops the connection, any dial in flight and any pending retry.
func (c *Channel) teardown(l *loop) {
	l.gen++
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.dialing = false
	if l.retry != nil {
		l.retry.Stop()
		l.retry = nil
	}
	if l.conn != nil {
		_ = l.conn.Close()
		l.conn = nil
	}
	c.reset()
}

func (c *Channel) reset() {
	c.mu.Lock()
	c.conn = nil
	c.connected = false
	c.mu.Unlock()
	c.setCount(0)
}

func (c *Channel) setCount(n int) {
	c.mu.Lock()
	changed := c.count != n
	c.count = n
	c.mu.Unlock()
	if !changed {
		return
	}
	metrics.PresenceActiveUsers.Set(float64(n))

	c.subMu.Lock()
	fns := make([]func(int), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.subMu.Unlock()
	for _, fn := range fns {
		fn(n)
	}
}
