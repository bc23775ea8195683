// Package push maintains the persistent event-stream connection to the
// server. One manager goroutine owns the transport, the reconnect
// backoff state, and the ping timer; callers interact with it only
// through commands, so no state is ever mutated from two goroutines.
package push

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/user/ziactl/internal/session"
	"github.com/user/ziactl/internal/types"
)

// Status is the authoritative channel state.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

const (
	defaultBaseDelay    = 1 * time.Second
	defaultMaxAttempts  = 5
	defaultPingInterval = 30 * time.Second
)

// Handler receives every well-formed action_result or status_update
// frame. Invoked from the manager goroutine; must not block.
type Handler func(msg types.PushMessage)

// Config wires a Manager.
type Config struct {
	// URL is the event stream endpoint without credentials, e.g.
	// "wss://host/api/v1/ws/voice".
	URL   string
	Creds *session.Store
	Dial  Dialer

	Handler Handler
	// OnStatus, when set, observes every status transition.
	OnStatus func(Status)

	BaseDelay    time.Duration
	MaxAttempts  int
	PingInterval time.Duration
}

// Manager owns the push channel. All exported methods are safe for
// concurrent use and never block on network activity.
type Manager struct {
	cfg Config

	cmds   chan command
	events chan event
	status atomic.Value

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

type cmdKind int

const (
	cmdConnect cmdKind = iota
	cmdDisconnect
	cmdSend
)

type command struct {
	kind cmdKind
	msg  any
}

type event struct {
	conn    Conn // dial success
	dialErr error
	payload []byte // inbound frame
	closed  bool   // transport closed or failed
}

// NewManager creates a Manager. Call Start before any other method.
func NewManager(cfg Config) *Manager {
	if cfg.Dial == nil {
		cfg.Dial = DialWebSocket
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = defaultMaxAttempts
	}
	if cfg.PingInterval == 0 {
		cfg.PingInterval = defaultPingInterval
	}
	m := &Manager{
		cfg:    cfg,
		cmds:   make(chan command, 16),
		events: make(chan event, 16),
		done:   make(chan struct{}),
	}
	m.status.Store(StatusDisconnected)
	return m
}

// Start launches the manager goroutine.
func (m *Manager) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)
	go m.run()
}

// Stop disconnects and terminates the manager goroutine.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	<-m.done
}

// Status returns the current channel state.
func (m *Manager) Status() Status {
	return m.status.Load().(Status)
}

// Connect asks the manager to open the channel. A fresh Connect resets
// the backoff state and re-enables auto-reconnect after a prior
// Disconnect or an exhausted retry budget.
func (m *Manager) Connect() {
	m.post(command{kind: cmdConnect})
}

// Disconnect closes the channel, cancels any pending reconnect and ping
// timers, and suppresses auto-reconnect. Idempotent.
func (m *Manager) Disconnect() {
	m.post(command{kind: cmdDisconnect})
}

// Send writes one outbound frame. Dropped silently unless connected.
func (m *Manager) Send(msg any) {
	m.post(command{kind: cmdSend, msg: msg})
}

func (m *Manager) post(cmd command) {
	select {
	case m.cmds <- cmd:
	case <-m.done:
	}
}

func (m *Manager) setStatus(s Status) {
	m.status.Store(s)
	if m.cfg.OnStatus != nil {
		m.cfg.OnStatus(s)
	}
}

// loop is the state owned exclusively by the manager goroutine.
type loop struct {
	m *Manager

	conn       Conn
	readCancel context.CancelFunc
	dialing    bool
	suppress   bool
	attempts   int

	reconnect  *time.Timer
	reconnectC <-chan time.Time
	pinger     *time.Ticker
	pingC      <-chan time.Time
}

// run is the manager goroutine. The loop struct is the only place the
// transport, attempt counter, and timers live.
func (m *Manager) run() {
	defer close(m.done)
	l := &loop{m: m}

	for {
		select {
		case <-m.ctx.Done():
			l.teardown()
			m.setStatus(StatusDisconnected)
			return

		case cmd := <-m.cmds:
			l.handleCommand(cmd)

		case ev := <-m.events:
			l.handleEvent(ev)

		case <-l.pingC:
			l.ping()

		case <-l.reconnectC:
			l.reconnect = nil
			l.reconnectC = nil
			if !l.suppress && l.conn == nil && !l.dialing {
				l.dial()
			}
		}
	}
}

func (l *loop) handleCommand(cmd command) {
	switch cmd.kind {
	case cmdConnect:
		if l.conn != nil || l.dialing {
			return
		}
		l.suppress = false
		l.attempts = 0
		l.stopReconnectTimer()
		l.dial()

	case cmdDisconnect:
		l.suppress = true
		l.teardown()
		l.m.setStatus(StatusDisconnected)

	case cmdSend:
		if l.conn == nil {
			return
		}
		if err := l.conn.WriteJSON(l.m.ctx, cmd.msg); err != nil {
			slog.Debug("push write failed", "error", err)
			l.transportLost()
		}
	}
}

func (l *loop) handleEvent(ev event) {
	switch {
	case ev.dialErr != nil:
		l.dialing = false
		if l.suppress {
			l.m.setStatus(StatusDisconnected)
			return
		}
		slog.Debug("push dial failed", "error", ev.dialErr)
		l.m.setStatus(StatusError)
		l.scheduleReconnect()

	case ev.conn != nil:
		l.dialing = false
		if l.suppress {
			// Disconnect raced the dial; drop the fresh conn.
			ev.conn.Close()
			return
		}
		l.conn = ev.conn
		l.attempts = 0
		l.m.setStatus(StatusConnected)
		var readCtx context.Context
		readCtx, l.readCancel = context.WithCancel(l.m.ctx)
		go l.m.readLoop(readCtx, l.conn)
		l.pinger = time.NewTicker(l.m.cfg.PingInterval)
		l.pingC = l.pinger.C

	case ev.closed:
		if l.conn == nil {
			return // teardown already handled
		}
		l.transportLost()

	case ev.payload != nil:
		l.m.dispatch(ev.payload)
	}
}

// ping emits the periodic liveness frame. A write failure counts as a
// transport failure; a missed pong does not.
func (l *loop) ping() {
	if l.conn == nil {
		return
	}
	if err := l.conn.WriteJSON(l.m.ctx, map[string]string{"type": types.PushPing}); err != nil {
		slog.Debug("push ping failed", "error", err)
		l.transportLost()
	}
}

// transportLost handles an unplanned close: the transport is torn down
// and a reconnect is scheduled with exponential backoff.
func (l *loop) transportLost() {
	l.closeConn()
	l.stopPinger()
	l.scheduleReconnect()
}

// scheduleReconnect backs off BaseDelay * 2^attempt, giving up after
// MaxAttempts consecutive failures.
func (l *loop) scheduleReconnect() {
	l.m.setStatus(StatusDisconnected)
	if l.suppress {
		return
	}
	if l.attempts >= l.m.cfg.MaxAttempts {
		slog.Warn("push channel gave up reconnecting", "attempts", l.attempts)
		return
	}
	delay := l.m.cfg.BaseDelay << l.attempts
	l.attempts++
	slog.Debug("push reconnect scheduled", "attempt", l.attempts, "delay", delay)
	l.reconnect = time.NewTimer(delay)
	l.reconnectC = l.reconnect.C
}

func (l *loop) dial() {
	token := l.m.cfg.Creds.Access()
	if token == "" {
		slog.Debug("push connect skipped: not authenticated")
		l.m.setStatus(StatusDisconnected)
		return
	}
	l.dialing = true
	l.m.setStatus(StatusConnecting)
	target := l.m.cfg.URL + "?" + url.Values{"token": {token}}.Encode()
	m := l.m
	go func() {
		c, err := m.cfg.Dial(m.ctx, target)
		select {
		case m.events <- event{conn: c, dialErr: err}:
		case <-m.ctx.Done():
			if c != nil {
				c.Close()
			}
		}
	}()
}

func (l *loop) closeConn() {
	if l.readCancel != nil {
		l.readCancel()
		l.readCancel = nil
	}
	if l.conn != nil {
		l.conn.Close()
		l.conn = nil
	}
}

func (l *loop) stopReconnectTimer() {
	if l.reconnect != nil {
		l.reconnect.Stop()
		l.reconnect = nil
		l.reconnectC = nil
	}
}

func (l *loop) stopPinger() {
	if l.pinger != nil {
		l.pinger.Stop()
		l.pinger = nil
		l.pingC = nil
	}
}

func (l *loop) teardown() {
	l.stopReconnectTimer()
	l.stopPinger()
	l.closeConn()
	l.dialing = false
}

// readLoop pumps inbound frames into the manager goroutine. It exits on
// the first transport error, reporting a close event.
func (m *Manager) readLoop(ctx context.Context, conn Conn) {
	for {
		data, err := conn.Read(ctx)
		if err != nil {
			select {
			case m.events <- event{closed: true}:
			case <-m.ctx.Done():
			}
			return
		}
		select {
		case m.events <- event{payload: data}:
		case <-m.ctx.Done():
			return
		}
	}
}

// dispatch decodes one inbound frame. Malformed frames are dropped
// silently and never affect channel state.
func (m *Manager) dispatch(data []byte) {
	var msg types.PushMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Debug("push frame dropped: malformed", "error", err)
		return
	}
	switch msg.Type {
	case types.PushActionResult:
		if msg.Data == nil {
			return
		}
		if m.cfg.Handler != nil {
			m.cfg.Handler(msg)
		}
	case types.PushStatusUpdate:
		if msg.ExecutionID == "" || msg.Status == "" {
			return
		}
		if m.cfg.Handler != nil {
			m.cfg.Handler(msg)
		}
	case types.PushPong:
		// Liveness reply; absence is deliberately not a failure signal.
	case types.PushError:
		if msg.Error != "" {
			slog.Debug("push channel server error", "error", msg.Error)
		}
	default:
		// Unrecognized frame types are ignored.
	}
}
