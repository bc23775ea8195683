package push

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/user/ziactl/internal/session"
	"github.com/user/ziactl/internal/types"
)

type fakeConn struct {
	inbound   chan []byte
	writes    chan any
	closed    chan struct{}
	closeOnce sync.Once
	failWrite atomic.Bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		writes:  make(chan any, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case d := <-c.inbound:
		return d, nil
	case <-c.closed:
		return nil, errors.New("connection closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) WriteJSON(ctx context.Context, v any) error {
	if c.failWrite.Load() {
		return errors.New("write failed")
	}
	select {
	case c.writes <- v:
	default:
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

// drop simulates an unplanned transport close.
func (c *fakeConn) drop() { c.Close() }

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	urls  []string
	fail  bool
	dials atomic.Int64
}

func (d *fakeDialer) dial(ctx context.Context, url string) (Conn, error) {
	d.dials.Add(1)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.urls = append(d.urls, url)
	if d.fail {
		return nil, errors.New("dial refused")
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) latest() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) setFail(fail bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fail = fail
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}

func newTestManager(t *testing.T, d *fakeDialer, handler Handler) *Manager {
	t.Helper()
	creds := session.NewStore()
	creds.Set("token-abc", "refresh")
	m := NewManager(Config{
		URL:          "ws://test/voice",
		Creds:        creds,
		Dial:         d.dial,
		Handler:      handler,
		BaseDelay:    5 * time.Millisecond,
		MaxAttempts:  3,
		PingInterval: time.Hour, // pings off unless a test shortens this
	})
	m.Start(context.Background())
	t.Cleanup(m.Stop)
	return m
}

func TestConnectReachesConnected(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, d, nil)

	m.Connect()
	if !waitFor(t, time.Second, func() bool { return m.Status() == StatusConnected }) {
		t.Fatalf("expected connected, got %s", m.Status())
	}

	d.mu.Lock()
	url := d.urls[0]
	d.mu.Unlock()
	if !strings.Contains(url, "token=token-abc") {
		t.Errorf("expected access token in dial URL, got %s", url)
	}
}

func TestConnectWithoutCredentialStaysDisconnected(t *testing.T) {
	d := &fakeDialer{}
	creds := session.NewStore()
	m := NewManager(Config{URL: "ws://test/voice", Creds: creds, Dial: d.dial})
	m.Start(context.Background())
	defer m.Stop()

	m.Connect()
	time.Sleep(20 * time.Millisecond)
	if m.Status() != StatusDisconnected {
		t.Errorf("expected disconnected, got %s", m.Status())
	}
	if d.dials.Load() != 0 {
		t.Error("expected no dial attempt without a token")
	}
}

func TestActionResultForwardedToHandler(t *testing.T) {
	var mu sync.Mutex
	var got []types.PushMessage
	d := &fakeDialer{}
	m := newTestManager(t, d, func(msg types.PushMessage) {
		mu.Lock()
		got = append(got, msg)
		mu.Unlock()
	})

	m.Connect()
	waitFor(t, time.Second, func() bool { return m.Status() == StatusConnected })

	frame, _ := json.Marshal(types.PushMessage{
		Type: types.PushActionResult,
		Data: &types.ActionResponse{ExecutionID: "exec-1", Status: types.StatusCompleted},
	})
	d.latest().inbound <- frame

	if !waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	}) {
		t.Fatal("handler never received the action_result frame")
	}
	mu.Lock()
	defer mu.Unlock()
	if got[0].Data.ExecutionID != "exec-1" {
		t.Errorf("unexpected payload: %+v", got[0])
	}
}

func TestMalformedFramesDroppedSilently(t *testing.T) {
	var count atomic.Int64
	d := &fakeDialer{}
	m := newTestManager(t, d, func(types.PushMessage) { count.Add(1) })

	m.Connect()
	waitFor(t, time.Second, func() bool { return m.Status() == StatusConnected })

	conn := d.latest()
	conn.inbound <- []byte("{not json")
	conn.inbound <- []byte(`{"type":"???"}`)
	conn.inbound <- []byte(`{"type":"pong"}`)
	conn.inbound <- []byte(`{"type":"action_result"}`) // missing data

	// A valid frame after the garbage proves the channel survived.
	frame, _ := json.Marshal(types.PushMessage{
		Type: types.PushActionResult,
		Data: &types.ActionResponse{ExecutionID: "exec-ok", Status: types.StatusQueued},
	})
	conn.inbound <- frame

	if !waitFor(t, time.Second, func() bool { return count.Load() == 1 }) {
		t.Fatalf("expected exactly 1 delivered frame, got %d", count.Load())
	}
	if m.Status() != StatusConnected {
		t.Errorf("malformed frames must not change channel state, got %s", m.Status())
	}
}

func TestUnplannedCloseReconnects(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, d, nil)

	m.Connect()
	waitFor(t, time.Second, func() bool { return m.Status() == StatusConnected })

	d.latest().drop()

	if !waitFor(t, time.Second, func() bool { return d.dials.Load() >= 2 }) {
		t.Fatal("expected a reconnect dial after unplanned close")
	}
	if !waitFor(t, time.Second, func() bool { return m.Status() == StatusConnected }) {
		t.Fatalf("expected reconnected, got %s", m.Status())
	}
}

func TestGivesUpAfterMaxAttempts(t *testing.T) {
	d := &fakeDialer{fail: true}
	m := newTestManager(t, d, nil)

	m.Connect()

	// Initial dial plus MaxAttempts reconnects, then nothing.
	if !waitFor(t, 2*time.Second, func() bool { return d.dials.Load() == 4 }) {
		t.Fatalf("expected 4 dial attempts (1 + 3 retries), got %d", d.dials.Load())
	}
	time.Sleep(50 * time.Millisecond)
	if got := d.dials.Load(); got != 4 {
		t.Errorf("expected no dials after giving up, got %d", got)
	}

	// An explicit Connect resets the budget.
	d.setFail(false)
	m.Connect()
	if !waitFor(t, time.Second, func() bool { return m.Status() == StatusConnected }) {
		t.Fatalf("expected manual reconnect to succeed, got %s", m.Status())
	}
}

func TestAttemptCounterResetsOnSuccessfulOpen(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, d, nil)

	m.Connect()
	waitFor(t, time.Second, func() bool { return m.Status() == StatusConnected })

	// Burn through several unplanned closes, each followed by a
	// successful reopen: the budget must never run out.
	for i := 0; i < 5; i++ {
		d.latest().drop()
		if !waitFor(t, time.Second, func() bool { return m.Status() == StatusConnected && d.latest().isOpen() }) {
			t.Fatalf("round %d: expected reconnect, got %s", i, m.Status())
		}
	}
}

func TestDisconnectCancelsTimersAndSuppressesReconnect(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, d, nil)

	m.Connect()
	waitFor(t, time.Second, func() bool { return m.Status() == StatusConnected })

	// Force an unplanned close so a reconnect timer is pending, then
	// disconnect before it fires.
	d.setFail(true)
	d.latest().drop()
	waitFor(t, time.Second, func() bool { return d.dials.Load() >= 2 })

	m.Disconnect()
	m.Disconnect() // idempotent

	// Give any timer already in flight at the moment of disconnect a
	// chance to land, then require silence.
	time.Sleep(30 * time.Millisecond)
	base := d.dials.Load()
	time.Sleep(150 * time.Millisecond)
	if got := d.dials.Load(); got != base {
		t.Errorf("reconnect fired after disconnect: %d -> %d dials", base, got)
	}
	if m.Status() != StatusDisconnected {
		t.Errorf("expected disconnected, got %s", m.Status())
	}
}

func TestPingSentWhileConnected(t *testing.T) {
	d := &fakeDialer{}
	creds := session.NewStore()
	creds.Set("token-abc", "refresh")
	m := NewManager(Config{
		URL:          "ws://test/voice",
		Creds:        creds,
		Dial:         d.dial,
		BaseDelay:    5 * time.Millisecond,
		MaxAttempts:  3,
		PingInterval: 10 * time.Millisecond,
	})
	m.Start(context.Background())
	defer m.Stop()

	m.Connect()
	waitFor(t, time.Second, func() bool { return m.Status() == StatusConnected })

	select {
	case w := <-d.latest().writes:
		frame, ok := w.(map[string]string)
		if !ok || frame["type"] != types.PushPing {
			t.Errorf("expected ping frame, got %#v", w)
		}
	case <-time.After(time.Second):
		t.Fatal("no ping emitted while connected")
	}
}

func TestSendDroppedWhenNotConnected(t *testing.T) {
	d := &fakeDialer{}
	m := newTestManager(t, d, nil)

	// Must not panic or dial.
	m.Send(map[string]string{"type": "ping"})
	time.Sleep(10 * time.Millisecond)
	if d.dials.Load() != 0 {
		t.Error("send must not trigger a dial")
	}
}

func (c *fakeConn) isOpen() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}
