package socket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/vogiaan1904/voyage-sync/pkg/logger"
)

// newTestWSServer greets each connection with "hello" and echoes text frames
// back prefixed with "echo:". When dropFirst is set the first connection is
// closed right after the greeting.
func newTestWSServer(t *testing.T, dropFirst bool) (string, *atomic.Int32, *atomic.Value) {
	t.Helper()
	var conns atomic.Int32
	var auth atomic.Value

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			return
		}
		n := conns.Add(1)

		go func() {
			defer conn.Close()
			if err := wsutil.WriteServerMessage(conn, ws.OpText, []byte("hello")); err != nil {
				return
			}
			if dropFirst && n == 1 {
				return
			}
			for {
				data, op, err := wsutil.ReadClientData(conn)
				if err != nil {
					return
				}
				if op == ws.OpText {
					_ = wsutil.WriteServerMessage(conn, ws.OpText, append([]byte("echo:"), data...))
				}
			}
		}()
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), &conns, &auth
}

func newTestWSTransport() Transport {
	return NewWSTransport(WSConfig{
		Token:       "secret",
		DialTimeout: time.Second,
		Reconnect:   Backoff{BaseDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond},
	}, logger.NewNopLogger())
}

func waitState(t *testing.T, h Handle, want ReadyState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ReadyState() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state: got %s, want %s", h.ReadyState(), want)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func recv(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return ""
	}
}

func TestWSTransportRoundTrip(t *testing.T) {
	url, _, auth := newTestWSServer(t, false)
	h, err := newTestWSTransport().Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer h.Close()

	frames := make(chan string, 8)
	h.OnMessage(func(data []byte) { frames <- string(data) })

	if got := recv(t, frames); got != "hello" {
		t.Fatalf("greeting: got %q", got)
	}
	waitState(t, h, StateOpen)
	if got, _ := auth.Load().(string); got != "Bearer secret" {
		t.Fatalf("authorization: got %q", got)
	}

	if err := h.Send(context.Background(), []byte("ping")); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := recv(t, frames); got != "echo:ping" {
		t.Fatalf("echo: got %q", got)
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if h.ReadyState() != StateClosed {
		t.Fatalf("state after close: got %s", h.ReadyState())
	}
	if err := h.Send(context.Background(), []byte("late")); !errors.Is(err, ErrNotOpen) {
		t.Fatalf("Send after close: got %v, want ErrNotOpen", err)
	}
}

func TestWSTransportReconnects(t *testing.T) {
	url, conns, _ := newTestWSServer(t, true)
	h, err := newTestWSTransport().Connect(context.Background(), url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer h.Close()

	frames := make(chan string, 8)
	h.OnMessage(func(data []byte) { frames <- string(data) })

	recv(t, frames)
	recv(t, frames)
	if got := conns.Load(); got < 2 {
		t.Fatalf("connections: got %d, want at least 2", got)
	}
}

func TestWSTransportCloseCancelsReconnect(t *testing.T) {
	tr := NewWSTransport(WSConfig{
		DialTimeout: 50 * time.Millisecond,
		Reconnect:   Backoff{BaseDelay: time.Hour},
	}, logger.NewNopLogger())

	// Nothing listens here, so the handle parks in its backoff wait.
	h, err := tr.Connect(context.Background(), "ws://127.0.0.1:1/socket")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	waitState(t, h, StateClosed)

	done := make(chan error, 1)
	go func() { done <- h.Close() }()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked on the reconnect timer")
	}
}

func TestWSTransportRejectsBadURL(t *testing.T) {
	tr := newTestWSTransport()
	for _, u := range []string{"http://ship/socket", "::bad"} {
		if _, err := tr.Connect(context.Background(), u); !errors.Is(err, ErrInvalidURL) {
			t.Fatalf("Connect(%q): got %v, want ErrInvalidURL", u, err)
		}
	}
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{BaseDelay: 10 * time.Millisecond, MaxDelay: 50 * time.Millisecond, MaxRetries: 3}

	tests := []struct {
		attempt  int
		min, max time.Duration
	}{
		{0, 10 * time.Millisecond, 20 * time.Millisecond},
		{1, 20 * time.Millisecond, 30 * time.Millisecond},
		{5, 50 * time.Millisecond, 60 * time.Millisecond},
	}
	for _, tt := range tests {
		d := b.Delay(tt.attempt)
		if d < tt.min || d >= tt.max {
			t.Fatalf("Delay(%d): got %v, want [%v, %v)", tt.attempt, d, tt.min, tt.max)
		}
	}

	if b.Exhausted(3) || !b.Exhausted(4) {
		t.Fatal("Exhausted boundary wrong")
	}
	if (Backoff{}).Exhausted(1000) {
		t.Fatal("zero MaxRetries should retry forever")
	}
}
