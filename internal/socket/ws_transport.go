package socket

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"github.com/vogiaan1904/voyage-sync/pkg/logger"
)

type WSConfig struct {
	Token       string
	DialTimeout time.Duration
	Reconnect   Backoff
	// MaxPending bounds frames held before OnMessage is set.
	MaxPending int
}

type wsTransport struct {
	cfg    WSConfig
	dialer ws.Dialer
	l      logger.Logger
}

// NewWSTransport dials with a bearer token. Handles redial on their own
// until closed or out of retries.
func NewWSTransport(cfg WSConfig, l logger.Logger) Transport {
	header := http.Header{}
	if cfg.Token != "" {
		header.Set("Authorization", "Bearer "+cfg.Token)
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = 64
	}
	return &wsTransport{
		cfg: cfg,
		dialer: ws.Dialer{
			Header:  ws.HandshakeHeaderHTTP(header),
			Timeout: cfg.DialTimeout,
		},
		l: l,
	}
}

func (t *wsTransport) Connect(ctx context.Context, rawURL string) (Handle, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("%w: scheme %q", ErrInvalidURL, u.Scheme)
	}

	hctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &wsHandle{
		id:     uuid.NewString(),
		url:    rawURL,
		t:      t,
		ctx:    hctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	h.state.Store(int32(StateConnecting))

	go h.run()
	return h, nil
}

type wsHandle struct {
	id  string
	url string
	t   *wsTransport

	ctx    context.Context
	cancel context.CancelFunc
	state  atomic.Int32
	done   chan struct{}

	mu        sync.Mutex
	conn      net.Conn
	onMessage func([]byte)
	pending   [][]byte

	// deliverMu keeps replayed and live frames in order.
	deliverMu sync.Mutex
	writeMu   sync.Mutex
}

func (h *wsHandle) ID() string { return h.id }

func (h *wsHandle) ReadyState() ReadyState {
	return ReadyState(h.state.Load())
}

func (h *wsHandle) OnMessage(fn func([]byte)) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	h.onMessage = fn
	pending := h.pending
	h.pending = nil
	h.mu.Unlock()

	for _, data := range pending {
		fn(data)
	}
}

func (h *wsHandle) Send(ctx context.Context, data []byte) error {
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn == nil || h.ReadyState() != StateOpen {
		return ErrNotOpen
	}

	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(dl)
		defer conn.SetWriteDeadline(time.Time{})
	}
	return wsutil.WriteClientMessage(conn, ws.OpText, data)
}

func (h *wsHandle) Close() error {
	if h.ctx.Err() != nil {
		return nil
	}
	h.state.Store(int32(StateClosing))
	h.cancel()

	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()

	var err error
	if conn != nil {
		h.writeMu.Lock()
		_ = wsutil.WriteClientMessage(conn, ws.OpClose, ws.NewCloseFrameBody(ws.StatusNormalClosure, ""))
		h.writeMu.Unlock()
		if cerr := conn.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}
	}

	<-h.done
	h.state.Store(int32(StateClosed))
	return err
}

func (h *wsHandle) run() {
	defer close(h.done)
	defer h.state.Store(int32(StateClosed))

	ctx := h.ctx
	for attempt := 0; ; {
		h.setState(StateConnecting)

		conn, br, _, err := h.t.dialer.Dial(ctx, h.url)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			if h.t.cfg.Reconnect.Exhausted(attempt) {
				h.t.l.Errorf(ctx, "socket.wsHandle.run: %s: %v after %d attempts", h.url, ErrRetriesExceeded, attempt-1)
				return
			}
			h.t.l.Warnf(ctx, "socket.wsHandle.run: dial %s: %v", h.url, err)
			if !h.wait(attempt - 1) {
				return
			}
			continue
		}

		attempt = 0
		h.mu.Lock()
		h.conn = conn
		h.mu.Unlock()
		h.setState(StateOpen)
		h.t.l.Debugf(ctx, "socket.wsHandle.run: %s open (handle %s)", h.url, h.id)

		err = h.readLoop(conn, br)

		h.mu.Lock()
		h.conn = nil
		h.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		h.t.l.Warnf(ctx, "socket.wsHandle.run: %s dropped: %v", h.url, err)
		if !h.wait(0) {
			return
		}
	}
}

// setState never overrides CLOSING set by Close.
func (h *wsHandle) setState(s ReadyState) {
	if h.ctx.Err() != nil {
		return
	}
	h.state.Store(int32(s))
}

// wait sleeps out the backoff in CLOSED state. It returns false when the
// handle was closed meanwhile.
func (h *wsHandle) wait(attempt int) bool {
	h.setState(StateClosed)
	timer := time.NewTimer(h.t.cfg.Reconnect.Delay(attempt))
	defer timer.Stop()

	select {
	case <-h.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (h *wsHandle) readLoop(conn net.Conn, br *bufio.Reader) error {
	var rw io.ReadWriter = conn
	if br != nil {
		rw = struct {
			io.Reader
			io.Writer
		}{io.MultiReader(br, conn), conn}
	}

	for {
		data, op, err := wsutil.ReadServerData(rw)
		if err != nil {
			return err
		}
		if op != ws.OpText && op != ws.OpBinary {
			continue
		}
		h.emit(data)
	}
}

func (h *wsHandle) emit(data []byte) {
	h.deliverMu.Lock()
	defer h.deliverMu.Unlock()

	h.mu.Lock()
	fn := h.onMessage
	if fn == nil {
		if len(h.pending) < h.t.cfg.MaxPending {
			h.pending = append(h.pending, data)
		}
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	fn(data)
}
