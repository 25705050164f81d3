package socket

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/pkg/logger"
	"golang.org/x/sync/singleflight"
)

type Manager interface {
	// Open is a no-op while the key's handle is CONNECTING or OPEN. A key
	// reports CONNECTING from the moment Open starts dialing.
	Open(ctx context.Context, key models.ConnKey) error
	// Close drops the key immediately and tears the handle down, retrying
	// in the background if teardown fails. Closing a key that is still
	// dialing discards the handle once the dial returns.
	Close(key models.ConnKey) error
	// OpenConversation opens the fez socket after closing every other one.
	OpenConversation(ctx context.Context, fezID string) error
	CloseConversation(fezID string) error
	Send(ctx context.Context, key models.ConnKey, data []byte) error
	State(key models.ConnKey) models.ConnState
	States() []models.ConnectionStatus
	// Messages returns the inbound stream for key. The channel outlives
	// reconnects and is closed by Shutdown.
	Messages(key models.ConnKey) <-chan Message
	Shutdown()
}

type ManagerConfig struct {
	MessageBuffer int
	Reconcile     Backoff
}

// pendingOpen is a dial in flight for one key.
type pendingOpen struct {
	closeWanted bool
}

type manager struct {
	transport Transport
	urls      URLBuilder
	cfg       ManagerConfig
	l         logger.Logger
	group     singleflight.Group

	// convMu serializes conversation switches.
	convMu sync.Mutex

	mu      sync.Mutex
	handles map[models.ConnKey]Handle
	pending map[models.ConnKey]*pendingOpen
	streams map[models.ConnKey]chan Message
	closed  bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func NewManager(transport Transport, urls URLBuilder, cfg ManagerConfig, l logger.Logger) Manager {
	if cfg.MessageBuffer <= 0 {
		cfg.MessageBuffer = 64
	}
	return &manager{
		transport: transport,
		urls:      urls,
		cfg:       cfg,
		l:         l,
		handles:   make(map[models.ConnKey]Handle),
		pending:   make(map[models.ConnKey]*pendingOpen),
		streams:   make(map[models.ConnKey]chan Message),
		stopCh:    make(chan struct{}),
	}
}

func (m *manager) Open(ctx context.Context, key models.ConnKey) error {
	if live, err := m.liveOrEvict(ctx, key); err != nil || live {
		return err
	}

	// Racing opens share one Connect.
	_, err, _ := m.group.Do(string(key), func() (any, error) {
		if live, err := m.liveOrEvict(ctx, key); err != nil || live {
			return nil, err
		}

		url, err := m.urls.URL(key)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", key, err)
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return nil, ErrManagerClosed
		}
		p := &pendingOpen{}
		m.pending[key] = p
		m.mu.Unlock()

		h, err := m.transport.Connect(ctx, url)

		m.mu.Lock()
		if m.pending[key] == p {
			delete(m.pending, key)
		}
		if err != nil {
			m.mu.Unlock()
			m.l.Errorf(ctx, "socket.manager.Open: connect %s: %v", key, err)
			return nil, fmt.Errorf("connect %s: %w", key, err)
		}
		if m.closed {
			m.mu.Unlock()
			_ = h.Close()
			return nil, ErrManagerClosed
		}
		if p.closeWanted {
			m.mu.Unlock()
			m.l.Debugf(ctx, "socket.manager.Open: %s closed while dialing, dropping handle %s", key, h.ID())
			m.teardown(key, h)
			return nil, nil
		}
		m.handles[key] = h
		m.streamLocked(key)
		m.mu.Unlock()

		id := h.ID()
		h.OnMessage(func(data []byte) {
			m.deliver(key, id, data)
		})

		m.l.Infof(ctx, "socket.manager.Open: %s handle %s", key, id)
		return nil, nil
	})
	return err
}

// liveOrEvict reports whether key already has a live handle. A dead handle
// is removed and closed so a fresh one can replace it.
func (m *manager) liveOrEvict(ctx context.Context, key models.ConnKey) (bool, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return false, ErrManagerClosed
	}
	if p, ok := m.pending[key]; ok {
		// A later Open overrides an earlier Close on the same dial.
		p.closeWanted = false
		m.mu.Unlock()
		return false, nil
	}
	h, ok := m.handles[key]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	state := h.ReadyState()
	if state.Live() {
		m.mu.Unlock()
		return true, nil
	}
	delete(m.handles, key)
	m.mu.Unlock()

	m.l.Debugf(ctx, "socket.manager.Open: replacing %s handle %s in state %s", key, h.ID(), state)
	m.teardown(key, h)
	return false, nil
}

func (m *manager) Close(key models.ConnKey) error {
	m.mu.Lock()
	if p, ok := m.pending[key]; ok {
		p.closeWanted = true
	}
	h, ok := m.handles[key]
	if ok {
		delete(m.handles, key)
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}

	m.teardown(key, h)
	return nil
}

// teardown closes h, handing off to a background reconcile when Close fails.
func (m *manager) teardown(key models.ConnKey, h Handle) {
	err := h.Close()
	if err == nil {
		return
	}
	m.l.Warnf(context.Background(), "socket.manager.teardown: %s handle %s: %v", key, h.ID(), err)

	m.wg.Add(1)
	go m.reconcile(key, h)
}

func (m *manager) reconcile(key models.ConnKey, h Handle) {
	defer m.wg.Done()

	for attempt := 1; ; attempt++ {
		if m.cfg.Reconcile.Exhausted(attempt) {
			m.l.Errorf(context.Background(), "socket.manager.reconcile: giving up on %s handle %s", key, h.ID())
			return
		}

		select {
		case <-m.stopCh:
			_ = h.Close()
			return
		case <-time.After(m.cfg.Reconcile.Delay(attempt - 1)):
		}

		if err := h.Close(); err != nil {
			m.l.Warnf(context.Background(), "socket.manager.reconcile: %s handle %s attempt %d: %v", key, h.ID(), attempt, err)
			continue
		}
		m.l.Debugf(context.Background(), "socket.manager.reconcile: %s handle %s closed", key, h.ID())
		return
	}
}

func (m *manager) OpenConversation(ctx context.Context, fezID string) error {
	target := models.ConversationConnKey(fezID)

	m.convMu.Lock()
	defer m.convMu.Unlock()

	m.mu.Lock()
	var others []models.ConnKey
	for k := range m.handles {
		if _, ok := k.ConversationID(); ok && k != target {
			others = append(others, k)
		}
	}
	for k := range m.pending {
		if _, ok := k.ConversationID(); ok && k != target {
			others = append(others, k)
		}
	}
	m.mu.Unlock()

	for _, k := range others {
		if err := m.Close(k); err != nil {
			return err
		}
	}
	return m.Open(ctx, target)
}

func (m *manager) CloseConversation(fezID string) error {
	m.convMu.Lock()
	defer m.convMu.Unlock()
	return m.Close(models.ConversationConnKey(fezID))
}

func (m *manager) Send(ctx context.Context, key models.ConnKey, data []byte) error {
	m.mu.Lock()
	h, ok := m.handles[key]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotOpen, key)
	}
	return h.Send(ctx, data)
}

func (m *manager) State(key models.ConnKey) models.ConnState {
	m.mu.Lock()
	h, ok := m.handles[key]
	p, dialing := m.pending[key]
	wanted := dialing && !p.closeWanted
	m.mu.Unlock()
	if wanted {
		return models.ConnStateConnecting
	}
	if !ok {
		return models.ConnStateClosed
	}
	return h.ReadyState().ConnState()
}

func (m *manager) States() []models.ConnectionStatus {
	m.mu.Lock()
	out := make([]models.ConnectionStatus, 0, len(m.handles)+len(m.pending))
	for k, h := range m.handles {
		if _, dialing := m.pending[k]; dialing {
			continue
		}
		out = append(out, models.ConnectionStatus{
			Key:      k,
			State:    h.ReadyState().ConnState(),
			HandleID: h.ID(),
		})
	}
	for k, p := range m.pending {
		if p.closeWanted {
			continue
		}
		out = append(out, models.ConnectionStatus{Key: k, State: models.ConnStateConnecting})
	}
	m.mu.Unlock()

	slices.SortFunc(out, func(a, b models.ConnectionStatus) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		default:
			return 0
		}
	})
	return out
}

func (m *manager) Messages(key models.ConnKey) <-chan Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamLocked(key)
}

func (m *manager) streamLocked(key models.ConnKey) chan Message {
	ch, ok := m.streams[key]
	if !ok {
		ch = make(chan Message, m.cfg.MessageBuffer)
		if m.closed {
			close(ch)
		}
		m.streams[key] = ch
	}
	return ch
}

// deliver forwards a frame from handleID if it is still the key's handle.
// A full stream drops the frame rather than stall the transport.
func (m *manager) deliver(key models.ConnKey, handleID string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	h, ok := m.handles[key]
	if !ok || h.ID() != handleID {
		return
	}

	msg := Message{
		Key:        key,
		HandleID:   handleID,
		Data:       slices.Clone(data),
		ReceivedAt: time.Now(),
	}
	select {
	case m.streamLocked(key) <- msg:
	default:
		m.l.Warnf(context.Background(), "socket.manager.deliver: %s stream full, dropping frame", key)
	}
}

func (m *manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	handles := m.handles
	m.handles = make(map[models.ConnKey]Handle)
	m.pending = make(map[models.ConnKey]*pendingOpen)
	for _, ch := range m.streams {
		close(ch)
	}
	m.mu.Unlock()

	close(m.stopCh)
	for k, h := range handles {
		if err := h.Close(); err != nil {
			m.l.Warnf(context.Background(), "socket.manager.Shutdown: %s: %v", k, err)
		}
	}
	m.wg.Wait()
}
