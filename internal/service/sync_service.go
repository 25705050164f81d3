package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vogiaan1904/voyage-sync/config"
	"github.com/vogiaan1904/voyage-sync/internal/models"
	"github.com/vogiaan1904/voyage-sync/internal/notification"
	"github.com/vogiaan1904/voyage-sync/internal/querycache"
	"github.com/vogiaan1904/voyage-sync/internal/socket"
	pkgLog "github.com/vogiaan1904/voyage-sync/pkg/logger"
)

// PeerInvalidations streams prefixes invalidated by other agents sharing
// the cache store.
type PeerInvalidations interface {
	Updates() <-chan models.CacheKey
}

type syncService struct {
	mgr             socket.Manager
	router          notification.Router
	cache           querycache.Client
	peers           PeerInvalidations
	cfg             config.SocketConfig
	shutdownTimeout time.Duration
	l               pkgLog.Logger

	mu            sync.Mutex
	isRunning     bool
	startedAt     time.Time
	baseCtx       context.Context
	stopCh        chan struct{}
	wg            sync.WaitGroup
	conversations map[string]context.CancelFunc

	handled     atomic.Int64
	rejected    atomic.Int64
	peerUpdates atomic.Int64
}

// NewSyncService pumps socket frames into router. peers may be nil.
func NewSyncService(
	mgr socket.Manager,
	router notification.Router,
	cache querycache.Client,
	peers PeerInvalidations,
	cfg config.SocketConfig,
	l pkgLog.Logger,
) SyncService {
	return &syncService{
		mgr:             mgr,
		router:          router,
		cache:           cache,
		peers:           peers,
		cfg:             cfg,
		shutdownTimeout: 10 * time.Second,
		l:               l,
		conversations:   make(map[string]context.CancelFunc),
	}
}

func (s *syncService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("sync service: %w", ErrAlreadyRunning)
	}

	stopCh := make(chan struct{})

	if s.cfg.EnableNotification {
		if err := s.mgr.Open(ctx, models.NotificationConnKey); err != nil {
			s.l.Errorf(ctx, "service.syncService.Start: %v", err)
			return err
		}
		s.wg.Add(1)
		go s.pump(ctx, stopCh, models.NotificationConnKey, s.handleNotification)
	}

	if s.peers != nil {
		s.wg.Add(1)
		go s.peerLoop(ctx, stopCh)
	}

	s.isRunning = true
	s.startedAt = time.Now()
	s.baseCtx = ctx
	s.stopCh = stopCh

	s.l.Infof(ctx, "service.syncService.Start: notification=%t conversation=%t", s.cfg.EnableNotification, s.cfg.EnableConversation)
	return nil
}

func (s *syncService) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return fmt.Errorf("sync service: %w", ErrNotRunning)
	}
	close(s.stopCh)
	for id, cancel := range s.conversations {
		cancel()
		delete(s.conversations, id)
	}
	s.isRunning = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.l.Info(context.Background(), "service.syncService.Stop: stopped")
	case <-time.After(s.shutdownTimeout):
		s.l.Warn(context.Background(), "service.syncService.Stop: shutdown timeout exceeded")
	}
	return nil
}

func (s *syncService) OpenConversation(ctx context.Context, fezID string) error {
	if !s.cfg.EnableConversation {
		return ErrConversationOff
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return fmt.Errorf("sync service: %w", ErrNotRunning)
	}

	if err := s.mgr.OpenConversation(ctx, fezID); err != nil {
		s.l.Errorf(ctx, "service.syncService.OpenConversation: %v", err)
		return err
	}

	// The manager closed every other conversation socket.
	for id, cancel := range s.conversations {
		if id != fezID {
			cancel()
			delete(s.conversations, id)
		}
	}
	if _, ok := s.conversations[fezID]; ok {
		return nil
	}

	pumpCtx, cancel := context.WithCancel(s.baseCtx)
	s.conversations[fezID] = cancel

	key := models.ConversationConnKey(fezID)
	s.wg.Add(1)
	go s.pump(pumpCtx, s.stopCh, key, func(ctx context.Context, msg socket.Message) {
		s.router.HandleConversationFrame(ctx, fezID, msg.Data)
		s.handled.Add(1)
	})
	return nil
}

func (s *syncService) CloseConversation(fezID string) error {
	s.mu.Lock()
	if cancel, ok := s.conversations[fezID]; ok {
		cancel()
		delete(s.conversations, fezID)
	}
	s.mu.Unlock()

	return s.mgr.CloseConversation(fezID)
}

func (s *syncService) Status() SyncStatus {
	s.mu.Lock()
	st := SyncStatus{
		IsRunning: s.isRunning,
		StartedAt: s.startedAt,
	}
	s.mu.Unlock()

	st.FramesHandled = s.handled.Load()
	st.FramesRejected = s.rejected.Load()
	st.PeerUpdates = s.peerUpdates.Load()
	st.Connections = s.mgr.States()
	return st
}

func (s *syncService) handleNotification(ctx context.Context, msg socket.Message) {
	if _, err := s.router.HandleFrame(ctx, msg.Data); err != nil {
		s.rejected.Add(1)
		return
	}
	s.handled.Add(1)
}

// pump hands the key's frames to handle in arrival order.
func (s *syncService) pump(ctx context.Context, stopCh <-chan struct{}, key models.ConnKey, handle func(context.Context, socket.Message)) {
	defer s.wg.Done()

	msgs := s.mgr.Messages(key)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case msg, ok := <-msgs:
			if !ok {
				s.l.Debugf(ctx, "service.syncService.pump: %s stream closed", key)
				return
			}
			handle(ctx, msg)
		}
	}
}

func (s *syncService) peerLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	updates := s.peers.Updates()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case key, ok := <-updates:
			if !ok {
				return
			}
			s.peerUpdates.Add(1)
			s.cache.Notify(ctx, key)
		}
	}
}
